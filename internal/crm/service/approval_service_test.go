package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/creative780/crm-backend/internal/crm/entity"
	"github.com/creative780/crm-backend/internal/crm/notify"
	"github.com/creative780/crm-backend/internal/crm/repository"
	"github.com/creative780/crm-backend/internal/crm/testutil"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type nopDispatcher struct{}

func (nopDispatcher) Dispatch(ctx context.Context, event notify.Event) {}

type approvalTestEnv struct {
	db       *gorm.DB
	workflow *WorkflowService
	approval *ApprovalService
}

func setupApprovalTest(t *testing.T) *approvalTestEnv {
	t.Helper()
	db := testutil.SetupTestDB(t)

	repos := repository.NewRepositories(db)
	logger := zap.NewNop()
	fileSvc := NewFileService(nil, "crm-designs", logger)
	locks := newLineLocker()

	workflow := NewWorkflowService(db, repos.Order, repos.Approval, fileSvc, nopDispatcher{}, locks, logger)
	approval := NewApprovalService(db, repos.Approval, workflow, nopDispatcher{}, locks, logger)

	return &approvalTestEnv{db: db, workflow: workflow, approval: approval}
}

func (e *approvalTestEnv) seedOrder(t *testing.T, id string) *entity.Order {
	t.Helper()
	return testutil.SeedTestOrder(t, e.db, id, "ORD-2026-"+id, "Acme Trading LLC", "sales-001")
}

func (e *approvalTestEnv) submit(t *testing.T, orderID string) *entity.DesignApproval {
	t.Helper()
	approval, err := e.workflow.SubmitForApproval(context.Background(), orderID, &SubmitApprovalInput{
		Designer:    "designer-001",
		SalesPerson: "sales-001",
		DesignFilesManifest: entity.Manifest{
			{Name: "front.pdf", Size: 1024, MimeType: "application/pdf", URL: "/media/front.pdf"},
		},
		ApprovalNotes: "first draft",
	})
	if err != nil {
		t.Fatalf("SubmitForApproval failed: %v", err)
	}
	return approval
}

func TestSubmitCreatesPendingApproval(t *testing.T) {
	env := setupApprovalTest(t)
	order := env.seedOrder(t, "ord001")

	approval := env.submit(t, order.ID)

	if approval.Status != entity.ApprovalStatusPending {
		t.Fatalf("expected pending, got %s", approval.Status)
	}
	if approval.OrderItemID != order.Items[0].ID {
		t.Fatalf("expected approval bound to item %s, got %s", order.Items[0].ID, approval.OrderItemID)
	}
	if approval.SubmittedAt.IsZero() {
		t.Fatal("expected submitted_at to be set")
	}

	pending, err := env.approval.ListPending(context.Background(), "sales-001")
	if err != nil {
		t.Fatalf("ListPending failed: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected 1 pending approval, got %d", len(pending))
	}
	if pending[0].OrderCode != order.Code {
		t.Fatalf("expected order_code %s in pending summary, got %s", order.Code, pending[0].OrderCode)
	}
	if pending[0].ClientName != "Acme Trading LLC" {
		t.Fatalf("expected client_name from order join, got %s", pending[0].ClientName)
	}
}

func TestSubmitDuplicatePendingRejected(t *testing.T) {
	env := setupApprovalTest(t)
	order := env.seedOrder(t, "ord002")

	env.submit(t, order.ID)

	_, err := env.workflow.SubmitForApproval(context.Background(), order.ID, &SubmitApprovalInput{
		Designer:    "designer-001",
		SalesPerson: "sales-001",
	})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict for duplicate pending, got %v", err)
	}
}

func TestSubmitRequiresCustomDesignLine(t *testing.T) {
	env := setupApprovalTest(t)
	order := &entity.Order{
		ID:         "ord003",
		Code:       "ORD-2026-ord003",
		ClientName: "Plain Client",
		Status:     entity.OrderStatusNew,
		Items: []entity.OrderItem{
			{ID: "ord003-item1", OrderID: "ord003", Name: "Stock Flyers", Quantity: 100},
		},
	}
	if err := env.db.Create(order).Error; err != nil {
		t.Fatalf("seed order: %v", err)
	}

	_, err := env.workflow.SubmitForApproval(context.Background(), order.ID, &SubmitApprovalInput{
		Designer:    "designer-001",
		SalesPerson: "sales-001",
	})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for non-custom order, got %v", err)
	}
}

func TestApproveMarksLineDesignReady(t *testing.T) {
	env := setupApprovalTest(t)
	order := env.seedOrder(t, "ord004")
	approval := env.submit(t, order.ID)

	resolved, err := env.approval.Respond(context.Background(), approval.ID, "sales-001", &RespondInput{
		Action: ActionApprove,
	})
	if err != nil {
		t.Fatalf("Respond failed: %v", err)
	}
	if resolved.Status != entity.ApprovalStatusApproved {
		t.Fatalf("expected approved, got %s", resolved.Status)
	}
	if resolved.RespondedAt == nil {
		t.Fatal("expected responded_at to be set")
	}

	var item entity.OrderItem
	if err := env.db.First(&item, "id = ?", approval.OrderItemID).Error; err != nil {
		t.Fatalf("load item: %v", err)
	}
	if !item.DesignReady {
		t.Fatal("expected order line design_ready after approval")
	}

	var updated entity.Order
	if err := env.db.First(&updated, "id = ?", order.ID).Error; err != nil {
		t.Fatalf("load order: %v", err)
	}
	if updated.Status != entity.OrderStatusDesignReady {
		t.Fatalf("expected order status design_ready, got %s", updated.Status)
	}

	pending, _ := env.approval.ListPending(context.Background(), "sales-001")
	if len(pending) != 0 {
		t.Fatalf("expected empty pending queue after approval, got %d", len(pending))
	}
}

func TestRejectRequiresReason(t *testing.T) {
	env := setupApprovalTest(t)
	order := env.seedOrder(t, "ord005")
	approval := env.submit(t, order.ID)

	_, err := env.approval.Respond(context.Background(), approval.ID, "sales-001", &RespondInput{
		Action:          ActionReject,
		RejectionReason: "   ",
	})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for blank rejection reason, got %v", err)
	}

	// record must still be pending
	got, _ := env.approval.Get(context.Background(), approval.ID)
	if got.Status != entity.ApprovalStatusPending {
		t.Fatalf("expected approval untouched, got status %s", got.Status)
	}
}

func TestRejectPreservesReasonVerbatim(t *testing.T) {
	env := setupApprovalTest(t)
	order := env.seedOrder(t, "ord006")
	approval := env.submit(t, order.ID)

	reason := "Logo colors are wrong; client wants Pantone 286C"
	resolved, err := env.approval.Respond(context.Background(), approval.ID, "sales-001", &RespondInput{
		Action:          ActionReject,
		RejectionReason: reason,
	})
	if err != nil {
		t.Fatalf("Respond failed: %v", err)
	}
	if resolved.Status != entity.ApprovalStatusRejected {
		t.Fatalf("expected rejected, got %s", resolved.Status)
	}
	if resolved.RejectionReason != reason {
		t.Fatalf("expected reason stored verbatim, got %q", resolved.RejectionReason)
	}

	var item entity.OrderItem
	env.db.First(&item, "id = ?", approval.OrderItemID)
	if item.DesignReady {
		t.Fatal("rejection must not mark line design_ready")
	}
}

func TestRespondWrongReviewerForbidden(t *testing.T) {
	env := setupApprovalTest(t)
	order := env.seedOrder(t, "ord007")
	approval := env.submit(t, order.ID)

	_, err := env.approval.Respond(context.Background(), approval.ID, "sales-999", &RespondInput{
		Action: ActionApprove,
	})
	if !errors.Is(err, ErrNotReviewer) {
		t.Fatalf("expected ErrNotReviewer, got %v", err)
	}
}

func TestRespondTwiceInvalidState(t *testing.T) {
	env := setupApprovalTest(t)
	order := env.seedOrder(t, "ord008")
	approval := env.submit(t, order.ID)

	if _, err := env.approval.Respond(context.Background(), approval.ID, "sales-001", &RespondInput{Action: ActionApprove}); err != nil {
		t.Fatalf("first respond failed: %v", err)
	}

	_, err := env.approval.Respond(context.Background(), approval.ID, "sales-001", &RespondInput{
		Action:          ActionReject,
		RejectionReason: "changed my mind",
	})
	if !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState on second respond, got %v", err)
	}

	// first decision stands
	got, _ := env.approval.Get(context.Background(), approval.ID)
	if got.Status != entity.ApprovalStatusApproved {
		t.Fatalf("expected first decision to stand, got %s", got.Status)
	}
}

func TestRespondUnknownApprovalNotFound(t *testing.T) {
	env := setupApprovalTest(t)

	_, err := env.approval.Respond(context.Background(), "no-such-id", "sales-001", &RespondInput{Action: ActionApprove})
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestResubmitAfterRejection(t *testing.T) {
	env := setupApprovalTest(t)
	order := env.seedOrder(t, "ord009")
	first := env.submit(t, order.ID)

	if _, err := env.approval.Respond(context.Background(), first.ID, "sales-001", &RespondInput{
		Action:          ActionReject,
		RejectionReason: "wrong fonts",
	}); err != nil {
		t.Fatalf("reject failed: %v", err)
	}

	second := env.submit(t, order.ID)
	if second.ID == first.ID {
		t.Fatal("resubmission must create a new approval record")
	}
	if second.Status != entity.ApprovalStatusPending {
		t.Fatalf("expected new pending record, got %s", second.Status)
	}

	// history keeps both records
	history, err := env.approval.ListByOrder(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("ListByOrder failed: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 records in history, got %d", len(history))
	}
}

func TestConcurrentSubmitsOnlyOnePending(t *testing.T) {
	env := setupApprovalTest(t)
	order := env.seedOrder(t, "ord010")

	const workers = 8
	var wg sync.WaitGroup
	errs := make([]error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			_, errs[idx] = env.workflow.SubmitForApproval(context.Background(), order.ID, &SubmitApprovalInput{
				Designer:    "designer-001",
				SalesPerson: "sales-001",
			})
		}(i)
	}
	wg.Wait()

	okCount := 0
	for _, err := range errs {
		if err == nil {
			okCount++
		} else if !errors.Is(err, ErrConflict) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if okCount != 1 {
		t.Fatalf("expected exactly 1 successful submit, got %d", okCount)
	}

	var count int64
	env.db.Model(&entity.DesignApproval{}).
		Where("order_item_id = ? AND status = ?", order.Items[0].ID, entity.ApprovalStatusPending).
		Count(&count)
	if count != 1 {
		t.Fatalf("expected exactly 1 pending record in store, got %d", count)
	}
}

func TestConcurrentRespondsFirstWriterWins(t *testing.T) {
	env := setupApprovalTest(t)
	order := env.seedOrder(t, "ord011")
	approval := env.submit(t, order.ID)

	const workers = 6
	var wg sync.WaitGroup
	errs := make([]error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			input := &RespondInput{Action: ActionApprove}
			if idx%2 == 1 {
				input = &RespondInput{Action: ActionReject, RejectionReason: "race reject"}
			}
			_, errs[idx] = env.approval.Respond(context.Background(), approval.ID, "sales-001", input)
		}(i)
	}
	wg.Wait()

	okCount := 0
	for _, err := range errs {
		if err == nil {
			okCount++
		} else if !errors.Is(err, ErrInvalidState) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if okCount != 1 {
		t.Fatalf("expected exactly one winning respond, got %d", okCount)
	}

	got, _ := env.approval.Get(context.Background(), approval.ID)
	if !entity.IsTerminal(got.Status) {
		t.Fatalf("expected terminal status, got %s", got.Status)
	}
}

func TestListPendingOldestFirst(t *testing.T) {
	env := setupApprovalTest(t)

	order1 := env.seedOrder(t, "ord012")
	order2 := env.seedOrder(t, "ord013")
	order3 := env.seedOrder(t, "ord014")

	a1 := env.submit(t, order1.ID)
	time.Sleep(5 * time.Millisecond)
	a2 := env.submit(t, order2.ID)
	time.Sleep(5 * time.Millisecond)
	a3 := env.submit(t, order3.ID)

	pending, err := env.approval.ListPending(context.Background(), "sales-001")
	if err != nil {
		t.Fatalf("ListPending failed: %v", err)
	}
	if len(pending) != 3 {
		t.Fatalf("expected 3 pending approvals, got %d", len(pending))
	}

	wantOrder := []string{a1.ID, a2.ID, a3.ID}
	for i, want := range wantOrder {
		if pending[i].ID != want {
			t.Fatalf("expected oldest-first ordering, position %d got %s want %s", i, pending[i].ID, want)
		}
	}
}

func TestListPendingScopedToReviewer(t *testing.T) {
	env := setupApprovalTest(t)

	order1 := env.seedOrder(t, "ord015")
	env.submit(t, order1.ID)

	order2 := testutil.SeedTestOrder(t, env.db, "ord016", "ORD-2026-ord016", "Other Client", "sales-002")
	if _, err := env.workflow.SubmitForApproval(context.Background(), order2.ID, &SubmitApprovalInput{
		Designer:    "designer-001",
		SalesPerson: "sales-002",
	}); err != nil {
		t.Fatalf("submit for second reviewer failed: %v", err)
	}

	pending, err := env.approval.ListPending(context.Background(), "sales-002")
	if err != nil {
		t.Fatalf("ListPending failed: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected 1 pending approval for sales-002, got %d", len(pending))
	}
	if pending[0].OrderID != order2.ID {
		t.Fatalf("expected pending for order %s, got %s", order2.ID, pending[0].OrderID)
	}
}

func TestStatsCountsByStatus(t *testing.T) {
	env := setupApprovalTest(t)

	o1 := env.seedOrder(t, "ord017")
	o2 := env.seedOrder(t, "ord018")
	o3 := env.seedOrder(t, "ord019")

	env.submit(t, o1.ID)
	a2 := env.submit(t, o2.ID)
	a3 := env.submit(t, o3.ID)

	env.approval.Respond(context.Background(), a2.ID, "sales-001", &RespondInput{Action: ActionApprove})
	env.approval.Respond(context.Background(), a3.ID, "sales-001", &RespondInput{Action: ActionReject, RejectionReason: "redo layout"})

	stats, err := env.approval.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats[entity.ApprovalStatusPending] != 1 || stats[entity.ApprovalStatusApproved] != 1 || stats[entity.ApprovalStatusRejected] != 1 {
		t.Fatalf("unexpected stats: %v", stats)
	}
}

func TestRespondInvalidAction(t *testing.T) {
	env := setupApprovalTest(t)
	order := env.seedOrder(t, "ord020")
	approval := env.submit(t, order.ID)

	_, err := env.approval.Respond(context.Background(), approval.ID, "sales-001", &RespondInput{Action: "maybe"})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for bogus action, got %v", err)
	}
}
