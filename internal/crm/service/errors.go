package service

import (
	"errors"
	"sync"
)

// 业务错误定义，handler 层用 errors.Is 区分映射错误码
var (
	// ErrValidation 缺少必填字段（如驳回缺少原因）
	ErrValidation = errors.New("validation failed")
	// ErrConflict 同一订单行已存在 pending 审批
	ErrConflict = errors.New("pending approval already exists for this order line")
	// ErrInvalidState 对非 pending 记录执行裁决
	ErrInvalidState = errors.New("approval is not pending")
	// ErrNotReviewer 调用者不是该记录指定的审批人
	ErrNotReviewer = errors.New("caller is not the assigned reviewer")
)

// lineLocker 按订单行串行化提交/裁决的检查-写入
// 每次只持有单行锁，不跨行嵌套，无死锁
type lineLocker struct {
	locks sync.Map
}

func newLineLocker() *lineLocker {
	return &lineLocker{}
}

// Lock 锁定订单行，返回解锁函数
func (l *lineLocker) Lock(itemID string) func() {
	v, _ := l.locks.LoadOrStore(itemID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}
