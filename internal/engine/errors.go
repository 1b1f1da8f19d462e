package engine

import (
	"errors"
	"fmt"

	"pay-gateway-api/internal/adapter"
)

// 引擎错误分级：
// 校验/业务错误同步返回调用方；上游瞬时失败吸收为 AMBIGUOUS 由调度器收敛；
// 终态冲突永不自动裁决，置 manual_review 等人工
var (
	ErrValidation = errors.New("validation error")
	// ErrUnsupportedChannel 与路由注册表共用同一哨兵
	ErrUnsupportedChannel   = adapter.ErrUnsupportedChannel
	ErrConcurrentRequest    = errors.New("concurrent create request")
	ErrConsistencyViolation = errors.New("conflicting terminal outcome")
	ErrInvalidRefundAmount  = errors.New("invalid refund amount")
	ErrOrderNotFound        = errors.New("order not found")
	ErrTxNotFound           = errors.New("transaction not found")
	ErrRefundNotFound       = errors.New("refund not found")

	// ErrDuplicateKey 存储层唯一键冲突，由 dao 归一化后上抛
	ErrDuplicateKey = errors.New("duplicate key")
)

func validationf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{ErrValidation}, args...)...)
}
