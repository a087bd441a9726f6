// Package errors 跨层共享的哨兵错误（仓储实现与 service 共同识别）
package errors

import "errors"

// ErrOptimisticLock 异常记录版本号不匹配：已被其他复核人或资金回补回写修改
var ErrOptimisticLock = errors.New("异常记录已被其他操作修改，请刷新后重试")
