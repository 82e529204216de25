package core

import "errors"

// 模块名称常量，用于 DomainError.Module
const (
	ModuleStore   = "store"
	ModuleCatalog = "catalog"
	ModuleABTest  = "abtest"
	ModuleModel   = "model"
)

// 错误代码常量
const (
	ErrorCodeNotFound     = "NOT_FOUND"
	ErrorCodeNotSupported = "NOT_SUPPORTED"
	ErrorCodeInvalid      = "INVALID"
)

// DomainError 是领域层的统一错误类型。
//
// 设计原则：
//   - 所有领域层错误都使用此类型
//   - 提供错误代码（Code）和模块名称（Module），便于统一检查
//   - 推荐链路上的错误都是可降级的：调用方收到错误后走 fallback，
//     而不是把错误抛给商品交易主链路
type DomainError struct {
	Code    string // 错误代码（如 "NOT_FOUND", "NOT_SUPPORTED"）
	Message string // 错误消息
	Module  string // 模块名称（如 "store", "catalog"）
}

func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError 创建一个新的领域错误。
func NewDomainError(module, code, message string) *DomainError {
	return &DomainError{Module: module, Code: code, Message: message}
}

// GetDomainError 从错误链中提取 DomainError，不存在则返回 nil。
func GetDomainError(err error) *DomainError {
	var de *DomainError
	if errors.As(err, &de) {
		return de
	}
	return nil
}

// Store 错误定义
var (
	// ErrStoreNotFound 表示 key 不存在（或已过期）
	ErrStoreNotFound = NewDomainError(ModuleStore, ErrorCodeNotFound, "store: key not found")

	// ErrStoreNotSupported 表示存储后端不支持该操作
	ErrStoreNotSupported = NewDomainError(ModuleStore, ErrorCodeNotSupported, "store: operation not supported")

	// ErrProductNotFound 表示商品不存在或已下架
	ErrProductNotFound = NewDomainError(ModuleCatalog, ErrorCodeNotFound, "catalog: product not found")

	// ErrExperimentNotFound 表示 A/B 实验不存在
	ErrExperimentNotFound = NewDomainError(ModuleABTest, ErrorCodeNotFound, "abtest: experiment not found")
)

// IsStoreNotFound 检查错误是否为 key 不存在。
func IsStoreNotFound(err error) bool {
	if err == nil {
		return false
	}
	de := GetDomainError(err)
	return de != nil && de.Module == ModuleStore && de.Code == ErrorCodeNotFound
}

// IsNotFound 检查错误是否为任意模块的 NOT_FOUND。
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	de := GetDomainError(err)
	return de != nil && de.Code == ErrorCodeNotFound
}
