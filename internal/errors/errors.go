// internal/errors/errors.go
package errors

import (
	"errors"
	"fmt"
)

// ErrorType 定义错误类型
type ErrorType string

const (
	// 通用错误类型
	ErrorTypeValidation ErrorType = "validation_error"
	ErrorTypeNotFound   ErrorType = "not_found"
	ErrorTypeError      ErrorType = "processing_error"
	ErrorTypeConflict   ErrorType = "conflict"
	ErrorTypeTimeout    ErrorType = "timeout"

	// 修订引擎错误类型
	// 这些错误都不是致命的：修订降级为"无可见变更"加一条诊断
	ErrorTypeProposerFailure ErrorType = "proposer_failure"
	ErrorTypeEntityNotFound  ErrorType = "entity_not_found"
	ErrorTypeInvalidPayload  ErrorType = "invalid_payload"
)

// AppError 应用程序错误结构
type AppError struct {
	Type    ErrorType
	Message string
	Err     error
	Code    string // 用户友好的错误代码
}

// Error 实现 error 接口
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap 实现错误链接
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError 创建新的 AppError
func NewAppError(errType ErrorType, message string, originalError error) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Err:     originalError,
		Code:    generateErrorCode(errType),
	}
}

// NewValidationError 创建验证错误
func NewValidationError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeValidation, message, originalError)
}

// NewNotFoundError 创建未找到错误
func NewNotFoundError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeNotFound, message, originalError)
}

// NewProcessingError 创建处理错误
func NewProcessingError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeError, message, originalError)
}

// NewConflictError 创建冲突错误
func NewConflictError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeConflict, message, originalError)
}

// NewProposerFailureError 创建提案器失败错误
// 外部提案调用抛错或返回畸形结构时使用，该组件的修订中止并保留原实体
func NewProposerFailureError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeProposerFailure, message, originalError)
}

// NewEntityNotFoundError 创建实体未找到错误
// modify/remove的目标标识没有不区分大小写的匹配时使用
func NewEntityNotFoundError(message string) *AppError {
	return NewAppError(ErrorTypeEntityNotFound, message, nil)
}

// NewInvalidPayloadError 创建载荷缺失错误
// add/modify缺少必需载荷时使用
func NewInvalidPayloadError(message string) *AppError {
	return NewAppError(ErrorTypeInvalidPayload, message, nil)
}

// IsValidationError 检查是否为验证错误
func IsValidationError(err error) bool {
	return isType(err, ErrorTypeValidation)
}

// IsNotFoundError 检查是否为未找到错误
func IsNotFoundError(err error) bool {
	return isType(err, ErrorTypeNotFound)
}

// IsConflictError 检查是否为冲突错误
func IsConflictError(err error) bool {
	return isType(err, ErrorTypeConflict)
}

// IsProposerFailure 检查是否为提案器失败
func IsProposerFailure(err error) bool {
	return isType(err, ErrorTypeProposerFailure)
}

// IsEntityNotFound 检查是否为实体未找到
func IsEntityNotFound(err error) bool {
	return isType(err, ErrorTypeEntityNotFound)
}

// IsInvalidPayload 检查是否为载荷缺失
func IsInvalidPayload(err error) bool {
	return isType(err, ErrorTypeInvalidPayload)
}

func isType(err error, errType ErrorType) bool {
	var appError *AppError
	if errors.As(err, &appError) {
		return appError.Type == errType
	}
	return false
}

// generateErrorCode 根据错误类型生成错误代码
func generateErrorCode(errType ErrorType) string {
	switch errType {
	case ErrorTypeValidation:
		return "VALIDATION_ERROR"
	case ErrorTypeNotFound:
		return "NOT_FOUND"
	case ErrorTypeError:
		return "PROCESSING_ERROR"
	case ErrorTypeConflict:
		return "CONFLICT"
	case ErrorTypeTimeout:
		return "TIMEOUT"
	case ErrorTypeProposerFailure:
		return "PROPOSER_FAILURE"
	case ErrorTypeEntityNotFound:
		return "ENTITY_NOT_FOUND"
	case ErrorTypeInvalidPayload:
		return "INVALID_PAYLOAD"
	default:
		return "UNKNOWN_ERROR"
	}
}

// WrapError 包装现有错误
func WrapError(err error, message string, errType ErrorType) error {
	if err == nil {
		return nil
	}

	var appError *AppError
	if errors.As(err, &appError) {
		// 如果已经是 AppError，只更新消息
		return &AppError{
			Type:    appError.Type,
			Message: fmt.Sprintf("%s: %s", message, appError.Message),
			Err:     appError,
			Code:    appError.Code,
		}
	}

	// 否则创建新的 AppError
	return NewAppError(errType, message, err)
}
