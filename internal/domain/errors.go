package domain

import (
	"errors"
	"fmt"
)

// 业务规则错误
var (
	ErrInvalidQuantity    = errors.New("quantity must be at least 1")
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrProductInactive    = errors.New("product is not available")
	ErrCartItemBusy       = errors.New("cart item has an update in flight")
	ErrCartItemNotFound   = errors.New("cart item not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountExists      = errors.New("account already exists")
	ErrInvalidOrder       = errors.New("invalid order")
	ErrEmptyKeyword       = errors.New("search keyword is required")
)

// ConfigurationError 表示后端未配置，写操作无法执行
type ConfigurationError struct {
	Operation string
	Reason    string
}

func (e *ConfigurationError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%s: backend is not configured", e.Operation)
	}
	return fmt.Sprintf("%s: backend is not configured: %s", e.Operation, e.Reason)
}

// ServiceError 表示后端可达但调用失败
type ServiceError struct {
	Operation string
	Cause     error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s: backend call failed: %v", e.Operation, e.Cause)
}

func (e *ServiceError) Unwrap() error {
	return e.Cause
}

// NotFoundError 表示单实体查询没有结果
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// AuthenticationRequiredError 表示在没有身份的情况下执行了需要身份的操作
type AuthenticationRequiredError struct {
	Operation string
}

func (e *AuthenticationRequiredError) Error() string {
	return fmt.Sprintf("%s: authentication required", e.Operation)
}

// NewNotFound 构造 NotFoundError
func NewNotFound(resource string, id any) error {
	return &NotFoundError{Resource: resource, ID: fmt.Sprint(id)}
}

// IsConfigurationError 判断错误链中是否包含 ConfigurationError
func IsConfigurationError(err error) bool {
	var target *ConfigurationError
	return errors.As(err, &target)
}

// IsServiceError 判断错误链中是否包含 ServiceError
func IsServiceError(err error) bool {
	var target *ServiceError
	return errors.As(err, &target)
}

// IsNotFound 判断错误链中是否包含 NotFoundError
func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

// IsAuthenticationRequired 判断错误链中是否包含 AuthenticationRequiredError
func IsAuthenticationRequired(err error) bool {
	var target *AuthenticationRequiredError
	return errors.As(err, &target)
}

// IsClientError 判断错误是否由调用方输入导致，这类错误不包装为 ServiceError
func IsClientError(err error) bool {
	return IsNotFound(err) ||
		IsAuthenticationRequired(err) ||
		errors.Is(err, ErrInvalidQuantity) ||
		errors.Is(err, ErrInsufficientStock) ||
		errors.Is(err, ErrProductInactive) ||
		errors.Is(err, ErrCartItemNotFound) ||
		errors.Is(err, ErrInvalidCredentials) ||
		errors.Is(err, ErrAccountExists) ||
		errors.Is(err, ErrInvalidOrder) ||
		errors.Is(err, ErrEmptyKeyword)
}
