package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for the stock domain. Services return these (usually
// wrapped in an AppError) and HTTP handlers map them to status codes.
var (
	ErrInvalidQuantity   = errors.New("invalid quantity")
	ErrResourceNotFound  = errors.New("resource not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrStockValidation   = errors.New("stock validation failed")
	ErrInvalidInput      = errors.New("invalid input")
	ErrCartClosed        = errors.New("cart is not open")
	ErrInternal          = errors.New("internal error")
)

// AppError is a structured application error with an HTTP status mapping.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// InvalidQuantity creates a 422 error for a non-positive quantity.
func InvalidQuantity(message string) *AppError {
	return &AppError{
		Code:    "INVALID_QUANTITY",
		Message: message,
		Status:  http.StatusUnprocessableEntity,
		Err:     ErrInvalidQuantity,
	}
}

// ResourceNotFound creates a 404 error for a missing availability record.
func ResourceNotFound(kind string, id int64) *AppError {
	return &AppError{
		Code:    "RESOURCE_NOT_FOUND",
		Message: fmt.Sprintf("%s availability %d not found", kind, id),
		Status:  http.StatusNotFound,
		Err:     ErrResourceNotFound,
	}
}

// NotFound creates a 404 error for a missing record with a string identifier.
func NotFound(resource, id string) *AppError {
	return &AppError{
		Code:    "RESOURCE_NOT_FOUND",
		Message: fmt.Sprintf("%s %s not found", resource, id),
		Status:  http.StatusNotFound,
		Err:     ErrResourceNotFound,
	}
}

// InsufficientStock creates a 409 error when capacity cannot cover a request.
func InsufficientStock(available, requested int) *AppError {
	return &AppError{
		Code:    "INSUFFICIENT_STOCK",
		Message: fmt.Sprintf("insufficient stock: available %d, requested %d", available, requested),
		Status:  http.StatusConflict,
		Err:     ErrInsufficientStock,
	}
}

// StockValidation creates a 422 error for a defensive invariant breach.
func StockValidation(message string) *AppError {
	return &AppError{
		Code:    "STOCK_VALIDATION",
		Message: message,
		Status:  http.StatusUnprocessableEntity,
		Err:     ErrStockValidation,
	}
}

// InvalidInput creates a 400 error for malformed caller input.
func InvalidInput(message string) *AppError {
	return &AppError{
		Code:    "INVALID_INPUT",
		Message: message,
		Status:  http.StatusBadRequest,
		Err:     ErrInvalidInput,
	}
}

// CartClosed creates a 409 error for operations against a non-open cart.
func CartClosed(cartID string) *AppError {
	return &AppError{
		Code:    "CART_CLOSED",
		Message: fmt.Sprintf("cart %s is not open", cartID),
		Status:  http.StatusConflict,
		Err:     ErrCartClosed,
	}
}

// Internal creates a 500 error wrapping an unexpected failure.
func Internal(err error) *AppError {
	return &AppError{
		Code:    "INTERNAL_ERROR",
		Message: "an internal error occurred",
		Status:  http.StatusInternalServerError,
		Err:     err,
	}
}

// HTTPStatus returns the HTTP status code for the given error.
func HTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Status
	}

	switch {
	case errors.Is(err, ErrResourceNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInsufficientStock), errors.Is(err, ErrCartClosed):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidQuantity), errors.Is(err, ErrStockValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
