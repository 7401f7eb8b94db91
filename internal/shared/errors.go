package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInsufficientStock occurs when a deduction would overdraw available stock.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrQuantityExceeded occurs when reported production exceeds the allowed ceiling.
	ErrQuantityExceeded = errors.New("quantity exceeds allowed maximum")
	// ErrPeriodClosed occurs when posting into a closed accounting period.
	ErrPeriodClosed = errors.New("accounting period closed")
	// ErrInvalidState occurs when an operation is not allowed in the current document state.
	ErrInvalidState = errors.New("invalid document state")
)
