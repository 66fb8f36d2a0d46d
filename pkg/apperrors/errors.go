package apperrors

import "errors"

var (
	ErrNotFound               = errors.New("not found")
	ErrConflict               = errors.New("conflict")
	ErrInvalidRegion          = errors.New("invalid region")
	ErrSelfMapping            = errors.New("equivalence mapping points to itself")
	ErrBudgetExceeded         = errors.New("budget exceeded")
	ErrMarketplaceUnavailable = errors.New("marketplace unavailable")
	ErrInvalidToken           = errors.New("invalid or expired token")
)
