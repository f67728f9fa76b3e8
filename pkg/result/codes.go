package result

// ErrorCode is the flat failure taxonomy shared by every service.
type ErrorCode string

const (
	ValidationError     ErrorCode = "VALIDATION_ERROR"
	InvalidRequest      ErrorCode = "INVALID_REQUEST"
	InsufficientStock   ErrorCode = "INSUFFICIENT_STOCK"
	DuplicateCode       ErrorCode = "DUPLICATE_CODE"
	DuplicateRequest    ErrorCode = "DUPLICATE_REQUEST"
	NotFound            ErrorCode = "NOT_FOUND"
	ProductNotFound     ErrorCode = "PRODUCT_NOT_FOUND"
	ReservationNotFound ErrorCode = "RESERVATION_NOT_FOUND"
	Conflict            ErrorCode = "CONFLICT"
	AlreadyConfirmed    ErrorCode = "ALREADY_CONFIRMED"
	AlreadyCancelled    ErrorCode = "ALREADY_CANCELLED"
	HasReservations     ErrorCode = "HAS_RESERVATIONS"
	InternalError       ErrorCode = "INTERNAL_ERROR"
)

// Category is the coarse class a boundary layer maps a code onto.
type Category string

const (
	CategoryBadInput Category = "bad_input"
	CategoryNotFound Category = "not_found"
	CategoryConflict Category = "conflict"
	CategoryServer   Category = "server_error"
)

func (c ErrorCode) Category() Category {
	switch c {
	case ValidationError, InvalidRequest, InsufficientStock, DuplicateCode:
		return CategoryBadInput
	case NotFound, ProductNotFound, ReservationNotFound:
		return CategoryNotFound
	case Conflict, AlreadyConfirmed, AlreadyCancelled, HasReservations, DuplicateRequest:
		return CategoryConflict
	default:
		return CategoryServer
	}
}

func (c ErrorCode) Valid() bool {
	switch c {
	case ValidationError, InvalidRequest, InsufficientStock, DuplicateCode, DuplicateRequest,
		NotFound, ProductNotFound, ReservationNotFound, Conflict, AlreadyConfirmed,
		AlreadyCancelled, HasReservations, InternalError:
		return true
	}
	return false
}
