package result

// Result is the uniform envelope of every request/response operation.
type Result[T any] struct {
	IsSuccess    bool      `json:"isSuccess"`
	Data         T         `json:"data,omitempty"`
	ErrorCode    ErrorCode `json:"errorCode,omitempty"`
	ErrorMessage string    `json:"errorMessage"`
}

// Empty is the payload of operations that answer with no data.
type Empty struct{}

func Ok[T any](data T) Result[T] {
	return Result[T]{IsSuccess: true, Data: data}
}

func Fail[T any](code ErrorCode, message string) Result[T] {
	return Result[T]{ErrorCode: code, ErrorMessage: message}
}

// FromError turns an application error into a failed envelope. Errors that
// carry no *Error are reported as INTERNAL_ERROR with the given generic
// message so that internals never leak to callers.
func FromError[T any](err error, internalMessage string) Result[T] {
	if e, ok := AsError(err); ok {
		return Fail[T](e.Code, e.Message)
	}
	return Fail[T](InternalError, internalMessage)
}

// From builds an envelope from a (value, error) pair.
func From[T any](data T, err error, internalMessage string) Result[T] {
	if err != nil {
		return FromError[T](err, internalMessage)
	}
	return Ok(data)
}

// Err converts a failed envelope back into an *Error, or nil on success.
func (r Result[T]) Err() error {
	if r.IsSuccess {
		return nil
	}
	code := r.ErrorCode
	if !code.Valid() {
		code = InternalError
	}
	return &Error{Code: code, Message: r.ErrorMessage}
}

// Status reports the outcome without touching the payload.
func (r Result[T]) Status() (bool, ErrorCode) {
	return r.IsSuccess, r.ErrorCode
}
