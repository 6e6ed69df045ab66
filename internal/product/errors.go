package product

import "errors"

// ErrorKind classifies the errors the service returns to its callers.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindValidation
	KindNotFound
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// Error is a domain error carrying its kind and a client safe message.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string { return e.Message }

var (
	ErrNotFound      = &Error{Kind: KindNotFound, Message: "Product not found"}
	ErrNegativePrice = &Error{Kind: KindValidation, Message: "Price cannot be negative"}
	ErrPriceRequired = &Error{Kind: KindValidation, Message: "Price is required"}
)

// KindOf reports the kind of err, or KindUnknown for storage and other
// unexpected failures.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
