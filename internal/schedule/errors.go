package schedule

import "errors"

var (
	// ErrSyntax reports a raw field string that matches no recognized
	// grammar form for its field.
	ErrSyntax = errors.New("invalid expression syntax")

	// ErrRange reports a parsed integer or resolved symbolic name outside
	// the field's legal domain.
	ErrRange = errors.New("value out of range")

	// ErrUnsupported reports an expression form a field does not accept,
	// e.g. a relative day form given to the minute field.
	ErrUnsupported = errors.New("unsupported expression type")
)
