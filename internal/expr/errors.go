package expr

import "fmt"

// ErrorKind discriminates the condition grammar's failure modes.
type ErrorKind string

const (
	ErrParse       ErrorKind = "parse"
	ErrType        ErrorKind = "type"
	ErrUnknownField ErrorKind = "unknown_field"
)

// ConditionError is returned by Parse (kind Parse) and by Expr.Eval
// (kinds Type and UnknownField).
type ConditionError struct {
	Kind   ErrorKind
	Pos    int
	Detail string
}

func (e *ConditionError) Error() string {
	if e.Pos > 0 {
		return fmt.Sprintf("expr: %s at offset %d: %s", e.Kind, e.Pos, e.Detail)
	}
	return fmt.Sprintf("expr: %s: %s", e.Kind, e.Detail)
}
