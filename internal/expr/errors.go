package expr

import (
	"errors"
	"fmt"
)

// ErrNeverFires is returned by Next when no due minute exists within
// the sanity bound.
var ErrNeverFires = errors.New("schedule never fires")

// ParseError describes a malformed cron expression. Field is empty
// when the expression has the wrong number of fields.
type ParseError struct {
	Expr   string
	Field  string
	Detail string
}

func (e *ParseError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("expr: %q: %s", e.Expr, e.Detail)
	}
	return fmt.Sprintf("expr: %q: %s field: %s", e.Expr, e.Field, e.Detail)
}
