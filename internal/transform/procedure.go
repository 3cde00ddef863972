package transform

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/schemalink/internal/dataset"
)

// EntryPoint is the identifier a procedure must declare. The canonical form
// binds the output record to it and yields it, with the input row in scope
// as "row":
//
//	let transformRow = {id: upper(string(row.id))};
//	transformRow
//
// The procedure runs inside the expr evaluator, which exposes no host state,
// filesystem or network to the untrusted text.
const EntryPoint = "transformRow"

// ErrMalformedProcedure reports procedure text that cannot be used at all:
// empty, missing the entry point, or failing to compile. Raised before any
// row is processed.
var ErrMalformedProcedure = errors.New("malformed transform procedure")

// Procedure is a compiled transform procedure. Compilation happens once per
// batch; the compiled program is read-only and safe for concurrent Run calls.
type Procedure struct {
	Source  string
	program *vm.Program
}

// Compile validates and compiles procedure text into a Procedure.
func Compile(src string) (*Procedure, error) {
	if strings.TrimSpace(src) == "" {
		return nil, fmt.Errorf("%w: empty procedure text", ErrMalformedProcedure)
	}
	if !strings.Contains(src, EntryPoint) {
		return nil, fmt.Errorf("%w: no %s entry point declared", ErrMalformedProcedure, EntryPoint)
	}

	program, err := expr.Compile(src, expr.WithContext("ctx"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedProcedure, err)
	}
	return &Procedure{Source: src, program: program}, nil
}

// Run evaluates the procedure against one row. The row is the only ambient
// value visible to the procedure. The timeout bounds a single evaluation so
// a runaway procedure cannot stall the batch; expr checks the context inside
// loops, so cancellation is best-effort but prompt.
func (p *Procedure) Run(ctx context.Context, row dataset.Row, timeout time.Duration) (out interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("procedure panic: %v", r)
		}
	}()

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	env := map[string]interface{}{
		"row": map[string]interface{}(row),
		"ctx": ctx,
	}
	return expr.Run(p.program, env)
}
