// ABOUTME: Demo method set served by rpcd: arithmetic and string helpers
// ABOUTME: Bound reflectively by receiver, with named-param mappings for two-argument methods

package methods

import (
	"context"
	"strings"

	"github.com/harper/rpc-engine/internal/dispatcher"
	"github.com/harper/rpc-engine/internal/errors"
)

// CodeDivisionByZero is the application error code returned by math.Div.
const CodeDivisionByZero = 1

// Math implements the "math" namespace.
type Math struct{}

func (Math) Add(a, b int64) int64 { return a + b }
func (Math) Sub(a, b int64) int64 { return a - b }
func (Math) Mul(a, b int64) int64 { return a * b }

// Div fails with an application error instead of returning Inf, which has no
// JSON form.
func (Math) Div(a, b float64) (float64, error) {
	if b == 0 {
		return 0, errors.NewAppError(CodeDivisionByZero, "Division by zero.")
	}
	return a / b, nil
}

// Echo implements the "echo" namespace.
type Echo struct{}

func (Echo) Echo(_ context.Context, s string) string { return s }

func (Echo) Reverse(s string) string {
	r := []rune(s)
	for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
		r[i], r[j] = r[j], r[i]
	}
	return string(r)
}

func (Echo) Concat(left, right string) string {
	return strings.Join([]string{left, right}, "")
}

// mappings name the params of methods that accept named params.
var mappings = map[string]dispatcher.ParamNames{
	"math.Add":    {0: "a", 1: "b"},
	"math.Sub":    {0: "minuend", 1: "subtrahend"},
	"math.Div":    {0: "dividend", 1: "divisor"},
	"echo.Concat": {0: "left", 1: "right"},
}

// Register binds the math and echo namespaces on d.
func Register(d *dispatcher.Dispatcher) error {
	if err := d.Register("math", Math{}); err != nil {
		return err
	}
	if err := d.Register("echo", Echo{}); err != nil {
		return err
	}
	for name, names := range mappings {
		if err := d.AddParamMapping(name, names); err != nil {
			return err
		}
	}
	return nil
}
