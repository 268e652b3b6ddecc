package ilerr

import (
	"fmt"
	"runtime/debug"
	"strings"

	"github.com/cottand/tyinfer/frontend/types"
)

// enableDebugErrorPrinting makes errors include the frame which created them when printed
var enableDebugErrorPrinting = false

const enableDebugFullStacktrace bool = false

// SetDebugPrinting toggles printing the origin of diagnostics in FormatWithCode
func SetDebugPrinting(enabled bool) {
	enableDebugErrorPrinting = enabled
}

type ErrCode int

const (
	None ErrCode = iota
	UnsatisfiableBounds
	IncompatibleUpperBounds
	CaptureUnresolvable
	RecursiveCallGraph
	StructuralMismatch
	FuelExhausted
)

func (c ErrCode) String() string {
	switch c {
	case UnsatisfiableBounds:
		return "UnsatisfiableBounds"
	case IncompatibleUpperBounds:
		return "IncompatibleUpperBounds"
	case CaptureUnresolvable:
		return "CaptureUnresolvable"
	case RecursiveCallGraph:
		return "RecursiveCallGraph"
	case StructuralMismatch:
		return "StructuralMismatch"
	case FuelExhausted:
		return "FuelExhausted"
	}
	return "Unclassified"
}

// InferError is a diagnostic produced by inference
type InferError interface {
	Error() string
	Code() ErrCode

	withStack([]byte) InferError
	getStack() []byte
}

// IsFatal reports whether err aborts the inference session instead of degrading it
func IsFatal(err InferError) bool {
	return err.Code() == StructuralMismatch
}

func FormatWithCode(e InferError) string {
	if enableDebugErrorPrinting && e.getStack() != nil {
		stack := string(e.getStack())
		if !enableDebugFullStacktrace {
			lines := strings.Split(stack, "\n")
			if len(lines) > 6 {
				stack = strings.TrimSpace(lines[6])
			}
		}
		return fmt.Sprintf("%s:(E%03d) %s", stack, e.Code(), e.Error())
	}
	return fmt.Sprintf("(E%03d) %s", e.Code(), e.Error())
}

func New[E InferError](err E) InferError {
	return err.withStack(debug.Stack())
}

func joinTypes(ts []types.Type) string {
	parts := make([]string, len(ts))
	for i, t := range ts {
		parts[i] = t.String()
	}
	return strings.Join(parts, ", ")
}

type Unclassified struct {
	From  error
	stack []byte
}

func (e Unclassified) Error() string {
	return fmt.Sprintf("unclassified error: %v", e.From)
}
func (e Unclassified) Code() ErrCode    { return None }
func (e Unclassified) getStack() []byte { return e.stack }
func (e Unclassified) withStack(stack []byte) InferError {
	e.stack = stack
	return e
}

// NewUnsatisfiableBounds reports an equality bound which conflicts with a lower or an upper bound
type NewUnsatisfiableBounds struct {
	Var      string
	Equality []types.Type
	Lower    []types.Type
	Upper    []types.Type
	stack    []byte
}

func (e NewUnsatisfiableBounds) Error() string {
	sb := &strings.Builder{}
	fmt.Fprintf(sb, "inference variable %s has incompatible bounds:", e.Var)
	if len(e.Equality) > 0 {
		fmt.Fprintf(sb, " equality constraints: %s", joinTypes(e.Equality))
	}
	if len(e.Lower) > 0 {
		fmt.Fprintf(sb, " lower bounds: %s", joinTypes(e.Lower))
	}
	if len(e.Upper) > 0 {
		fmt.Fprintf(sb, " upper bounds: %s", joinTypes(e.Upper))
	}
	return sb.String()
}
func (e NewUnsatisfiableBounds) Code() ErrCode    { return UnsatisfiableBounds }
func (e NewUnsatisfiableBounds) getStack() []byte { return e.stack }
func (e NewUnsatisfiableBounds) withStack(stack []byte) InferError {
	e.stack = stack
	return e
}

// NewIncompatibleUpperBounds reports upper bounds with no common subtype
type NewIncompatibleUpperBounds struct {
	Var    string
	Upper  []types.Type
	Reason string
	stack  []byte
}

func (e NewIncompatibleUpperBounds) Error() string {
	msg := fmt.Sprintf("inference variable %s has incompatible upper bounds %s", e.Var, joinTypes(e.Upper))
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}
func (e NewIncompatibleUpperBounds) Code() ErrCode    { return IncompatibleUpperBounds }
func (e NewIncompatibleUpperBounds) getStack() []byte { return e.stack }
func (e NewIncompatibleUpperBounds) withStack(stack []byte) InferError {
	e.stack = stack
	return e
}

// NewCaptureUnresolvable reports a captured wildcard whose variable received a bound it cannot satisfy
type NewCaptureUnresolvable struct {
	Var      string
	Captured types.Type
	Bound    types.Type
	stack    []byte
}

func (e NewCaptureUnresolvable) Error() string {
	return fmt.Sprintf("capture of '%s' for %s cannot satisfy bound %s", e.Captured, e.Var, e.Bound)
}
func (e NewCaptureUnresolvable) Code() ErrCode    { return CaptureUnresolvable }
func (e NewCaptureUnresolvable) getStack() []byte { return e.stack }
func (e NewCaptureUnresolvable) withStack(stack []byte) InferError {
	e.stack = stack
	return e
}

// NewRecursiveCallGraph reports a call whose inference depends on itself
type NewRecursiveCallGraph struct {
	Call  string
	stack []byte
}

func (e NewRecursiveCallGraph) Error() string {
	return fmt.Sprintf("inference of %s depends on itself", e.Call)
}
func (e NewRecursiveCallGraph) Code() ErrCode    { return RecursiveCallGraph }
func (e NewRecursiveCallGraph) getStack() []byte { return e.stack }
func (e NewRecursiveCallGraph) withStack(stack []byte) InferError {
	e.stack = stack
	return e
}

// NewStructuralMismatch reports two types which cannot be reduced against each other
type NewStructuralMismatch struct {
	First  types.Type
	Second types.Type
	Reason string
	stack  []byte
}

func (e NewStructuralMismatch) Error() string {
	return fmt.Sprintf("type mismatch: '%v' is not compatible with '%v': %s", e.First, e.Second, e.Reason)
}
func (e NewStructuralMismatch) Code() ErrCode    { return StructuralMismatch }
func (e NewStructuralMismatch) getStack() []byte { return e.stack }
func (e NewStructuralMismatch) withStack(stack []byte) InferError {
	e.stack = stack
	return e
}

// NewFuelExhausted reports that the fixed point was not reached within the configured number of iterations
type NewFuelExhausted struct {
	Iterations int
	stack      []byte
}

func (e NewFuelExhausted) Error() string {
	return fmt.Sprintf("inference did not reach a fixed point after %d iterations", e.Iterations)
}
func (e NewFuelExhausted) Code() ErrCode    { return FuelExhausted }
func (e NewFuelExhausted) getStack() []byte { return e.stack }
func (e NewFuelExhausted) withStack(stack []byte) InferError {
	e.stack = stack
	return e
}
