package infer

import (
	"github.com/cottand/tyinfer/frontend/ilerr"
	"github.com/cottand/tyinfer/frontend/types"
	"github.com/pkg/errors"
)

// FailedError aborts a session: some constraint reduced to false
type FailedError struct {
	Diagnostic ilerr.InferError
}

func (e *FailedError) Error() string {
	return ilerr.FormatWithCode(e.Diagnostic)
}

func mismatch(first, second types.Type, reason string) error {
	return errors.WithStack(&FailedError{
		Diagnostic: ilerr.New(ilerr.NewStructuralMismatch{First: first, Second: second, Reason: reason}),
	})
}

// AsFailed extracts the FailedError of err, if any
func AsFailed(err error) (*FailedError, bool) {
	var failed *FailedError
	ok := errors.As(err, &failed)
	return failed, ok
}
