package ilerr

import (
	"fmt"
	"log/slog"
	"slices"
)

// Errors is an ordered list of diagnostics without duplicates.
// A nil *Errors is empty and valid.
type Errors struct {
	errs []InferError
}

// With appends err, skipping diagnostics whose message is already present
func (r *Errors) With(err ...InferError) *Errors {
	if r == nil {
		r = &Errors{}
	}
	for _, e := range err {
		if r.contains(e) {
			continue
		}
		r.errs = append(r.errs, e)
	}
	return r
}

func (r *Errors) contains(err InferError) bool {
	return slices.ContainsFunc(r.errs, func(existing InferError) bool {
		return existing.Code() == err.Code() && existing.Error() == err.Error()
	})
}

func (r *Errors) Merge(err *Errors) *Errors {
	if r == nil {
		return err
	}
	if err == nil {
		return r
	}
	if len(err.errs) == 0 {
		return r
	}
	return r.With(err.errs...)
}

func (r *Errors) Errors() []InferError {
	if r == nil {
		return nil
	}
	return slices.Clone(r.errs)
}

// First returns the earliest diagnostic, which is the one reported to users
func (r *Errors) First() (InferError, bool) {
	if !r.HasError() {
		return nil, false
	}
	return r.errs[0], true
}

// Clone returns an independent copy of r
func (r *Errors) Clone() *Errors {
	if r == nil {
		return nil
	}
	return &Errors{errs: slices.Clone(r.errs)}
}

func (r *Errors) HasError() bool {
	if r == nil {
		return false
	}
	return len(r.errs) > 0
}

func (r *Errors) LogValue() slog.Value {
	if r == nil {
		return slog.GroupValue()
	}
	var vals []slog.Attr
	for i, v := range r.errs {
		vals = append(vals, slog.Attr{
			Key: fmt.Sprint("e", i),
			Value: slog.GroupValue(
				slog.Attr{
					Key:   "msg",
					Value: slog.StringValue(FormatWithCode(v)),
				},
			),
		})
	}
	return slog.GroupValue(vals...)
}
