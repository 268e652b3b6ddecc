package fixture

import (
	"strings"

	"github.com/cottand/tyinfer/frontend/infer"
	"github.com/cottand/tyinfer/frontend/types"
	"github.com/pkg/errors"
)

// Check compares res against the expectations of c
func (c *Call) Check(res *infer.Result) error {
	if c.Fails {
		if !res.Failed() {
			return errors.Errorf("%s: expected inference to fail, got %s %v", c.Name, res.State, res.Substitutor)
		}
		return nil
	}
	if res.Failed() {
		return errors.Errorf("%s: inference failed: %v", c.Name, res.Diagnostic())
	}

	var mismatches []string
	for _, p := range c.Expr.Method.TypeParams {
		want, ok := c.Expect[p]
		if !ok {
			continue
		}
		got, ok := res.Type(p)
		if !ok {
			mismatches = append(mismatches, p.Name+" was not inferred")
			continue
		}
		if !types.Equal(want, got) {
			mismatches = append(mismatches, p.Name+" = "+got.String()+", expected "+want.String())
		}
	}
	if len(mismatches) > 0 {
		return errors.Errorf("%s: %s", c.Name, strings.Join(mismatches, "; "))
	}
	return nil
}
