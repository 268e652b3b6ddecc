package fixture

import (
	"strings"
	"text/scanner"

	"github.com/cottand/tyinfer/frontend/classtable"
	"github.com/cottand/tyinfer/frontend/types"
	"github.com/pkg/errors"
)

// scope resolves the names used in type expressions. Type parameters shadow
// classes, and inner scopes shadow outer ones.
type scope struct {
	table  *classtable.Table
	params map[string]*types.TypeParam
	parent *scope
}

func newScope(table *classtable.Table, parent *scope, params ...*types.TypeParam) *scope {
	s := &scope{table: table, parent: parent, params: make(map[string]*types.TypeParam, len(params))}
	for _, p := range params {
		s.params[p.Name] = p
	}
	return s
}

func (s *scope) param(name string) (*types.TypeParam, bool) {
	for cur := s; cur != nil; cur = cur.parent {
		if p, ok := cur.params[name]; ok {
			return p, true
		}
	}
	return nil, false
}

// typeParser reads type expressions such as
//
//	Map<String, ? extends List<T>>[]
//
// Intersections are only accepted in bounds, see parseBounds.
type typeParser struct {
	sc    scanner.Scanner
	tok   rune
	src   string
	scope *scope
	err   error
}

func newTypeParser(src string, sc *scope) *typeParser {
	p := &typeParser{src: src, scope: sc}
	p.sc.Init(strings.NewReader(src))
	p.sc.Mode = scanner.ScanIdents
	p.sc.Error = func(_ *scanner.Scanner, msg string) { p.fail("%s", msg) }
	p.next()
	return p
}

func (p *typeParser) next() { p.tok = p.sc.Scan() }

func (p *typeParser) fail(format string, args ...any) {
	if p.err == nil {
		p.err = errors.Errorf("type %q: "+format, append([]any{p.src}, args...)...)
	}
}

func (p *typeParser) expect(tok rune) {
	if p.tok != tok {
		p.fail("expected %s, found %s", scanner.TokenString(tok), scanner.TokenString(p.tok))
		return
	}
	p.next()
}

func (p *typeParser) done() error {
	if p.err == nil && p.tok != scanner.EOF {
		p.fail("unexpected %s", scanner.TokenString(p.tok))
	}
	return p.err
}

// parseType parses a complete type expression in sc
func parseType(src string, sc *scope) (types.Type, error) {
	p := newTypeParser(src, sc)
	t := p.parseType()
	if err := p.done(); err != nil {
		return nil, err
	}
	return t, nil
}

// parseTypes parses each of srcs
func parseTypes(srcs []string, sc *scope) ([]types.Type, error) {
	out := make([]types.Type, 0, len(srcs))
	for _, src := range srcs {
		t, err := parseType(src, sc)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// parseParamDecl splits "T extends A & B" into the parameter name and the
// source of its bounds, which is empty when none is declared
func parseParamDecl(src string) (name string, bounds string, err error) {
	fields := strings.Fields(src)
	switch {
	case len(fields) == 1:
		return fields[0], "", nil
	case len(fields) > 2 && fields[1] == "extends":
		return fields[0], strings.Join(fields[2:], " "), nil
	}
	return "", "", errors.Errorf("type parameter %q: expected 'Name' or 'Name extends Bound'", src)
}

// parseBounds parses "A & B & ..." into its conjuncts
func parseBounds(src string, sc *scope) ([]types.Type, error) {
	p := newTypeParser(src, sc)
	bounds := []types.Type{p.parseType()}
	for p.tok == '&' && p.err == nil {
		p.next()
		bounds = append(bounds, p.parseType())
	}
	if err := p.done(); err != nil {
		return nil, err
	}
	return bounds, nil
}

func (p *typeParser) parseType() types.Type {
	t := p.parsePrimary()
	for p.tok == '[' && p.err == nil {
		p.next()
		p.expect(']')
		t = &types.Array{Elem: t}
	}
	return t
}

func (p *typeParser) parsePrimary() types.Type {
	if p.tok == '?' {
		p.next()
		if p.tok != scanner.Ident {
			return types.NewUnbounded()
		}
		switch kind := p.sc.TokenText(); kind {
		case "extends":
			p.next()
			return types.NewExtends(p.parseType())
		case "super":
			p.next()
			return types.NewSuper(p.parseType())
		default:
			p.fail("unexpected %q after '?'", kind)
			return types.None
		}
	}
	if p.tok != scanner.Ident {
		p.fail("expected a type name, found %s", scanner.TokenString(p.tok))
		return types.None
	}
	name := p.sc.TokenText()
	p.next()

	var args []types.Type
	if p.tok == '<' {
		p.next()
		args = append(args, p.parseType())
		for p.tok == ',' && p.err == nil {
			p.next()
			args = append(args, p.parseType())
		}
		p.expect('>')
	}
	return p.resolve(name, args)
}

func (p *typeParser) resolve(name string, args []types.Type) types.Type {
	if param, ok := p.scope.param(name); ok {
		if len(args) > 0 {
			p.fail("type parameter %s cannot take type arguments", name)
		}
		return param
	}
	if name == "null" {
		return types.Null
	}
	if prim, ok := types.PrimitiveNamed(name); ok {
		if len(args) > 0 {
			p.fail("primitive %s cannot take type arguments", name)
		}
		return prim
	}
	decl, ok := p.scope.table.Lookup(name)
	if !ok {
		p.fail("unknown type %s", name)
		return types.None
	}
	if len(args) > 0 && len(args) != len(decl.TypeParams) {
		p.fail("%s takes %d type arguments, got %d", name, len(decl.TypeParams), len(args))
	}
	return decl.Of(args...)
}
