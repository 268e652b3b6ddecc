// Package fixture loads a class table and a list of call sites from YAML, so
// that inference can be driven from files by the command line and by tests.
//
// A fixture looks like this:
//
//	builtins: true
//	classes:
//	  - name: Box
//	    typeParams: [T extends Number]
//	methods:
//	  - name: apply
//	    typeParams: [T, R]
//	    params: [T, "Function<T, R>"]
//	    return: R
//	calls:
//	  - name: length
//	    method: apply
//	    args:
//	      - typed: String
//	      - ref: {qualifier: String, type: true, methods: [length]}
//	    expect: {T: String, R: Integer}
//
// Names used in type expressions resolve to the type parameters in scope,
// then to primitives, then to classes of the table.
package fixture

import (
	"fmt"
	"os"

	"github.com/cottand/tyinfer/frontend/classtable"
	"github.com/cottand/tyinfer/frontend/expr"
	"github.com/cottand/tyinfer/frontend/types"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// File is the YAML form of a fixture
type File struct {
	// Builtins starts from classtable.Builtins instead of an empty table
	Builtins bool         `yaml:"builtins"`
	Classes  []ClassSpec  `yaml:"classes,omitempty"`
	Methods  []MethodSpec `yaml:"methods,omitempty"`
	Calls    []CallSpec   `yaml:"calls"`
}

type ClassSpec struct {
	Name string `yaml:"name"`
	// TypeParams are declared like "T" or "T extends Comparable<T>"
	TypeParams []string `yaml:"typeParams,omitempty"`
	Interface  bool     `yaml:"interface,omitempty"`
	Supers     []string `yaml:"supers,omitempty"`
	// Functional declares the single abstract method of a functional interface
	Functional *MethodSpec `yaml:"functional,omitempty"`
}

type MethodSpec struct {
	Name       string   `yaml:"name"`
	TypeParams []string `yaml:"typeParams,omitempty"`
	Params     []string `yaml:"params,omitempty"`
	Varargs    bool     `yaml:"varargs,omitempty"`
	// Return defaults to void
	Return   string   `yaml:"return,omitempty"`
	Throws   []string `yaml:"throws,omitempty"`
	Receiver string   `yaml:"receiver,omitempty"`
	Static   bool     `yaml:"static,omitempty"`
}

// CallSpec is a call site. Name, Target and the expectations only apply to top-level calls.
type CallSpec struct {
	Name     string     `yaml:"name,omitempty"`
	Method   string     `yaml:"method"`
	TypeArgs []string   `yaml:"typeArgs,omitempty"`
	Args     []ExprSpec `yaml:"args,omitempty"`
	Target   string     `yaml:"target,omitempty"`
	// Expect maps type parameter names of the method to their expected instantiation
	Expect map[string]string `yaml:"expect,omitempty"`
	// Fails is set when inference is expected to fail
	Fails bool `yaml:"fails,omitempty"`
}

// ExprSpec is an argument expression; exactly one field must be set
type ExprSpec struct {
	Typed  string      `yaml:"typed,omitempty"`
	Paren  *ExprSpec   `yaml:"paren,omitempty"`
	Cond   []ExprSpec  `yaml:"cond,omitempty"`
	Switch []ExprSpec  `yaml:"switch,omitempty"`
	Call   *CallSpec   `yaml:"call,omitempty"`
	Lambda *LambdaSpec `yaml:"lambda,omitempty"`
	Ref    *RefSpec    `yaml:"ref,omitempty"`
}

type LambdaSpec struct {
	Params []string `yaml:"params,omitempty"`
	// Types makes the lambda explicitly typed; it must be as long as Params
	Types   []string   `yaml:"types,omitempty"`
	Returns []ExprSpec `yaml:"returns,omitempty"`
	// Void is set when the body can complete without a value
	Void   bool     `yaml:"void,omitempty"`
	Throws []string `yaml:"throws,omitempty"`
}

type RefSpec struct {
	Qualifier string `yaml:"qualifier"`
	// TypeQualified is set for Type::method forms
	TypeQualified bool     `yaml:"type,omitempty"`
	Methods       []string `yaml:"methods"`
	TypeArgs      []string `yaml:"typeArgs,omitempty"`
}

// Fixture is a loaded File
type Fixture struct {
	Table *classtable.Table
	Calls []*Call
}

// Call is a top-level call site together with what inference should produce
type Call struct {
	Name   string
	Expr   *expr.Call
	Expect map[*types.TypeParam]types.Type
	Fails  bool
}

// Exprs returns the call expressions of f in order
func (f *Fixture) Exprs() []*expr.Call {
	out := make([]*expr.Call, len(f.Calls))
	for i, c := range f.Calls {
		out[i] = c.Expr
	}
	return out
}

// Load reads and builds the fixture at path
func Load(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading fixture %s", path)
	}
	return Parse(data, path)
}

// Parse builds a fixture from YAML. name is only used in error messages.
func Parse(data []byte, name string) (*Fixture, error) {
	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, errors.Wrapf(err, "parsing %s", name)
	}
	fx, err := file.Build()
	if err != nil {
		return nil, errors.Wrap(err, name)
	}
	return fx, nil
}

// Build declares the classes and methods of f and assembles its calls
func (f *File) Build() (*Fixture, error) {
	table := classtable.New()
	if f.Builtins {
		table = classtable.Builtins()
	}
	b := &builder{table: table, methods: make(map[string][]*types.Method)}
	if err := b.declareClasses(f.Classes); err != nil {
		return nil, err
	}
	for i, spec := range f.Methods {
		m, err := b.method(spec, newScope(table, nil))
		if err != nil {
			return nil, errors.Wrapf(err, "methods[%d] (%s)", i, spec.Name)
		}
		b.methods[spec.Name] = append(b.methods[spec.Name], m)
	}

	fx := &Fixture{Table: table}
	for i, spec := range f.Calls {
		name := spec.Name
		if name == "" {
			name = fmt.Sprintf("calls[%d]", i)
		}
		call, err := b.call(spec, newScope(table, nil))
		if err != nil {
			return nil, errors.Wrapf(err, "%s (%s)", name, spec.Method)
		}
		expect, err := b.expectations(spec, call.Method)
		if err != nil {
			return nil, errors.Wrapf(err, "%s (%s)", name, spec.Method)
		}
		fx.Calls = append(fx.Calls, &Call{Name: name, Expr: call, Expect: expect, Fails: spec.Fails})
	}
	return fx, nil
}

type builder struct {
	table   *classtable.Table
	methods map[string][]*types.Method
}

// declareClasses registers every class before resolving any bound or
// supertype, so declarations may refer to each other in any order
func (b *builder) declareClasses(specs []ClassSpec) error {
	decls := make([]*types.ClassDecl, len(specs))
	bounds := make([][]string, len(specs))
	for i, spec := range specs {
		if spec.Name == "" {
			return errors.Errorf("classes[%d]: name is required", i)
		}
		names := make([]string, len(spec.TypeParams))
		bounds[i] = make([]string, len(spec.TypeParams))
		for j, src := range spec.TypeParams {
			name, bound, err := parseParamDecl(src)
			if err != nil {
				return errors.Wrapf(err, "classes[%d] (%s)", i, spec.Name)
			}
			names[j], bounds[i][j] = name, bound
		}
		if spec.Interface {
			decls[i] = b.table.Interface(spec.Name, names...)
		} else {
			decls[i] = b.table.Class(spec.Name, names...)
		}
	}

	object := b.table.Object()
	for i, spec := range specs {
		decl := decls[i]
		sc := newScope(b.table, nil, decl.TypeParams...)
		for j, p := range decl.TypeParams {
			if bounds[i][j] == "" {
				p.Bounds = []types.Type{object}
				continue
			}
			parsed, err := parseBounds(bounds[i][j], sc)
			if err != nil {
				return errors.Wrapf(err, "classes[%d] (%s)", i, spec.Name)
			}
			p.Bounds = parsed
		}
		for _, src := range spec.Supers {
			super, err := parseType(src, sc)
			if err != nil {
				return errors.Wrapf(err, "classes[%d] (%s)", i, spec.Name)
			}
			c, ok := super.(*types.Class)
			if !ok {
				return errors.Errorf("classes[%d] (%s): supertype %s is not a class", i, spec.Name, src)
			}
			decl.Supers = append(decl.Supers, c)
		}
		if spec.Functional != nil {
			m, err := b.method(*spec.Functional, sc)
			if err != nil {
				return errors.Wrapf(err, "classes[%d] (%s): functional method", i, spec.Name)
			}
			decl.Functional = m
		}
	}
	return nil
}

// typeParams declares the type parameters of a method in a child scope of outer
func (b *builder) typeParams(srcs []string, outer *scope) ([]*types.TypeParam, *scope, error) {
	params := make([]*types.TypeParam, len(srcs))
	bounds := make([]string, len(srcs))
	for i, src := range srcs {
		name, bound, err := parseParamDecl(src)
		if err != nil {
			return nil, nil, err
		}
		params[i] = types.NewTypeParam(name)
		bounds[i] = bound
	}
	sc := newScope(b.table, outer, params...)
	for i, p := range params {
		if bounds[i] == "" {
			continue
		}
		parsed, err := parseBounds(bounds[i], sc)
		if err != nil {
			return nil, nil, err
		}
		p.Bounds = parsed
	}
	return params, sc, nil
}

func (b *builder) method(spec MethodSpec, outer *scope) (*types.Method, error) {
	params, sc, err := b.typeParams(spec.TypeParams, outer)
	if err != nil {
		return nil, err
	}
	m := &types.Method{Name: spec.Name, TypeParams: params, Varargs: spec.Varargs, Static: spec.Static, Return: types.Void}
	if m.Params, err = parseTypes(spec.Params, sc); err != nil {
		return nil, err
	}
	if spec.Varargs {
		if len(m.Params) == 0 {
			return nil, errors.New("variable arity method without parameters")
		}
		if _, ok := m.Params[len(m.Params)-1].(*types.Array); !ok {
			return nil, errors.New("the variable arity parameter must be an array")
		}
	}
	if spec.Return != "" {
		if m.Return, err = parseType(spec.Return, sc); err != nil {
			return nil, err
		}
	}
	if m.Throws, err = parseTypes(spec.Throws, sc); err != nil {
		return nil, err
	}
	if spec.Receiver != "" {
		receiver, err := parseType(spec.Receiver, sc)
		if err != nil {
			return nil, err
		}
		c, ok := receiver.(*types.Class)
		if !ok {
			return nil, errors.Errorf("receiver %s is not a class", spec.Receiver)
		}
		m.Receiver = c
	}
	return m, nil
}

func (b *builder) lookupMethod(name string) (*types.Method, error) {
	candidates := b.methods[name]
	switch len(candidates) {
	case 0:
		return nil, errors.Errorf("unknown method %s", name)
	case 1:
		return candidates[0], nil
	}
	return nil, errors.Errorf("method %s is overloaded, only method references may name it", name)
}

func (b *builder) call(spec CallSpec, sc *scope) (*expr.Call, error) {
	m, err := b.lookupMethod(spec.Method)
	if err != nil {
		return nil, err
	}
	args := make([]expr.Expr, len(spec.Args))
	for i, arg := range spec.Args {
		if args[i], err = b.expr(arg, sc); err != nil {
			return nil, errors.Wrapf(err, "args[%d]", i)
		}
	}
	call := expr.NewCall(m, args...)
	if call.TypeArgs, err = parseTypes(spec.TypeArgs, sc); err != nil {
		return nil, err
	}
	if len(call.TypeArgs) > 0 && len(call.TypeArgs) != len(m.TypeParams) {
		return nil, errors.Errorf("%s takes %d type arguments, got %d", m.Name, len(m.TypeParams), len(call.TypeArgs))
	}
	if spec.Target != "" {
		if call.Target, err = parseType(spec.Target, sc); err != nil {
			return nil, err
		}
	}
	return call, nil
}

func (b *builder) expr(spec ExprSpec, sc *scope) (expr.Expr, error) {
	set := 0
	for _, present := range []bool{
		spec.Typed != "", spec.Paren != nil, spec.Cond != nil, spec.Switch != nil,
		spec.Call != nil, spec.Lambda != nil, spec.Ref != nil,
	} {
		if present {
			set++
		}
	}
	if set != 1 {
		return nil, errors.Errorf("an expression needs exactly one of typed, paren, cond, switch, call, lambda or ref, got %d", set)
	}

	switch {
	case spec.Typed != "":
		t, err := parseType(spec.Typed, sc)
		if err != nil {
			return nil, err
		}
		return expr.NewTyped(t), nil
	case spec.Paren != nil:
		inner, err := b.expr(*spec.Paren, sc)
		if err != nil {
			return nil, err
		}
		return expr.NewParen(inner), nil
	case spec.Cond != nil:
		if len(spec.Cond) != 2 {
			return nil, errors.Errorf("cond needs two branches, got %d", len(spec.Cond))
		}
		branches, err := b.exprs(spec.Cond, sc)
		if err != nil {
			return nil, err
		}
		return expr.NewConditional(branches[0], branches[1]), nil
	case spec.Switch != nil:
		results, err := b.exprs(spec.Switch, sc)
		if err != nil {
			return nil, err
		}
		return expr.NewSwitch(results...), nil
	case spec.Call != nil:
		call, err := b.call(*spec.Call, sc)
		if err != nil {
			return nil, err
		}
		return call, nil
	case spec.Lambda != nil:
		l, err := b.lambda(*spec.Lambda, sc)
		if err != nil {
			return nil, err
		}
		return l, nil
	}
	ref, err := b.ref(*spec.Ref, sc)
	if err != nil {
		return nil, err
	}
	return ref, nil
}

func (b *builder) exprs(specs []ExprSpec, sc *scope) ([]expr.Expr, error) {
	out := make([]expr.Expr, len(specs))
	for i, spec := range specs {
		e, err := b.expr(spec, sc)
		if err != nil {
			return nil, err
		}
		out[i] = e
	}
	return out, nil
}

func (b *builder) lambda(spec LambdaSpec, outer *scope) (*expr.Lambda, error) {
	if len(spec.Types) > 0 && len(spec.Types) != len(spec.Params) {
		return nil, errors.Errorf("lambda has %d parameters but %d types", len(spec.Params), len(spec.Types))
	}
	l := expr.NewLambda(spec.Params)
	l.VoidCompatible = spec.Void

	if len(spec.Types) > 0 {
		paramTypes, err := parseTypes(spec.Types, outer)
		if err != nil {
			return nil, err
		}
		for i := range l.Params {
			l.Params[i].Type = paramTypes[i]
		}
	}

	slots := make([]*types.TypeParam, len(l.Params))
	for i, p := range l.Params {
		slots[i] = p.Slot
	}
	body := newScope(b.table, outer, slots...)
	for i, ret := range spec.Returns {
		e, err := b.expr(ret, body)
		if err != nil {
			return nil, errors.Wrapf(err, "returns[%d]", i)
		}
		l.AddReturn(e)
	}
	thrown, err := parseTypes(spec.Throws, body)
	if err != nil {
		return nil, err
	}
	l.Thrown = thrown
	return l, nil
}

func (b *builder) ref(spec RefSpec, sc *scope) (*expr.MethodRef, error) {
	qualifier, err := parseType(spec.Qualifier, sc)
	if err != nil {
		return nil, err
	}
	var candidates []*types.Method
	for _, name := range spec.Methods {
		found, ok := b.methods[name]
		if !ok {
			return nil, errors.Errorf("unknown method %s", name)
		}
		candidates = append(candidates, found...)
	}
	ref := expr.NewMethodRef(qualifier, spec.TypeQualified, candidates...)
	if ref.TypeArgs, err = parseTypes(spec.TypeArgs, sc); err != nil {
		return nil, err
	}
	return ref, nil
}

func (b *builder) expectations(spec CallSpec, m *types.Method) (map[*types.TypeParam]types.Type, error) {
	if len(spec.Expect) == 0 {
		return nil, nil
	}
	sc := newScope(b.table, nil)
	out := make(map[*types.TypeParam]types.Type, len(spec.Expect))
	for name, src := range spec.Expect {
		var param *types.TypeParam
		for _, p := range m.TypeParams {
			if p.Name == name {
				param = p
			}
		}
		if param == nil {
			return nil, errors.Errorf("expect: %s has no type parameter %s", m.Name, name)
		}
		t, err := parseType(src, sc)
		if err != nil {
			return nil, errors.Wrap(err, "expect")
		}
		out[param] = t
	}
	return out, nil
}
