package types

// ClassDecl declares a class or an interface. Supers holds the direct
// supertypes, written in terms of TypeParams.
type ClassDecl struct {
	Name       string
	TypeParams []*TypeParam
	Supers     []*Class
	Interface  bool
	// Functional is the single abstract method when the declaration is a
	// functional interface which declares it directly
	Functional *Method
}

// Generic reports whether the declaration has type parameters
func (d *ClassDecl) Generic() bool { return len(d.TypeParams) > 0 }

// Of returns the class type of d applied to args. Passing no args to a generic
// declaration yields the raw type.
func (d *ClassDecl) Of(args ...Type) *Class {
	return &Class{Decl: d, Args: args}
}

// Identity returns d applied to its own type parameters
func (d *ClassDecl) Identity() *Class {
	args := make([]Type, len(d.TypeParams))
	for i, p := range d.TypeParams {
		args[i] = p
	}
	return &Class{Decl: d, Args: args}
}

// Bindings maps the type parameters of c's declaration to c's arguments.
// For raw types the substitutor is empty.
func (c *Class) Bindings() Substitutor {
	sub := NewSubstitutor()
	if len(c.Args) != len(c.Decl.TypeParams) {
		return sub
	}
	for i, p := range c.Decl.TypeParams {
		sub = sub.Put(p, c.Args[i])
	}
	return sub
}

// Method is the declaration of a method or constructor as seen by inference
type Method struct {
	Name       string
	TypeParams []*TypeParam
	Params     []Type
	Varargs    bool
	// Return is Void for methods which return nothing
	Return Type
	Throws []Type
	// Receiver is the declaring class type, used for unbound method references.
	// It may be nil.
	Receiver *Class
	Static   bool
}

// Generic reports whether m declares its own type parameters
func (m *Method) Generic() bool { return len(m.TypeParams) > 0 }

// IsVoid reports whether m returns nothing
func (m *Method) IsVoid() bool {
	p, ok := m.Return.(*Primitive)
	return ok && p == Void
}

// ParamType returns the formal parameter type of the i-th argument. When
// expanded is set, the trailing variable arity parameter stands for any number
// of arguments of its element type.
func (m *Method) ParamType(i int, expanded bool) Type {
	if len(m.Params) == 0 {
		return None
	}
	last := len(m.Params) - 1
	if expanded && m.Varargs && i >= last {
		if arr, ok := m.Params[last].(*Array); ok {
			return arr.Elem
		}
	}
	if i > last {
		return None
	}
	return m.Params[i]
}

// AcceptsArity reports whether m can be invoked with argc arguments, with or
// without expanding a variable arity parameter
func (m *Method) AcceptsArity(argc int, expanded bool) bool {
	if expanded {
		return m.Varargs && argc >= len(m.Params)-1
	}
	return argc == len(m.Params)
}

// OwnsParam reports whether p is one of m's type parameters
func (m *Method) OwnsParam(p *TypeParam) bool {
	for _, own := range m.TypeParams {
		if own == p {
			return true
		}
	}
	return false
}
