package types

import (
	"fmt"
	"hash/fnv"
	"slices"
	"strconv"
	"strings"
	"sync/atomic"
)

// Type is an immutable generic type. The concrete variants are
// *Primitive, *Class, *Array, *Wildcard, *Intersection, *TypeParam, *Var,
// Null and None.
type Type interface {
	fmt.Stringer
	// Hash is stable for structurally equal types, see Equal
	Hash() uint64
	// writeKey writes a string which is unique for the structure of the type
	writeKey(sb *strings.Builder)
}

var (
	_ Type = (*Primitive)(nil)
	_ Type = (*Class)(nil)
	_ Type = (*Array)(nil)
	_ Type = (*Wildcard)(nil)
	_ Type = (*Intersection)(nil)
	_ Type = (*TypeParam)(nil)
	_ Type = (*Var)(nil)
	_ Type = nullType{}
	_ Type = noneType{}
)

func hashKey(t Type) uint64 {
	sb := &strings.Builder{}
	t.writeKey(sb)
	h := fnv.New64a()
	_, _ = h.Write([]byte(sb.String()))
	return h.Sum64()
}

type Primitive struct {
	Name string
}

var (
	Void    = &Primitive{Name: "void"}
	Boolean = &Primitive{Name: "boolean"}
	Byte    = &Primitive{Name: "byte"}
	Short   = &Primitive{Name: "short"}
	Char    = &Primitive{Name: "char"}
	Int     = &Primitive{Name: "int"}
	Long    = &Primitive{Name: "long"}
	Float   = &Primitive{Name: "float"}
	Double  = &Primitive{Name: "double"}
)

var primitivesByName = map[string]*Primitive{
	Void.Name:    Void,
	Boolean.Name: Boolean,
	Byte.Name:    Byte,
	Short.Name:   Short,
	Char.Name:    Char,
	Int.Name:     Int,
	Long.Name:    Long,
	Float.Name:   Float,
	Double.Name:  Double,
}

// PrimitiveNamed returns the predeclared primitive called name
func PrimitiveNamed(name string) (*Primitive, bool) {
	p, ok := primitivesByName[name]
	return p, ok
}

func (p *Primitive) String() string { return p.Name }
func (p *Primitive) Hash() uint64   { return hashKey(p) }
func (p *Primitive) writeKey(sb *strings.Builder) {
	sb.WriteString("p:")
	sb.WriteString(p.Name)
}

// Class is a (possibly parameterized) class or interface type.
// A Class of a generic declaration with no Args is raw.
type Class struct {
	Decl *ClassDecl
	Args []Type
}

func (c *Class) Name() string { return c.Decl.Name }

// IsRaw reports whether c refers to a generic declaration without type arguments
func (c *Class) IsRaw() bool {
	return len(c.Args) == 0 && len(c.Decl.TypeParams) > 0
}

// HasWildcards reports whether any top level type argument of c is a wildcard
func (c *Class) HasWildcards() bool {
	for _, arg := range c.Args {
		if _, ok := arg.(*Wildcard); ok {
			return true
		}
	}
	return false
}

func (c *Class) String() string {
	if len(c.Args) == 0 {
		return c.Decl.Name
	}
	args := make([]string, len(c.Args))
	for i, arg := range c.Args {
		args[i] = arg.String()
	}
	return c.Decl.Name + "<" + strings.Join(args, ", ") + ">"
}
func (c *Class) Hash() uint64 { return hashKey(c) }
func (c *Class) writeKey(sb *strings.Builder) {
	// declarations are compared by identity, so two of the same name differ
	_, _ = fmt.Fprintf(sb, "c:%s@%p", c.Decl.Name, c.Decl)
	if len(c.Args) > 0 {
		sb.WriteByte('<')
		for i, arg := range c.Args {
			if i > 0 {
				sb.WriteByte(',')
			}
			arg.writeKey(sb)
		}
		sb.WriteByte('>')
	}
}

type Array struct {
	Elem Type
}

func (a *Array) String() string { return a.Elem.String() + "[]" }
func (a *Array) Hash() uint64   { return hashKey(a) }
func (a *Array) writeKey(sb *strings.Builder) {
	sb.WriteString("a:")
	a.Elem.writeKey(sb)
}

type WildcardKind uint8

const (
	Unbounded WildcardKind = iota
	Extends
	Super
)

// Wildcard is a type argument of the form ?, ? extends Bound or ? super Bound.
// Bound is nil for Unbounded.
type Wildcard struct {
	Kind  WildcardKind
	Bound Type
}

func NewUnbounded() *Wildcard         { return &Wildcard{Kind: Unbounded} }
func NewExtends(bound Type) *Wildcard { return &Wildcard{Kind: Extends, Bound: bound} }
func NewSuper(bound Type) *Wildcard   { return &Wildcard{Kind: Super, Bound: bound} }

func (w *Wildcard) String() string {
	switch w.Kind {
	case Extends:
		return "? extends " + w.Bound.String()
	case Super:
		return "? super " + w.Bound.String()
	default:
		return "?"
	}
}
func (w *Wildcard) Hash() uint64 { return hashKey(w) }
func (w *Wildcard) writeKey(sb *strings.Builder) {
	sb.WriteString("w")
	sb.WriteString(strconv.Itoa(int(w.Kind)))
	sb.WriteByte(':')
	if w.Bound != nil {
		w.Bound.writeKey(sb)
	}
}

// Intersection is a type of the form A & B & ...; it always has at least two conjuncts
type Intersection struct {
	Conjuncts []Type
}

// NewIntersection flattens nested intersections and removes duplicates.
// It returns the single conjunct when only one remains.
func NewIntersection(conjuncts ...Type) Type {
	var flat []Type
	var add func(t Type)
	add = func(t Type) {
		if inter, ok := t.(*Intersection); ok {
			for _, c := range inter.Conjuncts {
				add(c)
			}
			return
		}
		for _, existing := range flat {
			if Equal(existing, t) {
				return
			}
		}
		flat = append(flat, t)
	}
	for _, c := range conjuncts {
		if c == nil || c == None {
			continue
		}
		add(c)
	}
	switch len(flat) {
	case 0:
		return None
	case 1:
		return flat[0]
	}
	return &Intersection{Conjuncts: flat}
}

func (i *Intersection) String() string {
	parts := make([]string, len(i.Conjuncts))
	for j, c := range i.Conjuncts {
		parts[j] = c.String()
	}
	return strings.Join(parts, " & ")
}
func (i *Intersection) Hash() uint64 { return hashKey(i) }
func (i *Intersection) writeKey(sb *strings.Builder) {
	// conjunct order is not significant, see Equal
	keys := make([]string, len(i.Conjuncts))
	for j, c := range i.Conjuncts {
		inner := &strings.Builder{}
		c.writeKey(inner)
		keys[j] = inner.String()
	}
	slices.Sort(keys)
	sb.WriteString("i:")
	sb.WriteString(strings.Join(keys, "&"))
}

var typeParamCount atomic.Uint64

// TypeParam is a formal type variable of a class or a method, or a fresh
// type variable synthesised during resolution.
//
// Bounds holds the declared upper bounds and may be filled in after
// construction, since a bound can mention the parameter itself.
type TypeParam struct {
	Name   string
	Bounds []Type
	// Lower is set only for synthesised variables which must be supertypes of a lower bound
	Lower Type
	// Frozen marks a synthesised variable
	Frozen bool
	id     uint64
}

// NewTypeParam returns a type parameter with an identity distinct from every other one
func NewTypeParam(name string, bounds ...Type) *TypeParam {
	return &TypeParam{
		Name:   name,
		Bounds: bounds,
		id:     typeParamCount.Add(1),
	}
}

// UpperBound is the intersection of the declared bounds, or nil when there are none
func (p *TypeParam) UpperBound() Type {
	if len(p.Bounds) == 0 {
		return nil
	}
	return NewIntersection(p.Bounds...)
}

func (p *TypeParam) String() string { return p.Name }
func (p *TypeParam) Hash() uint64   { return hashKey(p) }
func (p *TypeParam) writeKey(sb *strings.Builder) {
	sb.WriteString("t:")
	sb.WriteString(p.Name)
	sb.WriteByte('#')
	sb.WriteString(strconv.FormatUint(p.id, 10))
}

type VarID uint64

// Var refers to an inference variable by id. The bounds of the variable live in
// the inference session which created it.
type Var struct {
	ID   VarID
	Name string
}

func (v *Var) String() string {
	return v.Name + "'" + strconv.FormatUint(uint64(v.ID), 10)
}
func (v *Var) Hash() uint64 { return hashKey(v) }
func (v *Var) writeKey(sb *strings.Builder) {
	sb.WriteString("v:")
	sb.WriteString(strconv.FormatUint(uint64(v.ID), 10))
}

type nullType struct{}

// Null is the type of the null literal
var Null Type = nullType{}

func (nullType) String() string { return "null" }
func (n nullType) Hash() uint64 { return hashKey(n) }
func (nullType) writeKey(sb *strings.Builder) {
	sb.WriteString("null")
}

type noneType struct{}

// None stands for the absence of a type, for example an uninstantiated variable
// or a bound composition over an empty set
var None Type = noneType{}

func (noneType) String() string { return "<none>" }
func (n noneType) Hash() uint64 { return hashKey(n) }
func (noneType) writeKey(sb *strings.Builder) {
	sb.WriteString("none")
}

// IsNone reports whether t is nil or None
func IsNone(t Type) bool {
	return t == nil || t == None
}

// IsReference reports whether t can be the type of a reference, which excludes
// primitives and None
func IsReference(t Type) bool {
	switch t.(type) {
	case *Primitive, noneType, nil:
		return false
	}
	return true
}

// Equal compares two types structurally. Type parameters are compared by identity
// and inference variables by id.
func Equal(a, b Type) bool {
	if a == nil || b == nil {
		return a == b
	}
	switch a := a.(type) {
	case *Primitive:
		b, ok := b.(*Primitive)
		return ok && a.Name == b.Name
	case *Class:
		b, ok := b.(*Class)
		if !ok || a.Decl != b.Decl || len(a.Args) != len(b.Args) {
			return false
		}
		for i := range a.Args {
			if !Equal(a.Args[i], b.Args[i]) {
				return false
			}
		}
		return true
	case *Array:
		b, ok := b.(*Array)
		return ok && Equal(a.Elem, b.Elem)
	case *Wildcard:
		b, ok := b.(*Wildcard)
		if !ok || a.Kind != b.Kind {
			return false
		}
		return a.Kind == Unbounded || Equal(a.Bound, b.Bound)
	case *Intersection:
		b, ok := b.(*Intersection)
		if !ok || len(a.Conjuncts) != len(b.Conjuncts) {
			return false
		}
		for _, c := range a.Conjuncts {
			found := false
			for _, d := range b.Conjuncts {
				if Equal(c, d) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
		return true
	case *TypeParam:
		b, ok := b.(*TypeParam)
		return ok && a == b
	case *Var:
		b, ok := b.(*Var)
		return ok && a.ID == b.ID
	case nullType:
		_, ok := b.(nullType)
		return ok
	case noneType:
		_, ok := b.(noneType)
		return ok
	}
	return false
}
