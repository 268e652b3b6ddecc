// Package classtable implements types.Algebra over a nominal table of class
// declarations. Inference only depends on types.Algebra; this package is the
// implementation used by the command line and by tests.
package classtable

import (
	"fmt"
	"slices"

	"github.com/cottand/tyinfer/frontend/types"
	"github.com/hashicorp/go-set/v3"
)

const ObjectName = "Object"

// Table is a set of class declarations indexed by name.
// Declarations must be added before the table is used as an Algebra,
// after which it is safe for concurrent reads.
type Table struct {
	decls  map[string]*types.ClassDecl
	order  []string
	object *types.ClassDecl
}

var _ types.Algebra = (*Table)(nil)

// New returns a table which only knows Object
func New() *Table {
	t := &Table{decls: make(map[string]*types.ClassDecl)}
	t.object = &types.ClassDecl{Name: ObjectName}
	t.Add(t.object)
	return t
}

// Add registers decl, replacing any declaration with the same name
func (t *Table) Add(decl *types.ClassDecl) *types.ClassDecl {
	if _, exists := t.decls[decl.Name]; !exists {
		t.order = append(t.order, decl.Name)
	}
	t.decls[decl.Name] = decl
	return decl
}

// Class declares a class called name with type parameters named params.
// Supertypes and bounds can be set on the result afterward.
func (t *Table) Class(name string, params ...string) *types.ClassDecl {
	decl := &types.ClassDecl{Name: name}
	for _, p := range params {
		decl.TypeParams = append(decl.TypeParams, types.NewTypeParam(p))
	}
	return t.Add(decl)
}

// Interface is like Class but declares an interface
func (t *Table) Interface(name string, params ...string) *types.ClassDecl {
	decl := t.Class(name, params...)
	decl.Interface = true
	return decl
}

func (t *Table) Lookup(name string) (*types.ClassDecl, bool) {
	decl, ok := t.decls[name]
	return decl, ok
}

// MustLookup is Lookup for names known to exist
func (t *Table) MustLookup(name string) *types.ClassDecl {
	decl, ok := t.decls[name]
	if !ok {
		panic(fmt.Sprintf("class %s is not declared", name))
	}
	return decl
}

// Names returns declared names in declaration order
func (t *Table) Names() []string {
	return slices.Clone(t.order)
}

func (t *Table) Object() *types.Class {
	return t.object.Of()
}

var boxNames = map[string]string{
	types.Boolean.Name: "Boolean",
	types.Byte.Name:    "Byte",
	types.Short.Name:   "Short",
	types.Char.Name:    "Character",
	types.Int.Name:     "Integer",
	types.Long.Name:    "Long",
	types.Float.Name:   "Float",
	types.Double.Name:  "Double",
}

func (t *Table) Box(p *types.Primitive) (*types.Class, bool) {
	name, ok := boxNames[p.Name]
	if !ok {
		return nil, false
	}
	decl, ok := t.decls[name]
	if !ok {
		return nil, false
	}
	return decl.Of(), true
}

func (t *Table) Unbox(c *types.Class) (*types.Primitive, bool) {
	for prim, name := range boxNames {
		if c.Decl.Name == name {
			return types.PrimitiveNamed(prim)
		}
	}
	return nil, false
}

func (t *Table) Substitute(s types.Substitutor, typ types.Type) types.Type {
	return types.Substitute(s, typ)
}

// Supertypes walks the declared supertypes of c breadth first. Every declaration
// appears at most once, and Object is always last.
func (t *Table) Supertypes(c *types.Class) []*types.Class {
	var out []*types.Class
	seen := set.From([]*types.ClassDecl{c.Decl})
	queue := []*types.Class{c}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		bindings := current.Bindings()
		for _, super := range current.Decl.Supers {
			if !seen.Insert(super.Decl) {
				continue
			}
			var parameterized *types.Class
			if current.IsRaw() {
				parameterized = super.Decl.Of()
			} else {
				parameterized = types.Substitute(bindings, super).(*types.Class)
			}
			out = append(out, parameterized)
			queue = append(queue, parameterized)
		}
	}
	if !seen.Contains(t.object) {
		out = append(out, t.Object())
	}
	return out
}

// isSubclass reports whether sub is decl or inherits from it, ignoring type arguments
func (t *Table) isSubclass(sub, decl *types.ClassDecl) bool {
	if sub == decl || decl == t.object {
		return true
	}
	for _, super := range sub.Supers {
		if t.isSubclass(super.Decl, decl) {
			return true
		}
	}
	return false
}
