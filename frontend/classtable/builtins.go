package classtable

import (
	"github.com/cottand/tyinfer/frontend/types"
)

// Builtins returns a table with a small subset of the java.lang and java.util
// hierarchy, including the common functional interfaces
func Builtins() *Table {
	t := New()
	object := t.Object()

	serializable := t.Interface("Serializable")
	comparable := t.Interface("Comparable", "T")
	comparable.Functional = &types.Method{
		Name:   "compareTo",
		Params: []types.Type{comparable.TypeParams[0]},
		Return: types.Int,
	}
	charSequence := t.Interface("CharSequence")

	number := t.Class("Number")
	number.Supers = []*types.Class{serializable.Of()}
	for _, name := range []string{"Integer", "Long", "Short", "Byte", "Double", "Float"} {
		boxed := t.Class(name)
		boxed.Supers = []*types.Class{number.Of(), comparable.Of(boxed.Of())}
	}
	for _, name := range []string{"Boolean", "Character"} {
		boxed := t.Class(name)
		boxed.Supers = []*types.Class{serializable.Of(), comparable.Of(boxed.Of())}
	}
	str := t.Class("String")
	str.Supers = []*types.Class{serializable.Of(), comparable.Of(str.Of()), charSequence.Of()}

	throwable := t.Class("Throwable")
	throwable.Supers = []*types.Class{serializable.Of()}
	exception := t.Class("Exception")
	exception.Supers = []*types.Class{throwable.Of()}
	runtimeException := t.Class("RuntimeException")
	runtimeException.Supers = []*types.Class{exception.Of()}
	t.Class("Error").Supers = []*types.Class{throwable.Of()}
	t.Class("IOException").Supers = []*types.Class{exception.Of()}
	t.Class("IllegalArgumentException").Supers = []*types.Class{runtimeException.Of()}

	iterable := t.Interface("Iterable", "T")
	collection := t.Interface("Collection", "E")
	collection.Supers = []*types.Class{iterable.Of(collection.TypeParams[0])}
	list := t.Interface("List", "E")
	list.Supers = []*types.Class{collection.Of(list.TypeParams[0])}
	arrayList := t.Class("ArrayList", "E")
	arrayList.Supers = []*types.Class{list.Of(arrayList.TypeParams[0]), serializable.Of()}
	set := t.Interface("Set", "E")
	set.Supers = []*types.Class{collection.Of(set.TypeParams[0])}
	t.Interface("Map", "K", "V")
	t.Class("Optional", "T")

	comparator := t.Interface("Comparator", "T")
	tp := comparator.TypeParams[0]
	comparator.Functional = &types.Method{Name: "compare", Params: []types.Type{tp, tp}, Return: types.Int}

	function := t.Interface("Function", "T", "R")
	function.Functional = &types.Method{
		Name:   "apply",
		Params: []types.Type{function.TypeParams[0]},
		Return: function.TypeParams[1],
	}
	biFunction := t.Interface("BiFunction", "T", "U", "R")
	biFunction.Functional = &types.Method{
		Name:   "apply",
		Params: []types.Type{biFunction.TypeParams[0], biFunction.TypeParams[1]},
		Return: biFunction.TypeParams[2],
	}
	unary := t.Interface("UnaryOperator", "T")
	unary.Supers = []*types.Class{function.Of(unary.TypeParams[0], unary.TypeParams[0])}
	supplier := t.Interface("Supplier", "T")
	supplier.Functional = &types.Method{Name: "get", Return: supplier.TypeParams[0]}
	consumer := t.Interface("Consumer", "T")
	consumer.Functional = &types.Method{Name: "accept", Params: []types.Type{consumer.TypeParams[0]}, Return: types.Void}
	predicate := t.Interface("Predicate", "T")
	predicate.Functional = &types.Method{Name: "test", Params: []types.Type{predicate.TypeParams[0]}, Return: types.Boolean}
	runnable := t.Interface("Runnable")
	runnable.Functional = &types.Method{Name: "run", Return: types.Void}
	callable := t.Interface("Callable", "V")
	callable.Functional = &types.Method{
		Name:   "call",
		Return: callable.TypeParams[0],
		Throws: []types.Type{exception.Of()},
	}

	// type parameters with no declared bound are bounded by Object
	for _, name := range t.Names() {
		for _, p := range t.MustLookup(name).TypeParams {
			if len(p.Bounds) == 0 {
				p.Bounds = []types.Type{object}
			}
		}
	}
	return t
}
