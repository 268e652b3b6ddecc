package types

import (
	"slices"
	"strings"

	"github.com/benbjohnson/immutable"
)

type substHasher struct{}

func (substHasher) Hash(key Type) uint32 {
	h := key.Hash()
	return uint32(h ^ h>>32)
}

func (substHasher) Equal(a, b Type) bool { return Equal(a, b) }

// Substitutor maps type parameters and inference variables to types.
// It is persistent: Put returns a new Substitutor and leaves the receiver untouched,
// so one can be shared between sessions cheaply.
//
// The zero value is an empty Substitutor.
type Substitutor struct {
	m *immutable.Map[Type, Type]
}

func NewSubstitutor() Substitutor {
	return Substitutor{m: immutable.NewMap[Type, Type](substHasher{})}
}

// Put maps from (a *TypeParam or a *Var) to to
func (s Substitutor) Put(from, to Type) Substitutor {
	m := s.m
	if m == nil {
		m = immutable.NewMap[Type, Type](substHasher{})
	}
	return Substitutor{m: m.Set(from, to)}
}

// PutAll returns s with every mapping of other added, overriding on conflict
func (s Substitutor) PutAll(other Substitutor) Substitutor {
	other.Each(func(from, to Type) bool {
		s = s.Put(from, to)
		return true
	})
	return s
}

func (s Substitutor) Get(from Type) (Type, bool) {
	if s.m == nil {
		return nil, false
	}
	return s.m.Get(from)
}

func (s Substitutor) Len() int {
	if s.m == nil {
		return 0
	}
	return s.m.Len()
}

// Each calls f for each mapping until f returns false
func (s Substitutor) Each(f func(from, to Type) bool) {
	if s.m == nil {
		return
	}
	it := s.m.Iterator()
	for !it.Done() {
		k, v, _ := it.Next()
		if !f(k, v) {
			return
		}
	}
}

// Keys returns the keys of s ordered by their string form
func (s Substitutor) Keys() []Type {
	keys := make([]Type, 0, s.Len())
	s.Each(func(from, _ Type) bool {
		keys = append(keys, from)
		return true
	})
	slices.SortFunc(keys, func(a, b Type) int {
		return strings.Compare(a.String(), b.String())
	})
	return keys
}

func (s Substitutor) String() string {
	sb := &strings.Builder{}
	sb.WriteByte('{')
	for i, k := range s.Keys() {
		if i > 0 {
			sb.WriteString(", ")
		}
		v, _ := s.Get(k)
		sb.WriteString(k.String())
		sb.WriteString(" -> ")
		sb.WriteString(v.String())
	}
	sb.WriteByte('}')
	return sb.String()
}

// Substitute replaces every type parameter and inference variable of t which s maps
func Substitute(s Substitutor, t Type) Type {
	if s.Len() == 0 || t == nil {
		return t
	}
	return Map(t, func(t Type) (Type, bool) {
		switch t.(type) {
		case *TypeParam, *Var:
			if to, ok := s.Get(t); ok {
				return to, true
			}
		}
		return nil, false
	})
}

// SubstituteAll applies Substitute to each element of ts
func SubstituteAll(s Substitutor, ts []Type) []Type {
	out := make([]Type, len(ts))
	for i, t := range ts {
		out[i] = Substitute(s, t)
	}
	return out
}

// Hash is stable for substitutors holding the same mappings, regardless of insertion order
func (s Substitutor) Hash() uint64 {
	var h uint64
	s.Each(func(from, to Type) bool {
		k := from.Hash()*31 + to.Hash()
		h ^= k * 0x9e3779b97f4a7c15
		return true
	})
	return h
}
