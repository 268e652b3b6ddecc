// Package util holds small containers shared by the inference packages
package util

// Stack is a LIFO stack. The zero value is an empty stack.
type Stack[A any] struct {
	items []A
}

func (s *Stack[A]) Push(v ...A) {
	s.items = append(s.items, v...)
}

// Pop removes the top element, reporting false when the stack is empty
func (s *Stack[A]) Pop() (ret A, ok bool) {
	if len(s.items) == 0 {
		return ret, false
	}
	last := len(s.items) - 1
	ret = s.items[last]
	var zero A
	s.items[last] = zero
	s.items = s.items[:last]
	return ret, true
}

// PopUntil pops elements up to and including the first one for which stop
// returns true, and returns them in the order they were popped
func (s *Stack[A]) PopUntil(stop func(A) bool) []A {
	var out []A
	for {
		v, ok := s.Pop()
		if !ok {
			return out
		}
		out = append(out, v)
		if stop(v) {
			return out
		}
	}
}

func (s *Stack[A]) Len() int { return len(s.items) }
