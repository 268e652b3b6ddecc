package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStack(t *testing.T) {
	var s Stack[int]
	_, ok := s.Pop()
	assert.False(t, ok)

	s.Push(1, 2)
	s.Push(3)
	assert.Equal(t, 3, s.Len())
	v, ok := s.Pop()
	assert.True(t, ok)
	assert.Equal(t, 3, v)

	s.Push(4, 5)
	assert.Equal(t, []int{5, 4}, s.PopUntil(func(v int) bool { return v == 4 }))
	assert.Equal(t, []int{2, 1}, s.PopUntil(func(int) bool { return false }), "an unmatched stop drains the stack")
	assert.Zero(t, s.Len())
}
