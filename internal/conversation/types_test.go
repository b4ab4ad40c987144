package conversation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shutirtha-roy/tdp-chatbot-project/internal/generation"
)

func TestSessions_Get(t *testing.T) {
	r := NewSessions()

	a, id := r.Get("")
	require.NotEmpty(t, id)
	assert.Equal(t, id, a.ID)

	again, sameID := r.Get(id)
	assert.Same(t, a, again)
	assert.Equal(t, id, sameID)

	named, namedID := r.Get("student-42")
	assert.Equal(t, "student-42", namedID)
	assert.NotSame(t, a, named)
	assert.Equal(t, 2, r.Len())
}

func TestSessions_Reset(t *testing.T) {
	r := NewSessions()
	s, id := r.Get("")
	s.append(generation.RoleUser, "hi")
	s.append(generation.RoleAssistant, "hello")
	require.Equal(t, 2, s.Len())

	assert.True(t, r.Reset(id))
	assert.Zero(t, s.Len())
	assert.False(t, r.Reset("unknown"))
}

func TestSession_TurnsIsACopy(t *testing.T) {
	s := NewSession("x")
	s.append(generation.RoleUser, "hi")

	turns := s.Turns()
	turns[0].Content = "changed"
	assert.Equal(t, "hi", s.Turns()[0].Content)
}
