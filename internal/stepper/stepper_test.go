package stepper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func steps(ids ...string) []Step[string] {
	out := make([]Step[string], len(ids))
	for i, id := range ids {
		out[i] = Step[string]{ID: id, Value: "view:" + id}
	}
	return out
}

func TestNew(t *testing.T) {
	_, err := New[string](nil, "")
	require.ErrorIs(t, err, ErrNoSteps)

	_, err = New(steps("a", "a"), "")
	require.Error(t, err)

	_, err = New(steps("a", "b"), "zz")
	require.ErrorIs(t, err, ErrUnknownStep)

	s, err := New(steps("a", "b", "c"), "b")
	require.NoError(t, err)
	assert.Equal(t, "b", s.Current().ID)
	assert.Equal(t, "view:b", s.Current().Value)
}

func TestNavigation(t *testing.T) {
	s, err := New(steps("address", "disk", "summary"), "")
	require.NoError(t, err)

	assert.False(t, s.HasPrevious())
	_, err = s.Previous()
	require.ErrorIs(t, err, ErrNoPrevious)

	tests := []struct {
		move func() (Step[string], error)
		want string
	}{
		{s.Next, "disk"},
		{s.Next, "summary"},
		{s.Previous, "disk"},
		{s.Next, "summary"},
	}
	for _, tt := range tests {
		step, err := tt.move()
		require.NoError(t, err)
		assert.Equal(t, tt.want, step.ID)
	}

	assert.False(t, s.HasNext())
	step, err := s.Next()
	require.ErrorIs(t, err, ErrNoNext)
	assert.Equal(t, "summary", step.ID, "failed move stays put")

	require.NoError(t, s.SetActive("address"))
	i, n := s.Position()
	assert.Equal(t, 0, i)
	assert.Equal(t, 3, n)
	require.ErrorIs(t, s.SetActive("nope"), ErrUnknownStep)
}

type addressForm struct{ Host string }
type diskForm struct{ Path string }

func TestSub_IsLazyTypedAndIsolated(t *testing.T) {
	s, err := New(steps("address", "disk"), "")
	require.NoError(t, err)

	addr := Sub[addressForm](s, "address")
	addr.Host = "10.0.0.2"
	assert.Equal(t, "10.0.0.2", Sub[addressForm](s, "address").Host, "same pointer on reuse")

	assert.Empty(t, Sub[addressForm](s, "other").Host, "namespaces are isolated")
	assert.Empty(t, Sub[diskForm](s, "address").Path, "types are isolated")

	s.Reset()
	assert.Equal(t, "address", s.Current().ID)
	assert.Empty(t, Sub[addressForm](s, "address").Host)
}
