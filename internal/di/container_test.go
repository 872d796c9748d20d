package di

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContainerRegisterAndGet(t *testing.T) {
	c := New()

	type dummy struct{ n int }
	c.Register("dummy", &dummy{n: 7})

	got, err := c.Get("dummy")
	require.NoError(t, err)
	assert.Equal(t, 7, got.(*dummy).n)
}

func TestContainerLazyBuilder(t *testing.T) {
	c := New()

	builds := 0
	c.RegisterBuilder("lazy", func(c *Container) (interface{}, error) {
		builds++
		return "built", nil
	})

	assert.Equal(t, 0, builds, "builder must not run at registration")

	got, err := c.Get("lazy")
	require.NoError(t, err)
	assert.Equal(t, "built", got)

	_, err = c.Get("lazy")
	require.NoError(t, err)
	assert.Equal(t, 1, builds, "instances are cached after the first build")
}

func TestContainerBuilderError(t *testing.T) {
	c := New()

	boom := errors.New("cannot build")
	c.RegisterBuilder("broken", func(c *Container) (interface{}, error) {
		return nil, boom
	})

	_, err := c.Get("broken")
	assert.ErrorIs(t, err, boom)
}

func TestContainerGetUnknown(t *testing.T) {
	c := New()

	_, err := c.Get("nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nope")
}

func TestContainerMustGetPanics(t *testing.T) {
	c := New()
	assert.Panics(t, func() { c.MustGet("nope") })
}

func TestContainerHasAndServiceNames(t *testing.T) {
	c := New()
	c.Register("a", 1)
	c.RegisterBuilder("b", func(c *Container) (interface{}, error) { return 2, nil })

	assert.True(t, c.Has("a"))
	assert.True(t, c.Has("b"))
	assert.False(t, c.Has("c"))
	assert.ElementsMatch(t, []string{"a", "b"}, c.ServiceNames())
}

func TestContainerClear(t *testing.T) {
	c := New()
	c.Register("a", 1)

	c.Clear()
	assert.False(t, c.Has("a"))
}
