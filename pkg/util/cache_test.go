package util_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kode4food/cadence/pkg/util"
)

func TestCacheBuildsOnce(t *testing.T) {
	c := util.NewCache[string, int](4)
	calls := 0
	build := func() (int, error) {
		calls++
		return 42, nil
	}

	v, err := c.Get("a", build)
	require.NoError(t, err)
	assert.Equal(t, 42, v)

	v, err = c.Get("a", build)
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, c.Len())
}

func TestCacheBuildError(t *testing.T) {
	c := util.NewCache[string, int](4)
	boom := errors.New("boom")

	_, err := c.Get("a", func() (int, error) { return 0, boom })
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, c.Len())

	v, err := c.Get("a", func() (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestCacheEvictsLeastRecent(t *testing.T) {
	c := util.NewCache[int, int](2)
	calls := map[int]int{}
	get := func(k int) {
		_, err := c.Get(k, func() (int, error) {
			calls[k]++
			return k * 10, nil
		})
		require.NoError(t, err)
	}

	get(1)
	get(2)
	get(1)
	get(3)
	assert.Equal(t, 2, c.Len())

	get(1)
	assert.Equal(t, 1, calls[1])

	get(2)
	assert.Equal(t, 2, calls[2])
}

func TestCacheMinimumCapacity(t *testing.T) {
	c := util.NewCache[string, string](0)
	for _, k := range []string{"a", "b", "c"} {
		_, err := c.Get(k, func() (string, error) { return k, nil })
		require.NoError(t, err)
	}
	assert.Equal(t, 1, c.Len())
}

func TestCacheConcurrent(t *testing.T) {
	c := util.NewCache[int, int](16)
	var wg sync.WaitGroup
	for i := range 64 {
		wg.Go(func() {
			v, err := c.Get(i%8, func() (int, error) { return i % 8, nil })
			assert.NoError(t, err)
			assert.Equal(t, i%8, v)
		})
	}
	wg.Wait()
	assert.Equal(t, 8, c.Len())
}
