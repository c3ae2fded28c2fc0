package state

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pair struct {
	A int
	B int
}

func TestCell_EmptyLoad(t *testing.T) {
	c := NewCell[string]()

	v, ok := c.Load()
	assert.False(t, ok)
	assert.Empty(t, v)
}

func TestCell_LastWriteWins(t *testing.T) {
	c := NewCell[int]()

	c.Store(1)
	c.Store(2)
	c.Store(3)

	v, ok := c.Load()
	require.True(t, ok)
	assert.Equal(t, 3, v)
}

func TestCell_StoreCopiesValue(t *testing.T) {
	c := NewCell[pair]()

	p := pair{A: 1, B: 1}
	c.Store(p)
	p.A = 99

	v, _ := c.Load()
	assert.Equal(t, 1, v.A)
}

func TestCell_ConcurrentReadersSeeWholeValues(t *testing.T) {
	c := NewCell[pair]()
	c.Store(pair{A: 0, B: 0})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 1; i <= 1000; i++ {
			c.Store(pair{A: i, B: i})
		}
	}()

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				v, ok := c.Load()
				if assert.True(t, ok) {
					assert.Equal(t, v.A, v.B)
				}
			}
		}()
	}

	wg.Wait()

	v, _ := c.Load()
	assert.Equal(t, pair{A: 1000, B: 1000}, v)
}
