package model

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPositions_SpiralOrder(t *testing.T) {
	p := NewPositions(nil)

	want := []Position{
		{0, 0}, {1, 0}, {1, 1}, {0, 1}, {-1, 1}, {-1, 0}, {-1, -1}, {0, -1}, {1, -1},
	}
	for i, pos := range want {
		got, ok := p.GetOrSet(fmt.Sprintf("m%d", i))
		require.True(t, ok)
		assert.Equal(t, pos, got, "machine %d", i)
	}
}

func TestPositions_DistinctAndIdempotent(t *testing.T) {
	p := NewPositions(nil)

	seen := make(map[Position]string)
	for i := 0; i < 500; i++ {
		id := fmt.Sprintf("machine-%03d", i)
		pos, _ := p.GetOrSet(id)
		if other, dup := seen[pos]; dup {
			t.Fatalf("position %v assigned to both %s and %s", pos, other, id)
		}
		seen[pos] = id
	}

	for pos, id := range seen {
		got, _ := p.GetOrSet(id)
		assert.Equal(t, pos, got, "re-query of %s", id)
	}
}

func TestPositions_SkipsStoredCells(t *testing.T) {
	p := NewPositions(map[string]Position{
		"a": {0, 0},
		"b": {1, 0},
	})

	assert.Equal(t, Position{1, 1}, place(t, p, "c"))
	assert.Equal(t, Position{0, 0}, place(t, p, "a"))
}

func TestPositions_SetAndDeleteReleaseCells(t *testing.T) {
	p := NewPositions(nil)
	require.Equal(t, Position{0, 0}, place(t, p, "a"))

	p.Set("a", Position{5, 5})
	assert.Equal(t, Position{0, 0}, place(t, p, "b"), "origin freed after move")

	p.Delete("b")
	_, ok := p.Get("b")
	assert.False(t, ok)
	assert.Equal(t, Position{0, 0}, place(t, p, "c"))
}

func TestPositions_SharedCellStaysTaken(t *testing.T) {
	p := NewPositions(nil)
	require.Equal(t, Position{0, 0}, place(t, p, "gateway"))
	require.Equal(t, Position{1, 0}, place(t, p, "laptop"))

	// laptop joins gateway, then leaves again.
	p.Set("laptop", Position{0, 0})
	p.Set("laptop", Position{50, 50})
	assert.Equal(t, Position{1, 0}, place(t, p, "printer"), "gateway still holds the origin")

	// Deleting one of two machines on a cell keeps it taken.
	p.Set("printer", Position{50, 50})
	p.Delete("laptop")
	assert.Equal(t, Position{1, 0}, place(t, p, "nas"))

	// Setting the same cell twice does not count the machine twice.
	p.Set("gateway", Position{0, 0})
	p.Delete("gateway")
	assert.Equal(t, Position{0, 0}, place(t, p, "router"))
}

func TestPositions_SharedStoredCells(t *testing.T) {
	p := NewPositions(map[string]Position{
		"a": {0, 0},
		"b": {0, 0},
	})
	p.Delete("a")
	assert.Equal(t, Position{1, 0}, place(t, p, "c"))
}

func TestPositions_FallsBackToOriginWhenFull(t *testing.T) {
	p := NewPositions(nil)
	p.rings = 2

	for i := 0; i < 6; i++ {
		_, ok := p.GetOrSet(fmt.Sprintf("m%d", i))
		require.True(t, ok, "machine %d", i)
	}
	pos, ok := p.GetOrSet("overflow")
	assert.False(t, ok)
	assert.Equal(t, Position{0, 0}, pos)

	// An existing machine is found again without allocating.
	pos, ok = p.GetOrSet("overflow")
	assert.True(t, ok)
	assert.Equal(t, Position{0, 0}, pos)
}

func TestNewClanPlaced_ReportsUnplaced(t *testing.T) {
	p := NewPositions(nil)
	p.rings = 1

	_, unplaced := NewClanPlaced(ClanOutput{
		ID: "c",
		Machines: map[string]MachineOutput{
			"a": {Data: MachineData{Description: "a"}},
			"b": {Data: MachineData{Description: "b"}},
		},
	}, p)
	assert.Equal(t, []string{"a", "b"}, unplaced)
}

func place(t *testing.T, p *Positions, id string) Position {
	t.Helper()
	pos, ok := p.GetOrSet(id)
	require.True(t, ok, "no free cell for %s", id)
	return pos
}

func TestPositionBook_ForCreatesOnce(t *testing.T) {
	book := NewPositionBook(map[string]map[string]Position{
		"clan": {"m": {3, 4}},
	})

	pos, ok := book.For("clan").Get("m")
	require.True(t, ok)
	assert.Equal(t, Position{3, 4}, pos)

	fresh := book.For("other")
	assert.Same(t, fresh, book.For("other"))
}
