package grid

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridnav/planner-test-harness/nav"
)

func TestOpenSpacePresetIsAllFree(t *testing.T) {
	c, err := NewFakeCostmap(OpenSpace)
	require.NoError(t, err)

	props := c.Properties()
	assert.Equal(t, 10, props.SizeX)
	assert.Equal(t, 10, props.SizeY)
	for y := 0; y < props.SizeY; y++ {
		for x := 0; x < props.SizeX; x++ {
			assert.True(t, c.IsFree(x, y), "cell (%d,%d)", x, y)
		}
	}
}

func TestBoundedPresetHasOccupiedBorder(t *testing.T) {
	c, err := NewFakeCostmap(Bounded)
	require.NoError(t, err)

	assert.False(t, c.IsFree(0, 0))
	assert.False(t, c.IsFree(9, 5))
	assert.False(t, c.IsFree(5, 9))
	assert.True(t, c.IsFree(1, 1))
	assert.True(t, c.IsFree(5, 5))
}

func TestObstaclePresets(t *testing.T) {
	c, err := NewFakeCostmap(BottomLeftObstacle)
	require.NoError(t, err)
	assert.False(t, c.IsFree(3, 3))
	assert.True(t, c.IsFree(7, 7))

	c, err = NewFakeCostmap(TopLeftObstacle)
	require.NoError(t, err)
	assert.False(t, c.IsFree(3, 6))
	assert.True(t, c.IsFree(3, 3))
}

func TestUnknownPresetIsAnError(t *testing.T) {
	_, err := NewFakeCostmap(Preset("no_such_grid"))
	assert.Error(t, err)
}

func TestOutOfBoundsCellsAreNotFree(t *testing.T) {
	c, err := NewFakeCostmap(OpenSpace)
	require.NoError(t, err)

	assert.False(t, c.IsFree(-1, 0))
	assert.False(t, c.IsFree(0, -1))
	assert.False(t, c.IsFree(10, 0))
	assert.False(t, c.IsFree(0, 10))
	assert.Equal(t, CostUnknown, c.CellValue(-1, -1))
}

func TestSampleFreePositionAvoidsObstacles(t *testing.T) {
	c, err := NewFakeCostmap(Maze)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 200; i++ {
		p := c.SampleFreePosition(rng)
		x, y := p.Cell()
		assert.True(t, c.IsFree(x, y), "sampled occupied cell (%d,%d)", x, y)
		assert.GreaterOrEqual(t, x, 1)
		assert.GreaterOrEqual(t, y, 1)
		assert.Less(t, x, 10)
		assert.Less(t, y, 10)
	}
}

func TestRegionSnapshotCopiesSubWindow(t *testing.T) {
	c, err := NewFakeCostmap(Bounded)
	require.NoError(t, err)

	region := c.Region(nav.CostmapSpecs{OriginX: 0, OriginY: 0, Width: 3, Height: 2})
	assert.Equal(t, 3, region.Map.Width)
	assert.Equal(t, 2, region.Map.Height)
	// Bottom row is the border, second row starts with the border cell.
	assert.Equal(t, []int8{CostLethal, CostLethal, CostLethal, CostLethal, CostFree, CostFree},
		region.Map.Data)
}

func TestRegionSnapshotClipsToGrid(t *testing.T) {
	c, err := NewFakeCostmap(OpenSpace)
	require.NoError(t, err)

	region := c.Region(nav.CostmapSpecs{OriginX: 8, OriginY: 8, Width: 10, Height: 10})
	assert.Equal(t, 2, region.Map.Width)
	assert.Equal(t, 2, region.Map.Height)
	assert.Equal(t, 8, region.Specs.OriginX)
	assert.Len(t, region.Map.Data, 4)
}

func TestOccupancyRoundTrip(t *testing.T) {
	c, err := NewFakeCostmap(Bounded)
	require.NoError(t, err)

	occ := c.Occupancy()
	assert.Equal(t, 10, occ.Width)
	assert.Equal(t, 10, occ.Height)
	assert.Equal(t, CostLethal, occ.Data[0])
	assert.Equal(t, CostFree, occ.Data[11])
}
