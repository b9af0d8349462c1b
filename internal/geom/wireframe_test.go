package geom

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/udisondev/regionvision/internal/model"
)

func TestWireframe_UnitCube(t *testing.T) {
	points, err := Wireframe(r3.Vec{}, r3.Vec{X: 1, Y: 1, Z: 1}, 0.5)
	require.NoError(t, err)

	// 12 edges of length 1, two points each (0 and 0.5).
	require.Len(t, points, 24)

	// First edge runs along +X from the origin.
	want := []r3.Vec{{X: 0}, {X: 0.5}}
	if diff := cmp.Diff(want, points[:2]); diff != "" {
		t.Errorf("first edge mismatch (-want +got):\n%s", diff)
	}

	// Last edge is the vertical pillar at (1, *, 1).
	wantLast := []r3.Vec{{X: 1, Y: 0, Z: 1}, {X: 1, Y: 0.5, Z: 1}}
	if diff := cmp.Diff(wantLast, points[22:]); diff != "" {
		t.Errorf("last edge mismatch (-want +got):\n%s", diff)
	}
}

func TestWireframe_EdgeCountIsFloor(t *testing.T) {
	tests := []struct {
		name    string
		size    r3.Vec
		step    float64
		perEdge [3]int // along X, Y, Z
	}{
		{"exact multiple", r3.Vec{X: 10, Y: 4, Z: 6}, 0.5, [3]int{20, 8, 12}},
		{"fraction dropped", r3.Vec{X: 1, Y: 1, Z: 1}, 0.3, [3]int{3, 3, 3}},
		{"tenth step", r3.Vec{X: 10, Y: 3, Z: 7}, 0.1, [3]int{100, 30, 70}},
		{"step longer than edge", r3.Vec{X: 1, Y: 2, Z: 5}, 1.5, [3]int{0, 1, 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			points, err := Wireframe(r3.Vec{}, tt.size, tt.step)
			require.NoError(t, err)

			want := 4 * (tt.perEdge[0] + tt.perEdge[1] + tt.perEdge[2])
			assert.Len(t, points, want)
		})
	}
}

func TestWireframe_EndpointExcluded(t *testing.T) {
	points, err := Wireframe(r3.Vec{}, r3.Vec{X: 2}, 1)
	require.NoError(t, err)

	// Y and Z are degenerate: only the four X edges remain, each sampled at 0 and 1.
	for _, p := range points {
		assert.Less(t, p.X, 2.0, "end point must not be emitted")
	}
}

func TestWireframe_ZeroLengthEdges(t *testing.T) {
	// Flat in Y: vertical pillars contribute nothing, top and bottom coincide.
	points, err := Wireframe(r3.Vec{}, r3.Vec{X: 2, Y: 0, Z: 2}, 1)
	require.NoError(t, err)
	assert.Len(t, points, 16)

	// Fully degenerate cuboid.
	points, err = Wireframe(r3.Vec{X: 5, Y: 5, Z: 5}, r3.Vec{X: 5, Y: 5, Z: 5}, 0.25)
	require.NoError(t, err)
	assert.Empty(t, points)
}

func TestWireframe_InvalidStep(t *testing.T) {
	for _, step := range []float64{0, -0.25} {
		_, err := Wireframe(r3.Vec{}, r3.Vec{X: 1, Y: 1, Z: 1}, step)
		assert.ErrorIs(t, err, ErrInvalidParameter, "step %v", step)
	}
}

func TestCuboid_ExpandsMaxByOneBlock(t *testing.T) {
	box := model.NewBox(model.NewBlockPos(0, 64, 0), model.NewBlockPos(9, 73, 9))

	points, err := Cuboid(box, 0.5)
	require.NoError(t, err)

	// 10x10x10 blocks -> edges of length 10 -> 20 points each.
	assert.Len(t, points, 12*20)
	assert.Equal(t, CuboidPoints(box, 0.5), len(points))

	var maxX float64
	for _, p := range points {
		maxX = max(maxX, p.X)
	}
	assert.InDelta(t, 10.0, maxX, 1e-9, "far edges sit on the expanded face")
}

func TestCuboid_SingleBlock(t *testing.T) {
	box := model.NewBox(model.NewBlockPos(3, 3, 3), model.NewBlockPos(3, 3, 3))

	points, err := Cuboid(box, 1.0)
	require.NoError(t, err)
	assert.Len(t, points, 12)
}

func BenchmarkCuboid(b *testing.B) {
	box := model.NewBox(model.NewBlockPos(-500, 0, -500), model.NewBlockPos(500, 255, 500))
	b.ReportAllocs()
	for b.Loop() {
		_, _ = Cuboid(box, 0.25)
	}
}
