// Package geom traces cuboid wireframes as ordered point sequences.
//
// Tracing is pure and synchronous. Its cost grows with the cuboid perimeter
// divided by the step, so callers run it off the tick loop.
package geom

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/udisondev/regionvision/internal/model"
)

// ErrInvalidParameter is returned when the sampling step is not positive.
var ErrInvalidParameter = errors.New("geom: invalid parameter")

// eps absorbs float error when an edge length is an exact multiple of the step
// (e.g. 10 / 0.1 evaluating to 99.99999999999999).
const eps = 1e-9

// Wireframe returns the points tracing the 12 edges of the cuboid spanned by
// min and max: 4 bottom, 4 top, then 4 vertical.
//
// Each edge is sampled from its start in increments of step along the edge
// direction. An edge of length L yields floor(L/step) points; the remainder
// shorter than step is dropped, so the exact end point is never emitted.
// Zero-length edges yield nothing.
func Wireframe(min, max r3.Vec, step float64) ([]r3.Vec, error) {
	if !(step > 0) || math.IsInf(step, 1) {
		return nil, fmt.Errorf("%w: step %v must be > 0", ErrInvalidParameter, step)
	}

	x0, y0, z0 := min.X, min.Y, min.Z
	x1, y1, z1 := max.X, max.Y, max.Z

	edges := [12][2]r3.Vec{
		// bottom
		{{X: x0, Y: y0, Z: z0}, {X: x1, Y: y0, Z: z0}},
		{{X: x0, Y: y0, Z: z0}, {X: x0, Y: y0, Z: z1}},
		{{X: x1, Y: y0, Z: z0}, {X: x1, Y: y0, Z: z1}},
		{{X: x0, Y: y0, Z: z1}, {X: x1, Y: y0, Z: z1}},
		// top
		{{X: x0, Y: y1, Z: z0}, {X: x1, Y: y1, Z: z0}},
		{{X: x0, Y: y1, Z: z0}, {X: x0, Y: y1, Z: z1}},
		{{X: x1, Y: y1, Z: z0}, {X: x1, Y: y1, Z: z1}},
		{{X: x0, Y: y1, Z: z1}, {X: x1, Y: y1, Z: z1}},
		// pillars
		{{X: x0, Y: y0, Z: z0}, {X: x0, Y: y1, Z: z0}},
		{{X: x1, Y: y0, Z: z0}, {X: x1, Y: y1, Z: z0}},
		{{X: x0, Y: y0, Z: z1}, {X: x0, Y: y1, Z: z1}},
		{{X: x1, Y: y0, Z: z1}, {X: x1, Y: y1, Z: z1}},
	}

	total := 0
	for _, e := range edges {
		total += EdgePoints(r3.Norm(r3.Sub(e[1], e[0])), step)
	}

	points := make([]r3.Vec, 0, total)
	for _, e := range edges {
		points = appendEdge(points, e[0], e[1], step)
	}
	return points, nil
}

// Cuboid traces the wireframe of a block box. The box is inclusive of its
// maximum block, so max is expanded by one unit on every axis before tracing.
func Cuboid(box model.Box, step float64) ([]r3.Vec, error) {
	max := r3.Add(box.Max.Vec(), r3.Vec{X: 1, Y: 1, Z: 1})
	return Wireframe(box.Min.Vec(), max, step)
}

// EdgePoints returns how many points an edge of the given length contributes.
func EdgePoints(length, step float64) int {
	if length <= 0 || !(step > 0) {
		return 0
	}
	return int(math.Floor(length/step + eps))
}

// CuboidPoints returns len(Cuboid(box, step)) without tracing.
func CuboidPoints(box model.Box, step float64) int {
	dx := float64(box.Max.X - box.Min.X + 1)
	dy := float64(box.Max.Y - box.Min.Y + 1)
	dz := float64(box.Max.Z - box.Min.Z + 1)
	return 4 * (EdgePoints(dx, step) + EdgePoints(dy, step) + EdgePoints(dz, step))
}

func appendEdge(dst []r3.Vec, start, end r3.Vec, step float64) []r3.Vec {
	d := r3.Sub(end, start)
	length := r3.Norm(d)
	n := EdgePoints(length, step)
	if n == 0 {
		return dst
	}

	stepVec := r3.Scale(step, r3.Unit(d))
	for i := 0; i < n; i++ {
		dst = append(dst, r3.Add(start, r3.Scale(float64(i), stepVec)))
	}
	return dst
}
