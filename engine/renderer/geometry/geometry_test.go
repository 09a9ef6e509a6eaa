package geometry

import (
	"encoding/binary"
	gomath "math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCube(t *testing.T) {
	mesh := Cube(1)
	require.Len(t, mesh.Vertices, 24)
	require.Len(t, mesh.Indices, 36)

	for _, v := range mesh.Vertices {
		for _, c := range v.Position {
			assert.InDelta(t, 0.5, gomath.Abs(float64(c)), 1e-6)
		}
	}
	for _, i := range mesh.Indices {
		assert.Less(t, int(i), len(mesh.Vertices))
	}

	// every triangle faces away from the center
	for i := 0; i < len(mesh.Indices); i += 3 {
		a := mesh.Vertices[mesh.Indices[i]].Position
		b := mesh.Vertices[mesh.Indices[i+1]].Position
		c := mesh.Vertices[mesh.Indices[i+2]].Position
		n := b.Sub(a).Cross(c.Sub(a))
		assert.Greater(t, n.Dot(a), float32(0), "triangle %d winds inwards", i/3)
	}
}

func TestGridLines(t *testing.T) {
	lines := GridLines(25)
	require.Len(t, lines, 200)

	assert.Equal(t, mgl32.Vec3{-25, 25, 0}, lines[0].Position)
	assert.Equal(t, mgl32.Vec3{-25, -25, 0}, lines[1].Position)
	assert.Equal(t, mgl32.Vec3{1, 0, 0}, lines[0].Color)
	// last red line at x = 24
	assert.Equal(t, float32(24), lines[99].Position.X())
	// last green line at y = 24
	assert.Equal(t, mgl32.Vec3{-25, 24, 0}, lines[len(lines)-1].Position)
	assert.Equal(t, mgl32.Vec3{0, 1, 0}, lines[len(lines)-1].Color)

	assert.InDelta(t, 1.0, lines[2].Position.X()-lines[0].Position.X(), 1e-6)
	assert.Nil(t, GridLines(0))
}

func TestInstanceGrid(t *testing.T) {
	instances := InstanceGrid(10, 10, 0)
	require.Len(t, instances, 100)

	// no rotation leaves the translation only
	assert.True(t, instances[0].Model.ApproxEqual(mgl32.Translate3D(0, 0, 1)))
	assert.True(t, instances[23].Model.ApproxEqual(mgl32.Translate3D(3, 2, 1)))

	UpdateInstanceGrid(instances, 10, 10, 90)
	// the fifth column gets no yaw, its X axis stays in the XZ plane
	m := instances[4].Model
	assert.InDelta(t, 0, m.Col(0).Y(), 1e-5)
	assert.InDelta(t, 4, m.Col(3).X(), 1e-5)
	assert.False(t, instances[9].Model.ApproxEqual(mgl32.Translate3D(9, 0, 1)))

	// a mismatched slice is left untouched
	before := instances[0]
	UpdateInstanceGrid(instances, 3, 3, 10)
	assert.Equal(t, before, instances[0])
}

func TestInstanceAngle(t *testing.T) {
	assert.InDelta(t, 90, InstanceAngle(0), 1e-5)
	assert.InDelta(t, 170, InstanceAngle(gomath.Pi/4), 1e-4)
	assert.InDelta(t, 10, InstanceAngle(3*gomath.Pi/4), 1e-4)
}

func TestEncoding(t *testing.T) {
	vb := EncodeVertices([]Vertex{{Position: mgl32.Vec3{1, 2, 3}, Color: mgl32.Vec3{0.5, 0, 1}}})
	require.Len(t, vb, VertexStride)
	assert.Equal(t, gomath.Float32bits(2), binary.LittleEndian.Uint32(vb[4:]))
	assert.Equal(t, gomath.Float32bits(0.5), binary.LittleEndian.Uint32(vb[12:]))

	ib := EncodeIndices([]uint16{1, 0x0203})
	assert.Equal(t, []byte{1, 0, 3, 2}, ib)

	inst := EncodeInstances(InstanceGrid(2, 1, 0))
	require.Len(t, inst, 2*InstanceStride)
	// translation x of the second instance is element 12 of its matrix
	assert.Equal(t, gomath.Float32bits(1), binary.LittleEndian.Uint32(inst[InstanceStride+48:]))

	assert.Len(t, EncodeQuad(FullScreenQuad()), 4*QuadStride)
}

func TestLayoutsFitTheirStride(t *testing.T) {
	for _, l := range []struct {
		name   string
		stride uint32
		last   uint32
	}{
		{"vertex", VertexLayout().Stride, 24},
		{"instance", InstanceLayout().Stride, 64},
		{"quad", QuadLayout().Stride, 8},
	} {
		assert.Equal(t, l.last, l.stride, l.name)
	}
	layout := InstanceLayout()
	require.Len(t, layout.Attributes, 4)
	assert.Equal(t, uint32(InstanceLocation+3), layout.Attributes[3].Location)
	assert.Equal(t, uint32(48), layout.Attributes[3].Offset)
}
