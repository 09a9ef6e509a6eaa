// Package geometry builds the meshes the scene draws and encodes them for
// upload.
package geometry

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/spaghettifunk/prism/engine/renderer/metadata"
)

const (
	VertexStride   = 24
	InstanceStride = 64
	QuadStride     = 8

	// First shader location of the per instance model matrix.
	InstanceLocation = 5
)

/** @brief A colored vertex. Locations 0 and 1 in the shaders. */
type Vertex struct {
	Position mgl32.Vec3
	Color    mgl32.Vec3
}

/** @brief Indexed triangle list. Indices are 16 bit. */
type Mesh struct {
	Vertices []Vertex
	Indices  []uint16
}

func VertexLayout() metadata.VertexLayout {
	return metadata.VertexLayout{
		Stride:   VertexStride,
		StepMode: metadata.VertexStepModeVertex,
		Attributes: []metadata.VertexAttribute{
			{Location: 0, Offset: 0, Type: metadata.ShaderAttribTypeFloat32_3},
			{Location: 1, Offset: 12, Type: metadata.ShaderAttribTypeFloat32_3},
		},
	}
}

// InstanceLayout feeds a mat4 as four vec4 attributes starting at
// InstanceLocation.
func InstanceLayout() metadata.VertexLayout {
	attrs := make([]metadata.VertexAttribute, 4)
	for i := range attrs {
		attrs[i] = metadata.VertexAttribute{
			Location: InstanceLocation + uint32(i),
			Offset:   uint32(i) * 16,
			Type:     metadata.ShaderAttribTypeFloat32_4,
		}
	}
	return metadata.VertexLayout{
		Stride:     InstanceStride,
		StepMode:   metadata.VertexStepModeInstance,
		Attributes: attrs,
	}
}

func QuadLayout() metadata.VertexLayout {
	return metadata.VertexLayout{
		Stride:   QuadStride,
		StepMode: metadata.VertexStepModeVertex,
		Attributes: []metadata.VertexAttribute{
			{Location: 0, Offset: 0, Type: metadata.ShaderAttribTypeFloat32_2},
		},
	}
}

var cubeFaces = [6]struct {
	normal, u, v mgl32.Vec3
	color        mgl32.Vec3
}{
	{mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 1, 0}, mgl32.Vec3{0, 0, 1}, mgl32.Vec3{1, 0, 0}},
	{mgl32.Vec3{-1, 0, 0}, mgl32.Vec3{0, 0, 1}, mgl32.Vec3{0, 1, 0}, mgl32.Vec3{0, 1, 1}},
	{mgl32.Vec3{0, 1, 0}, mgl32.Vec3{0, 0, 1}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 1, 0}},
	{mgl32.Vec3{0, -1, 0}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 0, 1}, mgl32.Vec3{1, 0, 1}},
	{mgl32.Vec3{0, 0, 1}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 1, 0}, mgl32.Vec3{0, 0, 1}},
	{mgl32.Vec3{0, 0, -1}, mgl32.Vec3{0, 1, 0}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{1, 1, 0}},
}

// Cube builds a cube of the given edge size centered on the origin, one flat
// color per face. Every face winds counter clockwise seen from outside.
func Cube(size float32) Mesh {
	h := size / 2
	mesh := Mesh{
		Vertices: make([]Vertex, 0, 24),
		Indices:  make([]uint16, 0, 36),
	}
	for _, f := range cubeFaces {
		base := uint16(len(mesh.Vertices))
		center := f.normal.Mul(h)
		u, v := f.u.Mul(h), f.v.Mul(h)
		corners := [4]mgl32.Vec3{
			center.Sub(u).Sub(v),
			center.Add(u).Sub(v),
			center.Add(u).Add(v),
			center.Sub(u).Add(v),
		}
		for _, c := range corners {
			mesh.Vertices = append(mesh.Vertices, Vertex{Position: c, Color: f.color})
		}
		mesh.Indices = append(mesh.Indices, base, base+1, base+2, base, base+2, base+3)
	}
	return mesh
}

// GridLines builds a line list on the z = 0 plane: red lines parallel to Y
// at x = -half .. half-1, then green lines parallel to X at the same y
// values. Every line spans [-half, half].
func GridLines(half int) []Vertex {
	if half <= 0 {
		return nil
	}
	red := mgl32.Vec3{1, 0, 0}
	green := mgl32.Vec3{0, 1, 0}
	h := float32(half)

	vertices := make([]Vertex, 0, half*8)
	for i := -half; i < half; i++ {
		x := float32(i)
		vertices = append(vertices,
			Vertex{Position: mgl32.Vec3{x, h, 0}, Color: red},
			Vertex{Position: mgl32.Vec3{x, -h, 0}, Color: red},
		)
	}
	for i := -half; i < half; i++ {
		y := float32(i)
		vertices = append(vertices,
			Vertex{Position: mgl32.Vec3{h, y, 0}, Color: green},
			Vertex{Position: mgl32.Vec3{-h, y, 0}, Color: green},
		)
	}
	return vertices
}

// FullScreenQuad covers clip space as a four vertex triangle strip.
func FullScreenQuad() []mgl32.Vec2 {
	return []mgl32.Vec2{
		{-1, -1},
		{1, -1},
		{-1, 1},
		{1, 1},
	}
}
