package geometry

import (
	"encoding/binary"
	gomath "math"

	"github.com/go-gl/mathgl/mgl32"
)

// Everything uploaded to the device is little endian, tightly packed.

func appendFloat32(b []byte, f float32) []byte {
	return binary.LittleEndian.AppendUint32(b, gomath.Float32bits(f))
}

func appendVec3(b []byte, v mgl32.Vec3) []byte {
	for _, f := range v {
		b = appendFloat32(b, f)
	}
	return b
}

// AppendMat4 writes m column by column.
func AppendMat4(b []byte, m mgl32.Mat4) []byte {
	for _, f := range m {
		b = appendFloat32(b, f)
	}
	return b
}

func EncodeVertices(vertices []Vertex) []byte {
	b := make([]byte, 0, len(vertices)*VertexStride)
	for _, v := range vertices {
		b = appendVec3(b, v.Position)
		b = appendVec3(b, v.Color)
	}
	return b
}

func EncodeIndices(indices []uint16) []byte {
	b := make([]byte, 0, len(indices)*2)
	for _, i := range indices {
		b = binary.LittleEndian.AppendUint16(b, i)
	}
	return b
}

func EncodeInstances(instances []Instance) []byte {
	b := make([]byte, 0, len(instances)*InstanceStride)
	for _, in := range instances {
		b = AppendMat4(b, in.Model)
	}
	return b
}

func EncodeQuad(points []mgl32.Vec2) []byte {
	b := make([]byte, 0, len(points)*QuadStride)
	for _, p := range points {
		b = appendFloat32(b, p.X())
		b = appendFloat32(b, p.Y())
	}
	return b
}
