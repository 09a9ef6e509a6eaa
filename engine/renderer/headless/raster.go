package headless

import (
	"encoding/binary"
	"fmt"
	gomath "math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/renderer/metadata"
)

// The rasterizer runs a fixed vertex stage in place of the pipeline's
// shaders: position is the attribute at location 0, an instance buffer
// holding four vec4 columns is the model matrix and the first 64 bytes of
// the uniform buffer are the view projection. Only depth is produced.

type vertexFetch struct {
	data   []byte
	stride uint32
	offset uint32
	typ    metadata.ShaderAttributeType
}

type rasterizer struct {
	depth    *DepthTexture
	desc     *metadata.PipelineDescriptor
	viewProj mgl32.Mat4
}

func readFloat32(data []byte, offset uint32) float32 {
	return gomath.Float32frombits(binary.LittleEndian.Uint32(data[offset:]))
}

func readMat4(data []byte, offset uint32) mgl32.Mat4 {
	var m mgl32.Mat4
	for i := range m {
		m[i] = readFloat32(data, offset+uint32(4*i))
	}
	return m
}

func bufferBytes(buffer metadata.Buffer) []byte {
	if b, ok := buffer.(*Buffer); ok {
		return b.data
	}
	return nil
}

// rasterize writes the depth of draw into the depth plane.
func (d *DepthTexture) rasterize(draw metadata.Draw) error {
	p := draw.Pipeline.(*Pipeline)
	desc := &p.desc
	if !desc.DepthTest || !desc.DepthWrite {
		return nil
	}
	bufs := draw.Buffers

	position, err := positionFetch(desc, bufs)
	if err != nil {
		return err
	}
	models, err := instanceModels(desc, bufs)
	if err != nil {
		return err
	}
	indices, err := drawIndices(bufs)
	if err != nil {
		return err
	}

	r := &rasterizer{depth: d, desc: desc, viewProj: mgl32.Ident4()}
	if desc.HasBinding(metadata.BindingTypeUniform) {
		if u := bufferBytes(bufs.Uniform); len(u) >= 64 {
			r.viewProj = readMat4(u, 0)
		}
	}

	vertexCount := uint32(len(position.data)) / position.stride
	clip := make([]mgl32.Vec4, len(indices))
	for _, model := range models {
		mvp := r.viewProj.Mul4(model)
		for i, index := range indices {
			if uint32(index) >= vertexCount {
				return fmt.Errorf("%w: index %d outside %d vertices in %s", core.ErrInvalidDescriptor, index, vertexCount, p.label)
			}
			clip[i] = mvp.Mul4x1(position.at(uint32(index)))
		}
		r.assemble(clip)
	}
	return nil
}

func (f vertexFetch) at(index uint32) mgl32.Vec4 {
	base := index*f.stride + f.offset
	v := mgl32.Vec4{0, 0, 0, 1}
	n := f.typ.Size() / 4
	for i := uint32(0); i < n && i < 3; i++ {
		v[i] = readFloat32(f.data, base+4*i)
	}
	return v
}

func positionFetch(desc *metadata.PipelineDescriptor, bufs *metadata.FrameBuffers) (vertexFetch, error) {
	data := bufferBytes(bufs.Vertex)
	for _, layout := range desc.Layouts {
		if layout.StepMode != metadata.VertexStepModeVertex {
			continue
		}
		for _, attr := range layout.Attributes {
			if attr.Location != 0 {
				continue
			}
			if layout.Stride == 0 || attr.Offset+attr.Type.Size() > layout.Stride {
				return vertexFetch{}, fmt.Errorf("%w: bad position attribute in %s", core.ErrInvalidDescriptor, desc.Name)
			}
			return vertexFetch{data: data, stride: layout.Stride, offset: attr.Offset, typ: attr.Type}, nil
		}
	}
	return vertexFetch{}, fmt.Errorf("%w: %s has no position attribute", core.ErrInvalidDescriptor, desc.Name)
}

// instanceModels returns one model matrix per instance, identity when the
// pipeline has no per instance transform.
func instanceModels(desc *metadata.PipelineDescriptor, bufs *metadata.FrameBuffers) ([]mgl32.Mat4, error) {
	count := bufs.InstanceCount
	if count == 0 {
		count = 1
	}
	for _, layout := range desc.Layouts {
		if layout.StepMode != metadata.VertexStepModeInstance || len(layout.Attributes) != 4 {
			continue
		}
		offset := layout.Attributes[0].Offset
		for _, attr := range layout.Attributes {
			if attr.Type != metadata.ShaderAttribTypeFloat32_4 {
				return nil, fmt.Errorf("%w: instance transform of %s is not four vec4", core.ErrInvalidDescriptor, desc.Name)
			}
			if attr.Offset < offset {
				offset = attr.Offset
			}
		}
		data := bufferBytes(bufs.Instance)
		if uint64(count-1)*uint64(layout.Stride)+uint64(offset)+64 > uint64(len(data)) {
			return nil, fmt.Errorf("%w: %d instances overflow the instance buffer of %s", core.ErrInvalidDescriptor, count, desc.Name)
		}
		models := make([]mgl32.Mat4, count)
		for i := range models {
			models[i] = readMat4(data, uint32(i)*layout.Stride+offset)
		}
		return models, nil
	}

	models := make([]mgl32.Mat4, count)
	for i := range models {
		models[i] = mgl32.Ident4()
	}
	return models, nil
}

func drawIndices(bufs *metadata.FrameBuffers) ([]uint16, error) {
	if bufs.Index != nil && bufs.IndexCount > 0 {
		data := bufferBytes(bufs.Index)
		if uint64(bufs.IndexCount)*2 > uint64(len(data)) {
			return nil, fmt.Errorf("%w: %d indices overflow the index buffer", core.ErrInvalidDescriptor, bufs.IndexCount)
		}
		indices := make([]uint16, bufs.IndexCount)
		for i := range indices {
			indices[i] = binary.LittleEndian.Uint16(data[2*i:])
		}
		return indices, nil
	}
	indices := make([]uint16, bufs.VertexCount)
	for i := range indices {
		indices[i] = uint16(i)
	}
	return indices, nil
}

// screen maps a clip space vertex to framebuffer x, y and depth z. Vertices
// behind the eye are rejected.
func (r *rasterizer) screen(v mgl32.Vec4) (mgl32.Vec3, bool) {
	if v.W() <= 1e-6 {
		return mgl32.Vec3{}, false
	}
	w, h := float32(r.depth.width), float32(r.depth.height)
	return mgl32.Vec3{
		(v.X()/v.W() + 1) * 0.5 * w,
		(v.Y()/v.W() + 1) * 0.5 * h,
		v.Z() / v.W(),
	}, true
}

func (r *rasterizer) assemble(clip []mgl32.Vec4) {
	switch r.desc.Topology {
	case metadata.PrimitiveTopologyTriangleList:
		for i := 0; i+2 < len(clip); i += 3 {
			r.triangle(clip[i], clip[i+1], clip[i+2])
		}
	case metadata.PrimitiveTopologyTriangleStrip:
		for i := 0; i+2 < len(clip); i++ {
			if i%2 == 0 {
				r.triangle(clip[i], clip[i+1], clip[i+2])
			} else {
				r.triangle(clip[i+1], clip[i], clip[i+2])
			}
		}
	case metadata.PrimitiveTopologyLineList:
		for i := 0; i+1 < len(clip); i += 2 {
			r.line(clip[i], clip[i+1])
		}
	}
}

func edge(a, b mgl32.Vec3, px, py float32) float32 {
	return (b.X()-a.X())*(py-a.Y()) - (b.Y()-a.Y())*(px-a.X())
}

func (r *rasterizer) culled(area float32) bool {
	// counter clockwise is front facing; with y down that is a negative area
	front := area < 0
	switch r.desc.CullMode {
	case metadata.FaceCullModeBack:
		return !front
	case metadata.FaceCullModeFront:
		return front
	case metadata.FaceCullModeFrontAndBack:
		return true
	}
	return false
}

func (r *rasterizer) triangle(c0, c1, c2 mgl32.Vec4) {
	p0, ok0 := r.screen(c0)
	p1, ok1 := r.screen(c1)
	p2, ok2 := r.screen(c2)
	if !ok0 || !ok1 || !ok2 {
		return
	}
	area := edge(p0, p1, p2.X(), p2.Y())
	if area == 0 || r.culled(area) {
		return
	}

	minX := int(gomath.Floor(float64(min(p0.X(), p1.X(), p2.X()))))
	maxX := int(gomath.Ceil(float64(max(p0.X(), p1.X(), p2.X()))))
	minY := int(gomath.Floor(float64(min(p0.Y(), p1.Y(), p2.Y()))))
	maxY := int(gomath.Ceil(float64(max(p0.Y(), p1.Y(), p2.Y()))))
	minX, minY = max(minX, 0), max(minY, 0)
	maxX, maxY = min(maxX, int(r.depth.width)-1), min(maxY, int(r.depth.height)-1)

	for y := minY; y <= maxY; y++ {
		for x := minX; x <= maxX; x++ {
			px, py := float32(x)+0.5, float32(y)+0.5
			l0 := edge(p1, p2, px, py) / area
			l1 := edge(p2, p0, px, py) / area
			l2 := edge(p0, p1, px, py) / area
			if l0 < 0 || l1 < 0 || l2 < 0 {
				continue
			}
			r.sample(uint32(x), uint32(y), l0*p0.Z()+l1*p1.Z()+l2*p2.Z())
		}
	}
}

func (r *rasterizer) line(c0, c1 mgl32.Vec4) {
	p0, ok0 := r.screen(c0)
	p1, ok1 := r.screen(c1)
	if !ok0 || !ok1 {
		return
	}
	d := p1.Sub(p0)
	steps := int(gomath.Ceil(float64(max(abs(d.X()), abs(d.Y())))))
	if steps == 0 {
		steps = 1
	}
	// lines projected far outside the viewport are walked at a coarser step
	if limit := int(r.depth.width+r.depth.height) * 4; steps > limit {
		steps = limit
	}
	for i := 0; i <= steps; i++ {
		p := p0.Add(d.Mul(float32(i) / float32(steps)))
		if p.X() < 0 || p.Y() < 0 {
			continue
		}
		x, y := uint32(p.X()), uint32(p.Y())
		if x >= r.depth.width || y >= r.depth.height {
			continue
		}
		r.sample(x, y, p.Z())
	}
}

func abs(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}

// sample runs the depth test at (x, y) and stores z when it passes.
func (r *rasterizer) sample(x, y uint32, z float32) {
	if z < 0 || z > 1 {
		return
	}
	cur := r.depth.At(x, y)
	pass := false
	switch r.desc.DepthCmp {
	case metadata.CompareOpLess:
		pass = z < cur
	case metadata.CompareOpLessOrEqual:
		pass = z <= cur
	case metadata.CompareOpAlways:
		pass = true
	}
	if pass {
		r.depth.Set(x, y, z)
	}
}
