package headless

import (
	"bytes"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/renderer/geometry"
	"github.com/spaghettifunk/prism/engine/renderer/metadata"
)

type window struct{ w, h uint32 }

func (w window) FramebufferSize() (uint32, uint32) { return w.w, w.h }

func configured(t *testing.T, width, height uint32) *Backend {
	t.Helper()
	b := New()
	_, err := b.Initialize(window{width, height})
	require.NoError(t, err)
	require.NoError(t, b.Configure(metadata.SurfaceConfig{Format: metadata.FormatBGRA8Unorm, Width: width, Height: height}))
	return b
}

func TestAcquireRequiresPresent(t *testing.T) {
	b := configured(t, 4, 4)

	f, err := b.Acquire()
	require.NoError(t, err)
	assert.Equal(t, uint32(0), f.ImageIndex)

	_, err = b.Acquire()
	assert.ErrorIs(t, err, core.ErrInvalidState)

	require.NoError(t, b.Present(f))
	f, err = b.Acquire()
	require.NoError(t, err)
	assert.Equal(t, uint32(1), f.ImageIndex)
}

func TestFaultInjection(t *testing.T) {
	b := configured(t, 4, 4)
	b.FailAcquire(core.ErrSurfaceTimeout, 2)

	_, err := b.Acquire()
	assert.ErrorIs(t, err, core.ErrSurfaceTimeout)
	_, err = b.Acquire()
	assert.ErrorIs(t, err, core.ErrSurfaceTimeout)
	_, err = b.Acquire()
	assert.NoError(t, err)
	assert.Equal(t, 3, b.Count(OpAcquire))
}

func TestRecordRejectsMismatchedDepth(t *testing.T) {
	b := configured(t, 8, 8)
	depth, err := b.CreateDepthTexture("depth", 4, 4)
	require.NoError(t, err)

	f, err := b.Acquire()
	require.NoError(t, err)
	err = b.Record(f, depth, nil)
	assert.ErrorIs(t, err, core.ErrDepthMismatch)
}

func TestRecordRejectsWrongPassKind(t *testing.T) {
	b := configured(t, 4, 4)
	depth, err := b.CreateDepthTexture("depth", 4, 4)
	require.NoError(t, err)
	p, err := b.CreatePipeline("overlay", &metadata.PipelineDescriptor{Name: "overlay", Pass: metadata.PassKindOverlay})
	require.NoError(t, err)

	f, err := b.Acquire()
	require.NoError(t, err)
	err = b.Record(f, depth, []*metadata.Pass{{
		Label: "main",
		Kind:  metadata.PassKindScene,
		Draws: []metadata.Draw{{Pipeline: p, Buffers: &metadata.FrameBuffers{}}},
	}})
	assert.ErrorIs(t, err, core.ErrInvalidDescriptor)
}

func TestRecordClearsDepth(t *testing.T) {
	b := configured(t, 2, 2)
	d, err := b.CreateDepthTexture("depth", 2, 2)
	require.NoError(t, err)
	depth := d.(*DepthTexture)
	depth.Set(1, 1, 0.25)

	f, err := b.Acquire()
	require.NoError(t, err)
	require.NoError(t, b.Record(f, depth, []*metadata.Pass{{Kind: metadata.PassKindScene, ClearDepth: 0.5}}))
	assert.Equal(t, float32(0.5), depth.At(1, 1))
}

func TestDepthGenerations(t *testing.T) {
	b := configured(t, 2, 2)
	a, err := b.CreateDepthTexture("a", 2, 2)
	require.NoError(t, err)
	c, err := b.CreateDepthTexture("c", 2, 2)
	require.NoError(t, err)
	assert.Greater(t, c.Generation(), a.Generation())

	a.Destroy()
	a.Destroy()
	assert.Equal(t, 1, b.LiveDepthTextures())
}

func TestWriteBuffer(t *testing.T) {
	b := configured(t, 2, 2)
	buf, err := b.CreateBuffer("u", metadata.BufferUsageUniform, make([]byte, 8))
	require.NoError(t, err)

	require.NoError(t, b.WriteBuffer(buf, 4, []byte{1, 2, 3, 4}))
	assert.Equal(t, []byte{0, 0, 0, 0, 1, 2, 3, 4}, buf.(*Buffer).Bytes())
	assert.ErrorIs(t, b.WriteBuffer(buf, 6, []byte{1, 2, 3}), core.ErrInvalidDescriptor)
}

func TestDepthImage(t *testing.T) {
	b := configured(t, 3, 1)
	d, err := b.CreateDepthTexture("depth", 3, 1)
	require.NoError(t, err)
	depth := d.(*DepthTexture)
	depth.Set(0, 0, 0)
	depth.Set(1, 0, 0.99)
	depth.Set(2, 0, 1)

	img := depth.DepthImage()
	assert.InDelta(t, 0, int(img.GrayAt(0, 0).Y), 1)
	assert.InDelta(t, 43, int(img.GrayAt(1, 0).Y), 1)
	assert.Equal(t, uint8(255), img.GrayAt(2, 0).Y)
}

func TestEncodeFormats(t *testing.T) {
	b := configured(t, 5, 3)
	d, err := b.CreateDepthTexture("depth", 5, 3)
	require.NoError(t, err)
	depth := d.(*DepthTexture)

	var buf bytes.Buffer
	require.NoError(t, depth.Encode(&buf, "png"))
	img, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, 5, img.Bounds().Dx())

	buf.Reset()
	require.NoError(t, depth.Encode(&buf, "bmp"))
	img, err = bmp.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, 3, img.Bounds().Dy())

	buf.Reset()
	require.NoError(t, depth.Encode(&buf, "TIFF"))
	_, err = tiff.Decode(&buf)
	require.NoError(t, err)

	assert.Error(t, depth.Encode(&buf, "gif"))
}

func TestSnapshot(t *testing.T) {
	b := configured(t, 4, 2)
	d, err := b.CreateDepthTexture("depth", 4, 2)
	require.NoError(t, err)
	d.(*DepthTexture).Set(1, 1, 0.5)

	path := filepath.Join(t.TempDir(), "depth.png")
	require.NoError(t, b.Snapshot(path))
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, 4, img.Bounds().Dx())
	assert.NotEqual(t, img.At(0, 0), img.At(1, 1))

	gif := filepath.Join(t.TempDir(), "depth.gif")
	assert.Error(t, b.Snapshot(gif))
	_, err = os.Stat(gif)
	assert.True(t, os.IsNotExist(err), "unsupported formats leave no file behind")

	b.CurrentDepth().Destroy()
	assert.ErrorIs(t, b.Snapshot(path), core.ErrInvalidState)
}

type drawTarget struct {
	backend *Backend
	depth   *DepthTexture
}

func newDrawTarget(t *testing.T, width, height uint32) *drawTarget {
	t.Helper()
	b := configured(t, width, height)
	d, err := b.CreateDepthTexture("depth", width, height)
	require.NoError(t, err)
	return &drawTarget{backend: b, depth: d.(*DepthTexture)}
}

func (dt *drawTarget) pipeline(t *testing.T, topology metadata.PrimitiveTopology, cull metadata.FaceCullMode) metadata.Pipeline {
	t.Helper()
	p, err := dt.backend.CreatePipeline("draw", &metadata.PipelineDescriptor{
		Name:       "draw",
		Layouts:    []metadata.VertexLayout{geometry.VertexLayout()},
		Topology:   topology,
		CullMode:   cull,
		Pass:       metadata.PassKindScene,
		DepthTest:  true,
		DepthWrite: true,
		DepthCmp:   metadata.CompareOpLess,
	})
	require.NoError(t, err)
	return p
}

func (dt *drawTarget) vertices(t *testing.T, points ...mgl32.Vec3) *metadata.FrameBuffers {
	t.Helper()
	vs := make([]geometry.Vertex, len(points))
	for i, p := range points {
		vs[i] = geometry.Vertex{Position: p}
	}
	buf, err := dt.backend.CreateBuffer("vertices", metadata.BufferUsageVertex, geometry.EncodeVertices(vs))
	require.NoError(t, err)
	return &metadata.FrameBuffers{Vertex: buf, VertexCount: uint32(len(points)), InstanceCount: 1}
}

func (dt *drawTarget) render(t *testing.T, draws ...metadata.Draw) {
	t.Helper()
	f, err := dt.backend.Acquire()
	require.NoError(t, err)
	require.NoError(t, dt.backend.Record(f, dt.depth, []*metadata.Pass{{Label: "main", Kind: metadata.PassKindScene, ClearDepth: 1, Draws: draws}}))
	require.NoError(t, dt.backend.Present(f))
}

func TestRecordRasterizesTriangles(t *testing.T) {
	dt := newDrawTarget(t, 4, 4)
	p := dt.pipeline(t, metadata.PrimitiveTopologyTriangleList, metadata.FaceCullModeNone)

	// covers the whole target at 0.5, then the top left half at 0.25
	full := dt.vertices(t, mgl32.Vec3{-1, -1, 0.5}, mgl32.Vec3{3, -1, 0.5}, mgl32.Vec3{-1, 3, 0.5})
	half := dt.vertices(t, mgl32.Vec3{-1, -1, 0.25}, mgl32.Vec3{1, -1, 0.25}, mgl32.Vec3{-1, 1, 0.25})
	behind := dt.vertices(t, mgl32.Vec3{-1, -1, 0.75}, mgl32.Vec3{3, -1, 0.75}, mgl32.Vec3{-1, 3, 0.75})
	dt.render(t,
		metadata.Draw{Pipeline: p, Buffers: full},
		metadata.Draw{Pipeline: p, Buffers: half},
		metadata.Draw{Pipeline: p, Buffers: behind},
	)

	assert.Equal(t, float32(0.25), dt.depth.At(0, 0))
	assert.Equal(t, float32(0.5), dt.depth.At(3, 3), "farther triangles fail the depth test")
	assert.Equal(t, float32(0.5), dt.depth.At(3, 1))
}

func TestRecordCullsBackFaces(t *testing.T) {
	dt := newDrawTarget(t, 4, 4)
	p := dt.pipeline(t, metadata.PrimitiveTopologyTriangleList, metadata.FaceCullModeBack)

	clockwise := dt.vertices(t, mgl32.Vec3{-1, -1, 0.5}, mgl32.Vec3{3, -1, 0.5}, mgl32.Vec3{-1, 3, 0.5})
	dt.render(t, metadata.Draw{Pipeline: p, Buffers: clockwise})
	assert.Equal(t, float32(1), dt.depth.At(1, 1))

	counterClockwise := dt.vertices(t, mgl32.Vec3{-1, -1, 0.5}, mgl32.Vec3{-1, 3, 0.5}, mgl32.Vec3{3, -1, 0.5})
	dt.render(t, metadata.Draw{Pipeline: p, Buffers: counterClockwise})
	assert.Equal(t, float32(0.5), dt.depth.At(1, 1))
}

func TestRecordRasterizesLines(t *testing.T) {
	dt := newDrawTarget(t, 4, 4)
	p := dt.pipeline(t, metadata.PrimitiveTopologyLineList, metadata.FaceCullModeNone)

	line := dt.vertices(t, mgl32.Vec3{-1, 0.25, 0.3}, mgl32.Vec3{0.99, 0.25, 0.3})
	dt.render(t, metadata.Draw{Pipeline: p, Buffers: line})
	for x := uint32(0); x < 4; x++ {
		assert.InDelta(t, 0.3, dt.depth.At(x, 2), 1e-6)
		assert.Equal(t, float32(1), dt.depth.At(x, 0))
	}
}

func TestRecordRejectsOutOfRangeIndices(t *testing.T) {
	dt := newDrawTarget(t, 4, 4)
	p := dt.pipeline(t, metadata.PrimitiveTopologyTriangleList, metadata.FaceCullModeNone)
	bufs := dt.vertices(t, mgl32.Vec3{}, mgl32.Vec3{}, mgl32.Vec3{})
	ib, err := dt.backend.CreateBuffer("indices", metadata.BufferUsageIndex, geometry.EncodeIndices([]uint16{0, 1, 7}))
	require.NoError(t, err)
	bufs.Index, bufs.IndexCount = ib, 3

	f, err := dt.backend.Acquire()
	require.NoError(t, err)
	err = dt.backend.Record(f, dt.depth, []*metadata.Pass{{Kind: metadata.PassKindScene, ClearDepth: 1, Draws: []metadata.Draw{{Pipeline: p, Buffers: bufs}}}})
	assert.ErrorIs(t, err, core.ErrInvalidDescriptor)
}
