package renderer_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/renderer"
	"github.com/spaghettifunk/prism/engine/renderer/headless"
	"github.com/spaghettifunk/prism/engine/renderer/metadata"
)

type window struct {
	width, height uint32
}

func (w *window) FramebufferSize() (uint32, uint32) { return w.width, w.height }

func shader(stage metadata.ShaderStage) metadata.ShaderSource {
	return metadata.ShaderSource{Name: stage.String(), Stage: stage, EntryPoint: "main", Code: []byte{0x03, 0x02, 0x23, 0x07}}
}

func sceneDescriptor() *metadata.PipelineDescriptor {
	return &metadata.PipelineDescriptor{
		Name:     "cubes",
		Vertex:   shader(metadata.ShaderStageVertex),
		Fragment: shader(metadata.ShaderStageFragment),
		Layouts: []metadata.VertexLayout{{
			Stride: 24,
			Attributes: []metadata.VertexAttribute{
				{Location: 0, Offset: 0, Type: metadata.ShaderAttribTypeFloat32_3},
				{Location: 1, Offset: 12, Type: metadata.ShaderAttribTypeFloat32_3},
			},
		}},
		Topology:   metadata.PrimitiveTopologyTriangleList,
		Pass:       metadata.PassKindScene,
		DepthTest:  true,
		DepthWrite: true,
		DepthCmp:   metadata.CompareOpLess,
	}
}

type fixture struct {
	backend  *headless.Backend
	manager  *renderer.SurfaceManager
	pipeline metadata.Pipeline
	buffers  *metadata.FrameBuffers
}

func newFixture(t *testing.T, width, height uint32) *fixture {
	t.Helper()
	backend := headless.New()
	m := renderer.NewSurfaceManager(backend, renderer.Options{PresentMode: metadata.PresentModeFifo})
	require.NoError(t, m.Initialize(&window{width, height}))

	p, err := m.CreatePipeline(sceneDescriptor())
	require.NoError(t, err)
	vb, err := m.CreateBuffer("quad", metadata.BufferUsageVertex, make([]byte, 24*4))
	require.NoError(t, err)
	ib, err := m.CreateBuffer("quad-indices", metadata.BufferUsageIndex, make([]byte, 6*2))
	require.NoError(t, err)

	return &fixture{
		backend:  backend,
		manager:  m,
		pipeline: p,
		buffers:  &metadata.FrameBuffers{Vertex: vb, Index: ib, IndexCount: 6, InstanceCount: 1},
	}
}

func assertDepthMatchesSurface(t *testing.T, m *renderer.SurfaceManager) {
	t.Helper()
	cfg := m.Config()
	require.NotNil(t, m.Depth())
	assert.Equal(t, cfg.Width, m.Depth().Width())
	assert.Equal(t, cfg.Height, m.Depth().Height())
}

func TestInitialize(t *testing.T) {
	f := newFixture(t, 800, 600)

	assert.Equal(t, renderer.StateReady, f.manager.State())
	cfg := f.manager.Config()
	assert.Equal(t, metadata.FormatBGRA8UnormSRGB, cfg.Format, "sRGB format is preferred")
	assert.Equal(t, metadata.PresentModeFifo, cfg.PresentMode)
	assert.Equal(t, uint32(800), cfg.Width)
	assert.Equal(t, uint32(600), cfg.Height)
	assertDepthMatchesSurface(t, f.manager)
}

func TestInitializeFailures(t *testing.T) {
	t.Run("no formats", func(t *testing.T) {
		backend := headless.New()
		backend.SetCapabilities(metadata.SurfaceCapabilities{PresentModes: []metadata.PresentMode{metadata.PresentModeFifo}})
		m := renderer.NewSurfaceManager(backend, renderer.Options{})
		err := m.Initialize(&window{800, 600})
		assert.ErrorIs(t, err, core.ErrInitialization)
		assert.ErrorIs(t, err, core.ErrNoSurfaceFormat)
		assert.Equal(t, renderer.StateUninitialized, m.State())
	})

	t.Run("no adapter", func(t *testing.T) {
		backend := headless.New()
		backend.Fail(headless.OpInitialize, core.ErrNoAdapter, 1)
		m := renderer.NewSurfaceManager(backend, renderer.Options{})
		err := m.Initialize(&window{800, 600})
		assert.ErrorIs(t, err, core.ErrInitialization)
		assert.ErrorIs(t, err, core.ErrNoAdapter)
		assert.Zero(t, backend.Count(headless.OpAcquire), "nothing is rendered after a failed initialize")
	})

	t.Run("twice", func(t *testing.T) {
		f := newFixture(t, 800, 600)
		assert.ErrorIs(t, f.manager.Initialize(&window{800, 600}), core.ErrInvalidState)
	})

	t.Run("unsupported present mode falls back to fifo", func(t *testing.T) {
		backend := headless.New()
		m := renderer.NewSurfaceManager(backend, renderer.Options{PresentMode: metadata.PresentModeImmediate})
		require.NoError(t, m.Initialize(&window{800, 600}))
		assert.Equal(t, metadata.PresentModeFifo, m.Config().PresentMode)
	})
}

func TestResizeKeepsDepthInSync(t *testing.T) {
	f := newFixture(t, 800, 600)

	sizes := [][2]uint32{{1024, 768}, {1, 1}, {640, 480}, {4096, 16}, {400, 300}}
	for _, s := range sizes {
		require.NoError(t, f.manager.HandleResize(s[0], s[1]))
		assert.Equal(t, renderer.StateReady, f.manager.State())
		assert.Equal(t, s[0], f.manager.Config().Width)
		assert.Equal(t, s[1], f.manager.Config().Height)
		assertDepthMatchesSurface(t, f.manager)
	}
	assert.Equal(t, 1, f.backend.LiveDepthTextures(), "old depth textures are destroyed")
	assert.Equal(t, len(sizes)+1, f.backend.Count(headless.OpCreateDepth))
}

func TestResizeToZeroIsNoop(t *testing.T) {
	f := newFixture(t, 800, 600)
	depth := f.manager.Depth()
	configures := f.backend.Count(headless.OpConfigure)

	for _, s := range [][2]uint32{{0, 300}, {400, 0}, {0, 0}} {
		require.NoError(t, f.manager.HandleResize(s[0], s[1]))
		assert.Equal(t, renderer.StateReady, f.manager.State())
		assert.Equal(t, uint32(800), f.manager.Config().Width)
		assert.Equal(t, uint32(600), f.manager.Config().Height)
		assert.Same(t, depth, f.manager.Depth())
	}
	assert.Equal(t, configures, f.backend.Count(headless.OpConfigure))
}

func TestManyResizesThenOneFrame(t *testing.T) {
	f := newFixture(t, 800, 600)

	f.manager.MarkStale(1000, 700)
	f.manager.MarkStale(0, 0)
	f.manager.MarkStale(1280, 720)
	f.manager.MarkStale(320, 200)
	assert.Equal(t, renderer.StateStale, f.manager.State())

	require.NoError(t, f.manager.RenderFrame(f.pipeline, f.buffers))
	assert.Equal(t, uint64(1), f.backend.Presents())
	assert.Equal(t, renderer.StateReady, f.manager.State())
	assert.Equal(t, uint32(320), f.manager.Depth().Width())
	assert.Equal(t, uint32(200), f.manager.Depth().Height())
	assertDepthMatchesSurface(t, f.manager)
}

func TestStaleWithMinimizedWindowKeepsSize(t *testing.T) {
	f := newFixture(t, 800, 600)
	f.manager.MarkStale(0, 600)

	require.NoError(t, f.manager.RenderFrame(f.pipeline, f.buffers))
	assert.Equal(t, uint32(800), f.manager.Config().Width)
	assertDepthMatchesSurface(t, f.manager)
}

func TestRenderResizeRender(t *testing.T) {
	f := newFixture(t, 800, 600)

	require.NoError(t, f.manager.RenderFrame(f.pipeline, f.buffers))
	require.NoError(t, f.manager.HandleResize(400, 300))
	require.NoError(t, f.manager.RenderFrame(f.pipeline, f.buffers))

	assert.Equal(t, uint64(2), f.backend.Presents())
	assert.Equal(t, uint64(2), f.manager.Frames())
	assert.Equal(t, uint32(400), f.manager.Depth().Width())
	assert.Equal(t, uint32(300), f.manager.Depth().Height())
}

func TestFrameOrdering(t *testing.T) {
	f := newFixture(t, 800, 600)
	before := len(f.backend.Ops())

	require.NoError(t, f.manager.RenderFrame(f.pipeline, f.buffers))
	ops := f.backend.Ops()[before:]
	assert.Equal(t, []headless.Op{headless.OpAcquire, headless.OpRecord, headless.OpSubmit, headless.OpPresent}, ops)
}

func TestOutdatedAcquireIsRetriedOnce(t *testing.T) {
	for _, transient := range []error{core.ErrSurfaceOutdated, core.ErrSurfaceTimeout, core.ErrSurfaceLost} {
		t.Run(transient.Error(), func(t *testing.T) {
			f := newFixture(t, 800, 600)
			f.backend.FailAcquire(transient, 1)
			configures := f.backend.Count(headless.OpConfigure)

			require.NoError(t, f.manager.RenderFrame(f.pipeline, f.buffers))
			assert.Equal(t, uint64(1), f.manager.Retries())
			assert.Equal(t, configures+1, f.backend.Count(headless.OpConfigure))
			assert.Equal(t, 2, f.backend.Count(headless.OpAcquire))
			assert.Equal(t, uint64(1), f.backend.Presents())
			assertDepthMatchesSurface(t, f.manager)
		})
	}
}

func TestSecondAcquireFailureIsReturned(t *testing.T) {
	f := newFixture(t, 800, 600)
	f.backend.FailAcquire(core.ErrSurfaceOutdated, 2)

	err := f.manager.RenderFrame(f.pipeline, f.buffers)
	assert.ErrorIs(t, err, core.ErrSurfaceOutdated)
	assert.Equal(t, 2, f.backend.Count(headless.OpAcquire), "exactly one retry")
	assert.Zero(t, f.backend.Presents())
}

func TestFatalErrorsPropagate(t *testing.T) {
	cases := []struct {
		op  headless.Op
		err error
	}{
		{headless.OpAcquire, core.ErrDeviceLost},
		{headless.OpAcquire, core.ErrOutOfMemory},
		{headless.OpSubmit, core.ErrDeviceLost},
		{headless.OpPresent, core.ErrOutOfMemory},
	}
	for _, c := range cases {
		t.Run(fmt.Sprintf("%s %s", c.op, c.err), func(t *testing.T) {
			f := newFixture(t, 800, 600)
			f.backend.Fail(c.op, c.err, 1)

			err := f.manager.RenderFrame(f.pipeline, f.buffers)
			require.Error(t, err)
			assert.ErrorIs(t, err, c.err)
			assert.True(t, core.IsFatal(err))
			assert.Zero(t, f.manager.Retries(), "fatal errors are never retried")
			assert.Zero(t, f.manager.Frames())
		})
	}
}

func TestTransientPresentMarksStale(t *testing.T) {
	f := newFixture(t, 800, 600)
	f.backend.Fail(headless.OpPresent, core.ErrSurfaceOutdated, 1)

	require.NoError(t, f.manager.RenderFrame(f.pipeline, f.buffers))
	assert.Equal(t, renderer.StateStale, f.manager.State())
	assert.Zero(t, f.manager.Frames())

	require.NoError(t, f.manager.RenderFrame(f.pipeline, f.buffers))
	assert.Equal(t, renderer.StateReady, f.manager.State())
	assert.Equal(t, uint64(1), f.manager.Frames())
}

func TestConfigureFailureDuringResize(t *testing.T) {
	f := newFixture(t, 800, 600)
	f.backend.Fail(headless.OpConfigure, core.ErrDeviceLost, 1)

	err := f.manager.HandleResize(400, 300)
	assert.ErrorIs(t, err, core.ErrDeviceLost)
	assert.Equal(t, uint32(800), f.manager.Config().Width, "failed resize keeps the previous size")
	assert.Equal(t, renderer.StateReady, f.manager.State())
	assertDepthMatchesSurface(t, f.manager)
}

func TestDepthFailureDuringResizeLeavesSurfaceStale(t *testing.T) {
	f := newFixture(t, 800, 600)
	f.backend.Fail(headless.OpCreateDepth, core.ErrOutOfMemory, 1)

	err := f.manager.HandleResize(400, 300)
	assert.ErrorIs(t, err, core.ErrOutOfMemory)
	assert.Equal(t, renderer.StateStale, f.manager.State())
	assert.Nil(t, f.manager.Depth())
	assert.Equal(t, uint32(400), f.manager.Config().Width, "the backend already runs at the new size")
	assert.Equal(t, f.backend.Config().Width, f.manager.Config().Width)
	assert.Zero(t, f.backend.LiveDepthTextures())

	require.NoError(t, f.manager.RenderFrame(f.pipeline, f.buffers))
	assert.Equal(t, renderer.StateReady, f.manager.State())
	assert.Equal(t, uint32(400), f.manager.Depth().Width())
	assertDepthMatchesSurface(t, f.manager)
	assert.Equal(t, uint64(1), f.backend.Presents())

	require.NoError(t, f.manager.RenderFrame(f.pipeline, f.buffers))
	assert.Equal(t, uint64(2), f.manager.Frames())
}

func TestRecordFailureReleasesTheImage(t *testing.T) {
	for _, op := range []headless.Op{headless.OpRecord, headless.OpSubmit} {
		t.Run(string(op), func(t *testing.T) {
			f := newFixture(t, 800, 600)
			f.backend.Fail(op, core.ErrInvalidDescriptor, 1)

			err := f.manager.RenderFrame(f.pipeline, f.buffers)
			assert.ErrorIs(t, err, core.ErrInvalidDescriptor)
			assert.Equal(t, renderer.StateStale, f.manager.State())
			assert.Zero(t, f.manager.Frames())

			require.NoError(t, f.manager.RenderFrame(f.pipeline, f.buffers))
			assert.Equal(t, renderer.StateReady, f.manager.State())
			assert.Equal(t, uint64(1), f.manager.Frames())
		})
	}
}

func TestDestroy(t *testing.T) {
	f := newFixture(t, 800, 600)
	require.NoError(t, f.manager.RenderFrame(f.pipeline, f.buffers))

	f.manager.DestroyPipeline(f.pipeline)
	f.manager.DestroyBuffer(f.buffers.Vertex)
	f.manager.DestroyBuffer(f.buffers.Index)
	require.NoError(t, f.manager.Destroy())
	require.NoError(t, f.manager.Destroy())

	assert.Equal(t, renderer.StateDestroyed, f.manager.State())
	assert.Equal(t, 0, f.backend.LiveDepthTextures())
	assert.Equal(t, 0, f.backend.LivePipelines())
	assert.Equal(t, 0, f.backend.LiveBuffers())
	assert.Equal(t, 1, f.backend.Count(headless.OpShutdown))

	assert.ErrorIs(t, f.manager.RenderFrame(f.pipeline, f.buffers), core.ErrSurfaceDestroyed)
	assert.ErrorIs(t, f.manager.HandleResize(10, 10), core.ErrSurfaceDestroyed)
}

func TestOperationsBeforeInitialize(t *testing.T) {
	m := renderer.NewSurfaceManager(headless.New(), renderer.Options{})
	assert.ErrorIs(t, m.HandleResize(10, 10), core.ErrInvalidState)
	assert.ErrorIs(t, m.RenderPasses(nil), core.ErrInvalidState)
	_, err := m.CreatePipeline(sceneDescriptor())
	assert.ErrorIs(t, err, core.ErrInvalidState)
}

func TestValidatePipelineDescriptor(t *testing.T) {
	require.NoError(t, renderer.ValidatePipelineDescriptor(sceneDescriptor()))

	noCode := sceneDescriptor()
	noCode.Fragment.Code = nil

	swapped := sceneDescriptor()
	swapped.Vertex, swapped.Fragment = swapped.Fragment, swapped.Vertex

	overlayDepth := sceneDescriptor()
	overlayDepth.Pass = metadata.PassKindOverlay

	sceneSampling := sceneDescriptor()
	sceneSampling.Bindings = []metadata.Binding{{Binding: 0, Type: metadata.BindingTypeDepthTexture}}

	overflow := sceneDescriptor()
	overflow.Layouts[0].Stride = 16

	for name, desc := range map[string]*metadata.PipelineDescriptor{
		"nil":            nil,
		"no code":        noCode,
		"swapped stages": swapped,
		"overlay depth":  overlayDepth,
		"scene sampling": sceneSampling,
		"overflow":       overflow,
	} {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, renderer.ValidatePipelineDescriptor(desc), core.ErrInvalidDescriptor)
		})
	}
}

func TestWriteBufferBounds(t *testing.T) {
	f := newFixture(t, 800, 600)
	ub, err := f.manager.CreateBuffer("camera", metadata.BufferUsageUniform, make([]byte, 64))
	require.NoError(t, err)

	require.NoError(t, f.manager.WriteBuffer(ub, 0, make([]byte, 64)))
	err = f.manager.WriteBuffer(ub, 32, make([]byte, 64))
	assert.True(t, errors.Is(err, core.ErrInvalidDescriptor))
}
