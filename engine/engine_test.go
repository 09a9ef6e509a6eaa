package engine_test

import (
	"encoding/binary"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/prism/engine"
	"github.com/spaghettifunk/prism/engine/config"
	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/platform"
	"github.com/spaghettifunk/prism/engine/renderer"
	"github.com/spaghettifunk/prism/engine/renderer/headless"
	"github.com/spaghettifunk/prism/testbed"
)

var shaderNames = []string{
	"lines.vert", "lines.frag",
	"models.vert", "models.frag",
	"depth.vert", "depth.frag",
}

func shaderDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	module := make([]byte, 20)
	binary.LittleEndian.PutUint32(module, 0x07230203)
	for _, name := range shaderNames {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name+".spv"), module, 0o644))
	}
	return dir
}

func headlessConfig(t *testing.T) *config.Config {
	cfg := config.Default()
	cfg.Renderer.Backend = config.BackendHeadless
	cfg.Window.Width, cfg.Window.Height = 64, 48
	cfg.Assets.Dir = shaderDir(t)
	cfg.Assets.Watch = false
	return cfg
}

func newEngine(t *testing.T, cfg *config.Config, opts ...engine.Option) (*engine.Engine, *testbed.TestGame) {
	t.Helper()
	tb := testbed.NewTestGame(cfg)
	e, err := engine.New(cfg, tb.Game, opts...)
	require.NoError(t, err)
	require.NoError(t, e.Initialize())
	t.Cleanup(func() { _ = e.Shutdown() })
	return e, tb
}

func TestRunPresentsFrames(t *testing.T) {
	e, _ := newEngine(t, headlessConfig(t), engine.WithMaxFrames(5))
	assert.Equal(t, engine.EngineStageInitialized, e.Stage())

	require.NoError(t, e.Run())
	assert.Equal(t, uint64(5), e.Surface().Frames())
	assert.Equal(t, uint64(5), e.Surface().Backend().(*headless.Backend).Presents())
	assert.Equal(t, uint64(5), e.Metrics().Frames())
}

func TestResizeRecreatesDepth(t *testing.T) {
	e, tb := newEngine(t, headlessConfig(t), engine.WithMaxFrames(1))
	window := e.Window().(*platform.Headless)

	window.Resize(100, 50)
	window.Resize(120, 80)
	assert.Equal(t, renderer.StateStale, e.Surface().State())

	require.NoError(t, e.Run())
	depth := e.Surface().Depth()
	assert.Equal(t, uint32(120), depth.Width())
	assert.Equal(t, uint32(80), depth.Height())
	assert.Equal(t, renderer.StateReady, e.Surface().State())
	assert.InDelta(t, 1.5, tb.Camera().Aspect(), 1e-6)
}

func TestMinimizeSuspends(t *testing.T) {
	e, _ := newEngine(t, headlessConfig(t))
	window := e.Window().(*platform.Headless)

	window.Resize(0, 48)
	assert.True(t, e.IsSuspended())
	// the surface keeps its last valid size
	assert.Equal(t, uint32(64), e.Surface().Config().Width)

	window.Resize(64, 48)
	assert.False(t, e.IsSuspended())
}

func TestFatalErrorEndsRun(t *testing.T) {
	e, _ := newEngine(t, headlessConfig(t), engine.WithMaxFrames(10))
	e.Surface().Backend().(*headless.Backend).FailAcquire(core.ErrDeviceLost, 1)

	err := e.Run()
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrDeviceLost)
	assert.True(t, core.IsFatal(err))
	assert.Equal(t, uint64(0), e.Surface().Frames())
}

func TestTransientAcquireIsAbsorbed(t *testing.T) {
	e, _ := newEngine(t, headlessConfig(t), engine.WithMaxFrames(2))
	e.Surface().Backend().(*headless.Backend).FailAcquire(core.ErrSurfaceOutdated, 1)

	require.NoError(t, e.Run())
	assert.Equal(t, uint64(2), e.Surface().Frames())
	assert.Equal(t, uint64(1), e.Surface().Retries())
}

func TestQuitEventStopsLoop(t *testing.T) {
	e, _ := newEngine(t, headlessConfig(t))
	e.Bus().Fire(core.EventContext{Type: core.EVENT_CODE_KEY_PRESSED, Data: &core.KeyEvent{KeyCode: core.KEY_ESCAPE}})

	require.NoError(t, e.Run())
	assert.Equal(t, uint64(0), e.Surface().Frames())
}

func TestStop(t *testing.T) {
	e, _ := newEngine(t, headlessConfig(t))
	e.Stop()
	require.NoError(t, e.Run())
}

func TestShowDepthAddsOverlay(t *testing.T) {
	cfg := headlessConfig(t)
	cfg.Renderer.ShowDepth = true
	e, tb := newEngine(t, cfg, engine.WithMaxFrames(1))
	require.NoError(t, e.Run())
	assert.True(t, tb.World().ShowDepth)
}

func TestSnapshot(t *testing.T) {
	e, _ := newEngine(t, headlessConfig(t), engine.WithMaxFrames(1))
	require.NoError(t, e.Run())

	path := filepath.Join(t.TempDir(), "depth.png")
	require.NoError(t, e.Snapshot(path))
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, 64, img.Bounds().Dx())
	assert.Equal(t, 48, img.Bounds().Dy())

	// the grid and the cubes are nearer than the cleared far plane
	levels := map[uint8]int{}
	for y := 0; y < 48; y++ {
		for x := 0; x < 64; x++ {
			levels[color.GrayModel.Convert(img.At(x, y)).(color.Gray).Y]++
		}
	}
	assert.Greater(t, len(levels), 1, "depth snapshot is a single gray level")
	assert.Less(t, levels[255], 64*48)
}

func TestRunBeforeInitialize(t *testing.T) {
	cfg := headlessConfig(t)
	e, err := engine.New(cfg, testbed.NewTestGame(cfg).Game)
	require.NoError(t, err)
	assert.ErrorIs(t, e.Run(), core.ErrInvalidState)
}

func TestInitializeFailsWithoutShaders(t *testing.T) {
	cfg := headlessConfig(t)
	cfg.Assets.Dir = t.TempDir()
	tb := testbed.NewTestGame(cfg)
	e, err := engine.New(cfg, tb.Game)
	require.NoError(t, err)
	assert.Error(t, e.Initialize())
	assert.NoError(t, e.Shutdown())
}
