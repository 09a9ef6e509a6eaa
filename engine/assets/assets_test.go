package assets

import (
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/renderer/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func spirv(words ...uint32) []byte {
	header := []uint32{0x07230203, 0x00010000, 0, 1, 0}
	header = append(header, words...)
	out := make([]byte, 4*len(header))
	for i, w := range header {
		binary.LittleEndian.PutUint32(out[4*i:], w)
	}
	return out
}

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func newManager(t *testing.T, bus *core.EventBus) *AssetManager {
	t.Helper()
	am, err := NewAssetManager(bus, 2)
	require.NoError(t, err)
	t.Cleanup(func() { _ = am.Shutdown() })
	return am
}

func TestIndexAndLoadShader(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "lines.vert.spv"), spirv())
	writeFile(t, filepath.Join(dir, "nested", "depth.frag.spv"), spirv(7))
	writeFile(t, filepath.Join(dir, "README.md"), []byte("not an asset"))

	am := newManager(t, nil)
	require.NoError(t, am.Initialize(dir, false))
	assert.Equal(t, 2, am.Count())

	info, ok := am.Lookup("depth.frag")
	require.True(t, ok)
	assert.Equal(t, AssetTypeShader, info.Type)

	src, err := am.LoadShader("depth.frag")
	require.NoError(t, err)
	assert.Equal(t, metadata.ShaderStageFragment, src.Stage)
	assert.Equal(t, "main", src.EntryPoint)
	assert.Equal(t, uint32(1), src.Version)
	assert.Len(t, src.Code, 24)

	again, err := am.LoadShader("depth.frag")
	require.NoError(t, err)
	assert.Equal(t, uint32(2), again.Version)

	_, err = am.LoadShader("missing.vert")
	assert.True(t, errors.Is(err, ErrAssetNotFound))
}

func TestLoadAsyncSharesInFlightRequests(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "models.vert.spv"), spirv())

	am := newManager(t, nil)
	require.NoError(t, am.Initialize(dir, false))

	var calls atomic.Int32
	var versions []uint32
	cb := func(asset interface{}, err error) {
		require.NoError(t, err)
		calls.Add(1)
		versions = append(versions, asset.(*metadata.ShaderSource).Version)
	}
	require.NoError(t, am.LoadAsync("models.vert", cb))
	require.NoError(t, am.LoadAsync("models.vert", cb))

	require.Eventually(t, func() bool {
		am.Update()
		return calls.Load() == 2
	}, 2*time.Second, 5*time.Millisecond)
	// Both callbacks saw the single load.
	assert.Equal(t, []uint32{1, 1}, versions)
}

func TestLoadAsyncReportsFailure(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "broken.frag.spv"), []byte("definitely not spir-v"))

	am := newManager(t, nil)
	require.NoError(t, am.Initialize(dir, false))

	var got error
	require.NoError(t, am.LoadAsync("broken.frag", func(_ interface{}, err error) { got = err }))
	require.Eventually(t, func() bool {
		am.Update()
		return got != nil
	}, 2*time.Second, 5*time.Millisecond)
}

func TestWatcherFiresAssetChanged(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "depth.frag.spv")
	writeFile(t, path, spirv())

	bus := core.NewEventBus()
	am := newManager(t, bus)
	require.NoError(t, am.Initialize(dir, true))

	var changed atomic.Value
	bus.Register(core.EVENT_CODE_ASSET_CHANGED, t, func(ctx core.EventContext) bool {
		changed.Store(ctx.Data.(*core.AssetChangedEvent).Name)
		return true
	})

	writeFile(t, path, spirv(1, 2, 3))
	require.Eventually(t, func() bool {
		am.Update()
		name, _ := changed.Load().(string)
		return name == "depth.frag"
	}, 5*time.Second, 10*time.Millisecond)

	writeFile(t, filepath.Join(dir, "sub", "late.vert.spv"), spirv())
	require.Eventually(t, func() bool {
		_, ok := am.Lookup("late.vert")
		return ok
	}, 5*time.Second, 10*time.Millisecond)
}

func TestJobSystem(t *testing.T) {
	_, err := NewJobSystem(0, 1)
	assert.ErrorIs(t, err, ErrNoWorkers)
	_, err = NewJobSystem(1, -1)
	assert.ErrorIs(t, err, ErrNegativeChannelSize)

	js, err := NewJobSystem(3, 4)
	require.NoError(t, err)

	done, failed := 0, 0
	for i := 0; i < 10; i++ {
		i := i
		require.NoError(t, js.Submit(JobTask{
			Name: "job",
			Run: func() (interface{}, error) {
				if i%5 == 0 {
					return nil, errors.New("boom")
				}
				return i, nil
			},
			OnComplete: func(interface{}) { done++ },
			OnFailure:  func(error) { failed++ },
		}))
	}
	require.NoError(t, js.Shutdown())
	assert.Equal(t, 10, js.Update())
	assert.Equal(t, 8, done)
	assert.Equal(t, 2, failed)

	assert.ErrorIs(t, js.Submit(JobTask{}), ErrJobSystemClosed)
	assert.NoError(t, js.Shutdown())
}
