// Package assets indexes the files under the asset directory, loads them on
// a worker pool and reports changes on disk so they can be hot reloaded.
package assets

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spaghettifunk/prism/engine/assets/loaders"
	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/renderer/metadata"
)

type AssetType int

const (
	AssetTypeNone AssetType = iota
	// Compiled SPIR-V, *.vert.spv and *.frag.spv.
	AssetTypeShader
)

var ErrAssetNotFound = errors.New("asset not found")

type AssetInfo struct {
	Name    string
	Path    string
	Type    AssetType
	ModTime time.Time
}

type AssetManager struct {
	bus     *core.EventBus
	jobs    *JobSystem
	assets  map[string]AssetInfo
	loaders map[AssetType]Loader

	mutex sync.RWMutex
	// Names changed on disk since the last Update.
	changed map[string]struct{}
	// Callbacks of LoadAsync requests still running, by name.
	pending map[string][]func(interface{}, error)

	done     chan struct{}
	wg       sync.WaitGroup
	fsnotify *fsnotify.Watcher
	isClosed bool
}

func NewAssetManager(bus *core.EventBus, workers int) (*AssetManager, error) {
	jobs, err := NewJobSystem(workers, 64)
	if err != nil {
		return nil, err
	}
	am := &AssetManager{
		bus:     bus,
		jobs:    jobs,
		assets:  make(map[string]AssetInfo),
		loaders: make(map[AssetType]Loader),
		changed: make(map[string]struct{}),
		pending: make(map[string][]func(interface{}, error)),
		done:    make(chan struct{}),
	}
	am.registerLoader(AssetTypeShader, loaders.NewShaderLoader())
	return am, nil
}

// Initialize indexes assetsDir and, when watch is set, keeps the index in
// sync with the disk.
func (am *AssetManager) Initialize(assetsDir string, watch bool) error {
	if err := am.index(assetsDir); err != nil {
		return err
	}
	core.LogInfo("indexed %d assets under %s", am.Count(), assetsDir)
	if !watch {
		return nil
	}

	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	am.fsnotify = fsWatch
	if err := am.addRecursive(assetsDir); err != nil {
		return err
	}
	am.wg.Add(1)
	go am.start()
	return nil
}

// Register loaders for each asset type
func (am *AssetManager) registerLoader(assetType AssetType, loader Loader) {
	am.loaders[assetType] = loader
}

func (am *AssetManager) Count() int {
	am.mutex.RLock()
	defer am.mutex.RUnlock()
	return len(am.assets)
}

func (am *AssetManager) Lookup(name string) (AssetInfo, bool) {
	am.mutex.RLock()
	defer am.mutex.RUnlock()
	info, ok := am.assets[name]
	return info, ok
}

// Load reads the named asset on the calling goroutine.
func (am *AssetManager) Load(name string) (interface{}, error) {
	info, loader, err := am.resolve(name)
	if err != nil {
		return nil, err
	}
	return loader.Load(info.Name, info.Path)
}

func (am *AssetManager) LoadShader(name string) (*metadata.ShaderSource, error) {
	asset, err := am.Load(name)
	if err != nil {
		return nil, err
	}
	src, ok := asset.(*metadata.ShaderSource)
	if !ok {
		return nil, fmt.Errorf("asset %s is not a shader", name)
	}
	return src, nil
}

// LoadAsync reads the named asset on a worker. onLoaded runs during a later
// Update. Requests for a name already in flight share its result.
func (am *AssetManager) LoadAsync(name string, onLoaded func(interface{}, error)) error {
	info, loader, err := am.resolve(name)
	if err != nil {
		return err
	}

	am.mutex.Lock()
	callbacks, inFlight := am.pending[name]
	am.pending[name] = append(callbacks, onLoaded)
	am.mutex.Unlock()
	if inFlight {
		return nil
	}

	return am.jobs.Submit(JobTask{
		Name: name,
		Run: func() (interface{}, error) {
			return loader.Load(info.Name, info.Path)
		},
		OnComplete: func(result interface{}) { am.finish(name, result, nil) },
		OnFailure:  func(err error) { am.finish(name, nil, err) },
	})
}

func (am *AssetManager) finish(name string, result interface{}, err error) {
	am.mutex.Lock()
	callbacks := am.pending[name]
	delete(am.pending, name)
	am.mutex.Unlock()

	for _, cb := range callbacks {
		if cb != nil {
			cb(result, err)
		}
	}
}

func (am *AssetManager) Unload(name string, asset interface{}) error {
	_, loader, err := am.resolve(name)
	if err != nil {
		return err
	}
	return loader.Unload(asset)
}

func (am *AssetManager) resolve(name string) (AssetInfo, Loader, error) {
	info, ok := am.Lookup(name)
	if !ok {
		return AssetInfo{}, nil, fmt.Errorf("%w: %s", ErrAssetNotFound, name)
	}
	loader, ok := am.loaders[info.Type]
	if !ok {
		return AssetInfo{}, nil, fmt.Errorf("no loader registered for asset type: %d", info.Type)
	}
	return info, loader, nil
}

// Update runs on the main loop: it completes finished loads and fires one
// EVENT_CODE_ASSET_CHANGED per asset changed since the previous call.
func (am *AssetManager) Update() {
	am.jobs.Update()

	am.mutex.Lock()
	changed := am.changed
	am.changed = make(map[string]struct{})
	infos := make([]AssetInfo, 0, len(changed))
	for name := range changed {
		if info, ok := am.assets[name]; ok {
			infos = append(infos, info)
		}
	}
	am.mutex.Unlock()

	for _, info := range infos {
		core.LogDebug("asset %s changed", info.Name)
		if am.bus != nil {
			am.bus.Fire(core.EventContext{
				Type: core.EVENT_CODE_ASSET_CHANGED,
				Data: &core.AssetChangedEvent{Name: info.Name, Path: info.Path},
			})
		}
	}
}

func (am *AssetManager) Shutdown() error {
	am.mutex.Lock()
	closed := am.isClosed
	am.isClosed = true
	am.mutex.Unlock()
	if closed {
		return nil
	}

	if am.fsnotify != nil {
		close(am.done)
		am.wg.Wait()
	}
	return am.jobs.Shutdown()
}

func (am *AssetManager) start() {
	defer am.wg.Done()
	for {
		select {
		case e, ok := <-am.fsnotify.Events:
			if !ok {
				return
			}
			s, err := os.Stat(e.Name)
			if err == nil && s.IsDir() {
				if e.Op&fsnotify.Create != 0 {
					if err := am.addRecursive(e.Name); err != nil {
						core.LogWarn("cannot watch %s: %s", e.Name, err)
					}
				}
				continue
			}
			// Handle create or modify events
			if e.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				am.handleFileEvent(e.Name, true)
			}
			if e.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				am.removeAsset(e.Name)
			}

		case err, ok := <-am.fsnotify.Errors:
			if !ok {
				return
			}
			core.LogError(err.Error())

		case <-am.done:
			am.fsnotify.Close()
			return
		}
	}
}

func (am *AssetManager) index(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			am.handleFileEvent(path, false)
		}
		return nil
	})
}

// addRecursive starts watching dir and all sub-directories. Files created
// before a new directory's watch is in place are picked up by indexing it.
func (am *AssetManager) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return am.fsnotify.Add(path)
		}
		am.handleFileEvent(path, false)
		return nil
	})
}

// Handle the creation or modification of a file
func (am *AssetManager) handleFileEvent(path string, changed bool) {
	assetType := determineAssetType(path)
	if assetType == AssetTypeNone {
		return
	}
	info := AssetInfo{
		Name: assetName(path),
		Path: path,
		Type: assetType,
	}
	if s, err := os.Stat(path); err == nil {
		info.ModTime = s.ModTime()
	}

	am.mutex.Lock()
	defer am.mutex.Unlock()
	am.assets[info.Name] = info
	if changed {
		am.changed[info.Name] = struct{}{}
	}
}

// Remove the asset from the index if it was deleted
func (am *AssetManager) removeAsset(path string) {
	am.mutex.Lock()
	defer am.mutex.Unlock()

	name := assetName(path)
	if info, ok := am.assets[name]; ok && info.Path == path {
		delete(am.assets, name)
		delete(am.changed, name)
	}
}

func determineAssetType(path string) AssetType {
	switch filepath.Ext(path) {
	case ".spv":
		return AssetTypeShader
	default:
		return AssetTypeNone
	}
}

// assetName is the file name without its asset extension, "lines.vert.spv"
// is "lines.vert".
func assetName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
