package engine

import (
	"github.com/spaghettifunk/prism/engine/assets"
	"github.com/spaghettifunk/prism/engine/config"
	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/renderer"
	"github.com/spaghettifunk/prism/engine/renderer/metadata"
)

// Systems are the engine services a game builds on. They are set before
// FnInitialize runs.
type Systems struct {
	Config  *config.Config
	Bus     *core.EventBus
	Input   *core.Input
	Assets  *assets.AssetManager
	Surface *renderer.SurfaceManager
}

type Game struct {
	ApplicationConfig *ApplicationConfig
	Systems           *Systems
	State             interface{}
	FnBoot            Boot
	FnInitialize      Initialize
	FnUpdate          Update
	FnRender          Render
	FnOnResize        OnResize
	FnShutdown        Shutdown
}

type Boot func() error
type Initialize func() error
type Update func(deltaTime float64) error

// Render returns the passes of the next frame.
type Render func(deltaTime float64) ([]*metadata.Pass, error)
type OnResize func(width uint32, height uint32) error
type Shutdown func() error
