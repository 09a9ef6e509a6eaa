package testbed

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/spaghettifunk/prism/engine"
	"github.com/spaghettifunk/prism/engine/config"
	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/math"
	"github.com/spaghettifunk/prism/engine/renderer/components"
	"github.com/spaghettifunk/prism/engine/renderer/metadata"
	"github.com/spaghettifunk/prism/engine/renderer/views"
)

// Seconds between two camera reports in the log.
const cameraLogInterval = 5.0

type TestGame struct {
	*engine.Game
}

type gameState struct {
	WorldCamera *components.Camera
	Controller  *components.CameraController
	World       *views.RenderViewWorld

	// Seconds since the first update.
	time          float64
	lastCameraLog float64

	width  uint32
	height uint32
}

func NewTestGame(cfg *config.Config) *TestGame {
	tg := &TestGame{
		Game: &engine.Game{
			ApplicationConfig: engine.NewApplicationConfig(cfg),
			State:             &gameState{},
		},
	}

	tg.FnBoot = tg.Boot
	tg.FnInitialize = tg.Initialize
	tg.FnUpdate = tg.Update
	tg.FnRender = tg.Render
	tg.FnOnResize = tg.OnResize
	tg.FnShutdown = tg.Shutdown

	return tg
}

func (g *TestGame) state() *gameState {
	return g.State.(*gameState)
}

func (g *TestGame) Boot() error {
	core.LogInfo("booting testbed...")
	return nil
}

func (g *TestGame) Initialize() error {
	core.LogDebug("initializing testbed...")
	state := g.state()
	cfg := g.Systems.Config.Camera

	aspect := float32(1)
	if g.ApplicationConfig.StartHeight > 0 {
		aspect = float32(g.ApplicationConfig.StartWidth) / float32(g.ApplicationConfig.StartHeight)
	}
	state.WorldCamera = components.NewCamera(
		mgl32.Vec3(cfg.Eye),
		math.Rotator{Yaw: cfg.Yaw, Pitch: cfg.Pitch},
		aspect, cfg.FovY, cfg.Near, cfg.Far,
	)
	state.Controller = components.NewCameraController(cfg.MoveSpeed, cfg.RotationSpeed)

	c := g.Systems.Config.Renderer.ClearColor
	world := views.NewRenderViewWorld(g.Systems.Surface, g.Systems.Assets, metadata.Color{R: c[0], G: c[1], B: c[2], A: c[3]})
	if err := world.OnCreate(); err != nil {
		return fmt.Errorf("failed to create the world view: %w", err)
	}
	state.World = world
	g.Systems.Bus.Register(core.EVENT_CODE_ASSET_CHANGED, state.World, state.World.OnAssetChanged)
	return nil
}

func (g *TestGame) Update(deltaTime float64) error {
	state := g.state()
	state.time += deltaTime

	input := g.Systems.Input
	state.Controller.Update(input, state.WorldCamera)
	// O shows the depth buffer while held
	state.World.ShowDepth = g.Systems.Config.Renderer.ShowDepth || input.IsKeyDown(core.KEY_O)

	if state.time-state.lastCameraLog >= cameraLogInterval {
		eye, rot := state.WorldCamera.Eye(), state.WorldCamera.Rotator()
		core.LogInfo("eye: [%.3f, %.3f, %.3f], rotator: yaw %.1f pitch %.1f roll %.1f",
			eye.X(), eye.Y(), eye.Z(), rot.Yaw, rot.Pitch, rot.Roll)
		state.lastCameraLog = state.time
	}
	return nil
}

func (g *TestGame) Render(deltaTime float64) ([]*metadata.Pass, error) {
	state := g.state()
	return state.World.OnBuildPacket(state.WorldCamera, state.time)
}

func (g *TestGame) OnResize(width uint32, height uint32) error {
	state := g.state()
	state.width = width
	state.height = height
	if state.WorldCamera != nil {
		state.WorldCamera.SetAspect(width, height)
	}
	return nil
}

func (g *TestGame) Shutdown() error {
	state := g.state()
	if state.World != nil {
		g.Systems.Bus.Unregister(core.EVENT_CODE_ASSET_CHANGED, state.World)
		state.World.OnDestroy()
		state.World = nil
	}
	return nil
}

// Camera is exposed for tests and tools driving the testbed.
func (g *TestGame) Camera() *components.Camera {
	return g.state().WorldCamera
}

func (g *TestGame) World() *views.RenderViewWorld {
	return g.state().World
}
