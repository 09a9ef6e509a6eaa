package engine

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/spaghettifunk/prism/engine/assets"
	"github.com/spaghettifunk/prism/engine/config"
	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/platform"
	"github.com/spaghettifunk/prism/engine/renderer"
	"github.com/spaghettifunk/prism/engine/renderer/headless"
	"github.com/spaghettifunk/prism/engine/renderer/metadata"
	"github.com/spaghettifunk/prism/engine/renderer/vulkan"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently booting up
	EngineStageBooting
	// Engine completed boot process and is ready to be initialized
	EngineStageBootComplete
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
)

// Seconds between two frame rate reports in the log.
const fpsLogInterval = 5.0

// Window is the platform layer the engine drives: a glfw window or the
// headless stand-in.
type Window interface {
	metadata.Window
	Startup(applicationName string, x, y, width, height uint32) error
	Shutdown() error
	PumpMessages() bool
	WaitMessages()
	GetAbsoluteTime() float64
}

type Option func(*Engine)

// WithMaxFrames stops the loop after n presented frames. Zero runs until the
// window closes.
func WithMaxFrames(n uint64) Option {
	return func(e *Engine) {
		e.maxFrames = n
	}
}

type Engine struct {
	currentStage Stage
	gameInstance *Game
	config       *config.Config
	isRunning    bool
	isSuspended  bool
	stop         atomic.Bool

	window       Window
	bus          *core.EventBus
	input        *core.Input
	assetManager *assets.AssetManager
	surface      *renderer.SurfaceManager

	width      uint32
	height     uint32
	clock      *core.Clock
	metrics    *core.Metrics
	lastTime   float64
	lastFPSLog float64
	maxFrames  uint64
}

func New(cfg *config.Config, g *Game, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	presentMode, err := metadata.PresentModeFromString(cfg.Renderer.PresentMode)
	if err != nil {
		return nil, err
	}

	bus := core.NewEventBus()
	input := core.NewInput(bus)

	am, err := assets.NewAssetManager(bus, 2)
	if err != nil {
		core.LogError(err.Error())
		return nil, err
	}

	var (
		window  Window
		backend renderer.Backend
	)
	switch cfg.Renderer.Backend {
	case config.BackendHeadless:
		window = platform.NewHeadless(bus)
		backend = headless.New()
	default:
		window = platform.New(bus, input)
		backend = vulkan.New(vulkan.Options{
			ApplicationName: cfg.Window.Title,
			Validation:      cfg.Renderer.Validation,
		})
	}

	c := cfg.Renderer.ClearColor
	surface := renderer.NewSurfaceManager(backend, renderer.Options{
		PresentMode: presentMode,
		ClearColor:  metadata.Color{R: c[0], G: c[1], B: c[2], A: c[3]},
	})

	e := &Engine{
		currentStage: EngineStageUninitialized,
		gameInstance: g,
		config:       cfg,
		window:       window,
		bus:          bus,
		input:        input,
		assetManager: am,
		surface:      surface,
		clock:        core.NewClock(),
		metrics:      core.NewMetrics(),
		isRunning:    true,
		isSuspended:  false,
		width:        cfg.Window.Width,
		height:       cfg.Window.Height,
	}
	for _, opt := range opts {
		opt(e)
	}
	if g.ApplicationConfig == nil {
		g.ApplicationConfig = NewApplicationConfig(cfg)
	}
	return e, nil
}

func (e *Engine) Stage() Stage                       { return e.currentStage }
func (e *Engine) Bus() *core.EventBus                { return e.bus }
func (e *Engine) Window() Window                     { return e.window }
func (e *Engine) Surface() *renderer.SurfaceManager  { return e.surface }
func (e *Engine) Metrics() *core.Metrics             { return e.metrics }
func (e *Engine) IsSuspended() bool                  { return e.isSuspended }
func (e *Engine) AssetManager() *assets.AssetManager { return e.assetManager }

func (e *Engine) Initialize() error {
	if e.currentStage != EngineStageUninitialized {
		return fmt.Errorf("%w: engine already initialized", core.ErrInvalidState)
	}
	e.currentStage = EngineStageBooting
	core.SetLogLevel(e.config.LogLevel)

	// register some events
	e.bus.Register(core.EVENT_CODE_APPLICATION_QUIT, e, e.onEvent)
	e.bus.Register(core.EVENT_CODE_KEY_PRESSED, e, e.onKey)
	e.bus.Register(core.EVENT_CODE_RESIZED, e, e.onResized)

	if e.gameInstance.FnBoot != nil {
		if err := e.gameInstance.FnBoot(); err != nil {
			return err
		}
	}
	e.currentStage = EngineStageBootComplete

	appConfig := e.gameInstance.ApplicationConfig
	if err := e.window.Startup(appConfig.Name,
		appConfig.StartPosX,
		appConfig.StartPosY,
		appConfig.StartWidth,
		appConfig.StartHeight); err != nil {
		return err
	}
	e.width, e.height = e.window.FramebufferSize()
	e.currentStage = EngineStageInitializing

	// initialize subsystems
	if err := e.assetManager.Initialize(e.config.Assets.Dir, e.config.Assets.Watch); err != nil {
		return err
	}
	if err := e.surface.Initialize(e.window); err != nil {
		return err
	}

	e.gameInstance.Systems = &Systems{
		Config:  e.config,
		Bus:     e.bus,
		Input:   e.input,
		Assets:  e.assetManager,
		Surface: e.surface,
	}
	if err := e.gameInstance.FnInitialize(); err != nil {
		return err
	}
	if err := e.gameInstance.FnOnResize(e.width, e.height); err != nil {
		return err
	}

	e.currentStage = EngineStageInitialized
	core.LogInfo("engine initialized with the %s backend", e.surface.Backend().Name())
	return nil
}

// Run drives the frame loop until the window closes, Stop is called or a
// frame fails. A failed frame is returned; device lost and out of memory
// errors can be told apart with core.IsFatal.
func (e *Engine) Run() error {
	if e.currentStage != EngineStageInitialized {
		return fmt.Errorf("%w: run before initialize", core.ErrInvalidState)
	}
	e.currentStage = EngineStageRunning

	e.clock.Start()
	e.clock.Update()
	e.lastTime = e.clock.Elapsed()
	e.lastFPSLog = e.lastTime

	var runErr error
	for e.isRunning && !e.stop.Load() {
		if !e.window.PumpMessages() {
			e.isRunning = false
			break
		}

		if e.isSuspended {
			e.window.WaitMessages()
			continue
		}

		// Update clock and get delta time.
		e.clock.Update()
		var currentTime float64 = e.clock.Elapsed()
		var delta float64 = (currentTime - e.lastTime)

		// hot reloads land here, on the loop's goroutine
		e.assetManager.Update()

		if err := e.gameInstance.FnUpdate(delta); err != nil {
			core.LogError("game update failed, shutting down: %s", err)
			runErr = err
			break
		}

		passes, err := e.gameInstance.FnRender(delta)
		if err != nil {
			core.LogError("game render failed, shutting down: %s", err)
			runErr = err
			break
		}
		if err := e.surface.RenderPasses(passes); err != nil {
			core.LogError("frame failed, shutting down: %s", err)
			runErr = fmt.Errorf("render frame: %w", err)
			break
		}

		e.metrics.Update(delta)
		if currentTime-e.lastFPSLog >= fpsLogInterval {
			fps, frameTime := e.metrics.Frame()
			core.LogInfo("%.1f fps, %.2f ms per frame, %d frames presented", fps, frameTime, e.surface.Frames())
			e.lastFPSLog = currentTime
		}

		// NOTE: Input update/state copying should always be handled
		// after any input should be recorded; I.E. before this line.
		// As a safety, input is the last thing to be updated before
		// this frame ends.
		e.input.Update(delta)

		// Update last time
		e.lastTime = currentTime

		if e.maxFrames > 0 && e.surface.Frames() >= e.maxFrames {
			e.isRunning = false
		}
	}
	e.isRunning = false
	return runErr
}

// Stop asks the loop to end after the current frame. Safe to call from any
// goroutine.
func (e *Engine) Stop() {
	e.stop.Store(true)
}

// Snapshot writes the depth attachment to path. Only the headless backend
// keeps the depth on the host.
func (e *Engine) Snapshot(path string) error {
	hb, ok := e.surface.Backend().(*headless.Backend)
	if !ok {
		return fmt.Errorf("snapshot needs the headless backend, running %s", e.surface.Backend().Name())
	}
	return hb.Snapshot(path)
}

func (e *Engine) Shutdown() error {
	if e.currentStage == EngineStageShuttingDown {
		return nil
	}
	e.currentStage = EngineStageShuttingDown

	var errs []error
	if e.gameInstance.FnShutdown != nil {
		errs = append(errs, e.gameInstance.FnShutdown())
	}
	errs = append(errs, e.surface.Destroy())
	errs = append(errs, e.assetManager.Shutdown())
	errs = append(errs, e.window.Shutdown())
	e.bus.Shutdown()
	return errors.Join(errs...)
}

// GetFramebufferSize returns the width and height (in this order)
// of the application Framebuffer
func (e *Engine) GetFramebufferSize() (uint32, uint32) {
	return e.width, e.height
}

func (e *Engine) onEvent(context core.EventContext) bool {
	switch context.Type {
	case core.EVENT_CODE_APPLICATION_QUIT:
		core.LogInfo("EVENT_CODE_APPLICATION_QUIT received, shutting down.")
		e.isRunning = false
		return true
	}
	return false
}

func (e *Engine) onKey(context core.EventContext) bool {
	ke, ok := context.Data.(*core.KeyEvent)
	if !ok {
		core.LogError("wrong event associated with the event type `%d`", context.Type)
		return false
	}
	if ke.KeyCode == core.KEY_ESCAPE {
		// NOTE: Technically firing an event to itself, but there may be other listeners.
		e.bus.Fire(core.EventContext{Type: core.EVENT_CODE_APPLICATION_QUIT})
		// Block anything else from processing this.
		return true
	}
	return false
}

func (e *Engine) onResized(context core.EventContext) bool {
	re, ok := context.Data.(*core.WindowResizedEvent)
	if !ok {
		core.LogError("wrong event associated with the event type `%d`", context.Type)
		return false
	}
	width, height := re.Width, re.Height

	// Check if different. If so, trigger a resize event.
	if width == e.width && height == e.height {
		return false
	}
	e.width = width
	e.height = height
	core.LogDebug("Window resize: %d, %d", width, height)

	// Handle minimization
	if width == 0 || height == 0 {
		core.LogInfo("Window minimized, suspending application.")
		e.isSuspended = true
		return false
	}
	if e.isSuspended {
		core.LogInfo("Window restored, resuming application.")
		e.isSuspended = false
	}
	e.surface.MarkStale(width, height)
	if err := e.gameInstance.FnOnResize(width, height); err != nil {
		core.LogError(err.Error())
	}
	return false
}
