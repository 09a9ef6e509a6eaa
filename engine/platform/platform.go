package platform

import (
	"runtime"

	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/math"
)

func init() {
	// GLFW event handling must run on the main OS thread
	runtime.LockOSThread()
}

// Platform owns the glfw window. Window events are translated into Input
// state changes and bus events; nothing is kept in package globals.
type Platform struct {
	Window *glfw.Window

	bus       *core.EventBus
	input     *core.Input
	startTime float64
}

func New(bus *core.EventBus, input *core.Input) *Platform {
	return &Platform{
		bus:   bus,
		input: input,
	}
}

func (p *Platform) Startup(applicationName string, x uint32, y uint32, width uint32, height uint32) error {
	if err := glfw.Init(); err != nil {
		core.LogError("failed to initialize glfw: %s", err)
		return err
	}
	if !glfw.VulkanSupported() {
		glfw.Terminate()
		core.LogError("glfw reports no Vulkan loader")
		return core.ErrNoAdapter
	}

	glfw.WindowHint(glfw.Visible, glfw.False)
	glfw.WindowHint(glfw.Resizable, glfw.True)
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI) // Required for Vulkan.

	window, err := glfw.CreateWindow(int(width), int(height), applicationName, nil, nil)
	if err != nil {
		glfw.Terminate()
		core.LogError("failed to create window: %s", err)
		return err
	}
	p.Window = window

	p.Window.SetKeyCallback(p.keyCallback)
	p.Window.SetMouseButtonCallback(p.mouseButtonCallback)
	p.Window.SetCursorPosCallback(p.cursorPosCallback)
	p.Window.SetScrollCallback(p.scrollCallback)
	p.Window.SetFramebufferSizeCallback(p.framebufferSizeCallback)
	p.Window.SetCloseCallback(p.closeCallback)
	p.Window.SetPos(int(x), int(y))
	p.Window.Show()

	p.startTime = glfw.GetTime()
	return nil
}

func (p *Platform) Shutdown() error {
	if p.Window != nil {
		p.Window.Destroy()
		p.Window = nil
	}
	glfw.Terminate()
	return nil
}

// PumpMessages processes pending window events. It returns false once the
// window has been asked to close.
func (p *Platform) PumpMessages() bool {
	glfw.PollEvents()
	return p.Window != nil && !p.Window.ShouldClose()
}

// WaitMessages blocks until an event arrives or a short timeout passes. Used
// while the window is minimized so the loop does not spin.
func (p *Platform) WaitMessages() {
	glfw.WaitEventsTimeout(0.1)
}

// GetAbsoluteTime is the number of seconds since Startup.
func (p *Platform) GetAbsoluteTime() float64 {
	return glfw.GetTime() - p.startTime
}

// FramebufferSize is the drawable size in pixels, which differs from the
// window size on high density displays.
func (p *Platform) FramebufferSize() (uint32, uint32) {
	if p.Window == nil {
		return 0, 0
	}
	w, h := p.Window.GetFramebufferSize()
	return pixels(w), pixels(h)
}

func (p *Platform) RequiredInstanceExtensions() []string {
	return p.Window.GetRequiredInstanceExtensions()
}

func (p *Platform) CreateWindowSurface(instance interface{}) (uintptr, error) {
	return p.Window.CreateWindowSurface(instance, nil)
}

func (p *Platform) keyCallback(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
	if action == glfw.Repeat {
		return
	}
	code, ok := translateKey(key)
	if !ok {
		return
	}
	p.input.ProcessKey(code, action == glfw.Press)
}

func (p *Platform) mouseButtonCallback(w *glfw.Window, button glfw.MouseButton, action glfw.Action, mods glfw.ModifierKey) {
	b, ok := translateButton(button)
	if !ok {
		return
	}
	p.input.ProcessButton(b, action == glfw.Press)
}

func (p *Platform) cursorPosCallback(w *glfw.Window, xpos, ypos float64) {
	x := math.Clamp(xpos, 0, 65535)
	y := math.Clamp(ypos, 0, 65535)
	p.input.ProcessMouseMove(uint16(x), uint16(y))
}

func (p *Platform) scrollCallback(w *glfw.Window, xoff, yoff float64) {
	if yoff == 0 {
		return
	}
	// Flatten the input to an OS-independent (-1, 1)
	var delta int8 = 1
	if yoff < 0 {
		delta = -1
	}
	p.input.ProcessMouseWheel(delta)
}

func (p *Platform) framebufferSizeCallback(w *glfw.Window, width, height int) {
	p.bus.Fire(core.EventContext{
		Type: core.EVENT_CODE_RESIZED,
		Data: &core.WindowResizedEvent{
			Width:  pixels(width),
			Height: pixels(height),
		},
	})
}

func (p *Platform) closeCallback(w *glfw.Window) {
	p.bus.Fire(core.EventContext{Type: core.EVENT_CODE_APPLICATION_QUIT})
}

func pixels(v int) uint32 {
	if v < 0 {
		return 0
	}
	return uint32(v)
}
