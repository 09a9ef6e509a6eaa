package platform

import (
	"time"

	"github.com/spaghettifunk/prism/engine/core"
)

// Headless stands in for the window when rendering off screen. Its size only
// changes through Resize, which fires the same event a real window would.
type Headless struct {
	bus       *core.EventBus
	width     uint32
	height    uint32
	startTime time.Time
	closed    bool
}

func NewHeadless(bus *core.EventBus) *Headless {
	return &Headless{bus: bus}
}

func (h *Headless) Startup(applicationName string, x uint32, y uint32, width uint32, height uint32) error {
	h.width, h.height = width, height
	h.startTime = time.Now()
	core.LogInfo("headless window %s started at %dx%d", applicationName, width, height)
	return nil
}

func (h *Headless) Shutdown() error {
	h.closed = true
	return nil
}

func (h *Headless) PumpMessages() bool {
	return !h.closed
}

func (h *Headless) WaitMessages() {}

func (h *Headless) GetAbsoluteTime() float64 {
	return time.Since(h.startTime).Seconds()
}

func (h *Headless) FramebufferSize() (uint32, uint32) {
	return h.width, h.height
}

// Resize changes the size and fires EVENT_CODE_RESIZED.
func (h *Headless) Resize(width, height uint32) {
	h.width, h.height = width, height
	if h.bus != nil {
		h.bus.Fire(core.EventContext{
			Type: core.EVENT_CODE_RESIZED,
			Data: &core.WindowResizedEvent{Width: width, Height: height},
		})
	}
}

// Close makes the next PumpMessages report that the window is gone.
func (h *Headless) Close() {
	h.closed = true
}
