package platform

import (
	"testing"

	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/spaghettifunk/prism/engine/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranslateKey(t *testing.T) {
	cases := map[glfw.Key]core.KeyCode{
		glfw.KeyA:      core.KEY_A,
		glfw.KeyO:      core.KEY_O,
		glfw.KeyW:      core.KEY_W,
		glfw.KeyZ:      core.KEY_Z,
		glfw.KeyF1:     core.KEY_F1,
		glfw.KeyF12:    core.KEY_F12,
		glfw.KeyLeft:   core.KEY_LEFT,
		glfw.KeyUp:     core.KEY_UP,
		glfw.KeyEscape: core.KEY_ESCAPE,
		glfw.Key0:      core.KeyCode('0'),
		glfw.Key9:      core.KeyCode('9'),
	}
	for in, want := range cases {
		got, ok := translateKey(in)
		assert.True(t, ok, "key %d", in)
		assert.Equal(t, want, got, "key %d", in)
	}

	_, ok := translateKey(glfw.KeyUnknown)
	assert.False(t, ok)
}

func TestTranslateButton(t *testing.T) {
	b, ok := translateButton(glfw.MouseButtonRight)
	assert.True(t, ok)
	assert.Equal(t, core.BUTTON_RIGHT, b)

	_, ok = translateButton(glfw.MouseButton5)
	assert.False(t, ok)
}

func TestCallbacksFeedInput(t *testing.T) {
	bus := core.NewEventBus()
	input := core.NewInput(bus)
	p := New(bus, input)

	var resized *core.WindowResizedEvent
	bus.Register(core.EVENT_CODE_RESIZED, t, func(ctx core.EventContext) bool {
		resized = ctx.Data.(*core.WindowResizedEvent)
		return true
	})

	p.keyCallback(nil, glfw.KeyW, 0, glfw.Press, 0)
	assert.True(t, input.IsKeyDown(core.KEY_W))
	p.keyCallback(nil, glfw.KeyW, 0, glfw.Release, 0)
	assert.False(t, input.IsKeyDown(core.KEY_W))

	p.mouseButtonCallback(nil, glfw.MouseButtonRight, glfw.Press, 0)
	assert.True(t, input.IsButtonDown(core.BUTTON_RIGHT))

	p.cursorPosCallback(nil, -5, 70000)
	x, y := input.MousePosition()
	assert.Equal(t, int32(0), x)
	assert.Equal(t, int32(65535), y)

	p.framebufferSizeCallback(nil, 1024, 0)
	if assert.NotNil(t, resized) {
		assert.Equal(t, uint32(1024), resized.Width)
		assert.Equal(t, uint32(0), resized.Height)
	}
}

func TestHeadlessResizeFiresEvent(t *testing.T) {
	bus := core.NewEventBus()
	h := NewHeadless(bus)
	require.NoError(t, h.Startup("test", 0, 0, 320, 200))

	var got *core.WindowResizedEvent
	bus.Register(core.EVENT_CODE_RESIZED, t, func(ctx core.EventContext) bool {
		got = ctx.Data.(*core.WindowResizedEvent)
		return true
	})
	h.Resize(640, 0)
	require.NotNil(t, got)
	assert.Equal(t, uint32(640), got.Width)
	assert.Equal(t, uint32(0), got.Height)

	w, hh := h.FramebufferSize()
	assert.Equal(t, uint32(640), w)
	assert.Equal(t, uint32(0), hh)

	assert.True(t, h.PumpMessages())
	h.Close()
	assert.False(t, h.PumpMessages())
}
