package core

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient(ErrSurfaceOutdated))
	assert.True(t, IsTransient(fmt.Errorf("acquire: %w", ErrSurfaceTimeout)))
	assert.True(t, IsTransient(ErrSurfaceLost))
	assert.False(t, IsTransient(ErrDeviceLost))
	assert.False(t, IsTransient(nil))

	assert.True(t, IsFatal(fmt.Errorf("submit: %w", ErrOutOfMemory)))
	assert.True(t, IsFatal(ErrDeviceLost))
	assert.False(t, IsFatal(ErrSurfaceOutdated))
	assert.False(t, IsFatal(errors.New("other")))
}

func TestClock(t *testing.T) {
	now := time.Unix(100, 0)
	c := &Clock{now: func() time.Time { return now }}

	c.Update()
	assert.Zero(t, c.Elapsed(), "non-started clock must not advance")

	c.Start()
	now = now.Add(1500 * time.Millisecond)
	c.Update()
	assert.InDelta(t, 1.5, c.Elapsed(), 1e-9)

	c.Stop()
	now = now.Add(time.Second)
	c.Update()
	assert.InDelta(t, 1.5, c.Elapsed(), 1e-9, "stop keeps elapsed time")
}

func TestMetrics(t *testing.T) {
	m := NewMetrics()
	assert.Zero(t, m.FPS())

	for i := 0; i < FPS_SAMPLES*2; i++ {
		m.Update(1.0 / 60.0)
	}
	assert.InDelta(t, 60.0, m.FPS(), 1e-6)
	assert.InDelta(t, 1000.0/60.0, m.FrameTime(), 1e-6)
	assert.EqualValues(t, FPS_SAMPLES*2, m.Frames())

	// old samples fall out of the ring
	for i := 0; i < FPS_SAMPLES; i++ {
		m.Update(1.0 / 30.0)
	}
	assert.InDelta(t, 30.0, m.FPS(), 1e-6)
}

func TestEventBus(t *testing.T) {
	bus := NewEventBus()
	var order []string

	first, second := "first", "second"
	require.True(t, bus.Register(EVENT_CODE_RESIZED, &first, func(ctx EventContext) bool {
		order = append(order, first)
		return false
	}))
	require.True(t, bus.Register(EVENT_CODE_RESIZED, &second, func(ctx EventContext) bool {
		ev := ctx.Data.(*WindowResizedEvent)
		order = append(order, fmt.Sprintf("%s %dx%d", second, ev.Width, ev.Height))
		return true
	}))
	assert.False(t, bus.Register(EVENT_CODE_RESIZED, &first, func(EventContext) bool { return false }))

	handled := bus.Fire(EventContext{Type: EVENT_CODE_RESIZED, Data: &WindowResizedEvent{Width: 400, Height: 300}})
	assert.True(t, handled)
	assert.Equal(t, []string{"first", "second 400x300"}, order)

	assert.True(t, bus.Unregister(EVENT_CODE_RESIZED, &second))
	assert.False(t, bus.Unregister(EVENT_CODE_RESIZED, &second))
	assert.False(t, bus.Fire(EventContext{Type: EVENT_CODE_RESIZED, Data: &WindowResizedEvent{}}))
	assert.False(t, bus.Fire(EventContext{Type: EVENT_CODE_APPLICATION_QUIT}))
}

func TestInput(t *testing.T) {
	bus := NewEventBus()
	var pressed []KeyCode
	bus.Register(EVENT_CODE_KEY_PRESSED, t, func(ctx EventContext) bool {
		pressed = append(pressed, ctx.Data.(*KeyEvent).KeyCode)
		return true
	})

	in := NewInput(bus)
	in.ProcessKey(KEY_O, true)
	in.ProcessKey(KEY_O, true)
	assert.Equal(t, []KeyCode{KEY_O}, pressed, "repeated state must not fire again")
	assert.True(t, in.IsKeyDown(KEY_O))
	assert.True(t, in.KeyPressedThisFrame(KEY_O))

	in.Update(0)
	assert.True(t, in.WasKeyDown(KEY_O))
	assert.False(t, in.KeyPressedThisFrame(KEY_O))

	in.ProcessMouseMove(10, 20)
	in.Update(0)
	in.ProcessMouseMove(15, 12)
	dx, dy := in.MouseDelta()
	assert.Equal(t, int32(5), dx)
	assert.Equal(t, int32(-8), dy)

	in.ProcessButton(BUTTON_RIGHT, true)
	assert.True(t, in.IsButtonDown(BUTTON_RIGHT))
	assert.True(t, in.WasButtonUp(BUTTON_RIGHT))
}

func TestNewLabel(t *testing.T) {
	a, b := NewLabel("depth-texture"), NewLabel("depth-texture")
	assert.True(t, strings.HasPrefix(a, "depth-texture-"))
	assert.NotEqual(t, a, b)
}
