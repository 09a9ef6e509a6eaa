// Package headless is an in-memory graphics backend. It rasterizes scene
// draws into a CPU copy of the depth attachment and logs every call so the
// render loop can run and be inspected without a GPU.
package headless

import (
	"errors"
	"fmt"
	"sync"

	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/renderer/metadata"
)

var ErrNotInitialized = errors.New("headless backend not initialized")

type Op string

const (
	OpInitialize    Op = "initialize"
	OpConfigure     Op = "configure"
	OpCreateDepth   Op = "create-depth"
	OpDestroyDepth  Op = "destroy-depth"
	OpAcquire       Op = "acquire"
	OpRecord        Op = "record"
	OpSubmit        Op = "submit"
	OpPresent       Op = "present"
	OpWaitIdle      Op = "wait-idle"
	OpShutdown      Op = "shutdown"
	OpWriteBuffer   Op = "write-buffer"
	OpCreatePipe    Op = "create-pipeline"
	OpDestroyPipe   Op = "destroy-pipeline"
	OpCreateBuffer  Op = "create-buffer"
	OpDestroyBuffer Op = "destroy-buffer"
)

type fault struct {
	err   error
	times int
}

func (f *fault) take() error {
	if f == nil || f.times == 0 {
		return nil
	}
	if f.times > 0 {
		f.times--
	}
	return f.err
}

type Backend struct {
	mu sync.Mutex

	caps        metadata.SurfaceCapabilities
	initialized bool
	config      metadata.SurfaceConfig
	configured  bool

	ops      []Op
	presents uint64
	images   uint32
	next     uint32
	inFlight bool

	generation uint64
	depth      *DepthTexture
	live       int

	faults map[Op]*fault

	pipelines map[*Pipeline]struct{}
	buffers   map[*Buffer]struct{}
}

func New() *Backend {
	return &Backend{
		caps: metadata.SurfaceCapabilities{
			Formats:      []metadata.Format{metadata.FormatBGRA8Unorm, metadata.FormatBGRA8UnormSRGB},
			PresentModes: []metadata.PresentMode{metadata.PresentModeFifo, metadata.PresentModeMailbox},
		},
		images:    3,
		faults:    make(map[Op]*fault),
		pipelines: make(map[*Pipeline]struct{}),
		buffers:   make(map[*Buffer]struct{}),
	}
}

func (b *Backend) Name() string { return "headless" }

// SetCapabilities replaces what Initialize reports.
func (b *Backend) SetCapabilities(caps metadata.SurfaceCapabilities) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.caps = caps
}

// Fail makes the next times calls of op return err. A negative times fails forever.
func (b *Backend) Fail(op Op, err error, times int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.faults[op] = &fault{err: err, times: times}
}

// FailAcquire is Fail(OpAcquire, err, times).
func (b *Backend) FailAcquire(err error, times int) {
	b.Fail(OpAcquire, err, times)
}

func (b *Backend) record(op Op) error {
	b.ops = append(b.ops, op)
	return b.faults[op].take()
}

// Ops returns a copy of the call log.
func (b *Backend) Ops() []Op {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Op(nil), b.ops...)
}

// Count returns how many times op was called.
func (b *Backend) Count(op Op) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, o := range b.ops {
		if o == op {
			n++
		}
	}
	return n
}

func (b *Backend) Presents() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.presents
}

func (b *Backend) Config() metadata.SurfaceConfig {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.config
}

// LiveDepthTextures is the number of depth textures created and not yet destroyed.
func (b *Backend) LiveDepthTextures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.live
}

func (b *Backend) Initialize(window metadata.Window) (*metadata.SurfaceCapabilities, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record(OpInitialize); err != nil {
		return nil, err
	}
	if window == nil {
		return nil, fmt.Errorf("%w: no window", core.ErrNoAdapter)
	}
	b.initialized = true
	caps := metadata.SurfaceCapabilities{
		Formats:      append([]metadata.Format(nil), b.caps.Formats...),
		PresentModes: append([]metadata.PresentMode(nil), b.caps.PresentModes...),
	}
	return &caps, nil
}

func (b *Backend) Configure(config metadata.SurfaceConfig) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.initialized {
		return ErrNotInitialized
	}
	if err := b.record(OpConfigure); err != nil {
		return err
	}
	if config.Width == 0 || config.Height == 0 {
		return fmt.Errorf("configure with degenerate size %dx%d", config.Width, config.Height)
	}
	b.config = config
	b.configured = true
	b.inFlight = false
	return nil
}

func (b *Backend) CreateDepthTexture(label string, width, height uint32) (metadata.DepthTexture, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record(OpCreateDepth); err != nil {
		return nil, err
	}
	b.generation++
	b.live++
	d := &DepthTexture{
		backend:    b,
		label:      label,
		width:      width,
		height:     height,
		generation: b.generation,
		plane:      make([]float32, int(width)*int(height)),
	}
	for i := range d.plane {
		d.plane[i] = 1.0
	}
	b.depth = d
	return d, nil
}

func (b *Backend) destroyDepth(d *DepthTexture) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ops = append(b.ops, OpDestroyDepth)
	b.live--
	if b.depth == d {
		b.depth = nil
	}
}

func (b *Backend) Acquire() (*metadata.Frame, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.configured {
		return nil, ErrNotInitialized
	}
	if err := b.record(OpAcquire); err != nil {
		return nil, err
	}
	if b.inFlight {
		return nil, fmt.Errorf("%w: previous image was not presented", core.ErrInvalidState)
	}
	b.inFlight = true
	frame := &metadata.Frame{
		ImageIndex: b.next,
		Width:      b.config.Width,
		Height:     b.config.Height,
	}
	b.next = (b.next + 1) % b.images
	return frame, nil
}

func (b *Backend) Record(frame *metadata.Frame, depth metadata.DepthTexture, passes []*metadata.Pass) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record(OpRecord); err != nil {
		return err
	}
	if depth == nil {
		return fmt.Errorf("%w: no depth attachment", core.ErrInvalidState)
	}
	if depth.Width() != frame.Width || depth.Height() != frame.Height {
		return fmt.Errorf("%w: depth %dx%d, frame %dx%d", core.ErrDepthMismatch,
			depth.Width(), depth.Height(), frame.Width, frame.Height)
	}
	d, ok := depth.(*DepthTexture)
	if !ok || d.destroyed {
		return fmt.Errorf("%w: depth attachment is not live", core.ErrInvalidState)
	}

	for _, pass := range passes {
		if pass.Kind == metadata.PassKindScene {
			for i := range d.plane {
				d.plane[i] = pass.ClearDepth
			}
		}
		for _, draw := range pass.Draws {
			if err := b.checkDraw(pass, draw); err != nil {
				return err
			}
			if pass.Kind != metadata.PassKindScene {
				continue
			}
			if err := d.rasterize(draw); err != nil {
				return fmt.Errorf("pass %s: %w", pass.Label, err)
			}
		}
	}
	return nil
}

func (b *Backend) checkDraw(pass *metadata.Pass, draw metadata.Draw) error {
	p, ok := draw.Pipeline.(*Pipeline)
	if !ok || p.destroyed {
		return fmt.Errorf("%w: pass %s draws with an unknown pipeline", core.ErrInvalidDescriptor, pass.Label)
	}
	if p.desc.Pass != pass.Kind {
		return fmt.Errorf("%w: %s pipeline %s used in %s pass %s", core.ErrInvalidDescriptor,
			p.desc.Pass, p.label, pass.Kind, pass.Label)
	}
	if draw.Buffers == nil {
		return fmt.Errorf("%w: draw without buffers in pass %s", core.ErrInvalidDescriptor, pass.Label)
	}
	if p.desc.HasBinding(metadata.BindingTypeUniform) && draw.Buffers.Uniform == nil {
		return fmt.Errorf("%w: pipeline %s needs a uniform buffer", core.ErrInvalidDescriptor, p.label)
	}
	return nil
}

func (b *Backend) Submit(frame *metadata.Frame) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.record(OpSubmit)
}

func (b *Backend) Present(frame *metadata.Frame) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.inFlight = false
	if err := b.record(OpPresent); err != nil {
		return err
	}
	b.presents++
	return nil
}

func (b *Backend) WaitIdle() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.record(OpWaitIdle)
}

func (b *Backend) Shutdown() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record(OpShutdown); err != nil {
		return err
	}
	if b.live != 0 {
		core.LogWarn("headless backend shut down with %d live depth textures", b.live)
	}
	b.initialized = false
	b.configured = false
	return nil
}
