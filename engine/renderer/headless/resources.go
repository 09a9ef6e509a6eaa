package headless

import (
	"fmt"

	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/renderer/metadata"
)

type DepthTexture struct {
	backend    *Backend
	label      string
	width      uint32
	height     uint32
	generation uint64
	destroyed  bool
	plane      []float32
}

func (d *DepthTexture) Label() string      { return d.label }
func (d *DepthTexture) Width() uint32      { return d.width }
func (d *DepthTexture) Height() uint32     { return d.height }
func (d *DepthTexture) Generation() uint64 { return d.generation }

func (d *DepthTexture) Destroy() {
	if d.destroyed {
		return
	}
	d.destroyed = true
	d.backend.destroyDepth(d)
}

// At returns the stored depth at pixel (x, y).
func (d *DepthTexture) At(x, y uint32) float32 {
	return d.plane[int(y)*int(d.width)+int(x)]
}

// Set stores a depth sample, used to stage depth content for snapshots.
func (d *DepthTexture) Set(x, y uint32, v float32) {
	d.plane[int(y)*int(d.width)+int(x)] = v
}

type Pipeline struct {
	label     string
	desc      metadata.PipelineDescriptor
	destroyed bool
}

func (p *Pipeline) Label() string                            { return p.label }
func (p *Pipeline) Descriptor() *metadata.PipelineDescriptor { return &p.desc }

type Buffer struct {
	label string
	usage metadata.BufferUsage
	data  []byte
}

func (b *Buffer) Label() string              { return b.label }
func (b *Buffer) Usage() metadata.BufferUsage { return b.usage }
func (b *Buffer) Size() uint64               { return uint64(len(b.data)) }

// Bytes returns the buffer contents.
func (b *Buffer) Bytes() []byte { return b.data }

func (b *Backend) CreatePipeline(label string, desc *metadata.PipelineDescriptor) (metadata.Pipeline, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.initialized {
		return nil, ErrNotInitialized
	}
	if err := b.record(OpCreatePipe); err != nil {
		return nil, err
	}
	p := &Pipeline{label: label, desc: *desc}
	b.pipelines[p] = struct{}{}
	return p, nil
}

func (b *Backend) DestroyPipeline(pipeline metadata.Pipeline) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := pipeline.(*Pipeline)
	if !ok {
		return
	}
	b.ops = append(b.ops, OpDestroyPipe)
	p.destroyed = true
	delete(b.pipelines, p)
}

func (b *Backend) CreateBuffer(label string, usage metadata.BufferUsage, data []byte) (metadata.Buffer, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.initialized {
		return nil, ErrNotInitialized
	}
	if err := b.record(OpCreateBuffer); err != nil {
		return nil, err
	}
	buf := &Buffer{label: label, usage: usage, data: append([]byte(nil), data...)}
	b.buffers[buf] = struct{}{}
	return buf, nil
}

func (b *Backend) WriteBuffer(buffer metadata.Buffer, offset uint64, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record(OpWriteBuffer); err != nil {
		return err
	}
	buf, ok := buffer.(*Buffer)
	if !ok {
		return fmt.Errorf("%w: foreign buffer %s", core.ErrInvalidDescriptor, buffer.Label())
	}
	if offset+uint64(len(data)) > uint64(len(buf.data)) {
		return fmt.Errorf("%w: write overflows buffer %s", core.ErrInvalidDescriptor, buf.label)
	}
	copy(buf.data[offset:], data)
	return nil
}

func (b *Backend) DestroyBuffer(buffer metadata.Buffer) {
	b.mu.Lock()
	defer b.mu.Unlock()
	buf, ok := buffer.(*Buffer)
	if !ok {
		return
	}
	b.ops = append(b.ops, OpDestroyBuffer)
	delete(b.buffers, buf)
}

// LivePipelines and LiveBuffers count resources not yet destroyed.
func (b *Backend) LivePipelines() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pipelines)
}

func (b *Backend) LiveBuffers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.buffers)
}

// CurrentDepth is the most recently created depth texture, nil once destroyed.
func (b *Backend) CurrentDepth() *DepthTexture {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.depth
}
