package metadata

type BufferUsage int

const (
	BufferUsageVertex BufferUsage = iota
	BufferUsageIndex
	BufferUsageUniform
)

func (u BufferUsage) String() string {
	switch u {
	case BufferUsageVertex:
		return "vertex"
	case BufferUsageIndex:
		return "index"
	case BufferUsageUniform:
		return "uniform"
	}
	return "unknown"
}

type Buffer interface {
	Label() string
	Usage() BufferUsage
	Size() uint64
}

/** @brief The buffers one draw call reads. */
type FrameBuffers struct {
	Vertex        Buffer
	Instance      Buffer
	Index         Buffer
	Uniform       Buffer
	VertexCount   uint32
	IndexCount    uint32
	InstanceCount uint32
}

type Draw struct {
	Pipeline Pipeline
	Buffers  *FrameBuffers
}

/** @brief One render pass of a frame. */
type Pass struct {
	Label      string
	Kind       PassKind
	ClearColor Color
	ClearDepth float32
	Draws      []Draw
}
