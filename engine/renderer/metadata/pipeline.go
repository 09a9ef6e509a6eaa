package metadata

/**
 * @brief Immutable description of a graphics pipeline. A pipeline built from
 * it outlives any surface reconfiguration.
 */
type PipelineDescriptor struct {
	Name     string
	Vertex   ShaderSource
	Fragment ShaderSource
	Layouts  []VertexLayout
	Bindings []Binding

	Topology   PrimitiveTopology
	CullMode   FaceCullMode
	Pass       PassKind
	DepthTest  bool
	DepthWrite bool
	DepthCmp   CompareOp
	Blend      bool
}

// HasBinding reports whether the descriptor declares a binding of type t.
func (d *PipelineDescriptor) HasBinding(t BindingType) bool {
	for _, b := range d.Bindings {
		if b.Type == t {
			return true
		}
	}
	return false
}

type Pipeline interface {
	Label() string
	Descriptor() *PipelineDescriptor
}
