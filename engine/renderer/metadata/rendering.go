package metadata

/** @brief Determines face culling mode during rendering. */
type FaceCullMode int

const (
	/** @brief No faces are culled. */
	FaceCullModeNone FaceCullMode = 0x0
	/** @brief Only front faces are culled. */
	FaceCullModeFront FaceCullMode = 0x1
	/** @brief Only back faces are culled. */
	FaceCullModeBack FaceCullMode = 0x2
	/** @brief Both front and back faces are culled. */
	FaceCullModeFrontAndBack FaceCullMode = 0x3
)

/** @brief How vertices are assembled into primitives. */
type PrimitiveTopology int

const (
	PrimitiveTopologyTriangleList PrimitiveTopology = iota
	PrimitiveTopologyTriangleStrip
	PrimitiveTopologyLineList
)

/** @brief Depth comparison used by the depth test. */
type CompareOp int

const (
	CompareOpNever CompareOp = iota
	CompareOpLess
	CompareOpLessOrEqual
	CompareOpAlways
)

/** @brief The kind of render pass a pipeline is built for. */
type PassKind int

const (
	// Clears color and depth and runs the depth test.
	PassKindScene PassKind = iota
	// Loads color, has no depth attachment and may sample the depth texture.
	PassKindOverlay
)

func (k PassKind) String() string {
	switch k {
	case PassKindScene:
		return "scene"
	case PassKindOverlay:
		return "overlay"
	}
	return "unknown"
}
