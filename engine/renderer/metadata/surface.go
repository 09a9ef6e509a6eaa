package metadata

import "fmt"

/** @brief Pixel format of the presentable surface. */
type Format int

const (
	FormatUndefined Format = iota
	FormatBGRA8Unorm
	FormatBGRA8UnormSRGB
	FormatRGBA8Unorm
	FormatRGBA8UnormSRGB
)

func (f Format) IsSRGB() bool {
	return f == FormatBGRA8UnormSRGB || f == FormatRGBA8UnormSRGB
}

func (f Format) String() string {
	switch f {
	case FormatBGRA8Unorm:
		return "bgra8unorm"
	case FormatBGRA8UnormSRGB:
		return "bgra8unorm-srgb"
	case FormatRGBA8Unorm:
		return "rgba8unorm"
	case FormatRGBA8UnormSRGB:
		return "rgba8unorm-srgb"
	}
	return "undefined"
}

/** @brief Presentation mode of the surface. */
type PresentMode int

const (
	PresentModeFifo PresentMode = iota
	PresentModeMailbox
	PresentModeImmediate
)

func (p PresentMode) String() string {
	switch p {
	case PresentModeFifo:
		return "fifo"
	case PresentModeMailbox:
		return "mailbox"
	case PresentModeImmediate:
		return "immediate"
	}
	return "unknown"
}

func PresentModeFromString(s string) (PresentMode, error) {
	switch s {
	case "fifo", "":
		return PresentModeFifo, nil
	case "mailbox":
		return PresentModeMailbox, nil
	case "immediate":
		return PresentModeImmediate, nil
	}
	return PresentModeFifo, fmt.Errorf("string %s is not a valid present mode", s)
}

/** @brief The current configuration of the presentable surface. */
type SurfaceConfig struct {
	Format      Format
	PresentMode PresentMode
	Width       uint32
	Height      uint32
}

/** @brief What the adapter supports for a given window surface. */
type SurfaceCapabilities struct {
	Formats      []Format
	PresentModes []PresentMode
}

// PreferredFormat returns the first sRGB format, or the first format when
// none is sRGB.
func (c *SurfaceCapabilities) PreferredFormat() (Format, bool) {
	if len(c.Formats) == 0 {
		return FormatUndefined, false
	}
	for _, f := range c.Formats {
		if f.IsSRGB() {
			return f, true
		}
	}
	return c.Formats[0], true
}

// PresentModeOr returns want if supported, else fifo, else the first mode.
func (c *SurfaceCapabilities) PresentModeOr(want PresentMode) (PresentMode, bool) {
	if len(c.PresentModes) == 0 {
		return PresentModeFifo, false
	}
	fifo := false
	for _, m := range c.PresentModes {
		if m == want {
			return m, true
		}
		if m == PresentModeFifo {
			fifo = true
		}
	}
	if fifo {
		return PresentModeFifo, true
	}
	return c.PresentModes[0], true
}

/** @brief The window the surface is created for. */
type Window interface {
	// FramebufferSize is the drawable size in pixels.
	FramebufferSize() (width, height uint32)
}

type Color struct {
	R, G, B, A float64
}

/**
 * @brief The depth attachment of the surface. It is sized exactly to the
 * surface and recreated, never resized, when the surface changes.
 */
type DepthTexture interface {
	Label() string
	Width() uint32
	Height() uint32
	// Generation increases every time a depth texture is created so views
	// that bind it can tell a recreated texture apart.
	Generation() uint64
	Destroy()
}

/** @brief An acquired presentable image, valid until presented. */
type Frame struct {
	ImageIndex uint32
	Width      uint32
	Height     uint32
	// Suboptimal is set when the image is usable but the surface should be reconfigured.
	Suboptimal bool
}
