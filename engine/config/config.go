// Package config loads the application configuration from a TOML file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

const (
	BackendVulkan   = "vulkan"
	BackendHeadless = "headless"
)

var (
	ErrInvalidConfig = errors.New("invalid configuration")
)

type Config struct {
	LogLevel string   `toml:"log_level"`
	Window   Window   `toml:"window"`
	Renderer Renderer `toml:"renderer"`
	Camera   Camera   `toml:"camera"`
	Assets   Assets   `toml:"assets"`
}

type Window struct {
	// The application name used in windowing.
	Title string `toml:"title"`
	// Window starting position.
	X uint32 `toml:"x"`
	Y uint32 `toml:"y"`
	// Window starting size.
	Width  uint32 `toml:"width"`
	Height uint32 `toml:"height"`
}

type Renderer struct {
	Backend string `toml:"backend"`
	// fifo, mailbox or immediate. Unsupported modes fall back to fifo.
	PresentMode string `toml:"present_mode"`
	// Enables the Vulkan validation layers.
	Validation bool       `toml:"validation"`
	ClearColor [4]float64 `toml:"clear_color"`
	ShowDepth  bool       `toml:"show_depth"`
}

type Camera struct {
	Eye           [3]float32 `toml:"eye"`
	Yaw           float32    `toml:"yaw"`
	Pitch         float32    `toml:"pitch"`
	FovY          float32    `toml:"fovy"`
	Near          float32    `toml:"near"`
	Far           float32    `toml:"far"`
	MoveSpeed     float32    `toml:"move_speed"`
	RotationSpeed float32    `toml:"rotation_speed"`
}

type Assets struct {
	// Directory holding the compiled SPIR-V shaders.
	Dir   string `toml:"dir"`
	Watch bool   `toml:"watch"`
}

func Default() *Config {
	return &Config{
		LogLevel: "info",
		Window: Window{
			Title:  "Prism - depth",
			X:      100,
			Y:      100,
			Width:  800,
			Height: 600,
		},
		Renderer: Renderer{
			Backend:     BackendVulkan,
			PresentMode: "fifo",
			ClearColor:  [4]float64{0.1, 0.2, 0.3, 1.0},
		},
		Camera: Camera{
			Eye:           [3]float32{5.41923, 0.19568399, 6.468395},
			Yaw:           81,
			Pitch:         56,
			FovY:          90,
			Near:          0.1,
			Far:           100,
			MoveSpeed:     0.2,
			RotationSpeed: 0.2,
		},
		Assets: Assets{
			Dir:   "assets/shaders",
			Watch: true,
		},
	}
}

// Load reads path on top of the defaults, so the file only needs the keys it changes.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read config '%s': %w", path, err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	cfg := Default()
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			row, col := derr.Position()
			return nil, fmt.Errorf("%w: line %d column %d: %s", ErrInvalidConfig, row, col, derr.Error())
		}
		return nil, fmt.Errorf("%w: %s", ErrInvalidConfig, err.Error())
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Window.Width == 0 || c.Window.Height == 0 {
		return fmt.Errorf("%w: window size must be non-zero, got %dx%d", ErrInvalidConfig, c.Window.Width, c.Window.Height)
	}
	switch c.Renderer.Backend {
	case BackendVulkan, BackendHeadless:
	default:
		return fmt.Errorf("%w: unknown renderer backend '%s'", ErrInvalidConfig, c.Renderer.Backend)
	}
	switch c.Renderer.PresentMode {
	case "fifo", "mailbox", "immediate":
	default:
		return fmt.Errorf("%w: unknown present mode '%s'", ErrInvalidConfig, c.Renderer.PresentMode)
	}
	if c.Camera.Near <= 0 || c.Camera.Near >= c.Camera.Far {
		return fmt.Errorf("%w: camera planes must satisfy 0 < near < far, got near=%g far=%g", ErrInvalidConfig, c.Camera.Near, c.Camera.Far)
	}
	if c.Camera.FovY <= 0 || c.Camera.FovY >= 180 {
		return fmt.Errorf("%w: camera fovy must be in (0, 180), got %g", ErrInvalidConfig, c.Camera.FovY)
	}
	return nil
}

// Encode writes the configuration back as TOML.
func (c *Config) Encode() ([]byte, error) {
	var buf bytes.Buffer
	enc := toml.NewEncoder(&buf)
	enc.SetIndentTables(true)
	if err := enc.Encode(c); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
