package loaders

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/spaghettifunk/prism/engine/renderer/metadata"
)

// SpirvMagic is the first word of every SPIR-V module.
const SpirvMagic uint32 = 0x07230203

var ErrInvalidSpirv = errors.New("invalid spir-v module")

// ShaderLoader reads compiled SPIR-V. Shaders are named after their file,
// "depth.frag.spv" is the fragment stage "depth.frag". Every load of the same
// name gets a higher Version so pipelines can tell a reload apart.
type ShaderLoader struct {
	mu       sync.Mutex
	versions map[string]uint32
}

func NewShaderLoader() *ShaderLoader {
	return &ShaderLoader{versions: make(map[string]uint32)}
}

func (sl *ShaderLoader) Load(name, path string) (interface{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := ValidateSpirv(data); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	stage, err := StageFromName(name)
	if err != nil {
		return nil, err
	}

	sl.mu.Lock()
	sl.versions[name]++
	version := sl.versions[name]
	sl.mu.Unlock()

	return &metadata.ShaderSource{
		Name:       name,
		Stage:      stage,
		EntryPoint: "main",
		Code:       data,
		Version:    version,
	}, nil
}

func (sl *ShaderLoader) Unload(asset interface{}) error {
	src, ok := asset.(*metadata.ShaderSource)
	if !ok {
		return fmt.Errorf("shader loader cannot unload %T", asset)
	}
	src.Code = nil
	return nil
}

// ValidateSpirv checks the size and the magic number. SPIR-V is stored in
// the byte order of the machine that wrote it, the renderer only accepts
// little endian modules.
func ValidateSpirv(data []byte) error {
	if len(data) < 20 {
		return fmt.Errorf("%w: %d bytes is shorter than the header", ErrInvalidSpirv, len(data))
	}
	if len(data)%4 != 0 {
		return fmt.Errorf("%w: size %d is not a multiple of 4", ErrInvalidSpirv, len(data))
	}
	if magic := binary.LittleEndian.Uint32(data); magic != SpirvMagic {
		return fmt.Errorf("%w: magic 0x%08x", ErrInvalidSpirv, magic)
	}
	return nil
}

func StageFromName(name string) (metadata.ShaderStage, error) {
	switch {
	case strings.HasSuffix(name, ".vert"):
		return metadata.ShaderStageVertex, nil
	case strings.HasSuffix(name, ".frag"):
		return metadata.ShaderStageFragment, nil
	}
	return 0, fmt.Errorf("cannot tell the shader stage of %s", name)
}
