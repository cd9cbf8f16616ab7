package assets

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/emberengine/ember/engine/renderer/gpu/driver"
)

// shaderConfig mirrors the .shader TOML sidecar that names the compiled
// bytecode files and the per-stage resource counts.
type shaderConfig struct {
	Name       string      `toml:"name"`
	EntryPoint string      `toml:"entry_point"`
	Vertex     stageConfig `toml:"vertex"`
	Fragment   stageConfig `toml:"fragment"`
}

type stageConfig struct {
	Path           string `toml:"path"`
	UniformBuffers uint32 `toml:"uniform_buffers"`
	Samplers       uint32 `toml:"samplers"`
}

// Shader is a loaded shader program description, ready to hand to the
// graphics device.
type Shader struct {
	Name     string
	Vertex   driver.ShaderStageInfo
	Fragment driver.ShaderStageInfo
}

// LoadShader reads a .shader config and the SPIR-V bytecode files it names.
// Bytecode paths are resolved relative to the config file.
func LoadShader(path string) (*Shader, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("func LoadShader: %w", err)
	}

	var cfg shaderConfig
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("func LoadShader: parsing %s: %w", path, err)
	}
	if cfg.EntryPoint == "" {
		cfg.EntryPoint = "main"
	}
	if cfg.Name == "" {
		cfg.Name = filepath.Base(path)
	}

	dir := filepath.Dir(path)
	vertexCode, err := readBytecode(filepath.Join(dir, cfg.Vertex.Path))
	if err != nil {
		return nil, fmt.Errorf("func LoadShader: vertex stage of %s: %w", cfg.Name, err)
	}
	fragmentCode, err := readBytecode(filepath.Join(dir, cfg.Fragment.Path))
	if err != nil {
		return nil, fmt.Errorf("func LoadShader: fragment stage of %s: %w", cfg.Name, err)
	}

	return &Shader{
		Name: cfg.Name,
		Vertex: driver.ShaderStageInfo{
			Stage:              driver.ShaderStageVertex,
			Code:               vertexCode,
			EntryPoint:         cfg.EntryPoint,
			UniformBufferCount: cfg.Vertex.UniformBuffers,
			SamplerCount:       cfg.Vertex.Samplers,
		},
		Fragment: driver.ShaderStageInfo{
			Stage:              driver.ShaderStageFragment,
			Code:               fragmentCode,
			EntryPoint:         cfg.EntryPoint,
			UniformBufferCount: cfg.Fragment.UniformBuffers,
			SamplerCount:       cfg.Fragment.Samplers,
		},
	}, nil
}

func readBytecode(path string) ([]byte, error) {
	code, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(code) == 0 || len(code)%4 != 0 {
		return nil, fmt.Errorf("%s is not valid SPIR-V bytecode (%d bytes)", path, len(code))
	}
	return code, nil
}
