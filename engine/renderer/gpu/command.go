package gpu

import (
	"github.com/emberengine/ember/engine/renderer/gpu/driver"
)

// TextureSampler is one fragment sampler slot of a material. A nil or
// disposed Texture binds the device's reserved fallback texture instead of
// leaving the slot undefined.
type TextureSampler struct {
	Texture *Texture
	State   driver.SamplerState
}

// Material pairs a shader with the per-draw data pushed alongside it.
type Material struct {
	Shader *Shader

	// Uniform bytes pushed to slot 0 of each stage. Empty slices push
	// nothing.
	VertexUniforms   []byte
	FragmentUniforms []byte

	Samplers []TextureSampler
}

// VertexBufferBinding is one vertex buffer of a draw, in binding-slot
// order. InstanceRate advances the buffer per instance instead of per
// vertex and participates in the pipeline key.
type VertexBufferBinding struct {
	Buffer       *Buffer
	InstanceRate bool
}

// DrawCommand is the full description of one draw call.
type DrawCommand struct {
	// Target is the render target; nil addresses the internal backbuffer.
	Target *Target

	Material *Material

	VertexBuffers []VertexBufferBinding
	IndexBuffer   *Buffer

	VertexStart uint32
	VertexCount uint32
	IndexStart  uint32
	IndexCount  uint32

	// InstanceCount below 1 draws a single instance.
	InstanceCount uint32

	// Optional overrides; nil derives from the target size.
	Viewport *driver.Viewport
	Scissor  *driver.Rect

	Cull              driver.CullMode
	DepthCompare      driver.CompareFunc
	DepthTestEnabled  bool
	DepthWriteEnabled bool
	Blend             driver.BlendMode
}
