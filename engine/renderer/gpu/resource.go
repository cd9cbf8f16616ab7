package gpu

import (
	"sync"

	"github.com/google/uuid"

	"github.com/emberengine/ember/engine/renderer/gpu/driver"
)

// resourceKind is the discriminator of the resource variants the device
// hands out. Disposal dispatches on it exhaustively; see Device.destroy.
type resourceKind uint8

const (
	resourceTexture resourceKind = iota + 1
	resourceTarget
	resourceBuffer
	resourceShader
)

func (k resourceKind) String() string {
	switch k {
	case resourceTexture:
		return "texture"
	case resourceTarget:
		return "target"
	case resourceBuffer:
		return "buffer"
	case resourceShader:
		return "shader"
	}
	return "resource"
}

// resource is the header embedded in every GPU-backed object.
type resource struct {
	kind      resourceKind
	device    *Device
	id        uuid.UUID
	name      string
	destroyed bool
}

func (r *resource) res() *resource { return r }

// Name returns the debug name given at creation.
func (r *resource) Name() string { return r.name }

// Destroyed reports whether the resource was explicitly destroyed. A
// resource whose owning device was shut down is also disposed; use the
// device to check for that.
func (r *resource) Destroyed() bool { return r.destroyed }

// disposed reports whether the resource's native object may no longer be
// dereferenced.
func (r *resource) disposed() bool {
	return r.destroyed || r.device == nil || r.device.destroyed
}

// handle is implemented by every resource variant.
type handle interface {
	res() *resource
}

// Texture is a GPU texture. Textures created with a sample count above one
// own a single-sample resolve child; uploads and sampling always go through
// the child, never the raw multisampled image.
type Texture struct {
	resource

	tex         driver.Texture
	width       uint32
	height      uint32
	format      driver.TextureFormat
	sampleCount uint32

	// resolve receives the downsampled pass output when sampleCount > 1.
	resolve *Texture
}

func (t *Texture) Width() uint32                { return t.width }
func (t *Texture) Height() uint32               { return t.height }
func (t *Texture) Format() driver.TextureFormat { return t.format }
func (t *Texture) SampleCount() uint32          { return t.sampleCount }

// sampleSource returns the texture actually read when sampling: the resolve
// child when present.
func (t *Texture) sampleSource() *Texture {
	if t.resolve != nil {
		return t.resolve
	}
	return t
}

// Target is an ordered set of texture attachments rendered to together.
// Attachment order is draw-call-significant: the binding slot of a color
// attachment is its list index. At most one attachment holds a
// depth/stencil format.
type Target struct {
	resource

	attachments []*Texture
	width       uint32
	height      uint32
}

func (t *Target) Width() uint32  { return t.width }
func (t *Target) Height() uint32 { return t.height }

// Attachments returns the attachment list in binding order.
func (t *Target) Attachments() []*Texture { return t.attachments }

func (t *Target) depthAttachment() *Texture {
	for _, a := range t.attachments {
		if a.format.IsDepthStencil() {
			return a
		}
	}
	return nil
}

func (t *Target) colorAttachments() []*Texture {
	colors := make([]*Texture, 0, len(t.attachments))
	for _, a := range t.attachments {
		if !a.format.IsDepthStencil() {
			colors = append(colors, a)
		}
	}
	return colors
}

// Buffer is a vertex or index buffer. Capacity only grows; growing
// reallocates the native buffer and loses prior contents.
type Buffer struct {
	resource

	buf      driver.Buffer
	usage    driver.BufferUsage
	capacity uint64

	// dirty is raised on every upload and cleared once the buffer is
	// rebound inside a render pass.
	dirty bool

	vertexFormat driver.VertexFormat
	indexFormat  driver.IndexFormat
}

func (b *Buffer) Capacity() uint64                  { return b.capacity }
func (b *Buffer) VertexFormat() driver.VertexFormat { return b.vertexFormat }
func (b *Buffer) IndexFormat() driver.IndexFormat   { return b.indexFormat }

// Shader is a vertex/fragment program pair plus the cache of every pipeline
// derived from it. The cache lives on the shader so destroying the shader
// releases exactly its own pipelines.
type Shader struct {
	resource

	vertex       driver.Shader
	fragment     driver.Shader
	vertexInfo   driver.ShaderStageInfo
	fragmentInfo driver.ShaderStageInfo

	// pipelines maps a pipelineKey to a driver.Pipeline. Reads and the
	// get-or-create path may race; see resolvePipeline.
	pipelines sync.Map
}

// registry tracks every live handle created by a device so teardown can
// release them in bulk and use-after-shutdown can be detected.
type registry struct {
	mu      sync.Mutex
	handles map[handle]struct{}
}

func newRegistry() registry {
	return registry{handles: make(map[handle]struct{})}
}

func (r *registry) add(h handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handles[h] = struct{}{}
}

func (r *registry) remove(h handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.handles, h)
}

func (r *registry) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handles)
}

// snapshot copies the live set so teardown can iterate while destroy
// mutates it.
func (r *registry) snapshot() []handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]handle, 0, len(r.handles))
	for h := range r.handles {
		out = append(out, h)
	}
	return out
}
