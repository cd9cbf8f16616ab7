package driver

// Opaque handles to native objects. A zero value is the nil handle. The
// backend owns the mapping from handle to native pointer; nothing outside
// the backend may interpret these values.
type (
	Texture        uint64
	Buffer         uint64
	TransferBuffer uint64
	Shader         uint64
	Pipeline       uint64
	CommandBuffer  uint64
	RenderPass     uint64
	CopyPass       uint64
)

type TextureFormat uint8

const (
	TextureFormatNone TextureFormat = iota
	TextureFormatR8G8B8A8
	TextureFormatR8
	TextureFormatDepth24Stencil8
)

// BlockSize returns the byte size of a single texel.
func (f TextureFormat) BlockSize() uint32 {
	switch f {
	case TextureFormatR8G8B8A8, TextureFormatDepth24Stencil8:
		return 4
	case TextureFormatR8:
		return 1
	}
	return 0
}

func (f TextureFormat) IsDepthStencil() bool {
	return f == TextureFormatDepth24Stencil8
}

func (f TextureFormat) String() string {
	switch f {
	case TextureFormatR8G8B8A8:
		return "R8G8B8A8"
	case TextureFormatR8:
		return "R8"
	case TextureFormatDepth24Stencil8:
		return "Depth24Stencil8"
	}
	return "None"
}

// TextureUsage is a bit set describing how a texture may be bound.
type TextureUsage uint8

const (
	TextureUsageSampler TextureUsage = 1 << iota
	TextureUsageColorTarget
	TextureUsageDepthStencilTarget
)

type CullMode uint8

const (
	CullModeNone CullMode = iota
	CullModeFront
	CullModeBack
)

type CompareFunc uint8

const (
	CompareNone CompareFunc = iota
	CompareAlways
	CompareNever
	CompareLess
	CompareEqual
	CompareLessOrEqual
	CompareGreater
	CompareNotEqual
	CompareGreaterOrEqual
)

type BlendOp uint8

const (
	BlendOpAdd BlendOp = iota
	BlendOpSubtract
	BlendOpReverseSubtract
	BlendOpMin
	BlendOpMax
)

type BlendFactor uint8

const (
	BlendFactorZero BlendFactor = iota
	BlendFactorOne
	BlendFactorSrcColor
	BlendFactorOneMinusSrcColor
	BlendFactorDstColor
	BlendFactorOneMinusDstColor
	BlendFactorSrcAlpha
	BlendFactorOneMinusSrcAlpha
	BlendFactorDstAlpha
	BlendFactorOneMinusDstAlpha
	BlendFactorConstantColor
	BlendFactorOneMinusConstantColor
	BlendFactorConstantAlpha
	BlendFactorOneMinusConstantAlpha
	BlendFactorSrcAlphaSaturate
	BlendFactorSrc1Color
	BlendFactorOneMinusSrc1Color
	BlendFactorSrc1Alpha
	BlendFactorOneMinusSrc1Alpha
)

// ColorMask selects which channels a blend state writes.
type ColorMask uint8

const (
	ColorMaskR ColorMask = 1 << iota
	ColorMaskG
	ColorMaskB
	ColorMaskA
	ColorMaskNone ColorMask = 0
	ColorMaskAll            = ColorMaskR | ColorMaskG | ColorMaskB | ColorMaskA
)

// BlendMode is the full fixed-function blend state of a draw.
type BlendMode struct {
	ColorOp  BlendOp
	ColorSrc BlendFactor
	ColorDst BlendFactor
	AlphaOp  BlendOp
	AlphaSrc BlendFactor
	AlphaDst BlendFactor
	Mask     ColorMask
	Constant Color
}

// BlendPremultiply is the framework default blend state.
func BlendPremultiply() BlendMode {
	return BlendMode{
		ColorOp:  BlendOpAdd,
		ColorSrc: BlendFactorOne,
		ColorDst: BlendFactorOneMinusSrcAlpha,
		AlphaOp:  BlendOpAdd,
		AlphaSrc: BlendFactorOne,
		AlphaDst: BlendFactorOneMinusSrcAlpha,
		Mask:     ColorMaskAll,
	}
}

type VertexType uint8

const (
	VertexTypeNone VertexType = iota
	VertexTypeFloat
	VertexTypeFloat2
	VertexTypeFloat3
	VertexTypeFloat4
	VertexTypeByte4
	VertexTypeUByte4
	VertexTypeShort2
	VertexTypeUShort2
	VertexTypeShort4
	VertexTypeUShort4
)

// Size returns the byte width of a single element of this type.
func (t VertexType) Size() uint32 {
	switch t {
	case VertexTypeFloat:
		return 4
	case VertexTypeFloat2:
		return 8
	case VertexTypeFloat3:
		return 12
	case VertexTypeFloat4:
		return 16
	case VertexTypeByte4, VertexTypeUByte4, VertexTypeShort2, VertexTypeUShort2:
		return 4
	case VertexTypeShort4, VertexTypeUShort4:
		return 8
	}
	return 0
}

// VertexElement describes a single attribute within a vertex layout.
// Index is the shader input location.
type VertexElement struct {
	Index      uint32
	Type       VertexType
	Normalized bool
}

// VertexFormat is the layout of one vertex buffer. Stride is the byte
// distance between consecutive vertices; element offsets are derived from
// declaration order.
type VertexFormat struct {
	Elements []VertexElement
	Stride   uint32
}

// NewVertexFormat packs the given elements tightly and computes the stride.
func NewVertexFormat(elements ...VertexElement) VertexFormat {
	var stride uint32
	for _, e := range elements {
		stride += e.Type.Size()
	}
	return VertexFormat{Elements: elements, Stride: stride}
}

type IndexFormat uint8

const (
	IndexFormatUint16 IndexFormat = iota
	IndexFormatUint32
)

func (f IndexFormat) Size() uint32 {
	if f == IndexFormatUint32 {
		return 4
	}
	return 2
}

// ClearMask selects which aspects of a target a clear affects.
type ClearMask uint8

const (
	ClearMaskColor ClearMask = 1 << iota
	ClearMaskDepth
	ClearMaskStencil
	ClearMaskNone ClearMask = 0
	ClearMaskAll            = ClearMaskColor | ClearMaskDepth | ClearMaskStencil
)

type ShaderStage uint8

const (
	ShaderStageVertex ShaderStage = iota
	ShaderStageFragment
)

type LoadOp uint8

const (
	LoadOpLoad LoadOp = iota
	LoadOpClear
	LoadOpDontCare
)

type StoreOp uint8

const (
	StoreOpStore StoreOp = iota
	StoreOpResolveAndStore
	StoreOpDontCare
)

type Filter uint8

const (
	FilterNearest Filter = iota
	FilterLinear
)

type TextureWrap uint8

const (
	TextureWrapRepeat TextureWrap = iota
	TextureWrapMirroredRepeat
	TextureWrapClampToEdge
	TextureWrapClampToBorder
)

// SamplerState is the filtering/addressing state of a sampler slot.
type SamplerState struct {
	Filter Filter
	WrapX  TextureWrap
	WrapY  TextureWrap
}

// Color is an 8-bit RGBA color value.
type Color struct {
	R, G, B, A uint8
}

// Floats returns the color as normalized components, the form native clear
// values take.
func (c Color) Floats() [4]float32 {
	return [4]float32{
		float32(c.R) / 255.0,
		float32(c.G) / 255.0,
		float32(c.B) / 255.0,
		float32(c.A) / 255.0,
	}
}

type Viewport struct {
	X, Y, W, H         float32
	MinDepth, MaxDepth float32
}

type Rect struct {
	X, Y int32
	W, H uint32
}

type BufferUsage uint8

const (
	BufferUsageVertex BufferUsage = iota
	BufferUsageIndex
)

type TransferUsage uint8

const (
	TransferUsageUpload TransferUsage = iota
	TransferUsageDownload
)

// TextureInfo is the creation description of a texture.
type TextureInfo struct {
	Width       uint32
	Height      uint32
	Format      TextureFormat
	SampleCount uint32
	Usage       TextureUsage
}

// ShaderStageInfo carries one stage's bytecode and its resource counts, as
// supplied by the shader compiler/loader collaborator.
type ShaderStageInfo struct {
	Stage              ShaderStage
	Code               []byte
	EntryPoint         string
	SamplerCount       uint32
	UniformBufferCount uint32
}

// VertexSlot is one vertex buffer binding slot of a pipeline.
type VertexSlot struct {
	Format       VertexFormat
	InstanceRate bool
}

type DepthStencilState struct {
	TestEnabled  bool
	WriteEnabled bool
	Compare      CompareFunc
}

// PipelineInfo is the complete creation description of a graphics pipeline.
// The attachment format signature is part of the description because the
// native API bakes the render-target layout into the pipeline object.
type PipelineInfo struct {
	VertexShader   Shader
	FragmentShader Shader

	VertexUniformBufferCount   uint32
	FragmentUniformBufferCount uint32
	FragmentSamplerCount       uint32

	VertexSlots    []VertexSlot
	HasIndexBuffer bool
	IndexFormat    IndexFormat

	Cull         CullMode
	DepthStencil DepthStencilState
	Blend        BlendMode

	ColorFormats       []TextureFormat
	DepthStencilFormat TextureFormat
	SampleCount        uint32
}

// ColorAttachment describes one color attachment of a render pass. A
// non-nil ResolveTexture requests a multisample resolve at pass end.
type ColorAttachment struct {
	Texture        Texture
	ResolveTexture Texture
	Format         TextureFormat
	SampleCount    uint32
	LoadOp         LoadOp
	StoreOp        StoreOp
	ClearColor     Color
}

type DepthStencilAttachment struct {
	Texture       Texture
	Format        TextureFormat
	SampleCount   uint32
	DepthLoadOp   LoadOp
	StencilLoadOp LoadOp
	ClearDepth    float32
	ClearStencil  uint32
}

type RenderPassInfo struct {
	Colors       []ColorAttachment
	DepthStencil *DepthStencilAttachment
	Width        uint32
	Height       uint32
}

// TransferLocation addresses a byte offset within a transfer buffer.
type TransferLocation struct {
	Buffer TransferBuffer
	Offset uint64
}

type BufferRegion struct {
	Buffer Buffer
	Offset uint64
	Size   uint64
}

type TextureRegion struct {
	Texture Texture
	X, Y    uint32
	W, H    uint32
}

type BufferBinding struct {
	Buffer Buffer
	Offset uint64
}

type TextureSamplerBinding struct {
	Texture Texture
	Sampler SamplerState
}

// SwapchainTexture is the OS-provided image acquired for one frame. A nil
// Texture means no image is currently available (minimized window).
type SwapchainTexture struct {
	Texture Texture
	Width   uint32
	Height  uint32
	Format  TextureFormat
}

type BlitInfo struct {
	Source TextureRegion
	Dest   TextureRegion
	Filter Filter
}
