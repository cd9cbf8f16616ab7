package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/emberengine/ember/engine/renderer/gpu/driver"
)

func (d *Driver) textureFormat(format driver.TextureFormat) vk.Format {
	switch format {
	case driver.TextureFormatR8G8B8A8:
		return vk.FormatR8g8b8a8Unorm
	case driver.TextureFormatR8:
		return vk.FormatR8Unorm
	case driver.TextureFormatDepth24Stencil8:
		return d.depthFormat
	}
	return vk.FormatUndefined
}

func cullMode(mode driver.CullMode) vk.CullModeFlags {
	switch mode {
	case driver.CullModeFront:
		return vk.CullModeFlags(vk.CullModeFrontBit)
	case driver.CullModeBack:
		return vk.CullModeFlags(vk.CullModeBackBit)
	}
	return vk.CullModeFlags(vk.CullModeNone)
}

func compareFunc(fn driver.CompareFunc) vk.CompareOp {
	switch fn {
	case driver.CompareNever:
		return vk.CompareOpNever
	case driver.CompareLess:
		return vk.CompareOpLess
	case driver.CompareEqual:
		return vk.CompareOpEqual
	case driver.CompareLessOrEqual:
		return vk.CompareOpLessOrEqual
	case driver.CompareGreater:
		return vk.CompareOpGreater
	case driver.CompareNotEqual:
		return vk.CompareOpNotEqual
	case driver.CompareGreaterOrEqual:
		return vk.CompareOpGreaterOrEqual
	}
	return vk.CompareOpAlways
}

func blendOp(op driver.BlendOp) vk.BlendOp {
	switch op {
	case driver.BlendOpSubtract:
		return vk.BlendOpSubtract
	case driver.BlendOpReverseSubtract:
		return vk.BlendOpReverseSubtract
	case driver.BlendOpMin:
		return vk.BlendOpMin
	case driver.BlendOpMax:
		return vk.BlendOpMax
	}
	return vk.BlendOpAdd
}

func blendFactor(factor driver.BlendFactor) vk.BlendFactor {
	switch factor {
	case driver.BlendFactorZero:
		return vk.BlendFactorZero
	case driver.BlendFactorOne:
		return vk.BlendFactorOne
	case driver.BlendFactorSrcColor:
		return vk.BlendFactorSrcColor
	case driver.BlendFactorOneMinusSrcColor:
		return vk.BlendFactorOneMinusSrcColor
	case driver.BlendFactorDstColor:
		return vk.BlendFactorDstColor
	case driver.BlendFactorOneMinusDstColor:
		return vk.BlendFactorOneMinusDstColor
	case driver.BlendFactorSrcAlpha:
		return vk.BlendFactorSrcAlpha
	case driver.BlendFactorOneMinusSrcAlpha:
		return vk.BlendFactorOneMinusSrcAlpha
	case driver.BlendFactorDstAlpha:
		return vk.BlendFactorDstAlpha
	case driver.BlendFactorOneMinusDstAlpha:
		return vk.BlendFactorOneMinusDstAlpha
	case driver.BlendFactorConstantColor:
		return vk.BlendFactorConstantColor
	case driver.BlendFactorOneMinusConstantColor:
		return vk.BlendFactorOneMinusConstantColor
	case driver.BlendFactorConstantAlpha:
		return vk.BlendFactorConstantAlpha
	case driver.BlendFactorOneMinusConstantAlpha:
		return vk.BlendFactorOneMinusConstantAlpha
	case driver.BlendFactorSrcAlphaSaturate:
		return vk.BlendFactorSrcAlphaSaturate
	case driver.BlendFactorSrc1Color:
		return vk.BlendFactorSrc1Color
	case driver.BlendFactorOneMinusSrc1Color:
		return vk.BlendFactorOneMinusSrc1Color
	case driver.BlendFactorSrc1Alpha:
		return vk.BlendFactorSrc1Alpha
	case driver.BlendFactorOneMinusSrc1Alpha:
		return vk.BlendFactorOneMinusSrc1Alpha
	}
	return vk.BlendFactorOne
}

func colorMask(mask driver.ColorMask) vk.ColorComponentFlags {
	var flags vk.ColorComponentFlagBits
	if mask&driver.ColorMaskR != 0 {
		flags |= vk.ColorComponentRBit
	}
	if mask&driver.ColorMaskG != 0 {
		flags |= vk.ColorComponentGBit
	}
	if mask&driver.ColorMaskB != 0 {
		flags |= vk.ColorComponentBBit
	}
	if mask&driver.ColorMaskA != 0 {
		flags |= vk.ColorComponentABit
	}
	return vk.ColorComponentFlags(flags)
}

func vertexFormat(t driver.VertexType, normalized bool) vk.Format {
	switch t {
	case driver.VertexTypeFloat:
		return vk.FormatR32Sfloat
	case driver.VertexTypeFloat2:
		return vk.FormatR32g32Sfloat
	case driver.VertexTypeFloat3:
		return vk.FormatR32g32b32Sfloat
	case driver.VertexTypeFloat4:
		return vk.FormatR32g32b32a32Sfloat
	case driver.VertexTypeByte4:
		if normalized {
			return vk.FormatR8g8b8a8Snorm
		}
		return vk.FormatR8g8b8a8Sint
	case driver.VertexTypeUByte4:
		if normalized {
			return vk.FormatR8g8b8a8Unorm
		}
		return vk.FormatR8g8b8a8Uint
	case driver.VertexTypeShort2:
		if normalized {
			return vk.FormatR16g16Snorm
		}
		return vk.FormatR16g16Sint
	case driver.VertexTypeUShort2:
		if normalized {
			return vk.FormatR16g16Unorm
		}
		return vk.FormatR16g16Uint
	case driver.VertexTypeShort4:
		if normalized {
			return vk.FormatR16g16b16a16Snorm
		}
		return vk.FormatR16g16b16a16Sint
	case driver.VertexTypeUShort4:
		if normalized {
			return vk.FormatR16g16b16a16Unorm
		}
		return vk.FormatR16g16b16a16Uint
	}
	return vk.FormatUndefined
}

func indexType(format driver.IndexFormat) vk.IndexType {
	if format == driver.IndexFormatUint32 {
		return vk.IndexTypeUint32
	}
	return vk.IndexTypeUint16
}

func loadOp(op driver.LoadOp) vk.AttachmentLoadOp {
	switch op {
	case driver.LoadOpClear:
		return vk.AttachmentLoadOpClear
	case driver.LoadOpDontCare:
		return vk.AttachmentLoadOpDontCare
	}
	return vk.AttachmentLoadOpLoad
}

func storeOp(op driver.StoreOp) vk.AttachmentStoreOp {
	if op == driver.StoreOpDontCare {
		return vk.AttachmentStoreOpDontCare
	}
	return vk.AttachmentStoreOpStore
}

func filterMode(f driver.Filter) vk.Filter {
	if f == driver.FilterNearest {
		return vk.FilterNearest
	}
	return vk.FilterLinear
}

func wrapMode(w driver.TextureWrap) vk.SamplerAddressMode {
	switch w {
	case driver.TextureWrapMirroredRepeat:
		return vk.SamplerAddressModeMirroredRepeat
	case driver.TextureWrapClampToEdge:
		return vk.SamplerAddressModeClampToEdge
	case driver.TextureWrapClampToBorder:
		return vk.SamplerAddressModeClampToBorder
	}
	return vk.SamplerAddressModeRepeat
}

func shaderStage(stage driver.ShaderStage) vk.ShaderStageFlagBits {
	if stage == driver.ShaderStageFragment {
		return vk.ShaderStageFragmentBit
	}
	return vk.ShaderStageVertexBit
}
