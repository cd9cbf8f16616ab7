package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/emberengine/ember/engine/renderer/gpu/driver"
)

type shaderModule struct {
	handle vk.ShaderModule
	stage  vk.ShaderStageFlagBits
	entry  string
}

type pipeline struct {
	handle vk.Pipeline
	layout vk.PipelineLayout
}

func (d *Driver) CreateShader(info driver.ShaderStageInfo) (driver.Shader, error) {
	createInfo := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(info.Code)),
		PCode:    repackUint32(info.Code),
	}
	var module vk.ShaderModule
	if res := vk.CreateShaderModule(d.device, &createInfo, nil, &module); res != vk.Success {
		return 0, vkError("vkCreateShaderModule", res)
	}
	sm := &shaderModule{
		handle: module,
		stage:  shaderStage(info.Stage),
		entry:  safeString(info.EntryPoint),
	}
	return driver.Shader(d.shaders.insert(sm)), nil
}

func (d *Driver) DestroyShader(sh driver.Shader) {
	sm := d.shaders.remove(uint64(sh))
	if sm == nil {
		return
	}
	vk.DestroyShaderModule(d.device, sm.handle, nil)
}

func (d *Driver) CreatePipeline(info driver.PipelineInfo) (driver.Pipeline, error) {
	vertex := d.shaders.get(uint64(info.VertexShader))
	fragment := d.shaders.get(uint64(info.FragmentShader))
	if vertex == nil || fragment == nil {
		return 0, vkError("vkCreateGraphicsPipelines", vk.ErrorUnknown)
	}

	stages := []vk.PipelineShaderStageCreateInfo{
		{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vertex.stage,
			Module: vertex.handle,
			PName:  vertex.entry,
		},
		{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  fragment.stage,
			Module: fragment.handle,
			PName:  fragment.entry,
		},
	}

	var vertexBindings []vk.VertexInputBindingDescription
	var vertexAttributes []vk.VertexInputAttributeDescription
	for slot, binding := range info.VertexSlots {
		rate := vk.VertexInputRateVertex
		if binding.InstanceRate {
			rate = vk.VertexInputRateInstance
		}
		vertexBindings = append(vertexBindings, vk.VertexInputBindingDescription{
			Binding:   uint32(slot),
			Stride:    binding.Format.Stride,
			InputRate: rate,
		})
		var offset uint32
		for _, element := range binding.Format.Elements {
			vertexAttributes = append(vertexAttributes, vk.VertexInputAttributeDescription{
				Location: element.Index,
				Binding:  uint32(slot),
				Format:   vertexFormat(element.Type, element.Normalized),
				Offset:   offset,
			})
			offset += element.Type.Size()
		}
	}

	vertexInput := vk.PipelineVertexInputStateCreateInfo{
		SType:                           vk.StructureTypePipelineVertexInputStateCreateInfo,
		VertexBindingDescriptionCount:   uint32(len(vertexBindings)),
		PVertexBindingDescriptions:      vertexBindings,
		VertexAttributeDescriptionCount: uint32(len(vertexAttributes)),
		PVertexAttributeDescriptions:    vertexAttributes,
	}

	inputAssembly := vk.PipelineInputAssemblyStateCreateInfo{
		SType:    vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology: vk.PrimitiveTopologyTriangleList,
	}

	// Viewport and scissor are dynamic; the counts still matter.
	viewportState := vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		ScissorCount:  1,
	}

	rasterization := vk.PipelineRasterizationStateCreateInfo{
		SType:       vk.StructureTypePipelineRasterizationStateCreateInfo,
		PolygonMode: vk.PolygonModeFill,
		CullMode:    cullMode(info.Cull),
		FrontFace:   vk.FrontFaceClockwise,
		LineWidth:   1.0,
	}

	samples, ok := sampleCountBit(info.SampleCount)
	if !ok {
		samples = vk.SampleCount1Bit
	}
	multisample := vk.PipelineMultisampleStateCreateInfo{
		SType:                vk.StructureTypePipelineMultisampleStateCreateInfo,
		RasterizationSamples: samples,
	}

	depthStencil := vk.PipelineDepthStencilStateCreateInfo{
		SType:          vk.StructureTypePipelineDepthStencilStateCreateInfo,
		DepthCompareOp: vk.CompareOpAlways,
	}
	if info.DepthStencilFormat != driver.TextureFormatNone {
		if info.DepthStencil.TestEnabled && info.DepthStencil.Compare != driver.CompareNone {
			depthStencil.DepthTestEnable = vk.True
			depthStencil.DepthCompareOp = compareFunc(info.DepthStencil.Compare)
		}
		if info.DepthStencil.WriteEnabled {
			depthStencil.DepthWriteEnable = vk.True
		}
	}

	blendAttachment := vk.PipelineColorBlendAttachmentState{
		BlendEnable:         vk.True,
		SrcColorBlendFactor: blendFactor(info.Blend.ColorSrc),
		DstColorBlendFactor: blendFactor(info.Blend.ColorDst),
		ColorBlendOp:        blendOp(info.Blend.ColorOp),
		SrcAlphaBlendFactor: blendFactor(info.Blend.AlphaSrc),
		DstAlphaBlendFactor: blendFactor(info.Blend.AlphaDst),
		AlphaBlendOp:        blendOp(info.Blend.AlphaOp),
		ColorWriteMask:      colorMask(info.Blend.Mask),
	}
	blendAttachments := make([]vk.PipelineColorBlendAttachmentState, len(info.ColorFormats))
	for i := range blendAttachments {
		blendAttachments[i] = blendAttachment
	}
	constant := info.Blend.Constant.Floats()
	colorBlend := vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		AttachmentCount: uint32(len(blendAttachments)),
		PAttachments:    blendAttachments,
		BlendConstants:  constant,
	}

	dynamicState := vk.PipelineDynamicStateCreateInfo{
		SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
		DynamicStateCount: 2,
		PDynamicStates:    []vk.DynamicState{vk.DynamicStateViewport, vk.DynamicStateScissor},
	}

	layout, err := d.getPipelineLayout(info.FragmentSamplerCount)
	if err != nil {
		return 0, err
	}

	// A compatible pass object for baking: load/store ops do not affect
	// render pass compatibility, so the don't-care variant serves every
	// pass with this attachment signature.
	passInfo := driver.RenderPassInfo{}
	for _, format := range info.ColorFormats {
		att := driver.ColorAttachment{
			Format:      format,
			SampleCount: info.SampleCount,
			LoadOp:      driver.LoadOpDontCare,
			StoreOp:     driver.StoreOpStore,
		}
		if info.SampleCount > 1 {
			// Multisampled passes carry resolve attachments, which count
			// toward compatibility. The handle value is never dereferenced
			// during pass creation; any non-zero marker works.
			att.ResolveTexture = 1
			att.StoreOp = driver.StoreOpResolveAndStore
		}
		passInfo.Colors = append(passInfo.Colors, att)
	}
	if info.DepthStencilFormat != driver.TextureFormatNone {
		passInfo.DepthStencil = &driver.DepthStencilAttachment{
			Format:        info.DepthStencilFormat,
			SampleCount:   info.SampleCount,
			DepthLoadOp:   driver.LoadOpDontCare,
			StencilLoadOp: driver.LoadOpDontCare,
		}
	}
	renderPass, err := d.getRenderPass(&passInfo)
	if err != nil {
		return 0, err
	}

	createInfo := vk.GraphicsPipelineCreateInfo{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:          uint32(len(stages)),
		PStages:             stages,
		PVertexInputState:   &vertexInput,
		PInputAssemblyState: &inputAssembly,
		PViewportState:      &viewportState,
		PRasterizationState: &rasterization,
		PMultisampleState:   &multisample,
		PDepthStencilState:  &depthStencil,
		PColorBlendState:    &colorBlend,
		PDynamicState:       &dynamicState,
		Layout:              layout,
		RenderPass:          renderPass,
		Subpass:             0,
	}

	pipelines := make([]vk.Pipeline, 1)
	if res := vk.CreateGraphicsPipelines(d.device, vk.NullPipelineCache, 1,
		[]vk.GraphicsPipelineCreateInfo{createInfo}, nil, pipelines); res != vk.Success {
		return 0, vkError("vkCreateGraphicsPipelines", res)
	}

	p := &pipeline{handle: pipelines[0], layout: layout}
	return driver.Pipeline(d.pipelines.insert(p)), nil
}

func (d *Driver) DestroyPipeline(handle driver.Pipeline) {
	p := d.pipelines.remove(uint64(handle))
	if p == nil {
		return
	}
	// The layout is shared and cached; only the pipeline object dies here.
	d.deferFree(func() {
		vk.DestroyPipeline(d.device, p.handle, nil)
	})
}
