package vulkan

import (
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/emberengine/ember/engine/core"
	"github.com/emberengine/ember/engine/renderer/gpu/driver"
)

// pushConstantBytes is the per-stage uniform budget. The framework pushes
// small per-draw uniform blocks; anything above the guaranteed native
// minimum is truncated with a warning.
const pushConstantBytes = 128

const descriptorSetsPerPool = 512

func (d *Driver) newDescriptorPool() (vk.DescriptorPool, error) {
	poolSize := vk.DescriptorPoolSize{
		Type:            vk.DescriptorTypeCombinedImageSampler,
		DescriptorCount: descriptorSetsPerPool * 4,
	}
	createInfo := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		MaxSets:       descriptorSetsPerPool,
		PoolSizeCount: 1,
		PPoolSizes:    []vk.DescriptorPoolSize{poolSize},
	}
	var pool vk.DescriptorPool
	if res := vk.CreateDescriptorPool(d.device, &createInfo, nil, &pool); res != vk.Success {
		return vk.NullDescriptorPool, vkError("vkCreateDescriptorPool", res)
	}
	return pool, nil
}

// getSetLayout returns the descriptor set layout for a fragment sampler
// count, creating and caching it on first use.
func (d *Driver) getSetLayout(samplerCount uint32) (vk.DescriptorSetLayout, error) {
	if layout, ok := d.setLayouts[samplerCount]; ok {
		return layout, nil
	}

	bindings := make([]vk.DescriptorSetLayoutBinding, samplerCount)
	for i := range bindings {
		bindings[i] = vk.DescriptorSetLayoutBinding{
			Binding:         uint32(i),
			DescriptorType:  vk.DescriptorTypeCombinedImageSampler,
			DescriptorCount: 1,
			StageFlags:      vk.ShaderStageFlags(vk.ShaderStageFragmentBit),
		}
	}
	createInfo := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: samplerCount,
		PBindings:    bindings,
	}
	var layout vk.DescriptorSetLayout
	if res := vk.CreateDescriptorSetLayout(d.device, &createInfo, nil, &layout); res != vk.Success {
		return vk.NullDescriptorSetLayout, vkError("vkCreateDescriptorSetLayout", res)
	}
	d.setLayouts[samplerCount] = layout
	return layout, nil
}

// getPipelineLayout returns the pipeline layout for a fragment sampler
// count. All layouts share the same push constant ranges so uniform pushes
// stay valid across pipeline binds.
func (d *Driver) getPipelineLayout(samplerCount uint32) (vk.PipelineLayout, error) {
	if layout, ok := d.pipeLayouts[samplerCount]; ok {
		return layout, nil
	}

	setLayout, err := d.getSetLayout(samplerCount)
	if err != nil {
		return vk.NullPipelineLayout, err
	}

	ranges := []vk.PushConstantRange{
		{
			StageFlags: vk.ShaderStageFlags(vk.ShaderStageVertexBit),
			Offset:     0,
			Size:       pushConstantBytes,
		},
		{
			StageFlags: vk.ShaderStageFlags(vk.ShaderStageFragmentBit),
			Offset:     0,
			Size:       pushConstantBytes,
		},
	}
	createInfo := vk.PipelineLayoutCreateInfo{
		SType:                  vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount:         1,
		PSetLayouts:            []vk.DescriptorSetLayout{setLayout},
		PushConstantRangeCount: uint32(len(ranges)),
		PPushConstantRanges:    ranges,
	}
	var layout vk.PipelineLayout
	if res := vk.CreatePipelineLayout(d.device, &createInfo, nil, &layout); res != vk.Success {
		return vk.NullPipelineLayout, vkError("vkCreatePipelineLayout", res)
	}
	d.pipeLayouts[samplerCount] = layout
	return layout, nil
}

func (d *Driver) getSampler(state driver.SamplerState) (vk.Sampler, error) {
	if sampler, ok := d.samplers[state]; ok {
		return sampler, nil
	}

	createInfo := vk.SamplerCreateInfo{
		SType:        vk.StructureTypeSamplerCreateInfo,
		MagFilter:    filterMode(state.Filter),
		MinFilter:    filterMode(state.Filter),
		MipmapMode:   vk.SamplerMipmapModeNearest,
		AddressModeU: wrapMode(state.WrapX),
		AddressModeV: wrapMode(state.WrapY),
		AddressModeW: wrapMode(state.WrapY),
		BorderColor:  vk.BorderColorFloatTransparentBlack,
	}
	var sampler vk.Sampler
	if res := vk.CreateSampler(d.device, &createInfo, nil, &sampler); res != vk.Success {
		return vk.NullSampler, vkError("vkCreateSampler", res)
	}
	d.samplers[state] = sampler
	return sampler, nil
}

// BindFragmentSamplers writes one combined-image-sampler set from the
// command buffer's pool and binds it. A set per draw is crude but the pool
// resets with the command buffer, so nothing leaks.
func (d *Driver) BindFragmentSamplers(rp driver.RenderPass, bindings []driver.TextureSamplerBinding) {
	cb := d.commands.get(uint64(rp))
	if cb == nil || len(bindings) == 0 || cb.boundLayout == vk.NullPipelineLayout {
		return
	}

	setLayout, err := d.getSetLayout(uint32(len(bindings)))
	if err != nil {
		core.LogError("binding fragment samplers: %s", err)
		return
	}

	allocInfo := vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     cb.descriptorPool,
		DescriptorSetCount: 1,
		PSetLayouts:        []vk.DescriptorSetLayout{setLayout},
	}
	var set vk.DescriptorSet
	if res := vk.AllocateDescriptorSets(d.device, &allocInfo, &set); res != vk.Success {
		core.LogError("vkAllocateDescriptorSets failed with %s", resultString(res))
		return
	}

	writes := make([]vk.WriteDescriptorSet, len(bindings))
	images := make([]vk.DescriptorImageInfo, len(bindings))
	for i, binding := range bindings {
		t := d.textures.get(uint64(binding.Texture))
		if t == nil {
			return
		}
		sampler, err := d.getSampler(binding.Sampler)
		if err != nil {
			core.LogError("binding fragment samplers: %s", err)
			return
		}
		images[i] = vk.DescriptorImageInfo{
			Sampler:     sampler,
			ImageView:   t.view,
			ImageLayout: vk.ImageLayoutShaderReadOnlyOptimal,
		}
		writes[i] = vk.WriteDescriptorSet{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          set,
			DstBinding:      uint32(i),
			DescriptorCount: 1,
			DescriptorType:  vk.DescriptorTypeCombinedImageSampler,
			PImageInfo:      images[i : i+1],
		}
	}
	vk.UpdateDescriptorSets(d.device, uint32(len(writes)), writes, 0, nil)
	vk.CmdBindDescriptorSets(cb.handle, vk.PipelineBindPointGraphics, cb.boundLayout,
		0, 1, []vk.DescriptorSet{set}, 0, nil)
}

func (d *Driver) PushUniformData(cmd driver.CommandBuffer, stage driver.ShaderStage, slot uint32, data []byte) {
	cb := d.commands.get(uint64(cmd))
	if cb == nil || len(data) == 0 {
		return
	}
	if cb.boundLayout == vk.NullPipelineLayout {
		core.LogWarn("uniform push with no bound pipeline, dropped")
		return
	}
	if slot != 0 {
		core.LogWarn("uniform slot %d is not supported, dropped", slot)
		return
	}
	size := uint32(len(data))
	if size > pushConstantBytes {
		core.LogWarn("uniform block of %d bytes truncated to %d", size, pushConstantBytes)
		size = pushConstantBytes
	}
	vk.CmdPushConstants(cb.handle, cb.boundLayout,
		vk.ShaderStageFlags(shaderStage(stage)), 0, size, unsafe.Pointer(&data[0]))
}
