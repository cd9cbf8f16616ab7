package vulkan

import (
	"fmt"
	"strings"

	vk "github.com/goki/vulkan"

	"github.com/emberengine/ember/engine/renderer/gpu/driver"
)

type framebufferEntry struct {
	handle vk.Framebuffer
	views  []vk.ImageView
}

// renderPassKey builds the cache key of the native pass object: attachment
// formats, sample counts, load/store ops and resolve presence all bake into
// the object.
func renderPassKey(info *driver.RenderPassInfo) string {
	var b strings.Builder
	for _, att := range info.Colors {
		fmt.Fprintf(&b, "c%d.%d.%d.%d.%t|", att.Format, att.SampleCount, att.LoadOp, att.StoreOp, att.ResolveTexture != 0)
	}
	if ds := info.DepthStencil; ds != nil {
		fmt.Fprintf(&b, "d%d.%d.%d.%d", ds.Format, ds.SampleCount, ds.DepthLoadOp, ds.StencilLoadOp)
	}
	return b.String()
}

func (d *Driver) getRenderPass(info *driver.RenderPassInfo) (vk.RenderPass, error) {
	key := renderPassKey(info)
	if pass, ok := d.renderPasses[key]; ok {
		return pass, nil
	}

	var attachments []vk.AttachmentDescription
	var colorRefs []vk.AttachmentReference
	var resolveRefs []vk.AttachmentReference
	hasResolve := false

	for _, att := range info.Colors {
		samples, _ := sampleCountBit(att.SampleCount)
		if samples == 0 {
			samples = vk.SampleCount1Bit
		}
		initial := vk.ImageLayoutShaderReadOnlyOptimal
		if att.LoadOp != driver.LoadOpLoad {
			initial = vk.ImageLayoutUndefined
		}
		// Raw multisampled attachments are never sampled; they rest as
		// color attachments.
		final := vk.ImageLayoutShaderReadOnlyOptimal
		if att.SampleCount > 1 {
			final = vk.ImageLayoutColorAttachmentOptimal
			if att.LoadOp == driver.LoadOpLoad {
				initial = vk.ImageLayoutColorAttachmentOptimal
			}
		}
		colorRefs = append(colorRefs, vk.AttachmentReference{
			Attachment: uint32(len(attachments)),
			Layout:     vk.ImageLayoutColorAttachmentOptimal,
		})
		attachments = append(attachments, vk.AttachmentDescription{
			Format:         d.textureFormat(att.Format),
			Samples:        samples,
			LoadOp:         loadOp(att.LoadOp),
			StoreOp:        storeOp(att.StoreOp),
			StencilLoadOp:  vk.AttachmentLoadOpDontCare,
			StencilStoreOp: vk.AttachmentStoreOpDontCare,
			InitialLayout:  initial,
			FinalLayout:    final,
		})

		if att.ResolveTexture != 0 {
			hasResolve = true
			resolveRefs = append(resolveRefs, vk.AttachmentReference{
				Attachment: uint32(len(attachments)),
				Layout:     vk.ImageLayoutColorAttachmentOptimal,
			})
			attachments = append(attachments, vk.AttachmentDescription{
				Format:         d.textureFormat(att.Format),
				Samples:        vk.SampleCount1Bit,
				LoadOp:         vk.AttachmentLoadOpDontCare,
				StoreOp:        vk.AttachmentStoreOpStore,
				StencilLoadOp:  vk.AttachmentLoadOpDontCare,
				StencilStoreOp: vk.AttachmentStoreOpDontCare,
				InitialLayout:  vk.ImageLayoutUndefined,
				FinalLayout:    vk.ImageLayoutShaderReadOnlyOptimal,
			})
		} else {
			resolveRefs = append(resolveRefs, vk.AttachmentReference{
				Attachment: vk.AttachmentUnused,
			})
		}
	}

	subpass := vk.SubpassDescription{
		PipelineBindPoint:    vk.PipelineBindPointGraphics,
		ColorAttachmentCount: uint32(len(colorRefs)),
		PColorAttachments:    colorRefs,
	}
	if hasResolve {
		subpass.PResolveAttachments = resolveRefs
	}

	if ds := info.DepthStencil; ds != nil {
		samples, _ := sampleCountBit(ds.SampleCount)
		if samples == 0 {
			samples = vk.SampleCount1Bit
		}
		initial := vk.ImageLayoutDepthStencilAttachmentOptimal
		if ds.DepthLoadOp != driver.LoadOpLoad && ds.StencilLoadOp != driver.LoadOpLoad {
			initial = vk.ImageLayoutUndefined
		}
		depthRef := vk.AttachmentReference{
			Attachment: uint32(len(attachments)),
			Layout:     vk.ImageLayoutDepthStencilAttachmentOptimal,
		}
		attachments = append(attachments, vk.AttachmentDescription{
			Format:         d.textureFormat(ds.Format),
			Samples:        samples,
			LoadOp:         loadOp(ds.DepthLoadOp),
			StoreOp:        vk.AttachmentStoreOpStore,
			StencilLoadOp:  loadOp(ds.StencilLoadOp),
			StencilStoreOp: vk.AttachmentStoreOpStore,
			InitialLayout:  initial,
			FinalLayout:    vk.ImageLayoutDepthStencilAttachmentOptimal,
		})
		subpass.PDepthStencilAttachment = &depthRef
	}

	dependency := vk.SubpassDependency{
		SrcSubpass:    vk.SubpassExternal,
		DstSubpass:    0,
		SrcStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit | vk.PipelineStageEarlyFragmentTestsBit),
		SrcAccessMask: 0,
		DstStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit | vk.PipelineStageEarlyFragmentTestsBit),
		DstAccessMask: vk.AccessFlags(vk.AccessColorAttachmentWriteBit | vk.AccessDepthStencilAttachmentWriteBit),
	}

	createInfo := vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
		SubpassCount:    1,
		PSubpasses:      []vk.SubpassDescription{subpass},
		DependencyCount: 1,
		PDependencies:   []vk.SubpassDependency{dependency},
	}

	var pass vk.RenderPass
	if res := vk.CreateRenderPass(d.device, &createInfo, nil, &pass); res != vk.Success {
		return vk.NullRenderPass, vkError("vkCreateRenderPass", res)
	}
	d.renderPasses[key] = pass
	return pass, nil
}

func (d *Driver) getFramebuffer(pass vk.RenderPass, views []vk.ImageView, width, height uint32) (vk.Framebuffer, error) {
	key := fmt.Sprintf("%v|%v|%dx%d", pass, views, width, height)
	if entry, ok := d.framebuffers[key]; ok {
		return entry.handle, nil
	}

	createInfo := vk.FramebufferCreateInfo{
		SType:           vk.StructureTypeFramebufferCreateInfo,
		RenderPass:      pass,
		AttachmentCount: uint32(len(views)),
		PAttachments:    views,
		Width:           width,
		Height:          height,
		Layers:          1,
	}
	var handle vk.Framebuffer
	if res := vk.CreateFramebuffer(d.device, &createInfo, nil, &handle); res != vk.Success {
		return vk.NullFramebuffer, vkError("vkCreateFramebuffer", res)
	}
	d.framebuffers[key] = &framebufferEntry{handle: handle, views: append([]vk.ImageView(nil), views...)}
	return handle, nil
}

// dropFramebuffersFor evicts cached framebuffers that reference a view
// about to be destroyed.
func (d *Driver) dropFramebuffersFor(view vk.ImageView) {
	for key, entry := range d.framebuffers {
		for _, v := range entry.views {
			if v == view {
				vk.DestroyFramebuffer(d.device, entry.handle, nil)
				delete(d.framebuffers, key)
				break
			}
		}
	}
}

func (d *Driver) BeginRenderPass(cmd driver.CommandBuffer, info driver.RenderPassInfo) (driver.RenderPass, error) {
	cb := d.commands.get(uint64(cmd))
	if cb == nil {
		return 0, vkError("vkCmdBeginRenderPass", vk.ErrorUnknown)
	}

	pass, err := d.getRenderPass(&info)
	if err != nil {
		return 0, err
	}

	var views []vk.ImageView
	var clears []vk.ClearValue
	for _, att := range info.Colors {
		t := d.textures.get(uint64(att.Texture))
		if t == nil {
			return 0, vkError("vkCmdBeginRenderPass", vk.ErrorUnknown)
		}
		views = append(views, t.view)
		rgba := att.ClearColor.Floats()
		var clear vk.ClearValue
		clear.SetColor(rgba[:])
		clears = append(clears, clear)
		t.layout = vk.ImageLayoutUndefined // render pass owns the transition
		if att.ResolveTexture != 0 {
			rt := d.textures.get(uint64(att.ResolveTexture))
			if rt == nil {
				return 0, vkError("vkCmdBeginRenderPass", vk.ErrorUnknown)
			}
			views = append(views, rt.view)
			clears = append(clears, vk.ClearValue{})
			rt.layout = vk.ImageLayoutUndefined
		}
	}
	if ds := info.DepthStencil; ds != nil {
		t := d.textures.get(uint64(ds.Texture))
		if t == nil {
			return 0, vkError("vkCmdBeginRenderPass", vk.ErrorUnknown)
		}
		views = append(views, t.view)
		var clear vk.ClearValue
		clear.SetDepthStencil(ds.ClearDepth, ds.ClearStencil)
		clears = append(clears, clear)
		t.layout = vk.ImageLayoutUndefined
	}

	framebuffer, err := d.getFramebuffer(pass, views, info.Width, info.Height)
	if err != nil {
		return 0, err
	}

	beginInfo := vk.RenderPassBeginInfo{
		SType:       vk.StructureTypeRenderPassBeginInfo,
		RenderPass:  pass,
		Framebuffer: framebuffer,
		RenderArea: vk.Rect2D{
			Extent: vk.Extent2D{Width: info.Width, Height: info.Height},
		},
		ClearValueCount: uint32(len(clears)),
		PClearValues:    clears,
	}
	vk.CmdBeginRenderPass(cb.handle, &beginInfo, vk.SubpassContentsInline)

	// Pass end leaves every attachment in its resting layout.
	d.settleAttachmentLayouts(&info)
	return driver.RenderPass(cmd), nil
}

func (d *Driver) settleAttachmentLayouts(info *driver.RenderPassInfo) {
	for _, att := range info.Colors {
		if t := d.textures.get(uint64(att.Texture)); t != nil {
			t.layout = t.resting()
		}
		if att.ResolveTexture != 0 {
			if rt := d.textures.get(uint64(att.ResolveTexture)); rt != nil {
				rt.layout = rt.resting()
			}
		}
	}
	if ds := info.DepthStencil; ds != nil {
		if t := d.textures.get(uint64(ds.Texture)); t != nil {
			t.layout = t.resting()
		}
	}
}

func (d *Driver) EndRenderPass(rp driver.RenderPass) {
	cb := d.commands.get(uint64(rp))
	if cb == nil {
		return
	}
	vk.CmdEndRenderPass(cb.handle)
}

func (d *Driver) BindPipeline(rp driver.RenderPass, p driver.Pipeline) {
	cb := d.commands.get(uint64(rp))
	pl := d.pipelines.get(uint64(p))
	if cb == nil || pl == nil {
		return
	}
	vk.CmdBindPipeline(cb.handle, vk.PipelineBindPointGraphics, pl.handle)
	cb.boundLayout = pl.layout
}

func (d *Driver) SetViewport(rp driver.RenderPass, vp driver.Viewport) {
	cb := d.commands.get(uint64(rp))
	if cb == nil {
		return
	}
	viewport := vk.Viewport{
		X:        vp.X,
		Y:        vp.Y,
		Width:    vp.W,
		Height:   vp.H,
		MinDepth: vp.MinDepth,
		MaxDepth: vp.MaxDepth,
	}
	vk.CmdSetViewport(cb.handle, 0, 1, []vk.Viewport{viewport})
}

func (d *Driver) SetScissor(rp driver.RenderPass, sc driver.Rect) {
	cb := d.commands.get(uint64(rp))
	if cb == nil {
		return
	}
	scissor := vk.Rect2D{
		Offset: vk.Offset2D{X: sc.X, Y: sc.Y},
		Extent: vk.Extent2D{Width: sc.W, Height: sc.H},
	}
	vk.CmdSetScissor(cb.handle, 0, 1, []vk.Rect2D{scissor})
}

func (d *Driver) BindVertexBuffers(rp driver.RenderPass, bindings []driver.BufferBinding) {
	cb := d.commands.get(uint64(rp))
	if cb == nil || len(bindings) == 0 {
		return
	}
	buffers := make([]vk.Buffer, len(bindings))
	offsets := make([]vk.DeviceSize, len(bindings))
	for i, binding := range bindings {
		b := d.buffers.get(uint64(binding.Buffer))
		if b == nil {
			return
		}
		buffers[i] = b.handle
		offsets[i] = vk.DeviceSize(binding.Offset)
	}
	vk.CmdBindVertexBuffers(cb.handle, 0, uint32(len(buffers)), buffers, offsets)
}

func (d *Driver) BindIndexBuffer(rp driver.RenderPass, binding driver.BufferBinding, format driver.IndexFormat) {
	cb := d.commands.get(uint64(rp))
	b := d.buffers.get(uint64(binding.Buffer))
	if cb == nil || b == nil {
		return
	}
	vk.CmdBindIndexBuffer(cb.handle, b.handle, vk.DeviceSize(binding.Offset), indexType(format))
}

func (d *Driver) DrawPrimitives(rp driver.RenderPass, vertexCount, instanceCount, firstVertex uint32) {
	cb := d.commands.get(uint64(rp))
	if cb == nil {
		return
	}
	vk.CmdDraw(cb.handle, vertexCount, instanceCount, firstVertex, 0)
}

func (d *Driver) DrawIndexedPrimitives(rp driver.RenderPass, indexCount, instanceCount, firstIndex uint32, vertexOffset int32) {
	cb := d.commands.get(uint64(rp))
	if cb == nil {
		return
	}
	vk.CmdDrawIndexed(cb.handle, indexCount, instanceCount, firstIndex, vertexOffset, 0)
}
