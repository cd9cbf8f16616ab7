package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/emberengine/ember/engine/renderer/gpu/driver"
)

// texture wraps one native image. Outside of passes and transfers every
// texture rests in a fixed layout (resting()); all recorded work
// transitions away from and back to it, which keeps layout tracking local.
type texture struct {
	image  vk.Image
	memory vk.DeviceMemory
	view   vk.ImageView

	format  vk.Format
	aspect  vk.ImageAspectFlags
	width   uint32
	height  uint32
	samples vk.SampleCountFlagBits
	usage   driver.TextureUsage

	layout         vk.ImageLayout
	swapchainImage bool
}

func (t *texture) resting() vk.ImageLayout {
	switch {
	case t.swapchainImage:
		return vk.ImageLayoutPresentSrc
	case t.usage&driver.TextureUsageDepthStencilTarget != 0:
		return vk.ImageLayoutDepthStencilAttachmentOptimal
	case t.usage&driver.TextureUsageSampler != 0:
		return vk.ImageLayoutShaderReadOnlyOptimal
	default:
		return vk.ImageLayoutColorAttachmentOptimal
	}
}

func (d *Driver) CreateTexture(info driver.TextureInfo) (driver.Texture, error) {
	format := d.textureFormat(info.Format)
	aspect := vk.ImageAspectFlags(vk.ImageAspectColorBit)
	if info.Format.IsDepthStencil() {
		aspect = vk.ImageAspectFlags(vk.ImageAspectDepthBit | vk.ImageAspectStencilBit)
	}

	usage := vk.ImageUsageFlags(vk.ImageUsageTransferSrcBit | vk.ImageUsageTransferDstBit)
	if info.Usage&driver.TextureUsageSampler != 0 {
		usage |= vk.ImageUsageFlags(vk.ImageUsageSampledBit)
	}
	if info.Usage&driver.TextureUsageColorTarget != 0 {
		usage |= vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit)
	}
	if info.Usage&driver.TextureUsageDepthStencilTarget != 0 {
		usage |= vk.ImageUsageFlags(vk.ImageUsageDepthStencilAttachmentBit)
	}

	samples, ok := sampleCountBit(info.SampleCount)
	if !ok {
		samples = vk.SampleCount1Bit
	}

	imageInfo := vk.ImageCreateInfo{
		SType:         vk.StructureTypeImageCreateInfo,
		ImageType:     vk.ImageType2d,
		Format:        format,
		Extent:        vk.Extent3D{Width: info.Width, Height: info.Height, Depth: 1},
		MipLevels:     1,
		ArrayLayers:   1,
		Samples:       samples,
		Tiling:        vk.ImageTilingOptimal,
		Usage:         usage,
		SharingMode:   vk.SharingModeExclusive,
		InitialLayout: vk.ImageLayoutUndefined,
	}

	var image vk.Image
	if res := vk.CreateImage(d.device, &imageInfo, nil, &image); res != vk.Success {
		return 0, vkError("vkCreateImage", res)
	}

	var requirements vk.MemoryRequirements
	vk.GetImageMemoryRequirements(d.device, image, &requirements)
	requirements.Deref()

	memoryIndex, err := d.findMemoryIndex(requirements.MemoryTypeBits, vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit))
	if err != nil {
		vk.DestroyImage(d.device, image, nil)
		return 0, err
	}

	allocInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  requirements.Size,
		MemoryTypeIndex: memoryIndex,
	}
	var memory vk.DeviceMemory
	if res := vk.AllocateMemory(d.device, &allocInfo, nil, &memory); res != vk.Success {
		vk.DestroyImage(d.device, image, nil)
		return 0, vkError("vkAllocateMemory", res)
	}
	if res := vk.BindImageMemory(d.device, image, memory, 0); res != vk.Success {
		vk.FreeMemory(d.device, memory, nil)
		vk.DestroyImage(d.device, image, nil)
		return 0, vkError("vkBindImageMemory", res)
	}

	viewInfo := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    image,
		ViewType: vk.ImageViewType2d,
		Format:   format,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: aspect,
			LevelCount: 1,
			LayerCount: 1,
		},
	}
	var view vk.ImageView
	if res := vk.CreateImageView(d.device, &viewInfo, nil, &view); res != vk.Success {
		vk.FreeMemory(d.device, memory, nil)
		vk.DestroyImage(d.device, image, nil)
		return 0, vkError("vkCreateImageView", res)
	}

	t := &texture{
		image:   image,
		memory:  memory,
		view:    view,
		format:  format,
		aspect:  aspect,
		width:   info.Width,
		height:  info.Height,
		samples: samples,
		usage:   info.Usage,
		layout:  vk.ImageLayoutUndefined,
	}

	// Move the fresh image into its resting layout so later barriers can
	// assume it.
	err = d.withSingleUseCommand(func(cmd vk.CommandBuffer) {
		d.transitionImage(cmd, t, t.resting())
	})
	if err != nil {
		vk.DestroyImageView(d.device, view, nil)
		vk.FreeMemory(d.device, memory, nil)
		vk.DestroyImage(d.device, image, nil)
		return 0, err
	}

	return driver.Texture(d.textures.insert(t)), nil
}

// DestroyTexture retires the handle immediately but frees the native image
// only after every submission that may reference it has completed.
func (d *Driver) DestroyTexture(tex driver.Texture) {
	t := d.textures.remove(uint64(tex))
	if t == nil || t.swapchainImage {
		return
	}
	d.deferFree(func() {
		d.dropFramebuffersFor(t.view)
		vk.DestroyImageView(d.device, t.view, nil)
		vk.DestroyImage(d.device, t.image, nil)
		vk.FreeMemory(d.device, t.memory, nil)
	})
}

// transitionImage records a full-image layout transition. The barrier is
// deliberately heavyweight (all commands, all access) since transfers and
// readbacks here are not on hot paths.
func (d *Driver) transitionImage(cmd vk.CommandBuffer, t *texture, newLayout vk.ImageLayout) {
	if t.layout == newLayout {
		return
	}
	barrier := vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		SrcAccessMask:       vk.AccessFlags(vk.AccessMemoryWriteBit),
		DstAccessMask:       vk.AccessFlags(vk.AccessMemoryReadBit | vk.AccessMemoryWriteBit),
		OldLayout:           t.layout,
		NewLayout:           newLayout,
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               t.image,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: t.aspect,
			LevelCount: 1,
			LayerCount: 1,
		},
	}
	vk.CmdPipelineBarrier(cmd,
		vk.PipelineStageFlags(vk.PipelineStageAllCommandsBit),
		vk.PipelineStageFlags(vk.PipelineStageAllCommandsBit),
		0, 0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{barrier})
	t.layout = newLayout
}

func (d *Driver) UploadToTexture(cp driver.CopyPass, src driver.TransferLocation, dst driver.TextureRegion) {
	cb := d.commands.get(uint64(cp))
	t := d.textures.get(uint64(dst.Texture))
	tb := d.transfers.get(uint64(src.Buffer))
	if cb == nil || t == nil || tb == nil {
		return
	}

	d.transitionImage(cb.handle, t, vk.ImageLayoutTransferDstOptimal)
	region := vk.BufferImageCopy{
		BufferOffset: vk.DeviceSize(src.Offset),
		ImageSubresource: vk.ImageSubresourceLayers{
			AspectMask: t.aspect,
			LayerCount: 1,
		},
		ImageOffset: vk.Offset3D{X: int32(dst.X), Y: int32(dst.Y)},
		ImageExtent: vk.Extent3D{Width: dst.W, Height: dst.H, Depth: 1},
	}
	vk.CmdCopyBufferToImage(cb.handle, tb.pages[tb.active].buffer, t.image,
		vk.ImageLayoutTransferDstOptimal, 1, []vk.BufferImageCopy{region})
	d.transitionImage(cb.handle, t, t.resting())
}

func (d *Driver) DownloadFromTexture(cp driver.CopyPass, src driver.TextureRegion, dst driver.TransferLocation) {
	cb := d.commands.get(uint64(cp))
	t := d.textures.get(uint64(src.Texture))
	tb := d.transfers.get(uint64(dst.Buffer))
	if cb == nil || t == nil || tb == nil {
		return
	}

	d.transitionImage(cb.handle, t, vk.ImageLayoutTransferSrcOptimal)
	region := vk.BufferImageCopy{
		BufferOffset: vk.DeviceSize(dst.Offset),
		ImageSubresource: vk.ImageSubresourceLayers{
			AspectMask: t.aspect,
			LayerCount: 1,
		},
		ImageOffset: vk.Offset3D{X: int32(src.X), Y: int32(src.Y)},
		ImageExtent: vk.Extent3D{Width: src.W, Height: src.H, Depth: 1},
	}
	vk.CmdCopyImageToBuffer(cb.handle, t.image, vk.ImageLayoutTransferSrcOptimal,
		tb.pages[tb.active].buffer, 1, []vk.BufferImageCopy{region})
	d.transitionImage(cb.handle, t, t.resting())
}

func (d *Driver) Blit(cmd driver.CommandBuffer, info driver.BlitInfo) {
	cb := d.commands.get(uint64(cmd))
	src := d.textures.get(uint64(info.Source.Texture))
	dst := d.textures.get(uint64(info.Dest.Texture))
	if cb == nil || src == nil || dst == nil {
		return
	}

	d.transitionImage(cb.handle, src, vk.ImageLayoutTransferSrcOptimal)
	d.transitionImage(cb.handle, dst, vk.ImageLayoutTransferDstOptimal)

	blit := vk.ImageBlit{
		SrcSubresource: vk.ImageSubresourceLayers{AspectMask: src.aspect, LayerCount: 1},
		DstSubresource: vk.ImageSubresourceLayers{AspectMask: dst.aspect, LayerCount: 1},
		SrcOffsets: [2]vk.Offset3D{
			{X: int32(info.Source.X), Y: int32(info.Source.Y)},
			{X: int32(info.Source.X + info.Source.W), Y: int32(info.Source.Y + info.Source.H), Z: 1},
		},
		DstOffsets: [2]vk.Offset3D{
			{X: int32(info.Dest.X), Y: int32(info.Dest.Y)},
			{X: int32(info.Dest.X + info.Dest.W), Y: int32(info.Dest.Y + info.Dest.H), Z: 1},
		},
	}
	vk.CmdBlitImage(cb.handle,
		src.image, vk.ImageLayoutTransferSrcOptimal,
		dst.image, vk.ImageLayoutTransferDstOptimal,
		1, []vk.ImageBlit{blit}, filterMode(info.Filter))

	d.transitionImage(cb.handle, src, src.resting())
	d.transitionImage(cb.handle, dst, dst.resting())
}
