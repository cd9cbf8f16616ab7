package vulkan

import (
	"math"

	vk "github.com/goki/vulkan"

	"github.com/emberengine/ember/engine/core"
	emath "github.com/emberengine/ember/engine/math"
	"github.com/emberengine/ember/engine/renderer/gpu/driver"
)

type swapchain struct {
	handle vk.Swapchain
	format vk.SurfaceFormat
	extent vk.Extent2D

	// textures are the arena handles wrapping each swapchain image, in
	// image-index order, so the core can blit into them.
	textures []driver.Texture

	outOfDate bool
}

func (d *Driver) createSwapchain() error {
	width, height := d.window.PixelSize()
	if width == 0 || height == 0 {
		// Minimized; defer creation to the first acquire with a size.
		return nil
	}

	var capabilities vk.SurfaceCapabilities
	if res := vk.GetPhysicalDeviceSurfaceCapabilities(d.physicalDevice, d.surface, &capabilities); res != vk.Success {
		return vkError("vkGetPhysicalDeviceSurfaceCapabilitiesKHR", res)
	}
	capabilities.Deref()
	capabilities.CurrentExtent.Deref()
	capabilities.MinImageExtent.Deref()
	capabilities.MaxImageExtent.Deref()

	extent := vk.Extent2D{Width: width, Height: height}
	if capabilities.CurrentExtent.Width != math.MaxUint32 {
		extent = capabilities.CurrentExtent
	}
	extent.Width = emath.Clamp(extent.Width, capabilities.MinImageExtent.Width, capabilities.MaxImageExtent.Width)
	extent.Height = emath.Clamp(extent.Height, capabilities.MinImageExtent.Height, capabilities.MaxImageExtent.Height)
	if extent.Width == 0 || extent.Height == 0 {
		return nil
	}

	format, err := d.chooseSurfaceFormat()
	if err != nil {
		return err
	}
	presentMode := d.choosePresentMode()

	imageCount := capabilities.MinImageCount + 1
	if capabilities.MaxImageCount > 0 && imageCount > capabilities.MaxImageCount {
		imageCount = capabilities.MaxImageCount
	}

	createInfo := vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          d.surface,
		MinImageCount:    imageCount,
		ImageFormat:      format.Format,
		ImageColorSpace:  format.ColorSpace,
		ImageExtent:      extent,
		ImageArrayLayers: 1,
		// The backbuffer is blitted into the swapchain image instead of
		// rendering to it directly.
		ImageUsage:     vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit | vk.ImageUsageTransferDstBit),
		PreTransform:   capabilities.CurrentTransform,
		CompositeAlpha: vk.CompositeAlphaOpaqueBit,
		PresentMode:    presentMode,
		Clipped:        vk.True,
	}

	if d.graphicsQueueIndex != d.presentQueueIndex {
		createInfo.ImageSharingMode = vk.SharingModeConcurrent
		createInfo.QueueFamilyIndexCount = 2
		createInfo.PQueueFamilyIndices = []uint32{d.graphicsQueueIndex, d.presentQueueIndex}
	} else {
		createInfo.ImageSharingMode = vk.SharingModeExclusive
	}

	var handle vk.Swapchain
	if res := vk.CreateSwapchain(d.device, &createInfo, nil, &handle); res != vk.Success {
		return vkError("vkCreateSwapchainKHR", res)
	}

	sc := &swapchain{handle: handle, format: format, extent: extent}

	var count uint32
	if res := vk.GetSwapchainImages(d.device, handle, &count, nil); res != vk.Success {
		return vkError("vkGetSwapchainImages", res)
	}
	images := make([]vk.Image, count)
	if res := vk.GetSwapchainImages(d.device, handle, &count, images); res != vk.Success {
		return vkError("vkGetSwapchainImages", res)
	}

	sc.textures = make([]driver.Texture, count)
	for i, image := range images {
		t := &texture{
			image:          image,
			format:         format.Format,
			aspect:         vk.ImageAspectFlags(vk.ImageAspectColorBit),
			width:          extent.Width,
			height:         extent.Height,
			samples:        vk.SampleCount1Bit,
			layout:         vk.ImageLayoutUndefined,
			swapchainImage: true,
		}
		sc.textures[i] = driver.Texture(d.textures.insert(t))
	}

	d.swapchain = sc
	d.vsyncDirty = false
	core.LogInfo("swapchain created (%dx%d, %d images)", extent.Width, extent.Height, count)
	return nil
}

func (d *Driver) chooseSurfaceFormat() (vk.SurfaceFormat, error) {
	var count uint32
	if res := vk.GetPhysicalDeviceSurfaceFormats(d.physicalDevice, d.surface, &count, nil); res != vk.Success || count == 0 {
		return vk.SurfaceFormat{}, vkError("vkGetPhysicalDeviceSurfaceFormatsKHR", res)
	}
	formats := make([]vk.SurfaceFormat, count)
	if res := vk.GetPhysicalDeviceSurfaceFormats(d.physicalDevice, d.surface, &count, formats); res != vk.Success {
		return vk.SurfaceFormat{}, vkError("vkGetPhysicalDeviceSurfaceFormatsKHR", res)
	}
	for i := range formats {
		formats[i].Deref()
		if formats[i].Format == vk.FormatB8g8r8a8Unorm && formats[i].ColorSpace == vk.ColorSpaceSrgbNonlinear {
			return formats[i], nil
		}
	}
	return formats[0], nil
}

func (d *Driver) choosePresentMode() vk.PresentMode {
	// Fifo is always available and is the vsync mode.
	if d.vsync {
		return vk.PresentModeFifo
	}
	var count uint32
	if res := vk.GetPhysicalDeviceSurfacePresentModes(d.physicalDevice, d.surface, &count, nil); res != vk.Success || count == 0 {
		return vk.PresentModeFifo
	}
	modes := make([]vk.PresentMode, count)
	if res := vk.GetPhysicalDeviceSurfacePresentModes(d.physicalDevice, d.surface, &count, modes); res != vk.Success {
		return vk.PresentModeFifo
	}
	for _, mode := range modes {
		if mode == vk.PresentModeMailbox {
			return mode
		}
	}
	for _, mode := range modes {
		if mode == vk.PresentModeImmediate {
			return mode
		}
	}
	return vk.PresentModeFifo
}

func (d *Driver) destroySwapchain() {
	if d.swapchain == nil {
		return
	}
	// Swapchain images are owned by the swapchain object; only the arena
	// wrappers are removed here.
	for _, id := range d.swapchain.textures {
		d.textures.remove(uint64(id))
	}
	vk.DestroySwapchain(d.device, d.swapchain.handle, nil)
	d.swapchain = nil
}

func (d *Driver) recreateSwapchain() error {
	vk.DeviceWaitIdle(d.device)
	d.completedCounter = d.submitCounter
	d.destroySwapchain()
	return d.createSwapchain()
}
