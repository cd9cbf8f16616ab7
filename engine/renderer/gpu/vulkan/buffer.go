package vulkan

import (
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/emberengine/ember/engine/renderer/gpu/driver"
)

type deviceBuffer struct {
	handle vk.Buffer
	memory vk.DeviceMemory
	size   vk.DeviceSize
}

// transferPage is one generation of a transfer buffer. Cycling allocates a
// fresh page when every existing one may still be read by in-flight work.
type transferPage struct {
	buffer vk.Buffer
	memory vk.DeviceMemory
	mapped []byte

	// lastUse is the submission that may reference this page. A page is
	// reusable once lastUse <= completedCounter.
	lastUse uint64
}

type transferBuffer struct {
	size   uint64
	usage  driver.TransferUsage
	pages  []*transferPage
	active int
}

func (d *Driver) createNativeBuffer(size vk.DeviceSize, usage vk.BufferUsageFlags, properties vk.MemoryPropertyFlags) (vk.Buffer, vk.DeviceMemory, error) {
	createInfo := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        size,
		Usage:       usage,
		SharingMode: vk.SharingModeExclusive,
	}
	var buffer vk.Buffer
	if res := vk.CreateBuffer(d.device, &createInfo, nil, &buffer); res != vk.Success {
		return vk.NullBuffer, vk.NullDeviceMemory, vkError("vkCreateBuffer", res)
	}

	var requirements vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(d.device, buffer, &requirements)
	requirements.Deref()

	memoryIndex, err := d.findMemoryIndex(requirements.MemoryTypeBits, properties)
	if err != nil {
		vk.DestroyBuffer(d.device, buffer, nil)
		return vk.NullBuffer, vk.NullDeviceMemory, err
	}

	allocInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  requirements.Size,
		MemoryTypeIndex: memoryIndex,
	}
	var memory vk.DeviceMemory
	if res := vk.AllocateMemory(d.device, &allocInfo, nil, &memory); res != vk.Success {
		vk.DestroyBuffer(d.device, buffer, nil)
		return vk.NullBuffer, vk.NullDeviceMemory, vkError("vkAllocateMemory", res)
	}
	if res := vk.BindBufferMemory(d.device, buffer, memory, 0); res != vk.Success {
		vk.FreeMemory(d.device, memory, nil)
		vk.DestroyBuffer(d.device, buffer, nil)
		return vk.NullBuffer, vk.NullDeviceMemory, vkError("vkBindBufferMemory", res)
	}
	return buffer, memory, nil
}

func (d *Driver) CreateBuffer(usage driver.BufferUsage, size uint64) (driver.Buffer, error) {
	flags := vk.BufferUsageFlags(vk.BufferUsageTransferDstBit)
	if usage == driver.BufferUsageVertex {
		flags |= vk.BufferUsageFlags(vk.BufferUsageVertexBufferBit)
	} else {
		flags |= vk.BufferUsageFlags(vk.BufferUsageIndexBufferBit)
	}

	buffer, memory, err := d.createNativeBuffer(vk.DeviceSize(size), flags,
		vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit))
	if err != nil {
		return 0, err
	}
	b := &deviceBuffer{handle: buffer, memory: memory, size: vk.DeviceSize(size)}
	return driver.Buffer(d.buffers.insert(b)), nil
}

func (d *Driver) DestroyBuffer(buf driver.Buffer) {
	b := d.buffers.remove(uint64(buf))
	if b == nil {
		return
	}
	d.deferFree(func() {
		vk.DestroyBuffer(d.device, b.handle, nil)
		vk.FreeMemory(d.device, b.memory, nil)
	})
}

// newTransferPage allocates one persistently mapped host-visible page.
func (d *Driver) newTransferPage(size uint64, usage driver.TransferUsage) (*transferPage, error) {
	flags := vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit)
	if usage == driver.TransferUsageDownload {
		flags = vk.BufferUsageFlags(vk.BufferUsageTransferDstBit)
	}

	buffer, memory, err := d.createNativeBuffer(vk.DeviceSize(size), flags,
		vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit))
	if err != nil {
		return nil, err
	}

	var ptr unsafe.Pointer
	if res := vk.MapMemory(d.device, memory, 0, vk.DeviceSize(size), 0, &ptr); res != vk.Success {
		vk.DestroyBuffer(d.device, buffer, nil)
		vk.FreeMemory(d.device, memory, nil)
		return nil, vkError("vkMapMemory", res)
	}

	return &transferPage{
		buffer: buffer,
		memory: memory,
		mapped: unsafe.Slice((*byte)(ptr), size),
	}, nil
}

func (d *Driver) CreateTransferBuffer(size uint64, usage driver.TransferUsage) (driver.TransferBuffer, error) {
	page, err := d.newTransferPage(size, usage)
	if err != nil {
		return 0, err
	}
	tb := &transferBuffer{size: size, usage: usage, pages: []*transferPage{page}}
	return driver.TransferBuffer(d.transfers.insert(tb)), nil
}

func (d *Driver) DestroyTransferBuffer(handle driver.TransferBuffer) {
	tb := d.transfers.remove(uint64(handle))
	if tb == nil {
		return
	}
	d.deferFree(func() {
		for _, page := range tb.pages {
			vk.UnmapMemory(d.device, page.memory)
			vk.DestroyBuffer(d.device, page.buffer, nil)
			vk.FreeMemory(d.device, page.memory, nil)
		}
	})
}

// MapTransferBuffer returns the active page's bytes. With cycle set, a page
// no in-flight submission can still read is selected, allocating a new one
// when none has retired yet.
func (d *Driver) MapTransferBuffer(handle driver.TransferBuffer, cycle bool) ([]byte, error) {
	tb := d.transfers.get(uint64(handle))
	if tb == nil {
		return nil, vkError("vkMapMemory", vk.ErrorMemoryMapFailed)
	}

	if cycle {
		found := -1
		for i, page := range tb.pages {
			if page.lastUse <= d.completedCounter {
				found = i
				break
			}
		}
		if found < 0 {
			page, err := d.newTransferPage(tb.size, tb.usage)
			if err != nil {
				return nil, err
			}
			tb.pages = append(tb.pages, page)
			found = len(tb.pages) - 1
		}
		tb.active = found
	}

	page := tb.pages[tb.active]
	page.lastUse = d.submitCounter + 1
	return page.mapped, nil
}

// UnmapTransferBuffer is a no-op: pages stay persistently mapped in
// host-coherent memory for their whole lifetime.
func (d *Driver) UnmapTransferBuffer(driver.TransferBuffer) {}

func (d *Driver) UploadToBuffer(cp driver.CopyPass, src driver.TransferLocation, dst driver.BufferRegion) {
	cb := d.commands.get(uint64(cp))
	tb := d.transfers.get(uint64(src.Buffer))
	b := d.buffers.get(uint64(dst.Buffer))
	if cb == nil || tb == nil || b == nil {
		return
	}

	region := vk.BufferCopy{
		SrcOffset: vk.DeviceSize(src.Offset),
		DstOffset: vk.DeviceSize(dst.Offset),
		Size:      vk.DeviceSize(dst.Size),
	}
	vk.CmdCopyBuffer(cb.handle, tb.pages[tb.active].buffer, b.handle, 1, []vk.BufferCopy{region})

	// Later draws in this command buffer read the fresh contents.
	barrier := vk.BufferMemoryBarrier{
		SType:               vk.StructureTypeBufferMemoryBarrier,
		SrcAccessMask:       vk.AccessFlags(vk.AccessTransferWriteBit),
		DstAccessMask:       vk.AccessFlags(vk.AccessVertexAttributeReadBit | vk.AccessIndexReadBit),
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Buffer:              b.handle,
		Size:                vk.DeviceSize(vk.WholeSize),
	}
	vk.CmdPipelineBarrier(cb.handle,
		vk.PipelineStageFlags(vk.PipelineStageTransferBit),
		vk.PipelineStageFlags(vk.PipelineStageVertexInputBit),
		0, 0, nil, 1, []vk.BufferMemoryBarrier{barrier}, 0, nil)
}
