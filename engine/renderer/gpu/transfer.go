package gpu

import (
	"fmt"

	"github.com/emberengine/ember/engine/math"
	"github.com/emberengine/ember/engine/renderer/gpu/driver"
)

// maxUploadCycleCount bounds how many times a shared staging buffer may be
// cycled within one frame before the device forces a full flush-and-wait.
// Cycling avoids a GPU stall on every upload; the bound caps staging memory
// growth when a frame uploads more than the buffer holds.
const maxUploadCycleCount = 4

// transferCursor is the bump-allocation state of one shared staging buffer.
type transferCursor struct {
	buffer driver.TransferBuffer
	size   uint64
	offset uint64
	cycles int
}

// stagedBytes locates bytes staged for an upload. Temporary stagings use a
// dedicated one-shot buffer the caller releases once the copy pass has
// recorded the upload.
type stagedBytes struct {
	buffer    driver.TransferBuffer
	offset    uint64
	temporary bool
}

// stageBytes copies data into GPU-visible staging memory ahead of a
// copy-pass upload.
//
// An upload at least as large as the whole shared buffer always takes a
// freshly allocated temporary buffer. An upload that no longer fits at the
// current offset cycles the shared buffer for a fresh generation, stalling
// first if the cycle budget for this frame is spent. Offset zero of a fresh
// generation always cycles, since the previous generation may still be in
// flight.
func (d *Device) stageBytes(cur *transferCursor, data []byte, align uint64) (stagedBytes, error) {
	length := uint64(len(data))

	if length >= cur.size {
		tb, err := d.drv.CreateTransferBuffer(length, driver.TransferUsageUpload)
		if err != nil {
			return stagedBytes{}, fmt.Errorf("staging %d bytes: %w", length, err)
		}
		mapped, err := d.drv.MapTransferBuffer(tb, false)
		if err != nil {
			d.drv.DestroyTransferBuffer(tb)
			return stagedBytes{}, fmt.Errorf("mapping temporary staging buffer: %w", err)
		}
		copy(mapped, data)
		d.drv.UnmapTransferBuffer(tb)
		return stagedBytes{buffer: tb, offset: 0, temporary: true}, nil
	}

	offset := math.AlignUp(cur.offset, align)
	var cycle bool
	if offset+length >= cur.size {
		cur.cycles++
		if cur.cycles >= maxUploadCycleCount {
			// The driver may still be consuming every prior generation.
			// Drain it and resume at offset zero; the cursor state is
			// reset when the fresh command buffer is acquired.
			if err := d.flushCommands(true); err != nil {
				return stagedBytes{}, err
			}
		}
		cycle = true
		offset = 0
		cur.offset = length
	} else {
		// First use of a fresh generation must cycle.
		cycle = offset == 0
		cur.offset = offset + length
	}

	mapped, err := d.drv.MapTransferBuffer(cur.buffer, cycle)
	if err != nil {
		return stagedBytes{}, fmt.Errorf("mapping shared staging buffer: %w", err)
	}
	copy(mapped[offset:offset+length], data)
	d.drv.UnmapTransferBuffer(cur.buffer)

	return stagedBytes{buffer: cur.buffer, offset: offset}, nil
}

// resetTransferCursors returns both staging cursors to offset zero. Called
// exactly once per frame, when a command buffer is (re)acquired.
func (d *Device) resetTransferCursors() {
	d.texUpload.offset = 0
	d.texUpload.cycles = 0
	d.bufUpload.offset = 0
	d.bufUpload.cycles = 0
}

// ensureDownloadBuffer lazily grows the dedicated readback staging buffer.
func (d *Device) ensureDownloadBuffer(size uint64) error {
	if d.download.buffer != 0 && d.download.size >= size {
		return nil
	}
	if d.download.buffer != 0 {
		d.drv.DestroyTransferBuffer(d.download.buffer)
		d.download.buffer = 0
		d.download.size = 0
	}
	grown := math.NextPowerOfTwo(size)
	tb, err := d.drv.CreateTransferBuffer(grown, driver.TransferUsageDownload)
	if err != nil {
		return fmt.Errorf("growing download buffer to %d bytes: %w", grown, err)
	}
	d.download.buffer = tb
	d.download.size = grown
	return nil
}
