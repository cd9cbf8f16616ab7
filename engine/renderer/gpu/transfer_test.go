package gpu

import (
	"testing"

	"github.com/emberengine/ember/engine/core"
	"github.com/emberengine/ember/engine/renderer/gpu/driver"
)

// smallConfig shrinks the shared staging buffers so cycling and stalling are
// cheap to trigger.
func smallConfig(size uint64) *core.Config {
	cfg := testConfig()
	cfg.Renderer.UploadBufferSize = size
	return cfg
}

func TestStageBytesBumpsWithinGeneration(t *testing.T) {
	dev, m, _ := testDevice(t, smallConfig(256))

	cycles := m.mapCycles
	// Offset zero of a fresh generation always cycles.
	staged, err := dev.stageBytes(&dev.bufUpload, make([]byte, 64), 4)
	if err != nil {
		t.Fatalf("stageBytes: %v", err)
	}
	if staged.offset != 0 || staged.temporary {
		t.Fatalf("first staging\nhave offset %d temporary %t\nwant offset 0 temporary false", staged.offset, staged.temporary)
	}
	if m.mapCycles != cycles+1 {
		t.Fatal("offset zero of a fresh generation must cycle")
	}

	// The next staging bumps the cursor without cycling.
	staged, err = dev.stageBytes(&dev.bufUpload, make([]byte, 64), 4)
	if err != nil {
		t.Fatalf("stageBytes: %v", err)
	}
	if staged.offset != 64 {
		t.Fatalf("second staging offset\nhave %d\nwant 64", staged.offset)
	}
	if m.mapCycles != cycles+1 {
		t.Fatal("an in-generation bump must not cycle")
	}
}

func TestStageBytesAlignsOffsets(t *testing.T) {
	dev, _, _ := testDevice(t, smallConfig(256))

	if _, err := dev.stageBytes(&dev.bufUpload, make([]byte, 10), 1); err != nil {
		t.Fatalf("stageBytes: %v", err)
	}
	staged, err := dev.stageBytes(&dev.bufUpload, make([]byte, 16), 16)
	if err != nil {
		t.Fatalf("stageBytes: %v", err)
	}
	if staged.offset != 16 {
		t.Fatalf("aligned staging offset\nhave %d\nwant 16", staged.offset)
	}
}

func TestStageBytesCyclesWhenFull(t *testing.T) {
	dev, m, _ := testDevice(t, smallConfig(256))

	if _, err := dev.stageBytes(&dev.bufUpload, make([]byte, 200), 4); err != nil {
		t.Fatalf("stageBytes: %v", err)
	}
	cycles := m.mapCycles

	// 200 + 128 exceeds the buffer, so the cursor cycles back to zero.
	staged, err := dev.stageBytes(&dev.bufUpload, make([]byte, 128), 4)
	if err != nil {
		t.Fatalf("stageBytes: %v", err)
	}
	if staged.offset != 0 {
		t.Fatalf("cycled staging offset\nhave %d\nwant 0", staged.offset)
	}
	if m.mapCycles != cycles+1 {
		t.Fatal("a full buffer must cycle a fresh generation")
	}
	if m.waits != 0 {
		t.Fatal("the first cycles of a frame must not stall")
	}
}

func TestStageBytesStallsAfterCycleBudget(t *testing.T) {
	dev, m, _ := testDevice(t, smallConfig(256))

	// Each staging fills most of the buffer; every call after the first
	// forces a cycle.
	for i := 0; i < maxUploadCycleCount; i++ {
		if _, err := dev.stageBytes(&dev.bufUpload, make([]byte, 200), 4); err != nil {
			t.Fatalf("stageBytes %d: %v", i, err)
		}
	}
	if m.waits != 0 {
		t.Fatalf("stalled before the cycle budget was spent (%d waits)", m.waits)
	}

	frame := dev.Frame()
	if _, err := dev.stageBytes(&dev.bufUpload, make([]byte, 200), 4); err != nil {
		t.Fatalf("stageBytes: %v", err)
	}
	if m.waits != 1 {
		t.Fatalf("waits after exhausting the cycle budget\nhave %d\nwant 1", m.waits)
	}
	// The stall flushes into a fresh command buffer, resetting the cursors.
	if dev.Frame() != frame+1 {
		t.Fatal("the stall must acquire a fresh command buffer")
	}
	if dev.bufUpload.cycles != 0 {
		t.Fatalf("cycle budget after stall\nhave %d\nwant 0", dev.bufUpload.cycles)
	}
}

func TestStageBytesUsesTemporaryBufferForHugeUploads(t *testing.T) {
	dev, m, _ := testDevice(t, smallConfig(256))

	created := m.createTransferCalls
	staged, err := dev.stageBytes(&dev.bufUpload, make([]byte, 256), 4)
	if err != nil {
		t.Fatalf("stageBytes: %v", err)
	}
	if !staged.temporary {
		t.Fatal("an upload at least as large as the shared buffer must use a temporary buffer")
	}
	if staged.buffer == dev.bufUpload.buffer {
		t.Fatal("temporary staging must not reuse the shared buffer")
	}
	if m.createTransferCalls != created+1 {
		t.Fatalf("transfer buffers created\nhave %d\nwant 1", m.createTransferCalls-created)
	}
}

func TestHugeUploadReleasesTemporaryBuffer(t *testing.T) {
	dev, m, _ := testDevice(t, smallConfig(256))

	tex, err := dev.CreateTexture("big", 16, 16, driver.TextureFormatR8G8B8A8, 1, nil)
	if err != nil {
		t.Fatalf("CreateTexture: %v", err)
	}
	destroyed := m.destroyTransferCalls
	// 16*16*4 = 1024 bytes, four times the shared buffer.
	if err := dev.SetTextureData(tex, make([]byte, 1024)); err != nil {
		t.Fatalf("SetTextureData: %v", err)
	}
	if m.destroyTransferCalls != destroyed+1 {
		t.Fatal("the temporary staging buffer must be released after recording the upload")
	}
}

func TestPresentResetsTransferCursors(t *testing.T) {
	dev, _, _ := testDevice(t, smallConfig(256))

	if _, err := dev.stageBytes(&dev.bufUpload, make([]byte, 100), 4); err != nil {
		t.Fatalf("stageBytes: %v", err)
	}
	if dev.bufUpload.offset == 0 {
		t.Fatal("cursor must have advanced")
	}
	if err := dev.Present(); err != nil {
		t.Fatalf("Present: %v", err)
	}
	if dev.bufUpload.offset != 0 || dev.texUpload.offset != 0 {
		t.Fatal("present must reset the per-frame transfer cursors")
	}
}

func TestDownloadBufferGrowsAndIsReused(t *testing.T) {
	dev, m, _ := testDevice(t, nil)

	if err := dev.ensureDownloadBuffer(100); err != nil {
		t.Fatalf("ensureDownloadBuffer: %v", err)
	}
	if dev.download.size != 128 {
		t.Fatalf("download buffer size\nhave %d\nwant 128", dev.download.size)
	}
	created := m.createTransferCalls

	// A smaller request reuses the allocation.
	if err := dev.ensureDownloadBuffer(64); err != nil {
		t.Fatalf("ensureDownloadBuffer: %v", err)
	}
	if m.createTransferCalls != created {
		t.Fatal("a fitting request must not reallocate")
	}

	// A larger request grows it and releases the old buffer.
	destroyed := m.destroyTransferCalls
	if err := dev.ensureDownloadBuffer(129); err != nil {
		t.Fatalf("ensureDownloadBuffer: %v", err)
	}
	if dev.download.size != 256 {
		t.Fatalf("download buffer size after growth\nhave %d\nwant 256", dev.download.size)
	}
	if m.destroyTransferCalls != destroyed+1 {
		t.Fatal("growth must release the previous download buffer")
	}
}
