package vulkan

import "testing"

func TestDeferFreeRunsImmediatelyWhenIdle(t *testing.T) {
	d := New()

	ran := false
	d.deferFree(func() { ran = true })
	if !ran {
		t.Fatal("with no in-flight or recording work the destroy must run at once")
	}
	if len(d.pendingFrees) != 0 {
		t.Fatalf("pending frees\nhave %d\nwant 0", len(d.pendingFrees))
	}
}

func TestDeferFreeWaitsForInFlightSubmissions(t *testing.T) {
	d := New()
	d.submitCounter = 2
	d.completedCounter = 1

	ran := false
	d.deferFree(func() { ran = true })
	if ran {
		t.Fatal("destroy ran while submission 2 was still in flight")
	}

	d.drainFrees()
	if ran {
		t.Fatal("drain ran the destroy before its submission completed")
	}

	d.completedCounter = 2
	d.drainFrees()
	if !ran {
		t.Fatal("destroy did not run after its submission completed")
	}
	if len(d.pendingFrees) != 0 {
		t.Fatalf("pending frees\nhave %d\nwant 0", len(d.pendingFrees))
	}
}

func TestDeferFreeWaitsForRecordingCommandBuffer(t *testing.T) {
	d := New()
	d.openRecordings = 1

	// The recording buffer will land on submission 1; even with nothing in
	// flight the destroy has to wait for it.
	ran := false
	d.deferFree(func() { ran = true })
	if ran {
		t.Fatal("destroy ran while a command buffer was still recording")
	}

	d.openRecordings = 0
	d.submitCounter = 1
	d.drainFrees()
	if ran {
		t.Fatal("drain ran the destroy before the fence signaled")
	}

	d.completedCounter = 1
	d.drainFrees()
	if !ran {
		t.Fatal("destroy did not run after the recorded submission completed")
	}
}

func TestDrainFreesKeepsLaterEntries(t *testing.T) {
	d := New()
	d.submitCounter = 1
	d.completedCounter = 0

	var order []int
	d.deferFree(func() { order = append(order, 1) })
	d.openRecordings = 1
	d.deferFree(func() { order = append(order, 2) })
	d.openRecordings = 0

	d.completedCounter = 1
	d.drainFrees()
	if len(order) != 1 || order[0] != 1 {
		t.Fatalf("drained entries\nhave %v\nwant [1]", order)
	}
	if len(d.pendingFrees) != 1 {
		t.Fatalf("pending frees\nhave %d\nwant 1", len(d.pendingFrees))
	}

	d.submitCounter = 2
	d.completedCounter = 2
	d.drainFrees()
	if len(order) != 2 || order[1] != 2 {
		t.Fatalf("drained entries\nhave %v\nwant [1 2]", order)
	}
}
