package math

import "testing"

func TestClamp(t *testing.T) {
	if got := Clamp(5, 0, 10); got != 5 {
		t.Fatalf("Clamp(5,0,10)\nhave %d\nwant 5", got)
	}
	if got := Clamp(-1, 0, 10); got != 0 {
		t.Fatalf("Clamp(-1,0,10)\nhave %d\nwant 0", got)
	}
	if got := Clamp(11, 0, 10); got != 10 {
		t.Fatalf("Clamp(11,0,10)\nhave %d\nwant 10", got)
	}
	if got := Clamp(0.5, 1.0, 2.0); got != 1.0 {
		t.Fatalf("Clamp(0.5,1,2)\nhave %v\nwant 1", got)
	}
}

func TestAbsDiffUnsigned(t *testing.T) {
	if got := AbsDiff(uint32(3), uint32(10)); got != 7 {
		t.Fatalf("AbsDiff(3,10)\nhave %d\nwant 7", got)
	}
	if got := AbsDiff(uint32(10), uint32(3)); got != 7 {
		t.Fatalf("AbsDiff(10,3)\nhave %d\nwant 7", got)
	}
	if got := AbsDiff(uint32(4), uint32(4)); got != 0 {
		t.Fatalf("AbsDiff(4,4)\nhave %d\nwant 0", got)
	}
}

func TestAlignUp(t *testing.T) {
	cases := []struct {
		value, align, want uint64
	}{
		{0, 4, 0},
		{1, 4, 4},
		{4, 4, 4},
		{5, 4, 8},
		{13, 1, 13},
		{13, 0, 13},
	}
	for _, c := range cases {
		if got := AlignUp(c.value, c.align); got != c.want {
			t.Fatalf("AlignUp(%d, %d)\nhave %d\nwant %d", c.value, c.align, got, c.want)
		}
	}
}

func TestNextPowerOfTwo(t *testing.T) {
	cases := []struct {
		value, want uint64
	}{
		{0, 1},
		{1, 1},
		{2, 2},
		{3, 4},
		{64, 64},
		{65, 128},
		{1 << 40, 1 << 40},
		{1<<40 + 1, 1 << 41},
	}
	for _, c := range cases {
		if got := NextPowerOfTwo(c.value); got != c.want {
			t.Fatalf("NextPowerOfTwo(%d)\nhave %d\nwant %d", c.value, got, c.want)
		}
	}
}

func TestMinMax(t *testing.T) {
	if got := Min(3, 9); got != 3 {
		t.Fatalf("Min(3,9)\nhave %d\nwant 3", got)
	}
	if got := Max(3, 9); got != 9 {
		t.Fatalf("Max(3,9)\nhave %d\nwant 9", got)
	}
}
