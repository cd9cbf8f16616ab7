package engine

import "testing"

type nopGame struct{}

func (nopGame) Initialize(*Engine) error { return nil }
func (nopGame) Update(float64) error     { return nil }
func (nopGame) Render(float64) error     { return nil }
func (nopGame) OnResize(uint32, uint32)  {}
func (nopGame) Shutdown() error          { return nil }

type resizeGame struct {
	nopGame
	resizes [][2]uint32
}

func (g *resizeGame) OnResize(w, h uint32) {
	g.resizes = append(g.resizes, [2]uint32{w, h})
}

func TestMinimizeSuspendsAndRestores(t *testing.T) {
	game := &resizeGame{}
	e, err := New(game, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// A zero-sized framebuffer suspends the loop without a resize event.
	e.onResize(0, 0)
	if !e.suspended {
		t.Fatal("zero-sized resize must suspend the engine")
	}
	e.onResize(0, 0)
	if len(game.resizes) != 0 {
		t.Fatalf("resize events while minimized\nhave %d\nwant 0", len(game.resizes))
	}

	e.onResize(640, 480)
	if e.suspended {
		t.Fatal("a real size must clear the suspension")
	}
	if len(game.resizes) != 1 || game.resizes[0] != [2]uint32{640, 480} {
		t.Fatalf("resize events\nhave %v\nwant [[640 480]]", game.resizes)
	}
}

func TestNewRequiresGame(t *testing.T) {
	if _, err := New(nil, nil); err == nil {
		t.Fatal("a nil game must be rejected")
	}
}

func TestNewDefaultsConfig(t *testing.T) {
	e, err := New(nopGame{}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if e.cfg == nil {
		t.Fatal("a nil config must fall back to defaults")
	}
	if e.stage != StageUninitialized {
		t.Fatalf("initial stage\nhave %v\nwant %v", e.stage, StageUninitialized)
	}
	// Run before Initialize is an error, not a hang.
	if err := e.Run(); err == nil {
		t.Fatal("Run before Initialize must fail")
	}
}
