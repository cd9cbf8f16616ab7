package engine

// Game is implemented by the application driving the engine loop. The engine
// calls Initialize once after its own subsystems are up, then Update and
// Render every frame, and Shutdown on the way out.
type Game interface {
	Initialize(e *Engine) error
	Update(deltaTime float64) error
	Render(deltaTime float64) error
	OnResize(width, height uint32)
	Shutdown() error
}
