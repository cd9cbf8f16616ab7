package core

import "sync"

const frameAverageCount = 30

type metricsState struct {
	frameTimes   [frameAverageCount]float64
	frameCursor  int
	frameTimeAvg float64

	frames        int32
	accumulatedMS float64
	fps           float64
}

var metricsOnce sync.Once
var metrics *metricsState

func MetricsInitialize() {
	metricsOnce.Do(func() {
		metrics = &metricsState{}
	})
}

// MetricsUpdate records one frame of the given duration in seconds. It keeps
// a rolling average of frame time and a once-per-second FPS figure.
func MetricsUpdate(frameElapsed float64) {
	if metrics == nil {
		return
	}

	frameMS := frameElapsed * 1000.0
	metrics.frameTimes[metrics.frameCursor] = frameMS
	metrics.frameCursor++
	if metrics.frameCursor == frameAverageCount {
		var sum float64
		for _, ms := range metrics.frameTimes {
			sum += ms
		}
		metrics.frameTimeAvg = sum / frameAverageCount
		metrics.frameCursor = 0
	}

	metrics.accumulatedMS += frameMS
	metrics.frames++
	if metrics.accumulatedMS > 1000 {
		metrics.fps = float64(metrics.frames)
		metrics.accumulatedMS -= 1000
		metrics.frames = 0
	}
}

// MetricsFrame returns frames per second and the average frame time in
// milliseconds.
func MetricsFrame() (fps float64, frameTimeMS float64) {
	if metrics == nil {
		return 0, 0
	}
	return metrics.fps, metrics.frameTimeAvg
}
