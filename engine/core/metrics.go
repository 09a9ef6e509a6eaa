package core

import "github.com/spaghettifunk/prism/engine/containers"

// FPS_SAMPLES is the size of the frame time ring used for the fps average.
const FPS_SAMPLES int = 180

// AVG_COUNT is the number of frames averaged into the frame time.
const AVG_COUNT int = 30

type Metrics struct {
	frameAVGCounter int
	msTimes         [AVG_COUNT]float64
	msAVG           float64

	samples *containers.RingQueue[float64]
	sum     float64

	frames uint64
}

func NewMetrics() *Metrics {
	return &Metrics{
		samples: containers.NewRingQueue[float64](FPS_SAMPLES),
	}
}

// Update records the duration, in seconds, of the last frame.
func (m *Metrics) Update(frameElapsedTime float64) {
	frameMS := frameElapsedTime * 1000.0
	m.msTimes[m.frameAVGCounter] = frameMS
	if m.frameAVGCounter == AVG_COUNT-1 {
		total := 0.0
		for i := 0; i < AVG_COUNT; i++ {
			total += m.msTimes[i]
		}
		m.msAVG = total / float64(AVG_COUNT)
	}
	m.frameAVGCounter = (m.frameAVGCounter + 1) % AVG_COUNT

	// ring of the last FPS_SAMPLES frame times
	if m.samples.IsFull() {
		oldest, _ := m.samples.Dequeue()
		m.sum -= oldest
	}
	_ = m.samples.Enqueue(frameElapsedTime)
	m.sum += frameElapsedTime

	m.frames++
}

// FPS is averaged over the last FPS_SAMPLES frames.
func (m *Metrics) FPS() float64 {
	if m.samples.IsEmpty() || m.sum <= 0 {
		return 0
	}
	return float64(m.samples.Len()) / m.sum
}

// FrameTime returns the average frame time in milliseconds.
func (m *Metrics) FrameTime() float64 {
	return m.msAVG
}

func (m *Metrics) Frames() uint64 {
	return m.frames
}

func (m *Metrics) Frame() (float64, float64) {
	return m.FPS(), m.msAVG
}
