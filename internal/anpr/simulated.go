package anpr

import (
	"context"
	"sync"
	"time"
)

// SimulatedCapture replays queued frames for development hosts without a
// camera. Read blocks at the configured frame interval and returns an empty
// frame when the queue is drained.
type SimulatedCapture struct {
	interval time.Duration
	frames   []Frame
	next     int
	closed   bool
	mu       sync.Mutex
}

// NewSimulatedCapture creates a capture replaying at the given fps.
func NewSimulatedCapture(fps int) *SimulatedCapture {
	if fps <= 0 {
		fps = 30
	}
	return &SimulatedCapture{interval: time.Second / time.Duration(fps)}
}

// Enqueue adds a frame to the replay queue.
func (c *SimulatedCapture) Enqueue(frame Frame) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, frame)
}

// Read returns the next queued frame after one frame interval.
func (c *SimulatedCapture) Read(ctx context.Context) (Frame, error) {
	select {
	case <-ctx.Done():
		return Frame{}, ctx.Err()
	case <-time.After(c.interval):
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.next >= len(c.frames) {
		return Frame{CapturedAt: time.Now()}, nil
	}
	frame := c.frames[c.next]
	c.next++
	if frame.CapturedAt.IsZero() {
		frame.CapturedAt = time.Now()
	}
	return frame, nil
}

// Close marks the capture closed.
func (c *SimulatedCapture) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// SimulatedDetection pairs a detection with the text the simulated reader
// reports for its crop.
type SimulatedDetection struct {
	Detection Detection
	Text      string
	TextConf  float64
}

// SimulatedPipeline implements Detector and Reader from a scripted set of
// detections keyed by frame payload.
type SimulatedPipeline struct {
	byFrame map[string][]SimulatedDetection
	byCrop  map[string]SimulatedDetection
	mu      sync.Mutex
}

// NewSimulatedPipeline creates an empty scripted pipeline.
func NewSimulatedPipeline() *SimulatedPipeline {
	return &SimulatedPipeline{
		byFrame: make(map[string][]SimulatedDetection),
		byCrop:  make(map[string]SimulatedDetection),
	}
}

// Script registers the detections returned for frames carrying payload.
func (p *SimulatedPipeline) Script(payload string, detections ...SimulatedDetection) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.byFrame[payload] = detections
	for _, d := range detections {
		p.byCrop[string(d.Detection.Crop)] = d
	}
}

// Detect returns the scripted detections for the frame payload.
func (p *SimulatedPipeline) Detect(ctx context.Context, frame Frame) ([]Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	scripted := p.byFrame[string(frame.Data)]
	detections := make([]Detection, 0, len(scripted))
	for _, d := range scripted {
		detections = append(detections, d.Detection)
	}
	return detections, nil
}

// ReadText returns the scripted text for a crop.
func (p *SimulatedPipeline) ReadText(ctx context.Context, crop []byte) (string, float64, error) {
	if err := ctx.Err(); err != nil {
		return "", 0, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	d, ok := p.byCrop[string(crop)]
	if !ok {
		return "", 0, nil
	}
	return d.Text, d.TextConf, nil
}
