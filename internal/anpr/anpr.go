// Package anpr defines the capture, detection and OCR capability interfaces
// the control loop is built against. Concrete camera and model bindings live
// outside this module and plug in behind these interfaces.
package anpr

import (
	"context"
	"time"
)

// Frame is one captured camera image.
type Frame struct {
	Data       []byte
	Width      int
	Height     int
	CapturedAt time.Time
}

// Box is a plate bounding box in frame coordinates.
type Box struct {
	X      int
	Y      int
	Width  int
	Height int
}

// Detection is one plate candidate found in a frame.
type Detection struct {
	Box        Box
	Confidence float64
	Crop       []byte
}

// Capture produces frames at the camera cadence.
type Capture interface {
	Read(ctx context.Context) (Frame, error)
	Close() error
}

// Detector locates plate candidates in a frame.
type Detector interface {
	Detect(ctx context.Context, frame Frame) ([]Detection, error)
}

// Reader runs OCR over a plate crop and returns the raw text with its
// confidence score.
type Reader interface {
	ReadText(ctx context.Context, crop []byte) (string, float64, error)
}
