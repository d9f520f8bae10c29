package camera

import (
	"fmt"
	"time"

	"github.com/blackjack/webcam"
)

// fourccMJPG is the V4L2 FourCC for Motion-JPEG ('M','J','P','G' little-endian).
// MJPG keeps per-frame bus bandwidth low enough for several cameras to
// share one USB controller without read timeouts.
const fourccMJPG = webcam.PixelFormat(0x47504A4D)

// V4L2Backend opens real capture devices via the Video4Linux2 API.
type V4L2Backend struct{}

// Open opens /dev/video{index} configured for MJPG at the requested
// resolution with a single mmap buffer. The single buffer trades
// throughput for freshness: the driver can never hand back a stale
// queued frame.
func (V4L2Backend) Open(index int, opts Options) (Device, error) {
	path := fmt.Sprintf("/dev/video%d", index)
	cam, err := webcam.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}

	if _, ok := cam.GetSupportedFormats()[fourccMJPG]; !ok {
		cam.Close()
		return nil, fmt.Errorf("%s does not support MJPG", path)
	}

	if _, _, _, err := cam.SetImageFormat(fourccMJPG, uint32(opts.Width), uint32(opts.Height)); err != nil {
		cam.Close()
		return nil, fmt.Errorf("setting format on %s: %w", path, err)
	}

	if err := cam.SetBufferCount(1); err != nil {
		cam.Close()
		return nil, fmt.Errorf("setting buffer count on %s: %w", path, err)
	}

	if err := cam.StartStreaming(); err != nil {
		cam.Close()
		return nil, fmt.Errorf("starting stream on %s: %w", path, err)
	}

	return &v4l2Device{cam: cam, timeout: opts.ReadTimeout}, nil
}

// v4l2Device wraps an open, streaming webcam handle.
type v4l2Device struct {
	cam     *webcam.Webcam
	timeout time.Duration
}

// ReadFrame blocks for up to the configured timeout and returns one
// complete MJPEG frame in a fresh buffer.
func (d *v4l2Device) ReadFrame() ([]byte, error) {
	timeoutSec := uint32(d.timeout / time.Second)
	if timeoutSec == 0 {
		timeoutSec = 1
	}
	if err := d.cam.WaitForFrame(timeoutSec); err != nil {
		return nil, fmt.Errorf("waiting for frame: %w", err)
	}

	frame, err := d.cam.ReadFrame()
	if err != nil {
		return nil, fmt.Errorf("reading frame: %w", err)
	}
	if len(frame) == 0 {
		return nil, fmt.Errorf("empty frame")
	}

	// The driver recycles the mmap buffer on the next dequeue.
	buf := make([]byte, len(frame))
	copy(buf, frame)
	return buf, nil
}

// Close stops streaming and releases the device.
func (d *v4l2Device) Close() error {
	_ = d.cam.StopStreaming()
	return d.cam.Close()
}
