package camera

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"sync"
	"time"
)

// simFrameInterval paces the simulated sensor at roughly 30 fps.
const simFrameInterval = 33 * time.Millisecond

// simJPEGQuality matches the compression used on real hardware.
const simJPEGQuality = 80

// SimBackend is a capture backend for hosts without camera hardware.
//
// It serves synthetic JPEG frames so streaming, snapshots, and the full
// session lifecycle behave identically in development and tests.
type SimBackend struct {
	// indices restricts which device indices open successfully.
	// nil means every index opens.
	indices map[int]struct{}

	mu   sync.Mutex
	open map[int]bool // enforces exclusive ownership per index
}

// NewSimBackend creates a simulated backend. With no arguments every
// index opens; otherwise only the listed indices do.
func NewSimBackend(indices ...int) *SimBackend {
	b := &SimBackend{open: make(map[int]bool)}
	if len(indices) > 0 {
		b.indices = make(map[int]struct{}, len(indices))
		for _, i := range indices {
			b.indices[i] = struct{}{}
		}
	}
	return b
}

// Open returns a synthetic device for the index, or an error if the
// index is not simulated or already owned, matching the exclusivity a
// real V4L2 device enforces.
func (b *SimBackend) Open(index int, opts Options) (Device, error) {
	if b.indices != nil {
		if _, ok := b.indices[index]; !ok {
			return nil, fmt.Errorf("no simulated device at index %d", index)
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.open[index] {
		return nil, fmt.Errorf("simulated device %d is busy", index)
	}
	b.open[index] = true

	return &simDevice{backend: b, index: index, opts: opts}, nil
}

// simDevice renders a slowly shifting gradient with a frame counter so
// viewers can confirm frames are actually advancing.
type simDevice struct {
	backend *SimBackend
	index   int
	opts    Options
	seq     int
	closed  bool
	mu      sync.Mutex
}

func (d *simDevice) ReadFrame() ([]byte, error) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil, fmt.Errorf("simulated device %d closed", d.index)
	}
	d.seq++
	seq := d.seq
	d.mu.Unlock()

	time.Sleep(simFrameInterval)

	w, h := d.opts.Width, d.opts.Height
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	shift := uint8(seq % 256)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{
				R: uint8(x*255/w) + shift,
				G: uint8(y * 255 / h),
				B: uint8(d.index * 60),
				A: 255,
			})
		}
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: simJPEGQuality}); err != nil {
		return nil, fmt.Errorf("encoding simulated frame: %w", err)
	}
	return buf.Bytes(), nil
}

func (d *simDevice) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.mu.Unlock()

	d.backend.mu.Lock()
	delete(d.backend.open, d.index)
	d.backend.mu.Unlock()
	return nil
}
