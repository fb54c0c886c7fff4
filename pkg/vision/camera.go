package vision

import (
	"bytes"
	"errors"
	"fmt"
	"image/color"
	"sync"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-vigil/pkg/eye"
)

var (
	// ErrCameraClosed is returned after Close.
	ErrCameraClosed = errors.New("vision: camera closed")

	// ErrNoFrame is returned when the device yields an empty frame.
	ErrNoFrame = errors.New("vision: no frame")
)

// Camera captures JPEG frames from an OpenCV video device.
type Camera struct {
	config CameraConfig

	mu     sync.Mutex
	cap    *gocv.VideoCapture
	frame  gocv.Mat
	closed bool
}

// OpenCamera opens the configured device.
func OpenCamera(cfg CameraConfig) (*Camera, error) {
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("vision: invalid camera config: %v", errs)
	}
	vc, err := gocv.OpenVideoCapture(cfg.Device)
	if err != nil {
		return nil, fmt.Errorf("vision: open camera %q: %w", cfg.Device, err)
	}
	if cfg.Width > 0 {
		vc.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Width))
		vc.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Height))
	}
	if cfg.Framerate > 0 {
		vc.Set(gocv.VideoCaptureFPS, float64(cfg.Framerate))
	}
	return &Camera{config: cfg, cap: vc, frame: gocv.NewMat()}, nil
}

// Config returns the camera configuration.
func (c *Camera) Config() CameraConfig {
	return c.config
}

// CaptureJPEG grabs one frame and encodes it.
func (c *Camera) CaptureJPEG() ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrCameraClosed
	}
	if ok := c.cap.Read(&c.frame); !ok || c.frame.Empty() {
		return nil, ErrNoFrame
	}
	if c.config.Mirror {
		gocv.Flip(c.frame, &c.frame, 1)
	}
	return encodeJPEG(c.frame, c.config.Quality)
}

// Close releases the device.
func (c *Camera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.frame.Close()
	return c.cap.Close()
}

func encodeJPEG(img gocv.Mat, quality int) ([]byte, error) {
	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, img, []int{gocv.IMWriteJpegQuality, quality})
	if err != nil {
		return nil, fmt.Errorf("vision: encode jpeg: %w", err)
	}
	defer buf.Close()
	return bytes.Clone(buf.GetBytes()), nil
}

// Annotate draws o onto a JPEG frame and returns the re-encoded frame.
func Annotate(jpeg []byte, o Overlay, quality int) ([]byte, error) {
	img, err := gocv.IMDecode(jpeg, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("vision: decode image: %w", err)
	}
	defer img.Close()
	if img.Empty() {
		return nil, ErrNoFrame
	}

	lines := o.Lines()
	status := o.Color()
	white := color.RGBA{255, 255, 255, 0}

	gocv.Rectangle(&img, statusBox(len(lines)), status, 2)
	for i, line := range lines {
		c := white
		if i == 0 {
			c = status
		}
		gocv.PutText(&img, line, lineOrigin(i), gocv.FontHersheySimplex, 0.6, c, 2)
	}

	if o.Eyes != nil {
		green := color.RGBA{0, 255, 0, 0}
		for _, contour := range [2][6]eye.Point{o.Eyes.RightP, o.Eyes.LeftP} {
			for _, p := range contour {
				gocv.Circle(&img, toPoint(p), 2, green, -1)
			}
		}
	}

	return encodeJPEG(img, quality)
}
