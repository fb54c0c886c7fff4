package headpose

// Angles is a head rotation in degrees.
type Angles struct {
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
	Roll  float64 `json:"roll"`
}

// Sub returns a - b component-wise.
func (a Angles) Sub(b Angles) Angles {
	return Angles{Pitch: a.Pitch - b.Pitch, Yaw: a.Yaw - b.Yaw, Roll: a.Roll - b.Roll}
}

// Config holds the angle thresholds used to classify a pose.
type Config struct {
	PitchUp          float64 // pitch above this is Up
	PitchDown        float64 // pitch below this is Down
	Yaw              float64 // |yaw| above this is Left/Right
	ForwardTolerance float64 // |pitch| and |yaw| within this is Forward
}

// DefaultConfig returns thresholds tuned for a dashboard-mounted camera.
// Pitch is asymmetric because drivers glance down far more than up.
func DefaultConfig() Config {
	return Config{
		PitchUp:          23,
		PitchDown:        -8,
		Yaw:              20,
		ForwardTolerance: 10,
	}
}

// Classifier maps angles to a Direction. Poses in the dead band between
// the forward tolerance and the direction thresholds keep the previous
// label. Not safe for concurrent use.
type Classifier struct {
	config Config
	offset Angles
	last   Direction
}

// NewClassifier creates a classifier that starts out Forward.
func NewClassifier(cfg Config) *Classifier {
	return &Classifier{config: cfg, last: Forward}
}

// Calibrate records a as the subject's neutral pose. The offset lives
// only as long as the classifier.
func (c *Classifier) Calibrate(a Angles) {
	c.offset = a
}

// Offset returns the current calibration offset.
func (c *Classifier) Offset() Angles {
	return c.offset
}

// Classify returns the direction for raw angles a.
func (c *Classifier) Classify(a Angles) Direction {
	rel := a.Sub(c.offset)
	switch {
	case rel.Pitch > c.config.PitchUp:
		c.last = Up
	case rel.Pitch < c.config.PitchDown:
		c.last = Down
	case rel.Yaw > c.config.Yaw:
		c.last = Right
	case rel.Yaw < -c.config.Yaw:
		c.last = Left
	case abs(rel.Pitch) <= c.config.ForwardTolerance && abs(rel.Yaw) <= c.config.ForwardTolerance:
		c.last = Forward
	}
	return c.last
}

// Last returns the most recent classification.
func (c *Classifier) Last() Direction {
	return c.last
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
