package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/andresmejia3/facewatch/internal/matcher"
	"github.com/andresmejia3/facewatch/internal/reference"
	"github.com/andresmejia3/facewatch/internal/schedule"
	"github.com/andresmejia3/facewatch/internal/vision"
)

// State says what the next Step does with its frame.
type State int

const (
	// Detect runs detection on the frame and replaces the match set.
	Detect State = iota
	// Skip reuses the match set from the last Detect frame.
	Skip
)

func (s State) String() string {
	if s == Detect {
		return "DETECT"
	}
	return "SKIP"
}

const (
	DefaultScale           = 0.25
	DefaultMaxReadFailures = 2
	DefaultReadBackoff     = 100 * time.Millisecond
)

// Config tunes a Session.
type Config struct {
	// Scale is the downscaling factor applied before detection, in (0, 1].
	Scale float64
	// MaxReadFailures is the number of consecutive failed reads, or failed
	// detections, that stop the run. One means no retry.
	MaxReadFailures int
	// ReadBackoff is the wait before the first retry; it doubles per retry.
	ReadBackoff time.Duration
}

func (c Config) withDefaults() Config {
	if c.Scale <= 0 || c.Scale > 1 {
		c.Scale = DefaultScale
	}
	if c.MaxReadFailures < 1 {
		c.MaxReadFailures = DefaultMaxReadFailures
	}
	if c.ReadBackoff <= 0 {
		c.ReadBackoff = DefaultReadBackoff
	}
	return c
}

// Stats counts what a Session has done so far.
// DetectFailures counts DETECT frames whose detection failed and were
// rendered with the previous matches.
type Stats struct {
	Frames         int
	DetectFrames   int
	SkipFrames     int
	Faces          int
	Known          int
	DetectFailures int
}

// Session owns everything one recognition run needs: the reference set,
// the current matches, the capture device and the display.
type Session struct {
	ID string

	source   Source
	detector Detector
	display  Display
	policy   matcher.Policy
	refs     *reference.Set
	cfg      Config
	log      *slog.Logger

	state          State
	matches        []vision.Match
	stats          Stats
	detectFailures int
	sleep          func(context.Context, time.Duration) error
}

// NewSession wires a session together. It takes ownership of source and
// display; Close releases them.
func NewSession(id string, src Source, det Detector, disp Display, policy matcher.Policy, refs *reference.Set, cfg Config, log *slog.Logger) *Session {
	if log == nil {
		log = slog.Default()
	}
	return &Session{
		ID:       id,
		source:   src,
		detector: det,
		display:  disp,
		policy:   policy,
		refs:     refs,
		cfg:      cfg.withDefaults(),
		log:      log.With("session", id),
		state:    Detect,
		sleep:    sleepCtx,
	}
}

// State returns what the next Step will do.
func (s *Session) State() State { return s.state }

// Matches returns the match set from the last Detect frame, in detection
// (downscaled) coordinates.
func (s *Session) Matches() []vision.Match { return s.matches }

// Stats returns the running counters.
func (s *Session) Stats() Stats { return s.stats }

// Step processes one frame: read, detect or reuse, render, flip state.
func (s *Session) Step(ctx context.Context) error {
	frame, err := s.read(ctx)
	if err != nil {
		return err
	}
	defer frame.Close()

	s.stats.Frames++
	if s.state == Detect {
		if err := s.detect(ctx, frame); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.detectFailures++
			s.stats.DetectFailures++
			s.log.Warn("face detection failed, keeping previous matches", "attempt", s.detectFailures, "error", err)
			if s.detectFailures >= s.cfg.MaxReadFailures {
				return fmt.Errorf("%w: %d consecutive failures: %v", ErrDetectionFailed, s.detectFailures, err)
			}
		} else {
			s.detectFailures = 0
		}
		s.stats.DetectFrames++
		s.state = Skip
	} else {
		s.stats.SkipFrames++
		s.state = Detect
	}

	if err := s.display.Show(frame, vision.Upscale(s.matches, s.cfg.Scale)); err != nil {
		return fmt.Errorf("render frame: %w", err)
	}
	if s.display.Quit() {
		return ErrQuit
	}
	return nil
}

func (s *Session) detect(ctx context.Context, frame Frame) error {
	small, err := frame.Downscale(s.cfg.Scale)
	if err != nil {
		return fmt.Errorf("downscale frame: %w", err)
	}
	defer small.Close()

	obs, err := s.detector.Detect(ctx, small)
	if err != nil {
		return fmt.Errorf("detect faces: %w", err)
	}
	s.matches = matcher.MatchAll(s.policy, obs, s.refs)

	for _, m := range s.matches {
		s.stats.Faces++
		if m.Known() {
			s.stats.Known++
		}
		s.log.Debug("face matched", "label", m.Label, "distance", m.Distance)
	}
	return nil
}

// read retries failed reads with a doubling backoff until MaxReadFailures
// consecutive failures have been seen.
func (s *Session) read(ctx context.Context) (Frame, error) {
	backoff := s.cfg.ReadBackoff
	var lastErr error
	for attempt := 1; attempt <= s.cfg.MaxReadFailures; attempt++ {
		frame, err := s.source.Read(ctx)
		if err == nil {
			return frame, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, ErrEndOfStream) {
			return nil, err
		}
		lastErr = err
		s.log.Warn("frame read failed", "attempt", attempt, "error", err)
		if attempt == s.cfg.MaxReadFailures {
			break
		}
		if err := s.sleep(ctx, backoff); err != nil {
			return nil, err
		}
		backoff *= 2
	}
	return nil, fmt.Errorf("%w: %d consecutive failures: %v", ErrCaptureFailed, s.cfg.MaxReadFailures, lastErr)
}

// Run drives Step with sched until the user quits, the context ends or a
// step fails. Quit and cancellation are not errors.
func (s *Session) Run(ctx context.Context, sched schedule.Scheduler) error {
	s.log.Info("session started", "references", s.refs.Len(), "scale", s.cfg.Scale)
	err := sched.Run(ctx, s.Step)
	st := s.stats
	s.log.Info("session finished", "frames", st.Frames, "detect_frames", st.DetectFrames, "faces", st.Faces, "known", st.Known, "detect_failures", st.DetectFailures)

	if errors.Is(err, ErrQuit) || errors.Is(err, ErrEndOfStream) || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Close releases the display and the capture device.
func (s *Session) Close() error {
	return errors.Join(s.display.Close(), s.source.Close())
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
