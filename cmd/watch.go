package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/andresmejia3/facewatch/internal/camera"
	"github.com/andresmejia3/facewatch/internal/matcher"
	"github.com/andresmejia3/facewatch/internal/pipeline"
	"github.com/andresmejia3/facewatch/internal/schedule"
	"github.com/andresmejia3/facewatch/internal/utils"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const (
	windowTitle     = "Video"
	defaultInterval = 20 * time.Millisecond
	maxThreshold    = 2.0
)

var watchOpts Options

var watchCmd = &cobra.Command{
	Use:   "watch [reference_dir]",
	Short: "Recognize faces from a camera against a reference set",
	Long: "Opens a camera (or any ffmpeg input with --stream), detects faces on every other frame " +
		"and labels them with the closest reference image from reference_dir (default " + defaultReferenceDir + ").",
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		if len(args) == 1 {
			watchOpts.ReferenceDir = args[0]
		}
		return runWatch(cmd.Context(), watchOpts)
	},
}

func init() {
	addWatchFlags(watchCmd.Flags(), &watchOpts)
	rootCmd.AddCommand(watchCmd)
}

// addWatchFlags registers the live loop flags. menu shares them.
func addWatchFlags(fs *pflag.FlagSet, opts *Options) {
	opts.ReferenceDir = defaultReferenceDir
	fs.IntVarP(&opts.Device, "device", "c", 0, "Camera device index")
	fs.StringVarP(&opts.Stream, "stream", "s", "", "Read frames through ffmpeg from a file, URL or device instead of the camera")
	fs.IntVar(&opts.FPS, "fps", 0, "Frame rate for --stream (0 keeps the input rate)")
	fs.Float64Var(&opts.Scale, "scale", pipeline.DefaultScale, "Downscale factor applied before detection, in (0, 1]")
	fs.StringVarP(&opts.Policy, "policy", "p", matcher.PolicyNearest, "Matching policy: "+strings.Join(matcher.Policies, ", "))
	fs.Float64VarP(&opts.MatchThreshold, "threshold", "t", matcher.DefaultThreshold, "Face matching threshold (lower is stricter)")
	fs.DurationVarP(&opts.Interval, "interval", "i", defaultInterval, "Time between frames (0 runs as fast as possible)")
	fs.IntVar(&opts.MaxReadFailures, "max-read-failures", pipeline.DefaultMaxReadFailures, "Consecutive camera read failures before giving up")
	fs.DurationVar(&opts.ReadBackoff, "read-backoff", pipeline.DefaultReadBackoff, "Wait before retrying a failed read (doubles per retry)")
	fs.BoolVar(&opts.Headless, "headless", false, "Log recognized faces instead of opening a window")
	fs.BoolVar(&opts.FromDB, "from-db", false, "Load references from PostgreSQL instead of a directory")
	addEngineFlags(fs, opts)
}

func runWatch(ctx context.Context, opts Options) error {
	if err := validateWatchFlags(&opts); err != nil {
		utils.ShowError("Invalid options", err, nil)
		return err
	}

	eng, err := startEngine(ctx, opts)
	if err != nil {
		utils.ShowError("Failed to start face engine", err, nil)
		return err
	}
	defer eng.Close()

	refs, err := loadReferences(ctx, opts, eng)
	if err != nil {
		utils.ShowError("Failed to load references", err, nil)
		return err
	}
	if refs.Len() == 0 {
		fmt.Fprintln(os.Stderr, "⚠️  No references loaded, every face will be Unknown")
	}

	policy, err := matcher.New(opts.Policy, opts.MatchThreshold, refs)
	if err != nil {
		utils.ShowError("Failed to build matcher", err, nil)
		return err
	}

	src, err := openSource(ctx, opts)
	if err != nil {
		utils.ShowError("Failed to open camera", err, nil)
		return err
	}

	var disp pipeline.Display
	if opts.Headless {
		disp = &pipeline.Headless{Log: logger}
	} else {
		disp = camera.NewWindow(windowTitle)
	}

	session := pipeline.NewSession(uuid.NewString(), src, eng, disp, policy, refs, pipeline.Config{
		Scale:           opts.Scale,
		MaxReadFailures: opts.MaxReadFailures,
		ReadBackoff:     opts.ReadBackoff,
	}, logger)
	defer func() {
		if err := session.Close(); err != nil {
			logger.Warn("release capture resources", "error", err)
		}
	}()

	fmt.Fprintln(os.Stderr, "🎥 Watching... press q or Esc in the window (Ctrl+C when headless) to stop")
	start := time.Now()
	err = session.Run(ctx, schedule.Every(opts.Interval))
	st := session.Stats()
	fmt.Fprintf(os.Stderr, "✨ %d frames in %s, %d faces seen, %d recognized\n",
		st.Frames, time.Since(start).Round(time.Second), st.Faces, st.Known)

	if err != nil {
		switch {
		case errors.Is(err, pipeline.ErrCaptureFailed):
			utils.ShowError("Camera stopped delivering frames", err, nil)
		case errors.Is(err, pipeline.ErrDetectionFailed):
			utils.ShowError("Face engine kept failing", err, nil)
		default:
			utils.ShowError("Recognition loop failed", err, nil)
		}
		return err
	}
	return nil
}

func openSource(ctx context.Context, opts Options) (pipeline.Source, error) {
	if opts.Stream != "" {
		return camera.OpenStream(ctx, opts.Stream, opts.FPS, logger)
	}
	return camera.OpenDevice(opts.Device)
}

// validateWatchFlags checks the live loop options.
func validateWatchFlags(opts *Options) error {
	if !opts.FromDB {
		info, err := os.Stat(opts.ReferenceDir)
		if err != nil {
			if os.IsNotExist(err) {
				return fmt.Errorf("reference directory %s does not exist", opts.ReferenceDir)
			}
			return fmt.Errorf("unable to access reference directory: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("reference path %s is not a directory", opts.ReferenceDir)
		}
	}
	if opts.Device < 0 {
		return fmt.Errorf("device index must be >= 0, got %d", opts.Device)
	}
	if opts.Scale <= 0 || opts.Scale > 1 {
		return fmt.Errorf("scale must be in (0, 1], got %g", opts.Scale)
	}
	if err := validateMatching(opts); err != nil {
		return err
	}
	if opts.Interval < 0 {
		return fmt.Errorf("interval must be >= 0, got %s", opts.Interval)
	}
	if opts.MaxReadFailures < 1 {
		return fmt.Errorf("max-read-failures must be >= 1, got %d", opts.MaxReadFailures)
	}
	if opts.ReadBackoff < 0 {
		return fmt.Errorf("read-backoff must be >= 0, got %s", opts.ReadBackoff)
	}
	if opts.FPS < 0 {
		opts.FPS = 0
	}
	return validateEngine(opts)
}

// validateMatching checks the threshold and normalizes the policy name.
func validateMatching(opts *Options) error {
	if opts.MatchThreshold <= 0 || opts.MatchThreshold > maxThreshold {
		return fmt.Errorf("threshold must be in (0, %g], got %g", maxThreshold, opts.MatchThreshold)
	}
	opts.Policy = strings.ToLower(opts.Policy)
	if !slices.Contains(matcher.Policies, opts.Policy) {
		return fmt.Errorf("unknown policy %q (want one of %s)", opts.Policy, strings.Join(matcher.Policies, ", "))
	}
	return nil
}

func validateEngine(opts *Options) error {
	if opts.Engine != engineDlib && opts.Engine != engineWorker {
		return fmt.Errorf("unknown engine %q (want %s or %s)", opts.Engine, engineDlib, engineWorker)
	}
	return nil
}
