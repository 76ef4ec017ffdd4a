package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/andresmejia3/facewatch/internal/config"
	"github.com/andresmejia3/facewatch/internal/store"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Options holds shared configuration for the watch, menu, enroll and identify commands.
type Options struct {
	ReferenceDir    string
	FromDB          bool
	Device          int
	Stream          string
	FPS             int
	Scale           float64
	Policy          string
	MatchThreshold  float64
	Interval        time.Duration
	MaxReadFailures int
	ReadBackoff     time.Duration
	Headless        bool
	Engine          string
	ModelsDir       string
	CNN             bool
	WorkerCmd       string
}

// dbAnnotation marks commands that always need the reference store.
const dbAnnotation = "facewatch/db"

var (
	// DB is the global database connection shared by subcommands
	DB *store.Store
	// dbURL is the connection string
	dbURL string

	configPath string
	logLevel   string
	logFormat  string

	logger = slog.Default()
)

// Version is the application version.
const Version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:     "facewatch",
	Short:   "Live webcam face recognition against a labeled reference set",
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.LoadDotEnv(); err != nil {
			return err
		}
		var skipped []string
		if configPath != "" {
			file, err := config.Load(configPath)
			if err != nil {
				return err
			}
			skipped, err = file.Apply(cmd.Flags(), allFlagNames(cmd.Root()))
			if err != nil {
				return err
			}
		}

		l, err := newLogger(os.Stderr, logLevel, logFormat)
		if err != nil {
			return err
		}
		logger = l
		slog.SetDefault(l)
		if len(skipped) > 0 {
			logger.Debug("config keys not used by this command", "command", cmd.Name(), "keys", skipped)
		}

		if !needsDB(cmd) {
			return nil
		}
		url := config.DatabaseURL(dbURL)
		DB, err = store.New(cmd.Context(), url)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if DB != nil {
			// The command context may already be cancelled by Ctrl+C.
			DB.Close(context.Background())
		}
	},
}

// needsDB reports whether cmd talks to PostgreSQL, either always or because
// --from-db was given.
func needsDB(cmd *cobra.Command) bool {
	if cmd.Annotations[dbAnnotation] == "true" {
		return true
	}
	fromDB, err := cmd.Flags().GetBool("from-db")
	return err == nil && fromDB
}

// allFlagNames lists every flag defined by root or any of its subcommands.
func allFlagNames(root *cobra.Command) map[string]bool {
	sets := []*pflag.FlagSet{root.PersistentFlags(), root.Flags()}
	var walk func(c *cobra.Command)
	walk = func(c *cobra.Command) {
		for _, sub := range c.Commands() {
			sets = append(sets, sub.PersistentFlags(), sub.Flags())
			walk(sub)
		}
	}
	walk(root)
	return config.FlagNames(sets...)
}

// newLogger builds the slog handler selected by --log-level and --log-format.
func newLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	opts := &slog.HandlerOptions{Level: lvl}
	switch strings.ToLower(format) {
	case "text", "":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("invalid log format %q (use text or json)", format)
	}
}

func Execute() {
	// Create a context that listens for Ctrl+C (SIGINT) or Kill (SIGTERM)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbURL, "db", "", "PostgreSQL connection string (default: POSTGRES_* env or "+config.DefaultDatabaseURL+")")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML file with flag defaults (keys are flag names)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format (text or json)")
}
