package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/andresmejia3/facewatch/internal/facerec"
	"github.com/andresmejia3/facewatch/internal/pipeline"
	"github.com/andresmejia3/facewatch/internal/reference"
	"github.com/andresmejia3/facewatch/internal/worker"
	"github.com/spf13/pflag"
)

const (
	engineDlib   = "dlib"
	engineWorker = "worker"

	defaultReferenceDir = "Kimage"
	defaultModelsDir    = "models"
)

// engine finds faces in live frames and encodes reference images.
type engine interface {
	pipeline.Detector
	reference.Encoder
	Close() error
}

// addEngineFlags registers the flags shared by every command that needs an engine.
func addEngineFlags(fs *pflag.FlagSet, opts *Options) {
	fs.StringVar(&opts.Engine, "engine", engineDlib, "Face engine: dlib (in-process) or worker (external helper)")
	fs.StringVar(&opts.ModelsDir, "models", defaultModelsDir, "Directory with the dlib model files")
	fs.BoolVar(&opts.CNN, "cnn", false, "Use the slower CNN face detector (dlib engine)")
	fs.StringVar(&opts.WorkerCmd, "worker-cmd", worker.DefaultCommand, "Command line of the worker helper (worker engine)")
}

func startEngine(ctx context.Context, opts Options) (engine, error) {
	switch opts.Engine {
	case engineDlib:
		fmt.Fprintln(os.Stderr, "🧠 Loading dlib models...")
		return facerec.New(facerec.Options{ModelsDir: opts.ModelsDir, CNN: opts.CNN})
	case engineWorker:
		fmt.Fprintln(os.Stderr, "🚀 Starting worker engine...")
		return worker.New(ctx, 0, opts.WorkerCmd)
	default:
		return nil, fmt.Errorf("unknown engine %q (want %s or %s)", opts.Engine, engineDlib, engineWorker)
	}
}

// loadReferences reads the reference set from PostgreSQL when --from-db is
// set and from the reference directory otherwise.
func loadReferences(ctx context.Context, opts Options, enc reference.Encoder) (*reference.Set, error) {
	if opts.FromDB {
		set, err := DB.LoadReferences(ctx)
		if err != nil {
			return nil, fmt.Errorf("load references from database: %w", err)
		}
		fmt.Fprintf(os.Stderr, "📇 Loaded %d references from database\n", set.Len())
		return set, nil
	}

	loader := &reference.Loader{Encoder: enc, Logger: logger, Progress: os.Stderr}
	set, err := loader.Load(ctx, opts.ReferenceDir)
	if err != nil {
		return nil, err
	}
	st := loader.Stats()
	fmt.Fprintf(os.Stderr, "📇 Loaded %d references from %s (%d skipped)\n", st.Loaded, filepath.Clean(opts.ReferenceDir), st.Skipped)
	return set, nil
}
