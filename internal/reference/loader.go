package reference

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/andresmejia3/facewatch/internal/vision"
	"github.com/schollz/progressbar/v3"
)

// ErrNoFace is returned by encoders when an image holds no detectable face.
var ErrNoFace = errors.New("no face found in image")

// Encoder computes a single face embedding for an image file.
type Encoder interface {
	EncodeFile(ctx context.Context, path string) (vision.Embedding, error)
}

// Stats summarizes one Load call.
type Stats struct {
	Loaded  int
	Skipped int
}

// Loader builds a Set from a directory of labeled images.
type Loader struct {
	Encoder Encoder
	Logger  *slog.Logger
	// Progress receives the progress bar; nil disables it.
	Progress io.Writer

	stats Stats
}

// Label derives the reference label from a file name by stripping its extension.
func Label(name string) string {
	base := filepath.Base(name)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Load encodes every regular file in dir. Files that cannot be decoded or
// hold no face are logged and skipped. When two files share a stem the one
// read later wins.
func (l *Loader) Load(ctx context.Context, dir string) (*Set, error) {
	if l.Encoder == nil {
		return nil, errors.New("reference loader has no encoder")
	}
	log := l.Logger
	if log == nil {
		log = slog.Default()
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read reference directory: %w", err)
	}

	var files []os.DirEntry
	for _, e := range entries {
		if isRegularFile(dir, e) {
			files = append(files, e)
		}
	}

	var bar *progressbar.ProgressBar
	if l.Progress != nil {
		bar = progressbar.NewOptions(len(files),
			progressbar.OptionSetDescription("📇 Loading references"),
			progressbar.OptionSetWriter(l.Progress),
			progressbar.OptionShowCount(),
		)
	}

	l.stats = Stats{}
	set := NewSet()
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		path := filepath.Join(dir, f.Name())
		emb, err := l.Encoder.EncodeFile(ctx, path)
		if bar != nil {
			bar.Add(1)
		}
		if err != nil {
			log.Warn("failed to load reference image", "file", f.Name(), "error", err)
			l.stats.Skipped++
			continue
		}
		label := Label(f.Name())
		if _, dup := set.Get(label); dup {
			log.Debug("reference label overwritten", "label", label, "file", f.Name())
		}
		set.Put(label, emb)
		l.stats.Loaded++
	}
	if bar != nil {
		bar.Finish()
	}

	log.Info("reference set loaded", "dir", dir, "labels", set.Len(), "skipped", l.stats.Skipped)
	return set, nil
}

// isRegularFile accepts regular files and symlinks that resolve to one.
func isRegularFile(dir string, e os.DirEntry) bool {
	if e.Type().IsRegular() {
		return true
	}
	if e.Type()&fs.ModeSymlink == 0 {
		return false
	}
	info, err := os.Stat(filepath.Join(dir, e.Name()))
	return err == nil && info.Mode().IsRegular()
}

// Stats returns the counters from the last Load.
func (l *Loader) Stats() Stats {
	return l.stats
}
