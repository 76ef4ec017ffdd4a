// Package config loads facewatch settings from .env files, the environment
// and an optional YAML file whose keys mirror command-line flag names.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// DefaultDatabaseURL is used when neither --db nor POSTGRES_HOST is set.
const DefaultDatabaseURL = "postgres://localhost:5432/facewatch"

// LoadDotEnv loads variables from the given .env files (".env" when none
// are given). Missing files are ignored; variables already set win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// DatabaseURL returns explicit when set, otherwise builds a connection
// string from POSTGRES_HOST, POSTGRES_PORT, POSTGRES_USER,
// POSTGRES_PASSWORD and POSTGRES_DB.
func DatabaseURL(explicit string) string {
	if explicit != "" {
		return explicit
	}
	host := os.Getenv("POSTGRES_HOST")
	if host == "" {
		return DefaultDatabaseURL
	}
	port := os.Getenv("POSTGRES_PORT")
	if port == "" {
		port = "5432"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s",
		os.Getenv("POSTGRES_USER"), os.Getenv("POSTGRES_PASSWORD"), host, port, os.Getenv("POSTGRES_DB"))
}

// File holds flag values read from a YAML config file.
type File struct {
	Path   string
	Values map[string]string
}

// Load reads a YAML mapping of flag name to scalar value.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(path, data)
}

// Parse decodes YAML config data. Nested values are rejected.
func Parse(path string, data []byte) (*File, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	f := &File{Path: path, Values: make(map[string]string, len(raw))}
	for k, v := range raw {
		switch v.(type) {
		case map[string]any, []any:
			return nil, fmt.Errorf("config %s: %q must be a scalar", path, k)
		case nil:
			continue
		}
		f.Values[strings.TrimSpace(k)] = fmt.Sprint(v)
	}
	return f, nil
}

// Apply sets every flag in fs that was not given on the command line and
// has a value in the file. Keys that are flags of another command (listed in
// known) are returned as skipped; keys that name no flag at all are an error.
func (f *File) Apply(fs *pflag.FlagSet, known map[string]bool) (skipped []string, err error) {
	keys := make([]string, 0, len(f.Values))
	for k := range f.Values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var unknown []string
	for _, k := range keys {
		flag := fs.Lookup(k)
		if flag == nil {
			if known[k] {
				skipped = append(skipped, k)
			} else {
				unknown = append(unknown, k)
			}
			continue
		}
		if flag.Changed {
			continue
		}
		if err := fs.Set(k, f.Values[k]); err != nil {
			return nil, fmt.Errorf("config %s: %s: %w", f.Path, k, err)
		}
	}
	if len(unknown) > 0 {
		return nil, fmt.Errorf("config %s: unknown keys: %s", f.Path, strings.Join(unknown, ", "))
	}
	return skipped, nil
}

// FlagNames collects the long names of every flag in the given sets.
func FlagNames(sets ...*pflag.FlagSet) map[string]bool {
	names := make(map[string]bool)
	for _, fs := range sets {
		fs.VisitAll(func(f *pflag.Flag) {
			names[f.Name] = true
		})
	}
	return names
}
