package config

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

//go:embed all:scaffold_defaults
var scaffoldDefaults embed.FS

const scaffoldRoot = "scaffold_defaults"

// Scaffold seeds dir with a default config, one model of each kind, and the
// example scripts they reference, but only for files that don't already
// exist — an existing file is never overwritten.
func Scaffold(dir string) error {
	for _, sub := range []string{"models", "scripts"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return fmt.Errorf("create %s dir: %w", sub, err)
		}
	}

	return fs.WalkDir(scaffoldDefaults, scaffoldRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(scaffoldRoot, path)
		if err != nil {
			return err
		}
		dest := filepath.Join(dir, rel)
		return writeIfMissing(dest, path)
	})
}

func writeIfMissing(dest, embeddedPath string) error {
	if _, err := os.Stat(dest); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("stat %s: %w", dest, err)
	}
	data, err := scaffoldDefaults.ReadFile(embeddedPath)
	if err != nil {
		return fmt.Errorf("read embedded %s: %w", embeddedPath, err)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create dir for %s: %w", dest, err)
	}
	if err := os.WriteFile(dest, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", dest, err)
	}
	return nil
}
