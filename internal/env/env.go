// Package env captures details about the ovo environment.
package env

import (
	"os"
	"path/filepath"
)

// OvoRoot is the directory ovo resolves relative output and cache paths
// against.
var OvoRoot = findOvoRoot()

func findOvoRoot() string {
	if env := os.Getenv("OVOROOT"); env != "" {
		return env
	}
	if wd, err := os.Getwd(); err == nil {
		return wd
	}
	return os.ExpandEnv("$HOME")
}

// DefaultOutputDir is where build outputs land unless configured otherwise.
func DefaultOutputDir() string { return filepath.Join(OvoRoot, "ovo-out") }

// DefaultCacheDir is where the build cache manifest lives unless configured
// otherwise.
func DefaultCacheDir() string { return filepath.Join(OvoRoot, "ovo-out", "cache") }
