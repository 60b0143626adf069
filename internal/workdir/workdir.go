// Package workdir manages the staging directory a conversion extracts into.
package workdir

import (
	"fmt"
	"os"
)

// ramDir is the RAM-backed filesystem preferred for staging: extraction and
// link rewriting are I/O bound, so a tmpfs makes large sites noticeably
// faster. Absent or unwritable, the system temp dir is used instead.
const ramDir = "/dev/shm"

// Dir is a staging directory for one conversion run.
type Dir struct {
	Path      string
	RAMBacked bool
}

// New creates a unique staging directory. preferRAM selects the RAM-backed
// location when it is usable; failure to use it is not an error, only the
// final fallback failing is.
func New(prefix string, preferRAM bool) (*Dir, error) {
	if preferRAM {
		if info, err := os.Stat(ramDir); err == nil && info.IsDir() {
			if path, err := os.MkdirTemp(ramDir, prefix); err == nil {
				return &Dir{Path: path, RAMBacked: true}, nil
			}
		}
	}
	path, err := os.MkdirTemp("", prefix)
	if err != nil {
		return nil, fmt.Errorf("create staging directory: %w", err)
	}
	return &Dir{Path: path}, nil
}

// Cleanup removes the staging directory and everything beneath it.
func (d *Dir) Cleanup() error {
	return os.RemoveAll(d.Path)
}
