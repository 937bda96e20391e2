package health

import (
	"context"
	"fmt"
	"os/exec"
)

// Pinger is anything that can report its own reachability, such as a
// storage backend.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Ping returns a [Checker] that calls p.Ping.
func Ping(name string, p Pinger) Checker {
	return Checker{Name: name, Check: p.Ping}
}

// Executable returns an optional [Checker] that verifies the program at path
// (or on PATH when path has no separator) can be found. Live audio needs
// ffmpeg and ffplay, but text coaching works without them.
func Executable(name, path string) Checker {
	return Checker{
		Name:     name,
		Optional: true,
		Check: func(context.Context) error {
			if _, err := exec.LookPath(path); err != nil {
				return fmt.Errorf("health: %s: %w", path, err)
			}
			return nil
		},
	}
}
