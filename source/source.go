// Package source provides the extraction sources: one per backend, all
// behind the same resolve-region-to-local-artifact contract. Sources do
// all the I/O; filter compilation stays in package filter so it can be
// tested without processes or network.
package source

import (
	"context"
	"os"
	"os/exec"

	"github.com/osmexport/osmextract/log"
)

// Source materializes an extract for a region.
type Source interface {
	// Resolve returns the path of the extract artifact. If the artifact
	// already exists and the source is configured to use existing
	// files, the backend is not invoked at all. There is no retry and
	// no staleness check; a failed resolve may leave a partially
	// written artifact behind, callers must remove it before retrying.
	Resolve(ctx context.Context) (string, error)
}

// Runner runs an external backend command. Sources use the process
// runner by default; tests substitute a recording fake.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) error
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) error {
	log.Printf("[debug] running %s %v", name, args)
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return &BackendError{Backend: name, Err: err}
	}
	return nil
}

func runner(r Runner) Runner {
	if r != nil {
		return r
	}
	return execRunner{}
}

// BackendError reports a failed backend invocation: a non-zero process
// exit, a failed HTTP request, or an error the service reported in its
// response.
type BackendError struct {
	Backend string
	Reason  string
	Err     error
}

func (e *BackendError) Error() string {
	msg := e.Backend
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// useExisting reports whether path exists and may serve as the result
// without invoking the backend.
func useExisting(path string, use bool) bool {
	if !use {
		return false
	}
	fi, err := os.Stat(path)
	return err == nil && fi.Mode().IsRegular()
}
