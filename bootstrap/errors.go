package bootstrap

import "fmt"

// The three terminal launch errors. Each one aborts the current launch
// attempt and is surfaced to the user; none are retried.

// PathResolutionError means the bootstrapper could not determine the location
// of its own executable, so the server directory cannot be derived.
type PathResolutionError struct {
	Err error
}

func (e *PathResolutionError) Error() string {
	return fmt.Sprintf("cannot resolve application directory: %v", e.Err)
}

func (e *PathResolutionError) Unwrap() error { return e.Err }

// ServerNotFoundError means the resolved server entry point does not exist on
// disk. No spawn is attempted.
type ServerNotFoundError struct {
	Path string
	Err  error
}

func (e *ServerNotFoundError) Error() string {
	return fmt.Sprintf("server entry point not found at %s", e.Path)
}

func (e *ServerNotFoundError) Unwrap() error { return e.Err }

// SpawnError means the operating system refused to create the server process.
type SpawnError struct {
	Path string
	Err  error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("failed to spawn server %s: %v", e.Path, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }
