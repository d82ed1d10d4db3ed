// Package runner coordinates execution of experiment runs: one shell command
// per (cell, run) unit, dispatched to an execution pool with bounded
// parallelism, with completion recorded in the run ledger.
package runner

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// Pool runs one shell command in a working directory and reports its exit
// status. Implementations own process mechanics; the coordinator owns
// scheduling, parallelism, and bookkeeping.
type Pool interface {
	Submit(ctx context.Context, command, workdir string) (exitCode int, err error)
}

// LocalPool executes commands as local subprocesses via the shell. Each
// submission is fully independent: its own process, its own working
// directory, no shared state.
type LocalPool struct{}

// Submit runs command under sh -c with workdir as the working directory.
// The engine's stdout and stderr are captured to engine.log inside workdir.
// A non-zero exit status is returned as an exit code, not an error; err is
// reserved for failures to spawn or to observe the process.
func (LocalPool) Submit(ctx context.Context, command, workdir string) (int, error) {
	if err := os.MkdirAll(workdir, 0755); err != nil {
		return -1, fmt.Errorf("creating working directory: %w", err)
	}

	logFile, err := os.Create(filepath.Join(workdir, "engine.log"))
	if err != nil {
		return -1, fmt.Errorf("creating engine log: %w", err)
	}
	defer logFile.Close()

	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = workdir
	cmd.Stdout = logFile
	cmd.Stderr = logFile

	if err := cmd.Run(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return exitErr.ExitCode(), nil
		}
		return -1, fmt.Errorf("running engine command: %w", err)
	}
	return 0, nil
}
