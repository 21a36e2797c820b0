package trainer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"time"
)

const waitDelay = time.Second

var ErrEmptyCommand = errors.New("empty trainer command")

type HostConfig struct {
	Command string
	// Args are placed before the job flags, e.g. a subcommand.
	Args    []string
	Debug   bool
	Timeout time.Duration
	Stdout  io.Writer
	Stderr  io.Writer
}

type hostRunner struct {
	command string
	args    []string
	debug   bool
	timeout time.Duration
	stdout  io.Writer
	stderr  io.Writer
	logger  *slog.Logger
}

// NewHostRunner runs the trainer as a child process. In debug mode the child
// inherits stdout and stderr; otherwise stdout is discarded and only stderr
// is passed through.
func NewHostRunner(cfg HostConfig, logger *slog.Logger) (Runner, error) {
	if cfg.Command == "" {
		return nil, ErrEmptyCommand
	}
	if cfg.Stdout == nil {
		cfg.Stdout = os.Stdout
	}
	if cfg.Stderr == nil {
		cfg.Stderr = os.Stderr
	}

	return &hostRunner{
		command: cfg.Command,
		args:    cfg.Args,
		debug:   cfg.Debug,
		timeout: cfg.Timeout,
		stdout:  cfg.Stdout,
		stderr:  cfg.Stderr,
		logger:  logger,
	}, nil
}

func (h *hostRunner) Run(ctx context.Context, job Job) error {
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	args := make([]string, 0, len(h.args)+8)
	args = append(args, h.args...)
	args = append(args, job.Args()...)

	cmd := exec.CommandContext(ctx, h.command, args...)
	// Grandchildren may hold the output pipes open after a kill.
	cmd.WaitDelay = waitDelay
	cmd.Stderr = h.stderr
	if h.debug {
		cmd.Stdout = h.stdout
	}

	h.logger.Debug("Starting trainer", slog.String("command", h.command), slog.Any("args", args))

	if err := cmd.Start(); err != nil {
		return errors.Join(ErrStartFailed, err)
	}

	err := cmd.Wait()
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return fmt.Errorf("%w after %s", ErrTimeout, h.timeout)
	case ctx.Err() != nil:
		return ctx.Err()
	}
	if err == nil {
		return nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &ExitError{Code: exitErr.ExitCode()}
	}

	return fmt.Errorf("failed to wait for trainer: %w", err)
}
