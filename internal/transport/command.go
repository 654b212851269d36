package transport

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
)

// CommandSource runs a helper process (for example a MAVLink to JSON
// adapter) and reads envelopes from its stdout. Lines on stderr are logged.
type CommandSource struct {
	name    string
	command string
	args    []string
	opts    lineOptions
}

// NewCommandSource creates a CommandSource for the given command line
func NewCommandSource(name, command string, args []string, options ...Option) *CommandSource {
	return &CommandSource{
		name:    name,
		command: command,
		args:    args,
		opts:    newLineOptions(name, "command", options),
	}
}

func (s *CommandSource) Name() string {
	return s.name
}

// Run starts the process and reads its output until it exits or ctx is
// cancelled. The process is killed when reading fails.
func (s *CommandSource) Run(ctx context.Context, handle LineHandler) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cmd := exec.CommandContext(ctx, s.command, s.args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("error creating stdout pipe: %w", err)
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("error creating stderr pipe: %w", err)
	}

	if err = cmd.Start(); err != nil {
		return fmt.Errorf("error starting command: %w", err)
	}

	s.opts.logger.Info("starting input collection...", slog.Int("pid", cmd.Process.Pid))

	done := make(chan error, 2) // expects two results from two goroutines

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		done <- s.opts.readLines(ctx, stdout, handle)
	}()
	go func() {
		defer wg.Done()
		done <- s.handleStderr(stderr)
	}()

	var errs []error
	for i := 0; i < cap(done); i++ {
		if err := <-done; err != nil {
			cancel() // kill the process on error
			s.opts.logger.Error(err.Error())

			errs = append(errs, err)
		}
	}
	wg.Wait()

	if err := cmd.Wait(); err != nil && ctx.Err() == nil {
		errs = append(errs, fmt.Errorf("command exited with error: %w", err))
	}

	s.opts.logger.Info("input collection stopped")

	return errors.Join(errs...)
}

// handleStderr reads from stderr and logs it.
func (s *CommandSource) handleStderr(stderr io.Reader) error {
	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		s.opts.logger.Warn(fmt.Sprintf("%s >> %s", s.command, line))
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, fs.ErrClosed) {
		return fmt.Errorf("%w: error reading stderr: %w", ErrBrokenPipe, err)
	}

	return nil
}
