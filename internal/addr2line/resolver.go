package addr2line

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Config holds the configuration for addr2line execution.
type Config struct {
	// Path is the addr2line binary, e.g.
	// ~/.platformio/packages/toolchain-xtensa/bin/xtensa-lx106-elf-addr2line
	Path string

	// Timeout bounds a single invocation. Zero means no timeout.
	Timeout time.Duration
}

// Resolver runs addr2line via os/exec.
type Resolver struct {
	config Config
	logger *zap.Logger
}

// NewResolver creates a new Resolver with the given configuration.
func NewResolver(config Config, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		config: config,
		logger: logger,
	}
}

// Path returns the addr2line binary in use.
func (r *Resolver) Path() string {
	return r.config.Path
}

// Resolve maps a single address in firmware to a location string. Inlined
// callers are returned as additional lines. ok is false when addr2line
// reports the address as unknown.
func (r *Resolver) Resolve(firmware string, addr uint64) (string, bool, error) {
	out, err := r.run(context.Background(), "-fipC", "-e", firmware, formatAddr(addr))
	if err != nil {
		return "", false, err
	}

	out = strings.TrimSpace(out)
	if out == "" || IsUnknown(out) {
		r.logger.Debug("address not found in firmware",
			zap.String("address", formatAddr(addr)),
		)
		return "", false, nil
	}
	return out, true, nil
}

// Symbolize resolves several addresses with a single addr2line invocation.
// The result has one Location per address, in order.
func (r *Resolver) Symbolize(ctx context.Context, firmware string, addrs ...uint64) ([]Location, error) {
	if len(addrs) == 0 {
		return nil, nil
	}

	args := []string{"-afipC", "-e", firmware}
	for _, addr := range addrs {
		args = append(args, formatAddr(addr))
	}
	out, err := r.run(ctx, args...)
	if err != nil {
		return nil, err
	}

	parsed := parseBatch(out)
	byAddr := make(map[uint64]Location, len(parsed))
	for _, loc := range parsed {
		byAddr[loc.Addr] = loc
	}

	locs := make([]Location, len(addrs))
	for i, addr := range addrs {
		loc, ok := byAddr[addr]
		if !ok {
			loc = Location{Addr: addr}
		}
		locs[i] = loc
	}
	return locs, nil
}

// run executes addr2line with args and returns its stdout.
func (r *Resolver) run(ctx context.Context, args ...string) (string, error) {
	if r.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.config.Timeout)
		defer cancel()
	}

	startTime := time.Now()
	cmd := exec.CommandContext(ctx, r.config.Path, args...)

	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf
	err := cmd.Run()

	r.logger.Debug("addr2line execution complete",
		zap.Strings("args", args),
		zap.Duration("duration", time.Since(startTime)),
		zap.Int("stdout_size", stdoutBuf.Len()),
		zap.String("stderr", stderrBuf.String()),
	)

	if ctx.Err() == context.DeadlineExceeded {
		return "", &TimeoutError{
			Path:    r.config.Path,
			Timeout: r.config.Timeout.String(),
		}
	}

	if err != nil {
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		return "", &ExecutionError{
			Path:     r.config.Path,
			Args:     args,
			ExitCode: exitCode,
			Stderr:   strings.TrimSpace(stderrBuf.String()),
			Err:      err,
		}
	}

	return stdoutBuf.String(), nil
}

func formatAddr(addr uint64) string {
	return fmt.Sprintf("0x%08x", addr)
}
