package hip

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/beevik/etree"
	"github.com/rs/zerolog"
)

// Fetcher runs the vendor HIP tool and extracts the report it prints.
type Fetcher struct {
	Tool string
	// Dir is the working directory for the tool; PanGpHip loads its
	// support files relative to the install dir.
	Dir         string
	PrefixBytes int
	Document    int
	// Timeout bounds the tool run. Zero waits indefinitely.
	Timeout time.Duration
	Logger  zerolog.Logger
}

// Output is the raw result of one tool run.
type Output struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

// Run executes the tool with no arguments. A non-zero exit status is logged
// but not treated as a failure; the report parse decides.
func (f *Fetcher) Run(ctx context.Context) (*Output, error) {
	if f.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.Timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, f.Tool)
	cmd.Dir = f.Dir
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	f.Logger.Debug().Strs("cmdline", cmd.Args).Str("dir", f.Dir).Msg("Running HIP tool")

	err := cmd.Run()
	out := &Output{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}

	f.Logger.Debug().Str("stderr", stderr.String()).Msg("HIP stderr")
	f.Logger.Debug().Str("stdout", stdout.String()).Msg("HIP output")

	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) || ctx.Err() != nil {
			return nil, fmt.Errorf("run %s: %w", f.Tool, err)
		}
		out.ExitCode = exitErr.ExitCode()
		f.Logger.Warn().Int("exit_code", out.ExitCode).Msg("HIP tool exited with non-zero status")
	}
	return out, nil
}

// Fetch runs the tool and returns the parsed report document.
func (f *Fetcher) Fetch(ctx context.Context) (*etree.Document, error) {
	out, err := f.Run(ctx)
	if err != nil {
		return nil, err
	}
	return ExtractReport(out.Stdout, f.PrefixBytes, f.Document)
}
