// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"context"
	"io"
	"os"
)

type outputKey struct{}

type output struct {
	stdout io.Writer
	stderr io.Writer
}

// WithOutput returns a context whose commands write results to stdout
// and help and diagnostics to stderr.
func WithOutput(ctx context.Context, stdout, stderr io.Writer) context.Context {
	return context.WithValue(ctx, outputKey{}, output{stdout: stdout, stderr: stderr})
}

// Stdout returns the result writer of ctx, os.Stdout by default.
func Stdout(ctx context.Context) io.Writer {
	if out, ok := ctx.Value(outputKey{}).(output); ok && out.stdout != nil {
		return out.stdout
	}
	return os.Stdout
}

// Stderr returns the diagnostic writer of ctx, os.Stderr by default.
func Stderr(ctx context.Context) io.Writer {
	if out, ok := ctx.Value(outputKey{}).(output); ok && out.stderr != nil {
		return out.stderr
	}
	return os.Stderr
}
