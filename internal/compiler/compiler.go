// Package compiler invokes the native toolchain that turns a library target
// into a framework bundle, and extracts prebuilt bundles for binary targets.
package compiler

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/apex/log"

	"github.com/framewell/fwb/internal/target"
)

// Commander interface for testing
type Commander interface {
	Run() error
}

// Toolchain compiles library targets by shelling out to an external
// framework compiler.
type Toolchain struct {
	path        string
	execCommand func(ctx context.Context, name string, args ...string) Commander
}

// NewToolchain creates a toolchain compiler using the binary at path.
func NewToolchain(path string) *Toolchain {
	return &Toolchain{
		path: path,
		execCommand: func(ctx context.Context, name string, args ...string) Commander {
			return exec.CommandContext(ctx, name, args...)
		},
	}
}

// Compile produces the target's bundle at <outputDir>/<name>.framework.
func (tc *Toolchain) Compile(ctx context.Context, t target.Target, opts target.BuildOptions, outputDir string, overwrite bool) error {
	bundlePath := filepath.Join(outputDir, t.Name+".framework")

	if _, err := os.Stat(bundlePath); err == nil {
		if !overwrite {
			return fmt.Errorf("bundle already exists: %s", bundlePath)
		}

		if err := os.RemoveAll(bundlePath); err != nil {
			return fmt.Errorf("failed to remove existing bundle: %w", err)
		}
	}

	cmdArgs := BuildCommandArgs(t, opts, outputDir)
	log.Debugf("compiler: %s %v", tc.path, cmdArgs)

	c := tc.execCommand(ctx, tc.path, cmdArgs...)
	if cmd, ok := c.(*exec.Cmd); ok {
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
	}

	if err := c.Run(); err != nil {
		return fmt.Errorf("compiler failed for %s: %w", t.Name, err)
	}

	if _, err := os.Stat(bundlePath); err != nil {
		return fmt.Errorf("compiler produced no bundle for %s at %s", t.Name, bundlePath)
	}

	return nil
}

// BuildCommandArgs builds the toolchain invocation for a library target.
func BuildCommandArgs(t target.Target, opts target.BuildOptions, outputDir string) []string {
	cmdArgs := []string{"create", "--name", t.Name}

	for _, platform := range opts.Platforms {
		cmdArgs = append(cmdArgs, "--platform", platform)
	}

	if opts.Configuration != "" {
		cmdArgs = append(cmdArgs, "--configuration", opts.Configuration)
	}

	if opts.EmbedDebugSymbols {
		cmdArgs = append(cmdArgs, "--debug-symbols")
	}

	if opts.LibraryEvolution {
		cmdArgs = append(cmdArgs, "--library-evolution")
	}

	cmdArgs = append(cmdArgs, opts.ExtraFlags...)
	cmdArgs = append(cmdArgs, "--output", outputDir, t.SourcePath)

	return cmdArgs
}
