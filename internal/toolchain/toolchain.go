package toolchain

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"go.uber.org/multierr"
)

var (
	ErrMissingTool     = errors.New("tool not found")
	ErrAssemble        = errors.New("assembly failed")
	ErrLink            = errors.New("linking failed")
	ErrUnsupportedHost = errors.New("host cannot run x86-64 Linux executables")
)

// Toolchain drives the external assembler and linker. The emitted program
// carries its own _start, so linking needs no C runtime.
type Toolchain struct {
	Assembler string
	Linker    string
	// Directory for intermediate object files. Empty means the system temp dir.
	Dir string
}

func New(assembler, linker string) *Toolchain {
	return &Toolchain{Assembler: assembler, Linker: linker}
}

// Check reports whether both tools can be found in PATH.
func (t *Toolchain) Check() error {
	var err error
	for _, tool := range []string{t.Assembler, t.Linker} {
		if _, lookErr := exec.LookPath(tool); lookErr != nil {
			err = multierr.Append(err, fmt.Errorf("%w: %s", ErrMissingTool, tool))
		}
	}
	return err
}

func (t *Toolchain) Assemble(ctx context.Context, asmPath, objPath string) error {
	cmd := exec.CommandContext(ctx, t.Assembler, "-f", "elf64", "-o", objPath, asmPath)
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%w: %w\nOutput: %s", ErrAssemble, err, string(output))
	}
	return nil
}

func (t *Toolchain) Link(ctx context.Context, objPath, exePath string) error {
	cmd := exec.CommandContext(ctx, t.Linker, "-o", exePath, objPath)
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%w: %w\nOutput: %s", ErrLink, err, string(output))
	}
	return nil
}

// Build assembles asmPath into a temporary object and links it into exePath.
// The object file is always removed.
func (t *Toolchain) Build(ctx context.Context, asmPath, exePath string) (err error) {
	obj, err := os.CreateTemp(t.Dir, strings.TrimSuffix(filepath.Base(asmPath), filepath.Ext(asmPath))+"-*.o")
	if err != nil {
		return err
	}
	objPath := obj.Name()
	defer func() {
		err = multierr.Append(err, os.Remove(objPath))
	}()
	if err := obj.Close(); err != nil {
		return err
	}

	if err := t.Assemble(ctx, asmPath, objPath); err != nil {
		return err
	}
	return t.Link(ctx, objPath, exePath)
}

// Run executes the binary with stdin and returns what it wrote to stdout.
// Output gathered before a non-zero exit is returned together with the error.
func Run(ctx context.Context, exePath string, stdin io.Reader) (string, error) {
	if !HostSupported() {
		return "", ErrUnsupportedHost
	}
	var stdout bytes.Buffer
	cmd := exec.CommandContext(ctx, exePath)
	cmd.Stdin = stdin
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		var exitError *exec.ExitError
		if errors.As(err, &exitError) {
			return stdout.String(), fmt.Errorf("exit status %d", exitError.ExitCode())
		}
		return "", err
	}
	return stdout.String(), nil
}
