package codegen

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"go.uber.org/multierr"

	"github.com/toyc/toyc/internal/codegen/x86_64"
	"github.com/toyc/toyc/internal/ir"
)

var (
	ErrIO             = errors.New("assembly output failed")
	ErrUnresolvedCall = x86_64.ErrUnresolvedCall
)

type FunctionNamer = x86_64.FunctionNamer

// Emit writes the program as NASM source. entry names the function _start calls.
func Emit(out io.Writer, prog *ir.IR, names FunctionNamer, entry string) error {
	asmProgram, err := x86_64.Generate(prog, names, entry)
	if err != nil {
		return err
	}
	if err := x86_64.Format(out, asmProgram); err != nil {
		return fmt.Errorf("%w: %w", ErrIO, err)
	}
	return nil
}

// WriteFile emits the program into path. Translation happens before the file is
// created; on a write failure the partial file is removed.
func WriteFile(path string, prog *ir.IR, names FunctionNamer, entry string) (err error) {
	asmProgram, err := x86_64.Generate(prog, names, entry)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrIO, err)
	}
	defer func() {
		if err != nil {
			err = multierr.Append(err, os.Remove(path))
		}
	}()

	w := bufio.NewWriter(f)
	writeErr := x86_64.Format(w, asmProgram)
	if writeErr == nil {
		writeErr = w.Flush()
	}
	if err := multierr.Append(writeErr, f.Close()); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrIO, path, err)
	}
	return nil
}
