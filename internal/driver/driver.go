package driver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/toyc/toyc/internal/ast"
	"github.com/toyc/toyc/internal/codegen"
	"github.com/toyc/toyc/internal/config"
	"github.com/toyc/toyc/internal/ir"
	"github.com/toyc/toyc/internal/irgen"
	"github.com/toyc/toyc/internal/lexer"
	"github.com/toyc/toyc/internal/parser"
	"github.com/toyc/toyc/internal/toolchain"
)

// Stdout as an output path.
const StdoutPath = "-"

var ErrOutput = errors.New("bad output path")

// NewLogger returns a development logger when verbose is set and a no-op logger otherwise.
func NewLogger(verbose bool) (*zap.Logger, error) {
	if !verbose {
		return zap.NewNop(), nil
	}
	return zap.NewDevelopment()
}

// OutputPath derives where the result of compiling input goes.
func OutputPath(cfg *config.Config, input string) string {
	if cfg.Output != "" {
		return cfg.Output
	}
	base := strings.TrimSuffix(input, filepath.Ext(input))
	switch cfg.Target {
	case config.TargetASM:
		return base + ".asm"
	case config.TargetExe:
		return base
	default:
		return StdoutPath
	}
}

// Compile runs the pipeline over input up to cfg.Target. Textual results
// destined for StdoutPath, and the IR dump, go to stdout. The returned
// string is the written path, or StdoutPath.
func Compile(ctx context.Context, cfg *config.Config, input string, stdout io.Writer, logger *zap.Logger) (string, error) {
	if err := cfg.Validate(); err != nil {
		return "", err
	}
	output := OutputPath(cfg, input)
	if output == StdoutPath && cfg.Target == config.TargetExe {
		return "", fmt.Errorf("%w: an executable cannot be written to stdout", ErrOutput)
	}
	logger = logger.With(zap.String("input", input), zap.String("target", cfg.Target))

	astCtx, err := parseFile(input)
	if err != nil {
		return "", err
	}
	logger.Debug("parsed", zap.Int("functions", len(astCtx.Locals)), zap.Int("names", astCtx.Names.Len()))
	if cfg.Target == config.TargetAST {
		return output, writeText(output, stdout, astCtx.Root.String()+"\n")
	}

	g, err := irgen.New(astCtx, cfg.Entry)
	if err != nil {
		return "", err
	}
	prog, err := g.Generate()
	if err != nil {
		return "", err
	}
	defer prog.Destroy()
	logger.Debug("generated IR", zap.Int("blocks", prog.Blocks.Len()), zap.Int("instructions", prog.Count()))

	if cfg.Target == config.TargetIR {
		return output, writeIR(output, stdout, prog)
	}
	if cfg.DumpIR {
		prog.Print(stdout)
	}

	if cfg.Target == config.TargetASM {
		if output == StdoutPath {
			return output, codegen.Emit(stdout, prog, g, cfg.Entry)
		}
		if err := codegen.WriteFile(output, prog, g, cfg.Entry); err != nil {
			return "", err
		}
		logger.Debug("wrote assembly", zap.String("output", output))
		return output, nil
	}

	return output, build(ctx, cfg, prog, g, output, logger)
}

func build(ctx context.Context, cfg *config.Config, prog *ir.IR, g *irgen.Context, output string, logger *zap.Logger) (err error) {
	tc := toolchain.New(cfg.Assemble.Assembler, cfg.Assemble.Linker)
	if err := tc.Check(); err != nil {
		return err
	}
	dir, err := os.MkdirTemp("", "toyc-")
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, os.RemoveAll(dir))
	}()
	tc.Dir = dir

	asmPath := filepath.Join(dir, filepath.Base(output)+".asm")
	if err := codegen.WriteFile(asmPath, prog, g, cfg.Entry); err != nil {
		return err
	}
	if err := tc.Build(ctx, asmPath, output); err != nil {
		return err
	}
	logger.Debug("linked executable", zap.String("output", output))
	return nil
}

func parseFile(path string) (*ast.Context, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening input file: %w", err)
	}
	defer f.Close()
	return parser.Parse(lexer.New(f, path))
}

func writeText(output string, stdout io.Writer, text string) error {
	if output == StdoutPath {
		_, err := io.WriteString(stdout, text)
		return err
	}
	return os.WriteFile(output, []byte(text), 0644)
}

func writeIR(output string, stdout io.Writer, prog *ir.IR) error {
	if output == StdoutPath {
		prog.Print(stdout)
		return nil
	}
	var sb strings.Builder
	prog.Print(&sb)
	return os.WriteFile(output, []byte(sb.String()), 0644)
}
