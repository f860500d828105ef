package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/pelletier/go-toml/v2"
	"github.com/xyproto/env/v2"
)

const DefaultFileName = "toyc.toml"

// Output kinds, in pipeline order.
const (
	TargetAST = "ast"
	TargetIR  = "ir"
	TargetASM = "asm"
	TargetExe = "exe"
)

var ErrInvalid = errors.New("invalid configuration")

type Config struct {
	// Function the program starts in.
	Entry string `toml:"entry"`
	// Output path. Empty means derived from the input name.
	Output string `toml:"output"`
	// One of ast, ir, asm, exe.
	Target string `toml:"target"`
	// Print the IR to stdout before emitting assembly.
	DumpIR   bool     `toml:"dump_ir"`
	Assemble Assemble `toml:"assemble"`
}

type Assemble struct {
	Assembler string `toml:"assembler"`
	Linker    string `toml:"linker"`
}

func Default() *Config {
	return &Config{
		Entry:  "main",
		Target: TargetASM,
		Assemble: Assemble{
			Assembler: "nasm",
			Linker:    "ld",
		},
	}
}

// Load reads path over the defaults. With required unset a missing file is not an error.
func Load(path string, required bool) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if !required && errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overrides settings from TOYC_* environment variables.
func (c *Config) ApplyEnv() {
	c.Entry = env.Str("TOYC_ENTRY", c.Entry)
	c.Output = env.Str("TOYC_OUTPUT", c.Output)
	if env.Has("TOYC_DUMP_IR") {
		c.DumpIR = env.Bool("TOYC_DUMP_IR")
	}
	c.Assemble.Assembler = env.Str("TOYC_NASM", c.Assemble.Assembler)
	c.Assemble.Linker = env.Str("TOYC_LD", c.Assemble.Linker)
}

func (c *Config) Validate() error {
	if c.Entry == "" {
		return fmt.Errorf("%w: empty entry function", ErrInvalid)
	}
	switch c.Target {
	case TargetAST, TargetIR, TargetASM:
	case TargetExe:
		if c.Assemble.Assembler == "" || c.Assemble.Linker == "" {
			return fmt.Errorf("%w: target exe needs an assembler and a linker", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown target %q", ErrInvalid, c.Target)
	}
	return nil
}
