package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/toyc/toyc/internal/config"
	"github.com/toyc/toyc/internal/driver"
)

func main() {
	configPath := flag.String("config", config.DefaultFileName, "configuration file")
	outputString := flag.String("o", "", "output file name, - for stdout")
	targetString := flag.String("t", "", "output kind: ast, ir, asm or exe")
	entryString := flag.String("entry", "", "entry function name")
	dumpIR := flag.Bool("dump-ir", false, "print the IR before emitting assembly")
	verbose := flag.Bool("v", false, "log compilation phases")
	flag.Parse()

	if len(flag.Args()) != 1 {
		fmt.Fprintln(os.Stderr, "Usage: toyc [options] <input file>")
		flag.PrintDefaults()
		os.Exit(1)
	}

	// An explicitly named config file must exist; the default one is optional.
	required := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "config" {
			required = true
		}
	})
	cfg, err := config.Load(*configPath, required)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	cfg.ApplyEnv()
	if *outputString != "" {
		cfg.Output = *outputString
	}
	if *targetString != "" {
		cfg.Target = *targetString
	}
	if *entryString != "" {
		cfg.Entry = *entryString
	}
	if *dumpIR {
		cfg.DumpIR = true
	}

	logger, err := driver.NewLogger(*verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if _, err := driver.Compile(context.Background(), cfg, flag.Arg(0), os.Stdout, logger); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		logger.Sync()
		os.Exit(1)
	}
}
