package main

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/toyc/toyc/internal/config"
	"github.com/toyc/toyc/internal/driver"
	"github.com/toyc/toyc/internal/toolchain"
)

// TestCase represents a single test case
type TestCase struct {
	Name         string
	SourceFile   string
	InputFile    string // optional stdin contents
	ExpectedFile string
}

// discoverTests finds all test cases in the tests directory
func discoverTests(testsDir string) ([]TestCase, error) {
	var tests []TestCase

	err := filepath.WalkDir(testsDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if !d.IsDir() && strings.HasSuffix(path, ".toy") {
			baseName := strings.TrimSuffix(filepath.Base(path), ".toy")
			expectedFile := filepath.Join(testsDir, baseName+".out")

			// Check if expected output file exists
			if _, err := os.Stat(expectedFile); err == nil {
				testCase := TestCase{
					Name:         baseName,
					SourceFile:   path,
					ExpectedFile: expectedFile,
				}
				inputFile := filepath.Join(testsDir, baseName+".in")
				if _, err := os.Stat(inputFile); err == nil {
					testCase.InputFile = inputFile
				}
				tests = append(tests, testCase)
			}
		}

		return nil
	})

	return tests, err
}

// compileTest compiles a toy file to an executable next to it
func compileTest(cfg *config.Config, logger *zap.Logger, testCase TestCase, testsDir string) (string, []string, error) {
	binFile := filepath.Join(testsDir, testCase.Name)
	generatedFiles := []string{binFile}

	testCfg := *cfg
	testCfg.Target = config.TargetExe
	testCfg.Output = binFile
	if _, err := driver.Compile(context.Background(), &testCfg, testCase.SourceFile, io.Discard, logger); err != nil {
		return "", generatedFiles, err
	}
	return binFile, generatedFiles, nil
}

// runTest executes a test binary and returns its output
func runTest(binaryPath string, inputFile string) (string, error) {
	var stdin io.Reader = strings.NewReader("")
	if inputFile != "" {
		f, err := os.Open(inputFile)
		if err != nil {
			return "", err
		}
		defer f.Close()
		stdin = f
	}
	return toolchain.Run(context.Background(), binaryPath, stdin)
}

// cleanupFiles removes the specified files, ignoring any errors
func cleanupFiles(files []string) {
	for _, file := range files {
		os.Remove(file) // Ignore errors - files might not exist
	}
}

// runSingleTest runs a single test case and returns pass/fail status
func runSingleTest(cfg *config.Config, logger *zap.Logger, testCase TestCase, testsDir string) (bool, string) {
	fmt.Printf("Running test %s... ", testCase.Name)

	binaryPath, generatedFiles, err := compileTest(cfg, logger, testCase, testsDir)
	if err != nil {
		return false, fmt.Sprintf("compilation error: %v", err)
	}

	actualOutput, err := runTest(binaryPath, testCase.InputFile)
	if err != nil {
		return false, fmt.Sprintf("runtime error: %v", err)
	}

	expected, err := os.ReadFile(testCase.ExpectedFile)
	if err != nil {
		return false, fmt.Sprintf("error reading expected output: %v", err)
	}
	expectedOutput := string(expected)

	if actualOutput == expectedOutput {
		// Test passed - clean up generated files
		cleanupFiles(generatedFiles)
		return true, ""
	}

	// Test failed - leave files for inspection
	return false, fmt.Sprintf("output mismatch:\nExpected: %q\nActual:   %q", expectedOutput, actualOutput)
}

// findTestCase finds a test case by number or path
func findTestCase(tests []TestCase, identifier string) (*TestCase, error) {
	if strings.Contains(identifier, "/") || strings.HasSuffix(identifier, ".toy") {
		identifier = strings.TrimSuffix(identifier, ".toy")
		identifier = strings.TrimPrefix(identifier, "tests/")

		for _, test := range tests {
			if test.Name == identifier {
				return &test, nil
			}
		}
		return nil, fmt.Errorf("test not found: %s", identifier)
	}

	// If identifier is just a number, find test that starts with that number
	for _, test := range tests {
		if strings.HasPrefix(test.Name, identifier+"_") || test.Name == identifier {
			return &test, nil
		}
	}

	return nil, fmt.Errorf("test not found: %s", identifier)
}

func main() {
	if !toolchain.HostSupported() {
		fmt.Fprintf(os.Stderr, "Error: %v\n", toolchain.ErrUnsupportedHost)
		os.Exit(1)
	}

	cfg, err := config.Load(config.DefaultFileName, false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	cfg.ApplyEnv()
	if err := toolchain.New(cfg.Assemble.Assembler, cfg.Assemble.Linker).Check(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	logger := zap.NewNop()

	// Discover tests
	testsDir := "tests"
	tests, err := discoverTests(testsDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error discovering tests: %v\n", err)
		os.Exit(1)
	}

	if len(tests) == 0 {
		fmt.Println("No tests found in tests/ directory")
		return
	}

	// Sort tests by name for consistent ordering
	sort.Slice(tests, func(i, j int) bool {
		return tests[i].Name < tests[j].Name
	})

	var testsToRun []TestCase
	if len(os.Args) > 1 {
		testCase, err := findTestCase(tests, os.Args[1])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		testsToRun = []TestCase{*testCase}
		fmt.Printf("Running specific test: %s\n", testCase.Name)
	} else {
		testsToRun = tests
		if len(tests) == 1 {
			fmt.Printf("Found 1 test\n")
		} else {
			fmt.Printf("Found %d tests\n", len(tests))
		}
	}

	passed := 0
	failed := 0

	for _, test := range testsToRun {
		success, errorMsg := runSingleTest(cfg, logger, test, testsDir)
		if success {
			fmt.Println("PASS")
			passed++
		} else {
			fmt.Printf("FAIL - %s\n", errorMsg)
			failed++
		}
	}

	if failed == 0 {
		fmt.Printf("Test Results: %d passed. All good!\n", passed)
	} else {
		fmt.Printf("Test Results: %d passed, %d failed\n", passed, failed)
	}

	if failed > 0 {
		os.Exit(1)
	}
}
