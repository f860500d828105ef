package toolchain

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const hello = `section .text
global _start

_start:
    mov rax, 1
    mov rdi, 1
    lea rsi, [rel msg]
    mov rdx, 3
    syscall
    mov rax, 60
    mov rdi, 0
    syscall

section .rodata
msg: db "hi", 10
`

func requireTools(t *testing.T) *Toolchain {
	t.Helper()
	tc := New("nasm", "ld")
	tc.Dir = t.TempDir()
	if err := tc.Check(); err != nil {
		t.Skipf("toolchain unavailable: %v", err)
	}
	if !HostSupported() {
		t.Skip("host is not x86-64 Linux")
	}
	return tc
}

func TestCheckMissingTool(t *testing.T) {
	tc := New("toyc-no-such-assembler", "toyc-no-such-linker")
	err := tc.Check()
	if !errors.Is(err, ErrMissingTool) {
		t.Fatalf("got %v, want ErrMissingTool", err)
	}
	for _, name := range []string{"toyc-no-such-assembler", "toyc-no-such-linker"} {
		if !strings.Contains(err.Error(), name) {
			t.Errorf("error does not name %s: %v", name, err)
		}
	}
}

func TestBuildAndRun(t *testing.T) {
	tc := requireTools(t)
	dir := t.TempDir()
	asmPath := filepath.Join(dir, "hello.asm")
	if err := os.WriteFile(asmPath, []byte(hello), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	exePath := filepath.Join(dir, "hello")

	ctx := context.Background()
	if err := tc.Build(ctx, asmPath, exePath); err != nil {
		t.Fatalf("Build: %v", err)
	}
	output, err := Run(ctx, exePath, strings.NewReader(""))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if output != "hi\n" {
		t.Errorf("got %q, want %q", output, "hi\n")
	}

	// No object files are left behind.
	objects, _ := filepath.Glob(filepath.Join(tc.Dir, "*.o"))
	if len(objects) != 0 {
		t.Errorf("leftover objects: %v", objects)
	}
}

func TestAssembleError(t *testing.T) {
	tc := requireTools(t)
	dir := t.TempDir()
	asmPath := filepath.Join(dir, "bad.asm")
	if err := os.WriteFile(asmPath, []byte("    movv rax, 1\n"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	err := tc.Build(context.Background(), asmPath, filepath.Join(dir, "bad"))
	if !errors.Is(err, ErrAssemble) {
		t.Errorf("got %v, want ErrAssemble", err)
	}
}
