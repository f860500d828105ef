package main

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestDiscoverTests(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"001_a.toy", "001_a.out", "001_a.in", "002_b.toy", "002_b.out", "003_c.toy"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
	}
	tests, err := discoverTests(dir)
	if err != nil {
		t.Fatalf("discoverTests: %v", err)
	}
	expected := []TestCase{
		{"001_a", filepath.Join(dir, "001_a.toy"), filepath.Join(dir, "001_a.in"), filepath.Join(dir, "001_a.out")},
		{"002_b", filepath.Join(dir, "002_b.toy"), "", filepath.Join(dir, "002_b.out")},
	}
	if !reflect.DeepEqual(tests, expected) {
		t.Errorf("got %+v, want %+v", tests, expected)
	}
}

func TestFindTestCase(t *testing.T) {
	tests := []TestCase{{Name: "001_factorial"}, {Name: "002_loops"}}
	for _, id := range []string{"002", "002_loops", "tests/002_loops.toy", "002_loops.toy"} {
		tc, err := findTestCase(tests, id)
		if err != nil {
			t.Errorf("%s: %v", id, err)
			continue
		}
		if tc.Name != "002_loops" {
			t.Errorf("%s: got %s", id, tc.Name)
		}
	}
	if _, err := findTestCase(tests, "003"); err == nil {
		t.Errorf("expected an error for a missing test")
	}
}
