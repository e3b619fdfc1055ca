package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCompileMode(t *testing.T) {
	source, err := filepath.Abs("testdata/sum.lk")
	if err != nil {
		t.Fatalf("Unable to resolve testdata path: %s", err)
	}
	base, err := filepath.Abs("testdata/base.asm")
	if err != nil {
		t.Fatalf("Unable to resolve testdata path: %s", err)
	}

	// 'out.asm' lands in the working directory, run inside a scratch one
	cwd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Unable to get working directory: %s", err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatalf("Unable to enter scratch directory: %s", err)
	}
	defer os.Chdir(cwd)

	status := Handler([]string{source}, map[string]string{"compile": "true", "base": base})
	if status != 0 {
		t.Fatalf("Unexpected exit status code: expected 0 got: %d", status)
	}

	compiled, err := os.ReadFile("out.asm")
	if err != nil {
		t.Fatalf("Error reading output file out.asm: %v", err)
	}
	preamble, err := os.ReadFile(base)
	if err != nil {
		t.Fatalf("Error reading preamble file %s: %v", base, err)
	}

	if !strings.HasPrefix(string(compiled), string(preamble)) {
		t.Fatal("Output does not start with the runtime preamble")
	}
	if !strings.HasSuffix(strings.TrimRight(string(compiled), "\n"), "int 0x80") {
		t.Fatal("Output does not end with the exit sequence")
	}
	if !strings.Contains(string(compiled), "while_1:") {
		t.Fatal("Output does not contain the emitted loop label")
	}
}

func TestInterpretMode(t *testing.T) {
	status := Handler(nil, map[string]string{"command": "int main() { int x = 1 + 2; }"})
	if status != 0 {
		t.Fatalf("Unexpected exit status code: expected 0 got: %d", status)
	}

	// The first diagnostic is fatal and flips the exit status
	status = Handler(nil, map[string]string{"command": "int main() { unknown(); }"})
	if status != 1 {
		t.Fatalf("Unexpected exit status code: expected 1 got: %d", status)
	}
}

func TestExpressionMode(t *testing.T) {
	status := Handler(nil, map[string]string{"expression": "81/9 + 3"})
	if status != 0 {
		t.Fatalf("Unexpected exit status code: expected 0 got: %d", status)
	}

	status = Handler(nil, map[string]string{"expression": "3+ /* a */"})
	if status != 1 {
		t.Fatalf("Unexpected exit status code: expected 1 got: %d", status)
	}
}

func TestMissingInput(t *testing.T) {
	if status := Handler(nil, map[string]string{}); status != 1 {
		t.Fatalf("Unexpected exit status code: expected 1 got: %d", status)
	}

	status := Handler([]string{"testdata/sum.lk"}, map[string]string{"command": "int main() {}"})
	if status != 1 {
		t.Fatalf("Unexpected exit status code: expected 1 got: %d", status)
	}
}
