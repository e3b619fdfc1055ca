package x86_test

import (
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"its-hmny.dev/logik/pkg/logik"
	"its-hmny.dev/logik/pkg/token"
	"its-hmny.dev/logik/pkg/x86"
)

// A minimal runtime base providing every routine emission relies on.
const testPreamble = `print:
ret
binop_jl:
ret
binop_jle:
ret
binop_jg:
ret
binop_jge:
ret
binop_je:
ret
binop_jne:
ret
_start:
push ebp
mov ebp, esp`

// Scans, parses and emits a whole program against the test preamble.
func compile(t *testing.T, source string) (string, error) {
	t.Helper()

	tokens, err := token.Tokenize(source)
	require.NoError(t, err)

	parser := logik.NewParser(tokens)
	root, funcs, err := parser.Parse()
	require.NoError(t, err)

	preamble, err := x86.ParsePreamble(testPreamble)
	require.NoError(t, err)

	codegen := x86.NewCodeGenerator(funcs, preamble)
	return codegen.Generate(root)
}

func TestOutputFraming(t *testing.T) {
	out, err := compile(t, `int main() { println(1); }`)
	require.NoError(t, err)

	// Preamble first, then the emitted body, then the unconditional exit
	require.True(t, strings.HasPrefix(out, testPreamble))
	require.True(t, strings.HasSuffix(out, x86.Epilogue+"\n"))
	require.Contains(t, out, "push ebx\ncall print\npop ebx")
}

func TestLocalSlots(t *testing.T) {
	out, err := compile(t, `
		int main() {
			int a = 1;
			int b = 2;
			a = b;
		}
	`)
	require.NoError(t, err)

	// Slots are assigned in declaration order, 4 bytes apart from ebp-4 down
	require.Contains(t, out, "mov ebx, 1\npush ebx")
	require.Contains(t, out, "mov ebx, 2\npush ebx")
	require.Contains(t, out, "mov ebx, [ebp - 8]")
	require.Contains(t, out, "mov [ebp - 4], ebx")
}

func TestBinaryPattern(t *testing.T) {
	out, err := compile(t, `int main() { int x = 7 - 3; }`)
	require.NoError(t, err)
	require.Contains(t, out, "mov ebx, 7\npush ebx\nmov ebx, 3\npop eax\nsub eax, ebx\nmov ebx, eax")

	out, err = compile(t, `int main() { int x = 8 / 2; }`)
	require.NoError(t, err)
	require.Contains(t, out, "pop eax\ncdq\nidiv ebx\nmov ebx, eax")
}

func TestComparisonHelpers(t *testing.T) {
	out, err := compile(t, `int main() { bool b = 1 < 2; }`)
	require.NoError(t, err)
	require.Contains(t, out, "cmp eax, ebx\ncall binop_jl")

	// '&&' reduces to the bitwise instruction on the two truth words
	out, err = compile(t, `int main() { bool b = 1 < 2 && 3 > 2; }`)
	require.NoError(t, err)
	require.Contains(t, out, "call binop_jl")
	require.Contains(t, out, "call binop_jg")
	require.Contains(t, out, "and ebx, eax")
}

func TestControlFlowLabels(t *testing.T) {
	out, err := compile(t, `
		int main() {
			int i = 0;
			while (i < 3) {
				if (i == 1) { println(i); } else { println(0); }
				if (i == 2) { println(9); }
				i = i + 1;
			}
		}
	`)
	require.NoError(t, err)

	require.Contains(t, out, "while_1:")
	require.Contains(t, out, "je while_end_1")
	require.Contains(t, out, "jmp while_1")
	require.Contains(t, out, "je else_2")
	require.Contains(t, out, "jmp end_if_2")
	require.Contains(t, out, "je end_if_3")

	// Every emitted label is defined exactly once
	defs := regexp.MustCompile(`(?m)^(else|end_if|while|while_end)_\d+:$`).FindAllString(out, -1)
	seen := map[string]bool{}
	for _, def := range defs {
		require.False(t, seen[def], "label %s defined twice", def)
		seen[def] = true
	}
	require.Len(t, seen, 5)
}

func TestInlineCalls(t *testing.T) {
	// Non-builtin calls expand the callee body into the caller's frame
	out, err := compile(t, `
		int shout() { println(42); }
		int main() { shout(); }
	`)
	require.NoError(t, err)
	require.Contains(t, out, "mov ebx, 42\npush ebx\ncall print")

	_, err = compile(t, `int main() { missing(); }`)
	require.EqualError(t, err, "unknown function 'missing'")
}

func TestUnsupportedConstructs(t *testing.T) {
	_, err := compile(t, `int main() { println("hi"); }`)
	require.EqualError(t, err, "strings are not supported in assembly output")

	_, err = compile(t, `int main() { string s = "hi"; }`)
	require.EqualError(t, err, "strings are not supported in assembly output")

	_, err = compile(t, `int main() { int x = readln(); }`)
	require.EqualError(t, err, "function 'readln' is not supported in assembly output")
}

func TestUnaryEmission(t *testing.T) {
	out, err := compile(t, `int main() { int x = -(1 + 2); int y = !x; }`)
	require.NoError(t, err)
	require.Contains(t, out, "neg ebx")
	require.Contains(t, out, "not ebx")
}
