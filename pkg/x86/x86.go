package x86

import "its-hmny.dev/logik/pkg/logik"

// ----------------------------------------------------------------------------
// General information

// This section contains some general information about the x86 target.
//
// The code generator walks the same syntax tree the evaluator walks and spits
// out 32-bit x86 assembly text. The output file is the runtime preamble (a
// verbatim copy of a base file providing 'print', the 'binop_j*' helpers and
// the program entry that sets up 'ebp') followed by the emitted instructions
// and a fixed exit sequence. Calling conventions inside the emitted code:
// - Every expression leaves its value in 'ebx', 'eax' is scratch
// - Locals occupy 4-byte slots at '[ebp - k]', assigned in declaration order
// - Binary operators evaluate left, 'push ebx', evaluate right, 'pop eax'
// - Comparisons 'cmp eax, ebx' then call the matching 'binop_j*' helper,
//   which leaves a canonical truth word in 'ebx'

// The fixed exit sequence appended after the emitted 'main' body.
const Epilogue = "pop ebp\nmov eax, 1\nmov ebx, 0\nint 0x80"

// The routines every runtime preamble has to provide before emission can
// concatenate it with generated code.
var RequiredRoutines = []string{
	"print",
	"binop_jl", "binop_jle", "binop_jg", "binop_jge", "binop_je", "binop_jne",
}

// A local variable slot inside the emitted frame: the declared kind plus the
// positive 'ebp' offset of its 4-byte cell.
type Slot struct {
	Kind   logik.Kind
	Offset int
}

// The compile-time mapping from variable names to their stack slot belonging
// to one emitted frame.
type Frame map[string]Slot
