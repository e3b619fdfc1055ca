package x86

import (
	"fmt"
	"os"
	"strings"

	pc "github.com/prataprc/goparsec"
)

// ----------------------------------------------------------------------------
// Parser Combinator(s)

// This section defines the Parser Combinator(s) used to inspect the runtime
// preamble before emission prepends it to the generated code.
//
// The preamble is plain assembly text: we only care about which routines it
// declares, so the PCs split the input into label declarations ('print:',
// 'binop_jl:', ...) and opaque code lines. Missing runtime routines are much
// easier to diagnose here than as an assembler error on the concatenated
// output file. The library reads up the feature flags (as env vars):
// - PARSEC_DEBUG: Verbose logging to inspect which of the PCs gets triggered and match

// Top level object, will generate the traversable AST based on the input plus the PCs below.
var ast = pc.NewAST("preamble", 0)

var (
	// Parser combinator for the whole preamble (a sequence of labels and code lines)
	pPreamble = ast.ManyUntil("preamble", nil, ast.OrdChoice("line", nil, pLabel, pCode), pc.End())

	// A label declaration: an identifier immediately followed by ':'
	pLabel = pc.Token(`[A-Za-z_.$][0-9a-zA-Z_.$]*:`, "LABEL")
	// Anything else on a line is opaque instruction text we carry verbatim
	pCode = pc.Token(`(?m)[^\n]+`, "CODE")
)

// ----------------------------------------------------------------------------
// Preamble

// The runtime base file prepended verbatim to every emitted program, plus the
// set of routine labels it declares.
type Preamble struct {
	Text   string
	labels map[string]bool
}

// Reads the runtime base file at 'path' and validates it provides every
// routine the emitted code relies on.
func LoadPreamble(path string) (Preamble, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Preamble{}, fmt.Errorf("cannot read runtime preamble: %s", err)
	}
	return ParsePreamble(string(data))
}

// Scans the preamble text with the PCs above, collects the declared labels
// and checks the required runtime routines ('print', 'binop_j*') are all
// present.
func ParsePreamble(text string) (Preamble, error) {

	// Feature flag: Enable 'goparsec' library's debug logs
	if os.Getenv("PARSEC_DEBUG") != "" {
		ast.SetDebug()
	}

	root, _ := ast.Parsewith(pPreamble, pc.NewScanner([]byte(text)))
	if root == nil {
		return Preamble{}, fmt.Errorf("failed to parse runtime preamble")
	}

	preamble := Preamble{Text: text, labels: map[string]bool{}}
	for _, child := range root.GetChildren() {
		if child.GetName() != "LABEL" {
			continue
		}
		preamble.labels[strings.TrimSuffix(child.GetValue(), ":")] = true
	}

	for _, routine := range RequiredRoutines {
		if !preamble.labels[routine] {
			return Preamble{}, fmt.Errorf("runtime preamble is missing the '%s' routine", routine)
		}
	}
	return preamble, nil
}

// Reports whether the preamble declares the given label.
func (p Preamble) HasLabel(name string) bool {
	return p.labels[name]
}
