package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/teris-io/cli"
	"its-hmny.dev/logik/pkg/logik"
	"its-hmny.dev/logik/pkg/token"
	"its-hmny.dev/logik/pkg/x86"
)

var Description = strings.ReplaceAll(`
Logik is a toy compiler and interpreter front-end for a small C-like imperative
language. The program is scanned and parsed into a syntax tree, then either
executed directly by the tree-walking evaluator or translated to 32-bit x86
assembly to be assembled against the bundled runtime preamble.
`, "\n", " ")

var Logik = cli.New(Description).
	WithArg(cli.NewArg("input", "The Logik source file to be processed").AsOptional()).
	WithOption(cli.NewOption("command", "Program text to run, instead of an input file").WithChar('c')).
	WithOption(cli.NewOption("expression", "A single expression to evaluate and print").WithChar('e')).
	WithOption(cli.NewOption("compile", "Emit x86 assembly to 'out.asm' instead of interpreting").WithChar('S').WithType(cli.TypeBool)).
	WithOption(cli.NewOption("base", "Path of the runtime preamble prepended to the emitted assembly").WithChar('b')).
	WithAction(Handler)

func Handler(args []string, options map[string]string) int {
	// Expression mode: evaluate a single bare expression and print the result
	if expression, found := options["expression"]; found {
		result, err := logik.EvalExpression(expression)
		if err != nil {
			return fail(err)
		}
		fmt.Println(result)
		return 0
	}

	source, err := readSource(args, options)
	if err != nil {
		return fail(err)
	}

	// Scans the input program and extracts the positioned token stream
	tokens, err := token.Tokenize(source)
	if err != nil {
		return fail(err)
	}

	// Instantiate a parser for the Logik program
	parser := logik.NewParser(tokens)
	// Parses the token stream into the syntax tree plus the function table
	root, funcs, err := parser.Parse()
	if err != nil {
		return fail(err)
	}

	if options["compile"] == "true" {
		base := options["base"]
		if base == "" {
			base = "base.asm"
		}
		// Loads and validates the runtime preamble for the emitted program
		preamble, err := x86.LoadPreamble(base)
		if err != nil {
			return fail(err)
		}

		// Now, instantiates a code generator for the x86 target
		codegen := x86.NewCodeGenerator(funcs, preamble)
		// Walks the tree and spits out the preamble plus the emitted instructions
		compiled, err := codegen.Generate(root)
		if err != nil {
			return fail(err)
		}

		if err := os.WriteFile("out.asm", []byte(compiled), 0644); err != nil {
			return fail(err)
		}
		return 0
	}

	// Instantiate a tree-walking evaluator over the parsed program
	evaluator := logik.NewEvaluator(funcs)
	// Executes 'main', side effects ('println', ...) go to the standard streams
	if _, err := evaluator.Run(root); err != nil {
		return fail(err)
	}
	return 0
}

// Resolves the program text: either the 'command' option or the content of
// the input file argument, exactly one of the two has to be provided.
func readSource(args []string, options map[string]string) (string, error) {
	command, found := options["command"]

	if found && len(args) > 0 {
		return "", fmt.Errorf("Too many arguments expected only one")
	}
	if found {
		return command, nil
	}
	if len(args) == 0 {
		return "", fmt.Errorf("Missing input")
	}

	content, err := os.ReadFile(args[0])
	if err != nil {
		return "", fmt.Errorf("Unable to open input file: %s", err)
	}
	return string(content), nil
}

func fail(err error) int {
	fmt.Fprintf(os.Stderr, "Error: %s\n", err)
	return 1
}

func main() { os.Exit(Logik.Run(os.Args, os.Stdout)) }
