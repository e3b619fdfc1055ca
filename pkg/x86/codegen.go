package x86

import (
	"fmt"
	"strings"

	"its-hmny.dev/logik/pkg/logik"
	"its-hmny.dev/logik/pkg/token"
)

// ----------------------------------------------------------------------------
// Code Generator

// Takes the syntax tree rooted at 'main' and spits out its x86 counterpart.
//
// The translation shares the tree shape with the evaluator but none of its
// runtime machinery: variables become 'ebp'-relative slots, control flow
// becomes labels and jumps, and calls to non-builtin functions are expanded
// inline into the caller's frame (parameters are not materialised, a known
// limitation of the target). Strings have no representation in the emitted
// code and are rejected.
type CodeGenerator struct {
	funcs    *logik.FuncTable // Produced by the parser, read-only here
	preamble Preamble         // Validated runtime base prepended to the output

	lines []string
	id    int // Label allocator, every emitted label id is unique in the output
}

// Initializes and returns to the caller a brand new 'CodeGenerator' struct.
// Requires the function table 'funcs' (as produced by the parser) and an
// already validated runtime 'preamble'.
func NewCodeGenerator(funcs *logik.FuncTable, preamble Preamble) CodeGenerator {
	return CodeGenerator{funcs: funcs, preamble: preamble}
}

// Code generation entrypoint: emits the body of the given root node (a call
// to 'main' when produced by the parser) right after the preamble, appends
// the exit sequence and returns the whole output text.
func (cg *CodeGenerator) Generate(root logik.Node) (string, error) {
	frame, offset := Frame{}, 0
	if err := cg.GenerateNode(root, frame, &offset); err != nil {
		return "", err
	}
	cg.pushLine(Epilogue)

	var out strings.Builder
	out.WriteString(cg.preamble.Text)
	out.WriteString("\n")
	for _, line := range cg.lines {
		out.WriteString(line)
		out.WriteString("\n")
	}
	return out.String(), nil
}

// Emits a single node inside the given frame, dispatching by variant.
func (cg *CodeGenerator) GenerateNode(node logik.Node, frame Frame, offset *int) error {
	switch tNode := node.(type) {
	case logik.NumberLiteral:
		cg.pushLine(fmt.Sprintf("mov ebx, %d", tNode.Value))
		return nil

	case logik.BoolLiteral:
		word := 0
		if tNode.Value {
			word = 1
		}
		cg.pushLine(fmt.Sprintf("mov ebx, %d", word))
		return nil

	case logik.StringLiteral:
		return fmt.Errorf("strings are not supported in assembly output")

	case logik.SimpleValue:
		return cg.generateValue(tNode.Value)

	case logik.NumberExpect:
		return cg.GenerateNode(tNode.Child, frame, offset)
	case logik.BoolExpect:
		return cg.GenerateNode(tNode.Child, frame, offset)
	case logik.StringExpect:
		return fmt.Errorf("strings are not supported in assembly output")

	case logik.Unary:
		return cg.GenerateUnary(tNode, frame, offset)
	case logik.Binary:
		return cg.GenerateBinary(tNode, frame, offset)
	case logik.Cond:
		return cg.GenerateCond(tNode, frame, offset)
	case logik.VarRef:
		return cg.GenerateVarRef(tNode, frame)

	case logik.Declare:
		return cg.GenerateDeclare(tNode, frame, offset)
	case logik.AssignStmt:
		return cg.GenerateAssign(tNode, frame, offset)
	case logik.If:
		return cg.GenerateIf(tNode, frame, offset)
	case logik.While:
		return cg.GenerateWhile(tNode, frame, offset)
	case logik.Block:
		for _, child := range tNode.Children {
			if err := cg.GenerateNode(child, frame, offset); err != nil {
				return err
			}
		}
		return nil
	case logik.Return:
		// Inside an inlined body there is nowhere to jump back to, the value
		// is just left in 'ebx' for the surrounding code.
		if tNode.Value == nil {
			return nil
		}
		return cg.GenerateNode(tNode.Value, frame, offset)
	case logik.FuncCall:
		return cg.GenerateFuncCall(tNode, frame, offset)
	}

	return fmt.Errorf("unrecognized node %T", node)
}

// Loads an already computed value into 'ebx' (argument injection nodes).
func (cg *CodeGenerator) generateValue(value logik.Value) error {
	switch tValue := value.(type) {
	case logik.NumberValue:
		cg.pushLine(fmt.Sprintf("mov ebx, %d", tValue.Value))
		return nil
	case logik.BoolValue:
		word := 0
		if tValue.Value {
			word = 1
		}
		cg.pushLine(fmt.Sprintf("mov ebx, %d", word))
		return nil
	}
	return fmt.Errorf("cannot emit '%s' value", logik.KindOf(value))
}

// Specialized function to emit an 'Unary' node.
func (cg *CodeGenerator) GenerateUnary(node logik.Unary, frame Frame, offset *int) error {
	if err := cg.GenerateNode(node.Child, frame, offset); err != nil {
		return err
	}

	switch node.Kind {
	case logik.Pos:
	case logik.Neg:
		cg.pushLine("neg ebx")
	case logik.Not:
		cg.pushLine("not ebx")
	}
	return nil
}

// Specialized function to emit a 'Binary' node: left operand, 'push ebx',
// right operand, 'pop eax', then the op-specific instruction with the result
// moved back into 'ebx'.
func (cg *CodeGenerator) GenerateBinary(node logik.Binary, frame Frame, offset *int) error {
	if err := cg.GenerateNode(node.Left, frame, offset); err != nil {
		return err
	}
	cg.pushLine("push ebx")
	if err := cg.GenerateNode(node.Right, frame, offset); err != nil {
		return err
	}
	cg.pushLine("pop eax")

	switch node.Op {
	case token.Add:
		cg.pushLine("add eax, ebx")
	case token.Sub:
		cg.pushLine("sub eax, ebx")
	case token.Mul:
		cg.pushLine("imul eax, ebx")
	case token.Div:
		cg.pushLine("cdq")
		cg.pushLine("idiv ebx")
	default:
		return fmt.Errorf("unrecognized binary operator '%s'", node.Op)
	}
	cg.pushLine("mov ebx, eax")
	return nil
}

// Specialized function to emit a 'Cond' node. Comparisons go through the
// runtime's 'binop_j*' helpers which leave a canonical truth word in 'ebx',
// so '&&' and '||' reduce to the bitwise instructions on the two words.
func (cg *CodeGenerator) GenerateCond(node logik.Cond, frame Frame, offset *int) error {
	if err := cg.GenerateNode(node.Left, frame, offset); err != nil {
		return err
	}
	cg.pushLine("push ebx")
	if err := cg.GenerateNode(node.Right, frame, offset); err != nil {
		return err
	}
	cg.pushLine("pop eax")

	switch node.Op {
	case token.And:
		cg.pushLine("and ebx, eax")
		return nil
	case token.Or:
		cg.pushLine("or ebx, eax")
		return nil
	}

	helper, found := map[token.CondOp]string{
		token.LT:  "binop_jl",
		token.LEQ: "binop_jle",
		token.GT:  "binop_jg",
		token.GEQ: "binop_jge",
		token.EQ:  "binop_je",
		token.NEQ: "binop_jne",
	}[node.Op]
	if !found {
		return fmt.Errorf("unrecognized conditional operator '%s'", node.Op)
	}

	cg.pushLine("cmp eax, ebx")
	cg.pushLine(fmt.Sprintf("call %s", helper))
	return nil
}

// Specialized function to emit a 'VarRef' node: loads the slot into 'ebx'.
func (cg *CodeGenerator) GenerateVarRef(node logik.VarRef, frame Frame) error {
	slot, found := frame[node.Name]
	if !found {
		return fmt.Errorf("variable '%s' used before declaration", node.Name)
	}
	cg.pushLine(fmt.Sprintf("mov ebx, [ebp - %d]", slot.Offset))
	return nil
}

// Specialized function to emit a 'Declare' node. The initializer (or zero)
// lands in 'ebx' and a 'push' grows the stack by exactly one slot, which by
// construction is '[ebp - k]' for the offset just assigned.
func (cg *CodeGenerator) GenerateDeclare(node logik.Declare, frame Frame, offset *int) error {
	if _, found := frame[node.Name]; found {
		return fmt.Errorf("variable '%s' already declared", node.Name)
	}

	if node.Init == nil {
		cg.pushLine("mov ebx, 0")
	} else if err := cg.GenerateNode(node.Init, frame, offset); err != nil {
		return err
	}

	*offset += 4
	frame[node.Name] = Slot{Kind: node.Kind, Offset: *offset}
	cg.pushLine("push ebx")
	return nil
}

// Specialized function to emit an 'AssignStmt' node: stores 'ebx' back into
// the variable's slot.
func (cg *CodeGenerator) GenerateAssign(node logik.AssignStmt, frame Frame, offset *int) error {
	if err := cg.GenerateNode(node.Expr, frame, offset); err != nil {
		return err
	}

	slot, found := frame[node.Name]
	if !found {
		return fmt.Errorf("variable '%s' used before declaration", node.Name)
	}
	cg.pushLine(fmt.Sprintf("mov [ebp - %d], ebx", slot.Offset))
	return nil
}

// Specialized function to emit an 'If' node with the 'else_N'/'end_if_N'
// label pair.
func (cg *CodeGenerator) GenerateIf(node logik.If, frame Frame, offset *int) error {
	if err := cg.GenerateNode(node.Cond, frame, offset); err != nil {
		return err
	}

	id := cg.nextID()
	cg.pushLine("cmp ebx, 0")

	if node.Else == nil {
		cg.pushLine(fmt.Sprintf("je end_if_%d", id))
		if err := cg.GenerateNode(node.Then, frame, offset); err != nil {
			return err
		}
		cg.pushLine(fmt.Sprintf("end_if_%d:", id))
		return nil
	}

	cg.pushLine(fmt.Sprintf("je else_%d", id))
	if err := cg.GenerateNode(node.Then, frame, offset); err != nil {
		return err
	}
	cg.pushLine(fmt.Sprintf("jmp end_if_%d", id))
	cg.pushLine(fmt.Sprintf("else_%d:", id))
	if err := cg.GenerateNode(node.Else, frame, offset); err != nil {
		return err
	}
	cg.pushLine(fmt.Sprintf("end_if_%d:", id))
	return nil
}

// Specialized function to emit a 'While' node with the 'while_N'/
// 'while_end_N' label pair.
func (cg *CodeGenerator) GenerateWhile(node logik.While, frame Frame, offset *int) error {
	id := cg.nextID()
	cg.pushLine(fmt.Sprintf("while_%d:", id))

	if err := cg.GenerateNode(node.Cond, frame, offset); err != nil {
		return err
	}
	cg.pushLine("cmp ebx, 0")
	cg.pushLine(fmt.Sprintf("je while_end_%d", id))

	if err := cg.GenerateNode(node.Body, frame, offset); err != nil {
		return err
	}
	cg.pushLine(fmt.Sprintf("jmp while_%d", id))
	cg.pushLine(fmt.Sprintf("while_end_%d:", id))
	return nil
}

// Specialized function to emit a 'FuncCall' node. 'println'/'print' call into
// the runtime's 'print' routine, any other function body is expanded inline
// into the caller's frame. 'readln' has no runtime counterpart.
func (cg *CodeGenerator) GenerateFuncCall(node logik.FuncCall, frame Frame, offset *int) error {
	switch node.Name {
	case "println", "print":
		if len(node.Args) != 1 {
			return fmt.Errorf("function '%s' expects 1 arguments, got %d", node.Name, len(node.Args))
		}
		if err := cg.GenerateNode(node.Args[0], frame, offset); err != nil {
			return err
		}
		cg.pushLine("push ebx")
		cg.pushLine("call print")
		cg.pushLine("pop ebx")
		return nil

	case "readln":
		return fmt.Errorf("function 'readln' is not supported in assembly output")
	}

	def, found := cg.funcs.Get(node.Name)
	if !found {
		return fmt.Errorf("unknown function '%s'", node.Name)
	}

	// Inline expansion: the callee body runs in the caller's frame and the
	// declared parameters are not materialised from the argument list.
	return cg.GenerateNode(def.Body, frame, offset)
}

func (cg *CodeGenerator) pushLine(line string) {
	cg.lines = append(cg.lines, line)
}

func (cg *CodeGenerator) nextID() int {
	cg.id++
	return cg.id
}
