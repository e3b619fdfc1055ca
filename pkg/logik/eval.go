package logik

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"its-hmny.dev/logik/pkg/token"
)

// ----------------------------------------------------------------------------
// Evaluator

// This section defines the tree-walking Evaluator for the Logik language.
//
// Evaluation dispatches on the node variant and threads the frame of the
// current call by reference. Control flow out of a block is modeled with an
// explicit tri-state signal: a statement either lets execution 'continue',
// produces a value that bubbles up and stops the enclosing block, or was an
// explicit 'return' whose value escapes every enclosing construct up to the
// call boundary.

type flow string

const (
	flowNext   flow = "next"   // Keep executing the enclosing block
	flowReturn flow = "return" // An explicit 'return' is unwinding to the call boundary
)

// Walks the syntax tree rooted at a parsed program and executes it.
//
// The function table is populated by the parser before evaluation begins and
// is treated as read-only here. Standard streams are plain fields so tests
// (and embedders) can swap them out.
type Evaluator struct {
	funcs *FuncTable

	Stdin  io.Reader
	Stdout io.Writer

	reader *bufio.Reader // Wraps Stdin lazily, kept across 'readln' calls
}

// Initializes and returns to the caller a brand new 'Evaluator' struct bound
// to the process standard streams.
func NewEvaluator(funcs *FuncTable) *Evaluator {
	return &Evaluator{funcs: funcs, Stdin: os.Stdin, Stdout: os.Stdout}
}

// Evaluator entrypoint: executes the given root node (a call to 'main' when
// produced by the parser) inside a brand new frame.
func (ev *Evaluator) Run(root Node) (Value, error) {
	value, _, err := ev.EvalNode(root, Frame{})
	return value, err
}

// Evaluates a single node inside 'frame', dispatching by variant. Returns the
// produced value together with the control-flow signal for the enclosing
// construct.
func (ev *Evaluator) EvalNode(node Node, frame Frame) (Value, flow, error) {
	switch tNode := node.(type) {
	case NumberLiteral:
		return NumberValue{Value: tNode.Value}, flowNext, nil
	case BoolLiteral:
		return BoolValue{Value: tNode.Value}, flowNext, nil
	case StringLiteral:
		return StringValue{Value: tNode.Value}, flowNext, nil
	case SimpleValue:
		return tNode.Value, flowNext, nil

	case NumberExpect:
		return ev.evalExpect(tNode.Child, Int, frame)
	case BoolExpect:
		return ev.evalExpect(tNode.Child, Bool, frame)
	case StringExpect:
		return ev.evalExpect(tNode.Child, String, frame)

	case Unary:
		return ev.EvalUnary(tNode, frame)
	case Binary:
		return ev.EvalBinary(tNode, frame)
	case Cond:
		return ev.EvalCond(tNode, frame)
	case VarRef:
		return ev.EvalVarRef(tNode, frame)

	case Declare:
		return ev.EvalDeclare(tNode, frame)
	case AssignStmt:
		return ev.EvalAssign(tNode, frame)
	case If:
		return ev.EvalIf(tNode, frame)
	case While:
		return ev.EvalWhile(tNode, frame)
	case Block:
		return ev.EvalBlock(tNode, frame)
	case Return:
		return ev.EvalReturn(tNode, frame)
	case FuncCall:
		return ev.EvalFuncCall(tNode, frame)
	}

	return nil, flowNext, fmt.Errorf("unrecognized node %T", node)
}

// Typed wrappers evaluate the child and assert its value kind.
func (ev *Evaluator) evalExpect(child Node, kind Kind, frame Frame) (Value, flow, error) {
	value, _, err := ev.EvalNode(child, frame)
	if err != nil {
		return nil, flowNext, err
	}
	if got := KindOf(value); got != kind {
		return nil, flowNext, fmt.Errorf("expected '%s' value, got '%s'", kind, got)
	}
	return value, flowNext, nil
}

// 'Pos' is the identity, 'Neg' negates (a bool negates through its integer
// promotion), 'Not' is the bitwise complement on ints and the logical
// negation on bools.
func (ev *Evaluator) EvalUnary(node Unary, frame Frame) (Value, flow, error) {
	value, _, err := ev.EvalNode(node.Child, frame)
	if err != nil {
		return nil, flowNext, err
	}

	switch tValue := value.(type) {
	case NumberValue:
		switch node.Kind {
		case Pos:
			return tValue, flowNext, nil
		case Neg:
			return NumberValue{Value: -tValue.Value}, flowNext, nil
		case Not:
			return NumberValue{Value: ^tValue.Value}, flowNext, nil
		}

	case BoolValue:
		switch node.Kind {
		case Pos:
			return tValue, flowNext, nil
		case Neg:
			return NumberValue{Value: -boolToNumber(tValue.Value)}, flowNext, nil
		case Not:
			return BoolValue{Value: !tValue.Value}, flowNext, nil
		}
	}

	return nil, flowNext, fmt.Errorf("cannot apply unary '%s' to '%s' value", node.Kind, KindOf(value))
}

// Both operands coerce to a number (bools through integer promotion, strings
// and none fail), the result is always a number.
func (ev *Evaluator) EvalBinary(node Binary, frame Frame) (Value, flow, error) {
	left, _, err := ev.EvalNode(node.Left, frame)
	if err != nil {
		return nil, flowNext, err
	}
	right, _, err := ev.EvalNode(node.Right, frame)
	if err != nil {
		return nil, flowNext, err
	}

	lhs, err := arithmeticOperand(left)
	if err != nil {
		return nil, flowNext, err
	}
	rhs, err := arithmeticOperand(right)
	if err != nil {
		return nil, flowNext, err
	}

	if node.Op == token.Div && rhs == 0 {
		return nil, flowNext, fmt.Errorf("division by zero")
	}
	return NumberValue{Value: node.Op.Execute(lhs, rhs)}, flowNext, nil
}

func arithmeticOperand(v Value) (int64, error) {
	switch tv := v.(type) {
	case NumberValue:
		return tv.Value, nil
	case BoolValue:
		return boolToNumber(tv.Value), nil
	}
	return 0, fmt.Errorf("cannot use '%s' value in arithmetic", KindOf(v))
}

// Relational operators compare through the value ordering rules, '&&' and
// '||' test each side for truthiness (with short-circuit). The result is
// always a bool.
func (ev *Evaluator) EvalCond(node Cond, frame Frame) (Value, flow, error) {
	left, _, err := ev.EvalNode(node.Left, frame)
	if err != nil {
		return nil, flowNext, err
	}

	switch node.Op {
	case token.And, token.Or:
		lhs, err := Truthy(left)
		if err != nil {
			return nil, flowNext, err
		}
		if node.Op == token.And && !lhs {
			return BoolValue{Value: false}, flowNext, nil
		}
		if node.Op == token.Or && lhs {
			return BoolValue{Value: true}, flowNext, nil
		}

		right, _, err := ev.EvalNode(node.Right, frame)
		if err != nil {
			return nil, flowNext, err
		}
		rhs, err := Truthy(right)
		if err != nil {
			return nil, flowNext, err
		}
		return BoolValue{Value: rhs}, flowNext, nil
	}

	right, _, err := ev.EvalNode(node.Right, frame)
	if err != nil {
		return nil, flowNext, err
	}

	switch node.Op {
	case token.EQ, token.NEQ:
		equal, err := ValuesEqual(left, right)
		if err != nil {
			return nil, flowNext, err
		}
		return BoolValue{Value: equal == (node.Op == token.EQ)}, flowNext, nil
	}

	cmp, err := CompareValues(left, right)
	if err != nil {
		return nil, flowNext, err
	}

	switch node.Op {
	case token.LT:
		return BoolValue{Value: cmp < 0}, flowNext, nil
	case token.LEQ:
		return BoolValue{Value: cmp <= 0}, flowNext, nil
	case token.GT:
		return BoolValue{Value: cmp > 0}, flowNext, nil
	case token.GEQ:
		return BoolValue{Value: cmp >= 0}, flowNext, nil
	}

	return nil, flowNext, fmt.Errorf("unrecognized conditional operator '%s'", node.Op)
}

// Reads a variable from the current frame. A name that was never declared or
// that was declared without a value yet is a runtime error.
func (ev *Evaluator) EvalVarRef(node VarRef, frame Frame) (Value, flow, error) {
	variable, found := frame[node.Name]
	if !found || variable.Data == nil {
		return nil, flowNext, fmt.Errorf("variable used before assignment")
	}
	return variable.Data, flowNext, nil
}

// Binds a new variable in the current frame, coercing the initializer (when
// present) to the declared kind. Builtin names cannot be shadowed and a name
// can only be declared once per frame.
func (ev *Evaluator) EvalDeclare(node Declare, frame Frame) (Value, flow, error) {
	if node.Name == "println" || node.Name == "print" || node.Name == "readln" {
		return nil, flowNext, fmt.Errorf("cannot declare variable with builtin name '%s'", node.Name)
	}
	if _, found := frame[node.Name]; found {
		return nil, flowNext, fmt.Errorf("variable '%s' already declared", node.Name)
	}

	if node.Init == nil {
		frame[node.Name] = &Variable{Kind: node.Kind}
		return NoneValue{}, flowNext, nil
	}

	value, _, err := ev.EvalNode(node.Init, frame)
	if err != nil {
		return nil, flowNext, err
	}
	coerced, err := MatchKind(value, node.Kind)
	if err != nil {
		return nil, flowNext, err
	}

	frame[node.Name] = &Variable{Kind: node.Kind, Data: coerced}
	return NoneValue{}, flowNext, nil
}

// Stores a new value into an existing variable, coercing it to the kind the
// variable was declared with.
func (ev *Evaluator) EvalAssign(node AssignStmt, frame Frame) (Value, flow, error) {
	value, _, err := ev.EvalNode(node.Expr, frame)
	if err != nil {
		return nil, flowNext, err
	}

	variable, found := frame[node.Name]
	if !found {
		return nil, flowNext, fmt.Errorf("variable '%s' used before declaration", node.Name)
	}

	coerced, err := MatchKind(value, variable.Kind)
	if err != nil {
		return nil, flowNext, err
	}
	variable.Data = coerced
	return NoneValue{}, flowNext, nil
}

// Runs one of the two branches based on the truthiness of the condition. Only
// an explicit 'return' escapes the branch, any other value is discarded.
func (ev *Evaluator) EvalIf(node If, frame Frame) (Value, flow, error) {
	cond, _, err := ev.EvalNode(node.Cond, frame)
	if err != nil {
		return nil, flowNext, err
	}
	truthy, err := Truthy(cond)
	if err != nil {
		return nil, flowNext, err
	}

	branch := node.Then
	if !truthy {
		branch = node.Else
	}
	if branch == nil {
		return NoneValue{}, flowNext, nil
	}

	value, fl, err := ev.EvalNode(branch, frame)
	if err != nil {
		return nil, flowNext, err
	}
	if fl == flowReturn {
		return value, flowReturn, nil
	}
	return NoneValue{}, flowNext, nil
}

// Runs the body while the condition stays truthy, with the same escape rule
// as 'If': only an explicit 'return' breaks out through the loop.
func (ev *Evaluator) EvalWhile(node While, frame Frame) (Value, flow, error) {
	for {
		cond, _, err := ev.EvalNode(node.Cond, frame)
		if err != nil {
			return nil, flowNext, err
		}
		truthy, err := Truthy(cond)
		if err != nil {
			return nil, flowNext, err
		}
		if !truthy {
			return NoneValue{}, flowNext, nil
		}

		value, fl, err := ev.EvalNode(node.Body, frame)
		if err != nil {
			return nil, flowNext, err
		}
		if fl == flowReturn {
			return value, flowReturn, nil
		}
	}
}

// Runs the children left to right. The block stops early as soon as a child
// returns explicitly or produces a non-none value, the latter bubbles up to
// the enclosing construct as the block's own value.
func (ev *Evaluator) EvalBlock(node Block, frame Frame) (Value, flow, error) {
	for _, child := range node.Children {
		value, fl, err := ev.EvalNode(child, frame)
		if err != nil {
			return nil, flowNext, err
		}
		if fl == flowReturn {
			return value, flowReturn, nil
		}
		if _, isNone := value.(NoneValue); !isNone {
			return value, flowNext, nil
		}
	}
	return NoneValue{}, flowNext, nil
}

// Evaluates the returned expression (if any) and raises the unwinding signal.
func (ev *Evaluator) EvalReturn(node Return, frame Frame) (Value, flow, error) {
	if node.Value == nil {
		return NoneValue{}, flowReturn, nil
	}
	value, _, err := ev.EvalNode(node.Value, frame)
	if err != nil {
		return nil, flowNext, err
	}
	return value, flowReturn, nil
}

// Dispatches a call: 'println', 'print' and 'readln' are builtins, everything
// else is looked up in the function table and run inside a fresh frame.
//
// Arguments are evaluated inside the caller's frame and injected into the
// callee's frame by declaring the matching parameter with the already
// computed value, so each parameter is declared exactly once per call.
func (ev *Evaluator) EvalFuncCall(node FuncCall, frame Frame) (Value, flow, error) {
	switch node.Name {
	case "println", "print":
		return ev.evalPrint(node, frame)
	case "readln":
		return ev.evalReadLine(node)
	}

	def, found := ev.funcs.Get(node.Name)
	if !found {
		return nil, flowNext, fmt.Errorf("unknown function '%s'", node.Name)
	}
	if len(node.Args) != len(def.Params) {
		return nil, flowNext, fmt.Errorf(
			"function '%s' expects %d arguments, got %d", node.Name, len(def.Params), len(node.Args))
	}

	callee := Frame{}
	for i, param := range def.Params {
		value, _, err := ev.EvalNode(node.Args[i], frame)
		if err != nil {
			return nil, flowNext, err
		}

		inject := Declare{Name: param.Name, Kind: param.Kind, Init: SimpleValue{Value: value}}
		if _, _, err := ev.EvalNode(inject, callee); err != nil {
			return nil, flowNext, err
		}
	}

	value, _, err := ev.EvalNode(def.Body, callee)
	if err != nil {
		return nil, flowNext, err
	}

	// A body that never produced a value stays none, uncoerced: 'int main()'
	// without a return still yields none to its caller.
	if _, isNone := value.(NoneValue); isNone {
		return NoneValue{}, flowNext, nil
	}

	coerced, err := MatchKind(value, def.Return)
	if err != nil {
		return nil, flowNext, err
	}
	// The unwinding stops at the call boundary: to the caller this is just an
	// expression that produced a value.
	return coerced, flowNext, nil
}

// 'println(x)'/'print(x)': numbers print in decimal, bools as their integer
// promotion, strings as their literal characters. Printing none fails.
func (ev *Evaluator) evalPrint(node FuncCall, frame Frame) (Value, flow, error) {
	if len(node.Args) != 1 {
		return nil, flowNext, fmt.Errorf("function '%s' expects 1 arguments, got %d", node.Name, len(node.Args))
	}

	value, _, err := ev.EvalNode(node.Args[0], frame)
	if err != nil {
		return nil, flowNext, err
	}

	var rendered string
	switch tValue := value.(type) {
	case NumberValue:
		rendered = strconv.FormatInt(tValue.Value, 10)
	case BoolValue:
		rendered = strconv.FormatInt(boolToNumber(tValue.Value), 10)
	case StringValue:
		rendered = tValue.Value
	default:
		return nil, flowNext, fmt.Errorf("cannot print 'none' value")
	}

	if node.Name == "println" {
		rendered += "\n"
	}
	if _, err := io.WriteString(ev.Stdout, rendered); err != nil {
		return nil, flowNext, err
	}
	return NoneValue{}, flowNext, nil
}

// 'readln()': reads one line from stdin, trims surrounding whitespace and
// parses it as a signed 64-bit integer. Any failure is fatal.
func (ev *Evaluator) evalReadLine(node FuncCall) (Value, flow, error) {
	if len(node.Args) != 0 {
		return nil, flowNext, fmt.Errorf("function 'readln' expects 0 arguments, got %d", len(node.Args))
	}

	if ev.reader == nil {
		ev.reader = bufio.NewReader(ev.Stdin)
	}
	line, err := ev.reader.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return nil, flowNext, fmt.Errorf("readln: %s", err)
	}

	trimmed := strings.TrimSpace(line)
	num, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil {
		return nil, flowNext, fmt.Errorf("Could not convert \"%s\" to a number - (%s)", trimmed, err)
	}
	return NumberValue{Value: num}, flowNext, nil
}

// ----------------------------------------------------------------------------
// Expression mode

// Scans, parses and evaluates a single bare expression ("1 + 2*3") with no
// surrounding program, returning its numeric result. After the expression the
// parser's cursor must rest on EOF, trailing tokens are rejected.
func EvalExpression(input string) (int64, error) {
	tokens, err := token.Tokenize(input)
	if err != nil {
		return 0, err
	}

	parser := NewParser(tokens)
	node, err := parser.ParseCond()
	if err != nil {
		return 0, err
	}

	tk, err := parser.cur()
	if err != nil {
		return 0, err
	}
	if tk.Kind != token.EOF {
		return 0, fmt.Errorf("Finished parsing but not EOF")
	}

	evaluator := NewEvaluator(NewFuncTable())
	value, _, err := evaluator.EvalNode(node, Frame{})
	if err != nil {
		return 0, err
	}
	return arithmeticOperand(value)
}
