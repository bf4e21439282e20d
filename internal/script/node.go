package script

import (
	"fmt"

	"github.com/robertkrimen/otto/ast"
)

// NodeKind is the closed set of syntax tree nodes the analyzer understands.
type NodeKind int

const (
	KindUnknown NodeKind = iota

	KindArrayLiteral
	KindBooleanLiteral
	KindNullLiteral
	KindNumberLiteral
	KindObjectLiteral
	KindRegExpLiteral
	KindStringLiteral

	KindAssignExpression
	KindBadExpression
	KindBinaryExpression
	KindBracketExpression
	KindCallExpression
	KindConditionalExpression
	KindDotExpression
	KindEmptyExpression
	KindFunctionLiteral
	KindIdentifier
	KindNewExpression
	KindSequenceExpression
	KindThisExpression
	KindUnaryExpression
	KindVariableExpression

	KindBadStatement
	KindBlockStatement
	KindBranchStatement
	KindCaseStatement
	KindCatchStatement
	KindDebuggerStatement
	KindDoWhileStatement
	KindEmptyStatement
	KindExpressionStatement
	KindForInStatement
	KindForStatement
	KindFunctionStatement
	KindIfStatement
	KindLabelledStatement
	KindReturnStatement
	KindSwitchStatement
	KindThrowStatement
	KindTryStatement
	KindVariableStatement
	KindWhileStatement
	KindWithStatement

	KindProgram
)

var kindNames = map[NodeKind]string{
	KindUnknown:               "unknown",
	KindArrayLiteral:          "array literal",
	KindBooleanLiteral:        "boolean literal",
	KindNullLiteral:           "null literal",
	KindNumberLiteral:         "number literal",
	KindObjectLiteral:         "object literal",
	KindRegExpLiteral:         "regexp literal",
	KindStringLiteral:         "string literal",
	KindAssignExpression:      "assign expression",
	KindBadExpression:         "bad expression",
	KindBinaryExpression:      "binary expression",
	KindBracketExpression:     "bracket expression",
	KindCallExpression:        "call expression",
	KindConditionalExpression: "conditional expression",
	KindDotExpression:         "dot expression",
	KindEmptyExpression:       "empty expression",
	KindFunctionLiteral:       "function literal",
	KindIdentifier:            "identifier",
	KindNewExpression:         "new expression",
	KindSequenceExpression:    "sequence expression",
	KindThisExpression:        "this expression",
	KindUnaryExpression:       "unary expression",
	KindVariableExpression:    "variable expression",
	KindBadStatement:          "bad statement",
	KindBlockStatement:        "block statement",
	KindBranchStatement:       "branch statement",
	KindCaseStatement:         "case statement",
	KindCatchStatement:        "catch statement",
	KindDebuggerStatement:     "debugger statement",
	KindDoWhileStatement:      "do-while statement",
	KindEmptyStatement:        "empty statement",
	KindExpressionStatement:   "expression statement",
	KindForInStatement:        "for-in statement",
	KindForStatement:          "for statement",
	KindFunctionStatement:     "function statement",
	KindIfStatement:           "if statement",
	KindLabelledStatement:     "labelled statement",
	KindReturnStatement:       "return statement",
	KindSwitchStatement:       "switch statement",
	KindThrowStatement:        "throw statement",
	KindTryStatement:          "try statement",
	KindVariableStatement:     "variable statement",
	KindWhileStatement:        "while statement",
	KindWithStatement:         "with statement",
	KindProgram:               "program",
}

// String returns the string representation of the node kind.
func (k NodeKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("NodeKind(%d)", int(k))
}

// kindOf maps a parser node onto its kind. Nodes the parser may add in later
// releases map to KindUnknown so the walk can fail instead of skipping them.
func kindOf(n ast.Node) NodeKind {
	switch n.(type) {
	case *ast.ArrayLiteral:
		return KindArrayLiteral
	case *ast.BooleanLiteral:
		return KindBooleanLiteral
	case *ast.NullLiteral:
		return KindNullLiteral
	case *ast.NumberLiteral:
		return KindNumberLiteral
	case *ast.ObjectLiteral:
		return KindObjectLiteral
	case *ast.RegExpLiteral:
		return KindRegExpLiteral
	case *ast.StringLiteral:
		return KindStringLiteral
	case *ast.AssignExpression:
		return KindAssignExpression
	case *ast.BadExpression:
		return KindBadExpression
	case *ast.BinaryExpression:
		return KindBinaryExpression
	case *ast.BracketExpression:
		return KindBracketExpression
	case *ast.CallExpression:
		return KindCallExpression
	case *ast.ConditionalExpression:
		return KindConditionalExpression
	case *ast.DotExpression:
		return KindDotExpression
	case *ast.EmptyExpression:
		return KindEmptyExpression
	case *ast.FunctionLiteral:
		return KindFunctionLiteral
	case *ast.Identifier:
		return KindIdentifier
	case *ast.NewExpression:
		return KindNewExpression
	case *ast.SequenceExpression:
		return KindSequenceExpression
	case *ast.ThisExpression:
		return KindThisExpression
	case *ast.UnaryExpression:
		return KindUnaryExpression
	case *ast.VariableExpression:
		return KindVariableExpression
	case *ast.BadStatement:
		return KindBadStatement
	case *ast.BlockStatement:
		return KindBlockStatement
	case *ast.BranchStatement:
		return KindBranchStatement
	case *ast.CaseStatement:
		return KindCaseStatement
	case *ast.CatchStatement:
		return KindCatchStatement
	case *ast.DebuggerStatement:
		return KindDebuggerStatement
	case *ast.DoWhileStatement:
		return KindDoWhileStatement
	case *ast.EmptyStatement:
		return KindEmptyStatement
	case *ast.ExpressionStatement:
		return KindExpressionStatement
	case *ast.ForInStatement:
		return KindForInStatement
	case *ast.ForStatement:
		return KindForStatement
	case *ast.FunctionStatement:
		return KindFunctionStatement
	case *ast.IfStatement:
		return KindIfStatement
	case *ast.LabelledStatement:
		return KindLabelledStatement
	case *ast.ReturnStatement:
		return KindReturnStatement
	case *ast.SwitchStatement:
		return KindSwitchStatement
	case *ast.ThrowStatement:
		return KindThrowStatement
	case *ast.TryStatement:
		return KindTryStatement
	case *ast.VariableStatement:
		return KindVariableStatement
	case *ast.WhileStatement:
		return KindWhileStatement
	case *ast.WithStatement:
		return KindWithStatement
	case *ast.Program:
		return KindProgram
	default:
		return KindUnknown
	}
}
