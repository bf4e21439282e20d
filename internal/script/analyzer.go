// Package script analyses project scripts for the classes they declare and
// the classes they need, and orders a page's scripts so every class a script
// uses while loading is defined before it runs.
package script

import (
	"bytes"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/robertkrimen/otto/ast"
	"github.com/robertkrimen/otto/parser"

	arborerrors "github.com/conneroisu/arbor/internal/errors"
	"github.com/conneroisu/arbor/internal/project"
)

// Library classes behind the framework idioms.
const (
	OperatorClass = "js.lang.Operator"
	LogClass      = "js.lang.Log"
	WindowClass   = "js.ua.Window"
)

var (
	packageSegment = regexp.MustCompile(`^[a-z][a-z0-9]*$`)
	classSegment   = regexp.MustCompile(`^[A-Z][A-Za-z0-9]*$`)

	// Host objects never resolve to project classes.
	globals = map[string]bool{
		"window":     true,
		"document":   true,
		"navigator":  true,
		"console":    true,
		"self":       true,
		"global":     true,
		"globalThis": true,
	}
)

// DependencyKind classifies how a script uses a dependency.
type DependencyKind int

const (
	// Weak dependencies are only used inside function bodies.
	Weak DependencyKind = iota
	// Strong dependencies are used while the script loads.
	Strong
	// ThirdParty dependencies are non-class scripts pulled in by $include.
	ThirdParty
)

// String returns the string representation of the dependency kind.
func (k DependencyKind) String() string {
	switch k {
	case Weak:
		return "weak"
	case Strong:
		return "strong"
	case ThirdParty:
		return "third-party"
	default:
		return fmt.Sprintf("DependencyKind(%d)", int(k))
	}
}

// Dependency is one class, or third party script, a script needs.
type Dependency struct {
	Name string
	Kind DependencyKind
}

// Analysis is the result of scanning one script.
type Analysis struct {
	File         project.FilePath
	Declared     []string
	Dependencies []Dependency
}

// Dependency looks up a dependency by name.
func (a *Analysis) Dependency(name string) (Dependency, bool) {
	for _, dep := range a.Dependencies {
		if dep.Name == name {
			return dep, true
		}
	}
	return Dependency{}, false
}

// IsClassName reports a qualified name made of lower case package segments
// followed by exactly one capitalised class segment.
func IsClassName(name string) bool {
	segments := strings.Split(name, ".")
	return className(segments) == name
}

// Analyze parses src and collects declared classes and dependencies.
// Dependencies keep first-seen order; a dependency seen both inside a function
// and at load time is Strong.
func Analyze(file project.FilePath, src []byte) (*Analysis, error) {
	program, err := parser.ParseFile(nil, file.String(), src, 0)
	if err != nil {
		return nil, arborerrors.NewDependencyError(arborerrors.ErrCodeScriptSyntax,
			"cannot parse script", err).WithFile(file.String())
	}

	v := &visitor{
		file:  file,
		src:   src,
		index: make(map[string]int),
		seen:  make(map[string]bool),
	}
	ast.Walk(v, program)
	if v.err != nil {
		return nil, v.err
	}
	return v.result(), nil
}

type visitor struct {
	file     project.FilePath
	src      []byte
	depth    int
	deps     []Dependency
	index    map[string]int
	declared []string
	seen     map[string]bool
	err      error
}

func (v *visitor) Enter(n ast.Node) ast.Visitor {
	if v.err != nil || isNilNode(n) {
		return nil
	}

	kind := kindOf(n)
	switch kind {
	case KindUnknown:
		v.fail(arborerrors.ErrCodeUnhandledNode, fmt.Sprintf("unhandled syntax node %T", n), n)
		return nil

	case KindBadExpression, KindBadStatement:
		v.fail(arborerrors.ErrCodeScriptSyntax, "malformed "+kind.String(), n)
		return nil

	case KindFunctionLiteral:
		v.depth++

	case KindAssignExpression:
		v.assignment(n.(*ast.AssignExpression))

	case KindCallExpression:
		if !v.call(n.(*ast.CallExpression)) {
			return nil
		}

	case KindDotExpression:
		if v.member(n.(*ast.DotExpression)) {
			return nil
		}

	case KindArrayLiteral, KindBooleanLiteral, KindNullLiteral, KindNumberLiteral,
		KindObjectLiteral, KindRegExpLiteral, KindStringLiteral,
		KindBinaryExpression, KindBracketExpression, KindConditionalExpression,
		KindEmptyExpression, KindIdentifier, KindNewExpression, KindSequenceExpression,
		KindThisExpression, KindUnaryExpression, KindVariableExpression,
		KindBlockStatement, KindBranchStatement, KindCaseStatement, KindCatchStatement,
		KindDebuggerStatement, KindDoWhileStatement, KindEmptyStatement,
		KindExpressionStatement, KindForInStatement, KindForStatement,
		KindFunctionStatement, KindIfStatement, KindLabelledStatement,
		KindReturnStatement, KindSwitchStatement, KindThrowStatement, KindTryStatement,
		KindVariableStatement, KindWhileStatement, KindWithStatement, KindProgram:
		// Children carry the references.

	default:
		v.fail(arborerrors.ErrCodeUnhandledNode, "unhandled node kind "+kind.String(), n)
		return nil
	}
	return v
}

func (v *visitor) Exit(n ast.Node) {
	if _, ok := n.(*ast.FunctionLiteral); ok {
		v.depth--
	}
}

// assignment records global assignments to a bare class name as declarations.
func (v *visitor) assignment(n *ast.AssignExpression) {
	if v.depth > 0 {
		return
	}
	segments, ok := flatten(n.Left)
	if !ok {
		return
	}
	name := strings.Join(segments, ".")
	if className(segments) == name && !v.seen[name] {
		v.seen[name] = true
		v.declared = append(v.declared, name)
	}
}

// call handles the framework operators. It returns false when the call
// arguments must not be scanned as ordinary expressions.
func (v *visitor) call(n *ast.CallExpression) bool {
	callee, ok := n.Callee.(*ast.Identifier)
	if !ok || callee == nil {
		return true
	}

	switch callee.Name {
	case "$package", "$declare":
		v.add(OperatorClass, v.kind())
		return true

	case "$extends":
		v.add(OperatorClass, v.kind())
		if len(n.ArgumentList) > 1 {
			if segments, ok := flatten(n.ArgumentList[1]); ok {
				if name := className(segments); name != "" {
					v.add(name, v.kind())
				}
			}
		}
		return false

	case "$include":
		v.add(OperatorClass, v.kind())
		if len(n.ArgumentList) > 0 {
			if lit, ok := n.ArgumentList[0].(*ast.StringLiteral); ok && lit != nil {
				name := strings.TrimSpace(lit.Value)
				switch {
				case name == "":
				case IsClassName(name):
					v.add(name, v.kind())
				default:
					v.add(name, ThirdParty)
				}
			}
		}
		return false
	}
	return true
}

// member resolves a member access chain. It returns true when the chain was
// fully consumed.
func (v *visitor) member(n *ast.DotExpression) bool {
	segments, ok := flatten(n)
	if !ok {
		return false
	}
	switch segments[0] {
	case "LogFactory":
		v.add(LogClass, v.kind())
	case "WinMain":
		v.add(WindowClass, v.kind())
	default:
		if name := className(segments); name != "" {
			v.add(name, v.kind())
		}
	}
	return true
}

func (v *visitor) kind() DependencyKind {
	if v.depth == 0 {
		return Strong
	}
	return Weak
}

// add records a dependency, promoting Weak to Strong and never back.
func (v *visitor) add(name string, kind DependencyKind) {
	if i, ok := v.index[name]; ok {
		if kind == Strong && v.deps[i].Kind == Weak {
			v.deps[i].Kind = Strong
		}
		return
	}
	v.index[name] = len(v.deps)
	v.deps = append(v.deps, Dependency{Name: name, Kind: kind})
}

func (v *visitor) fail(code, msg string, n ast.Node) {
	line, column := position(v.src, int(n.Idx0()))
	v.err = arborerrors.NewDependencyError(code, msg, nil).WithLocation(v.file.String(), line, column)
}

func (v *visitor) result() *Analysis {
	declared := make(map[string]bool, len(v.declared))
	for _, name := range v.declared {
		declared[name] = true
	}
	deps := make([]Dependency, 0, len(v.deps))
	for _, dep := range v.deps {
		if !declared[dep.Name] {
			deps = append(deps, dep)
		}
	}
	return &Analysis{File: v.file, Declared: v.declared, Dependencies: deps}
}

// flatten turns identifier and member chains into their segments.
func flatten(e ast.Expression) ([]string, bool) {
	switch e := e.(type) {
	case *ast.Identifier:
		if e == nil {
			return nil, false
		}
		return []string{e.Name}, true
	case *ast.DotExpression:
		if e == nil {
			return nil, false
		}
		left, ok := flatten(e.Left)
		if !ok {
			return nil, false
		}
		return append(left, e.Identifier.Name), true
	}
	return nil, false
}

// className returns the qualified class prefix of a member chain, empty when
// the chain does not start with a package.
func className(segments []string) string {
	if len(segments) < 2 || globals[segments[0]] {
		return ""
	}
	for i, segment := range segments {
		if classSegment.MatchString(segment) {
			if i == 0 {
				return ""
			}
			return strings.Join(segments[:i+1], ".")
		}
		if !packageSegment.MatchString(segment) {
			return ""
		}
	}
	return ""
}

// The walker hands typed nil pointers for absent optional children.
func isNilNode(n ast.Node) bool {
	if n == nil {
		return true
	}
	v := reflect.ValueOf(n)
	return v.Kind() == reflect.Ptr && v.IsNil()
}

// position converts a one based parser offset into a line and column.
func position(src []byte, idx int) (int, int) {
	offset := idx - 1
	if offset < 0 || offset > len(src) {
		return 0, 0
	}
	before := src[:offset]
	line := bytes.Count(before, []byte{'\n'}) + 1
	column := offset - bytes.LastIndexByte(before, '\n')
	return line, column
}
