package rjsconfig

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/dop251/goja/ast"
	"github.com/dop251/goja/parser"
)

// ParseError wraps a failure to parse the loader-config script as valid
// JavaScript source.
type ParseError struct {
	Cause error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("loader-config parse error: %s", e.Cause)
}

func (e *ParseError) Unwrap() error { return e.Cause }

// Parse recovers a ClientConfig from the text of an upstream-generated
// loader configuration script, which contains one or more IIFEs of the
// shape `var config = { ... }; require.config(config);`. Parse fails
// only when the input is not valid JavaScript; unrecognised members and
// unexpected shapes are silently ignored rather than treated as errors.
func Parse(src string) (ClientConfig, error) {
	program, err := parser.ParseFile(nil, "requirejs-config.js", src, 0)
	if err != nil {
		return ClientConfig{}, &ParseError{Cause: err}
	}

	w := &walker{result: Default()}
	w.walkStatements(program.Body)
	return w.result, nil
}

// walker accumulates a ClientConfig while recursing through the script's
// statement tree, unwrapping IIFEs along the way.
type walker struct {
	result ClientConfig
}

func (w *walker) walkStatements(list []ast.Statement) {
	for _, stmt := range list {
		w.walkStatement(stmt)
	}
}

func (w *walker) walkStatement(stmt ast.Statement) {
	switch s := stmt.(type) {
	case *ast.VariableStatement:
		for _, binding := range s.List {
			w.walkBinding(binding)
		}
	case *ast.ExpressionStatement:
		w.walkExpression(s.Expression)
	case *ast.BlockStatement:
		w.walkStatements(s.List)
	}
}

func (w *walker) walkBinding(binding *ast.Binding) {
	if binding == nil || binding.Initializer == nil {
		return
	}
	ident, ok := binding.Target.(*ast.Identifier)
	if !ok || string(ident.Name) != "config" {
		return
	}
	obj, ok := binding.Initializer.(*ast.ObjectLiteral)
	if !ok {
		return
	}
	w.processConfigObject(obj)
}

// walkExpression looks for the IIFE call pattern: a CallExpression whose
// callee is a FunctionLiteral, in which case its body is walked as if it
// were inlined at this point in the script.
func (w *walker) walkExpression(expr ast.Expression) {
	call, ok := expr.(*ast.CallExpression)
	if !ok {
		return
	}
	fn, ok := call.Callee.(*ast.FunctionLiteral)
	if !ok || fn.Body == nil {
		return
	}
	w.walkStatements(fn.Body.List)
}

// processConfigObject dispatches each member of the `config` object
// literal to the handler for its key, per the member-processing table.
func (w *walker) processConfigObject(obj *ast.ObjectLiteral) {
	for _, prop := range obj.Value {
		keyed, ok := prop.(*ast.PropertyKeyed)
		if !ok {
			continue
		}
		key := propertyKeyName(keyed.Key)
		switch key {
		case "deps":
			w.processDeps(keyed.Value)
		case "paths":
			w.processPaths(keyed.Value)
		case "map":
			w.processMap(keyed.Value)
		case "config":
			w.processConfigMember(keyed.Value)
		case "shim":
			w.processShim(keyed.Value)
		case "baseUrl":
			if s, ok := stringLiteralValue(keyed.Value); ok {
				w.result.BaseURL = &s
			}
		}
	}
}

func (w *walker) processDeps(value ast.Expression) {
	arr, ok := value.(*ast.ArrayLiteral)
	if !ok {
		return
	}
	for _, el := range arr.Value {
		if s, ok := stringLiteralValue(el); ok {
			w.result.Deps = appendDedup(w.result.Deps, s)
		}
	}
}

func (w *walker) processPaths(value ast.Expression) {
	obj, ok := value.(*ast.ObjectLiteral)
	if !ok {
		return
	}
	if w.result.Paths == nil {
		w.result.Paths = map[string]string{}
	}
	for _, prop := range obj.Value {
		keyed, ok := prop.(*ast.PropertyKeyed)
		if !ok {
			continue
		}
		if s, ok := stringLiteralValue(keyed.Value); ok {
			w.result.Paths[propertyKeyName(keyed.Key)] = s
		}
	}
}

func (w *walker) processMap(value ast.Expression) {
	merged := mergeRawObject(w.result.Map, expressionToJSON(value))
	w.result.Map = merged
}

// processConfigMember handles the `config` member: values are objects of
// objects, keyed by module id, each IIFE deep-merging into whatever an
// earlier IIFE already contributed rather than replacing it outright —
// the same "merge at the leaf, last write wins" rule `processMap` applies
// via `mergeRawObject`, just one level deeper since a `config` leaf is
// itself an object rather than a string. Only a literal `true` leaf
// survives as boolean true; anything else collapses to an empty object.
func (w *walker) processConfigMember(value ast.Expression) {
	obj, ok := value.(*ast.ObjectLiteral)
	if !ok {
		return
	}
	w.result.Config = mergeConfigObject(w.result.Config, obj)
}

// mergeConfigObject merges obj's top-level `config` keys (e.g. "mixins")
// into dst, recursing into mergeConfigLeaf for each so that same-named
// module-id entries contributed by separate IIFEs accumulate instead of
// overwriting one another.
func mergeConfigObject(dst json.RawMessage, obj *ast.ObjectLiteral) json.RawMessage {
	existing := map[string]json.RawMessage{}
	if len(dst) > 0 {
		_ = json.Unmarshal(dst, &existing)
	}

	for _, prop := range obj.Value {
		keyed, ok := prop.(*ast.PropertyKeyed)
		if !ok {
			continue
		}
		key := propertyKeyName(keyed.Key)
		inner, ok := keyed.Value.(*ast.ObjectLiteral)
		if !ok {
			continue
		}
		existing[key] = mergeConfigLeaf(existing[key], inner)
	}

	out, err := json.Marshal(existing)
	if err != nil {
		return dst
	}
	return out
}

// mergeConfigLeaf deep-merges obj into dst key by key: a literal `true`
// leaf survives as boolean true, a nested object recurses, and anything
// else collapses to an empty object — merging into whatever dst already
// holds for that key instead of discarding it.
func mergeConfigLeaf(dst json.RawMessage, obj *ast.ObjectLiteral) json.RawMessage {
	existing := map[string]json.RawMessage{}
	if len(dst) > 0 {
		_ = json.Unmarshal(dst, &existing)
	}

	for _, prop := range obj.Value {
		keyed, ok := prop.(*ast.PropertyKeyed)
		if !ok {
			continue
		}
		key := propertyKeyName(keyed.Key)
		if b, ok := keyed.Value.(*ast.BooleanLiteral); ok && b.Value {
			existing[key] = json.RawMessage("true")
			continue
		}
		if inner, ok := keyed.Value.(*ast.ObjectLiteral); ok {
			existing[key] = mergeConfigLeaf(existing[key], inner)
			continue
		}
		existing[key] = json.RawMessage("{}")
	}

	out, err := json.Marshal(existing)
	if err != nil {
		return dst
	}
	return out
}

// processShim stores shim members as structured JSON: values are either
// arrays of module id strings, or objects that may contain an `exports`
// string and/or a `deps` array.
func (w *walker) processShim(value ast.Expression) {
	obj, ok := value.(*ast.ObjectLiteral)
	if !ok {
		return
	}

	existing := map[string]json.RawMessage{}
	if len(w.result.Shim) > 0 {
		_ = json.Unmarshal(w.result.Shim, &existing)
	}

	for _, prop := range obj.Value {
		keyed, ok := prop.(*ast.PropertyKeyed)
		if !ok {
			continue
		}
		key := propertyKeyName(keyed.Key)
		existing[key] = expressionToJSON(keyed.Value)
	}

	out, err := json.Marshal(existing)
	if err == nil {
		w.result.Shim = out
	}
}

// expressionToJSON renders a restricted subset of JS literal expressions
// (objects, arrays, strings, numbers, booleans) as JSON. Anything outside
// that subset becomes an empty object, matching the parser's "never fail
// on unexpected shape" contract.
func expressionToJSON(expr ast.Expression) json.RawMessage {
	switch e := expr.(type) {
	case *ast.ObjectLiteral:
		out := map[string]json.RawMessage{}
		for _, prop := range e.Value {
			keyed, ok := prop.(*ast.PropertyKeyed)
			if !ok {
				continue
			}
			out[propertyKeyName(keyed.Key)] = expressionToJSON(keyed.Value)
		}
		data, err := json.Marshal(out)
		if err != nil {
			return json.RawMessage("{}")
		}
		return data
	case *ast.ArrayLiteral:
		items := make([]json.RawMessage, 0, len(e.Value))
		for _, el := range e.Value {
			items = append(items, expressionToJSON(el))
		}
		data, err := json.Marshal(items)
		if err != nil {
			return json.RawMessage("[]")
		}
		return data
	case *ast.StringLiteral:
		data, _ := json.Marshal(string(e.Value))
		return data
	case *ast.NumberLiteral:
		return json.RawMessage(strconv.FormatFloat(e.Value, 'g', -1, 64))
	case *ast.BooleanLiteral:
		if e.Value {
			return json.RawMessage("true")
		}
		return json.RawMessage("false")
	default:
		return json.RawMessage("{}")
	}
}

// mergeRawObject deep-merges src into dst at the leaf level, last write
// wins, matching the `map` member's "object of string→object-of-
// string→string, deep-merge last-write-wins at the leaf" rule.
func mergeRawObject(dst, srcJSON json.RawMessage) json.RawMessage {
	var dstMap map[string]map[string]string
	if len(dst) > 0 {
		_ = json.Unmarshal(dst, &dstMap)
	}
	if dstMap == nil {
		dstMap = map[string]map[string]string{}
	}

	var srcMap map[string]map[string]string
	if err := json.Unmarshal(srcJSON, &srcMap); err != nil {
		return dst
	}
	for outerKey, inner := range srcMap {
		if dstMap[outerKey] == nil {
			dstMap[outerKey] = map[string]string{}
		}
		for innerKey, v := range inner {
			dstMap[outerKey][innerKey] = v
		}
	}

	out, err := json.Marshal(dstMap)
	if err != nil {
		return dst
	}
	return out
}

func appendDedup(list []string, value string) []string {
	for _, existing := range list {
		if existing == value {
			return list
		}
	}
	return append(list, value)
}

// stringLiteralValue returns a string literal's decoded value. The AST
// node already carries the value with its enclosing quotes stripped and
// escapes resolved by the parser, so no further unquoting is needed here.
func stringLiteralValue(expr ast.Expression) (string, bool) {
	s, ok := expr.(*ast.StringLiteral)
	if !ok {
		return "", false
	}
	return string(s.Value), true
}

func propertyKeyName(expr ast.Expression) string {
	switch k := expr.(type) {
	case *ast.Identifier:
		return string(k.Name)
	case *ast.StringLiteral:
		return string(k.Value)
	default:
		return ""
	}
}
