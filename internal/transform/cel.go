// Package transform evaluates the per-field scripts that turn a record into
// a document.
package transform

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/google/cel-go/common/types/traits"

	"github.com/codelibs/fess-ds-csv/internal/model"
)

// RecordVar is always declared and holds the whole record, so keys that are
// not valid identifiers stay reachable as record["my key"].
const RecordVar = "record"

// ScriptTypeCEL is the only supported script type.
const ScriptTypeCEL = model.DefaultScriptType

var reserved = map[string]bool{
	"false": true, "in": true, "null": true, "true": true,
	"as": true, "break": true, "const": true, "continue": true, "else": true,
	"for": true, "function": true, "if": true, "import": true, "let": true,
	"loop": true, "package": true, "namespace": true, "return": true,
	"var": true, "void": true, "while": true,
	RecordVar: true,
}

var (
	mapType  = reflect.TypeOf(map[string]any{})
	listType = reflect.TypeOf([]any{})
)

// CELEvaluator compiles and caches CEL programs. Top-level record keys that
// are valid identifiers are declared as variables of dynamic type.
// It is safe for concurrent use.
type CELEvaluator struct {
	mu       sync.Mutex
	programs map[string]cel.Program
}

func NewCELEvaluator() *CELEvaluator {
	return &CELEvaluator{programs: make(map[string]cel.Program)}
}

// Evaluate runs expression against record. A blank expression and a null
// result both yield nil.
func (e *CELEvaluator) Evaluate(scriptType, expression string, record model.Record) (any, error) {
	if scriptType == "" {
		scriptType = ScriptTypeCEL
	}
	if !strings.EqualFold(scriptType, ScriptTypeCEL) {
		return nil, fmt.Errorf("transform: unsupported script type %q", scriptType)
	}
	if strings.TrimSpace(expression) == "" {
		return nil, nil
	}

	vars := variables(record)
	prg, err := e.program(expression, vars)
	if err != nil {
		return nil, err
	}

	activation := make(map[string]any, len(vars)+1)
	native := toNative(map[string]any(record)).(map[string]any)
	for _, name := range vars {
		activation[name] = native[name]
	}
	activation[RecordVar] = native

	out, _, err := prg.Eval(activation)
	if err != nil {
		return nil, fmt.Errorf("transform: eval %q: %w", expression, err)
	}
	return fromCEL(out)
}

func (e *CELEvaluator) program(expression string, vars []string) (cel.Program, error) {
	key := expression + "\x00" + strings.Join(vars, "\x00")

	e.mu.Lock()
	defer e.mu.Unlock()
	if prg, ok := e.programs[key]; ok {
		return prg, nil
	}

	opts := make([]cel.EnvOption, 0, len(vars)+1)
	opts = append(opts, cel.Variable(RecordVar, cel.MapType(cel.StringType, cel.DynType)))
	for _, name := range vars {
		opts = append(opts, cel.Variable(name, cel.DynType))
	}
	env, err := cel.NewEnv(opts...)
	if err != nil {
		return nil, fmt.Errorf("transform: env: %w", err)
	}
	ast, iss := env.Compile(expression)
	if iss != nil && iss.Err() != nil {
		return nil, fmt.Errorf("transform: compile %q: %w", expression, iss.Err())
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("transform: program %q: %w", expression, err)
	}
	e.programs[key] = prg
	return prg, nil
}

// variables returns the sorted record keys usable as CEL identifiers.
func variables(record model.Record) []string {
	names := make([]string, 0, len(record))
	for k := range record {
		if isIdent(k) && !reserved[k] {
			names = append(names, k)
		}
	}
	sort.Strings(names)
	return names
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}

// toNative converts record values into types the CEL adapter understands.
func toNative(v any) any {
	switch t := v.(type) {
	case model.Record:
		return toNative(map[string]any(t))
	case model.Document:
		return toNative(map[string]any(t))
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = toNative(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = toNative(val)
		}
		return out
	case *model.JobConfig:
		if t == nil {
			return nil
		}
		return map[string]any{"id": t.ID, "name": t.Name}
	case model.Params:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = val
		}
		return out
	default:
		return v
	}
}

func fromCEL(v ref.Val) (any, error) {
	if types.IsError(v) {
		return nil, fmt.Errorf("transform: %v", v)
	}
	if v.Type() == types.NullType {
		return nil, nil
	}
	switch v.(type) {
	case traits.Mapper:
		return v.ConvertToNative(mapType)
	case traits.Lister:
		return v.ConvertToNative(listType)
	}
	return v.Value(), nil
}
