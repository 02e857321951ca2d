// Package paramsub resolves $(name) tokens against a parameter map.
package paramsub

import (
	"fmt"
	"strings"

	"github.com/nomos-run/nomos/internal/model"
)

// Result is the outcome of a substitution: exactly one of Single, Multiple,
// or None is meaningful, selected by Kind.
type Result struct {
	Kind     ResultKind
	Single   string
	Multiple []string
}

// ResultKind discriminates Result's variants.
type ResultKind int

const (
	KindSingle ResultKind = iota
	KindMultiple
	KindNone
)

// Substitute evaluates template against params. When optional is true and
// the template is exactly one missing token, it returns a KindNone result
// instead of an error.
func Substitute(template string, params map[string]model.ParameterValue, optional bool) (Result, error) {
	if isSingleToken(template) {
		key, ok := tokenKey(template)
		if !ok {
			return Result{}, fmt.Errorf("Missing closing bracket")
		}
		val, found := params[key]
		if !found {
			if optional {
				return Result{Kind: KindNone}, nil
			}
			return Result{}, fmt.Errorf("Parameter '%s' not found", key)
		}
		if val.Type == model.KindStringArray {
			arr, _ := val.StringArray()
			return Result{Kind: KindMultiple, Multiple: arr}, nil
		}
		return Result{Kind: KindSingle, Single: val.String()}, nil
	}

	var b strings.Builder
	rest := template
	for {
		start := strings.Index(rest, "$(")
		if start < 0 {
			b.WriteString(rest)
			break
		}
		b.WriteString(rest[:start])
		afterOpen := rest[start+2:]
		end := strings.IndexByte(afterOpen, ')')
		if end < 0 {
			return Result{}, fmt.Errorf("Missing closing bracket")
		}
		key := afterOpen[:end]
		val, found := params[key]
		if !found {
			return Result{}, fmt.Errorf("Parameter '%s' not found", key)
		}
		b.WriteString(val.String())
		rest = afterOpen[end+1:]
	}
	return Result{Kind: KindSingle, Single: b.String()}, nil
}

// SubstituteSingle is a convenience wrapper for the common case of a
// non-optional substitution that must resolve to a single string (the
// Multiple variant is rejected with an error naming the field).
func SubstituteSingle(field, template string, params map[string]model.ParameterValue) (string, error) {
	res, err := Substitute(template, params, false)
	if err != nil {
		return "", err
	}
	if res.Kind == KindMultiple {
		return "", fmt.Errorf("%s: expected a single value, got a string array", field)
	}
	return res.Single, nil
}

// isSingleToken reports whether template is exactly one $(...) token with
// nothing else around it.
func isSingleToken(template string) bool {
	if !strings.HasPrefix(template, "$(") || !strings.HasSuffix(template, ")") {
		return false
	}
	inner := template[2 : len(template)-1]
	return !strings.Contains(inner, "$(") && !strings.Contains(inner, ")")
}

// tokenKey extracts the key from a single-token template, reporting false
// if the closing bracket is missing.
func tokenKey(template string) (string, bool) {
	if !strings.HasSuffix(template, ")") {
		return "", false
	}
	return template[2 : len(template)-1], true
}
