package util

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"text/template"
)

// CompileTemplate parses an instruction template with the helper funcs
// available to catalog entries:
//
//	py      Python literal of a value (None, True, 1, 'x', [..], {..})
//	json    compact JSON encoding
//	quote   Go-quoted string
//	default fallback for nil or empty values
//	kwargs  "k=v, ..." keyword arguments for the non-nil entries of a map
func CompileTemplate(name, text string) (*template.Template, error) {
	return template.New(name).Option("missingkey=zero").Funcs(template.FuncMap{
		"py":    PyLiteral,
		"json":  jsonLiteral,
		"quote": strconv.Quote,
		"default": func(defaultVal any, val any) any {
			if val == nil || val == "" {
				return defaultVal
			}
			return val
		},
		"kwargs": PyKwargs,
		"upper":  strings.ToUpper,
		"lower":  strings.ToLower,
	}).Parse(text)
}

// Execute runs a compiled template against data.
func Execute(tmpl *template.Template, data map[string]any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}

	return buf.String(), nil
}

// PyLiteral encodes a JSON-compatible value as a Python literal.
func PyLiteral(v any) string {
	switch x := v.(type) {
	case nil:
		return "None"
	case bool:
		if x {
			return "True"
		}
		return "False"
	case string:
		return pyString(x)
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < 1e15 {
			return strconv.FormatInt(int64(x), 10)
		}
		return strconv.FormatFloat(x, 'g', -1, 64)
	case float32:
		return PyLiteral(float64(x))
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", x)
	case json.Number:
		return x.String()
	case []string:
		parts := make([]string, len(x))
		for i, s := range x {
			parts[i] = pyString(s)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case []any:
		parts := make([]string, len(x))
		for i, item := range x {
			parts[i] = PyLiteral(item)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case map[string]any:
		keys := sortedKeys(x)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = pyString(k) + ": " + PyLiteral(x[k])
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		return pyString(fmt.Sprintf("%v", x))
	}
}

// PyKwargs renders the non-nil entries of args as sorted keyword arguments.
// Keys that are not Python identifiers are skipped.
func PyKwargs(args map[string]any) string {
	keys := sortedKeys(args)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		if args[k] == nil || !IsIdentifier(k) {
			continue
		}
		parts = append(parts, k+"="+PyLiteral(args[k]))
	}
	return strings.Join(parts, ", ")
}

// IsIdentifier reports whether s is an ASCII identifier: a letter or
// underscore followed by letters, digits or underscores.
func IsIdentifier(s string) bool {
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

func pyString(s string) string {
	// JSON string escapes are valid Python string escapes.
	b, _ := json.Marshal(s)
	return string(b)
}

func jsonLiteral(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
