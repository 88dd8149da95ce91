package decode

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Record is a normalized document: canonical field name to coerced value.
// Values are string, int, float64, bool, []string, map[string]string,
// Record or []Record.
type Record map[string]any

// Normalize maps a decoded JSON tree onto d. It either returns a record
// holding every field of d or a *Failure; never both.
func Normalize(doc any, d *Descriptor) (Record, error) {
	if d == nil {
		return nil, errors.New("decode: nil descriptor")
	}
	m, ok := doc.(map[string]any)
	if !ok {
		return nil, &Failure{
			Kind:  UnsupportedValueShape,
			Field: "$",
			Err:   fmt.Errorf("root is %s, want object", typeName(doc)),
		}
	}
	return normalizeObject(m, d, "")
}

func normalizeObject(m map[string]any, d *Descriptor, prefix string) (Record, error) {
	rec := make(Record, len(d.fields))
	for i := range d.fields {
		f := &d.fields[i]
		path := joinPath(prefix, f.Name)
		raw, found := resolve(m, f)
		if !found {
			if f.Required {
				return nil, &Failure{Kind: MissingRequiredField, Field: path, Keys: sortedKeys(m)}
			}
			rec[f.Name] = cloneValue(f.zero)
			continue
		}
		v, err := coerce(raw, f, path)
		if err != nil {
			return nil, err
		}
		rec[f.Name] = v
	}
	return rec, nil
}

// resolve applies the lookup priority: exact key, aliases in order, nested
// paths in order. A JSON null counts as absent.
func resolve(m map[string]any, f *compiledField) (any, bool) {
	if v := m[f.Name]; v != nil {
		return v, true
	}
	for _, a := range f.Aliases {
		if v := m[a]; v != nil {
			return v, true
		}
	}
	for _, segs := range f.paths {
		matches := walk(m, segs, nil)
		if len(matches) == 0 {
			continue
		}
		if !f.Shape.IsList() {
			return matches[0], true
		}
		var flat []any
		for _, mv := range matches {
			if list, ok := mv.([]any); ok {
				flat = append(flat, list...)
			} else {
				flat = append(flat, mv)
			}
		}
		return flat, true
	}
	return nil, false
}

func walk(node any, segs []segment, out []any) []any {
	if node == nil {
		return out
	}
	if len(segs) == 0 {
		return append(out, node)
	}
	m, ok := node.(map[string]any)
	if !ok {
		return out
	}
	next := m[segs[0].key]
	if next == nil {
		return out
	}
	if segs[0].each {
		if list, ok := next.([]any); ok {
			for _, el := range list {
				out = walk(el, segs[1:], out)
			}
			return out
		}
	}
	return walk(next, segs[1:], out)
}

func coerce(v any, f *compiledField, path string) (any, error) {
	switch f.Shape {
	case ShapeString:
		return toString(v, f.SubKey, path)
	case ShapeInt:
		return toInt(v, path)
	case ShapeNumber:
		return toNumber(v, path)
	case ShapeBool:
		return toBool(v, path)
	case ShapeStringList:
		return toStringList(v, f.SubKey, path)
	case ShapeStringMap:
		return toStringMap(v, f.Keys, path)
	case ShapeObject:
		m, ok := v.(map[string]any)
		if !ok {
			if r, isRec := v.(Record); isRec {
				m = map[string]any(r)
			} else {
				return nil, unsupported(path, v, "object")
			}
		}
		return normalizeObject(m, f.Item, path)
	case ShapeObjectList:
		return toRecordList(v, f.Item, path)
	}
	return nil, unsupported(path, v, f.Shape.String())
}

func toString(v any, subKey, path string) (string, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), nil
	case int:
		return strconv.Itoa(x), nil
	case bool:
		return strconv.FormatBool(x), nil
	case map[string]any:
		if subKey == "" {
			return "", unsupported(path, v, "string")
		}
		sub, ok := x[subKey]
		if !ok || sub == nil {
			return "", nil
		}
		if _, nested := sub.(map[string]any); nested {
			return "", unsupported(path+"."+subKey, sub, "string")
		}
		return toString(sub, "", path+"."+subKey)
	}
	return "", unsupported(path, v, "string")
}

func toInt(v any, path string) (int, error) {
	switch x := v.(type) {
	case int:
		return x, nil
	case float64:
		if x == math.Trunc(x) && !math.IsInf(x, 0) && math.Abs(x) <= math.MaxInt32 {
			return int(x), nil
		}
	case string:
		s := numericText(x)
		if n, err := strconv.Atoi(s); err == nil {
			return n, nil
		}
		if fl, err := strconv.ParseFloat(s, 64); err == nil && fl == math.Trunc(fl) && math.Abs(fl) <= math.MaxInt32 {
			return int(fl), nil
		}
	}
	return 0, unsupported(path, v, "int")
}

func toNumber(v any, path string) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case int:
		return float64(x), nil
	case string:
		if fl, err := strconv.ParseFloat(numericText(x), 64); err == nil && !math.IsNaN(fl) && !math.IsInf(fl, 0) {
			return fl, nil
		}
	}
	return 0, unsupported(path, v, "number")
}

// numericText trims blanks and a trailing percent sign ("30 %" -> "30").
func numericText(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "%")
	return strings.TrimSpace(s)
}

func toBool(v any, path string) (bool, error) {
	switch x := v.(type) {
	case bool:
		return x, nil
	case string:
		if b, err := strconv.ParseBool(strings.ToLower(strings.TrimSpace(x))); err == nil {
			return b, nil
		}
	}
	return false, unsupported(path, v, "bool")
}

func toStringList(v any, subKey, path string) ([]string, error) {
	switch x := v.(type) {
	case []string:
		return append([]string{}, x...), nil
	case []any:
		out := make([]string, 0, len(x))
		for i, el := range x {
			if el == nil {
				continue
			}
			s, err := toString(el, subKey, fmt.Sprintf("%s[%d]", path, i))
			if err != nil {
				return nil, err
			}
			out = append(out, s)
		}
		return out, nil
	}
	return nil, unsupported(path, v, "string_list")
}

func toStringMap(v any, keys []string, path string) (map[string]string, error) {
	var src map[string]any
	switch x := v.(type) {
	case map[string]any:
		src = x
	case map[string]string:
		src = make(map[string]any, len(x))
		for k, s := range x {
			src[k] = s
		}
	default:
		return nil, unsupported(path, v, "string_map")
	}

	// Keys already in lower case win over case variants of the same key.
	names := sortedKeys(src)
	sort.SliceStable(names, func(i, j int) bool {
		return names[i] == strings.ToLower(names[i]) && names[j] != strings.ToLower(names[j])
	})
	out := make(map[string]string, len(src))
	for _, k := range names {
		lk := strings.ToLower(strings.TrimSpace(k))
		if _, seen := out[lk]; seen || src[k] == nil {
			continue
		}
		s, err := toString(src[k], "", path+"."+k)
		if err != nil {
			return nil, err
		}
		out[lk] = s
	}
	if len(keys) == 0 {
		return out, nil
	}
	canon := make(map[string]string, len(keys))
	for _, k := range keys {
		canon[k] = out[k]
	}
	return canon, nil
}

func toRecordList(v any, item *Descriptor, path string) ([]Record, error) {
	switch x := v.(type) {
	case []Record:
		out := make([]Record, 0, len(x))
		for i, r := range x {
			rec, err := normalizeObject(map[string]any(r), item, fmt.Sprintf("%s[%d]", path, i))
			if err != nil {
				return nil, err
			}
			out = append(out, rec)
		}
		return out, nil
	case []any:
		out := make([]Record, 0, len(x))
		for i, el := range x {
			elPath := fmt.Sprintf("%s[%d]", path, i)
			m, ok := el.(map[string]any)
			if !ok {
				return nil, unsupported(elPath, el, "object")
			}
			rec, err := normalizeObject(m, item, elPath)
			if err != nil {
				return nil, err
			}
			out = append(out, rec)
		}
		return out, nil
	}
	return nil, unsupported(path, v, "object_list")
}

func unsupported(path string, v any, want string) *Failure {
	return &Failure{
		Kind:  UnsupportedValueShape,
		Field: path,
		Err:   fmt.Errorf("got %s, want %s", typeName(v), want),
	}
}

func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case float64, int:
		return "number"
	case bool:
		return "bool"
	case []any, []string, []Record:
		return "array"
	case map[string]any, Record, map[string]string:
		return "object"
	}
	return fmt.Sprintf("%T", v)
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func joinPath(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}

func cloneValue(v any) any {
	switch x := v.(type) {
	case []string:
		return append([]string{}, x...)
	case map[string]string:
		out := make(map[string]string, len(x))
		for k, s := range x {
			out[k] = s
		}
		return out
	case Record:
		out := make(Record, len(x))
		for k, fv := range x {
			out[k] = cloneValue(fv)
		}
		return out
	case []Record:
		out := make([]Record, len(x))
		for i, r := range x {
			out[i] = cloneValue(r).(Record)
		}
		return out
	}
	return v
}
