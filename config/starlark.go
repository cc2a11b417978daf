package config

import (
	"encoding/json"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// starlarkToJSON executes a configuration script and encodes its globals
// as a JSON object. Globals that have no JSON form, such as functions, are
// skipped.
func starlarkToJSON(name string, src []byte) ([]byte, error) {
	thread := starlark.Thread{Name: "config"}
	opts := syntax.FileOptions{}

	globals, err := starlark.ExecFileOptions(&opts, &thread, name, src, nil)
	if err != nil {
		return nil, err
	}

	values := make(map[string]any, len(globals))
	for key, value := range globals {
		if v, ok := toGo(value); ok {
			values[key] = v
		}
	}

	return json.Marshal(values)
}

func toGo(value starlark.Value) (any, bool) {
	switch v := value.(type) {
	case starlark.NoneType:
		return nil, true
	case starlark.Bool:
		return bool(v), true
	case starlark.Int:
		i, ok := v.Int64()
		return i, ok
	case starlark.Float:
		return float64(v), true
	case starlark.String:
		return string(v), true
	case starlark.Indexable: // list, tuple
		out := make([]any, v.Len())
		for i := range out {
			item, ok := toGo(v.Index(i))
			if !ok {
				return nil, false
			}
			out[i] = item
		}
		return out, true
	case *starlark.Dict:
		out := make(map[string]any, v.Len())
		for _, item := range v.Items() {
			key, ok := item[0].(starlark.String)
			if !ok {
				return nil, false
			}
			val, ok := toGo(item[1])
			if !ok {
				return nil, false
			}
			out[string(key)] = val
		}
		return out, true
	default:
		return nil, false
	}
}
