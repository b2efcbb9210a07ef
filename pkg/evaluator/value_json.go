package evaluator

import (
	"encoding/json"
)

// ValueToJSON marshals a Value to JSON bytes. "No value" becomes null.
func ValueToJSON(v Value) ([]byte, error) {
	return json.Marshal(valueToRaw(v))
}

func valueToRaw(v Value) any {
	switch val := v.(type) {
	case Int:
		return val.Value
	case Str:
		return val.Value
	case Bool:
		return val.Value
	}
	return nil
}

// ScopeToJSON marshals the variables declared directly in s as a JSON object
// with keys in sorted order.
func ScopeToJSON(s *Scope) ([]byte, error) {
	return json.Marshal(&orderedScope{scope: s})
}

// orderedScope keeps sorted key order in JSON output.
type orderedScope struct {
	scope *Scope
}

func (o *orderedScope) MarshalJSON() ([]byte, error) {
	names := o.scope.Names()
	if len(names) == 0 {
		return []byte("{}"), nil
	}

	buf := []byte{'{'}
	for i, name := range names {
		if i > 0 {
			buf = append(buf, ',')
		}
		keyBytes, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		buf = append(buf, keyBytes...)
		buf = append(buf, ':')

		v, _ := o.scope.Lookup(name)
		valBytes, err := ValueToJSON(v.Value)
		if err != nil {
			return nil, err
		}
		buf = append(buf, valBytes...)
	}
	buf = append(buf, '}')
	return buf, nil
}

// ScopeValues returns the variables declared directly in s as plain Go values
// (int32, string, bool).
func ScopeValues(s *Scope) map[string]any {
	out := make(map[string]any, len(s.vars))
	for name, v := range s.vars {
		out[name] = valueToRaw(v.Value)
	}
	return out
}
