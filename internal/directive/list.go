package directive

import (
	"errors"
	"fmt"
	"sort"

	"github.com/goccy/go-yaml"
)

var (
	ErrListMustBeSequence = errors.New("directive list must be a sequence")
	ErrTaskMustBeMapping  = errors.New("directive list item must be a mapping")
)

// Entry is one directive invocation: a directive name and its raw data.
type Entry struct {
	Name string
	Data any
}

// Task is one item of a directive list. A mapping with several keys yields
// several entries, dispatched in document order.
type Task []Entry

// List is an ordered directive list.
type List []Task

// NewTask builds a single-entry task.
func NewTask(name string, data any) Task {
	return Task{{Name: name, Data: data}}
}

// ParseList converts decoded configuration into a List. Mappings decoded as
// yaml.MapSlice keep their key order; plain Go maps are ordered by key.
func ParseList(v any) (List, error) {
	items, ok := v.([]any)
	if !ok {
		if v == nil {
			return nil, nil
		}
		return nil, fmt.Errorf("%w, got %T", ErrListMustBeSequence, v)
	}

	list := make(List, 0, len(items))
	for i, item := range items {
		task, err := parseTask(item)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		list = append(list, task)
	}
	return list, nil
}

func parseTask(v any) (Task, error) {
	switch m := v.(type) {
	case yaml.MapSlice:
		task := make(Task, 0, len(m))
		for _, item := range m {
			task = append(task, Entry{Name: fmt.Sprint(item.Key), Data: item.Value})
		}
		return task, nil
	case map[string]any:
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		task := make(Task, 0, len(m))
		for _, k := range keys {
			task = append(task, Entry{Name: k, Data: m[k]})
		}
		return task, nil
	default:
		return nil, fmt.Errorf("%w, got %T", ErrTaskMustBeMapping, v)
	}
}

// Raw converts a List back into the []any form ParseList accepts.
func (l List) Raw() []any {
	out := make([]any, 0, len(l))
	for _, task := range l {
		m := make(yaml.MapSlice, 0, len(task))
		for _, e := range task {
			m = append(m, yaml.MapItem{Key: e.Name, Value: e.Data})
		}
		out = append(out, m)
	}
	return out
}

// AsMap returns v as a string-keyed map if it is any kind of mapping.
// Only the top level is converted.
func AsMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case yaml.MapSlice:
		out := make(map[string]any, len(m))
		for _, item := range m {
			out[fmt.Sprint(item.Key)] = item.Value
		}
		return out, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, val := range m {
			out[fmt.Sprint(k)] = val
		}
		return out, true
	default:
		return nil, false
	}
}

// Plain recursively converts every mapping in v to map[string]any, so the
// value can be handed to encoders that don't know yaml.MapSlice.
func Plain(v any) any {
	switch t := v.(type) {
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = Plain(item)
		}
		return out
	default:
		m, ok := AsMap(v)
		if !ok {
			return v
		}
		out := make(map[string]any, len(m))
		for k, item := range m {
			out[k] = Plain(item)
		}
		return out
	}
}

// IsEmpty reports whether a configuration value is absent: nil, an empty
// string, an empty sequence or an empty mapping.
func IsEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case []any:
		return len(t) == 0
	default:
		if m, ok := AsMap(v); ok {
			return len(m) == 0
		}
		return false
	}
}
