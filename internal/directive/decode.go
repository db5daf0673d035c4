package directive

import (
	"fmt"
	"os"
	"reflect"
	"sort"

	"github.com/go-viper/mapstructure/v2"
	"github.com/goccy/go-yaml"
)

var mapSliceType = reflect.TypeOf(yaml.MapSlice{})

// mapSliceHook lets ordered mappings decode into structs and maps while
// fields typed `any` keep the original yaml.MapSlice and its key order.
func mapSliceHook(from, to reflect.Type, data any) (any, error) {
	if from != mapSliceType || to.Kind() == reflect.Interface || to == mapSliceType {
		return data, nil
	}
	m, _ := AsMap(data)
	return m, nil
}

// Decode decodes a mapping into out using mapstructure tags and returns the
// keys that matched no field, sorted.
func Decode(input any, out any) ([]string, error) {
	var md mapstructure.Metadata
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapSliceHook,
		Result:           out,
		Metadata:         &md,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(input); err != nil {
		return nil, err
	}
	sort.Strings(md.Unused)
	return md.Unused, nil
}

// LoadFile reads a YAML or JSON directive file, keeping mapping order.
func LoadFile(path string) (List, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading directive file %s: %w", path, err)
	}

	var raw any
	if err := yaml.UnmarshalWithOptions(data, &raw, yaml.UseOrderedMap()); err != nil {
		return nil, fmt.Errorf("parsing directive file %s: %w", path, err)
	}

	list, err := ParseList(raw)
	if err != nil {
		return nil, fmt.Errorf("directive file %s: %w", path, err)
	}
	return list, nil
}
