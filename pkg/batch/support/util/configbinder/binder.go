// Package configbinder converts loosely typed property bags into typed structs and back.
// Work item parameters are persisted as JSON maps and bound to per-kind parameter structs
// right before a fetch.
package configbinder

import (
	"fmt"
	"reflect"

	"github.com/mitchellh/mapstructure"
)

// BindProperties binds properties to target using `yaml` tags.
// Weak typing is enabled so values that went through JSON ("42", 42.0) land in int fields.
func BindProperties(properties map[string]interface{}, target interface{}) error {
	if len(properties) == 0 {
		return nil
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		TagName:          "yaml",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return fmt.Errorf("failed to create mapstructure decoder: %w", err)
	}

	if err := decoder.Decode(properties); err != nil {
		targetType := reflect.TypeOf(target)
		if targetType.Kind() == reflect.Ptr {
			targetType = targetType.Elem()
		}
		return fmt.Errorf("failed to bind properties to struct %s: %w", targetType.Name(), err)
	}
	return nil
}

// ToProperties is the inverse of BindProperties: it flattens a struct into a map keyed by `yaml` tags.
func ToProperties(source interface{}) (map[string]interface{}, error) {
	props := make(map[string]interface{})
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  &props,
		TagName: "yaml",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create mapstructure decoder: %w", err)
	}
	if err := decoder.Decode(source); err != nil {
		return nil, fmt.Errorf("failed to convert %T to properties: %w", source, err)
	}
	return props, nil
}
