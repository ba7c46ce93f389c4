// Package serialization converts work item parameter bags to and from the JSON stored in ledger rows.
package serialization

import (
	"encoding/json"

	"github.com/tigerroll/matchday/pkg/batch/support/util/exception"
)

const module = "serialization"

// MarshalParams serializes a parameter bag. A nil bag becomes "{}".
func MarshalParams(params map[string]interface{}) (string, error) {
	if params == nil {
		return "{}", nil
	}
	data, err := json.Marshal(params)
	if err != nil {
		return "", exception.NewBatchError(module, "failed to serialize work item parameters", err, false, false)
	}
	return string(data), nil
}

// UnmarshalParams deserializes a parameter bag. Empty input yields an empty map.
func UnmarshalParams(data string) (map[string]interface{}, error) {
	params := make(map[string]interface{})
	if data == "" {
		return params, nil
	}
	if err := json.Unmarshal([]byte(data), &params); err != nil {
		return nil, exception.NewBatchError(module, "failed to deserialize work item parameters", err, false, false)
	}
	return params, nil
}
