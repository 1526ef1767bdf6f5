// File: internal/synth/merge.go
package synth

import (
	"fmt"

	"dario.cat/mergo"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// mergeJSON merges the synthesizer's owned keys over an existing JSON
// document. Keys the synthesizer does not own are preserved untouched;
// owned keys are overwritten. The output is stable: std-compatible
// marshalling sorts object keys, so identical inputs yield identical bytes.
func mergeJSON(existing []byte, owned map[string]any) ([]byte, error) {
	var current map[string]any
	if err := json.Unmarshal(existing, &current); err != nil {
		return nil, fmt.Errorf("existing document is not a JSON object: %w", err)
	}
	if current == nil {
		current = map[string]any{}
	}
	if err := mergo.Merge(&current, owned, mergo.WithOverride); err != nil {
		return nil, fmt.Errorf("merging owned keys: %w", err)
	}
	return marshalJSON(current)
}

// marshalJSON renders a config object with the indentation and trailing
// newline every emitted JSON artifact uses.
func marshalJSON(doc map[string]any) ([]byte, error) {
	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(out, '\n'), nil
}
