package scenario

import (
	"encoding/json"
	"fmt"
)

// JSONFormatter formats a comparison set as indented JSON for
// downstream tooling.
type JSONFormatter struct{}

// Format renders the comparison set to JSON.
func (jf *JSONFormatter) Format(compSet *ComparisonSet) (string, error) {
	data, err := json.MarshalIndent(compSet, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode comparison set: %w", err)
	}
	return string(data) + "\n", nil
}
