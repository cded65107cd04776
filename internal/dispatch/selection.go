package dispatch

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Selection is the body of a dispatch request: {"source": "group|leaf"}.
type Selection struct {
	Source string `json:"source"`
}

// ParseSelection extracts the address from a request body. The body is
// either a Selection object or the bare address text.
func ParseSelection(body []byte) (string, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var sel Selection
		if err := json.Unmarshal(trimmed, &sel); err != nil {
			return "", fmt.Errorf("decoding selection: %w", err)
		}
		trimmed = []byte(sel.Source)
	}
	address := strings.TrimSpace(string(trimmed))
	if address == "" {
		return "", ErrEmptyAddress
	}
	return address, nil
}
