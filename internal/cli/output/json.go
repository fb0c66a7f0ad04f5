// Package output provides output formatting for the pathnet CLI.
package output

import (
	"encoding/json"
	"io"
)

// JSONFormatter formats data as JSON.
type JSONFormatter struct {
	// Compact disables indentation, one document per line.
	Compact bool
}

// Format writes data as JSON followed by a newline.
func (f *JSONFormatter) Format(w io.Writer, data any) error {
	encoder := json.NewEncoder(w)
	if !f.Compact {
		encoder.SetIndent("", "  ")
	}
	return encoder.Encode(data)
}
