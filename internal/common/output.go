package common

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// WriteOutput marshals v as yaml (the default) or json.
func WriteOutput(w io.Writer, v interface{}, format string) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(format) {
	case "", "yaml", "yml":
		data, err = yaml.Marshal(v)
	case "json":
		data, err = json.MarshalIndent(v, "", "  ")
		data = append(data, '\n')
	default:
		return fmt.Errorf("unknown output format %q (want yaml or json)", format)
	}
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	_, err = w.Write(data)
	return err
}
