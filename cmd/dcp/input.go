package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// readDocument loads a JSON or YAML document ("-" reads stdin as JSON) and
// returns it as JSON.
func readDocument(cmd *cobra.Command, path string) (json.RawMessage, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		doc, err := yamlToJSON(data)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		return doc, nil
	}

	if !json.Valid(data) {
		return nil, fmt.Errorf("failed to parse %s: invalid JSON", path)
	}
	return json.RawMessage(data), nil
}

func yamlToJSON(data []byte) (json.RawMessage, error) {
	var v any
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	out, err := json.Marshal(jsonCompatible(v))
	if err != nil {
		return nil, err
	}
	return json.RawMessage(out), nil
}

// jsonCompatible rewrites YAML-only shapes (non-string keys, timestamps)
// into their JSON equivalents.
func jsonCompatible(v any) any {
	switch val := v.(type) {
	case map[string]any:
		for k, e := range val {
			val[k] = jsonCompatible(e)
		}
		return val
	case map[any]any:
		m := make(map[string]any, len(val))
		for k, e := range val {
			m[fmt.Sprint(k)] = jsonCompatible(e)
		}
		return m
	case []any:
		for i, e := range val {
			val[i] = jsonCompatible(e)
		}
		return val
	case time.Time:
		return val.UTC().Format(time.RFC3339Nano)
	default:
		return v
	}
}

// decodeObject decodes a JSON document into a generic object, keeping
// number literals intact.
func decodeObject(doc json.RawMessage) (map[string]any, error) {
	var obj map[string]any
	dec := json.NewDecoder(bytes.NewReader(doc))
	dec.UseNumber()
	if err := dec.Decode(&obj); err != nil || obj == nil {
		return nil, fmt.Errorf("document must be a JSON object")
	}
	return obj, nil
}

// unwrapBundle returns the inner bundle when doc is a signed envelope.
func unwrapBundle(doc map[string]any) map[string]any {
	if _, signed := doc["signature"]; !signed {
		return doc
	}
	if inner, ok := doc["bundle"].(map[string]any); ok {
		return inner
	}
	return doc
}

// readKeyText reads a key file and trims surrounding whitespace.
func readKeyText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read key file: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

func writeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	encoder.SetEscapeHTML(false)
	return encoder.Encode(v)
}
