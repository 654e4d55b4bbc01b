package document

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	errs "github.com/matzehuels/gearlayout/pkg/errors"
)

// Format is a serialization format for documents and solutions.
type Format string

// Supported formats.
const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// Formats lists the supported format names.
var Formats = []string{string(FormatJSON), string(FormatYAML), string(FormatTOML)}

// Stdin is the path that reads a JSON document from standard input.
const Stdin = "-"

// ParseFormat validates a format name. "yml" is accepted for YAML.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "json", "":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "toml":
		return FormatTOML, nil
	}
	return "", errs.ValidateFormat(s, Formats...)
}

// FormatFromPath picks the format from a file extension. Unknown extensions
// and stdin read as JSON.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	case ".toml":
		return FormatTOML
	}
	return FormatJSON
}

// Marshal encodes v in the given format. JSON output is indented.
func Marshal(v any, format Format) ([]byte, error) {
	switch format {
	case FormatYAML:
		return yaml.Marshal(v)
	case FormatTOML:
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(v); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	default:
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(data, '\n'), nil
	}
}

// Unmarshal decodes data into v.
func Unmarshal(data []byte, format Format, v any) error {
	switch format {
	case FormatYAML:
		return yaml.Unmarshal(data, v)
	case FormatTOML:
		return toml.Unmarshal(data, v)
	default:
		return json.Unmarshal(data, v)
	}
}

// Parse decodes a document and applies defaults. It does not validate.
func Parse(data []byte, format Format) (*Document, error) {
	var d Document
	if err := Unmarshal(data, format, &d); err != nil {
		return nil, errs.Wrap(errs.ErrCodeInvalidDocument, err, "parse %s document", format)
	}
	d.SetDefaults()
	return &d, nil
}

// Read parses a document from r.
func Read(r io.Reader, format Format) (*Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return Parse(data, format)
}

// ReadFile reads a document from path, or from stdin when path is "-".
func ReadFile(path string) (*Document, error) {
	if path == Stdin {
		return Read(os.Stdin, FormatJSON)
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, errs.Wrap(errs.ErrCodeFileNotFound, err, "read %s", path)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return Parse(data, FormatFromPath(path))
}

// WriteFile encodes v using the format implied by path.
func WriteFile(path string, v any) error {
	data, err := Marshal(v, FormatFromPath(path))
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
