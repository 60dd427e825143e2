// Package params turns command-line and file input into named SQL parameters.
//
// A flag has the form name=value, where value may carry a type prefix:
//
//	id=int:42
//	ratio=float:0.5
//	title=text:hello     (or simply title=hello)
//	payload=blob:deadbeef
//	missing=null
//
// Parameter files are YAML mappings. Scalars keep their YAML type (!!int,
// !!float, !!str, !!null, !!bool as 0/1), and !!binary scalars become blobs.
package params

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/GamePad64/lvsqlite3/internal/sqlite"
)

// ParseFlag parses one name=value flag.
func ParseFlag(flag string) (string, sqlite.Value, error) {
	name, raw, ok := strings.Cut(flag, "=")
	if !ok || name == "" {
		return "", sqlite.Value{}, fmt.Errorf("parameter %q: expected name=value", flag)
	}
	if raw == "null" {
		return name, sqlite.Null(), nil
	}

	kind, payload, typed := strings.Cut(raw, ":")
	if !typed {
		return name, sqlite.Text(raw), nil
	}

	switch kind {
	case "int":
		n, err := strconv.ParseInt(payload, 10, 64)
		if err != nil {
			return "", sqlite.Value{}, fmt.Errorf("parameter %q: %w", name, err)
		}
		return name, sqlite.Int64(n), nil
	case "float":
		f, err := strconv.ParseFloat(payload, 64)
		if err != nil {
			return "", sqlite.Value{}, fmt.Errorf("parameter %q: %w", name, err)
		}
		return name, sqlite.Double(f), nil
	case "text":
		return name, sqlite.Text(payload), nil
	case "blob":
		b, err := hex.DecodeString(payload)
		if err != nil {
			return "", sqlite.Value{}, fmt.Errorf("parameter %q: invalid hex: %w", name, err)
		}
		return name, sqlite.Blob(b), nil
	default:
		// Not a known type prefix: the colon is part of the text.
		return name, sqlite.Text(raw), nil
	}
}

// ParseFlags parses every flag into one Params. A repeated name is an error.
func ParseFlags(flags []string) (sqlite.Params, error) {
	out := make(sqlite.Params, len(flags))
	for _, f := range flags {
		name, v, err := ParseFlag(f)
		if err != nil {
			return nil, err
		}
		if _, dup := out[name]; dup {
			return nil, fmt.Errorf("parameter %q given more than once", name)
		}
		out[name] = v
	}
	return out, nil
}

// LoadFile reads a YAML parameter file.
func LoadFile(path string) (sqlite.Params, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read params file: %w", err)
	}
	return Decode(data)
}

// Decode parses a YAML mapping of parameter name to scalar value.
func Decode(data []byte) (sqlite.Params, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse params: %w", err)
	}
	out := sqlite.Params{}
	if len(doc.Content) == 0 {
		return out, nil
	}

	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("params must be a mapping (line %d)", root.Line)
	}
	for i := 0; i+1 < len(root.Content); i += 2 {
		key, val := root.Content[i], root.Content[i+1]
		v, err := scalarValue(val)
		if err != nil {
			return nil, fmt.Errorf("parameter %q (line %d): %w", key.Value, val.Line, err)
		}
		out[key.Value] = v
	}
	return out, nil
}

func scalarValue(n *yaml.Node) (sqlite.Value, error) {
	if n.Kind != yaml.ScalarNode {
		return sqlite.Value{}, fmt.Errorf("expected a scalar")
	}

	switch n.ShortTag() {
	case "!!null":
		return sqlite.Null(), nil
	case "!!int":
		var i int64
		if err := n.Decode(&i); err != nil {
			return sqlite.Value{}, err
		}
		return sqlite.Int64(i), nil
	case "!!float":
		var f float64
		if err := n.Decode(&f); err != nil {
			return sqlite.Value{}, err
		}
		return sqlite.Double(f), nil
	case "!!bool":
		var b bool
		if err := n.Decode(&b); err != nil {
			return sqlite.Value{}, err
		}
		if b {
			return sqlite.Int64(1), nil
		}
		return sqlite.Int64(0), nil
	case "!!binary":
		b, err := base64.StdEncoding.DecodeString(strings.Join(strings.Fields(n.Value), ""))
		if err != nil {
			return sqlite.Value{}, fmt.Errorf("invalid base64: %w", err)
		}
		return sqlite.Blob(b), nil
	default:
		return sqlite.Text(n.Value), nil
	}
}
