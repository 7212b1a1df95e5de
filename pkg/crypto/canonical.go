// Package crypto provides the primitives every DCP artifact depends on:
// canonical JSON, SHA-256 digests and Merkle roots, and detached Ed25519
// signatures over canonical bytes.
package crypto

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"regexp"
	"sort"
	"strconv"
)

// ErrCanonicalize is returned when a value has no canonical JSON form.
var ErrCanonicalize = errors.New("canonicalization failed")

// integerLiteral matches JSON number tokens that carry no fraction or exponent.
var integerLiteral = regexp.MustCompile(`^-?(0|[1-9][0-9]*)$`)

// Canonicalize returns the canonical JSON encoding of v: object keys sorted
// byte-wise at every level, no insignificant whitespace, no HTML escaping.
//
// v may be anything encoding/json can marshal, including json.RawMessage.
// Struct values are projected through their json tags first, so a struct and
// the map decoded from its JSON canonicalize to the same bytes.
//
// Numbers are pinned to one text form: integer literals are kept as written
// (with -0 folded to 0); every other number is written as the shortest
// round-trip decimal without exponent or trailing zeros.
func Canonicalize(v any) ([]byte, error) {
	generic, err := toGeneric(v)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := writeCanonical(&buf, generic); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// toGeneric projects v onto the JSON data model (map[string]any, []any,
// string, json.Number, bool, nil).
func toGeneric(v any) (any, error) {
	var data []byte
	switch val := v.(type) {
	case json.RawMessage:
		data = val
	default:
		var err error
		data, err = json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCanonicalize, err)
		}
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCanonicalize, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("%w: trailing data after JSON value", ErrCanonicalize)
	}
	return out, nil
}

func writeCanonical(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case nil:
		buf.WriteString("null")
	case bool:
		if val {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case string:
		writeString(buf, val)
	case json.Number:
		s, err := formatNumber(val)
		if err != nil {
			return err
		}
		buf.WriteString(s)
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeString(buf, k)
			buf.WriteByte(':')
			if err := writeCanonical(buf, val[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	case []any:
		buf.WriteByte('[')
		for i, item := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonical(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	default:
		return fmt.Errorf("%w: unsupported type %T", ErrCanonicalize, v)
	}
	return nil
}

// writeString writes s as a JSON string. Only '"', '\\' and control
// characters are escaped; everything else, U+2028 and U+2029 included, is
// written as raw UTF-8.
func writeString(buf *bytes.Buffer, s string) {
	const hex = "0123456789abcdef"

	buf.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			buf.WriteString(`\"`)
		case '\\':
			buf.WriteString(`\\`)
		case '\b':
			buf.WriteString(`\b`)
		case '\f':
			buf.WriteString(`\f`)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case '\t':
			buf.WriteString(`\t`)
		default:
			if r < 0x20 {
				buf.WriteString(`\u00`)
				buf.WriteByte(hex[r>>4])
				buf.WriteByte(hex[r&0xf])
				continue
			}
			buf.WriteRune(r)
		}
	}
	buf.WriteByte('"')
}

func formatNumber(n json.Number) (string, error) {
	s := n.String()
	if integerLiteral.MatchString(s) {
		if s == "-0" {
			return "0", nil
		}
		return s, nil
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return "", fmt.Errorf("%w: number %q is out of range", ErrCanonicalize, s)
	}
	if f == 0 {
		return "0", nil
	}
	return strconv.FormatFloat(f, 'f', -1, 64), nil
}
