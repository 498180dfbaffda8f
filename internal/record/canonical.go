package record

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"golang.org/x/text/unicode/norm"
)

// CanonicalPayload re-serializes an opaque JSON payload into a canonical
// form: object keys sorted, no HTML escaping, numbers kept verbatim via
// json.Number. This is the only serialization used for payload digests, so
// two replicas that stored the same fields in different key order still
// compare content-equal.
//
// A nil or empty payload canonicalizes to nil.
func CanonicalPayload(payload json.RawMessage) ([]byte, error) {
	if len(payload) == 0 {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}

	var buf bytes.Buffer
	if err := writeCanonical(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeCanonical(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case nil:
		buf.WriteString("null")
		return nil
	case bool:
		if val {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
		return nil
	case json.Number:
		buf.WriteString(val.String())
		return nil
	case string:
		return writeCanonicalString(buf, val)
	case []any:
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonical(buf, elem); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
		return nil
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
			if err := writeCanonicalString(buf, k); err != nil {
				return err
			}
			buf.WriteByte(':')
			if err := writeCanonical(buf, val[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
		return nil
	default:
		return fmt.Errorf("unsupported type in payload: %T", v)
	}
}

// writeCanonicalString writes a JSON string without HTML escaping.
// Strings are NFC normalized at the serialization boundary so the two
// replicas, which may store the same name with different composed forms,
// digest identically. strconv.Quote escapes per Go rules which match JSON
// for the characters payloads carry; control characters are escaped,
// < > & are not.
func writeCanonicalString(buf *bytes.Buffer, s string) error {
	quoted := strconv.Quote(norm.NFC.String(s))
	buf.WriteString(quoted)
	return nil
}
