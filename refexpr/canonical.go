package refexpr

import (
	"bytes"
	"encoding/json"
	"math"
	"sort"
	"strconv"
)

// Canonicalize round-trips x through JSON and produces deterministic
// bytes suitable for fingerprinting: object keys sorted
// lexicographically, numbers normalized (integral float64 values
// written without a trailing ".0"), and no redundant whitespace.
//
// Canonicalizing an already-canonical value is the identity.
func Canonicalize(x interface{}) ([]byte, error) {
	js, err := json.Marshal(x)
	if err != nil {
		return nil, err
	}
	var y interface{}
	if err := json.Unmarshal(js, &y); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := writeCanonical(&buf, y); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeCanonical(buf *bytes.Buffer, x interface{}) error {
	switch v := x.(type) {
	case nil:
		buf.WriteString("null")
	case bool:
		if v {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case float64:
		writeNumber(buf, v)
	case string:
		js, err := json.Marshal(v)
		if err != nil {
			return err
		}
		buf.Write(js)
	case []interface{}:
		buf.WriteByte('[')
		for i, el := range v {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonical(buf, el); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case map[string]interface{}:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kjs, err := json.Marshal(k)
			if err != nil {
				return err
			}
			buf.Write(kjs)
			buf.WriteByte(':')
			if err := writeCanonical(buf, v[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		js, err := json.Marshal(v)
		if err != nil {
			return err
		}
		buf.Write(js)
	}
	return nil
}

// writeNumber normalizes a JSON number: integers that are losslessly
// representable are written without a fractional part.
func writeNumber(buf *bytes.Buffer, f float64) {
	if f == math.Trunc(f) && !math.IsInf(f, 0) && math.Abs(f) < 1e15 {
		buf.WriteString(strconv.FormatInt(int64(f), 10))
		return
	}
	buf.WriteString(strconv.FormatFloat(f, 'g', -1, 64))
}
