// Package scanner reads single top level fields out of a JSON payload without
// unmarshalling it, so feed decoders can route a frame before paying for a full decode.
//
// The scan is textual: it finds the first occurrence of the quoted key, so it is only
// meant for discriminator fields whose key does not appear earlier in the payload.
package scanner

import "bytes"

// StringField returns the raw string value of key. Escapes are not processed.
func StringField(payload []byte, key string) ([]byte, bool) {
	i, ok := valueStart(payload, key)
	if !ok || payload[i] != '"' {
		return nil, false
	}
	i++
	end := bytes.IndexByte(payload[i:], '"')
	if end < 0 {
		return nil, false
	}
	return payload[i : i+end], true
}

// IntField returns the integer value of key. A quoted integer is accepted too, since
// some venues send numbers as strings.
func IntField(payload []byte, key string) (int64, bool) {
	i, ok := valueStart(payload, key)
	if !ok {
		return 0, false
	}
	if payload[i] == '"' {
		i++
	}
	neg := false
	if i < len(payload) && payload[i] == '-' {
		neg = true
		i++
	}
	if i >= len(payload) || !isDigit(payload[i]) {
		return 0, false
	}
	var v int64
	for i < len(payload) && isDigit(payload[i]) {
		v = v*10 + int64(payload[i]-'0')
		i++
	}
	if neg {
		v = -v
	}
	return v, true
}

// HasField reports whether key appears as an object key.
func HasField(payload []byte, key string) bool {
	_, ok := valueStart(payload, key)
	return ok
}

// Equal reports whether the string value of key equals want.
func Equal(payload []byte, key, want string) bool {
	v, ok := StringField(payload, key)
	return ok && string(v) == want
}

func valueStart(payload []byte, key string) (int, bool) {
	quoted := make([]byte, 0, len(key)+2)
	quoted = append(quoted, '"')
	quoted = append(quoted, key...)
	quoted = append(quoted, '"')

	offset := 0
	for {
		idx := bytes.Index(payload[offset:], quoted)
		if idx < 0 {
			return 0, false
		}
		i := offset + idx + len(quoted)
		for i < len(payload) && isSpace(payload[i]) {
			i++
		}
		if i < len(payload) && payload[i] == ':' {
			i++
			for i < len(payload) && isSpace(payload[i]) {
				i++
			}
			if i >= len(payload) {
				return 0, false
			}
			return i, true
		}
		// matched a string value, not a key
		offset = i
	}
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}
