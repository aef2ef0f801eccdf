/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: value.go
Description: Helpers for comparing and converting element values.
*/

package dom

import (
	"bytes"
	"strconv"
	"strings"
)

// ToInt64 converts a numeric (or decimal string) value
func ToInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		return int64(n), true
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(n), 0, 64)
		return i, err == nil
	}
	return 0, false
}

// ToUint64 converts a numeric value to its two's complement bit pattern
func ToUint64(v any) (uint64, bool) {
	switch n := v.(type) {
	case uint:
		return uint64(n), true
	case uint8:
		return uint64(n), true
	case uint16:
		return uint64(n), true
	case uint32:
		return uint64(n), true
	case uint64:
		return n, true
	case string:
		if u, err := strconv.ParseUint(strings.TrimSpace(n), 0, 64); err == nil {
			return u, true
		}
	}
	i, ok := ToInt64(v)
	return uint64(i), ok
}

// ValuesEqual compares a cracked value with a declared one. Numbers compare by
// bit pattern so a declared 255 matches a cracked uint8 0xFF.
func ValuesEqual(cracked, declared any) bool {
	switch c := cracked.(type) {
	case []byte:
		switch d := declared.(type) {
		case []byte:
			return bytes.Equal(c, d)
		case string:
			return string(c) == d
		}
		return false
	case string:
		switch d := declared.(type) {
		case string:
			return c == d
		case []byte:
			return c == string(d)
		}
		return false
	}

	cu, ok := ToUint64(cracked)
	if !ok {
		return false
	}
	du, ok := ToUint64(declared)
	return ok && cu == du
}
