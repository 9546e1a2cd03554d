// Package jsonutil provides lenient JSON decoding for heterogeneous source
// feeds. Listing exports are inconsistent about types: prices arrive as
// numbers or numeric strings, counts as floats, flags as strings. The Flex
// types coerce those shapes while still rejecting genuinely unparseable
// values, so a bad field corrupts its row instead of silently becoming zero.
package jsonutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// FlexFloat decodes a JSON number, a numeric string, or null. The empty
// string is treated as null. Anything else is a decode error.
type FlexFloat struct {
	Value float64
	Valid bool
}

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexFloat) UnmarshalJSON(raw []byte) error {
	f.Value, f.Valid = 0, false
	if isNull(raw) {
		return nil
	}

	var num float64
	if err := json.Unmarshal(raw, &num); err == nil {
		f.Value, f.Valid = num, true
		return nil
	}

	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		str = strings.TrimSpace(str)
		if str == "" {
			return nil
		}
		num, err := strconv.ParseFloat(str, 64)
		if err != nil {
			return fmt.Errorf("cannot parse %q as number", str)
		}
		f.Value, f.Valid = num, true
		return nil
	}

	return fmt.Errorf("cannot parse %s as number", raw)
}

// Ptr returns the value as a nullable pointer.
func (f FlexFloat) Ptr() *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Value
	return &v
}

// FlexInt decodes a JSON integer, a float with no fractional part, a numeric
// string, or null.
type FlexInt struct {
	Value int64
	Valid bool
}

// UnmarshalJSON implements json.Unmarshaler.
func (i *FlexInt) UnmarshalJSON(raw []byte) error {
	var f FlexFloat
	if err := f.UnmarshalJSON(raw); err != nil {
		return err
	}
	if !f.Valid {
		i.Value, i.Valid = 0, false
		return nil
	}
	if f.Value != float64(int64(f.Value)) {
		return fmt.Errorf("cannot parse %s as integer", raw)
	}
	i.Value, i.Valid = int64(f.Value), true
	return nil
}

// Ptr returns the value as a nullable *int.
func (i FlexInt) Ptr() *int {
	if !i.Valid {
		return nil
	}
	v := int(i.Value)
	return &v
}

// FlexString decodes a JSON string, number, boolean, or null. Values are
// trimmed; the empty string is equivalent to null.
type FlexString struct {
	Value string
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *FlexString) UnmarshalJSON(raw []byte) error {
	s.Value = ""
	if isNull(raw) {
		return nil
	}

	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		s.Value = strings.TrimSpace(str)
		return nil
	}

	var num float64
	if err := json.Unmarshal(raw, &num); err == nil {
		if num == float64(int64(num)) {
			s.Value = strconv.FormatInt(int64(num), 10)
		} else {
			s.Value = strconv.FormatFloat(num, 'g', -1, 64)
		}
		return nil
	}

	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		s.Value = strconv.FormatBool(b)
		return nil
	}

	return fmt.Errorf("cannot parse %s as string", raw)
}

// FlexStringSlice decodes a JSON array of strings. A missing or null field
// decodes to an empty slice rather than nil, per the coercion contract.
// Scalar elements are coerced the way FlexString coerces them; a bare scalar
// becomes a one-element list, which some exports emit.
type FlexStringSlice []string

// UnmarshalJSON implements json.Unmarshaler.
func (s *FlexStringSlice) UnmarshalJSON(raw []byte) error {
	*s = []string{}
	if isNull(raw) {
		return nil
	}

	var elems []FlexString
	if err := json.Unmarshal(raw, &elems); err != nil {
		var single FlexString
		if err := json.Unmarshal(raw, &single); err != nil {
			return fmt.Errorf("cannot parse %s as string array", raw)
		}
		elems = []FlexString{single}
	}

	out := make([]string, 0, len(elems))
	for _, e := range elems {
		if e.Value != "" {
			out = append(out, e.Value)
		}
	}
	*s = out
	return nil
}

func isNull(raw []byte) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
