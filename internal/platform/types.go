package platform

import (
	"encoding/json"
	"errors"
	"strconv"
)

// FlexString is a custom string type that handles the platform's dynamic
// typing. The API returns `false` (boolean) for empty text fields instead of
// an empty string. This type implements json.Unmarshaler to handle both.
type FlexString string

// UnmarshalJSON handles dynamic typing from the platform
func (fs *FlexString) UnmarshalJSON(data []byte) error {
	// 1. Try string
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*fs = FlexString(s)
		return nil
	}

	// 2. Try boolean (the platform returns false for empty strings)
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		if !b {
			*fs = ""
			return nil
		}
		*fs = "true"
		return nil
	}

	return errors.New("FlexString: cannot unmarshal value into string")
}

// String returns native string value
func (fs FlexString) String() string {
	return string(fs)
}

// FlexFloat is a numeric field the platform may encode as a float, a numeric
// string ("9.0000"), or `false` when the value is absent (stock tracking
// disabled). Valid is false for the `false` case.
type FlexFloat struct {
	Val   float64
	Valid bool
}

// UnmarshalJSON handles dynamic typing from the platform
func (ff *FlexFloat) UnmarshalJSON(data []byte) error {
	// 1. Try number
	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		ff.Val = f
		ff.Valid = true
		return nil
	}

	// 2. Try numeric string
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return errors.New("FlexFloat: string value is not numeric: " + s)
		}
		ff.Val = parsed
		ff.Valid = true
		return nil
	}

	// 3. Try boolean false (absent value)
	var b bool
	if err := json.Unmarshal(data, &b); err == nil && !b {
		ff.Valid = false
		return nil
	}

	return errors.New("FlexFloat: cannot unmarshal value into float")
}

// Ptr returns the value as *float64, nil when absent.
func (ff FlexFloat) Ptr() *float64 {
	if !ff.Valid {
		return nil
	}
	v := ff.Val
	return &v
}
