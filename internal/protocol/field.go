package protocol

import "strings"

// reservedDelimiters are the bytes that would break Henry protocol framing
// if they appeared inside a field value.
const reservedDelimiters = "]+["

// FieldData is a byte-safe string guaranteed not to contain any of the
// protocol's reserved delimiters (]  +  [). Construction validates; the
// only bypass is NewFieldDataUnchecked, intended for compile-time
// constants that are known not to need validation.
type FieldData struct {
	value string
}

// NewFieldData validates value and wraps it as FieldData.
func NewFieldData(value string) (FieldData, error) {
	if strings.ContainsAny(value, reservedDelimiters) {
		return FieldData{}, &InvalidFieldFormatError{Value: value}
	}
	return FieldData{value: value}, nil
}

// NewFieldDataUnchecked wraps value without validating it. Use only for
// values known at compile time to be free of reserved delimiters.
func NewFieldDataUnchecked(value string) FieldData {
	return FieldData{value: value}
}

// String returns the field's underlying text.
func (f FieldData) String() string { return f.value }
