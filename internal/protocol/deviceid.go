package protocol

import (
	"fmt"
	"strconv"
)

const (
	minDeviceID = 1
	maxDeviceID = 99
)

// DeviceID identifies a turnstile on the wire. It is always rendered as a
// two-digit zero-padded decimal. NewDeviceID and ParseDeviceID validate the
// 1-99 range; a direct conversion such as DeviceID(n) is not checked, and
// the zero value is out of range.
type DeviceID uint8

// NewDeviceID validates id and returns the corresponding DeviceID.
func NewDeviceID(id int) (DeviceID, error) {
	if id < minDeviceID || id > maxDeviceID {
		return 0, &InvalidDeviceIDError{Value: strconv.Itoa(id)}
	}
	return DeviceID(id), nil
}

// ParseDeviceID parses the two-digit wire representation of a device id.
func ParseDeviceID(s string) (DeviceID, error) {
	if len(s) == 0 {
		return 0, &InvalidDeviceIDError{Value: s}
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, &InvalidDeviceIDError{Value: s}
	}
	return NewDeviceID(n)
}

// Value returns the raw numeric id.
func (d DeviceID) Value() int { return int(d) }

// String renders the device id as a two-digit zero-padded decimal.
func (d DeviceID) String() string {
	return fmt.Sprintf("%02d", uint8(d))
}
