package protocol

import (
	"strconv"
	"strings"
)

const (
	minCardLength = 3
	maxCardLength = 20
	// maxFieldLength bounds every AccessRequest field to resist DoS from
	// adversarial input before any further validation runs.
	maxFieldLength = 256
	minPinLength   = 4
	maxPinLength   = 8
)

// AccessDirection is the direction a user intends to pass through a
// turnstile.
type AccessDirection int

const (
	DirectionUndefined AccessDirection = 0
	DirectionEntry     AccessDirection = 1
	DirectionExit      AccessDirection = 2
)

// ParseAccessDirection resolves a wire direction code.
func ParseAccessDirection(code byte) (AccessDirection, error) {
	switch code {
	case '0':
		return DirectionUndefined, nil
	case '1':
		return DirectionEntry, nil
	case '2':
		return DirectionExit, nil
	default:
		return 0, &InvalidDirectionError{Code: code}
	}
}

func (d AccessDirection) String() string {
	switch d {
	case DirectionEntry:
		return "Entry"
	case DirectionExit:
		return "Exit"
	default:
		return "Undefined"
	}
}

// WireCode renders the direction as its single wire digit.
func (d AccessDirection) WireCode() string {
	return strconv.Itoa(int(d))
}

// ReaderType is the kind of credential reader that produced an
// AccessRequest.
type ReaderType int

const (
	ReaderRFID ReaderType = iota
	ReaderBiometric
	ReaderKeypad
)

// ParseReaderType resolves a wire reader-type code. Both 0 (legacy) and 1
// (modern) map to RFID; 5 maps to Biometric; 2 maps to Keypad.
func ParseReaderType(code byte) (ReaderType, error) {
	switch code {
	case '0', '1':
		return ReaderRFID, nil
	case '5':
		return ReaderBiometric, nil
	case '2':
		return ReaderKeypad, nil
	default:
		return 0, &InvalidReaderTypeError{Code: code}
	}
}

func (r ReaderType) String() string {
	switch r {
	case ReaderBiometric:
		return "Biometric"
	case ReaderKeypad:
		return "Keypad"
	default:
		return "RFID"
	}
}

// WireCode renders the reader type as its wire digit.
func (r ReaderType) WireCode() string {
	switch r {
	case ReaderBiometric:
		return "5"
	case ReaderKeypad:
		return "2"
	default:
		return "1"
	}
}

// NormalizeCardNumber trims and uppercases a card number and validates its
// length (3-20 ASCII characters).
func NormalizeCardNumber(raw string) (string, error) {
	if len(raw) > maxFieldLength {
		return "", &InvalidCardFormatError{Reason: "field exceeds maximum length"}
	}
	card := strings.ToUpper(strings.TrimSpace(raw))
	if len(card) < minCardLength || len(card) > maxCardLength {
		return "", &InvalidCardFormatError{Reason: "card number must be 3-20 characters"}
	}
	for i := 0; i < len(card); i++ {
		if card[i] > 0x7f {
			return "", &InvalidCardFormatError{Reason: "card number must be ASCII"}
		}
	}
	return card, nil
}

// AccessRequest is a validated access attempt reported by a turnstile.
// PIN is only meaningful when Reader is ReaderKeypad.
type AccessRequest struct {
	CardNumber string
	Timestamp  Timestamp
	Direction  AccessDirection
	Reader     ReaderType
	PIN        string
}

// NormalizePin validates a keypad PIN is 4-8 ASCII digits.
func NormalizePin(raw string) (string, error) {
	if len(raw) < minPinLength || len(raw) > maxPinLength {
		return "", &InvalidMessageFormatError{Message: "pin must be 4-8 digits"}
	}
	for i := 0; i < len(raw); i++ {
		if raw[i] < '0' || raw[i] > '9' {
			return "", &InvalidMessageFormatError{Message: "pin must be numeric"}
		}
	}
	return raw, nil
}

// ParseAccessRequest parses the positional fields of an AccessRequest
// command (card, timestamp, direction, reader type, and — for a keypad
// reader only — a fifth PIN field).
func ParseAccessRequest(fields []string) (AccessRequest, error) {
	if len(fields) < 4 {
		return AccessRequest{}, &MissingFieldError{Index: len(fields), What: "access request requires 4 fields"}
	}
	for _, f := range fields[:4] {
		if len(f) > maxFieldLength {
			return AccessRequest{}, &InvalidMessageFormatError{Message: "field exceeds maximum length"}
		}
	}

	card, err := NormalizeCardNumber(fields[0])
	if err != nil {
		return AccessRequest{}, err
	}
	ts, err := ParseTimestamp(fields[1])
	if err != nil {
		return AccessRequest{}, err
	}
	if len(fields[2]) != 1 {
		return AccessRequest{}, &InvalidDirectionError{Code: 0}
	}
	dir, err := ParseAccessDirection(fields[2][0])
	if err != nil {
		return AccessRequest{}, err
	}
	if len(fields[3]) != 1 {
		return AccessRequest{}, &InvalidReaderTypeError{Code: 0}
	}
	reader, err := ParseReaderType(fields[3][0])
	if err != nil {
		return AccessRequest{}, err
	}

	request := AccessRequest{CardNumber: card, Timestamp: ts, Direction: dir, Reader: reader}
	if reader == ReaderKeypad {
		if len(fields) < 5 {
			return AccessRequest{}, &MissingFieldError{Index: 4, What: "keypad access request requires a pin field"}
		}
		pin, err := NormalizePin(fields[4])
		if err != nil {
			return AccessRequest{}, err
		}
		request.PIN = pin
	}
	return request, nil
}

// ToMessage renders the request as an AccessRequest Message addressed to
// deviceID, appending the PIN field for keypad-origin requests.
func (r AccessRequest) ToMessage(deviceID DeviceID) (Message, error) {
	if r.Reader == ReaderKeypad {
		return NewMessage(deviceID, CommandAccessRequest,
			r.CardNumber, r.Timestamp.Format(), r.Direction.WireCode(), r.Reader.WireCode(), r.PIN)
	}
	return NewMessage(deviceID, CommandAccessRequest,
		r.CardNumber, r.Timestamp.Format(), r.Direction.WireCode(), r.Reader.WireCode())
}

// AccessDecision is the validator's grant/deny outcome.
type AccessDecision int

const (
	DecisionGrantEntry AccessDecision = iota
	DecisionGrantExit
	DecisionGrantBoth
	DecisionDeny
)

// CommandCode returns the single CommandCode a decision maps to.
func (d AccessDecision) CommandCode() CommandCode {
	switch d {
	case DecisionGrantEntry:
		return CommandGrantEntry
	case DecisionGrantExit:
		return CommandGrantExit
	case DecisionGrantBoth:
		return CommandGrantBoth
	default:
		return CommandDeny
	}
}

func (d AccessDecision) String() string {
	switch d {
	case DecisionGrantEntry:
		return "GrantEntry"
	case DecisionGrantExit:
		return "GrantExit"
	case DecisionGrantBoth:
		return "GrantBoth"
	default:
		return "Deny"
	}
}

// DecisionForDirection maps a request direction to the grant decision a
// successful validation returns (Undefined grants both directions).
func DecisionForDirection(dir AccessDirection) AccessDecision {
	switch dir {
	case DirectionEntry:
		return DecisionGrantEntry
	case DirectionExit:
		return DecisionGrantExit
	default:
		return DecisionGrantBoth
	}
}

// AccessResponse is the validator's reply to an AccessRequest.
type AccessResponse struct {
	Decision       AccessDecision
	TimeoutSeconds uint8
	Message        string
}

// ToMessage renders the response as a Message: field 0 is the display
// timeout in seconds, field 1 is the display message.
func (r AccessResponse) ToMessage(deviceID DeviceID) (Message, error) {
	return NewMessage(deviceID, r.Decision.CommandCode(),
		strconv.Itoa(int(r.TimeoutSeconds)), r.Message)
}

// ParseAccessResponse builds an AccessResponse from a decoded Message.
// Field 0 carries the timeout and field 1 the display message; if only one
// field is present it is treated as the message with a zero timeout.
func ParseAccessResponse(msg Message) (AccessResponse, error) {
	var decision AccessDecision
	switch msg.Command {
	case CommandGrantEntry:
		decision = DecisionGrantEntry
	case CommandGrantExit:
		decision = DecisionGrantExit
	case CommandGrantBoth:
		decision = DecisionGrantBoth
	case CommandDeny:
		decision = DecisionDeny
	default:
		return AccessResponse{}, &InvalidCommandError{Literal: msg.Command.String()}
	}

	fields := msg.Fields
	switch len(fields) {
	case 0:
		return AccessResponse{Decision: decision}, nil
	case 1:
		return AccessResponse{Decision: decision, Message: fields[0].String()}, nil
	default:
		timeout, err := strconv.Atoi(fields[0].String())
		if err != nil || timeout < 0 || timeout > 255 {
			return AccessResponse{}, &InvalidMessageFormatError{Message: "invalid display timeout"}
		}
		return AccessResponse{Decision: decision, TimeoutSeconds: uint8(timeout), Message: fields[1].String()}, nil
	}
}
