package protocol

import (
	"fmt"
	"strings"
)

const protocolTag = "REON"

// Message is one parsed Henry protocol PDU: a device id, a command code,
// an ordered list of field values, and an optional out-of-band checksum.
//
// Fields preserves insertion order. rawFields additionally retains every
// token produced while splitting the payload's field section, including
// empty tokens that Fields has filtered out — positional-field commands
// (see CommandCode.HasPositionalFields) must re-parse from RawFields
// rather than from Fields.
type Message struct {
	DeviceID  DeviceID
	Command   CommandCode
	Fields    []FieldData
	Checksum  *string
	rawFields []string
}

// RawFields returns the unfiltered field tokens, in order, including any
// empty entries produced by adjacent "]]" delimiters or other state-machine
// needs. Commands whose positional fields carry meaning in "emptiness"
// (WaitingRotation/RotationCompleted/RotationTimeout) must use this instead
// of Fields.
func (m Message) RawFields() []string {
	return m.rawFields
}

// MessageBuilder accumulates validated fields in order before producing a
// Message. Validation happens at each AddField call.
type MessageBuilder struct {
	deviceID DeviceID
	command  CommandCode
	fields   []FieldData
	checksum *string
}

// NewMessageBuilder starts an accumulator for a message with the given
// device id and command.
func NewMessageBuilder(deviceID DeviceID, command CommandCode) *MessageBuilder {
	return &MessageBuilder{deviceID: deviceID, command: command}
}

// AddField validates and appends a field, preserving call order.
func (b *MessageBuilder) AddField(value string) error {
	f, err := NewFieldData(value)
	if err != nil {
		return err
	}
	b.fields = append(b.fields, f)
	return nil
}

// AddFieldUnchecked appends a pre-validated field without re-validating it.
func (b *MessageBuilder) AddFieldUnchecked(f FieldData) {
	b.fields = append(b.fields, f)
}

// WithChecksum attaches a checksum string to the built message.
func (b *MessageBuilder) WithChecksum(checksum string) *MessageBuilder {
	b.checksum = &checksum
	return b
}

// Build produces the accumulated Message.
func (b *MessageBuilder) Build() Message {
	raw := make([]string, len(b.fields))
	for i, f := range b.fields {
		raw[i] = f.String()
	}
	return Message{
		DeviceID:  b.deviceID,
		Command:   b.command,
		Fields:    append([]FieldData(nil), b.fields...),
		Checksum:  b.checksum,
		rawFields: raw,
	}
}

// NewMessage builds a Message directly from already-validated field
// strings, rejecting any field containing a reserved delimiter.
func NewMessage(deviceID DeviceID, command CommandCode, fields ...string) (Message, error) {
	b := NewMessageBuilder(deviceID, command)
	for _, f := range fields {
		if err := b.AddField(f); err != nil {
			return Message{}, err
		}
	}
	return b.Build(), nil
}

// Payload renders the message to the on-wire payload string (the content
// between STX and ETX, or the whole frame if unframed). A trailing "]" is
// emitted whenever at least one field is present.
func (m Message) Payload() string {
	var b strings.Builder
	b.WriteString(m.DeviceID.String())
	b.WriteByte('+')
	b.WriteString(protocolTag)
	b.WriteByte('+')
	b.WriteString(m.Command.Literal())
	for _, f := range m.Fields {
		b.WriteByte(']')
		b.WriteString(f.String())
	}
	if len(m.Fields) > 0 {
		b.WriteByte(']')
	}
	return b.String()
}

// ParseMessage parses a payload string (device+REON+command[]field]*[]]?)
// into a Message. Fields is the filtered field list (empty tokens removed)
// except positional commands keep them; RawFields always preserves every
// token regardless of command.
func ParseMessage(payload string) (Message, error) {
	header, fieldsPart, hasFields := splitHeaderAndFields(payload)

	parts := strings.SplitN(header, "+", 3)
	if len(parts) < 2 || parts[1] != protocolTag {
		return Message{}, &InvalidMessageFormatError{Message: fmt.Sprintf("expected <device>+%s+<command>, got %q", protocolTag, payload)}
	}

	deviceID, err := ParseDeviceID(parts[0])
	if err != nil {
		return Message{}, err
	}

	commandLiteral := ""
	if len(parts) == 3 {
		commandLiteral = parts[2]
	}
	command, err := ParseCommandCode(commandLiteral)
	if err != nil {
		return Message{}, err
	}

	var rawTokens []string
	if hasFields {
		rawTokens = splitFieldTokens(fieldsPart)
	}

	fields := rawTokens
	if !command.HasPositionalFields() {
		fields = filterEmpty(rawTokens)
	}

	fieldData := make([]FieldData, 0, len(fields))
	for _, tok := range fields {
		fieldData = append(fieldData, NewFieldDataUnchecked(tok))
	}

	return Message{
		DeviceID:  deviceID,
		Command:   command,
		Fields:    fieldData,
		rawFields: rawTokens,
	}, nil
}

// splitHeaderAndFields separates "device+REON+command" from the
// "]field]field]..." section. hasFields is false only when the payload
// contains no "]" at all (a command with zero fields and no trailing
// delimiter, e.g. "15+REON+RQ").
func splitHeaderAndFields(payload string) (header, fieldsPart string, hasFields bool) {
	idx := strings.IndexByte(payload, ']')
	if idx < 0 {
		return payload, "", false
	}
	return payload[:idx], payload[idx+1:], true
}

// splitFieldTokens splits the field section on "]", dropping exactly one
// trailing empty token produced by an optional trailing "]" — but
// preserving any other empty tokens, which represent genuine empty fields
// (adjacent "]]").
func splitFieldTokens(fieldsPart string) []string {
	tokens := strings.Split(fieldsPart, "]")
	if len(tokens) > 0 && tokens[len(tokens)-1] == "" {
		tokens = tokens[:len(tokens)-1]
	}
	return tokens
}

func filterEmpty(tokens []string) []string {
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}
