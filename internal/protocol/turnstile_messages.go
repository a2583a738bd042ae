package protocol

// TurnstileStatus is the payload of one of the three protocol-emitting
// status commands (WaitingRotation/RotationCompleted/RotationTimeout):
//
//	DD+REON+<cmd>]<card?>]<ts>]<dir>]<reader>]
//
// CardNumber is empty for events not tied to a specific card (e.g. an
// anonymous rotation timeout) — this is exactly the positional-empty case
// Open Question #1 calls out: the parser must receive fields straight from
// Message.RawFields (or, for these three commands, Message.Fields, which
// already preserves empties — see CommandCode.HasPositionalFields).
type TurnstileStatus struct {
	Command    CommandCode
	CardNumber string
	Timestamp  Timestamp
	Direction  AccessDirection
	Reader     ReaderType
}

// ParseTurnstileStatus parses the positional fields of a status message.
// fields must be the raw, unfiltered token list (Message.RawFields(), or
// equivalently Message.Fields for a message whose Command already reports
// HasPositionalFields()).
func ParseTurnstileStatus(command CommandCode, fields []string) (TurnstileStatus, error) {
	if !command.HasPositionalFields() {
		return TurnstileStatus{}, &InvalidCommandError{Literal: command.String()}
	}
	if len(fields) < 4 {
		return TurnstileStatus{}, &MissingFieldError{Index: len(fields), What: "turnstile status requires 4 fields"}
	}

	card := fields[0] // may legitimately be empty

	ts, err := ParseTimestamp(fields[1])
	if err != nil {
		return TurnstileStatus{}, err
	}

	if len(fields[2]) != 1 {
		return TurnstileStatus{}, &InvalidDirectionError{Code: 0}
	}
	dir, err := ParseAccessDirection(fields[2][0])
	if err != nil {
		return TurnstileStatus{}, err
	}

	if len(fields[3]) != 1 {
		return TurnstileStatus{}, &InvalidReaderTypeError{Code: 0}
	}
	reader, err := ParseReaderType(fields[3][0])
	if err != nil {
		return TurnstileStatus{}, err
	}

	return TurnstileStatus{Command: command, CardNumber: card, Timestamp: ts, Direction: dir, Reader: reader}, nil
}

// ToMessage renders the status as a Message with its card field possibly
// empty.
func (s TurnstileStatus) ToMessage(deviceID DeviceID) (Message, error) {
	b := NewMessageBuilder(deviceID, s.Command)
	for _, v := range []string{s.CardNumber, s.Timestamp.Format(), s.Direction.WireCode(), s.Reader.WireCode()} {
		if err := b.AddField(v); err != nil {
			return Message{}, err
		}
	}
	return b.Build(), nil
}
