package protocol

// CommandCode is a closed enumeration over the Henry command identifiers.
// Each variant maps to a fixed ASCII literal; parsing rejects any literal
// outside this set.
type CommandCode int

const (
	// CommandUnknown is never produced by a successful parse; it exists
	// only so zero-valued CommandCode is an obviously-invalid sentinel.
	CommandUnknown CommandCode = iota
	CommandAccessRequest
	CommandGrantEntry
	CommandGrantExit
	CommandGrantBoth
	CommandDeny
	CommandQueryStatus
	CommandWaitingRotation
	CommandRotationCompleted
	CommandRotationTimeout
	CommandSendConfig
	CommandSendCards
)

// commandLiterals is the authoritative mapping between CommandCode and its
// on-wire ASCII literal. GrantExit's literal ("00+6") is fixed by the
// worked example in the protocol scenarios; the remaining grant/deny
// literals are chosen to sit in the same "00+N" namespace since the
// distilled spec does not pin them down.
var commandLiterals = map[CommandCode]string{
	CommandAccessRequest:     "000+0",
	CommandGrantEntry:        "00+5",
	CommandGrantExit:         "00+6",
	CommandGrantBoth:         "00+7",
	CommandDeny:              "00+8",
	CommandQueryStatus:       "RQ",
	CommandWaitingRotation:   "000+80",
	CommandRotationCompleted: "000+81",
	CommandRotationTimeout:   "000+82",
	CommandSendConfig:        "000+90",
	CommandSendCards:         "000+91",
}

var literalToCommand = func() map[string]CommandCode {
	m := make(map[string]CommandCode, len(commandLiterals))
	for code, literal := range commandLiterals {
		m[literal] = code
	}
	return m
}()

// Literal returns the fixed ASCII literal for the command, or "" if c is
// not a recognized CommandCode.
func (c CommandCode) Literal() string {
	return commandLiterals[c]
}

// String renders the command for logging purposes.
func (c CommandCode) String() string {
	if lit, ok := commandLiterals[c]; ok {
		return lit
	}
	return "UNKNOWN"
}

// ParseCommandCode resolves a wire literal to its CommandCode. Anything
// outside the closed enumeration is rejected.
func ParseCommandCode(literal string) (CommandCode, error) {
	code, ok := literalToCommand[literal]
	if !ok {
		return CommandUnknown, &InvalidCommandError{Literal: literal}
	}
	return code, nil
}

// HasPositionalFields reports whether a command's fields must retain empty
// tokens (rather than having them filtered out by frame-to-message
// conversion). Only the three protocol-emitting turnstile status commands
// rely on positional fields; see Open Question #1 in spec.md/SPEC_FULL.md.
func (c CommandCode) HasPositionalFields() bool {
	switch c {
	case CommandWaitingRotation, CommandRotationCompleted, CommandRotationTimeout:
		return true
	default:
		return false
	}
}
