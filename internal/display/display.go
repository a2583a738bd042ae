// Package display implements the virtual LCD a turnstile emulator shows
// to the person passing through it: a fixed lines x columns ASCII buffer,
// alignment, temporary messages with expiry, and a direct mapping from
// turnstile.State to the two lines it shows.
package display

import (
	"strings"
	"time"

	"github.com/henrycontrol/turnkey/internal/turnstile"
)

// DefaultLines and DefaultColumns match the standard Henry LCD.
const (
	DefaultLines   = 2
	DefaultColumns = 40
)

// Alignment controls how text is positioned within a line's column width.
type Alignment int

const (
	AlignLeft Alignment = iota
	AlignCenter
	AlignRight
)

// InvalidLineError reports an out-of-range line index.
type InvalidLineError struct {
	Line int
	Max  int
}

func (e *InvalidLineError) Error() string {
	return "display: line index out of range"
}

// Display is a virtual LCD: a fixed-size ASCII buffer with alignment,
// temporary messages, and state-machine-driven content. Not safe for
// concurrent use — display belongs to the turnstile actor that owns it.
type Display struct {
	lines          int
	columns        int
	buffer         []string
	defaultMessage string

	temporaryText   string
	temporaryActive bool
	temporaryUntil  time.Time
}

// New constructs a Display showing defaultMessage centered on line 0.
func New(lines, columns int, defaultMessage string) *Display {
	d := &Display{lines: lines, columns: columns, defaultMessage: defaultMessage}
	d.buffer = make([]string, lines)
	for i := range d.buffer {
		d.buffer[i] = strings.Repeat(" ", columns)
	}
	if defaultMessage != "" {
		d.buffer[0] = alignText(defaultMessage, columns, AlignCenter)
	}
	return d
}

// NewDefault constructs a Display with the standard 2x40 Henry geometry.
func NewDefault(defaultMessage string) *Display {
	return New(DefaultLines, DefaultColumns, defaultMessage)
}

// SetLine sets a line's text, left-aligned.
func (d *Display) SetLine(line int, text string) error {
	return d.SetLineAligned(line, text, AlignLeft)
}

// SetLineAligned sets a line's text with the given alignment, after
// stripping control characters.
func (d *Display) SetLineAligned(line int, text string, align Alignment) error {
	if line < 0 || line >= d.lines {
		return &InvalidLineError{Line: line, Max: d.lines - 1}
	}
	d.buffer[line] = alignText(sanitizeText(text), d.columns, align)
	return nil
}

// SetLines sets both of the first two lines, left-aligned.
func (d *Display) SetLines(line1, line2 string) error {
	if err := d.SetLine(0, line1); err != nil {
		return err
	}
	return d.SetLine(1, line2)
}

// ShowTemporary centers text on line 0, clears line 1, and arms an
// expiry; Update reverts to the default message once duration elapses.
func (d *Display) ShowTemporary(text string, duration time.Duration) error {
	if duration <= 0 {
		return &InvalidLineError{Line: 0, Max: d.lines - 1}
	}
	sanitized := sanitizeText(text)
	d.temporaryText = sanitized
	d.temporaryActive = true
	d.temporaryUntil = time.Now().Add(duration)
	if err := d.SetLineAligned(0, sanitized, AlignCenter); err != nil {
		return err
	}
	return d.SetLine(1, "")
}

// Update checks for an expired temporary message and, if one has
// expired, reverts to the default message. Returns true if the display
// content changed.
func (d *Display) Update() bool {
	if d.temporaryActive && !time.Now().Before(d.temporaryUntil) {
		d.temporaryActive = false
		d.ResetToDefault()
		return true
	}
	return false
}

// Clear fills every line with spaces and cancels any temporary message.
func (d *Display) Clear() {
	for i := range d.buffer {
		d.buffer[i] = strings.Repeat(" ", d.columns)
	}
	d.temporaryActive = false
}

// ResetToDefault clears the display and re-shows the default message,
// centered on line 0.
func (d *Display) ResetToDefault() {
	d.Clear()
	if d.defaultMessage != "" {
		d.buffer[0] = alignText(d.defaultMessage, d.columns, AlignCenter)
	}
}

// UpdateFromState renders the two-line message a turnstile.State shows on
// the physical display, centered.
func (d *Display) UpdateFromState(state turnstile.State) {
	var line1, line2 string
	switch state {
	case turnstile.Idle:
		line1, line2 = d.defaultMessage, ""
	case turnstile.Reading:
		line1, line2 = "AGUARDE...", "Lendo credencial"
	case turnstile.Validating:
		line1, line2 = "VALIDANDO...", "Aguarde resposta"
	case turnstile.Granted:
		line1, line2 = "ACESSO LIBERADO", ""
	case turnstile.Denied:
		line1, line2 = "ACESSO NEGADO", ""
	case turnstile.WaitingRotation:
		line1, line2 = "PASSE PELA CATRACA", ""
	case turnstile.RotationInProgress:
		line1, line2 = "GIRANDO...", ""
	case turnstile.RotationCompleted:
		line1, line2 = "OBRIGADO", ""
	case turnstile.RotationTimeout:
		line1, line2 = "TEMPO ESGOTADO", ""
	}
	_ = d.SetLineAligned(0, line1, AlignCenter)
	_ = d.SetLineAligned(1, line2, AlignCenter)
}

// Line returns one line's padded content.
func (d *Display) Line(line int) (string, error) {
	if line < 0 || line >= d.lines {
		return "", &InvalidLineError{Line: line, Max: d.lines - 1}
	}
	return d.buffer[line], nil
}

// Lines returns every line's padded content.
func (d *Display) Lines() []string {
	out := make([]string, len(d.buffer))
	copy(out, d.buffer)
	return out
}

// IsDefault reports whether the display currently shows the default
// message with no active temporary message.
func (d *Display) IsDefault() bool {
	if d.temporaryActive {
		return false
	}
	return strings.TrimSpace(d.buffer[0]) == d.defaultMessage
}

// truncateText truncates text to at most maxChars runes.
func truncateText(text string, maxChars int) string {
	runes := []rune(text)
	if len(runes) <= maxChars {
		return text
	}
	return string(runes[:maxChars])
}

// alignText pads or truncates text to exactly width runes.
func alignText(text string, width int, align Alignment) string {
	count := len([]rune(text))
	if count >= width {
		return truncateText(text, width)
	}
	padding := width - count
	switch align {
	case AlignRight:
		return strings.Repeat(" ", padding) + text
	case AlignCenter:
		left := padding / 2
		right := padding - left
		return strings.Repeat(" ", left) + text + strings.Repeat(" ", right)
	default:
		return text + strings.Repeat(" ", padding)
	}
}

// sanitizeText strips control characters (keeping plain spaces) and
// trims the result.
func sanitizeText(text string) string {
	var b strings.Builder
	for _, r := range text {
		if r == ' ' || !isControl(r) {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

func isControl(r rune) bool {
	return r < 0x20 || r == 0x7f
}
