package display

import (
	"testing"
	"time"

	"github.com/henrycontrol/turnkey/internal/turnstile"
)

func TestNewDisplayShowsDefaultMessageCentered(t *testing.T) {
	d := New(2, 40, "DIGITE SEU CODIGO")
	line, err := d.Line(0)
	if err != nil {
		t.Fatalf("Line(0): %v", err)
	}
	if got := trim(line); got != "DIGITE SEU CODIGO" {
		t.Fatalf("Line(0) trimmed = %q", got)
	}
}

func TestSetLineBasic(t *testing.T) {
	d := New(2, 40, "IDLE")
	if err := d.SetLine(0, "AGUARDE..."); err != nil {
		t.Fatalf("SetLine: %v", err)
	}
	line, _ := d.Line(0)
	if got := trimRight(line); got != "AGUARDE..." {
		t.Fatalf("got %q", got)
	}
}

func TestSetLineInvalidIndex(t *testing.T) {
	d := New(2, 40, "IDLE")
	if err := d.SetLine(5, "TEXT"); err == nil {
		t.Fatalf("expected InvalidLineError")
	}
}

func TestTextTruncationAt40Characters(t *testing.T) {
	d := New(2, 40, "IDLE")
	long := "This is a very long text that exceeds the 40 character limit of the display"
	if err := d.SetLine(0, long); err != nil {
		t.Fatalf("SetLine: %v", err)
	}
	line, _ := d.Line(0)
	if len(line) != 40 {
		t.Fatalf("expected length 40, got %d", len(line))
	}
	want := string([]rune(long)[:40])
	if line != want {
		t.Fatalf("unexpected truncation: %q, want %q", line, want)
	}
}

func TestAlignment(t *testing.T) {
	if got := alignText("HELLO", 10, AlignLeft); got != "HELLO     " {
		t.Fatalf("AlignLeft: %q", got)
	}
	if got := alignText("HELLO", 10, AlignCenter); got != "  HELLO   " {
		t.Fatalf("AlignCenter: %q", got)
	}
	if got := alignText("HELLO", 11, AlignCenter); got != "   HELLO   " {
		t.Fatalf("AlignCenter odd: %q", got)
	}
	if got := alignText("HELLO", 10, AlignRight); got != "     HELLO" {
		t.Fatalf("AlignRight: %q", got)
	}
}

func TestClearAndResetToDefault(t *testing.T) {
	d := New(2, 40, "DIGITE SEU CODIGO")
	_ = d.SetLine(0, "TEMPORARY")
	if d.IsDefault() {
		t.Fatalf("expected not default after SetLine")
	}
	d.ResetToDefault()
	if !d.IsDefault() {
		t.Fatalf("expected default after ResetToDefault")
	}
}

func TestTemporaryMessageExpiration(t *testing.T) {
	d := New(2, 40, "IDLE")
	if err := d.ShowTemporary("TEMPORARY", 30*time.Millisecond); err != nil {
		t.Fatalf("ShowTemporary: %v", err)
	}
	if d.IsDefault() {
		t.Fatalf("expected not default right after ShowTemporary")
	}

	time.Sleep(60 * time.Millisecond)
	if changed := d.Update(); !changed {
		t.Fatalf("expected Update to report a change after expiry")
	}
	if !d.IsDefault() {
		t.Fatalf("expected default after expiry")
	}
}

func TestTemporaryMessageZeroDurationRejected(t *testing.T) {
	d := New(2, 40, "IDLE")
	if err := d.ShowTemporary("TEXT", 0); err == nil {
		t.Fatalf("expected error for zero duration")
	}
}

func TestUpdateFromStateMapping(t *testing.T) {
	cases := []struct {
		state turnstile.State
		want  string
	}{
		{turnstile.Reading, "AGUARDE..."},
		{turnstile.Validating, "VALIDANDO..."},
		{turnstile.Granted, "ACESSO LIBERADO"},
		{turnstile.Denied, "ACESSO NEGADO"},
		{turnstile.WaitingRotation, "PASSE PELA CATRACA"},
		{turnstile.RotationInProgress, "GIRANDO..."},
		{turnstile.RotationCompleted, "OBRIGADO"},
		{turnstile.RotationTimeout, "TEMPO ESGOTADO"},
	}
	for _, c := range cases {
		d := New(2, 40, "IDLE")
		d.UpdateFromState(c.state)
		line, _ := d.Line(0)
		if got := trim(line); got != c.want {
			t.Fatalf("%v: got %q, want %q", c.state, got, c.want)
		}
	}
}

func TestControlCharactersRemoved(t *testing.T) {
	d := New(2, 40, "IDLE")
	if err := d.SetLine(0, "Hello\nWorld\r\n\tTest"); err != nil {
		t.Fatalf("SetLine: %v", err)
	}
	line, _ := d.Line(0)
	got := trim(line)
	if got != "HelloWorldTest" {
		t.Fatalf("got %q", got)
	}
}

func trim(s string) string {
	for len(s) > 0 && s[len(s)-1] == ' ' {
		s = s[:len(s)-1]
	}
	for len(s) > 0 && s[0] == ' ' {
		s = s[1:]
	}
	return s
}

func trimRight(s string) string {
	for len(s) > 0 && s[len(s)-1] == ' ' {
		s = s[:len(s)-1]
	}
	return s
}
