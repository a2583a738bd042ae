package protocol

import "testing"

func TestDeviceIDValidRange(t *testing.T) {
	for _, id := range []int{1, 9, 15, 99} {
		d, err := NewDeviceID(id)
		if err != nil {
			t.Fatalf("NewDeviceID(%d): unexpected error: %v", id, err)
		}
		if got, want := d.Value(), id; got != want {
			t.Fatalf("Value() = %d, want %d", got, want)
		}
	}
	if d, err := NewDeviceID(9); err != nil || d.String() != "09" {
		t.Fatalf("expected zero-padded 09, got %q err=%v", d.String(), err)
	}
}

func TestDeviceIDInvalidRange(t *testing.T) {
	for _, id := range []int{0, 100, -1} {
		if _, err := NewDeviceID(id); err == nil {
			t.Fatalf("NewDeviceID(%d): expected error", id)
		}
	}
}

func TestFieldDataRejectsDelimiters(t *testing.T) {
	for _, bad := range []string{"a]b", "a+b", "a[b"} {
		if _, err := NewFieldData(bad); err == nil {
			t.Fatalf("NewFieldData(%q): expected error", bad)
		}
	}
	if _, err := NewFieldData("clean value"); err != nil {
		t.Fatalf("NewFieldData: unexpected error: %v", err)
	}
}

func TestMessageRoundtrip(t *testing.T) {
	id, _ := NewDeviceID(15)
	msg, err := NewMessage(id, CommandAccessRequest, "12345678", "10/05/2025 12:46:06", "1", "0")
	if err != nil {
		t.Fatalf("NewMessage: %v", err)
	}

	payload := msg.Payload()
	const want = "15+REON+000+0]12345678]10/05/2025 12:46:06]1]0]"
	if payload != want {
		t.Fatalf("Payload() = %q, want %q", payload, want)
	}

	decoded, err := ParseMessage(payload)
	if err != nil {
		t.Fatalf("ParseMessage: %v", err)
	}
	if decoded.DeviceID != msg.DeviceID || decoded.Command != msg.Command {
		t.Fatalf("roundtrip mismatch: %+v vs %+v", decoded, msg)
	}
	if len(decoded.Fields) != len(msg.Fields) {
		t.Fatalf("field count mismatch: got %d want %d", len(decoded.Fields), len(msg.Fields))
	}
	for i := range msg.Fields {
		if decoded.Fields[i].String() != msg.Fields[i].String() {
			t.Fatalf("field %d mismatch: got %q want %q", i, decoded.Fields[i].String(), msg.Fields[i].String())
		}
	}
}

func TestMessageNoFieldsNoTrailingBracket(t *testing.T) {
	id, _ := NewDeviceID(1)
	msg, err := NewMessage(id, CommandQueryStatus)
	if err != nil {
		t.Fatalf("NewMessage: %v", err)
	}
	if got, want := msg.Payload(), "01+REON+RQ"; got != want {
		t.Fatalf("Payload() = %q, want %q", got, want)
	}
	decoded, err := ParseMessage("01+REON+RQ")
	if err != nil {
		t.Fatalf("ParseMessage: %v", err)
	}
	if decoded.Command != CommandQueryStatus || len(decoded.Fields) != 0 {
		t.Fatalf("unexpected decode: %+v", decoded)
	}
}

func TestMessageTrailingBracketTolerated(t *testing.T) {
	decoded, err := ParseMessage("15+REON+000+0]12345678]10/05/2025 12:46:06]")
	if err != nil {
		t.Fatalf("ParseMessage: %v", err)
	}
	if len(decoded.Fields) != 2 {
		t.Fatalf("expected 2 fields, got %d: %+v", len(decoded.Fields), decoded.Fields)
	}
}

func TestMessageEmptyAdjacentFieldsFilteredForGeneralCommands(t *testing.T) {
	decoded, err := ParseMessage("15+REON+000+0]]12345678]")
	if err != nil {
		t.Fatalf("ParseMessage: %v", err)
	}
	if len(decoded.Fields) != 1 || decoded.Fields[0].String() != "12345678" {
		t.Fatalf("expected empty field filtered, got %+v", decoded.Fields)
	}
	if len(decoded.RawFields()) != 2 {
		t.Fatalf("RawFields should preserve the empty token, got %v", decoded.RawFields())
	}
}

func TestMessagePositionalFieldsPreservedForStatusCommands(t *testing.T) {
	decoded, err := ParseMessage("15+REON+000+80]]10/05/2025 12:46:06]0]0]")
	if err != nil {
		t.Fatalf("ParseMessage: %v", err)
	}
	if len(decoded.Fields) != 4 {
		t.Fatalf("expected 4 positional fields (including empty card), got %d: %+v", len(decoded.Fields), decoded.Fields)
	}
	if decoded.Fields[0].String() != "" {
		t.Fatalf("expected empty card field, got %q", decoded.Fields[0].String())
	}

	status, err := ParseTurnstileStatus(decoded.Command, decoded.RawFields())
	if err != nil {
		t.Fatalf("ParseTurnstileStatus: %v", err)
	}
	if status.CardNumber != "" || status.Direction != DirectionUndefined {
		t.Fatalf("unexpected status: %+v", status)
	}
}

func TestInvalidCommandRejected(t *testing.T) {
	if _, err := ParseMessage("15+REON+999+99"); err == nil {
		t.Fatalf("expected InvalidCommandError")
	}
}

func TestInvalidProtocolTagRejected(t *testing.T) {
	if _, err := ParseMessage("15+WRONG+RQ"); err == nil {
		t.Fatalf("expected error for wrong protocol tag")
	}
}

func TestChecksumComputeAndVerify(t *testing.T) {
	payload := []byte("15+REON+RQ")
	sum := ComputeChecksum(payload)
	if len(sum) != 2 {
		t.Fatalf("expected 2 hex chars, got %q", sum)
	}
	if _, err := VerifyChecksum(payload, &sum); err != nil {
		t.Fatalf("VerifyChecksum: unexpected error: %v", err)
	}
	bad := "00"
	if sum == bad {
		bad = "FF"
	}
	if _, err := VerifyChecksum(payload, &bad); err == nil {
		t.Fatalf("expected mismatch error")
	}
}

func TestReaderTypeCompatibility(t *testing.T) {
	cases := []struct {
		code byte
		want ReaderType
	}{
		{'0', ReaderRFID},
		{'1', ReaderRFID},
		{'5', ReaderBiometric},
		{'2', ReaderKeypad},
	}
	for _, c := range cases {
		got, err := ParseReaderType(c.code)
		if err != nil || got != c.want {
			t.Fatalf("ParseReaderType(%q) = %v, %v; want %v", c.code, got, err, c.want)
		}
	}
	if _, err := ParseReaderType('9'); err == nil {
		t.Fatalf("expected InvalidReaderTypeError")
	}
}

func TestTimestampRoundtrip(t *testing.T) {
	ts, err := ParseTimestamp("10/05/2025 12:46:06")
	if err != nil {
		t.Fatalf("ParseTimestamp: %v", err)
	}
	if got := ts.Format(); got != "10/05/2025 12:46:06" {
		t.Fatalf("Format() = %q", got)
	}
}

func TestAccessResponseScenarioOne(t *testing.T) {
	id, _ := NewDeviceID(15)
	resp := AccessResponse{Decision: DecisionGrantExit, TimeoutSeconds: 5, Message: "Acesso liberado"}
	msg, err := resp.ToMessage(id)
	if err != nil {
		t.Fatalf("ToMessage: %v", err)
	}
	if got, want := msg.Payload(), "15+REON+00+6]5]Acesso liberado]"; got != want {
		t.Fatalf("Payload() = %q, want %q", got, want)
	}

	decoded, err := ParseMessage(got(msg))
	if err != nil {
		t.Fatalf("ParseMessage: %v", err)
	}
	parsedResp, err := ParseAccessResponse(decoded)
	if err != nil {
		t.Fatalf("ParseAccessResponse: %v", err)
	}
	if parsedResp.Decision != DecisionGrantExit || parsedResp.TimeoutSeconds != 5 || parsedResp.Message != "Acesso liberado" {
		t.Fatalf("unexpected response: %+v", parsedResp)
	}
}

func got(msg Message) string { return msg.Payload() }
