package validator

import (
	"testing"
	"time"

	"github.com/henrycontrol/turnkey/internal/protocol"
	"github.com/henrycontrol/turnkey/internal/storage"
)

func newValidRequest(card string, dir protocol.AccessDirection, when time.Time) protocol.AccessRequest {
	return protocol.AccessRequest{
		CardNumber: card,
		Timestamp:  protocol.TimestampFromTime(when),
		Direction:  dir,
		Reader:     protocol.ReaderRFID,
	}
}

func seedActiveUserAndCard(store *storage.MemoryStore, userID int64, matricula, card string, now time.Time) {
	store.PutUser(storage.User{
		ID: userID, Matricula: matricula, Active: true,
		ValidFrom: now.Add(-24 * time.Hour), ValidUntil: now.Add(24 * time.Hour),
		AllowCard: true, AllowBio: true,
	})
	store.PutCard(storage.Card{
		Number: card, Matricula: matricula, UserID: userID, Active: true,
		ValidFrom: now.Add(-24 * time.Hour), ValidUntil: now.Add(24 * time.Hour),
	})
}

func TestOfflineValidatorUnknownCardScenario(t *testing.T) {
	store := storage.NewMemoryStore()
	v := NewOfflineValidator(store)

	now := time.Now()
	resp, err := v.Validate(newValidRequest("9999999999", protocol.DirectionEntry, now))
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if resp.Decision != protocol.DecisionDeny || resp.Message != msgCardNotFound {
		t.Fatalf("unexpected response: %+v", resp)
	}

	logs := store.Logs()
	if len(logs) != 1 {
		t.Fatalf("expected exactly one audit log, got %d", len(logs))
	}
	log := logs[0]
	if log.Granted || log.UserID != nil || log.Matricula != nil || log.CardNumber != "9999999999" {
		t.Fatalf("unexpected log entry: %+v", log)
	}
}

func TestOfflineValidatorGrantsOnHappyPath(t *testing.T) {
	store := storage.NewMemoryStore()
	now := time.Now()
	seedActiveUserAndCard(store, 1, "M1", "12345678", now)

	v := NewOfflineValidator(store)
	resp, err := v.Validate(newValidRequest("12345678", protocol.DirectionEntry, now))
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if resp.Decision != protocol.DecisionGrantEntry {
		t.Fatalf("expected GrantEntry, got %v", resp.Decision)
	}
	if len(store.Logs()) != 1 || !store.Logs()[0].Granted {
		t.Fatalf("expected a single granted log")
	}
}

func TestOfflineValidatorInactiveCard(t *testing.T) {
	store := storage.NewMemoryStore()
	now := time.Now()
	seedActiveUserAndCard(store, 1, "M1", "12345678", now)
	card, _ := store.CardByNumber("12345678")
	card.Active = false
	store.PutCard(card)

	v := NewOfflineValidator(store)
	resp, _ := v.Validate(newValidRequest("12345678", protocol.DirectionEntry, now))
	if resp.Message != msgCardInactive {
		t.Fatalf("expected %q, got %q", msgCardInactive, resp.Message)
	}
}

func TestOfflineValidatorMethodPermission(t *testing.T) {
	store := storage.NewMemoryStore()
	now := time.Now()
	seedActiveUserAndCard(store, 1, "M1", "12345678", now)
	user, _ := store.UserByMatricula("M1")
	user.AllowCard = false
	store.PutUser(user)

	v := NewOfflineValidator(store)
	resp, _ := v.Validate(newValidRequest("12345678", protocol.DirectionEntry, now))
	if resp.Message != msgCardAccessDenied {
		t.Fatalf("expected %q, got %q", msgCardAccessDenied, resp.Message)
	}
}

func TestOfflineValidatorAntiPassbackBoundary(t *testing.T) {
	store := storage.NewMemoryStore()
	now := time.Now()
	seedActiveUserAndCard(store, 1, "M1", "12345678", now.Add(-time.Hour))

	userID := int64(1)
	store.AppendLog(storage.AccessLog{
		UserID: &userID, Granted: true, Direction: protocol.DirectionEntry,
		CardNumber: "12345678", EventTime: now,
	})

	v := NewOfflineValidator(store)

	within := now.Add(300 * time.Second)
	resp, _ := v.Validate(newValidRequest("12345678", protocol.DirectionEntry, within))
	if resp.Message != msgAntiPassback {
		t.Fatalf("expected anti-passback deny at 300s, got %q", resp.Message)
	}

	beyond := now.Add(301 * time.Second)
	resp, _ = v.Validate(newValidRequest("12345678", protocol.DirectionEntry, beyond))
	if resp.Decision != protocol.DecisionGrantEntry {
		t.Fatalf("expected grant at 301s, got %v (%q)", resp.Decision, resp.Message)
	}
}

func TestOfflineValidatorAntiPassbackDifferentDirectionGrants(t *testing.T) {
	store := storage.NewMemoryStore()
	now := time.Now()
	seedActiveUserAndCard(store, 1, "M1", "12345678", now.Add(-time.Hour))

	userID := int64(1)
	store.AppendLog(storage.AccessLog{
		UserID: &userID, Granted: true, Direction: protocol.DirectionEntry,
		CardNumber: "12345678", EventTime: now,
	})

	v := NewOfflineValidator(store)
	resp, _ := v.Validate(newValidRequest("12345678", protocol.DirectionExit, now.Add(10*time.Second)))
	if resp.Decision != protocol.DecisionGrantExit {
		t.Fatalf("expected grant for opposite direction, got %v (%q)", resp.Decision, resp.Message)
	}
}

func keypadRequest(card string, pin string, when time.Time) protocol.AccessRequest {
	return protocol.AccessRequest{
		CardNumber: card,
		Timestamp:  protocol.TimestampFromTime(when),
		Direction:  protocol.DirectionEntry,
		Reader:     protocol.ReaderKeypad,
		PIN:        pin,
	}
}

func TestOfflineValidatorKeypadGrantsOnCorrectPin(t *testing.T) {
	store := storage.NewMemoryStore()
	now := time.Now()
	seedActiveUserAndCard(store, 1, "M1", "12345678", now)
	user, _ := store.UserByMatricula("M1")
	user.AllowKeypad = true
	hash, err := storage.HashPin("4321")
	if err != nil {
		t.Fatalf("HashPin: %v", err)
	}
	user.PinHash = hash
	store.PutUser(user)

	v := NewOfflineValidator(store)
	resp, _ := v.Validate(keypadRequest("12345678", "4321", now))
	if resp.Decision != protocol.DecisionGrantEntry {
		t.Fatalf("expected grant, got %v (%q)", resp.Decision, resp.Message)
	}
}

func TestOfflineValidatorKeypadDeniesWrongPin(t *testing.T) {
	store := storage.NewMemoryStore()
	now := time.Now()
	seedActiveUserAndCard(store, 1, "M1", "12345678", now)
	user, _ := store.UserByMatricula("M1")
	user.AllowKeypad = true
	hash, _ := storage.HashPin("4321")
	user.PinHash = hash
	store.PutUser(user)

	v := NewOfflineValidator(store)
	resp, _ := v.Validate(keypadRequest("12345678", "0000", now))
	if resp.Message != msgInvalidPin {
		t.Fatalf("expected %q, got %q", msgInvalidPin, resp.Message)
	}
}

func TestOfflineValidatorKeypadDeniesWhenNotAllowed(t *testing.T) {
	store := storage.NewMemoryStore()
	now := time.Now()
	seedActiveUserAndCard(store, 1, "M1", "12345678", now)

	v := NewOfflineValidator(store)
	resp, _ := v.Validate(keypadRequest("12345678", "4321", now))
	if resp.Message != msgKeypadAccessDenied {
		t.Fatalf("expected %q, got %q", msgKeypadAccessDenied, resp.Message)
	}
}
