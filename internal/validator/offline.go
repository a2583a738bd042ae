package validator

import (
	"strings"

	"github.com/henrycontrol/turnkey/internal/protocol"
	"github.com/henrycontrol/turnkey/internal/storage"
)

// antiPassbackWindowSeconds is the minimum interval between two granted
// accesses in the same direction for the same user before anti-passback
// denies a repeat.
const antiPassbackWindowSeconds = 300

// Display messages, kept verbatim so callers and tests can match on the
// exact string a turnstile screen shows.
const (
	msgCardNotFound       = "Cartao nao cadastrado"
	msgCardInactive       = "Cartao inativo"
	msgCardExpired        = "Cartao expirado"
	msgUserNotFound       = "Usuario nao encontrado"
	msgUserInactive       = "Usuario inativo"
	msgUserExpired        = "Usuario expirado"
	msgCardAccessDenied   = "Acesso por cartao nao permitido"
	msgBioAccessDenied    = "Acesso por biometria nao permitido"
	msgKeypadAccessDenied = "Acesso por senha nao permitido"
	msgInvalidPin         = "Senha incorreta"
	msgAntiPassback       = "Passagem dupla nao permitida"
	msgAccessGranted      = "Acesso liberado"
)

// OfflineValidator evaluates the eight-step rule engine over a
// storage.Store with no network dependency.
type OfflineValidator struct {
	store storage.Store
}

// NewOfflineValidator constructs an OfflineValidator backed by store.
func NewOfflineValidator(store storage.Store) *OfflineValidator {
	return &OfflineValidator{store: store}
}

// Validate runs the eight-step offline rule engine, writing exactly one
// audit log record regardless of the outcome.
func (v *OfflineValidator) Validate(request protocol.AccessRequest) (protocol.AccessResponse, error) {
	request.CardNumber = strings.ToUpper(strings.TrimSpace(request.CardNumber))

	card, ok := v.store.CardByNumber(request.CardNumber)
	if !ok {
		return v.deny(request, nil, nil, msgCardNotFound), nil
	}

	if !card.Active {
		return v.deny(request, nil, &card.Matricula, msgCardInactive), nil
	}
	if !card.InValidityWindow(request.Timestamp.Time()) {
		return v.deny(request, nil, &card.Matricula, msgCardExpired), nil
	}

	user, ok := v.store.UserByMatricula(card.Matricula)
	if !ok {
		return v.deny(request, nil, &card.Matricula, msgUserNotFound), nil
	}

	if !user.Active {
		return v.deny(request, &user.ID, &card.Matricula, msgUserInactive), nil
	}
	if !user.InValidityWindow(request.Timestamp.Time()) {
		return v.deny(request, &user.ID, &card.Matricula, msgUserExpired), nil
	}

	switch request.Reader {
	case protocol.ReaderRFID:
		if !user.AllowCard {
			return v.deny(request, &user.ID, &card.Matricula, msgCardAccessDenied), nil
		}
	case protocol.ReaderBiometric:
		if !user.AllowBio {
			return v.deny(request, &user.ID, &card.Matricula, msgBioAccessDenied), nil
		}
	case protocol.ReaderKeypad:
		if !user.AllowKeypad {
			return v.deny(request, &user.ID, &card.Matricula, msgKeypadAccessDenied), nil
		}
		if !storage.VerifyPin(user, request.PIN) {
			return v.deny(request, &user.ID, &card.Matricula, msgInvalidPin), nil
		}
	}

	if last, ok := v.store.MostRecentGrantedLog(user.ID); ok {
		elapsed := request.Timestamp.Time().Sub(last.EventTime).Seconds()
		if last.Direction == request.Direction && elapsed <= antiPassbackWindowSeconds {
			return v.deny(request, &user.ID, &card.Matricula, msgAntiPassback), nil
		}
	}

	decision := protocol.DecisionForDirection(request.Direction)
	v.store.AppendLog(storage.AccessLog{
		UserID:         &user.ID,
		Matricula:      &card.Matricula,
		CardNumber:     request.CardNumber,
		Direction:      request.Direction,
		ReaderType:     request.Reader,
		Granted:        true,
		DisplayMessage: msgAccessGranted,
		EventTime:      request.Timestamp.Time(),
	})
	return protocol.AccessResponse{Decision: decision, Message: msgAccessGranted}, nil
}

// deny writes a denied audit log entry and returns the matching deny
// response. userID/matricula may be nil when the lookup that produced the
// denial never found the owning identity.
func (v *OfflineValidator) deny(request protocol.AccessRequest, userID *int64, matricula *string, message string) protocol.AccessResponse {
	v.store.AppendLog(storage.AccessLog{
		UserID:         userID,
		Matricula:      matricula,
		CardNumber:     request.CardNumber,
		Direction:      request.Direction,
		ReaderType:     request.Reader,
		Granted:        false,
		DisplayMessage: message,
		EventTime:      request.Timestamp.Time(),
	})
	return protocol.AccessResponse{Decision: protocol.DecisionDeny, Message: message}
}
