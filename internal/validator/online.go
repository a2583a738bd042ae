package validator

import (
	"context"
	"time"

	"github.com/cenkalti/backoff"

	"github.com/henrycontrol/turnkey/internal/logging"
	"github.com/henrycontrol/turnkey/internal/protocol"
	"github.com/henrycontrol/turnkey/internal/transport"
)

// DefaultMaxRetries is the number of retries after the first attempt
// (i.e. up to DefaultMaxRetries+1 total attempts).
const DefaultMaxRetries = 2

// DefaultRetryDelay is the fixed inter-attempt delay.
const DefaultRetryDelay = 500 * time.Millisecond

// OnlineValidator sends one AccessRequest to a remote Henry validation
// server per attempt, retrying transient failures with a fixed delay
// before optionally falling back to a local OfflineValidator.
type OnlineValidator struct {
	client     *transport.Client
	deviceID   protocol.DeviceID
	maxRetries int
	retryDelay time.Duration
	fallback   *OfflineValidator
	logger     logging.Logger
}

// OnlineValidatorOption configures an OnlineValidator at construction.
type OnlineValidatorOption func(*OnlineValidator)

// WithMaxRetries overrides DefaultMaxRetries.
func WithMaxRetries(n int) OnlineValidatorOption {
	return func(v *OnlineValidator) { v.maxRetries = n }
}

// WithRetryDelay overrides DefaultRetryDelay.
func WithRetryDelay(d time.Duration) OnlineValidatorOption {
	return func(v *OnlineValidator) { v.retryDelay = d }
}

// WithOfflineFallback arms a one-shot offline fallback once online
// retries are exhausted.
func WithOfflineFallback(fallback *OfflineValidator) OnlineValidatorOption {
	return func(v *OnlineValidator) { v.fallback = fallback }
}

// NewOnlineValidator constructs an OnlineValidator against client,
// addressing requests with deviceID.
func NewOnlineValidator(client *transport.Client, deviceID protocol.DeviceID, opts ...OnlineValidatorOption) *OnlineValidator {
	v := &OnlineValidator{
		client:     client,
		deviceID:   deviceID,
		maxRetries: DefaultMaxRetries,
		retryDelay: DefaultRetryDelay,
		logger:     logging.Default(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate sends request to the remote server, retrying up to
// maxRetries+1 total attempts, falling back to an offline validator if
// one was configured and every attempt failed.
func (v *OnlineValidator) Validate(request protocol.AccessRequest) (protocol.AccessResponse, error) {
	return v.ValidateContext(context.Background(), request)
}

// ValidateContext is Validate with a context that cancels a pending retry
// delay.
func (v *OnlineValidator) ValidateContext(ctx context.Context, request protocol.AccessRequest) (protocol.AccessResponse, error) {
	var lastErr error
	var result protocol.AccessResponse
	attempts := 0

	policy := backoff.WithContext(
		backoff.WithMaxRetries(&backoff.ConstantBackOff{Interval: v.retryDelay}, uint64(v.maxRetries)),
		ctx,
	)

	err := backoff.Retry(func() error {
		attempts++
		resp, attemptErr := v.attempt(request)
		if attemptErr != nil {
			lastErr = attemptErr
			v.logger.Warn("online validation attempt failed", logging.Field{Key: "attempt", Value: attempts}, logging.Field{Key: "error", Value: attemptErr.Error()})
			return attemptErr
		}
		result = resp
		return nil
	}, policy)

	if err == nil {
		return result, nil
	}

	if v.fallback != nil {
		v.logger.Warn("falling back to offline validation", logging.Field{Key: "attempts", Value: attempts})
		return v.fallback.Validate(request)
	}

	return protocol.AccessResponse{}, &ValidationFailedError{Retries: v.maxRetries, LastError: lastErr}
}

// attempt performs exactly one connect-if-needed/send/recv/translate
// cycle.
func (v *OnlineValidator) attempt(request protocol.AccessRequest) (protocol.AccessResponse, error) {
	if !v.client.Connected() {
		if err := v.client.Connect(); err != nil {
			return protocol.AccessResponse{}, &NetworkError{Cause: err}
		}
	}

	msg, err := request.ToMessage(v.deviceID)
	if err != nil {
		return protocol.AccessResponse{}, err
	}
	if err := v.client.Send(msg); err != nil {
		return protocol.AccessResponse{}, &NetworkError{Cause: err}
	}

	reply, err := v.client.Recv()
	if err != nil {
		return protocol.AccessResponse{}, &NetworkError{Cause: err}
	}

	switch reply.Command {
	case protocol.CommandGrantEntry, protocol.CommandGrantExit, protocol.CommandGrantBoth, protocol.CommandDeny:
		return protocol.ParseAccessResponse(reply)
	default:
		return protocol.AccessResponse{}, &ProtocolError{Literal: reply.Command.String()}
	}
}
