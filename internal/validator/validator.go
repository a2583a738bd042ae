package validator

import "github.com/henrycontrol/turnkey/internal/protocol"

// Validator is the shared operation both the Online and Offline
// implementations provide: decide Grant/Deny for one access request.
type Validator interface {
	Validate(request protocol.AccessRequest) (protocol.AccessResponse, error)
}
