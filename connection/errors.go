package connection

import (
	"errors"

	"github.com/sage-x-project/didexchange/diddoc"
	"github.com/sage-x-project/didexchange/internal/metrics"
	"github.com/sage-x-project/didexchange/invitation"
)

// Configuration errors, re-exported from invitation so callers need not
// import both packages to handle every error this package's
// CreateInvitation can return.
var (
	ErrPublicInvitesDisabled = invitation.ErrPublicInvitesDisabled
	ErrNoPublicDID           = invitation.ErrNoPublicDID
	ErrMultiUseWithPublic    = invitation.ErrMultiUseWithPublic
)

// Routing errors, re-exported from diddoc for the same reason.
var (
	ErrRouterNotReady      = diddoc.ErrRouterNotReady
	ErrRouterMisconfigured = diddoc.ErrRouterMisconfigured
	ErrRouterNotFound      = errors.New("connection: router not found")
)

// Protocol error base sentinels. Compare with errors.Is. ErrDIDMismatch,
// ErrUnmatchedResponse and ErrCompleteNotAccepted are returned wrapped in a
// *ProtocolError carrying the problem-report code the caller may forward to
// the peer; the others are returned without a code.
var (
	ErrMalformedInvitation = errors.New("connection: malformed invitation")
	ErrMissingAttachment   = errors.New("connection: missing did_doc attachment")
	ErrSignatureInvalid    = errors.New("connection: signature invalid")
	ErrDIDMismatch         = errors.New("connection: did mismatch")
	ErrWrongState          = errors.New("connection: wrong state")
	ErrInvitationNotFound  = errors.New("connection: invitation not found")
	ErrUnmatchedResponse   = errors.New("connection: unmatched response")
	ErrCompleteNotAccepted = errors.New("connection: complete not accepted")
)

// Problem-report codes the peer-facing caller may attach to a problem
// report it sends back over the wire.
const (
	ProblemReportRequestNotAccepted  = "request_not_accepted"
	ProblemReportResponseNotAccepted = "response_not_accepted"
	ProblemReportCompleteNotAccepted = "complete_not_accepted"
)

// ProtocolError wraps a base protocol sentinel with the problem-report code
// the state machine attaches to it at a particular call site — the same
// ErrDIDMismatch means REQUEST_NOT_ACCEPTED in receive_request but
// RESPONSE_NOT_ACCEPTED in accept_response, so the code can't live on the
// sentinel itself.
type ProtocolError struct {
	Err               error
	ProblemReportCode string
}

func (e *ProtocolError) Error() string {
	return e.Err.Error()
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

func protocolError(err error, code string) error {
	metrics.HandshakesFailed.WithLabelValues(code).Inc()
	return &ProtocolError{Err: err, ProblemReportCode: code}
}

// ProblemReportFor extracts the problem-report code attached to err, if
// any. Callers forward this code to the peer in a problem-report message;
// ok is false when err carries no code (e.g. WrongState, which has none).
func ProblemReportFor(err error) (code string, ok bool) {
	var pe *ProtocolError
	if errors.As(err, &pe) && pe.ProblemReportCode != "" {
		return pe.ProblemReportCode, true
	}
	return "", false
}
