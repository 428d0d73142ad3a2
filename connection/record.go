// Package connection implements components D, F and G: the per-connection
// protocol state machine (invitation -> request -> response -> complete),
// the connection target assembler, and inbound routing attachment.
package connection

import (
	"encoding/json"
	"time"

	"github.com/sage-x-project/didexchange/invitation"
)

// Role is which side of the exchange this record's owner played.
type Role string

const (
	RoleRequester Role = "REQUESTER"
	RoleResponder Role = "RESPONDER"
)

// TheirRole returns the complementary role: the role we expect our peer to
// play. "their_role" and "my_role" (meaning Role itself) both refer to the
// same stored value, viewed from either side.
func (r Role) TheirRole() Role {
	if r == RoleRequester {
		return RoleResponder
	}
	return RoleRequester
}

// State is a ConnectionRecord's position in the protocol state machine.
type State string

const (
	StateInvitation State = "INVITATION"
	StateRequest    State = "REQUEST"
	StateResponse   State = "RESPONSE"
	StateCompleted  State = "COMPLETED"
	StateAbandoned  State = "ABANDONED"
)

// Terminal reports whether state is one the record never leaves.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateAbandoned
}

// RoutingState tracks whether this connection has an inbound router
// attached and the state of that attachment.
type RoutingState string

const (
	RoutingNone    RoutingState = "NONE"
	RoutingRequest RoutingState = "REQUEST"
	RoutingActive  RoutingState = "ACTIVE"
	RoutingError   RoutingState = "ERROR"
)

// Attachment is a signed payload: the canonical JSON bytes of a DID
// Document, a detached signature over those bytes, and the verkey that
// produced it.
type Attachment struct {
	Data         []byte
	SignerVerkey string
	Signature    []byte
}

// Thread carries DIDComm thread correlation.
type Thread struct {
	ThreadID       string `json:"thid,omitempty"`
	ParentThreadID string `json:"pthid,omitempty"`
}

// RequestMessage is the requester's Request message.
type RequestMessage struct {
	ID               string      `json:"@id"`
	Type             string      `json:"@type"`
	Label            string      `json:"label,omitempty"`
	DID              string      `json:"did"`
	DIDDocAttachment *Attachment `json:"did_doc~attach,omitempty"`
	Thread           Thread      `json:"~thread,omitempty"`
}

// ResponseMessage is the responder's Response message.
type ResponseMessage struct {
	ID               string      `json:"@id"`
	Type             string      `json:"@type"`
	DID              string      `json:"did"`
	DIDDocAttachment *Attachment `json:"did_doc~attach,omitempty"`
	Thread           Thread      `json:"~thread,omitempty"`
}

// CompleteMessage closes the exchange; it carries no body beyond thread
// correlation.
type CompleteMessage struct {
	ID     string `json:"@id"`
	Type   string `json:"@type"`
	Thread Thread `json:"~thread,omitempty"`
}

const (
	MessageTypeRequest  = "https://didcomm.org/didexchange/1.0/request"
	MessageTypeResponse = "https://didcomm.org/didexchange/1.0/response"
	MessageTypeComplete = "https://didcomm.org/didexchange/1.0/complete"
)

// Record is the central entity: a pairwise (or pending) connection between
// this agent and a peer.
type Record struct {
	ConnectionID string

	MyDID         string
	TheirDID      string
	InvitationKey string
	TheirLabel    string

	Role  Role
	State State

	Accept         invitation.Accept
	InvitationMode invitation.Mode

	RequestID            string
	InboundConnectionID  string
	RoutingState         RoutingState

	// Invitation and Request are auxiliary attachments kept alongside the
	// record rather than flattened into separate fields.
	Invitation *invitation.Invitation
	Request    *RequestMessage

	CreatedAt time.Time
	UpdatedAt time.Time
}

// persisted is the JSON shape Record is marshaled as for storage. It exists
// only so record.go's rich Go types don't have to double as a wire format.
type persisted struct {
	ConnectionID         string                 `json:"connection_id"`
	MyDID                string                 `json:"my_did"`
	TheirDID             string                 `json:"their_did"`
	InvitationKey        string                 `json:"invitation_key"`
	TheirLabel           string                 `json:"their_label"`
	Role                 Role                   `json:"role"`
	State                State                  `json:"state"`
	Accept               invitation.Accept      `json:"accept"`
	InvitationMode       invitation.Mode        `json:"invitation_mode"`
	RequestID            string                 `json:"request_id"`
	InboundConnectionID  string                 `json:"inbound_connection_id"`
	RoutingState         RoutingState           `json:"routing_state"`
	Invitation           *invitation.Invitation `json:"invitation,omitempty"`
	Request              *RequestMessage        `json:"request,omitempty"`
	CreatedAt            time.Time              `json:"created_at"`
	UpdatedAt            time.Time              `json:"updated_at"`
}

func (r *Record) marshal() ([]byte, error) {
	return json.Marshal(persisted{
		ConnectionID:        r.ConnectionID,
		MyDID:               r.MyDID,
		TheirDID:            r.TheirDID,
		InvitationKey:       r.InvitationKey,
		TheirLabel:          r.TheirLabel,
		Role:                r.Role,
		State:               r.State,
		Accept:              r.Accept,
		InvitationMode:      r.InvitationMode,
		RequestID:           r.RequestID,
		InboundConnectionID: r.InboundConnectionID,
		RoutingState:        r.RoutingState,
		Invitation:          r.Invitation,
		Request:             r.Request,
		CreatedAt:           r.CreatedAt,
		UpdatedAt:           r.UpdatedAt,
	})
}

func unmarshalRecord(data []byte) (*Record, error) {
	var p persisted
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	return &Record{
		ConnectionID:        p.ConnectionID,
		MyDID:                p.MyDID,
		TheirDID:             p.TheirDID,
		InvitationKey:        p.InvitationKey,
		TheirLabel:           p.TheirLabel,
		Role:                 p.Role,
		State:                p.State,
		Accept:               p.Accept,
		InvitationMode:       p.InvitationMode,
		RequestID:            p.RequestID,
		InboundConnectionID:  p.InboundConnectionID,
		RoutingState:         p.RoutingState,
		Invitation:           p.Invitation,
		Request:              p.Request,
		CreatedAt:            p.CreatedAt,
		UpdatedAt:            p.UpdatedAt,
	}, nil
}

func (r *Record) clone() *Record {
	cp := *r
	return &cp
}
