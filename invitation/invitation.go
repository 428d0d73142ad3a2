// Package invitation builds out-of-band invitations: the public-DID
// shorthand flavor, and the ephemeral-key flavor that mints a fresh signing
// key per invitation. It is component C; it deliberately does not persist
// anything — connection.Manager owns the ConnectionRecord an ephemeral
// invitation implies, so invitation stays a leaf package.
package invitation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/sage-x-project/didexchange/wallet"
)

// Errors returned by Create.
var (
	ErrPublicInvitesDisabled = errors.New("invitation: public invitations are disabled")
	ErrNoPublicDID           = errors.New("invitation: wallet has no public DID")
	ErrMultiUseWithPublic    = errors.New("invitation: multi-use invitations cannot be public")
)

// Mode distinguishes a single-use invitation from one that can spawn many
// connections.
type Mode string

const (
	ModeOnce  Mode = "ONCE"
	ModeMulti Mode = "MULTI"
)

// Accept is the policy for whether an incoming request against this
// invitation is accepted automatically or held for manual review.
type Accept string

const (
	AcceptAuto   Accept = "AUTO"
	AcceptManual Accept = "MANUAL"
)

// Config carries the process-wide invitation defaults as an explicit
// value-object, never read from mutable globals.
type Config struct {
	PublicInvitesEnabled bool
	DefaultEndpoint      string
	DefaultLabel         string
	AutoAcceptRequests   bool
}

// Options parameterizes a single Create call.
type Options struct {
	Label    string
	Endpoint string
	Public   bool
	MultiUse bool
	Alias    string
	// IncludeHandshake sets the handshake protocol identifier on the
	// invitation envelope; omitted, the invitation carries no explicit
	// handshake protocol list.
	IncludeHandshake bool
	// AutoAccept overrides Config.AutoAcceptRequests for this invitation
	// when non-nil.
	AutoAccept *bool
}

// Service is one OOB service block. It marshals as a bare DID string when
// only DID is set (the public-DID shorthand), and as an inline object
// otherwise.
type Service struct {
	DID             string
	ID              string
	Type            string
	RecipientKeys   []string
	RoutingKeys     []string
	ServiceEndpoint string
}

func (s Service) MarshalJSON() ([]byte, error) {
	if s.DID != "" {
		return json.Marshal(s.DID)
	}
	type inline struct {
		ID              string   `json:"id,omitempty"`
		Type            string   `json:"type,omitempty"`
		RecipientKeys   []string `json:"recipientKeys,omitempty"`
		RoutingKeys     []string `json:"routingKeys,omitempty"`
		ServiceEndpoint string   `json:"serviceEndpoint,omitempty"`
	}
	return json.Marshal(inline{s.ID, s.Type, s.RecipientKeys, s.RoutingKeys, s.ServiceEndpoint})
}

func (s *Service) UnmarshalJSON(data []byte) error {
	var did string
	if err := json.Unmarshal(data, &did); err == nil {
		s.DID = did
		return nil
	}
	var inline struct {
		ID              string   `json:"id,omitempty"`
		Type            string   `json:"type,omitempty"`
		RecipientKeys   []string `json:"recipientKeys,omitempty"`
		RoutingKeys     []string `json:"routingKeys,omitempty"`
		ServiceEndpoint string   `json:"serviceEndpoint,omitempty"`
	}
	if err := json.Unmarshal(data, &inline); err != nil {
		return err
	}
	s.ID, s.Type, s.RecipientKeys, s.RoutingKeys, s.ServiceEndpoint =
		inline.ID, inline.Type, inline.RecipientKeys, inline.RoutingKeys, inline.ServiceEndpoint
	return nil
}

// HandshakeProtocol is the DIDComm-prefixed protocol identifier advertised
// on an invitation when IncludeHandshake is set.
const HandshakeProtocol = "https://didcomm.org/didexchange/1.0"

// Invitation is the OOB v1 invitation envelope.
type Invitation struct {
	ID                string    `json:"@id"`
	Type              string    `json:"@type"`
	Label             string    `json:"label,omitempty"`
	HandshakeProtocols []string `json:"handshake_protocols,omitempty"`
	Service           []Service `json:"service"`
}

// Result is what Create returns: the wire invitation, plus the ephemeral
// key material a caller needs to persist a ConnectionRecord for (empty for
// public invitations, which need no record).
type Result struct {
	Invitation *Invitation

	InvitationKey string
	Mode          Mode
	Accept        Accept
}

// Create builds either a public-DID or an ephemeral-key invitation.
func Create(ctx context.Context, w wallet.Wallet, cfg Config, opts Options) (*Result, error) {
	if opts.Public {
		return createPublic(ctx, w, cfg, opts)
	}
	return createEphemeral(ctx, w, cfg, opts)
}

func createPublic(ctx context.Context, w wallet.Wallet, cfg Config, opts Options) (*Result, error) {
	if !cfg.PublicInvitesEnabled {
		return nil, ErrPublicInvitesDisabled
	}
	if opts.MultiUse {
		return nil, ErrMultiUseWithPublic
	}

	public, err := w.GetPublicDID(ctx)
	if err != nil {
		if errors.Is(err, wallet.ErrNotFound) {
			return nil, ErrNoPublicDID
		}
		return nil, fmt.Errorf("invitation: get public did: %w", err)
	}

	inv := &Invitation{
		ID:      uuid.NewString(),
		Type:    "https://didcomm.org/out-of-band/1.1/invitation",
		Label:   label(opts.Label, cfg.DefaultLabel),
		Service: []Service{{DID: public.DID}},
	}
	if opts.IncludeHandshake {
		inv.HandshakeProtocols = []string{HandshakeProtocol}
	}

	return &Result{Invitation: inv}, nil
}

func createEphemeral(ctx context.Context, w wallet.Wallet, cfg Config, opts Options) (*Result, error) {
	verkey, err := w.CreateSigningKey(ctx)
	if err != nil {
		return nil, fmt.Errorf("invitation: create signing key: %w", err)
	}

	endpoint := opts.Endpoint
	if endpoint == "" {
		endpoint = cfg.DefaultEndpoint
	}

	inv := &Invitation{
		ID:    uuid.NewString(),
		Type:  "https://didcomm.org/out-of-band/1.1/invitation",
		Label: label(opts.Label, cfg.DefaultLabel),
		Service: []Service{{
			ID:              "#inline",
			Type:            "did-communication",
			RecipientKeys:   []string{didKeyOf(verkey)},
			ServiceEndpoint: endpoint,
		}},
	}
	if opts.IncludeHandshake {
		inv.HandshakeProtocols = []string{HandshakeProtocol}
	}

	mode := ModeOnce
	if opts.MultiUse {
		mode = ModeMulti
	}

	return &Result{
		Invitation:    inv,
		InvitationKey: verkey,
		Mode:          mode,
		Accept:        ResolveAcceptPolicy(opts.AutoAccept, cfg.AutoAcceptRequests),
	}, nil
}

// ResolveAcceptPolicy decides the Accept policy for a new invitation: an
// explicit per-call override wins; otherwise fall back to the
// process-wide default. This precedence — call-site argument, then
// configuration — is the one place the original distillation left
// implicit; made explicit here so invitation.Create and
// connection.Manager.ReceiveInvitation (which resolves the same policy
// for the requester side) share one rule.
func ResolveAcceptPolicy(override *bool, configDefault bool) Accept {
	if override != nil {
		if *override {
			return AcceptAuto
		}
		return AcceptManual
	}
	if configDefault {
		return AcceptAuto
	}
	return AcceptManual
}

func label(optsLabel, configDefault string) string {
	if optsLabel != "" {
		return optsLabel
	}
	return configDefault
}

func didKeyOf(verkey string) string {
	return "did:key:" + verkey
}
