package connection

import (
	"context"
	"fmt"
	"time"

	"github.com/sage-x-project/didexchange/internal/metrics"
)

// Target is everything a transport needs to pack and deliver a message to
// one of a peer's service endpoints.
type Target struct {
	DID           string
	Endpoint      string
	Label         string
	RecipientKeys []string
	RoutingKeys   []string
	SenderKey     string
}

// Targets returns every deliverable target for rec, caching the result for
// cfg.TargetCacheTTL keyed by connection ID — a connection's targets don't
// change between state transitions, so repeated sends against the same
// record shouldn't re-resolve the ledger or re-fetch a DID Document each
// time.
func (m *Manager) Targets(ctx context.Context, rec *Record) ([]Target, error) {
	resolved := false
	cached, err := m.deps.Cache.GetOrResolve(ctx, "connection_target::"+rec.ConnectionID, m.cfg.TargetCacheTTL, func(ctx context.Context) (any, error) {
		resolved = true
		return m.assembleTargets(ctx, rec)
	})
	if err != nil {
		return nil, err
	}
	if resolved {
		metrics.ConnectionTargetResolutions.WithLabelValues("miss").Inc()
	} else {
		metrics.ConnectionTargetResolutions.WithLabelValues("hit").Inc()
	}
	return cached.([]Target), nil
}

// assembleTargets implements the two regimes of component F. Before the
// exchange completes and while we are the responder (their_role is
// REQUESTER), the only information we have about our peer is whatever the
// invitation described, so targets are built from the stored Invitation
// rather than a fetched DID Document. Once the connection is underway we
// have their_did and can address every service in their current document.
func (m *Manager) assembleTargets(ctx context.Context, rec *Record) ([]Target, error) {
	if !rec.State.Terminal() && rec.Role == RoleResponder {
		return m.targetsFromInvitation(ctx, rec)
	}
	return m.targetsFromDocument(ctx, rec)
}

func (m *Manager) targetsFromInvitation(ctx context.Context, rec *Record) ([]Target, error) {
	if rec.Invitation == nil || len(rec.Invitation.Service) == 0 {
		return nil, fmt.Errorf("connection: no invitation service block for %q", rec.ConnectionID)
	}
	svc := rec.Invitation.Service[0]
	senderKey := m.senderKeyFor(ctx, rec)

	if svc.DID != "" {
		start := time.Now()
		endpoint, err := m.deps.Ledger.GetEndpointForDID(ctx, svc.DID)
		metrics.GetGlobalCollector().RecordBlockchainCall(err == nil, time.Since(start))
		if err != nil {
			return nil, fmt.Errorf("connection: resolve endpoint for %q: %w", svc.DID, err)
		}
		start = time.Now()
		key, err := m.deps.Ledger.GetKeyForDID(ctx, svc.DID)
		metrics.GetGlobalCollector().RecordBlockchainCall(err == nil, time.Since(start))
		if err != nil {
			return nil, fmt.Errorf("connection: resolve key for %q: %w", svc.DID, err)
		}
		return []Target{{
			DID:           svc.DID,
			Endpoint:      endpoint,
			Label:         rec.TheirLabel,
			RecipientKeys: []string{key},
			SenderKey:     senderKey,
		}}, nil
	}

	return []Target{{
		Endpoint:      svc.ServiceEndpoint,
		Label:         rec.TheirLabel,
		RecipientKeys: svc.RecipientKeys,
		RoutingKeys:   svc.RoutingKeys,
		SenderKey:     senderKey,
	}}, nil
}

func (m *Manager) targetsFromDocument(ctx context.Context, rec *Record) ([]Target, error) {
	if rec.TheirDID == "" {
		return nil, fmt.Errorf("connection: record %q has no their_did yet", rec.ConnectionID)
	}
	doc, err := m.deps.DIDStore.FetchDocument(ctx, rec.TheirDID)
	if err != nil {
		return nil, fmt.Errorf("connection: fetch their document: %w", err)
	}
	senderKey := m.senderKeyFor(ctx, rec)

	targets := make([]Target, 0, len(doc.Services))
	for _, svc := range doc.Services {
		targets = append(targets, Target{
			DID:           rec.TheirDID,
			Endpoint:      svc.ServiceEndpoint,
			Label:         rec.TheirLabel,
			RecipientKeys: svc.RecipientKeys,
			RoutingKeys:   svc.RoutingKeys,
			SenderKey:     senderKey,
		})
	}
	return targets, nil
}

func (m *Manager) senderKeyFor(ctx context.Context, rec *Record) string {
	if rec.MyDID == "" {
		return ""
	}
	local, err := m.deps.Wallet.GetLocalDID(ctx, rec.MyDID)
	if err != nil {
		return ""
	}
	return local.Verkey
}
