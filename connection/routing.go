package connection

import (
	"context"
	"fmt"
)

// EstablishInbound attaches rec to a mediator: it ensures rec has a local
// DID to route for, verifies the router connection is COMPLETED, and asks
// routing.Manager to start forwarding messages for that DID's verkey.
func (m *Manager) EstablishInbound(ctx context.Context, rec *Record, routerConnectionID string) (RoutingState, error) {
	local, err := m.resolveMyDID(ctx, rec)
	if err != nil {
		return "", err
	}

	router, err := m.LoadRecord(ctx, routerConnectionID)
	if err != nil {
		return "", err
	}
	if router == nil {
		return "", ErrRouterNotFound
	}
	if router.State != StateCompleted {
		return "", ErrRouterNotReady
	}

	rec.InboundConnectionID = routerConnectionID
	rec.RoutingState = RoutingRequest
	if err := m.saveRecord(ctx, rec); err != nil {
		return "", err
	}

	if _, err := m.deps.Routing.SendCreateRoute(ctx, routerConnectionID, local.Verkey); err != nil {
		rec.RoutingState = RoutingError
		_ = m.saveRecord(ctx, rec)
		return RoutingError, fmt.Errorf("connection: send create route: %w", err)
	}
	return RoutingRequest, nil
}

// UpdateInbound advances the RoutingState of whichever record routed
// through routerConnectionID owns verkey, once the mediator confirms the
// route (or reports it failed). It is a no-op if no such record exists —
// the mediator may be reporting on a route this agent no longer tracks.
func (m *Manager) UpdateInbound(ctx context.Context, routerConnectionID, verkey string, newState RoutingState) error {
	linked, err := m.findAllByTags(ctx, map[string]string{"inbound_connection_id": routerConnectionID})
	if err != nil {
		return err
	}
	for _, rec := range linked {
		if rec.MyDID == "" {
			continue
		}
		local, err := m.deps.Wallet.GetLocalDID(ctx, rec.MyDID)
		if err != nil || local.Verkey != verkey {
			continue
		}
		rec.RoutingState = newState
		return m.saveRecord(ctx, rec)
	}
	return nil
}
