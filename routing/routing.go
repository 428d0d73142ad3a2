// Package routing is the collaborator a connection.Manager calls when a
// connection needs to be placed behind a mediator: it tells the router
// "start forwarding messages addressed to this verkey to me" and hands
// back an opaque handle the rest of the protocol treats as a black box.
package routing

import "context"

// Manager registers a verkey with an upstream router (mediator) connection.
type Manager interface {
	// SendCreateRoute asks the router identified by routerConnectionID to
	// start forwarding messages for recipientVerkey, returning an opaque
	// identifier for the created route. Callers never parse
	// routerConnectionID or the returned ID; both are carried around
	// verbatim.
	SendCreateRoute(ctx context.Context, routerConnectionID, recipientVerkey string) (routeID string, err error)
}

// InMemory is a reference Manager that fabricates a route ID and remembers
// every route it created, for tests and for single-process deployments that
// act as their own mediator.
type InMemory struct {
	routes []Route
}

// Route is one registered (router, verkey) pairing.
type Route struct {
	RouterConnectionID string
	RecipientVerkey    string
	RouteID            string
}

// NewInMemory builds an empty in-memory routing manager.
func NewInMemory() *InMemory {
	return &InMemory{}
}

func (m *InMemory) SendCreateRoute(ctx context.Context, routerConnectionID, recipientVerkey string) (string, error) {
	routeID := routerConnectionID + "::" + recipientVerkey
	m.routes = append(m.routes, Route{RouterConnectionID: routerConnectionID, RecipientVerkey: recipientVerkey, RouteID: routeID})
	return routeID, nil
}

// Routes returns every route created so far, for test assertions.
func (m *InMemory) Routes() []Route {
	return append([]Route(nil), m.routes...)
}
