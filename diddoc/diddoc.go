// Package diddoc builds the signed DID Document an agent attaches to its
// own connection requests and responses: one primary verification key,
// optionally a materialized multi-hop inbound routing chain, and one
// service block per resulting endpoint.
package diddoc

import (
	"context"
	"errors"
	"fmt"
)

// ErrRouterNotReady is returned when a router in the inbound chain has not
// yet reached the COMPLETED state.
var ErrRouterNotReady = errors.New("diddoc: router not ready")

// ErrRouterMisconfigured is returned when a router's stored DID Document
// has no services, or a service is missing an endpoint or recipient keys.
var ErrRouterMisconfigured = errors.New("diddoc: router misconfigured")

// MaxChainDepth bounds how many inbound routers build_did_doc will walk
// before giving up.
const MaxChainDepth = 8

// PublicKey is one verification key entry in a DID Document.
type PublicKey struct {
	ID              string
	Type            string
	Controller      string
	PublicKeyBase58 string
	Authorization   bool
}

// Service is one service endpoint entry in a DID Document.
type Service struct {
	ID              string
	Type            string
	RecipientKeys   []string
	RoutingKeys     []string
	ServiceEndpoint string
}

// Document is a DID Document: a DID plus its public keys and services,
// each addressable by ID.
type Document struct {
	DID        string
	PublicKeys map[string]*PublicKey
	Services   map[string]*Service
}

// PublicKey looks a key up by its document-local ID.
func (d *Document) PublicKey(id string) (*PublicKey, bool) {
	pk, ok := d.PublicKeys[id]
	return pk, ok
}

// Service looks a service up by its document-local ID.
func (d *Document) Service(id string) (*Service, bool) {
	svc, ok := d.Services[id]
	return svc, ok
}

// Info identifies the DID and signing verkey build_did_doc emits the
// primary key for.
type Info struct {
	DID           string
	PrimaryVerkey string
}

// RouterChainDeps is the minimal view of connection and DID-document
// persistence the builder needs to walk an inbound routing chain. It is
// defined here, not imported from the connection package, so that
// connection (which depends on diddoc to build its own documents) does not
// form an import cycle with diddoc.
type RouterChainDeps interface {
	// RouterState returns the router connection's current state (expected
	// to be "COMPLETED" for the chain to proceed), its own DID, and the
	// next router in the chain (empty if this is the last hop).
	RouterState(ctx context.Context, connectionID string) (state, routerDID, nextInboundConnectionID string, err error)

	// RouterDocument returns the stored DID Document for a router's DID.
	RouterDocument(ctx context.Context, did string) (*Document, error)
}

// StateCompleted is the connection state RouterChainDeps.RouterState must
// report for a router to be considered ready. Defined here rather than
// imported from connection to keep diddoc a leaf package; connection's own
// StateCompleted constant has the identical string value by construction.
const StateCompleted = "COMPLETED"

// Build composes our DID Document: one primary Ed25519 key, and — if
// inboundConnectionID is non-empty — a materialized chain of routing keys
// collected by walking each router's own stored document, with endpoints
// overridden by the final router's service endpoint.
func Build(ctx context.Context, deps RouterChainDeps, info Info, inboundConnectionID string, endpoints []string) (*Document, error) {
	doc := &Document{
		DID:        info.DID,
		PublicKeys: make(map[string]*PublicKey),
		Services:   make(map[string]*Service),
	}

	doc.PublicKeys["1"] = &PublicKey{
		ID:              "1",
		Type:            "Ed25519VerificationKey2018",
		Controller:      info.DID,
		PublicKeyBase58: info.PrimaryVerkey,
		Authorization:   true,
	}

	routingKeys, finalEndpoints, err := walkRoutingChain(ctx, deps, inboundConnectionID, endpoints)
	if err != nil {
		return nil, err
	}

	for i, routingKey := range routingKeys {
		id := fmt.Sprintf("routing-%d", i+1)
		doc.PublicKeys[id] = &PublicKey{
			ID:              id,
			Type:            "Ed25519VerificationKey2018",
			Controller:      info.DID,
			PublicKeyBase58: routingKey,
			Authorization:   false,
		}
	}

	for i, endpoint := range finalEndpoints {
		id := "indy"
		if i > 0 {
			id = fmt.Sprintf("indy%d", i)
		}
		doc.Services[id] = &Service{
			ID:              id,
			Type:            "IndyAgent",
			RecipientKeys:   []string{info.PrimaryVerkey},
			RoutingKeys:     routingKeys,
			ServiceEndpoint: endpoint,
		}
	}

	return doc, nil
}

// walkRoutingChain walks inbound_connection_id hop by hop, collecting one
// routing key per hop and overriding endpoints with the last hop's service
// endpoint. It returns the original endpoints unchanged if
// inboundConnectionID is empty.
func walkRoutingChain(ctx context.Context, deps RouterChainDeps, inboundConnectionID string, endpoints []string) ([]string, []string, error) {
	if inboundConnectionID == "" {
		return nil, endpoints, nil
	}

	var routingKeys []string
	finalEndpoints := endpoints
	visited := make(map[string]bool)

	current := inboundConnectionID
	for depth := 0; current != ""; depth++ {
		if depth >= MaxChainDepth || visited[current] {
			return nil, nil, fmt.Errorf("%w: routing chain exceeds maximum depth or cycles at connection %q", ErrRouterMisconfigured, current)
		}
		visited[current] = true

		state, routerDID, next, err := deps.RouterState(ctx, current)
		if err != nil {
			return nil, nil, fmt.Errorf("diddoc: load router %q: %w", current, err)
		}
		if state != StateCompleted {
			return nil, nil, fmt.Errorf("%w: router %q is %q", ErrRouterNotReady, current, state)
		}

		routerDoc, err := deps.RouterDocument(ctx, routerDID)
		if err != nil {
			return nil, nil, fmt.Errorf("diddoc: load router document for %q: %w", routerDID, err)
		}
		routingKey, endpoint, err := firstServiceKeyAndEndpoint(routerDoc)
		if err != nil {
			return nil, nil, err
		}

		routingKeys = append(routingKeys, routingKey)
		finalEndpoints = []string{endpoint}

		current = next
	}

	return routingKeys, finalEndpoints, nil
}

// firstServiceKeyAndEndpoint picks the first recipient key of doc's "indy"
// service block, the first one Build numbers; without one it takes an
// arbitrary service block (map iteration order).
func firstServiceKeyAndEndpoint(doc *Document) (routingKey, endpoint string, err error) {
	if len(doc.Services) == 0 {
		return "", "", fmt.Errorf("%w: no services", ErrRouterMisconfigured)
	}
	svc, ok := doc.Services["indy"]
	if !ok {
		// Fall back to whatever the first service happens to be when a
		// router's document was built with non-standard IDs.
		for _, s := range doc.Services {
			svc = s
			break
		}
	}
	if svc.ServiceEndpoint == "" || len(svc.RecipientKeys) == 0 {
		return "", "", fmt.Errorf("%w: service %q missing endpoint or recipient keys", ErrRouterMisconfigured, svc.ID)
	}
	return svc.RecipientKeys[0], svc.ServiceEndpoint, nil
}
