// Package inbound implements component E: resolving an already-decrypted
// wire message's sender/recipient verkeys back to the ConnectionRecord it
// belongs to, with a per-key cache so repeated messages on a busy
// connection don't re-run the resolution on every single message.
package inbound

import (
	"context"
	"fmt"
	"time"

	"github.com/sage-x-project/didexchange/cache"
	"github.com/sage-x-project/didexchange/connection"
	"github.com/sage-x-project/didexchange/didstore"
	"github.com/sage-x-project/didexchange/internal/logger"
	"github.com/sage-x-project/didexchange/internal/metrics"
	"github.com/sage-x-project/didexchange/receipt"
	"github.com/sage-x-project/didexchange/wallet"
)

// CacheTTL is how long a resolved (sender, recipient) -> connection
// mapping stays valid.
const CacheTTL = time.Hour

// cachedConnection is the value stored under a resolver's cache key: just
// enough to repopulate a fresh receipt without re-running resolution.
type cachedConnection struct {
	connectionID       string
	senderDID          string
	recipientDID       string
	recipientDIDPublic bool
}

// Resolver is component E. It composes the DID key index (didstore), the
// wallet, a connection.Manager, and a cache.Cache.
type Resolver struct {
	Manager  *connection.Manager
	DIDStore *didstore.Store
	Wallet   wallet.Wallet
	Cache    cache.Cache
	Logger   logger.Logger
}

// New builds a Resolver. A nil cache is valid and simply disables caching
// — every call falls through to resolveInboundConnection. A nil logger
// falls back to the package's default logger.
func New(manager *connection.Manager, didStore *didstore.Store, w wallet.Wallet, c cache.Cache, log logger.Logger) *Resolver {
	if log == nil {
		log = logger.GetDefaultLogger()
	}
	return &Resolver{Manager: manager, DIDStore: didStore, Wallet: w, Cache: c, Logger: log}
}

// FindInboundConnection implements find_inbound_connection. rcpt is
// mutated in place with whatever identity fields resolution discovers.
func (r *Resolver) FindInboundConnection(ctx context.Context, rcpt *receipt.MessageReceipt) (*connection.Record, error) {
	start := time.Now()
	if r.Cache == nil || rcpt.SenderVerkey == "" || rcpt.RecipientVerkey == "" {
		rec, err := r.resolveInboundConnection(ctx, rcpt)
		metrics.GetGlobalCollector().RecordDIDResolution(false, time.Since(start))
		return rec, err
	}

	key := fmt.Sprintf("connection_by_verkey::%s::%s", rcpt.SenderVerkey, rcpt.RecipientVerkey)
	resolved := false
	cached, err := r.Cache.GetOrResolve(ctx, key, CacheTTL, func(ctx context.Context) (any, error) {
		resolved = true
		// A scratch receipt isolates this resolution from the caller's
		// rcpt — singleflight.Group.Do shares one in-flight call across
		// every waiter on this key, so the closure must not write into a
		// pointer any particular caller owns.
		scratch := &receipt.MessageReceipt{SenderVerkey: rcpt.SenderVerkey, RecipientVerkey: rcpt.RecipientVerkey}
		rec, err := r.resolveInboundConnection(ctx, scratch)
		if err != nil {
			return nil, err
		}
		if rec == nil {
			return cachedConnection{}, nil
		}
		return cachedConnection{
			connectionID:       rec.ConnectionID,
			senderDID:          scratch.SenderDID,
			recipientDID:       scratch.RecipientDID,
			recipientDIDPublic: scratch.RecipientDIDPublic,
		}, nil
	})
	metrics.GetGlobalCollector().RecordDIDResolution(!resolved, time.Since(start))
	if err != nil {
		return nil, err
	}

	cc := cached.(cachedConnection)
	if cc.connectionID == "" {
		return nil, nil
	}
	rcpt.SenderDID = cc.senderDID
	rcpt.RecipientDID = cc.recipientDID
	rcpt.RecipientDIDPublic = cc.recipientDIDPublic
	return r.Manager.LoadRecord(ctx, cc.connectionID)
}

// resolveInboundConnection implements the three-step resolution algorithm
// verbatim: sender-verkey lookup, recipient-verkey lookup against the
// wallet, then find_connection. Lookup failures are logged and the
// corresponding receipt field is simply left unset — a message missing
// some identity data can still resolve through whichever fields it does
// carry.
func (r *Resolver) resolveInboundConnection(ctx context.Context, rcpt *receipt.MessageReceipt) (*connection.Record, error) {
	if rcpt.SenderVerkey != "" {
		did, err := r.DIDStore.FindDIDForKey(ctx, rcpt.SenderVerkey)
		if err != nil {
			if err != didstore.ErrNotFound {
				r.Logger.Warn("inbound: sender did lookup failed", logger.Error(err))
			}
		} else {
			rcpt.SenderDID = did
		}
	}

	var myVerkey string
	if rcpt.RecipientVerkey != "" {
		myVerkey = rcpt.RecipientVerkey
		local, err := r.Wallet.GetLocalDIDForVerkey(ctx, rcpt.RecipientVerkey)
		if err != nil {
			if err != wallet.ErrNotFound {
				r.Logger.Warn("inbound: recipient did lookup failed", logger.Error(err))
			}
		} else {
			rcpt.RecipientDID = local.DID
			rcpt.RecipientDIDPublic = local.Public
		}
	}

	return r.Manager.FindConnection(ctx, rcpt.SenderDID, rcpt.RecipientDID, myVerkey)
}
