package connection

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sage-x-project/didexchange/cache"
	"github.com/sage-x-project/didexchange/didstore"
	"github.com/sage-x-project/didexchange/invitation"
	"github.com/sage-x-project/didexchange/ledger"
	"github.com/sage-x-project/didexchange/receipt"
	"github.com/sage-x-project/didexchange/responder"
	"github.com/sage-x-project/didexchange/routing"
	"github.com/sage-x-project/didexchange/store"
	"github.com/sage-x-project/didexchange/wallet"
)

type harness struct {
	manager   *Manager
	wallet    *wallet.InMemory
	didStore  *didstore.Store
	responder *responder.Recording
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()
	w := wallet.NewInMemory()
	backing := store.NewMemory()
	ds := didstore.New(backing)
	rsp := responder.NewRecording()

	deps := Deps{
		Wallet:    w,
		Store:     backing,
		DIDStore:  ds,
		Responder: rsp,
		Ledger:    ledger.NewStatic(),
		Cache:     cache.NewTTLCache(0),
		Routing:   routing.NewInMemory(),
	}
	return &harness{manager: NewManager(deps, cfg), wallet: w, didStore: ds, responder: rsp}
}

// runExchange drives a full invitation -> request -> response -> complete
// round trip between two independently-configured managers, asserting each
// hop lands both sides in the expected state.
func runExchange(t *testing.T, responderAuto, requesterAuto bool) (*harness, *harness, *Record, *Record) {
	t.Helper()
	ctx := context.Background()

	alice := newHarness(t, Config{DefaultEndpoint: "http://alice.example", DefaultLabel: "Alice", AutoAcceptRequests: responderAuto})
	bob := newHarness(t, Config{DefaultEndpoint: "http://bob.example", DefaultLabel: "Bob", AutoAcceptRequests: requesterAuto})

	aliceRec, inv, err := alice.manager.CreateInvitation(ctx, invitation.Options{})
	require.NoError(t, err)
	require.NotNil(t, aliceRec)
	require.Equal(t, StateInvitation, aliceRec.State)

	bobRec, err := bob.manager.ReceiveInvitation(ctx, inv, nil)
	require.NoError(t, err)
	require.Equal(t, RoleRequester, bobRec.Role)

	var req *RequestMessage
	if requesterAuto {
		last := bob.responder.Last()
		require.NotNil(t, last)
		req = last.Message.(*RequestMessage)
		require.Equal(t, StateRequest, bobRec.State)
	} else {
		req, err = bob.manager.CreateRequest(ctx, bobRec)
		require.NoError(t, err)
	}

	bobRcpt := &receipt.MessageReceipt{RecipientVerkey: aliceRec.InvitationKey}
	aliceRec, err = alice.manager.ReceiveRequest(ctx, req, bobRcpt)
	require.NoError(t, err)
	require.Equal(t, bobRec.MyDID, aliceRec.TheirDID)

	var resp *ResponseMessage
	if responderAuto {
		last := alice.responder.Last()
		require.NotNil(t, last)
		resp = last.Message.(*ResponseMessage)
		require.Equal(t, StateResponse, aliceRec.State)
	} else {
		require.Equal(t, StateRequest, aliceRec.State)
		resp, err = alice.manager.CreateResponse(ctx, aliceRec)
		require.NoError(t, err)
	}

	aliceRcpt := &receipt.MessageReceipt{SenderDID: aliceRec.MyDID, RecipientDID: bobRec.MyDID}
	bobRec, err = bob.manager.AcceptResponse(ctx, resp, aliceRcpt)
	require.NoError(t, err)
	require.Equal(t, StateCompleted, bobRec.State)
	require.Equal(t, aliceRec.MyDID, bobRec.TheirDID)

	last := bob.responder.Last()
	require.NotNil(t, last)
	complete := last.Message.(*CompleteMessage)

	aliceRec, err = alice.manager.AcceptComplete(ctx, complete)
	require.NoError(t, err)
	require.Equal(t, StateCompleted, aliceRec.State)

	return alice, bob, aliceRec, bobRec
}

func TestFullExchangeManualAccept(t *testing.T) {
	runExchange(t, false, false)
}

func TestFullExchangeAutoAcceptBothSides(t *testing.T) {
	runExchange(t, true, true)
}

// TestMultiUseInvitationFansOut exercises scenario 4 / property P4: a
// MULTI-use invitation answers two independent requests with two distinct
// child records, without disturbing the template record.
func TestMultiUseInvitationFansOut(t *testing.T) {
	ctx := context.Background()
	alice := newHarness(t, Config{DefaultEndpoint: "http://alice.example", DefaultLabel: "Alice"})

	template, inv, err := alice.manager.CreateInvitation(ctx, invitation.Options{MultiUse: true})
	require.NoError(t, err)
	require.Equal(t, invitation.ModeMulti, template.InvitationMode)

	bob := newHarness(t, Config{DefaultEndpoint: "http://bob.example", DefaultLabel: "Bob"})
	carol := newHarness(t, Config{DefaultEndpoint: "http://carol.example", DefaultLabel: "Carol"})

	bobRec, err := bob.manager.ReceiveInvitation(ctx, inv, nil)
	require.NoError(t, err)
	bobReq, err := bob.manager.CreateRequest(ctx, bobRec)
	require.NoError(t, err)

	carolRec, err := carol.manager.ReceiveInvitation(ctx, inv, nil)
	require.NoError(t, err)
	carolReq, err := carol.manager.CreateRequest(ctx, carolRec)
	require.NoError(t, err)

	rcpt := &receipt.MessageReceipt{RecipientVerkey: template.InvitationKey}
	aliceForBob, err := alice.manager.ReceiveRequest(ctx, bobReq, rcpt)
	require.NoError(t, err)
	aliceForCarol, err := alice.manager.ReceiveRequest(ctx, carolReq, rcpt)
	require.NoError(t, err)

	require.NotEqual(t, aliceForBob.ConnectionID, aliceForCarol.ConnectionID)
	require.NotEqual(t, template.ConnectionID, aliceForBob.ConnectionID)
	require.Equal(t, bobRec.MyDID, aliceForBob.TheirDID)
	require.Equal(t, carolRec.MyDID, aliceForCarol.TheirDID)

	reloadedTemplate, err := alice.manager.LoadRecord(ctx, template.ConnectionID)
	require.NoError(t, err)
	require.Equal(t, StateInvitation, reloadedTemplate.State)
}

// TestReceiveRequestTamperedSignatureRejected exercises property P5: a request whose attachment signature doesn't match its
// claimed signer is rejected, not silently accepted.
func TestReceiveRequestTamperedSignatureRejected(t *testing.T) {
	ctx := context.Background()
	alice := newHarness(t, Config{DefaultEndpoint: "http://alice.example", DefaultLabel: "Alice"})
	bob := newHarness(t, Config{DefaultEndpoint: "http://bob.example", DefaultLabel: "Bob"})

	aliceRec, inv, err := alice.manager.CreateInvitation(ctx, invitation.Options{})
	require.NoError(t, err)
	bobRec, err := bob.manager.ReceiveInvitation(ctx, inv, nil)
	require.NoError(t, err)
	req, err := bob.manager.CreateRequest(ctx, bobRec)
	require.NoError(t, err)

	req.DIDDocAttachment.Data = append([]byte(nil), req.DIDDocAttachment.Data...)
	req.DIDDocAttachment.Data[0] ^= 0xFF

	rcpt := &receipt.MessageReceipt{RecipientVerkey: aliceRec.InvitationKey}
	_, err = alice.manager.ReceiveRequest(ctx, req, rcpt)
	require.ErrorIs(t, err, ErrSignatureInvalid)
}

// TestAcceptResponseWrongStateRejected exercises property P6:
// a response arriving against a record that isn't at REQUEST is rejected.
func TestAcceptResponseWrongStateRejected(t *testing.T) {
	ctx := context.Background()
	alice := newHarness(t, Config{DefaultEndpoint: "http://alice.example", DefaultLabel: "Alice"})
	bob := newHarness(t, Config{DefaultEndpoint: "http://bob.example", DefaultLabel: "Bob"})

	aliceRec, inv, err := alice.manager.CreateInvitation(ctx, invitation.Options{})
	require.NoError(t, err)
	bobRec, err := bob.manager.ReceiveInvitation(ctx, inv, nil)
	require.NoError(t, err)
	req, err := bob.manager.CreateRequest(ctx, bobRec)
	require.NoError(t, err)

	rcpt := &receipt.MessageReceipt{RecipientVerkey: aliceRec.InvitationKey}
	aliceRec, err = alice.manager.ReceiveRequest(ctx, req, rcpt)
	require.NoError(t, err)
	resp, err := alice.manager.CreateResponse(ctx, aliceRec)
	require.NoError(t, err)

	aliceRcpt := &receipt.MessageReceipt{SenderDID: aliceRec.MyDID, RecipientDID: bobRec.MyDID}
	bobRec, err = bob.manager.AcceptResponse(ctx, resp, aliceRcpt)
	require.NoError(t, err)
	require.Equal(t, StateCompleted, bobRec.State)

	_, err = bob.manager.AcceptResponse(ctx, resp, aliceRcpt)
	require.ErrorIs(t, err, ErrWrongState)
}

func TestReceiveInvitationMalformed(t *testing.T) {
	ctx := context.Background()
	bob := newHarness(t, Config{})
	_, err := bob.manager.ReceiveInvitation(ctx, &invitation.Invitation{}, nil)
	require.ErrorIs(t, err, ErrMalformedInvitation)
}

func TestEstablishInboundRequiresRouterCompleted(t *testing.T) {
	ctx := context.Background()
	bob := newHarness(t, Config{DefaultEndpoint: "http://bob.example"})

	router := &Record{ConnectionID: "router-1", State: StateRequest}
	require.NoError(t, bob.manager.saveRecord(ctx, router))

	rec := &Record{ConnectionID: "pending-1", State: StateInvitation, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	_, err := bob.manager.EstablishInbound(ctx, rec, "router-1")
	require.ErrorIs(t, err, ErrRouterNotReady)
}

func TestEstablishInboundUnknownRouter(t *testing.T) {
	ctx := context.Background()
	bob := newHarness(t, Config{DefaultEndpoint: "http://bob.example"})
	rec := &Record{ConnectionID: "pending-1", State: StateInvitation, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	_, err := bob.manager.EstablishInbound(ctx, rec, "does-not-exist")
	require.ErrorIs(t, err, ErrRouterNotFound)
}

func TestProblemReportForUnmatchedResponse(t *testing.T) {
	ctx := context.Background()
	bob := newHarness(t, Config{DefaultEndpoint: "http://bob.example"})

	_, err := bob.manager.AcceptResponse(ctx, &ResponseMessage{ID: "r1"}, &receipt.MessageReceipt{})
	require.ErrorIs(t, err, ErrUnmatchedResponse)

	code, ok := ProblemReportFor(err)
	require.True(t, ok)
	require.Equal(t, ProblemReportResponseNotAccepted, code)
}

func TestAbandonConnectionIsAPolicyDecision(t *testing.T) {
	ctx := context.Background()
	alice := newHarness(t, Config{DefaultEndpoint: "http://alice.example", DefaultLabel: "Alice"})

	rec, _, err := alice.manager.CreateInvitation(ctx, invitation.Options{})
	require.NoError(t, err)
	require.False(t, rec.State.Terminal())

	abandoned, err := alice.manager.AbandonConnection(ctx, rec.ConnectionID)
	require.NoError(t, err)
	require.Equal(t, StateAbandoned, abandoned.State)

	reloaded, err := alice.manager.LoadRecord(ctx, rec.ConnectionID)
	require.NoError(t, err)
	require.Equal(t, StateAbandoned, reloaded.State)

	// Abandoning an already-terminal record is a no-op, not an error.
	again, err := alice.manager.AbandonConnection(ctx, rec.ConnectionID)
	require.NoError(t, err)
	require.Equal(t, StateAbandoned, again.State)
}

func TestAbandonConnectionUnknownID(t *testing.T) {
	ctx := context.Background()
	alice := newHarness(t, Config{DefaultEndpoint: "http://alice.example"})
	_, err := alice.manager.AbandonConnection(ctx, "does-not-exist")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestProblemReportForWrongStateHasNoCode(t *testing.T) {
	ctx := context.Background()
	bob := newHarness(t, Config{DefaultEndpoint: "http://bob.example"})
	rec := &Record{ConnectionID: "c1", State: StateCompleted, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	require.NoError(t, bob.manager.saveRecord(ctx, rec))

	_, err := bob.manager.CreateResponse(ctx, rec)
	require.ErrorIs(t, err, ErrWrongState)

	_, ok := ProblemReportFor(err)
	require.False(t, ok)
}
