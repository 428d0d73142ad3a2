package connection

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sage-x-project/didexchange/cache"
	"github.com/sage-x-project/didexchange/diddoc"
	"github.com/sage-x-project/didexchange/didstore"
	"github.com/sage-x-project/didexchange/internal/metrics"
	"github.com/sage-x-project/didexchange/invitation"
	"github.com/sage-x-project/didexchange/ledger"
	"github.com/sage-x-project/didexchange/receipt"
	"github.com/sage-x-project/didexchange/responder"
	"github.com/sage-x-project/didexchange/routing"
	"github.com/sage-x-project/didexchange/store"
	"github.com/sage-x-project/didexchange/wallet"
)

// RecordType is the store.Store record type ConnectionRecords are persisted
// under.
const RecordType = "connection"

// Deps is the capabilities struct every collaborator a Manager calls out to
// is injected through, rather than a dynamic-dispatch injection context.
type Deps struct {
	Wallet    wallet.Wallet
	Store     store.Store
	DIDStore  *didstore.Store
	Responder responder.Responder
	Ledger    ledger.Ledger
	Cache     cache.Cache
	Routing   routing.Manager
}

// Config is the process-wide configuration value-object; never read from
// mutable globals.
type Config struct {
	PublicInvitesEnabled bool
	DefaultEndpoint      string
	DefaultLabel         string
	AdditionalEndpoints  []string
	AutoAcceptRequests   bool
	AutoAcceptResponses  bool
	MaxRoutingDepth      int
	InboundCacheTTL      time.Duration
	TargetCacheTTL       time.Duration
}

// Manager drives the DID Exchange state machine for every ConnectionRecord
// it is asked to handle.
type Manager struct {
	deps Deps
	cfg  Config
}

// NewManager builds a Manager. cfg.MaxRoutingDepth, cfg.InboundCacheTTL and
// cfg.TargetCacheTTL fall back to diddoc.MaxChainDepth and one hour
// respectively when zero.
func NewManager(deps Deps, cfg Config) *Manager {
	if cfg.MaxRoutingDepth == 0 {
		cfg.MaxRoutingDepth = diddoc.MaxChainDepth
	}
	if cfg.InboundCacheTTL == 0 {
		cfg.InboundCacheTTL = time.Hour
	}
	if cfg.TargetCacheTTL == 0 {
		cfg.TargetCacheTTL = time.Hour
	}
	return &Manager{deps: deps, cfg: cfg}
}

func (m *Manager) endpoints() []string {
	endpoints := []string{m.cfg.DefaultEndpoint}
	return append(endpoints, m.cfg.AdditionalEndpoints...)
}

func (m *Manager) invitationConfig() invitation.Config {
	return invitation.Config{
		PublicInvitesEnabled: m.cfg.PublicInvitesEnabled,
		DefaultEndpoint:      m.cfg.DefaultEndpoint,
		DefaultLabel:         m.cfg.DefaultLabel,
		AutoAcceptRequests:   m.cfg.AutoAcceptRequests,
	}
}

// --- persistence helpers -----------------------------------------------

func (m *Manager) saveRecord(ctx context.Context, rec *Record) error {
	rec.UpdatedAt = time.Now()
	value, err := rec.marshal()
	if err != nil {
		return fmt.Errorf("connection: marshal record: %w", err)
	}
	tags := recordTags(rec)

	record := &store.Record{Type: RecordType, ID: rec.ConnectionID, Value: value, Tags: tags}
	if err := m.deps.Store.Add(ctx, record); err != nil {
		if err == store.ErrRecordExists {
			// UpdateValue would keep the first save's tags, so the record is
			// replaced whole to keep request_id/their_did/my_did/state indexed.
			if err := m.deps.Store.Delete(ctx, RecordType, rec.ConnectionID); err != nil {
				return fmt.Errorf("connection: save record: %w", err)
			}
			if err := m.deps.Store.Add(ctx, record); err != nil {
				return fmt.Errorf("connection: save record: %w", err)
			}
			return nil
		}
		return fmt.Errorf("connection: save record: %w", err)
	}
	return nil
}

func recordTags(rec *Record) map[string]string {
	tags := map[string]string{
		"connection_id": rec.ConnectionID,
		"role":          string(rec.Role),
		"state":         string(rec.State),
	}
	if rec.InvitationKey != "" {
		tags["invitation_key"] = rec.InvitationKey
	}
	if rec.TheirDID != "" {
		tags["their_did"] = rec.TheirDID
	}
	if rec.MyDID != "" {
		tags["my_did"] = rec.MyDID
	}
	if rec.RequestID != "" {
		tags["request_id"] = rec.RequestID
	}
	if rec.InboundConnectionID != "" {
		tags["inbound_connection_id"] = rec.InboundConnectionID
	}
	return tags
}

// LoadRecord fetches a record by ID, returning (nil, nil) if absent.
func (m *Manager) LoadRecord(ctx context.Context, connectionID string) (*Record, error) {
	rec, err := m.deps.Store.Get(ctx, RecordType, connectionID)
	if err != nil {
		if err == store.ErrNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("connection: load record: %w", err)
	}
	return unmarshalRecord(rec.Value)
}

// AbandonConnection transitions rec to ABANDONED. The state machine never
// does this on its own — a failed transition only returns an error to the
// caller — so an agent that decides a connection is no longer worth
// retrying calls this explicitly.
func (m *Manager) AbandonConnection(ctx context.Context, connectionID string) (*Record, error) {
	rec, err := m.LoadRecord(ctx, connectionID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, store.ErrNotFound
	}
	if rec.State.Terminal() {
		return rec, nil
	}
	rec.State = StateAbandoned
	if err := m.saveRecord(ctx, rec); err != nil {
		return nil, err
	}
	metrics.ConnectionsAbandoned.Inc()
	return rec, nil
}

func (m *Manager) findOneByTags(ctx context.Context, tagQuery map[string]string) (*Record, error) {
	rec, err := m.deps.Store.SearchOne(ctx, RecordType, tagQuery)
	if err != nil {
		if err == store.ErrNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("connection: search record: %w", err)
	}
	return unmarshalRecord(rec.Value)
}

func (m *Manager) findAllByTags(ctx context.Context, tagQuery map[string]string) ([]*Record, error) {
	recs, err := m.deps.Store.SearchAll(ctx, RecordType, tagQuery)
	if err != nil {
		return nil, fmt.Errorf("connection: search records: %w", err)
	}
	out := make([]*Record, 0, len(recs))
	for _, rec := range recs {
		r, err := unmarshalRecord(rec.Value)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// FindByDIDs looks a record up by (their_did, my_did); returns (nil, nil)
// if no record matches.
func (m *Manager) FindByDIDs(ctx context.Context, theirDID, myDID string) (*Record, error) {
	if theirDID == "" || myDID == "" {
		return nil, nil
	}
	return m.findOneByTags(ctx, map[string]string{"their_did": theirDID, "my_did": myDID})
}

// FindByInvitationKeyAndRole looks a record up by (invitation_key, role).
func (m *Manager) FindByInvitationKeyAndRole(ctx context.Context, invitationKey string, role Role) (*Record, error) {
	if invitationKey == "" {
		return nil, nil
	}
	return m.findOneByTags(ctx, map[string]string{"invitation_key": invitationKey, "role": string(role)})
}

func (m *Manager) findByRequestID(ctx context.Context, requestID string) (*Record, error) {
	if requestID == "" {
		return nil, nil
	}
	return m.findOneByTags(ctx, map[string]string{"request_id": requestID})
}

// --- diddoc.RouterChainDeps adapter --------------------------------------

type routerChainDeps struct{ m *Manager }

func (r routerChainDeps) RouterState(ctx context.Context, connectionID string) (string, string, string, error) {
	rec, err := r.m.LoadRecord(ctx, connectionID)
	if err != nil {
		return "", "", "", err
	}
	if rec == nil {
		return "", "", "", ErrRouterNotFound
	}
	return string(rec.State), rec.MyDID, rec.InboundConnectionID, nil
}

func (r routerChainDeps) RouterDocument(ctx context.Context, did string) (*diddoc.Document, error) {
	return r.m.deps.DIDStore.FetchDocument(ctx, did)
}

func (m *Manager) buildOurDocument(ctx context.Context, did, verkey, inboundConnectionID string) (*diddoc.Document, error) {
	return diddoc.Build(ctx, routerChainDeps{m}, diddoc.Info{DID: did, PrimaryVerkey: verkey}, inboundConnectionID, m.endpoints())
}

// --- C: Invitation factory -----------------------------------------------

// CreateInvitation builds an invitation and, for the ephemeral flavor,
// persists the ConnectionRecord it implies. rec is nil for public-DID
// invitations, which need no record of their own.
func (m *Manager) CreateInvitation(ctx context.Context, opts invitation.Options) (*Record, *invitation.Invitation, error) {
	result, err := invitation.Create(ctx, m.deps.Wallet, m.invitationConfig(), opts)
	if err != nil {
		return nil, nil, err
	}
	if result.InvitationKey == "" {
		return nil, result.Invitation, nil
	}

	now := time.Now()
	rec := &Record{
		ConnectionID:   uuid.NewString(),
		InvitationKey:  result.InvitationKey,
		Role:           RoleResponder,
		State:          StateInvitation,
		Accept:         result.Accept,
		InvitationMode: result.Mode,
		Invitation:     result.Invitation,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := m.saveRecord(ctx, rec); err != nil {
		return nil, nil, err
	}
	metrics.HandshakesInitiated.WithLabelValues("responder").Inc()
	metrics.ConnectionsCreated.WithLabelValues("responder").Inc()
	return rec, result.Invitation, nil
}

// --- D: Request / Response / Complete engine -----------------------------

// ReceiveInvitation validates an incoming invitation, constructs a pending
// ConnectionRecord for it, and — if the resolved accept policy is AUTO —
// immediately drives create_request and dispatches it.
func (m *Manager) ReceiveInvitation(ctx context.Context, inv *invitation.Invitation, autoAccept *bool) (*Record, error) {
	invitationKey, err := validateInvitation(inv)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	rec := &Record{
		ConnectionID:  uuid.NewString(),
		InvitationKey: invitationKey,
		Role:          RoleRequester,
		State:         StateInvitation,
		Accept:        invitation.ResolveAcceptPolicy(autoAccept, m.cfg.AutoAcceptRequests),
		Invitation:    inv,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := m.saveRecord(ctx, rec); err != nil {
		return nil, err
	}
	metrics.HandshakesInitiated.WithLabelValues("requester").Inc()
	metrics.ConnectionsCreated.WithLabelValues("requester").Inc()

	if rec.Accept == invitation.AcceptAuto {
		req, err := m.CreateRequest(ctx, rec)
		if err != nil {
			return nil, err
		}
		if err := m.deps.Responder.Send(ctx, rec.ConnectionID, req); err != nil {
			return nil, fmt.Errorf("connection: dispatch request: %w", err)
		}
	}
	return rec, nil
}

func validateInvitation(inv *invitation.Invitation) (invitationKey string, err error) {
	if len(inv.Service) == 0 {
		return "", fmt.Errorf("%w: no service blocks", ErrMalformedInvitation)
	}
	var hasDID, allInline bool
	allInline = true
	for _, svc := range inv.Service {
		if svc.DID != "" {
			hasDID = true
			continue
		}
		if len(svc.RecipientKeys) == 0 || svc.ServiceEndpoint == "" {
			allInline = false
		}
	}
	if !hasDID && !allInline {
		return "", fmt.Errorf("%w: service block missing recipient_keys or service_endpoint", ErrMalformedInvitation)
	}
	if !hasDID {
		return stripDIDKeyPrefix(inv.Service[0].RecipientKeys[0]), nil
	}
	return "", nil
}

// stripDIDKeyPrefix strips the "did:key:" prefix an invitation's wire
// service block carries, so a record's invitation_key tag always holds the
// bare base58 verkey the same way CreateInvitation's ephemeral flavor
// stores it — keeping both sides of an invitation indexed under the same
// key format.
func stripDIDKeyPrefix(key string) string {
	const prefix = "did:key:"
	if len(key) > len(prefix) && key[:len(prefix)] == prefix {
		return key[len(prefix):]
	}
	return key
}

// CreateRequest resolves (or creates) our local DID, builds and signs our
// DID Document, and advances rec to REQUEST.
func (m *Manager) CreateRequest(ctx context.Context, rec *Record) (*RequestMessage, error) {
	opStart := time.Now()
	defer func() {
		metrics.ConnectionStateDuration.WithLabelValues("create_request").Observe(time.Since(opStart).Seconds())
	}()

	local, err := m.resolveMyDID(ctx, rec)
	if err != nil {
		return nil, err
	}

	doc, err := m.buildOurDocument(ctx, rec.MyDID, local.Verkey, rec.InboundConnectionID)
	if err != nil {
		return nil, err
	}
	docBytes, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("connection: marshal our document: %w", err)
	}
	signStart := time.Now()
	signature, err := m.deps.Wallet.Sign(ctx, docBytes, local.Verkey)
	signDur := time.Since(signStart)
	metrics.CryptoOperations.WithLabelValues("sign", "ed25519").Inc()
	metrics.CryptoOperationDuration.WithLabelValues("sign", "ed25519").Observe(signDur.Seconds())
	metrics.GetGlobalCollector().RecordSignature(signDur)
	if err != nil {
		metrics.CryptoErrors.WithLabelValues("sign").Inc()
		return nil, fmt.Errorf("connection: sign request attachment: %w", err)
	}

	requestID := uuid.NewString()
	req := &RequestMessage{
		ID:    requestID,
		Type:  MessageTypeRequest,
		Label: m.cfg.DefaultLabel,
		DID:   rec.MyDID,
		DIDDocAttachment: &Attachment{
			Data:         docBytes,
			SignerVerkey: local.Verkey,
			Signature:    signature,
		},
		Thread: Thread{ThreadID: requestID, ParentThreadID: firstServiceID(doc)},
	}

	rec.RequestID = requestID
	rec.Request = req
	rec.State = StateRequest
	if err := m.saveRecord(ctx, rec); err != nil {
		return nil, err
	}
	return req, nil
}

func (m *Manager) resolveMyDID(ctx context.Context, rec *Record) (*wallet.LocalDID, error) {
	if rec.MyDID != "" {
		return m.deps.Wallet.GetLocalDID(ctx, rec.MyDID)
	}
	local, err := m.deps.Wallet.CreateLocalDID(ctx)
	if err != nil {
		return nil, fmt.Errorf("connection: create local did: %w", err)
	}
	rec.MyDID = local.DID
	return local, nil
}

func firstServiceID(doc *diddoc.Document) string {
	if _, ok := doc.Services["indy"]; ok {
		return "indy"
	}
	for id := range doc.Services {
		return id
	}
	return ""
}

// ReceiveRequest implements the responder side of create_request: it
// determines which pending record (if any) the request answers, verifies
// the attached DID Document, persists it, and advances the record to
// REQUEST. For a MULTI-use invitation the matched record is a template —
// receiving a request against it clones a fresh child record rather than
// mutating the template, so the same invitation can be answered again.
func (m *Manager) ReceiveRequest(ctx context.Context, req *RequestMessage, rcpt *receipt.MessageReceipt) (_ *Record, err error) {
	opStart := time.Now()
	defer func() {
		dur := time.Since(opStart).Seconds()
		metrics.ConnectionStateDuration.WithLabelValues("receive_request").Observe(dur)
		metrics.MessageProcessingDuration.Observe(dur)
		status := "success"
		if err != nil {
			status = "failure"
		}
		metrics.MessagesProcessed.WithLabelValues("request", status).Inc()
	}()

	if req.DIDDocAttachment != nil {
		metrics.MessageSize.Observe(float64(len(req.DIDDocAttachment.Data)))
	}

	rec, err := m.matchPendingRecord(ctx, rcpt)
	if err != nil {
		return nil, err
	}

	if req.DIDDocAttachment == nil || len(req.DIDDocAttachment.Data) == 0 {
		metrics.AttachmentVerifications.WithLabelValues("missing").Inc()
		return nil, ErrMissingAttachment
	}
	verifyStart := time.Now()
	ok, err := m.deps.Wallet.Verify(ctx, req.DIDDocAttachment.Data, req.DIDDocAttachment.Signature, req.DIDDocAttachment.SignerVerkey)
	verifyDur := time.Since(verifyStart)
	metrics.CryptoOperations.WithLabelValues("verify", "ed25519").Inc()
	metrics.CryptoOperationDuration.WithLabelValues("verify", "ed25519").Observe(verifyDur.Seconds())
	metrics.GetGlobalCollector().RecordVerification(err == nil && ok, verifyDur)
	if err != nil {
		metrics.CryptoErrors.WithLabelValues("verify").Inc()
		return nil, fmt.Errorf("connection: verify request attachment: %w", err)
	}
	if !ok {
		metrics.AttachmentVerifications.WithLabelValues("invalid").Inc()
		return nil, ErrSignatureInvalid
	}
	metrics.AttachmentVerifications.WithLabelValues("valid").Inc()
	var doc diddoc.Document
	if err := json.Unmarshal(req.DIDDocAttachment.Data, &doc); err != nil {
		return nil, fmt.Errorf("connection: unmarshal request document: %w", err)
	}
	if req.DID != doc.DID {
		return nil, protocolError(ErrDIDMismatch, ProblemReportRequestNotAccepted)
	}

	if rec == nil {
		if !m.cfg.PublicInvitesEnabled {
			return nil, ErrPublicInvitesDisabled
		}
		public, err := m.deps.Wallet.GetLocalDID(ctx, rcpt.RecipientDID)
		if err != nil {
			return nil, fmt.Errorf("connection: load public did: %w", err)
		}
		now := time.Now()
		rec = &Record{
			ConnectionID: uuid.NewString(),
			MyDID:        public.DID,
			Role:         RoleResponder,
			State:        StateInvitation,
			Accept:       invitation.ResolveAcceptPolicy(nil, m.cfg.AutoAcceptRequests),
			CreatedAt:    now,
			UpdatedAt:    now,
		}
	}

	if err := m.deps.DIDStore.StoreDocument(ctx, &doc); err != nil {
		return nil, fmt.Errorf("connection: store request document: %w", err)
	}

	threadID := req.Thread.ThreadID
	if threadID == "" {
		threadID = req.ID
	}
	rec.TheirDID = doc.DID
	rec.TheirLabel = req.Label
	rec.Request = req
	rec.RequestID = threadID
	rec.State = StateRequest
	if err := m.saveRecord(ctx, rec); err != nil {
		return nil, err
	}

	if rec.Accept == invitation.AcceptAuto {
		resp, err := m.CreateResponse(ctx, rec)
		if err != nil {
			return nil, err
		}
		if err := m.deps.Responder.SendReply(ctx, rec.ConnectionID, resp); err != nil {
			return nil, fmt.Errorf("connection: dispatch response: %w", err)
		}
	}
	return rec, nil
}

// matchPendingRecord runs the three-step key-determination algorithm:
// a public recipient DID skips straight to "no pre-existing record";
// otherwise the request is matched by invitation_key, and a MULTI-use
// match is cloned into a fresh child rather than used directly.
func (m *Manager) matchPendingRecord(ctx context.Context, rcpt *receipt.MessageReceipt) (*Record, error) {
	if rcpt.RecipientDIDPublic {
		return nil, nil
	}

	template, err := m.FindByInvitationKeyAndRole(ctx, rcpt.RecipientVerkey, RoleResponder)
	if err != nil {
		return nil, err
	}
	if template == nil {
		return nil, ErrInvitationNotFound
	}
	if template.InvitationMode != invitation.ModeMulti {
		return template, nil
	}

	child := template.clone()
	child.ConnectionID = uuid.NewString()
	child.MyDID = ""
	child.TheirDID = ""
	child.TheirLabel = ""
	child.RequestID = ""
	child.Request = nil
	child.State = StateInvitation
	now := time.Now()
	child.CreatedAt = now
	child.UpdatedAt = now
	return child, nil
}

// CreateResponse builds and signs our response document. Per the resolved
// open question on attachment signing, the response attachment is signed
// with the invitation_key rather than the connection's long-term DID key —
// it is the only key the requester can already verify against the
// invitation it holds.
func (m *Manager) CreateResponse(ctx context.Context, rec *Record) (*ResponseMessage, error) {
	opStart := time.Now()
	defer func() {
		metrics.ConnectionStateDuration.WithLabelValues("create_response").Observe(time.Since(opStart).Seconds())
	}()

	if rec.State != StateRequest {
		return nil, ErrWrongState
	}
	if rec.InvitationKey == "" {
		return nil, fmt.Errorf("connection: create response: record has no invitation_key to sign with")
	}

	local, err := m.resolveMyDID(ctx, rec)
	if err != nil {
		return nil, err
	}
	doc, err := m.buildOurDocument(ctx, rec.MyDID, local.Verkey, rec.InboundConnectionID)
	if err != nil {
		return nil, err
	}
	docBytes, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("connection: marshal our document: %w", err)
	}
	signStart := time.Now()
	signature, err := m.deps.Wallet.Sign(ctx, docBytes, rec.InvitationKey)
	signDur := time.Since(signStart)
	metrics.CryptoOperations.WithLabelValues("sign", "ed25519").Inc()
	metrics.CryptoOperationDuration.WithLabelValues("sign", "ed25519").Observe(signDur.Seconds())
	metrics.GetGlobalCollector().RecordSignature(signDur)
	if err != nil {
		metrics.CryptoErrors.WithLabelValues("sign").Inc()
		return nil, fmt.Errorf("connection: sign response attachment: %w", err)
	}

	var thread Thread
	if rec.Request != nil {
		thread = rec.Request.Thread
	}
	resp := &ResponseMessage{
		ID:   uuid.NewString(),
		Type: MessageTypeResponse,
		DID:  rec.MyDID,
		DIDDocAttachment: &Attachment{
			Data:         docBytes,
			SignerVerkey: rec.InvitationKey,
			Signature:    signature,
		},
		Thread: thread,
	}

	rec.State = StateResponse
	if err := m.saveRecord(ctx, rec); err != nil {
		return nil, err
	}
	return resp, nil
}

// AcceptResponse implements the requester side of create_response: it
// locates the record the response answers, verifies the attached
// document, and transitions all the way to COMPLETED once the Complete
// message has actually been dispatched, rather than leaving the record at
// RESPONSE (see DESIGN.md for why).
func (m *Manager) AcceptResponse(ctx context.Context, resp *ResponseMessage, rcpt *receipt.MessageReceipt) (_ *Record, err error) {
	opStart := time.Now()
	defer func() {
		dur := time.Since(opStart).Seconds()
		metrics.ConnectionStateDuration.WithLabelValues("accept_response").Observe(dur)
		metrics.MessageProcessingDuration.Observe(dur)
		status := "success"
		if err != nil {
			status = "failure"
		}
		metrics.MessagesProcessed.WithLabelValues("response", status).Inc()
	}()

	if resp.DIDDocAttachment != nil {
		metrics.MessageSize.Observe(float64(len(resp.DIDDocAttachment.Data)))
	}

	rec, err := m.findByRequestID(ctx, resp.Thread.ThreadID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		rec, err = m.FindByDIDs(ctx, rcpt.SenderDID, rcpt.RecipientDID)
		if err != nil {
			return nil, err
		}
	}
	if rec == nil {
		metrics.UnmatchedResponses.Inc()
		return nil, protocolError(ErrUnmatchedResponse, ProblemReportResponseNotAccepted)
	}
	if rec.State != StateRequest {
		return nil, ErrWrongState
	}

	if resp.DIDDocAttachment == nil || len(resp.DIDDocAttachment.Data) == 0 {
		metrics.AttachmentVerifications.WithLabelValues("missing").Inc()
		return nil, ErrMissingAttachment
	}
	verifyStart := time.Now()
	ok, err := m.deps.Wallet.Verify(ctx, resp.DIDDocAttachment.Data, resp.DIDDocAttachment.Signature, resp.DIDDocAttachment.SignerVerkey)
	verifyDur := time.Since(verifyStart)
	metrics.CryptoOperations.WithLabelValues("verify", "ed25519").Inc()
	metrics.CryptoOperationDuration.WithLabelValues("verify", "ed25519").Observe(verifyDur.Seconds())
	metrics.GetGlobalCollector().RecordVerification(err == nil && ok, verifyDur)
	if err != nil {
		metrics.CryptoErrors.WithLabelValues("verify").Inc()
		return nil, fmt.Errorf("connection: verify response attachment: %w", err)
	}
	if !ok {
		metrics.AttachmentVerifications.WithLabelValues("invalid").Inc()
		return nil, ErrSignatureInvalid
	}
	metrics.AttachmentVerifications.WithLabelValues("valid").Inc()
	var doc diddoc.Document
	if err := json.Unmarshal(resp.DIDDocAttachment.Data, &doc); err != nil {
		return nil, fmt.Errorf("connection: unmarshal response document: %w", err)
	}
	if resp.DID != doc.DID {
		return nil, protocolError(ErrDIDMismatch, ProblemReportResponseNotAccepted)
	}

	if err := m.deps.DIDStore.StoreDocument(ctx, &doc); err != nil {
		return nil, fmt.Errorf("connection: store response document: %w", err)
	}
	rec.TheirDID = doc.DID
	rec.State = StateResponse
	if err := m.saveRecord(ctx, rec); err != nil {
		return nil, err
	}

	complete := &CompleteMessage{ID: uuid.NewString(), Type: MessageTypeComplete, Thread: resp.Thread}
	if err := m.deps.Responder.SendReply(ctx, rec.ConnectionID, complete); err != nil {
		return nil, fmt.Errorf("connection: dispatch complete: %w", err)
	}

	rec.State = StateCompleted
	if err := m.saveRecord(ctx, rec); err != nil {
		return nil, err
	}
	metrics.HandshakesCompleted.WithLabelValues("requester").Inc()
	metrics.ConnectionsActive.Inc()
	return rec, nil
}

// AcceptComplete implements the responder side of accept_complete:
// matching a Complete message closes the loop unconditionally.
func (m *Manager) AcceptComplete(ctx context.Context, comp *CompleteMessage) (_ *Record, err error) {
	defer func() {
		status := "success"
		if err != nil {
			status = "failure"
		}
		metrics.MessagesProcessed.WithLabelValues("complete", status).Inc()
	}()

	rec, err := m.findByRequestID(ctx, comp.Thread.ThreadID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		metrics.UnmatchedResponses.Inc()
		return nil, protocolError(ErrCompleteNotAccepted, ProblemReportCompleteNotAccepted)
	}
	rec.State = StateCompleted
	if err := m.saveRecord(ctx, rec); err != nil {
		return nil, err
	}
	metrics.HandshakesCompleted.WithLabelValues("responder").Inc()
	metrics.ConnectionsActive.Inc()
	return rec, nil
}
