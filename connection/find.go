package connection

import "context"

// FindConnection implements the find_connection step of the inbound
// resolver (component E): locate a record by (their_did, my_did), falling
// back to (invitation_key=myVerkey, role=REQUESTER) when myVerkey is set
// and the first lookup misses. A record found in RESPONSE is advanced to
// COMPLETED — the first confirmed inbound message from a peer is itself
// proof the exchange finished.
func (m *Manager) FindConnection(ctx context.Context, theirDID, myDID, myVerkey string) (*Record, error) {
	rec, err := m.FindByDIDs(ctx, theirDID, myDID)
	if err != nil {
		return nil, err
	}
	if rec == nil && myVerkey != "" {
		rec, err = m.FindByInvitationKeyAndRole(ctx, myVerkey, RoleRequester)
		if err != nil {
			return nil, err
		}
	}
	if rec == nil {
		return nil, nil
	}
	if rec.State == StateResponse {
		rec.State = StateCompleted
		if err := m.saveRecord(ctx, rec); err != nil {
			return nil, err
		}
	}
	return rec, nil
}
