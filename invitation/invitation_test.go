package invitation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sage-x-project/didexchange/wallet"
)

func TestCreateEphemeralInvitation(t *testing.T) {
	ctx := context.Background()
	w := wallet.NewInMemory()
	cfg := Config{DefaultEndpoint: "http://alice.example", DefaultLabel: "Alice"}

	result, err := Create(ctx, w, cfg, Options{MultiUse: false})
	require.NoError(t, err)

	assert.Empty(t, result.Invitation.Service[0].DID)
	assert.NotEmpty(t, result.InvitationKey)
	assert.Equal(t, ModeOnce, result.Mode)
	assert.Equal(t, "http://alice.example", result.Invitation.Service[0].ServiceEndpoint)
	assert.Len(t, result.Invitation.Service[0].RecipientKeys, 1)
}

func TestCreatePublicInvitationRequiresPublicDID(t *testing.T) {
	ctx := context.Background()
	w := wallet.NewInMemory()
	cfg := Config{PublicInvitesEnabled: true}

	_, err := Create(ctx, w, cfg, Options{Public: true})
	assert.ErrorIs(t, err, ErrNoPublicDID)
}

func TestCreatePublicInvitationDisabled(t *testing.T) {
	ctx := context.Background()
	w := wallet.NewInMemory()
	cfg := Config{PublicInvitesEnabled: false}

	_, err := Create(ctx, w, cfg, Options{Public: true})
	assert.ErrorIs(t, err, ErrPublicInvitesDisabled)
}

func TestCreatePublicInvitationMultiUseRejected(t *testing.T) {
	ctx := context.Background()
	w := wallet.NewInMemory()
	cfg := Config{PublicInvitesEnabled: true}

	_, err := Create(ctx, w, cfg, Options{Public: true, MultiUse: true})
	assert.ErrorIs(t, err, ErrMultiUseWithPublic)
}

func TestResolveAcceptPolicy(t *testing.T) {
	yes, no := true, false
	assert.Equal(t, AcceptAuto, ResolveAcceptPolicy(&yes, false))
	assert.Equal(t, AcceptManual, ResolveAcceptPolicy(&no, true))
	assert.Equal(t, AcceptAuto, ResolveAcceptPolicy(nil, true))
	assert.Equal(t, AcceptManual, ResolveAcceptPolicy(nil, false))
}
