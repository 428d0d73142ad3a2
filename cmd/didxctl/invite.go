package main

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"os"

	"github.com/mr-tron/base58"
	"github.com/spf13/cobra"

	"github.com/sage-x-project/didexchange/cache"
	"github.com/sage-x-project/didexchange/connection"
	"github.com/sage-x-project/didexchange/didstore"
	"github.com/sage-x-project/didexchange/invitation"
	"github.com/sage-x-project/didexchange/ledger"
	"github.com/sage-x-project/didexchange/responder"
	"github.com/sage-x-project/didexchange/routing"
	"github.com/sage-x-project/didexchange/store"
	"github.com/sage-x-project/didexchange/wallet"
)

var (
	inviteLabel    string
	inviteEndpoint string
	invitePublic   bool
	inviteMultiUse bool
	inviteOut      string
)

var inviteCmd = &cobra.Command{
	Use:   "invite",
	Short: "Create an out-of-band DID Exchange invitation",
	RunE:  runInvite,
}

func init() {
	rootCmd.AddCommand(inviteCmd)

	defaultEndpoint, defaultLabel, _, defaultPublicInvitesEnabled, _, _, _, _, _ := cfg.Agent.Manager()

	inviteCmd.Flags().StringVar(&inviteLabel, "label", defaultLabel, "human-readable label advertised on the invitation")
	inviteCmd.Flags().StringVar(&inviteEndpoint, "endpoint", defaultEndpoint, "service endpoint advertised on the invitation")
	inviteCmd.Flags().BoolVar(&invitePublic, "public", defaultPublicInvitesEnabled, "mint a fresh public DID and create a public-DID invitation instead of an ephemeral one")
	inviteCmd.Flags().BoolVar(&inviteMultiUse, "multi-use", false, "allow the invitation to be answered by more than one peer")
	inviteCmd.Flags().StringVar(&inviteOut, "out", "", "write the resulting invitation and connection record to this file instead of stdout")
}

// inviteEnvelope is what invite writes out: the wire invitation plus the
// ConnectionRecord it implies (nil for public invitations, which imply
// none until a request arrives).
type inviteEnvelope struct {
	Invitation *invitation.Invitation `json:"invitation"`
	Record     *connection.Record    `json:"record,omitempty"`
}

func runInvite(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	w := wallet.NewInMemory()

	deps := connection.Deps{
		Wallet:    w,
		Store:     store.NewMemory(),
		DIDStore:  didstore.New(store.NewMemory()),
		Responder: responder.NewRecording(),
		Ledger:    ledger.NewStatic(),
		Cache:     cache.NewTTLCache(0),
		Routing:   routing.NewInMemory(),
	}
	_, _, additionalEndpoints, _, autoAcceptRequests, autoAcceptResponses, maxRoutingDepth, inboundCacheTTL, targetCacheTTL := cfg.Agent.Manager()
	mgr := connection.NewManager(deps, connection.Config{
		DefaultEndpoint:      inviteEndpoint,
		DefaultLabel:         inviteLabel,
		PublicInvitesEnabled: invitePublic,
		AdditionalEndpoints:  additionalEndpoints,
		AutoAcceptRequests:   autoAcceptRequests,
		AutoAcceptResponses:  autoAcceptResponses,
		MaxRoutingDepth:      maxRoutingDepth,
		InboundCacheTTL:      inboundCacheTTL,
		TargetCacheTTL:       targetCacheTTL,
	})

	if invitePublic {
		did, verkey, priv, err := mintPublicDID()
		if err != nil {
			return err
		}
		if err := w.RegisterPublicDID(ctx, did, verkey, priv); err != nil {
			return fmt.Errorf("register public did: %w", err)
		}
		fmt.Fprintf(os.Stderr, "minted public DID %s (verkey %s)\n", did, verkey)
	}

	rec, inv, err := mgr.CreateInvitation(ctx, invitation.Options{
		Label:    inviteLabel,
		Endpoint: inviteEndpoint,
		Public:   invitePublic,
		MultiUse: inviteMultiUse,
	})
	if err != nil {
		return fmt.Errorf("create invitation: %w", err)
	}

	out, err := json.MarshalIndent(inviteEnvelope{Invitation: inv, Record: rec}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal invitation: %w", err)
	}

	if inviteOut == "" {
		fmt.Println(string(out))
		return nil
	}
	return os.WriteFile(inviteOut, out, 0o644)
}

func mintPublicDID() (did, verkey string, priv ed25519.PrivateKey, err error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return "", "", nil, fmt.Errorf("generate public did key: %w", err)
	}
	verkey = base58.Encode(pub)
	did = "did:sov:" + base58.Encode(pub[:16])
	return did, verkey, priv, nil
}
