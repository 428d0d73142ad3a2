package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sage-x-project/didexchange/connection"
)

var showConnectionIn string

var showConnectionCmd = &cobra.Command{
	Use:   "show-connection",
	Short: "Pretty-print a ConnectionRecord previously written by 'invite'",
	RunE:  runShowConnection,
}

func init() {
	rootCmd.AddCommand(showConnectionCmd)
	showConnectionCmd.Flags().StringVar(&showConnectionIn, "in", "", "path to a JSON file containing an invite envelope or a bare ConnectionRecord (required)")
	_ = showConnectionCmd.MarkFlagRequired("in")
}

func runShowConnection(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(showConnectionIn)
	if err != nil {
		return fmt.Errorf("read %s: %w", showConnectionIn, err)
	}

	var envelope inviteEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil || envelope.Record == nil {
		var rec connection.Record
		if err := json.Unmarshal(data, &rec); err != nil {
			return fmt.Errorf("parse %s as either an invite envelope or a bare record: %w", showConnectionIn, err)
		}
		if rec.ConnectionID != "" || envelope.Invitation == nil {
			envelope.Record = &rec
		}
	}

	rec := envelope.Record
	if rec == nil {
		fmt.Println("no connection record present (this is a public-DID invitation, which implies none)")
		return nil
	}

	fmt.Printf("connection_id:   %s\n", rec.ConnectionID)
	fmt.Printf("role:            %s\n", rec.Role)
	fmt.Printf("state:           %s\n", rec.State)
	fmt.Printf("my_did:          %s\n", rec.MyDID)
	fmt.Printf("their_did:       %s\n", rec.TheirDID)
	fmt.Printf("invitation_key:  %s\n", rec.InvitationKey)
	fmt.Printf("invitation_mode: %s\n", rec.InvitationMode)
	fmt.Printf("accept:          %s\n", rec.Accept)
	fmt.Printf("routing_state:   %s\n", rec.RoutingState)
	return nil
}
