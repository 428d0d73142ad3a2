package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sage-x-project/didexchange/diddoc"
)

var (
	buildDocDID     string
	buildDocVerkey  string
	buildDocEndpoint []string
)

var buildDiddocCmd = &cobra.Command{
	Use:   "build-diddoc",
	Short: "Build a standalone DID Document, with no inbound routing chain",
	RunE:  runBuildDiddoc,
}

func init() {
	rootCmd.AddCommand(buildDiddocCmd)
	buildDiddocCmd.Flags().StringVar(&buildDocDID, "did", "", "the DID the document describes (required)")
	buildDiddocCmd.Flags().StringVar(&buildDocVerkey, "verkey", "", "base58 Ed25519 verkey for the document's primary key (required)")
	buildDiddocCmd.Flags().StringSliceVar(&buildDocEndpoint, "endpoint", nil, "service endpoint(s) to publish (repeatable)")
	_ = buildDiddocCmd.MarkFlagRequired("did")
	_ = buildDiddocCmd.MarkFlagRequired("verkey")
}

// noRouting is a diddoc.RouterChainDeps that never resolves any router —
// build-diddoc never walks an inbound chain since it has no connection
// store to walk.
type noRouting struct{}

func (noRouting) RouterState(ctx context.Context, connectionID string) (string, string, string, error) {
	return "", "", "", fmt.Errorf("build-diddoc: no routing chain available")
}

func (noRouting) RouterDocument(ctx context.Context, did string) (*diddoc.Document, error) {
	return nil, fmt.Errorf("build-diddoc: no routing chain available")
}

func runBuildDiddoc(cmd *cobra.Command, args []string) error {
	endpoints := buildDocEndpoint
	if len(endpoints) == 0 {
		endpoints = []string{"https://example.org/didcomm"}
	}

	doc, err := diddoc.Build(context.Background(), noRouting{}, diddoc.Info{
		DID:           buildDocDID,
		PrimaryVerkey: buildDocVerkey,
	}, "", endpoints)
	if err != nil {
		return fmt.Errorf("build document: %w", err)
	}

	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}
	fmt.Println(string(out))
	return nil
}
