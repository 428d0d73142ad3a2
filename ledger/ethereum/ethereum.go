// SAGE - Secure Agent Guarantee Engine
// Copyright (C) 2025 SAGE-X-project
//
// This file is part of SAGE.
//
// SAGE is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SAGE is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with SAGE. If not, see <https://www.gnu.org/licenses/>.

// SPDX-License-Identifier: LGPL-3.0-or-later

// Package ethereum resolves DIDs against a DIDRegistry contract over JSON-RPC.
// It implements ledger.Ledger read-only; registration and key rotation are
// out of scope for a DID Exchange responder, which only ever needs to look
// a peer's published endpoint and verkey up.
package ethereum

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/sage-x-project/didexchange/ledger"
)

// didRegistryABI is the read-only slice of the DIDRegistry contract this
// client calls: two view functions keyed by the DID string.
//
//	function endpointOf(string did) external view returns (string memory)
//	function verkeyOf(string did) external view returns (string memory)
const didRegistryABI = `[
	{"type":"function","name":"endpointOf","stateMutability":"view",
	 "inputs":[{"name":"did","type":"string"}],
	 "outputs":[{"name":"","type":"string"}]},
	{"type":"function","name":"verkeyOf","stateMutability":"view",
	 "inputs":[{"name":"did","type":"string"}],
	 "outputs":[{"name":"","type":"string"}]}
]`

// Client resolves DIDs against a deployed DIDRegistry contract.
type Client struct {
	backend         *ethclient.Client
	contract        *bind.BoundContract
	contractABI     abi.ABI
	contractAddress common.Address
}

// Config holds the connection parameters for a registry contract.
type Config struct {
	RPCEndpoint     string
	ContractAddress string
}

// NewClient dials rpcEndpoint and binds to the registry contract at
// contractAddress. The returned *Client is read-only: it never sends a
// transaction, only eth_call.
func NewClient(cfg Config) (*Client, error) {
	backend, err := ethclient.Dial(cfg.RPCEndpoint)
	if err != nil {
		return nil, fmt.Errorf("ethereum: dial %s: %w", cfg.RPCEndpoint, err)
	}

	parsedABI, err := abi.JSON(strings.NewReader(didRegistryABI))
	if err != nil {
		return nil, fmt.Errorf("ethereum: parse registry ABI: %w", err)
	}

	address := common.HexToAddress(cfg.ContractAddress)
	contract := bind.NewBoundContract(address, parsedABI, backend, backend, backend)

	return &Client{
		backend:         backend,
		contract:        contract,
		contractABI:     parsedABI,
		contractAddress: address,
	}, nil
}

var _ ledger.Ledger = (*Client)(nil)

func (c *Client) call(ctx context.Context, method, did string) (string, error) {
	var out []interface{}
	opts := &bind.CallOpts{Context: ctx}
	if err := c.contract.Call(opts, &out, method, did); err != nil {
		return "", fmt.Errorf("ethereum: call %s(%s): %w", method, did, err)
	}
	if len(out) != 1 {
		return "", fmt.Errorf("ethereum: %s returned %d values, want 1", method, len(out))
	}
	value, ok := out[0].(string)
	if !ok {
		return "", fmt.Errorf("ethereum: %s returned %T, want string", method, out[0])
	}
	if value == "" {
		return "", ledger.ErrDIDNotFound
	}
	return value, nil
}

// GetEndpointForDID calls endpointOf(did) on the registry contract.
func (c *Client) GetEndpointForDID(ctx context.Context, did string) (string, error) {
	return c.call(ctx, "endpointOf", did)
}

// GetKeyForDID calls verkeyOf(did) on the registry contract.
func (c *Client) GetKeyForDID(ctx context.Context, did string) (string, error) {
	return c.call(ctx, "verkeyOf", did)
}
