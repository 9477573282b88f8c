/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package aries is a DIDComm agent stack built on the Hyperledger Aries protocols
// (https://www.hyperledger.org/projects/aries).
//
// Packages for end developer usage
//
// pkg/framework/aries: The agent. It wires storage, wallet, packaging, transports and the
// protocol services (connection, coordinate-mediation, message pickup, issue credential,
// present proof) from functional options.
//
// pkg/client/connection, pkg/client/mediator, pkg/client/messagepickup: Clients driving a
// protocol on an agent and waiting for its outcome.
//
// cmd/aries-agentd: An agent daemon exposing the agent's inbound transports and an admin API.
//
// Basic workflow
//
//      1) Instantiate an agent with aries.New and the options you need.
//      2) Create a client instance using its New func, passing the agent.
//      3) Use the funcs provided by each client to create your solution!
//      4) Call Close() on the agent to release resources.
package aries
