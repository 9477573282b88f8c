/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package mediator enables the agent to register with a mediator over an
// existing connection. Once granted, the mediator receives the forward
// messages addressed to the registered keys and queues them for pickup. The
// granted endpoint and routing keys go into the invitations the agent creates.
package mediator
