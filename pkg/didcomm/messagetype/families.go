/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package messagetype

// Protocol families handled by the agent.
const (
	Connections         = "connections"
	TrustPing           = "trust_ping"
	Notification        = "notification"
	ReportProblem       = "report-problem"
	IssueCredential     = "issue-credential"
	PresentProof        = "present-proof"
	CoordinateMediation = "coordinate-mediation"
	MessagePickup       = "messagepickup"
	Routing             = "routing"
	Signature           = "signature"
)

// NewDefaultRegistry returns a registry with every family the agent implements.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()

	r.Register(Connections, Version{1, 0})
	r.Register(TrustPing, Version{1, 0})
	r.Register(Notification, Version{1, 0})
	r.Register(ReportProblem, Version{1, 0})
	r.Register(IssueCredential, Version{1, 0}, Version{2, 0})
	r.Register(PresentProof, Version{1, 0}, Version{2, 0})
	r.Register(CoordinateMediation, Version{1, 0})
	r.Register(MessagePickup, Version{2, 0})
	r.Register(Routing, Version{1, 0})

	return r
}

// New builds an identifier on the current prefix.
func New(family string, major, minor uint, kind string) Identifier {
	return Identifier{Prefix: DIDCommPrefix, Family: family, Major: major, Minor: minor, Kind: kind}
}
