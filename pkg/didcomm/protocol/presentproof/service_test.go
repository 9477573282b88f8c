/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package presentproof

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hyperledger/aries-didcomm-go/pkg/anoncreds"
	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/common/agenterr"
	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/common/service"
	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/messagetype"
	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/protocol/decorator"
	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/protocol/notification"
	"github.com/hyperledger/aries-didcomm-go/pkg/ledger"
	mockanoncreds "github.com/hyperledger/aries-didcomm-go/pkg/mock/anoncreds"
	mockledger "github.com/hyperledger/aries-didcomm-go/pkg/mock/ledger"
	"github.com/hyperledger/aries-didcomm-go/pkg/storage/mem"
	"github.com/hyperledger/aries-didcomm-go/pkg/store/threadstate"
)

const (
	schemaID  = "did:sov:issuer:2:degree:1.0"
	credDefID = "did:sov:issuer:3:CL:degree:default"
	revRegID  = "did:sov:issuer:4:degree:CL_ACCUM:default"
	credID    = "degree-credential"
)

type testProvider struct {
	anoncreds  anoncreds.Anoncreds
	ledger     ledger.Ledger
	threads    *threadstate.Store
	autoAccept bool
}

func (p *testProvider) Anoncreds() anoncreds.Anoncreds  { return p.anoncreds }
func (p *testProvider) Ledger() ledger.Ledger           { return p.ledger }
func (p *testProvider) ThreadStore() *threadstate.Store { return p.threads }
func (p *testProvider) AutoAccept() bool                { return p.autoAccept }

// party is one side of a presentation.
type party struct {
	svc    *Service
	ac     *mockanoncreds.MockAnoncreds
	ledger *mockledger.MockLedger
	connID string
}

func newParty(t *testing.T, connID string, autoAccept bool) *party {
	t.Helper()

	threads, err := threadstate.New(mem.NewProvider())
	require.NoError(t, err)

	p := &party{
		ac:     mockanoncreds.New(),
		ledger: mockledger.NewMockLedger(),
		connID: connID,
	}

	ctx := context.Background()
	require.NoError(t, p.ledger.PublishSchema(ctx, &ledger.Schema{
		ID: schemaID, Name: "degree", Version: "1.0", AttrNames: []string{"name", "degree", "age"},
	}))
	require.NoError(t, p.ledger.PublishCredDef(ctx, &ledger.CredDef{ID: credDefID, SchemaID: schemaID}))

	p.svc, err = New(&testProvider{
		anoncreds:  p.ac,
		ledger:     p.ledger,
		threads:    threads,
		autoAccept: autoAccept,
	})
	require.NoError(t, err)

	return p
}

func newProver(t *testing.T, autoAccept bool) *party {
	t.Helper()

	p := newParty(t, "verifier-conn", autoAccept)
	p.ac.AddCredential(anoncreds.CredentialInfo{
		Referent:  credID,
		Attrs:     map[string]string{"name": "Alice", "degree": "Maths", "age": "30"},
		SchemaID:  schemaID,
		CredDefID: credDefID,
	})

	return p
}

func (p *party) deliver(t *testing.T, out *service.Outbound) (*service.Outbound, error) {
	t.Helper()

	require.NotNil(t, out)

	return p.svc.HandleInbound(context.Background(), inbound(t, out.Msg, p.connID))
}

func inbound(t *testing.T, msg service.DIDCommMsgMap, connID string) *service.Inbound {
	t.Helper()

	raw, err := json.Marshal(msg)
	require.NoError(t, err)

	parsed, err := service.ParseDIDCommMsgMap(raw)
	require.NoError(t, err)

	id, err := messagetype.NewDefaultRegistry().Resolve(parsed.Type())
	require.NoError(t, err)

	return &service.Inbound{
		Type:    id,
		Msg:     parsed,
		Context: service.DIDCommContext{ConnectionID: connID},
	}
}

func (p *party) instance(t *testing.T, thid string) *Instance {
	t.Helper()

	inst, err := p.svc.Instance(thid)
	require.NoError(t, err)

	return inst
}

func degreeRequest() *anoncreds.ProofRequest {
	return &anoncreds.ProofRequest{
		Name:    "degree check",
		Version: "1.0",
		RequestedAttributes: map[string]anoncreds.AttributeInfo{
			"attr_name":   {Name: "name", Restrictions: []map[string]string{{"cred_def_id": credDefID}}},
			"attr_degree": {Name: "degree"},
		},
		RequestedPredicates: map[string]anoncreds.PredicateInfo{
			"pred_age": {Name: "age", PType: ">=", PValue: 18},
		},
	}
}

// requested runs an exchange up to the prover having received req.
func requested(t *testing.T, verifier, prover *party, version uint, req *anoncreds.ProofRequest) string {
	t.Helper()

	out, err := verifier.svc.Request(context.Background(), &RequestParams{
		ConnectionID: verifier.connID,
		Version:      version,
		ProofRequest: req,
	})
	require.NoError(t, err)

	thid := out.Msg.ID()

	reply, err := prover.deliver(t, out)
	require.NoError(t, err)
	require.Nil(t, reply)

	return thid
}

// presentationMsg is a presentation carrying proof on thid.
func presentationMsg(t *testing.T, thid string, proof json.RawMessage) *service.Outbound {
	t.Helper()

	p := &Presentation{Proof: proof}

	msg, err := service.NewDIDCommMsgMap(p.AsV1(messagetype.New(Name, 1, 0, "")))
	require.NoError(t, err)

	msg["@id"] = "crafted-presentation"
	msg.SetThread(thid, "")

	return &service.Outbound{Msg: msg}
}

func TestService_New(t *testing.T) {
	_, err := New(&testProvider{})
	require.Error(t, err)

	p := newParty(t, "conn", false)
	require.Equal(t, Name, p.svc.Name())
	require.True(t, p.svc.Accept(messagetype.New(Name, 2, 0, PresentationKind)))
	require.False(t, p.svc.Accept(messagetype.New(messagetype.IssueCredential, 1, 0, AckKind)))
}

func TestService_VerifierInitiated(t *testing.T) {
	ctx := context.Background()

	for _, version := range []uint{1, 2} {
		verifier := newParty(t, "prover-conn", false)
		prover := newProver(t, false)

		events := make(chan service.StateMsg, 10)
		require.NoError(t, verifier.svc.RegisterMsgEvent(events))

		thid := requested(t, verifier, prover, version, degreeRequest())

		inst := prover.instance(t, thid)
		require.Equal(t, StateNameRequestReceived, inst.State)
		require.Equal(t, RoleProver, inst.Role)
		require.Equal(t, fmt.Sprintf("%d.0", version), inst.Version)

		req, err := anoncreds.ParseProofRequest(inst.ProofRequest)
		require.NoError(t, err)
		require.NotEmpty(t, req.Nonce)

		presentation, err := prover.svc.Continue(ctx, thid, Present{})
		require.NoError(t, err)
		require.Equal(t, thid, presentation.Msg.ExplicitThreadID())
		require.Equal(t, "verifier-conn", presentation.ConnectionID)
		require.Equal(t, StateNamePresentationSent, prover.instance(t, thid).State)

		reply, err := verifier.deliver(t, presentation)
		require.NoError(t, err)
		require.Nil(t, reply)
		require.Equal(t, StateNamePresentationReceived, verifier.instance(t, thid).State)
		require.Equal(t, VerificationUnavailable, verifier.instance(t, thid).Verification)

		status, ack, err := verifier.svc.Verify(ctx, thid)
		require.NoError(t, err)
		require.Equal(t, VerificationValid, status)
		require.True(t, notification.IsAck(inbound(t, ack.Msg, "").Type))

		inst = verifier.instance(t, thid)
		require.Equal(t, StateNameFinished, inst.State)
		require.Equal(t, VerificationValid, inst.Verification)

		var proof mockanoncreds.Proof
		require.NoError(t, json.Unmarshal(inst.Proof, &proof))
		require.Equal(t, "Alice", proof.RequestedProof.RevealedAttrs["attr_name"].Raw)
		require.Equal(t, "Maths", proof.RequestedProof.RevealedAttrs["attr_degree"].Raw)

		_, err = prover.deliver(t, ack)
		require.NoError(t, err)
		require.Equal(t, StateNameFinished, prover.instance(t, thid).State)

		var last service.StateMsg

		states := []string{}

		for len(events) > 0 {
			last = <-events
			require.Equal(t, thid, last.Properties[PIIDPropKey])
			states = append(states, last.StateID)
		}

		require.Equal(t, []string{StateNameRequestSent, StateNamePresentationReceived, StateNameFinished}, states)
		require.Equal(t, VerificationValid, last.Properties[VerificationPropKey])
	}
}

func TestService_ProverInitiatedAutoAccept(t *testing.T) {
	for _, version := range []uint{1, 2} {
		verifier := newParty(t, "prover-conn", true)
		prover := newProver(t, true)

		proposal, err := prover.svc.Initiate(context.Background(), &ProposeParams{
			ConnectionID: prover.connID,
			Version:      version,
			Proposal: Proposal{
				Attributes: []Attribute{{Name: "name", CredDefID: credDefID}, {Name: "degree"}},
				Predicates: []Predicate{{Name: "age", Predicate: ">=", Threshold: 18}},
			},
		})
		require.NoError(t, err)

		thid := proposal.Msg.ID()
		require.Empty(t, proposal.Msg.ExplicitThreadID())
		require.Equal(t, StateNameProposalSent, prover.instance(t, thid).State)

		request, err := verifier.deliver(t, proposal)
		require.NoError(t, err)
		require.Equal(t, thid, request.Msg.ExplicitThreadID())

		inst := verifier.instance(t, thid)
		require.Equal(t, StateNameRequestSent, inst.State)
		require.NotNil(t, inst.Proposal)
		require.Len(t, inst.Proposal.Attributes, 2)

		presentation, err := prover.deliver(t, request)
		require.NoError(t, err)

		ack, err := verifier.deliver(t, presentation)
		require.NoError(t, err)
		require.True(t, notification.IsAck(inbound(t, ack.Msg, "").Type))

		_, err = prover.deliver(t, ack)
		require.NoError(t, err)

		require.Equal(t, StateNameFinished, prover.instance(t, thid).State)
		require.Equal(t, VerificationValid, verifier.instance(t, thid).Verification)
	}
}

func TestService_CounterProposal(t *testing.T) {
	ctx := context.Background()

	verifier := newParty(t, "prover-conn", false)
	prover := newProver(t, false)

	thid := requested(t, verifier, prover, 1, degreeRequest())

	counter, err := prover.svc.Continue(ctx, thid, &Proposal{
		Attributes: []Attribute{{Name: "degree"}},
	})
	require.NoError(t, err)
	require.Equal(t, StateNameProposalSent, prover.instance(t, thid).State)

	_, err = verifier.deliver(t, counter)
	require.NoError(t, err)
	require.Equal(t, StateNameProposalReceived, verifier.instance(t, thid).State)

	request, err := verifier.svc.Continue(ctx, thid, AcceptProposal{})
	require.NoError(t, err)

	_, err = prover.deliver(t, request)
	require.NoError(t, err)

	req, err := anoncreds.ParseProofRequest(prover.instance(t, thid).ProofRequest)
	require.NoError(t, err)
	require.Len(t, req.RequestedAttributes, 1)
	require.Empty(t, req.RequestedPredicates)
}

func TestService_NoMatchingCredentials(t *testing.T) {
	ctx := context.Background()

	verifier := newParty(t, "prover-conn", false)
	prover := newProver(t, false)

	req := degreeRequest()
	req.RequestedAttributes["attr_salary"] = anoncreds.AttributeInfo{Name: "salary"}

	thid := requested(t, verifier, prover, 1, req)

	_, err := prover.svc.Present(ctx, thid, &Present{})
	require.True(t, errors.Is(err, agenterr.ErrNoMatchingCredentials))
	require.Equal(t, StateNameRequestReceived, prover.instance(t, thid).State)

	_, err = prover.svc.Present(ctx, thid, &Present{
		SelfAttested: map[string]string{"attr_salary": "1000"},
		Selected:     map[string]string{"attr_name": "another-credential"},
	})
	require.True(t, errors.Is(err, agenterr.ErrNoMatchingCredentials))
	require.Equal(t, StateNameRequestReceived, prover.instance(t, thid).State)

	presentation, err := prover.svc.Present(ctx, thid, &Present{
		SelfAttested: map[string]string{"attr_salary": "1000"},
		Selected:     map[string]string{"attr_name": credID},
	})
	require.NoError(t, err)

	_, err = verifier.deliver(t, presentation)
	require.NoError(t, err)

	status, _, err := verifier.svc.Verify(ctx, thid)
	require.NoError(t, err)
	require.Equal(t, VerificationValid, status)
}

func TestService_AutoPresentWithoutCredentials(t *testing.T) {
	verifier := newParty(t, "prover-conn", false)
	prover := newParty(t, "verifier-conn", true)

	out, err := verifier.svc.Request(context.Background(), &RequestParams{
		ConnectionID: verifier.connID,
		ProofRequest: degreeRequest(),
	})
	require.NoError(t, err)

	_, err = prover.deliver(t, out)
	require.True(t, errors.Is(err, agenterr.ErrNoMatchingCredentials))
	require.Equal(t, StateNameRequestReceived, prover.instance(t, out.Msg.ID()).State)
}

func TestService_InvalidPresentation(t *testing.T) {
	ctx := context.Background()

	t.Run("tampered value", func(t *testing.T) {
		verifier := newParty(t, "prover-conn", false)
		prover := newProver(t, false)

		thid := requested(t, verifier, prover, 1, degreeRequest())

		_, err := prover.svc.Present(ctx, thid, &Present{})
		require.NoError(t, err)

		var proof mockanoncreds.Proof
		require.NoError(t, json.Unmarshal(prover.instance(t, thid).Proof, &proof))
		degree := proof.RequestedProof.RevealedAttrs["attr_degree"]
		degree.Raw = "Physics"
		proof.RequestedProof.RevealedAttrs["attr_degree"] = degree

		tampered, err := json.Marshal(proof)
		require.NoError(t, err)

		_, err = verifier.deliver(t, presentationMsg(t, thid, tampered))
		require.NoError(t, err)

		status, report, err := verifier.svc.Verify(ctx, thid)
		require.NoError(t, err)
		require.Equal(t, VerificationInvalid, status)
		require.Equal(t, StateNameFinished, verifier.instance(t, thid).State)

		parsed, err := notification.ParseProblemReport(report.Msg)
		require.NoError(t, err)
		require.Equal(t, CodeInvalidPresentation, parsed.Description.Code)

		_, err = prover.deliver(t, report)
		require.NoError(t, err)
		require.Equal(t, StateNameFailed, prover.instance(t, thid).State)
	})

	t.Run("not a proof", func(t *testing.T) {
		verifier := newParty(t, "prover-conn", false)
		prover := newProver(t, false)

		thid := requested(t, verifier, prover, 1, degreeRequest())

		_, err := verifier.deliver(t, presentationMsg(t, thid, json.RawMessage(`{"identifiers":[{}]}`)))
		require.NoError(t, err)

		status, _, err := verifier.svc.Verify(ctx, thid)
		require.NoError(t, err)
		require.Equal(t, VerificationInvalid, status)
	})

	t.Run("attachment is not json", func(t *testing.T) {
		verifier := newParty(t, "prover-conn", false)
		prover := newProver(t, false)

		thid := requested(t, verifier, prover, 1, degreeRequest())

		msg, err := service.NewDIDCommMsgMap(&PresentationV1{
			Type:          messagetype.New(Name, 1, 0, PresentationKind).String(),
			ID:            "bad-presentation",
			Presentations: []decorator.Attachment{decorator.NewBase64Attachment(PresentationAttachID, "", []byte("{"))},
			Thread:        &decorator.Thread{ID: thid},
		})
		require.NoError(t, err)

		report, err := verifier.svc.HandleInbound(ctx, inbound(t, msg, verifier.connID))
		require.True(t, errors.Is(err, agenterr.ErrFormatMismatch))
		require.NotNil(t, report)
		require.Equal(t, StateNameFailed, verifier.instance(t, thid).State)
	})
}

func TestService_VerificationUnavailable(t *testing.T) {
	ctx := context.Background()

	verifier := newParty(t, "prover-conn", false)
	prover := newProver(t, false)

	thid := requested(t, verifier, prover, 2, degreeRequest())

	presentation, err := prover.svc.Present(ctx, thid, &Present{})
	require.NoError(t, err)

	_, err = verifier.deliver(t, presentation)
	require.NoError(t, err)

	verifier.ledger.ResolveErr = errors.New("ledger unreachable")

	status, out, err := verifier.svc.Verify(ctx, thid)
	require.True(t, errors.Is(err, agenterr.ErrVerificationUnavailable))
	require.Equal(t, VerificationUnavailable, status)
	require.Nil(t, out)

	inst := verifier.instance(t, thid)
	require.Equal(t, StateNamePresentationReceived, inst.State)
	require.Equal(t, VerificationUnavailable, inst.Verification)

	verifier.ledger.ResolveErr = nil
	verifier.ac.VerifyErr = errors.New("verifier crashed")

	_, _, err = verifier.svc.Verify(ctx, thid)
	require.True(t, errors.Is(err, agenterr.ErrVerificationUnavailable))
	require.Equal(t, StateNamePresentationReceived, verifier.instance(t, thid).State)

	verifier.ac.VerifyErr = nil

	status, _, err = verifier.svc.Verify(ctx, thid)
	require.NoError(t, err)
	require.Equal(t, VerificationValid, status)
}

func TestService_Revocation(t *testing.T) {
	ctx := context.Background()

	verifier := newParty(t, "prover-conn", false)
	prover := newParty(t, "verifier-conn", false)

	prover.ac.AddCredential(anoncreds.CredentialInfo{
		Referent:  credID,
		Attrs:     map[string]string{"name": "Alice", "degree": "Maths", "age": "30"},
		SchemaID:  schemaID,
		CredDefID: credDefID,
		RevRegID:  revRegID,
		CredRevID: "7",
	})

	for _, p := range []*party{verifier, prover} {
		require.NoError(t, p.ledger.PublishRevRegDef(ctx, &ledger.RevRegDef{ID: revRegID, CredDefID: credDefID}))
		require.NoError(t, p.ledger.PublishRevRegDelta(ctx, &ledger.RevRegDelta{RevRegID: revRegID, Timestamp: 100}))
	}

	to := int64(200)
	req := degreeRequest()
	req.NonRevoked = &anoncreds.NonRevokedInterval{To: &to}

	thid := requested(t, verifier, prover, 1, req)

	presentation, err := prover.svc.Present(ctx, thid, &Present{})
	require.NoError(t, err)

	proof, err := anoncreds.ParseProof(prover.instance(t, thid).Proof)
	require.NoError(t, err)
	require.NotEmpty(t, proof.Identifiers)
	require.Equal(t, revRegID, proof.Identifiers[0].RevRegID)
	require.NotNil(t, proof.Identifiers[0].Timestamp)
	require.Equal(t, to, *proof.Identifiers[0].Timestamp)

	t.Run("timestamp dropped", func(t *testing.T) {
		other := newParty(t, "prover-conn", false)
		require.NoError(t, other.ledger.PublishRevRegDef(ctx, &ledger.RevRegDef{ID: revRegID, CredDefID: credDefID}))

		otherThid := requested(t, other, newProver(t, false), 1, req)

		var tampered mockanoncreds.Proof
		require.NoError(t, json.Unmarshal(prover.instance(t, thid).Proof, &tampered))

		for i := range tampered.Identifiers {
			tampered.Identifiers[i].Timestamp = nil
		}

		raw, err := json.Marshal(tampered)
		require.NoError(t, err)

		_, err = other.deliver(t, presentationMsg(t, otherThid, raw))
		require.NoError(t, err)

		status, _, err := other.svc.Verify(ctx, otherThid)
		require.NoError(t, err)
		require.Equal(t, VerificationInvalid, status)
	})

	t.Run("interval on one attribute", func(t *testing.T) {
		attrReq := degreeRequest()
		degree := attrReq.RequestedAttributes["attr_degree"]
		degree.NonRevoked = &anoncreds.NonRevokedInterval{To: &to}
		attrReq.RequestedAttributes["attr_degree"] = degree

		verify := func(t *testing.T, tamper bool) VerificationStatus {
			t.Helper()

			other := newParty(t, "prover-conn", false)
			require.NoError(t, other.ledger.PublishRevRegDef(ctx, &ledger.RevRegDef{ID: revRegID, CredDefID: credDefID}))
			require.NoError(t, other.ledger.PublishRevRegDelta(ctx, &ledger.RevRegDelta{RevRegID: revRegID, Timestamp: 100}))

			otherThid := requested(t, other, prover, 1, attrReq)

			out, err := prover.svc.Present(ctx, otherThid, &Present{})
			require.NoError(t, err)

			if tamper {
				var p mockanoncreds.Proof
				require.NoError(t, json.Unmarshal(prover.instance(t, otherThid).Proof, &p))

				for i := range p.Identifiers {
					p.Identifiers[i].Timestamp = nil
				}

				raw, err := json.Marshal(p)
				require.NoError(t, err)

				out = presentationMsg(t, otherThid, raw)
			}

			_, err = other.deliver(t, out)
			require.NoError(t, err)

			status, _, err := other.svc.Verify(ctx, otherThid)
			require.NoError(t, err)

			return status
		}

		require.Equal(t, VerificationValid, verify(t, false))
		require.Equal(t, VerificationInvalid, verify(t, true))
	})

	_, err = verifier.deliver(t, presentation)
	require.NoError(t, err)

	status, _, err := verifier.svc.Verify(ctx, thid)
	require.NoError(t, err)
	require.Equal(t, VerificationValid, status)
}

func TestService_ThreadMismatch(t *testing.T) {
	verifier := newParty(t, "prover-conn", false)
	prover := newProver(t, false)

	thid := requested(t, verifier, prover, 1, degreeRequest())

	presentation, err := prover.svc.Present(context.Background(), thid, &Present{})
	require.NoError(t, err)

	t.Run("unknown thread", func(t *testing.T) {
		msg := presentation.Msg.Clone()
		msg.SetThread("unknown", "")

		_, err := verifier.svc.HandleInbound(context.Background(), inbound(t, msg, verifier.connID))
		require.True(t, errors.Is(err, agenterr.ErrThreadMismatch))
	})

	t.Run("another connection", func(t *testing.T) {
		_, err := verifier.svc.HandleInbound(context.Background(), inbound(t, presentation.Msg, "stranger"))
		require.True(t, errors.Is(err, agenterr.ErrThreadMismatch))
	})

	t.Run("wrong role", func(t *testing.T) {
		_, err := prover.svc.HandleInbound(context.Background(), inbound(t, presentation.Msg, prover.connID))
		require.True(t, errors.Is(err, agenterr.ErrInvalidTransition))
	})

	malformed, err := service.NewDIDCommMsgMap(PresentationV1{
		Type:          messagetype.New(Name, 1, 0, PresentationKind).String(),
		ID:            "bad-presentation",
		Presentations: []decorator.Attachment{decorator.NewBase64Attachment(PresentationAttachID, "", []byte("{"))},
		Thread:        &decorator.Thread{ID: thid},
	})
	require.NoError(t, err)

	t.Run("malformed presentation from another connection", func(t *testing.T) {
		for _, connID := range []string{"stranger", ""} {
			report, err := verifier.svc.HandleInbound(context.Background(), inbound(t, malformed, connID))
			require.True(t, errors.Is(err, agenterr.ErrThreadMismatch))
			require.Nil(t, report)
		}
	})

	t.Run("malformed presentation to the prover", func(t *testing.T) {
		report, err := prover.svc.HandleInbound(context.Background(), inbound(t, malformed, prover.connID))
		require.True(t, errors.Is(err, agenterr.ErrInvalidTransition))
		require.Nil(t, report)
	})

	t.Run("malformed request to the verifier", func(t *testing.T) {
		msg, err := service.NewDIDCommMsgMap(RequestPresentationV1{
			Type:                 messagetype.New(Name, 1, 0, RequestPresentationKind).String(),
			ID:                   "bad-request",
			RequestPresentations: []decorator.Attachment{decorator.NewBase64Attachment(RequestAttachID, "", []byte("{"))},
			Thread:               &decorator.Thread{ID: thid},
		})
		require.NoError(t, err)

		report, err := verifier.svc.HandleInbound(context.Background(), inbound(t, msg, verifier.connID))
		require.True(t, errors.Is(err, agenterr.ErrInvalidTransition))
		require.Nil(t, report)
	})

	t.Run("problem report not tied to the connection", func(t *testing.T) {
		msg := notification.NewProblemReport(messagetype.New(Name, 1, 0, ProblemReportKind), thid,
			"invalid-presentation", "forged")

		for _, connID := range []string{"", "stranger"} {
			_, err := prover.svc.HandleInbound(context.Background(), inbound(t, msg, connID))
			require.True(t, errors.Is(err, agenterr.ErrThreadMismatch))
		}
	})

	require.Equal(t, StateNameRequestSent, verifier.instance(t, thid).State)
	require.Equal(t, StateNamePresentationSent, prover.instance(t, thid).State)
}

func TestService_Decline(t *testing.T) {
	verifier := newParty(t, "prover-conn", false)
	prover := newProver(t, false)

	thid := requested(t, verifier, prover, 1, degreeRequest())

	report, err := prover.svc.Continue(context.Background(), thid, &Decline{Reason: "too personal"})
	require.NoError(t, err)
	require.Equal(t, StateNameDeclined, prover.instance(t, thid).State)

	parsed, err := notification.ParseProblemReport(report.Msg)
	require.NoError(t, err)
	require.Equal(t, notification.CodeRejected, parsed.Description.Code)

	_, err = verifier.deliver(t, report)
	require.NoError(t, err)

	inst := verifier.instance(t, thid)
	require.Equal(t, StateNameDeclined, inst.State)
	require.Equal(t, "rejected: too personal", inst.Problem)

	_, _, err = verifier.svc.Verify(context.Background(), thid)
	require.True(t, errors.Is(err, agenterr.ErrInvalidTransition))
}

func TestService_Errors(t *testing.T) {
	ctx := context.Background()
	p := newParty(t, "conn", false)

	t.Run("unsupported params", func(t *testing.T) {
		_, err := p.svc.Initiate(ctx, "request")
		require.Error(t, err)

		_, err = p.svc.Continue(ctx, "thid", 42)
		require.Error(t, err)

		_, err = p.svc.Request(ctx, &RequestParams{Version: 3, ProofRequest: degreeRequest()})
		require.Error(t, err)
	})

	t.Run("request without proof request", func(t *testing.T) {
		_, err := p.svc.Request(ctx, &RequestParams{ConnectionID: "conn"})
		require.True(t, errors.Is(err, agenterr.ErrFormatMismatch))
	})

	t.Run("request attachment without nonce", func(t *testing.T) {
		r := &Request{ProofRequest: json.RawMessage(`{"requested_attributes":{},"requested_predicates":{}}`)}

		msg, err := service.NewDIDCommMsgMap(r.AsV1(messagetype.New(Name, 1, 0, "")))
		require.NoError(t, err)
		msg["@id"] = "no-nonce"

		_, err = p.svc.HandleInbound(ctx, inbound(t, msg, "conn"))
		require.True(t, errors.Is(err, agenterr.ErrFormatMismatch))

		_, err = p.svc.Instance("no-nonce")
		require.True(t, errors.Is(err, threadstate.ErrNotFound))
	})

	t.Run("unknown kind", func(t *testing.T) {
		_, err := p.svc.HandleInbound(ctx, &service.Inbound{
			Type: messagetype.New(Name, 1, 0, "unknown"),
			Msg:  service.DIDCommMsgMap{"@id": "x"},
		})
		require.True(t, errors.Is(err, agenterr.ErrMalformedType))
	})

	t.Run("unknown instance", func(t *testing.T) {
		_, err := p.svc.Instance("missing")
		require.True(t, errors.Is(err, threadstate.ErrNotFound))
	})
}
