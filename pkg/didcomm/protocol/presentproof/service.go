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

	"github.com/google/uuid"

	"github.com/hyperledger/aries-didcomm-go/pkg/anoncreds"
	"github.com/hyperledger/aries-didcomm-go/pkg/common/log"
	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/common/agenterr"
	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/common/service"
	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/messagetype"
	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/protocol/notification"
	"github.com/hyperledger/aries-didcomm-go/pkg/ledger"
	"github.com/hyperledger/aries-didcomm-go/pkg/store/threadstate"
)

// Name defines the protocol name.
const Name = messagetype.PresentProof

// CodeInvalidPresentation is the problem code sent for a presentation that failed verification.
const CodeInvalidPresentation = "invalid_presentation"

var logger = log.New("aries-framework/presentproof/service")

// Provider contains dependencies for the present proof protocol.
type Provider interface {
	Anoncreds() anoncreds.Anoncreds
	Ledger() ledger.Ledger
	ThreadStore() *threadstate.Store
	AutoAccept() bool
}

// RequestParams starts an exchange as verifier.
type RequestParams struct {
	ConnectionID string
	// Version is the protocol major version, 1 when unset.
	Version uint
	Comment string
	// ProofRequest gets a fresh nonce when it has none.
	ProofRequest *anoncreds.ProofRequest
}

// ProposeParams starts an exchange as prover.
type ProposeParams struct {
	ConnectionID string
	// Version is the protocol major version, 1 when unset.
	Version uint
	Proposal
}

// AcceptProposal is the verifier's decision to answer a proposal with a request.
type AcceptProposal struct {
	Comment string
	// ProofRequest is built from the proposal when nil.
	ProofRequest *anoncreds.ProofRequest
}

// Present is the prover's decision to answer the request.
type Present struct {
	Comment string
	// SelfAttested maps attribute referents to values the prover states without a credential.
	SelfAttested map[string]string
	// Selected maps referents to wallet credential ids. The first matching
	// credential is used for a referent without selection.
	Selected map[string]string
}

// Verify is the verifier's decision to verify the received presentation.
type Verify struct{}

// Decline ends the exchange and tells the other side.
type Decline struct {
	Reason string
}

// Instance is a read-only view of a presentation exchange.
type Instance struct {
	ThreadID     string
	ConnectionID string
	Role         string
	State        string
	Version      string
	ProofRequest json.RawMessage
	Proof        json.RawMessage
	Proposal     *Proposal
	Verification VerificationStatus
	Problem      string
}

// exchange is the context accumulated by an instance.
type exchange struct {
	Prefix       string             `json:"prefix"`
	Major        uint               `json:"major"`
	Minor        uint               `json:"minor"`
	Comment      string             `json:"comment,omitempty"`
	Attributes   []Attribute        `json:"proposed_attributes,omitempty"`
	Predicates   []Predicate        `json:"proposed_predicates,omitempty"`
	ProofRequest json.RawMessage    `json:"proof_request,omitempty"`
	Proof        json.RawMessage    `json:"proof,omitempty"`
	Verification VerificationStatus `json:"verification,omitempty"`
	Problem      string             `json:"problem,omitempty"`
}

func (ex *exchange) msgType(kind string) messagetype.Identifier {
	return messagetype.Identifier{Prefix: ex.Prefix, Family: Name, Major: ex.Major, Minor: ex.Minor, Kind: kind}
}

func (ex *exchange) setType(id messagetype.Identifier) {
	ex.Prefix, ex.Major, ex.Minor = id.Prefix, id.Major, id.Minor
}

func (ex *exchange) proposal() *Proposal {
	return &Proposal{Comment: ex.Comment, Attributes: ex.Attributes, Predicates: ex.Predicates}
}

func (ex *exchange) propose(p *Proposal) {
	ex.Comment, ex.Attributes, ex.Predicates = p.Comment, p.Attributes, p.Predicates
}

// step is one transition of an instance.
type step struct {
	thid   string
	connID string
	// role the instance must be held in, any role when empty.
	role string
	next string
	// start allows the step to create the instance.
	start bool
	// peer steps are driven by a message of the other side, which must come
	// over the connection the instance is bound to.
	peer  bool
	apply func(ex *exchange) error
}

// Service for the present proof protocol.
type Service struct {
	service.Message
	anoncreds  anoncreds.Anoncreds
	ledger     ledger.Ledger
	threads    *threadstate.Store
	autoAccept bool
}

// New returns the present proof service.
func New(p Provider) (*Service, error) {
	if p.Anoncreds() == nil || p.Ledger() == nil {
		return nil, errors.New("present proof requires the anoncreds and ledger capabilities")
	}

	return &Service{
		anoncreds:  p.Anoncreds(),
		ledger:     p.Ledger(),
		threads:    p.ThreadStore(),
		autoAccept: p.AutoAccept(),
	}, nil
}

// Name returns service name.
func (s *Service) Name() string {
	return Name
}

// Accept msg checks the msg type.
func (s *Service) Accept(id messagetype.Identifier) bool {
	return id.Family == Name
}

// HandleInbound handles inbound present proof messages. A returned Outbound
// together with an error is the problem report of an exchange that failed.
func (s *Service) HandleInbound(ctx context.Context, in *service.Inbound) (*service.Outbound, error) {
	logger.Debugf("receive inbound message : %s", in.Type)

	switch {
	case in.Type.Kind == ProposePresentationKind:
		return s.handleProposal(ctx, in)
	case in.Type.Kind == RequestPresentationKind:
		return s.handleRequest(ctx, in)
	case in.Type.Kind == PresentationKind:
		return s.handlePresentation(ctx, in)
	case notification.IsAck(in.Type):
		return nil, s.handleAck(ctx, in)
	case notification.IsProblemReport(in.Type):
		return nil, s.handleProblemReport(ctx, in)
	default:
		return nil, agenterr.Errorf(agenterr.ErrMalformedType, "present proof cannot handle %s", in.Type)
	}
}

// Initiate starts an exchange with *RequestParams (verifier) or *ProposeParams (prover).
func (s *Service) Initiate(ctx context.Context, params interface{}) (*service.Outbound, error) {
	switch p := params.(type) {
	case *RequestParams:
		return s.Request(ctx, p)
	case *ProposeParams:
		return s.Propose(ctx, p)
	default:
		return nil, fmt.Errorf("present proof: unsupported initiate params %T", params)
	}
}

// Continue applies a local decision to the exchange of thid.
func (s *Service) Continue(ctx context.Context, thid string, action interface{}) (*service.Outbound, error) {
	switch a := action.(type) {
	case AcceptProposal:
		return s.AcceptProposal(ctx, thid, &a)
	case *AcceptProposal:
		return s.AcceptProposal(ctx, thid, a)
	case Present:
		return s.Present(ctx, thid, &a)
	case *Present:
		return s.Present(ctx, thid, a)
	case Verify, *Verify:
		_, out, err := s.Verify(ctx, thid)

		return out, err
	case *Proposal:
		return s.CounterPropose(ctx, thid, a)
	case Decline:
		return s.Decline(ctx, thid, a.Reason)
	case *Decline:
		return s.Decline(ctx, thid, a.Reason)
	default:
		return nil, fmt.Errorf("present proof: unsupported action %T", action)
	}
}

// Request starts an exchange as verifier with a presentation request.
func (s *Service) Request(ctx context.Context, p *RequestParams) (*service.Outbound, error) {
	id, err := identifier(p.Version)
	if err != nil {
		return nil, err
	}

	raw, err := proofRequest(p.ProofRequest)
	if err != nil {
		return nil, err
	}

	rec, ex, err := s.run(ctx, step{
		thid: uuid.New().String(), connID: p.ConnectionID, role: RoleVerifier, next: StateNameRequestSent, start: true,
		apply: func(ex *exchange) error {
			ex.setType(id)
			ex.Comment, ex.ProofRequest = p.Comment, raw

			return nil
		},
	})
	if err != nil {
		return nil, err
	}

	return s.send(rec, ex, func() (interface{}, error) { return requestMessage(ex), nil })
}

// Propose starts an exchange as prover with a presentation proposal.
func (s *Service) Propose(ctx context.Context, p *ProposeParams) (*service.Outbound, error) {
	id, err := identifier(p.Version)
	if err != nil {
		return nil, err
	}

	rec, ex, err := s.run(ctx, step{
		thid: uuid.New().String(), connID: p.ConnectionID, role: RoleProver, next: StateNameProposalSent, start: true,
		apply: func(ex *exchange) error {
			ex.setType(id)
			ex.propose(&p.Proposal)

			return nil
		},
	})
	if err != nil {
		return nil, err
	}

	return s.send(rec, ex, func() (interface{}, error) { return proposalMessage(ex) })
}

// CounterPropose answers a request with a proposal.
func (s *Service) CounterPropose(ctx context.Context, thid string, p *Proposal) (*service.Outbound, error) {
	rec, ex, err := s.run(ctx, step{
		thid: thid, role: RoleProver, next: StateNameProposalSent,
		apply: func(ex *exchange) error {
			ex.propose(p)

			return nil
		},
	})
	if err != nil {
		return nil, err
	}

	return s.send(rec, ex, func() (interface{}, error) { return proposalMessage(ex) })
}

// AcceptProposal answers a received proposal with a request.
func (s *Service) AcceptProposal(ctx context.Context, thid string, a *AcceptProposal) (*service.Outbound, error) {
	rec, ex, err := s.run(ctx, step{
		thid: thid, role: RoleVerifier, next: StateNameRequestSent,
		apply: func(ex *exchange) error {
			req := a.ProofRequest
			if req == nil {
				req = ex.proposal().ProofRequest("proof-request", "")
			}

			raw, err := proofRequest(req)
			if err != nil {
				return err
			}

			ex.ProofRequest = raw

			if a.Comment != "" {
				ex.Comment = a.Comment
			}

			return nil
		},
	})
	if err != nil {
		return nil, err
	}

	return s.send(rec, ex, func() (interface{}, error) { return requestMessage(ex), nil })
}

// Present answers the request of thid with a proof. The state is left
// untouched when the wallet holds nothing satisfying a requested referent.
func (s *Service) Present(ctx context.Context, thid string, p *Present) (*service.Outbound, error) {
	rec, ex, err := s.run(ctx, step{
		thid: thid, role: RoleProver, next: StateNamePresentationSent,
		apply: func(ex *exchange) error {
			proof, err := s.createProof(ctx, ex.ProofRequest, p)
			if err != nil {
				return err
			}

			ex.Proof = proof

			return nil
		},
	})
	if err != nil {
		return nil, err
	}

	return s.send(rec, ex, func() (interface{}, error) {
		pres := &Presentation{Comment: p.Comment, Proof: ex.Proof}
		if ex.Major == 2 {
			return pres.AsV2(ex.msgType("")), nil
		}

		return pres.AsV1(ex.msgType("")), nil
	})
}

// Verify verifies the presentation of thid and finishes the exchange. A valid
// presentation is acknowledged, an invalid one answered with a problem report.
// When verification cannot complete the exchange is left as it is and the
// status is Unavailable.
func (s *Service) Verify(ctx context.Context, thid string) (VerificationStatus, *service.Outbound, error) {
	rec, ex, err := s.run(ctx, step{
		thid: thid, role: RoleVerifier, next: StateNameFinished,
		apply: func(ex *exchange) error {
			status, err := s.verify(ctx, ex)
			if err != nil {
				return err
			}

			ex.Verification = status

			return nil
		},
	})
	if err != nil {
		return VerificationUnavailable, nil, err
	}

	s.notify(rec, ex, nil, nil)

	if ex.Verification == VerificationValid {
		return ex.Verification, &service.Outbound{
			Msg:          notification.NewAck(ex.msgType(AckKind), thid),
			ConnectionID: rec.ConnectionID,
		}, nil
	}

	return ex.Verification, &service.Outbound{
		Msg: notification.NewProblemReport(ex.msgType(ProblemReportKind), thid, CodeInvalidPresentation,
			"presentation failed verification"),
		ConnectionID: rec.ConnectionID,
	}, nil
}

// Decline ends the exchange of thid and returns the problem report telling the other side.
func (s *Service) Decline(ctx context.Context, thid, reason string) (*service.Outbound, error) {
	rec, ex, err := s.run(ctx, step{
		thid: thid, next: StateNameDeclined,
		apply: func(ex *exchange) error {
			ex.Problem = reason

			return nil
		},
	})
	if err != nil {
		return nil, err
	}

	s.notify(rec, ex, nil, nil)

	return &service.Outbound{
		Msg:          notification.NewProblemReport(ex.msgType(ProblemReportKind), thid, notification.CodeRejected, reason),
		ConnectionID: rec.ConnectionID,
	}, nil
}

// Instance returns the exchange of thid.
func (s *Service) Instance(thid string) (*Instance, error) {
	rec, err := s.threads.Get(thid)
	if err != nil {
		return nil, err
	}

	if rec.Protocol != Name {
		return nil, fmt.Errorf("thread %s: %w", thid, threadstate.ErrNotFound)
	}

	var ex exchange
	if err = rec.Decode(&ex); err != nil {
		return nil, err
	}

	inst := &Instance{
		ThreadID:     rec.ThreadID,
		ConnectionID: rec.ConnectionID,
		Role:         rec.Role,
		State:        rec.State,
		Version:      rec.ProtocolVersion,
		ProofRequest: ex.ProofRequest,
		Proof:        ex.Proof,
		Verification: ex.Verification,
		Problem:      ex.Problem,
	}

	if inst.Verification == "" {
		inst.Verification = VerificationUnavailable
	}

	if len(ex.Attributes) > 0 || len(ex.Predicates) > 0 {
		inst.Proposal = ex.proposal()
	}

	return inst, nil
}

func (s *Service) handleProposal(ctx context.Context, in *service.Inbound) (*service.Outbound, error) {
	p := &Proposal{}

	if in.Type.Major == 2 {
		var v2 ProposePresentationV2
		if err := in.Msg.Decode(&v2); err != nil {
			return nil, agenterr.Wrap(agenterr.ErrMalformedMessage, err, "decode proposal")
		}

		if err := p.FromV2(&v2); err != nil {
			return nil, err
		}
	} else {
		var v1 ProposePresentationV1
		if err := in.Msg.Decode(&v1); err != nil {
			return nil, agenterr.Wrap(agenterr.ErrMalformedMessage, err, "decode proposal")
		}

		if err := p.FromV1(&v1); err != nil {
			return nil, err
		}
	}

	thid, err := in.Msg.ThreadID()
	if err != nil {
		return nil, agenterr.Wrap(agenterr.ErrMalformedMessage, err, "proposal")
	}

	rec, ex, err := s.run(ctx, step{
		thid: thid, connID: in.Context.ConnectionID, role: RoleVerifier, next: StateNameProposalReceived, start: true,
		peer: true,
		apply: func(ex *exchange) error {
			ex.setType(in.Type)
			ex.propose(p)

			return nil
		},
	})
	if err != nil {
		return nil, err
	}

	s.notify(rec, ex, in.Msg, nil)

	if !s.autoAccept {
		return nil, nil
	}

	return s.AcceptProposal(ctx, thid, &AcceptProposal{})
}

func (s *Service) handleRequest(ctx context.Context, in *service.Inbound) (*service.Outbound, error) {
	thid, err := in.Msg.ThreadID()
	if err != nil {
		return nil, agenterr.Wrap(agenterr.ErrMalformedMessage, err, "request")
	}

	r := &Request{}

	if in.Type.Major == 2 {
		var v2 RequestPresentationV2
		if err = in.Msg.Decode(&v2); err == nil {
			err = r.FromV2(&v2)
		}
	} else {
		var v1 RequestPresentationV1
		if err = in.Msg.Decode(&v1); err == nil {
			err = r.FromV1(&v1)
		}
	}

	st := step{
		thid: thid, connID: in.Context.ConnectionID, role: RoleProver, next: StateNameRequestReceived, start: true,
		peer: true,
	}

	if err != nil {
		return s.failOn(ctx, st, err, agenterr.ErrFormatMismatch)
	}

	st.apply = func(ex *exchange) error {
		ex.setType(in.Type)
		ex.ProofRequest = r.ProofRequest

		if r.Comment != "" {
			ex.Comment = r.Comment
		}

		return nil
	}

	rec, ex, err := s.run(ctx, st)
	if err != nil {
		return nil, err
	}

	s.notify(rec, ex, in.Msg, nil)

	if !s.autoAccept {
		return nil, nil
	}

	return s.Present(ctx, thid, &Present{})
}

func (s *Service) handlePresentation(ctx context.Context, in *service.Inbound) (*service.Outbound, error) {
	thid, err := explicitThread(in)
	if err != nil {
		return nil, err
	}

	p := &Presentation{}

	if in.Type.Major == 2 {
		var v2 PresentationV2
		if err = in.Msg.Decode(&v2); err == nil {
			err = p.FromV2(&v2)
		}
	} else {
		var v1 PresentationV1
		if err = in.Msg.Decode(&v1); err == nil {
			err = p.FromV1(&v1)
		}
	}

	st := step{
		thid: thid, connID: in.Context.ConnectionID, role: RoleVerifier, next: StateNamePresentationReceived,
		peer: true,
	}

	if err != nil {
		return s.failOn(ctx, st, err, agenterr.ErrFormatMismatch)
	}

	st.apply = func(ex *exchange) error {
		ex.Proof = p.Proof

		return nil
	}

	rec, ex, err := s.run(ctx, st)
	if err != nil {
		return nil, err
	}

	s.notify(rec, ex, in.Msg, nil)

	if !s.autoAccept {
		return nil, nil
	}

	_, out, err := s.Verify(ctx, thid)

	return out, err
}

func (s *Service) handleAck(ctx context.Context, in *service.Inbound) error {
	thid, err := explicitThread(in)
	if err != nil {
		return err
	}

	rec, ex, err := s.run(ctx, step{
		thid: thid, connID: in.Context.ConnectionID, role: RoleProver, next: StateNameFinished, peer: true,
	})
	if err != nil {
		return err
	}

	s.notify(rec, ex, in.Msg, nil)

	return nil
}

func (s *Service) handleProblemReport(ctx context.Context, in *service.Inbound) error {
	thid, err := explicitThread(in)
	if err != nil {
		return err
	}

	report, err := notification.ParseProblemReport(in.Msg)
	if err != nil {
		return agenterr.Wrap(agenterr.ErrMalformedMessage, err, "decode problem report")
	}

	next := StateNameFailed
	if report.Description.Code == notification.CodeRejected {
		next = StateNameDeclined
	}

	rec, ex, err := s.run(ctx, step{
		thid: thid, connID: in.Context.ConnectionID, next: next, peer: true,
		apply: func(ex *exchange) error {
			ex.Problem = report.Description.Code
			if report.Description.En != "" {
				ex.Problem += ": " + report.Description.En
			}

			return nil
		},
	})
	if err != nil {
		return err
	}

	s.notify(rec, ex, in.Msg, nil)

	return nil
}

// run applies st to its instance.
func (s *Service) run(ctx context.Context, st step) (*threadstate.Record, *exchange, error) {
	var ex *exchange

	rec, err := s.threads.Transition(ctx, st.thid, func(snapshot *threadstate.Record) (*threadstate.Record, error) {
		ex = &exchange{}

		next, current, err := s.prepare(snapshot, st)
		if err != nil {
			return nil, err
		}

		if err = next.Decode(ex); err != nil {
			return nil, fmt.Errorf("decode presentation %s: %w", st.thid, err)
		}

		if err = checkTransition(current, st.next, next.Role); err != nil {
			return nil, err
		}

		if st.apply != nil {
			if err = st.apply(ex); err != nil {
				return nil, err
			}
		}

		next.State = st.next
		next.ProtocolVersion = fmt.Sprintf("%d.%d", ex.Major, ex.Minor)

		if err = next.Encode(ex); err != nil {
			return nil, err
		}

		return next, nil
	})
	if err != nil {
		return nil, nil, err
	}

	return rec, ex, nil
}

// prepare returns a copy of the instance st applies to and its current state.
func (s *Service) prepare(snapshot *threadstate.Record, st step) (*threadstate.Record, string, error) {
	if snapshot == nil {
		if !st.start {
			return nil, "", agenterr.Errorf(agenterr.ErrThreadMismatch, "no presentation for thread %s", st.thid)
		}

		return &threadstate.Record{
			ThreadID:     st.thid,
			Protocol:     Name,
			Role:         st.role,
			ConnectionID: st.connID,
		}, stateNameInitial, nil
	}

	switch {
	case snapshot.Protocol != Name:
		return nil, "", agenterr.Errorf(agenterr.ErrThreadMismatch, "thread %s is a %s exchange", st.thid,
			snapshot.Protocol)
	case st.peer && (st.connID == "" || st.connID != snapshot.ConnectionID):
		return nil, "", agenterr.Errorf(agenterr.ErrThreadMismatch, "thread %s belongs to another connection",
			st.thid)
	case st.role != "" && snapshot.Role != st.role:
		return nil, "", agenterr.Errorf(agenterr.ErrInvalidTransition, "thread %s is held as %s, not %s",
			st.thid, snapshot.Role, st.role)
	}

	return snapshot.Clone(), snapshot.State, nil
}

func checkTransition(from, to, role string) error {
	current, err := stateFromName(from, role)
	if err != nil {
		return err
	}

	next, err := stateFromName(to, role)
	if err != nil {
		return err
	}

	if !current.CanTransitionTo(next) {
		return agenterr.Errorf(agenterr.ErrInvalidTransition, "invalid state transition: %s -> %s",
			current.Name(), next.Name())
	}

	return nil
}

// failOn moves the exchange of st to failed when err is a cause sentinel and
// returns the problem report for the other side together with err. The
// instance must still match the connection and role of st: a message that is
// not for it leaves it untouched and gets the mismatch back.
func (s *Service) failOn(ctx context.Context, st step, cause error, sentinel *agenterr.Error) (*service.Outbound,
	error) {
	if !errors.Is(cause, sentinel) {
		return nil, cause
	}

	if _, err := s.threads.Get(st.thid); errors.Is(err, threadstate.ErrNotFound) {
		return nil, cause
	}

	st.next, st.start = StateNameFailed, false
	st.apply = func(ex *exchange) error {
		ex.Problem = cause.Error()

		return nil
	}

	rec, ex, err := s.run(ctx, st)
	if errors.Is(err, agenterr.ErrThreadMismatch) || errors.Is(err, agenterr.ErrInvalidTransition) {
		return nil, err
	}

	if err != nil {
		logger.Warnf("presentation %s could not be marked failed: %v", st.thid, err)

		return nil, cause
	}

	s.notify(rec, ex, nil, cause)

	return &service.Outbound{
		Msg: notification.NewProblemReport(ex.msgType(ProblemReportKind), st.thid, agenterr.CodeOf(cause),
			cause.Error()),
		ConnectionID: rec.ConnectionID,
	}, cause
}

// send builds the message of a committed transition. The message opening an
// exchange carries the thread id as its @id.
func (s *Service) send(rec *threadstate.Record, ex *exchange,
	build func() (interface{}, error)) (*service.Outbound, error) {
	v, err := build()
	if err != nil {
		return nil, err
	}

	msg, err := service.NewDIDCommMsgMap(v)
	if err != nil {
		return nil, err
	}

	if rec.Version == 1 {
		msg["@id"] = rec.ThreadID
	} else {
		msg["@id"] = uuid.New().String()
		msg.SetThread(rec.ThreadID, "")
	}

	s.notify(rec, ex, nil, nil)

	return &service.Outbound{Msg: msg, ConnectionID: rec.ConnectionID}, nil
}

func (s *Service) notify(rec *threadstate.Record, ex *exchange, msg service.DIDCommMsgMap, err error) {
	s.Notify(service.StateMsg{
		ProtocolName: Name,
		Type:         service.PostState,
		StateID:      rec.State,
		ThreadID:     rec.ThreadID,
		Msg:          msg,
		Properties:   eventProps(rec, ex, err),
	})
}

func proposalMessage(ex *exchange) (interface{}, error) {
	if ex.Major == 2 {
		return ex.proposal().AsV2(ex.msgType(""))
	}

	return ex.proposal().AsV1(ex.msgType("")), nil
}

func requestMessage(ex *exchange) interface{} {
	r := &Request{Comment: ex.Comment, ProofRequest: ex.ProofRequest}
	if ex.Major == 2 {
		return r.AsV2(ex.msgType(""))
	}

	return r.AsV1(ex.msgType(""))
}

// proofRequest encodes req, giving it a nonce when it has none.
func proofRequest(req *anoncreds.ProofRequest) (json.RawMessage, error) {
	if req == nil {
		return nil, agenterr.Errorf(agenterr.ErrFormatMismatch, "no proof request")
	}

	out := *req
	if out.Nonce == "" {
		out.Nonce = newNonce()
	}

	raw, err := marshalProofRequest(&out)
	if err != nil {
		return nil, err
	}

	if _, err = anoncreds.ParseProofRequest(raw); err != nil {
		return nil, agenterr.Wrap(agenterr.ErrFormatMismatch, err, "proof request")
	}

	return raw, nil
}

func identifier(version uint) (messagetype.Identifier, error) {
	switch version {
	case 0, 1:
		return messagetype.New(Name, 1, 0, ""), nil
	case 2:
		return messagetype.New(Name, 2, 0, ""), nil
	default:
		return messagetype.Identifier{}, fmt.Errorf("present proof version %d is not supported", version)
	}
}

func explicitThread(in *service.Inbound) (string, error) {
	thid := in.Msg.ExplicitThreadID()
	if thid == "" {
		return "", agenterr.Errorf(agenterr.ErrThreadMismatch, "%s %s has no thread", in.Type.Kind, in.Msg.ID())
	}

	return thid, nil
}
