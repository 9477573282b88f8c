/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package issuecredential

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
	connectionstore "github.com/hyperledger/aries-didcomm-go/pkg/store/connection"
	"github.com/hyperledger/aries-didcomm-go/pkg/store/threadstate"
)

// Name defines the protocol name.
const Name = messagetype.IssueCredential

var logger = log.New("aries-framework/issuecredential/service")

// ConnectionLookup reads the connection an exchange runs on.
type ConnectionLookup interface {
	GetConnectionRecord(connectionID string) (*connectionstore.Record, error)
}

// Provider contains dependencies for the issue credential protocol.
type Provider interface {
	Anoncreds() anoncreds.Anoncreds
	Ledger() ledger.Ledger
	ThreadStore() *threadstate.Store
	ConnectionLookup() ConnectionLookup
	AutoAccept() bool
}

// ProposeParams starts an exchange as holder.
type ProposeParams struct {
	ConnectionID string
	// Version is the protocol major version, 1 when unset.
	Version uint
	Proposal
}

// OfferParams starts an exchange as issuer.
type OfferParams struct {
	ConnectionID string
	// Version is the protocol major version, 1 when unset.
	Version   uint
	Comment   string
	CredDefID string
	Preview   []Attribute
	// RevRegID is the revocation registry credentials are issued in, if any.
	RevRegID string
}

// AcceptProposal is the issuer's decision to answer a proposal with an offer.
// Empty fields are taken from the proposal.
type AcceptProposal struct {
	Comment   string
	CredDefID string
	Preview   []Attribute
	RevRegID  string
}

// AcceptOffer is the holder's decision to request the offered credential.
type AcceptOffer struct{}

// AcceptRequest is the issuer's decision to issue the requested credential.
type AcceptRequest struct {
	Comment string
}

// Decline ends the exchange and tells the other side.
type Decline struct {
	Reason string
}

// Instance is a read-only view of an issuance exchange.
type Instance struct {
	ThreadID     string
	ConnectionID string
	Role         string
	State        string
	Version      string
	SchemaID     string
	CredDefID    string
	RevRegID     string
	CredentialID string
	Preview      []Attribute
	Problem      string
}

// exchange is the context accumulated by an instance.
type exchange struct {
	Prefix          string          `json:"prefix"`
	Major           uint            `json:"major"`
	Minor           uint            `json:"minor"`
	Comment         string          `json:"comment,omitempty"`
	SchemaID        string          `json:"schema_id,omitempty"`
	CredDefID       string          `json:"cred_def_id,omitempty"`
	RevRegID        string          `json:"rev_reg_id,omitempty"`
	Preview         []Attribute     `json:"preview,omitempty"`
	Offer           json.RawMessage `json:"offer,omitempty"`
	Request         json.RawMessage `json:"request,omitempty"`
	RequestMetadata json.RawMessage `json:"request_metadata,omitempty"`
	Credential      json.RawMessage `json:"credential,omitempty"`
	CredentialID    string          `json:"credential_id,omitempty"`
	CredRevID       string          `json:"cred_rev_id,omitempty"`
	Problem         string          `json:"problem,omitempty"`
}

func (ex *exchange) msgType(kind string) messagetype.Identifier {
	return messagetype.Identifier{Prefix: ex.Prefix, Family: Name, Major: ex.Major, Minor: ex.Minor, Kind: kind}
}

func (ex *exchange) setType(id messagetype.Identifier) {
	ex.Prefix, ex.Major, ex.Minor = id.Prefix, id.Major, id.Minor
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
	apply func(rec *threadstate.Record, ex *exchange) error
}

// Service for the issue credential protocol.
type Service struct {
	service.Message
	anoncreds   anoncreds.Anoncreds
	ledger      ledger.Ledger
	threads     *threadstate.Store
	connections ConnectionLookup
	autoAccept  bool
}

// New returns the issue credential service.
func New(p Provider) (*Service, error) {
	if p.Anoncreds() == nil || p.Ledger() == nil {
		return nil, errors.New("issue credential requires the anoncreds and ledger capabilities")
	}

	return &Service{
		anoncreds:   p.Anoncreds(),
		ledger:      p.Ledger(),
		threads:     p.ThreadStore(),
		connections: p.ConnectionLookup(),
		autoAccept:  p.AutoAccept(),
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

// HandleInbound handles inbound issue credential messages. A returned Outbound
// together with an error is the problem report of an exchange that failed.
func (s *Service) HandleInbound(ctx context.Context, in *service.Inbound) (*service.Outbound, error) {
	logger.Debugf("receive inbound message : %s", in.Type)

	switch {
	case in.Type.Kind == ProposeCredentialKind:
		return s.handleProposal(ctx, in)
	case in.Type.Kind == OfferCredentialKind:
		return s.handleOffer(ctx, in)
	case in.Type.Kind == RequestCredentialKind:
		return s.handleRequest(ctx, in)
	case in.Type.Kind == IssueCredentialKind:
		return s.handleCredential(ctx, in)
	case notification.IsAck(in.Type):
		return nil, s.handleAck(ctx, in)
	case notification.IsProblemReport(in.Type):
		return nil, s.handleProblemReport(ctx, in)
	default:
		return nil, agenterr.Errorf(agenterr.ErrMalformedType, "issue credential cannot handle %s", in.Type)
	}
}

// Initiate starts an exchange with *ProposeParams (holder) or *OfferParams (issuer).
func (s *Service) Initiate(ctx context.Context, params interface{}) (*service.Outbound, error) {
	switch p := params.(type) {
	case *ProposeParams:
		return s.Propose(ctx, p)
	case *OfferParams:
		return s.Offer(ctx, p)
	default:
		return nil, fmt.Errorf("issue credential: unsupported initiate params %T", params)
	}
}

// Continue applies a local decision to the exchange of thid.
func (s *Service) Continue(ctx context.Context, thid string, action interface{}) (*service.Outbound, error) {
	switch a := action.(type) {
	case AcceptProposal:
		return s.AcceptProposal(ctx, thid, &a)
	case *AcceptProposal:
		return s.AcceptProposal(ctx, thid, a)
	case AcceptOffer, *AcceptOffer:
		return s.AcceptOffer(ctx, thid)
	case AcceptRequest:
		return s.Issue(ctx, thid, a.Comment)
	case *AcceptRequest:
		return s.Issue(ctx, thid, a.Comment)
	case *Proposal:
		return s.CounterPropose(ctx, thid, a)
	case Decline:
		return s.Decline(ctx, thid, a.Reason)
	case *Decline:
		return s.Decline(ctx, thid, a.Reason)
	default:
		return nil, fmt.Errorf("issue credential: unsupported action %T", action)
	}
}

// Propose starts an exchange as holder with a credential proposal.
func (s *Service) Propose(ctx context.Context, p *ProposeParams) (*service.Outbound, error) {
	id, err := identifier(p.Version)
	if err != nil {
		return nil, err
	}

	thid := uuid.New().String()

	rec, ex, err := s.run(ctx, step{
		thid: thid, connID: p.ConnectionID, role: RoleHolder, next: StateNameProposalSent, start: true,
		apply: func(_ *threadstate.Record, ex *exchange) error {
			ex.setType(id)
			ex.Comment, ex.SchemaID, ex.CredDefID, ex.Preview = p.Comment, p.SchemaID, p.CredDefID, p.Preview

			return nil
		},
	})
	if err != nil {
		return nil, err
	}

	return s.send(rec, ex, func() (interface{}, error) { return proposalMessage(id, &p.Proposal) })
}

// CounterPropose answers an offer with a new proposal.
func (s *Service) CounterPropose(ctx context.Context, thid string, p *Proposal) (*service.Outbound, error) {
	rec, ex, err := s.run(ctx, step{
		thid: thid, role: RoleHolder, next: StateNameProposalSent,
		apply: func(_ *threadstate.Record, ex *exchange) error {
			ex.Comment, ex.SchemaID, ex.CredDefID, ex.Preview = p.Comment, p.SchemaID, p.CredDefID, p.Preview

			return nil
		},
	})
	if err != nil {
		return nil, err
	}

	return s.send(rec, ex, func() (interface{}, error) { return proposalMessage(ex.msgType(""), p) })
}

// Offer starts an exchange as issuer with a credential offer.
func (s *Service) Offer(ctx context.Context, p *OfferParams) (*service.Outbound, error) {
	id, err := identifier(p.Version)
	if err != nil {
		return nil, err
	}

	rec, ex, err := s.run(ctx, step{
		thid: uuid.New().String(), connID: p.ConnectionID, role: RoleIssuer, next: StateNameOfferSent, start: true,
		apply: func(_ *threadstate.Record, ex *exchange) error {
			ex.setType(id)
			ex.Comment, ex.Preview, ex.RevRegID = p.Comment, p.Preview, p.RevRegID

			return s.createOffer(ctx, ex, p.CredDefID)
		},
	})
	if err != nil {
		return nil, err
	}

	return s.send(rec, ex, func() (interface{}, error) { return offerMessage(ex), nil })
}

// AcceptProposal answers a received proposal with an offer.
func (s *Service) AcceptProposal(ctx context.Context, thid string, a *AcceptProposal) (*service.Outbound, error) {
	rec, ex, err := s.run(ctx, step{
		thid: thid, role: RoleIssuer, next: StateNameOfferSent,
		apply: func(_ *threadstate.Record, ex *exchange) error {
			if a.Comment != "" {
				ex.Comment = a.Comment
			}

			if a.Preview != nil {
				ex.Preview = a.Preview
			}

			if a.RevRegID != "" {
				ex.RevRegID = a.RevRegID
			}

			credDefID := a.CredDefID
			if credDefID == "" {
				credDefID = ex.CredDefID
			}

			return s.createOffer(ctx, ex, credDefID)
		},
	})
	if err != nil {
		return nil, err
	}

	return s.send(rec, ex, func() (interface{}, error) { return offerMessage(ex), nil })
}

// AcceptOffer requests the offered credential. The state is left untouched
// when the credential definition cannot be resolved.
func (s *Service) AcceptOffer(ctx context.Context, thid string) (*service.Outbound, error) {
	rec, ex, err := s.run(ctx, step{
		thid: thid, role: RoleHolder, next: StateNameRequestSent,
		apply: func(rec *threadstate.Record, ex *exchange) error {
			credDef, err := s.ledger.ResolveCredDef(ctx, ex.CredDefID)
			if err != nil {
				return agenterr.Wrap(agenterr.ErrUnresolvableCredDef, err, "cred def %s", ex.CredDefID)
			}

			proverDID, err := s.myDID(rec.ConnectionID)
			if err != nil {
				return err
			}

			request, metadata, err := s.anoncreds.ProverCreateCredentialReq(ctx, proverDID, ex.Offer, credDef)
			if err != nil {
				return agenterr.Capability(err, "create credential request")
			}

			ex.Request, ex.RequestMetadata = request, metadata

			return nil
		},
	})
	if err != nil {
		return nil, err
	}

	return s.send(rec, ex, func() (interface{}, error) {
		r := &Request{Request: ex.Request}
		if ex.Major == 2 {
			return r.AsV2(ex.msgType("")), nil
		}

		return r.AsV1(ex.msgType("")), nil
	})
}

// Issue issues the requested credential. An anoncreds failure moves the
// exchange to failed and returns the problem report for the holder. The
// credential is created once, before the transition commits, so a retried
// commit does not use up another revocation index.
func (s *Service) Issue(ctx context.Context, thid, comment string) (*service.Outbound, error) {
	st := step{thid: thid, role: RoleIssuer, next: StateNameCredentialSent}

	pending, err := s.peek(st)
	if err != nil {
		return nil, err
	}

	values := make(map[string]string, len(pending.Preview))
	for _, attr := range pending.Preview {
		values[attr.Name] = attr.Value
	}

	cred, credRevID, err := s.anoncreds.IssuerCreateCredential(ctx, pending.Offer, pending.Request, values,
		pending.RevRegID)
	if err != nil {
		return s.failOn(ctx, st, agenterr.Wrap(agenterr.ErrIssuanceFailed, err, "issue credential %s", thid),
			agenterr.ErrIssuanceFailed)
	}

	st.apply = func(_ *threadstate.Record, ex *exchange) error {
		ex.Credential, ex.CredRevID = cred, credRevID

		return nil
	}

	rec, ex, err := s.run(ctx, st)
	if err != nil {
		return nil, err
	}

	return s.send(rec, ex, func() (interface{}, error) {
		c := &Credential{Comment: comment, Credential: ex.Credential}
		if ex.Major == 2 {
			return c.AsV2(ex.msgType("")), nil
		}

		return c.AsV1(ex.msgType("")), nil
	})
}

// Decline ends the exchange of thid and returns the problem report telling the other side.
func (s *Service) Decline(ctx context.Context, thid, reason string) (*service.Outbound, error) {
	rec, ex, err := s.run(ctx, step{
		thid: thid, next: StateNameDeclined,
		apply: func(_ *threadstate.Record, ex *exchange) error {
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

	return &Instance{
		ThreadID:     rec.ThreadID,
		ConnectionID: rec.ConnectionID,
		Role:         rec.Role,
		State:        rec.State,
		Version:      rec.ProtocolVersion,
		SchemaID:     ex.SchemaID,
		CredDefID:    ex.CredDefID,
		RevRegID:     ex.RevRegID,
		CredentialID: ex.CredentialID,
		Preview:      ex.Preview,
		Problem:      ex.Problem,
	}, nil
}

func (s *Service) handleProposal(ctx context.Context, in *service.Inbound) (*service.Outbound, error) {
	p := &Proposal{}

	if in.Type.Major == 2 {
		var v2 ProposeCredentialV2
		if err := in.Msg.Decode(&v2); err != nil {
			return nil, agenterr.Wrap(agenterr.ErrMalformedMessage, err, "decode proposal")
		}

		if err := p.FromV2(&v2); err != nil {
			return nil, err
		}
	} else {
		var v1 ProposeCredentialV1
		if err := in.Msg.Decode(&v1); err != nil {
			return nil, agenterr.Wrap(agenterr.ErrMalformedMessage, err, "decode proposal")
		}

		p.FromV1(&v1)
	}

	thid, err := in.Msg.ThreadID()
	if err != nil {
		return nil, agenterr.Wrap(agenterr.ErrMalformedMessage, err, "proposal")
	}

	rec, ex, err := s.run(ctx, step{
		thid: thid, connID: in.Context.ConnectionID, role: RoleIssuer, next: StateNameProposalReceived, start: true,
		peer: true,
		apply: func(_ *threadstate.Record, ex *exchange) error {
			ex.setType(in.Type)
			ex.Comment, ex.SchemaID, ex.CredDefID, ex.Preview = p.Comment, p.SchemaID, p.CredDefID, p.Preview

			return nil
		},
	})
	if err != nil {
		return nil, err
	}

	s.notify(rec, ex, in.Msg, nil)

	if !s.autoAccept || ex.CredDefID == "" {
		return nil, nil
	}

	return s.AcceptProposal(ctx, thid, &AcceptProposal{})
}

func (s *Service) handleOffer(ctx context.Context, in *service.Inbound) (*service.Outbound, error) {
	o := &Offer{}

	if in.Type.Major == 2 {
		var v2 OfferCredentialV2
		if err := in.Msg.Decode(&v2); err != nil {
			return nil, agenterr.Wrap(agenterr.ErrMalformedMessage, err, "decode offer")
		}

		if err := o.FromV2(&v2); err != nil {
			return nil, err
		}
	} else {
		var v1 OfferCredentialV1
		if err := in.Msg.Decode(&v1); err != nil {
			return nil, agenterr.Wrap(agenterr.ErrMalformedMessage, err, "decode offer")
		}

		if err := o.FromV1(&v1); err != nil {
			return nil, err
		}
	}

	var offer anoncreds.CredentialOffer
	if err := json.Unmarshal(o.Offer, &offer); err != nil || offer.CredDefID == "" {
		return nil, agenterr.Errorf(agenterr.ErrFormatMismatch, "offer attachment is not a credential offer")
	}

	thid, err := in.Msg.ThreadID()
	if err != nil {
		return nil, agenterr.Wrap(agenterr.ErrMalformedMessage, err, "offer")
	}

	rec, ex, err := s.run(ctx, step{
		thid: thid, connID: in.Context.ConnectionID, role: RoleHolder, next: StateNameOfferReceived, start: true,
		peer: true,
		apply: func(_ *threadstate.Record, ex *exchange) error {
			ex.setType(in.Type)
			ex.Comment, ex.Preview, ex.Offer = o.Comment, o.Preview, o.Offer
			ex.SchemaID, ex.CredDefID = offer.SchemaID, offer.CredDefID

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

	return s.AcceptOffer(ctx, thid)
}

func (s *Service) handleRequest(ctx context.Context, in *service.Inbound) (*service.Outbound, error) {
	thid, err := explicitThread(in)
	if err != nil {
		return nil, err
	}

	r := &Request{}

	if in.Type.Major == 2 {
		var v2 RequestCredentialV2
		if err = in.Msg.Decode(&v2); err == nil {
			err = r.FromV2(&v2)
		}
	} else {
		var v1 RequestCredentialV1
		if err = in.Msg.Decode(&v1); err == nil {
			err = r.FromV1(&v1)
		}
	}

	st := step{
		thid: thid, connID: in.Context.ConnectionID, role: RoleIssuer, next: StateNameRequestReceived, peer: true,
	}

	if err != nil {
		return s.failOn(ctx, st, err, agenterr.ErrFormatMismatch)
	}

	st.apply = func(_ *threadstate.Record, ex *exchange) error {
		ex.Request = r.Request

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

	return s.Issue(ctx, thid, "")
}

func (s *Service) handleCredential(ctx context.Context, in *service.Inbound) (*service.Outbound, error) {
	thid, err := explicitThread(in)
	if err != nil {
		return nil, err
	}

	c := &Credential{}

	if in.Type.Major == 2 {
		var v2 IssueCredentialV2
		if err = in.Msg.Decode(&v2); err == nil {
			err = c.FromV2(&v2)
		}
	} else {
		var v1 IssueCredentialV1
		if err = in.Msg.Decode(&v1); err == nil {
			err = c.FromV1(&v1)
		}
	}

	st := step{
		thid: thid, connID: in.Context.ConnectionID, role: RoleHolder, next: StateNameCredentialReceived, peer: true,
	}

	if err != nil {
		return s.failOn(ctx, st, err, agenterr.ErrFormatMismatch)
	}

	st.apply = func(_ *threadstate.Record, ex *exchange) error {
		return s.storeCredential(ctx, ex, c.Credential)
	}

	rec, ex, err := s.run(ctx, st)
	if err != nil {
		return s.failOn(ctx, st, err, agenterr.ErrFormatMismatch)
	}

	s.notify(rec, ex, in.Msg, nil)

	return &service.Outbound{
		Msg:          notification.NewAck(ex.msgType(AckKind), thid),
		ConnectionID: rec.ConnectionID,
	}, nil
}

func (s *Service) handleAck(ctx context.Context, in *service.Inbound) error {
	thid, err := explicitThread(in)
	if err != nil {
		return err
	}

	rec, ex, err := s.run(ctx, step{
		thid: thid, connID: in.Context.ConnectionID, role: RoleIssuer, next: StateNameDone, peer: true,
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
		apply: func(_ *threadstate.Record, ex *exchange) error {
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

func (s *Service) createOffer(ctx context.Context, ex *exchange, credDefID string) error {
	if credDefID == "" {
		return agenterr.Errorf(agenterr.ErrUnresolvableCredDef, "no credential definition to offer")
	}

	raw, err := s.anoncreds.IssuerCreateCredentialOffer(ctx, credDefID)
	if err != nil {
		return agenterr.Capability(err, "create offer for %s", credDefID)
	}

	var offer anoncreds.CredentialOffer
	if err = json.Unmarshal(raw, &offer); err != nil {
		return agenterr.Capability(err, "decode offer for %s", credDefID)
	}

	ex.Offer, ex.CredDefID, ex.SchemaID = raw, credDefID, offer.SchemaID

	return nil
}

// storeCredential checks the credential answers the offer and stores it in the wallet.
func (s *Service) storeCredential(ctx context.Context, ex *exchange, raw json.RawMessage) error {
	var cred anoncreds.Credential
	if err := json.Unmarshal(raw, &cred); err != nil {
		return agenterr.Wrap(agenterr.ErrFormatMismatch, err, "decode credential")
	}

	if cred.CredDefID != ex.CredDefID {
		return agenterr.Errorf(agenterr.ErrFormatMismatch, "credential of %s answers an offer of %s",
			cred.CredDefID, ex.CredDefID)
	}

	credDef, err := s.ledger.ResolveCredDef(ctx, cred.CredDefID)
	if err != nil {
		return agenterr.Wrap(agenterr.ErrUnresolvableCredDef, err, "cred def %s", cred.CredDefID)
	}

	var revRegDef *ledger.RevRegDef

	if cred.RevRegID != "" {
		if revRegDef, err = s.ledger.ResolveRevRegDef(ctx, cred.RevRegID); err != nil {
			return agenterr.Wrap(agenterr.ErrUnresolvableCredDef, err, "rev reg def %s", cred.RevRegID)
		}
	}

	credID, err := s.anoncreds.ProverStoreCredential(ctx, "", ex.RequestMetadata, raw, credDef, revRegDef)
	if err != nil {
		return agenterr.Capability(err, "store credential")
	}

	ex.Credential, ex.CredentialID, ex.RevRegID = raw, credID, cred.RevRegID

	return nil
}

// run applies st to its instance.
func (s *Service) run(ctx context.Context, st step) (*threadstate.Record, *exchange, error) {
	var ex *exchange

	rec, err := s.threads.Transition(ctx, st.thid, func(snapshot *threadstate.Record) (*threadstate.Record, error) {
		next, loaded, err := s.load(snapshot, st)
		if err != nil {
			return nil, err
		}

		ex = loaded

		if st.apply != nil {
			if err = st.apply(next, ex); err != nil {
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

// load checks st applies to snapshot and returns the copy to change with its exchange.
func (s *Service) load(snapshot *threadstate.Record, st step) (*threadstate.Record, *exchange, error) {
	next, current, err := s.prepare(snapshot, st)
	if err != nil {
		return nil, nil, err
	}

	ex := &exchange{}
	if err = next.Decode(ex); err != nil {
		return nil, nil, fmt.Errorf("decode issuance %s: %w", st.thid, err)
	}

	if err = checkTransition(current, st.next, next.Role); err != nil {
		return nil, nil, err
	}

	return next, ex, nil
}

// peek checks st against the stored instance without changing it.
func (s *Service) peek(st step) (*exchange, error) {
	snapshot, err := s.threads.Get(st.thid)
	if errors.Is(err, threadstate.ErrNotFound) {
		snapshot, err = nil, nil
	}

	if err != nil {
		return nil, err
	}

	_, ex, err := s.load(snapshot, st)

	return ex, err
}

// prepare returns a copy of the instance st applies to and its current state.
func (s *Service) prepare(snapshot *threadstate.Record, st step) (*threadstate.Record, string, error) {
	if snapshot == nil {
		if !st.start {
			return nil, "", agenterr.Errorf(agenterr.ErrThreadMismatch, "no issuance for thread %s", st.thid)
		}

		return &threadstate.Record{
			ThreadID:     st.thid,
			Protocol:     Name,
			Role:         st.role,
			ConnectionID: st.connID,
		}, stateNameInitial, nil
	}

	if snapshot.Protocol != Name {
		return nil, "", agenterr.Errorf(agenterr.ErrThreadMismatch, "thread %s is a %s exchange", st.thid,
			snapshot.Protocol)
	}

	if st.peer && (st.connID == "" || st.connID != snapshot.ConnectionID) {
		return nil, "", agenterr.Errorf(agenterr.ErrThreadMismatch, "thread %s belongs to another connection",
			st.thid)
	}

	if st.role != "" && snapshot.Role != st.role {
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
	st.apply = func(_ *threadstate.Record, ex *exchange) error {
		ex.Problem = cause.Error()

		return nil
	}

	rec, ex, err := s.run(ctx, st)
	if errors.Is(err, agenterr.ErrThreadMismatch) || errors.Is(err, agenterr.ErrInvalidTransition) {
		return nil, err
	}

	if err != nil {
		logger.Warnf("issuance %s could not be marked failed: %v", st.thid, err)

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

func (s *Service) myDID(connID string) (string, error) {
	if s.connections == nil || connID == "" {
		return "", agenterr.Errorf(agenterr.ErrConnectionNotFound, "issuance is not bound to a connection")
	}

	conn, err := s.connections.GetConnectionRecord(connID)
	if err != nil {
		return "", err
	}

	return conn.MyDID, nil
}

func proposalMessage(id messagetype.Identifier, p *Proposal) (interface{}, error) {
	if id.Major == 2 {
		return p.AsV2(id)
	}

	return p.AsV1(id), nil
}

func offerMessage(ex *exchange) interface{} {
	o := &Offer{Comment: ex.Comment, Preview: ex.Preview, Offer: ex.Offer}
	if ex.Major == 2 {
		return o.AsV2(ex.msgType(""))
	}

	return o.AsV1(ex.msgType(""))
}

func identifier(version uint) (messagetype.Identifier, error) {
	switch version {
	case 0, 1:
		return messagetype.New(Name, 1, 0, ""), nil
	case 2:
		return messagetype.New(Name, 2, 0, ""), nil
	default:
		return messagetype.Identifier{}, fmt.Errorf("issue credential version %d is not supported", version)
	}
}

func explicitThread(in *service.Inbound) (string, error) {
	thid := in.Msg.ExplicitThreadID()
	if thid == "" {
		return "", agenterr.Errorf(agenterr.ErrThreadMismatch, "%s %s has no thread", in.Type.Kind, in.Msg.ID())
	}

	return thid, nil
}
