/*
Copyright Avast Software. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package connection

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hyperledger/aries-didcomm-go/pkg/common/log"
	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/common/agenterr"
	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/common/service"
	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/messagetype"
	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/protocol/decorator"
	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/protocol/notification"
	"github.com/hyperledger/aries-didcomm-go/pkg/doc/did"
	"github.com/hyperledger/aries-didcomm-go/pkg/doc/didkey"
	connectionstore "github.com/hyperledger/aries-didcomm-go/pkg/store/connection"
	"github.com/hyperledger/aries-didcomm-go/pkg/store/threadstate"
	"github.com/hyperledger/aries-didcomm-go/pkg/wallet"
	"github.com/hyperledger/aries-didcomm-go/spi/storage"
)

var logger = log.New("aries-framework/connection")

const (
	// Connection protocol family.
	Connection = messagetype.Connections

	protocolVersion = "1.0"

	// ConnectionIDKey is the StateMsg property carrying the connection id.
	ConnectionIDKey = "connectionID"
)

// Provider contains dependencies for the Connection protocol and is typically created by using aries.Context().
type Provider interface {
	Wallet() wallet.Wallet
	StorageProvider() storage.Provider
	ThreadStore() *threadstate.Store
	Label() string
	AutoAccept() bool
	// RouteFor returns the endpoint and routing keys to advertise for a new key.
	RouteFor(ctx context.Context, verKey string) (string, []string, error)
}

// Service for Connection protocol.
type Service struct {
	service.Message
	wallet     wallet.Wallet
	threads    *threadstate.Store
	recorder   *connectionstore.Recorder
	label      string
	autoAccept bool
	routeFor   func(ctx context.Context, verKey string) (string, []string, error)
	now        func() time.Time
}

// New return connection service.
func New(prov Provider) (*Service, error) {
	recorder, err := connectionstore.NewRecorder(prov)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize connection recorder: %w", err)
	}

	return &Service{
		wallet:     prov.Wallet(),
		threads:    prov.ThreadStore(),
		recorder:   recorder,
		label:      prov.Label(),
		autoAccept: prov.AutoAccept(),
		routeFor:   prov.RouteFor,
		now:        time.Now,
	}, nil
}

// Name return service name.
func (s *Service) Name() string {
	return Connection
}

// Accept msg checks the msg type.
func (s *Service) Accept(id messagetype.Identifier) bool {
	return id.Family == messagetype.Connections || id.Family == messagetype.TrustPing
}

// HandleInbound handles inbound connection and trust ping messages. Acks and
// generic problem reports are routed here by thread.
func (s *Service) HandleInbound(ctx context.Context, in *service.Inbound) (*service.Outbound, error) {
	logger.Debugf("receive inbound message : %s", in.Type)

	switch {
	case in.Type.Family == messagetype.Connections && in.Type.Kind == InvitationKind:
		return s.handleInvitation(ctx, in)
	case in.Type.Family == messagetype.Connections && in.Type.Kind == RequestKind:
		return s.handleRequest(ctx, in)
	case in.Type.Family == messagetype.Connections && in.Type.Kind == ResponseKind:
		return s.handleResponse(ctx, in)
	case in.Type.Family == messagetype.TrustPing && in.Type.Kind == PingKind:
		return s.handlePing(ctx, in)
	case in.Type.Family == messagetype.TrustPing && in.Type.Kind == PingResponseKind:
		return nil, s.completeFromContext(ctx, in)
	case notification.IsProblemReport(in.Type):
		return nil, s.handleProblemReport(ctx, in)
	case notification.IsAck(in.Type):
		return nil, s.handleAck(ctx, in)
	default:
		return nil, agenterr.Errorf(agenterr.ErrMalformedType, "connection service cannot handle %s", in.Type)
	}
}

// Initiate receives an invitation and answers it with a connection request.
func (s *Service) Initiate(ctx context.Context, params interface{}) (*service.Outbound, error) {
	var inv *Invitation

	switch p := params.(type) {
	case *Invitation:
		inv = p
	case Invitation:
		inv = &p
	default:
		return nil, fmt.Errorf("connection: unsupported initiate params %T", params)
	}

	connID, err := s.ReceiveInvitation(ctx, inv)
	if err != nil {
		return nil, err
	}

	return s.AcceptInvitation(ctx, connID, s.label)
}

// Continue applies a local decision to the connection exchange of thid.
func (s *Service) Continue(ctx context.Context, thid string, action interface{}) (*service.Outbound, error) {
	switch a := action.(type) {
	case AcceptInvitation:
		return s.AcceptInvitation(ctx, thid, a.Label)
	case *AcceptInvitation:
		return s.AcceptInvitation(ctx, thid, a.Label)
	case AcceptRequest, *AcceptRequest:
		return s.AcceptRequest(ctx, thid)
	case Abandon:
		return s.Abandon(ctx, thid, a.Code, a.Reason)
	case *Abandon:
		return s.Abandon(ctx, thid, a.Code, a.Reason)
	default:
		return nil, fmt.Errorf("connection: unsupported action %T", action)
	}
}

// CreateInvitation creates a reusable invitation with a new key. The inviter
// record is keyed by the invitation id and stays in the invited state.
func (s *Service) CreateInvitation(ctx context.Context, params CreateInvitationParams) (*Invitation, error) {
	key, err := s.wallet.CreateKey(nil)
	if err != nil {
		return nil, agenterr.Capability(err, "create invitation key")
	}

	endpoint, routingKeys, err := s.routeFor(ctx, key.VerKey)
	if err != nil {
		return nil, fmt.Errorf("route for invitation key: %w", err)
	}

	label := params.Label
	if label == "" {
		label = s.label
	}

	inv := &Invitation{
		Type:            InvitationMsgType.String(),
		ID:              uuid.New().String(),
		Label:           label,
		RecipientKeys:   []string{key.VerKey},
		ServiceEndpoint: endpoint,
		RoutingKeys:     routingKeys,
	}

	conn := &connectionstore.Record{
		Label:         label,
		InvitationID:  inv.ID,
		InvitationKey: key.VerKey,
		MyVerKey:      key.VerKey,
	}

	rec, err := s.create(ctx, inv.ID, "", RoleInviter, StateIDInvited, conn)
	if err != nil {
		return nil, err
	}

	s.notify(rec, nil)

	return inv, nil
}

// ReceiveInvitation stores an invitation and returns the id of the connection
// it starts. The connection id is used as the @id of the request.
func (s *Service) ReceiveInvitation(ctx context.Context, inv *Invitation) (string, error) {
	if err := validateInvitation(inv); err != nil {
		return "", err
	}

	recipientKeys, err := didkey.ToVerKeys(inv.RecipientKeys)
	if err != nil {
		return "", agenterr.Wrap(agenterr.ErrInvalidInvitation, err, "invitation recipient keys")
	}

	routingKeys, err := didkey.ToVerKeys(inv.RoutingKeys)
	if err != nil {
		return "", agenterr.Wrap(agenterr.ErrInvalidInvitation, err, "invitation routing keys")
	}

	prefix := messagetype.DIDCommPrefix
	if id, err := messagetype.NewDefaultRegistry().Parse(inv.Type); err == nil {
		prefix = id.Prefix
	}

	connID := uuid.New().String()

	conn := &connectionstore.Record{
		TheirLabel:      inv.Label,
		InvitationID:    inv.ID,
		InvitationKey:   recipientKeys[0],
		ServiceEndPoint: inv.ServiceEndpoint,
		RecipientKeys:   recipientKeys,
		RoutingKeys:     routingKeys,
		TypePrefix:      prefix,
	}

	rec, err := s.create(ctx, connID, inv.ID, RoleInvitee, StateIDInvited, conn)
	if err != nil {
		return "", err
	}

	s.notify(rec, nil)

	return connID, nil
}

// AcceptInvitation sends the connection request of an invitee connection.
func (s *Service) AcceptInvitation(ctx context.Context, connID, label string) (*service.Outbound, error) {
	if label == "" {
		label = s.label
	}

	myDoc, myKey, err := s.newPairwiseDoc(ctx)
	if err != nil {
		return nil, err
	}

	var request *Request

	rec, err := s.threads.Transition(ctx, connID, func(snapshot *threadstate.Record) (*threadstate.Record, error) {
		conn, err := s.expect(snapshot, connID, RoleInvitee, StateIDRequested)
		if err != nil {
			return nil, err
		}

		request = &Request{
			Type:   msgType(conn.TypePrefix, RequestKind).String(),
			ID:     connID,
			Label:  label,
			Thread: &decorator.Thread{PID: conn.InvitationID},
			Connection: &ConnectionBody{
				DID:    myDoc.ID,
				DIDDoc: myDoc,
			},
		}

		conn.Label = label
		conn.MyDID = myDoc.ID
		conn.MyVerKey = myKey

		return s.advance(snapshot, conn, StateIDRequested)
	})
	if err != nil {
		return nil, err
	}

	msg, err := service.NewDIDCommMsgMap(request)
	if err != nil {
		return nil, err
	}

	s.notify(rec, msg)

	conn, err := connectionstore.FromThreadRecord(rec)
	if err != nil {
		return nil, err
	}

	dest, err := conn.TheirDestination()
	if err != nil {
		return nil, err
	}

	return &service.Outbound{Msg: msg, Destination: dest, MyVerKey: myKey}, nil
}

// AcceptRequest answers the request of connID with a signed response.
func (s *Service) AcceptRequest(ctx context.Context, connID string) (*service.Outbound, error) {
	myDoc, myKey, err := s.newPairwiseDoc(ctx)
	if err != nil {
		return nil, err
	}

	var (
		response *Response
		dest     *service.Destination
	)

	rec, err := s.threads.Transition(ctx, connID, func(snapshot *threadstate.Record) (*threadstate.Record, error) {
		conn, err := s.expect(snapshot, connID, RoleInviter, StateIDResponded)
		if err != nil {
			return nil, err
		}

		if conn.TheirDIDDoc == nil {
			return nil, agenterr.Errorf(agenterr.ErrInvalidTransition, "connection %s has no request", connID)
		}

		dest, err = conn.TheirDIDDoc.Destination()
		if err != nil {
			return nil, agenterr.Wrap(agenterr.ErrMalformedMessage, err, "their did doc")
		}

		sig, err := prepareConnectionSignature(s.wallet, &ConnectionBody{DID: myDoc.ID, DIDDoc: myDoc},
			conn.InvitationKey, s.now())
		if err != nil {
			return nil, agenterr.Capability(err, "sign connection response")
		}

		response = &Response{
			Type:                msgType(conn.TypePrefix, ResponseKind).String(),
			ID:                  uuid.New().String(),
			ConnectionSignature: sig,
			Thread:              &decorator.Thread{ID: connID},
		}

		conn.MyDID = myDoc.ID
		conn.MyVerKey = myKey

		return s.advance(snapshot, conn, StateIDResponded)
	})
	if err != nil {
		return nil, err
	}

	msg, err := service.NewDIDCommMsgMap(response)
	if err != nil {
		return nil, err
	}

	s.notify(rec, msg)

	return &service.Outbound{Msg: msg, Destination: dest, MyVerKey: myKey}, nil
}

// Abandon ends the exchange of connID. The other side is told with a problem
// report when it can be reached.
func (s *Service) Abandon(ctx context.Context, connID, code, reason string) (*service.Outbound, error) {
	rec, err := s.abandon(ctx, connID, reason, nil)
	if err != nil {
		return nil, err
	}

	s.notify(rec, nil)

	conn, err := connectionstore.FromThreadRecord(rec)
	if err != nil {
		return nil, err
	}

	dest, err := conn.TheirDestination()
	if err != nil {
		logger.Debugf("connection %s abandoned without a destination: %v", connID, err)

		return nil, nil
	}

	if code == "" {
		code = notification.CodeRejected
	}

	msg := service.DIDCommMsgMap{
		"@type":        msgType(conn.TypePrefix, ProblemReportKind).String(),
		"@id":          uuid.New().String(),
		"problem-code": code,
		"explain":      reason,
	}
	msg.SetThread(connID, "")

	myKey := conn.MyVerKey
	if myKey == "" && rec.Role == RoleInviter {
		// the requester only knows the invitation key until the response
		myKey = conn.InvitationKey
	}

	return &service.Outbound{Msg: msg, Destination: dest, MyVerKey: myKey}, nil
}

// Complete moves a responded connection to completed. It is called for every
// authenticated message received on the connection, a completed connection is
// left untouched.
func (s *Service) Complete(ctx context.Context, connID string) error {
	var changed bool

	rec, err := s.threads.Transition(ctx, connID, func(snapshot *threadstate.Record) (*threadstate.Record, error) {
		changed = false

		if snapshot == nil || snapshot.Protocol != connectionstore.Protocol {
			return nil, agenterr.Errorf(agenterr.ErrConnectionNotFound, "connection %s", connID)
		}

		if snapshot.State == StateIDCompleted {
			return nil, nil
		}

		if snapshot.State != StateIDResponded {
			return nil, agenterr.Errorf(agenterr.ErrInvalidTransition,
				"connection %s cannot complete from %s", connID, snapshot.State)
		}

		changed = true
		next := snapshot.Clone()
		next.State = StateIDCompleted

		return next, nil
	})
	if err != nil {
		return err
	}

	if changed {
		s.notify(rec, nil)
	}

	return nil
}

// GetConnection returns the connection record of connID.
func (s *Service) GetConnection(connID string) (*connectionstore.Record, error) {
	return s.recorder.GetConnectionRecord(connID)
}

// QueryConnections returns the connection records, optionally only those in states.
func (s *Service) QueryConnections(states ...string) ([]*connectionstore.Record, error) {
	return s.recorder.QueryConnectionRecords(states...)
}

// ConnectionIDByTheirKey returns the connection established with verKey.
func (s *Service) ConnectionIDByTheirKey(verKey string) (string, error) {
	return s.recorder.GetConnectionIDByTheirKey(verKey)
}

// Destination returns the destination of a connection and the local key to pack with.
func (s *Service) Destination(connID string) (*service.Destination, string, error) {
	return s.recorder.Destination(connID)
}

func (s *Service) handleInvitation(ctx context.Context, in *service.Inbound) (*service.Outbound, error) {
	var inv Invitation
	if err := in.Msg.Decode(&inv); err != nil {
		return nil, agenterr.Wrap(agenterr.ErrInvalidInvitation, err, "decode invitation")
	}

	connID, err := s.ReceiveInvitation(ctx, &inv)
	if err != nil {
		return nil, err
	}

	if !s.autoAccept {
		return nil, nil
	}

	return s.AcceptInvitation(ctx, connID, s.label)
}

func (s *Service) handleRequest(ctx context.Context, in *service.Inbound) (*service.Outbound, error) {
	var request Request
	if err := in.Msg.Decode(&request); err != nil {
		return nil, agenterr.Wrap(agenterr.ErrMalformedMessage, err, "decode connection request")
	}

	pthid := in.Msg.ParentThreadID()
	if pthid == "" {
		return nil, agenterr.Errorf(agenterr.ErrThreadMismatch, "connection request %s has no invitation id", request.ID)
	}

	thid, err := in.Msg.ThreadID()
	if err != nil {
		return nil, agenterr.Wrap(agenterr.ErrMalformedMessage, err, "connection request")
	}

	if request.Connection == nil || request.Connection.DIDDoc == nil {
		return nil, agenterr.Errorf(agenterr.ErrMalformedMessage, "connection request %s has no did doc", thid)
	}

	if err = request.Connection.DIDDoc.Validate(); err != nil {
		return nil, agenterr.Wrap(agenterr.ErrMalformedMessage, err, "connection request %s", thid)
	}

	invitation, err := s.invitation(pthid)
	if err != nil {
		return nil, err
	}

	theirKeys, err := request.Connection.DIDDoc.RecipientKeys()
	if err != nil {
		return nil, agenterr.Wrap(agenterr.ErrMalformedMessage, err, "connection request %s", thid)
	}

	conn := &connectionstore.Record{
		Label:         invitation.Label,
		TheirLabel:    request.Label,
		TheirDID:      request.Connection.DID,
		TheirDIDDoc:   request.Connection.DIDDoc,
		InvitationID:  pthid,
		InvitationKey: invitation.InvitationKey,
		TypePrefix:    in.Type.Prefix,
	}

	rec, err := s.create(ctx, thid, pthid, RoleInviter, StateIDRequested, conn)
	if err != nil {
		return nil, err
	}

	if err = s.recorder.SaveTheirKeys(thid, theirKeys); err != nil {
		logger.Warnf("index keys of connection %s: %v", thid, err)
	}

	s.notify(rec, in.Msg)

	if !s.autoAccept {
		return nil, nil
	}

	return s.AcceptRequest(ctx, thid)
}

func (s *Service) handleResponse(ctx context.Context, in *service.Inbound) (*service.Outbound, error) {
	thid := in.Msg.ExplicitThreadID()
	if thid == "" {
		return nil, agenterr.Errorf(agenterr.ErrThreadMismatch, "connection response %s has no thread", in.Msg.ID())
	}

	var response Response
	if err := in.Msg.Decode(&response); err != nil {
		return nil, agenterr.Wrap(agenterr.ErrMalformedMessage, err, "decode connection response")
	}

	var theirKeys []string

	rec, err := s.threads.Transition(ctx, thid, func(snapshot *threadstate.Record) (*threadstate.Record, error) {
		if snapshot == nil {
			return nil, agenterr.Errorf(agenterr.ErrThreadMismatch, "no connection for response thread %s", thid)
		}

		conn, err := s.expect(snapshot, thid, RoleInvitee, StateIDCompleted)
		if err != nil {
			return nil, err
		}

		if snapshot.State != StateIDRequested {
			return nil, agenterr.Errorf(agenterr.ErrInvalidTransition,
				"connection %s got a response in state %s", thid, snapshot.State)
		}

		connection, err := verifySignature(s.wallet, response.ConnectionSignature, conn.InvitationKey)
		if err != nil {
			return nil, err
		}

		if connection.DIDDoc == nil {
			return nil, agenterr.Errorf(agenterr.ErrMalformedMessage, "connection response %s has no did doc", thid)
		}

		if theirKeys, err = connection.DIDDoc.RecipientKeys(); err != nil {
			return nil, agenterr.Wrap(agenterr.ErrMalformedMessage, err, "connection response %s", thid)
		}

		conn.TheirDID = connection.DID
		conn.TheirDIDDoc = connection.DIDDoc

		return s.advance(snapshot, conn, StateIDCompleted)
	})
	if err != nil {
		return nil, err
	}

	if err = s.recorder.SaveTheirKeys(thid, theirKeys); err != nil {
		logger.Warnf("index keys of connection %s: %v", thid, err)
	}

	s.notify(rec, in.Msg)

	return &service.Outbound{Msg: notification.NewAck(notification.AckType, thid), ConnectionID: thid}, nil
}

func (s *Service) handlePing(ctx context.Context, in *service.Inbound) (*service.Outbound, error) {
	var ping Ping
	if err := in.Msg.Decode(&ping); err != nil {
		return nil, agenterr.Wrap(agenterr.ErrMalformedMessage, err, "decode trust ping")
	}

	if err := s.completeFromContext(ctx, in); err != nil {
		return nil, err
	}

	if ping.ResponseRequested != nil && !*ping.ResponseRequested {
		return nil, nil
	}

	thid, err := in.Msg.ThreadID()
	if err != nil {
		return nil, agenterr.Wrap(agenterr.ErrMalformedMessage, err, "trust ping")
	}

	reply := service.DIDCommMsgMap{
		"@type": in.Type.WithKind(PingResponseKind).String(),
		"@id":   uuid.New().String(),
	}
	reply.SetThread(thid, "")

	return &service.Outbound{Msg: reply}, nil
}

func (s *Service) handleAck(ctx context.Context, in *service.Inbound) error {
	thid := in.Msg.ExplicitThreadID()
	if thid == "" {
		return agenterr.Errorf(agenterr.ErrThreadMismatch, "ack %s has no thread", in.Msg.ID())
	}

	return s.Complete(ctx, thid)
}

func (s *Service) handleProblemReport(ctx context.Context, in *service.Inbound) error {
	thid := in.Msg.ExplicitThreadID()
	if thid == "" {
		return agenterr.Errorf(agenterr.ErrThreadMismatch, "problem report %s has no thread", in.Msg.ID())
	}

	report, err := notification.ParseProblemReport(in.Msg)
	if err != nil {
		return agenterr.Wrap(agenterr.ErrMalformedMessage, err, "decode problem report")
	}

	reason := report.Description.Code
	if report.Description.En != "" {
		reason += ": " + report.Description.En
	}

	rec, err := s.abandon(ctx, thid, reason, &in.Context)
	if err != nil {
		return err
	}

	s.notify(rec, in.Msg)

	return nil
}

// completeFromContext completes the connection a message arrived on, if any.
func (s *Service) completeFromContext(ctx context.Context, in *service.Inbound) error {
	if in.Context.ConnectionID == "" {
		return nil
	}

	err := s.Complete(ctx, in.Context.ConnectionID)
	if err != nil && agenterr.IsKind(err, agenterr.StateError) {
		logger.Debugf("connection %s not completed: %v", in.Context.ConnectionID, err)

		return nil
	}

	return err
}

// abandon moves connID to abandoned. A problem report received from the other
// side passes its context in from, whose sender must be the other side of connID.
func (s *Service) abandon(ctx context.Context, connID, reason string,
	from *service.DIDCommContext) (*threadstate.Record, error) {
	return s.threads.Transition(ctx, connID, func(snapshot *threadstate.Record) (*threadstate.Record, error) {
		if snapshot == nil || snapshot.Protocol != connectionstore.Protocol {
			return nil, agenterr.Errorf(agenterr.ErrThreadMismatch, "no connection for thread %s", connID)
		}

		conn, err := connectionstore.FromThreadRecord(snapshot)
		if err != nil {
			return nil, err
		}

		if from != nil && !fromCounterparty(from, conn) {
			return nil, agenterr.Errorf(agenterr.ErrThreadMismatch,
				"problem report for connection %s does not come from its other side", connID)
		}

		if isTerminal(snapshot.State) {
			return nil, agenterr.Errorf(agenterr.ErrInvalidTransition,
				"connection %s is %s", connID, snapshot.State)
		}

		conn.Problem = reason

		return s.advance(snapshot, conn, StateIDAbandoned)
	})
}

// fromCounterparty reports whether the authenticated sender of a message is the
// other side of conn.
func fromCounterparty(from *service.DIDCommContext, conn *connectionstore.Record) bool {
	if !from.Authenticated() {
		return false
	}

	if from.ConnectionID != "" {
		return from.ConnectionID == conn.ConnectionID
	}

	keys := conn.RecipientKeys

	if conn.Role == RoleInvitee && conn.InvitationKey != "" {
		keys = append([]string{conn.InvitationKey}, keys...)
	}

	if conn.TheirDIDDoc != nil {
		if docKeys, err := conn.TheirDIDDoc.RecipientKeys(); err == nil {
			keys = append(append([]string{}, keys...), docKeys...)
		}
	}

	for _, k := range keys {
		if k == from.TheirVerKey {
			return true
		}
	}

	return false
}

// invitation returns the inviter record of an invitation that still accepts requests.
func (s *Service) invitation(invitationID string) (*connectionstore.Record, error) {
	rec, err := s.threads.Get(invitationID)
	if err != nil {
		if errors.Is(err, threadstate.ErrNotFound) {
			return nil, agenterr.Wrap(agenterr.ErrThreadMismatch, err, "unknown invitation %s", invitationID)
		}

		return nil, err
	}

	if rec.Protocol != connectionstore.Protocol || rec.Role != RoleInviter {
		return nil, agenterr.Errorf(agenterr.ErrThreadMismatch, "thread %s is not an invitation", invitationID)
	}

	if rec.State != StateIDInvited {
		return nil, agenterr.Errorf(agenterr.ErrInvalidTransition,
			"invitation %s is %s", invitationID, rec.State)
	}

	return connectionstore.FromThreadRecord(rec)
}

// create stores a new connection record, failing when thid is taken.
func (s *Service) create(ctx context.Context, thid, pthid, role, stateID string,
	conn *connectionstore.Record) (*threadstate.Record, error) {
	return s.threads.Transition(ctx, thid, func(snapshot *threadstate.Record) (*threadstate.Record, error) {
		if snapshot != nil {
			return nil, agenterr.Errorf(agenterr.ErrInvalidTransition, "thread %s already exists", thid)
		}

		rec := &threadstate.Record{
			ThreadID:        thid,
			ParentThreadID:  pthid,
			Protocol:        connectionstore.Protocol,
			ProtocolVersion: protocolVersion,
			Role:            role,
			State:           stateID,
		}

		if err := rec.Encode(conn); err != nil {
			return nil, err
		}

		return rec, nil
	})
}

// expect checks snapshot is a connection of role that may move to next and decodes it.
func (s *Service) expect(snapshot *threadstate.Record, connID, role,
	next string) (*connectionstore.Record, error) {
	if snapshot == nil || snapshot.Protocol != connectionstore.Protocol {
		return nil, agenterr.Errorf(agenterr.ErrConnectionNotFound, "connection %s", connID)
	}

	if snapshot.Role != role {
		return nil, agenterr.Errorf(agenterr.ErrInvalidTransition,
			"connection %s is held as %s, not %s", connID, snapshot.Role, role)
	}

	current, err := stateFromName(snapshot.State)
	if err != nil {
		return nil, err
	}

	nextState, err := stateFromName(next)
	if err != nil {
		return nil, err
	}

	if !current.CanTransitionTo(nextState) {
		return nil, agenterr.Errorf(agenterr.ErrInvalidTransition,
			"invalid state transition: %s -> %s", current.Name(), nextState.Name())
	}

	return connectionstore.FromThreadRecord(snapshot)
}

func (s *Service) advance(snapshot *threadstate.Record, conn *connectionstore.Record,
	next string) (*threadstate.Record, error) {
	rec := snapshot.Clone()
	rec.State = next

	if err := rec.Encode(conn); err != nil {
		return nil, err
	}

	return rec, nil
}

func (s *Service) newPairwiseDoc(ctx context.Context) (*did.Doc, string, error) {
	key, err := s.wallet.CreateKey(nil)
	if err != nil {
		return nil, "", agenterr.Capability(err, "create connection key")
	}

	endpoint, routingKeys, err := s.routeFor(ctx, key.VerKey)
	if err != nil {
		return nil, "", fmt.Errorf("route for connection key: %w", err)
	}

	doc, err := did.NewPairwiseDoc(key.VerKey, endpoint, routingKeys)
	if err != nil {
		return nil, "", err
	}

	return doc, key.VerKey, nil
}

func (s *Service) notify(rec *threadstate.Record, msg service.DIDCommMsgMap) {
	s.Notify(service.StateMsg{
		ProtocolName: Connection,
		Type:         service.PostState,
		StateID:      rec.State,
		ThreadID:     rec.ThreadID,
		Msg:          msg,
		Properties:   map[string]interface{}{ConnectionIDKey: rec.ThreadID, "role": rec.Role},
	})
}

func validateInvitation(inv *Invitation) error {
	if inv == nil {
		return agenterr.Errorf(agenterr.ErrInvalidInvitation, "invitation is empty")
	}

	if inv.ID == "" {
		return agenterr.Errorf(agenterr.ErrInvalidInvitation, "invitation has no @id")
	}

	if len(inv.RecipientKeys) == 0 {
		return agenterr.Errorf(agenterr.ErrInvalidInvitation, "invitation %s has no recipient keys", inv.ID)
	}

	if inv.ServiceEndpoint == "" {
		return agenterr.Errorf(agenterr.ErrInvalidInvitation, "invitation %s has no service endpoint", inv.ID)
	}

	return nil
}

func msgType(prefix, kind string) messagetype.Identifier {
	id := messagetype.New(messagetype.Connections, 1, 0, kind)
	if prefix != "" {
		id.Prefix = prefix
	}

	return id
}
