/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package startcmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	connectionclient "github.com/hyperledger/aries-didcomm-go/pkg/client/connection"
	mediatorclient "github.com/hyperledger/aries-didcomm-go/pkg/client/mediator"
	pickupclient "github.com/hyperledger/aries-didcomm-go/pkg/client/messagepickup"
	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/common/agenterr"
	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/protocol/connection"
	"github.com/hyperledger/aries-didcomm-go/pkg/framework/aries"
	connectionstore "github.com/hyperledger/aries-didcomm-go/pkg/store/connection"
	"github.com/hyperledger/aries-didcomm-go/pkg/store/threadstate"
)

const (
	createInvitationPath  = "/connections/create-invitation"
	receiveInvitationPath = "/connections/receive-invitation"
	connectionsPath       = "/connections"
	connectionByIDPath    = "/connections/{id}"
	acceptRequestPath     = "/connections/{id}/accept-request"
	abandonPath           = "/connections/{id}/abandon"
	threadByIDPath        = "/threads/{id}"

	mediationConnectionsPath = "/mediation/connections"
	mediationRegisterPath    = "/mediation/{id}/register"
	mediationKeysPath        = "/mediation/{id}/keys"
	pickupStatusPath         = "/messagepickup/{id}/status"
	pickupPath               = "/messagepickup/{id}/pickup"

	defaultPickupLimit = 10

	maxRequestSize = 1 << 16
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type createInvitationRequest struct {
	Label string `json:"label,omitempty"`
}

type abandonRequest struct {
	Code   string `json:"code,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// connectionView is the admin API rendering of a connection record.
type connectionView struct {
	ConnectionID  string   `json:"connection_id"`
	State         string   `json:"state"`
	Role          string   `json:"role,omitempty"`
	ThreadID      string   `json:"thread_id,omitempty"`
	Label         string   `json:"label,omitempty"`
	TheirLabel    string   `json:"their_label,omitempty"`
	TheirDID      string   `json:"their_did,omitempty"`
	MyDID         string   `json:"my_did,omitempty"`
	InvitationID  string   `json:"invitation_id,omitempty"`
	Endpoint      string   `json:"service_endpoint,omitempty"`
	RecipientKeys []string `json:"recipient_keys,omitempty"`
	Problem       string   `json:"problem,omitempty"`
}

type threadView struct {
	ThreadID     string          `json:"thid"`
	ParentThread string          `json:"pthid,omitempty"`
	Protocol     string          `json:"protocol"`
	Version      string          `json:"protocol_version,omitempty"`
	Role         string          `json:"role"`
	State        string          `json:"state"`
	ConnectionID string          `json:"connection_id,omitempty"`
	Data         json.RawMessage `json:"data,omitempty"`
	Updated      time.Time       `json:"updated"`
}

type adminAPI struct {
	agent       *aries.Aries
	label       string
	connections *connectionclient.Client
	mediation   *mediatorclient.Client
	pickup      *pickupclient.Client
}

func newAdminRouter(agent *aries.Aries, label string) (*mux.Router, error) {
	connections, err := connectionclient.New(agent)
	if err != nil {
		return nil, fmt.Errorf("connection client: %w", err)
	}

	mediation, err := mediatorclient.New(agent)
	if err != nil {
		return nil, fmt.Errorf("mediator client: %w", err)
	}

	pickup, err := pickupclient.New(agent)
	if err != nil {
		return nil, fmt.Errorf("message pickup client: %w", err)
	}

	api := &adminAPI{
		agent:       agent,
		label:       label,
		connections: connections,
		mediation:   mediation,
		pickup:      pickup,
	}

	router := mux.NewRouter()
	router.HandleFunc(createInvitationPath, api.createInvitation).Methods(http.MethodPost)
	router.HandleFunc(receiveInvitationPath, api.receiveInvitation).Methods(http.MethodPost)
	router.HandleFunc(connectionsPath, api.queryConnections).Methods(http.MethodGet)
	router.HandleFunc(connectionByIDPath, api.getConnection).Methods(http.MethodGet)
	router.HandleFunc(acceptRequestPath, api.acceptRequest).Methods(http.MethodPost)
	router.HandleFunc(abandonPath, api.abandon).Methods(http.MethodPost)
	router.HandleFunc(threadByIDPath, api.getThread).Methods(http.MethodGet)
	router.HandleFunc(mediationConnectionsPath, api.mediationConnections).Methods(http.MethodGet)
	router.HandleFunc(mediationRegisterPath, api.registerMediation).Methods(http.MethodPost)
	router.HandleFunc(mediationKeysPath, api.mediationKeys).Methods(http.MethodGet)
	router.HandleFunc(pickupStatusPath, api.pickupStatus).Methods(http.MethodPost)
	router.HandleFunc(pickupPath, api.pickupMessages).Methods(http.MethodPost)

	return router, nil
}

func (a *adminAPI) createInvitation(rw http.ResponseWriter, req *http.Request) {
	var request createInvitationRequest

	if !decodeOptional(rw, req, &request) {
		return
	}

	if request.Label == "" {
		request.Label = a.label
	}

	inv, err := a.connections.CreateInvitation(req.Context(), request.Label)
	if err != nil {
		sendError(rw, statusFor(err), err)

		return
	}

	sendJSON(rw, http.StatusOK, inv)
}

// receiveInvitation accepts an invitation and sends the connection request.
// It answers with the invitee connection record.
func (a *adminAPI) receiveInvitation(rw http.ResponseWriter, req *http.Request) {
	body, err := readBody(req)
	if err != nil {
		sendError(rw, http.StatusBadRequest, err)

		return
	}

	inv, err := connection.ParseInvitation(body)
	if err != nil {
		sendError(rw, http.StatusBadRequest, err)

		return
	}

	rec, err := a.connections.ReceiveInvitation(req.Context(), inv)
	if errors.Is(err, connectionclient.ErrConnectionPending) {
		rw.WriteHeader(http.StatusAccepted)

		return
	}

	if err != nil {
		sendError(rw, statusFor(err), err)

		return
	}

	sendJSON(rw, http.StatusOK, toConnectionView(rec))
}

func (a *adminAPI) queryConnections(rw http.ResponseWriter, req *http.Request) {
	records, err := a.connections.QueryConnections(req.URL.Query()["state"]...)
	if err != nil {
		sendError(rw, http.StatusInternalServerError, err)

		return
	}

	views := make([]connectionView, 0, len(records))
	for _, rec := range records {
		views = append(views, toConnectionView(rec))
	}

	sendJSON(rw, http.StatusOK, map[string]interface{}{"results": views})
}

func (a *adminAPI) getConnection(rw http.ResponseWriter, req *http.Request) {
	rec, err := a.connections.GetConnection(mux.Vars(req)["id"])
	if err != nil {
		sendError(rw, statusFor(err), err)

		return
	}

	sendJSON(rw, http.StatusOK, toConnectionView(rec))
}

func (a *adminAPI) acceptRequest(rw http.ResponseWriter, req *http.Request) {
	id := mux.Vars(req)["id"]

	if err := a.connections.AcceptRequest(req.Context(), id); err != nil {
		sendError(rw, statusFor(err), err)

		return
	}

	a.getConnection(rw, req)
}

func (a *adminAPI) abandon(rw http.ResponseWriter, req *http.Request) {
	var request abandonRequest

	if !decodeOptional(rw, req, &request) {
		return
	}

	if err := a.connections.Abandon(req.Context(), mux.Vars(req)["id"], request.Code, request.Reason); err != nil {
		sendError(rw, statusFor(err), err)

		return
	}

	a.getConnection(rw, req)
}

func (a *adminAPI) mediationConnections(rw http.ResponseWriter, _ *http.Request) {
	conns, err := a.mediation.GetConnections()
	if err != nil {
		sendError(rw, http.StatusInternalServerError, err)

		return
	}

	if conns == nil {
		conns = []string{}
	}

	sendJSON(rw, http.StatusOK, map[string]interface{}{"connections": conns})
}

func (a *adminAPI) registerMediation(rw http.ResponseWriter, req *http.Request) {
	conf, err := a.mediation.Register(req.Context(), mux.Vars(req)["id"])
	if err != nil {
		sendError(rw, statusFor(err), err)

		return
	}

	sendJSON(rw, http.StatusOK, conf)
}

func (a *adminAPI) mediationKeys(rw http.ResponseWriter, req *http.Request) {
	keys, err := a.mediation.Keys(req.Context(), mux.Vars(req)["id"])
	if err != nil {
		sendError(rw, statusFor(err), err)

		return
	}

	if keys == nil {
		keys = []string{}
	}

	sendJSON(rw, http.StatusOK, map[string]interface{}{"keys": keys})
}

func (a *adminAPI) pickupStatus(rw http.ResponseWriter, req *http.Request) {
	status, err := a.pickup.StatusRequest(req.Context(), mux.Vars(req)["id"], req.URL.Query().Get("recipient_key"))
	if err != nil {
		sendError(rw, statusFor(err), err)

		return
	}

	sendJSON(rw, http.StatusOK, status)
}

func (a *adminAPI) pickupMessages(rw http.ResponseWriter, req *http.Request) {
	limit := defaultPickupLimit

	if v := req.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			sendError(rw, http.StatusBadRequest, fmt.Errorf("invalid limit %q", v))

			return
		}

		limit = n
	}

	delivered, err := a.pickup.Pickup(req.Context(), mux.Vars(req)["id"], limit)
	if err != nil {
		sendError(rw, statusFor(err), err)

		return
	}

	if delivered == nil {
		delivered = []string{}
	}

	sendJSON(rw, http.StatusOK, map[string]interface{}{"delivered": delivered})
}

func (a *adminAPI) getThread(rw http.ResponseWriter, req *http.Request) {
	rec, err := a.agent.Context().ThreadStore().Get(mux.Vars(req)["id"])
	if err != nil {
		sendError(rw, statusFor(err), err)

		return
	}

	sendJSON(rw, http.StatusOK, threadView{
		ThreadID:     rec.ThreadID,
		ParentThread: rec.ParentThreadID,
		Protocol:     rec.Protocol,
		Version:      rec.ProtocolVersion,
		Role:         rec.Role,
		State:        rec.State,
		ConnectionID: rec.ConnectionID,
		Data:         rec.Data,
		Updated:      rec.Updated,
	})
}

func toConnectionView(rec *connectionstore.Record) connectionView {
	return connectionView{
		ConnectionID:  rec.ConnectionID,
		State:         rec.State,
		Role:          rec.Role,
		ThreadID:      rec.ThreadID,
		Label:         rec.Label,
		TheirLabel:    rec.TheirLabel,
		TheirDID:      rec.TheirDID,
		MyDID:         rec.MyDID,
		InvitationID:  rec.InvitationID,
		Endpoint:      rec.ServiceEndPoint,
		RecipientKeys: rec.RecipientKeys,
		Problem:       rec.Problem,
	}
}

// decodeOptional decodes a JSON body into v when there is one. It answers the
// request itself on failure.
func decodeOptional(rw http.ResponseWriter, req *http.Request, v interface{}) bool {
	body, err := readBody(req)
	if err != nil {
		sendError(rw, http.StatusBadRequest, err)

		return false
	}

	if len(body) == 0 {
		return true
	}

	if err = json.Unmarshal(body, v); err != nil {
		sendError(rw, http.StatusBadRequest, fmt.Errorf("invalid request: %w", err))

		return false
	}

	return true
}

func readBody(req *http.Request) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(req.Body, maxRequestSize))
	if err != nil {
		return nil, fmt.Errorf("read request body: %w", err)
	}

	return body, nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, threadstate.ErrNotFound), errors.Is(err, agenterr.ErrConnectionNotFound):
		return http.StatusNotFound
	case agenterr.IsKind(err, agenterr.ParseError):
		return http.StatusBadRequest
	case agenterr.IsKind(err, agenterr.StateError):
		return http.StatusConflict
	case errors.Is(err, mediatorclient.ErrDenied):
		return http.StatusForbidden
	case errors.Is(err, mediatorclient.ErrTimeout), errors.Is(err, pickupclient.ErrTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func sendError(rw http.ResponseWriter, status int, err error) {
	logger.Errorf("admin api: %v", err)

	code := agenterr.CodeOf(err)
	if code == "" {
		code = agenterr.KindOf(err).String()
	}

	sendJSON(rw, status, errorBody{Code: code, Message: err.Error()})
}

func sendJSON(rw http.ResponseWriter, status int, v interface{}) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)

	if err := json.NewEncoder(rw).Encode(v); err != nil {
		logger.Errorf("admin api: write response: %v", err)
	}
}
