/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package http

import (
	"context"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/hyperledger/aries-didcomm-go/pkg/common/log"
	"github.com/hyperledger/aries-didcomm-go/pkg/didcomm/transport"
)

var logger = log.New("aries-framework/http")

const (
	processFailureErrMsg = "failed to process the message"
	readHeaderTimeout    = 10 * time.Second
	maxEnvelopeSize      = 10 << 20
)

// NewInboundHandler will create a new handler to enforce Did-Comm HTTP transport specs
// then routes processing to the mandatory 'msgHandler' argument.
func NewInboundHandler(msgHandler transport.InboundMessageHandler) (http.Handler, error) {
	if msgHandler == nil {
		logger.Errorf("Error creating a new inbound handler: message handler function is nil")

		return nil, errors.New("creation of inbound handler failed")
	}

	router := mux.NewRouter()
	router.PathPrefix("/").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		processPOSTRequest(w, r, msgHandler)
	})

	return router, nil
}

func processPOSTRequest(w http.ResponseWriter, r *http.Request, msgHandler transport.InboundMessageHandler) {
	if valid := validateHTTPMethod(w, r); !valid {
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxEnvelopeSize))
	if err != nil {
		logger.Errorf("Error reading request body: %s - returning Code: %d", err, http.StatusInternalServerError)
		http.Error(w, "Failed to read payload", http.StatusInternalServerError)

		return
	}

	if len(body) == 0 {
		http.Error(w, "Empty payload", http.StatusBadRequest)

		return
	}

	reply, err := msgHandler(r.Context(), body)
	if err != nil {
		logger.Errorf("incoming msg processing failed: %v", err)
		http.Error(w, processFailureErrMsg, http.StatusInternalServerError)

		return
	}

	if len(reply) == 0 {
		w.WriteHeader(http.StatusAccepted)

		return
	}

	w.Header().Set("Content-Type", transport.MediaTypeV1EncryptedEnvelope)
	w.WriteHeader(http.StatusOK)

	if _, err := w.Write(reply); err != nil {
		logger.Errorf("failed to write the reply: %v", err)
	}
}

// validateHTTPMethod validate HTTP method and content-type.
func validateHTTPMethod(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodPost {
		http.Error(w, "HTTP Method not allowed", http.StatusMethodNotAllowed)

		return false
	}

	ct := r.Header.Get("Content-Type")
	if !transport.AcceptedContentType(ct) {
		http.Error(w, "Unsupported Content-type \""+ct+"\"", http.StatusUnsupportedMediaType)

		return false
	}

	return true
}

// Inbound http type.
type Inbound struct {
	externalAddr string
	server       *http.Server

	mu       sync.Mutex
	listener net.Listener
}

// NewInbound creates a new HTTP inbound transport instance. The external
// address is advertised as the endpoint, it defaults to the internal one.
func NewInbound(internalAddr, externalAddr string) (*Inbound, error) {
	if internalAddr == "" {
		return nil, errors.New("http address is mandatory")
	}

	if externalAddr == "" {
		externalAddr = internalAddr
	}

	return &Inbound{
		externalAddr: externalAddr,
		server:       &http.Server{Addr: internalAddr, ReadHeaderTimeout: readHeaderTimeout},
	}, nil
}

// Start the http server.
func (i *Inbound) Start(handler transport.InboundMessageHandler) error {
	h, err := NewInboundHandler(handler)
	if err != nil {
		return errors.Wrap(err, "http server start failed")
	}

	ln, err := net.Listen("tcp", i.server.Addr)
	if err != nil {
		return errors.Wrapf(err, "http server listen on %s", i.server.Addr)
	}

	i.mu.Lock()
	i.server.Handler = h
	i.listener = ln
	i.mu.Unlock()

	go func() {
		if err := i.server.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("http server on [%s] stopped: %v", i.server.Addr, err)
		}
	}()

	return nil
}

// Addr is the address the server listens on once started.
func (i *Inbound) Addr() string {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.listener == nil {
		return i.server.Addr
	}

	return i.listener.Addr().String()
}

// Stop the http server.
func (i *Inbound) Stop() error {
	if err := i.server.Shutdown(context.Background()); err != nil {
		return errors.Wrap(err, "http server shutdown failed")
	}

	return nil
}

// Endpoint provides the http connection details.
func (i *Inbound) Endpoint() string {
	return i.externalAddr
}
