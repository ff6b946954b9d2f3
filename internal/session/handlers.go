package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"wclink/internal/domain"
	"wclink/internal/network"
	"wclink/internal/rpc"
)

// Peer error codes surfaced on rejected session traffic.
const (
	codeUserRejected       = 5000
	codeMalformedRequest   = 5001
	codeUnauthorized       = 5002
	codeNoMatchingSession  = 5003
	codeInternal           = 5100
	codeDisconnect         = 6000
	codeSessionSettleError = 7000
)

func (s *Service) handleInbound(ctx context.Context, in network.InboundRequest) {
	switch in.Method.Name {
	case rpc.SessionPropose.Name:
		s.handlePropose(in)
	case rpc.SessionSettle.Name:
		s.handleSettle(ctx, in)
	case rpc.SessionUpdate.Name:
		s.handleUpdate(ctx, in)
	case rpc.SessionExtend.Name:
		s.handleExtend(ctx, in)
	case rpc.SessionRequest.Name:
		s.handleRequest(ctx, in)
	case rpc.SessionEvent.Name:
		s.handleEvent(in)
	case rpc.SessionDelete.Name:
		s.handleDelete(ctx, in)
	case rpc.SessionPing.Name:
		s.respond(ctx, in, true)
	}
}

// handlePropose stages an inbound proposal for Approve/Reject and notifies
// the application. No reply goes out until a decision is made.
func (s *Service) handlePropose(in network.InboundRequest) {
	var params proposeParams
	if err := json.Unmarshal(in.Request.Params, &params); err != nil {
		s.respondError(context.Background(), in, codeMalformedRequest, "malformed proposal")
		return
	}
	if err := ValidateProposal(params.RequiredNamespaces); err != nil {
		s.respondError(context.Background(), in, codeMalformedRequest, err.Error())
		return
	}
	proposal := domain.SessionProposal{
		ProposerPublicKey:  params.Proposer.PublicKey,
		ProposerMetadata:   params.Proposer.Metadata,
		RequiredNamespaces: params.RequiredNamespaces,
		Relay:              params.Relay,
		PairingTopic:       in.Topic,
	}
	s.mu.Lock()
	s.proposals[in.Request.ID] = pendingProposal{topic: in.Topic, proposal: proposal}
	s.mu.Unlock()

	if s.opts.OnProposal != nil {
		s.opts.OnProposal(ProposalEvent{ID: in.Request.ID, Proposal: proposal})
	} else {
		s.log.Info("session proposal pending", "pairing", in.Topic, "id", in.Request.ID)
	}
}

// handleSettle completes the proposer side of settlement: the grant is
// validated against what we asked for, the session is stored acknowledged,
// and the blocked Propose call is released.
func (s *Service) handleSettle(ctx context.Context, in network.InboundRequest) {
	s.mu.Lock()
	waiter, ok := s.settling[in.Topic]
	if ok {
		delete(s.settling, in.Topic)
	}
	s.mu.Unlock()
	if !ok {
		s.respondError(ctx, in, codeNoMatchingSession, "no pending settlement")
		return
	}

	var params settleParams
	if err := json.Unmarshal(in.Request.Params, &params); err != nil {
		s.respondError(ctx, in, codeMalformedRequest, "malformed settlement")
		waiter.ch <- settleOutcome{err: err}
		return
	}
	if err := ValidateGrant(waiter.required, params.Namespaces); err != nil {
		s.respondError(ctx, in, codeSessionSettleError, err.Error())
		waiter.ch <- settleOutcome{err: err}
		return
	}

	sess := domain.Session{
		Topic:              in.Topic,
		PairingTopic:       waiter.pairing,
		Relay:              params.Relay,
		Self:               domain.Participant{PublicKey: waiter.selfPub.Hex(), Metadata: s.opts.Metadata},
		Peer:               params.Controller,
		Controller:         false,
		RequiredNamespaces: waiter.required,
		Namespaces:         params.Namespaces,
		Expiry:             time.Unix(params.Expiry, 0),
		Acknowledged:       true,
	}
	if err := s.sessions.Set(sess); err != nil {
		s.respondError(ctx, in, codeInternal, "storage failure")
		waiter.ch <- settleOutcome{err: err}
		return
	}
	if err := s.pairings.Activate(waiter.pairing, &params.Controller.Metadata); err != nil {
		s.log.Debug("pairing activation failed", "topic", waiter.pairing, "error", err)
	}
	s.respond(ctx, in, true)
	waiter.ch <- settleOutcome{session: sess}
}

func (s *Service) handleUpdate(ctx context.Context, in network.InboundRequest) {
	sess, err := s.Get(in.Topic)
	if err != nil {
		s.respondError(ctx, in, codeNoMatchingSession, "no matching session")
		return
	}
	var params updateParams
	if err := json.Unmarshal(in.Request.Params, &params); err != nil {
		s.respondError(ctx, in, codeMalformedRequest, "malformed update")
		return
	}
	if err := ValidateGrant(sess.RequiredNamespaces, params.Namespaces); err != nil {
		s.respondError(ctx, in, codeUnauthorized, err.Error())
		return
	}
	sess.Namespaces = params.Namespaces
	if err := s.sessions.Set(sess); err != nil {
		s.respondError(ctx, in, codeInternal, "storage failure")
		return
	}
	s.respond(ctx, in, true)
}

func (s *Service) handleExtend(ctx context.Context, in network.InboundRequest) {
	sess, err := s.Get(in.Topic)
	if err != nil {
		s.respondError(ctx, in, codeNoMatchingSession, "no matching session")
		return
	}
	var params extendParams
	if err := json.Unmarshal(in.Request.Params, &params); err != nil {
		s.respondError(ctx, in, codeMalformedRequest, "malformed extend")
		return
	}
	requested := time.Unix(params.Expiry, 0)
	if limit := s.now().Add(sessionTTL); requested.After(limit) {
		requested = limit
	}
	if requested.After(sess.Expiry) {
		sess.Expiry = requested
		if err := s.sessions.Set(sess); err != nil {
			s.respondError(ctx, in, codeInternal, "storage failure")
			return
		}
	}
	s.respond(ctx, in, true)
}

// handleRequest enforces the namespace grant before the application handler
// ever sees the call.
func (s *Service) handleRequest(ctx context.Context, in network.InboundRequest) {
	sess, err := s.Get(in.Topic)
	if err != nil {
		s.respondError(ctx, in, codeNoMatchingSession, "no matching session")
		return
	}
	var params requestParams
	if err := json.Unmarshal(in.Request.Params, &params); err != nil {
		s.respondError(ctx, in, codeMalformedRequest, "malformed request")
		return
	}
	if err := Authorize(sess.Namespaces, params.ChainID, params.Request.Method); err != nil {
		s.respondError(ctx, in, codeUnauthorized, err.Error())
		return
	}
	if s.opts.OnRequest == nil {
		s.respondError(ctx, in, codeUserRejected, "no request handler")
		return
	}
	result, rpcErr := s.opts.OnRequest(ctx, RequestEvent{
		Topic: in.Topic,
		ID:    in.Request.ID,
		Request: domain.SessionRequest{
			ChainID: params.ChainID,
			Method:  params.Request.Method,
			Params:  params.Request.Params,
		},
	})
	if rpcErr != nil {
		s.respondError(ctx, in, rpcErr.Code, rpcErr.Message)
		return
	}
	s.respond(ctx, in, result)
}

func (s *Service) handleEvent(in network.InboundRequest) {
	sess, err := s.Get(in.Topic)
	if err != nil {
		return
	}
	var params eventParams
	if err := json.Unmarshal(in.Request.Params, &params); err != nil {
		return
	}
	if err := AuthorizeEvent(sess.Namespaces, params.ChainID, params.Event.Name); err != nil {
		s.log.Debug("unauthorized session event dropped", "topic", in.Topic, "event", params.Event.Name)
		return
	}
	if s.opts.OnEvent != nil {
		s.opts.OnEvent(in.Topic, domain.SessionEvent{
			ChainID: params.ChainID,
			Name:    params.Event.Name,
			Data:    params.Event.Data,
		})
	}
}

func (s *Service) handleDelete(ctx context.Context, in network.InboundRequest) {
	if err := s.remove(in.Topic); err != nil {
		s.log.Debug("session removal failed", "topic", in.Topic, "error", err)
	}
	if err := s.net.Unsubscribe(ctx, in.Topic); err != nil && !errors.Is(err, network.ErrNotSubscribed) {
		s.log.Debug("unsubscribe failed", "topic", in.Topic, "error", err)
	}
	if s.opts.OnDelete != nil {
		s.opts.OnDelete(in.Topic)
	}
}

func (s *Service) respond(ctx context.Context, in network.InboundRequest, result any) {
	if err := s.net.Respond(ctx, in.Topic, in.Request.ID, in.Method, result); err != nil {
		s.log.Debug("response publish failed", "method", in.Method.Name, "error", err)
	}
}

func (s *Service) respondError(ctx context.Context, in network.InboundRequest, code int, message string) {
	if err := s.net.RespondError(ctx, in.Topic, in.Request.ID, in.Method, code, message); err != nil {
		s.log.Debug("error response publish failed", "method", in.Method.Name, "error", err)
	}
}
