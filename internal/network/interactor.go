package network

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"wclink/internal/domain"
	"wclink/internal/rpc"
	"wclink/internal/serializer"
)

var (
	// ErrRequestTimeout indicates no response arrived within the protocol
	// method's TTL.
	ErrRequestTimeout = errors.New("network: request timeout")
	// ErrNotSubscribed indicates an unsubscribe without a matching subscribe.
	ErrNotSubscribed = errors.New("network: topic not subscribed")
)

// streamBuffer bounds each subscriber stream. Overflow drops the oldest
// entry; protocol peers retry, the relay read path must not stall.
const streamBuffer = 64

// InboundRequest is one demultiplexed protocol request.
type InboundRequest struct {
	Topic   domain.Topic
	Request rpc.Request
	Method  rpc.Method
}

// Stream delivers inbound requests for a set of protocol methods in per-topic
// receipt order.
type Stream struct {
	C     <-chan InboundRequest
	c     chan InboundRequest
	owner *Interactor

	mu     sync.Mutex
	closed bool
}

// Close detaches the stream from the interactor and closes C.
func (s *Stream) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.owner.detach(s)
	close(s.c)
}

// push enqueues without blocking; a full buffer loses its oldest entry first.
func (s *Stream) push(in InboundRequest) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	for {
		select {
		case s.c <- in:
			return true
		default:
			select {
			case <-s.c:
			default:
			}
		}
	}
}

// Options configure an Interactor.
type Options struct {
	Logger *slog.Logger
}

// Interactor correlates requests with responses and routes inbound protocol
// traffic to typed streams.
type Interactor struct {
	transport  domain.RelayTransport
	serializer *serializer.Serializer
	ids        *rpc.IDGenerator
	log        *slog.Logger

	pendMu  sync.Mutex
	pending map[int64]chan *rpc.Response

	subMu sync.Mutex
	subs  map[domain.Topic]*topicSub

	streamMu sync.RWMutex
	streams  map[string][]*Stream // protocol method name -> attached streams
}

type topicSub struct {
	refs int
	id   string
}

func NewInteractor(transport domain.RelayTransport, ser *serializer.Serializer, opts Options) *Interactor {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	i := &Interactor{
		transport:  transport,
		serializer: ser,
		ids:        rpc.NewIDGenerator(),
		log:        opts.Logger,
		pending:    make(map[int64]chan *rpc.Response),
		subs:       make(map[domain.Topic]*topicSub),
		streams:    make(map[string][]*Stream),
	}
	transport.SetMessageHandler(i.onMessage)
	return i
}

// Connect brings up the underlying transport.
func (i *Interactor) Connect(ctx context.Context) error { return i.transport.Connect(ctx) }

// Disconnect tears down the underlying transport.
func (i *Interactor) Disconnect() error { return i.transport.Disconnect() }

// Subscribe reference-counts the topic; the transport subscription is created
// on the first reference only.
func (i *Interactor) Subscribe(ctx context.Context, topic domain.Topic) error {
	i.subMu.Lock()
	defer i.subMu.Unlock()

	if sub, ok := i.subs[topic]; ok {
		sub.refs++
		return nil
	}
	id, err := i.transport.Subscribe(ctx, topic)
	if err != nil {
		return err
	}
	i.subs[topic] = &topicSub{refs: 1, id: id}
	return nil
}

// Unsubscribe drops one reference; the transport subscription is torn down
// when the last consumer detaches.
func (i *Interactor) Unsubscribe(ctx context.Context, topic domain.Topic) error {
	i.subMu.Lock()
	defer i.subMu.Unlock()

	sub, ok := i.subs[topic]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotSubscribed, topic)
	}
	sub.refs--
	if sub.refs > 0 {
		return nil
	}
	delete(i.subs, topic)
	return i.transport.Unsubscribe(ctx, topic, sub.id)
}

// RequestStream attaches a bounded stream of inbound requests for the given
// protocol methods.
func (i *Interactor) RequestStream(methods ...rpc.Method) *Stream {
	s := &Stream{c: make(chan InboundRequest, streamBuffer), owner: i}
	s.C = s.c

	i.streamMu.Lock()
	for _, m := range methods {
		i.streams[m.Name] = append(i.streams[m.Name], s)
	}
	i.streamMu.Unlock()
	return s
}

func (i *Interactor) detach(s *Stream) {
	i.streamMu.Lock()
	defer i.streamMu.Unlock()
	for name, list := range i.streams {
		kept := list[:0]
		for _, st := range list {
			if st != s {
				kept = append(kept, st)
			}
		}
		i.streams[name] = kept
	}
}

// Request publishes a protocol request on topic and blocks until the matching
// response arrives (on this or a redirected topic) or the method TTL lapses.
func (i *Interactor) Request(ctx context.Context, topic domain.Topic, method rpc.Method, params any) (*rpc.Response, error) {
	req, err := rpc.NewRequest(i.ids.Next(), method.Name, params)
	if err != nil {
		return nil, err
	}

	ch := make(chan *rpc.Response, 1)
	i.pendMu.Lock()
	i.pending[req.ID] = ch
	i.pendMu.Unlock()

	if err := i.publish(ctx, topic, req, method, method.RequestTag); err != nil {
		i.discard(req.ID)
		return nil, err
	}

	timer := time.NewTimer(method.TTL)
	defer timer.Stop()
	select {
	case resp := <-ch:
		return resp, nil
	case <-timer.C:
		i.discard(req.ID)
		return nil, fmt.Errorf("%w: %s id=%d", ErrRequestTimeout, method.Name, req.ID)
	case <-ctx.Done():
		i.discard(req.ID)
		return nil, ctx.Err()
	}
}

// RequestNetworkAck publishes a one-way protocol request: it returns once the
// relay accepts the publish, without waiting for an application response.
func (i *Interactor) RequestNetworkAck(ctx context.Context, topic domain.Topic, method rpc.Method, params any) (int64, error) {
	req, err := rpc.NewRequest(i.ids.Next(), method.Name, params)
	if err != nil {
		return 0, err
	}
	if err := i.publish(ctx, topic, req, method, method.RequestTag); err != nil {
		return 0, err
	}
	return req.ID, nil
}

// Respond publishes a success result keyed by the original request id.
func (i *Interactor) Respond(ctx context.Context, topic domain.Topic, requestID int64, method rpc.Method, result any) error {
	resp, err := rpc.NewResponse(requestID, result)
	if err != nil {
		return err
	}
	return i.publishResponse(ctx, topic, resp, method)
}

// RespondError publishes an error result keyed by the original request id.
func (i *Interactor) RespondError(ctx context.Context, topic domain.Topic, requestID int64, method rpc.Method, code int, message string) error {
	return i.publishResponse(ctx, topic, rpc.NewErrorResponse(requestID, code, message), method)
}

func (i *Interactor) publish(ctx context.Context, topic domain.Topic, req rpc.Request, method rpc.Method, tag int) error {
	raw, err := encodeJSON(req)
	if err != nil {
		return err
	}
	env, err := i.serializeFor(topic, raw, method)
	if err != nil {
		return err
	}
	return i.transport.Publish(ctx, topic, env, domain.RelayPublishOptions{
		TTL:    method.TTL,
		Tag:    tag,
		Prompt: method.Prompt,
	})
}

func (i *Interactor) publishResponse(ctx context.Context, topic domain.Topic, resp rpc.Response, method rpc.Method) error {
	raw, err := encodeJSON(resp)
	if err != nil {
		return err
	}
	env, err := i.serializeFor(topic, raw, method)
	if err != nil {
		return err
	}
	return i.transport.Publish(ctx, topic, env, domain.RelayPublishOptions{
		TTL:    method.TTL,
		Tag:    method.ResponseTag,
		Prompt: false,
	})
}

func (i *Interactor) serializeFor(topic domain.Topic, raw []byte, method rpc.Method) (string, error) {
	env, err := i.serializer.Serialize(topic, raw, serializer.TypeEncrypted)
	if errors.Is(err, serializer.ErrMissingAgreementSecret) && method.AllowPlaintext {
		return i.serializer.Serialize(topic, raw, serializer.TypePlain)
	}
	return env, err
}

// onMessage runs on the transport receive path. It must not block.
func (i *Interactor) onMessage(m domain.RelayMessage) {
	raw, _, err := i.serializer.Deserialize(m.Topic, m.Message)
	if err != nil {
		i.log.Debug("dropping undecodable message", "topic", m.Topic, "error", err)
		return
	}
	env, err := rpc.DecodeEnvelope(raw)
	if err != nil {
		i.log.Debug("dropping malformed envelope", "topic", m.Topic, "error", err)
		return
	}

	switch {
	case env.Response != nil:
		i.resolve(env.Response)
	case env.Request != nil:
		method, ok := rpc.MethodByName(env.Request.Method)
		if !ok {
			i.log.Debug("dropping unknown protocol method", "method", env.Request.Method)
			return
		}
		i.dispatch(InboundRequest{Topic: m.Topic, Request: *env.Request, Method: method})
	}
}

// resolve hands a response to its waiter. A response with no pending entry
// (late arrival after timeout) is discarded silently.
func (i *Interactor) resolve(resp *rpc.Response) {
	i.pendMu.Lock()
	ch, ok := i.pending[resp.ID]
	if ok {
		delete(i.pending, resp.ID)
	}
	i.pendMu.Unlock()
	if ok {
		ch <- resp
	}
}

func (i *Interactor) discard(id int64) {
	i.pendMu.Lock()
	delete(i.pending, id)
	i.pendMu.Unlock()
}

// dispatch fans an inbound request out to every attached stream without
// blocking: a full buffer loses its oldest entry first.
func (i *Interactor) dispatch(in InboundRequest) {
	i.streamMu.RLock()
	streams := i.streams[in.Method.Name]
	i.streamMu.RUnlock()

	if len(streams) == 0 {
		i.log.Debug("no subscriber for protocol method", "method", in.Method.Name, "topic", in.Topic)
		return
	}
	for _, s := range streams {
		if !s.push(in) {
			i.log.Debug("stream closed during dispatch", "method", in.Method.Name)
		}
	}
}

func encodeJSON(v any) ([]byte, error) { return json.Marshal(v) }
