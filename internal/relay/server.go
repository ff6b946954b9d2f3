package relay

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"wclink/internal/domain"
	"wclink/internal/rpc"
)

// Server is a development relay: a websocket topic pub/sub with TTL-bound
// store-and-forward mailboxes. It implements just enough of the relay
// contract for the client and CLI to run end to end.
type Server struct {
	log      *slog.Logger
	upgrader websocket.Upgrader
	ids      *rpc.IDGenerator

	mu      sync.Mutex
	subs    map[domain.Topic]map[*serverConn]string
	mailbox map[domain.Topic][]queued
	now     func() time.Time
}

type serverConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *serverConn) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

func NewServer(logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		log:     logger,
		ids:     rpc.NewIDGenerator(),
		subs:    make(map[domain.Topic]map[*serverConn]string),
		mailbox: make(map[domain.Topic][]queued),
		now:     time.Now,
	}
}

// ServeHTTP upgrades the request and serves relay RPC until the peer hangs up.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug("upgrade failed", "error", err)
		return
	}
	sc := &serverConn{conn: conn}
	defer s.drop(sc)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		env, err := rpc.DecodeEnvelope(raw)
		if err != nil {
			s.log.Debug("undecodable frame", "error", err)
			continue
		}
		if env.Request == nil {
			// Client ack for a delivery; nothing to do.
			continue
		}
		s.handle(sc, env.Request)
	}
}

func (s *Server) handle(sc *serverConn, req *rpc.Request) {
	switch req.Method {
	case MethodSubscribe:
		var p SubscribeParams
		if err := json.Unmarshal(req.Params, &p); err != nil {
			s.reject(sc, req.ID, "malformed subscribe params")
			return
		}
		id := s.addSubscriber(sc, p.Topic)
		s.reply(sc, req.ID, id)
		s.flushMailbox(sc, p.Topic)

	case MethodUnsubscribe:
		var p UnsubscribeParams
		if err := json.Unmarshal(req.Params, &p); err != nil {
			s.reject(sc, req.ID, "malformed unsubscribe params")
			return
		}
		s.mu.Lock()
		delete(s.subs[p.Topic], sc)
		s.mu.Unlock()
		s.reply(sc, req.ID, true)

	case MethodPublish:
		var p PublishParams
		if err := json.Unmarshal(req.Params, &p); err != nil {
			s.reject(sc, req.ID, "malformed publish params")
			return
		}
		s.reply(sc, req.ID, true)
		s.fanout(sc, p)

	default:
		s.reject(sc, req.ID, "unknown method "+req.Method)
	}
}

func (s *Server) addSubscriber(sc *serverConn, topic domain.Topic) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.subs[topic] == nil {
		s.subs[topic] = make(map[*serverConn]string)
	}
	id := uuid.NewString()
	s.subs[topic][sc] = id
	return id
}

func (s *Server) flushMailbox(sc *serverConn, topic domain.Topic) {
	s.mu.Lock()
	subID := s.subs[topic][sc]
	var backlog []string
	kept := s.mailbox[topic][:0]
	for _, q := range s.mailbox[topic] {
		if s.now().Before(q.expiry) {
			backlog = append(backlog, q.message)
			kept = append(kept, q)
		}
	}
	s.mailbox[topic] = kept
	s.mu.Unlock()

	for _, msg := range backlog {
		s.push(sc, subID, topic, msg)
	}
}

func (s *Server) fanout(from *serverConn, p PublishParams) {
	s.mu.Lock()
	type target struct {
		sc *serverConn
		id string
	}
	var targets []target
	for sc, id := range s.subs[p.Topic] {
		if sc != from {
			targets = append(targets, target{sc, id})
		}
	}
	if p.TTL > 0 {
		s.mailbox[p.Topic] = append(s.mailbox[p.Topic], queued{
			message: p.Message,
			expiry:  s.now().Add(time.Duration(p.TTL) * time.Second),
		})
	}
	s.mu.Unlock()

	for _, t := range targets {
		s.push(t.sc, t.id, p.Topic, p.Message)
	}
}

func (s *Server) push(sc *serverConn, subID string, topic domain.Topic, message string) {
	req, err := rpc.NewRequest(s.ids.Next(), MethodSubscription, SubscriptionParams{
		ID:   subID,
		Data: SubscriptionData{Topic: topic, Message: message},
	})
	if err != nil {
		return
	}
	if err := sc.writeJSON(req); err != nil {
		s.log.Debug("push failed", "topic", topic, "error", err)
	}
}

func (s *Server) reply(sc *serverConn, id int64, result any) {
	resp, err := rpc.NewResponse(id, result)
	if err != nil {
		return
	}
	_ = sc.writeJSON(resp)
}

func (s *Server) reject(sc *serverConn, id int64, msg string) {
	_ = sc.writeJSON(rpc.NewErrorResponse(id, -32600, msg))
}

func (s *Server) drop(sc *serverConn) {
	s.mu.Lock()
	for _, m := range s.subs {
		delete(m, sc)
	}
	s.mu.Unlock()
	_ = sc.conn.Close()
}
