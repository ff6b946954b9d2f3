package store

import (
	"encoding/json"
	"strings"

	"wclink/internal/domain"
)

const sessionPrefix = "session:"

// SessionStore persists session rows keyed by topic over a KeyValueStore.
type SessionStore struct {
	kv domain.KeyValueStore
}

func NewSessionStore(kv domain.KeyValueStore) *SessionStore {
	return &SessionStore{kv: kv}
}

func (s *SessionStore) Set(sess domain.Session) error {
	b, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	return s.kv.Set(sessionPrefix+string(sess.Topic), b)
}

func (s *SessionStore) Get(topic domain.Topic) (domain.Session, bool, error) {
	b, ok, err := s.kv.Get(sessionPrefix + string(topic))
	if err != nil || !ok {
		return domain.Session{}, false, err
	}
	var sess domain.Session
	if err := json.Unmarshal(b, &sess); err != nil {
		return domain.Session{}, false, err
	}
	return sess, true, nil
}

func (s *SessionStore) Delete(topic domain.Topic) error {
	return s.kv.Delete(sessionPrefix + string(topic))
}

func (s *SessionStore) List() ([]domain.Session, error) {
	keys, err := s.kv.Keys(sessionPrefix)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Session, 0, len(keys))
	for _, k := range keys {
		sess, ok, err := s.Get(domain.Topic(strings.TrimPrefix(k, sessionPrefix)))
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, sess)
		}
	}
	return out, nil
}
