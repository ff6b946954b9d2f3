package store

import (
	"encoding/json"
	"strings"

	"wclink/internal/domain"
)

const pairingPrefix = "pairing:"

// PairingStore persists pairing rows keyed by topic over a KeyValueStore.
type PairingStore struct {
	kv domain.KeyValueStore
}

func NewPairingStore(kv domain.KeyValueStore) *PairingStore {
	return &PairingStore{kv: kv}
}

func (s *PairingStore) Set(p domain.Pairing) error {
	b, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return s.kv.Set(pairingPrefix+string(p.Topic), b)
}

func (s *PairingStore) Get(topic domain.Topic) (domain.Pairing, bool, error) {
	b, ok, err := s.kv.Get(pairingPrefix + string(topic))
	if err != nil || !ok {
		return domain.Pairing{}, false, err
	}
	var p domain.Pairing
	if err := json.Unmarshal(b, &p); err != nil {
		return domain.Pairing{}, false, err
	}
	return p, true, nil
}

func (s *PairingStore) Delete(topic domain.Topic) error {
	return s.kv.Delete(pairingPrefix + string(topic))
}

func (s *PairingStore) List() ([]domain.Pairing, error) {
	keys, err := s.kv.Keys(pairingPrefix)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Pairing, 0, len(keys))
	for _, k := range keys {
		p, ok, err := s.Get(domain.Topic(strings.TrimPrefix(k, pairingPrefix)))
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, p)
		}
	}
	return out, nil
}
