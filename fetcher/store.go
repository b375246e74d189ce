package fetcher

import (
	"crypto/rand"
	"math/big"

	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"

	"github.com/udiddirector/udiddirector/types"
)

const tokenAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// TokenLength is the length of flow tokens and device ids.
const TokenLength = 16

// DefaultStoreSize bounds each registry. Least recently used entries are
// evicted once a registry fills up, so an abandoned flow cannot grow the
// process without bound.
const DefaultStoreSize = 1024

func generateToken(length int) (string, error) {
	token := make([]byte, length)
	for i := range token {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(tokenAlphabet))))
		if err != nil {
			return "", errors.Wrap(err, "generating token")
		}
		token[i] = tokenAlphabet[n.Int64()]
	}
	return string(token), nil
}

// FlowStore tracks outstanding flow tokens. A token is valid from Issue
// until the first Consume.
type FlowStore struct {
	cache *lru.Cache
}

func NewFlowStore(size int) (*FlowStore, error) {
	cache, err := lru.New(size)
	if err != nil {
		return nil, errors.Wrap(err, "creating flow store")
	}
	return &FlowStore{cache: cache}, nil
}

// Issue generates and registers a fresh flow token.
func (s *FlowStore) Issue() (string, error) {
	token, err := generateToken(TokenLength)
	if err != nil {
		return "", err
	}
	s.cache.Add(token, token)
	return token, nil
}

// Valid reports whether a token is outstanding.
func (s *FlowStore) Valid(token string) bool {
	return token != "" && s.cache.Contains(token)
}

// Consume invalidates a token. Consuming an absent token is a no-op.
func (s *FlowStore) Consume(token string) {
	s.cache.Remove(token)
}

func (s *FlowStore) Len() int {
	return s.cache.Len()
}

// DeviceStore holds resolved device identities between the enrollment and
// final steps, keyed by a generated id in its own namespace.
type DeviceStore struct {
	cache *lru.Cache
}

func NewDeviceStore(size int) (*DeviceStore, error) {
	cache, err := lru.New(size)
	if err != nil {
		return nil, errors.Wrap(err, "creating device store")
	}
	return &DeviceStore{cache: cache}, nil
}

// NewID generates an identifier for a resolved device.
func (s *DeviceStore) NewID() (string, error) {
	return generateToken(TokenLength)
}

func (s *DeviceStore) Put(id string, device types.DeviceIdentity) {
	s.cache.Add(id, device)
}

func (s *DeviceStore) Get(id string) (types.DeviceIdentity, bool) {
	v, ok := s.cache.Get(id)
	if !ok {
		return types.DeviceIdentity{}, false
	}
	return v.(types.DeviceIdentity), true
}

func (s *DeviceStore) Delete(id string) {
	s.cache.Remove(id)
}

func (s *DeviceStore) Len() int {
	return s.cache.Len()
}

// All returns the identities currently awaiting final handoff.
func (s *DeviceStore) All() []types.DeviceIdentity {
	keys := s.cache.Keys()
	devices := make([]types.DeviceIdentity, 0, len(keys))
	for _, key := range keys {
		if v, ok := s.cache.Peek(key); ok {
			devices = append(devices, v.(types.DeviceIdentity))
		}
	}
	return devices
}
