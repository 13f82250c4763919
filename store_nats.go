package cachedemo

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
)

const natsEnvelopeMarker = "cache-v1"

// NATSKeyValue captures the subset of nats.KeyValue used by the store.
type NATSKeyValue interface {
	Get(key string) (nats.KeyValueEntry, error)
	Put(key string, value []byte) (uint64, error)
	Create(key string, value []byte) (uint64, error)
	Delete(key string, opts ...nats.DeleteOpt) error
	Purge(key string, opts ...nats.DeleteOpt) error
	ListKeys(opts ...nats.WatchOpt) (nats.KeyLister, error)
}

var errNATSUnavailable = errors.New("nats cache key-value unavailable")

type natsStore struct {
	kv     NATSKeyValue
	conn   *nats.Conn
	prefix string
}

// natsEnvelope carries the entry expiry; ExpiresAt 0 means none.
type natsEnvelope struct {
	Marker    string `json:"m"`
	Value     []byte `json:"v"`
	ExpiresAt int64  `json:"ea,omitempty"`
}

func newNATSStoreFromConfig(cfg StoreConfig) (Store, error) {
	if cfg.NATSKeyValue != nil {
		return newNATSStore(cfg.NATSKeyValue, nil, cfg.Prefix), nil
	}
	if cfg.NATSURL == "" {
		return nil, errors.New("nats driver requires a url or key-value bucket")
	}
	nc, err := nats.Connect(cfg.NATSURL, nats.Name("cachedemo"), nats.NoReconnect())
	if err != nil {
		return nil, fmt.Errorf("connect nats %s: %w", cfg.NATSURL, err)
	}
	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream nats: %w", err)
	}
	kv, err := js.KeyValue(cfg.NATSBucket)
	if errors.Is(err, nats.ErrBucketNotFound) {
		kv, err = js.CreateKeyValue(&nats.KeyValueConfig{Bucket: cfg.NATSBucket, History: 1})
	}
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("open nats kv bucket %q: %w", cfg.NATSBucket, err)
	}
	return newNATSStore(kv, nc, cfg.Prefix), nil
}

func newNATSStore(kv NATSKeyValue, conn *nats.Conn, prefix string) Store {
	return &natsStore{
		kv:     kv,
		conn:   conn,
		prefix: prefix,
	}
}

func (s *natsStore) Driver() Driver { return DriverNATS }

func (s *natsStore) Ready(context.Context) error {
	if s.kv == nil {
		return errNATSUnavailable
	}
	if s.conn != nil && !s.conn.IsConnected() {
		return fmt.Errorf("nats connection %s", s.conn.Status())
	}
	return nil
}

func (s *natsStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	if s.kv == nil {
		return nil, false, errNATSUnavailable
	}
	cacheKey := s.cacheKey(key)
	entry, err := s.kv.Get(cacheKey)
	if isNATSMiss(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if entry.Operation() == nats.KeyValueDelete || entry.Operation() == nats.KeyValuePurge {
		return nil, false, nil
	}
	envelope, wrapped, err := decodeNATSEnvelope(entry.Value())
	if err != nil {
		return nil, false, err
	}
	if !wrapped {
		return cloneBytes(entry.Value()), true, nil
	}
	if envelope.ExpiresAt > 0 && time.Now().UnixMilli() > envelope.ExpiresAt {
		_ = s.kv.Purge(cacheKey)
		return nil, false, nil
	}
	return cloneBytes(envelope.Value), true, nil
}

func (s *natsStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if s.kv == nil {
		return errNATSUnavailable
	}
	body, err := encodeNATSEnvelope(value, ttl)
	if err != nil {
		return err
	}
	_, err = s.kv.Put(s.cacheKey(key), body)
	return err
}

func (s *natsStore) Add(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	if s.kv == nil {
		return false, errNATSUnavailable
	}
	// An expired envelope still occupies the key; Get purges it first.
	_, ok, err := s.Get(ctx, key)
	if err != nil {
		return false, err
	}
	if ok {
		return false, nil
	}
	body, err := encodeNATSEnvelope(value, ttl)
	if err != nil {
		return false, err
	}
	_, err = s.kv.Create(s.cacheKey(key), body)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, nats.ErrKeyExists) {
		return false, nil
	}
	return false, err
}

func (s *natsStore) Delete(ctx context.Context, key string) (bool, error) {
	if s.kv == nil {
		return false, errNATSUnavailable
	}
	_, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	err = s.kv.Delete(s.cacheKey(key))
	if isNATSMiss(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *natsStore) Flush(_ context.Context) error {
	if s.kv == nil {
		return errNATSUnavailable
	}
	lister, err := s.kv.ListKeys(nats.IgnoreDeletes())
	if err != nil {
		if errors.Is(err, nats.ErrNoKeysFound) {
			return nil
		}
		return err
	}
	defer func() { _ = lister.Stop() }()

	scopePrefix := s.scopePrefix()
	for key := range lister.Keys() {
		if !strings.HasPrefix(key, scopePrefix) {
			continue
		}
		if err := s.kv.Purge(key); err != nil && !isNATSMiss(err) {
			return err
		}
	}
	for err := range lister.Error() {
		if err != nil {
			return err
		}
	}
	return nil
}

// Close drains the connection the store opened itself.
func (s *natsStore) Close(ctx context.Context) error {
	if s.conn == nil {
		return nil
	}
	return closeWithin(ctx, s.conn.Drain)
}

func (s *natsStore) cacheKey(key string) string {
	return s.scopePrefix() + encodeNATSKeyPart(key)
}

func (s *natsStore) scopePrefix() string {
	return "p." + encodeNATSKeyPart(s.prefix) + ".k."
}

func encodeNATSEnvelope(value []byte, ttl time.Duration) ([]byte, error) {
	envelope := natsEnvelope{
		Marker: natsEnvelopeMarker,
		Value:  cloneBytes(value),
	}
	if ttl > 0 {
		envelope.ExpiresAt = time.Now().Add(ttl).UnixMilli()
	}
	body, err := json.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("marshal nats cache envelope: %w", err)
	}
	return body, nil
}

func decodeNATSEnvelope(body []byte) (natsEnvelope, bool, error) {
	var envelope natsEnvelope
	if len(body) == 0 || body[0] != '{' {
		return envelope, false, nil
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return natsEnvelope{}, false, fmt.Errorf("decode nats cache envelope: %w", err)
	}
	if envelope.Marker != natsEnvelopeMarker {
		return natsEnvelope{}, false, nil
	}
	return envelope, true, nil
}

func isNATSMiss(err error) bool {
	return errors.Is(err, nats.ErrKeyNotFound) || errors.Is(err, nats.ErrKeyDeleted)
}

func encodeNATSKeyPart(part string) string {
	if part == "" {
		return "_"
	}
	return base64.RawURLEncoding.EncodeToString([]byte(part))
}
