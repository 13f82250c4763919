package cachedemo

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
)

func TestNATSStoreNilKeyValueErrors(t *testing.T) {
	store := newNATSStore(nil, nil, "")
	ctx := context.Background()

	if err := store.Ready(ctx); !errors.Is(err, errNATSUnavailable) {
		t.Fatalf("expected ready error when nats key-value is nil, got %v", err)
	}
	if _, _, err := store.Get(ctx, "k"); err == nil {
		t.Fatalf("expected get error when nats key-value is nil")
	}
	if err := store.Set(ctx, "k", []byte("v"), 0); err == nil {
		t.Fatalf("expected set error when nats key-value is nil")
	}
	if _, err := store.Add(ctx, "k", []byte("v"), 0); err == nil {
		t.Fatalf("expected add error when nats key-value is nil")
	}
	if _, err := store.Delete(ctx, "k"); err == nil {
		t.Fatalf("expected delete error when nats key-value is nil")
	}
	if err := store.Flush(ctx); err == nil {
		t.Fatalf("expected flush error when nats key-value is nil")
	}
	if err := store.Close(ctx); err != nil {
		t.Fatalf("expected nil close without connection, got %v", err)
	}
}

func TestNATSStoreOperationsWithStubKV(t *testing.T) {
	ctx := context.Background()
	kv := newStubNATSKeyValue("bucket")
	store := newNATSStore(kv, nil, "pfx")

	if err := store.Ready(ctx); err != nil {
		t.Fatalf("ready failed: %v", err)
	}
	if err := store.Set(ctx, "alpha", []byte("one"), 0); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	body, ok, err := store.Get(ctx, "alpha")
	if err != nil || !ok || string(body) != "one" {
		t.Fatalf("unexpected get result: ok=%v err=%v body=%s", ok, err, string(body))
	}

	created, err := store.Add(ctx, "alpha", []byte("two"), 0)
	if err != nil || created {
		t.Fatalf("expected add false when key exists: created=%v err=%v", created, err)
	}
	created, err = store.Add(ctx, "beta", []byte("two"), 0)
	if err != nil || !created {
		t.Fatalf("expected add true on missing key, created=%v err=%v", created, err)
	}

	removed, err := store.Delete(ctx, "alpha")
	if err != nil || !removed {
		t.Fatalf("delete failed: removed=%v err=%v", removed, err)
	}
	if _, ok, err := store.Get(ctx, "alpha"); err != nil || ok {
		t.Fatalf("expected alpha deleted")
	}
	removed, err = store.Delete(ctx, "alpha")
	if err != nil || removed {
		t.Fatalf("expected second delete false: removed=%v err=%v", removed, err)
	}

	if err := store.Set(ctx, "flushme", []byte("x"), 0); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if err := store.Flush(ctx); err != nil {
		t.Fatalf("flush failed: %v", err)
	}
	if _, ok, err := store.Get(ctx, "flushme"); err != nil || ok {
		t.Fatalf("expected flushed key to be gone")
	}
}

func TestNATSStoreExpiry(t *testing.T) {
	ctx := context.Background()
	kv := newStubNATSKeyValue("bucket")
	store := newNATSStore(kv, nil, "pfx")

	if err := store.Set(ctx, "exp", []byte("v"), 25*time.Millisecond); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	time.Sleep(40 * time.Millisecond)
	if _, ok, err := store.Get(ctx, "exp"); err != nil || ok {
		t.Fatalf("expected key expired; ok=%v err=%v", ok, err)
	}
	created, err := store.Add(ctx, "exp", []byte("new"), 0)
	if err != nil || !created {
		t.Fatalf("expected add after expiry to succeed, created=%v err=%v", created, err)
	}

	if err := store.Set(ctx, "gone", []byte("v"), time.Millisecond); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	time.Sleep(10 * time.Millisecond)
	if removed, err := store.Delete(ctx, "gone"); err != nil || removed {
		t.Fatalf("expected expired delete to report false: removed=%v err=%v", removed, err)
	}
}

func TestNATSEnvelopeWithoutTTLOmitsExpiry(t *testing.T) {
	body, err := encodeNATSEnvelope([]byte("v"), 0)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, ok := raw["ea"]; ok {
		t.Fatalf("expected no expiry field, got %s", body)
	}
}

func TestNATSStoreReadsRawValues(t *testing.T) {
	ctx := context.Background()
	kv := newStubNATSKeyValue("bucket")
	store := newNATSStore(kv, nil, "pfx")
	if _, err := kv.Put(store.(*natsStore).cacheKey("raw"), []byte("plain")); err != nil {
		t.Fatalf("seed raw value: %v", err)
	}
	got, ok, err := store.Get(ctx, "raw")
	if err != nil || !ok || string(got) != "plain" {
		t.Fatalf("expected raw value read, ok=%v err=%v val=%q", ok, err, string(got))
	}
}

func TestNATSStoreFlushRespectsPrefix(t *testing.T) {
	ctx := context.Background()
	kv := newStubNATSKeyValue("bucket")
	store := newNATSStore(kv, nil, "pfx")
	ns := store.(*natsStore)

	inKey := ns.cacheKey("in")
	if _, err := kv.Put(inKey, mustEncodeNATSEnvelope(t, []byte("1"), time.Second)); err != nil {
		t.Fatalf("put in failed: %v", err)
	}
	otherKey := "p." + encodeNATSKeyPart("other") + ".k." + encodeNATSKeyPart("keep")
	if _, err := kv.Put(otherKey, mustEncodeNATSEnvelope(t, []byte("2"), time.Second)); err != nil {
		t.Fatalf("put keep failed: %v", err)
	}

	if err := store.Flush(ctx); err != nil {
		t.Fatalf("flush failed: %v", err)
	}
	if _, ok := kv.entries[inKey]; ok {
		t.Fatalf("expected prefixed key removed")
	}
	if _, ok := kv.entries[otherKey]; !ok {
		t.Fatalf("expected other prefix key retained")
	}
}

func TestNATSStoreErrorPropagation(t *testing.T) {
	ctx := context.Background()
	kv := newStubNATSKeyValue("bucket")
	store := newNATSStore(kv, nil, "pfx")

	kv.getErr = errors.New("get")
	if _, _, err := store.Get(ctx, "k"); err == nil {
		t.Fatalf("expected get error")
	}
	kv.getErr = nil

	kv.putErr = errors.New("put")
	if err := store.Set(ctx, "k", []byte("v"), time.Second); err == nil {
		t.Fatalf("expected set error")
	}
	kv.putErr = nil

	kv.createErr = errors.New("create")
	if _, err := store.Add(ctx, "k", []byte("v"), time.Second); err == nil {
		t.Fatalf("expected add error")
	}
	kv.createErr = nil

	if err := store.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	kv.deleteErr = errors.New("delete")
	if _, err := store.Delete(ctx, "k"); err == nil {
		t.Fatalf("expected delete error")
	}
	kv.deleteErr = nil

	kv.listErr = errors.New("list")
	if err := store.Flush(ctx); err == nil {
		t.Fatalf("expected flush list error")
	}
	kv.listErr = nats.ErrNoKeysFound
	if err := store.Flush(ctx); err != nil {
		t.Fatalf("expected empty bucket flush to succeed, got %v", err)
	}
}

func TestNATSStoreFromConfigRequiresTarget(t *testing.T) {
	if _, err := newNATSStoreFromConfig(StoreConfig{}); err == nil {
		t.Fatalf("expected error without url or bucket")
	}
	kv := newStubNATSKeyValue("bucket")
	store, err := newNATSStoreFromConfig(StoreConfig{NATSKeyValue: kv, Prefix: "p"})
	if err != nil || store.Driver() != DriverNATS {
		t.Fatalf("expected nats store around supplied bucket, got %v", err)
	}
}

func mustEncodeNATSEnvelope(t *testing.T, value []byte, ttl time.Duration) []byte {
	t.Helper()
	body, err := encodeNATSEnvelope(value, ttl)
	if err != nil {
		t.Fatalf("encode envelope: %v", err)
	}
	return body
}

type stubNATSKeyValue struct {
	bucket string
	rev    uint64

	entries map[string]*stubNATSKeyValueEntry

	getErr    error
	putErr    error
	createErr error
	deleteErr error
	purgeErr  error
	listErr   error
}

func newStubNATSKeyValue(bucket string) *stubNATSKeyValue {
	return &stubNATSKeyValue{
		bucket:  bucket,
		entries: make(map[string]*stubNATSKeyValueEntry),
	}
}

func (s *stubNATSKeyValue) Get(key string) (nats.KeyValueEntry, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	entry, ok := s.entries[key]
	if !ok {
		return nil, nats.ErrKeyNotFound
	}
	if entry.op == nats.KeyValueDelete || entry.op == nats.KeyValuePurge {
		return nil, nats.ErrKeyDeleted
	}
	return entry.clone(), nil
}

func (s *stubNATSKeyValue) Put(key string, value []byte) (uint64, error) {
	if s.putErr != nil {
		return 0, s.putErr
	}
	s.rev++
	s.entries[key] = &stubNATSKeyValueEntry{
		bucket:   s.bucket,
		key:      key,
		value:    cloneBytes(value),
		revision: s.rev,
		created:  time.Now(),
		op:       nats.KeyValuePut,
	}
	return s.rev, nil
}

func (s *stubNATSKeyValue) Create(key string, value []byte) (uint64, error) {
	if s.createErr != nil {
		return 0, s.createErr
	}
	if existing, ok := s.entries[key]; ok && existing.op == nats.KeyValuePut {
		return 0, nats.ErrKeyExists
	}
	return s.Put(key, value)
}

func (s *stubNATSKeyValue) Delete(key string, _ ...nats.DeleteOpt) error {
	if s.deleteErr != nil {
		return s.deleteErr
	}
	s.rev++
	s.entries[key] = &stubNATSKeyValueEntry{
		bucket:   s.bucket,
		key:      key,
		revision: s.rev,
		created:  time.Now(),
		op:       nats.KeyValueDelete,
	}
	return nil
}

func (s *stubNATSKeyValue) Purge(key string, _ ...nats.DeleteOpt) error {
	if s.purgeErr != nil {
		return s.purgeErr
	}
	delete(s.entries, key)
	return nil
}

func (s *stubNATSKeyValue) ListKeys(_ ...nats.WatchOpt) (nats.KeyLister, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	keys := make([]string, 0, len(s.entries))
	for key := range s.entries {
		keys = append(keys, key)
	}
	return newStubNATSKeyLister(keys), nil
}

type stubNATSKeyValueEntry struct {
	bucket   string
	key      string
	value    []byte
	revision uint64
	created  time.Time
	delta    uint64
	op       nats.KeyValueOp
}

func (e *stubNATSKeyValueEntry) clone() *stubNATSKeyValueEntry {
	cp := *e
	cp.value = cloneBytes(e.value)
	return &cp
}

func (e *stubNATSKeyValueEntry) Bucket() string             { return e.bucket }
func (e *stubNATSKeyValueEntry) Key() string                { return e.key }
func (e *stubNATSKeyValueEntry) Value() []byte              { return cloneBytes(e.value) }
func (e *stubNATSKeyValueEntry) Revision() uint64           { return e.revision }
func (e *stubNATSKeyValueEntry) Created() time.Time         { return e.created }
func (e *stubNATSKeyValueEntry) Delta() uint64              { return e.delta }
func (e *stubNATSKeyValueEntry) Operation() nats.KeyValueOp { return e.op }

type stubNATSKeyLister struct {
	keysCh chan string
	errCh  chan error
}

func newStubNATSKeyLister(keys []string) *stubNATSKeyLister {
	keysCh := make(chan string, len(keys))
	errCh := make(chan error)
	for _, key := range keys {
		keysCh <- key
	}
	close(keysCh)
	close(errCh)
	return &stubNATSKeyLister{keysCh: keysCh, errCh: errCh}
}

func (l *stubNATSKeyLister) Keys() <-chan string { return l.keysCh }
func (l *stubNATSKeyLister) Error() <-chan error { return l.errCh }
func (l *stubNATSKeyLister) Stop() error         { return nil }
