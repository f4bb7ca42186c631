// Package redis is the document backend: every record is a JSON document
// under its own key, with set indexes per owner and per patient.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jwalitptl/clinic-api/internal/repository"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
)

const (
	collPatients     = "patients"
	collDemographics = "demographics"
	collMedical      = "medical"
	collPayments     = "payments"
	collVisits       = "visits"
)

// keys builds every key the store touches from one prefix.
type keys struct {
	prefix string
}

func (k keys) doc(coll, id string) string      { return fmt.Sprintf("%s:%s:%s", k.prefix, coll, id) }
func (k keys) all(coll string) string          { return fmt.Sprintf("%s:%s", k.prefix, coll) }
func (k keys) byOwner(coll, uid string) string { return fmt.Sprintf("%s:%s:owner:%s", k.prefix, coll, uid) }
func (k keys) byPatient(coll, pid string) string {
	return fmt.Sprintf("%s:%s:patient:%s", k.prefix, coll, pid)
}

type baseStore struct {
	client  *redis.Client
	keys    keys
	metrics *metrics.Metrics
}

func (s *baseStore) observe(operation string, start time.Time, err error) {
	if errors.Is(err, repository.ErrNotFound) {
		err = nil
	}
	s.metrics.ObserveRedis(operation, start, err)
}

func (s *baseStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// docReader is satisfied by both *redis.Client and *redis.Tx.
type docReader interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	SMembers(ctx context.Context, key string) *redis.StringSliceCmd
	MGet(ctx context.Context, keys ...string) *redis.SliceCmd
}

func (s *baseStore) getDoc(ctx context.Context, key string, dst interface{}) error {
	return readDoc(ctx, s.client, key, dst)
}

func readDoc(ctx context.Context, r docReader, key string, dst interface{}) error {
	raw, err := r.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return repository.ErrNotFound
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dst)
}

// loadDocs fetches all documents whose ids are members of indexKey.
// Ids whose document has vanished are skipped.
func loadDocs[T any](ctx context.Context, s *baseStore, coll, indexKey string) ([]*T, error) {
	return loadDocsFrom[T](ctx, s.client, s.keys, coll, indexKey)
}

func loadDocsFrom[T any](ctx context.Context, r docReader, k keys, coll, indexKey string) ([]*T, error) {
	ids, err := r.SMembers(ctx, indexKey).Result()
	if err != nil {
		return nil, err
	}
	out := make([]*T, 0, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	docKeys := make([]string, len(ids))
	for i, id := range ids {
		docKeys[i] = k.doc(coll, id)
	}
	vals, err := r.MGet(ctx, docKeys...).Result()
	if err != nil {
		return nil, err
	}
	for _, v := range vals {
		str, ok := v.(string)
		if !ok {
			continue
		}
		var item T
		if err := json.Unmarshal([]byte(str), &item); err != nil {
			return nil, fmt.Errorf("failed to decode %s document: %w", coll, err)
		}
		out = append(out, &item)
	}
	return out, nil
}

// NewStore wires every document repository onto one client.
func NewStore(client *redis.Client, prefix string, m *metrics.Metrics) *repository.Store {
	base := &baseStore{client: client, keys: keys{prefix: prefix}, metrics: m}
	return &repository.Store{
		Patients: &patientStore{baseStore: base},
		Records:  &recordStore{base},
		Payments: &paymentStore{base},
		Visits:   &visitStore{base},
		Health:   base,
	}
}

func newestFirst(a, b time.Time) bool { return a.After(b) }

func sortByCreated[T any](items []*T, created func(*T) time.Time) {
	sort.SliceStable(items, func(i, j int) bool {
		return newestFirst(created(items[i]), created(items[j]))
	})
}
