package upsert

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memDoc struct {
	id      string
	key     string
	updated time.Time
	body    any
}

type memStore struct {
	docs    map[Kind][]*memDoc
	seq     int
	creates int
	updates int
	deletes []string
	failDel error
}

func newMemStore() *memStore { return &memStore{docs: map[Kind][]*memDoc{}} }

func (s *memStore) put(kind Kind, id, key string, updated time.Time) {
	s.docs[kind] = append(s.docs[kind], &memDoc{id: id, key: key, updated: updated})
}

func (s *memStore) FindByKey(_ context.Context, kind Kind, key string) ([]Existing, error) {
	var out []Existing
	for _, d := range s.docs[kind] {
		if d.key == key {
			out = append(out, Existing{ID: d.id, Updated: d.updated})
		}
	}
	return out, nil
}

func (s *memStore) Create(_ context.Context, kind Kind, payload any) (string, error) {
	s.seq++
	s.creates++
	p := payload.(testPayload)
	id := fmt.Sprintf("new-%d", s.seq)
	s.docs[kind] = append(s.docs[kind], &memDoc{id: id, key: p.Key, updated: time.Now(), body: p})
	return id, nil
}

func (s *memStore) Update(_ context.Context, kind Kind, id string, patch any) error {
	s.updates++
	for _, d := range s.docs[kind] {
		if d.id == id {
			d.body = patch
			return nil
		}
	}
	return errors.New("not found")
}

func (s *memStore) Delete(_ context.Context, kind Kind, id string) error {
	if s.failDel != nil {
		return s.failDel
	}
	s.deletes = append(s.deletes, id)
	docs := s.docs[kind][:0]
	for _, d := range s.docs[kind] {
		if d.id != id {
			docs = append(docs, d)
		}
	}
	s.docs[kind] = docs
	return nil
}

type testPayload struct {
	Key  string
	Note string
}

type testDoc struct {
	kind      Kind
	key       string
	note      string
	writeOnce bool
}

func (d testDoc) Kind() Kind         { return d.kind }
func (d testDoc) Key() string        { return d.key }
func (d testDoc) CreatePayload() any { return testPayload{Key: d.key, Note: d.note} }
func (d testDoc) PatchPayload() any  { return d.note }
func (d testDoc) WriteOnce() bool    { return d.writeOnce }

var t0 = time.Date(2025, 12, 1, 10, 0, 0, 0, time.UTC)

func TestUpsertCreatesWhenMissing(t *testing.T) {
	s := newMemStore()
	e := New(s, Options{})

	res, err := e.Upsert(context.Background(), testDoc{kind: "customerorder", key: "K", note: "n"})
	require.NoError(t, err)
	assert.Equal(t, ActionCreated, res.Action)
	assert.Equal(t, "new-1", res.ID)
	assert.Equal(t, 1, s.creates)

	res, err = e.Upsert(context.Background(), testDoc{kind: "customerorder", key: "K", note: "n2"})
	require.NoError(t, err)
	assert.Equal(t, ActionUpdated, res.Action)
	assert.Equal(t, "new-1", res.ID)
	assert.Equal(t, 1, s.creates)
	assert.Equal(t, 1, s.updates)
	assert.Empty(t, res.Deleted)
}

func TestUpsertDedupKeepsLatest(t *testing.T) {
	s := newMemStore()
	s.put("customerorder", "b", "K", t0)
	s.put("customerorder", "c", "K", t0.Add(time.Hour))
	s.put("customerorder", "a", "K", t0.Add(-time.Hour))
	s.put("customerorder", "z", "OTHER", t0)

	res, err := New(s, Options{Policy: KeepLatest}).Upsert(context.Background(), testDoc{kind: "customerorder", key: "K", note: "x"})
	require.NoError(t, err)
	assert.Equal(t, ActionUpdated, res.Action)
	assert.Equal(t, "c", res.ID)
	assert.ElementsMatch(t, []string{"a", "b"}, res.Deleted)
	assert.ElementsMatch(t, []string{"a", "b"}, s.deletes)

	left, _ := s.FindByKey(context.Background(), "customerorder", "K")
	require.Len(t, left, 1)
	other, _ := s.FindByKey(context.Background(), "customerorder", "OTHER")
	assert.Len(t, other, 1)
}

func TestUpsertDedupTieBrokenByLowestID(t *testing.T) {
	s := newMemStore()
	for _, id := range []string{"d3", "d1", "d2"} {
		s.put("move", id, "K", t0)
	}

	res, err := New(s, Options{}).Upsert(context.Background(), testDoc{kind: "move", key: "K"})
	require.NoError(t, err)
	assert.Equal(t, "d1", res.ID)
	assert.ElementsMatch(t, []string{"d2", "d3"}, res.Deleted)
}

func TestSelectSurvivorEarliest(t *testing.T) {
	rows := []Existing{
		{ID: "b", Updated: t0.Add(time.Minute)},
		{ID: "a", Updated: t0},
		{ID: "c", Updated: t0.Add(time.Hour)},
	}
	keep, extras := SelectSurvivor(rows, KeepEarliest)
	assert.Equal(t, "a", keep.ID)
	assert.Len(t, extras, 2)

	keep, _ = SelectSurvivor(rows, KeepLatest)
	assert.Equal(t, "c", keep.ID)
}

func TestUpsertNDuplicatesLeavesOne(t *testing.T) {
	const n = 7
	s := newMemStore()
	for i := 0; i < n; i++ {
		s.put("customerorder", fmt.Sprintf("id-%d", i), "K", t0.Add(time.Duration(i)*time.Second))
	}

	res, err := New(s, Options{}).Upsert(context.Background(), testDoc{kind: "customerorder", key: "K"})
	require.NoError(t, err)
	assert.Len(t, res.Deleted, n-1)
	assert.Equal(t, "id-6", res.ID)
	left, _ := s.FindByKey(context.Background(), "customerorder", "K")
	assert.Len(t, left, 1)
}

func TestUpsertDryRunWritesNothing(t *testing.T) {
	s := newMemStore()
	s.put("customerorder", "a", "K", t0)
	s.put("customerorder", "b", "K", t0.Add(time.Hour))
	e := New(s, Options{DryRun: true})

	res, err := e.Upsert(context.Background(), testDoc{kind: "customerorder", key: "K"})
	require.NoError(t, err)
	assert.True(t, res.DryRun)
	assert.Equal(t, ActionUpdated, res.Action)
	assert.Equal(t, []string{"a"}, res.Deleted)
	assert.Empty(t, s.deletes)
	assert.Zero(t, s.updates)

	res, err = e.Upsert(context.Background(), testDoc{kind: "move", key: "K"})
	require.NoError(t, err)
	assert.Equal(t, ActionCreated, res.Action)
	assert.Empty(t, res.ID)
	assert.Zero(t, s.creates)
}

func TestUpsertWriteOnceNeverPatches(t *testing.T) {
	s := newMemStore()
	s.put("demand", "d1", "K", t0)

	res, err := New(s, Options{}).Upsert(context.Background(), testDoc{kind: "demand", key: "K", writeOnce: true})
	require.NoError(t, err)
	assert.Equal(t, ActionUnchanged, res.Action)
	assert.Equal(t, "d1", res.ID)
	assert.Zero(t, s.updates)
	assert.Zero(t, s.creates)
}

func TestUpsertDeleteFailurePropagates(t *testing.T) {
	s := newMemStore()
	s.put("move", "a", "K", t0)
	s.put("move", "b", "K", t0.Add(time.Hour))
	s.failDel = errors.New("boom")

	_, err := New(s, Options{}).Upsert(context.Background(), testDoc{kind: "move", key: "K"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "delete duplicate")
	assert.Zero(t, s.updates)
}

func TestUpsertRejectsEmptyKey(t *testing.T) {
	_, err := New(newMemStore(), Options{}).Upsert(context.Background(), testDoc{kind: "move"})
	require.Error(t, err)
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, KeepLatest, p)
	p, err = ParsePolicy("earliest")
	require.NoError(t, err)
	assert.Equal(t, KeepEarliest, p)
	_, err = ParsePolicy("random")
	require.Error(t, err)
}

func TestExistsHasNoSideEffects(t *testing.T) {
	s := newMemStore()
	s.put("demand", "d1", "K", t0)
	s.put("demand", "d2", "K", t0.Add(time.Hour))
	e := New(s, Options{})

	ok, err := e.Exists(context.Background(), "demand", "K")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, s.deletes)

	ok, err = e.Exists(context.Background(), "demand", "other")
	require.NoError(t, err)
	assert.False(t, ok)
}
