package store_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heimgewebe/indexd/internal/model"
	"github.com/heimgewebe/indexd/internal/store"
)

func TestNormalizeNamespace_EmptyBecomesDefault(t *testing.T) {
	assert.Equal(t, model.DefaultNamespace, store.NormalizeNamespace(""))
	assert.Equal(t, model.DefaultNamespace, store.NormalizeNamespace("   "))
	assert.Equal(t, "chronik", store.NormalizeNamespace("  chronik  "))
}

func TestUpsert_GetRoundTrip(t *testing.T) {
	s := store.New()
	rec := model.DocumentRecord{DocID: "doc-1", Chunks: []model.Chunk{{Text: "hello"}}}
	s.Upsert("chronik", rec)

	got, ok := s.Get("chronik", "doc-1")
	require.True(t, ok)
	assert.Equal(t, "doc-1", got.DocID)
	assert.Equal(t, "chronik", got.Namespace)
}

func TestUpsert_ReplacesAtomically(t *testing.T) {
	s := store.New()
	s.Upsert("ns", model.DocumentRecord{DocID: "doc-1", Flags: []model.ContentFlag{model.FlagSystemClaim}})
	s.Upsert("ns", model.DocumentRecord{DocID: "doc-1"})

	got, ok := s.Get("ns", "doc-1")
	require.True(t, ok)
	assert.Empty(t, got.Flags)
}

func TestGet_MissingNamespaceOrDoc(t *testing.T) {
	s := store.New()
	_, ok := s.Get("nope", "doc-1")
	assert.False(t, ok)

	s.Upsert("ns", model.DocumentRecord{DocID: "doc-1"})
	_, ok = s.Get("ns", "doc-2")
	assert.False(t, ok)
}

func TestSnapshot_ReturnsCopyOfNamespace(t *testing.T) {
	s := store.New()
	s.Upsert("ns", model.DocumentRecord{DocID: "a"})
	s.Upsert("ns", model.DocumentRecord{DocID: "b"})
	s.Upsert("other", model.DocumentRecord{DocID: "c"})

	snap := s.Snapshot("ns")
	assert.Len(t, snap, 2)
}

func TestDelete(t *testing.T) {
	s := store.New()
	s.Upsert("ns", model.DocumentRecord{DocID: "a"})

	assert.True(t, s.Delete("ns", "a"))
	assert.False(t, s.Delete("ns", "a"))

	_, ok := s.Get("ns", "a")
	assert.False(t, ok)
}

func TestNamespaces_OnlyNonEmptyBuckets(t *testing.T) {
	s := store.New()
	s.Upsert("ns1", model.DocumentRecord{DocID: "a"})
	s.Upsert("ns2", model.DocumentRecord{DocID: "b"})
	s.Delete("ns2", "b")

	namespaces := s.Namespaces()
	assert.Contains(t, namespaces, "ns1")
	assert.NotContains(t, namespaces, "ns2")
}

func TestMatch_DoesNotMutate(t *testing.T) {
	s := store.New()
	old := time.Now().Add(-48 * time.Hour)
	s.Upsert("ns", model.DocumentRecord{DocID: "old", IngestedAt: old})
	s.Upsert("ns", model.DocumentRecord{DocID: "new", IngestedAt: time.Now()})

	cutoff := time.Now().Add(-24 * time.Hour)
	keys := s.Match(func(rec model.DocumentRecord) bool {
		return rec.IngestedAt.Before(cutoff)
	})
	require.Len(t, keys, 1)
	assert.Equal(t, "old", keys[0].DocID)

	_, ok := s.Get("ns", "old")
	assert.True(t, ok, "Match must not delete")
}

func TestMatchAndDelete_CrossNamespace(t *testing.T) {
	s := store.New()
	s.Upsert("ns1", model.DocumentRecord{DocID: "a", SourceRef: model.SourceRef{Origin: "external"}})
	s.Upsert("ns2", model.DocumentRecord{DocID: "b", SourceRef: model.SourceRef{Origin: "external"}})
	s.Upsert("ns2", model.DocumentRecord{DocID: "c", SourceRef: model.SourceRef{Origin: "chronik"}})

	keys := s.MatchAndDelete(func(rec model.DocumentRecord) bool {
		return rec.SourceRef.Origin == "external"
	})
	assert.Len(t, keys, 2)

	_, ok := s.Get("ns2", "c")
	assert.True(t, ok)
	_, ok = s.Get("ns1", "a")
	assert.False(t, ok)
}

func TestStats_AggregatesAcrossNamespaces(t *testing.T) {
	s := store.New()
	s.Upsert("ns1", model.DocumentRecord{DocID: "a", Chunks: []model.Chunk{{Text: "x"}, {Text: "y"}}})
	s.Upsert("ns2", model.DocumentRecord{DocID: "b", Chunks: []model.Chunk{{Text: "z"}}})

	stats := s.Stats()
	assert.Equal(t, 2, stats.TotalDocuments)
	assert.Equal(t, 3, stats.TotalChunks)
	assert.Equal(t, 1, stats.Namespaces["ns1"])
	assert.Equal(t, 1, stats.Namespaces["ns2"])
}
