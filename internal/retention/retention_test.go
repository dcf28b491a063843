package retention_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heimgewebe/indexd/internal/model"
	"github.com/heimgewebe/indexd/internal/retention"
	"github.com/heimgewebe/indexd/internal/store"
)

func TestHalfLifeSeconds_UnconfiguredNamespaceIsZero(t *testing.T) {
	sw := retention.New(store.New(), nil)
	assert.Equal(t, int64(0), sw.HalfLifeSeconds("ns"))
}

func TestSetConfig_GetConfigsRoundTrip(t *testing.T) {
	sw := retention.New(store.New(), nil)
	sw.SetConfig("ns", model.RetentionConfig{HalfLifeSeconds: 3600})

	cfgs := sw.GetConfigs()
	require.Contains(t, cfgs, "ns")
	assert.Equal(t, int64(3600), cfgs["ns"].HalfLifeSeconds)
	assert.Equal(t, int64(3600), sw.HalfLifeSeconds("ns"))
}

func TestPreviewDecay_DoesNotMutateStore(t *testing.T) {
	s := store.New()
	s.Upsert("ns", model.DocumentRecord{DocID: "a", IngestedAt: time.Now().Add(-2 * time.Hour)})
	sw := retention.New(s, nil)
	sw.SetConfig("ns", model.RetentionConfig{HalfLifeSeconds: 3600})

	previews := sw.PreviewDecay("ns")
	require.Len(t, previews, 1)
	assert.Equal(t, "a", previews[0].DocID)
	assert.Less(t, previews[0].DecayFactor, 1.0)

	_, ok := s.Get("ns", "a")
	assert.True(t, ok)
}

func TestSweepNamespace_PurgesByMaxAge(t *testing.T) {
	s := store.New()
	s.Upsert("ns", model.DocumentRecord{DocID: "old", IngestedAt: time.Now().Add(-48 * time.Hour)})
	s.Upsert("ns", model.DocumentRecord{DocID: "new", IngestedAt: time.Now()})

	sw := retention.New(s, nil)
	sw.SetConfig("ns", model.RetentionConfig{MaxAgeSeconds: int64((24 * time.Hour).Seconds())})

	sw.SweepNamespace("ns")

	_, ok := s.Get("ns", "old")
	assert.False(t, ok)
	_, ok = s.Get("ns", "new")
	assert.True(t, ok)
}

func TestSweepNamespace_PurgesOldestWhenOverCapacity(t *testing.T) {
	s := store.New()
	s.Upsert("ns", model.DocumentRecord{DocID: "a", IngestedAt: time.Now().Add(-3 * time.Hour)})
	s.Upsert("ns", model.DocumentRecord{DocID: "b", IngestedAt: time.Now().Add(-2 * time.Hour)})
	s.Upsert("ns", model.DocumentRecord{DocID: "c", IngestedAt: time.Now().Add(-1 * time.Hour)})

	sw := retention.New(s, nil)
	sw.SetConfig("ns", model.RetentionConfig{MaxItems: 2, PurgeStrategy: model.PurgeOldest})

	sw.SweepNamespace("ns")

	_, ok := s.Get("ns", "a")
	assert.False(t, ok, "oldest document must be purged first")
	_, ok = s.Get("ns", "c")
	assert.True(t, ok)
}

func TestSweepNamespace_LowestScoreUsesRecencyAndTrust(t *testing.T) {
	s := store.New()
	// Same age, different trust: the low-trust document should be purged
	// first under the lowest_score strategy.
	now := time.Now().Add(-time.Hour)
	s.Upsert("ns", model.DocumentRecord{DocID: "low-trust", IngestedAt: now, SourceRef: model.SourceRef{TrustLevel: model.TrustLow}})
	s.Upsert("ns", model.DocumentRecord{DocID: "high-trust", IngestedAt: now, SourceRef: model.SourceRef{TrustLevel: model.TrustHigh}})

	sw := retention.New(s, nil)
	sw.SetConfig("ns", model.RetentionConfig{MaxItems: 1, PurgeStrategy: model.PurgeLowestScore, HalfLifeSeconds: 3600})

	sw.SweepNamespace("ns")

	_, ok := s.Get("ns", "low-trust")
	assert.False(t, ok)
	_, ok = s.Get("ns", "high-trust")
	assert.True(t, ok)
}

func TestSweepNamespace_NoConfigIsNoOp(t *testing.T) {
	s := store.New()
	s.Upsert("ns", model.DocumentRecord{DocID: "a", IngestedAt: time.Now().Add(-1000 * time.Hour)})
	sw := retention.New(s, nil)

	sw.SweepNamespace("ns")

	_, ok := s.Get("ns", "a")
	assert.True(t, ok)
}
