package blobstore_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heimgewebe/indexd/internal/blobstore"
)

func TestHandleObservatoryPublished_MarksMatchingKeysPreservingTTLAndPin(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.Set(ctx, "decision.preimage:abc", []byte(`{"decision_id":"abc"}`), blobstore.TTLSet, 3600, true))
	require.NoError(t, s.Set(ctx, "decision.preimage:def", []byte(`{"decision_id":"def"}`), blobstore.TTLClear, 0, false))
	require.NoError(t, s.Set(ctx, "other.key:ignored", []byte(`{"x":1}`), blobstore.TTLClear, 0, false))

	event := blobstore.ObservatoryPublishedEvent{
		ReasonType:  "decision.preimage",
		URL:         "https://example.com/facts/42",
		GeneratedAt: time.Now(),
		SHA:         "sha256:deadbeef",
		SchemaRef:   "https://evil.example.com/schema.json",
	}

	marked, err := blobstore.HandleObservatoryPublished(ctx, s, event, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, marked)

	abc, ok, err := s.Get(ctx, "decision.preimage:abc")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, abc.Pinned, "pin state must be preserved")
	assert.NotNil(t, abc.ExpiresAt, "TTL must be preserved")

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(abc.Value, &decoded))
	assert.Equal(t, true, decoded["needs_recheck"])
	reason, ok := decoded["recheck_reason"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "https://example.com/facts/42", reason["url"])
	_, hasSHA := reason["sha"]
	assert.False(t, hasSHA, "malformed sha must not be stored")

	other, ok, err := s.Get(ctx, "other.key:ignored")
	require.NoError(t, err)
	require.True(t, ok)
	var otherDecoded map[string]any
	require.NoError(t, json.Unmarshal(other.Value, &otherDecoded))
	_, hasFlag := otherDecoded["needs_recheck"]
	assert.False(t, hasFlag, "keys outside the preimage prefix must be untouched")
}

func TestHandleObservatoryPublished_SkipsMalformedValues(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.Set(ctx, "decision.preimage:bad", []byte("not json"), blobstore.TTLClear, 0, false))

	event := blobstore.ObservatoryPublishedEvent{ReasonType: "decision.preimage", URL: "https://example.com", GeneratedAt: time.Now()}
	marked, err := blobstore.HandleObservatoryPublished(ctx, s, event, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, marked)

	item, ok, err := s.Get(ctx, "decision.preimage:bad")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("not json"), item.Value)
}
