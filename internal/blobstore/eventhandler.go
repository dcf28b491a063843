package blobstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
)

// PreimagePrefix is the key prefix the observatory event handler scans.
const PreimagePrefix = "decision.preimage:"

// ObservatoryPublishedEvent is the payload of a
// "knowledge.observatory.published.v1" event: a published fact whose
// decision preimages may need re-verification against it.
type ObservatoryPublishedEvent struct {
	ReasonType  string
	URL         string
	GeneratedAt time.Time
	SHA         string
	SchemaRef   string
}

// HandleObservatoryPublished scans every decision.preimage: item, sets
// needs_recheck = true with a RecheckReason derived from event, and writes
// each item back preserving its TTL and pin state. Malformed existing
// values are logged and skipped rather than aborting the whole scan —
// background event handling never propagates partial failures (§7).
func HandleObservatoryPublished(ctx context.Context, s *Store, event ObservatoryPublishedEvent, logger *slog.Logger) (int, error) {
	if logger == nil {
		logger = slog.Default()
	}

	items, err := s.ScanPrefix(ctx, PreimagePrefix)
	if err != nil {
		return 0, fmt.Errorf("blobstore: scan preimages: %w", err)
	}

	reason := NewRecheckReason(event.ReasonType, event.URL, event.GeneratedAt, event.SHA, event.SchemaRef)

	marked := 0
	for _, item := range items {
		updated, err := markNeedsRecheck(item.Value, reason)
		if err != nil {
			logger.Warn("blobstore: skipping malformed preimage", "key", item.Key, "error", err)
			continue
		}
		if err := s.Set(ctx, item.Key, updated, TTLPreserve, 0, item.Pinned); err != nil {
			logger.Warn("blobstore: failed to write back recheck flag", "key", item.Key, "error", err)
			continue
		}
		marked++
	}
	return marked, nil
}

// markNeedsRecheck decodes value as a JSON object, sets needs_recheck and
// recheck_reason, and re-encodes it. Any other JSON shape is an error.
func markNeedsRecheck(value []byte, reason RecheckReason) ([]byte, error) {
	var doc map[string]any
	if err := json.Unmarshal(value, &doc); err != nil {
		return nil, fmt.Errorf("decode preimage: %w", err)
	}
	doc["needs_recheck"] = true
	doc["recheck_reason"] = reason
	return json.Marshal(doc)
}
