// Package retention implements retention and decay (C7): per-namespace
// half-life configuration, decay preview, and a background sweeper that
// purges documents past max age or count.
package retention

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/heimgewebe/indexd/internal/model"
	"github.com/heimgewebe/indexd/internal/scoring"
	"github.com/heimgewebe/indexd/internal/store"
)

// defaultSweepInterval is how often the background sweeper runs when the
// caller does not configure one explicitly.
const defaultSweepInterval = 5 * time.Minute

// Sweeper owns the per-namespace RetentionConfig table and the background
// purge loop. Construct with New; call Close to stop the loop.
type Sweeper struct {
	store  *store.Store
	logger *slog.Logger

	mu      sync.RWMutex
	configs map[string]model.RetentionConfig

	interval time.Duration
	workers  int
	cancel   context.CancelFunc
	done     chan struct{}
}

// New returns a Sweeper over s. It does not start the background loop;
// call Start to do so.
func New(s *store.Store, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		store:    s,
		logger:   logger,
		configs:  make(map[string]model.RetentionConfig),
		interval: defaultSweepInterval,
		workers:  4,
	}
}

// SetInterval overrides the sweep cadence. Must be called before Start.
func (sw *Sweeper) SetInterval(d time.Duration) {
	if d > 0 {
		sw.interval = d
	}
}

// SetConfig sets the RetentionConfig for namespace.
func (sw *Sweeper) SetConfig(namespace string, cfg model.RetentionConfig) {
	ns := store.NormalizeNamespace(namespace)
	sw.mu.Lock()
	defer sw.mu.Unlock()
	sw.configs[ns] = cfg
}

// GetConfigs returns a copy of every configured namespace's RetentionConfig.
func (sw *Sweeper) GetConfigs() map[string]model.RetentionConfig {
	sw.mu.RLock()
	defer sw.mu.RUnlock()
	out := make(map[string]model.RetentionConfig, len(sw.configs))
	for ns, cfg := range sw.configs {
		out[ns] = cfg
	}
	return out
}

func (sw *Sweeper) config(namespace string) (model.RetentionConfig, bool) {
	sw.mu.RLock()
	defer sw.mu.RUnlock()
	cfg, ok := sw.configs[namespace]
	return cfg, ok
}

// HalfLifeSeconds implements retrieval.HalfLives.
func (sw *Sweeper) HalfLifeSeconds(namespace string) int64 {
	cfg, ok := sw.config(store.NormalizeNamespace(namespace))
	if !ok {
		return 0
	}
	return cfg.HalfLifeSeconds
}

// DecayPreview is one document's decay state as of the preview instant.
type DecayPreview struct {
	DocID       string  `json:"doc_id"`
	AgeSeconds  float64 `json:"age_seconds"`
	DecayFactor float64 `json:"decay_factor"`
}

// PreviewDecay returns the current age and decay factor for every document
// in namespace, without mutating anything. Two successive calls with no
// intervening ingest differ only by the elapsed wall-clock time.
func (sw *Sweeper) PreviewDecay(namespace string) []DecayPreview {
	ns := store.NormalizeNamespace(namespace)
	halfLife := sw.HalfLifeSeconds(ns)
	now := time.Now()

	docs := sw.store.Snapshot(ns)
	out := make([]DecayPreview, 0, len(docs))
	for _, rec := range docs {
		age := now.Sub(rec.IngestedAt).Seconds()
		out = append(out, DecayPreview{
			DocID:       rec.DocID,
			AgeSeconds:  age,
			DecayFactor: scoring.RecencyWeight(age, halfLife),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DocID < out[j].DocID })
	return out
}

// Start launches the background sweep loop. Safe to call at most once.
func (sw *Sweeper) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	sw.cancel = cancel
	sw.done = make(chan struct{})

	go func() {
		defer close(sw.done)
		ticker := time.NewTicker(sw.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sw.sweepAll(ctx)
			}
		}
	}()
}

// Close stops the background loop and waits for it to exit.
func (sw *Sweeper) Close() error {
	if sw.cancel != nil {
		sw.cancel()
	}
	if sw.done != nil {
		<-sw.done
	}
	return nil
}

// sweepAll runs one purge pass over every namespace with a configured
// policy, bounded by errgroup so a slow namespace doesn't serialize the
// others; it checks ctx between namespaces per §5's cooperative
// cancellation requirement.
func (sw *Sweeper) sweepAll(ctx context.Context) {
	configs := sw.GetConfigs()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(sw.workers)

	for ns, cfg := range configs {
		ns, cfg := ns, cfg
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			sw.sweepNamespace(ns, cfg)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		sw.logger.Warn("retention sweep interrupted", "error", err)
	}
}

// SweepNamespace runs one purge pass over a single namespace synchronously.
// Exported for callers (e.g. post-ingest hooks) that want an immediate
// sweep rather than waiting for the next tick.
func (sw *Sweeper) SweepNamespace(namespace string) {
	ns := store.NormalizeNamespace(namespace)
	cfg, ok := sw.config(ns)
	if !ok {
		return
	}
	sw.sweepNamespace(ns, cfg)
}

func (sw *Sweeper) sweepNamespace(ns string, cfg model.RetentionConfig) {
	now := time.Now()

	if cfg.MaxAgeSeconds > 0 {
		maxAge := time.Duration(cfg.MaxAgeSeconds) * time.Second
		removed := sw.store.MatchAndDelete(func(rec model.DocumentRecord) bool {
			return rec.Namespace == ns && now.Sub(rec.IngestedAt) > maxAge
		})
		if len(removed) > 0 {
			sw.logger.Info("retention: purged aged-out documents", "namespace", ns, "count", len(removed))
		}
	}

	if cfg.MaxItems <= 0 {
		return
	}
	docs := sw.store.Snapshot(ns)
	if len(docs) <= cfg.MaxItems {
		return
	}
	excess := len(docs) - cfg.MaxItems
	victims := selectPurgeVictims(docs, cfg.PurgeStrategy, excess, now, cfg.HalfLifeSeconds)
	if len(victims) == 0 {
		return
	}
	victimSet := make(map[string]bool, len(victims))
	for _, v := range victims {
		victimSet[v] = true
	}
	removed := sw.store.MatchAndDelete(func(rec model.DocumentRecord) bool {
		return rec.Namespace == ns && victimSet[rec.DocID]
	})
	if len(removed) > 0 {
		sw.logger.Info("retention: purged over-capacity documents", "namespace", ns, "count", len(removed), "strategy", cfg.PurgeStrategy)
	}
}

// selectPurgeVictims returns the doc_ids of the `count` lowest-priority
// documents under strategy.
func selectPurgeVictims(docs []model.DocumentRecord, strategy model.PurgeStrategy, count int, now time.Time, halfLife int64) []string {
	if count <= 0 {
		return nil
	}
	if count > len(docs) {
		count = len(docs)
	}
	sorted := make([]model.DocumentRecord, len(docs))
	copy(sorted, docs)

	switch strategy {
	case model.PurgeLowestScore:
		sort.Slice(sorted, func(i, j int) bool {
			return purgeScore(sorted[i], now, halfLife) < purgeScore(sorted[j], now, halfLife)
		})
	default: // model.PurgeOldest and unset both purge oldest-first
		sort.Slice(sorted, func(i, j int) bool {
			return sorted[i].IngestedAt.Before(sorted[j].IngestedAt)
		})
	}

	out := make([]string, 0, count)
	for i := 0; i < count; i++ {
		out = append(out, sorted[i].DocID)
	}
	return out
}

// purgeScore is recency_weight x trust_weight, independent of any query,
// used only to rank candidates for LowestScore eviction.
func purgeScore(rec model.DocumentRecord, now time.Time, halfLife int64) float64 {
	age := now.Sub(rec.IngestedAt).Seconds()
	return scoring.RecencyWeight(age, halfLife) * float64(rec.SourceRef.TrustLevel)
}
