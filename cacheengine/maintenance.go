package cacheengine

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
)

// Purge status values persisted in the KV store for UI polling.
const (
	PurgeStatusIdle    = "idle"
	PurgeStatusPurging = "purging"
)

// UsageStats is the per-generation cache footprint. Sub-totals that fail to
// compute are reported as zero; accounting is diagnostic, not
// correctness-critical.
type UsageStats struct {
	Generation int64 `json:"generation"`
	ImageBytes int64 `json:"image_bytes"`
	ImageFiles int64 `json:"image_files"`
	APIBytes   int64 `json:"api_bytes"`
	APIEntries int64 `json:"api_entries"`
	TotalBytes int64 `json:"total_bytes"`
}

// PurgeResult reports what a purge removed.
type PurgeResult struct {
	Generation int64 `json:"generation"`
	ImageBytes int64 `json:"image_bytes"`
	ImageFiles int64 `json:"image_files"`
	APIEntries int64 `json:"api_entries"`
}

// MaintenanceMeta is the purge status record.
type MaintenanceMeta struct {
	Status       string `json:"status"`
	LastPurgedAt string `json:"last_purged_at"`
}

// Maintenance computes usage for and purges generation-scoped cache data.
type Maintenance struct {
	store    Store
	registry *Registry
	rootDir  string
}

// Usage walks the generation's blob directory and scans its structured-cache
// namespace. Never fails: unreadable sub-totals come back zero.
func (m *Maintenance) Usage(ctx context.Context, generation int64) *UsageStats {
	stats := &UsageStats{Generation: generation}

	genDir := filepath.Join(m.rootDir, fmt.Sprintf("g%d", generation))
	err := filepath.WalkDir(genDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if info, err := d.Info(); err == nil {
			stats.ImageBytes += info.Size()
			stats.ImageFiles++
		}
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		logrus.Warnf("[CACHE] usage walk failed for g%d: %v", generation, err)
		stats.ImageBytes, stats.ImageFiles = 0, 0
	}

	keys, err := m.store.ScanPattern(ctx, jsonEntryPattern(generation))
	if err != nil {
		logrus.Warnf("[CACHE] usage scan failed for g%d: %v", generation, err)
	} else {
		for _, k := range keys {
			n, err := m.store.StrLen(ctx, k)
			if err != nil {
				continue
			}
			stats.APIBytes += n
			stats.APIEntries++
		}
	}

	stats.TotalBytes = stats.ImageBytes + stats.APIBytes
	return stats
}

// PurgeActive deletes the active generation's blob directory and KV entries.
// The generation number is unchanged; new writes repopulate it immediately.
func (m *Maintenance) PurgeActive(ctx context.Context) *PurgeResult {
	gen := m.registry.CurrentGeneration(ctx)
	return m.purgeGeneration(ctx, gen)
}

// DisableAndPurge advances the generation so all in-flight and future lookups
// target a fresh, empty namespace, then purges the generation it orphaned.
// Writes racing the purge have already landed under the new generation.
func (m *Maintenance) DisableAndPurge(ctx context.Context) *PurgeResult {
	previous := m.registry.CurrentGeneration(ctx)
	next := m.registry.AdvanceGeneration(ctx)
	if next <= previous {
		// Advance failed open; purge the best-known generation in place.
		logrus.Warnf("[CACHE] generation advance degraded (g%d -> g%d), purging in place", previous, next)
		return m.purgeGeneration(ctx, previous)
	}
	return m.purgeGeneration(ctx, previous)
}

// Meta reads the purge status fields for UI polling.
func (m *Maintenance) Meta(ctx context.Context) *MaintenanceMeta {
	meta := &MaintenanceMeta{Status: PurgeStatusIdle}
	if status, ok, err := m.store.Get(ctx, keyPurgeStatus); err == nil && ok {
		meta.Status = status
	}
	if last, ok, err := m.store.Get(ctx, keyLastPurgedAt); err == nil && ok {
		meta.LastPurgedAt = last
	}
	return meta
}

func (m *Maintenance) purgeGeneration(ctx context.Context, generation int64) *PurgeResult {
	result := &PurgeResult{Generation: generation}

	if err := m.store.Set(ctx, keyPurgeStatus, PurgeStatusPurging, 0); err != nil {
		logrus.Warnf("[CACHE] purge status write failed: %v", err)
	}

	// Count before deleting so the result reflects what was reclaimed.
	usage := m.Usage(ctx, generation)
	result.ImageBytes = usage.ImageBytes
	result.ImageFiles = usage.ImageFiles
	result.APIEntries = usage.APIEntries

	genDir := filepath.Join(m.rootDir, fmt.Sprintf("g%d", generation))
	if err := os.RemoveAll(genDir); err != nil {
		logrus.Warnf("[CACHE] blob directory removal failed for g%d: %v", generation, err)
	}

	for _, pattern := range []string{blobMetaPattern(generation), jsonEntryPattern(generation)} {
		keys, err := m.store.ScanPattern(ctx, pattern)
		if err != nil {
			logrus.Warnf("[CACHE] purge scan failed for %s: %v", pattern, err)
			continue
		}
		if len(keys) == 0 {
			continue
		}
		if _, err := m.store.Del(ctx, keys...); err != nil {
			logrus.Warnf("[CACHE] purge delete failed for %s: %v", pattern, err)
		}
	}

	if err := m.store.Set(ctx, keyLastPurgedAt, time.Now().UTC().Format(time.RFC3339), 0); err != nil {
		logrus.Warnf("[CACHE] last-purged write failed: %v", err)
	}
	if err := m.store.Set(ctx, keyPurgeStatus, PurgeStatusIdle, 0); err != nil {
		logrus.Warnf("[CACHE] purge status write failed: %v", err)
	}

	logrus.Infof("[CACHE] purged g%d: %d files, %d bytes, %d api entries",
		generation, result.ImageFiles, result.ImageBytes, result.APIEntries)
	return result
}
