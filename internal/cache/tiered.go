package cache

import (
	"time"

	"github.com/afterlands/langforge/internal/template"
)

// Config holds the L1/L3 sizing from spec.md §6
// (cache.l1.max-size, cache.l1.ttl-seconds, cache.l3.max-size, cache.l3.ttl-seconds).
type Config struct {
	L1MaxSize int
	L1TTL     time.Duration
	L3MaxSize int
	L3TTL     time.Duration
}

// Tiered bundles L1 (resolved strings) and L3 (compiled templates).
// The Registry is L2 and lives outside this package.
type Tiered struct {
	L1 *Tier[string]
	L3 *Tier[template.CompiledTemplate]
}

func NewTiered(cfg Config) *Tiered {
	return &Tiered{
		L1: NewTier[string](cfg.L1MaxSize, cfg.L1TTL, AccessTTL),
		L3: NewTier[template.CompiledTemplate](cfg.L3MaxSize, cfg.L3TTL, WriteTTL),
	}
}

// InvalidateNamespace clears both tiers for ns — the atomic-reload
// primitive a namespace reload must call (spec.md §4.D, §4.F step 4).
func (c *Tiered) InvalidateNamespace(ns string) {
	c.L1.InvalidateNamespace(ns)
	c.L3.InvalidateNamespace(ns)
}

func (c *Tiered) InvalidateAll() {
	c.L1.InvalidateAll()
	c.L3.InvalidateAll()
}
