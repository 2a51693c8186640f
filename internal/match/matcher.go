// Package match reconciles SKU naming between the availability catalog
// and the public order catalog: the same hardware is listed under
// different plan codes in each, so equivalence is decided on normalized
// configuration fingerprints rather than identifiers.
package match

import (
	"context"
	"strings"

	"ecosniper/internal/fingerprint"
	applog "ecosniper/internal/log"
	"ecosniper/internal/ovhapi"
)

// CatalogProvider supplies the target catalog's plans.
type CatalogProvider interface {
	Plans(ctx context.Context) ([]ovhapi.CatalogPlan, error)
}

type Matcher struct {
	Catalog CatalogProvider
}

func New(catalog CatalogProvider) *Matcher { return &Matcher{Catalog: catalog} }

// FindEquivalentPlans returns every plan whose declared memory and
// storage options can produce the given fingerprint. Each plan is
// reported once; the first matching (memory, storage) pairing per plan
// suffices. A catalog failure is retryable, not fatal: it yields an
// empty result.
func (m *Matcher) FindEquivalentPlans(ctx context.Context, fp fingerprint.Fingerprint) []string {
	plans, err := m.Catalog.Plans(ctx)
	if err != nil {
		applog.Warn("matcher", "catalog unreachable, no matches this round", map[string]any{"error": err.Error()})
		return nil
	}

	var matched []string
	for _, plan := range plans {
		if planHasFingerprint(plan, fp) {
			matched = append(matched, plan.PlanCode)
		}
	}
	return matched
}

// planHasFingerprint checks the bound axes only: an empty fingerprint
// side accepts any addon, same as MatchSelectedConfig at purchase time.
func planHasFingerprint(plan ovhapi.CatalogPlan, fp fingerprint.Fingerprint) bool {
	memoryOK, storageOK := fp.Memory == "", fp.Storage == ""
	for _, fam := range plan.AddonFamilies {
		switch strings.ToLower(fam.Name) {
		case "memory":
			if memoryOK {
				continue
			}
			for _, addon := range fam.Addons {
				if fingerprint.Normalize(addon) == fp.Memory {
					memoryOK = true
					break
				}
			}
		case "storage":
			if storageOK {
				continue
			}
			for _, addon := range fam.Addons {
				if fingerprint.Normalize(addon) == fp.Storage {
					storageOK = true
					break
				}
			}
		}
		if memoryOK && storageOK {
			break
		}
	}
	return memoryOK && storageOK
}

// PurchaseOptions resolves the target plan's own addon codes for the
// bound fingerprint: the user stored the source catalog's codes, the
// order must carry the target catalog's. First matching addon per axis.
func (m *Matcher) PurchaseOptions(ctx context.Context, planCode string, fp fingerprint.Fingerprint) []string {
	plans, err := m.Catalog.Plans(ctx)
	if err != nil {
		applog.Warn("matcher", "catalog unreachable, ordering without explicit options", map[string]any{"plan": planCode, "error": err.Error()})
		return nil
	}

	var opts []string
	for _, plan := range plans {
		if plan.PlanCode != planCode {
			continue
		}
		for _, fam := range plan.AddonFamilies {
			switch strings.ToLower(fam.Name) {
			case "memory":
				if fp.Memory == "" {
					continue
				}
				for _, addon := range fam.Addons {
					if fingerprint.Normalize(addon) == fp.Memory {
						opts = append(opts, addon)
						break
					}
				}
			case "storage":
				if fp.Storage == "" {
					continue
				}
				for _, addon := range fam.Addons {
					if fingerprint.Normalize(addon) == fp.Storage {
						opts = append(opts, addon)
						break
					}
				}
			}
		}
		break
	}
	return opts
}

// MatchSelectedConfig decides at purchase time whether a catalog
// configuration row is the one the user picked. Memory compares the
// first two dash segments (the catalog row carries frequency/timing
// suffixes); storage compares by prefix (catalog rows are consistently
// truncated). An empty user side accepts any value on that axis.
func MatchSelectedConfig(userMemory, userStorage, catalogMemory, catalogStorage string) bool {
	memoryMatch := true
	if userMemory != "" {
		if catalogMemory == "" {
			memoryMatch = false
		} else {
			memoryMatch = headSegments(userMemory, 2) == headSegments(catalogMemory, 2)
		}
	}

	storageMatch := true
	if userStorage != "" {
		if catalogStorage == "" {
			storageMatch = false
		} else {
			storageMatch = strings.HasPrefix(userStorage, catalogStorage)
		}
	}

	return memoryMatch && storageMatch
}

func headSegments(s string, n int) string {
	parts := strings.Split(s, "-")
	if len(parts) > n {
		parts = parts[:n]
	}
	return strings.Join(parts, "-")
}
