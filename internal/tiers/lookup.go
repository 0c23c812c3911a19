package tiers

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	xerrors "repurpose-service/internal/pkg/errors"
)

// featureMaps holds a flattened, read-only view of each tier's Features,
// built once at init. The typed structs stay the source of truth; the maps
// exist so callers can ask about features by dotted path
// ("scheduling.posts_per_month") the same way the API names them.
var featureMaps [MaxTier]map[string]interface{}

func init() {
	for i, cfg := range catalog {
		raw, err := json.Marshal(cfg.Features)
		if err != nil {
			panic("tiers: marshal catalog: " + err.Error())
		}
		var m map[string]interface{}
		if err := json.Unmarshal(raw, &m); err != nil {
			panic("tiers: unmarshal catalog: " + err.Error())
		}
		featureMaps[i] = m
	}
}

func resolve(tier int, featurePath string) (interface{}, bool) {
	if tier < MinTier || tier > MaxTier {
		return nil, false
	}
	var current interface{} = featureMaps[tier-1]
	for _, part := range strings.Split(featurePath, ".") {
		node, ok := current.(map[string]interface{})
		if !ok {
			return nil, false
		}
		current, ok = node[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// HasFeature reports whether a feature (by dotted path) is available for a
// tier. A descriptor object answers via its "enabled" flag; a leaf value
// answers by being present and not false. Absent paths and invalid tiers
// are false.
func HasFeature(tier int, featurePath string) bool {
	v, ok := resolve(tier, featurePath)
	if !ok || v == nil {
		return false
	}
	if node, isMap := v.(map[string]interface{}); isMap {
		enabled, has := node["enabled"].(bool)
		return has && enabled
	}
	if b, isBool := v.(bool); isBool {
		return b
	}
	return true
}

// FeatureValue returns the raw value at a dotted path, or nil when absent.
func FeatureValue(tier int, featurePath string) interface{} {
	v, ok := resolve(tier, featurePath)
	if !ok {
		return nil
	}
	return v
}

// FeatureMap returns a tier's full flattened feature view. The result is a
// fresh copy; mutating it does not touch the catalog.
func FeatureMap(tier int) (map[string]interface{}, error) {
	if tier < MinTier || tier > MaxTier {
		return nil, fmt.Errorf("%w: %d", xerrors.ErrInvalidTier, tier)
	}
	raw, err := json.Marshal(featureMaps[tier-1])
	if err != nil {
		return nil, err
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// MinimumTierFor returns the lowest tier that has a feature, or 0 when no
// tier does. Used for upgrade messaging on denials.
func MinimumTierFor(featurePath string) int {
	for tier := MinTier; tier <= MaxTier; tier++ {
		if HasFeature(tier, featurePath) {
			return tier
		}
	}
	return 0
}

// Paths returns the sorted union of all leaf feature paths across tiers.
func Paths() []string {
	seen := map[string]struct{}{}
	for i := range featureMaps {
		collectPaths("", featureMaps[i], seen)
	}
	out := make([]string, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func collectPaths(prefix string, node map[string]interface{}, into map[string]struct{}) {
	for key, v := range node {
		path := key
		if prefix != "" {
			path = prefix + "." + key
		}
		if child, isMap := v.(map[string]interface{}); isMap {
			into[path] = struct{}{}
			collectPaths(path, child, into)
			continue
		}
		into[path] = struct{}{}
	}
}
