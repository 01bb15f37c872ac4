package tissue

import (
	"errors"
	"fmt"
	"sort"
)

var ErrUnknownMaterial = errors.New("unknown material")

// MaterialProfile holds the physical constants for one tissue type.
type MaterialProfile struct {
	Name          string  `json:"name"`
	Density       float64 `json:"density"`
	Elasticity    float64 `json:"elasticity"`     // spring stiffness multiplier
	Damping       float64 `json:"damping"`
	TearThreshold float64 `json:"tear_threshold"` // cutting force above which links sever
	Bloodiness    float64 `json:"bloodiness"`     // 0-1, scales particle count
	Hardness      float64 `json:"hardness"`       // 0-1, scales required cutting force
	MaxDamage     float64 `json:"max_damage"`
	HealingRate   float64 `json:"healing_rate"` // damage units healed per second
}

const (
	MaterialSkin   = "skin"
	MaterialMuscle = "muscle"
	MaterialOrgan  = "organ"
	MaterialBone   = "bone"
	MaterialFat    = "fat"
)

// MaterialRegistry is an immutable lookup of named material profiles.
// The zero value is empty; use DefaultMaterials for the built-in set.
type MaterialRegistry struct {
	profiles map[string]MaterialProfile
}

// NewMaterialRegistry copies the given profiles into a new registry.
func NewMaterialRegistry(profiles ...MaterialProfile) MaterialRegistry {
	m := make(map[string]MaterialProfile, len(profiles))
	for _, p := range profiles {
		m[p.Name] = p
	}
	return MaterialRegistry{profiles: m}
}

// DefaultMaterials returns the five built-in tissue profiles.
func DefaultMaterials() MaterialRegistry {
	return NewMaterialRegistry(
		MaterialProfile{Name: MaterialSkin, Density: 1.10, Elasticity: 0.80, Damping: 0.30, TearThreshold: 15, Bloodiness: 0.6, Hardness: 0.40, MaxDamage: 1.0, HealingRate: 0.08},
		MaterialProfile{Name: MaterialMuscle, Density: 1.06, Elasticity: 0.60, Damping: 0.40, TearThreshold: 25, Bloodiness: 0.8, Hardness: 0.60, MaxDamage: 1.0, HealingRate: 0.05},
		MaterialProfile{Name: MaterialOrgan, Density: 1.05, Elasticity: 0.40, Damping: 0.50, TearThreshold: 10, Bloodiness: 0.9, Hardness: 0.30, MaxDamage: 1.0, HealingRate: 0.04},
		MaterialProfile{Name: MaterialBone, Density: 1.90, Elasticity: 0.95, Damping: 0.10, TearThreshold: 80, Bloodiness: 0.2, Hardness: 0.95, MaxDamage: 1.0, HealingRate: 0.01},
		MaterialProfile{Name: MaterialFat, Density: 0.90, Elasticity: 0.30, Damping: 0.60, TearThreshold: 8, Bloodiness: 0.3, Hardness: 0.20, MaxDamage: 1.0, HealingRate: 0.06},
	)
}

// Lookup returns the named profile.
func (r MaterialRegistry) Lookup(name string) (MaterialProfile, error) {
	p, ok := r.profiles[name]
	if !ok {
		return MaterialProfile{}, fmt.Errorf("%w: %q", ErrUnknownMaterial, name)
	}
	return p, nil
}

// Names returns the registered material names in sorted order.
func (r MaterialRegistry) Names() []string {
	names := make([]string, 0, len(r.profiles))
	for n := range r.profiles {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// All returns every profile sorted by name.
func (r MaterialRegistry) All() []MaterialProfile {
	out := make([]MaterialProfile, 0, len(r.profiles))
	for _, n := range r.Names() {
		out = append(out, r.profiles[n])
	}
	return out
}
