package tissue

import "math/rand/v2"

// BodyParams describes a body to construct.
type BodyParams struct {
	Origin     Vec3           `json:"origin"`
	Size       Vec3           `json:"size"`
	Resolution GridResolution `json:"resolution"`
	Material   string         `json:"material"`
	Seed       uint64         `json:"seed"`
}

// Simulation bundles one deformable body with its damage tracker, blood
// system and interaction resolver. Every random draw comes from one PCG
// stream, so the same seed and the same call sequence reproduce the same
// state within a process. It is not safe for concurrent use.
type Simulation struct {
	params   BodyParams
	body     *Body
	tracker  *DamageTracker
	blood    *BloodSystem
	resolver *Resolver
	frame    uint64
}

// NewSimulation looks up the material in registry and constructs the body.
func NewSimulation(registry MaterialRegistry, p BodyParams) (*Simulation, error) {
	material, err := registry.Lookup(p.Material)
	if err != nil {
		return nil, err
	}
	body, err := NewBody(p.Origin, p.Size, p.Resolution, material)
	if err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewPCG(p.Seed, p.Seed^0x9e3779b97f4a7c15))
	tracker := NewDamageTracker(body, rng)
	blood := NewBloodSystem(rng)

	return &Simulation{
		params:   p,
		body:     body,
		tracker:  tracker,
		blood:    blood,
		resolver: NewResolver(body, tracker, blood),
	}, nil
}

// Step advances physics, healing and particles by dt.
func (s *Simulation) Step(dt float64) {
	s.body.Step(dt)
	s.tracker.Tick(dt)
	s.blood.Tick(dt)
	s.frame++
}

// ApplyToolContact resolves one contact; the result's Cut field reports
// whether the tissue was severed.
func (s *Simulation) ApplyToolContact(c ToolContact) (InteractionResult, error) {
	return s.resolver.Resolve(c)
}

func (s *Simulation) Snapshot() []NodeState { return s.body.Snapshot() }
func (s *Simulation) DamageMarkers() []MarkerView { return s.tracker.Markers() }
func (s *Simulation) BloodSnapshot() []ParticleView { return s.blood.Snapshot() }
func (s *Simulation) DamageLevels() []float64 { return s.tracker.Levels() }
func (s *Simulation) RegionDamage() RegionDamage { return s.tracker.Region() }
func (s *Simulation) Body() *Body { return s.body }
func (s *Simulation) Params() BodyParams { return s.params }
func (s *Simulation) Frame() uint64 { return s.frame }
func (s *Simulation) Time() float64 { return s.tracker.Clock() }
func (s *Simulation) BloodCount() int { return s.blood.Count() }
func (s *Simulation) ActiveLinks() int { return s.body.ActiveLinkCount() }
