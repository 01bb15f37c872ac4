package tissue

import (
	"math"
	"math/rand/v2"
)

// BloodParticle is a short-lived droplet.
type BloodParticle struct {
	Position Vec3    `json:"position"`
	Velocity Vec3    `json:"velocity"`
	Life     float64 `json:"life"` // 1.0 at spawn, removed at <= 0
	Size     float64 `json:"size"`
}

// ParticleView is the render-facing part of a particle.
type ParticleView struct {
	Position Vec3    `json:"position"`
	Life     float64 `json:"life"`
	Size     float64 `json:"size"`
}

// BloodSystem emits and integrates blood particles independently of any body.
// Particles are kept oldest first and capped at MaxBloodParticles.
type BloodSystem struct {
	particles []BloodParticle
	rng       *rand.Rand
}

func NewBloodSystem(rng *rand.Rand) *BloodSystem {
	if rng == nil {
		rng = rand.New(rand.NewPCG(3, 4))
	}
	return &BloodSystem{
		particles: make([]BloodParticle, 0, 64),
		rng:       rng,
	}
}

// Emit spawns floor(intensity*ParticlesPerIntensity) particles at origin,
// moving along force with a random speed factor and perturbation.
// Returns the number spawned.
func (s *BloodSystem) Emit(origin, force Vec3, intensity float64) int {
	if intensity <= 0 || math.IsNaN(intensity) || !origin.IsFinite() || !force.IsFinite() {
		return 0
	}
	// Clamp before converting: out-of-range float to int is undefined.
	f := math.Floor(intensity * ParticlesPerIntensity)
	if f > MaxBloodParticles {
		f = MaxBloodParticles
	}
	count := int(f)
	if count <= 0 {
		return 0
	}

	base := force.Times(BloodForceScale)
	for i := 0; i < count; i++ {
		speed := BloodMinSpeedFactor + s.rng.Float64()*(BloodMaxSpeedFactor-BloodMinSpeedFactor)
		s.particles = append(s.particles, BloodParticle{
			Position: origin.Plus(s.randomVec(BloodJitter)),
			Velocity: base.Times(speed).Plus(s.randomVec(BloodPerturbation)),
			Life:     1.0,
			Size:     BloodBaseSize * (0.5 + s.rng.Float64()),
		})
	}

	if excess := len(s.particles) - MaxBloodParticles; excess > 0 {
		s.particles = append(s.particles[:0], s.particles[excess:]...)
	}
	return count
}

// randomVec returns a vector with each component uniform in [-scale, scale].
func (s *BloodSystem) randomVec(scale float64) Vec3 {
	return NewVec3(
		(s.rng.Float64()*2-1)*scale,
		(s.rng.Float64()*2-1)*scale,
		(s.rng.Float64()*2-1)*scale,
	)
}

// Tick applies gravity, integrates, decays life and drops dead particles.
func (s *BloodSystem) Tick(dt float64) {
	if dt <= 0 || math.IsNaN(dt) || math.IsInf(dt, 0) {
		return
	}
	decay := dt / BloodLifetime
	kept := s.particles[:0]
	for _, p := range s.particles {
		p.Velocity.Y -= BloodGravity * dt
		p.Position = p.Position.Plus(p.Velocity.Times(dt))
		p.Life -= decay
		if p.Life <= 0 {
			continue
		}
		kept = append(kept, p)
	}
	s.particles = kept
}

func (s *BloodSystem) Count() int { return len(s.particles) }

// Particles returns a copy of the live particles, oldest first.
func (s *BloodSystem) Particles() []BloodParticle {
	out := make([]BloodParticle, len(s.particles))
	copy(out, s.particles)
	return out
}

func (s *BloodSystem) Snapshot() []ParticleView {
	out := make([]ParticleView, len(s.particles))
	for i, p := range s.particles {
		out[i] = ParticleView{Position: p.Position, Life: p.Life, Size: p.Size}
	}
	return out
}

func (s *BloodSystem) Clear() {
	s.particles = s.particles[:0]
}
