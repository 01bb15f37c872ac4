package tissue

// Simulation constants for the deformable tissue lattice.
// Values are tuned for stability at the fixed 60 Hz step.

const (
	FixedTimestep = 1.0 / 60.0

	StiffnessScale = 50.0  // link stiffness = elasticity * StiffnessScale
	DampingScale   = 0.5   // link damping = damping * DampingScale
	MassScale      = 100.0 // node mass = density * MassScale / node count
	MinNodeMass    = 0.05

	MaxLinkForce           = 1000.0
	MaxDisplacementPerStep = 0.25 // fraction of spacing
	MinLinkLength          = 1e-9

	// Interaction resolver
	ReferenceVelocity   = 1.0
	MaxVelocityFactor   = 3.0
	BruiseRatio         = 0.3
	CutLengthScale      = 0.005
	MaxCutLength        = 0.3
	CutWidthFactor      = 0.5 // fraction of spacing
	ContactRadiusFactor = 2.0 // fraction of spacing
	SeveritySpan        = 3.0 // cuttingForce / (tearThreshold * SeveritySpan) = severity
	BleedIntensityCap   = 2.0

	// Damage & healing
	MaxDamageMarkers      = 20
	MarkerHealingAge      = 10.0
	MarkerMaxAge          = 30.0
	DamagedThreshold      = 0.01
	DamageDisplacement    = 0.15 // fraction of spacing at full damage
	RestoreStiffness      = 4.0  // restoring pull = elasticity * RestoreStiffness
	ProximityFalloffFloor = 0.25

	// Blood particles
	MaxBloodParticles     = 1000
	ParticlesPerIntensity = 20
	BloodLifetime         = 2.0
	BloodGravity          = 9.81
	BloodForceScale       = 0.02
	BloodMinSpeedFactor   = 0.1
	BloodMaxSpeedFactor   = 1.0
	BloodPerturbation     = 0.3
	BloodJitter           = 0.005
	BloodBaseSize         = 0.01
)
