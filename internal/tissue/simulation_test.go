package tissue

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/pmezard/go-difflib/difflib"
)

// runScript drives a fresh simulation through a fixed contact sequence and
// renders the final state as text.
func runScript(t *testing.T, seed uint64) string {
	t.Helper()
	sim, err := NewSimulation(DefaultMaterials(), BodyParams{
		Size:       NewVec3(1, 1, 1),
		Resolution: GridResolution{5, 5, 5},
		Material:   MaterialMuscle,
		Seed:       seed,
	})
	if err != nil {
		t.Fatalf("NewSimulation: %v", err)
	}

	contacts := []ToolContact{
		{Tool: ToolScalpel, ImpactVelocity: 2.5, Point: NewVec3(0, 0.5, 0), Normal: NewVec3(0, 1, 0)},
		{Tool: ToolNeedle, ImpactVelocity: 3, Point: NewVec3(0.25, 0.5, 0.25), Normal: NewVec3(0, 1, 0)},
		{Tool: ToolScissors, ImpactVelocity: 1.5, Point: NewVec3(0.5, 0, 0), Normal: NewVec3(1, 0, 0)},
	}
	for i, c := range contacts {
		if _, err := sim.ApplyToolContact(c); err != nil {
			t.Fatalf("contact %d: %v", i, err)
		}
		for s := 0; s < 30; s++ {
			sim.Step(FixedTimestep)
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "frame %d links %d blood %d\n", sim.Frame(), sim.ActiveLinks(), sim.BloodCount())
	for i, n := range sim.Snapshot() {
		fmt.Fprintf(&b, "node %d %.12f %.12f %.12f\n", i, n.Position.X, n.Position.Y, n.Position.Z)
	}
	for _, m := range sim.DamageMarkers() {
		fmt.Fprintf(&b, "marker %.12f %.6f\n", m.Severity, m.Age)
	}
	for _, p := range sim.BloodSnapshot() {
		fmt.Fprintf(&b, "blood %.12f %.12f %.12f\n", p.Position.X, p.Position.Y, p.Position.Z)
	}
	return b.String()
}

func TestSameSeedIsDeterministic(t *testing.T) {
	want := runScript(t, 99)
	got := runScript(t, 99)

	if got != want {
		diff := difflib.UnifiedDiff{
			A:        difflib.SplitLines(want),
			B:        difflib.SplitLines(got),
			FromFile: "First",
			ToFile:   "Second",
			Context:  0,
		}
		text, _ := difflib.GetUnifiedDiffString(diff)
		t.Fatalf("runs with the same seed diverged:\n%s", text)
	}
}

func TestDifferentSeedsDiverge(t *testing.T) {
	if runScript(t, 1) == runScript(t, 2) {
		t.Errorf("different seeds produced identical blood and damage state")
	}
}

func TestSimulationRejectsUnknownMaterial(t *testing.T) {
	sim, err := NewSimulation(DefaultMaterials(), BodyParams{
		Size:       NewVec3(1, 1, 1),
		Resolution: GridResolution{3, 3, 3},
		Material:   "cartilage",
	})
	if sim != nil || !errors.Is(err, ErrUnknownMaterial) {
		t.Errorf("expected ErrUnknownMaterial, got %v", err)
	}
}

func TestSimulationPropagatesConstructionErrors(t *testing.T) {
	_, err := NewSimulation(DefaultMaterials(), BodyParams{
		Size:       NewVec3(1, 1, 1),
		Resolution: GridResolution{0, 3, 3},
		Material:   MaterialSkin,
	})
	if !errors.Is(err, ErrInvalidResolution) {
		t.Errorf("expected ErrInvalidResolution, got %v", err)
	}
}

func TestStepAdvancesFrameAndClock(t *testing.T) {
	sim := setupSkinSim(t)
	for i := 0; i < 120; i++ {
		sim.Step(FixedTimestep)
	}
	if sim.Frame() != 120 {
		t.Errorf("expected frame 120, got %d", sim.Frame())
	}
	if d := sim.Time() - 2.0; d > 1e-9 || d < -1e-9 {
		t.Errorf("expected clock 2.0, got %v", sim.Time())
	}
}

func TestBloodDrainsAfterCut(t *testing.T) {
	sim := setupSkinSim(t)
	if _, err := sim.ApplyToolContact(topContact(ToolScalpel, 2)); err != nil {
		t.Fatalf("ApplyToolContact: %v", err)
	}
	if sim.BloodCount() == 0 {
		t.Fatalf("expected bleeding")
	}
	for elapsed := 0.0; elapsed < BloodLifetime+0.1; elapsed += FixedTimestep {
		sim.Step(FixedTimestep)
	}
	if sim.BloodCount() != 0 {
		t.Errorf("expected blood to drain, %d particles left", sim.BloodCount())
	}
	if len(sim.DamageMarkers()) != 1 {
		t.Errorf("marker should outlive the blood")
	}
}
