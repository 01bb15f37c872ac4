package viewer

import (
	"strings"
	"testing"

	"github.com/gdamore/tcell/v2"
	"github.com/suturelab/tissuesim/internal/tissue"
)

func setupViewer(t *testing.T) (*Viewer, tcell.SimulationScreen) {
	t.Helper()
	screen := tcell.NewSimulationScreen("UTF-8")
	if err := screen.Init(); err != nil {
		t.Fatalf("screen init: %v", err)
	}
	screen.SetSize(80, 24)
	t.Cleanup(screen.Fini)

	sim, err := tissue.NewSimulation(tissue.DefaultMaterials(), tissue.BodyParams{
		Size:       tissue.NewVec3(1, 1, 1),
		Resolution: tissue.GridResolution{X: 5, Y: 5, Z: 5},
		Material:   tissue.MaterialSkin,
		Seed:       42,
	})
	if err != nil {
		t.Fatalf("NewSimulation: %v", err)
	}
	return New(screen, sim), screen
}

func key(k tcell.Key) *tcell.EventKey {
	return tcell.NewEventKey(k, 0, tcell.ModNone)
}

func runeKey(r rune) *tcell.EventKey {
	return tcell.NewEventKey(tcell.KeyRune, r, tcell.ModNone)
}

// row returns the text on screen row y.
func row(screen tcell.SimulationScreen, y int) string {
	cells, w, _ := screen.GetContents()
	var b strings.Builder
	for x := 0; x < w; x++ {
		c := cells[y*w+x]
		if len(c.Runes) == 0 {
			b.WriteRune(' ')
			continue
		}
		b.WriteRune(c.Runes[0])
	}
	return b.String()
}

func TestToolKeys(t *testing.T) {
	v, _ := setupViewer(t)
	tests := []struct {
		r    rune
		want tissue.ToolType
	}{
		{'x', tissue.ToolScissors},
		{'f', tissue.ToolForceps},
		{'n', tissue.ToolNeedle},
		{'p', tissue.ToolProbe},
		{'s', tissue.ToolScalpel},
	}
	for _, tt := range tests {
		if !v.HandleEvent(runeKey(tt.r)) {
			t.Fatalf("%q should not quit", tt.r)
		}
		if v.Tool() != tt.want {
			t.Errorf("%q: expected %s, got %s", tt.r, tt.want, v.Tool())
		}
	}
}

func TestQuitKeys(t *testing.T) {
	v, _ := setupViewer(t)
	for _, ev := range []*tcell.EventKey{runeKey('q'), key(tcell.KeyEscape), key(tcell.KeyCtrlC)} {
		if v.HandleEvent(ev) {
			t.Errorf("%v should quit", ev.Name())
		}
	}
}

func TestCursorStaysOnGrid(t *testing.T) {
	v, _ := setupViewer(t)
	if x, z := v.Cursor(); x != 2 || z != 2 {
		t.Fatalf("expected cursor to start centred, got (%d,%d)", x, z)
	}
	for i := 0; i < 10; i++ {
		v.HandleEvent(key(tcell.KeyLeft))
		v.HandleEvent(key(tcell.KeyUp))
	}
	if x, z := v.Cursor(); x != 0 || z != 0 {
		t.Errorf("expected (0,0), got (%d,%d)", x, z)
	}
	for i := 0; i < 10; i++ {
		v.HandleEvent(key(tcell.KeyRight))
		v.HandleEvent(key(tcell.KeyDown))
	}
	if x, z := v.Cursor(); x != 4 || z != 4 {
		t.Errorf("expected (4,4), got (%d,%d)", x, z)
	}
}

func TestVelocityBounds(t *testing.T) {
	v, _ := setupViewer(t)
	for i := 0; i < 40; i++ {
		v.HandleEvent(runeKey('+'))
	}
	if v.Velocity() != maxVelocity {
		t.Errorf("expected velocity capped at %v, got %v", maxVelocity, v.Velocity())
	}
	for i := 0; i < 40; i++ {
		v.HandleEvent(runeKey('-'))
	}
	if v.Velocity() != velocityStep {
		t.Errorf("expected velocity floor %v, got %v", velocityStep, v.Velocity())
	}
}

func TestStrikeCutsUnderCursor(t *testing.T) {
	v, screen := setupViewer(t)
	links := v.sim.ActiveLinks()

	// 50 * 0.4 * 1 = 20, above the skin tear threshold of 15
	v.HandleEvent(runeKey(' '))

	if v.sim.ActiveLinks() >= links {
		t.Errorf("expected links to be severed, still %d of %d", v.sim.ActiveLinks(), links)
	}
	if len(v.sim.DamageMarkers()) != 1 {
		t.Errorf("expected 1 marker, got %d", len(v.sim.DamageMarkers()))
	}
	if !strings.Contains(v.status, "cut") {
		t.Errorf("unexpected status %q", v.status)
	}

	// Step the cursor off the wound so the cell itself is drawn. Blood
	// lands on a cell's first column, so read the second.
	v.HandleEvent(key(tcell.KeyRight))
	v.Draw()
	grid := []rune(row(screen, gridTop+2))
	if got := grid[2*cellWidth+1]; got != '▒' {
		t.Errorf("expected severed glyph at the wound, got %q in %q", got, string(grid))
	}
	if got := grid[1]; got != '█' {
		t.Errorf("expected intact glyph away from the wound, got %q", got)
	}
}

func TestDrawShowsMapAndStatus(t *testing.T) {
	v, screen := setupViewer(t)
	v.HandleEvent(runeKey('f'))
	v.Tick()
	v.Draw()

	if header := row(screen, 0); !strings.Contains(header, "skin") || !strings.Contains(header, "frame 1") {
		t.Errorf("unexpected header %q", header)
	}

	grid := row(screen, gridTop+2)
	if got := []rune(grid)[2*cellWidth]; got != '+' {
		t.Errorf("expected cursor at centre, got %q in %q", got, grid)
	}
	if got := []rune(grid)[0]; got != '█' {
		t.Errorf("expected intact tissue glyph, got %q", got)
	}

	if status := row(screen, gridTop+5+1); !strings.Contains(status, "forceps") {
		t.Errorf("unexpected status row %q", status)
	}
}
