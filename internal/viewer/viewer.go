package viewer

import (
	"fmt"
	"math"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/suturelab/tissuesim/internal/heatmap"
	"github.com/suturelab/tissuesim/internal/tissue"
)

const (
	gridTop       = 2 // rows above the tissue map
	cellWidth     = 2 // columns per lattice cell
	velocityStep  = 0.25
	maxVelocity   = 4.0
	frameInterval = 16 * time.Millisecond
)

var toolKeys = map[rune]tissue.ToolType{
	's': tissue.ToolScalpel,
	'x': tissue.ToolScissors,
	'f': tissue.ToolForceps,
	'n': tissue.ToolNeedle,
	'p': tissue.ToolProbe,
}

// Viewer draws the top layer of a local simulation and lets the user poke
// it with tools from the keyboard.
type Viewer struct {
	screen tcell.Screen
	sim    *tissue.Simulation

	cursorX, cursorZ int
	tool             tissue.ToolType
	velocity         float64
	status           string
}

func New(screen tcell.Screen, sim *tissue.Simulation) *Viewer {
	res := sim.Params().Resolution
	return &Viewer{
		screen:   screen,
		sim:      sim,
		cursorX:  res.X / 2,
		cursorZ:  res.Z / 2,
		tool:     tissue.ToolScalpel,
		velocity: 1.0,
		status:   "arrows move, space cuts, s/x/f/n/p tool, +/- speed, q quits",
	}
}

func (v *Viewer) Tool() tissue.ToolType { return v.tool }

func (v *Viewer) Cursor() (x, z int) { return v.cursorX, v.cursorZ }

func (v *Viewer) Velocity() float64 { return v.velocity }

// HandleEvent applies one terminal event. It returns false when the user
// asked to quit.
func (v *Viewer) HandleEvent(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		switch ev.Key() {
		case tcell.KeyEscape, tcell.KeyCtrlC:
			return false
		case tcell.KeyLeft:
			v.moveCursor(-1, 0)
		case tcell.KeyRight:
			v.moveCursor(1, 0)
		case tcell.KeyUp:
			v.moveCursor(0, -1)
		case tcell.KeyDown:
			v.moveCursor(0, 1)
		case tcell.KeyEnter:
			v.strike()
		case tcell.KeyRune:
			r := ev.Rune()
			if r == 'q' {
				return false
			}
			if tool, ok := toolKeys[r]; ok {
				v.tool = tool
				v.status = fmt.Sprintf("tool: %s", tool)
				return true
			}
			switch r {
			case ' ':
				v.strike()
			case '+', '=':
				v.velocity = math.Min(v.velocity+velocityStep, maxVelocity)
			case '-':
				v.velocity = math.Max(v.velocity-velocityStep, velocityStep)
			}
		}
	case *tcell.EventResize:
		v.screen.Sync()
	}
	return true
}

func (v *Viewer) moveCursor(dx, dz int) {
	res := v.sim.Params().Resolution
	v.cursorX = clampInt(v.cursorX+dx, 0, res.X-1)
	v.cursorZ = clampInt(v.cursorZ+dz, 0, res.Z-1)
}

// strike presses the current tool into the top node under the cursor.
func (v *Viewer) strike() {
	body := v.sim.Body()
	res := body.Resolution()
	node := body.Node(body.Index(v.cursorX, res.Y-1, v.cursorZ))

	result, err := v.sim.ApplyToolContact(tissue.ToolContact{
		Tool:           v.tool,
		ImpactVelocity: v.velocity,
		Point:          node.Position,
		Normal:         tissue.NewVec3(0, 1, 0),
	})
	if err != nil {
		v.status = err.Error()
		return
	}
	switch {
	case result.Cut:
		v.status = fmt.Sprintf("%s cut %d nodes (force %.1f, severity %.2f)", v.tool, len(result.AffectedNodes), result.CuttingForce, result.Severity)
	case result.Bled:
		v.status = fmt.Sprintf("%s bruised (force %.1f)", v.tool, result.CuttingForce)
	default:
		v.status = fmt.Sprintf("%s pressed (force %.1f)", v.tool, result.CuttingForce)
	}
}

// Tick advances one fixed frame.
func (v *Viewer) Tick() {
	v.sim.Step(tissue.FixedTimestep)
}

// Draw renders the damage map, blood and status lines.
func (v *Viewer) Draw() {
	v.screen.Clear()

	body := v.sim.Body()
	res := body.Resolution()
	maxDamage := body.Material().MaxDamage
	levels := v.sim.DamageLevels()

	header := fmt.Sprintf("%s  frame %d  t=%.2fs  tool=%s  v=%.2f  links %d/%d  blood %d",
		body.Material().Name, v.sim.Frame(), v.sim.Time(), v.tool, v.velocity,
		body.ActiveLinkCount(), body.LinkCount(), v.sim.BloodCount())
	v.drawText(0, 0, header, tcell.StyleDefault.Bold(true))

	top := res.Y - 1
	for z := 0; z < res.Z; z++ {
		for x := 0; x < res.X; x++ {
			c := heatmap.Tone(levels[body.Index(x, top, z)], maxDamage)
			style := tcell.StyleDefault.Foreground(tcell.NewRGBColor(int32(c.R), int32(c.G), int32(c.B)))
			ch := '█'
			if !v.topLinked(x, top, z) {
				ch = '▒'
			}
			if x == v.cursorX && z == v.cursorZ {
				style = style.Reverse(true)
				ch = '+'
			}
			for i := 0; i < cellWidth; i++ {
				v.screen.SetContent(x*cellWidth+i, gridTop+z, ch, nil, style)
			}
		}
	}

	blood := tcell.StyleDefault.Foreground(tcell.ColorRed)
	for _, p := range v.sim.BloodSnapshot() {
		x, z, ok := v.cellOf(p.Position)
		if !ok {
			continue
		}
		glyph := '•'
		if p.Life < 0.3 {
			glyph = '·'
		}
		v.screen.SetContent(x*cellWidth, gridTop+z, glyph, nil, blood)
	}

	v.drawText(0, gridTop+res.Z+1, v.status, tcell.StyleDefault)
	v.screen.Show()
}

// topLinked reports whether a node still has any active link. A 1x1x1
// body has no links to sever and always counts as linked.
func (v *Viewer) topLinked(x, y, z int) bool {
	body := v.sim.Body()
	if body.LinkCount() == 0 {
		return true
	}
	return len(body.LinksOf(body.Index(x, y, z))) > 0
}

// cellOf maps a world position onto the X/Z lattice column it falls in.
func (v *Viewer) cellOf(p tissue.Vec3) (x, z int, ok bool) {
	body := v.sim.Body()
	res := body.Resolution()
	origin := body.Origin()
	spacing := body.Spacing()
	fx := (p.X-origin.X)/spacing + float64(res.X-1)/2
	fz := (p.Z-origin.Z)/spacing + float64(res.Z-1)/2
	x, z = int(math.Round(fx)), int(math.Round(fz))
	if x < 0 || x >= res.X || z < 0 || z >= res.Z {
		return 0, 0, false
	}
	return x, z, true
}

func (v *Viewer) drawText(x, y int, s string, style tcell.Style) {
	for _, r := range s {
		v.screen.SetContent(x, y, r, nil, style)
		x++
	}
}

// Run polls input and redraws at roughly 60 FPS until the user quits.
func (v *Viewer) Run() {
	ticker := time.NewTicker(frameInterval)
	defer ticker.Stop()

	eventChan := make(chan tcell.Event, 100)
	go func() {
		for {
			eventChan <- v.screen.PollEvent()
		}
	}()

	for {
		select {
		case ev := <-eventChan:
			if ev == nil {
				return
			}
			if !v.HandleEvent(ev) {
				return
			}
		case <-ticker.C:
			v.Tick()
			v.Draw()
		}
	}
}

func clampInt(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}
