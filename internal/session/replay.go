package session

import (
	"fmt"
	"sort"

	"github.com/suturelab/tissuesim/internal/tissue"
)

// Replay rebuilds a simulation from a recorded event log. Each event is
// applied at the frame it was originally applied at, and the result is
// stepped on to untilFrame. Within one process the outcome matches the
// original session frame for frame.
func Replay(registry tissue.MaterialRegistry, params tissue.BodyParams, events []Event, untilFrame uint64) (*tissue.Simulation, error) {
	sim, err := tissue.NewSimulation(registry, params)
	if err != nil {
		return nil, err
	}

	ordered := make([]Event, len(events))
	copy(ordered, events)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Seq < ordered[j].Seq })

	for _, ev := range ordered {
		if ev.Frame < sim.Frame() {
			return nil, fmt.Errorf("event %d at frame %d precedes frame %d", ev.Seq, ev.Frame, sim.Frame())
		}
		for sim.Frame() < ev.Frame {
			sim.Step(tissue.FixedTimestep)
		}
		if _, err := sim.ApplyToolContact(ev.Contact); err != nil {
			return nil, fmt.Errorf("replay event %d: %w", ev.Seq, err)
		}
	}
	for sim.Frame() < untilFrame {
		sim.Step(tissue.FixedTimestep)
	}
	return sim, nil
}
