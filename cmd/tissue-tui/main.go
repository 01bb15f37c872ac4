package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/gdamore/tcell/v2"
	"github.com/suturelab/tissuesim/internal/tissue"
	"github.com/suturelab/tissuesim/internal/viewer"
)

func main() {
	material := flag.String("material", tissue.MaterialSkin, "tissue material (skin, muscle, organ, bone, fat)")
	res := flag.Int("res", 16, "lattice nodes per axis")
	depth := flag.Int("depth", 4, "lattice layers along Y")
	seed := flag.Uint64("seed", 1, "random seed")
	flag.Parse()

	sim, err := tissue.NewSimulation(tissue.DefaultMaterials(), tissue.BodyParams{
		Size:       tissue.NewVec3(1, 0.25, 1),
		Resolution: tissue.GridResolution{X: *res, Y: *depth, Z: *res},
		Material:   *material,
		Seed:       *seed,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build tissue: %v\n", err)
		os.Exit(1)
	}

	screen, err := tcell.NewScreen()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	if err := screen.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	defer screen.Fini()

	viewer.New(screen, sim).Run()
}
