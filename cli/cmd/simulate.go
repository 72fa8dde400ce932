package cmd

import (
	"context"
	"fmt"
	"math"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/spf13/cobra"

	"github.com/astrovis/starstream/budget"
	"github.com/astrovis/starstream/gpubuf"
	"github.com/astrovis/starstream/lod"
	"github.com/astrovis/starstream/octree"
	"github.com/astrovis/starstream/render"
	"github.com/astrovis/starstream/storage"
	"github.com/astrovis/starstream/streamer"
)

var (
	simFrames    int
	simStrategy  string
	simCPUBudget uint64
	simGPUBudget uint64
	simThreshold float64
	simRGB       bool
)

// simulate runs the full streaming pipeline headlessly: an orbiting camera,
// an in-memory render device, and real traversal/streaming/packing against
// the octree object. Useful for sizing budgets and thresholds before wiring
// a GL context.
var simulateCmd = &cobra.Command{
	Use:   "simulate [file]",
	Short: "Run a headless frame loop over an octree object",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		dir, object := filepath.Split(args[0])
		if dir == "" {
			dir = "."
		}
		provider := storage.NewFileStore(dir)
		idx, err := octree.ReadIndex(ctx, provider, object)
		checkErr(err)

		ceilings := budget.Ceilings(ctx, nil)
		if simCPUBudget > 0 {
			ceilings[budget.CPU] = simCPUBudget
		}
		if simGPUBudget > 0 {
			ceilings[budget.GPU] = simGPUBudget
		}
		tracker := budget.NewTracker(ceilings)

		mode, err := streamer.ParseStrategyMode(simStrategy)
		checkErr(err)
		var packOpts []gpubuf.Option
		if simRGB {
			packOpts = append(packOpts, gpubuf.WithColorMode(gpubuf.PackedRGB))
		}
		dev := render.NewMemDevice(0)
		strategy, err := streamer.NewStrategy(dev, idx, ceilings[budget.GPU], mode, packOpts...)
		checkErr(err)

		mgr, err := streamer.NewManager(
			idx, provider, object, tracker, strategy, render.NopSubmission{},
			streamer.WithPixelThreshold(simThreshold),
		)
		checkErr(err)
		defer mgr.Close(ctx)

		meta := idx.Metadata()
		radius := float64(meta.RootMax[0]) * 1.5
		const width, height = 1920, 1080
		proj := mgl32.Perspective(mgl32.DegToRad(45), float32(width)/float32(height), 0.01, float32(radius*4))

		bold := color.New(color.Bold)
		bold.Printf("simulating %d frames over %s (%s strategy)\n", simFrames, object, strategy.Name())
		for frame := 0; frame < simFrames; frame++ {
			angle := 2 * math.Pi * float64(frame) / float64(simFrames)
			eye := mgl32.Vec3{
				float32(radius * math.Sin(angle)),
				float32(radius * 0.3),
				float32(radius * math.Cos(angle)),
			}
			view := mgl32.LookAtV(eye, mgl32.Vec3{}, mgl32.Vec3{0, 1, 0})
			err := mgr.Update(ctx, lod.Frame{
				ViewProjection: proj.Mul4(view),
				ScreenWidth:    width,
				ScreenHeight:   height,
			})
			checkErr(err)
			stats := mgr.Stats()
			fmt.Printf("frame %3d  stars %9d  gpu nodes %4d  cpu nodes %4d  cached %4d  cpu %d/%d  gpu %d/%d\n",
				frame, stats.RenderedStars, stats.ResidentGPU, stats.ResidentCPU, stats.CachedNodes,
				stats.CPUConsumed, stats.CPUCeiling, stats.GPUConsumed, stats.GPUCeiling)
		}
	},
}

func init() {
	simulateCmd.PersistentFlags().IntVar(&simFrames, "frames", 60, "number of frames to simulate")
	simulateCmd.PersistentFlags().StringVar(&simStrategy, "strategy", "fixed", "packing strategy (fixed or variable)")
	simulateCmd.PersistentFlags().Uint64Var(&simCPUBudget, "cpu-budget", 0, "CPU budget in bytes (0 = probe)")
	simulateCmd.PersistentFlags().Uint64Var(&simGPUBudget, "gpu-budget", 0, "GPU budget in bytes (0 = probe)")
	simulateCmd.PersistentFlags().Float64Var(&simThreshold, "threshold", lod.DefaultPixelThreshold, "LOD pixel-area threshold")
	simulateCmd.PersistentFlags().BoolVar(&simRGB, "rgb", false, "convert B-V color index to linear RGB at pack time")
	rootCmd.AddCommand(simulateCmd)
}
