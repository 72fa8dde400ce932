package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/astrovis/starstream/octree"
	"github.com/astrovis/starstream/storage"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect [file]",
	Short: "Print the header and per-depth structure of an octree object",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		dir, object := filepath.Split(args[0])
		if dir == "" {
			dir = "."
		}
		idx, err := octree.ReadIndex(ctx, storage.NewFileStore(dir), object)
		checkErr(err)
		meta := idx.Metadata()

		header := color.New(color.FgCyan, color.Bold)
		header.Println(object)
		fmt.Printf("  stars: %d  nodes: %d  max stars/node: %d  max depth: %d\n",
			meta.TotalStars, meta.NodeCount, meta.MaxStarsPerNode, meta.MaxDepth)
		fmt.Printf("  extra columns: %v  compression: %s\n",
			meta.Layout.ExtraColumns, meta.Compression)
		fmt.Printf("  bounds: [%.2f %.2f %.2f] - [%.2f %.2f %.2f]\n",
			meta.RootMin[0], meta.RootMin[1], meta.RootMin[2],
			meta.RootMax[0], meta.RootMax[1], meta.RootMax[2])

		type depthStats struct {
			nodes  int
			leaves int
			stars  uint64
			bytes  uint64
		}
		byDepth := map[uint8]*depthStats{}
		maxDepth := uint8(0)
		for id := octree.NodeID(0); int(id) < idx.NodeCount(); id++ {
			node, _ := idx.Node(id)
			stats := byDepth[node.Depth]
			if stats == nil {
				stats = &depthStats{}
				byDepth[node.Depth] = stats
			}
			stats.nodes++
			if !node.HasChildren() {
				stats.leaves++
			}
			stats.stars += uint64(node.StarCount)
			stats.bytes += uint64(node.PayloadLength)
			if node.Depth > maxDepth {
				maxDepth = node.Depth
			}
		}
		header.Println("depth  nodes  leaves  stars  payload bytes")
		for depth := uint8(0); depth <= maxDepth; depth++ {
			stats := byDepth[depth]
			if stats == nil {
				continue
			}
			fmt.Printf("%5d  %5d  %6d  %5d  %13d\n",
				depth, stats.nodes, stats.leaves, stats.stars, stats.bytes)
		}
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}
