package cmd

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/astrovis/starstream/catalog"
	"github.com/astrovis/starstream/octree"
)

var (
	buildInput           string
	buildOutput          string
	buildMaxStarsPerNode int
	buildMaxDepth        int
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Ingest a columnar star catalog and build an octree object",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		f, err := os.Open(buildInput)
		checkErr(err)
		defer f.Close()

		ds, err := catalog.ReadCSV(ctx, f)
		checkErr(err)

		tree, err := octree.Build(ctx, ds, octree.Config{
			MaxStarsPerNode: buildMaxStarsPerNode,
			MaxDepth:        buildMaxDepth,
		})
		checkErr(err)

		out, err := os.Create(buildOutput)
		checkErr(err)
		defer out.Close()
		_, err = tree.Flush(ctx, out)
		checkErr(err)
	},
}

func init() {
	buildCmd.PersistentFlags().StringVarP(&buildInput, "input", "i", "", "input catalog CSV")
	buildCmd.PersistentFlags().StringVarP(&buildOutput, "output", "o", "", "output octree object")
	buildCmd.PersistentFlags().IntVar(&buildMaxStarsPerNode, "max-stars-per-node", 0, "subdivision trigger (0 = default)")
	buildCmd.PersistentFlags().IntVar(&buildMaxDepth, "max-depth", 0, "maximum tree depth (0 = default)")
	checkErr(buildCmd.MarkPersistentFlagRequired("input"))
	checkErr(buildCmd.MarkPersistentFlagRequired("output"))
	rootCmd.AddCommand(buildCmd)
}
