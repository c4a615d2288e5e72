package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	seedCount int
	seedValue int64
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Stage a demo dataset of hotel reviews",
	RunE:  runSeed,
}

func init() {
	seedCmd.Flags().IntVar(&seedCount, "count", 50, "number of demo comments")
	seedCmd.Flags().Int64Var(&seedValue, "seed", 42, "random seed for the dataset")
	rootCmd.AddCommand(seedCmd)
}

func runSeed(cmd *cobra.Command, args []string) error {
	if seedCount <= 0 {
		return fmt.Errorf("--count must be positive")
	}

	ctx := cmd.Context()
	a, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	staged, err := a.Seed(ctx, seedCount, seedValue)
	if err != nil {
		return err
	}
	fmt.Printf("Staged %d of %d demo comments\n", staged, seedCount)
	return nil
}
