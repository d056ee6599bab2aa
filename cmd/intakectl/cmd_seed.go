package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ignatzorin/client-intake/internal/service"
	"github.com/ignatzorin/client-intake/internal/validation"
)

var seedReset bool

// seedCmd заполняет хранилище демонстрационными заявками.
var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Store the sample requests",
	Long: `Store the four sample requests when the store is empty.

With --reset the stored requests are replaced by the samples.`,
	RunE: runSeed,
}

// hashPasswordCmd печатает bcrypt хэш для DASHBOARD_PASSWORD_HASH.
var hashPasswordCmd = &cobra.Command{
	Use:   "hash-password <password>",
	Short: "Print a bcrypt hash for DASHBOARD_PASSWORD_HASH",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := validation.ValidatePassword(args[0]); err != nil {
			return err
		}
		hash, err := service.HashPassword(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), hash)
		return nil
	},
}

func init() {
	seedCmd.Flags().BoolVar(&seedReset, "reset", false, "Replace stored requests with the samples")
}

func runSeed(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	store, closeFn, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	seeder := service.NewSeedService(store, nil)
	out := cmd.OutOrStdout()

	if seedReset {
		list, err := seeder.Reset(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "store reset with %d sample request(s)\n", len(list))
		return nil
	}

	list, seeded, err := seeder.SeedIfEmpty(ctx)
	if err != nil {
		return err
	}
	if !seeded {
		fmt.Fprintf(out, "store already holds %d request(s), nothing seeded\n", len(list))
		return nil
	}
	fmt.Fprintf(out, "seeded %d sample request(s)\n", len(list))
	return nil
}
