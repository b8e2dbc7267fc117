package cmd

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/tanpawarit/table-reservation-agent/reservation"
)

func newSeedCmd() *cobra.Command {
	var (
		file  string
		start string
	)

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load restaurants and generate their slots",
		Long:  "Load restaurants from a YAML file and generate missing slots at full capacity. Existing slots keep their remaining seats.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := loadAppConfig()
			if err != nil {
				return err
			}
			if file == "" {
				file = cfg.SeedFile
			}

			from := time.Now()
			if start != "" {
				if from, err = time.Parse(reservation.DateLayout, start); err != nil {
					return fmt.Errorf("--start must be YYYY-MM-DD: %w", err)
				}
			}

			f, err := reservation.LoadSeedFile(file)
			if err != nil {
				return err
			}

			store, err := openDB(ctx, cfg, true)
			if err != nil {
				return err
			}
			defer store.Close()

			n, err := reservation.Seed(ctx, store, f, from)
			if err != nil {
				return fmt.Errorf("seed: %w", err)
			}
			log.Info().
				Str("file", file).
				Int("restaurants", len(f.Restaurants)).
				Int("slots", n).
				Str("from", from.Format(reservation.DateLayout)).
				Msg("seed: done")
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d restaurants and %d slots\n", len(f.Restaurants), n)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "seed file (defaults to SEED_FILE)")
	cmd.Flags().StringVar(&start, "start", "", "first slot date, YYYY-MM-DD (defaults to today)")
	return cmd
}
