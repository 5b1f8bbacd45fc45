package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/jwalitptl/intake-api/internal/seed"
)

func seedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load the synthetic patient data set",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("data")
			reset, _ := cmd.Flags().GetBool("reset")

			data, err := seed.Load(dir)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Loaded %s: %d patients, %d EHR records, %d narratives\n",
				dir, len(data.Patients), len(data.EHR), len(data.Narratives))

			db, err := openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			seeder := newSeeder(db)
			if err := seeder.Seed(cmd.Context(), data, reset); err != nil {
				return fmt.Errorf("seeding failed: %w", err)
			}

			counts, err := seeder.Counts(cmd.Context())
			if err != nil {
				return err
			}
			printCounts(out, "Database now holds:", counts)
			return nil
		},
	}
	cmd.Flags().String("data", "./data", "Directory holding patients.json, ehr.json and narratives.json")
	cmd.Flags().Bool("reset", false, "Delete existing patients (and their records) first")
	return cmd
}

func resetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Delete all briefings and conversations, keeping patient data",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			seeder := newSeeder(db)
			out := cmd.OutOrStdout()

			before, err := seeder.Counts(cmd.Context())
			if err != nil {
				return err
			}
			printCounts(out, "Found:", before)

			briefings, conversations, err := seeder.ResetIntake(cmd.Context())
			if err != nil {
				return fmt.Errorf("reset failed: %w", err)
			}
			fmt.Fprintf(out, "Deleted %d briefings and %d conversations\n", briefings, conversations)

			after, err := seeder.Counts(cmd.Context())
			if err != nil {
				return err
			}
			printCounts(out, "Remaining:", after)
			return nil
		},
	}
}

func printCounts(w io.Writer, title string, c seed.Counts) {
	fmt.Fprintln(w, title)
	fmt.Fprintf(w, "  patients:      %d\n", c.Patients)
	fmt.Fprintf(w, "  ehr records:   %d\n", c.EHR)
	fmt.Fprintf(w, "  narratives:    %d\n", c.Narratives)
	fmt.Fprintf(w, "  conversations: %d\n", c.Conversations)
	fmt.Fprintf(w, "  briefings:     %d\n", c.Briefings)
}
