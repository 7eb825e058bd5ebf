package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"goatfarm-breeding-forecast/internal/herd"
	"goatfarm-breeding-forecast/internal/records"
)

var farmOwner string

var farmCmd = &cobra.Command{
	Use:   "farm",
	Short: "Show or rename a farm",
}

var farmSetNameCmd = &cobra.Command{
	Use:   "set-name NAME",
	Short: "Set the farm display name",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireOwner(farmOwner); err != nil {
			return err
		}
		store, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close()

		name := strings.Join(args, " ")
		if err := store.SetFarmName(cmd.Context(), farmOwner, name); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Farm name set to %q\n", strings.TrimSpace(name))
		return nil
	},
}

var farmShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the farm name, record counts and profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireOwner(farmOwner); err != nil {
			return err
		}
		store, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close()

		farm, err := herd.Load(cmd.Context(), store, farmOwner)
		if err != nil {
			return err
		}
		profiles, err := store.List(cmd.Context(), farmOwner, records.CollectionUserProfile)
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		summary := farm.Summary()
		goats := herd.CountGoats(farm.Goats)
		fmt.Fprintln(w, farm.Name)
		fmt.Fprintln(w, strings.Repeat("=", ruleWidth))
		fmt.Fprintf(w, "Goats: %d (%d male, %d female)\n", goats.Total, goats.Males, goats.Females)
		fmt.Fprintf(w, "Breeding records: %d\n", summary.Breeding)
		fmt.Fprintf(w, "Health records: %d\n", summary.Health)
		fmt.Fprintf(w, "Sales records: %d\n", summary.Sales)

		keys := make([]string, 0, len(profiles))
		for key := range profiles {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			fmt.Fprintf(w, "\nProfile %s\n", key)
			fmt.Fprintln(w, strings.Repeat("-", ruleWidth))
			profile := profiles[key]
			for _, field := range sortedFields(profile) {
				fmt.Fprintf(w, "%s: %v\n", field, profile[field])
			}
		}
		return nil
	},
}

func init() {
	farmCmd.PersistentFlags().StringVar(&farmOwner, "owner", "", "farm owner")
	farmCmd.AddCommand(farmSetNameCmd, farmShowCmd)
	rootCmd.AddCommand(farmCmd)
}
