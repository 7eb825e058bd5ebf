package main

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"goatfarm-breeding-forecast/internal/records"
)

var (
	recordsOwner      string
	recordsCollection string
	recordsSet        []string
	recordsData       string
)

var recordsCmd = &cobra.Command{
	Use:   "records",
	Short: "Add, list and delete farm records",
}

var recordsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a record to a collection",
	Example: "  goatfarm records add --owner farm-1 --collection breeding " +
		"--set female_id=G3 --set male_id=B1 --set mating_date=2025-01-10",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireOwner(recordsOwner); err != nil {
			return err
		}
		rec, err := parseRecord(recordsData, recordsSet)
		if err != nil {
			return err
		}
		store, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close()

		key, err := store.Add(cmd.Context(), recordsOwner, recordsCollection, rec)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Added %s record %s\n", recordsCollection, key)
		return nil
	},
}

var recordsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the records of a collection as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireOwner(recordsOwner); err != nil {
			return err
		}
		store, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close()

		list, err := store.List(cmd.Context(), recordsOwner, recordsCollection)
		if err != nil {
			return err
		}
		return encode(cmd.OutOrStdout(), "json", list)
	},
}

var recordsDeleteCmd = &cobra.Command{
	Use:   "delete KEY",
	Short: "Delete one record by key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireOwner(recordsOwner); err != nil {
			return err
		}
		store, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.Delete(cmd.Context(), recordsOwner, recordsCollection, args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s record %s\n", recordsCollection, args[0])
		return nil
	},
}

func init() {
	pf := recordsCmd.PersistentFlags()
	pf.StringVar(&recordsOwner, "owner", "", "farm owner")
	pf.StringVar(&recordsCollection, "collection", records.CollectionGoats,
		"collection ("+strings.Join(records.Collections, ", ")+")")

	recordsAddCmd.Flags().StringArrayVar(&recordsSet, "set", nil, "field assignment key=value (repeatable)")
	recordsAddCmd.Flags().StringVar(&recordsData, "data", "", "record fields as a JSON object")

	recordsCmd.AddCommand(recordsAddCmd, recordsListCmd, recordsDeleteCmd)
	rootCmd.AddCommand(recordsCmd)
}

// parseRecord merges a JSON object with key=value assignments. Assignments
// win over JSON fields of the same name.
func parseRecord(data string, pairs []string) (records.Record, error) {
	rec := records.Record{}
	if strings.TrimSpace(data) != "" {
		if err := json.Unmarshal([]byte(data), &rec); err != nil {
			return nil, eris.Wrap(err, "parse --data")
		}
		if rec == nil {
			rec = records.Record{}
		}
	}
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, eris.Errorf("invalid --set %q, want key=value", pair)
		}
		rec[key] = strings.TrimSpace(value)
	}
	if len(rec) == 0 {
		return nil, eris.New("no fields given; use --set or --data")
	}
	return rec, nil
}

func sortedFields(rec records.Record) []string {
	fields := make([]string, 0, len(rec))
	for field := range rec {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return fields
}
