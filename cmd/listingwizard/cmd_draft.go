package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/vbonduro/listingwizard/internal/db"
	"github.com/vbonduro/listingwizard/internal/persist"
	"github.com/vbonduro/listingwizard/internal/schema"
	"github.com/vbonduro/listingwizard/internal/store"
)

var (
	draftKey     string
	draftSession string
)

var draftCmd = &cobra.Command{
	Use:   "draft",
	Short: "Inspect or discard stored drafts",
	Long: `Inspect or discard the drafts kept in the local database.

Available subcommands:
  list  - List stored drafts
  show  - Print one draft as YAML
  clear - Remove one draft`,
}

var draftListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored drafts",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDraftStore(func(ds *store.DraftStore) error {
			return listDrafts(cmd.Context(), ds, cmd.OutOrStdout())
		})
	},
}

var draftShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print one stored draft as YAML",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDraftStore(func(ds *store.DraftStore) error {
			return showDraft(cmd.Context(), ds, schema.MustDefault(), resolveKey(), cmd.OutOrStdout())
		})
	},
}

var draftClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove one stored draft",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDraftStore(func(ds *store.DraftStore) error {
			key := resolveKey()
			if err := ds.Remove(cmd.Context(), key); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", key)
			return nil
		})
	},
}

func init() {
	for _, c := range []*cobra.Command{draftShowCmd, draftClearCmd} {
		c.Flags().StringVar(&draftKey, "key", "", "storage key of the draft (default: DRAFT_KEY)")
		c.Flags().StringVar(&draftSession, "session", "", "web session id whose draft to use")
	}
	draftCmd.AddCommand(draftListCmd, draftShowCmd, draftClearCmd)
}

// resolveKey picks the storage key from the flags: an explicit key wins,
// then a session id, then the configured default.
func resolveKey() string {
	switch {
	case draftKey != "":
		return draftKey
	case draftSession != "":
		return persist.SessionKey(cfg.DraftKey, draftSession)
	default:
		return cfg.DraftKey
	}
}

func withDraftStore(fn func(ds *store.DraftStore) error) error {
	database, err := db.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer func(d *sql.DB) { _ = d.Close() }(database)
	return fn(store.NewDraftStore(database))
}

func listDrafts(ctx context.Context, ds *store.DraftStore, w io.Writer) error {
	drafts, err := ds.List(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tBYTES\tUPDATED")
	for _, d := range drafts {
		fmt.Fprintf(tw, "%s\t%d\t%s\n", d.Key, d.Bytes, d.UpdatedAt.Format(time.RFC3339))
	}
	return tw.Flush()
}

// showDraft prints the stored projection of key, merged into the current
// schema the same way the wizard restores it.
func showDraft(ctx context.Context, ds *store.DraftStore, sc *schema.Schema, key string, w io.Writer) error {
	raw, found, err := ds.Get(ctx, key)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("no draft stored under %q", key)
	}
	d, err := persist.Unmarshal(sc, raw)
	if err != nil {
		return fmt.Errorf("stored draft %q is malformed: %w", key, err)
	}
	out, err := yaml.Marshal(persist.Project(d))
	if err != nil {
		return fmt.Errorf("failed to encode draft: %w", err)
	}
	_, err = w.Write(out)
	return err
}
