package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	runview "github.com/goliatone/go-runview"
	"github.com/goliatone/go-runview/persist"
	"github.com/goliatone/go-runview/rowset"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newShowCmd(app *cli) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the persisted view state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			adapter, err := app.open(cmd.Context())
			if err != nil {
				return err
			}
			defer adapter.Close()

			store := adapter.Store()
			switch strings.ToLower(output) {
			case "json", "yaml":
				doc, err := persist.Encode(store.Codec(), store.Snapshot())
				if err != nil {
					return err
				}
				return writeDocument(cmd.OutOrStdout(), doc, output)
			case "", "text":
				return writeSummary(cmd.OutOrStdout(), store, adapter.LoadResult())
			default:
				return fmt.Errorf("unsupported output %q", output)
			}
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "text", "output format: text, json or yaml")
	return cmd
}

func writeDocument(w io.Writer, doc persist.Document, format string) error {
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	if strings.EqualFold(format, "json") {
		_, err = fmt.Fprintln(w, string(raw))
		return err
	}
	var generic map[string]any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(generic); err != nil {
		return err
	}
	return enc.Close()
}

func writeSummary(w io.Writer, store *runview.Store, loadResult string) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "load\t%s\n", loadResult)
	fmt.Fprintf(tw, "panel collapsed\t%t\n", store.PanelCollapsed())
	fmt.Fprintf(tw, "page size\t%d\n", store.PageSize())
	if last := store.LastNamespace(); last != "" {
		fmt.Fprintf(tw, "last namespace\t%s\n", last)
	}
	for _, ns := range store.Namespaces() {
		settings, _ := store.Settings(ns)
		fmt.Fprintf(tw, "\n[%s]\n", ns)
		fmt.Fprintf(tw, "visible\t%s\n", joinIDs(store.SortedVisibleIDs(ns)))
		fmt.Fprintf(tw, "known\t%d\n", len(store.KnownIDs(ns)))
		fmt.Fprintf(tw, "sort\t%s\n", describeSort(settings.SortFields))
		if settings.GroupBy != "" {
			fmt.Fprintf(tw, "group by\t%s\n", settings.GroupBy)
		}
		fmt.Fprintf(tw, "columns\t%s\n", describeColumns(runview.VisibleColumns(settings.Columns)))
		fmt.Fprintf(tw, "page\t%d of size %d\n", settings.CurrentPage, settings.PageSize)
		if settings.SearchText != "" {
			fmt.Fprintf(tw, "search\t%q\n", settings.SearchText)
		}
	}
	return tw.Flush()
}

func joinIDs(ids []runview.NativeID) string {
	if len(ids) == 0 {
		return "-"
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = id.String()
	}
	return strings.Join(parts, ",")
}

func describeSort(fields []runview.SortField) string {
	if len(fields) == 0 {
		return "-"
	}
	parts := make([]string, len(fields))
	for i, field := range fields {
		parts[i] = field.Field + " " + string(field.Order)
	}
	return strings.Join(parts, ", ")
}

func describeColumns(columns []runview.ColumnConfig) string {
	keys := make([]string, len(columns))
	for i, col := range columns {
		keys[i] = col.Key
	}
	return strings.Join(keys, ",")
}

func newVisibleCmd(app *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "visible <namespace>",
		Short: "List visible ids of a namespace with their colors",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			adapter, err := app.open(cmd.Context())
			if err != nil {
				return err
			}
			defer adapter.Close()

			store := adapter.Store()
			ns, err := namespaceArg(store, args[0])
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, id := range store.SortedVisibleIDs(ns) {
				color, _ := store.ColorOf(ns, id)
				fmt.Fprintf(tw, "%s\t%s\n", id, color)
			}
			return tw.Flush()
		},
	}
}

func newToggleCmd(app *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "toggle <namespace> <id>...",
		Short: "Flip the visibility of items",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			return app.edit(cmd.Context(), func(store *runview.Store) error {
				ns, err := namespaceArg(store, args[0])
				if err != nil {
					return err
				}
				for _, raw := range args[1:] {
					id, err := idArg(store, ns, raw)
					if err != nil {
						return err
					}
					visible, err := store.Toggle(ns, id)
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "%s\t%s\n", id, visibilityLabel(visible))
				}
				return nil
			})
		},
	}
}

func visibilityLabel(visible bool) string {
	if visible {
		return "visible"
	}
	return "hidden"
}

func newResetCmd(app *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "reset <namespace>",
		Short: "Restore the default table settings of a namespace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.edit(cmd.Context(), func(store *runview.Store) error {
				ns, err := namespaceArg(store, args[0])
				if err != nil {
					return err
				}
				return store.ResetToDefaults(ns)
			})
		},
	}
}

func newMigrateCmd(app *cli) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Rewrite the persisted state at the current schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			adapter, err := app.open(cmd.Context())
			if err != nil {
				return err
			}
			defer adapter.Close()

			out := cmd.OutOrStdout()
			switch adapter.LoadResult() {
			case persist.LoadMiss:
				fmt.Fprintln(out, "nothing persisted")
				return nil
			case persist.LoadFallback:
				if adapter.ReadOnly() {
					return errors.New("persisted state was written by a newer version; refusing to replace it")
				}
				if !force {
					return errors.New("persisted state is unreadable; rerun with --force to replace it with defaults")
				}
			default:
				if adapter.LoadedVersion() >= persist.CurrentVersion {
					fmt.Fprintf(out, "already at version %d\n", persist.CurrentVersion)
					return nil
				}
			}
			if err := adapter.SaveNow(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(out, "migrated version %d to %d\n", adapter.LoadedVersion(), persist.CurrentVersion)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite unreadable state with defaults")
	return cmd
}

type filterOutput struct {
	Engine     string            `json:"engine"`
	Rows       []rowset.Row      `json:"rows"`
	Groups     []groupOutput     `json:"groups,omitempty"`
	Pagination rowset.Pagination `json:"pagination"`
}

type groupOutput struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

func newFilterCmd(app *cli) *cobra.Command {
	var query string
	cmd := &cobra.Command{
		Use:   "filter <namespace> [rows.json|-]",
		Short: "Render rows with the persisted table settings of a namespace",
		Long: "Reads a JSON array of rows and prints the current page after search or\n" +
			"predicate filtering, sorting, grouping and pagination. Queries starting\n" +
			"with '=' run as predicates on the configured engine.",
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var src io.Reader = cmd.InOrStdin()
			if len(args) == 2 && args[1] != "-" {
				f, err := os.Open(args[1])
				if err != nil {
					return err
				}
				defer f.Close()
				src = f
			}
			var rows []rowset.Row
			if err := json.NewDecoder(src).Decode(&rows); err != nil {
				return fmt.Errorf("read rows: %w", err)
			}

			adapter, err := app.open(cmd.Context())
			if err != nil {
				return err
			}
			defer adapter.Close()
			store := adapter.Store()
			ns, err := namespaceArg(store, args[0])
			if err != nil {
				return err
			}

			engine, err := rowset.New(
				rowset.WithEngine(app.cfg.Engine),
				rowset.WithEvaluatorLogger(rowset.ZerologEvaluatorLogger(app.logger)),
			)
			if err != nil {
				return err
			}

			var result rowset.Result
			if cmd.Flags().Changed("query") {
				settings, _ := store.Settings(ns)
				result, err = engine.ApplyQuery(rows, settings, query)
			} else {
				result, err = engine.View(store, ns, rows)
			}
			if err != nil {
				return err
			}

			out := filterOutput{
				Engine:     engine.EngineName(),
				Rows:       result.Rows,
				Pagination: result.Pagination,
			}
			if out.Rows == nil {
				out.Rows = []rowset.Row{}
			}
			for _, group := range result.Groups {
				out.Groups = append(out.Groups, groupOutput{Label: group.Label, Count: len(group.Rows)})
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
	cmd.Flags().StringVarP(&query, "query", "q", "", "search text or =predicate overriding the persisted search")
	return cmd
}
