package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"blueprint-editor/application/commands"
	"blueprint-editor/application/queries"
	"blueprint-editor/domain/catalog"
	"blueprint-editor/domain/core/entities"
	"blueprint-editor/infrastructure/config"
	"blueprint-editor/infrastructure/export/pdf"
	"blueprint-editor/infrastructure/persistence/schema"
	"blueprint-editor/infrastructure/persistence/sqlstore"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// nodeListSchemaVersion is the version stamped on exported node documents
const nodeListSchemaVersion = 1

func symbolsCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "symbols",
		Short: "List the electrical symbol catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			symbols := catalog.Default().All()
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), symbols)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tDESCRIPTION")
			for _, s := range symbols {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", s.ID, s.Name, s.Description)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

func diagramsCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "diagrams",
		Short: "List, export and import diagrams",
	}
	cmd.AddCommand(diagramsListCmd(opts), diagramsExportCmd(opts), diagramsImportCmd(opts))
	return cmd
}

func diagramsListCmd(opts *options) *cobra.Command {
	var page, pageSize int
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored diagrams, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, cleanup, err := opts.container(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			result, err := c.QueryBus.Ask(ctx, queries.ListDiagramsQuery{Page: page, PageSize: pageSize})
			if err != nil {
				return err
			}
			list := result.(*queries.ListDiagramsResult)
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), list)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTITLE\tNODES\tUPDATED")
			for _, d := range list.Diagrams {
				fmt.Fprintf(tw, "%d\t%s\t%d\t%s\n", d.ID, d.Title, d.NodeCount, d.UpdatedAt.Format(time.RFC3339))
			}
			if list.HasMore {
				fmt.Fprintf(tw, "\n(more on page %d)\n", list.Page+1)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "page number")
	cmd.Flags().IntVar(&pageSize, "page-size", 20, "diagrams per page")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

func diagramsExportCmd(opts *options) *cobra.Command {
	var format, out string
	cmd := &cobra.Command{
		Use:   "export <id>",
		Short: "Export a diagram as a versioned JSON document or a PDF schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid diagram id %q", args[0])
			}
			if format != "json" && format != "pdf" {
				return fmt.Errorf("unknown format %q (want json or pdf)", format)
			}

			ctx := cmd.Context()
			c, cleanup, err := opts.container(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			result, err := c.QueryBus.Ask(ctx, queries.GetDiagramQuery{DiagramID: id})
			if err != nil {
				return err
			}
			view := result.(*queries.DiagramView)

			var buf bytes.Buffer
			switch format {
			case "json":
				data, err := schema.MarshalWithSchema(view, nodeListSchemaVersion)
				if err != nil {
					return err
				}
				buf.Write(data)
				buf.WriteByte('\n')
			case "pdf":
				err = c.Exporter.Write(&buf, pdf.Schedule{
					DiagramID:   view.ID,
					Title:       view.Title,
					Nodes:       view.Nodes,
					Width:       view.BlueprintWidth,
					Height:      view.BlueprintHeight,
					Offset:      view.BlueprintOffset,
					GeneratedAt: time.Now().UTC(),
				})
				if err != nil {
					return err
				}
			}

			if out == "" || out == "-" {
				_, err = buf.WriteTo(cmd.OutOrStdout())
				return err
			}
			if err := os.WriteFile(out, buf.Bytes(), 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s (%d bytes)\n", out, buf.Len())
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "json", "output format: json or pdf")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default stdout)")
	return cmd
}

// exportedDiagram is the subset of an exported diagram document that import
// reads back
type exportedDiagram struct {
	Title           string          `json:"title"`
	BlueprintURL    string          `json:"blueprintUrl"`
	BlueprintWidth  int             `json:"blueprintWidth"`
	BlueprintHeight int             `json:"blueprintHeight"`
	Nodes           []entities.Node `json:"nodes"`
}

func diagramsImportCmd(opts *options) *cobra.Command {
	var into int64
	var title, blueprintURL string
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import nodes from an exported document or a bare node array",
		Long: `Import reads either a document written by "diagrams export" or a
plain JSON array of nodes. With --into the nodes replace those of an
existing diagram; otherwise a new diagram is created.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			doc, err := readDocument(data)
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}
			if title != "" {
				doc.Title = title
			}
			if blueprintURL != "" {
				doc.BlueprintURL = blueprintURL
			}

			ctx := cmd.Context()
			c, cleanup, err := opts.container(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			id := into
			if id == 0 {
				created, err := c.CommandBus.Dispatch(ctx, commands.CreateDiagramCommand{
					Title:           doc.Title,
					BlueprintURL:    doc.BlueprintURL,
					BlueprintWidth:  doc.BlueprintWidth,
					BlueprintHeight: doc.BlueprintHeight,
				})
				if err != nil {
					return err
				}
				id = created.(*commands.CreateDiagramResult).DiagramID
			}

			saved, err := c.CommandBus.Dispatch(ctx, commands.SaveNodesCommand{DiagramID: id, Nodes: doc.Nodes})
			if err != nil {
				return err
			}
			res := saved.(*commands.SaveNodesResult)
			c.Logger.Info("Imported diagram", zap.Int64("diagram_id", res.DiagramID), zap.Int("nodes", res.NodeCount))
			fmt.Fprintf(cmd.OutOrStdout(), "%d\n", res.DiagramID)
			return nil
		},
	}
	cmd.Flags().Int64Var(&into, "into", 0, "replace the nodes of this diagram instead of creating one")
	cmd.Flags().StringVar(&title, "title", "", "title of the created diagram")
	cmd.Flags().StringVar(&blueprintURL, "blueprint-url", "", "blueprint of the created diagram")
	return cmd
}

// readDocument accepts a versioned export or a bare node array
func readDocument(data []byte) (*exportedDiagram, error) {
	raw, version, err := schema.UnmarshalWithSchema(bytes.TrimSpace(data))
	if err != nil {
		return nil, err
	}
	if version > nodeListSchemaVersion {
		return nil, fmt.Errorf("document schema version %d is newer than %d", version, nodeListSchemaVersion)
	}

	doc := &exportedDiagram{}
	if len(raw) > 0 && raw[0] == '[' {
		if err := json.Unmarshal(raw, &doc.Nodes); err != nil {
			return nil, err
		}
	} else if err := json.Unmarshal(raw, doc); err != nil {
		return nil, err
	}
	if doc.Nodes == nil {
		doc.Nodes = []entities.Node{}
	}
	return doc, nil
}

func migrateCmd(opts *options) *cobra.Command {
	var target int
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back SQL schema migrations",
		Long: `Migrate moves a postgres or sqlite store to --target. A negative
target, the default, applies every known migration.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd, opts, func(m migrator, logger *zap.Logger) error {
				if err := m.Migrate(cmd.Context(), target); err != nil {
					return err
				}
				current, err := m.CurrentVersion(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Schema at version %d of %d\n", current, m.Latest())
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&target, "target", -1, "schema version to migrate to")

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show applied migrations and checksum drift",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd, opts, func(m migrator, logger *zap.Logger) error {
				applied, drifted, err := m.History(cmd.Context())
				if err != nil {
					return err
				}
				drift := make(map[int]bool, len(drifted))
				for _, v := range drifted {
					drift[v] = true
				}

				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "VERSION\tDESCRIPTION\tAPPLIED\tSTATE")
				for _, v := range applied {
					state := "ok"
					if drift[v.Version] {
						state = "drifted"
						logger.Warn("Migration source changed after it was applied", zap.Int("version", v.Version))
					}
					fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", v.Version, v.Description, v.AppliedAt.Format(time.RFC3339), state)
				}
				fmt.Fprintf(tw, "\nlatest known version: %d\n", m.Latest())
				return tw.Flush()
			})
		},
	})
	return cmd
}

// migrator is the part of the schema evolution manager the CLI drives
type migrator interface {
	Migrate(ctx context.Context, target int) error
	CurrentVersion(ctx context.Context) (int, error)
	Latest() int
	History(ctx context.Context) ([]schema.SchemaVersion, []int, error)
}

func withMigrator(cmd *cobra.Command, opts *options, fn func(migrator, *zap.Logger) error) error {
	cfg, err := opts.config()
	if err != nil {
		return err
	}
	if cfg.StorageBackend != config.StoragePostgres && cfg.StorageBackend != config.StorageSQLite {
		return fmt.Errorf("storage %q has no SQL schema to migrate", cfg.StorageBackend)
	}
	logger, _, err := config.NewLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	d, err := sqlstore.DialectFor(cfg.StorageBackend)
	if err != nil {
		return err
	}
	db, err := sqlstore.Open(cmd.Context(), d, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	m, err := sqlstore.NewMigrator(db, d, logger)
	if err != nil {
		return err
	}
	return fn(m, logger)
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
