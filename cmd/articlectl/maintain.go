package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/listenupapp/articlevault/internal/export"
	"github.com/listenupapp/articlevault/internal/store"
)

func newExportCmd() *cobra.Command {
	var (
		format string
		out    string
		tag    string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write stored articles as markdown, json or csv",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			f, err := export.ParseFormat(format)
			if err != nil {
				return err
			}

			var w io.Writer = cmd.OutOrStdout()
			if out != "" && out != "-" {
				file, err := os.Create(out)
				if err != nil {
					return fmt.Errorf("create %s: %w", out, err)
				}
				defer file.Close()
				w = file
			}

			buf := bufio.NewWriter(w)
			n, err := a.export.Write(cmd.Context(), buf, f, store.ArticleFilter{Tag: tag})
			if err != nil {
				return err
			}
			if err := buf.Flush(); err != nil {
				return err
			}

			if out != "" && out != "-" {
				fmt.Fprintf(cmd.ErrOrStderr(), "exported %d articles to %s\n", n, out)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", string(export.FormatMarkdown), "markdown, json or csv")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default: stdout)")
	cmd.Flags().StringVar(&tag, "tag", "", "only export articles with this tag")

	return cmd
}

func newBackupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backup DEST",
		Short: "Write a consistent copy of the database to DEST",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}

			dest := args[0]
			if _, err := os.Stat(dest); err == nil {
				return fmt.Errorf("%s already exists", dest)
			} else if !errors.Is(err, os.ErrNotExist) {
				return err
			}

			if err := a.db.Backup(cmd.Context(), dest); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "backup written to %s\n", dest)
			return nil
		},
	}
}

func newReindexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild the full-text search index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}

			if err := a.search.Rebuild(cmd.Context()); err != nil {
				return err
			}
			stats, err := a.search.Stats(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "indexed %d articles\n", stats.IndexedArticles)
			return nil
		},
	}
}

func newOptimizeCmd() *cobra.Command {
	var vacuum bool

	cmd := &cobra.Command{
		Use:   "optimize",
		Short: "Repair tag counters, refresh statistics and merge index segments",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			repaired, err := a.tags.Recount(ctx)
			if err != nil {
				return err
			}
			if err := a.db.Optimize(ctx); err != nil {
				return err
			}
			if err := a.search.Optimize(ctx); err != nil {
				return err
			}
			if vacuum {
				if err := a.db.Vacuum(ctx); err != nil {
					return err
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "optimized (%d tag counters repaired)\n", repaired)
			return nil
		},
	}

	cmd.Flags().BoolVar(&vacuum, "vacuum", false, "also rebuild the database file to reclaim space")

	return cmd
}
