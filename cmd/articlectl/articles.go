package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/listenupapp/articlevault/internal/domain"
	"github.com/listenupapp/articlevault/internal/search"
	"github.com/listenupapp/articlevault/internal/store"
)

func newScrapeCmd() *cobra.Command {
	var tags []string

	cmd := &cobra.Command{
		Use:   "scrape URL...",
		Short: "Fetch articles and store them",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			ingest, err := a.ingest()
			if err != nil {
				return err
			}

			job, err := ingest.Scrape(cmd.Context(), args, tags)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "STATUS\tID\tURL\tDETAIL")
			for _, r := range job.Results {
				switch {
				case r.Duplicate:
					fmt.Fprintf(tw, "duplicate\t%d\t%s\t\n", r.ArticleID, r.URL)
				case r.Success:
					title := ""
					if r.Data != nil {
						title = r.Data.Title
					}
					fmt.Fprintf(tw, "stored\t%d\t%s\t%s\n", r.ArticleID, r.URL, title)
				default:
					fmt.Fprintf(tw, "failed\t-\t%s\t%s\n", r.URL, r.Error)
				}
			}
			if err := tw.Flush(); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "\n%d stored, %d duplicate, %d failed\n", job.Succeeded, job.Duplicates, job.Failed)
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&tags, "tag", "t", nil, "tag to attach to every stored article (repeatable)")

	return cmd
}

func newSearchCmd() *cobra.Command {
	var (
		limit  int
		fields string
	)

	cmd := &cobra.Command{
		Use:   "search QUERY...",
		Short: "Full-text search over stored articles",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}

			opts := search.Options{
				Query: strings.Join(args, " "),
				Page:  store.PageParams{Page: 1, PageSize: limit},
			}
			if fields != "" {
				opts.Fields = search.ParseFields(strings.Split(fields, ","))
			}

			page, err := a.search.Search(cmd.Context(), opts)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTITLE\tACCOUNT\tSNIPPET")
			for _, r := range page.Items {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", r.ID, r.Title, r.PublicAccount, oneLine(r.Snippet))
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\n%d of %d matches\n", len(page.Items), page.Total)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum results to show")
	cmd.Flags().StringVar(&fields, "fields", "", "comma separated fields to search (title, author, content, summary)")

	return cmd
}

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show article, tag and search index counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}

			var (
				articles domain.ArticleStats
				tags     domain.TagStats
				index    search.Stats
			)
			g, ctx := errgroup.WithContext(cmd.Context())
			g.Go(func() (err error) {
				articles, err = a.articles.Stats(ctx)
				return err
			})
			g.Go(func() (err error) {
				tags, err = a.tags.Stats(ctx)
				return err
			})
			g.Go(func() (err error) {
				index, err = a.search.Stats(ctx)
				return err
			})
			if err := g.Wait(); err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(tw, "articles\t%d\n", articles.Total)
			fmt.Fprintf(tw, "favorites\t%d\n", articles.FavoriteCount)
			fmt.Fprintf(tw, "archived\t%d\n", articles.ArchivedCount)
			fmt.Fprintf(tw, "reads\t%d\n", articles.TotalReadCount)
			fmt.Fprintf(tw, "tags\t%d (%d unused)\n", tags.Total, tags.Unused)
			fmt.Fprintf(tw, "indexed\t%d/%d\n", index.IndexedArticles, index.TotalArticles)
			return tw.Flush()
		},
	}
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
