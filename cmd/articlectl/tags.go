package main

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/listenupapp/articlevault/internal/store/sqlite"
)

func newTagsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tags",
		Short: "List and maintain tags",
	}

	cmd.AddCommand(
		newTagsListCmd(),
		newTagsRenameCmd(),
		newTagsMergeCmd(),
		newTagsCleanupCmd(),
	)

	return cmd
}

func newTagsListCmd() *cobra.Command {
	var sort string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tags with their article counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}

			tags, err := a.tags.List(cmd.Context(), sqlite.TagSort(sort))
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tARTICLES\tCOLOR")
			for _, t := range tags {
				fmt.Fprintf(tw, "%d\t%s\t%d\t%s\n", t.ID, t.Name, t.ArticleCount, t.Color)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&sort, "sort", string(sqlite.TagSortName), "order by name, article_count or created_at")

	return cmd
}

func newTagsRenameCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rename ID NAME",
		Short: "Rename a tag",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			tag, err := a.tags.Rename(cmd.Context(), id, args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "renamed tag %d to %q\n", tag.ID, tag.Name)
			return nil
		},
	}
}

func newTagsMergeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "merge SOURCE_ID TARGET_ID",
		Short: "Move every article of SOURCE to TARGET and delete SOURCE",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			source, err := parseID(args[0])
			if err != nil {
				return err
			}
			target, err := parseID(args[1])
			if err != nil {
				return err
			}

			merged, err := a.tags.Merge(cmd.Context(), source, target)
			if err != nil {
				return err
			}
			if !merged {
				fmt.Fprintf(cmd.OutOrStdout(), "tag %d does not exist, nothing merged\n", source)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "merged tag %d into %d\n", source, target)
			return nil
		},
	}
}

func newTagsCleanupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Delete tags no article uses",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}

			n, err := a.tags.CleanupUnused(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d unused tags\n", n)
			return nil
		},
	}
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}
