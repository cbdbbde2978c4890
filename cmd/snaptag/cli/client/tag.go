package client

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mwantia/snaptag/cmd/snaptag/cli"
	"github.com/mwantia/snaptag/internal/app"
	"github.com/mwantia/snaptag/pkg/db/models"
	"github.com/mwantia/snaptag/pkg/db/schema"
)

func NewTagCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tag",
		Short: "Manage image tags",
		Long:  "Manage the free-form tags attached to stored images.",
	}

	cmd.AddCommand(NewTagAddCommand())
	cmd.AddCommand(NewTagListCommand())
	cmd.AddCommand(NewTagRemoveCommand())

	return cmd
}

func NewTagAddCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <image-key> <value>",
		Short: "Tag an image",
		Long:  "Adds a tag to an image and lists all tags of that image afterwards.",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			imageKey, err := cli.ParseKey(args[0])
			if err != nil {
				return err
			}

			return cli.RunWithApp(cmd, func(ctx context.Context, a *app.App) error {
				tags, err := a.TagImage(ctx, imageKey, strings.Join(args[1:], " "))
				if err != nil {
					return err
				}
				return printTags(cmd, tags)
			})
		},
	}

	return cmd
}

func NewTagListCommand() *cobra.Command {
	var image string

	cmd := &cobra.Command{
		Use:   "ls",
		Short: "List tags",
		Long:  "List all tags, or only the tags of one image.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.RunWithApp(cmd, func(ctx context.Context, a *app.App) error {
				if image == "" {
					tags, err := a.Store().GetTags(ctx)
					if err != nil {
						return err
					}
					return printTags(cmd, tags)
				}

				imageKey, err := cli.ParseKey(image)
				if err != nil {
					return err
				}

				tags, err := a.Store().GetTagsByIndex(ctx, schema.IndexImageKey, imageKey)
				if err != nil {
					return err
				}
				return printTags(cmd, tags)
			})
		},
	}

	cmd.Flags().StringVarP(&image, "image", "i", "", "Only list tags of the image with this key")

	return cmd
}

func NewTagRemoveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rm <key>",
		Short: "Remove a tag",
		Long:  "Removes a single tag by its key. Unknown keys are ignored.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := cli.ParseKey(args[0])
			if err != nil {
				return err
			}

			return cli.RunWithApp(cmd, func(ctx context.Context, a *app.App) error {
				return a.Store().RemoveTag(ctx, key)
			})
		},
	}

	return cmd
}

func printTags(cmd *cobra.Command, tags []models.Tag) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "KEY\tIMAGE\tVALUE")
	for _, tag := range tags {
		fmt.Fprintf(w, "%d\t%d\t%s\n", tag.Key, tag.Data.ImageKey, tag.Data.Value)
	}
	return w.Flush()
}
