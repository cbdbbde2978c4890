package client

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/mwantia/snaptag/cmd/snaptag/cli"
	"github.com/mwantia/snaptag/internal/app"
)

func NewImageCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "image",
		Short: "Manage stored images",
		Long:  "Manage the locally stored images and add, list, rename or remove them.",
	}

	cmd.AddCommand(NewImageAddCommand())
	cmd.AddCommand(NewImageListCommand())
	cmd.AddCommand(NewImageTitleCommand())
	cmd.AddCommand(NewImageRemoveCommand())

	return cmd
}

func NewImageAddCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <file>",
		Short: "Store an image",
		Long:  "Reads an image file and stores it as a data URI in the local database.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read image: %w", err)
			}

			return cli.RunWithApp(cmd, func(ctx context.Context, a *app.App) error {
				key, err := a.Upload(ctx, data)
				if err != nil {
					return err
				}

				fmt.Fprintf(cmd.OutOrStdout(), "Added image %d (%s)\n", key, humanize.Bytes(uint64(len(data))))
				return nil
			})
		},
	}

	return cmd
}

func NewImageListCommand() *cobra.Command {
	var tagFilter string

	cmd := &cobra.Command{
		Use:   "ls",
		Short: "List stored images",
		Long:  "List all stored images together with their tags, optionally filtered by tag value.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.RunWithApp(cmd, func(ctx context.Context, a *app.App) error {
				images, err := a.FilterImages(ctx, tagFilter)
				if err != nil {
					return err
				}

				grouped, err := a.TagsByImage(ctx)
				if err != nil {
					return err
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "KEY\tTITLE\tTYPE\tSIZE\tTAGS")
				for _, img := range images {
					values := make([]string, 0, len(grouped[img.Key]))
					for _, tag := range grouped[img.Key] {
						values = append(values, tag.Data.Value)
					}

					title := img.Data.Title
					if title == "" {
						title = "-"
					}

					fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", img.Key, title, app.MediaType(img.Data.Content),
						humanize.Bytes(uint64(len(img.Data.Content))), strings.Join(values, ", "))
				}
				return w.Flush()
			})
		},
	}

	cmd.Flags().StringVarP(&tagFilter, "tag", "t", "", "Only list images with a tag containing this value")

	return cmd
}

func NewImageTitleCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "title <key> <title>",
		Short: "Set the title of an image",
		Long:  "Sets the title of an image. Unknown keys are ignored.",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := cli.ParseKey(args[0])
			if err != nil {
				return err
			}

			return cli.RunWithApp(cmd, func(ctx context.Context, a *app.App) error {
				return a.Store().UpdateTitle(ctx, key, strings.Join(args[1:], " "))
			})
		},
	}

	return cmd
}

func NewImageRemoveCommand() *cobra.Command {
	var withTags bool

	cmd := &cobra.Command{
		Use:   "rm <key>",
		Short: "Remove an image",
		Long:  "Removes an image. Its tags are kept unless --with-tags is given.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := cli.ParseKey(args[0])
			if err != nil {
				return err
			}

			return cli.RunWithApp(cmd, func(ctx context.Context, a *app.App) error {
				if !withTags {
					return a.Store().RemoveImage(ctx, key)
				}

				removed, err := a.RemoveImageWithTags(ctx, key)
				if err != nil {
					return err
				}

				fmt.Fprintf(cmd.OutOrStdout(), "Removed image %d and %d tag(s)\n", key, removed)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&withTags, "with-tags", false, "Also remove all tags of the image")

	return cmd
}
