package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dmitrijs2005/gophvault/internal/client/client"
	"github.com/dmitrijs2005/gophvault/internal/common"
	"github.com/dmitrijs2005/gophvault/internal/filex"
	"github.com/spf13/cobra"
)

func (a *App) putCommand() *cobra.Command {
	var (
		opts   client.UploadOptions
		public bool
	)

	cmd := &cobra.Command{
		Use:   "put <path>",
		Short: "Upload a file; an existing name of yours gets a new version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireLogin(); err != nil {
				return err
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			if public {
				opts.Visibility = "public"
			}

			res, err := a.client.Upload(cmd.Context(), filepath.Base(args[0]), data, opts)
			if err != nil {
				return err
			}
			if res.IsNewVersion {
				success(a.out, "Stored %s as version %d (%s)", res.Object.Name, res.Object.Version, res.Object.ID)
			} else {
				success(a.out, "Stored %s (%s)", res.Object.Name, res.Object.ID)
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.Title, "title", "", "title")
	f.StringVar(&opts.Description, "description", "", "description")
	f.StringVar(&opts.Visibility, "visibility", "", "private or public")
	f.BoolVar(&public, "public", false, "shorthand for --visibility public")
	cmd.MarkFlagsMutuallyExclusive("visibility", "public")
	return cmd
}

func (a *App) lsCommand() *cobra.Command {
	var mine, downloaded bool

	cmd := &cobra.Command{
		Use:   "ls",
		Short: "List public files, or your own with --mine",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				list []client.Object
				err  error
			)
			switch {
			case mine:
				if err := a.requireLogin(); err != nil {
					return err
				}
				list, err = a.client.ListUploaded(cmd.Context())
			case downloaded:
				if err := a.requireLogin(); err != nil {
					return err
				}
				list, err = a.client.ListDownloaded(cmd.Context())
			default:
				list, err = a.client.ListPublic(cmd.Context())
			}
			if err != nil {
				return err
			}
			printObjects(a.out, list)
			return nil
		},
	}

	cmd.Flags().BoolVar(&mine, "mine", false, "list files you uploaded")
	cmd.Flags().BoolVar(&downloaded, "downloaded", false, "list public files you downloaded")
	cmd.MarkFlagsMutuallyExclusive("mine", "downloaded")
	return cmd
}

func (a *App) getCommand() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Download a file by id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := a.client.Download(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			path := output
			if path == "" {
				path = filepath.Base(d.Name)
			}
			if err := filex.WriteFileAtomic(path, d.Data, 0o600); err != nil {
				return err
			}
			success(a.out, "Saved %s version %d to %s (%d bytes)", d.Name, d.Version, path, len(d.Data))
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "destination path (defaults to the stored name)")
	return cmd
}

func (a *App) updateCommand() *cobra.Command {
	var name, title, description, visibility string

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change a file's name or metadata in place",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireLogin(); err != nil {
				return err
			}

			var patch client.Patch
			f := cmd.Flags()
			if f.Changed("name") {
				patch.Name = &name
			}
			if f.Changed("title") {
				patch.Title = &title
			}
			if f.Changed("description") {
				patch.Description = &description
			}
			if f.Changed("visibility") {
				patch.Visibility = &visibility
			}
			if patch == (client.Patch{}) {
				return fmt.Errorf("%w: nothing to update", common.ErrorValidation)
			}

			o, err := a.client.Update(cmd.Context(), args[0], patch)
			if err != nil {
				return err
			}
			success(a.out, "Updated %s", o.ID)
			printObjects(a.out, []client.Object{*o})
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&name, "name", "", "new name")
	f.StringVar(&title, "title", "", "new title")
	f.StringVar(&description, "description", "", "new description")
	f.StringVar(&visibility, "visibility", "", "private or public")
	return cmd
}

func (a *App) rmCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete a file version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireLogin(); err != nil {
				return err
			}
			if err := a.client.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			success(a.out, "Deleted %s", args[0])
			return nil
		},
	}
}
