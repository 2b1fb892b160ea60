package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/MacJediWizard/siteadmin/internal/resources/files"
)

func (a *app) files() (*files.API, error) {
	c, err := a.api()
	if err != nil {
		return nil, err
	}
	return files.New(c), nil
}

func newFileCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "file",
		Short: "Manage stored files",
	}

	cmd.AddCommand(
		newFileListCmd(a),
		newFileInfoCmd(a),
		newFileUploadCmd(a),
		newFileDownloadCmd(a),
		newFileOutcomeCmd(a, "delete", "Move a file to the trash", (*files.API).Delete),
		newFileOutcomeCmd(a, "restore", "Restore a deleted file", (*files.API).Restore),
		newFileStatsCmd(a),
		newFileMD5Cmd(a),
		newFileURLCmd(a),
	)

	return cmd
}

func newFileListCmd(a *app) *cobra.Command {
	var (
		p         files.ListParams
		thumbnail string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List files",
		RunE: func(cmd *cobra.Command, args []string) error {
			switch thumbnail {
			case "":
			case "yes", "no":
				v := thumbnail == "yes"
				p.HasThumbnail = &v
			default:
				return fmt.Errorf("--thumbnail must be yes or no")
			}

			api, err := a.files()
			if err != nil {
				return err
			}
			res, err := api.List(cmd.Context(), p)
			if err != nil {
				return err
			}
			return a.emit(res, func(w *tabwriter.Writer) {
				fmt.Fprintln(w, "UUID\tNAME\tTYPE\tSIZE\tCATEGORY\tDOWNLOADS\tCREATED")
				for _, e := range res.List {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
						e.UUID, e.Name, files.IconType(e.MimeType), files.FormatSize(e.Size), e.Category, e.DownloadCount, e.CreatedAt)
				}
				fmt.Fprintf(w, "\nPage %d of %d, %d files\n", res.Page, res.TotalPages, res.Total)
			})
		},
	}

	f := cmd.Flags()
	f.IntVar(&p.Page, "page", 0, "page number")
	f.IntVar(&p.PageSize, "size", 0, "page size")
	f.StringVar(&p.Category, "category", "", "filter by category")
	f.StringVar(&p.Extension, "ext", "", "filter by extension")
	f.StringVar(&p.Keyword, "keyword", "", "search file names")
	f.StringVar(&p.SortBy, "sort-by", "", "sort field")
	f.StringVar(&p.SortOrder, "sort-order", "", "asc or desc")
	f.StringVar(&p.DateFrom, "from", "", "created on or after (YYYY-MM-DD)")
	f.StringVar(&p.DateTo, "to", "", "created on or before (YYYY-MM-DD)")
	f.Int64Var(&p.MinSize, "min-size", 0, "minimum size in bytes")
	f.Int64Var(&p.MaxSize, "max-size", 0, "maximum size in bytes")
	f.StringVar(&thumbnail, "thumbnail", "", "only files with (yes) or without (no) a thumbnail")

	return cmd
}

func newFileInfoCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "info <uuid>",
		Short: "Show a file's record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := a.files()
			if err != nil {
				return err
			}
			info, err := api.Info(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.emit(info, func(w *tabwriter.Writer) {
				fmt.Fprintf(w, "Name:\t%s\n", info.Name)
				fmt.Fprintf(w, "Type:\t%s (%s)\n", info.MimeType, files.IconType(info.MimeType))
				fmt.Fprintf(w, "Size:\t%s\n", files.FormatSize(info.Size))
				fmt.Fprintf(w, "Category:\t%s\n", info.Category)
				fmt.Fprintf(w, "Status:\t%s\n", info.Status)
				fmt.Fprintf(w, "MD5:\t%s\n", info.MD5)
				fmt.Fprintf(w, "Downloads:\t%d\n", info.DownloadCount)
				fmt.Fprintf(w, "Created:\t%s\n", info.CreatedAt)
				fmt.Fprintf(w, "Download URL:\t%s\n", info.DownloadURL)
			})
		},
	}
}

func newFileUploadCmd(a *app) *cobra.Command {
	var category string

	cmd := &cobra.Command{
		Use:   "upload <path>",
		Short: "Upload a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			api, err := a.files()
			if err != nil {
				return err
			}
			up, err := api.Upload(cmd.Context(), filepath.Base(args[0]), f, category)
			if err != nil {
				return err
			}
			return a.emit(up, func(w *tabwriter.Writer) {
				fmt.Fprintf(w, "Uploaded %s (%s).\n", up.Name, files.FormatSize(up.Size))
				fmt.Fprintf(w, "UUID:\t%s\n", up.UUID)
				fmt.Fprintf(w, "MD5:\t%s\n", up.MD5)
				fmt.Fprintf(w, "Download URL:\t%s\n", up.DownloadURL)
			})
		},
	}

	cmd.Flags().StringVar(&category, "category", "", "file category")

	return cmd
}

func newFileDownloadCmd(a *app) *cobra.Command {
	var (
		output string
		verify bool
		sum    string
	)

	cmd := &cobra.Command{
		Use:   "download <uuid>",
		Short: "Download a file",
		Long:  "Download a file. With --verify the content is checked against the MD5 the server recorded, and against --md5 when given.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			uuid := args[0]
			api, err := a.files()
			if err != nil {
				return err
			}

			dest := output
			if dest == "" {
				dest = uuid
			}
			f, err := os.Create(dest)
			if err != nil {
				return err
			}

			var n int64
			if verify || sum != "" {
				n, err = api.DownloadVerified(cmd.Context(), uuid, f, sum)
			} else {
				n, err = api.Download(cmd.Context(), uuid, f)
			}
			if cerr := f.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				var mismatch *files.ChecksumMismatchError
				if errors.As(err, &mismatch) {
					os.Remove(dest)
				}
				return err
			}

			fmt.Fprintf(a.out, "Saved %s to %s.\n", files.FormatSize(n), dest)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "destination path (default: the uuid)")
	cmd.Flags().BoolVar(&verify, "verify", false, "verify the server-recorded MD5")
	cmd.Flags().StringVar(&sum, "md5", "", "expected MD5, implies --verify")

	return cmd
}

func newFileOutcomeCmd(a *app, use, short string, op func(*files.API, context.Context, string) (*files.Outcome, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <uuid>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := a.files()
			if err != nil {
				return err
			}
			res, err := op(api, cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !res.Success {
				return fmt.Errorf("%s %s: %s", use, args[0], res.Message)
			}
			return a.emit(res, func(w *tabwriter.Writer) {
				fmt.Fprintln(w, res.Message)
			})
		},
	}
}

func newFileStatsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show storage statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := a.files()
			if err != nil {
				return err
			}
			st, err := api.Stats(cmd.Context())
			if err != nil {
				return err
			}
			return a.emit(st, func(w *tabwriter.Writer) {
				fmt.Fprintf(w, "Files:\t%d\n", st.TotalFiles)
				fmt.Fprintf(w, "Size:\t%s\n", files.FormatSize(st.TotalSize))
				fmt.Fprintf(w, "Downloads:\t%d\n", st.TotalDownloads)
				fmt.Fprintln(w, "\nCATEGORY\tFILES\tSIZE")
				for _, c := range st.CategoryStats {
					fmt.Fprintf(w, "%s\t%d\t%s\n", c.Category, c.Count, files.FormatSize(c.Size))
				}
				fmt.Fprintln(w, "\nRANGE\tFILES")
				for _, b := range st.SizeDistribution {
					fmt.Fprintf(w, "%s\t%d\n", b.Range, b.Count)
				}
			})
		},
	}
}

func newFileMD5Cmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "md5 <uuid>",
		Short: "Show the MD5 the server recorded for a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := a.files()
			if err != nil {
				return err
			}
			sum, err := api.MD5(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.emit(sum, func(w *tabwriter.Writer) {
				fmt.Fprintf(w, "%s\t%s\n", sum.MD5, sum.Name)
			})
		},
	}
}

func newFileURLCmd(a *app) *cobra.Command {
	var width, height int
	var thumb bool

	cmd := &cobra.Command{
		Use:   "url <uuid>",
		Short: "Print the download or thumbnail link of a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := a.files()
			if err != nil {
				return err
			}
			link := api.DownloadURL(args[0])
			if thumb || width > 0 || height > 0 {
				link = api.ThumbnailURL(args[0], width, height)
			}
			fmt.Fprintln(a.out, link)
			return nil
		},
	}

	cmd.Flags().BoolVar(&thumb, "thumbnail", false, "print the thumbnail link")
	cmd.Flags().IntVar(&width, "width", 0, "thumbnail width")
	cmd.Flags().IntVar(&height, "height", 0, "thumbnail height")

	return cmd
}
