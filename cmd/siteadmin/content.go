package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"github.com/MacJediWizard/siteadmin/internal/resources/blog"
	"github.com/MacJediWizard/siteadmin/internal/resources/weibo"
)

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return id, nil
}

// excerpt shortens s to n runes on a single line.
func excerpt(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n-1]) + "…"
}

func readJSONFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func (a *app) blog() (*blog.API, error) {
	c, err := a.api()
	if err != nil {
		return nil, err
	}
	return blog.New(c), nil
}

func newBlogCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "blog",
		Short: "Manage blog articles, categories and comments",
	}

	cmd.AddCommand(
		newBlogListCmd(a),
		newBlogShowCmd(a),
		newBlogCreateCmd(a),
		newBlogDeleteCmd(a),
		newBlogCategoriesCmd(a),
		newBlogCommentsCmd(a),
	)

	return cmd
}

func newBlogListCmd(a *app) *cobra.Command {
	var p blog.ListParams

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List articles",
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := a.blog()
			if err != nil {
				return err
			}
			res, err := api.ListArticles(cmd.Context(), p)
			if err != nil {
				return err
			}
			return a.emit(res, func(w *tabwriter.Writer) {
				fmt.Fprintln(w, "ID\tTITLE\tCATEGORY\tSTATUS\tVIEWS\tCREATED")
				for _, art := range res.List {
					fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\t%s\n",
						art.ID, excerpt(art.Title, 48), art.CategoryName, art.Status, art.ViewCount, art.CreatedAt.Format("2006-01-02"))
				}
				fmt.Fprintf(w, "\nPage %d, %d of %d articles\n", res.Page, len(res.List), res.Total)
			})
		},
	}

	cmd.Flags().IntVar(&p.Page, "page", 0, "page number")
	cmd.Flags().IntVar(&p.Size, "size", 0, "page size")
	cmd.Flags().Int64Var(&p.CategoryID, "category", 0, "filter by category id")
	cmd.Flags().StringVar(&p.Tag, "tag", "", "filter by tag")
	cmd.Flags().StringVar(&p.Status, "status", "", "filter by status")
	cmd.Flags().StringVar(&p.Search, "search", "", "full-text search")

	return cmd
}

func newBlogShowCmd(a *app) *cobra.Command {
	var countView bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show an article",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			api, err := a.blog()
			if err != nil {
				return err
			}
			art, err := api.ArticleDetail(cmd.Context(), id, countView)
			if err != nil {
				return err
			}
			return a.emit(art, func(w *tabwriter.Writer) {
				fmt.Fprintf(w, "Title:\t%s\n", art.Title)
				fmt.Fprintf(w, "Slug:\t%s\n", art.Slug)
				fmt.Fprintf(w, "Category:\t%s\n", art.CategoryName)
				fmt.Fprintf(w, "Status:\t%s\n", art.Status)
				tags := make([]string, 0, len(art.Tags))
				for _, t := range art.Tags {
					tags = append(tags, t.Name)
				}
				fmt.Fprintf(w, "Tags:\t%s\n", strings.Join(tags, ", "))
				fmt.Fprintf(w, "Views:\t%d\n", art.ViewCount)
				fmt.Fprintf(w, "\n%s\n", art.Content)
			})
		},
	}

	cmd.Flags().BoolVar(&countView, "count-view", false, "increment the article's view counter")

	return cmd
}

func newBlogCreateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "create <article.json>",
		Short: "Create an article from a JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var in blog.ArticleInput
			if err := readJSONFile(args[0], &in); err != nil {
				return err
			}
			api, err := a.blog()
			if err != nil {
				return err
			}
			created, err := api.CreateArticle(cmd.Context(), in)
			if err != nil {
				return err
			}
			return a.emit(created, func(w *tabwriter.Writer) {
				fmt.Fprintf(w, "Created article %d.\n", created.ID)
			})
		},
	}
}

func newBlogDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an article",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			api, err := a.blog()
			if err != nil {
				return err
			}
			ok, err := api.DeleteArticle(cmd.Context(), id)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("backend did not delete article %d", id)
			}
			fmt.Fprintf(a.out, "Deleted article %d.\n", id)
			return nil
		},
	}
}

func newBlogCategoriesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List categories",
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := a.blog()
			if err != nil {
				return err
			}
			cats, err := api.ListCategories(cmd.Context())
			if err != nil {
				return err
			}
			return a.emit(cats, func(w *tabwriter.Writer) {
				fmt.Fprintln(w, "ID\tNAME\tSLUG\tARTICLES\tACTIVE")
				for _, c := range cats {
					fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%v\n", c.ID, c.Name, c.Slug, c.ArticleCount, c.IsActive)
				}
			})
		},
	}
}

func newBlogCommentsCmd(a *app) *cobra.Command {
	var p blog.CommentParams

	cmd := &cobra.Command{
		Use:   "comments <article-id>",
		Short: "List comments of an article",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			api, err := a.blog()
			if err != nil {
				return err
			}
			res, err := api.ListComments(cmd.Context(), id, p)
			if err != nil {
				return err
			}
			return a.emit(res, func(w *tabwriter.Writer) {
				fmt.Fprintln(w, "ID\tAUTHOR\tSTATUS\tREPLIES\tCOMMENT")
				for _, c := range res.List {
					fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\n", c.ID, c.VisitorName, c.Status, len(c.Replies), excerpt(c.Content, 60))
				}
			})
		},
	}

	cmd.Flags().IntVar(&p.Page, "page", 0, "page number")
	cmd.Flags().IntVar(&p.Size, "size", 0, "page size")
	cmd.Flags().StringVar(&p.Status, "status", "", "filter by moderation status")

	return cmd
}

func (a *app) weibo() (*weibo.API, error) {
	c, err := a.api()
	if err != nil {
		return nil, err
	}
	return weibo.New(c), nil
}

func newWeiboCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "weibo",
		Short: "Manage weibo posts",
	}

	cmd.AddCommand(
		newWeiboListCmd(a),
		newWeiboShowCmd(a),
		newWeiboPostCmd(a),
		newWeiboSnapshotsCmd(a),
		newWeiboDeleteCmd(a),
	)

	return cmd
}

func newWeiboListCmd(a *app) *cobra.Command {
	var p weibo.ListParams

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List posts",
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := a.weibo()
			if err != nil {
				return err
			}
			res, err := api.List(cmd.Context(), p)
			if err != nil {
				return err
			}
			return a.emit(res, func(w *tabwriter.Writer) {
				fmt.Fprintln(w, "ID\tVISIBILITY\tASSETS\tCREATED\tCONTENT")
				for _, post := range res.List {
					fmt.Fprintf(w, "%d\t%s\t%d\t%s\t%s\n", post.ID, post.Visibility, len(post.Assets), post.CreatedAt, excerpt(post.Content, 60))
				}
				fmt.Fprintf(w, "\nPage %d, %d of %d posts\n", res.Page, len(res.List), res.Total)
			})
		},
	}

	cmd.Flags().IntVar(&p.Page, "page", 0, "page number")
	cmd.Flags().IntVar(&p.Size, "size", 0, "page size")
	cmd.Flags().StringVar(&p.Visibility, "visibility", "", "filter by visibility")

	return cmd
}

func newWeiboShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a post",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			api, err := a.weibo()
			if err != nil {
				return err
			}
			post, err := api.Detail(cmd.Context(), id)
			if err != nil {
				return err
			}
			return a.emit(post, func(w *tabwriter.Writer) {
				fmt.Fprintf(w, "ID:\t%d\n", post.ID)
				fmt.Fprintf(w, "Visibility:\t%s\n", post.Visibility)
				fmt.Fprintf(w, "Created:\t%s\n", post.CreatedAt)
				if post.City != "" {
					fmt.Fprintf(w, "City:\t%s\n", post.City)
				}
				fmt.Fprintf(w, "Assets:\t%d\n", len(post.Assets))
				fmt.Fprintf(w, "\n%s\n", post.Content)
			})
		},
	}
}

func newWeiboPostCmd(a *app) *cobra.Command {
	var in weibo.PostInput

	cmd := &cobra.Command{
		Use:   "post <content>",
		Short: "Publish a post",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in.Content = args[0]
			api, err := a.weibo()
			if err != nil {
				return err
			}
			created, err := api.Create(cmd.Context(), in)
			if err != nil {
				return err
			}
			return a.emit(created, func(w *tabwriter.Writer) {
				fmt.Fprintf(w, "Published post %d.\n", created.ID)
			})
		},
	}

	cmd.Flags().StringVar(&in.Visibility, "visibility", "", "post visibility")
	cmd.Flags().StringVar(&in.City, "city", "", "city shown with the post")

	return cmd
}

func newWeiboSnapshotsCmd(a *app) *cobra.Command {
	var page, size int

	cmd := &cobra.Command{
		Use:   "snapshots <post-id> [version-id]",
		Short: "List a post's edit history, or show one snapshot",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			postID, err := parseID(args[0])
			if err != nil {
				return err
			}
			api, err := a.weibo()
			if err != nil {
				return err
			}

			if len(args) == 2 {
				id, err := parseID(args[1])
				if err != nil {
					return err
				}
				snap, err := api.Snapshot(cmd.Context(), id)
				if err != nil {
					return err
				}
				return a.emit(snap, func(w *tabwriter.Writer) {
					fmt.Fprintf(w, "Version:\t%d\n", snap.Version)
					fmt.Fprintf(w, "Created:\t%s\n", snap.CreatedAt)
					fmt.Fprintf(w, "\n%s\n", snap.Content)
				})
			}

			res, err := api.Snapshots(cmd.Context(), postID, page, size)
			if err != nil {
				return err
			}
			return a.emit(res, func(w *tabwriter.Writer) {
				fmt.Fprintln(w, "ID\tVERSION\tVISIBILITY\tCREATED")
				for _, s := range res.Items {
					fmt.Fprintf(w, "%d\t%d\t%s\t%s\n", s.ID, s.Version, s.Visibility, s.CreatedAt)
				}
			})
		},
	}

	cmd.Flags().IntVar(&page, "page", 0, "page number")
	cmd.Flags().IntVar(&size, "size", 0, "page size")

	return cmd
}

func newWeiboDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a post",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			api, err := a.weibo()
			if err != nil {
				return err
			}
			ok, err := api.Delete(cmd.Context(), id)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("backend did not delete post %d", id)
			}
			fmt.Fprintf(a.out, "Deleted post %d.\n", id)
			return nil
		},
	}
}
