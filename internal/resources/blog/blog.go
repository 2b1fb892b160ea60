// Package blog wraps the backend's articles, categories and comments.
package blog

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/MacJediWizard/siteadmin/internal/apiclient"
)

// Article states.
const (
	StatusDraft     = "draft"
	StatusPublished = "published"
	StatusPrivate   = "private"
	StatusArchive   = "archive"
)

// SEO holds search and social metadata for an article.
type SEO struct {
	MetaTitle       string `json:"metaTitle,omitempty"`
	MetaDescription string `json:"metaDescription,omitempty"`
	MetaKeywords    string `json:"metaKeywords,omitempty"`
	OGTitle         string `json:"ogTitle,omitempty"`
	OGDescription   string `json:"ogDescription,omitempty"`
	OGImage         string `json:"ogImage,omitempty"`
	TwitterTitle    string `json:"twitterTitle,omitempty"`
	TwitterDesc     string `json:"twitterDesc,omitempty"`
	TwitterImage    string `json:"twitterImage,omitempty"`
	CanonicalURL    string `json:"canonicalUrl,omitempty"`
}

// TagInput names a tag to attach.
type TagInput struct {
	Name string `json:"name"`
}

// ArticleInput is the body of create and update calls.
type ArticleInput struct {
	Title         string     `json:"title"`
	Slug          string     `json:"slug"`
	Summary       string     `json:"summary,omitempty"`
	Content       string     `json:"content"`
	CategoryID    int64      `json:"categoryId,omitempty"`
	Tags          []TagInput `json:"tags,omitempty"`
	Status        string     `json:"status,omitempty"`
	IsDraft       bool       `json:"isDraft"`
	IsTop         bool       `json:"isTop"`
	IsPrivate     bool       `json:"isPrivate"`
	FeaturedImage string     `json:"featuredImage,omitempty"`
	PublishAt     *time.Time `json:"publishAt,omitempty"`
	SEO           SEO        `json:"seo"`
}

// Tag is an attached tag.
type Tag struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// Article is a list entry or a full article. Content fields are only set by
// ArticleDetail.
type Article struct {
	ID            int64      `json:"id"`
	Title         string     `json:"title"`
	Slug          string     `json:"slug"`
	Summary       string     `json:"summary"`
	Content       string     `json:"content,omitempty"`
	HTMLContent   string     `json:"htmlContent,omitempty"`
	CategoryID    int64      `json:"categoryId"`
	CategoryName  string     `json:"categoryName"`
	Status        string     `json:"status"`
	IsDraft       bool       `json:"isDraft"`
	IsTop         bool       `json:"isTop"`
	IsPrivate     bool       `json:"isPrivate"`
	ViewCount     int        `json:"viewCount"`
	LikeCount     int        `json:"likeCount"`
	CommentCount  int        `json:"commentCount"`
	ShareCount    int        `json:"shareCount"`
	FeaturedImage string     `json:"featuredImage"`
	ReadTime      int        `json:"readTime"`
	PublishAt     *time.Time `json:"publishAt"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
	Tags          []Tag      `json:"tags"`
	SEO           *SEO       `json:"seo,omitempty"`
}

// ListParams filters ListArticles.
type ListParams struct {
	Page       int    `url:"page,omitempty"`
	Size       int    `url:"size,omitempty"`
	CategoryID int64  `url:"categoryId,omitempty"`
	Tag        string `url:"tag,omitempty"`
	Status     string `url:"status,omitempty"`
	Search     string `url:"search,omitempty"`
}

// ArticleList is a page of articles.
type ArticleList struct {
	Page  int       `json:"page"`
	Size  int       `json:"size"`
	Total int       `json:"total"`
	List  []Article `json:"list"`
}

// Created acknowledges a create call.
type Created struct {
	ID        int64  `json:"id"`
	CreatedAt string `json:"createdAt"`
}

// CategoryInput creates a category.
type CategoryInput struct {
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	ParentID    *int64 `json:"parentId,omitempty"`
	SortOrder   int    `json:"sortOrder"`
	Description string `json:"description,omitempty"`
}

// Category is a category entry.
type Category struct {
	ID           int64  `json:"id"`
	CategoryID   string `json:"categoryId"`
	Name         string `json:"name"`
	Slug         string `json:"slug"`
	ParentID     *int64 `json:"parentId"`
	SortOrder    int    `json:"sortOrder"`
	Description  string `json:"description"`
	ArticleCount int    `json:"articleCount"`
	IsActive     bool   `json:"isActive"`
	CreatedAt    string `json:"createdAt"`
	UpdatedAt    string `json:"updatedAt"`
}

// CommentInput posts a comment or a reply.
type CommentInput struct {
	ArticleID      int64  `json:"articleId"`
	ParentID       *int64 `json:"parentId,omitempty"`
	VisitorName    string `json:"visitorName"`
	VisitorEmail   string `json:"visitorEmail,omitempty"`
	VisitorWebsite string `json:"visitorWebsite,omitempty"`
	Content        string `json:"content"`
}

// CommentParams pages ListComments.
type CommentParams struct {
	Page   int    `url:"page,omitempty"`
	Size   int    `url:"size,omitempty"`
	Status string `url:"status,omitempty"`
}

// Comment is a comment with its replies.
type Comment struct {
	ID             int64     `json:"id"`
	ArticleID      int64     `json:"articleId"`
	ParentID       *int64    `json:"parentId"`
	VisitorName    string    `json:"visitorName"`
	VisitorEmail   string    `json:"visitorEmail"`
	VisitorWebsite string    `json:"visitorWebsite"`
	Content        string    `json:"content"`
	HTMLContent    string    `json:"htmlContent"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"createdAt"`
	Replies        []Comment `json:"replies"`
}

// CommentList is a page of comments.
type CommentList struct {
	Page  int       `json:"page"`
	Size  int       `json:"size"`
	Total int       `json:"total"`
	List  []Comment `json:"list"`
}

// API exposes /blog/* operations.
type API struct {
	c apiclient.Requester
}

// New creates an API on top of c.
func New(c apiclient.Requester) *API {
	return &API{c: c}
}

func idQuery(id int64) map[string]string {
	return map[string]string{"id": strconv.FormatInt(id, 10)}
}

// CreateArticle publishes or drafts a new article.
func (a *API) CreateArticle(ctx context.Context, in ArticleInput) (*Created, error) {
	var out Created
	if err := a.c.Do(ctx, &apiclient.Request{Method: http.MethodPost, Path: "/blog/articles", Body: in}, &out); err != nil {
		return nil, fmt.Errorf("create article: %w", err)
	}
	return &out, nil
}

// UpdateArticle replaces article id.
func (a *API) UpdateArticle(ctx context.Context, id int64, in ArticleInput) (bool, error) {
	var out struct {
		Updated bool `json:"updated"`
	}
	body := struct {
		ID int64 `json:"id"`
		ArticleInput
	}{ID: id, ArticleInput: in}
	req := &apiclient.Request{Method: http.MethodPut, Path: "/blog/articles", Query: idQuery(id), Body: body}
	if err := a.c.Do(ctx, req, &out); err != nil {
		return false, fmt.Errorf("update article %d: %w", id, err)
	}
	return out.Updated, nil
}

// ListArticles returns a page of articles.
func (a *API) ListArticles(ctx context.Context, p ListParams) (*ArticleList, error) {
	var out ArticleList
	if err := a.c.Do(ctx, &apiclient.Request{Method: http.MethodGet, Path: "/blog/articles", Query: p}, &out); err != nil {
		return nil, fmt.Errorf("list articles: %w", err)
	}
	return &out, nil
}

// ArticleDetail fetches article id. incrementView asks the backend to count
// the read.
func (a *API) ArticleDetail(ctx context.Context, id int64, incrementView bool) (*Article, error) {
	var out Article
	q := map[string]any{"id": id, "incrementView": incrementView}
	if err := a.c.Do(ctx, &apiclient.Request{Method: http.MethodGet, Path: "/blog/articles/detail", Query: q}, &out); err != nil {
		return nil, fmt.Errorf("get article %d: %w", id, err)
	}
	return &out, nil
}

// DeleteArticle removes article id.
func (a *API) DeleteArticle(ctx context.Context, id int64) (bool, error) {
	var out struct {
		Deleted bool `json:"deleted"`
	}
	if err := a.c.Do(ctx, &apiclient.Request{Method: http.MethodDelete, Path: "/blog/articles", Query: idQuery(id)}, &out); err != nil {
		return false, fmt.Errorf("delete article %d: %w", id, err)
	}
	return out.Deleted, nil
}

// CreateCategory adds a category.
func (a *API) CreateCategory(ctx context.Context, in CategoryInput) (*Created, error) {
	var out Created
	if err := a.c.Do(ctx, &apiclient.Request{Method: http.MethodPost, Path: "/blog/categories", Body: in}, &out); err != nil {
		return nil, fmt.Errorf("create category: %w", err)
	}
	return &out, nil
}

// ListCategories returns every category.
func (a *API) ListCategories(ctx context.Context) ([]Category, error) {
	var out struct {
		List []Category `json:"list"`
	}
	if err := a.c.Do(ctx, &apiclient.Request{Method: http.MethodGet, Path: "/blog/categories"}, &out); err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return out.List, nil
}

// CreateComment posts a comment.
func (a *API) CreateComment(ctx context.Context, in CommentInput) (*Created, error) {
	var out Created
	if err := a.c.Do(ctx, &apiclient.Request{Method: http.MethodPost, Path: "/blog/comments", Body: in}, &out); err != nil {
		return nil, fmt.Errorf("create comment: %w", err)
	}
	return &out, nil
}

// ListComments returns a page of comments on articleID.
func (a *API) ListComments(ctx context.Context, articleID int64, p CommentParams) (*CommentList, error) {
	var out CommentList
	path := "/blog/comments?articleId=" + strconv.FormatInt(articleID, 10)
	if err := a.c.Do(ctx, &apiclient.Request{Method: http.MethodGet, Path: path, Query: p}, &out); err != nil {
		return nil, fmt.Errorf("list comments for article %d: %w", articleID, err)
	}
	return &out, nil
}

// DeleteComment removes comment id.
func (a *API) DeleteComment(ctx context.Context, id int64) (bool, error) {
	var out struct {
		Deleted bool `json:"deleted"`
	}
	if err := a.c.Do(ctx, &apiclient.Request{Method: http.MethodDelete, Path: "/blog/comments", Query: idQuery(id)}, &out); err != nil {
		return false, fmt.Errorf("delete comment %d: %w", id, err)
	}
	return out.Deleted, nil
}
