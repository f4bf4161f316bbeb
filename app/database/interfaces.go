package database

import "context"

// ArticleRepository is the article store. Lookups return nil, nil when the
// article does not exist.
type ArticleRepository interface {
	GetArticle(ctx context.Context, id string) (*Article, error)
	GetArticleByURL(ctx context.Context, url string) (*Article, error)
	ListArticles(ctx context.Context, filter ArticleFilter) ([]Article, error)
	ListAllArticles(ctx context.Context) ([]Article, error)
	GetArticleStats(ctx context.Context) (ArticleStats, error)

	// CreateArticle returns the existing article unchanged when the URL is already stored.
	CreateArticle(ctx context.Context, article ArticleCreate) (*Article, error)
	// CreateArticleIfAbsent also reports whether this call inserted the row.
	CreateArticleIfAbsent(ctx context.Context, article ArticleCreate) (*Article, bool, error)
	UpdateArticle(ctx context.Context, id string, update ArticleUpdate) (*Article, error)
	DeleteArticle(ctx context.Context, id string) (bool, error)
}
