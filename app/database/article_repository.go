package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/lysyi3m/argus/app/ioc"
)

const (
	DefaultListLimit = 100

	// Fixed width so that stored timestamps sort lexicographically.
	timeLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

// likeEscaper makes LIKE wildcards in user input match literally.
var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

var articleColumns = []string{
	"id", "url", "title", "COALESCE(content, '')", "COALESCE(source, '')",
	"published_date", "summary", "threat_type", "severity", "iocs",
	"created_at", "updated_at",
}

// SQLArticleRepository stores articles in SQLite.
type SQLArticleRepository struct {
	db  *DB
	now func() time.Time
}

var _ ArticleRepository = (*SQLArticleRepository)(nil)

func NewArticleRepository(db *DB) *SQLArticleRepository {
	return &SQLArticleRepository{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

func (r *SQLArticleRepository) GetArticle(ctx context.Context, id string) (*Article, error) {
	article, err := r.getOne(ctx, sq.Eq{"id": id})
	if err != nil {
		return nil, fmt.Errorf("failed to get article by ID: %w", err)
	}
	return article, nil
}

func (r *SQLArticleRepository) GetArticleByURL(ctx context.Context, url string) (*Article, error) {
	article, err := r.getOne(ctx, sq.Eq{"url": url})
	if err != nil {
		return nil, fmt.Errorf("failed to get article by URL: %w", err)
	}
	return article, nil
}

func (r *SQLArticleRepository) CreateArticle(ctx context.Context, article ArticleCreate) (*Article, error) {
	created, _, err := r.CreateArticleIfAbsent(ctx, article)
	return created, err
}

// CreateArticleIfAbsent inserts the article unless its URL is already stored.
// inserted is true only for the call whose insert took effect, so concurrent
// callers racing on one URL see exactly one insert.
func (r *SQLArticleRepository) CreateArticleIfAbsent(ctx context.Context, article ArticleCreate) (*Article, bool, error) {
	if article.URL == "" {
		return nil, false, fmt.Errorf("article URL is required")
	}

	query, args, err := sq.Insert("articles").
		Columns("id", "url", "title", "content", "source", "published_date", "created_at").
		Values(uuid.NewString(), article.URL, article.Title, article.Content, article.Source,
			formatTimePtr(article.PublishedDate), formatTime(r.now())).
		Suffix("ON CONFLICT(url) DO NOTHING").
		ToSql()
	if err != nil {
		return nil, false, fmt.Errorf("failed to build insert: %w", err)
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create article: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("failed to read affected rows: %w", err)
	}

	stored, err := r.GetArticleByURL(ctx, article.URL)
	if err != nil {
		return nil, false, err
	}
	if stored == nil {
		return nil, false, fmt.Errorf("article %s missing after insert", article.URL)
	}

	return stored, affected > 0, nil
}

// UpdateArticle merges the provided fields and bumps updated_at. It returns
// nil, nil when the article does not exist.
func (r *SQLArticleRepository) UpdateArticle(ctx context.Context, id string, update ArticleUpdate) (*Article, error) {
	if update.IsEmpty() {
		return r.GetArticle(ctx, id)
	}

	builder := sq.Update("articles").Where(sq.Eq{"id": id})
	if update.Summary != nil {
		builder = builder.Set("summary", *update.Summary)
	}
	if update.ThreatType != nil {
		builder = builder.Set("threat_type", *update.ThreatType)
	}
	if update.Severity != nil {
		builder = builder.Set("severity", *update.Severity)
	}
	if update.IOCs != nil {
		encoded, err := json.Marshal(update.IOCs)
		if err != nil {
			return nil, fmt.Errorf("failed to encode iocs: %w", err)
		}
		builder = builder.Set("iocs", string(encoded))
	}
	builder = builder.Set("updated_at", formatTime(r.now()))

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build update: %w", err)
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to update article: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return nil, nil
	}

	return r.GetArticle(ctx, id)
}

func (r *SQLArticleRepository) DeleteArticle(ctx context.Context, id string) (bool, error) {
	query, args, err := sq.Delete("articles").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to build delete: %w", err)
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to delete article: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}

	return affected > 0, nil
}

func (r *SQLArticleRepository) ListArticles(ctx context.Context, filter ArticleFilter) ([]Article, error) {
	builder := sq.Select(articleColumns...).From("articles")

	if filter.ThreatType != "" {
		builder = builder.Where(sq.Eq{"threat_type": filter.ThreatType})
	}
	if filter.Severity != "" {
		builder = builder.Where(sq.Eq{"severity": filter.Severity})
	}
	if filter.Source != "" {
		builder = builder.Where(sq.Eq{"source": filter.Source})
	}
	if filter.Query != "" {
		pattern := "%" + likeEscaper.Replace(filter.Query) + "%"
		builder = builder.Where(sq.Or{
			sq.Expr(`title LIKE ? ESCAPE '\'`, pattern),
			sq.Expr(`content LIKE ? ESCAPE '\'`, pattern),
		})
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	builder = builder.OrderBy("COALESCE(published_date, created_at) DESC", "rowid DESC").
		Limit(uint64(limit)).
		Offset(uint64(max(filter.Skip, 0)))

	articles, err := r.query(ctx, builder)
	if err != nil {
		return nil, fmt.Errorf("failed to list articles: %w", err)
	}
	return articles, nil
}

// ListAllArticles returns every article in creation order.
func (r *SQLArticleRepository) ListAllArticles(ctx context.Context) ([]Article, error) {
	builder := sq.Select(articleColumns...).From("articles").OrderBy("created_at", "rowid")

	articles, err := r.query(ctx, builder)
	if err != nil {
		return nil, fmt.Errorf("failed to list all articles: %w", err)
	}
	return articles, nil
}

func (r *SQLArticleRepository) GetArticleStats(ctx context.Context) (ArticleStats, error) {
	var stats ArticleStats
	err := r.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN summary IS NOT NULL THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN iocs IS NOT NULL AND iocs <> '{}' THEN 1 ELSE 0 END), 0)
		FROM articles
	`).Scan(&stats.Total, &stats.Processed, &stats.WithIndicator)
	if err != nil {
		return ArticleStats{}, fmt.Errorf("failed to get article stats: %w", err)
	}
	return stats, nil
}

func (r *SQLArticleRepository) getOne(ctx context.Context, where sq.Sqlizer) (*Article, error) {
	query, args, err := sq.Select(articleColumns...).From("articles").Where(where).Limit(1).ToSql()
	if err != nil {
		return nil, err
	}

	article, err := scanArticle(r.db.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return article, nil
}

func (r *SQLArticleRepository) query(ctx context.Context, builder sq.SelectBuilder) ([]Article, error) {
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	articles := make([]Article, 0)
	for rows.Next() {
		article, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan article row: %w", err)
		}
		articles = append(articles, *article)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating article rows: %w", err)
	}

	return articles, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanArticle(row rowScanner) (*Article, error) {
	var (
		article                        Article
		publishedDate, createdAt       sql.NullString
		updatedAt, summary, threatType sql.NullString
		severity, iocs                 sql.NullString
	)

	err := row.Scan(
		&article.ID, &article.URL, &article.Title, &article.Content, &article.Source,
		&publishedDate, &summary, &threatType, &severity, &iocs,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	article.Summary = nullStringPtr(summary)
	article.ThreatType = nullStringPtr(threatType)
	article.Severity = nullStringPtr(severity)

	if article.PublishedDate, err = parseTimePtr(publishedDate); err != nil {
		return nil, fmt.Errorf("invalid published_date: %w", err)
	}
	if article.UpdatedAt, err = parseTimePtr(updatedAt); err != nil {
		return nil, fmt.Errorf("invalid updated_at: %w", err)
	}
	if created, err := parseTimePtr(createdAt); err != nil {
		return nil, fmt.Errorf("invalid created_at: %w", err)
	} else if created != nil {
		article.CreatedAt = *created
	}

	if iocs.Valid {
		var indicators ioc.Indicators
		if err := json.Unmarshal([]byte(iocs.String), &indicators); err != nil {
			return nil, fmt.Errorf("invalid iocs: %w", err)
		}
		article.IOCs = indicators
	}

	return &article, nil
}

func nullStringPtr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	value := s.String
	return &value
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func parseTimePtr(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := time.Parse(timeLayout, s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
