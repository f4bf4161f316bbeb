package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/lysyi3m/argus/app/ioc"
)

func newTestRepository(t *testing.T) *SQLArticleRepository {
	t.Helper()

	db, err := NewConnection(filepath.Join(t.TempDir(), "argus-test.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	version, dirty, err := RunMigrations(db)
	if err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}
	if version != 1 || dirty {
		t.Fatalf("Expected clean migration version 1, got %d (dirty: %v)", version, dirty)
	}

	return NewArticleRepository(db)
}

func strPtr(s string) *string {
	return &s
}

func TestNewConnection_EmptyPath(t *testing.T) {
	if _, err := NewConnection(""); err == nil {
		t.Error("Expected error for empty database path")
	}
}

func TestArticleRepository_CreateAndGet(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	published := time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)
	created, err := repo.CreateArticle(ctx, ArticleCreate{
		URL:           "https://example.com/a1",
		Title:         "New ransomware strain",
		Content:       "Body text",
		Source:        "Example Feed",
		PublishedDate: &published,
	})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if created.ID == "" {
		t.Error("Expected store-assigned ID")
	}
	if created.CreatedAt.IsZero() {
		t.Error("Expected created_at to be set")
	}
	if created.UpdatedAt != nil {
		t.Errorf("Expected nil updated_at on creation, got %v", created.UpdatedAt)
	}
	if created.PublishedDate == nil || !created.PublishedDate.Equal(published) {
		t.Errorf("Expected published date %v, got %v", published, created.PublishedDate)
	}
	if created.Summary != nil || created.ThreatType != nil || created.Severity != nil || created.IOCs != nil {
		t.Error("Expected enrichment fields to be unset on creation")
	}

	fetched, err := repo.GetArticle(ctx, created.ID)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if fetched == nil || fetched.URL != "https://example.com/a1" {
		t.Errorf("Expected to fetch created article, got %+v", fetched)
	}
}

func TestArticleRepository_GetMissing(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	article, err := repo.GetArticle(ctx, "does-not-exist")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if article != nil {
		t.Errorf("Expected nil article, got %+v", article)
	}

	article, err = repo.GetArticleByURL(ctx, "https://nowhere.example/")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if article != nil {
		t.Errorf("Expected nil article, got %+v", article)
	}
}

func TestArticleRepository_CreateDuplicateURL(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	first, err := repo.CreateArticle(ctx, ArticleCreate{URL: "https://example.com/dup", Title: "Original"})
	if err != nil {
		t.Fatal(err)
	}

	second, err := repo.CreateArticle(ctx, ArticleCreate{URL: "https://example.com/dup", Title: "Replacement"})
	if err != nil {
		t.Fatalf("Expected no error on duplicate create, got: %v", err)
	}

	if second.ID != first.ID {
		t.Errorf("Expected existing article %s, got %s", first.ID, second.ID)
	}
	if second.Title != "Original" {
		t.Errorf("Expected existing record unchanged, got title '%s'", second.Title)
	}

	stats, err := repo.GetArticleStats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Total != 1 {
		t.Errorf("Expected 1 article in store, got %d", stats.Total)
	}
}

func TestArticleRepository_PartialUpdateKeepsIOCs(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	article, err := repo.CreateArticle(ctx, ArticleCreate{URL: "https://example.com/p", Title: "Partial"})
	if err != nil {
		t.Fatal(err)
	}

	indicators := ioc.Indicators{"ipv4": {"10.1.1.1"}}
	if _, err := repo.UpdateArticle(ctx, article.ID, ArticleUpdate{IOCs: indicators}); err != nil {
		t.Fatal(err)
	}

	updated, err := repo.UpdateArticle(ctx, article.ID, ArticleUpdate{Summary: strPtr("A summary")})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if updated.Summary == nil || *updated.Summary != "A summary" {
		t.Errorf("Expected summary to be set, got %v", updated.Summary)
	}
	if len(updated.IOCs["ipv4"]) != 1 || updated.IOCs["ipv4"][0] != "10.1.1.1" {
		t.Errorf("Expected iocs untouched, got %v", updated.IOCs)
	}
	if updated.ThreatType != nil {
		t.Errorf("Expected threat type to remain unset, got %v", *updated.ThreatType)
	}
	if updated.UpdatedAt == nil {
		t.Error("Expected updated_at to be set after mutation")
	}
}

func TestArticleRepository_EmptyIndicatorsStored(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	article, err := repo.CreateArticle(ctx, ArticleCreate{URL: "https://example.com/empty", Title: "Nothing here"})
	if err != nil {
		t.Fatal(err)
	}

	updated, err := repo.UpdateArticle(ctx, article.ID, ArticleUpdate{IOCs: ioc.Indicators{}})
	if err != nil {
		t.Fatal(err)
	}

	if updated.IOCs == nil {
		t.Error("Expected empty but present iocs after extraction")
	}
	if len(updated.IOCs) != 0 {
		t.Errorf("Expected no indicators, got %v", updated.IOCs)
	}
}

func TestArticleRepository_UpdateMissing(t *testing.T) {
	repo := newTestRepository(t)

	updated, err := repo.UpdateArticle(context.Background(), "missing", ArticleUpdate{Summary: strPtr("x")})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if updated != nil {
		t.Errorf("Expected nil for missing article, got %+v", updated)
	}
}

func TestArticleRepository_ListWithFilters(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	inputs := []ArticleCreate{
		{URL: "https://example.com/1", Title: "Phishing kit sold", Source: "A"},
		{URL: "https://example.com/2", Title: "Critical router bug", Source: "B"},
		{URL: "https://example.com/3", Title: "Another phishing wave", Source: "A"},
	}
	ids := make([]string, 0, len(inputs))
	for _, input := range inputs {
		article, err := repo.CreateArticle(ctx, input)
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, article.ID)
	}

	if _, err := repo.UpdateArticle(ctx, ids[1], ArticleUpdate{ThreatType: strPtr("vulnerability"), Severity: strPtr("critical")}); err != nil {
		t.Fatal(err)
	}

	all, err := repo.ListArticles(ctx, ArticleFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Errorf("Expected 3 articles, got %d", len(all))
	}

	bySource, err := repo.ListArticles(ctx, ArticleFilter{Source: "A"})
	if err != nil {
		t.Fatal(err)
	}
	if len(bySource) != 2 {
		t.Errorf("Expected 2 articles from source A, got %d", len(bySource))
	}

	bySeverity, err := repo.ListArticles(ctx, ArticleFilter{Severity: "critical"})
	if err != nil {
		t.Fatal(err)
	}
	if len(bySeverity) != 1 || bySeverity[0].ID != ids[1] {
		t.Errorf("Expected only the critical article, got %+v", bySeverity)
	}

	byQuery, err := repo.ListArticles(ctx, ArticleFilter{Query: "phishing"})
	if err != nil {
		t.Fatal(err)
	}
	if len(byQuery) != 2 {
		t.Errorf("Expected 2 phishing articles, got %d", len(byQuery))
	}

	paged, err := repo.ListArticles(ctx, ArticleFilter{Skip: 1, Limit: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(paged) != 1 {
		t.Errorf("Expected 1 article in page, got %d", len(paged))
	}
}

func TestArticleRepository_ListAllInCreationOrder(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	var ids []string
	for _, url := range []string{"https://e.com/a", "https://e.com/b", "https://e.com/c"} {
		article, err := repo.CreateArticle(ctx, ArticleCreate{URL: url, Title: url})
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, article.ID)
	}

	articles, err := repo.ListAllArticles(ctx)
	if err != nil {
		t.Fatal(err)
	}

	if len(articles) != len(ids) {
		t.Fatalf("Expected %d articles, got %d", len(ids), len(articles))
	}
	for i, article := range articles {
		if article.ID != ids[i] {
			t.Errorf("Expected article %d to be %s, got %s", i, ids[i], article.ID)
		}
	}
}

func TestArticleRepository_Delete(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	article, err := repo.CreateArticle(ctx, ArticleCreate{URL: "https://example.com/del", Title: "Delete me"})
	if err != nil {
		t.Fatal(err)
	}

	deleted, err := repo.DeleteArticle(ctx, article.ID)
	if err != nil || !deleted {
		t.Fatalf("Expected article to be deleted, got %v (err: %v)", deleted, err)
	}

	deleted, err = repo.DeleteArticle(ctx, article.ID)
	if err != nil {
		t.Fatal(err)
	}
	if deleted {
		t.Error("Expected second delete to report nothing deleted")
	}
}

func TestArticleRepository_Stats(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	stats, err := repo.GetArticleStats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Total != 0 || stats.Processed != 0 || stats.WithIndicator != 0 {
		t.Errorf("Expected empty stats, got %+v", stats)
	}

	a, _ := repo.CreateArticle(ctx, ArticleCreate{URL: "https://example.com/s1", Title: "One"})
	b, _ := repo.CreateArticle(ctx, ArticleCreate{URL: "https://example.com/s2", Title: "Two"})
	repo.CreateArticle(ctx, ArticleCreate{URL: "https://example.com/s3", Title: "Three"})

	repo.UpdateArticle(ctx, a.ID, ArticleUpdate{Summary: strPtr("done")})
	repo.UpdateArticle(ctx, b.ID, ArticleUpdate{IOCs: ioc.Indicators{"md5": {"d41d8cd98f00b204e9800998ecf8427e"}}})

	stats, err = repo.GetArticleStats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Total != 3 {
		t.Errorf("Expected 3 total, got %d", stats.Total)
	}
	if stats.Processed != 1 {
		t.Errorf("Expected 1 processed, got %d", stats.Processed)
	}
	if stats.WithIndicator != 1 {
		t.Errorf("Expected 1 with iocs, got %d", stats.WithIndicator)
	}
}

func TestArticleRepository_CreateArticleIfAbsent(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	first, inserted, err := repo.CreateArticleIfAbsent(ctx, ArticleCreate{URL: "https://example.com/once", Title: "Once"})
	if err != nil {
		t.Fatal(err)
	}
	if !inserted {
		t.Error("Expected first create to report an insert")
	}

	second, inserted, err := repo.CreateArticleIfAbsent(ctx, ArticleCreate{URL: "https://example.com/once", Title: "Twice"})
	if err != nil {
		t.Fatal(err)
	}
	if inserted {
		t.Error("Expected duplicate create to report no insert")
	}
	if second.ID != first.ID || second.Title != "Once" {
		t.Errorf("Expected existing article unchanged, got %+v", second)
	}

	if _, _, err := repo.CreateArticleIfAbsent(ctx, ArticleCreate{Title: "No URL"}); err == nil {
		t.Error("Expected error for missing URL")
	}
}

func TestArticleRepository_ListArticlesQueryIsLiteral(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	for url, title := range map[string]string{
		"https://example.com/pct":   "Patch fixes 50% of installs",
		"https://example.com/other": "500 servers exposed",
		"https://example.com/under": "CVE in file_name parser",
		"https://example.com/plain": "File-name spoofing",
	} {
		if _, err := repo.CreateArticle(ctx, ArticleCreate{URL: url, Title: title}); err != nil {
			t.Fatal(err)
		}
	}

	percent, err := repo.ListArticles(ctx, ArticleFilter{Query: "50%"})
	if err != nil {
		t.Fatal(err)
	}
	if len(percent) != 1 || percent[0].URL != "https://example.com/pct" {
		t.Errorf("Expected only the 50%% article, got %d results", len(percent))
	}

	underscore, err := repo.ListArticles(ctx, ArticleFilter{Query: "file_name"})
	if err != nil {
		t.Fatal(err)
	}
	if len(underscore) != 1 || underscore[0].URL != "https://example.com/under" {
		t.Errorf("Expected only the file_name article, got %d results", len(underscore))
	}
}
