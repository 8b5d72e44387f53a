package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/OFFIS-RIT/ripple/internal/util"
	"github.com/OFFIS-RIT/ripple/pkg/common"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	pgxv5 "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"
)

type pgxIConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, optionsAndArgs ...any) (pgxv5.Rows, error)
}

// NewPool connects to Postgres and registers the pgvector types on every
// connection.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid database url: %w", err)
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgxv5.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return pool, nil
}

// Migrate applies the SQL migrations in dir to the database.
func Migrate(databaseURL, dir string) error {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}
	m, err := migrate.NewWithDatabaseInstance("file://"+dir, "postgres", driver)
	if err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}

// PostgresSource reads and writes articles in the articles table.
type PostgresSource struct {
	conn pgxIConn
}

func NewPostgresSource(conn pgxIConn) *PostgresSource {
	return &PostgresSource{conn: conn}
}

const selectArticles = `
SELECT id, title, content, published_at, source, category, entities, tags,
       sentiment, impact_score, embedding
FROM articles
ORDER BY published_at, id`

func (p *PostgresSource) Load(ctx context.Context) ([]common.Article, error) {
	rows, err := p.conn.Query(ctx, selectArticles)
	if err != nil {
		return nil, fmt.Errorf("failed to query articles: %w", err)
	}
	defer rows.Close()

	articles := []common.Article{}
	for rows.Next() {
		var (
			a         common.Article
			id        string
			sentiment string
			published time.Time
			embedding *pgvector.Vector
		)
		if err := rows.Scan(
			&id, &a.Title, &a.Content, &published, &a.Source, &a.Category,
			&a.Entities, &a.Tags, &sentiment, &a.ImpactScore, &embedding,
		); err != nil {
			return nil, fmt.Errorf("failed to scan article: %w", err)
		}
		a.ID = common.ArticleID(id)
		a.Timestamp = published.UTC()
		a.Sentiment = common.Sentiment(sentiment)
		if embedding != nil {
			a.Embedding = embedding.Slice()
		}
		articles = append(articles, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return articles, nil
}

const upsertArticle = `
INSERT INTO articles (id, title, content, published_at, source, category,
                      entities, tags, sentiment, impact_score, embedding)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
ON CONFLICT (id) DO UPDATE SET
    embedding = COALESCE(EXCLUDED.embedding, articles.embedding)`

// Save persists a. An existing row keeps its fields and only gains an
// embedding if it had none.
func (p *PostgresSource) Save(ctx context.Context, a common.Article) error {
	var embedding any
	if len(a.Embedding) > 0 {
		embedding = pgvector.NewVector(a.Embedding)
	}
	entities := a.Entities
	if entities == nil {
		entities = []string{}
	}
	tags := a.Tags
	if tags == nil {
		tags = []string{}
	}

	_, err := p.conn.Exec(ctx, upsertArticle,
		string(a.ID),
		util.SanitizePostgresText(a.Title),
		util.SanitizePostgresText(a.Content),
		a.Timestamp,
		util.SanitizePostgresText(a.Source),
		a.Category,
		entities,
		tags,
		string(a.Sentiment),
		a.ImpactScore,
		embedding,
	)
	if err != nil {
		return fmt.Errorf("failed to save article %s: %w", a.ID, err)
	}
	return nil
}
