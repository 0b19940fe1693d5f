package index

import (
	"context"
	"fmt"
	"io/fs"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/dropDatabas3/edgeflix/internal/observability/logger"
	migrations "github.com/dropDatabas3/edgeflix/migrations/postgres"
)

// Postgres implementa StoreIndexer sobre la tabla index_records.
type Postgres struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

// NewPostgres abre el pool. El ping de arranque no es bloqueante: si la base no
// responde, las lookups fallan con RoutingFailure hasta que vuelva.
func NewPostgres(ctx context.Context, dsn string, maxConns int32) (*Postgres, error) {
	pcfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("index: parse dsn: %w", err)
	}
	if maxConns > 0 {
		pcfg.MaxConns = maxConns
	}
	if pcfg.MaxConns == 0 {
		pcfg.MaxConns = 5
	}

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, err
	}

	log := logger.Named("index.pg")
	if err := pool.Ping(ctx); err != nil {
		log.Warn("pg pool startup ping failed", logger.Err(err))
	} else {
		log.Info("pg pool ready", logger.Int("max_conns", int(pcfg.MaxConns)))
	}
	return &Postgres{pool: pool, log: log}, nil
}

// Pool expone el pool (métricas).
func (p *Postgres) Pool() *pgxpool.Pool { return p.pool }

// Migrate aplica los archivos embebidos en orden lexicográfico.
func (p *Postgres) Migrate(ctx context.Context) error {
	files, err := fs.Glob(migrations.IndexFS, migrations.IndexDir+"/*.sql")
	if err != nil {
		return err
	}
	sort.Strings(files)
	for _, f := range files {
		b, err := migrations.IndexFS.ReadFile(f)
		if err != nil {
			return err
		}
		if _, err := p.pool.Exec(ctx, string(b)); err != nil {
			return fmt.Errorf("index: migrate %s: %w", f, err)
		}
		p.log.Debug("migration applied", logger.String("file", f))
	}
	return nil
}

func (p *Postgres) Lookup(ctx context.Context, collection, id string) ([]Record, error) {
	const q = `
		SELECT id, attributes
		FROM index_records
		WHERE collection = $1 AND id = $2
		ORDER BY rank ASC, indexed_at ASC`

	rows, err := p.pool.Query(ctx, q, collection, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ID, &r.Attributes); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return out, nil
}

func (p *Postgres) Index(ctx context.Context, collection string, rec Record) error {
	const q = `
		INSERT INTO index_records (collection, id, rank, attributes)
		VALUES ($1, $2, COALESCE((SELECT MAX(rank) + 1 FROM index_records WHERE collection = $1 AND id = $2), 0), $3)`

	attrs := rec.Attributes
	if attrs == nil {
		attrs = map[string]any{}
	}
	if !Upserts(collection) {
		_, err := p.pool.Exec(ctx, q, collection, rec.ID, attrs)
		return err
	}
	return pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM index_records WHERE collection = $1 AND id = $2`, collection, rec.ID); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, q, collection, rec.ID, attrs)
		return err
	})
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}
