package repository

import (
	"context"
	"crypto/rand"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/arqvault/threatmodel/internal/apperrors"
	"github.com/arqvault/threatmodel/internal/domain"
)

//go:embed migrations
var migrationsFS embed.FS

// PostgresRepository is a pgx-backed Repository, grounded on the teacher's
// pkg/database/client.go connection-pool-and-migration setup and
// pkg/queue/worker.go's FOR UPDATE SKIP LOCKED claim pattern, with
// hand-written SQL in place of the teacher's ent query builder.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository opens a pool against dsn and applies embedded
// migrations before returning.
func NewPostgresRepository(ctx context.Context, dsn string) (*PostgresRepository, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := runMigrations(dsn); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &PostgresRepository{pool: pool}, nil
}

// Close releases the underlying connection pool.
func (r *PostgresRepository) Close() {
	r.pool.Close()
}

func runMigrations(dsn string) error {
	hasMigrations, err := hasEmbeddedMigrations()
	if err != nil {
		return fmt.Errorf("check embedded migrations: %w", err)
	}
	if !hasMigrations {
		return fmt.Errorf("no embedded migration files found")
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", sourceDriver, dsn)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("apply migrations: %w", err)
	}
	// Close only the source driver: closing m also closes the database
	// driver, which is fine here since this pool is separate from the
	// caller's pgxpool, but we keep the same discipline as the teacher's
	// migration runner in case that changes later.
	return sourceDriver.Close()
}

func hasEmbeddedMigrations() (bool, error) {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		return false, err
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".sql") {
			return true, nil
		}
	}
	return false, nil
}

const maxPGCodeAttempts = 10

func generatePGCode() (string, error) {
	var digits [8]byte
	if _, err := rand.Read(digits[:]); err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString("TMA-")
	for _, d := range digits {
		fmt.Fprintf(&b, "%d", int(d)%10)
	}
	return b.String(), nil
}

func (r *PostgresRepository) Create(ctx context.Context, imagePath, imageMediaType string) (*domain.Analysis, error) {
	id := uuid.New().String()
	for attempt := 0; attempt < maxPGCodeAttempts; attempt++ {
		code, err := generatePGCode()
		if err != nil {
			return nil, fmt.Errorf("generate analysis code: %w", err)
		}
		_, err = r.pool.Exec(ctx, `
			INSERT INTO analyses (id, code, status, image_path, image_media_type)
			VALUES ($1, $2, $3, $4, $5)`,
			id, code, domain.StatusOpen, imagePath, imageMediaType)
		if err == nil {
			return r.Get(ctx, id)
		}
		if !isUniqueViolation(err) {
			return nil, fmt.Errorf("insert analysis: %w", err)
		}
		// code collision: retry with a freshly generated code
	}
	return nil, apperrors.ErrCodeExhausted
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "duplicate key value")
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*domain.Analysis, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, code, status, image_path, image_media_type, result,
		       processing_log, failure_reason, created_at, updated_at,
		       started_at, completed_at
		FROM analyses WHERE id = $1`, id)
	return scanAnalysis(row)
}

func scanAnalysis(row pgx.Row) (*domain.Analysis, error) {
	var a domain.Analysis
	var resultJSON []byte
	if err := row.Scan(&a.ID, &a.Code, &a.Status, &a.ImagePath, &a.ImageMediaType,
		&resultJSON, &a.ProcessingLog, &a.FailureReason, &a.CreatedAt, &a.UpdatedAt,
		&a.StartedAt, &a.CompletedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan analysis: %w", err)
	}
	if len(resultJSON) > 0 {
		var result domain.AnalysisResult
		if err := json.Unmarshal(resultJSON, &result); err != nil {
			return nil, fmt.Errorf("unmarshal analysis result: %w", err)
		}
		a.Result = &result
	}
	return &a, nil
}

func (r *PostgresRepository) List(ctx context.Context, filter ListFilter) ([]*domain.Analysis, int, error) {
	const hardCap = 2000
	limit := filter.Limit
	if limit <= 0 || limit > hardCap {
		limit = hardCap
	}

	query := strings.Builder{}
	query.WriteString(`SELECT id, code, status, image_path, image_media_type, result,
		processing_log, failure_reason, created_at, updated_at, started_at, completed_at
		FROM analyses WHERE 1=1`)
	args := []any{}
	if filter.HasStatus {
		args = append(args, filter.Status)
		fmt.Fprintf(&query, " AND status = $%d", len(args))
	}
	if filter.CodeSubstr != "" {
		args = append(args, "%"+filter.CodeSubstr+"%")
		fmt.Fprintf(&query, " AND code ILIKE $%d", len(args))
	}
	if filter.HasFrom {
		args = append(args, filter.CreatedFrom)
		fmt.Fprintf(&query, " AND created_at >= $%d", len(args))
	}
	if filter.HasTo {
		args = append(args, filter.CreatedTo)
		fmt.Fprintf(&query, " AND created_at <= $%d", len(args))
	}
	query.WriteString(" ORDER BY created_at DESC")
	args = append(args, hardCap)
	fmt.Fprintf(&query, " LIMIT $%d", len(args))

	rows, err := r.pool.Query(ctx, query.String(), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list analyses: %w", err)
	}
	defer rows.Close()

	var all []*domain.Analysis
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, 0, err
		}
		all = append(all, a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	total := len(all)
	offset := filter.Offset
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

// ClaimNext selects and locks the oldest OPEN row with FOR UPDATE SKIP
// LOCKED so concurrent workers never claim the same analysis, ported from
// the teacher's claimNextSession.
func (r *PostgresRepository) ClaimNext(ctx context.Context) (*domain.Analysis, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin claim tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var id string
	err = tx.QueryRow(ctx, `
		SELECT id FROM analyses
		WHERE status = $1
		ORDER BY created_at ASC
		FOR UPDATE SKIP LOCKED
		LIMIT 1`, domain.StatusOpen).Scan(&id)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("select next open analysis: %w", err)
	}

	now := time.Now()
	if _, err := tx.Exec(ctx, `
		UPDATE analyses SET status = $1, started_at = $2, updated_at = $2
		WHERE id = $3`, domain.StatusRunning, now, id); err != nil {
		return nil, fmt.Errorf("mark analysis running: %w", err)
	}

	row := tx.QueryRow(ctx, `
		SELECT id, code, status, image_path, image_media_type, result,
		       processing_log, failure_reason, created_at, updated_at,
		       started_at, completed_at
		FROM analyses WHERE id = $1`, id)
	a, err := scanAnalysis(row)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit claim tx: %w", err)
	}
	return a, nil
}

func (r *PostgresRepository) MarkDone(ctx context.Context, id string, result *domain.AnalysisResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal analysis result: %w", err)
	}
	now := time.Now()
	tag, err := r.pool.Exec(ctx, `
		UPDATE analyses SET status = $1, result = $2, completed_at = $3, updated_at = $3
		WHERE id = $4 AND status = $5`,
		domain.StatusDone, resultJSON, now, id, domain.StatusRunning)
	if err != nil {
		return fmt.Errorf("mark analysis done: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Either deleted mid-run, or already in a terminal state: both are
		// skip-the-write cases, not errors, per the deletion race in §8 S7.
		return nil
	}
	return nil
}

func (r *PostgresRepository) MarkFailed(ctx context.Context, id string, reason string) error {
	now := time.Now()
	_, err := r.pool.Exec(ctx, `
		UPDATE analyses SET status = $1, failure_reason = $2, completed_at = $3, updated_at = $3
		WHERE id = $4 AND status IN ($5, $6)`,
		domain.StatusFailed, reason, now, id, domain.StatusOpen, domain.StatusRunning)
	if err != nil {
		return fmt.Errorf("mark analysis failed: %w", err)
	}
	return nil
}

func (r *PostgresRepository) AppendLog(ctx context.Context, id string, line string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE analyses SET processing_log = array_append(processing_log, $1), updated_at = now()
		WHERE id = $2`, line, id)
	if err != nil {
		return fmt.Errorf("append analysis log: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM analyses WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete analysis: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) ([]*domain.Analysis, error) {
	rows, err := r.pool.Query(ctx, `
		DELETE FROM analyses
		WHERE status IN ($1, $2) AND completed_at IS NOT NULL AND completed_at < $3
		RETURNING id, code, status, image_path, image_media_type, result,
		          processing_log, failure_reason, created_at, updated_at,
		          started_at, completed_at`,
		domain.StatusDone, domain.StatusFailed, cutoff)
	if err != nil {
		return nil, fmt.Errorf("delete expired analyses: %w", err)
	}
	defer rows.Close()

	var deleted []*domain.Analysis
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, err
		}
		deleted = append(deleted, a)
	}
	return deleted, rows.Err()
}
