package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/veracity-sec/correlator/api/schemas"
)

// DBPool abstracts the pgxpool.Pool so the store can be mocked in tests.
type DBPool interface {
	Ping(ctx context.Context) error
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore provides a persistent implementation of the FindingStore
// interface backed by PostgreSQL. This is the go to for production
// deployments.
type PostgresStore struct {
	pool DBPool
	log  *zap.Logger
}

// Ensures PostgresStore correctly implements the FindingStore interface at compile time.
var _ schemas.FindingStore = (*PostgresStore)(nil)

// NewPostgresStore creates a new store instance and verifies the connection.
func NewPostgresStore(ctx context.Context, pool DBPool, logger *zap.Logger) (*PostgresStore, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostgresStore{
		pool: pool,
		log:  logger.Named("postgres_store"),
	}, nil
}

const rawFindingColumns = `id, asset_id, asset_name, task_id, scan_id, owner_id,
	title, type, hash, confidence, severity, severity_num, scope_ids,
	description, solution, raw_data, risk_info, vuln_refs, links, tags,
	status, engine_type, found_at, checked_at, comments, created_at, updated_at`

const findingColumns = `raw_finding_id, ` + rawFindingColumns

// GetRawFinding retrieves a raw finding by its ID.
func (s *PostgresStore) GetRawFinding(ctx context.Context, id string) (schemas.RawFinding, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+rawFindingColumns+` FROM raw_findings WHERE id = $1;`, id)

	f, err := scanRawFinding(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return schemas.RawFinding{}, fmt.Errorf("raw finding %q: %w", id, schemas.ErrNotFound)
		}
		return schemas.RawFinding{}, fmt.Errorf("failed to scan raw finding row: %w", err)
	}
	return f, nil
}

// GetFinding retrieves a curated finding by its ID.
func (s *PostgresStore) GetFinding(ctx context.Context, id string) (schemas.Finding, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+findingColumns+` FROM findings WHERE id = $1;`, id)

	f, err := scanFinding(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return schemas.Finding{}, fmt.Errorf("finding %q: %w", id, schemas.ErrNotFound)
		}
		return schemas.Finding{}, fmt.Errorf("failed to scan finding row: %w", err)
	}
	return f, nil
}

// FilterRawFindings returns every raw finding matching all predicate clauses.
func (s *PostgresStore) FilterRawFindings(ctx context.Context, pred schemas.Predicate) ([]schemas.RawFinding, error) {
	where, args, err := buildWhere(pred)
	if err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+rawFindingColumns+` FROM raw_findings`+where+`;`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query raw findings: %w", err)
	}
	defer rows.Close()

	var out []schemas.RawFinding
	for rows.Next() {
		f, err := scanRawFinding(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan raw finding row: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// FilterFindings returns every curated finding matching all predicate clauses.
func (s *PostgresStore) FilterFindings(ctx context.Context, pred schemas.Predicate) ([]schemas.Finding, error) {
	where, args, err := buildWhere(pred)
	if err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+findingColumns+` FROM findings`+where+`;`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query findings: %w", err)
	}
	defer rows.Close()

	var out []schemas.Finding
	for rows.Next() {
		f, err := scanFinding(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan finding row: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// buildWhere translates a predicate into a parameterized WHERE clause. Field
// names are restricted to the queryable attribute enum, so they are safe to
// interpolate as column names.
func buildWhere(pred schemas.Predicate) (string, []any, error) {
	if len(pred) == 0 {
		return "", nil, nil
	}
	clauses := make([]string, 0, len(pred))
	args := make([]any, 0, len(pred))
	for i, c := range pred {
		if _, err := schemas.ParseField(string(c.Field)); err != nil {
			return "", nil, fmt.Errorf("predicate: %w", err)
		}
		clauses = append(clauses, fmt.Sprintf("%s = $%d", c.Field, i+1))
		args = append(args, c.Value)
	}
	return " WHERE " + strings.Join(clauses, " AND "), args, nil
}

// CreateRawFinding inserts a new raw finding row.
func (s *PostgresStore) CreateRawFinding(ctx context.Context, f *schemas.RawFinding) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO raw_findings (`+rawFindingColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
			$15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27);
	`, rawFindingArgs(f)...)
	if err != nil {
		return fmt.Errorf("failed to insert raw finding: %w", err)
	}
	return nil
}

// SaveRawFinding overwrites an existing raw finding row.
func (s *PostgresStore) SaveRawFinding(ctx context.Context, f *schemas.RawFinding) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE raw_findings SET
			asset_id = $2, asset_name = $3, task_id = $4, scan_id = $5,
			owner_id = $6, title = $7, type = $8, hash = $9, confidence = $10,
			severity = $11, severity_num = $12, scope_ids = $13,
			description = $14, solution = $15, raw_data = $16, risk_info = $17,
			vuln_refs = $18, links = $19, tags = $20, status = $21,
			engine_type = $22, found_at = $23, checked_at = $24,
			comments = $25, created_at = $26, updated_at = $27
		WHERE id = $1;
	`, rawFindingArgs(f)...)
	if err != nil {
		return fmt.Errorf("failed to update raw finding: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("raw finding %q: %w", f.ID, schemas.ErrNotFound)
	}
	return nil
}

// DeleteRawFinding removes a raw finding row and detaches any curated
// findings that referenced it.
func (s *PostgresStore) DeleteRawFinding(ctx context.Context, id string) error {
	if _, err := s.pool.Exec(ctx,
		`UPDATE findings SET raw_finding_id = NULL WHERE raw_finding_id = $1;`, id); err != nil {
		return fmt.Errorf("failed to detach findings from raw finding: %w", err)
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM raw_findings WHERE id = $1;`, id)
	if err != nil {
		return fmt.Errorf("failed to delete raw finding: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("raw finding %q: %w", id, schemas.ErrNotFound)
	}
	return nil
}

// CreateFinding inserts a new curated finding row.
func (s *PostgresStore) CreateFinding(ctx context.Context, f *schemas.Finding) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO findings (`+findingColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
			$15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28);
	`, findingArgs(f)...)
	if err != nil {
		return fmt.Errorf("failed to insert finding: %w", err)
	}
	return nil
}

// SaveFinding overwrites an existing curated finding row.
func (s *PostgresStore) SaveFinding(ctx context.Context, f *schemas.Finding) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE findings SET
			raw_finding_id = $1, asset_id = $3, asset_name = $4, task_id = $5,
			scan_id = $6, owner_id = $7, title = $8, type = $9, hash = $10,
			confidence = $11, severity = $12, severity_num = $13,
			scope_ids = $14, description = $15, solution = $16, raw_data = $17,
			risk_info = $18, vuln_refs = $19, links = $20, tags = $21,
			status = $22, engine_type = $23, found_at = $24, checked_at = $25,
			comments = $26, created_at = $27, updated_at = $28
		WHERE id = $2;
	`, findingArgs(f)...)
	if err != nil {
		return fmt.Errorf("failed to update finding: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("finding %q: %w", f.ID, schemas.ErrNotFound)
	}
	return nil
}

// DeleteFinding removes a curated finding row.
func (s *PostgresStore) DeleteFinding(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM findings WHERE id = $1;`, id)
	if err != nil {
		return fmt.Errorf("failed to delete finding: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("finding %q: %w", id, schemas.ErrNotFound)
	}
	return nil
}

func rawFindingArgs(f *schemas.RawFinding) []any {
	return []any{
		f.ID, f.AssetID, f.AssetName, f.TaskID, f.ScanID, f.OwnerID,
		f.Title, f.Type, f.Hash, f.Confidence, string(f.Severity),
		f.SeverityNum, f.ScopeIDs, f.Description, f.Solution,
		jsonOrEmpty(f.RawData), jsonOrEmpty(f.RiskInfo), jsonOrEmpty(f.VulnRefs),
		jsonOrEmpty(f.Links), jsonOrEmpty(f.Tags),
		string(f.Status), f.EngineType, f.FoundAt, f.CheckedAt,
		f.Comments, f.CreatedAt.UTC(), f.UpdatedAt.UTC(),
	}
}

func findingArgs(f *schemas.Finding) []any {
	return []any{
		f.RawFindingID,
		f.ID, f.AssetID, f.AssetName, f.TaskID, f.ScanID, f.OwnerID,
		f.Title, f.Type, f.Hash, f.Confidence, string(f.Severity),
		f.SeverityNum, f.ScopeIDs, f.Description, f.Solution,
		jsonOrEmpty(f.RawData), jsonOrEmpty(f.RiskInfo), jsonOrEmpty(f.VulnRefs),
		jsonOrEmpty(f.Links), jsonOrEmpty(f.Tags),
		string(f.Status), f.EngineType, f.FoundAt.UTC(), f.CheckedAt.UTC(),
		f.Comments, f.CreatedAt.UTC(), f.UpdatedAt.UTC(),
	}
}

// jsonOrEmpty normalizes empty payloads so JSONB columns never receive a
// null or empty string.
func jsonOrEmpty(raw []byte) []byte {
	if len(raw) == 0 || string(raw) == "null" {
		return []byte("{}")
	}
	return raw
}

// rowScanner is satisfied by both pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRawFinding(row rowScanner) (schemas.RawFinding, error) {
	var f schemas.RawFinding
	var severity, status string
	err := row.Scan(
		&f.ID, &f.AssetID, &f.AssetName, &f.TaskID, &f.ScanID, &f.OwnerID,
		&f.Title, &f.Type, &f.Hash, &f.Confidence, &severity, &f.SeverityNum,
		&f.ScopeIDs, &f.Description, &f.Solution, &f.RawData, &f.RiskInfo,
		&f.VulnRefs, &f.Links, &f.Tags, &status, &f.EngineType,
		&f.FoundAt, &f.CheckedAt, &f.Comments, &f.CreatedAt, &f.UpdatedAt,
	)
	if err != nil {
		return schemas.RawFinding{}, err
	}
	f.Severity = schemas.Severity(severity)
	f.Status = schemas.Status(status)
	return f, nil
}

func scanFinding(row rowScanner) (schemas.Finding, error) {
	var f schemas.Finding
	var severity, status string
	err := row.Scan(
		&f.RawFindingID,
		&f.ID, &f.AssetID, &f.AssetName, &f.TaskID, &f.ScanID, &f.OwnerID,
		&f.Title, &f.Type, &f.Hash, &f.Confidence, &severity, &f.SeverityNum,
		&f.ScopeIDs, &f.Description, &f.Solution, &f.RawData, &f.RiskInfo,
		&f.VulnRefs, &f.Links, &f.Tags, &status, &f.EngineType,
		&f.FoundAt, &f.CheckedAt, &f.Comments, &f.CreatedAt, &f.UpdatedAt,
	)
	if err != nil {
		return schemas.Finding{}, err
	}
	f.Severity = schemas.Severity(severity)
	f.Status = schemas.Status(status)
	return f, nil
}
