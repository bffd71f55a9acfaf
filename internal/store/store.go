package store

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/seatctl/api/schemas"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

var json = jsoniter.ConfigCompatibleWithStandardLibrary

//go:embed schema.sql
var schemaSQL string

// DBPool is an interface that abstracts the pgxpool.Pool to allow for mocking in tests.
type DBPool interface {
	Ping(ctx context.Context) error
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store persists accounts and invite jobs in PostgreSQL.
type Store struct {
	pool DBPool
	log  *zap.Logger
}

// New creates a new store instance and verifies the connection.
func New(ctx context.Context, pool DBPool, logger *zap.Logger) (*Store, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{
		pool: pool,
		log:  logger.Named("store"),
	}, nil
}

// Migrate creates the tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

const accountColumns = `id, name, email, description, team_url, encrypted_password, cookies, status, last_error,
        member_count, member_limit, auto_invite, invite_interval_ms, last_check_at, last_sync_at, created_at, updated_at`

// ListAccounts returns every account, oldest first.
func (s *Store) ListAccounts(ctx context.Context) ([]schemas.Account, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+accountColumns+` FROM accounts ORDER BY created_at ASC;`)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer rows.Close()

	var accounts []schemas.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating account rows: %w", err)
	}
	return accounts, nil
}

// GetAccount loads one account.
func (s *Store) GetAccount(ctx context.Context, id string) (schemas.Account, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1;`, id)
	a, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return schemas.Account{}, fmt.Errorf("account %s: %w", id, ErrNotFound)
	}
	return a, err
}

func scanAccount(row pgx.Row) (schemas.Account, error) {
	var (
		a          schemas.Account
		cookies    []byte
		status     string
		intervalMS int64
	)
	err := row.Scan(
		&a.ID, &a.Name, &a.Email, &a.Description, &a.TeamURL, &a.EncryptedPassword,
		&cookies, &status, &a.LastError,
		&a.MemberCount, &a.MemberLimit, &a.AutoInvite, &intervalMS,
		&a.LastCheckAt, &a.LastSyncAt, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return schemas.Account{}, fmt.Errorf("failed to scan account: %w", err)
	}
	a.Status = schemas.AccountStatus(status)
	a.InviteInterval = time.Duration(intervalMS) * time.Millisecond
	if len(cookies) > 0 {
		if err := json.Unmarshal(cookies, &a.Cookies); err != nil {
			return schemas.Account{}, fmt.Errorf("failed to decode cookies of account %s: %w", a.ID, err)
		}
	}
	return a, nil
}

const sqlApplyProbe = `
        UPDATE accounts SET
            status = $2,
            last_error = $3,
            last_check_at = $4,
            member_count = COALESCE($5, member_count),
            last_sync_at = CASE WHEN $6 THEN $4 ELSE last_sync_at END,
            cookies = COALESCE($7, cookies),
            updated_at = $4
        WHERE id = $1;
    `

// ApplyProbe records the outcome of an automation probe. It is the only writer of account status.
// A nil member count or cookie set leaves the stored value untouched.
func (s *Store) ApplyProbe(ctx context.Context, id string, p schemas.ProbeResult) error {
	var memberCount *int32
	if p.MemberCount != nil {
		n := int32(*p.MemberCount)
		memberCount = &n
	}
	var cookies []byte
	if p.Cookies != nil {
		b, err := json.Marshal(p.Cookies)
		if err != nil {
			return fmt.Errorf("failed to encode cookies: %w", err)
		}
		cookies = b
	}

	tag, err := s.pool.Exec(ctx, sqlApplyProbe,
		id, string(p.Status), p.Error, p.CheckedAt.UTC(), memberCount, p.Synced, cookies)
	if err != nil {
		return fmt.Errorf("failed to update account %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("account %s: %w", id, ErrNotFound)
	}
	return nil
}

const sqlInsertJob = `
        INSERT INTO invite_jobs (id, account_id, addresses, role, status, outcomes, total_count, success_count, fail_count, error, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12);
    `

// CreateJob inserts a new job record.
func (s *Store) CreateJob(ctx context.Context, job *schemas.InviteJob) error {
	addrs, outcomes, err := encodeJob(job)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, sqlInsertJob,
		job.ID, job.AccountID, addrs, string(job.Role), string(job.Status), outcomes,
		job.TotalCount, job.SuccessCount, job.FailCount, job.Error,
		job.CreatedAt.UTC(), job.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert job %s: %w", job.ID, err)
	}
	return nil
}

const sqlUpdateJob = `
        UPDATE invite_jobs SET
            status = $2,
            outcomes = $3,
            total_count = $4,
            success_count = $5,
            fail_count = $6,
            error = $7,
            updated_at = $8
        WHERE id = $1;
    `

// UpdateJob writes the mutable fields of a job.
func (s *Store) UpdateJob(ctx context.Context, job *schemas.InviteJob) error {
	_, outcomes, err := encodeJob(job)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, sqlUpdateJob,
		job.ID, string(job.Status), outcomes,
		job.TotalCount, job.SuccessCount, job.FailCount, job.Error,
		job.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to update job %s: %w", job.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("job %s: %w", job.ID, ErrNotFound)
	}
	return nil
}

// GetJob loads one job.
func (s *Store) GetJob(ctx context.Context, id string) (*schemas.InviteJob, error) {
	row := s.pool.QueryRow(ctx, `
        SELECT id, account_id, addresses, role, status, outcomes, total_count, success_count, fail_count, error, created_at, updated_at
        FROM invite_jobs WHERE id = $1;
    `, id)

	var (
		job             schemas.InviteJob
		addrs, outcomes []byte
		role, status    string
	)
	err := row.Scan(&job.ID, &job.AccountID, &addrs, &role, &status, &outcomes,
		&job.TotalCount, &job.SuccessCount, &job.FailCount, &job.Error, &job.CreatedAt, &job.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("job %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan job: %w", err)
	}
	job.Role = schemas.Role(role)
	job.Status = schemas.JobStatus(status)
	if err := json.Unmarshal(addrs, &job.Addresses); err != nil {
		return nil, fmt.Errorf("failed to decode addresses of job %s: %w", id, err)
	}
	if err := json.Unmarshal(outcomes, &job.Outcomes); err != nil {
		return nil, fmt.Errorf("failed to decode outcomes of job %s: %w", id, err)
	}
	return &job, nil
}

func encodeJob(job *schemas.InviteJob) (addrs, outcomes []byte, err error) {
	if addrs, err = json.Marshal(job.Addresses); err != nil {
		return nil, nil, fmt.Errorf("failed to encode addresses: %w", err)
	}
	if outcomes, err = json.Marshal(job.Outcomes); err != nil {
		return nil, nil, fmt.Errorf("failed to encode outcomes: %w", err)
	}
	return addrs, outcomes, nil
}
