package reservation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository stores holds. Liveness is judged against the database clock so
// every server instance agrees on when a hold expired.
type Repository interface {
	// Create inserts a hold living for ttl. It returns ErrConflict when a
	// live hold already exists on the same (provider, date, from, to) key.
	Create(ctx context.Context, r *Reservation, ttl time.Duration) error
	Exists(ctx context.Context, providerID string, from, to, date time.Time) (bool, error)
	GetByID(ctx context.Context, id string) (*Reservation, error)
	Delete(ctx context.Context, id string) error
	// DeleteExpired removes every expired hold and returns how many were removed.
	DeleteExpired(ctx context.Context) (int64, error)
}

type pgxRepository struct {
	pool *pgxpool.Pool
}

func NewPgxRepository(pool *pgxpool.Pool) Repository {
	return &pgxRepository{pool: pool}
}

var reservationColumns = []string{
	"id", "provider_id", "customer_id", "rule_id", "slot_date", "start_time", "end_time", "created_at", "expires_at",
}

func slotKey(providerID string, from, to, date time.Time) squirrel.Eq {
	return squirrel.Eq{
		"provider_id": providerID,
		"slot_date":   date,
		"start_time":  from,
		"end_time":    to,
	}
}

func (r *pgxRepository) Create(ctx context.Context, res *Reservation, ttl time.Duration) error {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

	// An expired hold still owns its row in the unique index until swept, so
	// clear it for this key before inserting.
	purgeSQL, purgeArgs, err := psql.Delete("public.reservations").
		Where(slotKey(res.ProviderID, res.From, res.To, res.Date)).
		Where("expires_at <= now()").
		ToSql()
	if err != nil {
		return fmt.Errorf("build purge reservation query failed: %w", err)
	}

	insertSQL, insertArgs, err := psql.Insert("public.reservations").
		Columns("provider_id", "customer_id", "rule_id", "slot_date", "start_time", "end_time", "expires_at").
		Values(
			res.ProviderID, res.CustomerID, res.RuleID, res.Date, res.From, res.To,
			squirrel.Expr("now() + make_interval(secs => ?)", ttl.Seconds()),
		).
		Suffix("RETURNING id, created_at, expires_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build create reservation query failed: %w", err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin reservation tx failed: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, purgeSQL, purgeArgs...); err != nil {
		return fmt.Errorf("purge expired reservation failed: %w", err)
	}

	if err := tx.QueryRow(ctx, insertSQL, insertArgs...).Scan(&res.ID, &res.CreatedAt, &res.ExpiresAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return ConflictFor(res.From, res.To, res.Date)
		}
		return fmt.Errorf("create reservation failed: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit reservation failed: %w", err)
	}
	return nil
}

func (r *pgxRepository) Exists(ctx context.Context, providerID string, from, to, date time.Time) (bool, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Select("1").
		From("public.reservations").
		Where(slotKey(providerID, from, to, date)).
		Where("expires_at > now()").
		Limit(1).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build reservation exists query failed: %w", err)
	}

	var one int
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&one); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check reservation failed: %w", err)
	}
	return true, nil
}

func (r *pgxRepository) GetByID(ctx context.Context, id string) (*Reservation, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Select(reservationColumns...).
		From("public.reservations").
		Where(squirrel.Eq{"id": id}).
		Where("expires_at > now()").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get reservation query failed: %w", err)
	}

	var res Reservation
	err = r.pool.QueryRow(ctx, query, args...).Scan(
		&res.ID, &res.ProviderID, &res.CustomerID, &res.RuleID, &res.Date,
		&res.From, &res.To, &res.CreatedAt, &res.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get reservation failed: %w", err)
	}
	return &res, nil
}

func (r *pgxRepository) Delete(ctx context.Context, id string) error {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Delete("public.reservations").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete reservation query failed: %w", err)
	}

	ct, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("delete reservation failed: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *pgxRepository) DeleteExpired(ctx context.Context) (int64, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Delete("public.reservations").
		Where("expires_at <= now()").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build sweep reservations query failed: %w", err)
	}

	ct, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("sweep reservations failed: %w", err)
	}
	return ct.RowsAffected(), nil
}
