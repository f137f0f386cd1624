package bookedslot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository interface {
	// Reserve inserts a PENDING row. It returns ErrAlreadyPending when the
	// key already has one.
	Reserve(ctx context.Context, slot *BookedSlot) error
	// Transition moves the PENDING row of key to status in one conditional
	// update. It returns ErrTransitionFailed when no PENDING row matched.
	Transition(ctx context.Context, key Key, status Status) (*BookedSlot, error)
	IsPending(ctx context.Context, providerID string, from, to, date time.Time) (bool, error)
	GetByID(ctx context.Context, id string) (*BookedSlot, error)
	List(ctx context.Context, filter Filter) ([]*BookedSlot, int, error)
}

type pgxRepository struct {
	pool *pgxpool.Pool
}

func NewPgxRepository(pool *pgxpool.Pool) Repository {
	return &pgxRepository{pool: pool}
}

var slotColumns = []string{
	"id", "provider_id", "rule_id", "customer_id", "payment_ref", "slot_date",
	"start_time", "end_time", "status", "created_at", "updated_at",
}

func scanSlot(row pgx.Row, extra ...any) (*BookedSlot, error) {
	var s BookedSlot
	dest := []any{
		&s.ID, &s.ProviderID, &s.RuleID, &s.CustomerID, &s.PaymentRef, &s.Date,
		&s.From, &s.To, &s.Status, &s.CreatedAt, &s.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *pgxRepository) Reserve(ctx context.Context, slot *BookedSlot) error {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Insert("public.booked_slots").
		Columns("provider_id", "rule_id", "customer_id", "payment_ref", "slot_date", "start_time", "end_time", "status").
		Values(slot.ProviderID, slot.RuleID, slot.CustomerID, slot.PaymentRef, slot.Date, slot.From, slot.To, StatusPending).
		Suffix("RETURNING id, status, created_at, updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build reserve slot query failed: %w", err)
	}

	err = r.pool.QueryRow(ctx, query, args...).Scan(&slot.ID, &slot.Status, &slot.CreatedAt, &slot.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return ErrAlreadyPending
		}
		return fmt.Errorf("reserve slot failed: %w", err)
	}
	return nil
}

func (r *pgxRepository) Transition(ctx context.Context, key Key, status Status) (*BookedSlot, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Update("public.booked_slots").
		Set("status", status).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{
			"rule_id":    key.RuleID,
			"slot_date":  key.Date,
			"start_time": key.From,
			"end_time":   key.To,
			"status":     StatusPending,
		}).
		Suffix("RETURNING " + strings.Join(slotColumns, ", ")).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build transition slot query failed: %w", err)
	}

	slot, err := scanSlot(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTransitionFailed
		}
		return nil, fmt.Errorf("transition slot failed: %w", err)
	}
	return slot, nil
}

func (r *pgxRepository) IsPending(ctx context.Context, providerID string, from, to, date time.Time) (bool, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Select("1").
		From("public.booked_slots").
		Where(squirrel.Eq{
			"provider_id": providerID,
			"slot_date":   date,
			"start_time":  from,
			"end_time":    to,
			"status":      StatusPending,
		}).
		Limit(1).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build pending slot query failed: %w", err)
	}

	var one int
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&one); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check pending slot failed: %w", err)
	}
	return true, nil
}

func (r *pgxRepository) GetByID(ctx context.Context, id string) (*BookedSlot, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Select(slotColumns...).
		From("public.booked_slots").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get slot query failed: %w", err)
	}

	slot, err := scanSlot(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get slot failed: %w", err)
	}
	return slot, nil
}

func (r *pgxRepository) List(ctx context.Context, filter Filter) ([]*BookedSlot, int, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	queryBuilder := psql.Select(append(slotColumns, "count(*) OVER() as total_count")...).
		From("public.booked_slots")

	if filter.ProviderID != "" {
		queryBuilder = queryBuilder.Where(squirrel.Eq{"provider_id": filter.ProviderID})
	}
	if filter.CustomerID != "" {
		queryBuilder = queryBuilder.Where(squirrel.Eq{"customer_id": filter.CustomerID})
	}
	if filter.Status != "" {
		queryBuilder = queryBuilder.Where(squirrel.Eq{"status": filter.Status})
	}
	if filter.Date != nil {
		queryBuilder = queryBuilder.Where(squirrel.Eq{"slot_date": *filter.Date})
	}

	// Sorting
	orderBy := "start_time"
	if filter.SortBy != "" {
		orderBy = filter.SortBy
	}

	orderDir := "ASC"
	if filter.SortOrder != "" {
		orderDir = filter.SortOrder
	}

	queryBuilder = queryBuilder.OrderBy(orderBy+" "+orderDir, "id")

	// Pagination
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 {
		filter.PageSize = 20
	}
	offset := (filter.Page - 1) * filter.PageSize

	queryBuilder = queryBuilder.Limit(uint64(filter.PageSize)).Offset(uint64(offset))

	sql, args, err := queryBuilder.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build list slots query failed: %w", err)
	}

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list slots failed: %w", err)
	}
	defer rows.Close()

	var result []*BookedSlot
	var total int

	for rows.Next() {
		slot, err := scanSlot(rows, &total)
		if err != nil {
			return nil, 0, fmt.Errorf("scan slot failed: %w", err)
		}
		result = append(result, slot)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list slots failed: %w", err)
	}

	return result, total, nil
}
