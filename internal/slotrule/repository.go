package slotrule

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository interface {
	Create(ctx context.Context, rule *SlotRule) error
	GetByID(ctx context.Context, id string) (*SlotRule, error)
	List(ctx context.Context, filter Filter) ([]*SlotRule, int, error)
	Update(ctx context.Context, rule *SlotRule) error
	SetActive(ctx context.Context, id string, active bool) error
	Delete(ctx context.Context, id string) error

	// ListActiveByProvider returns the provider's active rules in a stable
	// order: highest priority first, then earliest start date, then id.
	ListActiveByProvider(ctx context.Context, providerID string) ([]*SlotRule, error)
}

type pgxRepository struct {
	pool *pgxpool.Pool
}

func NewPgxRepository(pool *pgxpool.Pool) Repository {
	return &pgxRepository{pool: pool}
}

var ruleColumns = []string{
	"id", "provider_id", "name", "description", "start_date", "end_date", "days_of_week",
	"to_char(start_time, 'HH24:MI')", "to_char(end_time, 'HH24:MI')",
	"slot_duration", "break_duration", "capacity", "is_active", "priority",
	"exclude_dates", "price", "created_at", "updated_at",
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRule(row rowScanner, extra ...any) (*SlotRule, error) {
	var (
		rule       SlotRule
		days       []string
		start, end string
	)
	dest := []any{
		&rule.ID, &rule.ProviderID, &rule.Name, &rule.Description, &rule.StartDate, &rule.EndDate, &days,
		&start, &end,
		&rule.SlotDuration, &rule.BreakDuration, &rule.Capacity, &rule.IsActive, &rule.Priority,
		&rule.ExcludeDates, &rule.Price, &rule.CreatedAt, &rule.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}

	var err error
	if rule.StartTime, err = ParseClock(start); err != nil {
		return nil, fmt.Errorf("stored start_time %q: %w", start, err)
	}
	if rule.EndTime, err = ParseClock(end); err != nil {
		return nil, fmt.Errorf("stored end_time %q: %w", end, err)
	}
	rule.DaysOfWeek = make([]Weekday, len(days))
	for i, d := range days {
		rule.DaysOfWeek[i] = Weekday(d)
	}
	return &rule, nil
}

func dayTokens(days []Weekday) []string {
	out := make([]string, len(days))
	for i, d := range days {
		out[i] = string(d)
	}
	return out
}

func (r *pgxRepository) Create(ctx context.Context, rule *SlotRule) error {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Insert("public.slot_rules").
		Columns(
			"provider_id", "name", "description", "start_date", "end_date", "days_of_week",
			"start_time", "end_time", "slot_duration", "break_duration", "capacity",
			"is_active", "priority", "exclude_dates", "price",
		).
		Values(
			rule.ProviderID, rule.Name, rule.Description, rule.StartDate, rule.EndDate, dayTokens(rule.DaysOfWeek),
			rule.StartTime.String(), rule.EndTime.String(), rule.SlotDuration, rule.BreakDuration, rule.Capacity,
			rule.IsActive, rule.Priority, rule.ExcludeDates, rule.Price,
		).
		Suffix("RETURNING id, created_at, updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build create slot rule query failed: %w", err)
	}

	if err := r.pool.QueryRow(ctx, query, args...).Scan(&rule.ID, &rule.CreatedAt, &rule.UpdatedAt); err != nil {
		return fmt.Errorf("create slot rule failed: %w", err)
	}
	return nil
}

func (r *pgxRepository) GetByID(ctx context.Context, id string) (*SlotRule, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Select(ruleColumns...).
		From("public.slot_rules").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get slot rule query failed: %w", err)
	}

	rule, err := scanRule(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get slot rule failed: %w", err)
	}
	return rule, nil
}

func (r *pgxRepository) List(ctx context.Context, filter Filter) ([]*SlotRule, int, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	queryBuilder := psql.Select(append(ruleColumns, "count(*) OVER() as total_count")...).
		From("public.slot_rules")

	if filter.ProviderID != "" {
		queryBuilder = queryBuilder.Where(squirrel.Eq{"provider_id": filter.ProviderID})
	}
	if filter.IsActive != nil {
		queryBuilder = queryBuilder.Where(squirrel.Eq{"is_active": *filter.IsActive})
	}
	if filter.Date != nil {
		day := DateOf(*filter.Date)
		queryBuilder = queryBuilder.
			Where(squirrel.LtOrEq{"start_date": day}).
			Where(squirrel.GtOrEq{"end_date": day})
	}

	// Sorting
	orderBy := "created_at"
	if filter.SortBy != "" {
		orderBy = filter.SortBy
	}

	orderDir := "DESC"
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
		return nil, 0, fmt.Errorf("build list slot rules query failed: %w", err)
	}

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list slot rules failed: %w", err)
	}
	defer rows.Close()

	var result []*SlotRule
	var total int

	for rows.Next() {
		rule, err := scanRule(rows, &total)
		if err != nil {
			return nil, 0, fmt.Errorf("scan slot rule failed: %w", err)
		}
		result = append(result, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list slot rules failed: %w", err)
	}

	return result, total, nil
}

func (r *pgxRepository) ListActiveByProvider(ctx context.Context, providerID string) ([]*SlotRule, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Select(ruleColumns...).
		From("public.slot_rules").
		Where(squirrel.Eq{"provider_id": providerID, "is_active": true}).
		OrderBy("priority DESC", "start_date ASC", "id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list active slot rules query failed: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list active slot rules failed: %w", err)
	}
	defer rows.Close()

	var result []*SlotRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan slot rule failed: %w", err)
		}
		result = append(result, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list active slot rules failed: %w", err)
	}
	return result, nil
}

func (r *pgxRepository) Update(ctx context.Context, rule *SlotRule) error {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Update("public.slot_rules").
		Set("name", rule.Name).
		Set("description", rule.Description).
		Set("start_date", rule.StartDate).
		Set("end_date", rule.EndDate).
		Set("days_of_week", dayTokens(rule.DaysOfWeek)).
		Set("start_time", rule.StartTime.String()).
		Set("end_time", rule.EndTime.String()).
		Set("slot_duration", rule.SlotDuration).
		Set("break_duration", rule.BreakDuration).
		Set("capacity", rule.Capacity).
		Set("is_active", rule.IsActive).
		Set("priority", rule.Priority).
		Set("exclude_dates", rule.ExcludeDates).
		Set("price", rule.Price).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": rule.ID}).
		Suffix("RETURNING updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build update slot rule query failed: %w", err)
	}

	if err := r.pool.QueryRow(ctx, query, args...).Scan(&rule.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("update slot rule failed: %w", err)
	}
	return nil
}

func (r *pgxRepository) SetActive(ctx context.Context, id string, active bool) error {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Update("public.slot_rules").
		Set("is_active", active).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build set slot rule status query failed: %w", err)
	}

	ct, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("set slot rule status failed: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *pgxRepository) Delete(ctx context.Context, id string) error {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Delete("public.slot_rules").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete slot rule query failed: %w", err)
	}

	ct, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
			return ErrRuleInUse
		}
		return fmt.Errorf("delete slot rule failed: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
