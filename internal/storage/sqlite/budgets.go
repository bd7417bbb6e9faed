package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/gatherly/internal/errdef"
	"github.com/mmynk/gatherly/internal/models"
)

const budgetColumns = "id, user_id, month, limit_amount, spent, created_ms, updated_ms"

func scanBudget(sc scanner) (*models.Budget, error) {
	b := &models.Budget{}
	var createdMs, updatedMs int64
	if err := sc.Scan(&b.ID, &b.UserID, &b.Month, &b.Limit, &b.Spent, &createdMs, &updatedMs); err != nil {
		return nil, err
	}
	b.CreatedAt, b.UpdatedAt = fromMillis(createdMs), fromMillis(updatedMs)
	b.Events = []models.BudgetEvent{}
	return b, nil
}

// GetBudget returns the budget for userID and month, or nil if none exists.
func (s *SQLiteStore) GetBudget(ctx context.Context, userID, month string) (*models.Budget, error) {
	b, err := scanBudget(s.db.QueryRowContext(ctx,
		"SELECT "+budgetColumns+" FROM budgets WHERE user_id = ? AND month = ?",
		userID, month,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("get budget", err)
	}
	if err := s.loadBudgetEvents(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

func (s *SQLiteStore) loadBudgetEvents(ctx context.Context, b *models.Budget) error {
	rows, err := s.db.QueryContext(ctx,
		"SELECT event_id, event_title, cost, date_ms FROM budget_events WHERE budget_id = ? ORDER BY seq",
		b.ID,
	)
	if err != nil {
		return storeErr("get budget events", err)
	}
	defer rows.Close()

	for rows.Next() {
		var entry models.BudgetEvent
		var dateMs int64
		if err := rows.Scan(&entry.EventID, &entry.EventTitle, &entry.Cost, &dateMs); err != nil {
			return storeErr("scan budget event", err)
		}
		entry.Date = fromMillis(dateMs)
		b.Events = append(b.Events, entry)
	}
	if err := rows.Err(); err != nil {
		return storeErr("iterate budget events", err)
	}
	return nil
}

// ListBudgets returns userID's budgets, newest month first.
func (s *SQLiteStore) ListBudgets(ctx context.Context, userID string) ([]*models.Budget, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+budgetColumns+" FROM budgets WHERE user_id = ? ORDER BY month DESC",
		userID,
	)
	if err != nil {
		return nil, storeErr("list budgets", err)
	}
	var budgets []*models.Budget
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			rows.Close()
			return nil, storeErr("scan budget", err)
		}
		budgets = append(budgets, b)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate budgets", err)
	}

	for _, b := range budgets {
		if err := s.loadBudgetEvents(ctx, b); err != nil {
			return nil, err
		}
	}
	return budgets, nil
}

// ensureBudget creates the (userID, month) row if it does not exist yet.
func ensureBudget(ctx context.Context, tx *sql.Tx, userID, month string, now int64) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO budgets (`+budgetColumns+`) VALUES (?, ?, ?, 0, 0, ?, ?)
		ON CONFLICT (user_id, month) DO NOTHING`,
		uuid.New().String(), userID, month, now, now,
	)
	if err != nil {
		return storeErr("create budget", err)
	}
	return nil
}

// SetBudgetLimit creates the budget if needed and sets its limit.
func (s *SQLiteStore) SetBudgetLimit(ctx context.Context, userID, month string, limit float64) (*models.Budget, error) {
	now := time.Now().UnixMilli()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, storeErr("begin transaction", err)
	}
	defer tx.Rollback()

	if err := ensureBudget(ctx, tx, userID, month, now); err != nil {
		return nil, err
	}
	_, err = tx.ExecContext(ctx,
		"UPDATE budgets SET limit_amount = ?, updated_ms = ? WHERE user_id = ? AND month = ?",
		limit, now, userID, month,
	)
	if err != nil {
		return nil, storeErr("set budget limit", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, storeErr("commit transaction", err)
	}
	return s.GetBudget(ctx, userID, month)
}

// AddBudgetEvent records entry against the month's budget. The upsert, the
// entry insert and the increment share one transaction, and the increment is
// computed by SQLite from the stored value, so concurrent calls never lose an
// update. An event already recorded in the month is a Conflict and leaves the
// budget untouched.
func (s *SQLiteStore) AddBudgetEvent(ctx context.Context, userID, month string, entry models.BudgetEvent) (*models.Budget, error) {
	now := time.Now().UnixMilli()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, storeErr("begin transaction", err)
	}
	defer tx.Rollback()

	if err := ensureBudget(ctx, tx, userID, month, now); err != nil {
		return nil, err
	}
	res, err := tx.ExecContext(ctx, `
		INSERT INTO budget_events (budget_id, event_id, event_title, cost, date_ms)
		SELECT id, ?, ?, ?, ? FROM budgets WHERE user_id = ? AND month = ?
		ON CONFLICT (budget_id, event_id) DO NOTHING`,
		entry.EventID, entry.EventTitle, entry.Cost, toMillis(entry.Date), userID, month,
	)
	if err != nil {
		return nil, storeErr("insert budget event", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, errdef.NewConflict("event %s is already attributed to %s", entry.EventID, month)
	}
	_, err = tx.ExecContext(ctx,
		"UPDATE budgets SET spent = spent + ?, updated_ms = ? WHERE user_id = ? AND month = ?",
		entry.Cost, now, userID, month,
	)
	if err != nil {
		return nil, storeErr("increment budget", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, storeErr("commit transaction", err)
	}
	return s.GetBudget(ctx, userID, month)
}
