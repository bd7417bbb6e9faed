package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/gatherly/internal/errdef"
	"github.com/mmynk/gatherly/internal/models"
)

const eventColumns = `id, title, description, creator_id, locations, start_ms, end_ms, all_day,
	time_zone, is_recurring, recurrence, status, cost_total, cost_type, cost_per_user,
	cancelled, chat_id, created_ms, updated_ms`

// eventRow holds the encoded columns of one event.
type eventRow struct {
	locations   string
	recurrence  sql.NullString
	perUser     string
	cancelled   string
	startMs     int64
	endMs       int64
	createdMs   int64
	updatedMs   int64
	allDay      bool
	isRecurring bool
}

func encodeEvent(e *models.Event) ([]any, error) {
	locations, err := toJSON(nonNil(e.Locations))
	if err != nil {
		return nil, err
	}
	var recurrence sql.NullString
	if e.RecurrenceRule != nil {
		raw, err := toJSON(e.RecurrenceRule)
		if err != nil {
			return nil, err
		}
		recurrence = sql.NullString{String: raw, Valid: true}
	}
	perUser := e.CostDistribution.PerUser
	if perUser == nil {
		perUser = map[string]float64{}
	}
	perUserJSON, err := toJSON(perUser)
	if err != nil {
		return nil, err
	}
	cancelledMs := make([]int64, 0, len(e.CancelledOccurrences))
	for _, c := range e.CancelledOccurrences {
		cancelledMs = append(cancelledMs, c.UnixMilli())
	}
	cancelled, err := toJSON(cancelledMs)
	if err != nil {
		return nil, err
	}
	costType := e.CostDistribution.Type
	if costType == "" {
		costType = models.DistributionEqual
	}
	return []any{
		e.ID, e.Title, e.Description, e.CreatorID, locations, toMillis(e.Start), toMillis(e.End), e.AllDay,
		e.TimeZone, e.IsRecurring, recurrence, string(e.Status), e.CostDistribution.Total, string(costType), perUserJSON,
		cancelled, e.ChatID, toMillis(e.CreatedAt), toMillis(e.UpdatedAt),
	}, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEvent(sc scanner) (*models.Event, error) {
	e := &models.Event{}
	var row eventRow
	var status, costType string
	err := sc.Scan(
		&e.ID, &e.Title, &e.Description, &e.CreatorID, &row.locations, &row.startMs, &row.endMs, &row.allDay,
		&e.TimeZone, &row.isRecurring, &row.recurrence, &status, &e.CostDistribution.Total, &costType, &row.perUser,
		&row.cancelled, &e.ChatID, &row.createdMs, &row.updatedMs,
	)
	if err != nil {
		return nil, err
	}
	e.Status = models.EventStatus(status)
	e.CostDistribution.Type = models.DistributionType(costType)
	e.Start, e.End = fromMillis(row.startMs), fromMillis(row.endMs)
	e.CreatedAt, e.UpdatedAt = fromMillis(row.createdMs), fromMillis(row.updatedMs)
	e.AllDay, e.IsRecurring = row.allDay, row.isRecurring

	if err := fromJSON(row.locations, &e.Locations); err != nil {
		return nil, err
	}
	if row.recurrence.Valid {
		e.RecurrenceRule = &models.RecurrenceRule{}
		if err := fromJSON(row.recurrence.String, e.RecurrenceRule); err != nil {
			return nil, err
		}
	}
	if err := fromJSON(row.perUser, &e.CostDistribution.PerUser); err != nil {
		return nil, err
	}
	var cancelledMs []int64
	if err := fromJSON(row.cancelled, &cancelledMs); err != nil {
		return nil, err
	}
	for _, ms := range cancelledMs {
		e.CancelledOccurrences = append(e.CancelledOccurrences, fromMillis(ms))
	}
	return e, nil
}

// CreateEvent persists a new event with its invites.
func (s *SQLiteStore) CreateEvent(ctx context.Context, event *models.Event) error {
	// Generate IDs if not set
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	now := time.Now().UTC().Truncate(time.Millisecond)
	if event.CreatedAt.IsZero() {
		event.CreatedAt = now
	}
	event.UpdatedAt = now
	for i := range event.Locations {
		if event.Locations[i].ID == "" {
			event.Locations[i].ID = uuid.New().String()
		}
	}

	args, err := encodeEvent(event)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storeErr("begin transaction", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		"INSERT INTO events ("+eventColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		args...,
	)
	if err != nil {
		return storeErr("insert event", err)
	}
	if err := insertInvites(ctx, tx, event); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return storeErr("commit transaction", err)
	}
	return nil
}

func insertInvites(ctx context.Context, tx *sql.Tx, event *models.Event) error {
	for i, inv := range event.Invites {
		roles, err := toJSON(nonNil(inv.Roles))
		if err != nil {
			return err
		}
		var cost sql.NullFloat64
		if inv.Cost != nil {
			cost = sql.NullFloat64{Float64: *inv.Cost, Valid: true}
		}
		_, err = tx.ExecContext(ctx,
			"INSERT INTO event_invites (event_id, user_id, position, status, roles, cost, responded_ms) VALUES (?, ?, ?, ?, ?, ?, ?)",
			event.ID, inv.UserID, i, string(inv.Status), roles, cost, nullMillis(inv.RespondedAt),
		)
		if err != nil {
			return storeErr("insert invite", err)
		}
	}
	return nil
}

// GetEvent retrieves an event by ID, including its invites.
func (s *SQLiteStore) GetEvent(ctx context.Context, eventID string) (*models.Event, error) {
	e, err := scanEvent(s.db.QueryRowContext(ctx,
		"SELECT "+eventColumns+" FROM events WHERE id = ?", eventID,
	))
	if err == sql.ErrNoRows {
		return nil, errdef.NewNotFound("event not found: %s", eventID)
	}
	if err != nil {
		return nil, storeErr("get event", err)
	}
	if err := s.loadInvites(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

func (s *SQLiteStore) loadInvites(ctx context.Context, e *models.Event) error {
	rows, err := s.db.QueryContext(ctx,
		"SELECT user_id, status, roles, cost, responded_ms FROM event_invites WHERE event_id = ? ORDER BY position",
		e.ID,
	)
	if err != nil {
		return storeErr("get invites", err)
	}
	defer rows.Close()

	for rows.Next() {
		var inv models.EventInvite
		var status, roles string
		var cost sql.NullFloat64
		var responded sql.NullInt64
		if err := rows.Scan(&inv.UserID, &status, &roles, &cost, &responded); err != nil {
			return storeErr("scan invite", err)
		}
		inv.Status = models.InviteStatus(status)
		if err := fromJSON(roles, &inv.Roles); err != nil {
			return err
		}
		if len(inv.Roles) == 0 {
			inv.Roles = nil
		}
		if cost.Valid {
			c := cost.Float64
			inv.Cost = &c
		}
		inv.RespondedAt = fromNullMillis(responded)
		e.Invites = append(e.Invites, inv)
	}
	if err := rows.Err(); err != nil {
		return storeErr("iterate invites", err)
	}
	return nil
}

// UpdateEvent replaces an existing event and its invites.
func (s *SQLiteStore) UpdateEvent(ctx context.Context, event *models.Event) error {
	event.UpdatedAt = time.Now().UTC().Truncate(time.Millisecond)
	for i := range event.Locations {
		if event.Locations[i].ID == "" {
			event.Locations[i].ID = uuid.New().String()
		}
	}
	args, err := encodeEvent(event)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storeErr("begin transaction", err)
	}
	defer tx.Rollback()

	// Column order matches eventColumns without id, followed by the id.
	res, err := tx.ExecContext(ctx, `
		UPDATE events SET title = ?, description = ?, creator_id = ?, locations = ?, start_ms = ?, end_ms = ?,
			all_day = ?, time_zone = ?, is_recurring = ?, recurrence = ?, status = ?, cost_total = ?,
			cost_type = ?, cost_per_user = ?, cancelled = ?, chat_id = ?, created_ms = ?, updated_ms = ?
		WHERE id = ?`,
		append(args[1:], event.ID)...,
	)
	if err != nil {
		return storeErr("update event", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errdef.NewNotFound("event not found: %s", event.ID)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM event_invites WHERE event_id = ?", event.ID); err != nil {
		return storeErr("clear invites", err)
	}
	if err := insertInvites(ctx, tx, event); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return storeErr("commit transaction", err)
	}
	return nil
}

// DeleteEvent removes an event; invites cascade.
func (s *SQLiteStore) DeleteEvent(ctx context.Context, eventID string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM events WHERE id = ?", eventID)
	if err != nil {
		return storeErr("delete event", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errdef.NewNotFound("event not found: %s", eventID)
	}
	return nil
}

func (s *SQLiteStore) ListEventsByCreator(ctx context.Context, userID string) ([]*models.Event, error) {
	return s.listEvents(ctx, "SELECT "+eventColumns+" FROM events WHERE creator_id = ? ORDER BY start_ms", userID)
}

func (s *SQLiteStore) ListEventsByInvitee(ctx context.Context, userID string) ([]*models.Event, error) {
	return s.listEvents(ctx,
		"SELECT "+eventColumns+" FROM events WHERE id IN (SELECT event_id FROM event_invites WHERE user_id = ?) ORDER BY start_ms",
		userID,
	)
}

func (s *SQLiteStore) ListEventsByStatus(ctx context.Context, status models.EventStatus) ([]*models.Event, error) {
	return s.listEvents(ctx, "SELECT "+eventColumns+" FROM events WHERE status = ? ORDER BY start_ms", string(status))
}

// listEvents reads every matching row before loading invites; the store has a
// single connection, so nested queries would block on the open cursor.
func (s *SQLiteStore) listEvents(ctx context.Context, query string, args ...any) ([]*models.Event, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeErr("list events", err)
	}
	var events []*models.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			rows.Close()
			return nil, storeErr("scan event", err)
		}
		events = append(events, e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate events", err)
	}

	for _, e := range events {
		if err := s.loadInvites(ctx, e); err != nil {
			return nil, err
		}
	}
	return events, nil
}

// AddCancelledOccurrence appends date to the event's cancelled occurrences.
func (s *SQLiteStore) AddCancelledOccurrence(ctx context.Context, eventID string, date time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storeErr("begin transaction", err)
	}
	defer tx.Rollback()

	var raw string
	err = tx.QueryRowContext(ctx, "SELECT cancelled FROM events WHERE id = ?", eventID).Scan(&raw)
	if err == sql.ErrNoRows {
		return errdef.NewNotFound("event not found: %s", eventID)
	}
	if err != nil {
		return storeErr("get cancelled occurrences", err)
	}
	var cancelled []int64
	if err := fromJSON(raw, &cancelled); err != nil {
		return err
	}
	ms := date.UnixMilli()
	for _, c := range cancelled {
		if c == ms {
			return nil
		}
	}
	encoded, err := toJSON(append(cancelled, ms))
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx,
		"UPDATE events SET cancelled = ?, updated_ms = ? WHERE id = ?",
		encoded, time.Now().UnixMilli(), eventID,
	)
	if err != nil {
		return storeErr("update cancelled occurrences", err)
	}
	if err := tx.Commit(); err != nil {
		return storeErr("commit transaction", err)
	}
	return nil
}
