package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/gatherly/internal/errdef"
	"github.com/mmynk/gatherly/internal/models"
)

const templateColumns = "id, name, description, default_duration, default_locations, default_roles, creator_id, is_public, created_ms"

func scanTemplate(sc scanner) (*models.EventTemplate, error) {
	t := &models.EventTemplate{}
	var locations, roles string
	var createdMs int64
	err := sc.Scan(&t.ID, &t.Name, &t.Description, &t.DefaultDuration, &locations, &roles, &t.CreatorID, &t.IsPublic, &createdMs)
	if err != nil {
		return nil, err
	}
	if err := fromJSON(locations, &t.DefaultLocations); err != nil {
		return nil, err
	}
	if err := fromJSON(roles, &t.DefaultRoles); err != nil {
		return nil, err
	}
	t.DefaultLocations = nonNil(t.DefaultLocations)
	t.DefaultRoles = nonNil(t.DefaultRoles)
	t.CreatedAt = fromMillis(createdMs)
	return t, nil
}

// CreateTemplate persists a new event template.
func (s *SQLiteStore) CreateTemplate(ctx context.Context, t *models.EventTemplate) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	}
	locations, err := toJSON(nonNil(t.DefaultLocations))
	if err != nil {
		return err
	}
	roles, err := toJSON(nonNil(t.DefaultRoles))
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO event_templates ("+templateColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
		t.ID, t.Name, t.Description, t.DefaultDuration, locations, roles, t.CreatorID, t.IsPublic, toMillis(t.CreatedAt),
	)
	if err != nil {
		return storeErr("insert template", err)
	}
	return nil
}

// GetTemplate retrieves a template by its ID.
func (s *SQLiteStore) GetTemplate(ctx context.Context, templateID string) (*models.EventTemplate, error) {
	t, err := scanTemplate(s.db.QueryRowContext(ctx, "SELECT "+templateColumns+" FROM event_templates WHERE id = ?", templateID))
	if err == sql.ErrNoRows {
		return nil, errdef.NewNotFound("template not found: %s", templateID)
	}
	if err != nil {
		return nil, storeErr("get template", err)
	}
	return t, nil
}

// ListTemplates returns userID's templates and every public one, by name.
func (s *SQLiteStore) ListTemplates(ctx context.Context, userID string) ([]*models.EventTemplate, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+templateColumns+" FROM event_templates WHERE creator_id = ? OR is_public = 1 ORDER BY name, created_ms",
		userID,
	)
	if err != nil {
		return nil, storeErr("list templates", err)
	}
	defer rows.Close()

	var out []*models.EventTemplate
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, storeErr("scan template", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate templates", err)
	}
	return out, nil
}

// DeleteTemplate removes a template.
func (s *SQLiteStore) DeleteTemplate(ctx context.Context, templateID string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM event_templates WHERE id = ?", templateID)
	if err != nil {
		return storeErr("delete template", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errdef.NewNotFound("template not found: %s", templateID)
	}
	return nil
}
