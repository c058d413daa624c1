package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"nexusops/internal/config"
)

// Store is the authoritative collection of projects and work items, backed by
// SQLite. The default configuration keeps the database in memory; records are
// never removed by this core.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the work item database and applies the schema.
func Open(cfg *config.Config) (*Store, error) {
	dsn := cfg.Store.Path
	memory := strings.TrimSpace(dsn) == ""
	if memory {
		// A named shared-cache database survives as long as one connection
		// stays open; capping the pool at one keeps it alive and serialized.
		dsn = fmt.Sprintf("file:nexusops-%s?mode=memory&cache=shared", uuid.NewString())
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if memory {
		db.SetMaxOpenConns(1)
	}

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	if !memory {
		pragmas = append(pragmas, "PRAGMA journal_mode=WAL")
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db, path: dsn}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Snapshot returns a consistent copy of all projects and work items in
// insertion order. It never returns partially-updated data.
func (s *Store) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return snap, fmt.Errorf("begin snapshot: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `SELECT `+projectColumns+` FROM projects ORDER BY rowid`)
	if err != nil {
		return snap, fmt.Errorf("query projects: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		project, err := scanProject(rows)
		if err != nil {
			return snap, err
		}
		snap.Projects = append(snap.Projects, *project)
	}
	if err := rows.Err(); err != nil {
		return snap, err
	}

	itemRows, err := tx.QueryContext(ctx, `SELECT `+itemColumns+` FROM work_items ORDER BY rowid`)
	if err != nil {
		return snap, fmt.Errorf("query work items: %w", err)
	}
	defer itemRows.Close()
	for itemRows.Next() {
		item, err := scanItem(itemRows)
		if err != nil {
			return snap, err
		}
		snap.Items = append(snap.Items, *item)
	}
	return snap, itemRows.Err()
}

// Patch describes the mutable work item fields a caller wants to replace.
// Nil fields are left untouched; UpdatedAt is always refreshed.
type Patch struct {
	Status     *Status
	Prediction *Prediction
	HumanLabel *HumanLabel
}

// ApplyPatch replaces the addressed item's mutable fields and returns the new
// record. It fails with ErrNotFound when no such id exists.
func (s *Store) ApplyPatch(ctx context.Context, itemID string, patch Patch) (*WorkItem, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin patch: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM work_items WHERE id = ?`, itemID)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("patch item %q: %w", itemID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read item for patch: %w", err)
	}

	if patch.Status != nil {
		item.Status = *patch.Status
	}
	if patch.Prediction != nil {
		pred := *patch.Prediction
		item.Prediction = &pred
	}
	if patch.HumanLabel != nil {
		label := *patch.HumanLabel
		item.HumanLabel = &label
	}
	item.UpdatedAt = time.Now().UTC()

	predictionJSON, err := marshalNullable(item.Prediction)
	if err != nil {
		return nil, fmt.Errorf("marshal prediction: %w", err)
	}
	humanJSON, err := marshalNullable(item.HumanLabel)
	if err != nil {
		return nil, fmt.Errorf("marshal human label: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE work_items
         SET status = ?, prediction_json = ?, human_label_json = ?, updated_at = ?
         WHERE id = ?`,
		item.Status,
		predictionJSON,
		humanJSON,
		item.UpdatedAt.Format(time.RFC3339Nano),
		item.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("update item: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit patch: %w", err)
	}
	return item, nil
}

// AppendProject adds a new project record. It fails with ErrDuplicateID when
// the id collides with an existing project.
func (s *Store) AppendProject(ctx context.Context, project Project) error {
	if strings.TrimSpace(project.ID) == "" {
		return errors.New("store: project id required")
	}
	if project.Type.ClosedLabelSet() && len(project.Labels) == 0 {
		return fmt.Errorf("store: project %q of type %s requires labels", project.ID, project.Type)
	}

	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM projects WHERE id = ?`, project.ID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check project id: %w", err)
	}
	if exists > 0 {
		return fmt.Errorf("append project %q: %w", project.ID, ErrDuplicateID)
	}

	labelsJSON, err := json.Marshal(project.Labels)
	if err != nil {
		return fmt.Errorf("marshal labels: %w", err)
	}
	createdAt := project.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO projects (id, name, type, description, labels_json, guidelines, hourly_rate, created_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		project.ID,
		project.Name,
		project.Type,
		nullableString(project.Description),
		string(labelsJSON),
		nullableString(project.Guidelines),
		project.HourlyRate,
		createdAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert project: %w", err)
	}
	return nil
}

// AppendItems adds new work item records in order. The whole batch is applied
// atomically; id collisions fail with ErrDuplicateID and unknown project
// references fail with ErrNotFound.
func (s *Store) AppendItems(ctx context.Context, items []WorkItem) error {
	if len(items) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	for _, item := range items {
		if strings.TrimSpace(item.ID) == "" {
			return errors.New("store: item id required")
		}

		var exists int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM work_items WHERE id = ?`, item.ID).Scan(&exists); err != nil {
			return fmt.Errorf("check item id: %w", err)
		}
		if exists > 0 {
			return fmt.Errorf("append item %q: %w", item.ID, ErrDuplicateID)
		}
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM projects WHERE id = ?`, item.ProjectID).Scan(&exists); err != nil {
			return fmt.Errorf("check project reference: %w", err)
		}
		if exists == 0 {
			return fmt.Errorf("append item %q references project %q: %w", item.ID, item.ProjectID, ErrNotFound)
		}

		payloadJSON, err := json.Marshal(item.Payload)
		if err != nil {
			return fmt.Errorf("marshal payload: %w", err)
		}
		predictionJSON, err := marshalNullable(item.Prediction)
		if err != nil {
			return fmt.Errorf("marshal prediction: %w", err)
		}
		humanJSON, err := marshalNullable(item.HumanLabel)
		if err != nil {
			return fmt.Errorf("marshal human label: %w", err)
		}

		status := item.Status
		if status == "" {
			status = StatusPending
		}
		createdAt := item.CreatedAt
		if createdAt.IsZero() {
			createdAt = now
		}
		updatedAt := item.UpdatedAt
		if updatedAt.IsZero() {
			updatedAt = createdAt
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO work_items (id, project_id, payload_json, status, prediction_json, human_label_json, created_at, updated_at)
             VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			item.ID,
			item.ProjectID,
			string(payloadJSON),
			status,
			predictionJSON,
			humanJSON,
			createdAt.Format(time.RFC3339Nano),
			updatedAt.Format(time.RFC3339Nano),
		)
		if err != nil {
			return fmt.Errorf("insert item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit append: %w", err)
	}
	return nil
}

// GetItem fetches a work item by id, failing with ErrNotFound when missing.
func (s *Store) GetItem(ctx context.Context, id string) (*WorkItem, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM work_items WHERE id = ?`, id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get item %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return item, nil
}

// Stats returns a count of work items grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM work_items GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("item stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

const projectColumns = "id, name, type, description, labels_json, guidelines, hourly_rate, created_at"

const itemColumns = "id, project_id, payload_json, status, prediction_json, human_label_json, created_at, updated_at"

func scanProject(scanner interface{ Scan(dest ...any) error }) (*Project, error) {
	var (
		id          string
		name        string
		typeStr     string
		description sql.NullString
		labelsRaw   sql.NullString
		guidelines  sql.NullString
		hourlyRate  float64
		createdRaw  string
	)
	if err := scanner.Scan(&id, &name, &typeStr, &description, &labelsRaw, &guidelines, &hourlyRate, &createdRaw); err != nil {
		return nil, err
	}

	project := &Project{
		ID:          id,
		Name:        name,
		Type:        ProjectType(typeStr),
		Description: description.String,
		Guidelines:  guidelines.String,
		HourlyRate:  hourlyRate,
	}
	if labelsRaw.Valid && labelsRaw.String != "" {
		if err := json.Unmarshal([]byte(labelsRaw.String), &project.Labels); err != nil {
			return nil, fmt.Errorf("decode labels for project %q: %w", id, err)
		}
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		project.CreatedAt = created
	}
	return project, nil
}

func scanItem(scanner interface{ Scan(dest ...any) error }) (*WorkItem, error) {
	var (
		id         string
		projectID  string
		payloadRaw sql.NullString
		statusStr  string
		predRaw    sql.NullString
		humanRaw   sql.NullString
		createdRaw string
		updatedRaw string
	)
	if err := scanner.Scan(&id, &projectID, &payloadRaw, &statusStr, &predRaw, &humanRaw, &createdRaw, &updatedRaw); err != nil {
		return nil, err
	}

	item := &WorkItem{
		ID:        id,
		ProjectID: projectID,
		Status:    Status(statusStr),
	}
	if payloadRaw.Valid && payloadRaw.String != "" {
		if err := json.Unmarshal([]byte(payloadRaw.String), &item.Payload); err != nil {
			return nil, fmt.Errorf("decode payload for item %q: %w", id, err)
		}
	}
	if predRaw.Valid && predRaw.String != "" {
		var pred Prediction
		if err := json.Unmarshal([]byte(predRaw.String), &pred); err != nil {
			return nil, fmt.Errorf("decode prediction for item %q: %w", id, err)
		}
		item.Prediction = &pred
	}
	if humanRaw.Valid && humanRaw.String != "" {
		var label HumanLabel
		if err := json.Unmarshal([]byte(humanRaw.String), &label); err != nil {
			return nil, fmt.Errorf("decode human label for item %q: %w", id, err)
		}
		item.HumanLabel = &label
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		item.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		item.UpdatedAt = updated
	}
	return item, nil
}

func marshalNullable(value any) (any, error) {
	switch v := value.(type) {
	case *Prediction:
		if v == nil {
			return nil, nil
		}
	case *HumanLabel:
		if v == nil {
			return nil, nil
		}
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	return string(encoded), nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	return time.Parse(time.RFC3339Nano, value)
}
