package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dyike/vsdocs/internal/library"
)

// Change-set statuses besides the job states.
const (
	StatusSubmitting   = "submitting"
	StatusSubmitFailed = "submit_failed"
)

// Item operations.
const (
	OpAdd    = "add"
	OpRemove = "remove"
)

// ChangeSetRecord is one change-set submitted from this machine
type ChangeSetRecord struct {
	ID           string    `json:"id"`
	CollectionID string    `json:"collection_id"`
	JobID        *string   `json:"job_id,omitempty"`
	Status       string    `json:"status"`
	Added        int       `json:"added"`
	Removed      int       `json:"removed"`
	Processed    int       `json:"processed"`
	Total        int       `json:"total"`
	Error        *string   `json:"error,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ChangeSetItem is one add or remove inside a change-set. Ref is a library
// path for adds and a document id for removes.
type ChangeSetItem struct {
	ID          int64  `json:"id"`
	ChangeSetID string `json:"changeset_id"`
	Op          string `json:"op"`
	Ref         string `json:"ref"`
	Name        string `json:"name"`
}

// CreateChangeSet records a change-set before it is submitted
func (db *DB) CreateChangeSet(collectionID string, cs library.ChangeSet) (*ChangeSetRecord, error) {
	id := uuid.New().String()
	now := time.Now().Unix()

	tx, err := db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO changesets (id, collection_id, status, added_count, removed_count, total, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, id, collectionID, StatusSubmitting, len(cs.DocumentsToAdd), len(cs.DocumentsToRemove),
		len(cs.DocumentsToAdd)+len(cs.DocumentsToRemove), now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to insert change-set: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO changeset_items (changeset_id, op, ref, name) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	for _, item := range cs.DocumentsToAdd {
		if _, err := stmt.Exec(id, OpAdd, item.Path, item.Name); err != nil {
			return nil, fmt.Errorf("failed to insert item: %w", err)
		}
	}
	for _, docID := range cs.DocumentsToRemove {
		if _, err := stmt.Exec(id, OpRemove, docID, nil); err != nil {
			return nil, fmt.Errorf("failed to insert item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return db.GetChangeSet(id)
}

// SetChangeSetJob stores the job id returned by the backend
func (db *DB) SetChangeSetJob(id, jobID string) error {
	now := time.Now().Unix()
	_, err := db.Exec(`
		UPDATE changesets SET job_id = ?, status = ?, updated_at = ? WHERE id = ?
	`, jobID, string(library.JobPending), now, id)
	return err
}

// UpdateChangeSetStatus copies a job snapshot into the record
func (db *DB) UpdateChangeSetStatus(id string, st library.JobStatus) error {
	now := time.Now().Unix()
	var errMsg *string
	if st.Error != "" {
		errMsg = &st.Error
	}
	_, err := db.Exec(`
		UPDATE changesets SET status = ?, processed = ?, total = ?, error_message = ?, updated_at = ?
		WHERE id = ?
	`, string(st.Status), st.Processed, st.Total, errMsg, now, id)
	return err
}

// FailChangeSetSubmit marks a change-set the backend never accepted
func (db *DB) FailChangeSetSubmit(id string, cause error) error {
	now := time.Now().Unix()
	_, err := db.Exec(`
		UPDATE changesets SET status = ?, error_message = ?, updated_at = ? WHERE id = ?
	`, StatusSubmitFailed, cause.Error(), now, id)
	return err
}

const changeSetColumns = `id, collection_id, job_id, status, added_count, removed_count, processed, total, error_message, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanChangeSet(row scanner) (*ChangeSetRecord, error) {
	var r ChangeSetRecord
	var createdAt, updatedAt int64
	err := row.Scan(
		&r.ID, &r.CollectionID, &r.JobID, &r.Status, &r.Added, &r.Removed,
		&r.Processed, &r.Total, &r.Error, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}
	r.CreatedAt = time.Unix(createdAt, 0)
	r.UpdatedAt = time.Unix(updatedAt, 0)
	return &r, nil
}

// GetChangeSet retrieves a change-set by ID
func (db *DB) GetChangeSet(id string) (*ChangeSetRecord, error) {
	r, err := scanChangeSet(db.QueryRow(`SELECT `+changeSetColumns+` FROM changesets WHERE id = ?`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return r, nil
}

// ListChangeSets returns the newest change-sets first. An empty collectionID
// lists all collections; limit <= 0 means no limit.
func (db *DB) ListChangeSets(collectionID string, limit int) ([]*ChangeSetRecord, error) {
	query := `SELECT ` + changeSetColumns + ` FROM changesets`
	var args []any
	if collectionID != "" {
		query += " WHERE collection_id = ?"
		args = append(args, collectionID)
	}
	query += " ORDER BY created_at DESC, rowid DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*ChangeSetRecord
	for rows.Next() {
		r, err := scanChangeSet(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// GetChangeSetItems returns the items of a change-set, adds first
func (db *DB) GetChangeSetItems(id string) ([]*ChangeSetItem, error) {
	rows, err := db.Query(`
		SELECT id, changeset_id, op, ref, COALESCE(name, '')
		FROM changeset_items WHERE changeset_id = ?
		ORDER BY CASE op WHEN 'add' THEN 0 ELSE 1 END, id
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*ChangeSetItem
	for rows.Next() {
		var it ChangeSetItem
		if err := rows.Scan(&it.ID, &it.ChangeSetID, &it.Op, &it.Ref, &it.Name); err != nil {
			return nil, err
		}
		items = append(items, &it)
	}
	return items, rows.Err()
}

// DeleteChangeSet deletes a change-set and its items
func (db *DB) DeleteChangeSet(id string) error {
	_, err := db.Exec(`DELETE FROM changesets WHERE id = ?`, id)
	return err
}
