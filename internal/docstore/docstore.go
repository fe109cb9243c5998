package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// Scope is the (companyId, teamId) pair partitioning all persisted data for
// one customer team.
type Scope struct {
	CompanyID string
	TeamID    string
}

// Document pairs a document key with its fields. The id is never stored
// inside the fields; it is stripped before write and reconstituted from the
// document key on read.
type Document struct {
	ID     string
	Fields map[string]any
}

// Tenant is a document store bound to one tenant scope. Writes notify the
// tenant's change channel so subscribers can reload.
type Tenant struct {
	db       *sql.DB
	scope    Scope
	notifier *Notifier
}

// NewTenant binds a document store to a scope. notifier may be nil, in which
// case writes are not announced (single-process deployments).
func NewTenant(db *sql.DB, scope Scope, notifier *Notifier) *Tenant {
	return &Tenant{db: db, scope: scope, notifier: notifier}
}

func (t *Tenant) Scope() Scope { return t.scope }

func (t *Tenant) Create(ctx context.Context, collection, id string, fields map[string]any) error {
	payload, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("marshal fields: %w", err)
	}
	_, err = t.db.ExecContext(ctx, `
		INSERT INTO documents (company_id, team_id, collection, doc_id, fields)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (company_id, team_id, collection, doc_id)
		DO UPDATE SET fields = EXCLUDED.fields, updated_at = NOW()
	`, t.scope.CompanyID, t.scope.TeamID, collection, id, payload)
	if err != nil {
		return fmt.Errorf("create %s/%s: %w", collection, id, err)
	}
	t.announce(ctx, collection)
	return nil
}

// MergePatch merges partial fields into an existing document. Fields absent
// from the patch are left untouched. Patching a missing document creates it.
func (t *Tenant) MergePatch(ctx context.Context, collection, id string, partial map[string]any) error {
	payload, err := json.Marshal(partial)
	if err != nil {
		return fmt.Errorf("marshal patch: %w", err)
	}
	_, err = t.db.ExecContext(ctx, `
		INSERT INTO documents (company_id, team_id, collection, doc_id, fields)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (company_id, team_id, collection, doc_id)
		DO UPDATE SET fields = documents.fields || EXCLUDED.fields, updated_at = NOW()
	`, t.scope.CompanyID, t.scope.TeamID, collection, id, payload)
	if err != nil {
		return fmt.Errorf("merge patch %s/%s: %w", collection, id, err)
	}
	t.announce(ctx, collection)
	return nil
}

func (t *Tenant) Delete(ctx context.Context, collection, id string) error {
	_, err := t.db.ExecContext(ctx, `
		DELETE FROM documents
		WHERE company_id=$1 AND team_id=$2 AND collection=$3 AND doc_id=$4
	`, t.scope.CompanyID, t.scope.TeamID, collection, id)
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	t.announce(ctx, collection)
	return nil
}

// List returns the full current document set for a collection.
func (t *Tenant) List(ctx context.Context, collection string) ([]Document, error) {
	rows, err := t.db.QueryContext(ctx, `
		SELECT doc_id, fields FROM documents
		WHERE company_id=$1 AND team_id=$2 AND collection=$3
		ORDER BY doc_id
	`, t.scope.CompanyID, t.scope.TeamID, collection)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}
	defer rows.Close()

	docs := make([]Document, 0)
	for rows.Next() {
		var doc Document
		var raw []byte
		if err := rows.Scan(&doc.ID, &raw); err != nil {
			return nil, fmt.Errorf("scan %s: %w", collection, err)
		}
		if err := json.Unmarshal(raw, &doc.Fields); err != nil {
			return nil, fmt.Errorf("decode %s/%s: %w", collection, doc.ID, err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (t *Tenant) Ping(ctx context.Context) error {
	return t.db.PingContext(ctx)
}

func (t *Tenant) announce(ctx context.Context, collection string) {
	if t.notifier != nil {
		t.notifier.Announce(ctx, t.scope, collection)
	}
}
