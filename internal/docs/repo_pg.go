package docs

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
)

// PGRepo implements Repo using Postgres. Scalar identity and styling fields
// map to columns; repeated sections and the contact block are stored as a
// single JSONB body.
type PGRepo struct {
	DB *sql.DB
}

type pgBody struct {
	Contact         Contact               `json:"contact"`
	Experiences     []Experience          `json:"experiences,omitempty"`
	Educations      []Education           `json:"educations,omitempty"`
	Achievements    []Achievement         `json:"achievements,omitempty"`
	Recipients      []Recipient           `json:"recipients,omitempty"`
	JobDescriptions []JobDescriptionEntry `json:"jobDescriptions,omitempty"`
	Opening         string                `json:"opening,omitempty"`
	LetterBody      string                `json:"letterBody,omitempty"`
	Closing         string                `json:"closing,omitempty"`
}

func bodyOf(doc Document) ([]byte, error) {
	return json.Marshal(pgBody{
		Contact:         doc.Contact,
		Experiences:     doc.Experiences,
		Educations:      doc.Educations,
		Achievements:    doc.Achievements,
		Recipients:      doc.Recipients,
		JobDescriptions: doc.JobDescriptions,
		Opening:         doc.Opening,
		LetterBody:      doc.LetterBody,
		Closing:         doc.Closing,
	})
}

func applyBody(doc *Document, raw []byte) error {
	var body pgBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return err
	}
	doc.Contact = body.Contact
	doc.Experiences = body.Experiences
	doc.Educations = body.Educations
	doc.Achievements = body.Achievements
	doc.Recipients = body.Recipients
	doc.JobDescriptions = body.JobDescriptions
	doc.Opening = body.Opening
	doc.LetterBody = body.LetterBody
	doc.Closing = body.Closing
	return nil
}

// Create inserts a new document.
func (r *PGRepo) Create(ctx context.Context, doc Document) error {
	const query = `
INSERT INTO documents (
    id,
    user_id,
    kind,
    title,
    description,
    theme_color,
    border_style,
    template_id,
    font_family,
    photo_url,
    body,
    created_at,
    updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	body, err := bodyOf(doc)
	if err != nil {
		return err
	}

	_, err = r.DB.ExecContext(
		ctx,
		query,
		doc.ID,
		doc.UserID,
		string(doc.Kind),
		doc.Title,
		doc.Description,
		doc.Styling.ThemeColor,
		doc.Styling.BorderStyle,
		doc.Styling.TemplateID,
		nullString(doc.Styling.FontFamily),
		nullString(doc.PhotoURL),
		body,
		doc.CreatedAt,
		doc.UpdatedAt,
	)
	return err
}

// Update replaces the mutable fields of an existing document the user owns.
func (r *PGRepo) Update(ctx context.Context, doc Document) error {
	const query = `
UPDATE documents
SET title = $1,
    description = $2,
    theme_color = $3,
    border_style = $4,
    template_id = $5,
    font_family = $6,
    photo_url = $7,
    body = $8,
    updated_at = $9
WHERE id = $10 AND user_id = $11 AND deleted_at IS NULL`

	body, err := bodyOf(doc)
	if err != nil {
		return err
	}

	res, err := r.DB.ExecContext(
		ctx,
		query,
		doc.Title,
		doc.Description,
		doc.Styling.ThemeColor,
		doc.Styling.BorderStyle,
		doc.Styling.TemplateID,
		nullString(doc.Styling.FontFamily),
		nullString(doc.PhotoURL),
		body,
		doc.UpdatedAt,
		doc.ID,
		doc.UserID,
	)
	if err != nil {
		return err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

const selectColumns = `id, user_id, kind, title, description, theme_color, border_style, template_id, font_family, photo_url, body, created_at, updated_at`

func scanDocument(scan func(dest ...any) error) (Document, error) {
	var doc Document
	var kind string
	var fontFamily sql.NullString
	var photoURL sql.NullString
	var body []byte
	if err := scan(
		&doc.ID,
		&doc.UserID,
		&kind,
		&doc.Title,
		&doc.Description,
		&doc.Styling.ThemeColor,
		&doc.Styling.BorderStyle,
		&doc.Styling.TemplateID,
		&fontFamily,
		&photoURL,
		&body,
		&doc.CreatedAt,
		&doc.UpdatedAt,
	); err != nil {
		return Document{}, err
	}
	doc.Kind = Kind(kind)
	if fontFamily.Valid {
		doc.Styling.FontFamily = fontFamily.String
	}
	if photoURL.Valid {
		doc.PhotoURL = photoURL.String
	}
	if len(body) > 0 {
		if err := applyBody(&doc, body); err != nil {
			return Document{}, err
		}
	}
	return doc, nil
}

// GetByID fetches a document by ID, enforcing ownership.
func (r *PGRepo) GetByID(ctx context.Context, userID, documentID string) (Document, error) {
	const query = `
SELECT ` + selectColumns + `
FROM documents
WHERE id = $1 AND deleted_at IS NULL
LIMIT 1`
	doc, err := scanDocument(r.DB.QueryRowContext(ctx, query, documentID).Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Document{}, ErrNotFound
		}
		return Document{}, err
	}
	if doc.UserID != userID {
		return Document{}, ErrForbidden
	}
	return doc, nil
}

// ListByUser lists documents ordered by most recent edit.
func (r *PGRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Document, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	const query = `
SELECT ` + selectColumns + `
FROM documents
WHERE user_id = $1 AND deleted_at IS NULL
ORDER BY updated_at DESC
LIMIT $2 OFFSET $3`

	rows, err := r.DB.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Document
	for rows.Next() {
		doc, err := scanDocument(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

// CountByUser counts live documents a user owns.
func (r *PGRepo) CountByUser(ctx context.Context, userID string) (int, error) {
	const query = `
SELECT COUNT(*) FROM documents WHERE user_id = $1 AND deleted_at IS NULL`
	var n int
	if err := r.DB.QueryRowContext(ctx, query, userID).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// Delete soft-deletes a document the user owns.
func (r *PGRepo) Delete(ctx context.Context, userID, documentID string) error {
	const query = `
UPDATE documents
SET deleted_at = NOW()
WHERE id = $1 AND user_id = $2 AND deleted_at IS NULL`
	res, err := r.DB.ExecContext(ctx, query, documentID, userID)
	if err != nil {
		return err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

var _ Repo = (*PGRepo)(nil)
