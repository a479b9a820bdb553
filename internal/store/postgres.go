package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

const userColumns = `id, username, email, password_hash, is_email_verified, verification_token, verification_expires_at, notifications, shared_documents, created_at`

func (s *PostgresStore) CreateUser(ctx context.Context, user User) error {
	notifications, err := marshalJSON(user.Notifications)
	if err != nil {
		return fmt.Errorf("marshal notifications: %w", err)
	}
	sharedDocs, err := marshalJSON(user.SharedDocuments)
	if err != nil {
		return fmt.Errorf("marshal shared documents: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO users (id, username, email, password_hash, is_email_verified, verification_token, notifications, shared_documents)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, user.ID, user.Username, user.Email, user.PasswordHash, user.IsEmailVerified, user.VerificationToken, notifications, sharedDocs)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, userID string) (User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1`, userID)
	return scanUser(row)
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email=$1`, email)
	return scanUser(row)
}

// ListUsersByIDs resolves a batch of user ids to display identities. Missing
// ids are simply absent from the result.
func (s *PostgresStore) ListUsersByIDs(ctx context.Context, ids []string) (map[string]User, error) {
	users := make(map[string]User, len(ids))
	if len(ids) == 0 {
		return users, nil
	}
	idsJSON, err := json.Marshal(ids)
	if err != nil {
		return nil, fmt.Errorf("marshal ids: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE id IN (SELECT jsonb_array_elements_text($1::jsonb))
	`, idsJSON)
	if err != nil {
		return nil, fmt.Errorf("list users by ids: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users[user.ID] = user
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return users, nil
}

func (s *PostgresStore) UpdateUserPassword(ctx context.Context, userID, passwordHash string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE users SET password_hash=$2 WHERE id=$1`, userID, passwordHash)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateUserVerificationToken(ctx context.Context, userID, token string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE users SET verification_token=$2, verification_expires_at=$3, is_email_verified=FALSE
		WHERE id=$1
	`, userID, token, expiresAt)
	if err != nil {
		return fmt.Errorf("set verification token: %w", err)
	}
	return nil
}

func (s *PostgresStore) VerifyUserEmail(ctx context.Context, token string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE users SET is_email_verified=TRUE, verification_token='', verification_expires_at=NULL
		WHERE verification_token=$1 AND verification_expires_at > NOW()
	`, token)
	if err != nil {
		return fmt.Errorf("verify email: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("verify email rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SaveUser persists the user's mutable aggregate fields as one write. The
// notification feed and share mirror travel with the row; there is no
// per-entry update.
func (s *PostgresStore) SaveUser(ctx context.Context, user User) error {
	notifications, err := marshalJSON(user.Notifications)
	if err != nil {
		return fmt.Errorf("marshal notifications: %w", err)
	}
	sharedDocs, err := marshalJSON(user.SharedDocuments)
	if err != nil {
		return fmt.Errorf("marshal shared documents: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE users SET notifications=$2, shared_documents=$3 WHERE id=$1
	`, user.ID, notifications, sharedDocs)
	if err != nil {
		return fmt.Errorf("save user: %w", err)
	}
	return nil
}

const documentColumns = `id, title, author_id, content, visibility, shared_with, mentions, versions, last_modified`

func (s *PostgresStore) InsertDocument(ctx context.Context, doc Document) error {
	sharedWith, err := marshalJSON(doc.SharedWith)
	if err != nil {
		return fmt.Errorf("marshal shared_with: %w", err)
	}
	mentions, err := marshalJSON(doc.Mentions)
	if err != nil {
		return fmt.Errorf("marshal mentions: %w", err)
	}
	versions, err := marshalJSON(doc.Versions)
	if err != nil {
		return fmt.Errorf("marshal versions: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO documents (id, title, author_id, content, visibility, shared_with, mentions, versions, last_modified)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, doc.ID, doc.Title, doc.AuthorID, doc.Content, doc.Visibility, sharedWith, mentions, versions, doc.LastModified)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetDocument(ctx context.Context, documentID string) (Document, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE id=$1`, documentID)
	return scanDocument(row)
}

func (s *PostgresStore) FindDocumentByTitle(ctx context.Context, title string) (Document, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE title=$1`, title)
	return scanDocument(row)
}

// SaveDocument writes the whole aggregate back in a single statement.
// Concurrent callers race at row granularity: last write wins.
func (s *PostgresStore) SaveDocument(ctx context.Context, doc Document) error {
	sharedWith, err := marshalJSON(doc.SharedWith)
	if err != nil {
		return fmt.Errorf("marshal shared_with: %w", err)
	}
	mentions, err := marshalJSON(doc.Mentions)
	if err != nil {
		return fmt.Errorf("marshal mentions: %w", err)
	}
	versions, err := marshalJSON(doc.Versions)
	if err != nil {
		return fmt.Errorf("marshal versions: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE documents
		SET title=$2, content=$3, visibility=$4, shared_with=$5, mentions=$6, versions=$7, last_modified=$8
		WHERE id=$1
	`, doc.ID, doc.Title, doc.Content, doc.Visibility, sharedWith, mentions, versions, doc.LastModified)
	if err != nil {
		return fmt.Errorf("save document: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListDocumentSummaries(ctx context.Context) ([]DocumentSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, author_id, visibility, shared_with, last_modified
		FROM documents
		ORDER BY last_modified DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	items := make([]DocumentSummary, 0)
	for rows.Next() {
		var item DocumentSummary
		var sharedWith []byte
		if err := rows.Scan(&item.ID, &item.Title, &item.AuthorID, &item.Visibility, &sharedWith, &item.LastModified); err != nil {
			return nil, fmt.Errorf("scan document summary: %w", err)
		}
		if err := unmarshalJSON(sharedWith, &item.SharedWith); err != nil {
			return nil, fmt.Errorf("decode shared_with: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return items, nil
}

// SearchDocuments matches the query as a case-insensitive substring of
// title or content. No visibility filter is applied here.
func (s *PostgresStore) SearchDocuments(ctx context.Context, query string) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+documentColumns+`
		FROM documents
		WHERE title ILIKE '%' || $1 || '%' OR content ILIKE '%' || $1 || '%'
		ORDER BY last_modified DESC
	`, query)
	if err != nil {
		return nil, fmt.Errorf("search documents: %w", err)
	}
	defer rows.Close()

	items := make([]Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate search results: %w", err)
	}
	return items, nil
}

// GetDocumentsByIDs loads full documents for a batch of ids, preserving the
// order of ids. Unknown ids are skipped.
func (s *PostgresStore) GetDocumentsByIDs(ctx context.Context, ids []string) ([]Document, error) {
	if len(ids) == 0 {
		return []Document{}, nil
	}
	idsJSON, err := json.Marshal(ids)
	if err != nil {
		return nil, fmt.Errorf("marshal ids: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+documentColumns+`
		FROM documents
		WHERE id IN (SELECT jsonb_array_elements_text($1::jsonb))
	`, idsJSON)
	if err != nil {
		return nil, fmt.Errorf("get documents by ids: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]Document, len(ids))
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		byID[doc.ID] = doc
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}

	items := make([]Document, 0, len(byID))
	for _, id := range ids {
		if doc, ok := byID[id]; ok {
			items = append(items, doc)
		}
	}
	return items, nil
}

func (s *PostgresStore) SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO refresh_sessions (token_hash, user_id, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (token_hash) DO UPDATE SET user_id=EXCLUDED.user_id, expires_at=EXCLUDED.expires_at, revoked_at=NULL
	`, tokenHash, userID, expiresAt)
	if err != nil {
		return fmt.Errorf("save refresh session: %w", err)
	}
	return nil
}

func (s *PostgresStore) LookupRefreshSession(ctx context.Context, tokenHash string) (User, error) {
	const query = `
		SELECT u.id, u.username, u.email
		FROM refresh_sessions rs
		JOIN users u ON u.id = rs.user_id
		WHERE rs.token_hash = $1
			AND rs.revoked_at IS NULL
			AND rs.expires_at > NOW()
	`
	var user User
	err := s.db.QueryRowContext(ctx, query, tokenHash).Scan(&user.ID, &user.Username, &user.Email)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE refresh_sessions SET revoked_at=NOW() WHERE token_hash=$1`, tokenHash)
	if err != nil {
		return fmt.Errorf("revoke refresh session: %w", err)
	}
	return nil
}

func (s *PostgresStore) RevokeAccessToken(ctx context.Context, jti string, exp time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO revoked_access_tokens (jti, expires_at)
		VALUES ($1, $2)
		ON CONFLICT (jti) DO NOTHING
	`, jti, exp)
	if err != nil {
		return fmt.Errorf("revoke access token: %w", err)
	}
	return nil
}

func (s *PostgresStore) IsAccessTokenRevoked(ctx context.Context, jti string) (bool, error) {
	var revoked bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM revoked_access_tokens WHERE jti=$1)`, jti).Scan(&revoked)
	if err != nil {
		return false, fmt.Errorf("check revoked token: %w", err)
	}
	return revoked, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (User, error) {
	var user User
	var notifications, sharedDocs []byte
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.IsEmailVerified,
		&user.VerificationToken,
		&user.VerificationExpiresAt,
		&notifications,
		&sharedDocs,
		&user.CreatedAt,
	)
	if err != nil {
		return User{}, err
	}
	if err := unmarshalJSON(notifications, &user.Notifications); err != nil {
		return User{}, fmt.Errorf("decode notifications: %w", err)
	}
	if err := unmarshalJSON(sharedDocs, &user.SharedDocuments); err != nil {
		return User{}, fmt.Errorf("decode shared documents: %w", err)
	}
	return user, nil
}

func scanDocument(row rowScanner) (Document, error) {
	var doc Document
	var sharedWith, mentions, versions []byte
	err := row.Scan(
		&doc.ID,
		&doc.Title,
		&doc.AuthorID,
		&doc.Content,
		&doc.Visibility,
		&sharedWith,
		&mentions,
		&versions,
		&doc.LastModified,
	)
	if err != nil {
		return Document{}, err
	}
	if err := unmarshalJSON(sharedWith, &doc.SharedWith); err != nil {
		return Document{}, fmt.Errorf("decode shared_with: %w", err)
	}
	if err := unmarshalJSON(mentions, &doc.Mentions); err != nil {
		return Document{}, fmt.Errorf("decode mentions: %w", err)
	}
	if err := unmarshalJSON(versions, &doc.Versions); err != nil {
		return Document{}, fmt.Errorf("decode versions: %w", err)
	}
	return doc, nil
}

func marshalJSON(value any) ([]byte, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	if string(data) == "null" {
		return []byte("[]"), nil
	}
	return data, nil
}

func unmarshalJSON(data []byte, target any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, target)
}
