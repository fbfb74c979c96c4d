package store

import (
	"context"
	"database/sql"
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

// --- Users ---

func (s *PostgresStore) CreateUser(ctx context.Context, email, fullName, passwordHash string) (User, error) {
	const insert = `
		INSERT INTO users (email, full_name, password_hash)
		VALUES ($1, $2, $3)
		RETURNING id, email, full_name, password_hash, is_active, created_at
	`
	var user User
	err := s.db.QueryRowContext(ctx, insert, email, fullName, passwordHash).
		Scan(&user.ID, &user.Email, &user.FullName, &user.PasswordHash, &user.IsActive, &user.CreatedAt)
	if err != nil {
		return User{}, fmt.Errorf("insert user: %w", err)
	}
	return user, nil
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, full_name, password_hash, is_active, created_at FROM users WHERE email=$1`, email).
		Scan(&user.ID, &user.Email, &user.FullName, &user.PasswordHash, &user.IsActive, &user.CreatedAt)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, userID int64) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, full_name, password_hash, is_active, created_at FROM users WHERE id=$1`, userID).
		Scan(&user.ID, &user.Email, &user.FullName, &user.PasswordHash, &user.IsActive, &user.CreatedAt)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

// --- Access tokens (session fallback when Redis is not configured) ---

func (s *PostgresStore) SaveAccessToken(ctx context.Context, tokenHash string, userID int64, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO access_tokens (token_hash, user_id, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (token_hash) DO UPDATE SET user_id = EXCLUDED.user_id, expires_at = EXCLUDED.expires_at
	`, tokenHash, userID, expiresAt)
	if err != nil {
		return fmt.Errorf("save access token: %w", err)
	}
	return nil
}

func (s *PostgresStore) LookupAccessToken(ctx context.Context, tokenHash string) (int64, error) {
	var userID int64
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id FROM access_tokens WHERE token_hash=$1 AND expires_at > NOW()`, tokenHash).
		Scan(&userID)
	if err != nil {
		return 0, err
	}
	return userID, nil
}

func (s *PostgresStore) RevokeAccessToken(ctx context.Context, tokenHash string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM access_tokens WHERE token_hash=$1`, tokenHash); err != nil {
		return fmt.Errorf("revoke access token: %w", err)
	}
	return nil
}

// --- Projects ---

func (s *PostgresStore) CreateProject(ctx context.Context, project Project) (Project, error) {
	const insert = `
		INSERT INTO projects (name, description, status, owner_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id, name, description, status, owner_id, created_at, updated_at
	`
	var out Project
	err := s.db.QueryRowContext(ctx, insert, project.Name, project.Description, project.Status, project.OwnerID).
		Scan(&out.ID, &out.Name, &out.Description, &out.Status, &out.OwnerID, &out.CreatedAt, &out.UpdatedAt)
	if err != nil {
		return Project{}, fmt.Errorf("insert project: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) GetProject(ctx context.Context, projectID int64) (Project, error) {
	var out Project
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, status, owner_id, created_at, updated_at
		FROM projects WHERE id=$1
	`, projectID).Scan(&out.ID, &out.Name, &out.Description, &out.Status, &out.OwnerID, &out.CreatedAt, &out.UpdatedAt)
	if err != nil {
		return Project{}, err
	}
	return out, nil
}

func (s *PostgresStore) ListProjects(ctx context.Context, ownerID int64) ([]Project, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, description, status, owner_id, created_at, updated_at
		FROM projects WHERE owner_id=$1 ORDER BY updated_at DESC
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var out []Project
	for rows.Next() {
		var p Project
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Status, &p.OwnerID, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PostgresStore) UpdateProject(ctx context.Context, projectID int64, name, description, status string) (Project, error) {
	var out Project
	err := s.db.QueryRowContext(ctx, `
		UPDATE projects SET name=$2, description=$3, status=$4, updated_at=NOW()
		WHERE id=$1
		RETURNING id, name, description, status, owner_id, created_at, updated_at
	`, projectID, name, description, status).
		Scan(&out.ID, &out.Name, &out.Description, &out.Status, &out.OwnerID, &out.CreatedAt, &out.UpdatedAt)
	if err != nil {
		return Project{}, err
	}
	return out, nil
}

func (s *PostgresStore) DeleteProject(ctx context.Context, projectID int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM projects WHERE id=$1`, projectID); err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	return nil
}

// --- Contracts ---

const contractColumns = `id, project_id, title, content, word_count, status, created_by, locked_by, created_at, updated_at`

func scanContract(row *sql.Row) (Contract, error) {
	var c Contract
	err := row.Scan(&c.ID, &c.ProjectID, &c.Title, &c.Content, &c.WordCount, &c.Status,
		&c.CreatedBy, &c.LockedBy, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func (s *PostgresStore) CreateContract(ctx context.Context, contract Contract) (Contract, error) {
	const insert = `
		INSERT INTO contracts (project_id, title, content, word_count, status, created_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + contractColumns
	out, err := scanContract(s.db.QueryRowContext(ctx, insert,
		contract.ProjectID, contract.Title, contract.Content, contract.WordCount, contract.Status, contract.CreatedBy))
	if err != nil {
		return Contract{}, fmt.Errorf("insert contract: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) GetContract(ctx context.Context, contractID int64) (Contract, error) {
	return scanContract(s.db.QueryRowContext(ctx,
		`SELECT `+contractColumns+` FROM contracts WHERE id=$1`, contractID))
}

func (s *PostgresStore) ListContractsByProject(ctx context.Context, projectID int64) ([]Contract, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+contractColumns+` FROM contracts WHERE project_id=$1 ORDER BY updated_at DESC`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list contracts: %w", err)
	}
	defer rows.Close()

	var out []Contract
	for rows.Next() {
		var c Contract
		if err := rows.Scan(&c.ID, &c.ProjectID, &c.Title, &c.Content, &c.WordCount, &c.Status,
			&c.CreatedBy, &c.LockedBy, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan contract: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *PostgresStore) UpdateContract(ctx context.Context, contractID int64, title, status string) (Contract, error) {
	return scanContract(s.db.QueryRowContext(ctx, `
		UPDATE contracts SET title=$2, status=$3, updated_at=NOW()
		WHERE id=$1
		RETURNING `+contractColumns, contractID, title, status))
}

// UpdateContractContent fully replaces the stored content (last-write-wins;
// no merge). sql.ErrNoRows is returned for an unknown contract.
func (s *PostgresStore) UpdateContractContent(ctx context.Context, contractID int64, content string, wordCount int) (Contract, error) {
	return scanContract(s.db.QueryRowContext(ctx, `
		UPDATE contracts SET content=$2, word_count=$3, updated_at=NOW()
		WHERE id=$1
		RETURNING `+contractColumns, contractID, content, wordCount))
}

func (s *PostgresStore) DeleteContract(ctx context.Context, contractID int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM contracts WHERE id=$1`, contractID); err != nil {
		return fmt.Errorf("delete contract: %w", err)
	}
	return nil
}

// LockContract takes the editing lock for userID unless someone else holds
// it. It returns false when the lock is already taken.
func (s *PostgresStore) LockContract(ctx context.Context, contractID, userID int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE contracts SET locked_by=$2, updated_at=NOW()
		WHERE id=$1 AND (locked_by IS NULL OR locked_by=$2)
	`, contractID, userID)
	if err != nil {
		return false, fmt.Errorf("lock contract: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("lock contract: %w", err)
	}
	return n > 0, nil
}

func (s *PostgresStore) UnlockContract(ctx context.Context, contractID, userID int64) error {
	if _, err := s.db.ExecContext(ctx,
		`UPDATE contracts SET locked_by=NULL, updated_at=NOW() WHERE id=$1 AND locked_by=$2`,
		contractID, userID); err != nil {
		return fmt.Errorf("unlock contract: %w", err)
	}
	return nil
}

// SearchContracts is the Postgres fallback searcher: case-insensitive
// substring match over title and content.
func (s *PostgresStore) SearchContracts(ctx context.Context, query string, limit int) ([]Contract, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+contractColumns+` FROM contracts
		WHERE title ILIKE '%' || $1 || '%' OR content ILIKE '%' || $1 || '%'
		ORDER BY updated_at DESC
		LIMIT $2
	`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("search contracts: %w", err)
	}
	defer rows.Close()

	var out []Contract
	for rows.Next() {
		var c Contract
		if err := rows.Scan(&c.ID, &c.ProjectID, &c.Title, &c.Content, &c.WordCount, &c.Status,
			&c.CreatedBy, &c.LockedBy, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan contract: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// --- Comments ---

func (s *PostgresStore) CreateComment(ctx context.Context, comment Comment) (Comment, error) {
	const insert = `
		INSERT INTO comments (contract_id, user_id, body, line_number)
		VALUES ($1, $2, $3, $4)
		RETURNING id, contract_id, user_id, body, line_number, resolved, created_at
	`
	var out Comment
	err := s.db.QueryRowContext(ctx, insert, comment.ContractID, comment.UserID, comment.Body, comment.LineNumber).
		Scan(&out.ID, &out.ContractID, &out.UserID, &out.Body, &out.LineNumber, &out.Resolved, &out.CreatedAt)
	if err != nil {
		return Comment{}, fmt.Errorf("insert comment: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) ListComments(ctx context.Context, contractID int64) ([]Comment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, contract_id, user_id, body, line_number, resolved, created_at
		FROM comments WHERE contract_id=$1 ORDER BY created_at ASC
	`, contractID)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()

	var out []Comment
	for rows.Next() {
		var c Comment
		if err := rows.Scan(&c.ID, &c.ContractID, &c.UserID, &c.Body, &c.LineNumber, &c.Resolved, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ResolveComment marks a comment resolved; false when it does not exist.
func (s *PostgresStore) ResolveComment(ctx context.Context, commentID int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE comments SET resolved=TRUE WHERE id=$1`, commentID)
	if err != nil {
		return false, fmt.Errorf("resolve comment: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("resolve comment: %w", err)
	}
	return n > 0, nil
}
