package user

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

// PostgresRepository implements Repository using pgxpool.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new Repository backed by the given connection pool.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &PostgresRepository{pool: pool}
}

// Create inserts a new user record. Returns ErrDuplicateUser when the
// (issuer, external_id) pair is already taken.
func (r *PostgresRepository) Create(ctx context.Context, u *User) error {
	query := `
		INSERT INTO users (issuer, external_id, attributes)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`

	err := r.pool.QueryRow(ctx, query, u.Issuer, u.ExternalID, u.Attributes).
		Scan(&u.ID, &u.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrDuplicateUser
		}
		return fmt.Errorf("inserting user: %w", err)
	}

	return nil
}

// GetByID retrieves a single user by its UUID, with group memberships
// resolved.
func (r *PostgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	query := `
		SELECT id, issuer, external_id, attributes, created_at
		FROM users
		WHERE id = $1`

	u, err := r.scanUser(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, err
	}

	if u.Groups, err = r.groupsOf(ctx, u.ID); err != nil {
		return nil, err
	}

	return u, nil
}

// FindByLaunch retrieves a user by the (issuer, external subject id) pair
// asserted by a launch, with group memberships resolved.
func (r *PostgresRepository) FindByLaunch(ctx context.Context, issuer, externalID string) (*User, error) {
	query := `
		SELECT id, issuer, external_id, attributes, created_at
		FROM users
		WHERE issuer = $1 AND external_id = $2`

	u, err := r.scanUser(r.pool.QueryRow(ctx, query, issuer, externalID))
	if err != nil {
		return nil, err
	}

	if u.Groups, err = r.groupsOf(ctx, u.ID); err != nil {
		return nil, err
	}

	return u, nil
}

// SetAttribute sets one key in the user's attribute map.
func (r *PostgresRepository) SetAttribute(ctx context.Context, id uuid.UUID, key, value string) error {
	query := `
		UPDATE users
		SET attributes = jsonb_set(COALESCE(attributes, '{}'::jsonb), ARRAY[$2], to_jsonb($3::text))
		WHERE id = $1`

	result, err := r.pool.Exec(ctx, query, id, key, value)
	if err != nil {
		return fmt.Errorf("updating user attribute: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrUserNotFound
	}

	return nil
}

func (r *PostgresRepository) scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Issuer, &u.ExternalID, &u.Attributes, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("querying user: %w", err)
	}

	if u.Attributes == nil {
		u.Attributes = map[string]string{}
	}

	return &u, nil
}

func (r *PostgresRepository) groupsOf(ctx context.Context, userID uuid.UUID) ([]Group, error) {
	query := `
		SELECT g.id, g.external_id
		FROM groups g
		JOIN users_groups ug ON ug.group_id = g.id
		WHERE ug.user_id = $1
		ORDER BY g.external_id ASC`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("querying user groups: %w", err)
	}
	defer rows.Close()

	var groups []Group
	for rows.Next() {
		var g Group
		if err := rows.Scan(&g.ID, &g.ExternalID); err != nil {
			return nil, fmt.Errorf("scanning group row: %w", err)
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating group rows: %w", err)
	}

	if groups == nil {
		groups = []Group{}
	}

	return groups, nil
}
