package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ulut0002/base-backend/internal/core/domain"
	"github.com/ulut0002/base-backend/internal/repository"
)

const usersTable = "users"

var userColumns = []string{
	"id",
	"username",
	"email",
	"normalized_email",
	"password_hash",
	"role",
	"verified",
	"verified_at",
	"created_at",
	"updated_at",
	"last_login",
}

// UserRepository implements port.CredentialStore using PostgreSQL.
type UserRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
	timeout time.Duration
	newID   func() string
}

// NewUserRepository constructs a repository backed by any executor that satisfies pgExecutor.
func NewUserRepository(exec pgExecutor, timeout time.Duration) *UserRepository {
	return &UserRepository{
		exec:    exec,
		builder: newBuilder(),
		timeout: timeout,
		newID:   uuid.NewString,
	}
}

// WithTx returns a repository instance operating within the supplied transaction.
func (r *UserRepository) WithTx(tx pgx.Tx) *UserRepository {
	if tx == nil {
		return r
	}
	clone := *r
	clone.exec = tx
	return &clone
}

// FindByUsername matches username case-insensitively.
func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, repository.ErrNotFound
	}
	return r.findOne(ctx, lowerEq("username", username))
}

// FindByIdentity OR-matches every non-empty field of query, case-insensitively.
func (r *UserRepository) FindByIdentity(ctx context.Context, query domain.IdentityQuery) (*domain.User, error) {
	var or squirrel.Or
	if v := strings.TrimSpace(query.UsernameOrEmail); v != "" {
		or = append(or, lowerEq("username", v), lowerEq("email", v))
	}
	if v := strings.TrimSpace(query.Username); v != "" {
		or = append(or, lowerEq("username", v))
	}
	if v := strings.TrimSpace(query.Email); v != "" {
		or = append(or, lowerEq("email", v))
	}
	if v := strings.TrimSpace(query.NormalizedEmail); v != "" {
		or = append(or, lowerEq("normalized_email", v))
	}
	if len(or) == 0 {
		return nil, repository.ErrNotFound
	}
	return r.findOne(ctx, or)
}

// FindByID retrieves a user by identifier.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, repository.ErrNotFound
	}
	return r.findOne(ctx, squirrel.Eq{"id": id})
}

// Create inserts a new user row. Unique index violations map to repository.ErrConflict.
func (r *UserRepository) Create(ctx context.Context, user domain.NewUser) (*domain.User, error) {
	role := user.Role
	if role == "" {
		role = domain.RoleUser
	}

	stmt, args, err := r.builder.Insert(usersTable).
		Columns("id", "username", "email", "normalized_email", "password_hash", "role").
		Values(
			r.newID(),
			nullable(user.Username),
			nullable(user.Email),
			nullable(user.NormalizedEmail),
			nullable(user.PasswordHash),
			string(role),
		).
		Suffix("RETURNING " + strings.Join(userColumns, ", ")).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build insert user sql: %w", err)
	}

	ctx, cancel := bounded(ctx, r.timeout)
	defer cancel()

	created, err := scanUser(r.exec.QueryRow(ctx, stmt, args...))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, repository.ErrConflict
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return created, nil
}

// Save overwrites the mutable columns of an existing user.
func (r *UserRepository) Save(ctx context.Context, user domain.User) error {
	stmt, args, err := r.builder.Update(usersTable).
		Set("username", nullable(user.Username)).
		Set("email", nullable(user.Email)).
		Set("normalized_email", nullable(user.NormalizedEmail)).
		Set("password_hash", nullable(user.PasswordHash)).
		Set("role", string(user.Role)).
		Set("verified", user.Verified).
		Set("verified_at", user.VerifiedAt).
		Set("last_login", user.LastLogin).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": user.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update user sql: %w", err)
	}

	ctx, cancel := bounded(ctx, r.timeout)
	defer cancel()

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrConflict
		}
		return fmt.Errorf("update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *UserRepository) findOne(ctx context.Context, where squirrel.Sqlizer) (*domain.User, error) {
	stmt, args, err := r.builder.
		Select(userColumns...).
		From(usersTable).
		Where(where).
		OrderBy("created_at").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select user sql: %w", err)
	}

	ctx, cancel := bounded(ctx, r.timeout)
	defer cancel()

	user, err := scanUser(r.exec.QueryRow(ctx, stmt, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return user, nil
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var (
		user            domain.User
		username        *string
		email           *string
		normalizedEmail *string
		passwordHash    *string
		role            string
	)

	if err := row.Scan(
		&user.ID,
		&username,
		&email,
		&normalizedEmail,
		&passwordHash,
		&role,
		&user.Verified,
		&user.VerifiedAt,
		&user.CreatedAt,
		&user.UpdatedAt,
		&user.LastLogin,
	); err != nil {
		return nil, err
	}

	user.Username = deref(username)
	user.Email = deref(email)
	user.NormalizedEmail = deref(normalizedEmail)
	user.PasswordHash = deref(passwordHash)
	user.Role = domain.Role(role)
	return &user, nil
}

func lowerEq(column, value string) squirrel.Sqlizer {
	return squirrel.Expr("lower("+column+") = lower(?)", value)
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
