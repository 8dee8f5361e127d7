package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/payflow-app/payflow/internal/shared"
)

// Repository provides PostgreSQL backed persistence for accounts.
type Repository interface {
	Get(ctx context.Context, id int64) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	List(ctx context.Context, req ListUsersRequest) ([]User, int, error)
	ListByRoles(ctx context.Context, roles ...shared.Role) ([]User, error)
	ListManagersByDepartment(ctx context.Context, department string) ([]User, error)
	Create(ctx context.Context, user User) (int64, error)
	Update(ctx context.Context, id int64, updates map[string]any) error
	Delete(ctx context.Context, id int64) error
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const userColumns = `id, email, name, role, department, manager_id, is_active, created_at, updated_at`

func (r *repository) Get(ctx context.Context, id int64) (*User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

func (r *repository) GetByEmail(ctx context.Context, email string) (*User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email)
	return scanUser(row)
}

func (r *repository) List(ctx context.Context, req ListUsersRequest) ([]User, int, error) {
	where := "WHERE TRUE"
	var args []any
	argPos := 1
	if req.Role != nil {
		where += fmt.Sprintf(" AND role = $%d", argPos)
		args = append(args, *req.Role)
		argPos++
	}
	if req.Department != nil {
		where += fmt.Sprintf(" AND department = $%d", argPos)
		args = append(args, *req.Department)
		argPos++
	}

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM users "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := req.Limit
	if limit <= 0 {
		limit = 100
	}
	query := fmt.Sprintf("SELECT "+userColumns+" FROM users %s ORDER BY name ASC LIMIT $%d OFFSET $%d", where, argPos, argPos+1)
	args = append(args, limit, req.Offset)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	list, err := scanUsers(rows)
	return list, total, err
}

func (r *repository) ListByRoles(ctx context.Context, roles ...shared.Role) ([]User, error) {
	names := make([]string, len(roles))
	for i, role := range roles {
		names[i] = string(role)
	}
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users
WHERE role = ANY($1) AND is_active ORDER BY id ASC`, names)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanUsers(rows)
}

func (r *repository) ListManagersByDepartment(ctx context.Context, department string) ([]User, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users
WHERE role = $1 AND department = $2 AND is_active ORDER BY id ASC`,
		string(shared.RoleDepartmentManager), department)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanUsers(rows)
}

func (r *repository) Create(ctx context.Context, user User) (int64, error) {
	var managerID pgtype.Int8
	if user.ManagerID != nil {
		managerID = pgtype.Int8{Int64: *user.ManagerID, Valid: true}
	}
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO users (email, name, role, department, manager_id, is_active, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, TRUE, NOW(), NOW()) RETURNING id`,
		user.Email, user.Name, string(user.Role), user.Department, managerID).Scan(&id)
	return id, err
}

func (r *repository) Update(ctx context.Context, id int64, updates map[string]any) error {
	query := "UPDATE users SET updated_at = NOW()"
	var args []any
	argPos := 1
	for _, col := range []string{"name", "role", "department", "manager_id", "is_active"} {
		if v, ok := updates[col]; ok {
			query += fmt.Sprintf(", %s = $%d", col, argPos)
			args = append(args, v)
			argPos++
		}
	}
	query += fmt.Sprintf(" WHERE id = $%d", argPos)
	args = append(args, id)
	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Delete removes the account. The notifications FK is ON DELETE SET NULL so
// historical rows survive with a null owner.
func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func scanUser(row pgx.Row) (*User, error) {
	var u User
	var role string
	var managerID pgtype.Int8
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &role, &u.Department, &managerID, &u.IsActive, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	u.Role = shared.Role(role)
	if managerID.Valid {
		u.ManagerID = &managerID.Int64
	}
	return &u, nil
}

func scanUsers(rows pgx.Rows) ([]User, error) {
	var list []User
	for rows.Next() {
		var u User
		var role string
		var managerID pgtype.Int8
		if err := rows.Scan(&u.ID, &u.Email, &u.Name, &role, &u.Department, &managerID, &u.IsActive, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		u.Role = shared.Role(role)
		if managerID.Valid {
			u.ManagerID = &managerID.Int64
		}
		list = append(list, u)
	}
	return list, rows.Err()
}
