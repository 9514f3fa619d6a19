package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/iliyamo/academy-auth/internal/model"
)

// UserRepo is the MySQL credential store. The users table carries
// UNIQUE KEY (tenant_id, email); duplicate registrations are detected
// from the driver's 1062 duplicate-entry error, never by a separate
// existence query.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

const userColumns = "id,name,email,password_hash,role,status,tenant_id,academy_id,phone,created_at,updated_at"

// Create inserts the user and assigns its ID.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (name, email, password_hash, role, status, tenant_id, academy_id, phone) VALUES (?,?,?,?,?,?,?,?)",
		u.Name, u.Email, u.PasswordHash, string(u.Role), string(u.Status), u.TenantID, u.AcademyID, u.Phone)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return ErrEmailExists
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	u.ID = uint64(id)
	return nil
}

// GetByEmail fetches a user by tenant and normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, tenantID, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE tenant_id=? AND email=? LIMIT 1",
		tenantID, email)
	return scanUser(row)
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id)
	return scanUser(row)
}

func scanUser(row *sql.Row) (model.User, error) {
	var (
		u         model.User
		role      string
		status    string
		academyID sql.NullInt64
	)
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &role, &status,
		&u.TenantID, &academyID, &u.Phone, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, ErrUserNotFound
		}
		return model.User{}, err
	}
	u.Role = model.Role(role)
	u.Status = model.UserStatus(status)
	if academyID.Valid {
		v := uint64(academyID.Int64)
		u.AcademyID = &v
	}
	return u, nil
}
