package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/kimaro/shulebook/core/user"
)

type userRow struct {
	ID           string         `db:"id"`
	Name         string         `db:"name"`
	Username     sql.NullString `db:"username"`
	Email        sql.NullString `db:"email"`
	IsActive     bool           `db:"is_active"`
	Role         string         `db:"role"`
	StudentIDs   pq.StringArray `db:"student_ids"`
	PasswordHash []byte         `db:"password_hash"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
	LastLogin    *time.Time     `db:"last_login"`
}

func (r userRow) unpack() user.User {
	usr := user.User{
		ID:           r.ID,
		Name:         r.Name,
		Username:     r.Username.String,
		Email:        r.Email.String,
		Role:         r.Role,
		StudentIDs:   r.StudentIDs,
		PasswordHash: r.PasswordHash,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
	usr.SetActive(r.IsActive)
	if r.LastLogin != nil {
		usr.LastLogin = *r.LastLogin
	}
	return usr
}

type userRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *sqlx.DB) *userRepository {
	return &userRepository{db: db}
}

func (repo *userRepository) CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers ...user.User) error {
	exclIDs := make([]string, 0, len(excludedUsers))
	for _, usr := range excludedUsers {
		exclIDs = append(exclIDs, usr.ID)
	}

	check := func(column, value string, sentinel error) error {
		if value == "" {
			return nil
		}
		q := `SELECT EXISTS (SELECT 1 FROM app_user WHERE ` + column + ` = ?`
		args := []interface{}{value}
		if len(exclIDs) > 0 {
			inQ, inArgs, err := sqlx.In(` AND id NOT IN (?)`, exclIDs)
			if err != nil {
				return errors.Wrap(err, "building uniqueness query")
			}
			q += inQ
			args = append(args, inArgs...)
		}
		q += `)`

		var exists bool
		if err := repo.db.GetContext(ctx, &exists, repo.db.Rebind(q), args...); err != nil {
			return errors.Wrap(err, "checking uniqueness")
		}
		if exists {
			return sentinel
		}
		return nil
	}

	if err := check("username", username, user.ErrUsernameExists); err != nil {
		return err
	}
	return check("email", email, user.ErrEmailExists)
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	const q = `
		INSERT INTO app_user (id, name, username, email, is_active, role, student_ids, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	if _, err := repo.db.ExecContext(ctx, q,
		usr.ID, usr.Name, nullStr(usr.Username), nullStr(usr.Email), usr.Active(), usr.Role,
		pq.StringArray(usr.StudentIDs), usr.PasswordHash, usr.CreatedAt, usr.UpdatedAt,
	); err != nil {
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return usr, nil
}

func (repo *userRepository) QueryAllUsers(ctx context.Context) ([]user.User, error) {
	var rows []userRow
	if err := repo.db.SelectContext(ctx, &rows, `SELECT * FROM app_user ORDER BY created_at`); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	users := make([]user.User, 0, len(rows))
	for _, r := range rows {
		users = append(users, r.unpack())
	}
	return users, nil
}

func (repo *userRepository) getBy(ctx context.Context, q string, args ...interface{}) (user.User, error) {
	var r userRow
	if err := repo.db.GetContext(ctx, &r, q, args...); err != nil {
		if err == sql.ErrNoRows {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, errors.Wrap(err, "getting user")
	}
	return r.unpack(), nil
}

func (repo *userRepository) GetUserByID(ctx context.Context, id string) (user.User, error) {
	return repo.getBy(ctx, `SELECT * FROM app_user WHERE id = $1`, id)
}

func (repo *userRepository) GetUserByUsername(ctx context.Context, username string) (user.User, error) {
	return repo.getBy(ctx, `SELECT * FROM app_user WHERE username = $1`, username)
}

func (repo *userRepository) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	return repo.getBy(ctx, `SELECT * FROM app_user WHERE email = $1`, email)
}

func (repo *userRepository) GetUserByUsernameOrEmail(ctx context.Context, username string) (user.User, error) {
	return repo.getBy(ctx, `SELECT * FROM app_user WHERE username = $1 OR email = $1`, username)
}

func (repo *userRepository) FilterUsers(ctx context.Context, filter user.QueryFilter) ([]user.User, error) {
	q := `SELECT * FROM app_user WHERE 1=1`
	args := make([]interface{}, 0, 5)
	if filter.Search != "" {
		s := "%" + filter.Search + "%"
		args = append(args, s, s, s)
		q += ` AND (name ILIKE ? OR username ILIKE ? OR email ILIKE ?)`
	}
	if filter.Role != "" {
		args = append(args, filter.Role)
		q += ` AND role = ?`
	}
	if filter.IsActive != nil {
		args = append(args, *filter.IsActive)
		q += ` AND is_active = ?`
	}
	if !filter.CreatedFrom.IsZero() {
		args = append(args, filter.CreatedFrom)
		q += ` AND created_at >= ?`
	}
	if !filter.CreatedTo.IsZero() {
		args = append(args, filter.CreatedTo)
		q += ` AND created_at <= ?`
	}
	q += ` ORDER BY created_at`

	var rows []userRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "filtering users")
	}
	users := make([]user.User, 0, len(rows))
	for _, r := range rows {
		users = append(users, r.unpack())
	}
	return users, nil
}

// UpdateUser only saves set fields.
func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User, isActive *bool) (user.User, error) {
	q := `UPDATE app_user SET id = id`
	args := make([]interface{}, 0, 8)
	if usr.Name != "" {
		args = append(args, usr.Name)
		q += `, name = ?`
	}
	if usr.Username != "" {
		args = append(args, usr.Username)
		q += `, username = ?`
	}
	if usr.Email != "" {
		args = append(args, usr.Email)
		q += `, email = ?`
	}
	if usr.Role != "" {
		args = append(args, usr.Role)
		q += `, role = ?`
	}
	if usr.StudentIDs != nil {
		args = append(args, pq.StringArray(usr.StudentIDs))
		q += `, student_ids = ?`
	}
	if usr.PasswordHash != nil {
		args = append(args, usr.PasswordHash)
		q += `, password_hash = ?`
	}
	if isActive != nil {
		args = append(args, *isActive)
		q += `, is_active = ?`
	}
	if !usr.UpdatedAt.IsZero() {
		args = append(args, usr.UpdatedAt)
		q += `, updated_at = ?`
	}
	if !usr.LastLogin.IsZero() {
		args = append(args, usr.LastLogin)
		q += `, last_login = ?`
	}
	args = append(args, usr.ID)
	q += ` WHERE id = ?`

	res, err := repo.db.ExecContext(ctx, repo.db.Rebind(q), args...)
	if err != nil {
		return user.User{}, errors.Wrap(err, "updating user")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return user.User{}, user.ErrNotFound
	}
	return repo.GetUserByID(ctx, usr.ID)
}

func (repo *userRepository) DeleteUsersByID(ctx context.Context, ids ...string) error {
	q, args, err := sqlx.In(`DELETE FROM app_user WHERE id IN (?)`, ids)
	if err != nil {
		return errors.Wrap(err, "building delete query")
	}
	if _, err = repo.db.ExecContext(ctx, repo.db.Rebind(q), args...); err != nil {
		return errors.Wrap(err, "deleting users")
	}
	return nil
}
