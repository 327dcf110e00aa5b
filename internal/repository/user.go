package repository

import (
	"fmt"
	"strings"

	"backend/internal/models"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

type UserRepository interface {
	CreateUser(user *models.User) error
	GetUserByUsername(username string, isAdmin bool) (*models.User, error)
	GetAnyUserByUsername(username string) (*models.User, error)
	GetUserByID(id int64, isAdmin bool) (*models.User, error)
	GetUserInfoByID(id int64) (*models.User, error)
	UpdatePasswordHash(id int64, hash string) error
	UpdateUser(user *models.User) error
	FreezeUser(id int64) error
	ListUsers(page, pageSize int, username, nickname, email string) ([]models.User, int64, error)
}

type userRepository struct {
	db  *sqlx.DB
	log *zap.Logger
}

func NewUserRepository(db *sqlx.DB, log *zap.Logger) UserRepository {
	return &userRepository{db: db, log: log}
}

const userColumns = `id, username, password_hash, nickname, email, phone_number, avatar, is_frozen, is_admin, created_at, updated_at`

func (r *userRepository) CreateUser(user *models.User) error {
	query := `INSERT INTO users (username, password_hash, nickname, email)
	          VALUES ($1, $2, $3, $4)
	          RETURNING id, created_at, updated_at`
	return r.db.QueryRowx(query, user.Username, user.PasswordHash, user.Nickname, user.Email).
		Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
}

func (r *userRepository) GetUserByUsername(username string, isAdmin bool) (*models.User, error) {
	var user models.User
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1 AND is_admin = $2`
	if err := r.db.Get(&user, query, username, isAdmin); err != nil {
		return nil, err
	}
	if err := r.loadRoles(&user); err != nil {
		return nil, err
	}
	return &user, nil
}

// GetAnyUserByUsername looks the username up across both login surfaces.
// Used for the registration uniqueness check, where the username must be
// free regardless of partition. Roles are not loaded.
func (r *userRepository) GetAnyUserByUsername(username string) (*models.User, error) {
	var user models.User
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`
	if err := r.db.Get(&user, query, username); err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) GetUserByID(id int64, isAdmin bool) (*models.User, error) {
	var user models.User
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1 AND is_admin = $2`
	if err := r.db.Get(&user, query, id, isAdmin); err != nil {
		return nil, err
	}
	if err := r.loadRoles(&user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) GetUserInfoByID(id int64) (*models.User, error) {
	var user models.User
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	if err := r.db.Get(&user, query, id); err != nil {
		return nil, err
	}
	return &user, nil
}

// loadRoles populates user.Roles with the role rows and their permissions.
// The join is done here so services consume already-expanded role lists.
func (r *userRepository) loadRoles(user *models.User) error {
	roles := []models.Role{}
	query := `SELECT r.id, r.name FROM roles r
	          JOIN user_roles ur ON ur.role_id = r.id
	          WHERE ur.user_id = $1
	          ORDER BY ur.role_id`
	if err := r.db.Select(&roles, query, user.ID); err != nil {
		return err
	}

	if len(roles) == 0 {
		user.Roles = roles
		return nil
	}

	roleIDs := make([]int64, 0, len(roles))
	for _, role := range roles {
		roleIDs = append(roleIDs, role.ID)
	}

	type rolePermission struct {
		RoleID      int64  `db:"role_id"`
		ID          int64  `db:"id"`
		Code        string `db:"code"`
		Description string `db:"description"`
	}

	query, args, err := sqlx.In(`SELECT rp.role_id, p.id, p.code, p.description
	          FROM permissions p
	          JOIN role_permissions rp ON rp.permission_id = p.id
	          WHERE rp.role_id IN (?)
	          ORDER BY rp.role_id, rp.permission_id`, roleIDs)
	if err != nil {
		return err
	}

	rows := []rolePermission{}
	if err := r.db.Select(&rows, r.db.Rebind(query), args...); err != nil {
		return err
	}

	byRole := make(map[int64][]models.Permission)
	for _, row := range rows {
		byRole[row.RoleID] = append(byRole[row.RoleID], models.Permission{
			ID:          row.ID,
			Code:        row.Code,
			Description: row.Description,
		})
	}
	for i := range roles {
		roles[i].Permissions = byRole[roles[i].ID]
	}

	user.Roles = roles
	return nil
}

func (r *userRepository) UpdatePasswordHash(id int64, hash string) error {
	query := `UPDATE users SET password_hash = $1, updated_at = now() WHERE id = $2`
	_, err := r.db.Exec(query, hash, id)
	return err
}

func (r *userRepository) UpdateUser(user *models.User) error {
	query := `UPDATE users
	          SET username = $1, nickname = $2, phone_number = $3, avatar = $4, updated_at = now()
	          WHERE id = $5`
	_, err := r.db.Exec(query, user.Username, user.Nickname, user.PhoneNumber, user.Avatar, user.ID)
	return err
}

func (r *userRepository) FreezeUser(id int64) error {
	query := `UPDATE users SET is_frozen = true, updated_at = now() WHERE id = $1`
	_, err := r.db.Exec(query, id)
	return err
}

// ListUsers returns one page of users matching the fuzzy filters along with
// the total count across all pages. Empty filter values are ignored.
func (r *userRepository) ListUsers(page, pageSize int, username, nickname, email string) ([]models.User, int64, error) {
	where := []string{}
	args := []interface{}{}

	addFilter := func(column, value string) {
		if value == "" {
			return
		}
		args = append(args, "%"+value+"%")
		where = append(where, fmt.Sprintf("%s ILIKE $%d", column, len(args)))
	}
	addFilter("username", username)
	addFilter("nickname", nickname)
	addFilter("email", email)

	condition := ""
	if len(where) > 0 {
		condition = " WHERE " + strings.Join(where, " AND ")
	}

	var totalCount int64
	if err := r.db.Get(&totalCount, `SELECT COUNT(*) FROM users`+condition, args...); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + userColumns + ` FROM users` + condition +
		fmt.Sprintf(` ORDER BY id LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, pageSize, (page-1)*pageSize)

	users := []models.User{}
	if err := r.db.Select(&users, query, args...); err != nil {
		return nil, 0, err
	}

	return users, totalCount, nil
}
