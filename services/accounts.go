package services

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/bible-memorize/server/blob"
	"github.com/bible-memorize/server/models"
	"github.com/bible-memorize/server/store"
	"github.com/bible-memorize/server/utils"
)

const (
	maxNameLen     = 64
	minPasswordLen = 4
	registerTries  = 3
)

// AccountService owns registration, login lookups and user removal.
type AccountService struct {
	store     *store.Store
	retention *Retention
	log       *zap.Logger
	onChange  []func()
}

func NewAccountService(st *store.Store, blobs blob.Store, retention *Retention, log *zap.Logger) *AccountService {
	if log == nil {
		log = zap.NewNop()
	}
	if retention == nil {
		retention = NewRetention(st, blobs, nil, log)
	}
	return &AccountService{store: st, retention: retention, log: log}
}

// Register creates a user with the next free numeric handle.
func (a *AccountService) Register(ctx context.Context, name, password string, role models.Role) (*models.User, error) {
	name = strings.TrimSpace(name)
	if name == "" || password == "" {
		return nil, validationf("name and password are required")
	}
	if utf8.RuneCountInString(name) > maxNameLen {
		return nil, validationf("name must be at most %d characters", maxNameLen)
	}
	if len(password) < minPasswordLen {
		return nil, validationf("password must be at least %d characters", minPasswordLen)
	}
	if role == "" {
		role = models.RoleStudent
	}
	if !role.Valid() || role == models.RoleAdmin {
		return nil, validationf("role must be teacher, parent or student")
	}
	u, err := a.create(ctx, name, password, role)
	if err != nil {
		return nil, err
	}
	a.changed()
	return u, nil
}

// AfterChange registers fn to run after a user is added or removed.
func (a *AccountService) AfterChange(fn func()) {
	a.onChange = append(a.onChange, fn)
}

func (a *AccountService) changed() {
	for _, fn := range a.onChange {
		fn()
	}
}

// EnsureAdmin creates the bootstrap admin when the database has no users.
func (a *AccountService) EnsureAdmin(ctx context.Context, name, password string) (bool, error) {
	n, err := a.store.CountUsers(ctx)
	if err != nil {
		return false, storageErr("count users", err)
	}
	if n > 0 {
		return false, nil
	}
	if strings.TrimSpace(password) == "" {
		return false, validationf("admin password is required to bootstrap an empty database")
	}
	if _, err := a.create(ctx, name, password, models.RoleAdmin); err != nil {
		return false, err
	}
	return true, nil
}

// Authenticate finds the user by handle or name and checks the password.
// The handle wins when both are given.
func (a *AccountService) Authenticate(ctx context.Context, name, number, password string) (*models.User, error) {
	name, number = strings.TrimSpace(name), strings.TrimSpace(number)
	if (name == "" && number == "") || password == "" {
		return nil, validationf("name or number and password are required")
	}
	var (
		u   *models.User
		err error
	)
	if number != "" {
		u, err = a.store.UserByNumber(ctx, number)
	} else {
		u, err = a.store.UserByName(ctx, name)
	}
	if errors.Is(err, store.ErrNotFound) {
		return nil, permissionf("invalid credentials")
	}
	if err != nil {
		return nil, storageErr("load user", err)
	}
	if !utils.CheckPassword(u.PasswordHash, password) {
		return nil, permissionf("invalid credentials")
	}
	return u, nil
}

// User loads one user.
func (a *AccountService) User(ctx context.Context, id uint) (*models.User, error) {
	u, err := a.store.UserByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, notFoundf("user %d not found", id)
	}
	if err != nil {
		return nil, storageErr("load user", err)
	}
	return u, nil
}

// ListUsers is admin only.
func (a *AccountService) ListUsers(ctx context.Context, actor Principal) ([]models.User, error) {
	if actor.Role != models.RoleAdmin {
		return nil, permissionf("only admins can list users")
	}
	out, err := a.store.ListUsers(ctx)
	if err != nil {
		return nil, storageErr("list users", err)
	}
	return out, nil
}

// ListStudents is open to privileged roles.
func (a *AccountService) ListStudents(ctx context.Context, actor Principal) ([]models.User, error) {
	if !actor.Role.Privileged() {
		return nil, permissionf("only admins, teachers and parents can list students")
	}
	out, err := a.store.ListStudents(ctx)
	if err != nil {
		return nil, storageErr("list students", err)
	}
	return out, nil
}

// DeleteUser removes id with everything it owns. Audio blobs go best-effort.
func (a *AccountService) DeleteUser(ctx context.Context, actor Principal, id uint) error {
	if actor.Role != models.RoleAdmin {
		return permissionf("only admins can delete users")
	}
	if id == actor.ID {
		return preconditionf("cannot delete yourself")
	}
	refs, err := a.store.DeleteUser(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return notFoundf("user %d not found", id)
	}
	if err != nil {
		return storageErr("delete user", err)
	}
	a.changed()
	for _, ref := range refs {
		a.retention.DeleteBlob(ctx, id, ref)
	}
	a.log.Info("user deleted", zap.Uint("user_id", id), zap.Uint("by", actor.ID), zap.Int("recordings", len(refs)))
	return nil
}

func (a *AccountService) create(ctx context.Context, name, password string, role models.Role) (*models.User, error) {
	hash, err := utils.HashPassword(password)
	if err != nil {
		return nil, storageErr("hash password", err)
	}

	var lastErr error
	for i := 0; i < registerTries; i++ {
		var u *models.User
		err := a.store.Transaction(ctx, func(tx *store.Store) error {
			if _, err := tx.UserByName(ctx, name); err == nil {
				return preconditionf("name %q is already taken", name)
			} else if !errors.Is(err, store.ErrNotFound) {
				return err
			}
			number, err := tx.NextNumber(ctx)
			if err != nil {
				return err
			}
			u = &models.User{Name: name, Number: number, PasswordHash: hash, Role: role}
			return tx.CreateUser(ctx, u)
		})
		if err == nil {
			return u, nil
		}
		if KindOf(err) == KindPrecondition {
			return nil, err
		}
		// lost a race for the handle; try the next one
		lastErr = err
	}
	return nil, storageErr("create user", lastErr)
}
