package store

import (
	"context"
	"strconv"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/bible-memorize/server/models"
)

// firstNumber is the handle given to the first registered user.
const firstNumber = 1000

func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	return s.with(ctx).Create(u).Error
}

func (s *Store) UserByID(ctx context.Context, id uint) (*models.User, error) {
	var u models.User
	if err := s.with(ctx).First(&u, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

func (s *Store) UserByName(ctx context.Context, name string) (*models.User, error) {
	var u models.User
	if err := s.with(ctx).Where("name = ?", name).First(&u).Error; err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

func (s *Store) UserByNumber(ctx context.Context, number string) (*models.User, error) {
	var u models.User
	if err := s.with(ctx).Where("number = ?", number).First(&u).Error; err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

// LockUser loads the user row with SELECT ... FOR UPDATE. SQLite ignores
// the locking clause; its single connection already serializes writers.
func (s *Store) LockUser(ctx context.Context, id uint) (*models.User, error) {
	var u models.User
	if err := s.with(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).First(&u, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

// SetPoints stores a new balance without touching other columns.
func (s *Store) SetPoints(ctx context.Context, id uint, points int) error {
	return s.with(ctx).Model(&models.User{}).Where("id = ?", id).
		Update("points", points).Error
}

func (s *Store) CountUsers(ctx context.Context) (int64, error) {
	var n int64
	err := s.with(ctx).Model(&models.User{}).Count(&n).Error
	return n, err
}

// ListUsers returns every user ordered by id.
func (s *Store) ListUsers(ctx context.Context) ([]models.User, error) {
	var out []models.User
	err := s.with(ctx).Order("id ASC").Find(&out).Error
	return out, err
}

// ListStudents returns students ordered by name.
func (s *Store) ListStudents(ctx context.Context) ([]models.User, error) {
	var out []models.User
	err := s.with(ctx).Where("role = ?", models.RoleStudent).Order("name ASC").Find(&out).Error
	return out, err
}

// Ranking returns students by balance, highest first.
func (s *Store) Ranking(ctx context.Context) ([]models.User, error) {
	var out []models.User
	err := s.with(ctx).Where("role = ?", models.RoleStudent).
		Order("points DESC").Order("name ASC").Find(&out).Error
	return out, err
}

// NextNumber returns max(existing numeric handle, 999) + 1. Handles are
// compared as integers so "1000" sorts after "999".
func (s *Store) NextNumber(ctx context.Context) (string, error) {
	var numbers []string
	if err := s.with(ctx).Model(&models.User{}).Pluck("number", &numbers).Error; err != nil {
		return "", err
	}
	highest := firstNumber - 1
	for _, raw := range numbers {
		if n, err := strconv.Atoi(raw); err == nil && n > highest {
			highest = n
		}
	}
	return strconv.Itoa(highest + 1), nil
}

// DeleteUser removes the user and every row owned by them, returning the
// blob refs of their recordings so the caller can clean up storage.
func (s *Store) DeleteUser(ctx context.Context, id uint) ([]string, error) {
	var refs []string
	err := s.with(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Recording{}).Where("user_id = ?", id).Pluck("filename", &refs).Error; err != nil {
			return err
		}
		steps := []struct {
			model interface{}
			where string
		}{
			{&models.Recording{}, "user_id = ?"},
			{&models.Checkin{}, "user_id = ?"},
			{&models.Approval{}, "student_id = ?"},
			{&models.PointsHistory{}, "student_id = ?"},
		}
		for _, st := range steps {
			if err := tx.Where(st.where, id).Delete(st.model).Error; err != nil {
				return err
			}
		}
		res := tx.Delete(&models.User{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return refs, nil
}
