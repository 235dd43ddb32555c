package download

import (
	"errors"
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var ErrTaskNotFound = errors.New("task not found")

// Repository is the pull-based source of truth for task state. Publisher
// events are advisory; consumers reconcile against this.
type Repository interface {
	Create(t *Task) error
	Update(t *Task) error
	FindByID(id string) (*Task, error)
	FindByGroup(groupID string) ([]*Task, error)
	FindByStatus(status Status) ([]*Task, error)
	FindAll() ([]*Task, error)
	FindActive() ([]*Task, error)
}

// SQLiteRepository persists tasks in a local SQLite database.
type SQLiteRepository struct {
	db *gorm.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("task db: %w", err)
	}

	if err := db.AutoMigrate(&Task{}); err != nil {
		return nil, fmt.Errorf("task db migrate: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Create(t *Task) error {
	return r.db.Create(t).Error
}

func (r *SQLiteRepository) Update(t *Task) error {
	return r.db.Save(t).Error
}

func (r *SQLiteRepository) FindByID(id string) (*Task, error) {
	var t Task
	err := r.db.First(&t, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *SQLiteRepository) FindByGroup(groupID string) ([]*Task, error) {
	var out []*Task
	err := r.db.Where("group_id = ?", groupID).Order("created_at ASC").Find(&out).Error
	return out, err
}

func (r *SQLiteRepository) FindByStatus(status Status) ([]*Task, error) {
	var out []*Task
	err := r.db.Where("status = ?", status).Order("created_at ASC").Find(&out).Error
	return out, err
}

func (r *SQLiteRepository) FindAll() ([]*Task, error) {
	var out []*Task
	err := r.db.Order("created_at DESC").Find(&out).Error
	return out, err
}

// FindActive returns tasks that still need orchestrator attention.
func (r *SQLiteRepository) FindActive() ([]*Task, error) {
	var out []*Task
	err := r.db.
		Where("status IN ?", []Status{StatusQueued, StatusDownloading, StatusPaused}).
		Order("created_at ASC").
		Find(&out).Error
	return out, err
}
