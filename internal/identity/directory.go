package identity

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"gorm.io/gorm"

	workflow "github.com/hualuo-tech/datagov/internal/workflow"
)

// Account is the portal's user directory record.
type Account struct {
	gorm.Model
	Username    string `gorm:"uniqueIndex;size:64;not null"`
	DisplayName string `gorm:"size:128"`
	Email       string `gorm:"size:256"`
	Department  string `gorm:"size:64"`
	Roles       string `gorm:"size:256"` // comma-separated role names
	Active      bool   `gorm:"default:true"`
}

func (Account) TableName() string { return "accounts" }

// Directory resolves identities from the accounts table.
type Directory struct{ db *gorm.DB }

func AutoMigrate(db *gorm.DB) error { return db.AutoMigrate(&Account{}) }

func NewDirectory(db *gorm.DB) *Directory { return &Directory{db: db} }

// Resolve looks a reference up by username first, then by numeric id.
func (d *Directory) Resolve(ctx context.Context, ref string) (*User, error) {
	var a Account
	err := d.db.WithContext(ctx).Where("username = ? AND active", ref).First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		if id, convErr := strconv.ParseUint(ref, 10, 64); convErr == nil {
			err = d.db.WithContext(ctx).Where("id = ? AND active", uint(id)).First(&a).Error
		}
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: user %q", workflow.ErrNotFound, ref)
		}
		return nil, err
	}
	return &User{ID: a.Username, Email: a.Email, DisplayName: a.DisplayName, Department: a.Department}, nil
}

// Create inserts a directory account.
func (d *Directory) Create(ctx context.Context, a *Account) error {
	return d.db.WithContext(ctx).Create(a).Error
}

// List returns all active accounts.
func (d *Directory) List(ctx context.Context) ([]*Account, error) {
	var arr []*Account
	if err := d.db.WithContext(ctx).Where("active").Order("username ASC").Find(&arr).Error; err != nil {
		return nil, err
	}
	return arr, nil
}
