package catalog

import (
	"encoding/json"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Portal catalog records. Plain CRUD; anything sensitive done *through* these
// resources goes via the approval workflow, not here.

type Dashboard struct {
	gorm.Model
	Name        string `gorm:"size:128;not null;index"`
	Description string `gorm:"type:text"`
	Owner       string `gorm:"size:64;index"`
	Sensitivity string `gorm:"size:32;default:INTERNAL"`
	// Tags is a JSON array of strings.
	Tags   datatypes.JSON `gorm:"type:json"`
	Layout datatypes.JSON `gorm:"type:json"`
	Public bool           `gorm:"default:false"`
}

type Report struct {
	gorm.Model
	Name        string         `gorm:"size:128;not null;index"`
	Description string         `gorm:"type:text"`
	Owner       string         `gorm:"size:64;index"`
	Sensitivity string         `gorm:"size:32;default:INTERNAL"`
	Schedule    string         `gorm:"size:64"` // cron expression, empty = on demand
	Query       string         `gorm:"type:text"`
	Tags        datatypes.JSON `gorm:"type:json"`
}

type MLModel struct {
	gorm.Model
	Name        string         `gorm:"size:128;not null;index"`
	Version     string         `gorm:"size:32"`
	Description string         `gorm:"type:text"`
	Owner       string         `gorm:"size:64;index"`
	Stage       string         `gorm:"size:32;default:dev"` // dev|staging|production|archived
	Metrics     datatypes.JSON `gorm:"type:json"`
}

type APIRecord struct {
	gorm.Model
	Name        string `gorm:"size:128;not null;index"`
	Path        string `gorm:"size:256"`
	Method      string `gorm:"size:16"`
	Description string `gorm:"type:text"`
	Owner       string `gorm:"size:64;index"`
	Sensitivity string `gorm:"size:32;default:INTERNAL"`
	Deprecated  bool   `gorm:"default:false"`
}

func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&Dashboard{}, &Report{}, &MLModel{}, &APIRecord{})
}

// SetTags stores a string list as the JSON tags column.
func (d *Dashboard) SetTags(tags []string) {
	b, _ := json.Marshal(tags)
	d.Tags = b
}

func (d *Dashboard) GetTags() []string {
	var arr []string
	if len(d.Tags) == 0 {
		return arr
	}
	_ = json.Unmarshal(d.Tags, &arr)
	return arr
}
