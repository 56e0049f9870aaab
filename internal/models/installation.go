package models

import "time"

// Installation maps a repository owner login to the GitHub App
// installation authorised to act on its behalf. repo_owner is unique;
// writes are upserts, so the latest installation id always wins.
type Installation struct {
	RepoOwner      string    `gorm:"column:repo_owner;primaryKey;size:128" json:"repo_owner"`
	InstallationID int64     `gorm:"column:installation_id;not null" json:"installation_id"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// TableName keeps the table name stable regardless of gorm pluralisation rules.
func (Installation) TableName() string {
	return "installations"
}
