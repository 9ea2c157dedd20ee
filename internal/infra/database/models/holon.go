package models

import (
	"time"

	"gorm.io/datatypes"
)

type HolonVersion struct {
	ID            string            `json:"id" gorm:"primaryKey;type:text"`
	Version       int               `json:"version" gorm:"primaryKey;autoIncrement:false"`
	Family        string            `json:"family" gorm:"type:text;not null;index:idx_holon_family_owner"`
	OwnerID       string            `json:"ownerId" gorm:"type:text;not null;index:idx_holon_family_owner"`
	Name          string            `json:"name" gorm:"type:text;not null"`
	Description   string            `json:"description" gorm:"type:text"`
	Subtype       string            `json:"subtype" gorm:"type:text;index"`
	Status        string            `json:"status" gorm:"type:text;not null"`
	SourcePath    string            `json:"sourcePath" gorm:"type:text"`
	PublishedPath string            `json:"publishedPath" gorm:"type:text"`
	InstalledPath string            `json:"installedPath" gorm:"type:text"`
	LaunchTarget  string            `json:"launchTarget" gorm:"type:text"`
	Digest        string            `json:"digest" gorm:"type:text"`
	Registered    bool              `json:"registered" gorm:"type:boolean;not null;default:false"`
	MetaData      datatypes.JSONMap `json:"metaData" gorm:"type:jsonb"`
	PublishedOn   *time.Time        `json:"publishedOn" gorm:"type:timestamp with time zone"`
	PublishedBy   string            `json:"publishedBy" gorm:"type:text"`
	CDate         time.Time         `json:"cdate" gorm:"<-:create;type:timestamp with time zone;not null;default:clock_timestamp()"`
	MDate         time.Time         `json:"mdate" gorm:"type:timestamp with time zone;not null;default:clock_timestamp()"`
}
