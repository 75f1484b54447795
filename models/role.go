package models

// Role is a row of directus_roles.
type Role struct {
	ID          string  `gorm:"column:id;type:uuid;primaryKey"`
	Name        string  `gorm:"column:name"`
	Description *string `gorm:"column:description"`
}

func (Role) TableName() string { return "directus_roles" }
