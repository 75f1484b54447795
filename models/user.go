package models

import "time"

// User is a row of directus_users. Only the columns the tools touch are mapped.
type User struct {
	ID         string     `gorm:"column:id;type:uuid;primaryKey"`
	FirstName  *string    `gorm:"column:first_name"`
	LastName   *string    `gorm:"column:last_name"`
	Email      *string    `gorm:"column:email"`
	Password   *string    `gorm:"column:password"`
	Status     string     `gorm:"column:status"`
	RoleID     *string    `gorm:"column:role;type:uuid"`
	Role       *Role      `gorm:"foreignKey:RoleID;references:ID"`
	LastAccess *time.Time `gorm:"column:last_access"`
}

func (User) TableName() string { return "directus_users" }
