package models

// Language is a row of the project's languages collection, the target of
// every translations junction.
type Language struct {
	Code      string `gorm:"column:code;primaryKey"`
	Name      string `gorm:"column:name"`
	Direction string `gorm:"column:direction"`
}

func (Language) TableName() string { return "languages" }
