package models

// Collection is a row of directus_collections. Folders (groups without a
// table) are rows too, so a collection is not guaranteed to have a table.
type Collection struct {
	Collection string  `gorm:"column:collection;primaryKey"`
	Icon       *string `gorm:"column:icon"`
	Note       *string `gorm:"column:note"`
	Hidden     bool    `gorm:"column:hidden"`
	Singleton  bool    `gorm:"column:singleton"`
	Group      *string `gorm:"column:group"`
}

func (Collection) TableName() string { return "directus_collections" }

// Field is a row of directus_fields (field metadata, not the SQL column).
type Field struct {
	ID         uint    `gorm:"column:id;primaryKey"`
	Collection string  `gorm:"column:collection"`
	Field      string  `gorm:"column:field"`
	Special    *string `gorm:"column:special"`
	Interface  *string `gorm:"column:interface"`
	Readonly   bool    `gorm:"column:readonly"`
	Hidden     bool    `gorm:"column:hidden"`
	Sort       *int    `gorm:"column:sort"`
	Note       *string `gorm:"column:note"`
}

func (Field) TableName() string { return "directus_fields" }

// IsAlias reports whether the field has no SQL column (o2m, translations,
// presentation fields).
func (f Field) IsAlias() bool {
	if f.Special == nil {
		return false
	}
	for _, s := range []string{"alias", "o2m", "m2m", "m2a", "translations", "no-data", "group"} {
		if containsToken(*f.Special, s) {
			return true
		}
	}
	return false
}

// Relation is a row of directus_relations.
type Relation struct {
	ID                uint    `gorm:"column:id;primaryKey"`
	ManyCollection    string  `gorm:"column:many_collection"`
	ManyField         string  `gorm:"column:many_field"`
	OneCollection     *string `gorm:"column:one_collection"`
	OneField          *string `gorm:"column:one_field"`
	JunctionField     *string `gorm:"column:junction_field"`
	OneDeselectAction string  `gorm:"column:one_deselect_action"`
}

func (Relation) TableName() string { return "directus_relations" }
