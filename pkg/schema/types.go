package schema

import (
	"fmt"
	"sort"
)

type fieldType struct {
	sql     string
	iface   string
	special string
}

// CMS field types to Postgres column types and the interface the CMS
// would pick for them.
var fieldTypes = map[string]fieldType{
	"string":     {sql: "varchar(255)", iface: "input"},
	"text":       {sql: "text", iface: "input-multiline"},
	"integer":    {sql: "integer", iface: "input"},
	"bigInteger": {sql: "bigint", iface: "input"},
	"float":      {sql: "real", iface: "input"},
	"decimal":    {sql: "numeric(10,5)", iface: "input"},
	"boolean":    {sql: "boolean", iface: "boolean", special: "cast-boolean"},
	"date":       {sql: "date", iface: "datetime"},
	"dateTime":   {sql: "timestamp", iface: "datetime"},
	"timestamp":  {sql: "timestamptz", iface: "datetime"},
	"time":       {sql: "time", iface: "datetime"},
	"json":       {sql: "json", iface: "input-code", special: "cast-json"},
	"uuid":       {sql: "uuid", iface: "input"},
	"geometry":   {sql: "geometry(Point,4326)", iface: "map"},
}

// SQLType maps a CMS field type to its column type.
func SQLType(cmsType string) (string, error) {
	ft, ok := fieldTypes[cmsType]
	if !ok {
		return "", fmt.Errorf("unknown field type %q (known: %v)", cmsType, FieldTypes())
	}
	return ft.sql, nil
}

func FieldTypes() []string {
	out := make([]string, 0, len(fieldTypes))
	for k := range fieldTypes {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Key types a primary key can be converted between.
const (
	KeyUUID    = "uuid"
	KeyInteger = "integer"
	KeyBigint  = "bigint"
	keyText    = "text"
)

// NormalizeKeyType accepts the spellings operators tend to type.
func NormalizeKeyType(s string) (string, error) {
	switch s {
	case "uuid":
		return KeyUUID, nil
	case "integer", "int", "int4", "serial":
		return KeyInteger, nil
	case "bigint", "int8", "bigInteger", "bigserial":
		return KeyBigint, nil
	}
	return "", fmt.Errorf("unsupported key type %q: want uuid, integer or bigint", s)
}

// keyTypeOf classifies a column by its udt_name.
func keyTypeOf(udt string) (string, error) {
	switch udt {
	case "int2", "int4":
		return KeyInteger, nil
	case "int8":
		return KeyBigint, nil
	case "uuid":
		return KeyUUID, nil
	case "varchar", "text", "bpchar":
		return keyText, nil
	}
	return "", fmt.Errorf("unsupported key column type %q", udt)
}

func numeric(t string) bool { return t == KeyInteger || t == KeyBigint }
