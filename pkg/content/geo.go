package content

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrNoCoordinate = errors.New("coordinate is empty")

	maxLat = decimal.NewFromInt(90)
	maxLng = decimal.NewFromInt(180)
)

// ParseCoordinate accepts what the CMS returns for decimal columns (strings)
// as well as plain JSON numbers. A comma decimal separator is tolerated
// because editors paste Indonesian-formatted numbers.
func ParseCoordinate(v any) (decimal.Decimal, error) {
	switch x := v.(type) {
	case nil:
		return decimal.Zero, ErrNoCoordinate
	case decimal.Decimal:
		return x, nil
	case float64:
		return decimal.NewFromFloat(x), nil
	case int:
		return decimal.NewFromInt(int64(x)), nil
	case json.Number:
		return decimal.NewFromString(x.String())
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return decimal.Zero, ErrNoCoordinate
		}
		if !strings.Contains(s, ".") {
			s = strings.Replace(s, ",", ".", 1)
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return decimal.Zero, fmt.Errorf("coordinate %q: %w", x, err)
		}
		return d, nil
	}
	return decimal.Zero, fmt.Errorf("coordinate of type %T", v)
}

// ValidLatLng checks ranges and rejects 0,0, which only ever appears as a
// placeholder.
func ValidLatLng(lat, lng decimal.Decimal) bool {
	if lat.Abs().GreaterThan(maxLat) || lng.Abs().GreaterThan(maxLng) {
		return false
	}
	return !(lat.IsZero() && lng.IsZero())
}

// Point builds the GeoJSON value the CMS expects for geometry(Point) fields.
// GeoJSON orders coordinates lng, lat.
func Point(lat, lng decimal.Decimal) map[string]any {
	return map[string]any{
		"type":        "Point",
		"coordinates": []float64{lng.InexactFloat64(), lat.InexactFloat64()},
	}
}
