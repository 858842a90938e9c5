package normalize

import "github.com/oarkflow/convert"

var (
	latFields = []string{"latitude", "lat", "location_lat"}
	lngFields = []string{"longitude", "lng", "lon", "location_lng", "location_lon"}
)

// Coordinates extracts latitude and longitude from a raw item, trying the
// known flat field names in order and then a nested "location" object.
// Either side may be nil independently; out-of-range values are rejected.
func Coordinates(rec map[string]any) (lat, lng *float64) {
	lat = coordFrom(rec, latFields, 90)
	lng = coordFrom(rec, lngFields, 180)
	if loc := SubMap(rec, "location"); loc != nil {
		if lat == nil {
			lat = coordFrom(loc, []string{"latitude", "lat"}, 90)
		}
		if lng == nil {
			lng = coordFrom(loc, []string{"longitude", "lng", "lon"}, 180)
		}
	}
	return lat, lng
}

func coordFrom(rec map[string]any, keys []string, bound float64) *float64 {
	for _, k := range keys {
		v, ok := rec[k]
		if !ok || v == nil || v == "" {
			continue
		}
		f, ok := convert.ToFloat64(v)
		if !ok || f < -bound || f > bound {
			continue
		}
		return &f
	}
	return nil
}
