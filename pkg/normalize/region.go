package normalize

import "strings"

// Boroughs recognized across all providers.
var boroughNames = []string{"Manhattan", "Brooklyn", "Queens", "Bronx", "Staten Island"}

// Park facility IDs start with a borough code letter.
var parkCodeBoroughs = map[byte]string{
	'M': "Manhattan",
	'B': "Brooklyn",
	'Q': "Queens",
	'X': "Bronx",
	'R': "Staten Island",
}

// BoroughFromName matches a known borough by case-insensitive substring
// search over a free-form location descriptor ("Prospect Park, Brooklyn").
func BoroughFromName(s string) string {
	if s == "" {
		return ""
	}
	lower := strings.ToLower(s)
	for _, b := range boroughNames {
		if strings.Contains(lower, strings.ToLower(b)) {
			return b
		}
	}
	return ""
}

// BoroughFromParkCode resolves a park facility ID ("M010") by its leading
// borough letter.
func BoroughFromParkCode(code string) string {
	code = strings.TrimSpace(code)
	if code == "" {
		return ""
	}
	return parkCodeBoroughs[strings.ToUpper(code)[0]]
}

// RegionFilter applies the region allow-list. Items whose region is
// recognized but outside the allowed set are excluded; items with no
// recognizable region are admitted when RetainUnknown is set (the
// default deployment behavior).
type RegionFilter struct {
	allowed       map[string]bool
	retainUnknown bool
}

func NewRegionFilter(allowed []string, retainUnknown bool) *RegionFilter {
	m := make(map[string]bool, len(allowed))
	for _, a := range allowed {
		m[strings.TrimSpace(a)] = true
	}
	return &RegionFilter{allowed: m, retainUnknown: retainUnknown}
}

// Admit canonicalizes the region first: providers disagree on casing
// ("Brooklyn" vs "BROOKLYN"). A region that does not resolve to a known
// borough counts as unknown.
func (f *RegionFilter) Admit(region string) bool {
	canonical := BoroughFromName(region)
	if canonical == "" {
		return f.retainUnknown
	}
	return f.allowed[canonical]
}

func (f *RegionFilter) Allowed() []string {
	out := make([]string, 0, len(f.allowed))
	for _, b := range boroughNames {
		if f.allowed[b] {
			out = append(out, b)
		}
	}
	return out
}
