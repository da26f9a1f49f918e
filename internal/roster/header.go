package roster

import "strings"

// DefaultScanDepth is how many leading rows LocateHeader inspects.
const DefaultScanDepth = 20

// DefaultWeekMarker is the case-insensitive substring that marks a week column.
const DefaultWeekMarker = "week"

// LocateHeader returns the index of the first row, within the first depth rows, that
// has a cell containing marker (case-insensitive). It returns 0 when no such row is
// found; callers validate the resulting header set. depth <= 0 means DefaultScanDepth
// and an empty marker means DefaultWeekMarker.
func LocateHeader(rows [][]string, depth int, marker string) int {
	if depth <= 0 {
		depth = DefaultScanDepth
	}
	if marker == "" {
		marker = DefaultWeekMarker
	}
	marker = strings.ToLower(marker)

	for i := 0; i < len(rows) && i < depth; i++ {
		for _, cell := range rows[i] {
			if containsFold(cell, marker) {
				return i
			}
		}
	}
	return 0
}

// containsFold reports whether s contains the lower-case needle, ignoring case.
func containsFold(s, lowerNeedle string) bool {
	return strings.Contains(strings.ToLower(normalizeText(s)), lowerNeedle)
}
