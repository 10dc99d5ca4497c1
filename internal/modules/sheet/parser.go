// README: Column-position extraction rules turning a cell grid into a Draft.
package sheet

import (
	"strconv"
	"strings"
)

// Extract scans every data row of grid (row 0 is the header) and applies the
// per-column rules. It never fails; missing values fall back to defaults.
func Extract(grid [][]string) Draft {
	d := Draft{City: DefaultCity}
	if len(grid) == 0 {
		return d
	}
	d.DataRows = len(grid) - 1
	d.RawRows = sampleRows(grid)

	neighborhoods := newOrderedSet()
	maxSeq, seqFound := 0, false
	cityFound := false

	for i, row := range grid[1:] {
		if len(row) < minColumns {
			continue
		}

		if i == 0 {
			d.TotalDistance = parseDistance(row[colDistance])
		}

		if n, ok := parseCount(row[colSequence]); ok {
			if !seqFound || n > maxSeq {
				maxSeq = n
			}
			seqFound = true
		}

		city, hood := parseAddress(row[colFullAddress])
		if city == "" && hood == "" {
			city = strings.TrimSpace(row[colCity])
			hood = strings.TrimSpace(row[colNeighborhood])
		}
		if city != "" && !cityFound {
			d.City = city
			cityFound = true
		}
		if hood != "" {
			neighborhoods.add(hood)
		}

		if d.Name == "" {
			d.Name = strings.TrimSpace(row[colRouteName])
		}
	}

	if seqFound {
		d.Sequence = maxSeq
	} else {
		d.Sequence = d.DataRows
	}
	d.Neighborhoods = neighborhoods.items
	return d
}

// parseDistance keeps digits and separators, treats a comma as the decimal
// mark and, when both separators appear, dots as thousands separators.
// Anything unparseable yields 0.
func parseDistance(v string) float64 {
	var b strings.Builder
	for _, r := range v {
		if (r >= '0' && r <= '9') || r == ',' || r == '.' {
			b.WriteRune(r)
		}
	}
	s := b.String()
	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 {
		return 0
	}
	return f
}

func parseCount(v string) (int, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, false
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n, n >= 0
	}
	// Spreadsheet engines sometimes render integers as "45.0".
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 || f != float64(int(f)) {
		return 0, false
	}
	return int(f), true
}

// parseAddress splits "street, neighborhood, city": the last segment is the
// city and the one before it the neighborhood.
func parseAddress(v string) (city, neighborhood string) {
	if !strings.Contains(v, ",") {
		return "", ""
	}
	var parts []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) < 2 {
		return "", ""
	}
	return parts[len(parts)-1], parts[len(parts)-2]
}

func sampleRows(grid [][]string) [][]string {
	n := len(grid)
	if n > maxRawRows {
		n = maxRawRows
	}
	out := make([][]string, n)
	for i := 0; i < n; i++ {
		out[i] = append([]string(nil), grid[i]...)
	}
	return out
}

type orderedSet struct {
	seen  map[string]struct{}
	items []string
}

func newOrderedSet() *orderedSet {
	return &orderedSet{seen: make(map[string]struct{})}
}

func (s *orderedSet) add(v string) {
	if _, ok := s.seen[v]; ok {
		return
	}
	s.seen[v] = struct{}{}
	s.items = append(s.items, v)
}
