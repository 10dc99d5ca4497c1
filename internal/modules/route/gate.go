// README: Region gate deciding which routes a driver may see and claim.
package route

import (
	"routedesk/internal/types"
)

// Visible reports whether r is open and lies in one of the driver's regions.
// No regions means nothing is visible.
func Visible(r *Route, regions []string) bool {
	if r == nil || !r.Available() {
		return false
	}
	city := types.RegionKey(r.City)
	for _, k := range types.RegionKeys(regions) {
		if k == city {
			return true
		}
	}
	return false
}

// Matches applies the optional date and shift filters of q.
func (q AvailableQuery) Matches(r *Route) bool {
	if q.Shift != nil && r.Shift != *q.Shift {
		return false
	}
	if q.Date != nil && !types.DateOf(r.ServiceDate).Equal(types.DateOf(*q.Date)) {
		return false
	}
	return true
}
