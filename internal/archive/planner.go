package archive

// PlanRange expands a DateRange into every HourSlot in range, in strict
// ascending order: 24 slots per calendar day, inclusive of both endpoints.
// Weekend/holiday gaps are not pruned here; the archive itself answers
// with an EmptyHour for hours it has nothing to publish
func PlanRange(r DateRange) []HourSlot {
	days := r.Days()
	slots := make([]HourSlot, 0, days*24)

	cur := HourSlot{Year: r.Start.Year(), Month: int(r.Start.Month()), Day: r.Start.Day(), Hour: 0}
	for d := 0; d < days; d++ {
		for h := 0; h < 24; h++ {
			slots = append(slots, HourSlot{Year: cur.Year, Month: cur.Month, Day: cur.Day, Hour: h})
		}
		cur = HourSlot{Year: cur.Year, Month: cur.Month, Day: cur.Day, Hour: 23}.Next()
	}
	return slots
}
