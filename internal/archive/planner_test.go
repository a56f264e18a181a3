package archive

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPlanRange_SingleDayEmits24HoursAscending(t *testing.T) {
	d := time.Date(2024, 1, 7, 0, 0, 0, 0, time.UTC)
	slots := PlanRange(DateRange{Start: d, End: d})
	require.Len(t, slots, 24)
	for i, s := range slots {
		require.Equal(t, i, s.Hour)
		require.Equal(t, 2024, s.Year)
		require.Equal(t, 1, s.Month)
		require.Equal(t, 7, s.Day)
	}
}

func TestPlanRange_MultiDaySpansAndOrders(t *testing.T) {
	r := DateRange{
		Start: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC),
	}
	slots := PlanRange(r)
	require.Len(t, slots, 24*3)
	for i := 1; i < len(slots); i++ {
		require.True(t, slots[i-1].Before(slots[i]))
	}
}

func TestPlanRange_MonthBoundary(t *testing.T) {
	r := DateRange{
		Start: time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
	}
	slots := PlanRange(r)
	require.Len(t, slots, 48)
	require.Equal(t, 1, slots[0].Month)
	require.Equal(t, 31, slots[0].Day)
	require.Equal(t, 2, slots[24].Month)
	require.Equal(t, 1, slots[24].Day)
}
