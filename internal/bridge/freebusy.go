package bridge

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/emersion/go-ical"
)

// BusyPeriod is an interval during which the calendar owner is unavailable.
type BusyPeriod struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// FreeBusy returns the merged busy periods inside [start, end). Only the
// intervals are exposed, never the events behind them.
func (b *Bridge) FreeBusy(ctx context.Context, start, end time.Time) ([]BusyPeriod, error) {
	if err := checkRange(start, end); err != nil {
		return nil, err
	}
	start, end = start.UTC(), end.UTC()

	comps, err := b.store.QueryEvents(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}

	var periods []BusyPeriod
	for _, comp := range comps {
		if !blocksTime(comp) {
			continue
		}
		s, e, ok := eventSpan(comp)
		if !ok {
			continue
		}
		if s.Before(start) {
			s = start
		}
		if e.After(end) {
			e = end
		}
		if !e.After(s) {
			continue
		}
		periods = append(periods, BusyPeriod{Start: s, End: e})
	}
	return mergePeriods(periods), nil
}

// blocksTime reports whether the event occupies its slot. Transparent and
// cancelled events do not.
func blocksTime(comp *ical.Component) bool {
	if p := comp.Props.Get("TRANSP"); p != nil && strings.EqualFold(p.Value, "TRANSPARENT") {
		return false
	}
	if p := comp.Props.Get(ical.PropStatus); p != nil && strings.EqualFold(p.Value, "CANCELLED") {
		return false
	}
	return true
}

func eventSpan(comp *ical.Component) (time.Time, time.Time, bool) {
	sp := comp.Props.Get(ical.PropDateTimeStart)
	ep := comp.Props.Get(ical.PropDateTimeEnd)
	if sp == nil || ep == nil {
		return time.Time{}, time.Time{}, false
	}
	s, err := sp.DateTime(time.UTC)
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	e, err := ep.DateTime(time.UTC)
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	return s.UTC(), e.UTC(), true
}

// mergePeriods sorts periods and joins those that overlap or touch.
func mergePeriods(periods []BusyPeriod) []BusyPeriod {
	if len(periods) == 0 {
		return []BusyPeriod{}
	}
	sort.Slice(periods, func(i, j int) bool {
		return periods[i].Start.Before(periods[j].Start)
	})

	merged := []BusyPeriod{periods[0]}
	for _, p := range periods[1:] {
		last := &merged[len(merged)-1]
		if p.Start.After(last.End) {
			merged = append(merged, p)
			continue
		}
		if p.End.After(last.End) {
			last.End = p.End
		}
	}
	return merged
}
