/*
window.go - Work-day windowing

PURPOSE:
  The quay works through the night: a business day opens at 07:00 and
  nominally closes at 06:00 the next morning. Tickets weighed after
  midnight therefore settle on the previous calendar day. Date-range
  filters over weighings must respect this shift or night tickets fall
  out of reports.

KEY CONCEPTS:
  - Window: The time span owned by one business day
  - BusinessDay: Maps a wall-clock instant to the day that owns it

BOUNDARY SEMANTICS:
  A window owns every instant from 07:00:00 of its day up to but not
  including 07:00:00 of the next day. A ticket at 06:59:59 belongs to the
  previous day's window; 07:00:00 sharp opens the new one. The 06:00
  nominal close is operational language only, membership runs to 07:00.
*/
package quota

import "time"

// WorkDayStartHour is the hour a business day opens.
const WorkDayStartHour = 7

// Window is the span of wall-clock time owned by one business day.
// Start is inclusive, End exclusive.
type Window struct {
	Day   time.Time // midnight of the owning calendar day
	Start time.Time // Day at 07:00
	End   time.Time // Day+1 at 07:00
}

// WindowFor returns the window owned by the calendar day containing day.
func WindowFor(day time.Time) Window {
	y, m, d := day.Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, day.Location())
	start := midnight.Add(WorkDayStartHour * time.Hour)
	return Window{
		Day:   midnight,
		Start: start,
		End:   start.AddDate(0, 0, 1),
	}
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// BusinessDay returns midnight of the business day that owns t. An instant
// before 07:00 belongs to the previous calendar day.
func BusinessDay(t time.Time) time.Time {
	shifted := t.Add(-WorkDayStartHour * time.Hour)
	y, m, d := shifted.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// WindowsBetween returns one window per calendar day from start through end
// inclusive. An end in the future is clamped to now's business day; a start
// after the (clamped) end yields an empty set.
func WindowsBetween(start, end, now time.Time) []Window {
	first := WindowFor(start).Day
	last := WindowFor(end).Day
	today := BusinessDay(now)
	if last.After(today) {
		last = today
	}
	if first.After(last) {
		return nil
	}

	var windows []Window
	for day := first; !day.After(last); day = day.AddDate(0, 0, 1) {
		windows = append(windows, WindowFor(day))
	}
	return windows
}

// InAnyWindow reports whether t falls inside any window of the [start, end]
// day range. A nil bound leaves that side open. The range is interpreted the
// same way as WindowsBetween, including the future-end clamp.
func InAnyWindow(t time.Time, start, end *time.Time, now time.Time) bool {
	day := BusinessDay(t)
	if start != nil && day.Before(WindowFor(*start).Day) {
		return false
	}
	last := BusinessDay(now)
	if end != nil && !WindowFor(*end).Day.After(last) {
		last = WindowFor(*end).Day
	}
	return !day.After(last)
}
