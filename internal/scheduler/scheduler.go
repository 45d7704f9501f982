// Package scheduler runs jobs on a weekly wall-clock timetable. Slots are
// day-of-week plus HH:MM; a slot fires at most once in its minute, and a
// failing job is logged and retried at its next slot rather than aborting
// the scheduler.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"
)

// Job is one scheduled unit of work.
type Job struct {
	Name string
	Run  func(ctx context.Context) error
}

// Slot is one firing time in the weekly timetable.
type Slot struct {
	Day    time.Weekday
	Hour   int
	Minute int
	Job    Job
}

// ParseSlot accepts "Monday 11:00" style definitions.
func ParseSlot(raw string, job Job) (Slot, error) {
	fields := strings.Fields(raw)
	if len(fields) != 2 {
		return Slot{}, fmt.Errorf("scheduler: malformed slot %q", raw)
	}

	var day time.Weekday
	found := false
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.EqualFold(d.String(), fields[0]) {
			day = d
			found = true
			break
		}
	}
	if !found {
		return Slot{}, fmt.Errorf("scheduler: unknown weekday %q", fields[0])
	}

	var hour, minute int
	if _, err := fmt.Sscanf(fields[1], "%d:%d", &hour, &minute); err != nil {
		return Slot{}, fmt.Errorf("scheduler: malformed time %q", fields[1])
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return Slot{}, fmt.Errorf("scheduler: time out of range %q", fields[1])
	}
	return Slot{Day: day, Hour: hour, Minute: minute, Job: job}, nil
}

func (s Slot) matches(t time.Time) bool {
	return t.Weekday() == s.Day && t.Hour() == s.Hour && t.Minute() == s.Minute
}

func (s Slot) String() string {
	return fmt.Sprintf("%s %02d:%02d %s", s.Day, s.Hour, s.Minute, s.Job.Name)
}

// Scheduler polls the clock and fires due slots.
type Scheduler struct {
	Slots []Slot

	// Now and Poll are swapped out in tests.
	Now  func() time.Time
	Poll time.Duration

	fired map[string]string
}

// Add appends slots to the timetable.
func (s *Scheduler) Add(slots ...Slot) {
	s.Slots = append(s.Slots, slots...)
}

// Run polls once a second until ctx is cancelled. Each slot fires at most
// once per matching minute.
func (s *Scheduler) Run(ctx context.Context) {
	poll := s.Poll
	if poll <= 0 {
		poll = time.Second
	}
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	sorted := make([]Slot, len(s.Slots))
	copy(sorted, s.Slots)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].String() < sorted[j].String() })
	for _, slot := range sorted {
		log.Printf("scheduler: slot %s", slot)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick fires every due slot for the current minute. Exported so tests can
// drive the scheduler without waiting on the wall clock.
func (s *Scheduler) Tick(ctx context.Context) {
	now := time.Now()
	if s.Now != nil {
		now = s.Now()
	}
	minute := now.Format("2006-01-02 15:04")

	if s.fired == nil {
		s.fired = make(map[string]string)
	}

	for i := range s.Slots {
		slot := s.Slots[i]
		if !slot.matches(now) {
			continue
		}
		key := fmt.Sprintf("%d/%s", i, slot.Job.Name)
		if s.fired[key] == minute {
			continue
		}
		s.fired[key] = minute

		log.Printf("scheduler: running %s", slot.Job.Name)
		started := time.Now()
		if err := slot.Job.Run(ctx); err != nil {
			log.Printf("scheduler: %s failed after %s: %v", slot.Job.Name, time.Since(started).Round(time.Millisecond), err)
			continue
		}
		log.Printf("scheduler: %s finished in %s", slot.Job.Name, time.Since(started).Round(time.Millisecond))
	}
}

// WeekdaySlots builds one slot per listed weekday at the same time.
func WeekdaySlots(days []time.Weekday, hour, minute int, job Job) []Slot {
	out := make([]Slot, 0, len(days))
	for _, d := range days {
		out = append(out, Slot{Day: d, Hour: hour, Minute: minute, Job: job})
	}
	return out
}

// EveryDayExcept is every weekday but the listed ones.
func EveryDayExcept(except ...time.Weekday) []time.Weekday {
	skip := make(map[time.Weekday]bool, len(except))
	for _, d := range except {
		skip[d] = true
	}
	var out []time.Weekday
	for d := time.Sunday; d <= time.Saturday; d++ {
		if !skip[d] {
			out = append(out, d)
		}
	}
	return out
}
