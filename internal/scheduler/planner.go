// Package scheduler places a subject's weekly periods on the 5x9 grid.
//
// Plan is a pure function over snapshots fetched by the caller: it never
// touches the store, so the same inputs always yield the same slots.
// Placement is greedy first-fit in weekday order (MON..FRI) and period
// order (1..9) with no backtracking, so a feasible full allocation can be
// missed when an earlier choice blocks a later one.
package scheduler

import "github.com/noah-isme/meu-horario-api/internal/models"

const DefaultMaxConsecutive = 3

// Policy holds the tunable allocation rules.
type Policy struct {
	// MaxConsecutive caps back-to-back periods for a teacher on one day.
	MaxConsecutive int
	// RelaxedPass runs a second walk that ignores declared availability
	// when the first walk comes up short.
	RelaxedPass bool
	// RunCheckCountsExisting makes the consecutive-run check also count the
	// teacher's already committed slots at the preceding periods.
	RunCheckCountsExisting bool
}

func DefaultPolicy() Policy {
	return Policy{MaxConsecutive: DefaultMaxConsecutive, RunCheckCountsExisting: true}
}

// Request is everything Plan needs to know about one subject.
type Request struct {
	Required int
	// Priority selects the carve-out path for priority-category teachers.
	Priority bool
	// Availability is the teacher's declared availability in store order.
	Availability []models.Coordinate
	// TeacherOccupied holds cells already used by any subject of the teacher.
	TeacherOccupied []models.Coordinate
	// ClassOccupied holds cells already used by any subject of the class section.
	ClassOccupied []models.Coordinate
	// Reserved is the union of all priority teachers' availability.
	Reserved []models.Coordinate
}

// Result lists the chosen cells in the order they were taken.
type Result struct {
	Requested int
	Allocated int
	Slots     []models.Coordinate
}

func (r Result) Success() bool {
	return r.Allocated == r.Requested
}

// Plan chooses up to req.Required cells for a subject.
func Plan(req Request, policy Policy) Result {
	if policy.MaxConsecutive <= 0 {
		policy.MaxConsecutive = DefaultMaxConsecutive
	}
	result := Result{Requested: req.Required}
	if req.Required <= 0 {
		return result
	}

	p := &planner{
		policy:   policy,
		required: req.Required,
		teacher:  NewCoordinateSet(req.TeacherOccupied...),
		chosen:   NewCoordinateSet(),
	}
	if req.Priority {
		p.priority(req.Availability)
	} else {
		p.standard(req)
	}

	result.Slots = p.slots
	result.Allocated = len(p.slots)
	return result
}

type planner struct {
	policy   Policy
	required int
	teacher  CoordinateSet
	chosen   CoordinateSet
	slots    []models.Coordinate
}

func (p *planner) full() bool {
	return len(p.slots) >= p.required
}

func (p *planner) take(c models.Coordinate) {
	p.chosen.Add(c)
	p.slots = append(p.slots, c)
}

// priority takes the first declared cells verbatim. Class-section occupancy
// and the reservation pool do not apply; the teacher's own slots still do.
func (p *planner) priority(availability []models.Coordinate) {
	for _, c := range availability {
		if p.full() {
			return
		}
		if !c.Valid() || p.teacher.Has(c) || p.chosen.Has(c) {
			continue
		}
		p.take(c)
	}
}

func (p *planner) standard(req Request) {
	reserved := NewCoordinateSet(req.Reserved...)
	class := NewCoordinateSet(req.ClassOccupied...)
	available := NewCoordinateSet(req.Availability...)

	p.walk(func(c models.Coordinate) bool {
		return available.Has(c) && p.free(c, reserved, class)
	})
	if p.full() || !p.policy.RelaxedPass {
		return
	}
	p.walk(func(c models.Coordinate) bool {
		return p.free(c, reserved, class)
	})
}

func (p *planner) free(c models.Coordinate, reserved, class CoordinateSet) bool {
	return !reserved.Has(c) && !p.teacher.Has(c) && !class.Has(c) && !p.chosen.Has(c)
}

func (p *planner) walk(accept func(models.Coordinate) bool) {
	for _, day := range models.Weekdays {
		for period := models.FirstPeriod; period <= models.LastPeriod; period++ {
			if p.full() {
				return
			}
			c := models.Coordinate{Weekday: day, Period: period}
			if !accept(c) {
				continue
			}
			if p.runBefore(c) >= p.policy.MaxConsecutive {
				continue
			}
			p.take(c)
		}
	}
}

// runBefore counts the unbroken run of taken periods immediately preceding c
// on the same day, scanning back at most MaxConsecutive periods.
func (p *planner) runBefore(c models.Coordinate) int {
	run := 0
	for i := 1; i <= p.policy.MaxConsecutive; i++ {
		prev := models.Coordinate{Weekday: c.Weekday, Period: c.Period - i}
		if prev.Period < models.FirstPeriod || !p.taken(prev) {
			break
		}
		run++
	}
	return run
}

func (p *planner) taken(c models.Coordinate) bool {
	if p.chosen.Has(c) {
		return true
	}
	return p.policy.RunCheckCountsExisting && p.teacher.Has(c)
}
