// internal/domain/plan.go
package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DayType distinguishes training days from rest days.
type DayType string

const (
	DayTypeWorkout DayType = "workout"
	DayTypeRest    DayType = "rest"
)

// Weekdays lists the day names a Week must contain, in calendar order.
var Weekdays = []string{
	time.Monday.String(),
	time.Tuesday.String(),
	time.Wednesday.String(),
	time.Thursday.String(),
	time.Friday.String(),
	time.Saturday.String(),
	time.Sunday.String(),
}

// Macros holds daily macro-nutrient targets in grams.
type Macros struct {
	Protein float64 `bson:"protein" json:"protein"`
	Carbs   float64 `bson:"carbs" json:"carbs"`
	Fats    float64 `bson:"fats" json:"fats"`
}

// Plan is the multi-week training and nutrition schedule of one user.
// Published plans are treated as immutable; mutations work on Clone().
type Plan struct {
	PlanID         string    `bson:"planId" json:"planId"`
	Duration       int       `bson:"duration" json:"duration"` // weeks
	Goal           string    `bson:"goal" json:"goal"`
	CurrentWeek    int       `bson:"currentWeek" json:"currentWeek"` // 1-indexed
	TargetCalories int       `bson:"targetCalories" json:"targetCalories"`
	TargetMacros   Macros    `bson:"targetMacros" json:"targetMacros"`
	StartDate      string    `bson:"startDate" json:"startDate"` // YYYY-MM-DD
	CreatedAt      time.Time `bson:"createdAt" json:"createdAt"`
	Weeks          []Week    `bson:"weeks" json:"weeks"`
}

// Week groups the seven scheduled days of one plan week.
type Week struct {
	WeekNumber int    `bson:"weekNumber" json:"weekNumber"`
	Focus      string `bson:"focus" json:"focus"`
	Milestone  string `bson:"milestone" json:"milestone"`
	Days       []Day  `bson:"days" json:"days"`
}

// Day holds one calendar day's tasks and their completion flags.
type Day struct {
	DayOfWeek   string   `bson:"dayOfWeek" json:"dayOfWeek"`
	Type        DayType  `bson:"type" json:"type"`
	Workout     *Workout `bson:"workout,omitempty" json:"workout,omitempty"`
	Meals       []Meal   `bson:"meals" json:"meals"`
	Hydration   int      `bson:"hydration" json:"hydration"`     // ml
	SleepTarget float64  `bson:"sleepTarget" json:"sleepTarget"` // hours

	// WorkoutCompleted is derived from the exercises, except after a direct workout toggle.
	WorkoutCompleted   bool `bson:"workoutCompleted" json:"workoutCompleted"`
	HydrationCompleted bool `bson:"hydrationCompleted" json:"hydrationCompleted"`
	SleepCompleted     bool `bson:"sleepCompleted" json:"sleepCompleted"`
}

// Workout is the session scheduled on a workout day.
type Workout struct {
	ID        string     `bson:"id" json:"id"`
	Name      string     `bson:"name" json:"name"`
	Duration  string     `bson:"duration" json:"duration"` // display string, e.g. "60m"
	Exercises []Exercise `bson:"exercises" json:"exercises"`
}

// Exercise is a single movement inside a Workout.
type Exercise struct {
	Name      string `bson:"name" json:"name"`
	Sets      int    `bson:"sets,omitempty" json:"sets,omitempty"`
	Reps      string `bson:"reps,omitempty" json:"reps,omitempty"`
	Duration  string `bson:"duration,omitempty" json:"duration,omitempty"`
	Completed bool   `bson:"completed" json:"completed"`
}

// Meal is a scheduled meal of a Day.
type Meal struct {
	ID        string  `bson:"id" json:"id"`
	Name      string  `bson:"name" json:"name"`
	Type      string  `bson:"type" json:"type"` // Breakfast, Lunch, Dinner, Snack
	Food      string  `bson:"food" json:"food"`
	Calories  float64 `bson:"calories" json:"calories"`
	Protein   float64 `bson:"protein" json:"protein"`
	Carbs     float64 `bson:"carbs" json:"carbs"`
	Fats      float64 `bson:"fats" json:"fats"`
	Completed bool    `bson:"completed" json:"completed"`
}

// HasExercises reports whether the day carries a workout with at least one exercise.
func (d *Day) HasExercises() bool {
	return d.Workout != nil && len(d.Workout.Exercises) > 0
}

// AllExercisesCompleted is the aggregate value workoutCompleted is derived from.
func (d *Day) AllExercisesCompleted() bool {
	if !d.HasExercises() {
		return false
	}
	for _, ex := range d.Workout.Exercises {
		if !ex.Completed {
			return false
		}
	}
	return true
}

// --- Read accessors ---

// WeekAt returns the week with the given 1-indexed number.
func (p *Plan) WeekAt(weekNumber int) (*Week, error) {
	if weekNumber < 1 || weekNumber > p.Duration {
		return nil, fmt.Errorf("%w: week %d outside [1, %d]", ErrPlanRange, weekNumber, p.Duration)
	}
	if weekNumber > len(p.Weeks) {
		return nil, fmt.Errorf("%w: week %d missing, plan holds %d weeks", ErrPlanRange, weekNumber, len(p.Weeks))
	}
	return &p.Weeks[weekNumber-1], nil
}

// CurrentWeekView returns weeks[currentWeek-1].
func (p *Plan) CurrentWeekView() (*Week, error) {
	return p.WeekAt(p.CurrentWeek)
}

// FindDay returns the day of the week named dayName.
func (w *Week) FindDay(dayName string) (*Day, error) {
	for i := range w.Days {
		if w.Days[i].DayOfWeek == dayName {
			return &w.Days[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s in week %d", ErrDayNotFound, dayName, w.WeekNumber)
}

// TodayView returns today's day inside the current week.
func (p *Plan) TodayView(todayName string) (*Day, error) {
	week, err := p.CurrentWeekView()
	if err != nil {
		return nil, err
	}
	return week.FindDay(todayName)
}

// --- Identity ---

// AssignMissingIDs gives every scheduled workout and meal without an id a
// fresh one. Meal ids carry AIPrefix so the same id can key the meal in the
// generated meal library.
func (p *Plan) AssignMissingIDs() {
	for wi := range p.Weeks {
		week := &p.Weeks[wi]
		for di := range week.Days {
			day := &week.Days[di]
			if day.Workout != nil && day.Workout.ID == "" {
				day.Workout.ID = fmt.Sprintf("plan_wk%d_%s_%s", week.WeekNumber, strings.ToLower(day.DayOfWeek), uuid.NewString()[:8])
			}
			for mi := range day.Meals {
				if day.Meals[mi].ID == "" {
					day.Meals[mi].ID = AIPrefix + "meal_" + uuid.NewString()
				}
			}
		}
	}
}

// MealEntries returns the plan's meals as generated library entries, in
// week and day order, one per distinct meal id.
func (p *Plan) MealEntries() []LibraryEntry {
	var out []LibraryEntry
	seen := make(map[string]bool)
	for _, week := range p.Weeks {
		for _, day := range week.Days {
			for _, m := range day.Meals {
				id := m.ID
				if !strings.HasPrefix(id, AIPrefix) {
					id = AIPrefix + id
				}
				if m.ID == "" || seen[id] {
					continue
				}
				seen[id] = true
				out = append(out, NewLibraryEntry(id, m.Name, true, map[string]interface{}{
					"type":     m.Type,
					"food":     m.Food,
					"calories": m.Calories,
					"protein":  m.Protein,
					"carbs":    m.Carbs,
					"fats":     m.Fats,
				}))
			}
		}
	}
	return out
}

// --- Deep copy ---

// Clone returns a deep copy that shares no slices or pointers with p.
func (p *Plan) Clone() *Plan {
	if p == nil {
		return nil
	}
	out := *p
	if p.Weeks != nil {
		out.Weeks = make([]Week, len(p.Weeks))
		for i := range p.Weeks {
			out.Weeks[i] = p.Weeks[i].clone()
		}
	}
	return &out
}

func (w Week) clone() Week {
	out := w
	if w.Days != nil {
		out.Days = make([]Day, len(w.Days))
		for i := range w.Days {
			out.Days[i] = w.Days[i].clone()
		}
	}
	return out
}

func (d Day) clone() Day {
	out := d
	if d.Workout != nil {
		wk := *d.Workout
		if d.Workout.Exercises != nil {
			wk.Exercises = make([]Exercise, len(d.Workout.Exercises))
			copy(wk.Exercises, d.Workout.Exercises)
		}
		out.Workout = &wk
	}
	if d.Meals != nil {
		out.Meals = make([]Meal, len(d.Meals))
		copy(out.Meals, d.Meals)
	}
	return out
}
