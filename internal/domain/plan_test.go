package domain_test

import (
	"testing"

	"alcyxob/neuralfit/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newWeek(number int) domain.Week {
	week := domain.Week{WeekNumber: number, Focus: "Consistency"}
	for _, name := range domain.Weekdays {
		day := domain.Day{DayOfWeek: name, Type: domain.DayTypeRest, Hydration: 3000, SleepTarget: 8, Meals: []domain.Meal{}}
		if name == "Monday" {
			day.Type = domain.DayTypeWorkout
			day.Workout = &domain.Workout{
				ID:   "wk-1",
				Name: "Push Day",
				Exercises: []domain.Exercise{
					{Name: "Bench Press", Sets: 3, Reps: "10"},
					{Name: "Dips", Sets: 3, Reps: "12"},
				},
			}
			day.Meals = []domain.Meal{{ID: "m-1", Name: "Oats", Type: "Breakfast", Calories: 400}}
		}
		week.Days = append(week.Days, day)
	}
	return week
}

func newPlan(duration int) *domain.Plan {
	p := &domain.Plan{PlanID: "plan-1", Duration: duration, CurrentWeek: 1, Goal: "general_fitness"}
	for i := 1; i <= duration; i++ {
		p.Weeks = append(p.Weeks, newWeek(i))
	}
	return p
}

func TestCurrentWeekView(t *testing.T) {
	p := newPlan(2)
	p.CurrentWeek = 2

	week, err := p.CurrentWeekView()
	require.NoError(t, err)
	assert.Equal(t, 2, week.WeekNumber)

	p.CurrentWeek = 3
	_, err = p.CurrentWeekView()
	assert.ErrorIs(t, err, domain.ErrPlanRange)

	p.CurrentWeek = 0
	_, err = p.CurrentWeekView()
	assert.ErrorIs(t, err, domain.ErrPlanRange)

	short := newPlan(2)
	short.Weeks = short.Weeks[:1]
	short.CurrentWeek = 2
	_, err = short.CurrentWeekView()
	assert.ErrorIs(t, err, domain.ErrPlanRange)
}

func TestFindDayAndTodayView(t *testing.T) {
	p := newPlan(1)

	day, err := p.TodayView("Monday")
	require.NoError(t, err)
	assert.Equal(t, domain.DayTypeWorkout, day.Type)

	_, err = p.TodayView("Funday")
	assert.ErrorIs(t, err, domain.ErrDayNotFound)
}

func TestCloneSharesNothing(t *testing.T) {
	p := newPlan(1)
	c := p.Clone()

	c.Weeks[0].Days[0].Workout.Exercises[0].Completed = true
	c.Weeks[0].Days[0].Meals[0].Completed = true
	c.Weeks[0].Days[0].WorkoutCompleted = true
	c.Weeks[0].Days[0].Workout.Name = "Pull Day"

	orig := p.Weeks[0].Days[0]
	assert.False(t, orig.Workout.Exercises[0].Completed)
	assert.False(t, orig.Meals[0].Completed)
	assert.False(t, orig.WorkoutCompleted)
	assert.Equal(t, "Push Day", orig.Workout.Name)
	assert.Nil(t, (*domain.Plan)(nil).Clone())
}

func TestAllExercisesCompleted(t *testing.T) {
	day := newWeek(1).Days[0]
	assert.False(t, day.AllExercisesCompleted())
	day.Workout.Exercises[0].Completed = true
	day.Workout.Exercises[1].Completed = true
	assert.True(t, day.AllExercisesCompleted())

	rest := newWeek(1).Days[1]
	assert.False(t, rest.AllExercisesCompleted())
}

func TestValidate(t *testing.T) {
	require.NoError(t, newPlan(2).Validate())

	tests := []struct {
		name   string
		mutate func(p *domain.Plan)
	}{
		{"zero duration", func(p *domain.Plan) { p.Duration = 0 }},
		{"missing weeks", func(p *domain.Plan) { p.Weeks = p.Weeks[:1] }},
		{"current week out of range", func(p *domain.Plan) { p.CurrentWeek = 5 }},
		{"week misnumbered", func(p *domain.Plan) { p.Weeks[1].WeekNumber = 7 }},
		{"six days", func(p *domain.Plan) { p.Weeks[0].Days = p.Weeks[0].Days[:6] }},
		{"duplicate day", func(p *domain.Plan) { p.Weeks[0].Days[1].DayOfWeek = "Monday" }},
		{"unknown day", func(p *domain.Plan) { p.Weeks[0].Days[1].DayOfWeek = "monday" }},
		{"workout day without workout", func(p *domain.Plan) { p.Weeks[0].Days[0].Workout = nil }},
		{"rest day with workout", func(p *domain.Plan) { p.Weeks[0].Days[1].Workout = &domain.Workout{Name: "x"} }},
		{"unknown type", func(p *domain.Plan) { p.Weeks[0].Days[2].Type = "cardio" }},
		{"negative hydration", func(p *domain.Plan) { p.Weeks[0].Days[2].Hydration = -1 }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := newPlan(2)
			tc.mutate(p)
			assert.ErrorIs(t, p.Validate(), domain.ErrSchema)
		})
	}
}
