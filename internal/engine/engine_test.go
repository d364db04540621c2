package engine_test

import (
	"alcyxob/neuralfit/internal/domain"
)

// buildPlan returns a one-week plan with a workout on Monday holding the
// given number of exercises, two meals on Monday and rest on other days.
func buildPlan(exercises int) *domain.Plan {
	week := domain.Week{WeekNumber: 1}
	for _, name := range domain.Weekdays {
		day := domain.Day{DayOfWeek: name, Type: domain.DayTypeRest, Hydration: 3000, SleepTarget: 8}
		if name == "Monday" {
			day.Type = domain.DayTypeWorkout
			day.Workout = &domain.Workout{ID: "wk-mon", Name: "Push Day"}
			for i := 0; i < exercises; i++ {
				day.Workout.Exercises = append(day.Workout.Exercises, domain.Exercise{Name: "ex", Sets: 3, Reps: "10"})
			}
			day.Meals = []domain.Meal{{ID: "m1", Name: "Oats"}, {ID: "m2", Name: "Rice"}}
		}
		week.Days = append(week.Days, day)
	}
	return &domain.Plan{PlanID: "p1", Duration: 1, CurrentWeek: 1, Weeks: []domain.Week{week}}
}

func monday(p *domain.Plan) *domain.Day {
	return &p.Weeks[0].Days[0]
}
