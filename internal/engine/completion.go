package engine

import (
	"fmt"

	"alcyxob/neuralfit/internal/domain"
)

// ToggleTask flips the flag addressed by task on a deep copy of plan and
// returns the copy with the changes it made. The input plan is never
// modified; on error nothing is applied.
//
// Toggling an exercise recomputes workoutCompleted as the AND of all
// exercises and reports that as a workout change when it moves. Toggling the
// workout itself leaves the exercises untouched.
func ToggleTask(plan *domain.Plan, task Task) (*domain.Plan, Delta, error) {
	if plan == nil {
		return nil, Delta{}, domain.ErrNoActivePlan
	}
	if _, err := ParseTaskKind(string(task.Kind)); err != nil {
		return nil, Delta{}, fmt.Errorf("%w: %v", domain.ErrTaskNotFound, err)
	}

	next := plan.Clone()
	week, err := next.WeekAt(task.Week)
	if err != nil {
		return nil, Delta{}, err
	}
	day, err := week.FindDay(task.Day)
	if err != nil {
		return nil, Delta{}, err
	}
	if err := checkTarget(day, task); err != nil {
		return nil, Delta{}, err
	}

	var delta Delta
	record := func(kind TaskKind, index int, before, after bool) {
		delta.Changes = append(delta.Changes, Change{
			Kind:   kind,
			Path:   flagPath(task.Week, task.Day, kind, index),
			Week:   task.Week,
			Day:    task.Day,
			Index:  index,
			Before: before,
			After:  after,
		})
	}
	flip := func(kind TaskKind, index int, flag *bool) {
		before := *flag
		*flag = !before
		record(kind, index, before, *flag)
	}

	switch task.Kind {
	case TaskWorkout:
		flip(TaskWorkout, -1, &day.WorkoutCompleted)
	case TaskExercise:
		flip(TaskExercise, task.Index, &day.Workout.Exercises[task.Index].Completed)
		before := day.WorkoutCompleted
		day.WorkoutCompleted = day.AllExercisesCompleted()
		if before != day.WorkoutCompleted {
			record(TaskWorkout, -1, before, day.WorkoutCompleted)
		}
	case TaskMeal:
		flip(TaskMeal, task.Index, &day.Meals[task.Index].Completed)
	case TaskHydration:
		flip(TaskHydration, -1, &day.HydrationCompleted)
	case TaskSleep:
		flip(TaskSleep, -1, &day.SleepCompleted)
	}
	return next, delta, nil
}

func checkTarget(day *domain.Day, task Task) error {
	switch task.Kind {
	case TaskWorkout:
		if day.Workout == nil {
			return fmt.Errorf("%w: %s has no workout", domain.ErrTaskNotFound, day.DayOfWeek)
		}
	case TaskExercise:
		if day.Workout == nil {
			return fmt.Errorf("%w: %s has no workout", domain.ErrTaskNotFound, day.DayOfWeek)
		}
		if task.Index < 0 || task.Index >= len(day.Workout.Exercises) {
			return fmt.Errorf("%w: exercise %d of %d on %s", domain.ErrTaskNotFound, task.Index, len(day.Workout.Exercises), day.DayOfWeek)
		}
	case TaskMeal:
		if task.Index < 0 || task.Index >= len(day.Meals) {
			return fmt.Errorf("%w: meal %d of %d on %s", domain.ErrTaskNotFound, task.Index, len(day.Meals), day.DayOfWeek)
		}
	}
	return nil
}
