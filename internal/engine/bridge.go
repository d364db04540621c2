package engine

import "alcyxob/neuralfit/internal/domain"

// RecordWorkoutCompletion reconciles an ad-hoc "workout completed" log with
// the plan. It looks for the workout by id in the current week only,
// preferring todayName when the same workout is scheduled on several days.
//
// When the matching day is not yet completed it toggles the workout and then
// every exercise still open, so the day ends fully completed. Each toggle's
// delta is returned in order; the caller feeds every one of them to the
// Ledger. No match, or an already completed day, is a no-op returning the
// input plan and no deltas.
//
// With two or more open exercises the intermediate deltas are visible: the
// direct workout toggle sets workoutCompleted, the next exercise toggle
// clears it again because the day is not yet fully done, and the last one
// sets it back. The ledger therefore awards more than once for a single log,
// and event consumers see workoutCompleted go true, false, true before it
// settles.
func RecordWorkoutCompletion(plan *domain.Plan, todayName, workoutID string) (*domain.Plan, []Delta, error) {
	if plan == nil {
		return nil, nil, domain.ErrNoActivePlan
	}
	week, err := plan.CurrentWeekView()
	if err != nil {
		return nil, nil, err
	}
	day := matchScheduledWorkout(week, todayName, workoutID)
	if day == nil || day.WorkoutCompleted {
		return plan, nil, nil
	}

	var open []int
	for i, ex := range day.Workout.Exercises {
		if !ex.Completed {
			open = append(open, i)
		}
	}

	target := Task{Week: plan.CurrentWeek, Day: day.DayOfWeek, Kind: TaskWorkout}
	next, delta, err := ToggleTask(plan, target)
	if err != nil {
		return nil, nil, err
	}
	deltas := []Delta{delta}
	for _, i := range open {
		target.Kind, target.Index = TaskExercise, i
		next, delta, err = ToggleTask(next, target)
		if err != nil {
			return nil, nil, err
		}
		deltas = append(deltas, delta)
	}

	// Intermediate exercise toggles can recompute the aggregate to false; the
	// last one restores it because every exercise is now done. A workout
	// without exercises keeps the value set by the direct toggle.
	return next, deltas, nil
}

func matchScheduledWorkout(week *domain.Week, todayName, workoutID string) *domain.Day {
	if workoutID == "" {
		return nil
	}
	var first *domain.Day
	for i := range week.Days {
		d := &week.Days[i]
		if d.Workout == nil || d.Workout.ID != workoutID {
			continue
		}
		if d.DayOfWeek == todayName {
			return d
		}
		if first == nil {
			first = d
		}
	}
	return first
}
