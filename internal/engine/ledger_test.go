package engine_test

import (
	"testing"

	"alcyxob/neuralfit/internal/domain"
	"alcyxob/neuralfit/internal/engine"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerAwardsDayLevelCompletions(t *testing.T) {
	ledger := engine.NewLedger(0)
	require.Equal(t, engine.DefaultTaskAward, ledger.Award)

	for _, kind := range []engine.TaskKind{engine.TaskWorkout, engine.TaskHydration, engine.TaskSleep} {
		delta := engine.Delta{Changes: []engine.Change{{Kind: kind, Before: false, After: true}}}
		profile, xp := ledger.AwardIfEarned(domain.Profile{NeuralXP: 5}, delta)
		assert.Equal(t, 15, profile.NeuralXP, kind)
		assert.Equal(t, 10, xp.Awarded(), kind)
	}
}

func TestLedgerNeverAwardsOnUncompleting(t *testing.T) {
	ledger := engine.NewLedger(10)
	for _, kind := range []engine.TaskKind{engine.TaskWorkout, engine.TaskHydration, engine.TaskSleep} {
		delta := engine.Delta{Changes: []engine.Change{{Kind: kind, Before: true, After: false}}}
		profile, xp := ledger.AwardIfEarned(domain.Profile{NeuralXP: 40}, delta)
		assert.Equal(t, 40, profile.NeuralXP)
		assert.Zero(t, xp.Awarded())
	}
}

func TestLedgerIgnoresExerciseAndMealChanges(t *testing.T) {
	delta := engine.Delta{Changes: []engine.Change{
		{Kind: engine.TaskExercise, After: true},
		{Kind: engine.TaskMeal, After: true},
	}}
	profile, xp := engine.NewLedger(10).AwardIfEarned(domain.Profile{}, delta)
	assert.Zero(t, profile.NeuralXP)
	assert.Equal(t, engine.XPChange{}, xp)
}

// Exercise-driven flips of the aggregate count as a workout completion.
func TestEndToEndExerciseCompletionAwardsOnce(t *testing.T) {
	ledger := engine.NewLedger(10)
	plan := buildPlan(3)
	profile := domain.Profile{}

	toggle := func(i int) engine.Delta {
		next, delta, err := engine.ToggleTask(plan, engine.Task{Week: 1, Day: "Monday", Kind: engine.TaskExercise, Index: i})
		require.NoError(t, err)
		plan = next
		profile, _ = ledger.AwardIfEarned(profile, delta)
		return delta
	}

	delta := toggle(1)
	assert.Len(t, delta.Changes, 1)
	assert.True(t, monday(plan).Workout.Exercises[1].Completed)
	assert.False(t, monday(plan).Workout.Exercises[0].Completed)
	assert.False(t, monday(plan).WorkoutCompleted)
	assert.Zero(t, profile.NeuralXP)

	toggle(0)
	assert.False(t, monday(plan).WorkoutCompleted)
	assert.Zero(t, profile.NeuralXP)

	delta = toggle(2)
	assert.True(t, monday(plan).WorkoutCompleted)
	assert.Len(t, delta.Completed(engine.TaskWorkout), 1)
	assert.Equal(t, 10, profile.NeuralXP)
}
