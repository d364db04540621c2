package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"alcyxob/neuralfit/internal/domain"
	"alcyxob/neuralfit/internal/engine"
	"alcyxob/neuralfit/internal/migration"
	"alcyxob/neuralfit/internal/repository/memory"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

const testUserID = "64b0c0ffee0000000000a001"

// monday10am is a Monday.
var monday10am = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

func testConfig() SessionConfig {
	return SessionConfig{Now: func() time.Time { return monday10am }}
}

// testPlan is a valid one-week plan: Monday trains "wk-mon" with the given
// number of exercises, every other day rests.
func testPlan(exercises int) *domain.Plan {
	week := domain.Week{WeekNumber: 1, Focus: "Base"}
	for _, name := range domain.Weekdays {
		day := domain.Day{DayOfWeek: name, Type: domain.DayTypeRest, Meals: []domain.Meal{}, Hydration: 3000, SleepTarget: 8}
		if name == "Monday" {
			day.Type = domain.DayTypeWorkout
			day.Workout = &domain.Workout{ID: "wk-mon", Name: "Push Day", Duration: "60m"}
			for i := 0; i < exercises; i++ {
				day.Workout.Exercises = append(day.Workout.Exercises, domain.Exercise{Name: "Bench", Sets: 3, Reps: "10"})
			}
			day.Meals = []domain.Meal{{ID: "m1", Name: "Oats", Type: "Breakfast", Calories: 400}}
		}
		week.Days = append(week.Days, day)
	}
	return &domain.Plan{PlanID: "plan_1", Duration: 1, Goal: "strength", CurrentWeek: 1, StartDate: "2026-03-02", Weeks: []domain.Week{week}}
}

func toM(t *testing.T, v interface{}) bson.M {
	t.Helper()
	data, err := bson.Marshal(v)
	require.NoError(t, err)
	var out bson.M
	require.NoError(t, bson.Unmarshal(data, &out))
	return out
}

func seededStore(t *testing.T, doc domain.UserDocument) *memory.DocumentStore {
	t.Helper()
	store := memory.NewDocumentStore()
	require.NoError(t, store.Put(testUserID, toM(t, doc)))
	return store
}

func openTestSession(t *testing.T, store *memory.DocumentStore, hub *Hub) *Session {
	t.Helper()
	s, err := OpenSession(context.Background(), testUserID, store, testConfig(), hub, nil, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

// stored decodes what the store holds right now.
func stored(t *testing.T, store *memory.DocumentStore) domain.UserDocument {
	t.Helper()
	doc, _, err := migration.Load(store.Get(testUserID))
	require.NoError(t, err)
	return doc
}

func flush(t *testing.T, s *Session) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Flush(ctx))
}

func drain(ch <-chan Event) []Event {
	var out []Event
	for {
		select {
		case ev := <-ch:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func eventsOfType(events []Event, typ string) []Event {
	var out []Event
	for _, ev := range events {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

func planDoc() domain.UserDocument {
	return domain.UserDocument{
		Profile:      domain.Profile{Name: "Ann", Goal: "strength", TargetCalories: 2200, SubscriptionTier: domain.TierAdvanced},
		TrainingPlan: testPlan(2),
	}
}

func TestOpenSession_MigratesLegacyLibrary(t *testing.T) {
	store := memory.NewDocumentStore()
	require.NoError(t, store.Put(testUserID, bson.M{
		"profile": bson.M{"name": "Ann"},
		"dietPlan": bson.A{
			bson.M{"id": int64(1700000000000), "name": "Eggs"},
			bson.M{"id": "ai_x", "name": "Salad", "isAI": true},
		},
	}))

	s := openTestSession(t, store, nil)
	snap, err := s.Snapshot(context.Background())
	require.NoError(t, err)
	require.Len(t, snap.ManualMeals, 1)
	require.Len(t, snap.AIMeals, 1)
	assert.Equal(t, domain.EntryID("1700000000000"), snap.ManualMeals[0].ID)
	assert.Equal(t, "Salad", snap.AIMeals[0].Name)

	flush(t, s)
	raw := store.Get(testUserID)
	assert.Contains(t, raw, migration.FieldManualMeals)
	assert.Contains(t, raw, migration.FieldAIMeals)
	assert.Contains(t, raw, migration.FieldDietPlan, "legacy field is kept")
	assert.NotContains(t, raw, migration.FieldManualWorkouts, "workouts had nothing to migrate")

	// A second load takes the current branch and writes nothing.
	writes := len(store.Writes())
	s.Close()
	s2 := openTestSession(t, store, nil)
	flush(t, s2)
	assert.Len(t, store.Writes(), writes)
}

func TestOpenSession_FillsMissingProfile(t *testing.T) {
	store := memory.NewDocumentStore()
	s := openTestSession(t, store, nil)

	snap, err := s.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultProfile(""), snap.Profile)
	assert.NotNil(t, snap.WorkoutHistory)

	flush(t, s)
	assert.Equal(t, "New User", stored(t, store).Profile.Name)
}

func TestToggleTask_PersistsPlanAndXP(t *testing.T) {
	store := seededStore(t, planDoc())
	hub := NewHub(32, zerolog.Nop())
	events, unsubscribe := hub.Subscribe(testUserID)
	defer unsubscribe()
	s := openTestSession(t, store, hub)

	res, err := s.ToggleTask(context.Background(), engine.Task{Week: 1, Day: "Monday", Kind: engine.TaskHydration})
	require.NoError(t, err)
	require.NotNil(t, res.XP)
	assert.Equal(t, 10, res.XP.Awarded())
	assert.Equal(t, 10, res.Profile.NeuralXP)

	flush(t, s)
	doc := stored(t, store)
	assert.True(t, doc.TrainingPlan.Weeks[0].Days[0].HydrationCompleted)
	assert.Equal(t, 10, doc.Profile.NeuralXP)
	assert.Equal(t, "Ann", doc.Profile.Name)

	got := drain(events)
	assert.Len(t, eventsOfType(got, EventCompletion), 1)
	assert.Len(t, eventsOfType(got, EventXP), 1)
}

func TestToggleTask_ExerciseWithoutAward(t *testing.T) {
	s := openTestSession(t, seededStore(t, planDoc()), nil)

	res, err := s.ToggleTask(context.Background(), engine.Task{Week: 1, Day: "Monday", Kind: engine.TaskExercise, Index: 0})
	require.NoError(t, err)
	assert.Nil(t, res.XP)

	res, err = s.ToggleTask(context.Background(), engine.Task{Week: 1, Day: "Monday", Kind: engine.TaskExercise, Index: 1})
	require.NoError(t, err)
	require.NotNil(t, res.XP, "the aggregate flip awards")
	assert.Len(t, res.Delta.Changes, 2)

	snap, err := s.Snapshot(context.Background())
	require.NoError(t, err)
	assert.True(t, snap.TrainingPlan.Weeks[0].Days[0].WorkoutCompleted)
}

func TestToggleTask_ErrorsLeaveStateUntouched(t *testing.T) {
	store := seededStore(t, planDoc())
	s := openTestSession(t, store, nil)
	before := len(store.Writes())

	_, err := s.ToggleTask(context.Background(), engine.Task{Week: 1, Day: "Tuesday", Kind: engine.TaskWorkout})
	assert.ErrorIs(t, err, domain.ErrTaskNotFound)
	_, err = s.ToggleTask(context.Background(), engine.Task{Week: 2, Day: "Monday", Kind: engine.TaskSleep})
	assert.ErrorIs(t, err, domain.ErrPlanRange)

	flush(t, s)
	assert.Len(t, store.Writes(), before)
	snap, err := s.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, snap.Profile.NeuralXP)
}

func TestToggleTask_NoPlan(t *testing.T) {
	s := openTestSession(t, seededStore(t, domain.UserDocument{Profile: domain.DefaultProfile("Ann")}), nil)
	_, err := s.ToggleTask(context.Background(), engine.Task{Week: 1, Day: "Monday", Kind: engine.TaskSleep})
	assert.ErrorIs(t, err, domain.ErrNoActivePlan)
}

func TestRapidTogglesKeepOrder(t *testing.T) {
	store := seededStore(t, planDoc())
	s := openTestSession(t, store, nil)

	task := engine.Task{Week: 1, Day: "Monday", Kind: engine.TaskSleep}
	for i := 0; i < 5; i++ {
		_, err := s.ToggleTask(context.Background(), task)
		require.NoError(t, err)
	}
	flush(t, s)

	doc := stored(t, store)
	assert.True(t, doc.TrainingPlan.Weeks[0].Days[0].SleepCompleted, "odd number of toggles ends completed")
	assert.Equal(t, 30, doc.Profile.NeuralXP, "every completion awards, un-completions never do")
}

func TestPersistenceErrorIsReportedWithoutRevert(t *testing.T) {
	store := seededStore(t, planDoc())
	hub := NewHub(32, zerolog.Nop())
	events, unsubscribe := hub.Subscribe(testUserID)
	defer unsubscribe()
	s := openTestSession(t, store, hub)

	store.FailNext(errors.New("disk full"))
	_, err := s.ToggleTask(context.Background(), engine.Task{Week: 1, Day: "Monday", Kind: engine.TaskHydration})
	require.NoError(t, err, "the toggle itself succeeds optimistically")
	flush(t, s)

	var perr *domain.PersistenceError
	require.ErrorAs(t, s.LastError(), &perr)
	assert.ErrorIs(t, perr, domain.ErrPersistence)
	assert.Equal(t, testUserID, perr.UserID)
	assert.Equal(t, []string{"profile.neuralXP", "trainingPlan"}, perr.Fields)

	snap, err := s.Snapshot(context.Background())
	require.NoError(t, err)
	assert.True(t, snap.TrainingPlan.Weeks[0].Days[0].HydrationCompleted)
	assert.Equal(t, 10, snap.Profile.NeuralXP)

	assert.Len(t, eventsOfType(drain(events), EventPersistenceError), 1)
	assert.False(t, stored(t, store).TrainingPlan.Weeks[0].Days[0].HydrationCompleted)
}

// gatedStore holds every WriteMerge until release is closed.
type gatedStore struct {
	*memory.DocumentStore
	release chan struct{}
}

func (g *gatedStore) WriteMerge(ctx context.Context, userID string, fields bson.M) error {
	<-g.release
	return g.DocumentStore.WriteMerge(ctx, userID, fields)
}

func TestExternalSnapshotIgnoredWhileWritesPending(t *testing.T) {
	inner := seededStore(t, planDoc())
	store := &gatedStore{DocumentStore: inner, release: make(chan struct{})}
	s, err := OpenSession(context.Background(), testUserID, store, testConfig(), nil, nil, zerolog.Nop())
	require.NoError(t, err)
	defer s.Close()

	_, err = s.ToggleTask(context.Background(), engine.Task{Week: 1, Day: "Monday", Kind: engine.TaskSleep})
	require.NoError(t, err)

	// A stale external copy arrives while the toggle is still in flight.
	stale := planDoc()
	stale.Profile.Name = "Stale"
	require.NoError(t, inner.Put(testUserID, toM(t, stale)))

	snap, err := s.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Ann", snap.Profile.Name)
	assert.True(t, snap.TrainingPlan.Weeks[0].Days[0].SleepCompleted)

	close(store.release)
	flush(t, s)
	assert.True(t, stored(t, inner).TrainingPlan.Weeks[0].Days[0].SleepCompleted)
}

func TestExternalSnapshotApplied(t *testing.T) {
	store := seededStore(t, planDoc())
	hub := NewHub(8, zerolog.Nop())
	events, unsubscribe := hub.Subscribe(testUserID)
	defer unsubscribe()
	s := openTestSession(t, store, hub)

	changed := planDoc()
	changed.Profile.Name = "Ann B."
	require.NoError(t, store.Put(testUserID, toM(t, changed)))

	snap, err := s.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Ann B.", snap.Profile.Name)
	assert.Len(t, eventsOfType(drain(events), EventSnapshot), 1)
}

func TestLogWorkout_CompletesScheduledDay(t *testing.T) {
	store := seededStore(t, planDoc())
	s := openTestSession(t, store, nil)

	res, err := s.LogWorkout(context.Background(), WorkoutLog{WorkoutID: "wk-mon", Name: "Push Day", Duration: "60m"})
	require.NoError(t, err)
	assert.Len(t, res.Deltas, 3, "workout toggle plus two exercise toggles")
	assert.Equal(t, 400.0, res.Entry.Calories)
	assert.Equal(t, 50+20, res.Profile.NeuralXP)
	assert.Equal(t, 1, res.Profile.Streak)

	flush(t, s)
	doc := stored(t, store)
	day := doc.TrainingPlan.Weeks[0].Days[0]
	assert.True(t, day.WorkoutCompleted)
	for _, ex := range day.Workout.Exercises {
		assert.True(t, ex.Completed)
	}
	require.Len(t, doc.WorkoutHistory, 1)
	assert.Equal(t, "2026-03-02", doc.WorkoutHistory[0].Date)
	require.Len(t, doc.CalorieHistory, 1)
	assert.Equal(t, 400.0, doc.CalorieHistory[0].Burned)
	assert.Equal(t, 70, doc.Profile.NeuralXP)

	// Logging the same workout again only grants the log award.
	res, err = s.LogWorkout(context.Background(), WorkoutLog{WorkoutID: "wk-mon", Calories: 250})
	require.NoError(t, err)
	assert.Empty(t, res.Deltas)
	assert.Equal(t, 120, res.Profile.NeuralXP)
	snap, err := s.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 650.0, snap.CalorieHistory[0].Burned)
}

func TestLogWorkout_UnscheduledWorkout(t *testing.T) {
	store := seededStore(t, planDoc())
	s := openTestSession(t, store, nil)
	before := len(store.Writes())

	res, err := s.LogWorkout(context.Background(), WorkoutLog{WorkoutID: "manual-7", Name: "Run"})
	require.NoError(t, err)
	assert.Empty(t, res.Deltas)
	assert.Len(t, res.XP, 1)

	flush(t, s)
	writes := store.Writes()[before:]
	require.Len(t, writes, 1)
	assert.NotContains(t, writes[0].Fields, "trainingPlan")
}

func TestUpdateHydrationClampsAtZero(t *testing.T) {
	s := openTestSession(t, seededStore(t, planDoc()), nil)
	total, err := s.UpdateHydration(context.Background(), 500)
	require.NoError(t, err)
	assert.Equal(t, 500, total)
	total, err = s.UpdateHydration(context.Background(), -1200)
	require.NoError(t, err)
	assert.Equal(t, 0, total)
}

func TestAddMealEntry(t *testing.T) {
	store := seededStore(t, planDoc())
	s := openTestSession(t, store, nil)

	_, err := s.AddMealEntry(context.Background(), MealLog{Name: "Eggs", Calories: 300, Protein: 20})
	require.NoError(t, err)
	second, err := s.AddMealEntry(context.Background(), MealLog{Name: "Rice", Calories: 500, Carbs: 90})
	require.NoError(t, err)
	_, err = s.AddMealEntry(context.Background(), MealLog{})
	assert.ErrorIs(t, err, ErrInvalidInput)

	flush(t, s)
	doc := stored(t, store)
	require.Len(t, doc.ManualMeals, 2)
	assert.Equal(t, second.ID, doc.ManualMeals[0].ID, "newest first")
	assert.False(t, doc.ManualMeals[0].IsAI)
	require.Len(t, doc.CalorieHistory, 1)
	assert.Equal(t, 800.0, doc.CalorieHistory[0].Intake)
	assert.Equal(t, 20.0, doc.CalorieHistory[0].Protein)
	assert.Equal(t, 90.0, doc.CalorieHistory[0].Carbs)
}

func TestAddWeightEntryReplacesSameDay(t *testing.T) {
	s := openTestSession(t, seededStore(t, planDoc()), nil)
	_, err := s.AddWeightEntry(context.Background(), 81.5)
	require.NoError(t, err)
	_, err = s.AddWeightEntry(context.Background(), 81.2)
	require.NoError(t, err)
	_, err = s.AddWeightEntry(context.Background(), -3)
	assert.ErrorIs(t, err, ErrInvalidInput)

	snap, err := s.Snapshot(context.Background())
	require.NoError(t, err)
	require.Len(t, snap.WeightHistory, 1)
	assert.Equal(t, 81.2, snap.WeightHistory[0].Weight)
}

func TestLibraryOperations(t *testing.T) {
	store := seededStore(t, planDoc())
	s := openTestSession(t, store, nil)
	ctx := context.Background()

	entry, err := s.AddManualWorkout(ctx, "Leg Day", map[string]interface{}{"duration": "45 mins", "id": "ignored"})
	require.NoError(t, err)
	assert.NotEqual(t, domain.EntryID("ignored"), entry.ID)

	require.NoError(t, s.ReplaceAIWorkouts(ctx, []domain.LibraryEntry{domain.NewLibraryEntry("plain", "Gen", false, nil)}))
	snap, err := s.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, snap.AIWorkouts, 1)
	assert.True(t, snap.AIWorkouts[0].IsAI)
	assert.Regexp(t, "^ai_", string(snap.AIWorkouts[0].ID))

	err = s.RemoveLibraryEntry(ctx, migration.DomainWorkouts, SourceManual, "missing")
	assert.ErrorIs(t, err, ErrLibraryEntryNotFound)
	err = s.RemoveLibraryEntry(ctx, migration.DomainWorkouts, "pinned", string(entry.ID))
	assert.ErrorIs(t, err, ErrInvalidInput)
	require.NoError(t, s.RemoveLibraryEntry(ctx, migration.DomainWorkouts, SourceManual, string(entry.ID)))

	flush(t, s)
	doc := stored(t, store)
	assert.Empty(t, doc.ManualWorkouts)
	assert.Len(t, doc.AIWorkouts, 1)
}

func TestResetDataKeepsProfileAndPlan(t *testing.T) {
	store := seededStore(t, planDoc())
	s := openTestSession(t, store, nil)
	ctx := context.Background()
	_, err := s.LogWorkout(ctx, WorkoutLog{WorkoutID: "x"})
	require.NoError(t, err)
	_, err = s.AddWeightEntry(ctx, 80)
	require.NoError(t, err)

	require.NoError(t, s.ResetData(ctx))
	flush(t, s)
	doc := stored(t, store)
	assert.Empty(t, doc.WorkoutHistory)
	assert.Empty(t, doc.WeightHistory)
	assert.Empty(t, doc.CalorieHistory)
	assert.NotNil(t, doc.TrainingPlan)
	assert.Equal(t, 50, doc.Profile.NeuralXP)
}

func TestUpdateProfile(t *testing.T) {
	s := openTestSession(t, seededStore(t, planDoc()), nil)
	ctx := context.Background()

	name, tier := "  Ann C. ", domain.TierPro
	p, err := s.UpdateProfile(ctx, ProfileUpdate{Name: &name, SubscriptionTier: &tier})
	require.NoError(t, err)
	assert.Equal(t, "Ann C.", p.Name)
	assert.Equal(t, domain.TierPro, p.SubscriptionTier)
	assert.Equal(t, 2200, p.TargetCalories)

	bad := "platinum"
	_, err = s.UpdateProfile(ctx, ProfileUpdate{SubscriptionTier: &bad})
	assert.ErrorIs(t, err, ErrInvalidInput)
	zero := 0
	_, err = s.UpdateProfile(ctx, ProfileUpdate{TargetCalories: &zero})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestTodayAndCurrentWeek(t *testing.T) {
	s := openTestSession(t, seededStore(t, planDoc()), nil)
	ctx := context.Background()

	today, err := s.Today(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2026-03-02", today.Date)
	assert.Equal(t, "Monday", today.Day.DayOfWeek)

	// The returned day is a copy.
	today.Day.HydrationCompleted = true
	again, err := s.Today(ctx)
	require.NoError(t, err)
	assert.False(t, again.Day.HydrationCompleted)

	assert.ErrorIs(t, s.SetCurrentWeek(ctx, 2), domain.ErrPlanRange)
	require.NoError(t, s.SetCurrentWeek(ctx, 1))
}

func TestReplacePlanValidates(t *testing.T) {
	s := openTestSession(t, seededStore(t, planDoc()), nil)
	broken := testPlan(1)
	broken.Weeks[0].Days = broken.Weeks[0].Days[:6]

	_, err := s.ReplacePlan(context.Background(), broken)
	assert.ErrorIs(t, err, domain.ErrSchema)

	next := testPlan(1)
	next.PlanID = "plan_2"
	previous, err := s.ReplacePlan(context.Background(), next)
	require.NoError(t, err)
	assert.Equal(t, "plan_1", previous.PlanID)
}

func TestReplacePlanAddsMealsToLibrary(t *testing.T) {
	doc := planDoc()
	doc.AIMeals = []domain.LibraryEntry{domain.NewLibraryEntry("ai_existing", "Toast", true, nil)}
	store := seededStore(t, doc)
	s := openTestSession(t, store, nil)
	ctx := context.Background()

	next := testPlan(1)
	next.PlanID = "plan_2"
	next.Weeks[0].Days[0].Workout.ID = ""
	next.Weeks[0].Days[0].Meals = append(next.Weeks[0].Days[0].Meals, domain.Meal{Name: "Salad", Type: "Lunch", Calories: 550})
	next.Weeks[0].Days[2].Meals = []domain.Meal{{ID: "m1", Name: "Oats", Calories: 400}}

	_, err := s.ReplacePlan(ctx, next)
	require.NoError(t, err)
	flush(t, s)

	got := stored(t, store)
	monday := got.TrainingPlan.Weeks[0].Days[0]
	assert.True(t, strings.HasPrefix(monday.Workout.ID, "plan_wk1_monday_"))
	require.Len(t, monday.Meals, 2)
	require.NotEmpty(t, monday.Meals[1].ID)

	require.Len(t, got.AIMeals, 3, "m1 is scheduled twice but added once")
	assert.Equal(t, domain.EntryID("ai_existing"), got.AIMeals[0].ID)
	assert.Equal(t, domain.EntryID("ai_m1"), got.AIMeals[1].ID)
	assert.Equal(t, "Oats", got.AIMeals[1].Name)
	assert.True(t, got.AIMeals[1].IsAI)
	assert.Equal(t, 400.0, got.AIMeals[1].Number("calories"))
	assert.Equal(t, domain.EntryID(monday.Meals[1].ID), got.AIMeals[2].ID)
	assert.Equal(t, "Lunch", got.AIMeals[2].Text("type"))

	// Installing the same plan again adds nothing.
	_, err = s.ReplacePlan(ctx, got.TrainingPlan)
	require.NoError(t, err)
	flush(t, s)
	assert.Len(t, stored(t, store).AIMeals, 3)
}

func TestCloseRejectsFurtherMutations(t *testing.T) {
	store := seededStore(t, planDoc())
	s, err := OpenSession(context.Background(), testUserID, store, testConfig(), nil, nil, zerolog.Nop())
	require.NoError(t, err)

	_, err = s.UpdateHydration(context.Background(), 250)
	require.NoError(t, err)
	s.Close()
	s.Close()

	assert.Equal(t, 250, stored(t, store).Profile.Hydration, "queued writes are drained on close")
	_, err = s.UpdateHydration(context.Background(), 250)
	assert.ErrorIs(t, err, ErrSessionClosed)
	assert.ErrorIs(t, s.Flush(context.Background()), ErrSessionClosed)
}
