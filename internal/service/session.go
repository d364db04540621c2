package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"alcyxob/neuralfit/internal/domain"
	"alcyxob/neuralfit/internal/engine"
	"alcyxob/neuralfit/internal/metrics"
	"alcyxob/neuralfit/internal/migration"
	"alcyxob/neuralfit/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
)

var (
	ErrSessionClosed        = errors.New("tracker session closed")
	ErrLibraryEntryNotFound = errors.New("library entry not found")
)

const dateLayout = "2006-01-02"

// Library sources addressed by RemoveLibraryEntry.
const (
	SourceManual = "manual"
	SourceAI     = "ai"
)

// SessionConfig tunes a Session. Zero values take the defaults.
type SessionConfig struct {
	TaskAward           int
	WorkoutLogAward     int
	DefaultBurnCalories float64
	WriteQueueSize      int
	WriteTimeout        time.Duration
	OpenTimeout         time.Duration // bounds the first load
	IdleTimeout         time.Duration // Tracker closes sessions unused this long; 0 never does
	Location            *time.Location
	Now                 func() time.Time
}

func (c SessionConfig) withDefaults() SessionConfig {
	if c.TaskAward <= 0 {
		c.TaskAward = engine.DefaultTaskAward
	}
	if c.WorkoutLogAward <= 0 {
		c.WorkoutLogAward = 50
	}
	if c.DefaultBurnCalories <= 0 {
		c.DefaultBurnCalories = 400
	}
	if c.WriteQueueSize <= 0 {
		c.WriteQueueSize = 64
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.OpenTimeout <= 0 {
		c.OpenTimeout = 15 * time.Second
	}
	if c.Location == nil {
		c.Location = time.UTC
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

type writeJob struct {
	op      string
	fields  bson.M
	barrier chan struct{}
}

// Session is the live tracker state of one user. Mutations apply to the
// in-memory snapshot first and are persisted by a single writer goroutine in
// the order they were made. A failed write is reported, never rolled back.
type Session struct {
	userID  string
	store   repository.DocumentStore
	cfg     SessionConfig
	ledger  engine.Ledger
	hub     *Hub
	metrics *metrics.Metrics
	log     zerolog.Logger

	ready     chan struct{}
	readyOnce sync.Once
	loadErr   error

	mu     sync.Mutex
	doc    domain.UserDocument
	loaded bool
	closed bool

	errMu   sync.Mutex
	lastErr error

	// pending counts queued writes not yet acknowledged by the store.
	// Snapshots delivered while it is non-zero are stale or our own echo.
	pending     atomic.Int64
	writes      chan writeJob
	writerDone  chan struct{}
	cancel      context.CancelFunc
	unsubscribe func()
}

// OpenSession subscribes to userID's document and returns once the first
// snapshot is loaded and migrated. hub and m may be nil.
func OpenSession(ctx context.Context, userID string, store repository.DocumentStore, cfg SessionConfig, hub *Hub, m *metrics.Metrics, logger zerolog.Logger) (*Session, error) {
	cfg = cfg.withDefaults()
	s := &Session{
		userID:     userID,
		store:      store,
		cfg:        cfg,
		ledger:     engine.NewLedger(cfg.TaskAward),
		hub:        hub,
		metrics:    m,
		log:        logger.With().Str("component", "session").Str("user_id", userID).Logger(),
		ready:      make(chan struct{}),
		writes:     make(chan writeJob, cfg.WriteQueueSize),
		writerDone: make(chan struct{}),
	}
	go s.runWriter()

	subCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	unsubscribe, err := store.Subscribe(subCtx, userID, s.onUpdate)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("subscribe to user document: %w", err)
	}
	s.unsubscribe = unsubscribe

	if err := s.waitReady(ctx); err != nil {
		s.Close()
		return nil, err
	}
	s.log.Debug().Msg("session opened")
	return s, nil
}

// UserID returns the owner of the session.
func (s *Session) UserID() string { return s.userID }

func (s *Session) waitReady(ctx context.Context) error {
	select {
	case <-s.ready:
		return s.loadErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) markReady(err error) {
	s.readyOnce.Do(func() {
		s.loadErr = err
		close(s.ready)
	})
}

// onUpdate receives every snapshot from the store.
func (s *Session) onUpdate(raw bson.M) {
	if s.pending.Load() > 0 {
		return
	}
	doc, result, err := migration.Load(raw)
	if err != nil {
		s.log.Error().Err(err).Msg("decode user document")
		s.markReady(fmt.Errorf("load user document: %w", err))
		return
	}

	s.mu.Lock()
	if s.closed || s.pending.Load() > 0 {
		s.mu.Unlock()
		return
	}
	first := !s.loaded

	fields := bson.M{}
	if result.Migrated() {
		for k, v := range result.WriteBack() {
			fields[k] = v
		}
		s.log.Info().
			Str("meals", string(result.Meals.Source)).
			Str("workouts", string(result.Workouts.Source)).
			Msg("migrated legacy library fields")
	}
	if _, ok := raw["profile"]; !ok {
		doc.Profile = domain.DefaultProfile("")
		fields["profile"] = doc.Profile
	}
	normalizeDocument(&doc)
	s.doc = doc
	s.loaded = true
	if len(fields) > 0 {
		_ = s.enqueueLocked("load", fields)
	}
	s.mu.Unlock()

	if s.metrics != nil {
		for _, d := range []migration.Domain{migration.DomainMeals, migration.DomainWorkouts} {
			s.metrics.RecordMigration(string(d), string(result.Of(d).Source))
		}
	}
	if first {
		s.markReady(nil)
		return
	}
	s.hub.Publish(s.userID, Event{Type: EventSnapshot})
}

func normalizeDocument(doc *domain.UserDocument) {
	if doc.WorkoutHistory == nil {
		doc.WorkoutHistory = []domain.WorkoutLogEntry{}
	}
	if doc.CalorieHistory == nil {
		doc.CalorieHistory = []domain.CalorieDay{}
	}
	if doc.WeightHistory == nil {
		doc.WeightHistory = []domain.WeightEntry{}
	}
}

// enqueueLocked hands fields to the writer. Callers hold s.mu, which keeps
// queue order identical to mutation order.
func (s *Session) enqueueLocked(op string, fields bson.M) error {
	if s.closed {
		return ErrSessionClosed
	}
	s.pending.Add(1)
	s.writes <- writeJob{op: op, fields: fields}
	return nil
}

func (s *Session) runWriter() {
	defer close(s.writerDone)
	for job := range s.writes {
		if job.barrier != nil {
			close(job.barrier)
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.WriteTimeout)
		err := s.store.WriteMerge(ctx, s.userID, job.fields)
		cancel()
		s.pending.Add(-1)
		if err != nil {
			s.reportWriteFailure(job, err)
		}
	}
}

func (s *Session) reportWriteFailure(job writeJob, err error) {
	keys := make([]string, 0, len(job.fields))
	for k := range job.fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	perr := &domain.PersistenceError{UserID: s.userID, Fields: keys, Err: err}

	s.log.Error().Err(err).Str("operation", job.op).Strs("fields", keys).Msg("write-through failed")
	s.errMu.Lock()
	s.lastErr = perr
	s.errMu.Unlock()
	if s.metrics != nil {
		s.metrics.RecordPersistenceError(job.op)
	}
	s.hub.Publish(s.userID, Event{Type: EventPersistenceError, Data: PersistenceErrorEvent{
		Operation: job.op,
		Fields:    keys,
		Message:   err.Error(),
	}})
}

// LastError returns the most recent *domain.PersistenceError, if any.
func (s *Session) LastError() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.lastErr
}

// Flush waits until every write queued before the call has been attempted.
func (s *Session) Flush(ctx context.Context) error {
	done := make(chan struct{})
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	s.writes <- writeJob{barrier: done}
	s.mu.Unlock()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the subscription and drains queued writes. Safe to call twice.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.writes)
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
	s.markReady(ErrSessionClosed)
	<-s.writerDone
	s.log.Debug().Msg("session closed")
}

// mutate runs fn on the live document and queues the fields it returns.
// fn must leave doc untouched when it returns an error.
func (s *Session) mutate(ctx context.Context, op string, fn func(doc *domain.UserDocument) (bson.M, error)) error {
	if err := s.waitReady(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	fields, err := fn(&s.doc)
	if err != nil {
		return err
	}
	if len(fields) == 0 {
		return nil
	}
	return s.enqueueLocked(op, fields)
}

func (s *Session) now() time.Time {
	return s.cfg.Now().In(s.cfg.Location)
}

func (s *Session) publishDelta(delta engine.Delta) {
	for _, c := range delta.Changes {
		if s.metrics != nil {
			s.metrics.RecordToggle(string(c.Kind), c.After)
		}
		s.hub.Publish(s.userID, Event{Type: EventCompletion, Data: c})
	}
}

func (s *Session) publishXP(xp engine.XPChange) {
	if xp.Awarded() <= 0 {
		return
	}
	if s.metrics != nil {
		s.metrics.RecordXP(xp.Awarded())
	}
	s.hub.Publish(s.userID, Event{Type: EventXP, Data: xp})
}

// --- Reads ---

// Snapshot returns a deep copy of the current document.
func (s *Session) Snapshot(ctx context.Context) (domain.UserDocument, error) {
	if err := s.waitReady(ctx); err != nil {
		return domain.UserDocument{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneDocument(s.doc), nil
}

// TodayTasks is the plan day scheduled for the session's current date.
type TodayTasks struct {
	Date       string      `json:"date"`
	WeekNumber int         `json:"weekNumber"`
	Day        *domain.Day `json:"day"`
}

// Today returns today's day of the current plan week.
func (s *Session) Today(ctx context.Context) (TodayTasks, error) {
	if err := s.waitReady(ctx); err != nil {
		return TodayTasks{}, err
	}
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc.TrainingPlan == nil {
		return TodayTasks{}, domain.ErrNoActivePlan
	}
	plan := s.doc.TrainingPlan.Clone()
	day, err := plan.TodayView(now.Weekday().String())
	if err != nil {
		return TodayTasks{}, err
	}
	return TodayTasks{Date: now.Format(dateLayout), WeekNumber: plan.CurrentWeek, Day: day}, nil
}

// --- Plan mutations ---

// ToggleResult is the outcome of a completion toggle.
type ToggleResult struct {
	Delta   engine.Delta     `json:"delta"`
	XP      *engine.XPChange `json:"xp,omitempty"`
	Profile domain.Profile   `json:"profile"`
}

// ToggleTask flips one completion flag and awards XP when earned.
func (s *Session) ToggleTask(ctx context.Context, task engine.Task) (ToggleResult, error) {
	var res ToggleResult
	err := s.mutate(ctx, "toggle_task", func(doc *domain.UserDocument) (bson.M, error) {
		next, delta, err := engine.ToggleTask(doc.TrainingPlan, task)
		if err != nil {
			return nil, err
		}
		profile, xp := s.ledger.AwardIfEarned(doc.Profile, delta)
		doc.TrainingPlan = next
		doc.Profile = profile

		fields := bson.M{"trainingPlan": next}
		if xp.Awarded() > 0 {
			fields["profile.neuralXP"] = profile.NeuralXP
			res.XP = &xp
		}
		res.Delta, res.Profile = delta, profile
		s.publishDelta(delta)
		s.publishXP(xp)
		return fields, nil
	})
	return res, err
}

// WorkoutLog is an ad-hoc workout completion.
type WorkoutLog struct {
	WorkoutID string
	Name      string
	Duration  string
	Calories  float64 // 0 uses the configured default burn
}

// LogResult is the outcome of LogWorkout.
type LogResult struct {
	Entry   domain.WorkoutLogEntry `json:"entry"`
	Deltas  []engine.Delta         `json:"deltas"`
	XP      []engine.XPChange      `json:"xp"`
	Profile domain.Profile         `json:"profile"`
}

// LogWorkout records a finished workout in the history, burns calories,
// grants the log award and a streak point, then marks the matching plan day
// as completed. Every delta of that reconciliation goes through the ledger.
func (s *Session) LogWorkout(ctx context.Context, in WorkoutLog) (LogResult, error) {
	var res LogResult
	err := s.mutate(ctx, "log_workout", func(doc *domain.UserDocument) (bson.M, error) {
		now := s.now()
		date := now.Format(dateLayout)

		plan := doc.TrainingPlan
		var deltas []engine.Delta
		if plan != nil {
			next, ds, err := engine.RecordWorkoutCompletion(plan, now.Weekday().String(), in.WorkoutID)
			switch {
			case errors.Is(err, domain.ErrPlanRange):
				s.log.Warn().Err(err).Msg("current week unavailable, workout not matched against plan")
			case err != nil:
				return nil, err
			default:
				plan, deltas = next, ds
			}
		}

		burned := in.Calories
		if burned <= 0 {
			burned = s.cfg.DefaultBurnCalories
		}
		entry := domain.WorkoutLogEntry{
			Date:      date,
			Timestamp: now,
			WorkoutID: in.WorkoutID,
			Name:      in.Name,
			Duration:  in.Duration,
			Calories:  burned,
			XPAwarded: s.cfg.WorkoutLogAward,
		}

		profile := doc.Profile
		logXP := engine.XPChange{Before: profile.NeuralXP, After: profile.NeuralXP + s.cfg.WorkoutLogAward, Reason: "workout_logged"}
		profile.NeuralXP = logXP.After
		profile.Streak++
		xps := []engine.XPChange{logXP}
		for _, d := range deltas {
			var xp engine.XPChange
			profile, xp = s.ledger.AwardIfEarned(profile, d)
			if xp.Awarded() > 0 {
				xps = append(xps, xp)
			}
		}

		history := append(append([]domain.WorkoutLogEntry{}, doc.WorkoutHistory...), entry)
		calories := updateCalorieDay(doc.CalorieHistory, date, func(c *domain.CalorieDay) { c.Burned += burned })

		fields := bson.M{
			"workoutHistory":   history,
			"calorieHistory":   calories,
			"profile.neuralXP": profile.NeuralXP,
			"profile.streak":   profile.Streak,
		}
		if plan != doc.TrainingPlan {
			fields["trainingPlan"] = plan
			doc.TrainingPlan = plan
		}
		doc.WorkoutHistory = history
		doc.CalorieHistory = calories
		doc.Profile = profile

		res = LogResult{Entry: entry, Deltas: deltas, XP: xps, Profile: profile}
		for _, d := range deltas {
			s.publishDelta(d)
		}
		for _, xp := range xps {
			s.publishXP(xp)
		}
		return fields, nil
	})
	return res, err
}

// SetCurrentWeek moves the plan to week, 1-indexed.
func (s *Session) SetCurrentWeek(ctx context.Context, week int) error {
	return s.mutate(ctx, "set_current_week", func(doc *domain.UserDocument) (bson.M, error) {
		if doc.TrainingPlan == nil {
			return nil, domain.ErrNoActivePlan
		}
		if _, err := doc.TrainingPlan.WeekAt(week); err != nil {
			return nil, err
		}
		next := doc.TrainingPlan.Clone()
		next.CurrentWeek = week
		doc.TrainingPlan = next
		return bson.M{"trainingPlan.currentWeek": week}, nil
	})
}

// ReplacePlan installs plan and returns the one it replaced (nil when none).
// Scheduled workouts and meals without ids get one, and the plan's meals
// are added to the generated meal library unless an entry with the same id
// is already there.
func (s *Session) ReplacePlan(ctx context.Context, plan *domain.Plan) (*domain.Plan, error) {
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	installed := plan.Clone()
	installed.AssignMissingIDs()
	meals := installed.MealEntries()

	var previous *domain.Plan
	err := s.mutate(ctx, "replace_plan", func(doc *domain.UserDocument) (bson.M, error) {
		previous = doc.TrainingPlan.Clone()
		doc.TrainingPlan = installed
		fields := bson.M{"trainingPlan": installed}

		known := make(map[domain.EntryID]bool, len(doc.AIMeals))
		for _, e := range doc.AIMeals {
			known[e.ID] = true
		}
		var added []domain.LibraryEntry
		for _, e := range meals {
			if !known[e.ID] {
				added = append(added, e)
			}
		}
		if len(added) > 0 {
			library := make([]domain.LibraryEntry, 0, len(doc.AIMeals)+len(added))
			library = append(append(library, doc.AIMeals...), added...)
			doc.AIMeals = library
			fields[migration.FieldAIMeals] = library
		}
		return fields, nil
	})
	if err != nil {
		return nil, err
	}
	ev := PlanReplacedEvent{PlanID: installed.PlanID}
	if previous != nil {
		ev.PreviousPlanID = previous.PlanID
	}
	s.hub.Publish(s.userID, Event{Type: EventPlanReplaced, Data: ev})
	return previous, nil
}

// --- Profile and daily counters ---

// UpdateHydration adds amount (may be negative) to today's hydration,
// never going below zero.
func (s *Session) UpdateHydration(ctx context.Context, amount int) (int, error) {
	var total int
	err := s.mutate(ctx, "update_hydration", func(doc *domain.UserDocument) (bson.M, error) {
		total = doc.Profile.Hydration + amount
		if total < 0 {
			total = 0
		}
		doc.Profile.Hydration = total
		return bson.M{"profile.hydration": total}, nil
	})
	return total, err
}

// ProfileUpdate carries the editable profile fields; nil leaves a field as is.
type ProfileUpdate struct {
	Name             *string
	Goal             *string
	TargetCalories   *int
	SubscriptionTier *string
}

// UpdateProfile merges update into the profile.
func (s *Session) UpdateProfile(ctx context.Context, update ProfileUpdate) (domain.Profile, error) {
	if update.TargetCalories != nil && *update.TargetCalories <= 0 {
		return domain.Profile{}, fmt.Errorf("%w: targetCalories must be positive", ErrInvalidInput)
	}
	if t := update.SubscriptionTier; t != nil {
		switch *t {
		case domain.TierFree, domain.TierPro, domain.TierAdvanced:
		default:
			return domain.Profile{}, fmt.Errorf("%w: unknown subscription tier %q", ErrInvalidInput, *t)
		}
	}
	var out domain.Profile
	err := s.mutate(ctx, "update_profile", func(doc *domain.UserDocument) (bson.M, error) {
		fields := bson.M{}
		profile := doc.Profile
		if update.Name != nil {
			profile.Name = strings.TrimSpace(*update.Name)
			fields["profile.name"] = profile.Name
		}
		if update.Goal != nil {
			profile.Goal = *update.Goal
			fields["profile.goal"] = profile.Goal
		}
		if update.TargetCalories != nil {
			profile.TargetCalories = *update.TargetCalories
			fields["profile.targetCalories"] = profile.TargetCalories
		}
		if update.SubscriptionTier != nil {
			profile.SubscriptionTier = *update.SubscriptionTier
			fields["profile.subscriptionTier"] = profile.SubscriptionTier
		}
		doc.Profile = profile
		out = profile
		return fields, nil
	})
	return out, err
}

// --- Nutrition and body weight ---

// MealLog is a meal the user ate.
type MealLog struct {
	Name     string
	Food     string
	Type     string
	Calories float64
	Protein  float64
	Carbs    float64
	Fats     float64
}

// AddMealEntry adds the meal to today's intake and prepends it to the
// manual meal library.
func (s *Session) AddMealEntry(ctx context.Context, meal MealLog) (domain.LibraryEntry, error) {
	if strings.TrimSpace(meal.Name) == "" {
		return domain.LibraryEntry{}, fmt.Errorf("%w: meal name is required", ErrInvalidInput)
	}
	var entry domain.LibraryEntry
	err := s.mutate(ctx, "add_meal", func(doc *domain.UserDocument) (bson.M, error) {
		date := s.now().Format(dateLayout)
		calories := updateCalorieDay(doc.CalorieHistory, date, func(c *domain.CalorieDay) {
			c.Intake += meal.Calories
			c.Protein += meal.Protein
			c.Carbs += meal.Carbs
			c.Fats += meal.Fats
		})
		entry = domain.NewLibraryEntry(uuid.NewString(), meal.Name, false, map[string]interface{}{
			"food":     meal.Food,
			"type":     meal.Type,
			"calories": meal.Calories,
			"protein":  meal.Protein,
			"carbs":    meal.Carbs,
			"fats":     meal.Fats,
			"date":     date,
		})
		manual := append([]domain.LibraryEntry{entry}, doc.ManualMeals...)

		doc.CalorieHistory = calories
		doc.ManualMeals = manual
		return bson.M{migration.FieldManualMeals: manual, "calorieHistory": calories}, nil
	})
	return entry, err
}

// AddWeightEntry records today's weight, replacing an earlier entry of the same day.
func (s *Session) AddWeightEntry(ctx context.Context, weight float64) (domain.WeightEntry, error) {
	if weight <= 0 {
		return domain.WeightEntry{}, fmt.Errorf("%w: weight must be positive", ErrInvalidInput)
	}
	var entry domain.WeightEntry
	err := s.mutate(ctx, "add_weight", func(doc *domain.UserDocument) (bson.M, error) {
		entry = domain.WeightEntry{Date: s.now().Format(dateLayout), Weight: weight}
		history := make([]domain.WeightEntry, 0, len(doc.WeightHistory)+1)
		for _, w := range doc.WeightHistory {
			if w.Date != entry.Date {
				history = append(history, w)
			}
		}
		history = append(history, entry)
		doc.WeightHistory = history
		return bson.M{"weightHistory": history}, nil
	})
	return entry, err
}

func updateCalorieDay(history []domain.CalorieDay, date string, apply func(*domain.CalorieDay)) []domain.CalorieDay {
	out := make([]domain.CalorieDay, len(history), len(history)+1)
	copy(out, history)
	for i := range out {
		if out[i].Date == date {
			apply(&out[i])
			return out
		}
	}
	day := domain.CalorieDay{Date: date}
	apply(&day)
	return append(out, day)
}

// --- Libraries ---

// AddManualWorkout prepends a user-authored workout to the workout library.
func (s *Session) AddManualWorkout(ctx context.Context, name string, fields map[string]interface{}) (domain.LibraryEntry, error) {
	if strings.TrimSpace(name) == "" {
		return domain.LibraryEntry{}, fmt.Errorf("%w: workout name is required", ErrInvalidInput)
	}
	entry := domain.NewLibraryEntry(uuid.NewString(), name, false, fields)
	err := s.mutate(ctx, "add_manual_workout", func(doc *domain.UserDocument) (bson.M, error) {
		manual := append([]domain.LibraryEntry{entry}, doc.ManualWorkouts...)
		doc.ManualWorkouts = manual
		return bson.M{migration.FieldManualWorkouts: manual}, nil
	})
	return entry, err
}

// ReplaceAIMeals swaps the generated meal list.
func (s *Session) ReplaceAIMeals(ctx context.Context, entries []domain.LibraryEntry) error {
	list := markAI(entries)
	return s.mutate(ctx, "replace_ai_meals", func(doc *domain.UserDocument) (bson.M, error) {
		doc.AIMeals = list
		return bson.M{migration.FieldAIMeals: list}, nil
	})
}

// ReplaceAIWorkouts swaps the generated workout list.
func (s *Session) ReplaceAIWorkouts(ctx context.Context, entries []domain.LibraryEntry) error {
	list := markAI(entries)
	return s.mutate(ctx, "replace_ai_workouts", func(doc *domain.UserDocument) (bson.M, error) {
		doc.AIWorkouts = list
		return bson.M{migration.FieldAIWorkouts: list}, nil
	})
}

func markAI(entries []domain.LibraryEntry) []domain.LibraryEntry {
	out := make([]domain.LibraryEntry, len(entries))
	for i, e := range entries {
		e.IsAI = true
		if !strings.HasPrefix(string(e.ID), domain.AIPrefix) {
			e.ID = domain.EntryID(domain.AIPrefix + uuid.NewString())
		}
		out[i] = e
	}
	return out
}

// RemoveLibraryEntry deletes one entry from the list named by d and source.
func (s *Session) RemoveLibraryEntry(ctx context.Context, d migration.Domain, source, id string) error {
	field, err := libraryField(d, source)
	if err != nil {
		return err
	}
	return s.mutate(ctx, "remove_library_entry", func(doc *domain.UserDocument) (bson.M, error) {
		list := libraryList(doc, field)
		kept := make([]domain.LibraryEntry, 0, len(*list))
		for _, e := range *list {
			if string(e.ID) != id {
				kept = append(kept, e)
			}
		}
		if len(kept) == len(*list) {
			return nil, fmt.Errorf("%w: %s/%s/%s", ErrLibraryEntryNotFound, d, source, id)
		}
		*list = kept
		return bson.M{field: kept}, nil
	})
}

func libraryField(d migration.Domain, source string) (string, error) {
	switch {
	case d == migration.DomainMeals && source == SourceManual:
		return migration.FieldManualMeals, nil
	case d == migration.DomainMeals && source == SourceAI:
		return migration.FieldAIMeals, nil
	case d == migration.DomainWorkouts && source == SourceManual:
		return migration.FieldManualWorkouts, nil
	case d == migration.DomainWorkouts && source == SourceAI:
		return migration.FieldAIWorkouts, nil
	}
	return "", fmt.Errorf("%w: unknown library %s/%s", ErrInvalidInput, d, source)
}

func libraryList(doc *domain.UserDocument, field string) *[]domain.LibraryEntry {
	switch field {
	case migration.FieldManualMeals:
		return &doc.ManualMeals
	case migration.FieldAIMeals:
		return &doc.AIMeals
	case migration.FieldManualWorkouts:
		return &doc.ManualWorkouts
	default:
		return &doc.AIWorkouts
	}
}

// ResetData clears libraries and histories. Profile and plan are kept.
func (s *Session) ResetData(ctx context.Context) error {
	return s.mutate(ctx, "reset_data", func(doc *domain.UserDocument) (bson.M, error) {
		doc.ManualMeals = []domain.LibraryEntry{}
		doc.AIMeals = []domain.LibraryEntry{}
		doc.ManualWorkouts = []domain.LibraryEntry{}
		doc.AIWorkouts = []domain.LibraryEntry{}
		doc.WorkoutHistory = []domain.WorkoutLogEntry{}
		doc.CalorieHistory = []domain.CalorieDay{}
		doc.WeightHistory = []domain.WeightEntry{}
		return bson.M{
			migration.FieldManualMeals:    doc.ManualMeals,
			migration.FieldAIMeals:        doc.AIMeals,
			migration.FieldManualWorkouts: doc.ManualWorkouts,
			migration.FieldAIWorkouts:     doc.AIWorkouts,
			"workoutHistory":              doc.WorkoutHistory,
			"calorieHistory":              doc.CalorieHistory,
			"weightHistory":               doc.WeightHistory,
		}, nil
	})
}

func cloneDocument(doc domain.UserDocument) domain.UserDocument {
	out := doc
	out.TrainingPlan = doc.TrainingPlan.Clone()
	out.ManualMeals = cloneEntries(doc.ManualMeals)
	out.AIMeals = cloneEntries(doc.AIMeals)
	out.ManualWorkouts = cloneEntries(doc.ManualWorkouts)
	out.AIWorkouts = cloneEntries(doc.AIWorkouts)
	out.WorkoutHistory = append([]domain.WorkoutLogEntry{}, doc.WorkoutHistory...)
	out.CalorieHistory = append([]domain.CalorieDay{}, doc.CalorieHistory...)
	out.WeightHistory = append([]domain.WeightEntry{}, doc.WeightHistory...)
	return out
}

// cloneEntries copies the list and each entry's top-level field map.
func cloneEntries(in []domain.LibraryEntry) []domain.LibraryEntry {
	out := make([]domain.LibraryEntry, len(in))
	for i, e := range in {
		fields := make(bson.M, len(e.Fields))
		for k, v := range e.Fields {
			fields[k] = v
		}
		e.Fields = fields
		out[i] = e
	}
	return out
}
