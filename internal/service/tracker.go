package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"alcyxob/neuralfit/internal/domain"
	"alcyxob/neuralfit/internal/generator"
	"alcyxob/neuralfit/internal/metrics"
	"alcyxob/neuralfit/internal/repository"
	"alcyxob/neuralfit/internal/storage"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/sync/singleflight"
)

var (
	ErrSubscriptionRequired = errors.New("subscription tier does not include this feature")
	ErrArchivingDisabled    = errors.New("plan archiving is not configured")
	ErrArchiveNotFound      = errors.New("plan archive not found")
)

// ContentGenerator produces plans, library entries and progress insights.
type ContentGenerator interface {
	GeneratePlan(ctx context.Context, profile domain.Profile, prefs generator.PlanPreferences) (*domain.Plan, error)
	GenerateDiet(ctx context.Context, prefs generator.DietPreferences) ([]domain.LibraryEntry, error)
	GenerateWorkout(ctx context.Context, prefs generator.WorkoutPreferences) (domain.LibraryEntry, error)
	AnalyzeProgress(ctx context.Context, summary generator.ProgressSummary) (generator.ProgressAnalysis, error)
	DailyMotivation(ctx context.Context, profile domain.Profile, today *domain.Day) (string, error)
}

// Tracker owns one Session per user and runs the operations that reach
// outside a session: content generation and plan archiving.
type Tracker struct {
	store    repository.DocumentStore
	archives repository.PlanArchiveRepository
	files    storage.FileStorage
	gen      ContentGenerator
	hub      *Hub
	metrics  *metrics.Metrics
	cfg      SessionConfig
	log      zerolog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
	lastUsed map[string]time.Time
	opening  singleflight.Group
}

// TrackerDeps wires a Tracker. Archives and Files may be nil to disable archiving.
type TrackerDeps struct {
	Store     repository.DocumentStore
	Archives  repository.PlanArchiveRepository
	Files     storage.FileStorage
	Generator ContentGenerator
	Hub       *Hub
	Metrics   *metrics.Metrics
}

func NewTracker(deps TrackerDeps, cfg SessionConfig, logger zerolog.Logger) *Tracker {
	cfg = cfg.withDefaults()
	return &Tracker{
		store:    deps.Store,
		archives: deps.Archives,
		files:    deps.Files,
		gen:      deps.Generator,
		hub:      deps.Hub,
		metrics:  deps.Metrics,
		cfg:      cfg,
		log:      logger.With().Str("component", "tracker").Logger(),
		sessions: make(map[string]*Session),
		lastUsed: make(map[string]time.Time),
	}
}

// Hub returns the event hub sessions publish to.
func (t *Tracker) Hub() *Hub { return t.hub }

// Session returns the live session of userID, opening it on first use.
// Concurrent first calls share one open. The open itself is detached from
// ctx, so a caller that gives up does not fail the others waiting on it.
func (t *Tracker) Session(ctx context.Context, userID string) (*Session, error) {
	if _, err := parseObjectID(userID); err != nil {
		return nil, err
	}
	if s := t.lookup(userID); s != nil {
		return s, nil
	}
	ch := t.opening.DoChan(userID, func() (interface{}, error) {
		if s := t.lookup(userID); s != nil {
			return s, nil
		}
		openCtx, cancel := context.WithTimeout(context.Background(), t.cfg.OpenTimeout)
		defer cancel()
		s, err := OpenSession(openCtx, userID, t.store, t.cfg, t.hub, t.metrics, t.log)
		if err != nil {
			return nil, err
		}
		t.mu.Lock()
		t.sessions[userID] = s
		t.lastUsed[userID] = t.cfg.Now()
		t.mu.Unlock()
		if t.metrics != nil {
			t.metrics.ActiveSessions.Inc()
		}
		return s, nil
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Session), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// lookup returns the open session of userID and marks it as used.
func (t *Tracker) lookup(userID string) *Session {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.sessions[userID]
	if s != nil {
		t.lastUsed[userID] = t.cfg.Now()
	}
	return s
}

// CloseSession drains and forgets the session of userID.
func (t *Tracker) CloseSession(userID string) {
	t.mu.Lock()
	s, ok := t.sessions[userID]
	delete(t.sessions, userID)
	delete(t.lastUsed, userID)
	t.mu.Unlock()
	if !ok {
		return
	}
	s.Close()
	if t.metrics != nil {
		t.metrics.ActiveSessions.Dec()
	}
}

// EvictIdle closes the sessions not used for longer than the idle timeout
// and returns how many it closed. Sessions with live event subscribers stay
// open.
func (t *Tracker) EvictIdle() int {
	if t.cfg.IdleTimeout <= 0 {
		return 0
	}
	cutoff := t.cfg.Now().Add(-t.cfg.IdleTimeout)

	t.mu.Lock()
	var idle []*Session
	for id, s := range t.sessions {
		if t.lastUsed[id].After(cutoff) {
			continue
		}
		if t.hub != nil && t.hub.Subscribers(id) > 0 {
			continue
		}
		delete(t.sessions, id)
		delete(t.lastUsed, id)
		idle = append(idle, s)
	}
	t.mu.Unlock()

	for _, s := range idle {
		s.Close()
		t.log.Debug().Str("user_id", s.UserID()).Msg("idle session closed")
		if t.metrics != nil {
			t.metrics.ActiveSessions.Dec()
			t.metrics.SessionEvictions.Inc()
		}
	}
	return len(idle)
}

// RunReaper evicts idle sessions every interval until ctx ends. A
// non-positive interval checks four times per idle timeout.
func (t *Tracker) RunReaper(ctx context.Context, interval time.Duration) {
	if t.cfg.IdleTimeout <= 0 {
		return
	}
	if interval <= 0 {
		interval = t.cfg.IdleTimeout / 4
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := t.EvictIdle(); n > 0 {
				t.log.Info().Int("closed", n).Msg("evicted idle sessions")
			}
		}
	}
}

// Close drains every open session.
func (t *Tracker) Close() {
	t.mu.Lock()
	ids := make([]string, 0, len(t.sessions))
	for id := range t.sessions {
		ids = append(ids, id)
	}
	t.mu.Unlock()
	for _, id := range ids {
		t.CloseSession(id)
	}
	t.log.Info().Int("sessions", len(ids)).Msg("tracker sessions closed")
}

// --- Generation ---

func (t *Tracker) recordGeneration(kind string, err error) {
	if t.metrics == nil {
		return
	}
	status := "ok"
	switch {
	case errors.Is(err, domain.ErrSchema):
		status = "schema_error"
	case err != nil:
		status = "provider_error"
	}
	t.metrics.RecordGeneration(kind, status)
}

// GeneratePlan generates and installs a new plan for userID. On any failure
// the current plan stays in place. The replaced plan is archived when
// archiving is configured; archive failures are logged, not returned.
func (t *Tracker) GeneratePlan(ctx context.Context, userID string, prefs generator.PlanPreferences) (*domain.Plan, error) {
	s, err := t.Session(ctx, userID)
	if err != nil {
		return nil, err
	}
	doc, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	if doc.Profile.SubscriptionTier != domain.TierAdvanced {
		return nil, fmt.Errorf("%w: training plans need the %s tier", ErrSubscriptionRequired, domain.TierAdvanced)
	}

	plan, err := t.gen.GeneratePlan(ctx, doc.Profile, prefs)
	t.recordGeneration("plan", err)
	if err != nil {
		return nil, err
	}
	previous, err := s.ReplacePlan(ctx, plan)
	if err != nil {
		return nil, err
	}
	if previous != nil {
		if _, err := t.archivePlan(ctx, userID, previous); err != nil && !errors.Is(err, ErrArchivingDisabled) {
			t.log.Error().Err(err).Str("user_id", userID).Str("plan_id", previous.PlanID).Msg("archive replaced plan")
		}
	}
	return plan, nil
}

// GenerateDiet replaces the AI meal list with a generated day of meals.
func (t *Tracker) GenerateDiet(ctx context.Context, userID string, prefs generator.DietPreferences) ([]domain.LibraryEntry, error) {
	s, err := t.Session(ctx, userID)
	if err != nil {
		return nil, err
	}
	if prefs.Calories <= 0 {
		doc, err := s.Snapshot(ctx)
		if err != nil {
			return nil, err
		}
		prefs.Calories = doc.Profile.TargetCalories
	}
	entries, err := t.gen.GenerateDiet(ctx, prefs)
	t.recordGeneration("diet", err)
	if err != nil {
		return nil, err
	}
	if err := s.ReplaceAIMeals(ctx, entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// GenerateWorkout replaces the AI workout list with one generated routine.
// Free accounts cannot generate workouts.
func (t *Tracker) GenerateWorkout(ctx context.Context, userID string, prefs generator.WorkoutPreferences) (domain.LibraryEntry, error) {
	s, err := t.Session(ctx, userID)
	if err != nil {
		return domain.LibraryEntry{}, err
	}
	doc, err := s.Snapshot(ctx)
	if err != nil {
		return domain.LibraryEntry{}, err
	}
	if doc.Profile.SubscriptionTier == "" || doc.Profile.SubscriptionTier == domain.TierFree {
		return domain.LibraryEntry{}, fmt.Errorf("%w: workout generation needs a paid tier", ErrSubscriptionRequired)
	}
	entry, err := t.gen.GenerateWorkout(ctx, prefs)
	t.recordGeneration("workout", err)
	if err != nil {
		return domain.LibraryEntry{}, err
	}
	if err := s.ReplaceAIWorkouts(ctx, []domain.LibraryEntry{entry}); err != nil {
		return domain.LibraryEntry{}, err
	}
	return entry, nil
}

// AnalyzeProgress scores the user's histories against the current plan.
// Advanced tier only.
func (t *Tracker) AnalyzeProgress(ctx context.Context, userID string) (generator.ProgressAnalysis, error) {
	doc, err := t.advancedSnapshot(ctx, userID, "progress analysis")
	if err != nil {
		return generator.ProgressAnalysis{}, err
	}
	analysis, err := t.gen.AnalyzeProgress(ctx, generator.SummarizeProgress(doc))
	t.recordGeneration("analysis", err)
	return analysis, err
}

// DailyMotivation returns a short line for today's session, or for a rest
// day when no plan is active. Advanced tier only.
func (t *Tracker) DailyMotivation(ctx context.Context, userID string) (string, error) {
	doc, err := t.advancedSnapshot(ctx, userID, "daily motivation")
	if err != nil {
		return "", err
	}
	s, err := t.Session(ctx, userID)
	if err != nil {
		return "", err
	}
	var day *domain.Day
	today, err := s.Today(ctx)
	switch {
	case err == nil:
		day = today.Day
	case !errors.Is(err, domain.ErrNoActivePlan):
		return "", err
	}
	line, err := t.gen.DailyMotivation(ctx, doc.Profile, day)
	t.recordGeneration("motivation", err)
	return line, err
}

// advancedSnapshot returns the user's document when the account is on the
// advanced tier.
func (t *Tracker) advancedSnapshot(ctx context.Context, userID, feature string) (domain.UserDocument, error) {
	s, err := t.Session(ctx, userID)
	if err != nil {
		return domain.UserDocument{}, err
	}
	doc, err := s.Snapshot(ctx)
	if err != nil {
		return domain.UserDocument{}, err
	}
	if doc.Profile.SubscriptionTier != domain.TierAdvanced {
		return domain.UserDocument{}, fmt.Errorf("%w: %s needs the %s tier", ErrSubscriptionRequired, feature, domain.TierAdvanced)
	}
	return doc, nil
}

// --- Archives ---

func (t *Tracker) archivingEnabled() bool {
	return t.files != nil && t.archives != nil
}

// archivePlan uploads plan as JSON and records its metadata.
func (t *Tracker) archivePlan(ctx context.Context, userID string, plan *domain.Plan) (*domain.PlanArchive, error) {
	if !t.archivingEnabled() {
		return nil, ErrArchivingDisabled
	}
	oid, err := parseObjectID(userID)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(plan)
	if err != nil {
		return nil, fmt.Errorf("encode plan: %w", err)
	}

	key := storage.PlanArchiveKey(userID, plan.PlanID)
	const contentType = "application/json"
	if err := t.files.PutObject(ctx, key, contentType, body); err != nil {
		return nil, fmt.Errorf("upload plan archive: %w", err)
	}

	archive := &domain.PlanArchive{
		UserID:      oid,
		PlanID:      plan.PlanID,
		Goal:        plan.Goal,
		Duration:    plan.Duration,
		S3ObjectKey: key,
		ContentType: contentType,
		Size:        int64(len(body)),
		ArchivedAt:  time.Now().UTC(),
	}
	id, err := t.archives.Create(ctx, archive)
	if err != nil {
		if delErr := t.files.DeleteObject(ctx, key); delErr != nil {
			t.log.Warn().Err(delErr).Str("key", key).Msg("remove orphaned plan archive")
		}
		return nil, fmt.Errorf("record plan archive: %w", err)
	}
	archive.ID = id
	t.log.Info().Str("user_id", userID).Str("plan_id", plan.PlanID).Int64("size", archive.Size).Msg("plan archived")
	return archive, nil
}

// ListArchives returns the archived plans of userID, newest first.
func (t *Tracker) ListArchives(ctx context.Context, userID string) ([]domain.PlanArchive, error) {
	if !t.archivingEnabled() {
		return nil, ErrArchivingDisabled
	}
	oid, err := parseObjectID(userID)
	if err != nil {
		return nil, err
	}
	return t.archives.ListByUser(ctx, oid)
}

// ArchiveDownload returns the archive of planID with a presigned download URL.
func (t *Tracker) ArchiveDownload(ctx context.Context, userID, planID string) (*domain.PlanArchive, error) {
	if !t.archivingEnabled() {
		return nil, ErrArchivingDisabled
	}
	oid, err := parseObjectID(userID)
	if err != nil {
		return nil, err
	}
	archive, err := t.archives.GetByPlanID(ctx, oid, planID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrArchiveNotFound
		}
		return nil, err
	}
	url, err := t.files.GeneratePresignedDownloadURL(ctx, archive.S3ObjectKey, storage.DefaultPresignedURLExpiry)
	if err != nil {
		return nil, fmt.Errorf("presign plan archive: %w", err)
	}
	archive.DownloadURL = url
	return archive, nil
}

// parseObjectID converts a hex user id.
func parseObjectID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: %q", repository.ErrInvalidID, id)
	}
	return oid, nil
}
