package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"alcyxob/neuralfit/internal/domain"
	"alcyxob/neuralfit/internal/engine"
	"alcyxob/neuralfit/internal/generator"
	"alcyxob/neuralfit/internal/migration"
	"alcyxob/neuralfit/internal/repository"
	"alcyxob/neuralfit/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// TrackerHandler serves the plan, progression and library endpoints.
type TrackerHandler struct {
	tracker *service.Tracker
	log     zerolog.Logger
}

func NewTrackerHandler(tracker *service.Tracker, logger zerolog.Logger) *TrackerHandler {
	return &TrackerHandler{tracker: tracker, log: logger.With().Str("component", "api").Logger()}
}

// --- Request/Response Structs ---

type ToggleTaskRequest struct {
	WeekNumber int    `json:"weekNumber" binding:"required,min=1"`
	DayOfWeek  string `json:"dayOfWeek" binding:"required"`
	TaskType   string `json:"taskType" binding:"required"`
	TaskIndex  *int   `json:"taskIndex" binding:"omitempty,min=0"`
}

type CurrentWeekRequest struct {
	Week int `json:"week" binding:"required,min=1"`
}

type CompleteWorkoutRequest struct {
	WorkoutID     string  `json:"workoutId" binding:"required"`
	Name          string  `json:"name"`
	Duration      string  `json:"duration"`
	TotalCalories float64 `json:"totalCalories" binding:"omitempty,min=0"`
}

type HydrationRequest struct {
	Amount int `json:"amount" binding:"required"`
}

type HydrationResponse struct {
	Hydration int `json:"hydration"`
}

type MealLogRequest struct {
	Name     string  `json:"name" binding:"required"`
	Food     string  `json:"food"`
	Type     string  `json:"type"`
	Calories float64 `json:"calories" binding:"min=0"`
	Protein  float64 `json:"protein" binding:"min=0"`
	Carbs    float64 `json:"carbs" binding:"min=0"`
	Fats     float64 `json:"fats" binding:"min=0"`
}

type WeightRequest struct {
	Weight float64 `json:"weight" binding:"required,gt=0"`
}

type ManualWorkoutRequest struct {
	Name    string                 `json:"name" binding:"required"`
	Details map[string]interface{} `json:"details"`
}

type ProfileRequest struct {
	Name             *string `json:"name" binding:"omitempty,min=1"`
	Goal             *string `json:"goal"`
	TargetCalories   *int    `json:"targetCalories" binding:"omitempty,gt=0"`
	SubscriptionTier *string `json:"subscriptionTier" binding:"omitempty,oneof=free pro advanced"`
}

// LibraryResponse lists both halves of one library domain.
type LibraryResponse struct {
	Manual []domain.LibraryEntry `json:"manual"`
	AI     []domain.LibraryEntry `json:"ai"`
}

// --- Helpers ---

// session resolves the caller's session, writing the error response itself.
func (h *TrackerHandler) session(c *gin.Context) (*service.Session, bool) {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify user.")
		return nil, false
	}
	s, err := h.tracker.Session(c.Request.Context(), userID)
	if err != nil {
		h.respondError(c, err)
		return nil, false
	}
	return s, true
}

// respondError maps service and engine errors to HTTP statuses.
func (h *TrackerHandler) respondError(c *gin.Context, err error) {
	var status int
	switch {
	case errors.Is(err, service.ErrInvalidInput), errors.Is(err, repository.ErrInvalidID):
		status = http.StatusBadRequest
	case errors.Is(err, service.ErrSubscriptionRequired):
		status = http.StatusForbidden
	case errors.Is(err, domain.ErrNoActivePlan),
		errors.Is(err, domain.ErrDayNotFound),
		errors.Is(err, domain.ErrTaskNotFound),
		errors.Is(err, service.ErrLibraryEntryNotFound),
		errors.Is(err, service.ErrArchiveNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrPlanRange):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrSchema):
		// The generator answered with something unusable.
		status = http.StatusBadGateway
	case errors.Is(err, service.ErrArchivingDisabled):
		status = http.StatusNotImplemented
	case errors.Is(err, service.ErrSessionClosed):
		status = http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	default:
		h.log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("request failed")
		abortWithError(c, http.StatusInternalServerError, "An unexpected error occurred")
		return
	}
	abortWithError(c, status, err.Error())
}

// respondGenerationError is respondError for calls to the generator, where
// unclassified failures come from the upstream service.
func (h *TrackerHandler) respondGenerationError(c *gin.Context, err error) {
	var statusErr *generator.StatusError
	if errors.As(err, &statusErr) {
		h.log.Warn().Err(err).Msg("generation upstream failed")
		abortWithError(c, http.StatusBadGateway, "Generation service unavailable")
		return
	}
	h.respondError(c, err)
}

// --- Plan ---

// GetPlan godoc
// @Summary Current training plan
// @Tags Plan
// @Produce json
// @Security BearerAuth
// @Success 200 {object} domain.Plan
// @Failure 404 {object} gin.H "No active plan"
// @Router /plan [get]
func (h *TrackerHandler) GetPlan(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	doc, err := s.Snapshot(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	if doc.TrainingPlan == nil {
		h.respondError(c, domain.ErrNoActivePlan)
		return
	}
	c.JSON(http.StatusOK, doc.TrainingPlan)
}

// GeneratePlan godoc
// @Summary Generate a new training plan
// @Description Replaces the current plan. On failure the current plan is kept.
// @Tags Plan
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param prefs body generator.PlanPreferences false "Plan preferences"
// @Success 201 {object} domain.Plan
// @Failure 403 {object} gin.H "Subscription tier too low"
// @Failure 502 {object} gin.H "Generator failed or returned an invalid plan"
// @Router /plan/generate [post]
func (h *TrackerHandler) GeneratePlan(c *gin.Context) {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify user.")
		return
	}
	var prefs generator.PlanPreferences
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&prefs); err != nil {
			abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
			return
		}
	}
	plan, err := h.tracker.GeneratePlan(c.Request.Context(), userID, prefs)
	if err != nil {
		h.respondGenerationError(c, err)
		return
	}
	c.JSON(http.StatusCreated, plan)
}

// Today godoc
// @Summary Today's scheduled tasks
// @Tags Plan
// @Produce json
// @Security BearerAuth
// @Success 200 {object} service.TodayTasks
// @Router /plan/today [get]
func (h *TrackerHandler) Today(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	today, err := s.Today(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, today)
}

// ProgressAnalysis godoc
// @Summary Score progress against the current plan
// @Description Summarises workout, calorie and weight history and asks the generator for an assessment.
// @Tags Plan
// @Produce json
// @Security BearerAuth
// @Success 200 {object} generator.ProgressAnalysis
// @Failure 403 {object} gin.H "Subscription tier too low"
// @Failure 502 {object} gin.H "Generator failed or returned an invalid analysis"
// @Router /plan/analysis [get]
func (h *TrackerHandler) ProgressAnalysis(c *gin.Context) {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify user.")
		return
	}
	analysis, err := h.tracker.AnalyzeProgress(c.Request.Context(), userID)
	if err != nil {
		h.respondGenerationError(c, err)
		return
	}
	c.JSON(http.StatusOK, analysis)
}

// Motivation godoc
// @Summary Short motivation for today's session
// @Tags Plan
// @Produce json
// @Security BearerAuth
// @Success 200 {object} gin.H "motivation"
// @Failure 403 {object} gin.H "Subscription tier too low"
// @Router /plan/motivation [get]
func (h *TrackerHandler) Motivation(c *gin.Context) {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify user.")
		return
	}
	line, err := h.tracker.DailyMotivation(c.Request.Context(), userID)
	if err != nil {
		h.respondGenerationError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"motivation": line})
}

// ToggleTask godoc
// @Summary Toggle a completion flag
// @Description Flips a workout, exercise, meal, hydration or sleep flag and awards XP for completed day-level tasks.
// @Tags Plan
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param task body ToggleTaskRequest true "Task address"
// @Success 200 {object} service.ToggleResult
// @Failure 404 {object} gin.H "Day or task not found"
// @Failure 422 {object} gin.H "Week out of range"
// @Router /plan/tasks/toggle [post]
func (h *TrackerHandler) ToggleTask(c *gin.Context) {
	var req ToggleTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}
	kind, err := engine.ParseTaskKind(req.TaskType)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, err.Error())
		return
	}
	task := engine.Task{Week: req.WeekNumber, Day: req.DayOfWeek, Kind: kind}
	if kind.Indexed() {
		if req.TaskIndex == nil {
			abortWithError(c, http.StatusBadRequest, fmt.Sprintf("taskIndex is required for %s tasks", kind))
			return
		}
		task.Index = *req.TaskIndex
	}

	s, ok := h.session(c)
	if !ok {
		return
	}
	res, err := s.ToggleTask(c.Request.Context(), task)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// SetCurrentWeek moves the plan to another week.
func (h *TrackerHandler) SetCurrentWeek(c *gin.Context) {
	var req CurrentWeekRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}
	s, ok := h.session(c)
	if !ok {
		return
	}
	if err := s.SetCurrentWeek(c.Request.Context(), req.Week); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"currentWeek": req.Week})
}

// ListArchives returns the user's replaced plans.
func (h *TrackerHandler) ListArchives(c *gin.Context) {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify user.")
		return
	}
	archives, err := h.tracker.ListArchives(c.Request.Context(), userID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, archives)
}

// GetArchive godoc
// @Summary Download link for an archived plan
// @Tags Plan
// @Produce json
// @Security BearerAuth
// @Param planId path string true "Archived plan id"
// @Success 200 {object} domain.PlanArchive
// @Failure 404 {object} gin.H "Archive not found"
// @Router /plan/archives/{planId} [get]
func (h *TrackerHandler) GetArchive(c *gin.Context) {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify user.")
		return
	}
	archive, err := h.tracker.ArchiveDownload(c.Request.Context(), userID, c.Param("planId"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, archive)
}

// --- Progression ---

// CompleteWorkout godoc
// @Summary Log a finished workout
// @Description Records the workout, grants the log award and completes the matching day of the current plan week.
// @Tags Progress
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param workout body CompleteWorkoutRequest true "Finished workout"
// @Success 200 {object} service.LogResult
// @Router /workouts/complete [post]
func (h *TrackerHandler) CompleteWorkout(c *gin.Context) {
	var req CompleteWorkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}
	s, ok := h.session(c)
	if !ok {
		return
	}
	res, err := s.LogWorkout(c.Request.Context(), service.WorkoutLog{
		WorkoutID: req.WorkoutID,
		Name:      req.Name,
		Duration:  req.Duration,
		Calories:  req.TotalCalories,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// UpdateHydration adds (or with a negative amount removes) logged water.
func (h *TrackerHandler) UpdateHydration(c *gin.Context) {
	var req HydrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}
	s, ok := h.session(c)
	if !ok {
		return
	}
	total, err := s.UpdateHydration(c.Request.Context(), req.Amount)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, HydrationResponse{Hydration: total})
}

func (h *TrackerHandler) LogMeal(c *gin.Context) {
	var req MealLogRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}
	s, ok := h.session(c)
	if !ok {
		return
	}
	entry, err := s.AddMealEntry(c.Request.Context(), service.MealLog{
		Name:     req.Name,
		Food:     req.Food,
		Type:     req.Type,
		Calories: req.Calories,
		Protein:  req.Protein,
		Carbs:    req.Carbs,
		Fats:     req.Fats,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, entry)
}

func (h *TrackerHandler) AddWeight(c *gin.Context) {
	var req WeightRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}
	s, ok := h.session(c)
	if !ok {
		return
	}
	entry, err := s.AddWeightEntry(c.Request.Context(), req.Weight)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, entry)
}

// --- Library ---

func (h *TrackerHandler) library(c *gin.Context, d migration.Domain) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	doc, err := s.Snapshot(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	resp := LibraryResponse{Manual: doc.ManualMeals, AI: doc.AIMeals}
	if d == migration.DomainWorkouts {
		resp = LibraryResponse{Manual: doc.ManualWorkouts, AI: doc.AIWorkouts}
	}
	c.JSON(http.StatusOK, resp)
}

func (h *TrackerHandler) GetMealLibrary(c *gin.Context)    { h.library(c, migration.DomainMeals) }
func (h *TrackerHandler) GetWorkoutLibrary(c *gin.Context) { h.library(c, migration.DomainWorkouts) }

func (h *TrackerHandler) AddManualWorkout(c *gin.Context) {
	var req ManualWorkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}
	s, ok := h.session(c)
	if !ok {
		return
	}
	entry, err := s.AddManualWorkout(c.Request.Context(), req.Name, req.Details)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, entry)
}

// RemoveLibraryEntry godoc
// @Summary Remove a library entry
// @Tags Library
// @Security BearerAuth
// @Param domain path string true "meals or workouts"
// @Param source path string true "manual or ai"
// @Param id path string true "Entry id"
// @Success 204
// @Failure 404 {object} gin.H "Entry not found"
// @Router /library/{domain}/{source}/{id} [delete]
func (h *TrackerHandler) RemoveLibraryEntry(c *gin.Context) {
	d := migration.Domain(c.Param("domain"))
	if d != migration.DomainMeals && d != migration.DomainWorkouts {
		abortWithError(c, http.StatusBadRequest, "domain must be meals or workouts")
		return
	}
	s, ok := h.session(c)
	if !ok {
		return
	}
	if err := s.RemoveLibraryEntry(c.Request.Context(), d, c.Param("source"), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *TrackerHandler) GenerateMeals(c *gin.Context) {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify user.")
		return
	}
	var prefs generator.DietPreferences
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&prefs); err != nil {
			abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
			return
		}
	}
	entries, err := h.tracker.GenerateDiet(c.Request.Context(), userID, prefs)
	if err != nil {
		h.respondGenerationError(c, err)
		return
	}
	c.JSON(http.StatusCreated, entries)
}

func (h *TrackerHandler) GenerateWorkout(c *gin.Context) {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify user.")
		return
	}
	var prefs generator.WorkoutPreferences
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&prefs); err != nil {
			abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
			return
		}
	}
	entry, err := h.tracker.GenerateWorkout(c.Request.Context(), userID, prefs)
	if err != nil {
		h.respondGenerationError(c, err)
		return
	}
	c.JSON(http.StatusCreated, entry)
}

// --- Profile ---

func (h *TrackerHandler) UpdateProfile(c *gin.Context) {
	var req ProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}
	s, ok := h.session(c)
	if !ok {
		return
	}
	profile, err := s.UpdateProfile(c.Request.Context(), service.ProfileUpdate{
		Name:             req.Name,
		Goal:             req.Goal,
		TargetCalories:   req.TargetCalories,
		SubscriptionTier: req.SubscriptionTier,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

// ResetData clears libraries and histories; the profile and plan stay.
func (h *TrackerHandler) ResetData(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	if err := s.ResetData(c.Request.Context()); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
