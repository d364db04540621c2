package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"alcyxob/neuralfit/internal/domain"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cast"
)

// PlanPreferences shape the generated training plan. Zero values take the defaults.
type PlanPreferences struct {
	Duration          int    `json:"duration"` // weeks
	DaysPerWeek       int    `json:"daysPerWeek"`
	Goal              string `json:"goal"`
	Experience        string `json:"experience"`
	Equipment         string `json:"equipment"`
	DietaryPreference string `json:"dietaryPreference"`
}

// MaxPlanWeeks bounds the requested duration.
const MaxPlanWeeks = 16

func (p PlanPreferences) withDefaults(profile domain.Profile) PlanPreferences {
	if p.Duration <= 0 {
		p.Duration = 8
	}
	if p.Duration > MaxPlanWeeks {
		p.Duration = MaxPlanWeeks
	}
	if p.DaysPerWeek <= 0 || p.DaysPerWeek > 7 {
		p.DaysPerWeek = 5
	}
	if p.Goal == "" {
		p.Goal = profile.Goal
	}
	if p.Goal == "" {
		p.Goal = "general_fitness"
	}
	if p.Experience == "" {
		p.Experience = "intermediate"
	}
	if p.Equipment == "" {
		p.Equipment = "full_gym"
	}
	if p.DietaryPreference == "" {
		p.DietaryPreference = "balanced"
	}
	return p
}

// DietPreferences shape a generated day of meals.
type DietPreferences struct {
	DietType string `json:"dietType"`
	Calories int    `json:"calories"`
}

// WorkoutPreferences shape a generated workout routine.
type WorkoutPreferences struct {
	Type     string `json:"type"`
	Duration string `json:"duration"`
}

// Generator builds prompts, calls the provider and validates what comes back.
type Generator struct {
	provider Provider
	now      func() time.Time
	log      zerolog.Logger
}

// Option configures a Generator.
type Option func(*Generator)

// WithClock sets the clock used for startDate and createdAt.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) { g.now = now }
}

func New(provider Provider, logger zerolog.Logger, opts ...Option) *Generator {
	g := &Generator{provider: provider, now: time.Now, log: logger.With().Str("component", "generator").Logger()}
	for _, o := range opts {
		o(g)
	}
	return g
}

// GeneratePlan asks for a full plan and returns it normalised and validated.
// Any shape deviation is domain.ErrSchema.
func (g *Generator) GeneratePlan(ctx context.Context, profile domain.Profile, prefs PlanPreferences) (*domain.Plan, error) {
	prefs = prefs.withDefaults(profile)
	text, err := g.provider.Complete(ctx, planPrompt(profile, prefs), true)
	if err != nil {
		return nil, fmt.Errorf("generate plan: %w", err)
	}
	plan, err := ParsePlan(text, g.now())
	if err != nil {
		g.log.Warn().Err(err).Int("duration", prefs.Duration).Msg("rejected generated plan")
		return nil, err
	}
	g.log.Info().Str("plan_id", plan.PlanID).Int("weeks", plan.Duration).Msg("plan generated")
	return plan, nil
}

// GenerateDiet returns one day of AI-sourced meal library entries.
func (g *Generator) GenerateDiet(ctx context.Context, prefs DietPreferences) ([]domain.LibraryEntry, error) {
	if prefs.DietType == "" {
		prefs.DietType = "balanced"
	}
	if prefs.Calories <= 0 {
		prefs.Calories = 2000
	}
	prompt := fmt.Sprintf(`Generate a daily diet plan for %s diet, ~%d kcal. Return ONLY JSON: {"meals": [{"name": "Breakfast", "food": "...", "calories": 350, "protein": 20, "carbs": 40, "fats": 10}]}`,
		prefs.DietType, prefs.Calories)

	text, err := g.provider.Complete(ctx, prompt, true)
	if err != nil {
		return nil, fmt.Errorf("generate diet: %w", err)
	}
	return ParseMeals(text)
}

// GenerateWorkout returns a single AI-sourced workout library entry.
func (g *Generator) GenerateWorkout(ctx context.Context, prefs WorkoutPreferences) (domain.LibraryEntry, error) {
	if prefs.Type == "" {
		prefs.Type = "Full Body"
	}
	if prefs.Duration == "" {
		prefs.Duration = "45 mins"
	}
	prompt := fmt.Sprintf(`Generate a workout routine for %s, %s. Return ONLY JSON: {"name": "...", "duration": "...", "exercises": [{"name": "...", "sets": 3, "reps": "10"}]}`,
		prefs.Type, prefs.Duration)

	text, err := g.provider.Complete(ctx, prompt, true)
	if err != nil {
		return domain.LibraryEntry{}, fmt.Errorf("generate workout: %w", err)
	}
	return ParseWorkout(text)
}

func planPrompt(profile domain.Profile, p PlanPreferences) string {
	return fmt.Sprintf(`You are an expert fitness coach. Generate a %d-week training plan with %d workout days per week.
User: %s, Goal: %s, Experience: %s, Equipment: %s, Diet: %s.
Every week lists all 7 days (Monday to Sunday); rest days have "type": "rest" and no workout.

Return ONLY valid JSON:
{
  "duration": %d,
  "goal": "%s",
  "targetCalories": 2200,
  "targetMacros": { "protein": 150, "carbs": 250, "fats": 70 },
  "weeks": [
    {
      "weekNumber": 1,
      "focus": "Consistency",
      "milestone": "Complete week 1",
      "days": [
        {
          "dayOfWeek": "Monday",
          "type": "workout",
          "workout": { "name": "Push Day", "duration": "60m", "exercises": [{"name": "Bench Press", "sets": 3, "reps": "10"}] },
          "meals": [{"type": "Breakfast", "name": "Oats", "food": "Oats, Milk", "calories": 400, "protein": 15, "carbs": 60, "fats": 8}],
          "hydration": 3000,
          "sleepTarget": 8
        }
      ]
    }
  ]
}`, p.Duration, p.DaysPerWeek, profile.Name, p.Goal, p.Experience, p.Equipment, p.DietaryPreference, p.Duration, p.Goal)
}

// StripFences removes markdown code fences around a JSON answer.
func StripFences(text string) string {
	text = strings.ReplaceAll(text, "```json", "")
	text = strings.ReplaceAll(text, "```", "")
	return strings.TrimSpace(text)
}

// mealAliases reads "foods", which older prompts asked for, next to "food".
type mealAliases struct {
	Weeks []struct {
		Days []struct {
			Meals []struct {
				Foods string `json:"foods"`
			} `json:"meals"`
		} `json:"days"`
	} `json:"weeks"`
}

// ParsePlan decodes a generated plan and prepares it for ingestion: fresh
// ids where missing, cleared completion flags, currentWeek 1, startDate and
// createdAt from now. Weekday names and day types are case-normalised, and
// weekdays the answer left out become rest days. The result is validated.
func ParsePlan(text string, now time.Time) (*domain.Plan, error) {
	cleaned := StripFences(text)
	var plan domain.Plan
	if err := json.Unmarshal([]byte(cleaned), &plan); err != nil {
		return nil, fmt.Errorf("%w: decode plan: %v", domain.ErrSchema, err)
	}
	var aliases mealAliases
	_ = json.Unmarshal([]byte(cleaned), &aliases)

	if plan.PlanID == "" {
		plan.PlanID = "plan_" + uuid.NewString()
	}
	plan.CurrentWeek = 1
	plan.StartDate = now.Format("2006-01-02")
	plan.CreatedAt = now.UTC()

	for wi := range plan.Weeks {
		week := &plan.Weeks[wi]
		for di := range week.Days {
			day := &week.Days[di]
			day.DayOfWeek = titleCase(day.DayOfWeek)
			day.Type = domain.DayType(strings.ToLower(string(day.Type)))
			if day.Type == "" && day.Workout != nil {
				day.Type = domain.DayTypeWorkout
			}
			if day.Type == "" {
				day.Type = domain.DayTypeRest
			}
			day.WorkoutCompleted, day.HydrationCompleted, day.SleepCompleted = false, false, false
			if day.Meals == nil {
				day.Meals = []domain.Meal{}
			}
			if day.Workout != nil {
				if day.Workout.Exercises == nil {
					day.Workout.Exercises = []domain.Exercise{}
				}
				for ei := range day.Workout.Exercises {
					day.Workout.Exercises[ei].Completed = false
				}
			}
			for mi := range day.Meals {
				meal := &day.Meals[mi]
				meal.Completed = false
				meal.Type = titleCase(meal.Type)
				if meal.Food == "" && wi < len(aliases.Weeks) && di < len(aliases.Weeks[wi].Days) && mi < len(aliases.Weeks[wi].Days[di].Meals) {
					meal.Food = aliases.Weeks[wi].Days[di].Meals[mi].Foods
				}
			}
		}
		week.Days = fillRestDays(week.Days)
	}
	plan.AssignMissingIDs()

	if err := plan.Validate(); err != nil {
		return nil, err
	}
	return &plan, nil
}

// fillRestDays adds missing weekdays as rest days and orders the week
// Monday to Sunday. Unknown or duplicate names are left for Validate.
func fillRestDays(days []domain.Day) []domain.Day {
	order := make(map[string]int, len(domain.Weekdays))
	for i, name := range domain.Weekdays {
		order[name] = i
	}
	present := make(map[string]bool, len(days))
	for _, d := range days {
		if _, ok := order[d.DayOfWeek]; !ok {
			return days
		}
		present[d.DayOfWeek] = true
	}
	out := append([]domain.Day{}, days...)
	for _, name := range domain.Weekdays {
		if !present[name] {
			out = append(out, domain.Day{DayOfWeek: name, Type: domain.DayTypeRest, Meals: []domain.Meal{}})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return order[out[i].DayOfWeek] < order[out[j].DayOfWeek] })
	return out
}

func titleCase(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}

// ParseMeals decodes generated meals. Accepted shapes: an array of meals,
// an object holding such an array under any key, or a single meal object.
func ParseMeals(text string) ([]domain.LibraryEntry, error) {
	var raw interface{}
	if err := json.Unmarshal([]byte(StripFences(text)), &raw); err != nil {
		return nil, fmt.Errorf("%w: decode meals: %v", domain.ErrSchema, err)
	}

	var items []interface{}
	switch t := raw.(type) {
	case []interface{}:
		items = t
	case map[string]interface{}:
		if _, single := t["name"]; single {
			items = []interface{}{t}
		} else {
			items = firstArray(t)
		}
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: no meals in answer", domain.ErrSchema)
	}

	entries := make([]domain.LibraryEntry, 0, len(items))
	for i, item := range items {
		m, ok := item.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("%w: meal %d is not an object", domain.ErrSchema, i)
		}
		name := cast.ToString(m["name"])
		if name == "" {
			return nil, fmt.Errorf("%w: meal %d has no name", domain.ErrSchema, i)
		}
		if _, err := cast.ToFloat64E(m["calories"]); m["calories"] != nil && err != nil {
			return nil, fmt.Errorf("%w: meal %d calories: %v", domain.ErrSchema, i, err)
		}
		entries = append(entries, domain.NewLibraryEntry(newAIID(), name, true, m))
	}
	return entries, nil
}

// ParseWorkout decodes a generated workout routine.
func ParseWorkout(text string) (domain.LibraryEntry, error) {
	var m map[string]interface{}
	if err := json.Unmarshal([]byte(StripFences(text)), &m); err != nil {
		return domain.LibraryEntry{}, fmt.Errorf("%w: decode workout: %v", domain.ErrSchema, err)
	}
	if inner, ok := m["workout"].(map[string]interface{}); ok {
		m = inner
	}
	name := cast.ToString(m["name"])
	if name == "" {
		return domain.LibraryEntry{}, fmt.Errorf("%w: workout has no name", domain.ErrSchema)
	}
	exercises, ok := m["exercises"].([]interface{})
	if !ok || len(exercises) == 0 {
		return domain.LibraryEntry{}, fmt.Errorf("%w: workout %q has no exercises", domain.ErrSchema, name)
	}
	for i, ex := range exercises {
		e, ok := ex.(map[string]interface{})
		if !ok || cast.ToString(e["name"]) == "" {
			return domain.LibraryEntry{}, fmt.Errorf("%w: workout %q exercise %d is malformed", domain.ErrSchema, name, i)
		}
	}
	return domain.NewLibraryEntry(newAIID(), name, true, m), nil
}

func firstArray(m map[string]interface{}) []interface{} {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if arr, ok := m[k].([]interface{}); ok {
			return arr
		}
	}
	return nil
}

func newAIID() string {
	return domain.AIPrefix + uuid.NewString()
}
