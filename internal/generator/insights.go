package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"alcyxob/neuralfit/internal/domain"

	"github.com/spf13/cast"
)

// Planned sessions and meals per plan week, used for the completion ratios.
const (
	workoutsPerWeek = 5
	mealsPerWeek    = 28
)

// ProgressSummary is the history digest sent for analysis.
type ProgressSummary struct {
	CompletedWorkouts int     `json:"completedWorkouts"`
	TotalWorkouts     int     `json:"totalWorkouts"`
	LoggedDays        int     `json:"completedMeals"`
	TotalMeals        int     `json:"totalMeals"`
	AverageIntake     float64 `json:"averageIntake"`
	AverageBurned     float64 `json:"averageBurned"`
	WeightChange      float64 `json:"weightChange"`
	CurrentWeek       int     `json:"currentWeek"`
}

// SummarizeProgress digests the histories of doc. The plan sets the week
// count; without one the summary covers week 1.
func SummarizeProgress(doc domain.UserDocument) ProgressSummary {
	week := 1
	if doc.TrainingPlan != nil && doc.TrainingPlan.CurrentWeek > 0 {
		week = doc.TrainingPlan.CurrentWeek
	}
	s := ProgressSummary{
		CompletedWorkouts: len(doc.WorkoutHistory),
		TotalWorkouts:     week * workoutsPerWeek,
		LoggedDays:        len(doc.CalorieHistory),
		TotalMeals:        week * mealsPerWeek,
		CurrentWeek:       week,
	}
	if n := len(doc.CalorieHistory); n > 0 {
		var intake, burned float64
		for _, d := range doc.CalorieHistory {
			intake += d.Intake
			burned += d.Burned
		}
		s.AverageIntake = intake / float64(n)
		s.AverageBurned = burned / float64(n)
	}
	if n := len(doc.WeightHistory); n > 1 {
		s.WeightChange = doc.WeightHistory[n-1].Weight - doc.WeightHistory[0].Weight
	}
	return s
}

// ProgressAnalysis is the model's verdict on a ProgressSummary.
type ProgressAnalysis struct {
	OverallScore    int                    `json:"overallScore"`
	Assessment      string                 `json:"assessment"`
	Recommendations []string               `json:"recommendations"`
	Motivation      string                 `json:"motivation,omitempty"`
	Adjustments     map[string]interface{} `json:"adjustments,omitempty"`
}

// AnalyzeProgress scores the summary and returns recommendations.
func (g *Generator) AnalyzeProgress(ctx context.Context, summary ProgressSummary) (ProgressAnalysis, error) {
	data, err := json.Marshal(summary)
	if err != nil {
		return ProgressAnalysis{}, fmt.Errorf("encode progress: %w", err)
	}
	prompt := fmt.Sprintf(`Analyze progress: %s. Return ONLY JSON { "overallScore": 80, "assessment": "...", "recommendations": ["..."], "motivation": "...", "adjustments": {} }`, data)

	text, err := g.provider.Complete(ctx, prompt, true)
	if err != nil {
		return ProgressAnalysis{}, fmt.Errorf("analyze progress: %w", err)
	}
	analysis, err := ParseAnalysis(text)
	if err != nil {
		g.log.Warn().Err(err).Msg("rejected progress analysis")
		return ProgressAnalysis{}, err
	}
	return analysis, nil
}

// ParseAnalysis decodes a progress analysis. The score may arrive as a
// number or a numeric string and must lie in 0..100.
func ParseAnalysis(text string) (ProgressAnalysis, error) {
	var m map[string]interface{}
	if err := json.Unmarshal([]byte(StripFences(text)), &m); err != nil {
		return ProgressAnalysis{}, fmt.Errorf("%w: decode analysis: %v", domain.ErrSchema, err)
	}
	score, err := cast.ToIntE(m["overallScore"])
	if err != nil || m["overallScore"] == nil {
		return ProgressAnalysis{}, fmt.Errorf("%w: analysis has no numeric overallScore", domain.ErrSchema)
	}
	if score < 0 || score > 100 {
		return ProgressAnalysis{}, fmt.Errorf("%w: overallScore %d out of range", domain.ErrSchema, score)
	}
	assessment := strings.TrimSpace(cast.ToString(m["assessment"]))
	if assessment == "" {
		return ProgressAnalysis{}, fmt.Errorf("%w: analysis has no assessment", domain.ErrSchema)
	}
	recs := []string{}
	if raw, ok := m["recommendations"]; ok && raw != nil {
		if recs, err = cast.ToStringSliceE(raw); err != nil {
			return ProgressAnalysis{}, fmt.Errorf("%w: recommendations: %v", domain.ErrSchema, err)
		}
	}
	adjustments, _ := m["adjustments"].(map[string]interface{})
	return ProgressAnalysis{
		OverallScore:    score,
		Assessment:      assessment,
		Recommendations: recs,
		Motivation:      strings.TrimSpace(cast.ToString(m["motivation"])),
		Adjustments:     adjustments,
	}, nil
}

// DailyMotivation returns a one-line pep talk for today's session. A nil
// day counts as rest.
func (g *Generator) DailyMotivation(ctx context.Context, profile domain.Profile, today *domain.Day) (string, error) {
	activity := "Rest"
	if today != nil && today.Workout != nil && today.Workout.Name != "" {
		activity = today.Workout.Name
	}
	name := profile.Name
	if name == "" {
		name = "the athlete"
	}
	prompt := fmt.Sprintf("Short motivation (10 words) for %s doing %s. Reply with the sentence only.", name, activity)

	text, err := g.provider.Complete(ctx, prompt, false)
	if err != nil {
		return "", fmt.Errorf("daily motivation: %w", err)
	}
	line := strings.Trim(strings.TrimSpace(StripFences(text)), `"`)
	if line == "" {
		return "", fmt.Errorf("%w: empty motivation", domain.ErrSchema)
	}
	return line, nil
}
