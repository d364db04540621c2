package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Subscription tiers.
const (
	TierFree     = "free"
	TierPro      = "pro"
	TierAdvanced = "advanced"
)

// User is the account record. It shares its document with UserDocument:
// credentials and tracker state live side by side under the same _id.
type User struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Email        string             `bson:"email" json:"email"`    // Should be unique
	PasswordHash string             `bson:"passwordHash" json:"-"` // Never expose this via JSON
	CreatedAt    time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time          `bson:"updatedAt" json:"updatedAt"`
	Profile      Profile            `bson:"profile" json:"profile"`
}

// Profile carries identity and progression counters.
type Profile struct {
	Name             string `bson:"name" json:"name"`
	Goal             string `bson:"goal" json:"goal"`
	TargetCalories   int    `bson:"targetCalories" json:"targetCalories"`
	SubscriptionTier string `bson:"subscriptionTier" json:"subscriptionTier"`
	NeuralXP         int    `bson:"neuralXP" json:"neuralXP"`   // progression currency, never negative
	Streak           int    `bson:"streak" json:"streak"`       // consecutive logged workouts
	Hydration        int    `bson:"hydration" json:"hydration"` // today's logged intake
}

// DefaultProfile is written for accounts that have no tracker state yet.
func DefaultProfile(name string) Profile {
	if name == "" {
		name = "New User"
	}
	return Profile{
		Name:             name,
		Goal:             "Get Fit",
		TargetCalories:   2000,
		SubscriptionTier: TierFree,
	}
}

// UserDocument is the per-user tracker document in its current (dual-list) shape.
type UserDocument struct {
	Profile        Profile           `bson:"profile" json:"profile"`
	TrainingPlan   *Plan             `bson:"trainingPlan,omitempty" json:"trainingPlan,omitempty"`
	ManualMeals    []LibraryEntry    `bson:"manualMeals" json:"manualMeals"`
	AIMeals        []LibraryEntry    `bson:"aiMeals" json:"aiMeals"`
	ManualWorkouts []LibraryEntry    `bson:"manualWorkouts" json:"manualWorkouts"`
	AIWorkouts     []LibraryEntry    `bson:"aiWorkouts" json:"aiWorkouts"`
	WorkoutHistory []WorkoutLogEntry `bson:"workoutHistory" json:"workoutHistory"`
	CalorieHistory []CalorieDay      `bson:"calorieHistory" json:"calorieHistory"`
	WeightHistory  []WeightEntry     `bson:"weightHistory" json:"weightHistory"`
}

// WorkoutLogEntry records an ad-hoc workout completion.
type WorkoutLogEntry struct {
	Date      string    `bson:"date" json:"date"`
	Timestamp time.Time `bson:"timestamp" json:"timestamp"`
	WorkoutID string    `bson:"workoutId" json:"workoutId"`
	Name      string    `bson:"name" json:"name"`
	Duration  string    `bson:"duration" json:"duration"`
	Calories  float64   `bson:"calories" json:"calories"`
	XPAwarded int       `bson:"xpAwarded" json:"xpAwarded"`
}

// CalorieDay aggregates intake and burn for one date.
type CalorieDay struct {
	Date    string  `bson:"date" json:"date"`
	Intake  float64 `bson:"intake" json:"intake"`
	Burned  float64 `bson:"burned" json:"burned"`
	Protein float64 `bson:"protein" json:"protein"`
	Carbs   float64 `bson:"carbs" json:"carbs"`
	Fats    float64 `bson:"fats" json:"fats"`
}

// WeightEntry is one body-weight measurement.
type WeightEntry struct {
	Date   string  `bson:"date" json:"date"`
	Weight float64 `bson:"weight" json:"weight"`
}
