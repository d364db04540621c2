package engine

import "alcyxob/neuralfit/internal/domain"

// DefaultTaskAward is the XP granted for a completed day-level task.
const DefaultTaskAward = 10

// awardKinds are the day-level kinds whose completion earns XP.
var awardKinds = []TaskKind{TaskWorkout, TaskHydration, TaskSleep}

// XPChange is the XP-changed event emitted after an award.
type XPChange struct {
	Before int    `json:"before"`
	After  int    `json:"after"`
	Reason string `json:"reason"`
}

// Awarded is the amount added.
func (x XPChange) Awarded() int { return x.After - x.Before }

// Ledger awards a fixed amount of XP per qualifying delta. Callers invoke it
// exactly once per ToggleTask result; it cannot detect being called twice.
type Ledger struct {
	Award int
}

// NewLedger returns a ledger awarding amount, or DefaultTaskAward when amount <= 0.
func NewLedger(amount int) Ledger {
	if amount <= 0 {
		amount = DefaultTaskAward
	}
	return Ledger{Award: amount}
}

// AwardIfEarned adds one award when delta holds a false to true transition
// of a workout, hydration or sleep flag. Exercise and meal changes never
// award on their own. The returned XPChange is zero when nothing was awarded.
func (l Ledger) AwardIfEarned(profile domain.Profile, delta Delta) (domain.Profile, XPChange) {
	for _, kind := range awardKinds {
		if len(delta.Completed(kind)) == 0 {
			continue
		}
		change := XPChange{Before: profile.NeuralXP, After: profile.NeuralXP + l.Award, Reason: string(kind) + "_completed"}
		profile.NeuralXP = change.After
		return profile, change
	}
	return profile, XPChange{}
}
