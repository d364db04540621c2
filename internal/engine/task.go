// Package engine holds the pure plan state transitions: task completion
// toggles, progression awards and the ad-hoc workout synchronization bridge.
// Nothing in here touches storage; callers persist the plans it returns.
package engine

import "fmt"

// TaskKind is the addressable unit a completion toggle targets.
type TaskKind string

const (
	TaskWorkout   TaskKind = "workout"
	TaskExercise  TaskKind = "exercise"
	TaskMeal      TaskKind = "meal"
	TaskHydration TaskKind = "hydration"
	TaskSleep     TaskKind = "sleep"
)

// ParseTaskKind validates a task kind received from outside.
func ParseTaskKind(s string) (TaskKind, error) {
	switch k := TaskKind(s); k {
	case TaskWorkout, TaskExercise, TaskMeal, TaskHydration, TaskSleep:
		return k, nil
	}
	return "", fmt.Errorf("unknown task kind %q", s)
}

// Indexed reports whether the kind addresses an element of a sub-collection.
func (k TaskKind) Indexed() bool {
	return k == TaskExercise || k == TaskMeal
}

// Task addresses one completion flag. Index is only read for exercise and meal.
type Task struct {
	Week  int      `json:"weekNumber"`
	Day   string   `json:"dayOfWeek"`
	Kind  TaskKind `json:"taskKind"`
	Index int      `json:"taskIndex"`
}

// Change is one flag transition. It doubles as the completion-delta event.
type Change struct {
	Kind   TaskKind `json:"taskKind"`
	Path   string   `json:"path"`
	Week   int      `json:"weekNumber"`
	Day    string   `json:"dayOfWeek"`
	Index  int      `json:"taskIndex"` // -1 for day-level flags
	Before bool     `json:"before"`
	After  bool     `json:"after"`
}

// Completed reports a false to true transition.
func (c Change) Completed() bool { return !c.Before && c.After }

// Delta lists every flag that changed during one toggle.
type Delta struct {
	Changes []Change `json:"changes"`
}

// Empty reports whether nothing changed.
func (d Delta) Empty() bool { return len(d.Changes) == 0 }

// Completed returns the false to true transitions of the given kind.
func (d Delta) Completed(kind TaskKind) []Change {
	var out []Change
	for _, c := range d.Changes {
		if c.Kind == kind && c.Completed() {
			out = append(out, c)
		}
	}
	return out
}

func flagPath(week int, day string, kind TaskKind, index int) string {
	base := fmt.Sprintf("weeks[%d].days[%s]", week-1, day)
	switch kind {
	case TaskWorkout:
		return base + ".workoutCompleted"
	case TaskExercise:
		return fmt.Sprintf("%s.workout.exercises[%d].completed", base, index)
	case TaskMeal:
		return fmt.Sprintf("%s.meals[%d].completed", base, index)
	case TaskHydration:
		return base + ".hydrationCompleted"
	case TaskSleep:
		return base + ".sleepCompleted"
	}
	return base
}
