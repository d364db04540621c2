package domain

// Validate checks the plan shape accepted at the generation boundary.
// Every deviation is reported as ErrSchema.
func (p *Plan) Validate() error {
	if p == nil {
		return schemaErrorf("plan is empty")
	}
	if p.Duration < 1 {
		return schemaErrorf("duration %d must be at least 1 week", p.Duration)
	}
	if len(p.Weeks) != p.Duration {
		return schemaErrorf("plan declares %d weeks but holds %d", p.Duration, len(p.Weeks))
	}
	if p.CurrentWeek < 1 || p.CurrentWeek > p.Duration {
		return schemaErrorf("currentWeek %d outside [1, %d]", p.CurrentWeek, p.Duration)
	}
	for i := range p.Weeks {
		if err := p.Weeks[i].validate(i + 1); err != nil {
			return err
		}
	}
	return nil
}

func (w *Week) validate(position int) error {
	if w.WeekNumber != position {
		return schemaErrorf("week at position %d is numbered %d", position, w.WeekNumber)
	}
	if len(w.Days) != len(Weekdays) {
		return schemaErrorf("week %d holds %d days, want %d", position, len(w.Days), len(Weekdays))
	}
	seen := make(map[string]bool, len(w.Days))
	for i := range w.Days {
		d := &w.Days[i]
		if !isWeekday(d.DayOfWeek) {
			return schemaErrorf("week %d: unknown day %q", position, d.DayOfWeek)
		}
		if seen[d.DayOfWeek] {
			return schemaErrorf("week %d: duplicate day %s", position, d.DayOfWeek)
		}
		seen[d.DayOfWeek] = true
		if err := d.validate(position); err != nil {
			return err
		}
	}
	return nil
}

func (d *Day) validate(week int) error {
	switch d.Type {
	case DayTypeWorkout:
		if d.Workout == nil {
			return schemaErrorf("week %d %s: workout day without workout", week, d.DayOfWeek)
		}
	case DayTypeRest:
		if d.Workout != nil {
			return schemaErrorf("week %d %s: rest day carries a workout", week, d.DayOfWeek)
		}
	default:
		return schemaErrorf("week %d %s: unknown day type %q", week, d.DayOfWeek, d.Type)
	}
	if d.Hydration < 0 || d.SleepTarget < 0 {
		return schemaErrorf("week %d %s: negative hydration or sleep target", week, d.DayOfWeek)
	}
	return nil
}

func isWeekday(name string) bool {
	for _, w := range Weekdays {
		if w == name {
			return true
		}
	}
	return false
}
