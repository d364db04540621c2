// Package migration detects which schema generation a stored user document
// uses and splits the legacy single-list libraries (dietPlan, workoutRoutine)
// into the current manual/AI pair of lists.
package migration

import (
	"fmt"
	"strings"

	"alcyxob/neuralfit/internal/domain"

	"github.com/spf13/cast"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Domain names one of the two migrated libraries.
type Domain string

const (
	DomainMeals    Domain = "meals"
	DomainWorkouts Domain = "workouts"
)

// Document keys of both schema generations.
const (
	FieldManualMeals    = "manualMeals"
	FieldAIMeals        = "aiMeals"
	FieldManualWorkouts = "manualWorkouts"
	FieldAIWorkouts     = "aiWorkouts"
	FieldDietPlan       = "dietPlan"       // legacy
	FieldWorkoutRoutine = "workoutRoutine" // legacy, object or array
)

type fieldSet struct {
	manual, ai, legacy string
}

var domainFields = map[Domain]fieldSet{
	DomainMeals:    {manual: FieldManualMeals, ai: FieldAIMeals, legacy: FieldDietPlan},
	DomainWorkouts: {manual: FieldManualWorkouts, ai: FieldAIWorkouts, legacy: FieldWorkoutRoutine},
}

// Source tells where a domain's lists came from.
type Source string

const (
	SourceCurrent Source = "current" // new keys present, used verbatim
	SourceLegacy  Source = "legacy"  // partitioned from the legacy field
	SourceEmpty   Source = "empty"   // neither generation present
)

// Lists is the migrated pair for one domain. Both slices are non-nil.
type Lists struct {
	Manual []domain.LibraryEntry
	AI     []domain.LibraryEntry
	Source Source
}

// Migrated reports whether the lists were derived from the legacy field.
func (l Lists) Migrated() bool { return l.Source == SourceLegacy }

// Result holds the outcome for both libraries.
type Result struct {
	Meals    Lists
	Workouts Lists
}

// Migrated reports whether any domain needs its lists written back.
func (r Result) Migrated() bool {
	return r.Meals.Migrated() || r.Workouts.Migrated()
}

// Of returns the lists of d.
func (r Result) Of(d Domain) Lists {
	if d == DomainWorkouts {
		return r.Workouts
	}
	return r.Meals
}

// WriteBack returns the $set fields that persist legacy-derived lists, so the
// next load takes the current branch. Legacy fields are left in place.
func (r Result) WriteBack() bson.M {
	set := bson.M{}
	for _, d := range []Domain{DomainMeals, DomainWorkouts} {
		lists := r.Of(d)
		if !lists.Migrated() {
			continue
		}
		f := domainFields[d]
		set[f.manual] = lists.Manual
		set[f.ai] = lists.AI
	}
	return set
}

// Apply copies the lists into doc.
func (r Result) Apply(doc *domain.UserDocument) {
	doc.ManualMeals, doc.AIMeals = r.Meals.Manual, r.Meals.AI
	doc.ManualWorkouts, doc.AIWorkouts = r.Workouts.Manual, r.Workouts.AI
}

// MigrateIfNeeded resolves both libraries of raw. It never mutates raw.
//
// Per domain: if either new key exists (even empty or null) both are used
// verbatim; else a legacy field that is present and not null is partitioned;
// else both lists are empty.
func MigrateIfNeeded(raw bson.M) Result {
	return Result{
		Meals:    migrateDomain(raw, domainFields[DomainMeals]),
		Workouts: migrateDomain(raw, domainFields[DomainWorkouts]),
	}
}

func migrateDomain(raw bson.M, f fieldSet) Lists {
	manualRaw, hasManual := raw[f.manual]
	aiRaw, hasAI := raw[f.ai]
	if hasManual || hasAI {
		return Lists{
			Manual: decodeEntries(asList(manualRaw)),
			AI:     decodeEntries(asList(aiRaw)),
			Source: SourceCurrent,
		}
	}
	if legacy, ok := raw[f.legacy]; ok && legacy != nil {
		manual, ai := Partition(asList(legacy))
		return Lists{Manual: manual, AI: ai, Source: SourceLegacy}
	}
	return Lists{Manual: []domain.LibraryEntry{}, AI: []domain.LibraryEntry{}, Source: SourceEmpty}
}

// Partition splits legacy entries by provenance, keeping their order. Every
// entry lands in exactly one of the two lists.
func Partition(entries []interface{}) (manual, ai []domain.LibraryEntry) {
	manual, ai = []domain.LibraryEntry{}, []domain.LibraryEntry{}
	for _, v := range entries {
		e := decodeEntry(v)
		if e.IsAI || strings.HasPrefix(string(e.ID), domain.AIPrefix) {
			e.IsAI = true
			ai = append(ai, e)
		} else {
			manual = append(manual, e)
		}
	}
	return manual, ai
}

// IsAISourced reports the provenance of a raw entry: a boolean isAI set to
// true, or an id whose string form starts with "ai_".
func IsAISourced(v interface{}) bool {
	m := asDocument(v)
	if m == nil {
		return false
	}
	if b, ok := m["isAI"].(bool); ok && b {
		return true
	}
	return strings.HasPrefix(idString(m["id"]), domain.AIPrefix)
}

// asList normalises a stored list. A single document is a one-element list.
func asList(v interface{}) []interface{} {
	switch t := v.(type) {
	case nil:
		return nil
	case bson.A:
		return t
	case []interface{}:
		return t
	case []bson.M:
		out := make([]interface{}, len(t))
		for i := range t {
			out[i] = t[i]
		}
		return out
	case []map[string]interface{}:
		out := make([]interface{}, len(t))
		for i := range t {
			out[i] = t[i]
		}
		return out
	}
	return []interface{}{v}
}

func asDocument(v interface{}) map[string]interface{} {
	switch t := v.(type) {
	case bson.M:
		return t
	case map[string]interface{}:
		return t
	case bson.D:
		return t.Map()
	case bson.Raw:
		var m bson.M
		if err := bson.Unmarshal(t, &m); err == nil {
			return m
		}
	}
	return nil
}

func decodeEntries(list []interface{}) []domain.LibraryEntry {
	out := make([]domain.LibraryEntry, 0, len(list))
	for _, v := range list {
		out = append(out, decodeEntry(v))
	}
	return out
}

// decodeEntry converts one stored entry. Scalars are kept under "value" so
// nothing is lost. A non-boolean isAI carries no provenance and is dropped.
func decodeEntry(v interface{}) domain.LibraryEntry {
	m := asDocument(v)
	if m == nil {
		return domain.NewLibraryEntry("", "", false, map[string]interface{}{"value": v})
	}
	isAI, _ := m["isAI"].(bool)
	return domain.NewLibraryEntry(idString(m["id"]), cast.ToString(m["name"]), isAI, m)
}

func idString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case primitive.ObjectID:
		return t.Hex()
	case float64:
		// Millisecond timestamps come back from JSON-ish sources as doubles.
		if t == float64(int64(t)) {
			return cast.ToString(int64(t))
		}
	}
	return cast.ToString(v)
}

// Load decodes raw into the current document shape. Library fields of both
// generations are resolved by MigrateIfNeeded; everything else is decoded
// as stored.
func Load(raw bson.M) (domain.UserDocument, Result, error) {
	result := MigrateIfNeeded(raw)

	rest := make(bson.M, len(raw))
	for k, v := range raw {
		rest[k] = v
	}
	for _, f := range domainFields {
		delete(rest, f.manual)
		delete(rest, f.ai)
		delete(rest, f.legacy)
	}

	var doc domain.UserDocument
	data, err := bson.Marshal(rest)
	if err != nil {
		return doc, result, fmt.Errorf("encode stored document: %w", err)
	}
	if err := bson.Unmarshal(data, &doc); err != nil {
		return doc, result, fmt.Errorf("decode stored document: %w", err)
	}
	result.Apply(&doc)
	return doc, result, nil
}
