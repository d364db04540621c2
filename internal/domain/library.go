package domain

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cast"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
)

// AIPrefix marks generated library entry ids.
const AIPrefix = "ai_"

// EntryID is a library entry id. Older documents stored numeric ids
// (millisecond timestamps); they are read back as their decimal string.
type EntryID string

// UnmarshalBSONValue accepts string, numeric and ObjectID ids.
func (id *EntryID) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	rv := bson.RawValue{Type: t, Value: data}
	switch t {
	case bsontype.String:
		*id = EntryID(rv.StringValue())
	case bsontype.Int32:
		*id = EntryID(cast.ToString(rv.Int32()))
	case bsontype.Int64:
		*id = EntryID(cast.ToString(rv.Int64()))
	case bsontype.Double:
		*id = EntryID(cast.ToString(rv.Double()))
	case bsontype.ObjectID:
		*id = EntryID(rv.ObjectID().Hex())
	case bsontype.Null, bsontype.Undefined:
		*id = ""
	default:
		return fmt.Errorf("unsupported library id type %s", t)
	}
	return nil
}

// MarshalBSONValue always writes the string form.
func (id EntryID) MarshalBSONValue() (bsontype.Type, []byte, error) {
	return bson.MarshalValue(string(id))
}

// UnmarshalJSON accepts both "123" and 123.
func (id *EntryID) UnmarshalJSON(data []byte) error {
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	if v == nil {
		*id = ""
		return nil
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return fmt.Errorf("library id: %w", err)
	}
	*id = EntryID(s)
	return nil
}

// LibraryEntry is a standalone meal or workout kept in the user's library.
// Only the identity fields are typed; everything else is carried verbatim.
type LibraryEntry struct {
	ID     EntryID `bson:"id"`
	Name   string  `bson:"name"`
	IsAI   bool    `bson:"isAI,omitempty"`
	Fields bson.M  `bson:",inline"`
}

var reservedEntryKeys = []string{"id", "name", "isAI"}

// NewLibraryEntry builds an entry, dropping reserved keys from fields.
func NewLibraryEntry(id, name string, isAI bool, fields map[string]interface{}) LibraryEntry {
	e := LibraryEntry{ID: EntryID(id), Name: name, IsAI: isAI, Fields: bson.M{}}
	for k, v := range fields {
		e.Fields[k] = v
	}
	for _, k := range reservedEntryKeys {
		delete(e.Fields, k)
	}
	return e
}

// Number reads a numeric field, tolerating numbers stored as strings.
func (e LibraryEntry) Number(key string) float64 {
	return cast.ToFloat64(e.Fields[key])
}

// Text reads a field as a string.
func (e LibraryEntry) Text(key string) string {
	return cast.ToString(e.Fields[key])
}

func (e LibraryEntry) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(e.Fields)+3)
	for k, v := range e.Fields {
		out[k] = v
	}
	out["id"] = string(e.ID)
	out["name"] = e.Name
	if e.IsAI {
		out["isAI"] = true
	}
	return json.Marshal(out)
}

func (e *LibraryEntry) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*e = LibraryEntry{Fields: bson.M{}}
	for k, v := range raw {
		var err error
		switch k {
		case "id":
			err = json.Unmarshal(v, &e.ID)
		case "name":
			err = json.Unmarshal(v, &e.Name)
		case "isAI":
			err = json.Unmarshal(v, &e.IsAI)
		default:
			var field interface{}
			err = json.Unmarshal(v, &field)
			e.Fields[k] = field
		}
		if err != nil {
			return fmt.Errorf("library entry field %q: %w", k, err)
		}
	}
	return nil
}
