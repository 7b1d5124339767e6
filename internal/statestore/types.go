package statestore

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Extras is a free-form key/value bag attached to a ConnectionProfile
// for unrecognized connection parameters. It stores as a JSON text
// column.
type Extras map[string]string

func (e Extras) Value() (driver.Value, error) {
	if len(e) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(map[string]string(e))
	return string(b), err
}

func (e *Extras) Scan(src interface{}) error {
	*e = Extras{}
	if src == nil {
		return nil
	}
	b, err := asBytes(src)
	if err != nil {
		return err
	}
	if len(b) == 0 {
		return nil
	}
	return json.Unmarshal(b, (*map[string]string)(e))
}

// TagSet is the ordered set of tags on a SavedQuery, stored as JSON.
type TagSet []string

func (t TagSet) Value() (driver.Value, error) {
	if len(t) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal([]string(t))
	return string(b), err
}

func (t *TagSet) Scan(src interface{}) error {
	*t = nil
	if src == nil {
		return nil
	}
	b, err := asBytes(src)
	if err != nil {
		return err
	}
	if len(b) == 0 {
		return nil
	}
	return json.Unmarshal(b, (*[]string)(t))
}

// HasAll reports whether the tag set contains every tag in want, by
// exact string match; #global: tags get no special treatment here.
func (t TagSet) HasAll(want []string) bool {
	have := map[string]bool{}
	for _, tag := range t {
		have[tag] = true
	}
	for _, w := range want {
		if !have[w] {
			return false
		}
	}
	return true
}

func asBytes(src interface{}) ([]byte, error) {
	switch v := src.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("statestore: unsupported scan source %T", src)
	}
}
