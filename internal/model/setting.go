package model

import "time"

// Setting represents one stored option record.
type Setting struct {
	Name    string    `json:"name"`
	Value   string    `json:"value"`
	Updated time.Time `json:"updated,omitempty"`
}

// Bag maps setting keys (as the form knows them) to their values.
type Bag map[string]string

// Clone returns a copy that shares nothing with b.
func (b Bag) Clone() Bag {
	out := make(Bag, len(b))
	for k, v := range b {
		out[k] = v
	}
	return out
}
