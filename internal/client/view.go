package client

import (
	"fmt"
	"slices"

	"github.com/playok/adminsync/internal/model"
)

// LoadPriority says how visible a request is to the person using the form.
type LoadPriority int

const (
	// Foreground requests show the busy state and their results.
	Foreground LoadPriority = iota
	// Background requests keep the current state on screen but still show
	// their results.
	Background
	// Invisible requests only refresh data; messages on screen are kept.
	Invisible
)

func (p LoadPriority) String() string {
	switch p {
	case Foreground:
		return "foreground"
	case Background:
		return "background"
	case Invisible:
		return "invisible"
	}
	return fmt.Sprintf("LoadPriority(%d)", int(p))
}

// RequestOptions configure a single load or save.
type RequestOptions struct {
	Priority LoadPriority
}

// State is the form's lifecycle state.
type State int

const (
	StateIdle State = iota
	StateLoading
	StateSaving
	StateLoaded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateSaving:
		return "saving"
	case StateLoaded:
		return "loaded"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

const savingNotice = "Saving data please wait..."

// View is everything the form renders. Treat it as immutable: Begin and
// Apply return new views and never modify their input.
type View struct {
	Data          model.Bag
	State         State
	Loaded        bool
	Notifications []model.Message
	Errors        []model.Message
}

func (v View) clone() View {
	v.Data = v.Data.Clone()
	v.Notifications = slices.Clone(v.Notifications)
	v.Errors = slices.Clone(v.Errors)
	return v
}

// Outcome is the result of one round trip.
type Outcome struct {
	Command  string
	Priority LoadPriority
	Response *model.Response
	Err      error
}

// Begin returns the view shown while a command is in flight.
func Begin(v View, command string, p LoadPriority) View {
	next := v.clone()
	if p != Foreground {
		return next
	}
	switch command {
	case model.CommandLoad:
		next.State = StateLoading
	case model.CommandSave:
		next.State = StateSaving
		next.Loaded = false
		next.Notifications = []model.Message{{Content: savingNotice}}
	}
	return next
}

// Apply returns the view after o. Each response fully replaces the
// notifications and errors; nothing accumulates across calls.
func Apply(v View, o Outcome) View {
	next := v.clone()
	if o.Err != nil {
		next.State = StateFailed
		next.Notifications = []model.Message{}
		next.Errors = []model.Message{{Content: "Request failed: " + o.Err.Error()}}
		return next
	}

	resp := o.Response
	if o.Command == model.CommandLoad {
		next.Data = resp.AdminData.Clone()
	}
	if o.Priority != Invisible {
		next.Notifications = orEmpty(resp.Messages)
		next.Errors = orEmpty(resp.Errors)
	}
	next.State = StateLoaded
	next.Loaded = true
	return next
}

func orEmpty(m []model.Message) []model.Message {
	if m == nil {
		return []model.Message{}
	}
	return slices.Clone(m)
}
