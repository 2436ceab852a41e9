package client

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"

	"github.com/playok/adminsync/internal/model"
)

func msgs(contents ...string) []model.Message {
	out := []model.Message{}
	for _, c := range contents {
		out = append(out, model.Message{Content: c})
	}
	return out
}

func TestBegin(t *testing.T) {
	start := View{
		Data:          model.Bag{"my_value": "a"},
		State:         StateLoaded,
		Loaded:        true,
		Notifications: msgs("old"),
		Errors:        msgs(),
	}

	t.Run("foreground save", func(t *testing.T) {
		v := Begin(start, model.CommandSave, Foreground)
		assert.Equal(t, StateSaving, v.State)
		assert.False(t, v.Loaded)
		assert.Equal(t, msgs("Saving data please wait..."), v.Notifications)
	})

	t.Run("foreground load", func(t *testing.T) {
		v := Begin(start, model.CommandLoad, Foreground)
		assert.Equal(t, StateLoading, v.State)
		assert.True(t, v.Loaded)
	})

	t.Run("background leaves view alone", func(t *testing.T) {
		v := Begin(start, model.CommandSave, Background)
		if diff := cmp.Diff(start, v); diff != "" {
			t.Fatalf("view changed (-want +got):\n%s", diff)
		}
	})

	// The input view is never modified.
	assert.Equal(t, StateLoaded, start.State)
	assert.Equal(t, msgs("old"), start.Notifications)
}

func TestApply(t *testing.T) {
	start := View{
		Data:          model.Bag{"my_value": "local"},
		State:         StateLoading,
		Notifications: msgs("stale"),
		Errors:        msgs("stale error"),
	}
	resp := &model.Response{
		AdminData: model.Bag{"my_value": "server"},
		Messages:  msgs("Data Saved @ 10:00:00"),
		Errors:    msgs("Field x is not in the list of expected fields"),
	}

	t.Run("load replaces data and lists", func(t *testing.T) {
		v := Apply(start, Outcome{Command: model.CommandLoad, Response: resp})
		want := View{
			Data:          model.Bag{"my_value": "server"},
			State:         StateLoaded,
			Loaded:        true,
			Notifications: resp.Messages,
			Errors:        resp.Errors,
		}
		if diff := cmp.Diff(want, v); diff != "" {
			t.Fatalf("view mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("save keeps local data", func(t *testing.T) {
		v := Apply(start, Outcome{Command: model.CommandSave, Response: resp})
		assert.Equal(t, model.Bag{"my_value": "local"}, v.Data)
		assert.Equal(t, resp.Messages, v.Notifications)
	})

	t.Run("nil lists become empty", func(t *testing.T) {
		v := Apply(start, Outcome{Command: model.CommandSave, Response: &model.Response{}})
		assert.NotNil(t, v.Notifications)
		assert.Empty(t, v.Notifications)
		assert.NotNil(t, v.Errors)
		assert.Empty(t, v.Errors)
	})

	t.Run("invisible keeps messages", func(t *testing.T) {
		v := Apply(start, Outcome{Command: model.CommandLoad, Priority: Invisible, Response: resp})
		assert.Equal(t, model.Bag{"my_value": "server"}, v.Data)
		assert.Equal(t, msgs("stale"), v.Notifications)
		assert.Equal(t, msgs("stale error"), v.Errors)
	})

	t.Run("transport failure", func(t *testing.T) {
		v := Apply(start, Outcome{Command: model.CommandLoad, Err: errors.New("connection refused")})
		assert.Equal(t, StateFailed, v.State)
		assert.False(t, v.Loaded)
		assert.Equal(t, model.Bag{"my_value": "local"}, v.Data)
		assert.Equal(t, msgs("Request failed: connection refused"), v.Errors)
		assert.Empty(t, v.Notifications)
	})

	// Mutating the result does not leak into the response or the input.
	v := Apply(start, Outcome{Command: model.CommandLoad, Response: resp})
	v.Data["my_value"] = "mutated"
	v.Errors[0].Content = "mutated"
	assert.Equal(t, "server", resp.AdminData["my_value"])
	assert.Equal(t, "Field x is not in the list of expected fields", resp.Errors[0].Content)
	assert.Equal(t, "local", start.Data["my_value"])
}

func TestPriorityAndStateStrings(t *testing.T) {
	assert.Equal(t, "foreground", Foreground.String())
	assert.Equal(t, "background", Background.String())
	assert.Equal(t, "invisible", Invisible.String())
	assert.Equal(t, "LoadPriority(9)", LoadPriority(9).String())
	assert.Equal(t, "saving", StateSaving.String())
	assert.Equal(t, "failed", StateFailed.String())
}
