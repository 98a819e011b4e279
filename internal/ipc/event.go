package ipc

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// WindowChange is a window event that moves focus to a container.
type WindowChange struct {
	Change      string `json:"change"`
	ContainerID int64  `json:"container_id"`
	Name        string `json:"name,omitempty"`
	AppID       string `json:"app_id,omitempty"`
}

// Outcome classifies an interpreted event payload.
type Outcome int

const (
	Accepted Outcome = iota
	RejectedMalformed
	RejectedCommandFailed
	RejectedMissingChange
	RejectedIgnoredChange
	RejectedMissingContainer
)

func (o Outcome) String() string {
	switch o {
	case Accepted:
		return "accepted"
	case RejectedMalformed:
		return "malformed"
	case RejectedCommandFailed:
		return "command_failed"
	case RejectedMissingChange:
		return "missing_change"
	case RejectedIgnoredChange:
		return "ignored_change"
	case RejectedMissingContainer:
		return "missing_container"
	default:
		return "unknown"
	}
}

// Interpretation is the tagged result of Interpret. Event is only
// meaningful when Outcome is Accepted.
type Interpretation struct {
	Outcome Outcome
	Event   WindowChange
}

// Accepted reports whether the payload yielded a WindowChange.
func (i Interpretation) Accepted() bool {
	return i.Outcome == Accepted
}

// ignoredChanges never move focus.
var ignoredChanges = map[string]struct{}{
	"close": {},
	"new":   {},
	"title": {},
}

// Interpret decodes a window event payload.
func Interpret(raw []byte) Interpretation {
	doc, err := decodeJSON(raw)
	if err != nil {
		return Interpretation{Outcome: RejectedMalformed}
	}
	if failed, _ := commandFailed(doc); failed {
		return Interpretation{Outcome: RejectedCommandFailed}
	}

	obj, _ := doc.(map[string]any)
	change, ok := obj["change"].(string)
	if !ok {
		return Interpretation{Outcome: RejectedMissingChange}
	}
	if _, ignored := ignoredChanges[change]; ignored {
		return Interpretation{Outcome: RejectedIgnoredChange}
	}

	container, ok := obj["container"].(map[string]any)
	if !ok {
		return Interpretation{Outcome: RejectedMissingContainer}
	}
	id, ok := asInt(container["id"])
	if !ok {
		return Interpretation{Outcome: RejectedMissingContainer}
	}

	ev := WindowChange{Change: change, ContainerID: id}
	ev.Name, _ = container["name"].(string)
	ev.AppID, _ = container["app_id"].(string)
	return Interpretation{Outcome: Accepted, Event: ev}
}

// decodeJSON parses one JSON document keeping numbers exact.
func decodeJSON(raw []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// commandFailed reports whether doc is a command result with success=false.
// The compositor may wrap results in an array; only the first is checked.
// A missing or non-boolean success field is not a failure.
func commandFailed(doc any) (bool, string) {
	item := doc
	if arr, ok := doc.([]any); ok {
		if len(arr) == 0 {
			return false, ""
		}
		item = arr[0]
	}
	obj, ok := item.(map[string]any)
	if !ok {
		return false, ""
	}
	success, ok := obj["success"].(bool)
	if !ok || success {
		return false, ""
	}
	msg, _ := obj["error"].(string)
	return true, msg
}

// asInt reads an integral JSON number.
func asInt(v any) (int64, bool) {
	n, ok := v.(json.Number)
	if !ok {
		return 0, false
	}
	id, err := n.Int64()
	if err != nil {
		return 0, false
	}
	return id, true
}

// coerceInt converts any JSON value to an integer the way a loosely typed
// reader would: numbers truncate, numeric strings parse, true is 1, and
// everything else is 0.
func coerceInt(v any) int64 {
	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i
		}
		if f, err := x.Float64(); err == nil {
			return int64(f)
		}
	case string:
		if i, err := strconv.ParseInt(x, 10, 64); err == nil {
			return i
		}
	case bool:
		if x {
			return 1
		}
	}
	return 0
}
