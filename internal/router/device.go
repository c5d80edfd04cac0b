package router

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/verandahq/veranda/internal/capability"
)

// Camera, permission, and notification envelopes delegate to the injected
// capability surface; the OS-level plumbing lives behind those interfaces.

func (r *Router) handleCamera(ctx context.Context, data json.RawMessage) (json.RawMessage, error) {
	act, err := action(data)
	if err != nil {
		return nil, fmt.Errorf("CAMERA: %w", err)
	}

	switch act {
	case "capture":
		photo, err := r.caps.Camera.Capture(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(photo)

	case "pick":
		photo, err := r.caps.Camera.Pick(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(photo)

	case "measure":
		m, err := r.caps.Measurer.Measure(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(m)

	default:
		return nil, fmt.Errorf("unknown CAMERA action %q", act)
	}
}

type permissionsPayload struct {
	Action string `json:"action"`
	Name   string `json:"name"`
}

func (r *Router) handlePermissions(ctx context.Context, data json.RawMessage) (json.RawMessage, error) {
	var payload permissionsPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("bad PERMISSIONS payload: %w", err)
	}
	if payload.Name == "" {
		return nil, fmt.Errorf("PERMISSIONS requires a permission name")
	}

	var status capability.PermissionStatus
	var err error
	switch payload.Action {
	case "check":
		status, err = r.caps.Permissions.Check(ctx, payload.Name)
	case "request":
		status, err = r.caps.Permissions.Request(ctx, payload.Name)
	default:
		return nil, fmt.Errorf("unknown PERMISSIONS action %q", payload.Action)
	}
	if err != nil {
		return nil, err
	}
	return json.Marshal(map[string]capability.PermissionStatus{"status": status})
}

type notificationPayload struct {
	Action string `json:"action"`
	Title  string `json:"title"`
	Body   string `json:"body,omitempty"`
}

func (r *Router) handleNotification(ctx context.Context, data json.RawMessage) (json.RawMessage, error) {
	var payload notificationPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("bad NOTIFICATION payload: %w", err)
	}
	if payload.Action != "" && payload.Action != "show" {
		return nil, fmt.Errorf("unknown NOTIFICATION action %q", payload.Action)
	}
	if payload.Title == "" {
		return nil, fmt.Errorf("NOTIFICATION requires a title")
	}

	if err := r.caps.Notifier.Show(ctx, capability.Notification{Title: payload.Title, Body: payload.Body}); err != nil {
		return nil, err
	}
	return json.Marshal(map[string]bool{"shown": true})
}
