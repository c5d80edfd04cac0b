// Package capability defines the OS capability surface the action router
// delegates to: camera/gallery capture, permission prompts, notification
// display, and the simulated room measurement. The real OS plumbing lives
// outside this repo; implementations here are thin and injectable so the
// router always has a live surface.
package capability

import "context"

// PermissionStatus is the tri-state answer to a permission query.
type PermissionStatus string

const (
	PermissionGranted PermissionStatus = "granted"
	PermissionDenied  PermissionStatus = "denied"
	PermissionPrompt  PermissionStatus = "prompt"
)

// Photo is the result of a capture or gallery pick.
type Photo struct {
	URI      string `json:"uri"`
	Width    int    `json:"width,omitempty"`
	Height   int    `json:"height,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
}

// Measurement is a simulated AR room measurement. Values are synthetic;
// there is no real measurement algorithm behind them.
type Measurement struct {
	WidthCM  float64 `json:"widthCm"`
	HeightCM float64 `json:"heightCm"`
	DepthCM  float64 `json:"depthCm"`
	Unit     string  `json:"unit"`
}

// Camera captures photos or picks them from the gallery.
type Camera interface {
	Capture(ctx context.Context) (Photo, error)
	Pick(ctx context.Context) (Photo, error)
}

// Permissions checks and requests OS-level permissions by name
// (camera, storage, location).
type Permissions interface {
	Check(ctx context.Context, name string) (PermissionStatus, error)
	Request(ctx context.Context, name string) (PermissionStatus, error)
}

// Notification is a user-visible message the shell displays natively.
type Notification struct {
	Title string `json:"title"`
	Body  string `json:"body,omitempty"`
}

// Notifier displays native notifications.
type Notifier interface {
	Show(ctx context.Context, n Notification) error
}

// Measurer produces simulated room measurements.
type Measurer interface {
	Measure(ctx context.Context) (Measurement, error)
}

// Surface bundles all capabilities handed to the router.
type Surface struct {
	Camera      Camera
	Permissions Permissions
	Notifier    Notifier
	Measurer    Measurer
}
