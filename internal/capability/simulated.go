package capability

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"
)

// Simulated returns a fully simulated capability surface: headless
// development, CI, and any platform whose native pickers are not wired yet.
func Simulated() Surface {
	perms := &simPermissions{granted: make(map[string]bool)}
	return Surface{
		Camera:      &simCamera{},
		Permissions: perms,
		Notifier:    &logNotifier{logger: slog.Default().With("component", "notifier")},
		Measurer:    &simMeasurer{},
	}
}

type simCamera struct{ counter int }

func (c *simCamera) Capture(_ context.Context) (Photo, error) {
	c.counter++
	return Photo{
		URI:      fmt.Sprintf("file:///tmp/veranda/capture-%d-%d.jpg", time.Now().Unix(), c.counter),
		Width:    1920,
		Height:   1080,
		MimeType: "image/jpeg",
	}, nil
}

func (c *simCamera) Pick(_ context.Context) (Photo, error) {
	c.counter++
	return Photo{
		URI:      fmt.Sprintf("file:///tmp/veranda/gallery-%d.jpg", c.counter),
		Width:    1280,
		Height:   960,
		MimeType: "image/jpeg",
	}, nil
}

type simPermissions struct {
	mu      sync.Mutex
	granted map[string]bool
}

func (p *simPermissions) Check(_ context.Context, name string) (PermissionStatus, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.granted[name] {
		return PermissionGranted, nil
	}
	return PermissionPrompt, nil
}

func (p *simPermissions) Request(_ context.Context, name string) (PermissionStatus, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.granted[name] = true
	return PermissionGranted, nil
}

type logNotifier struct {
	logger *slog.Logger
}

func (n *logNotifier) Show(_ context.Context, note Notification) error {
	n.logger.Info("notification", "title", note.Title, "body", note.Body)
	return nil
}

// simMeasurer mimics the AR measurement feature: plausible room dimensions,
// no algorithm.
type simMeasurer struct{}

func (m *simMeasurer) Measure(_ context.Context) (Measurement, error) {
	return Measurement{
		WidthCM:  200 + rand.Float64()*300,
		HeightCM: 230 + rand.Float64()*70,
		DepthCM:  200 + rand.Float64()*300,
		Unit:     "cm",
	}, nil
}
