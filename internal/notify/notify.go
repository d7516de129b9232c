package notify

import (
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"sync"
	"time"
)

// DefaultNoticeTTL is how long a success notice stays visible.
const DefaultNoticeTTL = 3 * time.Second

const (
	MessageGoalSaved  = "Goal successfully saved!"
	MessageGoalEdited = "Goal successfully edited!"
)

// Notice holds one transient message that clears itself after its TTL.
// A newer message replaces the older one and restarts the timer.
type Notice struct {
	TTL time.Duration
	// AfterFunc schedules the clear. Defaults to time.AfterFunc.
	AfterFunc func(d time.Duration, f func()) *time.Timer

	mu    sync.Mutex
	text  string
	gen   uint64
	timer *time.Timer
}

// Show sets the notice text and schedules its removal.
func (n *Notice) Show(text string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.timer != nil {
		n.timer.Stop()
	}
	n.gen++
	n.text = text
	gen := n.gen

	ttl := n.TTL
	if ttl <= 0 {
		ttl = DefaultNoticeTTL
	}
	after := n.AfterFunc
	if after == nil {
		after = time.AfterFunc
	}
	n.timer = after(ttl, func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		if n.gen == gen {
			n.text = ""
			n.timer = nil
		}
	})
}

// Text returns the current notice, or "" once it has expired.
func (n *Notice) Text() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.text
}

// Clear removes the notice immediately.
func (n *Notice) Clear() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.timer != nil {
		n.timer.Stop()
		n.timer = nil
	}
	n.gen++
	n.text = ""
}

// Notifier sends system notifications.
type Notifier struct {
	Enabled bool
}

// Send sends a system notification.
// On macOS, uses osascript to display notifications.
// On other platforms, this is a no-op.
func (n *Notifier) Send(title, message string) error {
	if n == nil || !n.Enabled {
		return nil
	}
	if runtime.GOOS != "darwin" {
		return nil
	}
	return sendMacOSNotification(title, message)
}

func sendMacOSNotification(title, message string) error {
	title = strings.ReplaceAll(title, `"`, `\"`)
	message = strings.ReplaceAll(message, `"`, `\"`)

	script := fmt.Sprintf(`display notification "%s" with title "%s"`, message, title)
	cmd := exec.Command("osascript", "-e", script)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("send notification: %w", err)
	}
	return nil
}

// FormatGoalsReady formats the notification sent after a submission finishes.
func FormatGoalsReady(count int, isFallback bool) (title, message string) {
	if isFallback {
		title = "okrdraft: offline suggestions"
		message = fmt.Sprintf("%d locally generated goals (service unreachable)", count)
		return title, message
	}
	title = "okrdraft: goals ready"
	message = fmt.Sprintf("%d SMART goal suggestions generated", count)
	return title, message
}
