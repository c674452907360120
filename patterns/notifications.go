package patterns

import (
	"context"
	"sync"
	"time"

	"github.com/Swind/go-task-patterns/core"
)

// StopReason records why the notification loop ended.
type StopReason int

const (
	// StopNone means the loop has not stopped since the last Start.
	StopNone StopReason = iota
	// StopRequested means Cancel or Stop ended the loop.
	StopRequested
	// StopLimit means the loop reached MaxNotifications.
	StopLimit
	// StopClosed means the controller was closed mid-run.
	StopClosed
)

func (r StopReason) String() string {
	switch r {
	case StopNone:
		return "none"
	case StopRequested:
		return "requested"
	case StopLimit:
		return "limit"
	case StopClosed:
		return "closed"
	default:
		return "unknown"
	}
}

type NotificationConfig struct {
	Interval         time.Duration
	MaxNotifications int
	Messages         []string
}

func DefaultNotificationConfig() NotificationConfig {
	return NotificationConfig{
		Interval:         3 * time.Second,
		MaxNotifications: 20,
		Messages: []string{
			"You have a new message",
			"Reminder: check for updates",
			"New comment on your post",
			"Someone liked your photo",
			"Update available",
			"Congratulations! New achievement unlocked",
			"New friend request",
			"Special offer available",
		},
	}
}

func (c NotificationConfig) withDefaults() NotificationConfig {
	d := DefaultNotificationConfig()
	if c.Interval <= 0 {
		c.Interval = d.Interval
	}
	if c.MaxNotifications <= 0 {
		c.MaxNotifications = d.MaxNotifications
	}
	if len(c.Messages) == 0 {
		c.Messages = d.Messages
	}
	return c
}

// Notification is one emitted message.
type Notification struct {
	Seq     int
	Message string
}

// NotificationController emits a random message every Interval until it is
// stopped or reaches MaxNotifications. Both stops end the run Cancelled; the
// StopReason and the final log line tell them apart.
type NotificationController struct {
	*core.Controller
	cfg   NotificationConfig
	rand  Rand
	count *core.Cell[int]

	mu     sync.Mutex
	reason StopReason
	sent   []Notification
}

func NewNotificationController(deps Deps, cfg NotificationConfig) *NotificationController {
	return &NotificationController{
		Controller: core.NewController(deps.controllerOptions(NameNotifications, true, "Stopping system...")),
		cfg:        cfg.withDefaults(),
		rand:       deps.rand(),
		count:      core.NewCell(0),
	}
}

func (c *NotificationController) Config() NotificationConfig { return c.cfg }

// Count publishes the number of notifications sent in the current run.
func (c *NotificationController) Count() *core.Cell[int] { return c.count }

// StopReason returns why the last run stopped, or StopNone while running.
func (c *NotificationController) StopReason() StopReason {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reason
}

// Sent returns the notifications emitted by the current or last run.
func (c *NotificationController) Sent() []Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Notification(nil), c.sent...)
}

// Stop is Cancel.
func (c *NotificationController) Stop() error { return c.Cancel() }

// Restart stops a running loop, waits for it and starts a new one.
func (c *NotificationController) Restart(ctx context.Context) error {
	return c.Controller.Restart(ctx, c.Start)
}

func (c *NotificationController) Start() error {
	_, err := c.Begin(func(rc *core.RunContext) {
		c.mu.Lock()
		c.reason = StopNone
		c.sent = nil
		c.mu.Unlock()
		c.count.Set(0)

		out := c.Output()
		out.Append("Notification system started")
		out.Append("Looping until stopped or the limit is reached")
		out.Append("")

		core.Spawn(rc, "notifier", c.notify(0), func(res core.UnitResult[int]) {
			c.stopped(rc, res)
		})
	})
	return err
}

// notify sends notification n, if any, and waits for the next one.
func (c *NotificationController) notify(n int) core.UnitFunc[int] {
	return func(u *core.UnitContext[int]) {
		if n > 0 {
			msg := c.cfg.Messages[c.rand.IntN(len(c.cfg.Messages))]
			_ = u.Run().Deliver(func() {
				c.mu.Lock()
				c.sent = append(c.sent, Notification{Seq: n, Message: msg})
				c.mu.Unlock()
				c.count.Set(n)
				c.Output().Appendf("[%d] %s", n, msg)
			})
			if n >= c.cfg.MaxNotifications {
				u.Return(n, nil)
				return
			}
		}
		u.After(c.cfg.Interval, c.notify(n+1))
	}
}

func (c *NotificationController) stopped(rc *core.RunContext, res core.UnitResult[int]) {
	out := c.Output()

	var reason StopReason
	switch res.Outcome {
	case core.OutcomeSucceeded:
		reason = StopLimit
		out.Append("")
		out.Appendf("Demo limit reached (%d notifications)", res.Value)
		out.Append("   System stopped automatically")
	case core.OutcomeCancelled:
		reason = StopClosed
		if rc.CancelRequested() {
			reason = StopRequested
		}
	default:
		out.Appendf("Notification system failed: %v", res.Err)
		rc.Finish(core.StateFailed, res.Err)
		return
	}

	c.mu.Lock()
	c.reason = reason
	c.mu.Unlock()

	out.Append("")
	out.Appendf("Notification system stopped by %s", reasonPhrase(reason))
	rc.Finish(core.StateCancelled, nil)
}

func reasonPhrase(r StopReason) string {
	switch r {
	case StopLimit:
		return "limit"
	case StopRequested:
		return "request"
	default:
		return "teardown"
	}
}
