// Package notify delivers region enter notifications.
package notify

import (
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/udisondev/regionvision/internal/model"
	"github.com/udisondev/regionvision/internal/tick"
	"github.com/udisondev/regionvision/internal/transition"
	"github.com/udisondev/regionvision/internal/world"
)

// Title timings and boss bar appearance.
const (
	TitleFadeIn  = 500 * time.Millisecond
	TitleStay    = 3000 * time.Millisecond
	TitleFadeOut = 1000 * time.Millisecond

	BossBarTicks   = 100 // 5s at 20 TPS
	BossBarColor   = "PURPLE"
	BossBarOverlay = "PROGRESS"
)

// Dispatcher turns enter events into messages. Dispatch runs on the tick loop.
type Dispatcher struct {
	clock     tick.Clock
	presence  world.Presence
	messenger world.Messenger

	bars atomic.Uint64 // boss bar ids
	sent atomic.Int64
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(clock tick.Clock, presence world.Presence, messenger world.Messenger) *Dispatcher {
	return &Dispatcher{
		clock:     clock,
		presence:  presence,
		messenger: messenger,
	}
}

// Dispatch delivers e. Events for offline players and silent types are dropped.
func (d *Dispatcher) Dispatch(e transition.EnterEvent) {
	if !e.Type.Active() || !d.presence.IsOnline(e.Owner) {
		return
	}

	switch e.Type {
	case model.NotificationActionBar:
		d.messenger.SendActionBar(e.Owner, e.Message)

	case model.NotificationTitle:
		d.messenger.ShowTitle(e.Owner, world.Title{
			Text:    e.Message,
			FadeIn:  TitleFadeIn,
			Stay:    TitleStay,
			FadeOut: TitleFadeOut,
		})

	case model.NotificationBossBar:
		bar := world.BossBar{
			ID:       d.bars.Add(1),
			Text:     e.Message,
			Progress: 1.0,
			Color:    BossBarColor,
			Overlay:  BossBarOverlay,
		}
		d.messenger.ShowBossBar(e.Owner, bar)
		d.clock.ScheduleOnce(BossBarTicks, func() {
			if d.presence.IsOnline(e.Owner) {
				d.messenger.HideBossBar(e.Owner, bar)
			}
		})

	default:
		slog.Warn("unknown notification type", "type", e.Type, "region", e.RegionID)
		return
	}

	d.sent.Add(1)
	slog.Debug("enter notification sent", "owner", e.Owner, "region", e.RegionID, "type", e.Type)
}

// Sent returns the number of notifications delivered.
func (d *Dispatcher) Sent() int64 {
	return d.sent.Load()
}
