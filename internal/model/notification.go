package model

import (
	"fmt"
	"strings"
)

// NotificationType selects how a region-enter message is presented.
type NotificationType string

const (
	NotificationNone      NotificationType = "NONE"
	NotificationActionBar NotificationType = "ACTION_BAR"
	NotificationTitle     NotificationType = "TITLE"
	NotificationBossBar   NotificationType = "BOSS_BAR"
)

// ParseNotificationType parses one of the four notification type names, case-insensitively.
func ParseNotificationType(s string) (NotificationType, error) {
	switch t := NotificationType(strings.ToUpper(strings.TrimSpace(s))); t {
	case NotificationNone, NotificationActionBar, NotificationTitle, NotificationBossBar:
		return t, nil
	default:
		return "", fmt.Errorf("%w: notification type %q (want ACTION_BAR, BOSS_BAR, TITLE or NONE)", ErrInvalidParameter, s)
	}
}

// Active reports whether the type produces a visible notification.
func (t NotificationType) Active() bool {
	return t != "" && t != NotificationNone
}
