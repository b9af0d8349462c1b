package render

import "sync/atomic"

// debugLoggingEnabled гейтит debug-логи горячего пути рендера.
var debugLoggingEnabled atomic.Bool

// EnableDebugLogging включает debug-логи рендера. Вызывается из main после
// загрузки конфига.
func EnableDebugLogging(enabled bool) {
	debugLoggingEnabled.Store(enabled)
}

// IsDebugEnabled reports whether render debug logging is on.
func IsDebugEnabled() bool {
	return debugLoggingEnabled.Load()
}
