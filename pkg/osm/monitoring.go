package osm

import (
	"sync"
	"time"
)

// MonitoringHooks defines hooks for observing feed scans
type MonitoringHooks struct {
	// OnScan is called after a complete pass over one element kind
	OnScan func(format, kind string, count int, duration time.Duration)

	// OnError is called when a feed fails to open or decode
	OnError func(format, errorType string)
}

var (
	// Global monitoring hooks
	globalHooks *MonitoringHooks
	hooksMutex  sync.RWMutex
)

// SetMonitoringHooks sets global monitoring hooks
func SetMonitoringHooks(hooks *MonitoringHooks) {
	hooksMutex.Lock()
	defer hooksMutex.Unlock()
	globalHooks = hooks
}

func getMonitoringHooks() *MonitoringHooks {
	hooksMutex.RLock()
	defer hooksMutex.RUnlock()
	return globalHooks
}

func reportScan(format, kind string, count int, d time.Duration) {
	if hooks := getMonitoringHooks(); hooks != nil && hooks.OnScan != nil {
		hooks.OnScan(format, kind, count, d)
	}
}

func reportError(format, errorType string) {
	if hooks := getMonitoringHooks(); hooks != nil && hooks.OnError != nil {
		hooks.OnError(format, errorType)
	}
}
