package provider

import (
	"sync"
	"time"
)

// MonitoringHooks lets the metrics layer observe outbound traffic without
// this package importing it.
type MonitoringHooks struct {
	// OnRequest is called before making an HTTP request
	OnRequest func(service, operation string)

	// OnResponse is called after receiving an HTTP response
	OnResponse func(service, operation string, duration time.Duration, success bool)

	// OnRateLimit is called when a request had to wait for its limiter
	OnRateLimit func(service string, waitTime time.Duration)

	// OnError is called when an error occurs
	OnError func(service, errorType string)

	// OnCache is called after every cache lookup
	OnCache func(cache string, hit bool)

	// OnCacheSize is called with the entry count after a cache grows
	OnCacheSize func(cache string, size int)
}

var (
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

func hookRequest(service, operation string) {
	if h := getMonitoringHooks(); h != nil && h.OnRequest != nil {
		h.OnRequest(service, operation)
	}
}

func hookResponse(service, operation string, d time.Duration, success bool) {
	if h := getMonitoringHooks(); h != nil && h.OnResponse != nil {
		h.OnResponse(service, operation, d, success)
	}
}

func hookRateLimit(service string, wait time.Duration) {
	if h := getMonitoringHooks(); h != nil && h.OnRateLimit != nil {
		h.OnRateLimit(service, wait)
	}
}

func hookError(service, errorType string) {
	if h := getMonitoringHooks(); h != nil && h.OnError != nil {
		h.OnError(service, errorType)
	}
}

func hookCache(cache string, hit bool) {
	if h := getMonitoringHooks(); h != nil && h.OnCache != nil {
		h.OnCache(cache, hit)
	}
}

func hookCacheSize(cache string, size int) {
	if h := getMonitoringHooks(); h != nil && h.OnCacheSize != nil {
		h.OnCacheSize(cache, size)
	}
}
