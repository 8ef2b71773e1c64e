// Package poller keeps a cache of the controller's latest readings.
//
// A Poller reads its parameters once per interval (30 seconds by default).
// When a read fails the previous reading is kept and flagged stale, so
// consumers always see the last known value. Every result is pushed to the
// registered sinks; the MQTT bridge and the WebSocket hub are sinks.
package poller
