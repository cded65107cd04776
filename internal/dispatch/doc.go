// Package dispatch turns a selection address into device traffic.
//
// A Dispatcher re-reads the routing document, resolves the address to its
// endpoint targets and hands each one, in endpoint declaration order, to the
// driver registry. Every request produces an Execution describing what
// happened per endpoint; dispatch itself never fails as a whole. A miss, an
// unusable document or a broken endpoint is logged and recorded.
//
// Executions are optionally persisted (SQLite), published on MQTT,
// broadcast to websocket clients and written as InfluxDB points.
package dispatch
