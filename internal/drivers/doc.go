// Package drivers holds what the transport drivers share: escape
// substitution for literal commands, the inter-command delay, endpoint
// parameter decoding and the logging interface.
//
// Each protocol lives in its own subpackage (serial, telnet, httpget,
// switcher, wsrpc). Every driver owns its connection for exactly one Send
// call; nothing is pooled between dispatches.
package drivers
