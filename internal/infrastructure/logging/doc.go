// Package logging provides the service's structured logger, a thin layer
// over log/slog.
//
// Entries carry service and version attributes; subsystems add a
// component tag with Component. Output is JSON by default or text for
// development, on stdout or stderr:
//
//	logging:
//	  level: info      # debug, info, warn, error
//	  format: json     # json, text
//	  output: stdout   # stdout, stderr
//
// Endpoint parameters can carry device passwords, so drivers log endpoint
// names and never raw parameter maps. As a backstop, attributes keyed
// password, secret, token or auth are written as [redacted].
package logging
