// Package expr parses and evaluates invocation expressions.
//
// An invocation expression is a structured command a routing document
// carries for endpoints whose protocol is call-oriented (the binary switcher
// and the websocket RPC client). Each expression names one operation and its
// positional arguments; an argument may itself be an invocation whose result
// feeds the outer call:
//
//	{"setSource": [{"pull": {"attr": {"getState": []}}}]}
//
// evaluates getState(), projects attribute "attr" from its result, then calls
// setSource with that value.
//
// # Closed operation tables
//
// Operations are looked up in a Table built by each driver. A Table maps a
// name to a typed handler with a fixed arity. Names outside the table fail
// with ErrUnknownOperation; nothing is ever resolved by reflecting on the
// target's methods.
//
// # Projection
//
// When a nested result is an object and no attribute is named, the first
// attribute in ascending lexicographic order is used. See Project.
package expr
