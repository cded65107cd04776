// Package routing models the routing document: the configured endpoints and
// the Source Tree of selectable sources.
//
// A document declares endpoints (one per device, each with a protocol Kind)
// and a tree of sources. Groups contain further sources; leaves carry a
// command payload per endpoint:
//
//	endpoints:
//	  crosspoint: {kind: serial, device: "USB-Serial Controller"}
//	  scaler:     {kind: http_get, host: 10.0.0.20}
//	sources:
//	  groupA:
//	    name: Group A
//	    sources:
//	      snes:
//	        name: SNES
//	        commands:
//	          scaler: ["profile1"]
//	          crosspoint: ["1*1!", "1*2!"]
//
// A node's address is its key path joined with Delimiter ("groupA|snes").
// Document.Resolve turns an address into dispatch targets ordered by
// endpoint declaration, so the crosspoint above always switches before the
// scaler.
//
// Loader re-reads the document on demand and swaps the in-memory snapshot
// atomically.
package routing
