package routing

import (
	"fmt"
	"strings"
)

// Delimiter separates the keys of an address. Keys may not contain it.
const Delimiter = "|"

// SplitAddress splits an address into its key segments.
func SplitAddress(address string) []string {
	return strings.Split(address, Delimiter)
}

// JoinAddress builds an address from key segments.
func JoinAddress(segments ...string) string {
	return strings.Join(segments, Delimiter)
}

func join(parent, key string) string {
	if parent == "" {
		return key
	}
	return parent + Delimiter + key
}

// Resolve walks the Source Tree to the node an address names and returns
// the (endpoint, payload) pairs to dispatch.
//
// Each segment must match a child key of the current group exactly; only
// the matched child is descended into. When the address ends on a leaf, one
// Target is returned per configured endpoint the leaf references, ordered by
// endpoint declaration order in the document (not by the order the leaf
// lists them).
//
// A miss never panics and never produces targets. The error explains the
// miss so callers can log it:
//   - ErrEmptyAddress: address is empty
//   - ErrUnknownSegment: a segment has no matching child
//   - ErrLeafOverrun: segments remain after reaching a leaf
//   - ErrGroupTarget: the address ends on a group
//
// Parameters:
//   - address: Delimited address such as "groupA|snes"
//
// Returns:
//   - []Target: Targets in endpoint declaration order (nil on a miss)
//   - error: Reason for a miss, nil on a match
func (d *Document) Resolve(address string) ([]Target, error) {
	if address == "" {
		return nil, ErrEmptyAddress
	}

	node := d.Root
	segments := SplitAddress(address)
	for i, seg := range segments {
		if !node.IsGroup() {
			return nil, fmt.Errorf("%w: %q has no children (remaining %q)",
				ErrLeafOverrun, node.Address, JoinAddress(segments[i:]...))
		}
		child, ok := node.Child(seg)
		if !ok {
			return nil, fmt.Errorf("%w: %q under %q", ErrUnknownSegment, seg, label(node.Address))
		}
		node = child
	}

	if node.IsGroup() {
		return nil, fmt.Errorf("%w: %q", ErrGroupTarget, node.Address)
	}

	targets := make([]Target, 0, len(node.Payloads))
	for _, ep := range d.Endpoints {
		if payload, ok := node.Payloads[ep.Name]; ok {
			targets = append(targets, Target{Endpoint: ep, Payload: payload})
		}
	}
	return targets, nil
}
