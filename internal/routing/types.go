package routing

import (
	"time"

	"github.com/nerrad567/video-route/internal/expr"
)

// Endpoint is one configured device reachable through exactly one protocol
// kind.
//
// Params holds the transport-specific settings exactly as written in the
// document (device, baud, host, port, password, ...). Each driver decodes the
// keys it understands.
type Endpoint struct {
	Name       string         `json:"name"`
	Kind       Kind           `json:"kind"`
	Params     map[string]any `json:"params,omitempty"`
	Init       Payload        `json:"init,omitempty"`
	Delay      time.Duration  `json:"delay,omitempty"`
	Terminator string         `json:"terminator,omitempty"`
}

// Payload is the ordered command batch for one endpoint.
//
// Exactly one field is populated, chosen by the endpoint's Kind:
// Invocations for kinds where Kind.UsesInvocations is true, Commands
// otherwise.
type Payload struct {
	Commands    []string          `json:"commands,omitempty"`
	Invocations []expr.Invocation `json:"invocations,omitempty"`
}

// Len returns the number of commands in the batch.
func (p Payload) Len() int {
	return len(p.Commands) + len(p.Invocations)
}

// IsEmpty reports whether the batch has no commands.
func (p Payload) IsEmpty() bool {
	return p.Len() == 0
}

// Node is a Source Tree node: either a Group or a Leaf.
//
// A Group has ordered Children and no payloads. A Leaf has per-endpoint
// Payloads and no children. Child order is document order.
type Node struct {
	Key         string `json:"key"`
	Address     string `json:"address"`
	Name        string `json:"name,omitempty"`
	Icon        string `json:"icon,omitempty"`
	Overlay     string `json:"overlay,omitempty"`
	Description string `json:"description,omitempty"`

	// Group only.
	Children []*Node `json:"children,omitempty"`

	// Leaf only, keyed by endpoint name.
	Payloads map[string]Payload `json:"-"`

	group    bool
	children map[string]*Node
}

// IsGroup reports whether the node is a Group.
func (n *Node) IsGroup() bool {
	return n.group
}

// Child returns the direct child with the given key.
func (n *Node) Child(key string) (*Node, bool) {
	c, ok := n.children[key]
	return c, ok
}

func newGroup(key, address string) *Node {
	return &Node{
		Key:      key,
		Address:  address,
		group:    true,
		children: make(map[string]*Node),
	}
}

func (n *Node) addChild(c *Node) {
	n.Children = append(n.Children, c)
	n.children[c.Key] = c
}

// Target is one (endpoint, payload) pair produced by resolution.
type Target struct {
	Endpoint Endpoint
	Payload  Payload
}

// Document is one parsed routing document: ordered endpoints plus the
// Source Tree rooted at Root.
//
// A Document is never mutated after parsing and is safe for concurrent
// reads.
type Document struct {
	Endpoints []Endpoint
	Root      *Node

	// Warnings lists non-fatal problems found while parsing, such as leaves
	// that reference endpoints which are not configured.
	Warnings []string

	endpoints map[string]int
}

// Placeholder returns an empty document with no endpoints and an empty
// root group. It stands in when the configured document cannot be loaded.
func Placeholder() *Document {
	return &Document{
		Root:      newGroup("", ""),
		endpoints: make(map[string]int),
	}
}

// Endpoint returns the endpoint configured under name.
func (d *Document) Endpoint(name string) (Endpoint, bool) {
	i, ok := d.endpoints[name]
	if !ok {
		return Endpoint{}, false
	}
	return d.Endpoints[i], true
}

// InitEndpoints returns the endpoints that carry startup commands, in
// declaration order.
func (d *Document) InitEndpoints() []Endpoint {
	var out []Endpoint
	for _, ep := range d.Endpoints {
		if !ep.Init.IsEmpty() {
			out = append(out, ep)
		}
	}
	return out
}

// Kinds returns the distinct protocol kinds the document uses, in the order
// they first appear.
func (d *Document) Kinds() []Kind {
	seen := make(map[Kind]bool)
	var out []Kind
	for _, ep := range d.Endpoints {
		if !seen[ep.Kind] {
			seen[ep.Kind] = true
			out = append(out, ep.Kind)
		}
	}
	return out
}
