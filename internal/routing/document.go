package routing

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"

	"github.com/nerrad567/video-route/internal/expr"
)

// Document section and node keys.
const (
	keyEndpoints   = "endpoints"
	keySources     = "sources"
	keyCommands    = "commands"
	keyName        = "name"
	keyIcon        = "icon"
	keyOverlay     = "overlay"
	keyDescription = "description"

	keyKind       = "kind"
	keyInit       = "init"
	keyDelayMS    = "delay_ms"
	keyTerminator = "terminator"
)

// Parse reads a routing document.
//
// The document may be YAML or JSON (JSON is parsed as YAML). It is decoded
// with the yaml.v3 node API so that mapping order, which defines both
// endpoint dispatch order and presentation order of sources, is preserved.
//
// Leaves may list their payloads under a "commands" mapping, or directly
// next to their display fields using endpoint names as keys.
//
// Parameters:
//   - data: Raw document bytes
//
// Returns:
//   - *Document: The parsed document, including non-fatal Warnings
//   - error: ErrInvalidDocument wrapping every problem found
func Parse(data []byte) (*Document, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return nil, fmt.Errorf("%w: document is empty", ErrInvalidDocument)
	}
	top := deref(root.Content[0])
	if top.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: top level must be a mapping", ErrInvalidDocument)
	}

	p := &parser{doc: Placeholder()}

	var sources *yaml.Node
	p.eachPair(top, "", func(key string, value *yaml.Node) {
		switch key {
		case keyEndpoints:
			p.parseEndpoints(value)
		case keySources:
			sources = value
		default:
			p.warn("ignoring unknown top-level key %q", key)
		}
	})

	// Sources are parsed after endpoints so leaves can be checked against
	// the configured endpoint set regardless of section order.
	if sources != nil {
		p.parseChildren(p.doc.Root, sources)
	}

	if len(p.errs) > 0 {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDocument, errors.Join(p.errs...))
	}
	return p.doc, nil
}

// parser accumulates the document and every problem found while walking it.
type parser struct {
	doc  *Document
	errs []error
}

func (p *parser) fail(err error) {
	p.errs = append(p.errs, err)
}

func (p *parser) warn(format string, args ...any) {
	p.doc.Warnings = append(p.doc.Warnings, fmt.Sprintf(format, args...))
}

// eachPair walks a mapping node in document order, rejecting duplicate and
// malformed keys.
func (p *parser) eachPair(n *yaml.Node, where string, fn func(key string, value *yaml.Node)) {
	n = deref(n)
	if n.Kind != yaml.MappingNode {
		p.fail(fmt.Errorf("%s: expected a mapping (line %d)", label(where), n.Line))
		return
	}
	seen := make(map[string]bool, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		k := deref(n.Content[i])
		if k.Kind != yaml.ScalarNode {
			p.fail(fmt.Errorf("%s: non-scalar key (line %d)", label(where), k.Line))
			continue
		}
		if seen[k.Value] {
			p.fail(fmt.Errorf("%s: duplicate key %q (line %d)", label(where), k.Value, k.Line))
			continue
		}
		seen[k.Value] = true
		fn(k.Value, n.Content[i+1])
	}
}

func (p *parser) parseEndpoints(n *yaml.Node) {
	p.eachPair(n, keyEndpoints, func(name string, value *yaml.Node) {
		if err := validateKey(name); err != nil {
			p.fail(fmt.Errorf("endpoint %q: %w", name, err))
			return
		}
		ep, err := parseEndpoint(name, value)
		if err != nil {
			p.fail(err)
			return
		}
		p.doc.endpoints[name] = len(p.doc.Endpoints)
		p.doc.Endpoints = append(p.doc.Endpoints, ep)
	})
}

func parseEndpoint(name string, n *yaml.Node) (Endpoint, error) {
	var raw map[string]any
	if err := deref(n).Decode(&raw); err != nil {
		return Endpoint{}, fmt.Errorf("endpoint %q: %w", name, err)
	}

	kindRaw, ok := raw[keyKind]
	if !ok {
		return Endpoint{}, fmt.Errorf("endpoint %q: %w: kind is required", name, ErrUnknownKind)
	}
	kind, err := ParseKind(cast.ToString(kindRaw))
	if err != nil {
		return Endpoint{}, fmt.Errorf("endpoint %q: %w", name, err)
	}

	ep := Endpoint{Name: name, Kind: kind, Params: make(map[string]any, len(raw))}
	var errs []error
	for key, v := range raw {
		switch key {
		case keyKind:
		case keyInit:
			payload, err := parsePayload(kind, v)
			if err != nil {
				errs = append(errs, fmt.Errorf("init: %w", err))
				continue
			}
			ep.Init = payload
		case keyDelayMS:
			ms, err := cast.ToIntE(v)
			if err != nil || ms < 0 {
				errs = append(errs, fmt.Errorf("%s must be a non-negative integer, got %v", keyDelayMS, v))
				continue
			}
			ep.Delay = time.Duration(ms) * time.Millisecond
		case keyTerminator:
			s, err := cast.ToStringE(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", keyTerminator, err))
				continue
			}
			ep.Terminator = s
		default:
			ep.Params[key] = v
		}
	}
	if len(errs) > 0 {
		return Endpoint{}, fmt.Errorf("endpoint %q: %w", name, errors.Join(errs...))
	}
	return ep, nil
}

// parseChildren adds every entry of a sources mapping to parent, in order.
func (p *parser) parseChildren(parent *Node, n *yaml.Node) {
	p.eachPair(n, parent.Address, func(key string, value *yaml.Node) {
		if err := validateKey(key); err != nil {
			p.fail(fmt.Errorf("%s: %w", label(join(parent.Address, key)), err))
			return
		}
		if child := p.parseNode(key, join(parent.Address, key), value); child != nil {
			parent.addChild(child)
		}
	})
}

func (p *parser) parseNode(key, address string, n *yaml.Node) *Node {
	n = deref(n)
	if n.Kind != yaml.MappingNode {
		p.fail(fmt.Errorf("%s: source must be a mapping (line %d)", label(address), n.Line))
		return nil
	}

	isGroup := false
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == keySources {
			isGroup = true
			break
		}
	}

	var node *Node
	if isGroup {
		node = newGroup(key, address)
	} else {
		node = &Node{Key: key, Address: address, Payloads: make(map[string]Payload)}
	}

	p.eachPair(n, address, func(field string, value *yaml.Node) {
		switch field {
		case keyName:
			node.Name = p.scalar(address, field, value)
		case keyIcon:
			node.Icon = p.scalar(address, field, value)
		case keyOverlay:
			node.Overlay = p.scalar(address, field, value)
		case keyDescription:
			node.Description = p.scalar(address, field, value)
		case keySources:
			p.parseChildren(node, value)
		case keyCommands:
			if isGroup {
				p.warn("%s: group ignores %q", address, keyCommands)
				return
			}
			p.eachPair(value, address, func(endpoint string, payload *yaml.Node) {
				p.addPayload(node, endpoint, payload)
			})
		default:
			if isGroup {
				p.warn("%s: group ignores key %q", address, field)
				return
			}
			p.addPayload(node, field, value)
		}
	})
	return node
}

// addPayload records a leaf payload for a configured endpoint. Payloads for
// endpoints that are not configured are dropped with a warning so they
// never dispatch.
func (p *parser) addPayload(leaf *Node, endpoint string, n *yaml.Node) {
	ep, ok := p.doc.Endpoint(endpoint)
	if !ok {
		p.warn("%s: references unknown endpoint %q", leaf.Address, endpoint)
		return
	}
	var raw any
	if err := deref(n).Decode(&raw); err != nil {
		p.fail(fmt.Errorf("%s: endpoint %q: %w", leaf.Address, endpoint, err))
		return
	}
	payload, err := parsePayload(ep.Kind, raw)
	if err != nil {
		p.fail(fmt.Errorf("%s: endpoint %q: %w", leaf.Address, endpoint, err))
		return
	}
	leaf.Payloads[endpoint] = payload
}

func (p *parser) scalar(address, field string, n *yaml.Node) string {
	n = deref(n)
	if n.Kind != yaml.ScalarNode {
		p.fail(fmt.Errorf("%s: %q must be a string (line %d)", label(address), field, n.Line))
		return ""
	}
	return n.Value
}

// parsePayload interprets a decoded payload value under the endpoint kind.
// A single command may be written without the surrounding list.
func parsePayload(kind Kind, v any) (Payload, error) {
	if kind.UsesInvocations() {
		switch t := v.(type) {
		case nil:
			return Payload{}, nil
		case map[string]any:
			inv, err := expr.Parse(t)
			if err != nil {
				return Payload{}, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
			}
			return Payload{Invocations: []expr.Invocation{inv}}, nil
		case []any:
			invs, err := expr.ParseList(t)
			if err != nil {
				return Payload{}, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
			}
			return Payload{Invocations: invs}, nil
		default:
			return Payload{}, fmt.Errorf("%w: %s expects invocation expressions, got %T", ErrInvalidPayload, kind, v)
		}
	}

	var items []any
	switch t := v.(type) {
	case nil:
		return Payload{}, nil
	case []any:
		items = t
	default:
		items = []any{t}
	}

	cmds := make([]string, 0, len(items))
	for i, item := range items {
		if _, isMap := item.(map[string]any); isMap {
			return Payload{}, fmt.Errorf("%w: %s command %d must be a string", ErrInvalidPayload, kind, i)
		}
		s, err := cast.ToStringE(item)
		if err != nil {
			return Payload{}, fmt.Errorf("%w: %s command %d: %w", ErrInvalidPayload, kind, i, err)
		}
		cmds = append(cmds, s)
	}
	return Payload{Commands: cmds}, nil
}

func validateKey(key string) error {
	if key == "" {
		return fmt.Errorf("%w: empty key", ErrInvalidKey)
	}
	if strings.Contains(key, Delimiter) {
		return fmt.Errorf("%w: %q contains %q", ErrInvalidKey, key, Delimiter)
	}
	return nil
}

// deref follows YAML aliases to the anchored node.
func deref(n *yaml.Node) *yaml.Node {
	for n.Kind == yaml.AliasNode && n.Alias != nil {
		n = n.Alias
	}
	return n
}

func label(address string) string {
	if address == "" {
		return keySources
	}
	return address
}
