package routing

import (
	"fmt"
	"strings"
)

// Kind identifies the transport driver that handles an endpoint.
type Kind string

// Kind constants.
const (
	KindSerial   Kind = "serial"
	KindTelnet   Kind = "telnet"
	KindHTTPGet  Kind = "http_get"
	KindSwitcher Kind = "switcher"
	KindWSRPC    Kind = "wsrpc"
)

// AllKinds returns every supported protocol kind in a fixed order.
func AllKinds() []Kind {
	return []Kind{KindSerial, KindTelnet, KindHTTPGet, KindSwitcher, KindWSRPC}
}

// kindAliases maps alternate spellings accepted in documents.
var kindAliases = map[string]Kind{
	"http":    KindHTTPGet,
	"httpget": KindHTTPGet,
	"obs":     KindWSRPC,
}

// ParseKind converts a document value into a Kind.
// Matching is case-insensitive. Unknown values return ErrUnknownKind.
func ParseKind(s string) (Kind, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	for _, k := range AllKinds() {
		if string(k) == v {
			return k, nil
		}
	}
	if k, ok := kindAliases[v]; ok {
		return k, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// UsesInvocations reports whether payloads for this kind are invocation
// expressions rather than literal command strings.
func (k Kind) UsesInvocations() bool {
	return k == KindSwitcher || k == KindWSRPC
}

// String returns the kind tag.
func (k Kind) String() string {
	return string(k)
}
