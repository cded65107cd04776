package routing

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

const testDocument = `
endpoints:
  crosspoint:
    kind: serial
    device: USB-Serial Controller
    baud: 9600
    init: "#ESCZXXX"
  scaler:
    kind: http_get
    host: 10.0.0.20
    delay_ms: 100
  mixer:
    kind: switcher
    host: 10.0.0.30
sources:
  groupA:
    name: Group A
    icon: group.png
    sources:
      snes:
        name: SNES
        icon: snes.png
        overlay: "480p"
        commands:
          scaler: ["profile1"]
          crosspoint: ["1*1!", "1*2!"]
      genesis:
        name: Genesis
        crosspoint: ["2*1!"]
      ghost:
        name: Ghost
        commands:
          nowhere: ["x"]
          scaler: ["profile9"]
  camera:
    name: Camera
    description: Live camera
    commands:
      mixer:
        - setProgram: [2]
        - setPreview: [{pull: {input: {getInput: ["Camera 2"]}}}]
`

func mustParse(t *testing.T, src string) *Document {
	t.Helper()
	doc, err := Parse([]byte(src))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	return doc
}

func targetNames(targets []Target) []string {
	names := make([]string, len(targets))
	for i, tg := range targets {
		names[i] = tg.Endpoint.Name
	}
	return names
}

// ─── Parse ──────────────────────────────────────────────────────────────────

func TestParse_Endpoints(t *testing.T) {
	doc := mustParse(t, testDocument)

	if got := len(doc.Endpoints); got != 3 {
		t.Fatalf("len(Endpoints) = %d, want 3", got)
	}
	wantOrder := []string{"crosspoint", "scaler", "mixer"}
	for i, name := range wantOrder {
		if doc.Endpoints[i].Name != name {
			t.Errorf("Endpoints[%d] = %q, want %q", i, doc.Endpoints[i].Name, name)
		}
	}

	cross, ok := doc.Endpoint("crosspoint")
	if !ok {
		t.Fatal("crosspoint endpoint missing")
	}
	if cross.Kind != KindSerial {
		t.Errorf("Kind = %q, want serial", cross.Kind)
	}
	if cross.Params["device"] != "USB-Serial Controller" {
		t.Errorf("device param = %v", cross.Params["device"])
	}
	if _, ok := cross.Params["kind"]; ok {
		t.Error("kind leaked into Params")
	}
	if !reflect.DeepEqual(cross.Init.Commands, []string{"#ESCZXXX"}) {
		t.Errorf("Init = %v, want [#ESCZXXX]", cross.Init.Commands)
	}

	scaler, _ := doc.Endpoint("scaler")
	if scaler.Delay != 100*time.Millisecond {
		t.Errorf("Delay = %v, want 100ms", scaler.Delay)
	}

	if got := doc.InitEndpoints(); len(got) != 1 || got[0].Name != "crosspoint" {
		t.Errorf("InitEndpoints() = %v, want [crosspoint]", targetNamesFromEndpoints(got))
	}
	if got := doc.Kinds(); !reflect.DeepEqual(got, []Kind{KindSerial, KindHTTPGet, KindSwitcher}) {
		t.Errorf("Kinds() = %v", got)
	}
}

func targetNamesFromEndpoints(eps []Endpoint) []string {
	out := make([]string, len(eps))
	for i, ep := range eps {
		out[i] = ep.Name
	}
	return out
}

// nodeAt walks keys down from n, returning nil at the first miss.
func nodeAt(n *Node, keys ...string) *Node {
	for _, k := range keys {
		child, ok := n.Child(k)
		if !ok {
			return nil
		}
		n = child
	}
	return n
}

func TestParse_TreePreservesOrderAndMetadata(t *testing.T) {
	doc := mustParse(t, testDocument)

	var top []string
	for _, c := range doc.Root.Children {
		top = append(top, c.Key)
	}
	if !reflect.DeepEqual(top, []string{"groupA", "camera"}) {
		t.Errorf("root children = %v, want [groupA camera]", top)
	}

	group, ok := doc.Root.Child("groupA")
	if !ok || !group.IsGroup() {
		t.Fatal("groupA should be a group")
	}
	var keys []string
	for _, c := range group.Children {
		keys = append(keys, c.Key)
	}
	if !reflect.DeepEqual(keys, []string{"snes", "genesis", "ghost"}) {
		t.Errorf("groupA children = %v, want [snes genesis ghost]", keys)
	}

	snes, ok := group.Child("snes")
	if !ok || snes.IsGroup() {
		t.Fatal("groupA|snes should be a leaf")
	}
	if snes.Name != "SNES" || snes.Icon != "snes.png" || snes.Overlay != "480p" {
		t.Errorf("snes metadata = %+v", snes)
	}
	if snes.Address != "groupA|snes" {
		t.Errorf("Address = %q, want groupA|snes", snes.Address)
	}
	if _, ok := snes.Payloads["crosspoint"]; !ok || len(snes.Payloads) != 2 {
		t.Errorf("snes payloads = %v, want crosspoint and scaler", snes.Payloads)
	}
}

func TestParse_UnknownEndpointIsWarning(t *testing.T) {
	doc := mustParse(t, testDocument)

	found := false
	for _, w := range doc.Warnings {
		if strings.Contains(w, `"nowhere"`) {
			found = true
		}
	}
	if !found {
		t.Errorf("Warnings = %v, want a warning about nowhere", doc.Warnings)
	}

	targets, err := doc.Resolve("groupA|ghost")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got := targetNames(targets); !reflect.DeepEqual(got, []string{"scaler"}) {
		t.Errorf("targets = %v, want [scaler]", got)
	}
}

func TestParse_InvocationPayload(t *testing.T) {
	doc := mustParse(t, testDocument)

	targets, err := doc.Resolve("camera")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if len(targets) != 1 {
		t.Fatalf("len(targets) = %d, want 1", len(targets))
	}
	invs := targets[0].Payload.Invocations
	if len(invs) != 2 || len(targets[0].Payload.Commands) != 0 {
		t.Fatalf("payload = %+v, want two invocations", targets[0].Payload)
	}
	if got := invs[1].String(); got != `setPreview(pull(getInput("Camera 2"), "input"))` {
		t.Errorf("second invocation = %s", got)
	}
}

func TestParse_JSONDocument(t *testing.T) {
	src := `{
	  "endpoints": {
	    "crosspoint": {"kind": "serial", "device": "/dev/ttyUSB0"},
	    "scaler": {"kind": "http", "host": "10.0.0.20"}
	  },
	  "sources": {
	    "groupA": {"sources": {"snes": {"name": "SNES", "scaler": ["profile1"], "crosspoint": ["1*1!", "1*2!"]}}}
	  }
	}`
	doc := mustParse(t, strings.ReplaceAll(src, "\t", ""))

	scaler, _ := doc.Endpoint("scaler")
	if scaler.Kind != KindHTTPGet {
		t.Errorf("alias kind = %q, want http_get", scaler.Kind)
	}
	targets, err := doc.Resolve("groupA|snes")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got := targetNames(targets); !reflect.DeepEqual(got, []string{"crosspoint", "scaler"}) {
		t.Errorf("targets = %v, want [crosspoint scaler]", got)
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		wantErr error
	}{
		{name: "empty", src: ``, wantErr: ErrInvalidDocument},
		{name: "not a mapping", src: `[1, 2]`, wantErr: ErrInvalidDocument},
		{name: "unknown kind", src: "endpoints:\n  x: {kind: carrier_pigeon}\n", wantErr: ErrUnknownKind},
		{name: "missing kind", src: "endpoints:\n  x: {host: a}\n", wantErr: ErrUnknownKind},
		{name: "delimiter in key", src: "sources:\n  \"a|b\": {name: x}\n", wantErr: ErrInvalidKey},
		{name: "duplicate key", src: "sources:\n  a: {name: x}\n  a: {name: y}\n", wantErr: ErrInvalidDocument},
		{
			name:    "command string for switcher",
			src:     "endpoints:\n  m: {kind: switcher}\nsources:\n  a: {m: \"cut\"}\n",
			wantErr: ErrInvalidPayload,
		},
		{
			name:    "mapping for serial",
			src:     "endpoints:\n  s: {kind: serial}\nsources:\n  a: {s: [{cut: []}]}\n",
			wantErr: ErrInvalidPayload,
		},
		{name: "negative delay", src: "endpoints:\n  s: {kind: serial, delay_ms: -1}\n", wantErr: ErrInvalidDocument},
		{name: "scalar source", src: "sources:\n  a: 5\n", wantErr: ErrInvalidDocument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.src))
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Parse() error = %v, want %v", err, tt.wantErr)
			}
			if !errors.Is(err, ErrInvalidDocument) {
				t.Errorf("error %v does not wrap ErrInvalidDocument", err)
			}
		})
	}
}

func TestParse_ScalarCommandsAreStrings(t *testing.T) {
	doc := mustParse(t, "endpoints:\n  s: {kind: telnet}\nsources:\n  a: {s: [1, \"2*3!\"]}\n  b: {s: \"only\"}\n")

	a, _ := doc.Resolve("a")
	if !reflect.DeepEqual(a[0].Payload.Commands, []string{"1", "2*3!"}) {
		t.Errorf("a commands = %v", a[0].Payload.Commands)
	}
	b, _ := doc.Resolve("b")
	if !reflect.DeepEqual(b[0].Payload.Commands, []string{"only"}) {
		t.Errorf("b commands = %v", b[0].Payload.Commands)
	}
}

// ─── Resolve ────────────────────────────────────────────────────────────────

func TestResolve_EndpointDeclarationOrder(t *testing.T) {
	doc := mustParse(t, testDocument)

	targets, err := doc.Resolve("groupA|snes")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if len(targets) != 2 {
		t.Fatalf("len(targets) = %d, want 2", len(targets))
	}
	if targets[0].Endpoint.Name != "crosspoint" ||
		!reflect.DeepEqual(targets[0].Payload.Commands, []string{"1*1!", "1*2!"}) {
		t.Errorf("first target = %+v, want crosspoint [1*1! 1*2!]", targets[0])
	}
	if targets[1].Endpoint.Name != "scaler" ||
		!reflect.DeepEqual(targets[1].Payload.Commands, []string{"profile1"}) {
		t.Errorf("second target = %+v, want scaler [profile1]", targets[1])
	}
}

func TestResolve_LeafOrderDoesNotMatter(t *testing.T) {
	const head = "endpoints:\n  e1: {kind: serial}\n  e2: {kind: telnet}\n  e3: {kind: http_get}\nsources:\n  leaf:\n"
	orders := []string{
		"    e1: [a]\n    e2: [b]\n    e3: [c]\n",
		"    e3: [c]\n    e1: [a]\n    e2: [b]\n",
		"    e2: [b]\n    e3: [c]\n    e1: [a]\n",
	}
	for _, body := range orders {
		doc := mustParse(t, head+body)
		targets, err := doc.Resolve("leaf")
		if err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
		if got := targetNames(targets); !reflect.DeepEqual(got, []string{"e1", "e2", "e3"}) {
			t.Errorf("leaf body %q: targets = %v, want [e1 e2 e3]", body, got)
		}
	}
}

func TestResolve_Misses(t *testing.T) {
	doc := mustParse(t, testDocument)

	tests := []struct {
		name    string
		address string
		wantErr error
	}{
		{name: "empty address", address: "", wantErr: ErrEmptyAddress},
		{name: "unknown first segment", address: "nope", wantErr: ErrUnknownSegment},
		{name: "unknown first segment with tail", address: "nope|snes", wantErr: ErrUnknownSegment},
		{name: "missing leaf in group", address: "groupA|missingLeaf", wantErr: ErrUnknownSegment},
		{name: "group target", address: "groupA", wantErr: ErrGroupTarget},
		{name: "past a leaf", address: "groupA|snes|extra", wantErr: ErrLeafOverrun},
		{name: "sibling group not searched", address: "snes", wantErr: ErrUnknownSegment},
		{name: "trailing delimiter", address: "groupA|", wantErr: ErrUnknownSegment},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			targets, err := doc.Resolve(tt.address)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Resolve(%q) error = %v, want %v", tt.address, err, tt.wantErr)
			}
			if len(targets) != 0 {
				t.Errorf("Resolve(%q) targets = %v, want none", tt.address, targetNames(targets))
			}
		})
	}
}

func TestResolve_PlaceholderNeverMatches(t *testing.T) {
	targets, err := Placeholder().Resolve("groupA|snes")
	if !errors.Is(err, ErrUnknownSegment) || len(targets) != 0 {
		t.Errorf("Resolve() = %v, %v; want no targets and ErrUnknownSegment", targets, err)
	}
}

func TestParseKind(t *testing.T) {
	tests := map[string]Kind{
		"serial":   KindSerial,
		"TELNET":   KindTelnet,
		"http_get": KindHTTPGet,
		"http":     KindHTTPGet,
		"obs":      KindWSRPC,
		" wsrpc ":  KindWSRPC,
	}
	for in, want := range tests {
		got, err := ParseKind(in)
		if err != nil || got != want {
			t.Errorf("ParseKind(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	for _, in := range []string{"smoke_signal", "atem"} {
		if _, err := ParseKind(in); !errors.Is(err, ErrUnknownKind) {
			t.Errorf("ParseKind(%q) error = %v, want ErrUnknownKind", in, err)
		}
	}
	if !KindWSRPC.UsesInvocations() || KindSerial.UsesInvocations() {
		t.Error("UsesInvocations() classification wrong")
	}
}

// ─── Loader ─────────────────────────────────────────────────────────────────

func TestLoader_ReloadsAndFallsBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "video-route.yaml")
	l := NewLoader(path)

	if got := l.Current(); got == nil || len(got.Root.Children) != 0 {
		t.Fatal("initial snapshot should be an empty placeholder")
	}

	// Missing file: placeholder and error.
	doc, err := l.Load()
	if err == nil {
		t.Fatal("Load() of missing file should fail")
	}
	if doc == nil || len(doc.Endpoints) != 0 {
		t.Error("Load() should return placeholder on error")
	}

	// Valid document.
	if err := os.WriteFile(path, []byte(testDocument), 0o600); err != nil {
		t.Fatal(err)
	}
	doc, err = l.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(doc.Endpoints) != 3 || l.Current() != doc {
		t.Error("Load() did not replace the snapshot")
	}

	// Edited on disk: next Load sees the change.
	edited := strings.Replace(testDocument, "name: SNES", "name: Super Nintendo", 1)
	if err := os.WriteFile(path, []byte(edited), 0o600); err != nil {
		t.Fatal(err)
	}
	doc, _ = l.Load()
	if n := nodeAt(doc.Root, "groupA", "snes"); n == nil || n.Name != "Super Nintendo" {
		t.Error("Load() did not pick up edited document")
	}

	// Broken document: placeholder again.
	if err := os.WriteFile(path, []byte("endpoints: [oops"), 0o600); err != nil {
		t.Fatal(err)
	}
	doc, err = l.Load()
	if !errors.Is(err, ErrInvalidDocument) {
		t.Fatalf("Load() error = %v, want ErrInvalidDocument", err)
	}
	if len(doc.Endpoints) != 0 || l.Current() != doc {
		t.Error("broken document should leave placeholder snapshot")
	}
}
