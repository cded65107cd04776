package wsrpc

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/nerrad567/video-route/internal/expr"
)

type fieldType int

const (
	fieldString fieldType = iota
	fieldInt
	fieldBool
	fieldObject
)

// field is one positional argument of a request, in argument order.
type field struct {
	key string
	typ fieldType
}

// requests lists the request types a payload may invoke and the positional
// arguments each one maps to requestData keys.
var requests = map[string][]field{
	"GetVersion":                  nil,
	"GetSceneList":                nil,
	"GetCurrentProgramScene":      nil,
	"GetCurrentPreviewScene":      nil,
	"SetCurrentProgramScene":      {{"sceneName", fieldString}},
	"SetCurrentPreviewScene":      {{"sceneName", fieldString}},
	"TriggerStudioModeTransition": nil,
	"SetCurrentSceneTransition":   {{"transitionName", fieldString}},
	"GetSceneItemId":              {{"sceneName", fieldString}, {"sourceName", fieldString}},
	"GetSceneItemEnabled":         {{"sceneName", fieldString}, {"sceneItemId", fieldInt}},
	"SetSceneItemEnabled":         {{"sceneName", fieldString}, {"sceneItemId", fieldInt}, {"sceneItemEnabled", fieldBool}},
	"GetInputList":                nil,
	"GetInputSettings":            {{"inputName", fieldString}},
	"SetInputSettings":            {{"inputName", fieldString}, {"inputSettings", fieldObject}},
	"GetInputMute":                {{"inputName", fieldString}},
	"SetInputMute":                {{"inputName", fieldString}, {"inputMuted", fieldBool}},
	"ToggleInputMute":             {{"inputName", fieldString}},
	"StartStream":                 nil,
	"StopStream":                  nil,
	"StartRecord":                 nil,
	"StopRecord":                  nil,
}

// Operations is the closed set of request types a payload may invoke.
// Names may be written in snake_case or camelCase as well.
var Operations = expr.NewTable(buildOperations()).WithNormalizer(RequestName)

func buildOperations() map[string]expr.Operation[*Client] {
	ops := make(map[string]expr.Operation[*Client], len(requests))
	for name, fields := range requests {
		name, fields := name, fields
		ops[name] = expr.Operation[*Client]{
			Arity: len(fields),
			Call: func(ctx context.Context, c *Client, args expr.Args) (any, error) {
				data, err := requestData(fields, args)
				if err != nil {
					return nil, err
				}
				return c.Request(ctx, name, data)
			},
		}
	}
	return ops
}

func requestData(fields []field, args expr.Args) (map[string]any, error) {
	if len(fields) == 0 {
		return nil, nil
	}
	data := make(map[string]any, len(fields))
	for i, f := range fields {
		var (
			v   any
			err error
		)
		switch f.typ {
		case fieldString:
			v, err = args.String(i)
		case fieldInt:
			v, err = args.Int(i)
		case fieldBool:
			v, err = args.Bool(i)
		case fieldObject:
			v, err = args.Map(i)
		default:
			err = fmt.Errorf("%w: field %s", expr.ErrArgument, f.key)
		}
		if err != nil {
			return nil, err
		}
		data[f.key] = v
	}
	return data, nil
}

// RequestName converts set_current_program_scene and setCurrentProgramScene
// to SetCurrentProgramScene.
func RequestName(name string) string {
	var b strings.Builder
	for _, part := range strings.Split(name, "_") {
		if part == "" {
			continue
		}
		r := []rune(part)
		r[0] = unicode.ToUpper(r[0])
		b.WriteString(string(r))
	}
	return b.String()
}
