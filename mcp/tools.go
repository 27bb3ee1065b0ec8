package mcp

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/invopop/jsonschema"

	"github.com/zhubert/agent-assistant/wire"
)

// Tool names exposed by tools/list.
const (
	ToolAskQuestion = "ask_question"
	ToolTaskFinish  = "task_finish"
)

var errMissingArgument = errors.New("missing required argument")

type askQuestionArgs struct {
	Question string `json:"question" jsonschema:"description=The question to ask."`
}

type taskFinishArgs struct {
	Summary string `json:"summary" jsonschema:"description=Summary of the task."`
}

// tool pairs a catalog entry with the function that turns its call
// arguments into a binary request carrying the given request ID.
type tool struct {
	def     ToolDefinition
	request func(requestID string, args json.RawMessage) (*wire.Message, error)
}

var catalog = []tool{
	newTool(ToolAskQuestion, "Ask the user a question via the Flutter UI.",
		func(id string, a askQuestionArgs) (*wire.Message, error) {
			if a.Question == "" {
				return nil, fmt.Errorf("%w: question", errMissingArgument)
			}
			return wire.NewAskQuestion(id, a.Question), nil
		}),
	newTool(ToolTaskFinish, "Notify the user that the task is finished.",
		func(id string, a taskFinishArgs) (*wire.Message, error) {
			if a.Summary == "" {
				return nil, fmt.Errorf("%w: summary", errMissingArgument)
			}
			return wire.NewTaskFinish(id, a.Summary), nil
		}),
}

func newTool[A any](name, description string, build func(id string, args A) (*wire.Message, error)) tool {
	return tool{
		def: ToolDefinition{
			Name:        name,
			Description: description,
			InputSchema: reflectInputSchema[A](),
		},
		request: func(id string, raw json.RawMessage) (*wire.Message, error) {
			var a A
			if len(raw) > 0 {
				if err := json.Unmarshal(raw, &a); err != nil {
					return nil, fmt.Errorf("invalid arguments: %w", err)
				}
			}
			return build(id, a)
		},
	}
}

// reflectInputSchema derives a tool input schema from the JSON tags of A.
func reflectInputSchema[A any]() InputSchema {
	r := &jsonschema.Reflector{
		DoNotReference: true,
		ExpandedStruct: true,
	}
	s := r.Reflect(new(A))

	schema := InputSchema{Type: "object", Properties: map[string]Property{}}
	if s == nil || s.Properties == nil {
		return schema
	}
	for el := s.Properties.Oldest(); el != nil; el = el.Next() {
		schema.Properties[el.Key] = Property{
			Type:        el.Value.Type,
			Description: el.Value.Description,
		}
	}
	schema.Required = append(schema.Required, s.Required...)
	return schema
}

func lookupTool(name string) (tool, bool) {
	for _, t := range catalog {
		if t.def.Name == name {
			return t, true
		}
	}
	return tool{}, false
}

func toolDefinitions() []ToolDefinition {
	defs := make([]ToolDefinition, 0, len(catalog))
	for _, t := range catalog {
		defs = append(defs, t.def)
	}
	return defs
}
