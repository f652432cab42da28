package orchestration

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/fablevoice/fable-core/core/llms"
	"github.com/fablevoice/fable-core/core/skills"
)

// registryTools renders the registered skills as model-callable tools. The
// schemas come straight from the skill manifests.
func registryTools(registry *skills.Registry) []llms.Tool {
	if registry == nil {
		return nil
	}

	loaded := registry.List()
	tools := make([]llms.Tool, 0, len(loaded))
	for _, skill := range loaded {
		properties := make(map[string]llms.ParameterBase, len(skill.Parameters))
		var required []string
		for name, spec := range skill.Parameters {
			properties[name] = llms.ParameterBase{
				Type:        spec.Type,
				Description: spec.Description,
				Enum:        spec.Enum,
			}
			if spec.Required {
				required = append(required, name)
			}
		}
		sort.Strings(required)

		name := skill.Name
		tools = append(tools, llms.NewRawTool(name, skill.Description, llms.ToolParameters{
			Type:       "object",
			Properties: properties,
			Required:   required,
		}, func(arguments string) (string, error) {
			return registry.Invoke(context.Background(), name, arguments)
		}))
	}
	return tools
}

const defaultAssistantName = "Fable"

// defaultSystemPrompt describes the assistant's role and its skills to the
// model.
func defaultSystemPrompt(assistantName string, registry *skills.Registry) string {
	var prompt strings.Builder
	fmt.Fprintf(&prompt, "You are %s, a friendly voice assistant for children. ", assistantName)
	prompt.WriteString("Keep responses short, warm, and easy to speak aloud. ")
	prompt.WriteString("Use the available tools to tell stories, play songs, and control playback instead of inventing content yourself.")

	if registry != nil {
		loaded := registry.List()
		if len(loaded) > 0 {
			prompt.WriteString("\n\nYour skills:")
			for _, skill := range loaded {
				fmt.Fprintf(&prompt, "\n- %s: %s", skill.Name, skill.Description)
			}
		}
	}
	return prompt.String()
}
