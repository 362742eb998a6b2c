package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/cloudwego/eino/schema"

	"github.com/pixelforge-ai/pixelforge/internal/apperr"
)

// Registry is the static dispatch table from tool name to Tool. It is
// built once at startup and never mutated afterwards.
type Registry struct {
	tools map[string]Tool
}

// NewRegistry creates a registry over the given tools.
func NewRegistry(tools ...Tool) *Registry {
	r := &Registry{tools: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		r.tools[t.ID()] = t
	}
	return r
}

// Resolve returns the tool or apperr.ErrUnknownTool.
func (r *Registry) Resolve(name string) (Tool, error) {
	t, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("tool %q: %w", name, apperr.ErrUnknownTool)
	}
	return t, nil
}

// IDs returns all tool ids, sorted.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.tools))
	for id := range r.tools {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Infos returns eino tool definitions for the given allow-list; an empty
// allow-list exports every registered tool.
func (r *Registry) Infos(allowed []string) []*schema.ToolInfo {
	permit := func(string) bool { return true }
	if len(allowed) > 0 {
		set := make(map[string]bool, len(allowed))
		for _, name := range allowed {
			set[name] = true
		}
		permit = func(name string) bool { return set[name] }
	}

	infos := make([]*schema.ToolInfo, 0, len(r.tools))
	for _, id := range r.IDs() {
		if !permit(id) {
			continue
		}
		t := r.tools[id]
		infos = append(infos, &schema.ToolInfo{
			Name:        t.ID(),
			Desc:        t.Description(),
			ParamsOneOf: schema.NewParamsOneOfByParams(parseJSONSchemaToParams(t.Parameters())),
		})
	}
	return infos
}

// Invoke executes a tool and converts any panic into a structured error so
// the caller can always produce a step record.
func (r *Registry) Invoke(ctx context.Context, t Tool, args json.RawMessage) (result *Result, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			result = nil
			err = fmt.Errorf("tool %s panicked: %v", t.ID(), rec)
		}
	}()
	return t.Execute(ctx, args)
}

// parseJSONSchemaToParams converts JSON Schema to eino ParameterInfo.
func parseJSONSchemaToParams(schemaJSON json.RawMessage) map[string]*schema.ParameterInfo {
	var jsonSchema struct {
		Properties map[string]struct {
			Type        string `json:"type"`
			Description string `json:"description"`
		} `json:"properties"`
		Required []string `json:"required"`
	}

	if err := json.Unmarshal(schemaJSON, &jsonSchema); err != nil {
		return nil
	}

	requiredSet := make(map[string]bool)
	for _, r := range jsonSchema.Required {
		requiredSet[r] = true
	}

	params := make(map[string]*schema.ParameterInfo)
	for name, prop := range jsonSchema.Properties {
		paramType := schema.String
		switch prop.Type {
		case "integer":
			paramType = schema.Integer
		case "number":
			paramType = schema.Number
		case "boolean":
			paramType = schema.Boolean
		case "array":
			paramType = schema.Array
		case "object":
			paramType = schema.Object
		}

		params[name] = &schema.ParameterInfo{
			Type:     paramType,
			Desc:     prop.Description,
			Required: requiredSet[name],
		}
	}

	return params
}
