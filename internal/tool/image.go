package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/pixelforge-ai/pixelforge/pkg/types"
)

// Tool credit costs. Rejected or failed calls are never charged.
const (
	CostRemoveBackground = 2.0
	CostUpscale          = 3.0
	CostCompress         = 1.0
	CostGenerateImage    = 5.0
	CostStyleTransfer    = 4.0
)

// RemoteTool is a Tool implemented as one REST call to an image-processing
// model provider.
type RemoteTool struct {
	id          string
	description string
	cost        float64
	parameters  json.RawMessage
	path        string
	client      *resty.Client
}

func (t *RemoteTool) ID() string                  { return t.id }
func (t *RemoteTool) Description() string         { return t.description }
func (t *RemoteTool) Cost() float64               { return t.cost }
func (t *RemoteTool) Parameters() json.RawMessage { return t.parameters }

// remoteResponse is the provider's wire format.
type remoteResponse struct {
	Output   string         `json:"output"`
	Images   []string       `json:"images,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Error    string         `json:"error,omitempty"`
}

func (t *RemoteTool) Execute(ctx context.Context, input json.RawMessage) (*Result, error) {
	var out remoteResponse
	resp, err := t.client.R().
		SetContext(ctx).
		SetBody(input).
		SetResult(&out).
		SetError(&out).
		Post(t.path)
	if err != nil {
		return nil, fmt.Errorf("%s request: %w", t.id, err)
	}

	if resp.IsError() {
		msg := out.Error
		if msg == "" {
			msg = resp.String()
		}
		return nil, fmt.Errorf("%s: provider returned %d: %s", t.id, resp.StatusCode(), msg)
	}

	output := out.Output
	if output == "" && len(out.Images) > 0 {
		output = fmt.Sprintf("produced %d image(s)", len(out.Images))
	}

	return &Result{
		Output:   output,
		Images:   out.Images,
		Metadata: out.Metadata,
	}, nil
}

// remoteSpec declares one built-in tool.
type remoteSpec struct {
	id          string
	description string
	cost        float64
	path        string
	parameters  string
}

var builtinSpecs = []remoteSpec{
	{
		id:          "remove_background",
		description: "Removes the background from an image, returning the subject on a transparent background.",
		cost:        CostRemoveBackground,
		path:        "/v1/remove-background",
		parameters: `{
			"type": "object",
			"properties": {
				"image": {"type": "string", "description": "URL or data URL of the source image"}
			},
			"required": ["image"]
		}`,
	},
	{
		id:          "upscale",
		description: "Upscales an image by the given factor using a super-resolution model.",
		cost:        CostUpscale,
		path:        "/v1/upscale",
		parameters: `{
			"type": "object",
			"properties": {
				"image": {"type": "string", "description": "URL or data URL of the source image"},
				"factor": {"type": "integer", "description": "Upscale factor, 2 or 4"}
			},
			"required": ["image", "factor"]
		}`,
	},
	{
		id:          "compress",
		description: "Compresses an image to reduce file size with minimal quality loss.",
		cost:        CostCompress,
		path:        "/v1/compress",
		parameters: `{
			"type": "object",
			"properties": {
				"image": {"type": "string", "description": "URL or data URL of the source image"},
				"quality": {"type": "integer", "description": "Target quality from 1 to 100, default 80"}
			},
			"required": ["image"]
		}`,
	},
	{
		id:          "generate_image",
		description: "Generates a new image from a text prompt.",
		cost:        CostGenerateImage,
		path:        "/v1/generate",
		parameters: `{
			"type": "object",
			"properties": {
				"prompt": {"type": "string", "description": "Text description of the image to generate"},
				"size": {"type": "string", "description": "Output size, e.g. 1024x1024"}
			},
			"required": ["prompt"]
		}`,
	},
	{
		id:          "style_transfer",
		description: "Re-renders an image in the style described by the prompt.",
		cost:        CostStyleTransfer,
		path:        "/v1/style-transfer",
		parameters: `{
			"type": "object",
			"properties": {
				"image": {"type": "string", "description": "URL or data URL of the source image"},
				"style": {"type": "string", "description": "Style description, e.g. 'watercolor'"}
			},
			"required": ["image", "style"]
		}`,
	},
}

// DefaultRegistry builds the registry of built-in image tools against the
// configured provider gateway.
func DefaultRegistry(cfg types.ToolsConfig) *Registry {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(time.Duration(cfg.TimeoutSeconds) * time.Second).
		SetHeader("Content-Type", "application/json")
	if cfg.APIKey != "" {
		client.SetAuthToken(cfg.APIKey)
	}

	tools := make([]Tool, 0, len(builtinSpecs))
	for _, spec := range builtinSpecs {
		path := spec.path
		if override, ok := cfg.Endpoints[spec.id]; ok {
			path = override
		}
		tools = append(tools, &RemoteTool{
			id:          spec.id,
			description: spec.description,
			cost:        spec.cost,
			parameters:  json.RawMessage(spec.parameters),
			path:        path,
			client:      client,
		})
	}
	return NewRegistry(tools...)
}
