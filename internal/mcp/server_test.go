package mcp

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/gearlayout/pkg/document"
	"github.com/matzehuels/gearlayout/pkg/pipeline"
)

const trainDoc = `{
  "schema": "gearlayout/1",
  "entities": [
    {"id": 1, "at": [0, 0], "radius": 10, "fixed": true},
    {"id": 2, "at": [50, 0], "radius": 20}
  ],
  "constraints": [
    {"id": 1, "type": "distance", "between": [1, 2], "distance": 32}
  ]
}`

const trainYAML = `schema: gearlayout/1
entities:
  - {id: 1, at: [0, 0], fixed: true}
  - {id: 2, at: [0, 40]}
constraints:
  - {id: 1, type: distance, between: [1, 2], distance: 25}
`

func newServer(t *testing.T) *Server {
	t.Helper()
	logger := log.NewWithOptions(io.Discard, log.Options{})
	return NewServer(pipeline.NewRunner(nil, nil, logger), pipeline.Options{}, logger)
}

// makeReq builds a CallToolRequest with the given arguments.
func makeReq(toolName string, args map[string]any) mcpgo.CallToolRequest {
	req := mcpgo.CallToolRequest{}
	req.Params.Name = toolName
	req.Params.Arguments = args
	return req
}

// textContent extracts the first TextContent string from a CallToolResult.
func textContent(t *testing.T, result *mcpgo.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content, "expected at least one content item")
	tc, ok := result.Content[0].(mcpgo.TextContent)
	require.True(t, ok, "expected TextContent, got %T", result.Content[0])
	return tc.Text
}

func TestMCPServerRegistersTools(t *testing.T) {
	srv := newServer(t)
	require.NotNil(t, srv.MCPServer())
	names := []string{
		buildSolveTool().Name,
		buildValidateTool().Name,
		buildRenderTool().Name,
		buildCapabilitiesTool().Name,
	}
	assert.Equal(t, []string{"solve_layout", "validate_layout", "render_layout", "capabilities"}, names)
	assert.Contains(t, buildRenderTool().InputSchema.Required, "document")
}

func TestSolveTool(t *testing.T) {
	srv := newServer(t)
	ctx := context.Background()

	result, err := srv.HandleSolve(ctx, makeReq("solve_layout", map[string]any{"document": trainDoc}))
	require.NoError(t, err)
	require.False(t, result.IsError, textContent(t, result))

	var out struct {
		Solution document.Solution `json:"solution"`
		Cached   bool              `json:"cached"`
	}
	require.NoError(t, json.Unmarshal([]byte(textContent(t, result)), &out))
	assert.Equal(t, "converged", out.Solution.Status)
	e, ok := out.Solution.Entity(2)
	require.True(t, ok)
	assert.InDelta(t, 32.0, e.At[0], 1e-3)
	assert.InDelta(t, 0.0, e.At[1], 1e-9)
}

func TestSolveToolYAML(t *testing.T) {
	srv := newServer(t)
	result, err := srv.HandleSolve(context.Background(), makeReq("solve_layout", map[string]any{
		"document":     trainYAML,
		"input_format": "yaml",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError, textContent(t, result))
	assert.Contains(t, textContent(t, result), `"status":"converged"`)
}

func TestSolveToolIterationBudget(t *testing.T) {
	srv := newServer(t)
	result, err := srv.HandleSolve(context.Background(), makeReq("solve_layout", map[string]any{
		"document":       trainDoc,
		"max_iterations": float64(3),
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)
	text := textContent(t, result)
	assert.Contains(t, text, `"status":"not_converged"`)
	assert.Contains(t, text, `"iters":3`)
}

func TestSolveToolErrors(t *testing.T) {
	srv := newServer(t)
	ctx := context.Background()

	tests := []struct {
		name string
		args map[string]any
		want string
	}{
		{"missing document", map[string]any{}, "document is required"},
		{"bad format", map[string]any{"document": trainDoc, "input_format": "xml"}, "unsupported format"},
		{"bad json", map[string]any{"document": "{"}, ""},
		{
			"strict dangling",
			map[string]any{
				"document": `{"schema": "gearlayout/1", "entities": [{"id": 1, "at": [0, 0]}],
					"constraints": [{"id": 7, "type": "distance", "between": [1, 2], "distance": 1}]}`,
				"strict": true,
			},
			"unknown entity",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := srv.HandleSolve(ctx, makeReq("solve_layout", tt.args))
			require.NoError(t, err)
			assert.True(t, result.IsError)
			if tt.want != "" {
				assert.Contains(t, textContent(t, result), tt.want)
			}
		})
	}
}

func TestValidateTool(t *testing.T) {
	srv := newServer(t)
	ctx := context.Background()

	result, err := srv.HandleValidate(ctx, makeReq("validate_layout", map[string]any{"document": trainDoc}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"valid": true}`, textContent(t, result))

	result, err = srv.HandleValidate(ctx, makeReq("validate_layout", map[string]any{
		"document": `{"schema": "gearlayout/0", "entities": []}`,
	}))
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(textContent(t, result)), &out))
	assert.Equal(t, false, out["valid"])
	assert.Contains(t, out["error"], "schema")

	result, err = srv.HandleValidate(ctx, makeReq("validate_layout", map[string]any{
		"document": `{"schema": "gearlayout/1", "entities": [{"id": 1, "at": [0, 0]}],
			"constraints": [{"id": 1, "type": "distance", "between": [1, 9], "distance": 1}]}`,
	}))
	require.NoError(t, err)
	assert.Contains(t, textContent(t, result), "unknown entity 9")
}

func TestRenderTool(t *testing.T) {
	srv := newServer(t)
	ctx := context.Background()

	result, err := srv.HandleRender(ctx, makeReq("render_layout", map[string]any{"document": trainDoc}))
	require.NoError(t, err)
	require.False(t, result.IsError, textContent(t, result))
	assert.True(t, strings.HasPrefix(strings.TrimSpace(textContent(t, result)), "<svg"))

	result, err = srv.HandleRender(ctx, makeReq("render_layout", map[string]any{
		"document": trainDoc,
		"format":   "dot",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError, textContent(t, result))
	assert.Contains(t, textContent(t, result), "1 -- 2")

	result, err = srv.HandleRender(ctx, makeReq("render_layout", map[string]any{
		"document": trainDoc,
		"format":   "json",
	}))
	require.NoError(t, err)
	assert.Contains(t, textContent(t, result), `"status": "converged"`)

	result, err = srv.HandleRender(ctx, makeReq("render_layout", map[string]any{
		"document": trainDoc,
		"format":   "png",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)

	result, err = srv.HandleRender(ctx, makeReq("render_layout", map[string]any{
		"document": trainDoc,
		"view":     "diagonal",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestCapabilitiesTool(t *testing.T) {
	srv := newServer(t)
	result, err := srv.HandleCapabilities(context.Background(), makeReq("capabilities", nil))
	require.NoError(t, err)

	var caps pipeline.Capabilities
	require.NoError(t, json.Unmarshal([]byte(textContent(t, result)), &caps))
	assert.Equal(t, document.Schema, caps.Schema)
	assert.Equal(t, 1000, caps.Solver.MaxIterations)
	assert.Contains(t, caps.ExportFormats, "svg")
}
