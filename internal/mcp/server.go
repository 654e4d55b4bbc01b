// Package mcp exposes the solve pipeline as Model Context Protocol tools.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	mcpgo "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/matzehuels/gearlayout/pkg/buildinfo"
	"github.com/matzehuels/gearlayout/pkg/document"
	errs "github.com/matzehuels/gearlayout/pkg/errors"
	"github.com/matzehuels/gearlayout/pkg/pipeline"
)

// Server wraps an MCPServer with the pipeline runner.
type Server struct {
	mcp    *mcpserver.MCPServer
	runner *pipeline.Runner
	base   pipeline.Options
	logger *log.Logger
}

// NewServer creates a new MCP server. base supplies the solver defaults
// every tool call starts from.
func NewServer(runner *pipeline.Runner, base pipeline.Options, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	s := &Server{
		runner: runner,
		base:   base,
		logger: logger,
	}

	mcpSrv := mcpserver.NewMCPServer(
		"gearlayout",
		buildinfo.Version,
		mcpserver.WithToolCapabilities(true),
	)

	mcpSrv.AddTool(buildSolveTool(), s.handleSolve)
	mcpSrv.AddTool(buildValidateTool(), s.handleValidate)
	mcpSrv.AddTool(buildRenderTool(), s.handleRender)
	mcpSrv.AddTool(buildCapabilitiesTool(), s.handleCapabilities)

	s.mcp = mcpSrv
	return s
}

// MCPServer returns the underlying mcp-go MCPServer for use with ServeStdio.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcp
}

// HandleSolve is the exported handler for the "solve_layout" tool.
// It is exposed for direct testing without the mcp-go transport layer.
func (s *Server) HandleSolve(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	return s.handleSolve(ctx, req)
}

// HandleValidate is the exported handler for the "validate_layout" tool.
func (s *Server) HandleValidate(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	return s.handleValidate(ctx, req)
}

// HandleRender is the exported handler for the "render_layout" tool.
func (s *Server) HandleRender(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	return s.handleRender(ctx, req)
}

// HandleCapabilities is the exported handler for the "capabilities" tool.
func (s *Server) HandleCapabilities(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	return s.handleCapabilities(ctx, req)
}

// --- helpers ---

// toolResultJSON marshals v to JSON and returns it as a tool text result.
func toolResultJSON(v any) (*mcpgo.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("mcp: marshaling result: %w", err)
	}
	return mcpgo.NewToolResultText(string(b)), nil
}

// parseDocument reads the "document" argument in the format named by "input_format".
func parseDocument(req mcpgo.CallToolRequest) (*document.Document, error) {
	text := req.GetString("document", "")
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("document is required and must not be empty")
	}
	format, err := document.ParseFormat(req.GetString("input_format", ""))
	if err != nil {
		return nil, err
	}
	return document.Parse([]byte(text), format)
}

// options layers tool arguments over the server defaults.
func (s *Server) options(req mcpgo.CallToolRequest) pipeline.Options {
	opts := s.base
	if n := req.GetInt("max_iterations", 0); n > 0 {
		opts.MaxIterations = n
	}
	if v := req.GetFloat("tolerance", 0); v > 0 {
		opts.Tolerance = v
	}
	if v := req.GetFloat("step_size", 0); v > 0 {
		opts.StepSize = v
	}
	opts.Strict = opts.Strict || req.GetBool("strict", false)
	opts.Logger = s.logger
	return opts
}

// --- tool definitions ---

func documentArgs() []mcpgo.ToolOption {
	return []mcpgo.ToolOption{
		mcpgo.WithString("document",
			mcpgo.Required(),
			mcpgo.Description("The layout document: entities with positions and distance constraints between them"),
		),
		mcpgo.WithString("input_format",
			mcpgo.Description("Document encoding: json, yaml, or toml (default: json)"),
		),
	}
}

func solverArgs() []mcpgo.ToolOption {
	return []mcpgo.ToolOption{
		mcpgo.WithNumber("max_iterations",
			mcpgo.Description("Maximum relaxation sweeps (default: 1000)"),
		),
		mcpgo.WithNumber("tolerance",
			mcpgo.Description("Convergence threshold on the summed residual (default: 1e-6)"),
		),
		mcpgo.WithNumber("step_size",
			mcpgo.Description("Fraction of each residual applied per sweep, in (0, 1] (default: 0.1)"),
		),
		mcpgo.WithBoolean("strict",
			mcpgo.Description("Fail on constraints that reference unknown entities instead of skipping them"),
		),
	}
}

func buildSolveTool() mcpgo.Tool {
	opts := []mcpgo.ToolOption{
		mcpgo.WithDescription("Solve a gear layout. Moves free entities until every distance constraint holds and returns the solved positions with diagnostics."),
	}
	opts = append(opts, documentArgs()...)
	opts = append(opts, solverArgs()...)
	return mcpgo.NewTool("solve_layout", opts...)
}

func buildValidateTool() mcpgo.Tool {
	opts := []mcpgo.ToolOption{
		mcpgo.WithDescription("Check a layout document for structural errors without solving it."),
	}
	opts = append(opts, documentArgs()...)
	return mcpgo.NewTool("validate_layout", opts...)
}

func buildRenderTool() mcpgo.Tool {
	opts := []mcpgo.ToolOption{
		mcpgo.WithDescription("Solve a gear layout and render it as SVG, Graphviz DOT, or solution JSON."),
		mcpgo.WithString("format",
			mcpgo.Description("Output format: svg, dot, or json (default: svg)"),
			mcpgo.Enum(pipeline.FormatSVG, pipeline.FormatDOT, pipeline.FormatJSON),
		),
		mcpgo.WithString("view",
			mcpgo.Description("Projection plane: xy, xz, yz, or iso (default: xy)"),
		),
		mcpgo.WithBoolean("labels",
			mcpgo.Description("Label entities with their IDs"),
		),
	}
	opts = append(opts, documentArgs()...)
	opts = append(opts, solverArgs()...)
	return mcpgo.NewTool("render_layout", opts...)
}

func buildCapabilitiesTool() mcpgo.Tool {
	return mcpgo.NewTool("capabilities",
		mcpgo.WithDescription("List supported document formats, output formats, views, and solver defaults."),
	)
}

// --- tool handlers ---

// handleSolve parses, solves and returns the solution.
func (s *Server) handleSolve(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	doc, err := parseDocument(req)
	if err != nil {
		return mcpgo.NewToolResultError(errs.UserMessage(err)), nil
	}

	sol, hit, err := s.runner.SolveWithCacheInfo(ctx, doc, s.options(req))
	if err != nil {
		return mcpgo.NewToolResultErrorf("solve failed: %s", err.Error()), nil
	}

	s.logger.Info("mcp: solved layout",
		"status", sol.Status,
		"iterations", sol.Diagnostics.Iterations,
		"cached", hit)

	return toolResultJSON(map[string]any{
		"solution": sol,
		"cached":   hit,
	})
}

// handleValidate reports document errors and warnings.
func (s *Server) handleValidate(_ context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	doc, err := parseDocument(req)
	if err != nil {
		return mcpgo.NewToolResultError(errs.UserMessage(err)), nil
	}
	doc.SetDefaults()

	result := map[string]any{"valid": true}
	if err := doc.Validate(); err != nil {
		result["valid"] = false
		result["error"] = errs.UserMessage(err)
	} else if w := doc.Warnings(); len(w) > 0 {
		result["warnings"] = w
	}
	return toolResultJSON(result)
}

// handleRender solves and renders one text format. Raster formats are not
// offered because tool results are text.
func (s *Server) handleRender(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	doc, err := parseDocument(req)
	if err != nil {
		return mcpgo.NewToolResultError(errs.UserMessage(err)), nil
	}

	format := req.GetString("format", pipeline.FormatSVG)
	if err := errs.ValidateFormat(format, pipeline.FormatSVG, pipeline.FormatDOT, pipeline.FormatJSON); err != nil {
		return mcpgo.NewToolResultError(errs.UserMessage(err)), nil
	}

	opts := s.options(req)
	opts.Formats = []string{format}
	opts.View = req.GetString("view", "")
	opts.Labels = req.GetBool("labels", false)

	result, err := s.runner.Execute(ctx, doc, opts)
	if err != nil {
		return mcpgo.NewToolResultErrorf("render failed: %s", err.Error()), nil
	}
	return mcpgo.NewToolResultText(string(result.Artifacts[format])), nil
}

// handleCapabilities describes this build.
func (s *Server) handleCapabilities(_ context.Context, _ mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	return toolResultJSON(pipeline.Describe(s.base))
}
