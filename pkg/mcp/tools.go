package mcp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/rendis/flowcode/internal/compiler"
	"github.com/rendis/flowcode/internal/deps"
	"github.com/rendis/flowcode/internal/diagram"
	"github.com/rendis/flowcode/internal/expressions"
	"github.com/rendis/flowcode/internal/graph"
	"github.com/rendis/flowcode/internal/logging"
	"github.com/rendis/flowcode/internal/output"
	"github.com/rendis/flowcode/pkg/schema"
)

// errNoGraph is returned when a tool has neither a graph argument nor a
// saved snapshot to fall back on.
var errNoGraph = errors.New("one of graph or dot is required")

// handleCompileOnline compiles a (selected) graph into a preview script.
func (s *FlowcodeServer) handleCompileOnline(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctx = logging.WithProject(ctx, s.project.ProjectName)
	doc, err := s.loadGraph(ctx, req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var mock json.RawMessage
	if raw, ok := req.GetArguments()["mock_input"]; ok && raw != nil {
		if mock, err = json.Marshal(raw); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid mock_input: %v", err)), nil
		}
	}

	art, err := s.compiler.CompileOnline(ctx, doc, compiler.OnlineOptions{MockInput: mock})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("compile failed: %v", err)), nil
	}
	return marshalResult(art)
}

// handleCompileProject compiles the graph into a source tree, optionally
// writing it into the project.
func (s *FlowcodeServer) handleCompileProject(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctx = logging.WithProject(ctx, s.project.ProjectName)
	doc, err := s.loadGraph(ctx, req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	plugins := req.GetStringSlice("plugins", s.project.Plugins)

	art, err := s.compiler.CompileProject(ctx, doc, plugins)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("compile failed: %v", err)), nil
	}

	problems := make([]string, 0, len(art.DependencyProblems))
	for _, p := range art.DependencyProblems {
		problems = append(problems, p.Error())
	}
	result := map[string]any{
		"compile_id":          art.CompileID,
		"start_id":            art.StartID,
		"dependencies":        art.Dependencies,
		"dependency_problems": problems,
		"dependency_order":    deps.Keys(art.Dependencies),
	}

	if !req.GetBool("write", false) {
		files := make(map[string]string)
		for _, f := range art.Tree.Flatten() {
			files[f.Path] = string(f.Content)
		}
		result["files"] = files
		return marshalResult(result)
	}

	dir := s.project.OutputDir(s.root)
	res, err := s.writer.WriteTree(ctx, dir, art.Tree)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("write failed: %v", err)), nil
	}
	if err := output.MergeManifest(filepath.Join(s.root, "package.json"), art.Dependencies); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("merge package.json failed: %v", err)), nil
	}
	result["dir"] = res.Dir
	result["files"] = res.Files

	if err := s.notifier.NotifyProject(ctx, s.project.ProjectName, map[string]any{
		"event":      "project.compiled",
		"project":    s.project.ProjectName,
		"compile_id": art.CompileID,
		"dir":        res.Dir,
	}); err != nil {
		s.logger.WarnContext(ctx, "compile notification failed", "error", err)
	}
	return marshalResult(result)
}

// handleLint runs the graph validator.
func (s *FlowcodeServer) handleLint(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	doc, err := s.loadGraph(ctx, req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res := s.validator.Validate(doc)
	return marshalResult(map[string]any{
		"valid":    res.Valid(),
		"errors":   res.Errors,
		"warnings": res.Warnings,
	})
}

// handleDiagram renders the graph in the requested format.
func (s *FlowcodeServer) handleDiagram(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	format, err := req.RequireString("format")
	if err != nil {
		return mcp.NewToolResultError("format is required"), nil
	}
	if format != "ascii" && format != "mermaid" && format != "image" {
		return mcp.NewToolResultError("format must be ascii, mermaid, or image"), nil
	}

	doc, err := s.loadGraph(ctx, req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	model, err := diagram.Build(doc, s.project.ProjectName)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("diagram build failed: %v", err)), nil
	}

	switch format {
	case "ascii":
		return mcp.NewToolResultText(diagram.RenderASCII(model)), nil
	case "mermaid":
		return mcp.NewToolResultText(diagram.RenderMermaid(model)), nil
	default:
		png, imgErr := diagram.RenderImage(ctx, model)
		if imgErr != nil {
			return mcp.NewToolResultError(fmt.Sprintf("image render failed: %v", imgErr)), nil
		}
		return mcp.NewToolResultText(base64.StdEncoding.EncodeToString(png)), nil
	}
}

// handleConnect returns the last saved graph and subscribes the caller's
// session to compile notifications.
func (s *FlowcodeServer) handleConnect(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.captureSession(ctx, s.project.ProjectName)

	var dsl json.RawMessage
	if s.store != nil {
		snap, err := s.store.LatestSnapshot(ctx, s.project.ProjectName)
		switch {
		case schema.HasCode(err, schema.ErrCodeNotFound):
		case err != nil:
			return mcp.NewToolResultError(fmt.Sprintf("load snapshot failed: %v", err)), nil
		default:
			dsl = snap.Document
		}
	}
	return marshalResult(map[string]any{"projectName": s.project.ProjectName, "dsl": dsl})
}

// loadGraph resolves the graph argument (object, then DOT, then the latest
// snapshot) and applies the optional node selection.
func (s *FlowcodeServer) loadGraph(ctx context.Context, req mcp.CallToolRequest) (*schema.GraphDocument, error) {
	args := req.GetArguments()

	var doc *schema.GraphDocument
	switch {
	case args["graph"] != nil:
		raw, err := json.Marshal(args["graph"])
		if err != nil {
			return nil, fmt.Errorf("invalid graph: %w", err)
		}
		if doc, err = schema.ParseGraphDocument(raw); err != nil {
			return nil, err
		}
	case req.GetString("dot", "") != "":
		var err error
		if doc, err = graph.ParseDOT(req.GetString("dot", "")); err != nil {
			return nil, err
		}
	case s.store != nil:
		snap, err := s.store.LatestSnapshot(ctx, s.project.ProjectName)
		if schema.HasCode(err, schema.ErrCodeNotFound) {
			return nil, errNoGraph
		}
		if err != nil {
			return nil, err
		}
		if doc, err = schema.ParseGraphDocument(snap.Document); err != nil {
			return nil, err
		}
	default:
		return nil, errNoGraph
	}

	if ids := req.GetStringSlice("select", nil); len(ids) > 0 {
		doc = graph.SelectIDs(doc, ids)
	}
	if where := req.GetString("where", ""); where != "" {
		engine, err := expressions.New(req.GetString("engine", ""))
		if err != nil {
			return nil, err
		}
		if doc, err = graph.SelectWhere(ctx, doc, engine, where); err != nil {
			return nil, err
		}
	}
	return doc, nil
}

// captureSession subscribes the current MCP session to a project's notifications.
func (s *FlowcodeServer) captureSession(ctx context.Context, project string) {
	if session := server.ClientSessionFromContext(ctx); session != nil {
		s.sessions.Register(project, session.SessionID())
	}
}

// marshalResult converts a value to a JSON text tool result.
func marshalResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultJSON(json.RawMessage(data))
}
