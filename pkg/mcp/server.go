package mcp

import (
	"context"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/rendis/flowcode/internal/compiler"
	"github.com/rendis/flowcode/internal/logging"
	"github.com/rendis/flowcode/internal/output"
	"github.com/rendis/flowcode/internal/projectconfig"
	"github.com/rendis/flowcode/internal/store"
	"github.com/rendis/flowcode/internal/validation"
)

// FlowcodeServerDeps holds the dependencies for creating a FlowcodeServer.
// Store may be nil; tools then require the graph as an argument.
type FlowcodeServerDeps struct {
	Compiler  *compiler.Compiler
	Validator *validation.GraphValidator
	Store     store.Store
	Writer    *output.Writer
	Project   *projectconfig.Config
	Root      string // project root for compile_project writes
	Logger    *slog.Logger
}

// FlowcodeServer wraps an MCP server with the compiler tools.
type FlowcodeServer struct {
	compiler  *compiler.Compiler
	validator *validation.GraphValidator
	store     store.Store
	writer    *output.Writer
	project   *projectconfig.Config
	root      string
	logger    *slog.Logger
	sessions  *SessionRegistry
	notifier  *MCPNotifier
	mcpServer *server.MCPServer
}

// NewFlowcodeServer creates a FlowcodeServer with all tools registered.
func NewFlowcodeServer(deps FlowcodeServerDeps) (*FlowcodeServer, error) {
	logger := deps.Logger
	if logger == nil {
		logger = logging.New(os.Stderr, "info")
	}
	if deps.Compiler == nil {
		deps.Compiler = compiler.New(compiler.WithLogger(logger))
	}
	if deps.Validator == nil {
		v, err := validation.NewGraphValidator()
		if err != nil {
			return nil, err
		}
		deps.Validator = v
	}
	if deps.Writer == nil {
		deps.Writer = output.NewWriter(logger)
	}
	if deps.Project == nil {
		deps.Project = &projectconfig.Config{ProjectName: "default", OutputPath: projectconfig.DefaultOutputPath}
	}
	if deps.Root == "" {
		deps.Root = "."
	}

	s := &FlowcodeServer{
		compiler:  deps.Compiler,
		validator: deps.Validator,
		store:     deps.Store,
		writer:    deps.Writer,
		project:   deps.Project,
		root:      deps.Root,
		logger:    logger,
		sessions:  NewSessionRegistry(),
	}

	mcpSrv := server.NewMCPServer(
		"flowcode",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithInstructions("flowcode compiles flow graphs (node cells holding JavaScript connected by edges) into code. Use flowcode.lint to check a graph, flowcode.compile_online for a runnable preview script, flowcode.compile_project to generate the project source tree, flowcode.diagram to visualize a graph and flowcode.connect to load the last saved graph."),
	)
	mcpSrv.AddTools(s.tools()...)
	s.mcpServer = mcpSrv
	s.notifier = NewMCPNotifier(mcpSrv, s.sessions)
	return s, nil
}

// Serve starts the stdio transport and blocks until ctx is cancelled or stdin closes.
func (s *FlowcodeServer) Serve(ctx context.Context) error {
	stdio := server.NewStdioServer(s.mcpServer)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// MCPServer returns the underlying MCPServer for testing or custom transports.
func (s *FlowcodeServer) MCPServer() *server.MCPServer {
	return s.mcpServer
}

func (s *FlowcodeServer) tools() []server.ServerTool {
	return []server.ServerTool{
		{Tool: compileOnlineTool(), Handler: s.handleCompileOnline},
		{Tool: compileProjectTool(), Handler: s.handleCompileProject},
		{Tool: lintTool(), Handler: s.handleLint},
		{Tool: diagramTool(), Handler: s.handleDiagram},
		{Tool: connectTool(), Handler: s.handleConnect},
	}
}

// --- Tool definitions ---

// graphArgs are the arguments shared by every tool that reads a graph.
func graphArgs() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithObject("graph", mcp.Description("Graph document: {\"cells\": [...]} with node and edge cells")),
		mcp.WithString("dot", mcp.Description("Graph in Graphviz DOT form, used when graph is absent")),
		mcp.WithArray("select", mcp.WithStringItems(), mcp.Description("Node ids to keep; edges between kept nodes are kept too")),
		mcp.WithString("where", mcp.Description("Predicate selecting nodes; sees `cell` (the node) and `graph` (node_count, edge_count)")),
		mcp.WithString("engine", mcp.Enum("cel", "expr", "jq"), mcp.Description("Predicate language for where (default: cel)")),
	}
}

func compileOnlineTool() mcp.Tool {
	opts := append([]mcp.ToolOption{
		mcp.WithDescription("Compile a graph or a selection of it into one runnable preview script"),
		mcp.WithObject("mock_input", mcp.Description("Input handed to the node after the entry node: {payload, pipe, context, config}")),
	}, graphArgs()...)
	return mcp.NewTool("flowcode.compile_online", opts...)
}

func compileProjectTool() mcp.Tool {
	opts := append([]mcp.ToolOption{
		mcp.WithDescription("Compile a graph into the project source tree and its npm dependencies"),
		mcp.WithArray("plugins", mcp.WithStringItems(), mcp.Description("Plugin module specifiers (default: the project's configured plugins)")),
		mcp.WithBoolean("write", mcp.Description("Write the tree to the project output directory and merge package.json (default: false)")),
	}, graphArgs()...)
	return mcp.NewTool("flowcode.compile_project", opts...)
}

func lintTool() mcp.Tool {
	opts := append([]mcp.ToolOption{
		mcp.WithDescription("Check a graph for structural errors and warnings"),
	}, graphArgs()...)
	return mcp.NewTool("flowcode.lint", opts...)
}

func diagramTool() mcp.Tool {
	opts := append([]mcp.ToolOption{
		mcp.WithDescription("Generate a visual diagram of a graph. Returns ASCII art, Mermaid flowchart syntax, or base64-encoded PNG image"),
		mcp.WithString("format", mcp.Required(),
			mcp.Enum("ascii", "mermaid", "image"),
			mcp.Description("Output format: ascii (text), mermaid (flowchart syntax), or image (base64 PNG)"),
		),
	}, graphArgs()...)
	return mcp.NewTool("flowcode.diagram", opts...)
}

func connectTool() mcp.Tool {
	return mcp.NewTool("flowcode.connect",
		mcp.WithDescription("Return the project name and its last saved graph, and subscribe to compile notifications"),
	)
}
