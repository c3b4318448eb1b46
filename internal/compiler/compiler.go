// Package compiler turns graph documents into runnable JavaScript: a single
// script for online preview, or a source tree for a host project.
package compiler

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"

	"github.com/rendis/flowcode/internal/codegen"
	"github.com/rendis/flowcode/internal/deps"
	"github.com/rendis/flowcode/internal/graph"
	"github.com/rendis/flowcode/internal/logging"
	"github.com/rendis/flowcode/internal/plugins"
	"github.com/rendis/flowcode/internal/project"
	"github.com/rendis/flowcode/internal/simplify"
	"github.com/rendis/flowcode/internal/transform"
	"github.com/rendis/flowcode/pkg/schema"
)

// Project tree layout.
const (
	NodeFnsDir  = "nodeFns"
	DSLFile     = "dsl.json"
	LogicFile   = "logic.js"
	ContextFile = "context.js"
	IndexFile   = "index.js"
)

// Compiler holds the configuration shared by compile calls. Every call works
// on its own clone of the input document, so one Compiler may serve
// concurrent callers.
type Compiler struct {
	transformer *transform.Transformer
	simplifier  *simplify.Simplifier
	online      *codegen.Skeleton
	logger      *slog.Logger
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithModuleBaseURL sets the CDN online imports resolve against.
func WithModuleBaseURL(url string) Option {
	return func(c *Compiler) { c.transformer = transform.New(url) }
}

// WithSimplifyProgram replaces the jq program that shrinks embedded DSL.
func WithSimplifyProgram(program string) Option {
	return func(c *Compiler) { c.simplifier = simplify.New(program) }
}

// WithOnlineSkeleton replaces the embedded online skeleton.
func WithOnlineSkeleton(sk *codegen.Skeleton) Option {
	return func(c *Compiler) { c.online = sk }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Compiler) { c.logger = logger }
}

// New creates a Compiler.
func New(opts ...Option) *Compiler {
	c := &Compiler{
		transformer: transform.New(transform.DefaultModuleBaseURL),
		simplifier:  simplify.New(""),
		online:      codegen.MustLoad(codegen.OnlineSkeleton),
		logger:      logging.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OnlineOptions tune an online compile.
type OnlineOptions struct {
	// MockInput is handed to the node right after the entry node.
	MockInput json.RawMessage
}

// OnlineArtifact is a compiled preview script.
type OnlineArtifact struct {
	CompileID  string   `json:"compile_id"`
	Code       string   `json:"code"`
	StartID    string   `json:"start_id"`
	MockNodeID string   `json:"mock_node_id"`
	Path       []string `json:"path"`
}

// CompileOnline compiles a (sub)graph into one script that runs the flow
// from its entry node. Imports are rewritten to the module CDN and each node
// becomes an awaited expression in the node function map.
func (c *Compiler) CompileOnline(ctx context.Context, doc *schema.GraphDocument, opts OnlineOptions) (*OnlineArtifact, error) {
	ctx, work, compileID, err := c.begin(ctx, doc)
	if err != nil {
		return nil, err
	}

	g, err := graph.Read(work)
	if err != nil {
		return nil, err
	}
	start, err := g.ResolveStart()
	if err != nil {
		return nil, err
	}
	path, err := g.Path(start)
	if err != nil {
		return nil, err
	}
	mock, err := g.Next(start)
	if err != nil {
		return nil, err
	}

	fns := make([]codegen.NodeFn, 0, len(g.Nodes))
	done := make(map[string]bool, len(g.Nodes))
	pathIDs := make([]string, 0, len(path))
	for _, n := range path {
		pathIDs = append(pathIDs, n.ID)
	}
	for _, n := range append(path, g.Nodes...) {
		if done[n.ID] {
			continue
		}
		done[n.ID] = true
		fns = append(fns, codegen.NodeFn{
			ID:   n.ID,
			Code: c.transformer.Transform(n.DataOrZero().Code, transform.PolicyOnline),
		})
	}

	simplified, err := c.simplifier.Simplify(ctx, work)
	if err != nil {
		return nil, err
	}

	trigger := start.DataOrZero().Trigger
	if trigger == "" {
		trigger = start.ID
	}
	code, err := codegen.AssembleOnline(c.online, codegen.OnlineParts{
		DSL:       simplified,
		NodeFns:   fns,
		Trigger:   trigger,
		MockNode:  mock.ID,
		MockInput: opts.MockInput,
	})
	if err != nil {
		return nil, err
	}

	c.logger.InfoContext(ctx, "online compile finished",
		slog.String("start", start.ID),
		slog.Int("nodes", len(fns)),
		slog.Int("path_len", len(path)),
	)
	return &OnlineArtifact{
		CompileID:  compileID,
		Code:       code,
		StartID:    start.ID,
		MockNodeID: mock.ID,
		Path:       pathIDs,
	}, nil
}

// ProjectArtifact is a compiled source tree plus the npm dependencies the
// nodes declare.
type ProjectArtifact struct {
	CompileID          string
	Tree               project.Tree
	Dependencies       *deps.Map
	DependencyProblems []error
	StartID            string
}

// CompileProject compiles a full graph into a source tree:
//
//	nodeFns/<id>.js, nodeFns/index.js   one module per node
//	dsl.json                            simplified graph
//	logic.js, context.js                flow runtime
//	index.js                            runtime instance with plugins applied
//
// The entry node is resolved to reject broken structure, but a virtual entry
// node never reaches the output. Nothing is returned unless every step
// succeeds.
func (c *Compiler) CompileProject(ctx context.Context, doc *schema.GraphDocument, pluginSpecs []string) (*ProjectArtifact, error) {
	ctx, work, compileID, err := c.begin(ctx, doc)
	if err != nil {
		return nil, err
	}

	g, err := graph.Read(work)
	if err != nil {
		return nil, err
	}
	nodes := append([]*schema.Cell(nil), g.Nodes...)
	simplified, err := c.simplifier.Simplify(ctx, work)
	if err != nil {
		return nil, err
	}

	start, err := g.ResolveStart()
	if err != nil {
		return nil, err
	}
	if _, err := g.Path(start); err != nil {
		return nil, err
	}

	dslJSON, err := json.MarshalIndent(simplified, "", "  ")
	if err != nil {
		return nil, schema.NewError(schema.ErrCodeValidation, "encode simplified dsl").WithCause(err)
	}

	nodeFiles, err := project.ExtractNodeFiles(nodes)
	if err != nil {
		return nil, err
	}
	tree := project.Tree{}
	tree.Mount(NodeFnsDir, nodeFiles)
	tree.Put(DSLFile, dslJSON)
	tree.Put(LogicFile, []byte(codegen.MustLoad(codegen.ProjectLogicSkeleton).Render()))
	tree.Put(ContextFile, []byte(codegen.MustLoad(codegen.ProjectContextSkeleton).Render()))
	tree.Put(IndexFile, []byte(plugins.Inject(codegen.MustLoad(codegen.ProjectIndexSkeleton), pluginSpecs).Render()))

	merged, problems := deps.Merge(ctx, nodes, c.logger)

	c.logger.InfoContext(ctx, "project compile finished",
		slog.Int("nodes", len(nodes)),
		slog.Int("plugins", len(pluginSpecs)),
		slog.Int("dependencies", merged.Len()),
	)
	return &ProjectArtifact{
		CompileID:          compileID,
		Tree:               tree,
		Dependencies:       merged,
		DependencyProblems: problems,
		StartID:            start.ID,
	}, nil
}

// begin clones doc and tags ctx with a fresh compile id.
func (c *Compiler) begin(ctx context.Context, doc *schema.GraphDocument) (context.Context, *schema.GraphDocument, string, error) {
	if doc == nil {
		return ctx, nil, "", schema.NewError(schema.ErrCodeEmptyGraph, "graph document is nil")
	}
	work, err := doc.Clone()
	if err != nil {
		return ctx, nil, "", schema.NewError(schema.ErrCodeValidation, "clone graph document").WithCause(err)
	}
	compileID := uuid.NewString()
	ctx = logging.WithCompileID(ctx, compileID)
	c.logger.DebugContext(ctx, "compile started", slog.Int("cells", len(work.Cells)))
	return ctx, work, compileID, nil
}
