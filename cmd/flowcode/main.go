package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rendis/flowcode/internal/compiler"
	"github.com/rendis/flowcode/internal/devserver"
	"github.com/rendis/flowcode/internal/diagram"
	"github.com/rendis/flowcode/internal/logging"
	"github.com/rendis/flowcode/internal/output"
	"github.com/rendis/flowcode/internal/projectconfig"
	"github.com/rendis/flowcode/internal/store"
	"github.com/rendis/flowcode/internal/validation"
	flowmcp "github.com/rendis/flowcode/pkg/mcp"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// app carries the global flags and the configuration derived from them.
type app struct {
	projectDir string
	logLevel   string

	cfg     Config
	project *projectconfig.Config
	logger  *slog.Logger
}

func rootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "flowcode",
		Short: "Compile flow graphs to JavaScript",
		Long: `flowcode compiles flow graphs into JavaScript.

A graph is a list of node cells, each holding an ES module whose default
export is an async function, connected by edge cells. Graphs are read from
editor JSON documents or Graphviz DOT files.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd.ErrOrStderr())
		},
	}
	root.PersistentFlags().StringVar(&a.projectDir, "project", ".", "project root (flowcode.hcl, .env and package.json live here)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error (overrides config)")

	root.AddCommand(compileCmd(a))
	root.AddCommand(lintCmd(a))
	root.AddCommand(diagramCmd(a))
	root.AddCommand(devCmd(a))
	root.AddCommand(mcpCmd(a))
	root.AddCommand(versionCmd())
	return root
}

func (a *app) init(stderr io.Writer) error {
	a.cfg = loadConfig(a.projectDir)
	if a.logLevel != "" {
		a.cfg.LogLevel = a.logLevel
	}
	a.logger = logging.New(stderr, a.cfg.LogLevel)

	project, err := projectconfig.Load(a.projectDir)
	if err != nil {
		return err
	}
	a.project = project
	return nil
}

func (a *app) compiler() *compiler.Compiler {
	base := a.cfg.ModuleBaseURL
	if a.project.Compile != nil && a.project.Compile.ModuleBaseURL != "" {
		base = a.project.Compile.ModuleBaseURL
	}
	return compiler.New(compiler.WithModuleBaseURL(base), compiler.WithLogger(a.logger))
}

func (a *app) openStore(ctx context.Context) (*store.LibSQLStore, error) {
	if err := os.MkdirAll(filepath.Dir(a.cfg.DBPath), 0o700); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	s, err := store.NewLibSQLStore(a.cfg.dsn())
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		s.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// ─── compile ──────────────────────────────────────────────────────────────────

func compileCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compile",
		Short: "Compile a graph into a preview script or a project tree",
	}
	cmd.AddCommand(compileOnlineCmd(a))
	cmd.AddCommand(compileProjectCmd(a))
	return cmd
}

func compileOnlineCmd(a *app) *cobra.Command {
	var (
		sel       selection
		mockInput string
		out       string
	)
	cmd := &cobra.Command{
		Use:   "online <graph>",
		Short: "Compile a graph or a selection of it into one runnable script",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := logging.WithProject(cmd.Context(), a.project.ProjectName)
			doc, err := readGraph(args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}
			if doc, err = sel.apply(ctx, doc); err != nil {
				return err
			}
			mock, err := readMockInput(mockInput)
			if err != nil {
				return err
			}

			art, err := a.compiler().CompileOnline(ctx, doc, compiler.OnlineOptions{MockInput: mock})
			if err != nil {
				return err
			}
			if out == "" {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), art.Code)
				return err
			}
			if err := os.WriteFile(out, []byte(art.Code+"\n"), 0o644); err != nil {
				return fmt.Errorf("write %s: %w", out, err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s (entry %s, path %v)\n", out, art.StartID, art.Path)
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&sel.ids, "select", nil, "node ids to compile (edges between them are kept)")
	cmd.Flags().StringVar(&sel.where, "where", "", "predicate selecting nodes; sees `cell` and `graph`")
	cmd.Flags().StringVar(&sel.engine, "engine", "cel", "predicate language: cel, expr or jq")
	cmd.Flags().StringVar(&mockInput, "mock-input", "", "mock input JSON for the node after the entry node, or @file")
	cmd.Flags().StringVarP(&out, "out", "o", "", "write the script to this file instead of stdout")
	return cmd
}

func compileProjectCmd(a *app) *cobra.Command {
	var (
		outDir  string
		plugins []string
		dryRun  bool
	)
	cmd := &cobra.Command{
		Use:   "project <graph>",
		Short: "Compile a graph into the project source tree and merge its dependencies",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := logging.WithProject(cmd.Context(), a.project.ProjectName)
			doc, err := readGraph(args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("plugin") {
				plugins = a.project.Plugins
			}

			art, err := a.compiler().CompileProject(ctx, doc, plugins)
			if err != nil {
				return err
			}
			for _, p := range art.DependencyProblems {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", p)
			}

			if dryRun {
				for _, f := range art.Tree.Flatten() {
					fmt.Fprintln(cmd.OutOrStdout(), f.Path)
				}
				return nil
			}

			dir := a.project.OutputDir(a.projectDir)
			if outDir != "" {
				dir = outDir
			}
			res, err := output.NewWriter(a.logger).WriteTree(ctx, dir, art.Tree)
			if err != nil {
				return err
			}
			if err := output.MergeManifest(filepath.Join(a.projectDir, devserver.ManifestFile), art.Dependencies); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "compiled %d files into %s\n", len(res.Files), res.Dir)
			return nil
		},
	}
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "output directory (default: output_path from flowcode.hcl)")
	cmd.Flags().StringSliceVar(&plugins, "plugin", nil, "plugin module specifier (repeatable; default: plugins from flowcode.hcl)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "list the files that would be written")
	return cmd
}

// ─── lint ─────────────────────────────────────────────────────────────────────

func lintCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "lint <graph>",
		Short: "Check a graph for structural errors and warnings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := readGraph(args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}
			v, err := validation.NewGraphValidator()
			if err != nil {
				return err
			}
			res := v.Validate(doc)

			w := cmd.OutOrStdout()
			if _, err := res.WriteTo(w); err != nil {
				return err
			}
			if err := res.ToError(); err != nil {
				return err
			}
			fmt.Fprintf(w, "OK: %s is valid (%d warnings)\n", args[0], len(res.Warnings))
			return nil
		},
	}
}

// ─── diagram ──────────────────────────────────────────────────────────────────

func diagramCmd(a *app) *cobra.Command {
	var (
		format string
		out    string
	)
	cmd := &cobra.Command{
		Use:   "diagram <graph>",
		Short: "Render a graph as Mermaid, ASCII or PNG",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := readGraph(args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}
			model, err := diagram.Build(doc, a.project.ProjectName)
			if err != nil {
				return err
			}

			var data []byte
			switch format {
			case "mermaid":
				data = []byte(diagram.RenderMermaid(model))
			case "ascii":
				data = []byte(diagram.RenderASCII(model))
			case "png":
				if out == "" {
					return fmt.Errorf("png output needs --out")
				}
				if data, err = diagram.RenderImage(cmd.Context(), model); err != nil {
					return err
				}
			default:
				return fmt.Errorf("unknown format %q: use mermaid, ascii or png", format)
			}

			if out == "" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			return os.WriteFile(out, data, 0o644)
		},
	}
	cmd.Flags().StringVar(&format, "format", "mermaid", "output format: mermaid, ascii or png")
	cmd.Flags().StringVarP(&out, "out", "o", "", "write to this file instead of stdout")
	return cmd
}

// ─── dev ──────────────────────────────────────────────────────────────────────

func devCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "dev",
		Short: "Serve the editor API for this project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if addr == "" {
				addr = a.cfg.ListenAddr
			}
			st, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			srv, err := devserver.New(devserver.Config{
				Root:          a.projectDir,
				Project:       a.project,
				CacheSize:     a.cfg.CacheSize,
				FlushDelay:    a.cfg.flushDelay(),
				PruneSchedule: a.cfg.PruneSchedule,
				KeepSnapshots: a.cfg.KeepSnapshots,
			}, devserver.Deps{
				Store:    st,
				Compiler: a.compiler(),
				Writer:   output.NewWriter(a.logger),
				Logger:   a.logger,
			})
			if err != nil {
				return err
			}
			return srv.ListenAndServe(ctx, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default: listen_addr from config)")
	return cmd
}

// ─── mcp ──────────────────────────────────────────────────────────────────────

func mcpCmd(a *app) *cobra.Command {
	var noStore bool
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve the compiler tools over MCP stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			deps := flowmcp.FlowcodeServerDeps{
				Compiler: a.compiler(),
				Writer:   output.NewWriter(a.logger),
				Project:  a.project,
				Root:     a.projectDir,
				Logger:   a.logger,
			}
			if !noStore {
				st, err := a.openStore(ctx)
				if err != nil {
					return err
				}
				defer st.Close()
				deps.Store = st
			}
			srv, err := flowmcp.NewFlowcodeServer(deps)
			if err != nil {
				return err
			}
			return srv.Serve(ctx)
		},
	}
	cmd.Flags().BoolVar(&noStore, "no-store", false, "run without the snapshot database")
	return cmd
}
