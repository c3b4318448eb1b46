// Package devserver is the local HTTP companion of the flow editor: it
// compiles saved graphs into the project, serves online previews and
// persists live edits as graph snapshots.
package devserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/rendis/flowcode/internal/compiler"
	"github.com/rendis/flowcode/internal/logging"
	"github.com/rendis/flowcode/internal/output"
	"github.com/rendis/flowcode/internal/projectconfig"
	"github.com/rendis/flowcode/internal/store"
)

// Defaults for Config fields left zero.
const (
	DefaultCacheSize     = 128
	DefaultQueueSize     = 256
	DefaultFlushDelay    = 100 * time.Millisecond
	DefaultPruneSchedule = "@hourly"
	DefaultKeepSnapshots = 50
)

// ManifestFile is the npm manifest merged on every save.
const ManifestFile = "package.json"

// Config configures a Server.
type Config struct {
	Root          string // project root; package.json lives here
	Project       *projectconfig.Config
	CacheSize     int
	QueueSize     int
	FlushDelay    time.Duration
	PruneSchedule string // empty disables pruning
	KeepSnapshots int
}

// Deps holds the collaborators of a Server.
type Deps struct {
	Store    store.Store
	Compiler *compiler.Compiler
	Writer   *output.Writer
	Logger   *slog.Logger
}

// Server serves the editor API.
type Server struct {
	cfg   Config
	deps  Deps
	cache *lru.Cache[string, *compiler.OnlineArtifact]
	queue *Queue

	flusher *Debouncer
	flushMu sync.Mutex
	pruner  *Pruner
}

// New creates a Server.
func New(cfg Config, deps Deps) (*Server, error) {
	if deps.Store == nil {
		return nil, errors.New("devserver: store is required")
	}
	if cfg.Project == nil {
		return nil, errors.New("devserver: project config is required")
	}
	if deps.Logger == nil {
		deps.Logger = logging.Discard()
	}
	if deps.Compiler == nil {
		deps.Compiler = compiler.New(compiler.WithLogger(deps.Logger))
	}
	if deps.Writer == nil {
		deps.Writer = output.NewWriter(deps.Logger)
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = DefaultCacheSize
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.FlushDelay <= 0 {
		cfg.FlushDelay = DefaultFlushDelay
	}
	if cfg.KeepSnapshots <= 0 {
		cfg.KeepSnapshots = DefaultKeepSnapshots
	}

	cache, err := lru.New[string, *compiler.OnlineArtifact](cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("devserver: create online cache: %w", err)
	}

	s := &Server{
		cfg:   cfg,
		deps:  deps,
		cache: cache,
		queue: NewQueue(cfg.QueueSize),
	}
	s.flusher = NewDebouncer(cfg.FlushDelay, func() { s.Flush(context.Background()) })
	s.pruner = NewPruner(deps.Store, cfg.Project.ProjectName, cfg.KeepSnapshots, deps.Logger)
	return s, nil
}

// Handler returns the HTTP handler for the API routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/save", s.handleSave)
	mux.HandleFunc("GET /api/connect", s.handleConnect)
	mux.HandleFunc("POST /api/compile/online", s.handleCompileOnline)
	mux.HandleFunc("POST /api/graph/modify", s.handleModify)
	mux.HandleFunc("GET /api/diagram", s.handleDiagram)
	return withCORS(mux)
}

// Start begins background work: the snapshot pruning schedule.
func (s *Server) Start(ctx context.Context) error {
	if s.cfg.PruneSchedule == "" {
		return nil
	}
	return s.pruner.Start(ctx, s.cfg.PruneSchedule)
}

// Close stops background work and persists edits still pending.
func (s *Server) Close(ctx context.Context) error {
	s.pruner.Stop()
	s.flusher.Stop()
	return s.Flush(ctx)
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	srv := &http.Server{Addr: addr, Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.deps.Logger.InfoContext(ctx, "dev server listening", slog.String("addr", addr), slog.String("project", s.project()))

	select {
	case err := <-errCh:
		_ = s.Close(context.Background())
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return s.Close(shutdownCtx)
}

func (s *Server) project() string { return s.cfg.Project.ProjectName }

func (s *Server) outputDir() string { return s.cfg.Project.OutputDir(s.cfg.Root) }

func (s *Server) manifestPath() string { return filepath.Join(s.cfg.Root, ManifestFile) }

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
