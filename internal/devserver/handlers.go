package devserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/rendis/flowcode/internal/compiler"
	"github.com/rendis/flowcode/internal/diagram"
	"github.com/rendis/flowcode/internal/graph"
	"github.com/rendis/flowcode/internal/logging"
	"github.com/rendis/flowcode/internal/output"
	"github.com/rendis/flowcode/internal/store"
	"github.com/rendis/flowcode/pkg/schema"
)

// handleSave compiles the full graph into the project, merges node
// dependencies into package.json and snapshots the document.
func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	ctx := logging.WithProject(r.Context(), s.project())

	var body struct {
		DSL *schema.GraphDocument `json:"dsl"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.DSL == nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"isCompiled": false, "error": "dsl is required"})
		return
	}

	if err := s.save(ctx, body.DSL); err != nil {
		s.deps.Logger.ErrorContext(ctx, "save failed", slog.String("error", err.Error()))
		writeJSON(w, statusFor(err), map[string]any{"isCompiled": false, "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"isCompiled": true})
}

func (s *Server) save(ctx context.Context, doc *schema.GraphDocument) error {
	began := time.Now()
	rec := &store.CompileRecord{Project: s.project(), Mode: store.CompileProject}
	if h, err := graph.Hash(doc); err == nil {
		rec.DocHash = h
	}

	err := func() error {
		art, err := s.deps.Compiler.CompileProject(ctx, doc, s.cfg.Project.Plugins)
		if err != nil {
			return err
		}
		rec.ID = art.CompileID
		res, err := s.deps.Writer.WriteTree(ctx, s.outputDir(), art.Tree)
		if err != nil {
			return err
		}
		rec.FileCount = len(res.Files)
		if err := output.MergeManifest(s.manifestPath(), art.Dependencies); err != nil {
			return err
		}
		snap, err := s.snapshot(ctx, doc)
		if err != nil {
			return err
		}
		rec.SnapshotID = snap.ID
		rec.NodeCount = countNodes(doc)
		return nil
	}()

	s.record(ctx, rec, began, err)
	return err
}

// handleConnect returns the project name and the last saved graph.
func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	ctx := logging.WithProject(r.Context(), s.project())

	var dsl json.RawMessage
	snap, err := s.deps.Store.LatestSnapshot(ctx, s.project())
	switch {
	case schema.HasCode(err, schema.ErrCodeNotFound):
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	default:
		dsl = snap.Document
	}
	writeJSON(w, http.StatusOK, map[string]any{"projectName": s.project(), "dsl": dsl})
}

// handleCompileOnline compiles a selected subgraph into a preview script.
// Results are cached by document hash and mock input.
func (s *Server) handleCompileOnline(w http.ResponseWriter, r *http.Request) {
	ctx := logging.WithProject(r.Context(), s.project())

	var body struct {
		DSL       *schema.GraphDocument `json:"dsl"`
		MockInput json.RawMessage       `json:"mockInput"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.DSL == nil {
		writeError(w, http.StatusBadRequest, "dsl is required")
		return
	}

	hash, err := graph.Hash(body.DSL)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	key := hash + "|" + string(body.MockInput)
	if art, ok := s.cache.Get(key); ok {
		writeJSON(w, http.StatusOK, onlineResponse(art, true))
		return
	}

	began := time.Now()
	art, err := s.deps.Compiler.CompileOnline(ctx, body.DSL, compiler.OnlineOptions{MockInput: body.MockInput})
	rec := &store.CompileRecord{Project: s.project(), Mode: store.CompileOnline, DocHash: hash, NodeCount: countNodes(body.DSL)}
	if art != nil {
		rec.ID = art.CompileID
	}
	s.record(ctx, rec, began, err)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	s.cache.Add(key, art)
	writeJSON(w, http.StatusOK, onlineResponse(art, false))
}

func onlineResponse(art *compiler.OnlineArtifact, cached bool) map[string]any {
	return map[string]any{
		"code":       art.Code,
		"startId":    art.StartID,
		"mockNodeId": art.MockNodeID,
		"path":       art.Path,
		"cached":     cached,
	}
}

// handleModify queues editor changes; they are written as one snapshot once
// the editor goes quiet.
func (s *Server) handleModify(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Actions []Action `json:"actions"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return
	}

	queued, skipped := 0, 0
	for _, a := range body.Actions {
		ok, err := s.queue.Enqueue(a)
		if errors.Is(err, ErrQueueFull) {
			// Make room, then retry once.
			if ferr := s.Flush(r.Context()); ferr != nil {
				writeError(w, http.StatusServiceUnavailable, ferr.Error())
				return
			}
			ok, err = s.queue.Enqueue(a)
		}
		if err != nil {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		if ok {
			queued++
		} else {
			skipped++
		}
	}
	if queued > 0 {
		s.flusher.Trigger()
	}
	writeJSON(w, http.StatusAccepted, map[string]int{"queued": queued, "skipped": skipped, "pending": s.queue.Len()})
}

// Flush applies every pending edit to the latest snapshot and stores the
// result as a new snapshot. A failed batch is put back for the next flush.
func (s *Server) Flush(ctx context.Context) error {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	batch := s.queue.Drain()
	if len(batch) == 0 {
		return nil
	}
	ctx = logging.WithProject(ctx, s.project())

	err := func() error {
		doc := &schema.GraphDocument{}
		snap, err := s.deps.Store.LatestSnapshot(ctx, s.project())
		switch {
		case schema.HasCode(err, schema.ErrCodeNotFound):
		case err != nil:
			return err
		default:
			if doc, err = schema.ParseGraphDocument(snap.Document); err != nil {
				return err
			}
		}
		next, err := ApplyActions(doc, batch)
		if err != nil {
			return err
		}
		_, err = s.snapshot(ctx, next)
		return err
	}()
	if err != nil {
		s.queue.Restore(batch)
		s.deps.Logger.ErrorContext(ctx, "persist graph edits failed",
			slog.Int("actions", len(batch)), slog.String("error", err.Error()))
		return err
	}
	s.deps.Logger.DebugContext(ctx, "graph edits persisted", slog.Int("actions", len(batch)))
	return nil
}

// handleDiagram renders the last saved graph as mermaid (default), ascii or png.
func (s *Server) handleDiagram(w http.ResponseWriter, r *http.Request) {
	ctx := logging.WithProject(r.Context(), s.project())

	snap, err := s.deps.Store.LatestSnapshot(ctx, s.project())
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	doc, err := schema.ParseGraphDocument(snap.Document)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	model, err := diagram.Build(doc, s.project())
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	switch format := r.URL.Query().Get("format"); format {
	case "", "mermaid":
		writeText(w, diagram.RenderMermaid(model))
	case "ascii":
		writeText(w, diagram.RenderASCII(model))
	case "png":
		png, err := diagram.RenderImage(ctx, model)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(png)
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown format %q", format))
	}
}

func (s *Server) snapshot(ctx context.Context, doc *schema.GraphDocument) (*store.Snapshot, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return s.deps.Store.SaveSnapshot(ctx, &store.Snapshot{Project: s.project(), Document: data})
}

func (s *Server) record(ctx context.Context, rec *store.CompileRecord, began time.Time, cerr error) {
	rec.Duration = time.Since(began)
	rec.Status = store.CompileSucceeded
	if cerr != nil {
		rec.Status = store.CompileFailed
		rec.Error = cerr.Error()
	}
	if err := s.deps.Store.RecordCompile(ctx, rec); err != nil {
		s.deps.Logger.WarnContext(ctx, "record compile failed", slog.String("error", err.Error()))
	}
}

func countNodes(doc *schema.GraphDocument) int {
	n := 0
	for _, c := range doc.Cells {
		if c != nil && !c.IsEdge() {
			n++
		}
	}
	return n
}
