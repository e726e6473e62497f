// Command structserve is a development stand-in for the structure
// endpoint: it serves page structures and chunk lists out of a bbolt
// fixture file, optionally seeding it first from a directory of
// authored JSON fixtures and PDFs.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dgallion1/structlay/internal/fixture"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func main() {
	var (
		addr    = flag.String("addr", ":8091", "listen address")
		dbPath  = flag.String("db", "structserve.db", "fixture database path")
		seedDir = flag.String("seed", "", "directory of JSON fixtures and PDFs to seed before serving")
	)
	flag.Parse()

	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	store, err := fixture.Open(*dbPath)
	if err != nil {
		log.Error("open fixture store", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	if *seedDir != "" {
		if err := seedFromDir(store, *seedDir, log); err != nil {
			log.Error("seeding failed", "error", err)
			os.Exit(1)
		}
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/documents", handleListDocuments(store))
	r.Get("/documents/{docID}/pages/{page}/structure", handleStructure(store, log))
	r.Get("/documents/{docID}/chunks", handleChunks(store))

	log.Info("starting structserve", "addr", *addr, "db", *dbPath)
	if err := http.ListenAndServe(*addr, r); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}

func seedFromDir(store *fixture.Store, dir string, log *slog.Logger) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read seed dir: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		path := filepath.Join(dir, name)
		switch {
		case strings.EqualFold(filepath.Ext(name), ".json"):
			_, err = fixture.SeedJSON(store, path, log)
		case strings.EqualFold(filepath.Ext(name), ".pdf"):
			docID := strings.TrimSuffix(name, filepath.Ext(name))
			_, err = fixture.SeedPDF(store, docID, path, log)
		default:
			continue
		}
		if err != nil {
			return fmt.Errorf("seed %s: %w", name, err)
		}
	}
	return nil
}

func handleListDocuments(store *fixture.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ids, err := store.Documents()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		docs := make([]map[string]any, 0, len(ids))
		for _, id := range ids {
			pages, err := store.PageCount(id)
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			docs = append(docs, map[string]any{"doc_id": id, "pages": pages})
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"documents": docs})
	}
}

func handleStructure(store *fixture.Store, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		docID := chi.URLParam(r, "docID")
		page, err := strconv.Atoi(chi.URLParam(r, "page"))
		if err != nil || page < 1 {
			http.Error(w, "invalid page", http.StatusBadRequest)
			return
		}
		ps, err := store.Page(docID, page)
		if err != nil {
			log.Error("read page", "doc_id", docID, "page", page, "error", err)
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if ps == nil {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(ps)
	}
}

func handleChunks(store *fixture.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		docID := chi.URLParam(r, "docID")
		chunks, err := store.Chunks(docID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if chunks == nil {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"chunks": chunks})
	}
}
