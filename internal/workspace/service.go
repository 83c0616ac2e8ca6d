// Package workspace serves one XFL document folder to the HTTP and MCP
// surfaces. Every operation runs under a single lock: the document model is
// not safe for concurrent use.
package workspace

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/starford/xflkit/internal/apperr"
	"github.com/starford/xflkit/internal/bus"
	"github.com/starford/xflkit/internal/document"
	"github.com/starford/xflkit/internal/importer"
	"github.com/starford/xflkit/internal/index"
	"github.com/starford/xflkit/internal/library"
	"github.com/starford/xflkit/internal/storage"
)

// Publisher receives item change notifications. *sse.Broker satisfies it.
type Publisher interface {
	PublishItemEvent(kind, path string)
}

// Service coordinates the open document, its package store and the index.
type Service struct {
	mu       sync.Mutex
	doc      *document.Document
	store    storage.Provider
	db       *index.DB
	resolver *importer.Resolver
	pub      Publisher
	logger   *slog.Logger
	noCreate bool
	defaults []document.Option

	// sub forwards library notifications to pub. The bus holds it weakly.
	sub *bus.Subscription
}

// Option configures a Service.
type Option func(*Service)

// WithPublisher forwards rename and remove notifications to p.
func WithPublisher(p Publisher) Option { return func(s *Service) { s.pub = p } }

// WithResolver sets the resolver used by ImportFrom.
func WithResolver(r *importer.Resolver) Option { return func(s *Service) { s.resolver = r } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(s *Service) { s.logger = l } }

// WithCreate controls whether Open creates an empty document in a folder
// that holds none. The default is true.
func WithCreate(create bool) Option { return func(s *Service) { s.noCreate = !create } }

// WithDocumentDefaults sets the frame rate and stage size of a document
// created by Open.
func WithDocumentDefaults(frameRate float64, width, height int) Option {
	return func(s *Service) {
		s.defaults = []document.Option{document.WithFrameRate(frameRate), document.WithStage(width, height)}
	}
}

// Open opens the XFL folder dir, creating an empty document there when it
// holds none, and brings db up to date with its library.
func Open(dir string, db *index.DB, opts ...Option) (*Service, error) {
	s := &Service{db: db}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	if s.resolver == nil {
		s.resolver = importer.New(importer.WithLogger(s.logger))
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("workspace: create %s: %w: %w", dir, apperr.ErrIO, err)
	}
	store, err := storage.NewFS(dir)
	if err != nil {
		return nil, fmt.Errorf("workspace: %w", err)
	}
	s.store = store

	docOpts := []document.Option{document.WithStore(store), document.WithLogger(s.logger)}
	if store.Exists(document.DocumentFile) {
		s.doc, err = document.Open(dir, docOpts...)
		if err != nil {
			return nil, err
		}
	} else if s.noCreate {
		return nil, fmt.Errorf("workspace: %s has no %s: %w", dir, document.DocumentFile, apperr.ErrNotFound)
	} else {
		s.doc = document.New(append(docOpts, s.defaults...)...)
		s.doc.Path = dir
		if err := s.doc.Save(store); err != nil {
			return nil, err
		}
		s.logger.Info("workspace: created document", slog.String("path", dir))
	}

	s.sub = s.doc.Library.Bus().SubscribeAll(s.forward)
	if err := s.sync(); err != nil {
		s.logger.Warn("workspace: initial sync failed", slog.String("error", err.Error()))
	}
	return s, nil
}

func (s *Service) forward(ev bus.Event) {
	if s.pub == nil {
		return
	}
	switch ev.Kind {
	case bus.Renamed:
		s.pub.PublishItemEvent("renamed", ev.NewName)
	case bus.Removed:
		s.pub.PublishItemEvent("removed", ev.Name)
	}
}

// Store returns the package store of the open document.
func (s *Service) Store() storage.Provider { return s.store }

// Close releases the document. The service must not be used afterwards.
func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sub.Close()
	s.doc.Close()
}

func (s *Service) sync() error {
	if s.db == nil {
		return nil
	}
	_, err := index.Sync(s.db, s.store, s.logger)
	return err
}

// persist writes the document back to its folder and reindexes. Library edits
// already moved their files; this writes descriptors and DOMDocument.xml.
func (s *Service) persist() error {
	if err := s.doc.Save(s.store); err != nil {
		return err
	}
	if err := s.sync(); err != nil {
		s.logger.Warn("workspace: sync failed", slog.String("error", err.Error()))
	}
	return nil
}

// Save writes the document to its folder.
func (s *Service) Save(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persist()
}
