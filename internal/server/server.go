// SPDX-License-Identifier: MPL-2.0

// Package server assembles the dev bridge from configuration: the template
// store, the host world and tick loop, the dispatcher, the mod manager with
// its Lua loader, the websocket gateway and the mod watcher.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/addonbridge/addonbridge/internal/config"
	"github.com/addonbridge/addonbridge/internal/dispatch"
	"github.com/addonbridge/addonbridge/internal/gateway"
	"github.com/addonbridge/addonbridge/internal/host"
	"github.com/addonbridge/addonbridge/internal/lifecycle"
	"github.com/addonbridge/addonbridge/internal/modscript"
	"github.com/addonbridge/addonbridge/internal/registry"
	"github.com/addonbridge/addonbridge/internal/sweep"
	"github.com/addonbridge/addonbridge/internal/templates"
	"github.com/addonbridge/addonbridge/internal/templates/sqlite"
	"github.com/addonbridge/addonbridge/internal/watch"
	"github.com/addonbridge/addonbridge/internal/world"
)

const (
	shutdownTimeout   = 5 * time.Second
	readHeaderTimeout = 5 * time.Second
)

// ErrListen reports that the gateway address could not be bound.
var ErrListen = errors.New("gateway listen failed")

type (
	// Options configures a Server. Config is required.
	Options struct {
		Config *config.Config
		Logger *log.Logger
	}

	// Server is one assembled bridge. Build it with New, load the mods with
	// LoadAll, then Run it.
	Server struct {
		cfg     *config.Config
		logger  *log.Logger
		store   *sqlite.Store
		catalog *templates.Catalog

		world      *world.World
		host       *host.Host
		registry   *registry.Registry
		dispatcher *dispatch.Dispatcher
		loader     *modscript.Loader
		manager    *lifecycle.Manager
		gateway    *gateway.Handler
		watcher    *watch.Watcher

		mu   sync.Mutex
		addr net.Addr
	}

	// LoadResult is the outcome of loading one discovered script.
	LoadResult struct {
		Path    string
		Name    string
		Allowed bool
		Record  lifecycle.Record
		Err     error
	}
)

// New opens the template store and wires every component. The caller must
// Close the server.
func New(ctx context.Context, opts Options) (*Server, error) {
	if opts.Config == nil {
		return nil, errors.New("server: config is required")
	}
	cfg := opts.Config
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	s := &Server{cfg: cfg, logger: logger}

	dbPath := cfg.TemplatesPath()
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create template store directory: %w", err)
	}
	store, err := sqlite.Open(ctx, dbPath)
	if err != nil {
		return nil, err
	}
	catalog, err := store.LoadCatalog(ctx)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	s.store, s.catalog = store, catalog
	items, creatures := catalog.Len()
	logger.Info("templates loaded", "path", dbPath, "items", items, "creatures", creatures)

	s.world = world.New()
	s.host = host.New(host.Options{World: s.world, Interval: cfg.Tick.Interval, Logger: logger})
	s.registry = registry.New()
	s.dispatcher = dispatch.New(dispatch.Options{
		Registry: s.registry,
		Bus:      s.host.Bus(),
		GM:       dispatch.NewGMCommands(catalog, logger),
		Logger:   logger,
	})
	s.loader = &modscript.Loader{
		Dir:     cfg.ModsPath(),
		Prefix:  cfg.ScriptPrefix,
		Players: s.world,
		Logger:  logger,
	}
	s.manager = lifecycle.NewManager(lifecycle.Options{
		Registry:  s.registry,
		Bus:       s.host.Bus(),
		World:     s.world,
		Tasks:     s.host.Tasks(),
		Loader:    s.loader,
		Policy:    lifecycle.NewAllowList(cfg.DataDir, cfg.ScriptPrefix),
		SweepMode: sweep.ModeFor(cfg.Sweep.Legacy),
		Logger:    logger,
	})
	s.gateway = gateway.New(gateway.Options{
		Host:   s.host,
		Handle: func(p *world.Player, raw string) { s.dispatcher.OnAddonMessage(p, p, raw) },
		Logger: logger,
	})

	if cfg.Watch.Enabled {
		if err := os.MkdirAll(cfg.ModsPath(), 0o755); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("create mods directory: %w", err)
		}
		w, err := watch.New(watch.Config{
			Dir:      cfg.ModsPath(),
			Patterns: modscript.WatchPatterns(cfg.ScriptPrefix),
			Debounce: cfg.Watch.Debounce,
			OnChange: s.ScriptsChanged,
			Logger:   logger,
		})
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		s.watcher = w
	}
	return s, nil
}

// Host returns the host.
func (s *Server) Host() *host.Host { return s.host }

// Manager returns the mod manager. Call it only before Run or inside Host().Do.
func (s *Server) Manager() *lifecycle.Manager { return s.manager }

// Dispatcher returns the addon message dispatcher.
func (s *Server) Dispatcher() *dispatch.Dispatcher { return s.dispatcher }

// Addr returns the gateway listen address once Run has bound it.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Handler returns the HTTP routes: the websocket gateway at /ws and a
// liveness probe at /healthz.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/ws", s.gateway)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return mux
}

// LoadAll loads every discovered script the allow-list admits. It must run
// before Run. Individual failures are reported in the results and logged;
// they do not stop the remaining loads.
func (s *Server) LoadAll(ctx context.Context) ([]LoadResult, error) {
	paths, err := modscript.Discover(s.cfg.ModsPath(), s.cfg.ScriptPrefix)
	if err != nil {
		return nil, err
	}
	results := make([]LoadResult, 0, len(paths))
	for _, path := range paths {
		res := LoadResult{Path: path}
		name, ok := lifecycle.ModuleName(path, s.cfg.ScriptPrefix)
		if !ok {
			continue
		}
		res.Name = name
		res.Allowed, res.Err = s.manager.ShouldLoad(path)
		if res.Err == nil && res.Allowed {
			res.Record, res.Err = s.manager.Load(ctx, name)
		}
		if !res.Allowed && res.Err == nil {
			s.logger.Info("mod not in allow-list", "mod", name)
		}
		results = append(results, res)
	}
	return results, nil
}

// ScriptsChanged reloads or unloads the mods behind the changed paths, which
// are relative to the mods directory. Runs on the tick goroutine via Do.
func (s *Server) ScriptsChanged(ctx context.Context, changed []string) error {
	var names []string
	for _, rel := range changed {
		name, ok := lifecycle.ModuleName(rel, s.cfg.ScriptPrefix)
		if ok && !slices.Contains(names, name) {
			names = append(names, name)
		}
	}
	slices.Sort(names)

	var errs []error
	for _, name := range names {
		script := s.loader.ScriptPath(name)
		_, statErr := os.Stat(script)
		exists := statErr == nil
		allowed := false
		if exists {
			var err error
			if allowed, err = s.manager.ShouldLoad(script); err != nil {
				errs = append(errs, err)
				continue
			}
		}

		var opErr error
		if err := s.host.Do(ctx, func() { opErr = s.apply(ctx, name, exists && allowed) }); err != nil {
			errs = append(errs, err)
			continue
		}
		if opErr != nil {
			errs = append(errs, opErr)
		}
	}
	return errors.Join(errs...)
}

// apply runs on the tick goroutine.
func (s *Server) apply(ctx context.Context, name string, load bool) error {
	if load {
		rec, err := s.manager.Reload(ctx, name)
		if err == nil {
			s.logger.Info("mod reloaded", "mod", name, "id", rec.ID, "reloads", rec.Reloads)
		}
		return err
	}
	rec, ok := s.manager.Record(name)
	if !ok || (rec.State != lifecycle.StateLoaded && rec.State != lifecycle.StateFailed) {
		return nil
	}
	return s.manager.Unload(ctx, name)
}

// Run serves until ctx is done or a component fails.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Gateway.Addr)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrListen, s.cfg.Gateway.Addr, err)
	}
	s.mu.Lock()
	s.addr = ln.Addr()
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Sessions derive from ctx so open websockets close on shutdown.
	httpSrv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	errCh := make(chan error, 3)
	var wg sync.WaitGroup
	spawn := func(fn func() error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(); err != nil {
				errCh <- err
				cancel()
			}
		}()
	}

	spawn(func() error { return s.host.Run(ctx) })
	spawn(func() error {
		if err := httpSrv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("gateway: %w", err)
		}
		return nil
	})
	if s.watcher != nil {
		spawn(func() error { return s.watcher.Run(ctx) })
	}
	s.logger.Info("bridge serving", "addr", ln.Addr().String(), "mods", s.cfg.ModsPath())

	<-ctx.Done()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("gateway shutdown", "err", err)
	}
	wg.Wait()
	close(errCh)

	var errs []error
	for err := range errCh {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Close releases the template store.
func (s *Server) Close() error {
	return s.store.Close()
}
