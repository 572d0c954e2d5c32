package geoip

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"

	"github.com/oschwald/maxminddb-golang"
	"go.uber.org/zap"
)

// ErrUnavailable is reported by HealthCheck when no database handle can be opened.
var ErrUnavailable = errors.New("geoip database unavailable")

// Database is the read-only handle the resolver queries. *maxminddb.Reader satisfies it.
type Database interface {
	LookupNetwork(ip net.IP, result any) (*net.IPNet, bool, error)
	Close() error
}

// Opener opens the database stored at path.
type Opener func(path string) (Database, error)

// OpenMaxMind opens a MaxMind DB file (GeoLite2-City or compatible).
func OpenMaxMind(path string) (Database, error) {
	reader, err := maxminddb.Open(path)
	if err != nil {
		return nil, err
	}

	return reader, nil
}

type cityRecord struct {
	City struct {
		Names map[string]string `maxminddb:"names"`
	} `maxminddb:"city"`
	Country struct {
		Names map[string]string `maxminddb:"names"`
	} `maxminddb:"country"`
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithOpener replaces the function used to open the database file.
func WithOpener(open Opener) Option {
	return func(r *Resolver) {
		r.open = open
	}
}

// WithLanguage selects the locale of city and country names. Defaults to "en".
func WithLanguage(lang string) Option {
	return func(r *Resolver) {
		r.lang = lang
	}
}

// Resolver maps IP addresses to coarse locations using a local database file.
// The handle is opened lazily on first use and reopened only when the configured
// path changes. A path that failed to open stays unavailable until the path changes.
// Lookups hold a read lock, so a replaced handle is closed only after the lookups
// using it have finished.
type Resolver struct {
	mu sync.RWMutex
	db Database
	// attempted is the path of the last open attempt; tried is false until one happened.
	attempted string
	tried     bool
	closed    bool

	pathMu sync.RWMutex
	path   string

	open   Opener
	lang   string
	logger *zap.Logger
}

// NewResolver creates a resolver for the database at path. Nothing is opened yet.
func NewResolver(path string, logger *zap.Logger, opts ...Option) *Resolver {
	r := &Resolver{
		path:   path,
		open:   OpenMaxMind,
		lang:   "en",
		logger: logger,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Path returns the configured database path.
func (r *Resolver) Path() string {
	r.pathMu.RLock()
	defer r.pathMu.RUnlock()

	return r.path
}

// SetPath changes the configured database path. The new file is opened on next use.
func (r *Resolver) SetPath(path string) {
	r.pathMu.Lock()
	defer r.pathMu.Unlock()

	r.path = path
}

// Resolve classifies ip. It never panics and never returns an error; every
// failure is reported as a Result reason.
func (r *Resolver) Resolve(ip string) (result Result) {
	ip = strings.TrimSpace(ip)
	if ip == "" {
		return Result{Reason: ReasonNoAddress}
	}

	parsed := net.ParseIP(ip)
	if parsed == nil {
		r.logger.Warn("invalid ip address for geoip lookup", zap.String("ip", ip))

		return Result{Reason: ReasonInvalidAddress}
	}

	defer func() {
		if rec := recover(); rec != nil {
			err := fmt.Errorf("geoip lookup panic: %v", rec)
			r.logger.Error("geoip lookup failed unexpectedly", zap.String("ip", ip), zap.Error(err))
			result = Result{Reason: ReasonLookupError, Err: err}
		}
	}()

	if err := r.ensure(); err != nil {
		r.logger.Warn("geoip lookup skipped: reader unavailable", zap.String("ip", ip), zap.Error(err))

		return Result{Reason: ReasonDatabaseUnavailable, Err: err}
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.db == nil {
		return Result{Reason: ReasonDatabaseUnavailable, Err: ErrUnavailable}
	}

	var record cityRecord

	_, found, err := r.db.LookupNetwork(parsed, &record)
	if err != nil {
		r.logger.Error("geoip lookup failed unexpectedly", zap.String("ip", ip), zap.Error(err))

		return Result{Reason: ReasonLookupError, Err: err}
	}

	if !found {
		r.logger.Debug("ip address not found in geoip database", zap.String("ip", ip))

		return Result{Reason: ReasonNotFound}
	}

	return Result{
		Reason:  ReasonResolved,
		City:    record.City.Names[r.lang],
		Country: record.Country.Names[r.lang],
	}
}

// ensure makes sure a handle for the current path is loaded.
func (r *Resolver) ensure() error {
	path := r.Path()

	r.mu.RLock()
	ready, failed, closed := r.state(path)
	r.mu.RUnlock()

	switch {
	case closed:
		return ErrUnavailable
	case ready:
		return nil
	case failed:
		return fmt.Errorf("%w: %s", ErrUnavailable, path)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	ready, failed, closed = r.state(path)

	switch {
	case closed:
		return ErrUnavailable
	case ready:
		return nil
	case failed:
		return fmt.Errorf("%w: %s", ErrUnavailable, path)
	}

	if r.db != nil {
		r.logger.Info("geoip path changed, closing existing reader", zap.String("path", r.attempted))
		r.closeLocked()
	}

	r.attempted = path
	r.tried = true

	if path == "" {
		return fmt.Errorf("%w: no database path configured", ErrUnavailable)
	}

	db, err := r.open(path)
	if err != nil {
		r.logger.Error("failed to load geoip database", zap.String("path", path), zap.Error(err))

		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	r.db = db
	r.logger.Info("geoip database loaded", zap.String("path", path))

	return nil
}

// state must be called with mu held.
func (r *Resolver) state(path string) (ready, failed, closed bool) {
	if r.closed {
		return false, false, true
	}

	sameTarget := r.tried && r.attempted == path

	return sameTarget && r.db != nil, sameTarget && r.db == nil, false
}

// closeLocked must be called with mu held for writing.
func (r *Resolver) closeLocked() {
	if r.db == nil {
		return
	}

	if err := r.db.Close(); err != nil {
		r.logger.Error("error closing geoip reader", zap.Error(err))
	}

	r.db = nil
}

// Close releases the database handle. It is idempotent and safe when nothing was opened.
// Lookups after Close report ReasonDatabaseUnavailable.
func (r *Resolver) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}

	r.closeLocked()
	r.closed = true
}

// Shutdown closes the resolver when the container shuts down.
func (r *Resolver) Shutdown() error {
	r.Close()
	r.logger.Info("geoip reader closed")

	return nil
}

// HealthCheck reports whether the database for the current path can be used.
func (r *Resolver) HealthCheck() error {
	return r.ensure()
}
