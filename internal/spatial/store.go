// Huddle - Location-Based Ephemeral Groups
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/huddle

// Package spatial answers nearest-building queries from an embedded
// DuckDB database with the spatial extension.
//
// The store degrades instead of failing: if DuckDB cannot be opened or
// the spatial extension cannot be loaded, lookups return no building and
// the rest of the application keeps working. Status() exposes the
// degraded state for the diagnostics endpoints.
package spatial

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	_ "github.com/duckdb/duckdb-go/v2" // duckdb driver
	"github.com/sony/gobreaker/v2"

	"github.com/tomtom215/huddle/internal/config"
	"github.com/tomtom215/huddle/internal/geo"
	"github.com/tomtom215/huddle/internal/logging"
	"github.com/tomtom215/huddle/internal/metrics"
	"github.com/tomtom215/huddle/internal/models"
)

// ErrUnavailable is returned by Reset when re-initialization fails.
var ErrUnavailable = errors.New("spatial store unavailable")

// Store is the building footprint index.
//
// The RWMutex serializes Reset against in-flight lookups: queries take
// the read lock, Reset takes the write lock and swaps the connection.
type Store struct {
	cfg     config.SpatialConfig
	metrics *metrics.Metrics
	breaker *gobreaker.CircuitBreaker[*models.Building]

	mu            sync.RWMutex
	db            *sql.DB
	available     bool
	spatialExt    bool
	buildingCount int64
	loadedAt      time.Time
	lastErr       error
}

// New opens the spatial store. Initialization failure does not return an
// error unless cfg.Optional is false; the store starts degraded and
// records the cause in Status().
func New(cfg config.SpatialConfig, m *metrics.Metrics) (*Store, error) {
	s := &Store{cfg: cfg, metrics: m}

	s.breaker = gobreaker.NewCircuitBreaker[*models.Building](gobreaker.Settings{
		Name:        "spatial-lookup",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Spatial lookup breaker state change")
		},
	})

	if err := s.initialize(context.Background()); err != nil {
		s.lastErr = err
		logging.Err(err).Msg("Spatial store starting degraded")
		if !cfg.Optional {
			return nil, fmt.Errorf("initialize spatial store: %w", err)
		}
	}
	return s, nil
}

// initialize opens DuckDB, loads the spatial extension and the building
// dataset. Caller must hold the write lock or have exclusive access.
func (s *Store) initialize(ctx context.Context) error {
	db, err := sql.Open("duckdb", s.cfg.Path)
	if err != nil {
		return fmt.Errorf("open duckdb at %s: %w", s.cfg.Path, err)
	}
	db.SetMaxOpenConns(4)

	if err := s.configure(ctx, db); err != nil {
		_ = db.Close()
		return err
	}

	spatialExt := true
	if err := loadSpatialExtension(ctx, db); err != nil {
		// The extension may be missing in offline environments. Keep
		// the database open so Status() can report the partial state.
		spatialExt = false
		logging.Err(err).Msg("Spatial extension unavailable")
	}

	count := int64(0)
	if spatialExt {
		if err := createSchema(ctx, db); err != nil {
			_ = db.Close()
			return err
		}
		count, err = s.loadDataset(ctx, db)
		if err != nil {
			_ = db.Close()
			return err
		}
	}

	if s.db != nil {
		_ = s.db.Close()
	}
	s.db = db
	s.available = spatialExt
	s.spatialExt = spatialExt
	s.buildingCount = count
	s.loadedAt = time.Now()
	s.lastErr = nil

	logging.Info().
		Bool("spatial_extension", spatialExt).
		Int64("buildings", count).
		Str("dataset", s.cfg.DatasetPath).
		Msg("Spatial store initialized")
	return nil
}

func (s *Store) configure(ctx context.Context, db *sql.DB) error {
	threads := s.cfg.Threads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}
	pragmas := []string{
		fmt.Sprintf("SET memory_limit = '%s'", s.cfg.MaxMemory),
		fmt.Sprintf("SET threads = %d", threads),
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("apply %q: %w", pragma, err)
		}
	}
	return nil
}

func loadSpatialExtension(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, "INSTALL spatial"); err != nil {
		return fmt.Errorf("install spatial extension: %w", err)
	}
	if _, err := db.ExecContext(ctx, "LOAD spatial"); err != nil {
		return fmt.Errorf("load spatial extension: %w", err)
	}
	return nil
}

func createSchema(ctx context.Context, db *sql.DB) error {
	const ddl = `
		CREATE TABLE IF NOT EXISTS buildings (
			id      VARCHAR PRIMARY KEY,
			name    VARCHAR,
			address VARCHAR,
			geom    GEOMETRY NOT NULL,
			area    DOUBLE DEFAULT 0
		)`
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create buildings table: %w", err)
	}
	return nil
}

// loadDataset imports footprints from the configured dataset path when
// the table is empty. ST_Read handles GeoJSON, Shapefile and GeoParquet.
func (s *Store) loadDataset(ctx context.Context, db *sql.DB) (int64, error) {
	var count int64
	if err := db.QueryRowContext(ctx, "SELECT count(*) FROM buildings").Scan(&count); err != nil {
		return 0, fmt.Errorf("count buildings: %w", err)
	}
	if count > 0 || s.cfg.DatasetPath == "" {
		s.ensureIndex(ctx, db)
		return count, nil
	}

	const load = `
		INSERT INTO buildings (id, name, address, geom, area)
		SELECT
			coalesce(CAST(feature_id AS VARCHAR), CAST(row_number() OVER () AS VARCHAR)),
			coalesce(name, ''),
			coalesce(address, ''),
			geom,
			ST_Area(geom)
		FROM ST_Read(?)`
	if _, err := db.ExecContext(ctx, load, s.cfg.DatasetPath); err != nil {
		return 0, fmt.Errorf("load dataset %s: %w", s.cfg.DatasetPath, err)
	}

	if err := db.QueryRowContext(ctx, "SELECT count(*) FROM buildings").Scan(&count); err != nil {
		return 0, fmt.Errorf("count buildings after load: %w", err)
	}
	s.ensureIndex(ctx, db)
	return count, nil
}

// ensureIndex creates the RTREE index. Index failure only costs query
// speed, so it is logged and ignored.
func (s *Store) ensureIndex(ctx context.Context, db *sql.DB) {
	const idx = "CREATE INDEX IF NOT EXISTS idx_buildings_geom ON buildings USING RTREE (geom)"
	if _, err := db.ExecContext(ctx, idx); err != nil {
		logging.Err(err).Msg("RTREE index creation failed")
	}
}

// NearestBuilding finds the building at the given coordinates.
//
// Containment wins: a point inside a footprint returns that building
// with distance zero. Otherwise the closest footprint whose bounding box
// intersects a bufferMeters buffer around the point is returned. When no
// footprint is in range, or the store is degraded, the result is nil
// with no error.
func (s *Store) NearestBuilding(ctx context.Context, lat, lon, bufferMeters float64) (*models.Building, error) {
	start := time.Now()

	// The read lock is held for the whole query so Reset cannot close
	// the handle under an in-flight lookup.
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.available {
		s.observe(metrics.SpatialResultNone, start)
		return nil, nil
	}

	if bufferMeters <= 0 {
		bufferMeters = s.cfg.BufferMeters
	}

	building, err := s.breaker.Execute(func() (*models.Building, error) {
		return lookup(ctx, s.db, lat, lon, bufferMeters)
	})
	if err != nil {
		s.observe(metrics.SpatialResultError, start)
		return nil, fmt.Errorf("nearest building at (%f, %f): %w", lat, lon, err)
	}

	switch {
	case building == nil:
		s.observe(metrics.SpatialResultNone, start)
	case building.IsInside:
		s.observe(metrics.SpatialResultInside, start)
	default:
		s.observe(metrics.SpatialResultNearby, start)
	}
	return building, nil
}

func lookup(ctx context.Context, db *sql.DB, lat, lon, bufferMeters float64) (*models.Building, error) {
	// Containment first.
	const containsQuery = `
		SELECT id, name, address, ST_AsText(geom), area
		FROM buildings
		WHERE ST_Contains(geom, ST_Point(?, ?))
		LIMIT 1`

	b := &models.Building{}
	err := db.QueryRowContext(ctx, containsQuery, lon, lat).
		Scan(&b.ID, &b.Name, &b.Address, &b.Geometry, &b.Area)
	switch {
	case err == nil:
		b.IsInside = true
		b.DistanceMeters = 0
		return b, nil
	case !errors.Is(err, sql.ErrNoRows):
		return nil, fmt.Errorf("containment query: %w", err)
	}

	// Buffer-bounded nearest by bounding box intersection.
	dLat, dLon := geo.BufferDegrees(lat, bufferMeters)
	const nearestQuery = `
		SELECT id, name, address, ST_AsText(geom), area,
		       ST_Distance_Sphere(ST_Centroid(geom), ST_Point(?, ?))
		FROM buildings
		WHERE ST_Intersects(
			geom,
			ST_MakeEnvelope(?, ?, ?, ?)
		)
		ORDER BY ST_Distance(geom, ST_Point(?, ?))
		LIMIT 1`

	b = &models.Building{}
	err = db.QueryRowContext(ctx, nearestQuery,
		lon, lat,
		lon-dLon, lat-dLat, lon+dLon, lat+dLat,
		lon, lat,
	).Scan(&b.ID, &b.Name, &b.Address, &b.Geometry, &b.Area, &b.DistanceMeters)
	switch {
	case err == nil:
		b.IsInside = false
		return b, nil
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil
	default:
		return nil, fmt.Errorf("nearest query: %w", err)
	}
}

func (s *Store) observe(result string, start time.Time) {
	if s.metrics == nil {
		return
	}
	s.metrics.SpatialLookupsTotal.WithLabelValues(result).Inc()
	s.metrics.SpatialLookupDuration.Observe(time.Since(start).Seconds())
}

// Status reports the store state for diagnostics.
func (s *Store) Status() models.SpatialStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status := models.SpatialStatus{
		Available:        s.available,
		SpatialExtension: s.spatialExt,
		BuildingCount:    s.buildingCount,
		DatasetPath:      s.cfg.DatasetPath,
		LoadedAt:         s.loadedAt,
	}
	if s.lastErr != nil {
		status.LastError = s.lastErr.Error()
	}
	return status
}

// Reset tears down and rebuilds the store under the write lock, so
// concurrent lookups either complete against the old connection or wait
// for the new one. Lookups never observe a half-initialized store.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	logging.Info().Msg("Resetting spatial store")

	if s.db != nil {
		if _, err := s.db.ExecContext(ctx, "DROP TABLE IF EXISTS buildings"); err != nil {
			logging.Err(err).Msg("Drop buildings table failed during reset")
		}
	}

	if err := s.initialize(ctx); err != nil {
		s.available = false
		s.lastErr = err
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return nil
}

// Sample returns up to limit footprints for the debug endpoint.
func (s *Store) Sample(ctx context.Context, limit int) ([]models.Building, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.available {
		return nil, nil
	}
	if limit <= 0 || limit > 100 {
		limit = 10
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, address, ST_AsText(ST_Centroid(geom)), area FROM buildings LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("sample buildings: %w", err)
	}
	defer rows.Close()

	var out []models.Building
	for rows.Next() {
		var b models.Building
		if err := rows.Scan(&b.ID, &b.Name, &b.Address, &b.Geometry, &b.Area); err != nil {
			return nil, fmt.Errorf("scan building: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// InsertBuilding adds a footprint directly. Used by tests and the debug
// test endpoint.
func (s *Store) InsertBuilding(ctx context.Context, id, name, address, wkt string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.available {
		return ErrUnavailable
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO buildings (id, name, address, geom, area) VALUES (?, ?, ?, ST_GeomFromText(?), ST_Area(ST_GeomFromText(?)))",
		id, name, address, wkt, wkt)
	if err != nil {
		return fmt.Errorf("insert building %s: %w", id, err)
	}
	return nil
}

// DeleteBuilding removes a footprint by ID. The self-test endpoint uses
// it to clean up its temporary row.
func (s *Store) DeleteBuilding(ctx context.Context, id string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.available {
		return ErrUnavailable
	}
	if _, err := s.db.ExecContext(ctx, "DELETE FROM buildings WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete building %s: %w", id, err)
	}
	return nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.available = false
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}
