package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/roman-kulish/swath-footprint/internal/elevation"
	"github.com/roman-kulish/swath-footprint/internal/swath"
	"github.com/roman-kulish/swath-footprint/internal/telemetry"
)

// maxKeysPerQuery keeps cache statements well below the sqlite host
// parameter limit
const maxKeysPerQuery = 400

// ErrSessionNotFound is returned when a session ID is unknown
var ErrSessionNotFound = errors.New("session not found")

// ErrRunNotFound is returned when a footprint run ID is unknown
var ErrRunNotFound = errors.New("footprint run not found")

// SqliteStore implements Store on top of a Sqlite database
type SqliteStore struct {
	dbPath string

	writeDB     *sql.DB
	writeDBOnce sync.Once
	writeDBErr  error

	readDB     *sql.DB
	readDBOnce sync.Once
	readDBErr  error

	closeOnce sync.Once
	closeErr  error
}

// NewSqliteStore creates a store backed by the Sqlite database at dbPath.
// Connections are opened lazily.
func NewSqliteStore(dbPath string) *SqliteStore {
	return &SqliteStore{dbPath: dbPath}
}

func runSQLCommand(db *sql.DB, sql string) error {
	_, err := db.Exec(sql)
	return err
}

func (s *SqliteStore) getWriteDB() (*sql.DB, error) {
	s.writeDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", s.dbPath, "_journal_mode=WAL&_synchronous=NORMAL"))
		if err != nil {
			s.writeDBErr = fmt.Errorf("opening write connection: %w", err)
			return
		}

		if err = runSQLCommand(db, initSchemaSQL); err != nil {
			_ = db.Close()
			s.writeDBErr = fmt.Errorf("initializing schema: %w", err)
			return
		}

		s.writeDB = db
	})

	return s.writeDB, s.writeDBErr
}

func (s *SqliteStore) getReadDB() (*sql.DB, error) {
	s.readDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", s.dbPath, "mode=ro"))
		if err != nil {
			s.readDBErr = fmt.Errorf("opening read connection: %w", err)
			return
		}
		s.readDB = db
	})

	return s.readDB, s.readDBErr
}

func (s *SqliteStore) CreateSession(ctx context.Context, deviceType, deviceID string, config any) (sessionID int64, err error) {
	var configData sql.NullString

	if config != nil {
		switch c := config.(type) {
		case string:
			configData.Valid = true
			configData.String = c

		case []byte:
			configData.Valid = true
			configData.String = string(c)

		default:
			var p []byte
			if p, err = json.Marshal(config); err != nil {
				err = fmt.Errorf("marshaling config: %w", err)
				return
			}

			configData.Valid = true
			configData.String = string(p)
		}
	}

	db, err := s.getWriteDB()
	if err != nil {
		err = fmt.Errorf("getting write connection: %w", err)
		return
	}

	stmt, err := db.PrepareContext(ctx, insertSessionSQL)
	if err != nil {
		err = fmt.Errorf("preparing statement: %w", err)
		return
	}
	defer closeWithError(stmt, &err)

	result, err := stmt.ExecContext(ctx, deviceType, deviceID, configData)
	if err != nil {
		err = fmt.Errorf("inserting session: %w", err)
		return
	}

	sessionID, err = result.LastInsertId()
	if err != nil {
		err = fmt.Errorf("getting session ID: %w", err)
	}
	return
}

func (s *SqliteStore) Session(ctx context.Context, id int64) (session *Session, err error) {
	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	stmt, err := db.PrepareContext(ctx, selectSessionSQL)
	if err != nil {
		err = fmt.Errorf("preparing statement: %w", err)
		return
	}
	defer closeWithError(stmt, &err)

	var sess Session
	var config sql.NullString
	err = stmt.QueryRowContext(ctx, id).Scan(&sess.ID, &sess.StartTime, &sess.DeviceType, &sess.DeviceID, &config)
	if errors.Is(err, sql.ErrNoRows) {
		err = fmt.Errorf("%w: %d", ErrSessionNotFound, id)
		return
	}
	if err != nil {
		err = fmt.Errorf("scanning session: %w", err)
		return
	}
	if config.Valid {
		sess.Config = &config.String
	}

	return &sess, nil
}

// StoreTelemetry saves one pose of a session recorded at timestamp
func (s *SqliteStore) StoreTelemetry(ctx context.Context, sessionID int64, timestamp time.Time, pose telemetry.Pose) (telemetryID int64, err error) {
	db, err := s.getWriteDB()
	if err != nil {
		err = fmt.Errorf("getting write connection: %w", err)
		return
	}

	stmt, err := db.PrepareContext(ctx, insertTelemetrySQL)
	if err != nil {
		err = fmt.Errorf("preparing statement: %w", err)
		return
	}
	defer closeWithError(stmt, &err)

	data := toTelemetryData(sessionID, pose)
	data.Timestamp = timestamp.UTC()

	result, err := stmt.ExecContext(
		ctx,
		data.SessionID,
		data.Timestamp,
		data.Latitude,
		data.Longitude,
		data.Altitude,
		data.Roll,
		data.Pitch,
		data.Yaw,
	)
	if err != nil {
		err = fmt.Errorf("inserting telemetry: %w", err)
		return
	}

	telemetryID, err = result.LastInsertId()
	if err != nil {
		err = fmt.Errorf("getting telemetry ID: %w", err)
	}
	return
}

// ReadTelemetry returns the telemetry of a session ordered by timestamp. A
// row with a missing pose field fails the whole read with a
// *telemetry.MalformedError.
func (s *SqliteStore) ReadTelemetry(ctx context.Context, sessionID int64) (series telemetry.Series, err error) {
	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	rows, err := db.QueryContext(ctx, selectTelemetrySQL, sessionID)
	if err != nil {
		err = fmt.Errorf("querying telemetry: %w", err)
		return
	}
	defer closeWithError(rows, &err)

	for row := 1; rows.Next(); row++ {
		var data telemetryData
		if err = rows.Scan(&data.Latitude, &data.Longitude, &data.Altitude, &data.Roll, &data.Pitch, &data.Yaw); err != nil {
			err = fmt.Errorf("scanning telemetry: %w", err)
			return
		}

		var pose telemetry.Pose
		if pose, err = toPose(row, &data); err != nil {
			return nil, err
		}
		series = append(series, pose)
	}
	if err = rows.Err(); err != nil {
		err = fmt.Errorf("iterating telemetry: %w", err)
		return
	}

	if len(series) == 0 {
		return nil, fmt.Errorf("session %d: %w", sessionID, telemetry.ErrEmptySeries)
	}
	return series, nil
}

// SessionTelemetry returns a telemetry source reading the given session
func (s *SqliteStore) SessionTelemetry(sessionID int64) telemetry.Source {
	return sessionSource{store: s, sessionID: sessionID}
}

type sessionSource struct {
	store     *SqliteStore
	sessionID int64
}

func (s sessionSource) Series(ctx context.Context) (telemetry.Series, error) {
	return s.store.ReadTelemetry(ctx, s.sessionID)
}

// StoreFootprint persists a footprint under a new run ID. SessionID is nil
// when the telemetry did not come from a stored session.
func (s *SqliteStore) StoreFootprint(ctx context.Context, sessionID *int64, fp *swath.Footprint) (run *Run, err error) {
	ring, err := json.Marshal(fp.Ring)
	if err != nil {
		err = fmt.Errorf("marshaling ring: %w", err)
		return
	}

	db, err := s.getWriteDB()
	if err != nil {
		err = fmt.Errorf("getting write connection: %w", err)
		return
	}

	stmt, err := db.PrepareContext(ctx, insertFootprintSQL)
	if err != nil {
		err = fmt.Errorf("preparing statement: %w", err)
		return
	}
	defer closeWithError(stmt, &err)

	r := Run{
		ID:        uuid.New(),
		CreatedAt: time.Now().UTC(),
		SessionID: sessionID,
		Label:     fp.Label,
		Elevation: fp.Elevation,
		FOV:       fp.FOV,
		Smooth:    fp.Smooth,
		Samples:   len(fp.Left),
		Area:      fp.Area(),
		Ring:      fp.Ring,
	}

	var session sql.NullInt64
	if sessionID != nil {
		session.Int64 = *sessionID
		session.Valid = true
	}

	if _, err = stmt.ExecContext(ctx, r.ID.String(), r.CreatedAt, session, r.Label, r.Elevation, r.FOV, r.Smooth, r.Samples, r.Area, string(ring)); err != nil {
		err = fmt.Errorf("inserting footprint: %w", err)
		return
	}

	return &r, nil
}

// Run returns a persisted footprint
func (s *SqliteStore) Run(ctx context.Context, id uuid.UUID) (run *Run, err error) {
	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	var (
		r       Run
		rawID   string
		session sql.NullInt64
		ring    string
	)
	err = db.QueryRowContext(ctx, selectFootprintSQL, id.String()).
		Scan(&rawID, &r.CreatedAt, &session, &r.Label, &r.Elevation, &r.FOV, &r.Smooth, &r.Samples, &r.Area, &ring)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("scanning footprint: %w", err)
	}

	if r.ID, err = uuid.Parse(rawID); err != nil {
		return nil, fmt.Errorf("parsing run ID: %w", err)
	}
	if session.Valid {
		r.SessionID = &session.Int64
	}
	if err = json.Unmarshal([]byte(ring), &r.Ring); err != nil {
		return nil, fmt.Errorf("unmarshaling ring: %w", err)
	}

	return &r, nil
}

// LookupElevations returns the cached elevations found for keys. Lookups go
// through the write connection so that the schema exists on first use.
func (s *SqliteStore) LookupElevations(ctx context.Context, keys []elevation.CacheKey) (map[elevation.CacheKey]float64, error) {
	db, err := s.getWriteDB()
	if err != nil {
		return nil, fmt.Errorf("getting write connection: %w", err)
	}

	found := make(map[elevation.CacheKey]float64, len(keys))
	for start := 0; start < len(keys); start += maxKeysPerQuery {
		end := min(start+maxKeysPerQuery, len(keys))
		if err = s.lookupElevations(ctx, db, keys[start:end], found); err != nil {
			return nil, err
		}
	}
	return found, nil
}

func (s *SqliteStore) lookupElevations(ctx context.Context, db *sql.DB, keys []elevation.CacheKey, found map[elevation.CacheKey]float64) (err error) {
	args := make([]any, 0, len(keys)*2)
	for _, k := range keys {
		args = append(args, k.Lat, k.Lon)
	}

	rows, err := db.QueryContext(ctx, selectElevationsSQL+placeholders("(?, ?)", len(keys))+")", args...)
	if err != nil {
		return fmt.Errorf("querying elevation cache: %w", err)
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var k elevation.CacheKey
		var value float64
		if err = rows.Scan(&k.Lat, &k.Lon, &value); err != nil {
			return fmt.Errorf("scanning elevation cache: %w", err)
		}
		found[k] = value
	}
	return rows.Err()
}

// StoreElevations writes elevations to the cache in a single transaction
func (s *SqliteStore) StoreElevations(ctx context.Context, elevations map[elevation.CacheKey]float64) (err error) {
	if len(elevations) == 0 {
		return nil
	}

	db, err := s.getWriteDB()
	if err != nil {
		return fmt.Errorf("getting write connection: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer rollbackWithError(tx, &err)

	values := make([]any, 0, maxKeysPerQuery*3)
	flush := func() error {
		if len(values) == 0 {
			return nil
		}
		query := insertElevationsSQL + placeholders("(?, ?, ?)", len(values)/3)
		if _, err := tx.ExecContext(ctx, query, values...); err != nil {
			return fmt.Errorf("batch inserting elevations: %w", err)
		}
		values = values[:0]
		return nil
	}

	for k, v := range elevations {
		values = append(values, k.Lat, k.Lon, v)
		if len(values) == maxKeysPerQuery*3 {
			if err = flush(); err != nil {
				return err
			}
		}
	}
	if err = flush(); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func (s *SqliteStore) Close() error {
	s.closeOnce.Do(func() {
		var writeErr, readErr error

		if s.writeDB != nil {
			_ = runSQLCommand(s.writeDB, initIndexesSQL)

			writeErr = s.writeDB.Close()
			s.writeDB = nil
		}

		if s.readDB != nil {
			readErr = s.readDB.Close()
			s.readDB = nil
		}

		s.closeErr = errors.Join(writeErr, readErr)
	})

	return s.closeErr
}
