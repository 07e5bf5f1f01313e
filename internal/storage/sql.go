package storage

import (
	_ "embed"
)

const (
	insertSessionSQL = `
INSERT INTO sessions (
                      start_time,
                      device_type,
                      device_id,
                      config)
VALUES (CURRENT_TIMESTAMP, ?, ?, ?)`

	selectSessionSQL = `
SELECT
    id,
    start_time,
    device_type,
    device_id,
    config
FROM sessions
WHERE
    id = ?`

	insertTelemetrySQL = `
INSERT INTO telemetry (session_id,
                       timestamp,
                       latitude,
                       longitude,
                       altitude,
                       roll,
                       pitch,
                       yaw)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	selectTelemetrySQL = `
SELECT
    latitude,
    longitude,
    altitude,
    roll,
    pitch,
    yaw
FROM telemetry
WHERE
    session_id = ?
ORDER BY timestamp, id`

	insertFootprintSQL = `
INSERT INTO footprints (id,
                        created_at,
                        session_id,
                        label,
                        elevation,
                        fov,
                        smooth,
                        samples,
                        area,
                        ring)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	selectFootprintSQL = `
SELECT
    id,
    created_at,
    session_id,
    label,
    elevation,
    fov,
    smooth,
    samples,
    area,
    ring
FROM footprints
WHERE
    id = ?`

	selectElevationsSQL = `
SELECT
    lat_key,
    lon_key,
    elevation
FROM elevation_cache
WHERE (lat_key, lon_key) IN (VALUES `

	insertElevationsSQL = `
INSERT OR REPLACE INTO elevation_cache (lat_key,
                                        lon_key,
                                        elevation)
VALUES `

	initIndexesSQL = `
CREATE INDEX IF NOT EXISTS idx_telemetry_session_time ON telemetry (session_id, timestamp);
CREATE INDEX IF NOT EXISTS idx_footprints_session ON footprints (session_id);`
)

//go:embed schema.sql
var initSchemaSQL string
