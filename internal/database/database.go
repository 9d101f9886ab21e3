package database

import (
	"context"
	"database/sql"
	"path/filepath"

	"github.com/SkylerRankin/netquality/internal/optional"
	"github.com/SkylerRankin/netquality/internal/types"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

const (
	databaseFilename = "netquality.db"
)

type Database interface {
	InsertNetworkInfo(context.Context, *types.NetworkInfo) error
	// GetNetworkInfoBatch returns records newer than startTime (unix millis),
	// oldest first.
	GetNetworkInfoBatch(context.Context, int64) (*types.NetworkInfoBatch, error)
	GetLatestSpeedTest(context.Context) (optional.Opt[types.NetworkInfo], error)
	Close() error
}

var _ Database = &database{}

type database struct {
	db         *sql.DB
	maxHistory int
}

const schema = `
CREATE TABLE IF NOT EXISTS network (
	id TEXT PRIMARY KEY,
	timestamp INTEGER NOT NULL,
	pingHost TEXT NOT NULL,
	pingHostName TEXT NOT NULL,
	pingSuccessful INTEGER NOT NULL,
	pingLoss REAL NOT NULL,
	rttMS INTEGER NOT NULL,
	speedTest INTEGER NOT NULL,
	serverLocation TEXT,
	latencyMS REAL,
	jitterMS REAL,
	downloadMbps REAL,
	uploadMbps REAL,
	packetLoss REAL
);
CREATE INDEX IF NOT EXISTS network_timestamp ON network (timestamp);
`

const columns = `id, timestamp, pingHost, pingHostName, pingSuccessful, pingLoss, rttMS,
	serverLocation, latencyMS, jitterMS, downloadMbps, uploadMbps, packetLoss`

// NewDatabase opens (or creates) the database file inside dir. At most
// maxHistory speed test records are kept.
func NewDatabase(ctx context.Context, dir string, maxHistory int) (Database, error) {
	db, err := sql.Open("sqlite", filepath.Join(dir, databaseFilename))
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}
	// A single connection serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to create network table")
	}

	return &database{
		db:         db,
		maxHistory: maxHistory,
	}, nil
}

// InsertNetworkInfo stores info, assigning it an id when it has none.
func (d *database) InsertNetworkInfo(ctx context.Context, info *types.NetworkInfo) error {
	if info.ID == "" {
		info.ID = uuid.NewString()
	}

	speedTest := info.HasSpeedTest()

	_, err := d.db.ExecContext(ctx,
		`INSERT INTO network
		(id, timestamp, pingHost, pingHostName, pingSuccessful, pingLoss, rttMS, speedTest,
		serverLocation, latencyMS, jitterMS, downloadMbps, uploadMbps, packetLoss)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);`,
		info.ID, info.Timestamp, info.PingHost, info.PingHostName, boolToInt(info.PingSuccessful), info.PingLoss, info.RTTMS, boolToInt(speedTest),
		info.ServerLocation, info.LatencyMs, info.JitterMs, info.DownloadMbps, info.UploadMbps, info.PacketLoss)
	if err != nil {
		return errors.Wrap(err, "failed to execute insert")
	}

	if speedTest && d.maxHistory > 0 {
		if err := d.pruneSpeedTests(ctx); err != nil {
			return err
		}
	}
	return nil
}

// pruneSpeedTests deletes the oldest speed test records beyond maxHistory.
func (d *database) pruneSpeedTests(ctx context.Context) error {
	_, err := d.db.ExecContext(ctx,
		`DELETE FROM network WHERE id IN (
			SELECT id FROM network
			WHERE speedTest = 1
			ORDER BY timestamp DESC
			LIMIT -1 OFFSET ?
		)`, d.maxHistory)
	if err != nil {
		return errors.Wrap(err, "failed to prune speed test history")
	}
	return nil
}

func (d *database) GetNetworkInfoBatch(ctx context.Context, startTime int64) (*types.NetworkInfoBatch, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT `+columns+` FROM network
		WHERE timestamp > ?
		ORDER BY timestamp ASC`, startTime)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query networks table")
	}
	defer rows.Close()

	batch := types.NetworkInfoBatch{
		Records: make([]types.NetworkInfo, 0),
	}
	for rows.Next() {
		info, err := scanNetworkInfo(rows)
		if err != nil {
			return nil, err
		}
		batch.Records = append(batch.Records, info)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate network rows")
	}

	return &batch, nil
}

func (d *database) GetLatestSpeedTest(ctx context.Context) (optional.Opt[types.NetworkInfo], error) {
	row := d.db.QueryRowContext(ctx,
		`SELECT `+columns+` FROM network
		WHERE speedTest = 1
		ORDER BY timestamp DESC
		LIMIT 1`)

	info, err := scanNetworkInfo(row)
	if errors.Is(err, sql.ErrNoRows) {
		return optional.Empty[types.NetworkInfo](), nil
	}
	if err != nil {
		return optional.Empty[types.NetworkInfo](), err
	}
	return optional.New(info), nil
}

func (d *database) Close() error {
	return d.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanNetworkInfo(row scanner) (types.NetworkInfo, error) {
	var info types.NetworkInfo
	err := row.Scan(&info.ID, &info.Timestamp, &info.PingHost, &info.PingHostName, &info.PingSuccessful, &info.PingLoss, &info.RTTMS,
		&info.ServerLocation, &info.LatencyMs, &info.JitterMs, &info.DownloadMbps, &info.UploadMbps, &info.PacketLoss)
	if errors.Is(err, sql.ErrNoRows) {
		return info, err
	}
	if err != nil {
		return info, errors.Wrap(err, "failed to scan row for network info values")
	}
	return info, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
