package reading

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Repository persists readings. The store keeps the authoritative in-memory
// view; the repository makes it durable and rebuilds it at startup.
type Repository interface {
	// Insert stores r and sets r.ID.
	Insert(ctx context.Context, r *SensorReading) error

	// List returns every stored reading ordered by timestamp, then ID.
	List(ctx context.Context) ([]SensorReading, error)
}

// SQLiteRepository implements Repository using the sensor_readings table.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new reading repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Insert stores r and sets r.ID to the generated row ID.
func (r *SQLiteRepository) Insert(ctx context.Context, rd *SensorReading) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO sensor_readings (sensor_id, ts, value, unit) VALUES (?, ?, ?, ?)`,
		rd.SensorID, rd.Timestamp.UnixNano(), rd.Value, rd.Unit,
	)
	if err != nil {
		return fmt.Errorf("inserting reading: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading inserted id: %w", err)
	}
	rd.ID = id
	return nil
}

// List returns all readings in store order.
func (r *SQLiteRepository) List(ctx context.Context) ([]SensorReading, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, sensor_id, ts, value, unit FROM sensor_readings ORDER BY ts, id`,
	)
	if err != nil {
		return nil, fmt.Errorf("querying readings: %w", err)
	}
	defer rows.Close()

	var out []SensorReading
	for rows.Next() {
		var (
			rd SensorReading
			ts int64
		)
		if err := rows.Scan(&rd.ID, &rd.SensorID, &ts, &rd.Value, &rd.Unit); err != nil {
			return nil, fmt.Errorf("scanning reading: %w", err)
		}
		rd.Timestamp = time.Unix(0, ts).UTC()
		out = append(out, rd)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating readings: %w", err)
	}
	return out, nil
}
