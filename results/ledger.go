// Package results keeps the ledger of finished runs: one row per vehicle
// life that ended in a win or a crash.
package results

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/wricardo/mcp-training/crossroadbus/game/engine"
	"github.com/wricardo/mcp-training/crossroadbus/game/service"
)

// DefaultListLimit caps List when no limit is given.
const DefaultListLimit = 50

var ErrInvalidResult = errors.New("invalid run result")

// Run is the stored form of a run result.
type Run struct {
	ID         string    `gorm:"primaryKey;size:36"`
	SessionID  string    `gorm:"size:64;index"`
	ConfigName string    `gorm:"size:128;index"`
	Outcome    string    `gorm:"size:8;index"`
	Turns      int       `gorm:"not null"`
	Required   int       `gorm:"not null"`
	Frames     int       `gorm:"not null"`
	Elapsed    float64   `gorm:"not null"`
	CellX      int       `gorm:"not null"`
	CellY      int       `gorm:"not null"`
	FinishedAt time.Time `gorm:"index"`
}

// TableName overrides the gorm default.
func (Run) TableName() string { return "run_results" }

// Ledger stores run results with gorm.
type Ledger struct {
	DB    *gorm.DB
	SqlDB *sql.DB
	log   zerolog.Logger
}

// IsPostgresDSN reports whether dsn addresses a Postgres server rather
// than a SQLite file.
func IsPostgresDSN(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") ||
		strings.HasPrefix(dsn, "postgresql://") ||
		strings.Contains(dsn, "host=")
}

// Open connects to the ledger database. An empty dsn opens a private
// in-memory SQLite database, a Postgres URL or keyword DSN opens Postgres,
// anything else is a SQLite file path.
func Open(dsn string, log zerolog.Logger) (*Ledger, error) {
	var (
		db  *gorm.DB
		err error
	)
	switch {
	case IsPostgresDSN(dsn):
		db, err = gorm.Open(postgres.New(postgres.Config{
			DSN:                  dsn,
			PreferSimpleProtocol: true,
		}), &gorm.Config{
			SkipDefaultTransaction: true,
			Logger:                 logger.Default.LogMode(logger.Silent),
		})
	case dsn == "":
		// a named shared-cache database so every pooled connection sees the same data
		db, err = gorm.Open(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), sqliteConfig())
	default:
		db, err = gorm.Open(sqlite.Open(dsn), sqliteConfig())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open results database: %w", err)
	}

	l, err := New(db, log)
	if err != nil {
		return nil, err
	}
	if l.DB.Dialector.Name() == "sqlite" {
		l.SqlDB.SetMaxOpenConns(1)
	}
	log.Info().Str("dialect", l.DB.Dialector.Name()).Msg("results ledger ready")
	return l, nil
}

func sqliteConfig() *gorm.Config {
	return &gorm.Config{
		PrepareStmt:            true,
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	}
}

// New wraps an open gorm connection and migrates the schema.
func New(db *gorm.DB, log zerolog.Logger) (*Ledger, error) {
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access sql interface: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to reach results database: %w", err)
	}
	if err := db.AutoMigrate(&Run{}); err != nil {
		return nil, fmt.Errorf("failed to migrate results schema: %w", err)
	}
	return &Ledger{DB: db, SqlDB: sqlDB, log: log}, nil
}

// Record stores a finished run. A missing ID is generated and a missing
// finish time is set to now.
func (l *Ledger) Record(ctx context.Context, r *service.RunResult) error {
	if r == nil {
		return fmt.Errorf("%w: nil result", ErrInvalidResult)
	}
	if r.Outcome != engine.OutcomeWon && r.Outcome != engine.OutcomeLost {
		return fmt.Errorf("%w: outcome %q", ErrInvalidResult, r.Outcome)
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.FinishedAt.IsZero() {
		r.FinishedAt = time.Now()
	}
	r.FinishedAt = r.FinishedAt.UTC()

	row := Run{
		ID:         r.ID,
		SessionID:  r.SessionID,
		ConfigName: r.ConfigName,
		Outcome:    string(r.Outcome),
		Turns:      r.Turns,
		Required:   r.Required,
		Frames:     r.Frames,
		Elapsed:    r.Elapsed,
		CellX:      r.Cell.X,
		CellY:      r.Cell.Y,
		FinishedAt: r.FinishedAt,
	}
	if err := l.DB.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}

	l.log.Debug().
		Str("run", r.ID).
		Str("session", r.SessionID).
		Str("outcome", string(r.Outcome)).
		Msg("run recorded")
	return nil
}

// List returns the most recent runs first. A non-positive limit uses
// DefaultListLimit.
func (l *Ledger) List(ctx context.Context, limit int) ([]*service.RunResult, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	var rows []Run
	err := l.DB.WithContext(ctx).
		Order("finished_at desc").
		Order("id desc").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	out := make([]*service.RunResult, 0, len(rows))
	for _, row := range rows {
		out = append(out, &service.RunResult{
			ID:         row.ID,
			SessionID:  row.SessionID,
			ConfigName: row.ConfigName,
			Outcome:    engine.Outcome(row.Outcome),
			Turns:      row.Turns,
			Required:   row.Required,
			Frames:     row.Frames,
			Elapsed:    row.Elapsed,
			Cell:       engine.Position{X: row.CellX, Y: row.CellY},
			FinishedAt: row.FinishedAt,
		})
	}
	return out, nil
}

// Count returns the number of stored runs with the given outcome, or of
// all runs when outcome is empty.
func (l *Ledger) Count(ctx context.Context, outcome engine.Outcome) (int64, error) {
	var n int64
	q := l.DB.WithContext(ctx).Model(&Run{})
	if outcome != "" {
		q = q.Where("outcome = ?", string(outcome))
	}
	if err := q.Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count runs: %w", err)
	}
	return n, nil
}

// Close closes the underlying connection pool.
func (l *Ledger) Close() error {
	return l.SqlDB.Close()
}
