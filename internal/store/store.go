// Package store is the durable history sink. Rooms emit snapshot records on
// creation, game start, and game end; nothing is ever read back at runtime.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/codenames-party/codenames-backend/internal/game"
)

type Recorder interface {
	RoomCreated(ctx context.Context, roomID, name string) error
	GameStarted(ctx context.Context, roomID string, state game.State) error
	GameFinished(ctx context.Context, roomID string, state game.State) error
}

type RoomRecord struct {
	ID        uint   `gorm:"primaryKey"`
	RoomID    string `gorm:"index"`
	Name      string
	CreatedAt time.Time
}

type GameRecord struct {
	ID           uint   `gorm:"primaryKey"`
	RoomID       string `gorm:"index"`
	Event        string // "started" | "finished"
	StartingTeam string
	Winner       string
	Snapshot     string `gorm:"type:jsonb"`
	CreatedAt    time.Time
}

type Postgres struct {
	db  *gorm.DB
	log *zap.Logger
}

// Open connects to postgres and migrates the record tables.
func Open(dsn string, log *zap.Logger) (*Postgres, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.AutoMigrate(&RoomRecord{}, &GameRecord{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Postgres{db: db, log: log}, nil
}

func (p *Postgres) RoomCreated(ctx context.Context, roomID, name string) error {
	rec := RoomRecord{RoomID: roomID, Name: name}
	return p.db.WithContext(ctx).Create(&rec).Error
}

func (p *Postgres) GameStarted(ctx context.Context, roomID string, state game.State) error {
	return p.record(ctx, roomID, "started", state)
}

func (p *Postgres) GameFinished(ctx context.Context, roomID string, state game.State) error {
	return p.record(ctx, roomID, "finished", state)
}

func (p *Postgres) record(ctx context.Context, roomID, event string, state game.State) error {
	snap, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	rec := GameRecord{
		RoomID:       roomID,
		Event:        event,
		StartingTeam: string(state.ActiveTeam),
		Winner:       string(state.Winner),
		Snapshot:     string(snap),
	}
	return p.db.WithContext(ctx).Create(&rec).Error
}

// Nop discards every record, for running without a database.
type Nop struct{}

func (Nop) RoomCreated(context.Context, string, string) error      { return nil }
func (Nop) GameStarted(context.Context, string, game.State) error  { return nil }
func (Nop) GameFinished(context.Context, string, game.State) error { return nil }
