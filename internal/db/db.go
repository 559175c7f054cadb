// ABOUTME: SQLite journal of every payload a pipeline receives and emits
// ABOUTME: Classifies each payload with the codec and tracks the pipelines that wrote it

package db

import (
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	"github.com/harper/rpc-engine/internal/jsonrpc"
	"github.com/harper/rpc-engine/internal/logger"
	"github.com/harper/rpc-engine/internal/pipeline"
	"github.com/harper/rpc-engine/internal/xdg"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

var log = logger.Named("db")

// DB is a pipeline.Journal backed by SQLite.
type DB struct {
	conn *sql.DB
}

var _ pipeline.Journal = (*DB)(nil)

// Message types recorded with each payload.
const (
	TypeRequest      = "request"
	TypeNotification = "notification"
	TypeResponse     = "response"
	TypeBatch        = "batch"
	TypeInvalid      = "invalid"
)

// Open opens or creates the SQLite database, creating its directory first.
func Open(dbPath string) (*DB, error) {
	if dbPath != ":memory:" {
		if err := xdg.EnsureDir(dbPath); err != nil {
			return nil, err
		}
	}

	conn, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// pipelines write from their own workers; one connection serializes them
	conn.SetMaxOpenConns(1)

	// Enable WAL mode for better concurrency
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if _, err := conn.Exec(schemaSQL); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	log.Info("journal initialized at %s", dbPath)
	return &DB{conn: conn}, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}

// RegisterPipeline records a pipeline's role and name. Registering the
// same id again keeps the first entry.
func (db *DB) RegisterPipeline(id, role, name string) error {
	_, err := db.conn.Exec(
		"INSERT OR IGNORE INTO pipelines (id, role, name) VALUES (?, ?, ?)",
		id, role, name,
	)
	if err != nil {
		return fmt.Errorf("failed to register pipeline: %w", err)
	}
	return nil
}

// classify extracts the message type, method and id of a payload.
func classify(payload string) (messageType, method string, id *string) {
	if parts, err := jsonrpc.SplitBatch(payload); err == nil && len(parts) > 0 {
		return TypeBatch, "", nil
	}
	if req, err := jsonrpc.ParseRequest(payload); err == nil {
		if req.IsNotification() {
			return TypeNotification, req.Method(), nil
		}
		s := req.ID().String()
		return TypeRequest, req.Method(), &s
	}
	if resp, err := jsonrpc.ParseResponse(payload); err == nil {
		s := resp.ID().String()
		return TypeResponse, "", &s
	}
	return TypeInvalid, "", nil
}

// Record implements pipeline.Journal.
func (db *DB) Record(pipelineID string, direction pipeline.Direction, payload string) error {
	messageType, method, id := classify(payload)

	var methodCol sql.NullString
	if method != "" {
		methodCol = sql.NullString{String: method, Valid: true}
	}

	_, err := db.conn.Exec(
		`INSERT INTO messages (pipeline_id, direction, message_type, method, jsonrpc_id, raw_message)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		pipelineID, string(direction), messageType, methodCol, id, payload,
	)
	if err != nil {
		return fmt.Errorf("failed to log message: %w", err)
	}
	return nil
}

// Message represents a journaled payload
type Message struct {
	ID          int64
	PipelineID  string
	Direction   pipeline.Direction
	MessageType string
	Method      string
	JSONRPCID   *string
	RawMessage  string
	Timestamp   time.Time
}

// Messages returns the payloads of a pipeline in the order they were recorded.
func (db *DB) Messages(pipelineID string) ([]Message, error) {
	rows, err := db.conn.Query(
		`SELECT id, pipeline_id, direction, message_type, method, jsonrpc_id, raw_message, timestamp
		 FROM messages WHERE pipeline_id = ? ORDER BY id ASC`,
		pipelineID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var messages []Message
	for rows.Next() {
		var m Message
		var direction string
		var messageType, method, jsonrpcID sql.NullString

		err := rows.Scan(&m.ID, &m.PipelineID, &direction, &messageType, &method, &jsonrpcID, &m.RawMessage, &m.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}

		m.Direction = pipeline.Direction(direction)
		if messageType.Valid {
			m.MessageType = messageType.String
		}
		if method.Valid {
			m.Method = method.String
		}
		if jsonrpcID.Valid {
			m.JSONRPCID = &jsonrpcID.String
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// Pipeline represents a registered pipeline
type Pipeline struct {
	ID        string
	Role      string
	Name      string
	CreatedAt time.Time
}

// Pipelines returns every registered pipeline, newest first.
func (db *DB) Pipelines() ([]Pipeline, error) {
	rows, err := db.conn.Query(
		`SELECT id, role, name, created_at FROM pipelines ORDER BY created_at DESC, rowid DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query pipelines: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var pipelines []Pipeline
	for rows.Next() {
		var p Pipeline
		if err := rows.Scan(&p.ID, &p.Role, &p.Name, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan pipeline: %w", err)
		}
		pipelines = append(pipelines, p)
	}
	return pipelines, rows.Err()
}
