package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"

	"github.com/0xcro3dile/coopchat-go/internal/domain/entities"
	"github.com/0xcro3dile/coopchat-go/internal/domain/ports"
)

// Conversations implements ports.ConversationRepository.
type Conversations struct {
	db *sqlx.DB
}

type conversationRow struct {
	SessionID       string       `db:"session_id"`
	Domain          string       `db:"domain"`
	Stage           string       `db:"stage"`
	Facts           string       `db:"facts"`
	RecordID        string       `db:"record_id"`
	LinkedRecordIDs string       `db:"linked_record_ids"`
	Awaiting        string       `db:"awaiting"`
	Metadata        string       `db:"metadata"`
	StartedAt       time.Time    `db:"started_at"`
	UpdatedAt       time.Time    `db:"updated_at"`
	EndedAt         sql.NullTime `db:"ended_at"`
}

func toConversationRow(c *entities.Conversation) (conversationRow, error) {
	facts, err := encodeJSON(c.Facts)
	if err != nil {
		return conversationRow{}, fmt.Errorf("encoding facts: %w", err)
	}
	linked := c.LinkedRecordIDs
	if linked == nil {
		linked = []string{}
	}
	linkedJSON, err := encodeJSON(linked)
	if err != nil {
		return conversationRow{}, fmt.Errorf("encoding linked records: %w", err)
	}
	meta, err := encodeJSON(c.Metadata)
	if err != nil {
		return conversationRow{}, fmt.Errorf("encoding metadata: %w", err)
	}
	return conversationRow{
		SessionID:       c.SessionID,
		Domain:          string(c.Domain),
		Stage:           string(c.Stage),
		Facts:           facts,
		RecordID:        c.RecordID,
		LinkedRecordIDs: linkedJSON,
		Awaiting:        c.Awaiting,
		Metadata:        meta,
		StartedAt:       c.StartedAt.UTC(),
		UpdatedAt:       c.UpdatedAt.UTC(),
		EndedAt:         nullTime(c.EndedAt),
	}, nil
}

func (r conversationRow) toEntity() (*entities.Conversation, error) {
	c := &entities.Conversation{
		SessionID: r.SessionID,
		Domain:    entities.Domain(r.Domain),
		Stage:     entities.Stage(r.Stage),
		RecordID:  r.RecordID,
		Awaiting:  r.Awaiting,
		StartedAt: r.StartedAt,
		UpdatedAt: r.UpdatedAt,
		EndedAt:   timePtr(r.EndedAt),
		Facts:     entities.Facts{},
		Metadata:  map[string]any{},
	}
	if err := json.Unmarshal([]byte(r.Facts), &c.Facts); err != nil {
		return nil, fmt.Errorf("decoding facts: %w", err)
	}
	if err := json.Unmarshal([]byte(r.LinkedRecordIDs), &c.LinkedRecordIDs); err != nil {
		return nil, fmt.Errorf("decoding linked records: %w", err)
	}
	if err := json.Unmarshal([]byte(r.Metadata), &c.Metadata); err != nil {
		return nil, fmt.Errorf("decoding metadata: %w", err)
	}
	if c.Facts == nil {
		c.Facts = entities.Facts{}
	}
	if c.Metadata == nil {
		c.Metadata = map[string]any{}
	}
	if len(c.LinkedRecordIDs) == 0 {
		c.LinkedRecordIDs = nil
	}
	return c, nil
}

const conversationColumns = `session_id, domain, stage, facts, record_id, linked_record_ids,
	awaiting, metadata, started_at, updated_at, ended_at`

func (r *Conversations) Create(ctx context.Context, conv *entities.Conversation) error {
	row, err := toConversationRow(conv)
	if err != nil {
		return err
	}
	_, err = r.db.NamedExecContext(ctx, `INSERT INTO conversations (`+conversationColumns+`)
		VALUES (:session_id, :domain, :stage, :facts, :record_id, :linked_record_ids,
			:awaiting, :metadata, :started_at, :updated_at, :ended_at)`, row)
	if isConstraint(err, sqlite3.ErrConstraintPrimaryKey) {
		return ports.ErrSessionExists
	}
	if err != nil {
		return fmt.Errorf("inserting conversation: %w", err)
	}
	return nil
}

func (r *Conversations) Get(ctx context.Context, sessionID string) (*entities.Conversation, error) {
	var row conversationRow
	err := r.db.GetContext(ctx, &row, `SELECT `+conversationColumns+` FROM conversations WHERE session_id = ?`, sessionID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ports.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading conversation: %w", err)
	}
	return row.toEntity()
}

func (r *Conversations) Save(ctx context.Context, conv *entities.Conversation) error {
	row, err := toConversationRow(conv)
	if err != nil {
		return err
	}
	res, err := r.db.NamedExecContext(ctx, `UPDATE conversations SET
		domain = :domain, stage = :stage, facts = :facts, record_id = :record_id,
		linked_record_ids = :linked_record_ids, awaiting = :awaiting, metadata = :metadata,
		started_at = :started_at, updated_at = :updated_at, ended_at = :ended_at
		WHERE session_id = :session_id`, row)
	if err != nil {
		return fmt.Errorf("saving conversation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ports.ErrSessionNotFound
	}
	return nil
}

type turnRow struct {
	ID        int64     `db:"id"`
	SessionID string    `db:"session_id"`
	Role      string    `db:"role"`
	Content   string    `db:"content"`
	Metadata  string    `db:"metadata"`
	CreatedAt time.Time `db:"created_at"`
}

func (r *Conversations) AppendTurn(ctx context.Context, turn *entities.Turn) error {
	meta, err := encodeJSON(turn.Metadata)
	if err != nil {
		return fmt.Errorf("encoding metadata: %w", err)
	}
	res, err := r.db.ExecContext(ctx, `INSERT INTO turns (session_id, role, content, metadata, created_at)
		VALUES (?, ?, ?, ?, ?)`, turn.SessionID, string(turn.Role), turn.Content, meta, turn.CreatedAt.UTC())
	if isConstraint(err, sqlite3.ErrConstraintForeignKey) {
		return ports.ErrSessionNotFound
	}
	if err != nil {
		return fmt.Errorf("inserting turn: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading turn id: %w", err)
	}
	turn.ID = id
	return nil
}

func (r *Conversations) RecentTurns(ctx context.Context, sessionID string, n int) ([]entities.Turn, error) {
	var rows []turnRow
	var err error
	if n > 0 {
		err = r.db.SelectContext(ctx, &rows, `SELECT * FROM (
			SELECT id, session_id, role, content, metadata, created_at FROM turns
			WHERE session_id = ? ORDER BY id DESC LIMIT ?
		) ORDER BY id ASC`, sessionID, n)
	} else {
		err = r.db.SelectContext(ctx, &rows, `SELECT id, session_id, role, content, metadata, created_at
			FROM turns WHERE session_id = ? ORDER BY id ASC`, sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("loading turns: %w", err)
	}

	turns := make([]entities.Turn, 0, len(rows))
	for _, row := range rows {
		t := entities.Turn{
			ID:        row.ID,
			SessionID: row.SessionID,
			Role:      entities.Role(row.Role),
			Content:   row.Content,
			CreatedAt: row.CreatedAt,
		}
		if err := json.Unmarshal([]byte(row.Metadata), &t.Metadata); err != nil {
			return nil, fmt.Errorf("decoding turn metadata: %w", err)
		}
		turns = append(turns, t)
	}
	return turns, nil
}

// ListIdle filters on the decoded timestamp so mixed offsets compare correctly.
func (r *Conversations) ListIdle(ctx context.Context, before time.Time) ([]entities.Conversation, error) {
	var rows []conversationRow
	err := r.db.SelectContext(ctx, &rows, `SELECT `+conversationColumns+` FROM conversations
		WHERE stage NOT IN (?, ?) ORDER BY updated_at`,
		string(entities.StageClosed), string(entities.StageAbandoned))
	if err != nil {
		return nil, fmt.Errorf("listing conversations: %w", err)
	}

	var out []entities.Conversation
	for _, row := range rows {
		if !row.UpdatedAt.Before(before) {
			continue
		}
		c, err := row.toEntity()
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, nil
}
