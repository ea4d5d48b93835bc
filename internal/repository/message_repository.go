package repository

import (
	"context"
	"database/sql"

	"anonbot/internal/entities"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type MessageRepository struct {
	db *pgxpool.Pool
}

func NewMessageRepository(db *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{db: db}
}

const messageColumns = `id, type, content_kind, body, file_id, is_anonymous,
	sender_id, COALESCE(receiver_id, 0), COALESCE(parent_id, 0),
	status, reject_reason, published_msg_id, created_at`

func scanMessage(row pgx.Row) (*entities.Message, error) {
	var m entities.Message
	err := row.Scan(&m.ID, &m.Type, &m.ContentKind, &m.Body, &m.FileID, &m.IsAnonymous,
		&m.SenderID, &m.ReceiverID, &m.ParentID,
		&m.Status, &m.RejectReason, &m.PublishedMsgID, &m.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil // Not found
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *MessageRepository) Create(ctx context.Context, msg *entities.Message) (int64, error) {
	// 0 means "no reference"; stored as NULL to keep the FK honest.
	var receiver, parent sql.NullInt64
	if msg.ReceiverID != 0 {
		receiver = sql.NullInt64{Int64: msg.ReceiverID, Valid: true}
	}
	if msg.ParentID != 0 {
		parent = sql.NullInt64{Int64: msg.ParentID, Valid: true}
	}
	status := msg.Status
	if status == "" {
		status = entities.StatusDelivered
	}

	var id int64
	err := r.db.QueryRow(ctx,
		`INSERT INTO messages (type, content_kind, body, file_id, is_anonymous, sender_id, receiver_id, parent_id, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id`,
		msg.Type, msg.ContentKind, msg.Body, msg.FileID, msg.IsAnonymous,
		msg.SenderID, receiver, parent, status).Scan(&id)
	if err != nil {
		return 0, err
	}
	msg.ID = id
	msg.Status = status
	return id, nil
}

func (r *MessageRepository) Get(ctx context.Context, id int64) (*entities.Message, error) {
	return scanMessage(r.db.QueryRow(ctx,
		"SELECT "+messageColumns+" FROM messages WHERE id = $1", id))
}

func (r *MessageRepository) UpdateStatus(ctx context.Context, id int64, status entities.MessageStatus, reason string) error {
	_, err := r.db.Exec(ctx,
		"UPDATE messages SET status = $2, reject_reason = $3 WHERE id = $1",
		id, status, reason)
	return err
}

func (r *MessageRepository) SetPublishedMsgID(ctx context.Context, id int64, publishedMsgID int64) error {
	_, err := r.db.Exec(ctx,
		"UPDATE messages SET published_msg_id = $2 WHERE id = $1",
		id, publishedMsgID)
	return err
}

func (r *MessageRepository) listRows(ctx context.Context, query string, args ...any) ([]entities.Message, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []entities.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

func (r *MessageRepository) ListPending(ctx context.Context) ([]entities.Message, error) {
	return r.listRows(ctx,
		"SELECT "+messageColumns+" FROM messages WHERE type = $1 AND status = $2 ORDER BY created_at ASC",
		entities.MessageGroup, entities.StatusPending)
}

func (r *MessageRepository) ListChildren(ctx context.Context, parentID int64) ([]entities.Message, error) {
	return r.listRows(ctx,
		"SELECT "+messageColumns+" FROM messages WHERE parent_id = $1 ORDER BY created_at ASC",
		parentID)
}

// ListUnpublished returns approved group messages that never reached the
// group (publish failed); operators re-trigger these.
func (r *MessageRepository) ListUnpublished(ctx context.Context) ([]entities.Message, error) {
	return r.listRows(ctx,
		"SELECT "+messageColumns+" FROM messages WHERE type = $1 AND status = $2 AND published_msg_id = 0 ORDER BY created_at ASC",
		entities.MessageGroup, entities.StatusApproved)
}
