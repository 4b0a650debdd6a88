package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"sudooom.im.chat/internal/model"
)

var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrMessageNotFound      = errors.New("message not found")
	ErrNotMember            = errors.New("user is not a member of the conversation")
)

// Postgres 错误码
const (
	pgForeignKeyViolation = "23503"
	pgInvalidText         = "22P02"
)

// querier pgxpool.Pool 与 pgx.Tx 的公共部分
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ConversationRepository 会话数据访问
type ConversationRepository struct {
	db *pgxpool.Pool
}

// NewConversationRepository 创建会话仓库
func NewConversationRepository(db *pgxpool.Pool) *ConversationRepository {
	return &ConversationRepository{db: db}
}

// LoadConversationWithMessages 加载会话、成员、消息和已读集合
// 在可重复读的只读事务中执行，保证几次查询来自同一快照
func (r *ConversationRepository) LoadConversationWithMessages(ctx context.Context, conversationID string) (*model.Conversation, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.RepeatableRead,
		AccessMode: pgx.ReadOnly,
	})
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	conv, err := r.getConversation(ctx, tx, conversationID)
	if err != nil {
		return nil, err
	}

	if conv.Users, err = r.getMembers(ctx, tx, conversationID); err != nil {
		return nil, err
	}
	conv.UserIDs = make([]string, 0, len(conv.Users))
	for _, u := range conv.Users {
		conv.UserIDs = append(conv.UserIDs, u.ID)
	}

	if conv.Messages, err = r.getMessages(ctx, tx, conversationID); err != nil {
		return nil, err
	}

	seen, err := r.getConversationSeen(ctx, tx, conversationID)
	if err != nil {
		return nil, err
	}
	for i := range conv.Messages {
		m := &conv.Messages[i]
		for _, u := range seen[m.ID] {
			m.SeenIDs = append(m.SeenIDs, u.ID)
			m.Seen = append(m.Seen, u)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return conv, nil
}

// AppendSeenBy 将用户加入消息已读集合
// 仅当用户是消息所在会话的成员时写入，重复写入由主键冲突吸收，added 表示本次是否新增
func (r *ConversationRepository) AppendSeenBy(ctx context.Context, messageID, userID string) (*model.Message, bool, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO message_seen (message_id, user_id, seen_at)
		SELECT $1, $2, NOW()
		WHERE EXISTS (
		    SELECT 1 FROM messages m
		    JOIN conversation_members cm ON cm.conversation_id = m.conversation_id
		    WHERE m.id = $1 AND cm.user_id = $2
		)
		ON CONFLICT (message_id, user_id) DO NOTHING
	`
	tag, err := tx.Exec(ctx, query, messageID, userID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && (pgErr.Code == pgForeignKeyViolation || pgErr.Code == pgInvalidText) {
			return nil, false, ErrMessageNotFound
		}
		return nil, false, err
	}
	added := tag.RowsAffected() == 1

	msg, err := r.getMessage(ctx, tx, messageID)
	if err != nil {
		return nil, false, err
	}
	// 未写入且不在已读集合中，说明成员条件不成立
	if !added && !msg.SeenBy(userID) {
		return nil, false, ErrNotMember
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, fmt.Errorf("commit: %w", err)
	}
	return msg, added, nil
}

// DeleteIfMember 条件删除：只有 userID 是成员时才删除
// 成员判断与删除在同一条语句中完成，消息和已读记录级联删除
func (r *ConversationRepository) DeleteIfMember(ctx context.Context, conversationID, userID string) (int64, error) {
	query := `
		DELETE FROM conversations c
		WHERE c.id = $1
		  AND EXISTS (
		      SELECT 1 FROM conversation_members m
		      WHERE m.conversation_id = c.id AND m.user_id = $2
		  )
	`
	tag, err := r.db.Exec(ctx, query, conversationID, userID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgInvalidText {
			return 0, nil
		}
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *ConversationRepository) getConversation(ctx context.Context, q querier, id string) (*model.Conversation, error) {
	query := `
		SELECT id::text, COALESCE(name, ''), is_group, created_at, last_message_at
		FROM conversations WHERE id = $1
	`
	conv := &model.Conversation{}
	err := q.QueryRow(ctx, query, id).Scan(
		&conv.ID,
		&conv.Name,
		&conv.IsGroup,
		&conv.CreatedAt,
		&conv.LastMessageAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.Is(err, pgx.ErrNoRows) || (errors.As(err, &pgErr) && pgErr.Code == pgInvalidText) {
			return nil, ErrConversationNotFound
		}
		return nil, err
	}
	return conv, nil
}

func (r *ConversationRepository) getMembers(ctx context.Context, q querier, conversationID string) ([]model.User, error) {
	query := `
		SELECT u.id::text, u.name, u.email, COALESCE(u.image, '')
		FROM conversation_members m
		JOIN users u ON u.id = m.user_id
		WHERE m.conversation_id = $1
		ORDER BY m.joined_at, u.id
	`
	rows, err := q.Query(ctx, query, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []model.User{}
	for rows.Next() {
		var u model.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.Image); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

const messageColumns = `
	m.id::text, m.conversation_id::text, m.sender_id::text,
	COALESCE(u.name, ''), COALESCE(u.email, ''), COALESCE(u.image, ''),
	COALESCE(m.body, ''), COALESCE(m.image, ''), m.created_at
`

func scanMessage(row pgx.Row) (model.Message, error) {
	var m model.Message
	sender := &model.User{}
	err := row.Scan(
		&m.ID,
		&m.ConversationID,
		&m.SenderID,
		&sender.Name,
		&sender.Email,
		&sender.Image,
		&m.Body,
		&m.Image,
		&m.CreatedAt,
	)
	if err != nil {
		return m, err
	}
	sender.ID = m.SenderID
	m.Sender = sender
	m.SeenIDs = []string{}
	m.Seen = []model.User{}
	return m, nil
}

func (r *ConversationRepository) getMessages(ctx context.Context, q querier, conversationID string) ([]model.Message, error) {
	query := `SELECT ` + messageColumns + `
		FROM messages m
		LEFT JOIN users u ON u.id = m.sender_id
		WHERE m.conversation_id = $1
		ORDER BY m.created_at, m.id
	`
	rows, err := q.Query(ctx, query, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := []model.Message{}
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

func (r *ConversationRepository) getMessage(ctx context.Context, q querier, messageID string) (*model.Message, error) {
	query := `SELECT ` + messageColumns + `
		FROM messages m
		LEFT JOIN users u ON u.id = m.sender_id
		WHERE m.id = $1
	`
	m, err := scanMessage(q.QueryRow(ctx, query, messageID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMessageNotFound
		}
		return nil, err
	}

	seenQuery := `
		SELECT u.id::text, u.name, u.email, COALESCE(u.image, '')
		FROM message_seen s
		JOIN users u ON u.id = s.user_id
		WHERE s.message_id = $1
		ORDER BY s.seen_at, u.id
	`
	rows, err := q.Query(ctx, seenQuery, messageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var u model.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.Image); err != nil {
			return nil, err
		}
		m.SeenIDs = append(m.SeenIDs, u.ID)
		m.Seen = append(m.Seen, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &m, nil
}

// getConversationSeen 会话内全部已读记录，按消息 ID 分组
func (r *ConversationRepository) getConversationSeen(ctx context.Context, q querier, conversationID string) (map[string][]model.User, error) {
	query := `
		SELECT s.message_id::text, u.id::text, u.name, u.email, COALESCE(u.image, '')
		FROM message_seen s
		JOIN messages m ON m.id = s.message_id
		JOIN users u ON u.id = s.user_id
		WHERE m.conversation_id = $1
		ORDER BY s.seen_at, u.id
	`
	rows, err := q.Query(ctx, query, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	seen := make(map[string][]model.User)
	for rows.Next() {
		var messageID string
		var u model.User
		if err := rows.Scan(&messageID, &u.ID, &u.Name, &u.Email, &u.Image); err != nil {
			return nil, err
		}
		seen[messageID] = append(seen[messageID], u)
	}
	return seen, rows.Err()
}
