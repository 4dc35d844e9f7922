package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"obrolin/server/internal/apperr"
	"obrolin/server/internal/models"
)

// Postgres implements the stores over a pgx connection pool.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres wraps a connected pool.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// Stores returns the Postgres store wired as every store.
func (p *Postgres) Stores() Stores {
	return Stores{
		Users:    &pgUsers{p},
		Chats:    &pgChats{p},
		Messages: &pgMessages{p},
		Contacts: &pgContacts{p},
	}
}

type pgUsers struct{ *Postgres }
type pgChats struct{ *Postgres }
type pgMessages struct{ *Postgres }
type pgContacts struct{ *Postgres }

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func dbErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return apperr.Unavailable("Storage timeout", err)
	}
	return apperr.Internal("Database error", err)
}

const userColumns = `id, email, name, password_hash, avatar, bio, status_message, is_online, last_seen, created_at, updated_at`

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.Password, &u.Avatar, &u.Bio,
		&u.StatusMessage, &u.IsOnline, &u.LastSeen, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("User not found")
		}
		return nil, dbErr(err)
	}
	return &u, nil
}

func (p *pgUsers) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	_, err := p.pool.Exec(ctx, `
		INSERT INTO users (id, email, name, password_hash, avatar, bio, status_message, is_online, last_seen, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, user.ID, user.Email, user.Name, user.Password, user.Avatar, user.Bio,
		user.StatusMessage, user.IsOnline, user.LastSeen, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return apperr.Conflict("Email already registered")
		}
		return dbErr(err)
	}
	return nil
}

func (p *pgUsers) GetByID(ctx context.Context, id string) (*models.User, error) {
	return scanUser(p.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (p *pgUsers) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return scanUser(p.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
}

func (p *pgUsers) Update(ctx context.Context, user *models.User) error {
	tag, err := p.pool.Exec(ctx, `
		UPDATE users SET name = $1, avatar = $2, bio = $3, status_message = $4, updated_at = $5
		WHERE id = $6
	`, user.Name, user.Avatar, user.Bio, user.StatusMessage, user.UpdatedAt, user.ID)
	if err != nil {
		return dbErr(err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("User not found")
	}
	return nil
}

func (p *pgUsers) Search(ctx context.Context, query string, limit int) ([]models.User, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT `+userColumns+` FROM users
		WHERE name ILIKE '%' || $1 || '%' OR email ILIKE '%' || $1 || '%'
		ORDER BY name ASC
		LIMIT $2
	`, query, limit)
	if err != nil {
		return nil, dbErr(err)
	}
	defer rows.Close()

	out := make([]models.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *user)
	}
	if err := rows.Err(); err != nil {
		return nil, dbErr(err)
	}
	return out, nil
}

func (p *pgUsers) SetPresence(ctx context.Context, id string, online bool, at time.Time) error {
	tag, err := p.pool.Exec(ctx, `
		UPDATE users SET is_online = $1, last_seen = $2 WHERE id = $3
	`, online, at, id)
	if err != nil {
		return dbErr(err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("User not found")
	}
	return nil
}

const chatColumns = `id, participant_a, participant_b, last_message_id, created_at, updated_at`

func scanChat(row pgx.Row) (*models.Chat, error) {
	var c models.Chat
	err := row.Scan(&c.ID, &c.Participants[0], &c.Participants[1],
		&c.LastMessageID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("Chat not found")
		}
		return nil, dbErr(err)
	}
	return &c, nil
}

// CreateOrGet inserts behind the unique pair_key index; when a concurrent
// insert wins the race the conflict path falls through to a fetch, so both
// callers resolve to the same chat.
func (p *pgChats) CreateOrGet(ctx context.Context, chat *models.Chat) (*models.Chat, bool, error) {
	if chat.ID == "" {
		chat.ID = uuid.NewString()
	}
	a, b := models.NormalizePair(chat.Participants[0], chat.Participants[1])
	row := p.pool.QueryRow(ctx, `
		INSERT INTO chats (id, participant_a, participant_b, pair_key, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (pair_key) DO NOTHING
		RETURNING `+chatColumns+`
	`, chat.ID, a, b, models.PairKey(a, b), chat.CreatedAt, chat.UpdatedAt)

	created, err := scanChat(row)
	if err == nil {
		return created, true, nil
	}
	if !apperr.IsKind(err, apperr.KindNotFound) {
		return nil, false, err
	}

	existing, err := p.GetByPair(ctx, a, b)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (p *pgChats) GetByID(ctx context.Context, id string) (*models.Chat, error) {
	return scanChat(p.pool.QueryRow(ctx, `SELECT `+chatColumns+` FROM chats WHERE id = $1`, id))
}

func (p *pgChats) GetByPair(ctx context.Context, a, b string) (*models.Chat, error) {
	return scanChat(p.pool.QueryRow(ctx, `
		SELECT `+chatColumns+` FROM chats WHERE pair_key = $1
	`, models.PairKey(a, b)))
}

func (p *pgChats) ListForUser(ctx context.Context, userID string) ([]models.Chat, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT `+chatColumns+` FROM chats
		WHERE participant_a = $1 OR participant_b = $1
		ORDER BY updated_at DESC
	`, userID)
	if err != nil {
		return nil, dbErr(err)
	}
	defer rows.Close()

	out := make([]models.Chat, 0)
	for rows.Next() {
		chat, err := scanChat(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *chat)
	}
	if err := rows.Err(); err != nil {
		return nil, dbErr(err)
	}
	return out, nil
}

func (p *pgChats) SetLastMessage(ctx context.Context, chatID, messageID string, at time.Time) error {
	tag, err := p.pool.Exec(ctx, `
		UPDATE chats SET last_message_id = $1, updated_at = $2 WHERE id = $3
	`, messageID, at, chatID)
	if err != nil {
		return dbErr(err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("Chat not found")
	}
	return nil
}

const messageColumns = `id, chat_id, sender_id, content, attachments, status, created_at, updated_at`

func scanMessage(row pgx.Row) (*models.Message, error) {
	var m models.Message
	var attachments []byte
	err := row.Scan(&m.ID, &m.ChatID, &m.SenderID, &m.Content, &attachments,
		&m.Status, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("Message not found")
		}
		return nil, dbErr(err)
	}
	if len(attachments) > 0 {
		if err := json.Unmarshal(attachments, &m.Attachments); err != nil {
			return nil, apperr.Internal("Corrupt attachment payload", err)
		}
	}
	return &m, nil
}

func (p *pgMessages) Insert(ctx context.Context, msg *models.Message) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	attachments, err := json.Marshal(msg.Attachments)
	if err != nil {
		return apperr.Internal("Encode attachments", err)
	}
	_, err = p.pool.Exec(ctx, `
		INSERT INTO messages (id, chat_id, sender_id, content, attachments, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, msg.ID, msg.ChatID, msg.SenderID, msg.Content, attachments, msg.Status,
		msg.CreatedAt, msg.UpdatedAt)
	if err != nil {
		return dbErr(err)
	}
	return nil
}

func (p *pgMessages) GetByID(ctx context.Context, id string) (*models.Message, error) {
	return scanMessage(p.pool.QueryRow(ctx, `SELECT `+messageColumns+` FROM messages WHERE id = $1`, id))
}

func (p *pgMessages) ListByChat(ctx context.Context, chatID string) ([]models.Message, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT `+messageColumns+` FROM messages
		WHERE chat_id = $1
		ORDER BY created_at ASC
	`, chatID)
	if err != nil {
		return nil, dbErr(err)
	}
	defer rows.Close()

	out := make([]models.Message, 0)
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *msg)
	}
	if err := rows.Err(); err != nil {
		return nil, dbErr(err)
	}
	return out, nil
}

func (p *pgMessages) FindRecentDuplicate(ctx context.Context, chatID, senderID, content string, since time.Time) (*models.Message, error) {
	return scanMessage(p.pool.QueryRow(ctx, `
		SELECT `+messageColumns+` FROM messages
		WHERE chat_id = $1 AND sender_id = $2 AND content = $3 AND created_at >= $4
		ORDER BY created_at DESC
		LIMIT 1
	`, chatID, senderID, content, since))
}

func (p *pgMessages) UpdateStatus(ctx context.Context, id string, status models.Status, at time.Time) (*models.Message, error) {
	return scanMessage(p.pool.QueryRow(ctx, `
		UPDATE messages SET status = $1, updated_at = $2
		WHERE id = $3
		RETURNING `+messageColumns+`
	`, status, at, id))
}

func (p *pgContacts) Add(ctx context.Context, contact *models.Contact) error {
	if contact.ID == "" {
		contact.ID = uuid.NewString()
	}
	_, err := p.pool.Exec(ctx, `
		INSERT INTO contacts (id, user_id, contact_id, added_at)
		VALUES ($1, $2, $3, $4)
	`, contact.ID, contact.UserID, contact.ContactID, contact.AddedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return apperr.Conflict("Contact already added")
		}
		return dbErr(err)
	}
	return nil
}

func (p *pgContacts) Remove(ctx context.Context, userID, contactID string) error {
	tag, err := p.pool.Exec(ctx, `
		DELETE FROM contacts WHERE user_id = $1 AND contact_id = $2
	`, userID, contactID)
	if err != nil {
		return dbErr(err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("Contact not found")
	}
	return nil
}

func (p *pgContacts) List(ctx context.Context, userID string) ([]models.Contact, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, user_id, contact_id, added_at FROM contacts
		WHERE user_id = $1
		ORDER BY added_at ASC
	`, userID)
	if err != nil {
		return nil, dbErr(err)
	}
	defer rows.Close()

	out := make([]models.Contact, 0)
	for rows.Next() {
		var c models.Contact
		if err := rows.Scan(&c.ID, &c.UserID, &c.ContactID, &c.AddedAt); err != nil {
			return nil, dbErr(err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, dbErr(err)
	}
	return out, nil
}

func (p *pgContacts) HasContact(ctx context.Context, userID, contactID string) (bool, error) {
	var exists bool
	err := p.pool.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM contacts WHERE user_id = $1 AND contact_id = $2)
	`, userID, contactID).Scan(&exists)
	if err != nil {
		return false, dbErr(err)
	}
	return exists, nil
}

func (p *pgContacts) AreConnected(ctx context.Context, a, b string) (bool, error) {
	var exists bool
	err := p.pool.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM contacts
			WHERE (user_id = $1 AND contact_id = $2) OR (user_id = $2 AND contact_id = $1)
		)
	`, a, b).Scan(&exists)
	if err != nil {
		return false, dbErr(err)
	}
	return exists, nil
}

func (p *pgContacts) Block(ctx context.Context, userID, blockedID string, at time.Time) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO blocks (user_id, blocked_id, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, blocked_id) DO NOTHING
	`, userID, blockedID, at)
	if err != nil {
		return dbErr(err)
	}
	return nil
}

func (p *pgContacts) Unblock(ctx context.Context, userID, blockedID string) error {
	_, err := p.pool.Exec(ctx, `
		DELETE FROM blocks WHERE user_id = $1 AND blocked_id = $2
	`, userID, blockedID)
	if err != nil {
		return dbErr(err)
	}
	return nil
}

func (p *pgContacts) IsBlocked(ctx context.Context, a, b string) (bool, error) {
	var exists bool
	err := p.pool.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM blocks
			WHERE (user_id = $1 AND blocked_id = $2) OR (user_id = $2 AND blocked_id = $1)
		)
	`, a, b).Scan(&exists)
	if err != nil {
		return false, dbErr(err)
	}
	return exists, nil
}
