// Package store wraps the marketplace record store (Postgres). Text
// columns arrive as raw bytes and are decoded with explicit UTF-8
// validation, so a corrupt row surfaces as an error instead of mangled
// output downstream.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"unicode/utf8"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"detector/internal/pkg/corpus"
	"detector/internal/pkg/models"
)

var (
	ErrNotFound      = errors.New("record not found")
	ErrDataIntegrity = errors.New("text column is not valid UTF-8")
)

// Messages this recent feed the dataset updates.
const recentWindow = "30 days"

type Store struct {
	db *sqlx.DB
}

func Open(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to record store: %w", err)
	}
	return db, nil
}

func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

func decodeText(raw []byte) (string, error) {
	if !utf8.Valid(raw) {
		return "", ErrDataIntegrity
	}
	return string(raw), nil
}

// BoardThread returns every non-empty message on the board the trigger
// message belongs to, joined with the board owner and each author.
// Attachment placeholder rows are excluded.
func (s *Store) BoardThread(ctx context.Context, messageID int64) ([]models.ThreadMessage, error) {
	type row struct {
		ID          int64  `db:"id"`
		BoardID     int64  `db:"board_id"`
		OwnerID     int64  `db:"owner_id"`
		AuthorID    int64  `db:"user_id"`
		Nickname    []byte `db:"nickname"`
		Description []byte `db:"description"`
	}

	const q = `
		SELECT
			m.id,
			m.board_id,
			b.owner_id,
			m.user_id,
			u.nickname,
			m.description
		FROM messages AS trigger_msg
		INNER JOIN messages AS m ON m.board_id = trigger_msg.board_id
		INNER JOIN boards AS b ON b.id = m.board_id
		INNER JOIN users AS u ON u.id = m.user_id
		WHERE
			m.description != 'send file' AND
			m.description != '' AND
			m.description IS NOT NULL AND
			trigger_msg.id = $1
		ORDER BY m.id ASC`

	var rows []row
	if err := s.db.SelectContext(ctx, &rows, q, messageID); err != nil {
		return nil, fmt.Errorf("load board thread for message %d: %w", messageID, err)
	}

	out := make([]models.ThreadMessage, 0, len(rows))
	for _, r := range rows {
		nickname, err := decodeText(r.Nickname)
		if err != nil {
			return nil, fmt.Errorf("message %d nickname: %w", r.ID, err)
		}
		description, err := decodeText(r.Description)
		if err != nil {
			return nil, fmt.Errorf("message %d description: %w", r.ID, err)
		}
		out = append(out, models.ThreadMessage{
			ID:          r.ID,
			BoardID:     r.BoardID,
			OwnerID:     r.OwnerID,
			AuthorID:    r.AuthorID,
			Nickname:    nickname,
			Description: description,
		})
	}
	return out, nil
}

// WorkWithUser returns one project posting joined with its author.
func (s *Store) WorkWithUser(ctx context.Context, workID int64) (*models.WorkItem, error) {
	type row struct {
		models.WorkItem
		RawTitle       []byte `db:"title"`
		RawDescription []byte `db:"description"`
		RawNickname    []byte `db:"nickname"`
		RawStatus      []byte `db:"user_status"`
	}

	const q = `
		SELECT
			w.id,
			w.created,
			w.title,
			w.description,
			u.id AS user_id,
			u.nickname,
			u.status AS user_status
		FROM works AS w
		INNER JOIN users AS u ON w.user_id = u.id
		WHERE w.id = $1`

	var r row
	if err := s.db.GetContext(ctx, &r, q, workID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load work %d: %w", workID, err)
	}

	title, err := decodeText(r.RawTitle)
	if err != nil {
		return nil, fmt.Errorf("work %d title: %w", workID, err)
	}
	description, err := decodeText(r.RawDescription)
	if err != nil {
		return nil, fmt.Errorf("work %d description: %w", workID, err)
	}
	nickname, err := decodeText(r.RawNickname)
	if err != nil {
		return nil, fmt.Errorf("work %d nickname: %w", workID, err)
	}
	status, err := decodeText(r.RawStatus)
	if err != nil {
		return nil, fmt.Errorf("work %d status: %w", workID, err)
	}

	item := r.WorkItem
	item.Title = title
	item.Description = description
	item.Nickname = nickname
	item.UserStatus = status
	return &item, nil
}

// WorksByUser returns every prior submission by the user, for the
// honorific-plus-history rule.
func (s *Store) WorksByUser(ctx context.Context, userID int64) ([]models.WorkHistory, error) {
	const q = `
		SELECT w.id, w.violation_status
		FROM works AS w
		WHERE w.user_id = $1`

	var works []models.WorkHistory
	if err := s.db.SelectContext(ctx, &works, q, userID); err != nil {
		return nil, fmt.Errorf("load work history for user %d: %w", userID, err)
	}
	return works, nil
}

// CreateVerdict persists one detection verdict and returns its id.
func (s *Store) CreateVerdict(ctx context.Context, v *models.Verdict) (int64, error) {
	const q = `
		INSERT INTO message_spams
			(created, modified, board_id, message_id, score, predict, biz_filter)
		VALUES
			(NOW(), NOW(), $1, $2, $3, $4, $5)
		RETURNING id`

	var id int64
	if err := s.db.GetContext(ctx, &id, q, v.BoardID, v.MessageID, v.Score, v.Predict, v.BizFilter); err != nil {
		return 0, fmt.Errorf("create verdict for message %d: %w", v.MessageID, err)
	}
	return id, nil
}

func (s *Store) VerdictExists(ctx context.Context, id int64) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM message_spams WHERE id = $1)`

	var exists bool
	if err := s.db.GetContext(ctx, &exists, q, id); err != nil {
		return false, fmt.Errorf("probe verdict %d: %w", id, err)
	}
	return exists, nil
}

// UpdateAdminFeedback records the operator's review of one verdict.
func (s *Store) UpdateAdminFeedback(ctx context.Context, id int64, feedback int) error {
	const q = `
		UPDATE message_spams SET
			feedback_from_admin = $1,
			modified = NOW()
		WHERE id = $2`

	if _, err := s.db.ExecContext(ctx, q, feedback, id); err != nil {
		return fmt.Errorf("update feedback on verdict %d: %w", id, err)
	}
	return nil
}

var whitespaceRe = regexp.MustCompile(`\s`)

// VerdictDetail returns the denormalized verdict row used by the review
// path. Whitespace is stripped from the description the way the admin
// surface expects it.
func (s *Store) VerdictDetail(ctx context.Context, id int64) (*models.VerdictDetail, error) {
	type row struct {
		models.VerdictDetail
		RawDescription []byte `db:"description"`
		RawNickname    []byte `db:"send_user_nickname"`
		RawStatus      []byte `db:"send_user_status"`
	}

	const q = `
		SELECT
			ms.id,
			ms.created,
			ms.board_id,
			b.title AS board_title,
			ms.message_id,
			ms.predict,
			ms.biz_filter,
			ms.feedback_from_admin,
			ms.feedback_from_user,
			m.description,
			m.user_id AS send_user_id,
			u.nickname AS send_user_nickname,
			u.status AS send_user_status
		FROM message_spams AS ms
		INNER JOIN messages AS m ON m.id = ms.message_id
		INNER JOIN users AS u ON u.id = m.user_id
		INNER JOIN boards AS b ON b.id = ms.board_id
		WHERE ms.id = $1`

	var r row
	if err := s.db.GetContext(ctx, &r, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load verdict detail %d: %w", id, err)
	}

	description, err := decodeText(r.RawDescription)
	if err != nil {
		return nil, fmt.Errorf("verdict %d description: %w", id, err)
	}
	nickname, err := decodeText(r.RawNickname)
	if err != nil {
		return nil, fmt.Errorf("verdict %d nickname: %w", id, err)
	}
	status, err := decodeText(r.RawStatus)
	if err != nil {
		return nil, fmt.Errorf("verdict %d status: %w", id, err)
	}

	detail := r.VerdictDetail
	detail.Description = whitespaceRe.ReplaceAllString(description, "")
	detail.SendUserNickname = nickname
	detail.SendUserStatus = status
	return &detail, nil
}

// BoardParticipants returns the user ids registered on one board.
func (s *Store) BoardParticipants(ctx context.Context, boardID int64) ([]int64, error) {
	const q = `
		SELECT bu.user_id
		FROM board_users AS bu
		WHERE bu.board_id = $1`

	var ids []int64
	if err := s.db.SelectContext(ctx, &ids, q, boardID); err != nil {
		return nil, fmt.Errorf("load participants of board %d: %w", boardID, err)
	}
	return ids, nil
}

// RecentPositives returns recent thread-opening messages by banned users,
// the raw material for the positive-dataset update.
func (s *Store) RecentPositives(ctx context.Context) ([]corpus.Entry, error) {
	const q = `
		SELECT m.id, m.description
		FROM messages AS m
		INNER JOIN users AS u ON m.user_id = u.id
		INNER JOIN boards AS b ON b.id = m.board_id
		WHERE
			u.status = 'blacked' AND
			m.user_id = b.owner_id AND
			m.created > NOW() - INTERVAL '` + recentWindow + `' AND
			m.description != 'send file' AND
			m.description != '' AND
			m.description IS NOT NULL
		ORDER BY m.id DESC`

	entries, err := s.selectEntries(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("load recent confirmed spam: %w", err)
	}
	return entries, nil
}

// RecentNegatives returns recent thread-opening messages by users in good
// standing that carry no spam verdict, the raw material for the clean
// dataset.
func (s *Store) RecentNegatives(ctx context.Context) ([]corpus.Entry, error) {
	const q = `
		SELECT m.id, m.description
		FROM messages AS m
		INNER JOIN users AS u ON m.user_id = u.id
		INNER JOIN boards AS b ON b.id = m.board_id
		WHERE
			u.status = 'active' AND
			m.user_id = b.owner_id AND
			m.created > NOW() - INTERVAL '` + recentWindow + `' AND
			m.description != 'send file' AND
			m.description != '' AND
			m.description IS NOT NULL AND
			NOT EXISTS (
				SELECT 1 FROM message_spams AS ms WHERE ms.message_id = m.id
			)
		ORDER BY m.id DESC`

	entries, err := s.selectEntries(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("load recent clean messages: %w", err)
	}
	return entries, nil
}

// WorkSource adapts the works table to the curator: confirmed spam
// postings feed the project positive dataset, clean postings the negative
// one. Title and description are concatenated into one document.
type WorkSource struct {
	s *Store
}

func (s *Store) WorkSource() *WorkSource {
	return &WorkSource{s: s}
}

func (w *WorkSource) RecentPositives(ctx context.Context) ([]corpus.Entry, error) {
	const q = `
		SELECT w.id, w.title || ' ' || w.description AS description
		FROM works AS w
		INNER JOIN users AS u ON w.user_id = u.id
		WHERE
			(u.status = 'blacked' OR w.violation_status != 0) AND
			w.created > NOW() - INTERVAL '` + recentWindow + `' AND
			w.description != '' AND
			w.description IS NOT NULL
		ORDER BY w.id DESC`

	entries, err := w.s.selectEntries(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("load recent confirmed spam works: %w", err)
	}
	return entries, nil
}

func (w *WorkSource) RecentNegatives(ctx context.Context) ([]corpus.Entry, error) {
	const q = `
		SELECT w.id, w.title || ' ' || w.description AS description
		FROM works AS w
		INNER JOIN users AS u ON w.user_id = u.id
		WHERE
			u.status = 'active' AND
			w.violation_status = 0 AND
			w.created > NOW() - INTERVAL '` + recentWindow + `' AND
			w.description != '' AND
			w.description IS NOT NULL
		ORDER BY w.id DESC`

	entries, err := w.s.selectEntries(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("load recent clean works: %w", err)
	}
	return entries, nil
}

// ViolationSource feeds the terms-violation corpora. Positives are
// postings moderation flagged regardless of account standing; negatives
// are clean postings from accounts in good standing.
type ViolationSource struct {
	s *Store
}

func (s *Store) ViolationSource() *ViolationSource {
	return &ViolationSource{s: s}
}

func (v *ViolationSource) RecentPositives(ctx context.Context) ([]corpus.Entry, error) {
	const q = `
		SELECT w.id, w.title || ' ' || w.description AS description
		FROM works AS w
		WHERE
			w.violation_status != 0 AND
			w.created > NOW() - INTERVAL '` + recentWindow + `' AND
			w.description != '' AND
			w.description IS NOT NULL
		ORDER BY w.id DESC`

	entries, err := v.s.selectEntries(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("load recent violation works: %w", err)
	}
	return entries, nil
}

func (v *ViolationSource) RecentNegatives(ctx context.Context) ([]corpus.Entry, error) {
	const q = `
		SELECT w.id, w.title || ' ' || w.description AS description
		FROM works AS w
		INNER JOIN users AS u ON w.user_id = u.id
		WHERE
			u.status = 'active' AND
			w.violation_status = 0 AND
			w.created > NOW() - INTERVAL '` + recentWindow + `' AND
			w.description != '' AND
			w.description IS NOT NULL
		ORDER BY w.id DESC`

	entries, err := v.s.selectEntries(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("load recent clean works: %w", err)
	}
	return entries, nil
}

func (s *Store) selectEntries(ctx context.Context, query string) ([]corpus.Entry, error) {
	type row struct {
		ID          int64  `db:"id"`
		Description []byte `db:"description"`
	}

	var rows []row
	if err := s.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, err
	}

	entries := make([]corpus.Entry, 0, len(rows))
	for _, r := range rows {
		text, err := decodeText(r.Description)
		if err != nil {
			return nil, fmt.Errorf("message %d description: %w", r.ID, err)
		}
		entries = append(entries, corpus.Entry{ID: r.ID, Text: text})
	}
	return entries, nil
}

// SpamStatus computes the effective spam state of a verdict. Admin
// feedback wins over user feedback, which wins over the prediction.
// feedback 1 confirms spam, feedback 2 overturns it.
func SpamStatus(feedbackFromAdmin, feedbackFromUser, predict int) int {
	switch {
	case feedbackFromAdmin == 1:
		return 2
	case feedbackFromAdmin == 2:
		return 0
	case feedbackFromUser == 1:
		return 1
	case predict == 1:
		return 1
	default:
		return 0
	}
}
