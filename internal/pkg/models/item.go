package models

import "time"

// A single message row from the record store, joined with its board and
// author. user_id is the message author; board owner_id identifies which
// side of the thread wrote it.
type ThreadMessage struct {
	ID          int64  `db:"id"`
	BoardID     int64  `db:"board_id"`
	OwnerID     int64  `db:"owner_id"`
	AuthorID    int64  `db:"user_id"`
	Nickname    string `db:"nickname"`
	Description string `db:"description"`
}

// The assembled unit of detection for the message domain: every non-empty
// message the thread owner wrote on one board, concatenated.
type MessageItem struct {
	MessageID    int64
	BoardID      int64
	UserID       int64
	Nickname     string
	Descriptions []string
}

// A project posting joined with its author.
type WorkItem struct {
	ID          int64     `db:"id"`
	Created     time.Time `db:"created"`
	Title       string    `db:"title"`
	Description string    `db:"description"`
	UserID      int64     `db:"user_id"`
	Nickname    string    `db:"nickname"`
	UserStatus  string    `db:"user_status"`
}

// One prior submission by a user, for the honorific-plus-history rule.
type WorkHistory struct {
	ID              int64 `db:"id"`
	ViolationStatus int   `db:"violation_status"`
}
