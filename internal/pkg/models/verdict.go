package models

import "time"

// Outcome of the statistical classifier for one normalized document.
type Prediction struct {
	Predict    int
	Score      float64
	Vocabulary string
}

// Authoritative non-spam determination from the rule filter. A nil
// *RuleVerdict means the rules deferred to the classifier.
type RuleVerdict struct {
	Predict int
	Reason  string
}

// A persisted detection verdict. Score is stored as the string form of the
// decision-function value for bit-exact compatibility with the existing
// table. BizFilter carries serialized scrape evidence and is nullable.
type Verdict struct {
	ID        int64   `db:"id"`
	BoardID   int64   `db:"board_id"`
	MessageID int64   `db:"message_id"`
	Score     string  `db:"score"`
	Predict   int     `db:"predict"`
	BizFilter *string `db:"biz_filter"`
}

// Denormalized verdict row used by the review/edit path and the realtime
// update event.
type VerdictDetail struct {
	ID                int64     `db:"id"`
	Created           time.Time `db:"created"`
	BoardID           int64     `db:"board_id"`
	BoardTitle        string    `db:"board_title"`
	MessageID         int64     `db:"message_id"`
	Description       string    `db:"description"`
	SendUserID        int64     `db:"send_user_id"`
	SendUserNickname  string    `db:"send_user_nickname"`
	SendUserStatus    string    `db:"send_user_status"`
	Predict           int       `db:"predict"`
	BizFilter         *string   `db:"biz_filter"`
	FeedbackFromAdmin int       `db:"feedback_from_admin"`
	FeedbackFromUser  int       `db:"feedback_from_user"`
	ReceiveUserIDs    []int64
	Spam              int
}
