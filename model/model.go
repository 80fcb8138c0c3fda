package model

import "time"

type Poll struct {
	ID        string       `json:"id,omitempty"`
	UserID    string       `json:"userId,omitempty"`
	Question  string       `json:"question"`
	Options   []PollOption `json:"options,omitempty"`
	CreatedAt time.Time    `json:"createdAt,omitempty"`
}

type PollOption struct {
	ID       string `json:"id,omitempty"`
	Text     string `json:"text"`
	Position int    `json:"position"`
}

type Vote struct {
	ID        string    `json:"id"`
	PollID    string    `json:"pollId"`
	OptionID  string    `json:"optionId"`
	VoterID   string    `json:"-"`
	CreatedAt time.Time `json:"createdAt"`
}

// PollInput is the payload for poll creation and edit. Option texts are
// positional: their order is the render order.
type PollInput struct {
	Question string   `json:"question"`
	Options  []string `json:"options"`
}

type VoteInput struct {
	OptionID string `json:"optionId"`
}

type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}
