package model

// Update is the part of an inbound platform update the bot acts on.
type Update struct {
	UpdateID int
	ChatID   int64
	Text     string
}
