package domain

import (
	"context"
	"time"
)

type Comment struct {
	ID        string    `json:"id"`
	TicketID  string    `json:"ticket_id"`
	Author    string    `json:"author"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

type CommentRepository interface {
	Create(ctx context.Context, c *Comment) error
	ListByTicket(ctx context.Context, ticketID string) ([]*Comment, error)
}
