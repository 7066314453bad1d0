package v1

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/gosuda/syncboard/internal/domain"
	"github.com/gosuda/syncboard/internal/history"
	"github.com/gosuda/syncboard/internal/pipeline"
)

type CreateTicketInput struct {
	Body struct {
		BoardID     FlexibleID `json:"board_id" doc:"Board ID"`
		Title       string     `json:"title" minLength:"1" maxLength:"500" doc:"Ticket title"`
		Description string     `json:"description,omitempty" doc:"Ticket description"`
		Priority    string     `json:"priority,omitempty" enum:"low,medium,high,urgent" doc:"Priority (default medium)"`
		Assignee    *string    `json:"assignee,omitempty" doc:"Assignee display name"`
		Column      string     `json:"column,omitempty" doc:"Column; defaults to the board's first column"`
		Author      string     `json:"author,omitempty" doc:"Author credited when no session is presented"`
	}
}

type TicketOutput struct {
	Body *domain.Ticket
}

type ListTicketsInput struct {
	BoardID string `path:"id" doc:"Board ID"`
}

type ListTicketsOutput struct {
	Body []*domain.Ticket
}

type TicketIDInput struct {
	ID string `path:"id" doc:"Ticket ID"`
}

type UpdateTicketInput struct {
	ID   string `path:"id" doc:"Ticket ID"`
	Body struct {
		BoardID     *FlexibleID `json:"board_id,omitempty" doc:"Must match the ticket's board if sent"`
		Title       *string     `json:"title,omitempty" maxLength:"500" doc:"Ticket title"`
		Description *string     `json:"description,omitempty" doc:"Ticket description"`
		Priority    *string     `json:"priority,omitempty" enum:"low,medium,high,urgent" doc:"Priority"`
		Assignee    *string     `json:"assignee,omitempty" doc:"Assignee; an empty string unassigns"`
		Author      string      `json:"author,omitempty" doc:"Author credited when no session is presented"`
	}
}

type MoveTicketInput struct {
	ID   string `path:"id" doc:"Ticket ID"`
	Body struct {
		Column string `json:"column" minLength:"1" doc:"Target column of the ticket's board"`
		Author string `json:"author,omitempty" doc:"Author credited when no session is presented"`
	}
}

type AddCommentInput struct {
	ID   string `path:"id" doc:"Ticket ID"`
	Body struct {
		Text   string `json:"text" minLength:"1" maxLength:"10000" doc:"Comment text"`
		Author string `json:"author,omitempty" doc:"Author credited when no session is presented"`
	}
}

type CommentOutput struct {
	Body *domain.Comment
}

type ListCommentsOutput struct {
	Body []*domain.Comment
}

type TicketHistoryInput struct {
	ID     string `path:"id" doc:"Ticket ID"`
	Field  string `query:"field" doc:"Only entries touching this field"`
	Order  string `query:"order" enum:"asc,desc" default:"asc" doc:"Sort order by sequence"`
	Limit  int    `query:"limit" minimum:"0" maximum:"500" default:"50" doc:"Page size"`
	Offset int    `query:"offset" minimum:"0" default:"0" doc:"Entries to skip"`
}

type TicketHistoryOutput struct {
	Body *history.Page
}

func RegisterTicketRoutes(api huma.API, svc BoardService) {
	huma.Register(api, huma.Operation{
		OperationID: "create-ticket",
		Method:      http.MethodPost,
		Path:        "/tickets",
		Summary:     "Create a ticket",
		Tags:        []string{"Tickets"},
	}, func(ctx context.Context, input *CreateTicketInput) (*TicketOutput, error) {
		boardID, err := input.Body.BoardID.String()
		if err != nil {
			return nil, huma.Error400BadRequest("board_id: " + publicMessage(err))
		}

		t, err := svc.CreateTicket(ctx, pipeline.TicketInput{
			BoardID:     boardID,
			Title:       input.Body.Title,
			Description: input.Body.Description,
			Priority:    domain.Priority(input.Body.Priority),
			Assignee:    input.Body.Assignee,
			Column:      input.Body.Column,
		}, callerFrom(ctx, input.Body.Author))
		if err != nil {
			return nil, toHTTPError(err, "board", "create ticket on")
		}

		return &TicketOutput{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-tickets",
		Method:      http.MethodGet,
		Path:        "/boards/{id}/tickets",
		Summary:     "List the tickets of a board",
		Tags:        []string{"Tickets"},
	}, func(ctx context.Context, input *ListTicketsInput) (*ListTicketsOutput, error) {
		tickets, err := svc.ListTickets(ctx, input.BoardID)
		if err != nil {
			return nil, toHTTPError(err, "board", "list tickets of")
		}

		return &ListTicketsOutput{Body: tickets}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-ticket",
		Method:      http.MethodGet,
		Path:        "/tickets/{id}",
		Summary:     "Get a ticket by ID",
		Tags:        []string{"Tickets"},
	}, func(ctx context.Context, input *TicketIDInput) (*TicketOutput, error) {
		t, err := svc.GetTicket(ctx, input.ID)
		if err != nil {
			return nil, toHTTPError(err, "ticket", "get")
		}

		return &TicketOutput{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-ticket",
		Method:      http.MethodPatch,
		Path:        "/tickets/{id}",
		Summary:     "Update a ticket",
		Tags:        []string{"Tickets"},
	}, func(ctx context.Context, input *UpdateTicketInput) (*TicketOutput, error) {
		patch := pipeline.TicketPatch{
			Title:       input.Body.Title,
			Description: input.Body.Description,
			Assignee:    input.Body.Assignee,
		}
		if input.Body.BoardID != nil {
			boardID, err := input.Body.BoardID.String()
			if err != nil {
				return nil, huma.Error400BadRequest("board_id: " + publicMessage(err))
			}
			patch.BoardID = &boardID
		}
		if input.Body.Priority != nil {
			p := domain.Priority(*input.Body.Priority)
			patch.Priority = &p
		}

		t, err := svc.UpdateTicket(ctx, input.ID, patch, callerFrom(ctx, input.Body.Author))
		if err != nil {
			return nil, toHTTPError(err, "ticket", "update")
		}

		return &TicketOutput{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "move-ticket",
		Method:      http.MethodPost,
		Path:        "/tickets/{id}/move",
		Summary:     "Move a ticket to another column of its board",
		Tags:        []string{"Tickets"},
	}, func(ctx context.Context, input *MoveTicketInput) (*TicketOutput, error) {
		t, err := svc.MoveTicket(ctx, input.ID, input.Body.Column, callerFrom(ctx, input.Body.Author))
		if err != nil {
			return nil, toHTTPError(err, "ticket", "move")
		}

		return &TicketOutput{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-ticket",
		Method:      http.MethodDelete,
		Path:        "/tickets/{id}",
		Summary:     "Delete a ticket and its comments",
		Tags:        []string{"Tickets"},
	}, func(ctx context.Context, input *TicketIDInput) (*struct{}, error) {
		if err := svc.DeleteTicket(ctx, input.ID, callerFrom(ctx, "")); err != nil {
			return nil, toHTTPError(err, "ticket", "delete")
		}

		return nil, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "add-comment",
		Method:      http.MethodPost,
		Path:        "/tickets/{id}/comments",
		Summary:     "Comment on a ticket",
		Tags:        []string{"Comments"},
	}, func(ctx context.Context, input *AddCommentInput) (*CommentOutput, error) {
		c, err := svc.AddComment(ctx, input.ID, input.Body.Text, callerFrom(ctx, input.Body.Author))
		if err != nil {
			return nil, toHTTPError(err, "ticket", "comment on")
		}

		return &CommentOutput{Body: c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-comments",
		Method:      http.MethodGet,
		Path:        "/tickets/{id}/comments",
		Summary:     "List a ticket's comments",
		Tags:        []string{"Comments"},
	}, func(ctx context.Context, input *TicketIDInput) (*ListCommentsOutput, error) {
		comments, err := svc.ListComments(ctx, input.ID)
		if err != nil {
			return nil, toHTTPError(err, "ticket", "list comments of")
		}

		return &ListCommentsOutput{Body: comments}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "ticket-history",
		Method:      http.MethodGet,
		Path:        "/tickets/{id}/history",
		Summary:     "Page through a ticket's change history",
		Tags:        []string{"History"},
	}, func(ctx context.Context, input *TicketHistoryInput) (*TicketHistoryOutput, error) {
		page, err := svc.History(ctx, history.Query{
			TicketID: input.ID,
			Field:    input.Field,
			Order:    domain.SortOrder(input.Order),
			Limit:    input.Limit,
			Offset:   input.Offset,
		})
		if err != nil {
			return nil, toHTTPError(err, "ticket", "read history of")
		}

		return &TicketHistoryOutput{Body: page}, nil
	})
}
