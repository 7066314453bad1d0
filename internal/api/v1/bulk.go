package v1

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/gosuda/syncboard/internal/domain"
	"github.com/gosuda/syncboard/internal/pipeline"
)

type BulkMoveInput struct {
	Body struct {
		TicketIDs []FlexibleID `json:"ticket_ids" maxItems:"1000" doc:"Tickets to move; strings or integers"`
		Column    string       `json:"column" minLength:"1" doc:"Target column"`
		Author    string       `json:"author,omitempty" doc:"Author credited when no session is presented"`
	}
}

type BulkAssignInput struct {
	Body struct {
		TicketIDs []FlexibleID `json:"ticket_ids" maxItems:"1000" doc:"Tickets to assign; strings or integers"`
		Assignee  *string      `json:"assignee,omitempty" doc:"Assignee; omitted, null or empty unassigns"`
		Author    string       `json:"author,omitempty" doc:"Author credited when no session is presented"`
	}
}

type PriorityUpdateBody struct {
	TicketID FlexibleID `json:"ticket_id" doc:"Ticket ID as a string or an integer"`
	Priority string     `json:"priority" doc:"One of low, medium, high, urgent"`
}

type BulkPriorityInput struct {
	Body struct {
		Updates []PriorityUpdateBody `json:"updates" maxItems:"1000" doc:"Per-ticket priority changes"`
		Author  string               `json:"author,omitempty" doc:"Author credited when no session is presented"`
	}
}

type BulkOutput struct {
	Body *pipeline.BulkResult
}

func RegisterBulkRoutes(api huma.API, svc BulkService) {
	huma.Register(api, huma.Operation{
		OperationID: "bulk-move",
		Method:      http.MethodPost,
		Path:        "/bulk/tickets/move",
		Summary:     "Move many tickets to a column",
		Tags:        []string{"Bulk"},
	}, func(ctx context.Context, input *BulkMoveInput) (*BulkOutput, error) {
		res, err := svc.BulkMove(ctx, rawIDs(input.Body.TicketIDs), input.Body.Column, callerFrom(ctx, input.Body.Author))
		if err != nil {
			return nil, toHTTPError(err, "tickets", "move")
		}

		return &BulkOutput{Body: res}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "bulk-assign",
		Method:      http.MethodPost,
		Path:        "/bulk/tickets/assign",
		Summary:     "Assign or unassign many tickets",
		Tags:        []string{"Bulk"},
	}, func(ctx context.Context, input *BulkAssignInput) (*BulkOutput, error) {
		res, err := svc.BulkAssign(ctx, rawIDs(input.Body.TicketIDs), input.Body.Assignee, callerFrom(ctx, input.Body.Author))
		if err != nil {
			return nil, toHTTPError(err, "tickets", "assign")
		}

		return &BulkOutput{Body: res}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "bulk-priority",
		Method:      http.MethodPost,
		Path:        "/bulk/tickets/priority",
		Summary:     "Set the priority of many tickets",
		Tags:        []string{"Bulk"},
	}, func(ctx context.Context, input *BulkPriorityInput) (*BulkOutput, error) {
		updates := make([]pipeline.PriorityUpdate, len(input.Body.Updates))
		for i, u := range input.Body.Updates {
			updates[i] = pipeline.PriorityUpdate{TicketID: u.TicketID.Raw(), Priority: domain.Priority(u.Priority)}
		}

		res, err := svc.BulkPriority(ctx, updates, callerFrom(ctx, input.Body.Author))
		if err != nil {
			return nil, toHTTPError(err, "tickets", "reprioritize")
		}

		return &BulkOutput{Body: res}, nil
	})
}
