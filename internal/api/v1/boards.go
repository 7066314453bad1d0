package v1

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/gosuda/syncboard/internal/domain"
	"github.com/gosuda/syncboard/internal/pipeline"
)

type CreateBoardInput struct {
	Body struct {
		Name        string   `json:"name" minLength:"1" maxLength:"200" doc:"Board name"`
		Description string   `json:"description,omitempty" doc:"Board description"`
		Columns     []string `json:"columns,omitempty" doc:"Ordered column names; defaults to todo, in_progress, done"`
		Author      string   `json:"author,omitempty" doc:"Author credited when no session is presented"`
	}
}

type BoardOutput struct {
	Body *domain.Board
}

type ListBoardsOutput struct {
	Body []*domain.Board
}

type BoardIDInput struct {
	ID string `path:"id" doc:"Board ID"`
}

type UpdateBoardInput struct {
	ID   string `path:"id" doc:"Board ID"`
	Body struct {
		Name        *string  `json:"name,omitempty" maxLength:"200" doc:"Board name"`
		Description *string  `json:"description,omitempty" doc:"Board description"`
		Columns     []string `json:"columns,omitempty" doc:"Full replacement column list"`
		Author      string   `json:"author,omitempty" doc:"Author credited when no session is presented"`
	}
}

func RegisterBoardRoutes(api huma.API, svc BoardService) {
	huma.Register(api, huma.Operation{
		OperationID: "create-board",
		Method:      http.MethodPost,
		Path:        "/boards",
		Summary:     "Create a board",
		Tags:        []string{"Boards"},
	}, func(ctx context.Context, input *CreateBoardInput) (*BoardOutput, error) {
		b, err := svc.CreateBoard(ctx, pipeline.BoardInput{
			Name:        input.Body.Name,
			Description: input.Body.Description,
			Columns:     input.Body.Columns,
		}, callerFrom(ctx, input.Body.Author))
		if err != nil {
			return nil, toHTTPError(err, "board", "create")
		}

		return &BoardOutput{Body: b}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-boards",
		Method:      http.MethodGet,
		Path:        "/boards",
		Summary:     "List boards",
		Tags:        []string{"Boards"},
	}, func(ctx context.Context, _ *struct{}) (*ListBoardsOutput, error) {
		boards, err := svc.ListBoards(ctx)
		if err != nil {
			return nil, toHTTPError(err, "boards", "list")
		}
		if boards == nil {
			boards = []*domain.Board{}
		}

		return &ListBoardsOutput{Body: boards}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-board",
		Method:      http.MethodGet,
		Path:        "/boards/{id}",
		Summary:     "Get a board by ID",
		Tags:        []string{"Boards"},
	}, func(ctx context.Context, input *BoardIDInput) (*BoardOutput, error) {
		b, err := svc.GetBoard(ctx, input.ID)
		if err != nil {
			return nil, toHTTPError(err, "board", "get")
		}

		return &BoardOutput{Body: b}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-board",
		Method:      http.MethodPatch,
		Path:        "/boards/{id}",
		Summary:     "Update a board",
		Tags:        []string{"Boards"},
	}, func(ctx context.Context, input *UpdateBoardInput) (*BoardOutput, error) {
		b, err := svc.UpdateBoard(ctx, input.ID, pipeline.BoardPatch{
			Name:        input.Body.Name,
			Description: input.Body.Description,
			Columns:     input.Body.Columns,
		}, callerFrom(ctx, input.Body.Author))
		if err != nil {
			return nil, toHTTPError(err, "board", "update")
		}

		return &BoardOutput{Body: b}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-board",
		Method:      http.MethodDelete,
		Path:        "/boards/{id}",
		Summary:     "Delete a board with its tickets, comments and history",
		Tags:        []string{"Boards"},
	}, func(ctx context.Context, input *BoardIDInput) (*struct{}, error) {
		if err := svc.DeleteBoard(ctx, input.ID, callerFrom(ctx, "")); err != nil {
			return nil, toHTTPError(err, "board", "delete")
		}

		return nil, nil
	})
}
