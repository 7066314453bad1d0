package v1

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/gosuda/syncboard/internal/domain"
)

type CreateSessionInput struct {
	Body struct {
		Username string `json:"username" minLength:"1" maxLength:"100" doc:"Display name used for attribution"`
	}
}

type SessionOutput struct {
	Body *domain.Session
}

type SessionIDInput struct {
	ID string `path:"id" doc:"Session ID"`
}

type UpdateSessionInput struct {
	ID   string `path:"id" doc:"Session ID"`
	Body struct {
		Username string `json:"username" minLength:"1" maxLength:"100" doc:"New display name"`
	}
}

func RegisterSessionRoutes(api huma.API, svc SessionService) {
	huma.Register(api, huma.Operation{
		OperationID: "create-session",
		Method:      http.MethodPost,
		Path:        "/sessions",
		Summary:     "Start a session with a display name",
		Tags:        []string{"Sessions"},
	}, func(ctx context.Context, input *CreateSessionInput) (*SessionOutput, error) {
		s, err := svc.CreateSession(ctx, input.Body.Username)
		if err != nil {
			return nil, toHTTPError(err, "session", "create")
		}

		return &SessionOutput{Body: s}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-session",
		Method:      http.MethodGet,
		Path:        "/sessions/{id}",
		Summary:     "Look up a session",
		Tags:        []string{"Sessions"},
	}, func(ctx context.Context, input *SessionIDInput) (*SessionOutput, error) {
		s, err := svc.Resolve(ctx, input.ID)
		if err != nil {
			return nil, toHTTPError(err, "session", "get")
		}

		return &SessionOutput{Body: s}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-session",
		Method:      http.MethodPut,
		Path:        "/sessions/{id}",
		Summary:     "Change a session's display name",
		Tags:        []string{"Sessions"},
	}, func(ctx context.Context, input *UpdateSessionInput) (*SessionOutput, error) {
		s, err := svc.UpdateUsername(ctx, input.ID, input.Body.Username)
		if err != nil {
			return nil, toHTTPError(err, "session", "update")
		}

		return &SessionOutput{Body: s}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-session",
		Method:      http.MethodDelete,
		Path:        "/sessions/{id}",
		Summary:     "End a session",
		Tags:        []string{"Sessions"},
	}, func(ctx context.Context, input *SessionIDInput) (*struct{}, error) {
		if err := svc.Destroy(ctx, input.ID); err != nil {
			return nil, toHTTPError(err, "session", "delete")
		}

		return nil, nil
	})
}
