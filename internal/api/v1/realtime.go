package v1

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/gosuda/syncboard/internal/realtime"
)

type RealtimeStatsOutput struct {
	Body realtime.MetricsSnapshot
}

func RegisterRealtimeRoutes(api huma.API, stats StatsSource) {
	huma.Register(api, huma.Operation{
		OperationID: "realtime-stats",
		Method:      http.MethodGet,
		Path:        "/realtime/stats",
		Summary:     "Connection and delivery counters",
		Tags:        []string{"Realtime"},
	}, func(_ context.Context, _ *struct{}) (*RealtimeStatsOutput, error) {
		return &RealtimeStatsOutput{Body: stats.Snapshot()}, nil
	})
}
