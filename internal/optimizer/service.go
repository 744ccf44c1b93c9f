package optimizer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/mbsoft/ohmy-tracks/internal/config"
	"github.com/mbsoft/ohmy-tracks/internal/routes"
	"github.com/mbsoft/ohmy-tracks/pkg/logger"
)

// Service turns parsed, geocoded routes into optimization runs. Every route
// gets two runs: one pinned to the planned stop sequence and one free, so
// dispatchers can compare the plan against the solver's best.
type Service struct {
	client *Client
	cfg    config.OptimizationConfig
	logger *logger.Logger
}

// NewService creates an optimization service.
func NewService(client *Client, cfg config.OptimizationConfig, log *logger.Logger) *Service {
	return &Service{
		client: client,
		cfg:    cfg,
		logger: log.Named("optimizer"),
	}
}

// DepotForFile resolves the depot "lat,lng" for an uploaded file by prefix
// match against the configured depot table.
func (s *Service) DepotForFile(fileName string) string {
	upper := strings.ToUpper(fileName)
	for prefix, latlng := range s.cfg.DepotLocations {
		if strings.HasPrefix(upper, strings.ToUpper(prefix)) {
			return latlng
		}
	}
	return s.cfg.DepotLocations["default"]
}

// OptimizeRoute runs both problem variants for one route and combines the
// outcomes. The free-sequence solution is returned as the primary result.
func (s *Service) OptimizeRoute(ctx context.Context, route *routes.Route, depot string) (*RouteResult, error) {
	inSeq, noSeq, err := buildRouteRequests(route, depot, defaultBuilderConfig())
	if err != nil {
		return nil, err
	}

	s.logger.Info("Optimizing route",
		logger.String("route_id", route.RouteID),
		logger.Int("jobs", len(noSeq.Jobs)))

	inSeqID, err := s.client.Submit(ctx, inSeq)
	if err != nil {
		return nil, fmt.Errorf("submitting in-sequence run for route %s: %w", route.RouteID, err)
	}
	noSeqID, err := s.client.Submit(ctx, noSeq)
	if err != nil {
		return nil, fmt.Errorf("submitting free-sequence run for route %s: %w", route.RouteID, err)
	}

	inSeqResult, err := s.client.Poll(ctx, inSeqID)
	if err != nil {
		return nil, fmt.Errorf("route %s in-sequence run: %w", route.RouteID, err)
	}
	noSeqResult, err := s.client.Poll(ctx, noSeqID)
	if err != nil {
		return nil, fmt.Errorf("route %s free-sequence run: %w", route.RouteID, err)
	}

	rr := assembleRouteResult(route.RouteID, inSeqID, noSeqID, inSeqResult, noSeqResult)

	s.logger.Info("Route optimization complete",
		logger.String("route_id", route.RouteID),
		logger.Int("unassigned_in_sequence", rr.UnassignedCounts.InSequence),
		logger.Int("unassigned_free", rr.UnassignedCounts.NoSequence))
	return rr, nil
}

// assembleRouteResult combines the two runs. The free-sequence solution is
// the primary result.
func assembleRouteResult(routeID, inSeqID, noSeqID string, inSeqRes, noSeqRes *Result) *RouteResult {
	rr := &RouteResult{
		RouteID:   routeID,
		RequestID: noSeqID,
		Result:    noSeqRes,
	}
	rr.RequestIDs.InSequence = inSeqID
	rr.RequestIDs.NoSequence = noSeqID
	if p := inSeqRes.Result; p != nil {
		rr.Summaries.InSequence = p.Summary
		rr.UnassignedCounts.InSequence = len(p.Unassigned)
	}
	if p := noSeqRes.Result; p != nil {
		rr.Summaries.NoSequence = p.Summary
		rr.UnassignedCounts.NoSequence = len(p.Unassigned)
	}
	return rr
}

// pendingRoute tracks one route between the submit and poll phases of a
// bulk run.
type pendingRoute struct {
	route    *routes.Route
	inSeqID  string
	noSeqID  string
	inSeqRes *Result
	noSeqRes *Result
	err      error
}

// OptimizeAll optimizes every route in the set. Submissions and polls run
// in separate bounded phases so the solver receives the whole batch before
// the slower result polling starts. Routes that fail to build or solve are
// skipped with a log entry; the bulk result carries whatever completed.
func (s *Service) OptimizeAll(ctx context.Context, set *routes.RouteSet, depot string) (*BulkResult, error) {
	if len(set.Routes) == 0 {
		return nil, fmt.Errorf("no routes to optimize")
	}

	pending := make([]*pendingRoute, len(set.Routes))
	for i, route := range set.Routes {
		pending[i] = &pendingRoute{route: route}
	}

	s.forEach(ctx, len(pending), s.cfg.SubmitConcurrency, func(i int) {
		p := pending[i]
		inSeq, noSeq, err := buildRouteRequests(p.route, depot, defaultBuilderConfig())
		if err != nil {
			p.err = err
			return
		}
		if p.inSeqID, err = s.client.Submit(ctx, inSeq); err != nil {
			p.err = fmt.Errorf("submitting in-sequence run: %w", err)
			return
		}
		if p.noSeqID, err = s.client.Submit(ctx, noSeq); err != nil {
			p.err = fmt.Errorf("submitting free-sequence run: %w", err)
		}
	})

	s.forEach(ctx, len(pending), s.cfg.PollConcurrency, func(i int) {
		p := pending[i]
		if p.err != nil {
			return
		}
		if p.inSeqRes, p.err = s.client.Poll(ctx, p.inSeqID); p.err != nil {
			return
		}
		p.noSeqRes, p.err = s.client.Poll(ctx, p.noSeqID)
	})

	bulk := &BulkResult{}
	for _, p := range pending {
		if p.err != nil {
			s.logger.Warn("Skipping route in bulk optimization",
				logger.String("route_id", p.route.RouteID),
				logger.Error(p.err))
			continue
		}
		bulk.Routes = append(bulk.Routes, assembleRouteResult(p.route.RouteID, p.inSeqID, p.noSeqID, p.inSeqRes, p.noSeqRes))
	}
	if len(bulk.Routes) == 0 {
		return nil, fmt.Errorf("all %d routes failed to optimize", len(set.Routes))
	}

	s.logger.Info("Bulk optimization complete",
		logger.Int("requested", len(set.Routes)),
		logger.Int("completed", len(bulk.Routes)))
	return bulk, nil
}

// forEach runs fn for indices 0..n-1 over a bounded worker pool.
func (s *Service) forEach(ctx context.Context, n, workers int, fn func(i int)) {
	if workers <= 0 {
		workers = 1
	}
	if workers > n {
		workers = n
	}

	work := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range work {
				fn(i)
			}
		}()
	}

feed:
	for i := 0; i < n; i++ {
		select {
		case work <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(work)
	wg.Wait()
}

// OptimizeCustom submits a caller-provided problem body unchanged and polls
// it to completion.
func (s *Service) OptimizeCustom(ctx context.Context, body json.RawMessage) (*RouteResult, error) {
	requestID, err := s.client.Submit(ctx, body)
	if err != nil {
		return nil, fmt.Errorf("submitting custom optimization: %w", err)
	}
	result, err := s.client.Poll(ctx, requestID)
	if err != nil {
		return nil, err
	}

	rr := &RouteResult{RequestID: requestID, Result: result}
	rr.RequestIDs.NoSequence = requestID
	if p := result.Result; p != nil {
		rr.Summaries.NoSequence = p.Summary
		rr.UnassignedCounts.NoSequence = len(p.Unassigned)
	}
	return rr, nil
}
