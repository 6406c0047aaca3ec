package logquery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs/types"
	"github.com/upb/devportal/services"
	"go.uber.org/zap"
)

const (
	MinLimit     = 1
	MaxLimit     = 200
	DefaultLimit = 50

	MinMinutes     = 5
	MaxMinutes     = 1440
	DefaultMinutes = 60

	// StatusTimeout is reported when the poll budget runs out first
	StatusTimeout = string(types.QueryStatusTimeout)

	providerName = "cloudwatchlogs"

	// ptrField is the Insights record pointer, not useful to callers
	ptrField = "@ptr"
)

// LogsAPI is the subset of the CloudWatch Logs client used here
type LogsAPI interface {
	StartQuery(ctx context.Context, params *cloudwatchlogs.StartQueryInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.StartQueryOutput, error)
	GetQueryResults(ctx context.Context, params *cloudwatchlogs.GetQueryResultsInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.GetQueryResultsOutput, error)
	DescribeLogStreams(ctx context.Context, params *cloudwatchlogs.DescribeLogStreamsInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.DescribeLogStreamsOutput, error)
	GetLogEvents(ctx context.Context, params *cloudwatchlogs.GetLogEventsInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.GetLogEventsOutput, error)
}

// PollConfig bounds how long RunQuery waits for a terminal state
type PollConfig struct {
	Interval time.Duration
	Attempts int
}

// DefaultPollConfig polls every 500ms, 12 times
var DefaultPollConfig = PollConfig{Interval: 500 * time.Millisecond, Attempts: 12}

// Query is an Insights query over one log group
type Query struct {
	LogGroup string
	Limit    int
	Minutes  int
}

// QueryResult is the status of an Insights query and its rows
type QueryResult struct {
	Status  string              `json:"status"`
	QueryID string              `json:"queryId"`
	Results []map[string]string `json:"results"`
}

// TailResult holds the latest lines of a service's log stream
type TailResult struct {
	Logs []string `json:"logs"`
}

// Service runs log queries and stream tails against CloudWatch Logs
type Service struct {
	client   LogsAPI
	poll     PollConfig
	timeout  time.Duration
	recorder services.UpstreamRecorder
	logger   *zap.Logger
	now      func() time.Time
}

// NewService creates a new Service. timeout bounds each individual API call;
// zero disables it.
func NewService(client LogsAPI, poll PollConfig, timeout time.Duration, recorder services.UpstreamRecorder, logger *zap.Logger) *Service {
	if poll.Interval <= 0 {
		poll.Interval = DefaultPollConfig.Interval
	}
	if poll.Attempts <= 0 {
		poll.Attempts = DefaultPollConfig.Attempts
	}
	if recorder == nil {
		recorder = services.NopRecorder{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		client:   client,
		poll:     poll,
		timeout:  timeout,
		recorder: recorder,
		logger:   logger,
		now:      time.Now,
	}
}

// QueryString builds the Insights query returning the newest limit entries
func QueryString(limit int) string {
	return fmt.Sprintf("fields @timestamp, @message | sort @timestamp desc | limit %d", limit)
}

// RunQuery starts an Insights query and polls until it reaches a terminal
// state or the poll budget is spent. An unfinished query is reported with
// StatusTimeout and its id so the caller can poll again with GetQuery.
func (s *Service) RunQuery(ctx context.Context, q Query) (*QueryResult, error) {
	if q.LogGroup == "" {
		return nil, services.NewValidation("logGroup is required")
	}
	if q.Limit < MinLimit || q.Limit > MaxLimit {
		return nil, rangeError("limit", q.Limit, MinLimit, MaxLimit)
	}
	if q.Minutes < MinMinutes || q.Minutes > MaxMinutes {
		return nil, rangeError("minutes", q.Minutes, MinMinutes, MaxMinutes)
	}

	end := s.now()
	start := end.Add(-time.Duration(q.Minutes) * time.Minute)

	callCtx, cancel := s.callContext(ctx)
	started, err := s.client.StartQuery(callCtx, &cloudwatchlogs.StartQueryInput{
		LogGroupName: aws.String(q.LogGroup),
		QueryString:  aws.String(QueryString(q.Limit)),
		StartTime:    aws.Int64(start.Unix()),
		EndTime:      aws.Int64(end.Unix()),
		Limit:        aws.Int32(int32(q.Limit)),
	})
	cancel()
	if err != nil {
		return nil, s.providerError(err, zap.String("log_group", q.LogGroup))
	}

	queryID := aws.ToString(started.QueryId)
	logger := s.logger.With(zap.String("log_group", q.LogGroup), zap.String("query_id", queryID))
	logger.Debug("log query started")

	timer := time.NewTimer(s.poll.Interval)
	defer timer.Stop()

	for attempt := 1; attempt <= s.poll.Attempts; attempt++ {
		select {
		case <-ctx.Done():
			logger.Info("log query poll canceled", zap.Int("attempt", attempt))
			return nil, services.WrapInternal("Logs query canceled", ctx.Err())
		case <-timer.C:
		}

		result, err := s.results(ctx, queryID)
		if err != nil {
			return nil, err
		}
		if IsTerminal(result.Status) {
			logger.Debug("log query finished",
				zap.String("status", result.Status),
				zap.Int("attempt", attempt),
				zap.Int("rows", len(result.Results)))
			return result, nil
		}
		timer.Reset(s.poll.Interval)
	}

	logger.Info("log query still running after poll budget",
		zap.Int("attempts", s.poll.Attempts),
		zap.Duration("interval", s.poll.Interval))
	return &QueryResult{Status: StatusTimeout, QueryID: queryID, Results: []map[string]string{}}, nil
}

// GetQuery reads the current status and rows of a started query once
func (s *Service) GetQuery(ctx context.Context, queryID string) (*QueryResult, error) {
	if queryID == "" {
		return nil, services.NewValidation("queryId is required")
	}
	return s.results(ctx, queryID)
}

// Tail returns the newest limit lines of the most recently active stream in
// the service's /ecs/<service> log group. A missing group or stream is an
// empty result.
func (s *Service) Tail(ctx context.Context, service string, limit int) (*TailResult, error) {
	if service == "" {
		return nil, services.NewValidation("service is required")
	}
	if limit < MinLimit || limit > MaxLimit {
		return nil, rangeError("limit", limit, MinLimit, MaxLimit)
	}

	logGroup := LogGroupForService(service)
	empty := &TailResult{Logs: []string{}}

	callCtx, cancel := s.callContext(ctx)
	streams, err := s.client.DescribeLogStreams(callCtx, &cloudwatchlogs.DescribeLogStreamsInput{
		LogGroupName: aws.String(logGroup),
		OrderBy:      types.OrderByLastEventTime,
		Descending:   aws.Bool(true),
		Limit:        aws.Int32(1),
	})
	cancel()
	if err != nil {
		if isResourceNotFound(err) {
			s.logger.Debug("log group not found", zap.String("log_group", logGroup))
			return empty, nil
		}
		return nil, s.providerError(err, zap.String("log_group", logGroup))
	}
	if len(streams.LogStreams) == 0 {
		return empty, nil
	}

	stream := aws.ToString(streams.LogStreams[0].LogStreamName)

	callCtx, cancel = s.callContext(ctx)
	events, err := s.client.GetLogEvents(callCtx, &cloudwatchlogs.GetLogEventsInput{
		LogGroupName:  aws.String(logGroup),
		LogStreamName: aws.String(stream),
		Limit:         aws.Int32(int32(limit)),
		StartFromHead: aws.Bool(false),
	})
	cancel()
	if err != nil {
		if isResourceNotFound(err) {
			return empty, nil
		}
		return nil, s.providerError(err, zap.String("log_group", logGroup), zap.String("log_stream", stream))
	}

	lines := make([]string, 0, len(events.Events))
	for _, e := range events.Events {
		lines = append(lines, aws.ToString(e.Message))
	}
	return &TailResult{Logs: lines}, nil
}

// LogGroupForService returns the ECS awslogs group name for a service
func LogGroupForService(service string) string {
	return "/ecs/" + service
}

// IsTerminal reports whether an Insights status will not change any more
func IsTerminal(status string) bool {
	switch types.QueryStatus(status) {
	case types.QueryStatusComplete, types.QueryStatusFailed, types.QueryStatusCancelled, types.QueryStatusTimeout:
		return true
	default:
		return false
	}
}

func (s *Service) results(ctx context.Context, queryID string) (*QueryResult, error) {
	callCtx, cancel := s.callContext(ctx)
	defer cancel()

	out, err := s.client.GetQueryResults(callCtx, &cloudwatchlogs.GetQueryResultsInput{
		QueryId: aws.String(queryID),
	})
	if err != nil {
		if isResourceNotFound(err) {
			return nil, services.NewNotFound(fmt.Sprintf("Query %s not found", queryID))
		}
		return nil, s.providerError(err, zap.String("query_id", queryID))
	}

	rows := make([]map[string]string, 0, len(out.Results))
	for _, fields := range out.Results {
		row := make(map[string]string, len(fields))
		for _, f := range fields {
			name := aws.ToString(f.Field)
			if name == "" || name == ptrField {
				continue
			}
			row[name] = aws.ToString(f.Value)
		}
		rows = append(rows, row)
	}

	return &QueryResult{
		Status:  string(out.Status),
		QueryID: queryID,
		Results: rows,
	}, nil
}

func (s *Service) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout > 0 {
		return context.WithTimeout(ctx, s.timeout)
	}
	return context.WithCancel(ctx)
}

func (s *Service) providerError(err error, fields ...zap.Field) error {
	s.recorder.RecordUpstreamError(providerName)
	s.logger.Error("logs fetch failed", append(fields, zap.Error(err))...)
	return services.WrapExternal("Logs fetch failed", err)
}

func isResourceNotFound(err error) bool {
	var rnf *types.ResourceNotFoundException
	return errors.As(err, &rnf)
}

func rangeError(field string, value, lo, hi int) error {
	return services.NewDomainError(services.ErrorTypeValidation, fmt.Sprintf("%s must be between %d and %d", field, lo, hi), nil).
		WithDetail(field, value)
}
