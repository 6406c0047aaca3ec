package ecsmetrics

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/upb/devportal/services"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	// Namespace is the CloudWatch namespace for ECS service metrics
	Namespace = "AWS/ECS"

	MetricCPU    = "CPUUtilization"
	MetricMemory = "MemoryUtilization"

	// PeriodSeconds is the fixed datapoint granularity
	PeriodSeconds = 60

	MinMinutes     = 5
	MaxMinutes     = 1440
	DefaultMinutes = 60

	providerName = "cloudwatch"
)

// CloudWatchAPI is the subset of the CloudWatch client used here
type CloudWatchAPI interface {
	GetMetricStatistics(ctx context.Context, params *cloudwatch.GetMetricStatisticsInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.GetMetricStatisticsOutput, error)
}

// Query selects the service and lookback window
type Query struct {
	Cluster string
	Service string
	Minutes int
}

// Point is one averaged datapoint
type Point struct {
	T time.Time `json:"t"`
	V float64   `json:"v"`
}

// Series holds CPU and memory utilization, each strictly ascending by time
type Series struct {
	CPU    []Point `json:"cpu"`
	Memory []Point `json:"memory"`
}

// Legacy returns the bare-values shape keyed by CloudWatch metric name
func (s *Series) Legacy() map[string][]float64 {
	return map[string][]float64{
		MetricCPU:    values(s.CPU),
		MetricMemory: values(s.Memory),
	}
}

func values(points []Point) []float64 {
	out := make([]float64, len(points))
	for i, p := range points {
		out[i] = p.V
	}
	return out
}

// Service reads ECS service utilization from CloudWatch
type Service struct {
	client   CloudWatchAPI
	timeout  time.Duration
	recorder services.UpstreamRecorder
	logger   *zap.Logger
	now      func() time.Time
}

// NewService creates a new Service. timeout bounds each CloudWatch call; zero disables it.
func NewService(client CloudWatchAPI, timeout time.Duration, recorder services.UpstreamRecorder, logger *zap.Logger) *Service {
	if recorder == nil {
		recorder = services.NopRecorder{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		client:   client,
		timeout:  timeout,
		recorder: recorder,
		logger:   logger,
		now:      time.Now,
	}
}

// ServiceUtilization returns the averaged CPU and memory series for the window
// ending now. Both metrics are fetched concurrently; either failure fails the call.
func (s *Service) ServiceUtilization(ctx context.Context, q Query) (*Series, error) {
	if q.Service == "" {
		return nil, services.NewValidation("service is required")
	}
	if q.Cluster == "" {
		return nil, services.NewValidation("cluster is required")
	}
	if q.Minutes < MinMinutes || q.Minutes > MaxMinutes {
		return nil, services.NewDomainError(services.ErrorTypeValidation, "minutes out of range", nil).
			WithDetail("minutes", q.Minutes).
			WithDetail("min", MinMinutes).
			WithDetail("max", MaxMinutes)
	}

	end := s.now().UTC()
	start := end.Add(-time.Duration(q.Minutes) * time.Minute)

	var series Series
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		points, err := s.fetch(gctx, MetricCPU, q, start, end)
		series.CPU = points
		return err
	})
	g.Go(func() error {
		points, err := s.fetch(gctx, MetricMemory, q, start, end)
		series.Memory = points
		return err
	})
	if err := g.Wait(); err != nil {
		s.recorder.RecordUpstreamError(providerName)
		s.logger.Error("metrics fetch failed",
			zap.String("cluster", q.Cluster),
			zap.String("service", q.Service),
			zap.Error(err))
		return nil, services.WrapExternal("Metrics fetch failed", err)
	}

	s.logger.Debug("metrics fetched",
		zap.String("cluster", q.Cluster),
		zap.String("service", q.Service),
		zap.Int("cpu_points", len(series.CPU)),
		zap.Int("memory_points", len(series.Memory)))

	return &series, nil
}

func (s *Service) fetch(ctx context.Context, metric string, q Query, start, end time.Time) ([]Point, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	out, err := s.client.GetMetricStatistics(ctx, &cloudwatch.GetMetricStatisticsInput{
		Namespace:  aws.String(Namespace),
		MetricName: aws.String(metric),
		Dimensions: []types.Dimension{
			{Name: aws.String("ClusterName"), Value: aws.String(q.Cluster)},
			{Name: aws.String("ServiceName"), Value: aws.String(q.Service)},
		},
		StartTime:  aws.Time(start),
		EndTime:    aws.Time(end),
		Period:     aws.Int32(PeriodSeconds),
		Statistics: []types.Statistic{types.StatisticAverage},
	})
	if err != nil {
		return nil, err
	}
	return toPoints(out.Datapoints), nil
}

// toPoints sorts datapoints ascending, drops repeated timestamps and rounds
// values to two decimals. Datapoints without a timestamp or average are skipped.
func toPoints(datapoints []types.Datapoint) []Point {
	points := make([]Point, 0, len(datapoints))
	for _, dp := range datapoints {
		if dp.Timestamp == nil || dp.Average == nil {
			continue
		}
		points = append(points, Point{T: dp.Timestamp.UTC(), V: round2(*dp.Average)})
	}

	sort.SliceStable(points, func(i, j int) bool {
		return points[i].T.Before(points[j].T)
	})

	deduped := points[:0]
	for _, p := range points {
		if n := len(deduped); n > 0 && !deduped[n-1].T.Before(p.T) {
			continue
		}
		deduped = append(deduped, p)
	}
	return deduped
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
