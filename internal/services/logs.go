package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs/types"
)

type LogsAPI interface {
	DescribeLogStreams(ctx context.Context, params *cloudwatchlogs.DescribeLogStreamsInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.DescribeLogStreamsOutput, error)
	GetLogEvents(ctx context.Context, params *cloudwatchlogs.GetLogEventsInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.GetLogEventsOutput, error)
}

type LogsService struct {
	client LogsAPI
}

func NewLogsService(client LogsAPI) *LogsService {
	return &LogsService{client: client}
}

// LogEvent is a single agent log line.
type LogEvent struct {
	Timestamp time.Time
	Stream    string
	Message   string
}

// RecentEvents returns up to limit events from the most recently written
// streams in the group, oldest first. The API cannot combine a name prefix
// with LastEventTime ordering, so the group is read whole; agent groups only
// ever hold agent streams.
func (s *LogsService) RecentEvents(ctx context.Context, group string, limit int32) ([]LogEvent, error) {
	streams, err := s.client.DescribeLogStreams(ctx, &cloudwatchlogs.DescribeLogStreamsInput{
		LogGroupName: aws.String(group),
		OrderBy:      types.OrderByLastEventTime,
		Descending:   aws.Bool(true),
		Limit:        aws.Int32(5),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to describe log streams in %s: %w", group, err)
	}

	var events []LogEvent
	for _, stream := range streams.LogStreams {
		name := aws.ToString(stream.LogStreamName)
		out, err := s.client.GetLogEvents(ctx, &cloudwatchlogs.GetLogEventsInput{
			LogGroupName:  aws.String(group),
			LogStreamName: aws.String(name),
			Limit:         aws.Int32(limit),
			StartFromHead: aws.Bool(false),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to get log events from %s: %w", name, err)
		}

		for _, event := range out.Events {
			events = append(events, LogEvent{
				Timestamp: time.UnixMilli(aws.ToInt64(event.Timestamp)),
				Stream:    name,
				Message:   aws.ToString(event.Message),
			})
		}
	}

	sort.Slice(events, func(i, j int) bool {
		return events[i].Timestamp.Before(events[j].Timestamp)
	})
	if int32(len(events)) > limit {
		events = events[int32(len(events))-limit:]
	}

	return events, nil
}
