package achievement

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/membership/internal/storage"
)

// Metric is one analytics fact.
type Metric struct {
	ID         string         `json:"id"`
	MemberID   string         `json:"member_id"`
	Name       string         `json:"metric_name"`
	Value      float64        `json:"metric_value"`
	Metadata   map[string]any `json:"metadata"`
	RecordedAt time.Time      `json:"recorded_at"`
}

// Activity is one entry of a member's activity feed.
type Activity struct {
	ID        string         `json:"id"`
	MemberID  string         `json:"member_id"`
	Type      string         `json:"activity_type"`
	Payload   map[string]any `json:"activity_data"`
	Metadata  map[string]any `json:"metadata"`
	CreatedAt time.Time      `json:"created_at"`
}

// RecordAnalyticsMetric appends a metric row. metadata may be nil.
func (e *Engine) RecordAnalyticsMetric(ctx context.Context, memberID, name string, value float64, metadata map[string]any) (Metric, error) {
	meta, err := encodeObject(metadata)
	if err != nil {
		return Metric{}, fmt.Errorf("record metric %s: %w", name, err)
	}
	m := Metric{
		ID:         e.ids.Generate(),
		MemberID:   memberID,
		Name:       name,
		Value:      value,
		Metadata:   orEmpty(metadata),
		RecordedAt: e.stamp(),
	}
	if _, err := e.insertMetric.Run(ctx, m.ID, m.MemberID, m.Name, m.Value, meta, m.RecordedAt); err != nil {
		return Metric{}, fmt.Errorf("record metric %s: %w", name, err)
	}
	return m, nil
}

// RecordActivity appends an activity row. payload and metadata may be nil.
func (e *Engine) RecordActivity(ctx context.Context, memberID, activityType string, payload, metadata map[string]any) (Activity, error) {
	data, err := encodeObject(payload)
	if err != nil {
		return Activity{}, fmt.Errorf("record activity %s: %w", activityType, err)
	}
	meta, err := encodeObject(metadata)
	if err != nil {
		return Activity{}, fmt.Errorf("record activity %s: %w", activityType, err)
	}
	a := Activity{
		ID:        e.ids.Generate(),
		MemberID:  memberID,
		Type:      activityType,
		Payload:   orEmpty(payload),
		Metadata:  orEmpty(metadata),
		CreatedAt: e.stamp(),
	}
	if _, err := e.insertActivity.Run(ctx, a.ID, a.MemberID, a.Type, data, meta, a.CreatedAt); err != nil {
		return Activity{}, fmt.Errorf("record activity %s: %w", activityType, err)
	}
	return a, nil
}

// GetMemberActivity returns the member's most recent activity first.
func (e *Engine) GetMemberActivity(ctx context.Context, memberID string, limit int) ([]Activity, error) {
	rows, err := e.listActivity.All(ctx, memberID, limit)
	if err != nil {
		return nil, fmt.Errorf("get member activity: %w", err)
	}
	out := make([]Activity, 0, len(rows))
	for _, row := range rows {
		a, err := activityFromRow(row)
		if err != nil {
			return nil, fmt.Errorf("get member activity: %w", err)
		}
		out = append(out, a)
	}
	return out, nil
}

// GetMemberMetrics returns the member's most recent metrics first.
func (e *Engine) GetMemberMetrics(ctx context.Context, memberID string, limit int) ([]Metric, error) {
	rows, err := e.listMetrics.All(ctx, memberID, limit)
	if err != nil {
		return nil, fmt.Errorf("get member metrics: %w", err)
	}
	out := make([]Metric, 0, len(rows))
	for _, row := range rows {
		meta, err := decodeObject(row, "metadata")
		if err != nil {
			return nil, fmt.Errorf("get member metrics: %w", err)
		}
		out = append(out, Metric{
			ID:         row.String("id"),
			MemberID:   row.String("member_id"),
			Name:       row.String("metric_name"),
			Value:      row.Float("metric_value"),
			Metadata:   meta,
			RecordedAt: millis(row, "recorded_at"),
		})
	}
	return out, nil
}

func activityFromRow(row storage.Row) (Activity, error) {
	payload, err := decodeObject(row, "activity_data")
	if err != nil {
		return Activity{}, err
	}
	meta, err := decodeObject(row, "metadata")
	if err != nil {
		return Activity{}, err
	}
	return Activity{
		ID:        row.String("id"),
		MemberID:  row.String("member_id"),
		Type:      row.String("activity_type"),
		Payload:   payload,
		Metadata:  meta,
		CreatedAt: millis(row, "created_at"),
	}, nil
}

func orEmpty(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
