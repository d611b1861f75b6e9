package history

import (
	"sort"
	"time"

	"voipcheck/internal/models"
)

// DefaultTimelinePoints controls how many buckets we generate per channel.
const DefaultTimelinePoints = 40

// Bucket states, worst first.
const (
	StateError   = "error"
	StateWarning = "warning"
	StateOK      = "ok"
	StateMissing = "missing"
)

// TimelinePoint is one time bucket of a channel timeline.
type TimelinePoint struct {
	State string    `json:"state"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Runs  int       `json:"runs"`
}

// ChannelTimeline aggregates timeline points for a single channel.
type ChannelTimeline struct {
	Channel  string          `json:"channel"`
	Timeline []TimelinePoint `json:"timeline"`
}

type sample struct {
	Timestamp time.Time
	Outcome   models.Outcome
}

// BuildChannelTimelines splits [start, end) into points buckets and rates
// each bucket by the worst outcome observed in it.
func BuildChannelTimelines(runs []models.RunReport, start, end time.Time, points int) []ChannelTimeline {
	if points <= 0 {
		points = DefaultTimelinePoints
	}
	if !end.After(start) {
		end = start.Add(time.Minute)
	}

	samples := make(map[string][]sample)
	for _, run := range runs {
		for _, res := range run.Results {
			ts := res.CheckedAt
			if ts.IsZero() {
				ts = run.StartedAt
			}
			outcome := res.Outcome
			if outcome == "" {
				outcome = models.OutcomeFailed
				if res.OK {
					outcome = models.OutcomePassed
				}
			}
			samples[res.Channel] = append(samples[res.Channel], sample{Timestamp: ts, Outcome: outcome})
		}
	}
	if len(samples) == 0 {
		return nil
	}

	channels := make([]string, 0, len(samples))
	for ch := range samples {
		channels = append(channels, ch)
	}
	sort.Strings(channels)

	result := make([]ChannelTimeline, 0, len(channels))
	for _, ch := range channels {
		result = append(result, ChannelTimeline{
			Channel:  ch,
			Timeline: buildTimeline(samples[ch], start, end, points),
		})
	}
	return result
}

// Span returns a [start, end) window covering every run.
func Span(runs []models.RunReport) (time.Time, time.Time) {
	var start, end time.Time
	for _, run := range runs {
		if start.IsZero() || run.StartedAt.Before(start) {
			start = run.StartedAt
		}
		if run.StartedAt.After(end) {
			end = run.StartedAt
		}
		for _, res := range run.Results {
			if res.CheckedAt.After(end) {
				end = res.CheckedAt
			}
		}
	}
	return start, end.Add(time.Second)
}

func buildTimeline(samples []sample, start, end time.Time, points int) []TimelinePoint {
	output := make([]TimelinePoint, 0, points)
	if len(samples) > 1 {
		sort.Slice(samples, func(i, j int) bool {
			return samples[i].Timestamp.Before(samples[j].Timestamp)
		})
	}

	bucketDuration := end.Sub(start) / time.Duration(points)
	if bucketDuration <= 0 {
		bucketDuration = time.Nanosecond
	}

	cursor := 0
	for i := 0; i < points; i++ {
		bucketStart := start.Add(time.Duration(i) * bucketDuration)
		bucketEnd := bucketStart.Add(bucketDuration)
		if i == points-1 {
			bucketEnd = end
		}
		bucket, next := collectBucketSamples(samples, bucketStart, bucketEnd, cursor)
		cursor = next
		output = append(output, TimelinePoint{
			State: evaluateBucket(bucket),
			Start: bucketStart,
			End:   bucketEnd,
			Runs:  len(bucket),
		})
	}
	return output
}

func collectBucketSamples(samples []sample, start, end time.Time, cursor int) ([]sample, int) {
	total := len(samples)
	if total == 0 || cursor >= total {
		return nil, cursor
	}

	i := cursor
	for i < total && samples[i].Timestamp.Before(start) {
		i++
	}
	j := i
	for j < total && samples[j].Timestamp.Before(end) {
		j++
	}
	if i >= j {
		return nil, j
	}
	return samples[i:j], j
}

func evaluateBucket(entries []sample) string {
	if len(entries) == 0 {
		return StateMissing
	}
	state := StateOK
	for _, entry := range entries {
		switch entry.Outcome {
		case models.OutcomeRefused, models.OutcomeFailed:
			return StateError
		case models.OutcomeTimeout:
			state = StateWarning
		}
	}
	return state
}
