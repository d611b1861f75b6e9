package metrics

import (
	"math"
	"sort"
	"time"

	"voipcheck/internal/models"
)

// ChannelPassRate summarises probe health of one channel across runs.
type ChannelPassRate struct {
	Channel     string         `json:"channel"`
	PassPercent float64        `json:"pass_percent"`
	TotalRuns   int            `json:"total_runs"`
	Passing     int            `json:"passing"`
	Failing     int            `json:"failing"`
	Outcomes    map[string]int `json:"outcomes"`
	LastOutcome string         `json:"last_outcome,omitempty"`
	LastChecked string         `json:"last_checked,omitempty"`
}

// ComputeChannelPassRate aggregates pass-rate statistics per channel.
func ComputeChannelPassRate(runs []models.RunReport) []ChannelPassRate {
	type acc struct {
		passing  int
		failing  int
		outcomes map[string]int
		last     models.Outcome
		lastTime time.Time
	}
	state := make(map[string]*acc)
	for _, run := range runs {
		for _, res := range run.Results {
			channel := state[res.Channel]
			if channel == nil {
				channel = &acc{outcomes: make(map[string]int)}
				state[res.Channel] = channel
			}
			if res.OK {
				channel.passing++
			} else {
				channel.failing++
			}
			if res.Outcome != "" {
				channel.outcomes[string(res.Outcome)]++
			}
			checked := res.CheckedAt
			if checked.IsZero() {
				checked = run.StartedAt
			}
			if !checked.Before(channel.lastTime) {
				channel.last = res.Outcome
				channel.lastTime = checked
			}
		}
	}
	if len(state) == 0 {
		return nil
	}

	keys := make([]string, 0, len(state))
	for k := range state {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	results := make([]ChannelPassRate, 0, len(keys))
	for _, channel := range keys {
		data := state[channel]
		total := data.passing + data.failing
		rate := 0.0
		if total > 0 {
			rate = float64(data.passing) / float64(total) * 100
		}

		result := ChannelPassRate{
			Channel:     channel,
			PassPercent: round2(rate),
			TotalRuns:   total,
			Passing:     data.passing,
			Failing:     data.failing,
			Outcomes:    data.outcomes,
			LastOutcome: string(data.last),
		}
		if !data.lastTime.IsZero() {
			result.LastChecked = data.lastTime.UTC().Format(time.RFC3339)
		}
		results = append(results, result)
	}
	return results
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
