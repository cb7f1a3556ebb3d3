package probes

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/nsisonglabs/webcachescan/lib/finding"
)

// timingSampleSize is N from spec.md §4.3.5.
const timingSampleSize = 10

// CacheTiming implements spec.md §4.3.5: ten baseline requests, warming
// whatever cache sits in front of the origin, followed by ten cache-busting
// requests, comparing mean elapsed time between the two groups.
func CacheTiming(ctx context.Context, client Prober, _ Oracle, target *url.URL) ([]finding.Finding, error) {
	baselineMicros := make([]int64, 0, timingSampleSize)
	for i := 0; i < timingSampleSize; i++ {
		resp, err := client.Get(ctx, target.String())
		if err != nil {
			return nil, fmt.Errorf("timing baseline sample %d: %w", i, err)
		}
		baselineMicros = append(baselineMicros, resp.Elapsed.Microseconds())
	}

	bustedMicros := make([]int64, 0, timingSampleSize)
	for i := 0; i < timingSampleSize; i++ {
		cp := *target
		cp.RawQuery = "cb=" + strconv.Itoa(i)
		resp, err := client.Get(ctx, cp.String())
		if err != nil {
			return nil, fmt.Errorf("timing cache-buster sample %d: %w", i, err)
		}
		bustedMicros = append(bustedMicros, resp.Elapsed.Microseconds())
	}

	meanCached := mean(baselineMicros)
	meanUncached := mean(bustedMicros)
	if meanUncached == 0 {
		return nil, nil
	}

	if meanCached/meanUncached < 0.5 {
		f := finding.New(
			finding.CacheTiming,
			target.String(),
			fmt.Sprintf(
				"Significant timing difference detected between cached (%.0f µs) and uncached (%.0f µs) responses",
				meanCached, meanUncached,
			),
			finding.CVSSPtr(4.3),
			fmt.Sprintf("Compare timing: curl '%s' vs curl '%s?cb=1'", target.String(), target.String()),
			"Ensure response latency doesn't leak cache-hit status; add jitter or serve cached and origin responses at comparable speed",
			[]string{"https://portswigger.net/research/web-cache-entanglement"},
			client.Now(),
		)
		return []finding.Finding{f}, nil
	}
	return nil, nil
}

func mean(samples []int64) float64 {
	var sum int64
	for _, s := range samples {
		sum += s
	}
	return float64(sum) / float64(len(samples))
}
