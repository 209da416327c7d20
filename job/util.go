package job

import (
	"context"
	"errors"
	"math/rand"
	"sort"
	"time"
)

func isContextError(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}

func orderPaksByCreated(paks []pak) {
	sort.SliceStable(paks, func(i, j int) bool {
		return paks[i].State.CreatedAt.Before(paks[j].State.CreatedAt)
	})
}

func reverse[T any](s []T) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

// randomizeDuration adds or removes up to 5% of the duration to randomize background routine wake up times
func randomizeDuration(d time.Duration) time.Duration {
	rnd := time.Duration(rand.Int63n(int64(d / 10)))

	return d - (d / 20) + rnd
}
