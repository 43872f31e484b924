package runner

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"regexp"
	"slices"

	"github.com/715d/golit/pkg/lit"
)

// Selection narrows the discovered tests to the ones that are run.
type Selection struct {
	// Filter keeps only tests whose full name matches.
	Filter *regexp.Regexp

	// FilterOut drops tests whose full name matches.
	FilterOut *regexp.Regexp

	// NumShards and RunShard split the tests into shards and keep the
	// RunShard-th one, counted from 1.
	NumShards int
	RunShard  int

	// MaxTests limits the number of tests run. Zero means no limit.
	MaxTests int

	// Shuffle runs tests in random order.
	Shuffle bool
}

// Validate reports inconsistent sharding or limits.
func (s Selection) Validate() error {
	var errs []error
	if s.NumShards < 0 {
		errs = append(errs, fmt.Errorf("--num-shards must be positive, got %d", s.NumShards))
	}
	if s.RunShard < 0 {
		errs = append(errs, fmt.Errorf("--run-shard must be positive, got %d", s.RunShard))
	}
	if (s.NumShards == 0) != (s.RunShard == 0) {
		errs = append(errs, errors.New("--num-shards and --run-shard must be used together"))
	}
	if s.NumShards > 0 && s.RunShard > s.NumShards {
		errs = append(errs, fmt.Errorf("--run-shard must be between 1 and --num-shards (%d)", s.NumShards))
	}
	if s.MaxTests < 0 {
		errs = append(errs, fmt.Errorf("--max-tests must be positive, got %d", s.MaxTests))
	}
	return errors.Join(errs...)
}

// Select marks the tests that are not selected as EXCLUDED and returns the
// selected ones in run order.
func Select(tests []*lit.Test, s Selection) ([]*lit.Test, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	selected := make([]*lit.Test, 0, len(tests))
	for _, t := range tests {
		name := t.FullName()
		if s.Filter != nil && !s.Filter.MatchString(name) {
			exclude(t, "filtered out by --filter")
			continue
		}
		if s.FilterOut != nil && s.FilterOut.MatchString(name) {
			exclude(t, "filtered out by --filter-out")
			continue
		}
		selected = append(selected, t)
	}

	if s.NumShards > 0 {
		var shard []*lit.Test
		for i, t := range selected {
			if i%s.NumShards == s.RunShard-1 {
				shard = append(shard, t)
			} else {
				exclude(t, fmt.Sprintf("not in shard %d of %d", s.RunShard, s.NumShards))
			}
		}
		selected = shard
	}

	if s.MaxTests > 0 && len(selected) > s.MaxTests {
		for _, t := range selected[s.MaxTests:] {
			exclude(t, "beyond --max-tests")
		}
		selected = selected[:s.MaxTests]
	}

	if s.Shuffle {
		selected = slices.Clone(selected)
		rand.Shuffle(len(selected), func(i, j int) {
			selected[i], selected[j] = selected[j], selected[i]
		})
	}
	return selected, nil
}

func exclude(t *lit.Test, reason string) {
	t.Result = lit.NewResult(lit.Excluded, "Excluded: "+reason+"\n")
}
