package scanner

// reservedFDs is held back for housekeeping (stdio, log files, the
// coordinator HTTP client connection pool) before any is handed to the
// scanner, per spec.md §5 "FD budget".
const reservedFDs = 203

// concurrentHostTier maps an available-FD bucket to a target concurrent
// host count, per spec.md §5's tier table.
func concurrentHostTier(available int) int {
	switch {
	case available < 500:
		return 5
	case available < 2000:
		return 15
	case available < 5000:
		return 30
	default:
		return 50
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// fallbackSoftFDLimit is used if the process's RLIMIT_NOFILE cannot be read.
const fallbackSoftFDLimit = 1024

// CurrentBudget reads the process's FD soft limit and derives a Budget
// from it. Errors reading the limit fall back to a conservative default
// rather than aborting the scan.
func CurrentBudget(userConcurrency int) Budget {
	limit, err := readSoftFDLimit()
	if err != nil || limit <= 0 {
		limit = fallbackSoftFDLimit
	}
	return DeriveBudget(limit, userConcurrency)
}

// Budget is the derived concurrency envelope for one scan run.
type Budget struct {
	Available       int
	PortBatchSize   int
	ConcurrentHosts int
}

// DeriveBudget implements spec.md §5's exact formula: read the FD soft
// limit, reserve housekeeping descriptors, derive a per-host port batch
// size and a concurrent-host count from what's left, then recompute the
// concurrent-host count from the actual batch size chosen.
//
// softLimit is the process's current RLIMIT_NOFILE soft limit (see
// rlimit_unix.go / rlimit_other.go for how it's read). userConcurrency,
// if non-zero, overrides the derived ConcurrentHosts.
func DeriveBudget(softLimit int, userConcurrency int) Budget {
	available := softLimit - reservedFDs
	if available < 1 {
		available = 1
	}

	target := concurrentHostTier(available)
	portBatch := clamp(available/target-45, 10, 200)
	concurrentHosts := clamp(available/(portBatch+45), 1, 50)

	if userConcurrency > 0 {
		concurrentHosts = userConcurrency
	}

	return Budget{
		Available:       available,
		PortBatchSize:   portBatch,
		ConcurrentHosts: concurrentHosts,
	}
}
