package domain

// ArticleNumber is a non-negative 32-bit article number, unique and
// monotonically increasing within a single newsgroup.
type ArticleNumber uint32

const (
	// NoArticlesHighestNumber is the sentinel "high" value for an empty group.
	NoArticlesHighestNumber ArticleNumber = 0
	// NoArticlesLowestNumber is the sentinel "low" value for an empty group.
	NoArticlesLowestNumber ArticleNumber = 1
)

// GroupRange is the (low, high) bound of a newsgroup's article numbers,
// coerced on ingress to the empty-group sentinels where needed.
type GroupRange struct {
	Low  ArticleNumber
	High ArticleNumber
}

// NewGroupRange builds a GroupRange from raw low/high values reported by a
// peer or persistence layer, applying the sentinel coercion rules: engines
// that report high = low-1, or high == low == 0, denote an empty group and
// MUST be normalized to {Low: NoArticlesLowestNumber, High:
// NoArticlesHighestNumber}. Negative-equivalent values (none possible in an
// unsigned type, but a peer may advertise huge wraparound numbers) are
// clamped to the empty sentinels too when high < low after coercion.
func NewGroupRange(low, high int64) GroupRange {
	if low < 0 {
		low = 0
	}
	if high < 0 {
		high = 0
	}
	if high == low-1 || (high == 0 && low == 0) {
		return GroupRange{Low: NoArticlesLowestNumber, High: NoArticlesHighestNumber}
	}
	if high < low {
		return GroupRange{Low: NoArticlesLowestNumber, High: NoArticlesHighestNumber}
	}
	return GroupRange{Low: ArticleNumber(low), High: ArticleNumber(high)}
}

// Empty reports whether the range denotes a group with no articles.
func (r GroupRange) Empty() bool {
	return r.Low == NoArticlesLowestNumber && r.High == NoArticlesHighestNumber
}

// Count returns the number of articles the range spans (0 when empty).
func (r GroupRange) Count() int64 {
	if r.Empty() {
		return 0
	}
	return int64(r.High) - int64(r.Low) + 1
}
