package store

import "fmt"

// Metric names the distance function baked into a vector index. Different
// metrics get different index tables, so a store fixes one metric for its
// whole lifetime.
type Metric string

const (
	// MetricCosine compares unit-normalized vectors by cosine distance.
	// Vectors are L2-normalized before insertion and before querying.
	MetricCosine Metric = "cosine"

	// MetricL2 compares vectors by Euclidean distance, unnormalized.
	MetricL2 Metric = "l2"
)

// ParseMetric validates a metric name. Unknown names are a configuration
// error and fail construction.
func ParseMetric(name string) (Metric, error) {
	switch Metric(name) {
	case MetricCosine:
		return MetricCosine, nil
	case MetricL2:
		return MetricL2, nil
	default:
		return "", fmt.Errorf("%w: %q (have cosine, l2)", ErrUnknownMetric, name)
	}
}

// vecDistanceMetric returns the sqlite-vec distance_metric option for the
// vec0 table declaration.
func (m Metric) vecDistanceMetric() string {
	if m == MetricCosine {
		return "cosine"
	}
	return "L2"
}

// Role names a vectorization rule: how one embedding becomes query vectors.
type Role string

const (
	// RoleAverage reduces an embedding to one mean vector per item.
	RoleAverage Role = "average"

	// RoleSegment keeps one vector per time segment.
	RoleSegment Role = "segment"
)
