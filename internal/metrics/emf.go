// Package metrics emits AWS CloudWatch Embedded Metrics Format (EMF) records
// for the batch Lambda. EMF metrics are structured JSON on stdout that
// CloudWatch extracts automatically — no API calls and no added latency.
package metrics

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"
)

// Namespace is the CloudWatch namespace for all SDK batch metrics.
const Namespace = "PhotoEditSDK"

// Standard CloudWatch metric units used here.
const (
	UnitMilliseconds = "Milliseconds"
	UnitCount        = "Count"
	UnitNone         = "None"
)

type metricDef struct {
	Name string `json:"Name"`
	Unit string `json:"Unit"`
}

type cwMetric struct {
	Namespace  string      `json:"Namespace"`
	Dimensions [][]string  `json:"Dimensions"`
	Metrics    []metricDef `json:"Metrics"`
}

// emfDirective is the _aws metadata block required by EMF.
type emfDirective struct {
	Timestamp         int64      `json:"Timestamp"`
	CloudWatchMetrics []cwMetric `json:"CloudWatchMetrics"`
}

// Recorder accumulates dimensions, metrics, and properties for one EMF flush.
// Not safe for concurrent use; create one per operation.
type Recorder struct {
	namespace  string
	dimensions map[string]string
	metrics    []metricDef
	values     map[string]float64
	properties map[string]any
}

// New creates a Recorder for the given CloudWatch namespace. The Lambda
// function name, when present in the environment, becomes a dimension.
func New(namespace string) *Recorder {
	r := &Recorder{
		namespace:  namespace,
		dimensions: make(map[string]string),
		values:     make(map[string]float64),
		properties: make(map[string]any),
	}
	if fn := os.Getenv("AWS_LAMBDA_FUNCTION_NAME"); fn != "" {
		r.dimensions["FunctionName"] = fn
	}
	return r
}

// Dimension adds a dimension key-value pair. Dimensions are indexed in
// CloudWatch and appear as filterable attributes on the metric.
func (r *Recorder) Dimension(key, value string) *Recorder {
	r.dimensions[key] = value
	return r
}

// Metric records a named metric value with a CloudWatch unit.
func (r *Recorder) Metric(name string, value float64, unit string) *Recorder {
	for i, m := range r.metrics {
		if m.Name == name {
			r.metrics[i].Unit = unit
			r.values[name] = value
			return r
		}
	}
	r.metrics = append(r.metrics, metricDef{Name: name, Unit: unit})
	r.values[name] = value
	return r
}

// Property adds a non-metric field to the EMF document. Properties are
// searchable in CloudWatch Logs Insights but create no metric.
func (r *Recorder) Property(key string, value any) *Recorder {
	r.properties[key] = value
	return r
}

// Flush serializes the EMF document as a single JSON line to stdout.
// After flushing, the Recorder should not be reused.
func (r *Recorder) Flush() {
	if len(r.metrics) == 0 {
		return
	}

	dimKeys := make([]string, 0, len(r.dimensions))
	for k := range r.dimensions {
		dimKeys = append(dimKeys, k)
	}
	sort.Strings(dimKeys)

	doc := map[string]any{
		"_aws": emfDirective{
			Timestamp: time.Now().UnixMilli(),
			CloudWatchMetrics: []cwMetric{{
				Namespace:  r.namespace,
				Dimensions: [][]string{dimKeys},
				Metrics:    r.metrics,
			}},
		},
	}
	for k, v := range r.dimensions {
		doc[k] = v
	}
	for k, v := range r.values {
		doc[k] = v
	}
	for k, v := range r.properties {
		doc[k] = v
	}

	data, err := json.Marshal(doc)
	if err != nil {
		// Metrics are best-effort; never fail the caller over them.
		fmt.Fprintf(os.Stderr, "emf: failed to marshal metrics: %v\n", err)
		return
	}

	// EMF must be a single line on stdout.
	fmt.Fprintln(os.Stdout, string(data))
}

// BatchResult carries one finished batch's outcome for metric emission.
type BatchResult struct {
	GroupID   string
	Completed int
	Failed    int
	Clusters  int
	Duration  time.Duration
}

// EmitBatch flushes the standard metric set for a finished batch.
func EmitBatch(r BatchResult) {
	New(Namespace).
		Dimension("Operation", "batch").
		Metric("EntriesCompleted", float64(r.Completed), UnitCount).
		Metric("EntriesFailed", float64(r.Failed), UnitCount).
		Metric("ClusterCount", float64(r.Clusters), UnitCount).
		Metric("BatchDuration", float64(r.Duration.Milliseconds()), UnitMilliseconds).
		Property("groupId", r.GroupID).
		Flush()
}
