// Package metrics tracks ingest and request counters and renders them in the
// Prometheus text exposition format.
package metrics

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"sync"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"google.golang.org/protobuf/proto"

	"devopsmirror/internal/store"
)

// Ingest outcomes.
const (
	OutcomeRecorded  = "recorded"
	OutcomeDuplicate = "duplicate_ignored"
	OutcomeInvalid   = "invalid"
	OutcomeFailed    = "failed"
)

const namespace = "devopsmirror"

// StatsSource reports table sizes for the gauge families.
type StatsSource interface {
	Stats(ctx context.Context) (store.Stats, error)
}

type requestKey struct {
	route string
	code  int
}

// Collector accumulates counters in memory. The zero value is not usable;
// call New. A nil *Collector ignores observations.
type Collector struct {
	mu             sync.Mutex
	ingests        map[string]float64
	requests       map[requestKey]float64
	staleSummaries float64
	stats          StatsSource
}

// New builds an empty Collector. stats may be nil.
func New(stats StatsSource) *Collector {
	return &Collector{
		ingests:  make(map[string]float64),
		requests: make(map[requestKey]float64),
		stats:    stats,
	}
}

// ObserveIngest counts one ingest attempt by outcome.
func (c *Collector) ObserveIngest(outcome string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.ingests[outcome]++
	c.mu.Unlock()
}

// ObserveStaleSummary counts an upsert that moved a summary backwards in time.
func (c *Collector) ObserveStaleSummary() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.staleSummaries++
	c.mu.Unlock()
}

// ObserveRequest counts one served HTTP request.
func (c *Collector) ObserveRequest(route string, code int) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.requests[requestKey{route: route, code: code}]++
	c.mu.Unlock()
}

// Gather snapshots every metric family, sorted by name.
func (c *Collector) Gather(ctx context.Context) ([]*dto.MetricFamily, error) {
	if c == nil {
		return nil, nil
	}

	c.mu.Lock()
	ingest := counterFamily(namespace+"_ingest_total", "Webhook notifications processed, by outcome.")
	for _, outcome := range sortedKeys(c.ingests) {
		ingest.Metric = append(ingest.Metric, counterMetric(c.ingests[outcome], label("outcome", outcome)))
	}

	stale := counterFamily(namespace+"_stale_summary_updates_total", "Upserts whose changed-at was older than the stored summary.")
	stale.Metric = append(stale.Metric, counterMetric(c.staleSummaries))

	requests := counterFamily(namespace+"_http_requests_total", "HTTP requests served, by route and status code.")
	keys := make([]requestKey, 0, len(c.requests))
	for key := range c.requests {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].route != keys[j].route {
			return keys[i].route < keys[j].route
		}
		return keys[i].code < keys[j].code
	})
	for _, key := range keys {
		requests.Metric = append(requests.Metric, counterMetric(c.requests[key],
			label("code", strconv.Itoa(key.code)),
			label("route", key.route),
		))
	}
	c.mu.Unlock()

	families := []*dto.MetricFamily{stale}
	for _, mf := range []*dto.MetricFamily{ingest, requests} {
		if len(mf.Metric) > 0 {
			families = append(families, mf)
		}
	}

	if c.stats != nil {
		stats, err := c.stats.Stats(ctx)
		if err != nil {
			return nil, fmt.Errorf("gather store stats: %w", err)
		}
		families = append(families,
			gaugeFamily(namespace+"_transitions", "Transitions stored in the ledger.", float64(stats.Transitions)),
			gaugeFamily(namespace+"_work_items", "Work items mirrored.", float64(stats.WorkItems)),
		)
	}

	sort.Slice(families, func(i, j int) bool { return families[i].GetName() < families[j].GetName() })
	return families, nil
}

// WriteText renders all families in the Prometheus text format.
func (c *Collector) WriteText(ctx context.Context, w io.Writer) error {
	families, err := c.Gather(ctx)
	if err != nil {
		return err
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("write metric family %s: %w", mf.GetName(), err)
		}
	}
	return nil
}

// ContentType is the exposition content type written by WriteText.
func ContentType() string {
	return string(expfmt.NewFormat(expfmt.TypeTextPlain))
}

func counterFamily(name, help string) *dto.MetricFamily {
	return &dto.MetricFamily{
		Name: proto.String(name),
		Help: proto.String(help),
		Type: dto.MetricType_COUNTER.Enum(),
	}
}

func counterMetric(value float64, labels ...*dto.LabelPair) *dto.Metric {
	return &dto.Metric{
		Label:   labels,
		Counter: &dto.Counter{Value: proto.Float64(value)},
	}
}

func gaugeFamily(name, help string, value float64) *dto.MetricFamily {
	return &dto.MetricFamily{
		Name:   proto.String(name),
		Help:   proto.String(help),
		Type:   dto.MetricType_GAUGE.Enum(),
		Metric: []*dto.Metric{{Gauge: &dto.Gauge{Value: proto.Float64(value)}}},
	}
}

func label(name, value string) *dto.LabelPair {
	return &dto.LabelPair{Name: proto.String(name), Value: proto.String(value)}
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
