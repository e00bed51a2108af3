package store

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// instrumented records the latency and outcome of every backend call.
type instrumented struct {
	Backend
	ops *prometheus.HistogramVec
}

// Instrument wraps b so that each operation is observed in the
// vitrina_store_operation_seconds histogram registered on reg.
func Instrument(b Backend, reg prometheus.Registerer) Backend {
	ops := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "vitrina",
		Name:      "store_operation_seconds",
		Help:      "Latency of document store operations.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"collection", "op", "result"})
	reg.MustRegister(ops)
	return &instrumented{Backend: b, ops: ops}
}

func (i *instrumented) observe(collection, op string, start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	i.ops.WithLabelValues(collection, op, result).Observe(time.Since(start).Seconds())
}

func (i *instrumented) Insert(ctx context.Context, collection, id string, doc Document) (err error) {
	defer func(start time.Time) { i.observe(collection, "insert", start, err) }(time.Now())
	return i.Backend.Insert(ctx, collection, id, doc)
}

func (i *instrumented) FindAll(ctx context.Context, collection string) (docs []Document, err error) {
	defer func(start time.Time) { i.observe(collection, "find_all", start, err) }(time.Now())
	return i.Backend.FindAll(ctx, collection)
}

func (i *instrumented) FindOne(ctx context.Context, collection, id string) (doc Document, err error) {
	defer func(start time.Time) { i.observe(collection, "find_one", start, err) }(time.Now())
	return i.Backend.FindOne(ctx, collection, id)
}

func (i *instrumented) Merge(ctx context.Context, collection, id string, fields Document) (err error) {
	defer func(start time.Time) { i.observe(collection, "merge", start, err) }(time.Now())
	return i.Backend.Merge(ctx, collection, id, fields)
}

func (i *instrumented) Delete(ctx context.Context, collection, id string) (err error) {
	defer func(start time.Time) { i.observe(collection, "delete", start, err) }(time.Now())
	return i.Backend.Delete(ctx, collection, id)
}

func (i *instrumented) Count(ctx context.Context, collection string) (n int64, err error) {
	defer func(start time.Time) { i.observe(collection, "count", start, err) }(time.Now())
	return i.Backend.Count(ctx, collection)
}
