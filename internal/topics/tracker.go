// Package topics keeps a persisted popularity count per topic and answers
// "most asked about" queries from it.
//
// The table is a CSV file with header "topic,count". Every Increment reads
// the whole table, updates it and rewrites it through a temporary file and
// a rename, under a lock shared by every Tracker on the same path.
package topics

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/shutirtha-roy/tdp-chatbot-project/internal/pathlock"
)

var tracer = otel.Tracer("tdpchat.topics")

// ErrStorageUnavailable is returned when the table cannot be read, parsed
// or written.
var ErrStorageUnavailable = errors.New("topic storage unavailable")

var header = []string{"topic", "count"}

var incrementsTotal = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "tdpchat",
	Subsystem: "topics",
	Name:      "increments_total",
	Help:      "Total number of topic occurrences recorded",
})

// Config holds Tracker configuration.
type Config struct {
	// Path is the CSV table.
	// Default: "topics.csv"
	Path string

	// DefaultN is used by Top when n <= 0.
	// Default: 4
	DefaultN int
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.Path == "" {
		c.Path = "topics.csv"
	}
	if c.DefaultN <= 0 {
		c.DefaultN = 4
	}
}

// Tracker counts topic occurrences.
type Tracker struct {
	path     string
	defaultN int
	lock     *sync.RWMutex
	logger   *zap.Logger
}

// New creates a Tracker and writes an empty table if none exists yet.
func New(config Config, logger *zap.Logger) (*Tracker, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	config.ApplyDefaults()

	t := &Tracker{
		path:     config.Path,
		defaultN: config.DefaultN,
		lock:     pathlock.For(config.Path),
		logger:   logger,
	}

	t.lock.Lock()
	defer t.lock.Unlock()

	if _, err := os.Stat(t.path); errors.Is(err, fs.ErrNotExist) {
		if err := t.write(map[string]int{}); err != nil {
			return nil, err
		}
		logger.Info("created topic table", zap.String("path", t.path))
	} else if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return t, nil
}

// Path returns the table location.
func (t *Tracker) Path() string {
	return t.path
}

// Increment adds one to the count of every topic, creating missing ones.
// Duplicates within topics count separately. The whole table is rewritten.
func (t *Tracker) Increment(ctx context.Context, topics []string) error {
	_, span := tracer.Start(ctx, "Tracker.Increment")
	defer span.End()

	span.SetAttributes(attribute.Int("topic_count", len(topics)))

	if len(topics) == 0 {
		return nil
	}

	t.lock.Lock()
	defer t.lock.Unlock()

	counts, err := t.read()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	for _, topic := range topics {
		counts[topic]++
	}
	if err := t.write(counts); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	incrementsTotal.Add(float64(len(topics)))
	span.SetStatus(codes.Ok, "success")
	t.logger.Debug("incremented topics",
		zap.String("path", t.path),
		zap.Strings("topics", topics),
		zap.Int("distinct", len(counts)),
	)
	return nil
}

// Top returns up to n topics by descending count. Equal counts are ordered
// lexicographically. n <= 0 uses the configured default.
func (t *Tracker) Top(ctx context.Context, n int) ([]string, error) {
	_, span := tracer.Start(ctx, "Tracker.Top")
	defer span.End()

	if n <= 0 {
		n = t.defaultN
	}
	span.SetAttributes(attribute.Int("n", n))

	counts, err := t.Counts(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	out := make([]string, 0, len(counts))
	for topic := range counts {
		out = append(out, topic)
	}
	sort.Slice(out, func(i, j int) bool {
		ci, cj := counts[out[i]], counts[out[j]]
		if ci != cj {
			return ci > cj
		}
		return out[i] < out[j]
	})
	if len(out) > n {
		out = out[:n]
	}

	span.SetStatus(codes.Ok, "success")
	return out, nil
}

// Counts returns a snapshot of the table.
func (t *Tracker) Counts(_ context.Context) (map[string]int, error) {
	t.lock.RLock()
	defer t.lock.RUnlock()
	return t.read()
}

// read parses the table. A missing file is an empty table. Caller holds
// the lock.
func (t *Tracker) read() (map[string]int, error) {
	counts := make(map[string]int)

	f, err := os.Open(t.path)
	if errors.Is(err, fs.ErrNotExist) {
		return counts, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(header)

	first := true
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: reading %s: %v", ErrStorageUnavailable, t.path, err)
		}
		if first {
			first = false
			if rec[0] == header[0] && rec[1] == header[1] {
				continue
			}
			return nil, fmt.Errorf("%w: %s has no topic,count header", ErrStorageUnavailable, t.path)
		}
		n, err := strconv.Atoi(rec[1])
		if err != nil || n < 0 {
			return nil, fmt.Errorf("%w: %s: invalid count %q for topic %q", ErrStorageUnavailable, t.path, rec[1], rec[0])
		}
		// Duplicate rows only appear in hand-edited files; they add up.
		counts[rec[0]] += n
	}
	return counts, nil
}

// write replaces the table with counts, sorted by topic. Caller holds the
// write lock.
func (t *Tracker) write(counts map[string]int) error {
	topics := make([]string, 0, len(counts))
	for topic := range counts {
		topics = append(topics, topic)
	}
	sort.Strings(topics)

	dir := filepath.Dir(t.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	f, err := os.CreateTemp(dir, "."+filepath.Base(t.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	tmp := f.Name()
	defer os.Remove(tmp)

	w := csv.NewWriter(f)
	_ = w.Write(header)
	for _, topic := range topics {
		_ = w.Write([]string{topic, strconv.Itoa(counts[topic])})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = f.Close()
		return fmt.Errorf("%w: writing %s: %v", ErrStorageUnavailable, t.path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	if err := os.Rename(tmp, t.path); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return nil
}
