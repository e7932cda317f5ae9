// Package publish stores built metamodels in Redis so generators on other
// machines can fetch the latest one for a package.
package publish

import (
	"context"
	stderrors "errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/conduit-lang/apiextractor/internal/report"
)

// DefaultPrefix is prepended to every key.
const DefaultPrefix = "apiextractor:"

// ErrNotFound is returned when no metamodel is stored under a key.
var ErrNotFound = stderrors.New("metamodel not found")

// Publisher writes metamodels to Redis. Keys are
//
//	<prefix>metamodel:<package>:<run id>   gzipped metamodel JSON
//	<prefix>metamodel:<package>:latest     run id of the newest publish
//	<prefix>metamodel:<package>:runs       sorted set of run ids by publish time
type Publisher struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

// Run is one published metamodel.
type Run struct {
	ID          string
	PublishedAt time.Time
}

// New creates a publisher over an existing client. A zero ttl keeps
// metamodels forever.
func New(client *redis.Client, prefix string, ttl time.Duration) *Publisher {
	return &Publisher{
		client: client,
		prefix: prefix,
		ttl:    ttl,
		now:    time.Now,
	}
}

// Connect parses a redis:// URL, checks the server answers and returns a
// publisher over it.
func Connect(ctx context.Context, url, prefix string, ttl time.Duration) (*Publisher, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return New(client, prefix, ttl), nil
}

// Close closes the underlying client.
func (p *Publisher) Close() error {
	return p.client.Close()
}

func (p *Publisher) key(pkg, suffix string) string {
	return p.prefix + "metamodel:" + pkg + ":" + suffix
}

// Publish stores m for pkg and makes it the latest. It returns the key the
// metamodel was stored under.
func (p *Publisher) Publish(ctx context.Context, m *report.Metamodel, pkg string) (string, error) {
	if m == nil {
		return "", fmt.Errorf("metamodel cannot be nil")
	}
	if m.RunID == "" {
		return "", fmt.Errorf("metamodel has no run id")
	}
	if pkg == "" {
		pkg = PackageOf(m)
	}

	data, err := report.Serialize(m)
	if err != nil {
		return "", err
	}
	compressed, err := report.Compress(data)
	if err != nil {
		return "", err
	}

	now := p.now()
	runKey := p.key(pkg, m.RunID)
	runsKey := p.key(pkg, "runs")
	_, err = p.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, runKey, compressed, p.ttl)
		pipe.Set(ctx, p.key(pkg, "latest"), m.RunID, p.ttl)
		pipe.ZAdd(ctx, runsKey, redis.Z{Score: float64(now.Unix()), Member: m.RunID})
		if p.ttl > 0 {
			// Runs whose metamodel has expired leave the index too.
			cutoff := now.Add(-p.ttl).Unix()
			pipe.ZRemRangeByScore(ctx, runsKey, "-inf", "("+strconv.FormatInt(cutoff, 10))
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to publish metamodel: %w", err)
	}
	return runKey, nil
}

// Fetch returns the metamodel of one run.
func (p *Publisher) Fetch(ctx context.Context, pkg, runID string) (*report.Metamodel, error) {
	data, err := p.client.Get(ctx, p.key(pkg, runID)).Bytes()
	if err != nil {
		if stderrors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: %s run %s", ErrNotFound, pkg, runID)
		}
		return nil, fmt.Errorf("failed to fetch metamodel: %w", err)
	}
	data, err = report.Decompress(data)
	if err != nil {
		return nil, err
	}
	return report.Deserialize(data)
}

// Latest returns the newest metamodel published for pkg.
func (p *Publisher) Latest(ctx context.Context, pkg string) (*report.Metamodel, error) {
	runID, err := p.client.Get(ctx, p.key(pkg, "latest")).Result()
	if err != nil {
		if stderrors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: %s has no published run", ErrNotFound, pkg)
		}
		return nil, fmt.Errorf("failed to read latest run: %w", err)
	}
	return p.Fetch(ctx, pkg, runID)
}

// Runs lists the runs published for pkg, newest first.
func (p *Publisher) Runs(ctx context.Context, pkg string) ([]Run, error) {
	entries, err := p.client.ZRevRangeWithScores(ctx, p.key(pkg, "runs"), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	runs := make([]Run, 0, len(entries))
	for _, e := range entries {
		id, _ := e.Member.(string)
		runs = append(runs, Run{ID: id, PublishedAt: time.Unix(int64(e.Score), 0)})
	}
	return runs, nil
}

// PackageOf returns the package of the first class that has one, or
// "default".
func PackageOf(m *report.Metamodel) string {
	for _, list := range [][]report.ClassReport{m.Classes, m.Templates, m.SmartPointers} {
		for _, c := range list {
			if c.Package != "" {
				return c.Package
			}
		}
	}
	return "default"
}
