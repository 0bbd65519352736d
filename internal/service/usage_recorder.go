package service

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"docs-chat/internal/domain"
)

// OutcomeOK es el resultado de un turno que llegó a abrir el stream.
const OutcomeOK = "ok"

const redisUsageIncrScript = `
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("EXPIRE", KEYS[1], ARGV[1])
end
return current
`

// Outcomes lista los resultados que se cuentan, en orden estable.
var Outcomes = []string{
	OutcomeOK,
	string(domain.CodeInvalidURL),
	string(domain.CodeInvalidDocumentFormat),
	string(domain.CodeDocumentNotFound),
	string(domain.CodeDocumentPrivate),
	string(domain.CodeDocumentTooLarge),
	string(domain.CodeEmptyDocument),
	string(domain.CodeFetchTimeout),
	string(domain.CodeFetchFailed),
	string(domain.CodeMissingField),
	string(domain.CodeInvalidRequest),
	string(domain.CodeRateLimited),
	string(domain.CodeQuotaExceeded),
	string(domain.CodeUpstreamError),
}

// UsageRecorder cuenta resultados de turnos por día. Nunca debe hacer fallar un request.
type UsageRecorder interface {
	Record(ctx context.Context, outcome string)
	Counts(ctx context.Context, day time.Time) (map[string]int64, error)
}

func usageDay(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

type memoryUsageRecorder struct {
	mu     sync.Mutex
	counts map[string]map[string]int64
	now    func() time.Time
}

func NewMemoryUsageRecorder() UsageRecorder {
	return &memoryUsageRecorder{
		counts: make(map[string]map[string]int64),
		now:    time.Now,
	}
}

func (r *memoryUsageRecorder) Record(_ context.Context, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	day := usageDay(r.now())
	if r.counts[day] == nil {
		r.counts[day] = make(map[string]int64)
	}
	r.counts[day][outcome]++
}

func (r *memoryUsageRecorder) Counts(_ context.Context, day time.Time) (map[string]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]int64, len(Outcomes))
	for _, o := range Outcomes {
		out[o] = r.counts[usageDay(day)][o]
	}
	return out, nil
}

type redisUsageClient interface {
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
	MGet(ctx context.Context, keys ...string) *redis.SliceCmd
}

type redisUsageRecorder struct {
	client redisUsageClient
	ttl    time.Duration
	prefix string
	logger *zap.Logger
	now    func() time.Time
}

// NewRedisUsageRecorder guarda los contadores en Redis con expiración ttl.
func NewRedisUsageRecorder(client *redis.Client, ttl time.Duration, logger *zap.Logger) UsageRecorder {
	if client == nil {
		return nil
	}
	return newRedisUsageRecorder(client, ttl, logger)
}

func newRedisUsageRecorder(client redisUsageClient, ttl time.Duration, logger *zap.Logger) *redisUsageRecorder {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &redisUsageRecorder{
		client: client,
		ttl:    ttl,
		prefix: "usage:",
		logger: logger,
		now:    time.Now,
	}
}

func (r *redisUsageRecorder) key(day time.Time, outcome string) string {
	return r.prefix + usageDay(day) + ":" + outcome
}

func (r *redisUsageRecorder) Record(ctx context.Context, outcome string) {
	if r == nil || r.client == nil {
		return
	}
	outcome = strings.TrimSpace(outcome)
	if outcome == "" {
		return
	}
	// El contexto del request puede cancelarse apenas termina el stream.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 500*time.Millisecond)
	defer cancel()

	seconds := int(r.ttl.Seconds())
	if err := r.client.Eval(ctx, redisUsageIncrScript, []string{r.key(r.now(), outcome)}, seconds).Err(); err != nil {
		r.logger.Warn("usage record failed", zap.String("outcome", outcome), zap.Error(err))
	}
}

func (r *redisUsageRecorder) Counts(ctx context.Context, day time.Time) (map[string]int64, error) {
	keys := make([]string, len(Outcomes))
	for i, o := range Outcomes {
		keys[i] = r.key(day, o)
	}
	vals, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	out := make(map[string]int64, len(Outcomes))
	for i, o := range Outcomes {
		out[o] = 0
		if i >= len(vals) || vals[i] == nil {
			continue
		}
		s, ok := vals[i].(string)
		if !ok {
			continue
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			continue
		}
		out[o] = n
	}
	return out, nil
}
