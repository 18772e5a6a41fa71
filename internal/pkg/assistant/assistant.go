// Package assistant produces note summaries and study plans with a
// generative model. Every call returns text: failures degrade to fixed
// fallback messages.
package assistant

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/yigit/unilife/internal/pkg/metrics"
)

// Generator turns a prompt into text.
type Generator interface {
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)
}

// GenerateOptions tune a single generation.
type GenerateOptions struct {
	// DisableThinking skips the model's reasoning phase for faster replies
	DisableThinking bool
}

type kind struct {
	name   string
	prompt string
	empty  string
	failed string
	opts   GenerateOptions
}

var (
	summaryKind = kind{
		name:   "summary",
		prompt: "Riassumi brevemente ed estrai i punti chiave di questo appunto universitario: %s",
		empty:  "Impossibile generare il riassunto.",
		failed: "Errore durante l'elaborazione del riassunto.",
		opts:   GenerateOptions{DisableThinking: true},
	}
	planKind = kind{
		name:   "study_plan",
		prompt: "Crea un piano di studio rapido in 5 step per il seguente argomento universitario: %s",
		empty:  "Nessun suggerimento disponibile.",
		failed: "Errore nella generazione del piano di studio.",
	}
)

// Config for the assistant
type Config struct {
	Timeout  time.Duration
	CacheTTL time.Duration
}

// Assistant wraps a Generator with a timeout, a result cache and
// collapsing of identical concurrent requests.
type Assistant struct {
	gen     Generator
	config  Config
	logger  zerolog.Logger
	metrics *metrics.Metrics
	cache   *ttlcache.Cache[string, string]
	group   singleflight.Group
}

// New creates an assistant. A nil gen yields a disabled assistant that only
// returns fallbacks. The cache's janitor runs until ctx is done.
func New(ctx context.Context, gen Generator, config Config, m *metrics.Metrics, logger zerolog.Logger) *Assistant {
	if config.Timeout <= 0 {
		config.Timeout = 20 * time.Second
	}
	if config.CacheTTL <= 0 {
		config.CacheTTL = 30 * time.Minute
	}

	cache := ttlcache.New[string, string](
		ttlcache.WithTTL[string, string](config.CacheTTL),
		ttlcache.WithCapacity[string, string](1_000),
		ttlcache.WithDisableTouchOnHit[string, string](),
	)
	go cache.Start()
	go func() {
		<-ctx.Done()
		cache.Stop()
	}()

	return &Assistant{
		gen:     gen,
		config:  config,
		logger:  logger,
		metrics: m,
		cache:   cache,
	}
}

// Enabled reports whether a generator is configured.
func (a *Assistant) Enabled() bool {
	return a.gen != nil
}

// Summarize returns a short summary with the key points of a note.
func (a *Assistant) Summarize(ctx context.Context, content string) string {
	return a.run(ctx, summaryKind, content)
}

// SuggestPlan returns a five step study plan for topic.
func (a *Assistant) SuggestPlan(ctx context.Context, topic string) string {
	return a.run(ctx, planKind, topic)
}

// SummarizeAsync runs Summarize in the background. The channel receives
// exactly one value.
func (a *Assistant) SummarizeAsync(ctx context.Context, content string) <-chan string {
	return a.async(func() string { return a.Summarize(ctx, content) })
}

// SuggestPlanAsync runs SuggestPlan in the background. The channel receives
// exactly one value.
func (a *Assistant) SuggestPlanAsync(ctx context.Context, topic string) <-chan string {
	return a.async(func() string { return a.SuggestPlan(ctx, topic) })
}

func (a *Assistant) async(fn func() string) <-chan string {
	out := make(chan string, 1)
	go func() {
		out <- fn()
	}()
	return out
}

func (a *Assistant) run(ctx context.Context, k kind, input string) string {
	input = strings.TrimSpace(input)
	log := a.logger.With().Str("kind", k.name).Logger()

	if input == "" {
		a.metrics.AssistantCall(k.name, "fallback")
		return k.empty
	}
	if a.gen == nil {
		log.Debug().Msg("Assistant disabled, returning fallback")
		a.metrics.AssistantCall(k.name, "fallback")
		return k.failed
	}

	key := k.name + "\x00" + input
	if item := a.cache.Get(key); item != nil {
		a.metrics.AssistantCall(k.name, "cached")
		return item.Value()
	}

	// The shared call outlives any single caller; each caller still stops
	// waiting when its own context ends.
	results := a.group.DoChan(key, func() (interface{}, error) {
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.config.Timeout)
		defer cancel()

		start := time.Now()
		text, err := a.gen.Generate(callCtx, fmt.Sprintf(k.prompt, input), k.opts)
		if err != nil {
			log.Error().Err(err).Dur("elapsed", time.Since(start)).Msg("Generation failed")
			a.metrics.AssistantCall(k.name, "fallback")
			return k.failed, nil
		}
		text = strings.TrimSpace(text)
		if text == "" {
			log.Warn().Msg("Generation returned no text")
			a.metrics.AssistantCall(k.name, "fallback")
			return k.empty, nil
		}

		a.cache.Set(key, text, ttlcache.DefaultTTL)
		a.metrics.AssistantCall(k.name, "ok")
		log.Debug().Dur("elapsed", time.Since(start)).Int("chars", len(text)).Msg("Generated text")
		return text, nil
	})

	select {
	case res := <-results:
		return res.Val.(string)
	case <-ctx.Done():
		a.metrics.AssistantCall(k.name, "fallback")
		return k.failed
	}
}
