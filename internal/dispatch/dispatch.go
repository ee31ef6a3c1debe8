// Package dispatch expands the configured endpoints and variants into a
// query set for one hunk, runs the queries concurrently against their
// protocol adapters, and collects per-query outcomes. One query's failure
// never blocks or cancels its siblings.
package dispatch

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/remerge-dev/remerge/internal/config"
	"github.com/remerge-dev/remerge/internal/prompt"
	"github.com/remerge-dev/remerge/internal/protocol"
)

// Query is one materialized (endpoint, variant) element of the cross
// product, with fully resolved request parameters. It exists only for the
// duration of one Dispatch call.
type Query struct {
	// Index is the static issue index within the query set. Outcomes carry
	// it so deduplication can order by issue order, not completion order.
	Index int

	Endpoint *config.Endpoint
	Variant  config.Variant

	// Label attributes outcomes: the endpoint name, with the variant name
	// appended unless it is the implicit default.
	Label string

	adapter protocol.Adapter
	params  protocol.Params
	request prompt.Request
}

// SleepFunc waits for d or until ctx is done. Replaceable in tests.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Dispatcher fans one hunk's queries out to all configured endpoints.
// Safe for concurrent use; per-endpoint pacing state is the only mutable
// state and is guarded independently per endpoint.
type Dispatcher struct {
	endpoints []config.Endpoint
	clients   map[string]*http.Client
	pacers    map[string]*pacer
	sleep     SleepFunc
	transport http.RoundTripper
	onEvent   func(Event)
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithSleep replaces the backoff/pacing sleep, letting tests observe delays
// without waiting them out.
func WithSleep(fn SleepFunc) Option {
	return func(d *Dispatcher) { d.sleep = fn }
}

// WithTransport replaces the HTTP transport for every endpoint.
func WithTransport(rt http.RoundTripper) Option {
	return func(d *Dispatcher) { d.transport = rt }
}

// WithEventFunc registers a callback invoked synchronously as queries start
// and finish; it may be nil.
func WithEventFunc(fn func(Event)) Option {
	return func(d *Dispatcher) { d.onEvent = fn }
}

// New creates a Dispatcher over a read-only endpoint set.
func New(endpoints []config.Endpoint, opts ...Option) (*Dispatcher, error) {
	d := &Dispatcher{
		endpoints: endpoints,
		clients:   make(map[string]*http.Client, len(endpoints)),
		pacers:    make(map[string]*pacer, len(endpoints)),
		sleep:     sleepContext,
	}
	for _, opt := range opts {
		opt(d)
	}
	for i := range endpoints {
		ep := &endpoints[i]
		client, err := d.newClient(ep)
		if err != nil {
			return nil, fmt.Errorf("dispatch: endpoint %q: %w", ep.Name, err)
		}
		d.clients[ep.Name] = client
		d.pacers[ep.Name] = &pacer{}
	}
	return d, nil
}

// newClient builds the endpoint's HTTP client. Per-attempt timeouts come
// from the request context, not the client, so retries get a fresh budget.
func (d *Dispatcher) newClient(ep *config.Endpoint) (*http.Client, error) {
	if d.transport != nil {
		return &http.Client{Transport: d.transport}, nil
	}
	if len(ep.RootCAPEM) == 0 {
		return &http.Client{}, nil
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(ep.RootCAPEM) {
		return nil, fmt.Errorf("root certificate PEM contains no certificates")
	}
	return &http.Client{
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{RootCAs: pool},
		},
	}, nil
}

// expand builds the static query list: for each endpoint, one query per
// effective variant, with merged parameters and the variant's context
// options already applied to the neutral request.
func (d *Dispatcher) expand(build prompt.BuilderFunc) ([]Query, error) {
	var queries []Query
	for i := range d.endpoints {
		ep := &d.endpoints[i]
		adapter, err := protocol.New(ep.Kind, ep.NoChat)
		if err != nil {
			return nil, err
		}
		for _, v := range ep.EffectiveVariants() {
			noDiff, asUser := config.EffectiveOptions(ep, &v)
			label := ep.Name
			if v.Name != config.DefaultVariantName {
				label = fmt.Sprintf("%s (%s)", ep.Name, v.Name)
			}
			queries = append(queries, Query{
				Index:    len(queries),
				Endpoint: ep,
				Variant:  v,
				Label:    label,
				adapter:  adapter,
				params: protocol.Params{
					APIKey: ep.APIKey,
					Extra:  mergeParams(ep, &v),
				},
				request: build(prompt.Options{NoDiff: noDiff, AsUserMessage: asUser}),
			})
		}
	}
	return queries, nil
}

// mergeParams layers the request body overrides: model, endpoint baseline
// JSON, variant JSON, then the variant's sampling fields. Variant wins on
// key conflict.
func mergeParams(ep *config.Endpoint, v *config.Variant) map[string]any {
	extra := make(map[string]any)
	if ep.Model != "" {
		extra["model"] = ep.Model
	}
	for k, val := range ep.JSON {
		extra[k] = val
	}
	for k, val := range v.JSON {
		extra[k] = val
	}
	s := v.Sampling
	if s.Temperature != nil {
		extra["temperature"] = *s.Temperature
	}
	if s.TopP != nil {
		extra["top_p"] = *s.TopP
	}
	if s.TopK != nil {
		extra["top_k"] = *s.TopK
	}
	if s.MinP != nil {
		extra["min_p"] = *s.MinP
	}
	if s.ReasoningEffort != "" {
		extra["reasoning_effort"] = s.ReasoningEffort
	}
	return extra
}

// Dispatch runs the full query set for one hunk and returns every outcome
// in static query order. It returns an error only when the query set cannot
// be constructed; query failures surface as failed outcomes, never as an
// error.
func (d *Dispatcher) Dispatch(ctx context.Context, build prompt.BuilderFunc) ([]Outcome, error) {
	queries, err := d.expand(build)
	if err != nil {
		return nil, fmt.Errorf("dispatch: %w", err)
	}

	// One result slot per query; a slot holds several outcomes only for
	// patchpal beams. Slots make partial failure a local affair: nothing
	// here cancels a sibling.
	results := make([][]Outcome, len(queries))
	var g errgroup.Group
	for i := range queries {
		q := &queries[i]
		g.Go(func() error {
			results[q.Index] = d.runQuery(ctx, q)
			return nil
		})
	}
	g.Wait()

	var outcomes []Outcome
	for _, r := range results {
		outcomes = append(outcomes, r...)
	}
	return outcomes, nil
}

// runQuery drives one query to a terminal state: pacing, attempt, and
// retry with exponential backoff clamped at the endpoint's maxDelay.
func (d *Dispatcher) runQuery(ctx context.Context, q *Query) []Outcome {
	ep := q.Endpoint
	d.emit(Event{Label: q.Label, Phase: PhaseStart})

	start := time.Now()
	var lastErr error
	for attempt := 0; ; attempt++ {
		if wait := d.pacers[ep.Name].reserve(ep.Wait.Std()); wait > 0 {
			if err := d.sleep(ctx, wait); err != nil {
				lastErr = err
				break
			}
		}

		texts, err := d.attempt(ctx, q)
		if err == nil {
			duration := time.Since(start)
			d.emit(Event{Label: q.Label, Phase: PhaseSuccess, Duration: duration, Attempts: attempt + 1})
			return beamOutcomes(q, texts, duration, attempt+1)
		}
		lastErr = err

		if _, retryable := classify(err); !retryable || attempt >= ep.Retries {
			break
		}
		d.emit(Event{Label: q.Label, Phase: PhaseRetry, Err: err, Attempts: attempt + 1})

		backoff := backoffDelay(ep.Delay.Std(), ep.MaxDelay.Std(), attempt)
		if err := d.sleep(ctx, backoff); err != nil {
			lastErr = err
			break
		}
	}

	duration := time.Since(start)
	kind, _ := classify(lastErr)
	d.emit(Event{Label: q.Label, Phase: PhaseFailure, Err: lastErr, Duration: duration})
	return []Outcome{{
		Index:    q.Index,
		Label:    q.Label,
		Err:      lastErr,
		Kind:     kind,
		Duration: duration,
	}}
}

// backoffDelay computes the wait before retry attempt+1: delay doubled per
// completed attempt, clamped at maxDelay.
func backoffDelay(delay, maxDelay time.Duration, attempt int) time.Duration {
	const maxShift = 32
	if attempt > maxShift {
		attempt = maxShift
	}
	backoff := delay << uint(attempt)
	if backoff > maxDelay || backoff <= 0 {
		backoff = maxDelay
	}
	return backoff
}

// attempt performs a single wire exchange under the endpoint's per-attempt
// timeout and decodes the response.
func (d *Dispatcher) attempt(ctx context.Context, q *Query) ([]string, error) {
	ep := q.Endpoint

	body, err := q.adapter.Encode(q.request, q.params)
	if err != nil {
		return nil, &encodeError{err: err}
	}

	attemptCtx, cancel := context.WithTimeout(ctx, ep.Timeout.Std())
	defer cancel()

	httpReq, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, ep.URL, bytes.NewReader(body))
	if err != nil {
		return nil, &encodeError{err: err}
	}
	httpReq.Header = q.adapter.Headers(q.params)
	for k, v := range ep.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := d.clients[ep.Name].Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &httpStatusError{code: resp.StatusCode, body: truncate(respBody, 2048)}
	}
	return q.adapter.Decode(respBody)
}

// beamOutcomes turns one successful response into outcomes. A multi-beam
// patchpal answer yields one outcome per beam, labeled with its 1-based
// rank; single answers keep the plain query label.
func beamOutcomes(q *Query, texts []string, duration time.Duration, attempts int) []Outcome {
	outcomes := make([]Outcome, 0, len(texts))
	for i, text := range texts {
		label := q.Label
		if len(texts) > 1 {
			label = fmt.Sprintf("%s#%d", q.Label, i+1)
		}
		outcomes = append(outcomes, Outcome{
			Index:    q.Index,
			Label:    label,
			Text:     text,
			Duration: duration,
			Attempts: attempts,
		})
	}
	return outcomes
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		b = b[:n]
	}
	return string(b)
}

// sleepContext is the default SleepFunc.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (d *Dispatcher) emit(ev Event) {
	if d.onEvent != nil {
		d.onEvent(ev)
	}
}
