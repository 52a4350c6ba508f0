// SearchSync - Film Catalog CDC Search Indexing Pipeline
// Copyright 2026 OpenKino contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/openkino/searchsync

package sink

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/goccy/go-json"
	"github.com/sony/gobreaker/v2"

	"github.com/openkino/searchsync/internal/config"
	"github.com/openkino/searchsync/internal/logging"
	"github.com/openkino/searchsync/internal/metrics"
	"github.com/openkino/searchsync/internal/retry"
)

// Document is anything the Writer can upsert: it just has to know its
// own id.
type Document interface {
	DocumentID() string
}

// Writer upserts documents into the search backend via bulk requests.
// Every request runs inside the circuit breaker, and the whole
// breaker-wrapped call sits inside the backoff executor: a tripped
// breaker fails fast, backoff waits it out.
type Writer struct {
	client  *elasticsearch.Client
	exec    *retry.Executor
	breaker *gobreaker.CircuitBreaker[*esapi.Response]
}

// New connects to the search backend and verifies it responds.
func New(ctx context.Context, cfg config.ElasticConfig, exec *retry.Executor) (*Writer, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{cfg.Address()},
		Username:  cfg.User,
		Password:  cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("sink: client: %w", err)
	}

	w := newWriter(client, exec)
	if err := w.Ping(ctx); err != nil {
		return nil, fmt.Errorf("sink: ping: %w", err)
	}
	return w, nil
}

// newWriter wires the breaker around an existing client. Split out so
// tests can inject a stub transport.
func newWriter(client *elasticsearch.Client, exec *retry.Executor) *Writer {
	w := &Writer{client: client, exec: exec}
	w.breaker = gobreaker.NewCircuitBreaker[*esapi.Response](gobreaker.Settings{
		Name: "elasticsearch",
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
			metrics.CircuitBreakerState.WithLabelValues(name).Set(breakerStateValue(to))
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("search backend circuit breaker state change")
		},
	})
	metrics.CircuitBreakerState.WithLabelValues("elasticsearch").Set(breakerStateValue(gobreaker.StateClosed))
	return w
}

// Ping verifies the backend is reachable.
func (w *Writer) Ping(ctx context.Context) error {
	res, err := w.client.Ping(w.client.Ping.WithContext(ctx))
	if err != nil {
		return err
	}
	defer drain(res)
	if res.IsError() {
		return fmt.Errorf("ping status %d", res.StatusCode)
	}
	return nil
}

// EnsureIndices creates the named indices with their bundled mappings.
// An index that already exists is not an error.
func (w *Writer) EnsureIndices(ctx context.Context, names []string) error {
	for _, name := range names {
		body, ok := indexMappings[name]
		if !ok {
			return fmt.Errorf("sink: no mapping bundled for index %q", name)
		}

		err := w.exec.Do(ctx, "sink", func() error {
			res, reqErr := w.breaker.Execute(func() (*esapi.Response, error) {
				return w.client.Indices.Create(name,
					w.client.Indices.Create.WithBody(strings.NewReader(body)),
					w.client.Indices.Create.WithContext(ctx),
				)
			})
			if reqErr != nil {
				return reqErr
			}
			defer drain(res)

			if !res.IsError() {
				logging.Info().Str("index", name).Msg("created search index")
				return nil
			}
			raw, _ := io.ReadAll(res.Body)
			if res.StatusCode == 400 && bytes.Contains(raw, []byte("resource_already_exists_exception")) {
				return nil
			}
			return fmt.Errorf("create index %s: status %d: %s", name, res.StatusCode, raw)
		})
		if err != nil {
			return fmt.Errorf("sink: ensure index %s: %w", name, err)
		}
	}
	return nil
}

// Upsert bulk-indexes the documents into the given index. Re-running the
// same batch is safe: documents are keyed by id and fully replaced.
func (w *Writer) Upsert(ctx context.Context, index string, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}

	body, err := bulkBody(index, docs)
	if err != nil {
		return fmt.Errorf("sink: encode bulk: %w", err)
	}

	start := time.Now()
	defer func() {
		metrics.BulkDuration.WithLabelValues(index).Observe(time.Since(start).Seconds())
	}()

	err = w.exec.Do(ctx, "sink", func() error {
		res, reqErr := w.breaker.Execute(func() (*esapi.Response, error) {
			return w.client.Bulk(bytes.NewReader(body),
				w.client.Bulk.WithContext(ctx),
			)
		})
		if reqErr != nil {
			return reqErr
		}
		defer drain(res)

		if res.IsError() {
			metrics.BulkErrors.WithLabelValues(index).Inc()
			raw, _ := io.ReadAll(res.Body)
			return fmt.Errorf("bulk status %d: %s", res.StatusCode, raw)
		}
		return checkBulkResponse(index, res.Body)
	})
	if err != nil {
		return fmt.Errorf("sink: upsert %d docs into %s: %w", len(docs), index, err)
	}

	metrics.DocumentsUpserted.WithLabelValues(index).Add(float64(len(docs)))
	logging.Debug().Str("index", index).Int("documents", len(docs)).Msg("bulk upsert complete")
	return nil
}

// bulkBody renders the NDJSON bulk payload: one action line and one
// document line per entry.
func bulkBody(index string, docs []Document) ([]byte, error) {
	var buf bytes.Buffer
	for _, doc := range docs {
		action := map[string]map[string]string{
			"index": {"_index": index, "_id": doc.DocumentID()},
		}
		meta, err := json.Marshal(action)
		if err != nil {
			return nil, err
		}
		src, err := json.Marshal(doc)
		if err != nil {
			return nil, err
		}
		buf.Write(meta)
		buf.WriteByte('\n')
		buf.Write(src)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

// checkBulkResponse scans the item-level results. Rejected items are
// logged and counted but never fail the batch: an item rejection
// (mapping conflict, malformed document) is deterministic, so a backoff
// replay would resubmit the identical payload and wedge the drain on
// one poisoned document. The cycle continues; the next modification to
// the affected row retries naturally. Only transport failures and
// non-2xx bulk responses reach the backoff executor.
func checkBulkResponse(index string, body io.Reader) error {
	var parsed struct {
		Errors bool `json:"errors"`
		Items  []map[string]struct {
			ID     string          `json:"_id"`
			Status int             `json:"status"`
			Error  json.RawMessage `json:"error"`
		} `json:"items"`
	}
	if err := json.NewDecoder(body).Decode(&parsed); err != nil {
		return fmt.Errorf("decode bulk response: %w", err)
	}
	if !parsed.Errors {
		return nil
	}

	rejected := 0
	for _, item := range parsed.Items {
		for _, result := range item {
			if result.Status >= 300 {
				rejected++
				errJSON := result.Error
				if len(errJSON) == 0 {
					errJSON = json.RawMessage(`null`)
				}
				logging.Error().
					Str("index", index).
					Str("document_id", result.ID).
					Int("status", result.Status).
					RawJSON("error", errJSON).
					Msg("bulk item rejected, dropping document")
			}
		}
	}
	metrics.BulkErrors.WithLabelValues(index).Add(float64(rejected))
	return nil
}

// drain discards and closes the response body so the underlying
// connection can be reused.
func drain(res *esapi.Response) {
	if res != nil && res.Body != nil {
		_, _ = io.Copy(io.Discard, res.Body)
		res.Body.Close()
	}
}

func breakerStateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	default:
		return 2
	}
}
