package moodrank

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
)

// reply is one scripted provider answer.
type reply struct {
	content string
	err     error
}

// scriptedProvider answers with replies in order and records every request.
// After the script runs out it repeats the last reply.
type scriptedProvider struct {
	mu      sync.Mutex
	replies []reply
	reqs    []InferenceRequest
}

func newScripted(replies ...reply) *scriptedProvider {
	return &scriptedProvider{replies: replies}
}

func (p *scriptedProvider) Call(ctx context.Context, req *InferenceRequest) (*ProviderResponse, error) {
	p.mu.Lock()
	idx := len(p.reqs)
	p.reqs = append(p.reqs, *req)
	if idx >= len(p.replies) {
		idx = len(p.replies) - 1
	}
	r := p.replies[idx]
	p.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if r.err != nil {
		return nil, r.err
	}
	return &ProviderResponse{Content: r.content, Usage: TokenUsage{Prompt: 100, Completion: 20, Total: 120}, Model: "scripted-1"}, nil
}

func (*scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) calls() []InferenceRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]InferenceRequest, len(p.reqs))
	copy(out, p.reqs)
	return out
}

const validRanking = `{"items":[
	{"id":"a","score":90,"reason":"Stardew Valley is pure Cozy comfort."},
	{"id":"b","score":70,"reason":"Celeste brings Nostalgic pixel climbs."},
	{"id":"c","score":50,"reason":"Hades keeps runs short and punchy."}
]}`

var errNetwork = errors.New("dial tcp: connection refused")

func TestRerankScenarios(t *testing.T) {
	moods := []string{"Cozy", "Nostalgic"}

	t.Run("valid response", func(t *testing.T) {
		provider := newScripted(reply{content: validRanking})
		resp := New(provider).Rerank(context.Background(), moods, testCandidates())

		if resp.Stage != StageDirectParse {
			t.Errorf("Expected direct-parse, got %s", resp.Stage)
		}
		if len(resp.Items) != 3 {
			t.Fatalf("Expected 3 items, got %d", len(resp.Items))
		}
		wantScores := []float64{90, 70, 50}
		for i, id := range []string{"a", "b", "c"} {
			if resp.Items[i].ID != id || resp.Items[i].Score != wantScores[i] {
				t.Errorf("Item %d: expected %s/%v, got %+v", i, id, wantScores[i], resp.Items[i])
			}
		}
		if n := len(provider.calls()); n != 1 {
			t.Errorf("Expected 1 call, got %d", n)
		}
	})

	t.Run("foreign id dropped", func(t *testing.T) {
		raw := `{"items":[
			{"id":"a","score":90,"reason":"Stardew Valley."},
			{"id":"b","score":70,"reason":"Celeste."},
			{"id":"c","score":50,"reason":"Hades."},
			{"id":"d","score":99,"reason":"Made up."}
		]}`
		resp := New(newScripted(reply{content: raw})).Rerank(context.Background(), moods, testCandidates())
		if len(resp.Items) != 3 {
			t.Fatalf("Expected 3 items, got %d", len(resp.Items))
		}
		for _, item := range resp.Items {
			if item.ID == "d" {
				t.Error("Foreign id d in output")
			}
		}
	})

	t.Run("prose-wrapped", func(t *testing.T) {
		provider := newScripted(reply{content: "Sure! " + validRanking + " Have fun!"})
		resp := New(provider).Rerank(context.Background(), moods, testCandidates())

		if resp.Stage != StageRegexExtract {
			t.Errorf("Expected regex-extract, got %s", resp.Stage)
		}
		if len(resp.Items) != 3 || resp.Items[0].Score != 90 {
			t.Errorf("Unexpected items %+v", resp.Items)
		}
		if n := len(provider.calls()); n != 1 {
			t.Errorf("Expected 1 call, got %d", n)
		}
	})

	t.Run("garbage twice", func(t *testing.T) {
		candidates := []Candidate{
			{ID: "a", Title: "Stardew Valley"},
			{ID: "b", Title: "Celeste"},
		}
		provider := newScripted(reply{content: "I cannot help with that."}, reply{content: "Still not JSON"})
		resp := New(provider).Rerank(context.Background(), moods, candidates)

		if resp.Stage != StageLocalFallback {
			t.Errorf("Expected local-fallback, got %s", resp.Stage)
		}
		if n := len(provider.calls()); n != 2 {
			t.Errorf("Expected 2 calls, got %d", n)
		}
		reason := resp.Items[0].Reason
		if !strings.HasPrefix(reason, "Since you're feeling Cozy and Nostalgic,") {
			t.Errorf("Unexpected opener %q", reason)
		}
		if !strings.Contains(reason, "Stardew Valley") {
			t.Errorf("Reason does not name the game: %q", reason)
		}
	})

	t.Run("strict retry recovers", func(t *testing.T) {
		provider := newScripted(reply{content: "Here are my thoughts..."}, reply{content: validRanking})
		resp := New(provider).Rerank(context.Background(), moods, testCandidates())

		if resp.Stage != StageStrictRetry {
			t.Errorf("Expected strict-retry, got %s", resp.Stage)
		}
		calls := provider.calls()
		if len(calls) != 2 {
			t.Fatalf("Expected 2 calls, got %d", len(calls))
		}

		primary, strict := calls[0], calls[1]
		if primary.Temperature != DefaultTemperature || primary.Strict {
			t.Errorf("Unexpected primary request %+v", primary)
		}
		if !primary.JSONMode || primary.MaxTokens != DefaultMaxTokens {
			t.Errorf("Primary request should use JSON mode and %d tokens", DefaultMaxTokens)
		}
		if strict.Temperature != 0 || !strict.Strict || !strict.JSONMode {
			t.Errorf("Unexpected strict request %+v", strict)
		}
		if !strings.HasSuffix(strict.System, StrictDirective) {
			t.Error("Strict request should carry the strict directive")
		}
		if strict.User != primary.User {
			t.Error("Strict request should resend the same user payload")
		}
	})

	t.Run("duplicate reasons", func(t *testing.T) {
		raw := `{"items":[
			{"id":"a","score":90,"reason":"Great pick for today."},
			{"id":"b","score":80,"reason":"Great pick for today."}
		]}`
		resp := New(newScripted(reply{content: raw})).Rerank(context.Background(), moods, testCandidates())
		if !strings.HasSuffix(resp.Items[1].Reason, ` (especially if "Celeste" appeals today)`) {
			t.Errorf("Expected disambiguating suffix, got %q", resp.Items[1].Reason)
		}
	})
}

func TestRerankTransportFailures(t *testing.T) {
	t.Run("both calls fail", func(t *testing.T) {
		provider := newScripted(reply{err: errNetwork})
		resp := New(provider).Rerank(context.Background(), []string{"Cozy"}, testCandidates())

		if resp.Stage != StageLocalFallback {
			t.Errorf("Expected local-fallback, got %s", resp.Stage)
		}
		if len(resp.Items) != 3 {
			t.Errorf("Expected 3 fallback items, got %d", len(resp.Items))
		}
		if n := len(provider.calls()); n != 2 {
			t.Errorf("Expected exactly 2 calls, got %d", n)
		}
	})

	t.Run("primary fails, strict succeeds", func(t *testing.T) {
		provider := newScripted(reply{err: errNetwork}, reply{content: validRanking})
		resp := New(provider).Rerank(context.Background(), []string{"Cozy"}, testCandidates())

		if resp.Stage != StageStrictRetry {
			t.Errorf("Expected strict-retry, got %s", resp.Stage)
		}
	})

	t.Run("primary ok garbage, strict fails", func(t *testing.T) {
		provider := newScripted(reply{content: "nope"}, reply{err: errNetwork})
		resp := New(provider).Rerank(context.Background(), []string{"Cozy"}, testCandidates())

		if resp.Stage != StageLocalFallback {
			t.Errorf("Expected local-fallback, got %s", resp.Stage)
		}
	})

	t.Run("provider panics", func(t *testing.T) {
		provider := NewMockProviderWithCallback(func(*InferenceRequest) (string, error) {
			panic("sdk bug")
		})
		resp := New(provider).Rerank(context.Background(), []string{"Cozy"}, testCandidates())

		if resp.Stage != StageLocalFallback {
			t.Errorf("Expected local-fallback, got %s", resp.Stage)
		}
		if len(resp.Items) != 3 {
			t.Errorf("Expected 3 items, got %d", len(resp.Items))
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		provider := newScripted(reply{content: validRanking})
		resp := New(provider).Rerank(ctx, []string{"Cozy"}, testCandidates())

		if resp.Stage != StageLocalFallback {
			t.Errorf("Expected local-fallback, got %s", resp.Stage)
		}
		if len(resp.Items) != 3 {
			t.Errorf("Expected 3 items, got %d", len(resp.Items))
		}
	})
}

func TestRerankEmptyInput(t *testing.T) {
	t.Run("no candidates", func(t *testing.T) {
		provider := newScripted(reply{content: validRanking})
		resp := New(provider).Rerank(context.Background(), []string{"Cozy"}, nil)

		if resp.Items == nil || len(resp.Items) != 0 {
			t.Errorf("Expected empty non-nil items, got %#v", resp.Items)
		}
		if n := len(provider.calls()); n != 0 {
			t.Errorf("Expected no calls, got %d", n)
		}
	})

	t.Run("no moods", func(t *testing.T) {
		provider := newScripted(reply{err: errNetwork})
		resp := New(provider).Rerank(context.Background(), nil, testCandidates())

		if len(resp.Items) != 3 {
			t.Fatalf("Expected 3 items, got %d", len(resp.Items))
		}
		if !strings.HasPrefix(resp.Items[0].Reason, "Since you're feeling Cozy,") {
			t.Errorf("Expected matched moods opener, got %q", resp.Items[0].Reason)
		}
		if !strings.HasPrefix(resp.Items[2].Reason, "Given your mood,") {
			t.Errorf("Expected generic opener, got %q", resp.Items[2].Reason)
		}
	})

	t.Run("all foreign ids", func(t *testing.T) {
		provider := newScripted(reply{content: `{"items":[{"id":"x","score":1,"reason":"?"}]}`})
		resp := New(provider).Rerank(context.Background(), nil, testCandidates())

		if resp.Stage != StageDirectParse {
			t.Errorf("Expected direct-parse, got %s", resp.Stage)
		}
		if resp.Items == nil || len(resp.Items) != 0 {
			t.Errorf("Expected empty non-nil items, got %#v", resp.Items)
		}
	})
}

func TestRerankJSONRepair(t *testing.T) {
	truncated := `{"items":[{"id":"a","score":80,"reason":"Stardew Valley is cozy."},{"id":"b","score":70`

	t.Run("enabled", func(t *testing.T) {
		provider := newScripted(reply{content: truncated}, reply{content: validRanking})
		rec := New(provider).WithSettings(Settings{JSONRepair: true})
		resp := rec.Rerank(context.Background(), nil, testCandidates())

		if resp.Stage != StageJSONRepair {
			t.Errorf("Expected json-repair, got %s", resp.Stage)
		}
		if n := len(provider.calls()); n != 1 {
			t.Errorf("Expected 1 call, got %d", n)
		}
		if len(resp.Items) == 0 || resp.Items[0].ID != "a" {
			t.Errorf("Unexpected items %+v", resp.Items)
		}
	})

	t.Run("disabled", func(t *testing.T) {
		provider := newScripted(reply{content: truncated}, reply{content: validRanking})
		resp := New(provider).Rerank(context.Background(), nil, testCandidates())

		if resp.Stage != StageStrictRetry {
			t.Errorf("Expected strict-retry, got %s", resp.Stage)
		}
		if n := len(provider.calls()); n != 2 {
			t.Errorf("Expected 2 calls, got %d", n)
		}
	})
}

func TestRecommenderSettings(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		s := New(NewMockProvider()).Settings()
		if s.Temperature == nil || *s.Temperature != DefaultTemperature || s.MaxTokens != DefaultMaxTokens || s.JSONRepair {
			t.Errorf("Unexpected defaults %+v", s)
		}
	})

	t.Run("overrides", func(t *testing.T) {
		provider := newScripted(reply{content: "garbage"})
		temp := float32(0.7)
		rec := New(provider).WithSettings(Settings{Temperature: &temp, MaxTokens: 300})
		rec.Rerank(context.Background(), nil, testCandidates())

		calls := provider.calls()
		if len(calls) != 2 {
			t.Fatalf("Expected 2 calls, got %d", len(calls))
		}
		if calls[0].Temperature != 0.7 || calls[0].MaxTokens != 300 {
			t.Errorf("Unexpected primary request %+v", calls[0])
		}
		if calls[1].Temperature != 0 || calls[1].MaxTokens != 300 {
			t.Errorf("Strict retry must use temperature 0, got %+v", calls[1])
		}
	})

	t.Run("explicit zero temperature", func(t *testing.T) {
		provider := newScripted(reply{content: "garbage"})
		zero := float32(0)
		rec := New(provider).WithSettings(Settings{Temperature: &zero})
		rec.Rerank(context.Background(), nil, testCandidates())

		calls := provider.calls()
		if len(calls) == 0 {
			t.Fatal("Expected a primary call")
		}
		if calls[0].Temperature != 0 {
			t.Errorf("Expected primary temperature 0, got %v", calls[0].Temperature)
		}
		if s := rec.Settings(); *s.Temperature != 0 {
			t.Errorf("Expected effective temperature 0, got %v", *s.Temperature)
		}
	})

	t.Run("pipeline exposed", func(t *testing.T) {
		if New(NewMockProvider()).GetPipeline() == nil {
			t.Error("Expected a pipeline")
		}
	})
}

func TestRerankConcurrent(t *testing.T) {
	provider := NewMockProvider()
	rec := New(provider)

	var wg sync.WaitGroup
	errs := make(chan string, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			candidates := []Candidate{
				{ID: fmt.Sprintf("g%d-a", i), Title: fmt.Sprintf("Game %d A", i)},
				{ID: fmt.Sprintf("g%d-b", i), Title: fmt.Sprintf("Game %d B", i)},
			}
			resp := rec.Rerank(context.Background(), []string{"Cozy"}, candidates)
			if resp.Stage != StageDirectParse {
				errs <- fmt.Sprintf("call %d: stage %s", i, resp.Stage)
				return
			}
			for j, item := range resp.Items {
				if item.ID != candidates[j].ID {
					errs <- fmt.Sprintf("call %d: id %s leaked across requests", i, item.ID)
				}
			}
		}(i)
	}
	wg.Wait()
	close(errs)

	for e := range errs {
		t.Error(e)
	}
	if provider.Calls() != 50 {
		t.Errorf("Expected 50 calls, got %d", provider.Calls())
	}
}

// TestRerankProperties checks the output invariants over a spread of model behaviours.
func TestRerankProperties(t *testing.T) {
	candidates := testCandidates()
	outputs := map[string][]reply{
		"valid":        {{content: validRanking}},
		"prose":        {{content: "Ok! " + validRanking}},
		"out of range": {{content: `{"items":[{"id":"a","score":1e3,"reason":"x"},{"id":"b","score":-50,"reason":"x"},{"id":"c","score":"77","reason":"x"}]}`}},
		"foreign":      {{content: `{"items":[{"id":"q","score":50,"reason":"?"},{"id":"c","score":50,"reason":"Hades."}]}`}},
		"duplicates":   {{content: `{"items":[{"id":"a","score":5,"reason":"Same"},{"id":"b","score":5,"reason":"same"},{"id":"c","score":5,"reason":"SAME"}]}`}},
		"garbage":      {{content: "garbage"}},
		"transport":    {{err: errNetwork}},
		"wrong shape":  {{content: `{"items":{"id":"a"}}`}, {content: `[]`}},
		"strict fixes": {{content: "nope"}, {content: validRanking}},
	}

	known := map[string]string{}
	for _, c := range candidates {
		known[c.ID] = c.Title
	}

	for name, replies := range outputs {
		t.Run(name, func(t *testing.T) {
			resp := New(newScripted(replies...)).Rerank(context.Background(), []string{"Cozy", "Nostalgic"}, candidates)

			if resp.Items == nil {
				t.Fatal("Items must never be nil")
			}
			seen := map[string]bool{}
			for _, item := range resp.Items {
				title, ok := known[item.ID]
				if !ok {
					t.Errorf("Foreign id %q in output", item.ID)
					continue
				}
				if resp.Stage.FromModel() && (item.Score < MinScore || item.Score > MaxScore) {
					t.Errorf("Score %v out of bounds on %s", item.Score, resp.Stage)
				}
				if !strings.Contains(strings.ToLower(item.Reason), strings.ToLower(title)) {
					t.Errorf("Reason %q does not name %q", item.Reason, title)
				}
				if seen[item.Reason] {
					t.Errorf("Duplicate reason %q", item.Reason)
				}
				seen[item.Reason] = true
			}
			if resp.Stage == StageLocalFallback {
				if len(resp.Items) != len(candidates) {
					t.Fatalf("Fallback must be index-aligned: %d items for %d candidates", len(resp.Items), len(candidates))
				}
				for i, item := range resp.Items {
					if item.ID != candidates[i].ID {
						t.Errorf("Fallback item %d: expected %s, got %s", i, candidates[i].ID, item.ID)
					}
				}
			}
		})
	}
}
