package generator

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kauntdewn1/neo-prompts/internal/domain"
)

func batchRequests(prompts ...string) []domain.GenerationRequest {
	reqs := make([]domain.GenerationRequest, len(prompts))
	for i, prompt := range prompts {
		req := validRequest()
		req.Prompt = prompt
		reqs[i] = req
	}
	return reqs
}

func TestRunBatchPreservesInputOrder(t *testing.T) {
	delays := map[string]time.Duration{
		"the slowest prompt of the whole batch run": 30 * time.Millisecond,
		"a middling prompt that takes a short while": 15 * time.Millisecond,
		"the fastest prompt that finishes first out": 0,
	}
	client := &stubClient{}
	client.submitFn = func(req domain.GenerationRequest) (string, error) {
		time.Sleep(delays[req.Prompt])
		return "operations/" + req.Prompt[:4], nil
	}
	gen, _ := newTestGenerator(t, client)

	reqs := batchRequests(
		"the slowest prompt of the whole batch run",
		"a middling prompt that takes a short while",
		"the fastest prompt that finishes first out",
	)
	report := gen.RunBatch(context.Background(), reqs, 3)

	if len(report.Items) != len(reqs) {
		t.Fatalf("items = %d, want %d", len(report.Items), len(reqs))
	}
	for i, item := range report.Items {
		if item.Prompt != reqs[i].Prompt {
			t.Fatalf("items[%d].Prompt = %q, want %q", i, item.Prompt, reqs[i].Prompt)
		}
	}
	if report.Succeeded != 3 || report.Failed != 0 || report.Cancelled != 0 {
		t.Fatalf("tally = %d/%d/%d, want 3/0/0", report.Succeeded, report.Failed, report.Cancelled)
	}
}

func TestRunBatchHonoursConcurrencyCeiling(t *testing.T) {
	var mu sync.Mutex
	inFlight, maxSeen := 0, 0

	client := &stubClient{}
	client.submitFn = func(req domain.GenerationRequest) (string, error) {
		mu.Lock()
		inFlight++
		if inFlight > maxSeen {
			maxSeen = inFlight
		}
		mu.Unlock()
		time.Sleep(20 * time.Millisecond)
		mu.Lock()
		inFlight--
		mu.Unlock()
		return "operations/ceiling", nil
	}
	gen, _ := newTestGenerator(t, client)

	reqs := batchRequests(
		"first prompt in the ceiling checking batch",
		"second prompt in the ceiling checking batch",
		"third prompt in the ceiling checking batch",
		"fourth prompt in the ceiling checking batch",
		"fifth prompt in the ceiling checking batch",
		"sixth prompt in the ceiling checking batch",
	)
	report := gen.RunBatch(context.Background(), reqs, 2)

	if report.Succeeded != 6 {
		t.Fatalf("succeeded = %d, want 6", report.Succeeded)
	}
	mu.Lock()
	defer mu.Unlock()
	if maxSeen > 2 {
		t.Fatalf("max in flight = %d, want at most 2", maxSeen)
	}
	if maxSeen < 2 {
		t.Fatalf("max in flight = %d, batch never overlapped work", maxSeen)
	}
}

func TestRunBatchIsolatesFailures(t *testing.T) {
	client := &stubClient{}
	client.submitFn = func(req domain.GenerationRequest) (string, error) {
		if strings.Contains(req.Prompt, "poisoned") {
			return "", domain.NewProviderError(400, "rejected prompt")
		}
		return "operations/ok", nil
	}
	gen, _ := newTestGenerator(t, client)

	reqs := batchRequests(
		"first healthy prompt in the mixed batch run",
		"the poisoned prompt that the provider rejects",
		"second healthy prompt in the mixed batch run",
	)
	report := gen.RunBatch(context.Background(), reqs, 2)

	if report.Succeeded != 2 || report.Failed != 1 {
		t.Fatalf("tally = %d/%d, want 2 succeeded and 1 failed", report.Succeeded, report.Failed)
	}
	if report.Items[1].State != domain.StateFailed {
		t.Fatalf("items[1].State = %q, want failed", report.Items[1].State)
	}
	if report.Items[0].State != domain.StateSucceeded || report.Items[2].State != domain.StateSucceeded {
		t.Fatalf("healthy items did not succeed: %q, %q", report.Items[0].State, report.Items[2].State)
	}
}

func TestRunBatchCancellationMarksRemainder(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := &stubClient{}
	client.submitFn = func(req domain.GenerationRequest) (string, error) {
		if strings.Contains(req.Prompt, "second") {
			cancel()
			return "", context.Canceled
		}
		return "operations/ok", nil
	}
	gen, _ := newTestGenerator(t, client)

	reqs := batchRequests(
		"first prompt which completes before the stop",
		"second prompt during which the user interrupts",
		"third prompt which never gets to start at all",
	)
	report := gen.RunBatch(ctx, reqs, 1)

	if len(report.Items) != 3 {
		t.Fatalf("items = %d, want 3", len(report.Items))
	}
	if report.Items[0].State != domain.StateSucceeded {
		t.Fatalf("items[0].State = %q, want succeeded", report.Items[0].State)
	}
	if report.Items[1].State != domain.StateCancelled {
		t.Fatalf("items[1].State = %q, want cancelled", report.Items[1].State)
	}
	if report.Items[2].State != domain.StateCancelled {
		t.Fatalf("items[2].State = %q, want cancelled", report.Items[2].State)
	}
	if report.Succeeded != 1 || report.Cancelled != 2 {
		t.Fatalf("tally = %d succeeded, %d cancelled, want 1 and 2", report.Succeeded, report.Cancelled)
	}
}

func TestLoadBatchFileSkipsCommentsAndBlanks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompts.txt")
	content := strings.Join([]string{
		"# test fixtures for the batch loader",
		"",
		"A lighthouse keeper climbing the spiral stairs at dusk",
		"   ",
		"# trailing note",
		"A paper boat drifting down a rain soaked gutter stream",
		"",
	}, "\n")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	prompts, err := LoadBatchFile(path)
	if err != nil {
		t.Fatalf("LoadBatchFile() error = %v", err)
	}
	want := []string{
		"A lighthouse keeper climbing the spiral stairs at dusk",
		"A paper boat drifting down a rain soaked gutter stream",
	}
	if len(prompts) != len(want) {
		t.Fatalf("prompts = %d, want %d", len(prompts), len(want))
	}
	for i := range want {
		if prompts[i] != want[i] {
			t.Fatalf("prompts[%d] = %q, want %q", i, prompts[i], want[i])
		}
	}
}

func TestLoadBatchFileRejectsEmptyFiles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.txt")
	if err := os.WriteFile(path, []byte("# only a comment\n\n"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	if _, err := LoadBatchFile(path); domain.ReasonOf(err) != domain.ReasonConfig {
		t.Fatalf("empty file error = %v, want config reason", err)
	}

	if _, err := LoadBatchFile(filepath.Join(t.TempDir(), "missing.txt")); domain.ReasonOf(err) != domain.ReasonConfig {
		t.Fatalf("missing file error = %v, want config reason", err)
	}
}
