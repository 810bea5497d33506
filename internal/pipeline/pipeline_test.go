package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/nao1215/onionharvest/internal/model"
)

// mockStep is a test helper that implements the Step interface.
type mockStep struct {
	name      string
	doFunc    func(ctx context.Context, doc *model.Document) error
	callCount int
}

// Do implements Step.Do.
func (m *mockStep) Do(ctx context.Context, doc *model.Document) error {
	m.callCount++
	if m.doFunc != nil {
		return m.doFunc(ctx, doc)
	}
	return nil
}

// Name implements Step.Name.
func (m *mockStep) Name() string {
	return m.name
}

// newTestDocument creates a document with a fetched HTML body for tests.
func newTestDocument(body string) *model.Document {
	return &model.Document{
		Target: model.NewTarget("http://aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaam2dqd.onion/"),
		Raw: &model.RawDocument{
			URL:        "http://aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaam2dqd.onion/",
			StatusCode: 200,
			Body:       []byte(body),
			Transport:  model.TransportPrimary,
		},
	}
}

// TestPipelineNew tests the Pipeline constructor.
func TestPipelineNew(t *testing.T) {
	t.Parallel()

	t.Run("creates empty pipeline", func(t *testing.T) {
		t.Parallel()

		p := New()

		if p == nil {
			t.Fatal("expected non-nil pipeline")
		}
		if p.StepCount() != 0 {
			t.Errorf("expected 0 steps, got %d", p.StepCount())
		}
	})

	t.Run("accepts nil logger without panicking", func(t *testing.T) {
		t.Parallel()

		p := New(WithLogger(nil))
		if p == nil {
			t.Fatal("expected non-nil pipeline")
		}
	})
}

// TestNewDefault tests the default step sequence.
func TestNewDefault(t *testing.T) {
	t.Parallel()

	p := NewDefault(1000, 200)

	names := p.StepNames()
	expected := []string{"sanitize", "extract", "chunk"}
	if len(names) != len(expected) {
		t.Fatalf("expected %d steps, got %d", len(expected), len(names))
	}
	for i, name := range names {
		if name != expected[i] {
			t.Errorf("step %d: got %q, expected %q", i, name, expected[i])
		}
	}
}

// TestPipelineExecute tests pipeline execution.
func TestPipelineExecute(t *testing.T) {
	t.Parallel()

	t.Run("executes all steps in order", func(t *testing.T) {
		t.Parallel()

		executionOrder := make([]string, 0)

		p := New()
		p.AddSteps(
			&mockStep{
				name: "step-1",
				doFunc: func(_ context.Context, _ *model.Document) error {
					executionOrder = append(executionOrder, "step-1")
					return nil
				},
			},
			&mockStep{
				name: "step-2",
				doFunc: func(_ context.Context, _ *model.Document) error {
					executionOrder = append(executionOrder, "step-2")
					return nil
				},
			},
		)

		doc := newTestDocument("<html></html>")
		if err := p.Execute(context.Background(), doc); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(executionOrder) != 2 {
			t.Fatalf("expected 2 executions, got %d", len(executionOrder))
		}
		if executionOrder[0] != "step-1" || executionOrder[1] != "step-2" {
			t.Errorf("wrong execution order: %v", executionOrder)
		}
	})

	t.Run("stops on first error", func(t *testing.T) {
		t.Parallel()

		expectedErr := errors.New("step failed")
		step2Called := false

		p := New()
		p.AddSteps(
			&mockStep{
				name: "failing-step",
				doFunc: func(_ context.Context, _ *model.Document) error {
					return expectedErr
				},
			},
			&mockStep{
				name: "should-not-run",
				doFunc: func(_ context.Context, _ *model.Document) error {
					step2Called = true
					return nil
				},
			},
		)

		doc := newTestDocument("<html></html>")
		err := p.Execute(context.Background(), doc)

		if !errors.Is(err, expectedErr) {
			t.Errorf("expected error %v, got %v", expectedErr, err)
		}
		if step2Called {
			t.Error("second step should not have been called")
		}
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		stepCalled := false
		p := New()
		p.AddSteps(&mockStep{
			name: "should-not-run",
			doFunc: func(_ context.Context, _ *model.Document) error {
				stepCalled = true
				return nil
			},
		})

		doc := newTestDocument("<html></html>")
		err := p.Execute(ctx, doc)

		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
		if stepCalled {
			t.Error("step should not have been called")
		}
	})
}

// TestPipelineStepNames tests the StepNames method.
func TestPipelineStepNames(t *testing.T) {
	t.Parallel()

	t.Run("returns empty slice for empty pipeline", func(t *testing.T) {
		t.Parallel()

		p := New()
		if names := p.StepNames(); len(names) != 0 {
			t.Errorf("expected empty slice, got %v", names)
		}
	})

	t.Run("returns names in order", func(t *testing.T) {
		t.Parallel()

		p := New()
		p.AddSteps(
			&mockStep{name: "alpha"},
			&mockStep{name: "beta"},
			&mockStep{name: "gamma"},
		)

		names := p.StepNames()

		if len(names) != 3 {
			t.Fatalf("expected 3 names, got %d", len(names))
		}
		if names[0] != "alpha" || names[1] != "beta" || names[2] != "gamma" {
			t.Errorf("unexpected names: %v", names)
		}
	})
}

// TestDefaultPipelineEndToEnd runs the full default sequence over a
// realistic HTML document.
func TestDefaultPipelineEndToEnd(t *testing.T) {
	t.Parallel()

	html := `<html><head>
		<title>Hidden Wiki</title>
		<script>trackVisitors();</script>
	</head><body>
		<!-- internal note -->
		<h1>Welcome</h1>
		<p>This    page   lists  onion   services.</p>
		<style>.hidden { display: none }</style>
	</body></html>`

	p := NewDefault(1000, 200)
	doc := newTestDocument(html)

	if err := p.Execute(context.Background(), doc); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if doc.Title != "Hidden Wiki" {
		t.Errorf("Title = %q, expected %q", doc.Title, "Hidden Wiki")
	}
	if doc.Text != "Welcome This page lists onion services." {
		t.Errorf("unexpected text: %q", doc.Text)
	}
	if len(doc.Chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(doc.Chunks))
	}
	if doc.Chunks[0].Body != doc.Text {
		t.Errorf("chunk body = %q, expected full text", doc.Chunks[0].Body)
	}
}
