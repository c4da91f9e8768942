package agents

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rfp-ai/server/internal/index"
	"github.com/rfp-ai/server/internal/llm"
)

// stubIndex returns the same canned chunk for every query.
type stubIndex struct{}

func (stubIndex) IndexDocument(ctx context.Context, documentID uuid.UUID, chunks []index.Chunk) error {
	return nil
}

func (stubIndex) Query(ctx context.Context, scope uuid.UUID, query string, topK int) ([]index.Result, error) {
	return []index.Result{{
		Chunk: index.Chunk{DocumentID: scope, Index: 0, Text: "the vendor shall deliver within 90 days"},
		Score: 0.9,
	}}, nil
}

// scriptedGenerator answers per system prompt and can be told to fail
// for specific instructions.
type scriptedGenerator struct {
	mu       sync.Mutex
	failFor  map[string]error
	attempts map[string]int
}

func (g *scriptedGenerator) Generate(ctx context.Context, prompt, system string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.attempts == nil {
		g.attempts = make(map[string]int)
	}
	g.attempts[system]++
	if err, ok := g.failFor[system]; ok {
		return "", err
	}
	return "analysis for " + system, nil
}

func (g *scriptedGenerator) Chat(ctx context.Context, messages []llm.Message) (string, error) {
	return "", fmt.Errorf("not used")
}

func testRoster() []Pass {
	return []Pass{
		{Name: "second", Title: "Second Section", Rank: 1, Instructions: "sys-second", Query: "q2"},
		{Name: "first", Title: "First Section", Rank: 0, Mandatory: true, Instructions: "sys-first", Query: "q1"},
		{Name: "third", Title: "Third Section", Rank: 2, Instructions: "sys-third", Query: "q3"},
	}
}

func TestAnalyze_SectionsInRankOrder(t *testing.T) {
	gen := &scriptedGenerator{}
	o := NewOrchestrator(gen, stubIndex{}, testRoster(), Options{Concurrency: 3}, zap.NewNop())

	out, err := o.Analyze(context.Background(), uuid.New(), Workspace{Name: "Acme RFP"})
	require.NoError(t, err)

	first := strings.Index(out, "## First Section")
	second := strings.Index(out, "## Second Section")
	third := strings.Index(out, "## Third Section")
	require.NotEqual(t, -1, first)
	require.NotEqual(t, -1, second)
	require.NotEqual(t, -1, third)
	assert.Less(t, first, second)
	assert.Less(t, second, third)

	assert.Contains(t, out, "analysis for sys-first")
	assert.True(t, strings.HasSuffix(out, "\n"))
}

func TestAnalyze_OptionalFailureBecomesPlaceholder(t *testing.T) {
	gen := &scriptedGenerator{failFor: map[string]error{"sys-third": errors.New("model overloaded")}}
	o := NewOrchestrator(gen, stubIndex{}, testRoster(), Options{MaxRetries: 1}, zap.NewNop())

	out, err := o.Analyze(context.Background(), uuid.New(), Workspace{})
	require.NoError(t, err)

	assert.Contains(t, out, "## Third Section")
	assert.Contains(t, out, "_Analysis unavailable for this section:")
	assert.Contains(t, out, "analysis for sys-second")
}

func TestAnalyze_MandatoryFailureAborts(t *testing.T) {
	gen := &scriptedGenerator{failFor: map[string]error{"sys-first": errors.New("model unavailable")}}
	o := NewOrchestrator(gen, stubIndex{}, testRoster(), Options{MaxRetries: 1}, zap.NewNop())

	out, err := o.Analyze(context.Background(), uuid.New(), Workspace{})
	require.Error(t, err)
	assert.Empty(t, out)

	var mpe *MandatoryPassError
	require.ErrorAs(t, err, &mpe)
	assert.Equal(t, "first", mpe.Pass)
}

func TestAnalyze_RetriesBeforeGivingUp(t *testing.T) {
	gen := &scriptedGenerator{failFor: map[string]error{"sys-first": errors.New("transient")}}
	o := NewOrchestrator(gen, stubIndex{}, testRoster(), Options{MaxRetries: 2}, zap.NewNop())

	_, err := o.Analyze(context.Background(), uuid.New(), Workspace{})
	require.Error(t, err)
	assert.Equal(t, 2, gen.attempts["sys-first"])
}

func TestAnalyze_EmptyRoster(t *testing.T) {
	o := NewOrchestrator(&scriptedGenerator{}, stubIndex{}, nil, Options{}, zap.NewNop())
	_, err := o.Analyze(context.Background(), uuid.New(), Workspace{})
	require.Error(t, err)
}

func TestDefaultRoster_RanksAndMandatory(t *testing.T) {
	roster := DefaultRoster()
	require.Len(t, roster, 12)

	seen := make(map[int]bool)
	mandatory := 0
	for _, p := range roster {
		assert.False(t, seen[p.Rank], "duplicate rank %d", p.Rank)
		seen[p.Rank] = true
		assert.NotEmpty(t, p.Name)
		assert.NotEmpty(t, p.Title)
		assert.NotEmpty(t, p.Instructions)
		assert.NotEmpty(t, p.Query)
		if p.Mandatory {
			mandatory++
		}
	}
	assert.Equal(t, 2, mandatory)
}

func TestFilterRoster(t *testing.T) {
	roster := testRoster()
	filtered := FilterRoster(roster, []string{"third", "first"})
	require.Len(t, filtered, 2)

	names := []string{filtered[0].Name, filtered[1].Name}
	assert.ElementsMatch(t, []string{"first", "third"}, names)

	assert.Equal(t, roster, FilterRoster(roster, nil))
}
