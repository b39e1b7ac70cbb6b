package tiers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"subscription-intake/internal/benchmarks"
	"subscription-intake/internal/models"
)

func testEngine(t *testing.T) *Engine {
	t.Helper()
	c, err := benchmarks.NewCatalog([]models.Benchmark{
		{Name: "Figma", Plans: []string{"Starter", "Professional", "Organization", "Enterprise"}},
		{Name: "Notion", Plans: []string{"Plus", "Business"}},
		{Name: "Slack", Plans: []string{"Pro", "Business+", "Enterprise Grid"}},
		{Name: "Google Workspace", Aliases: []string{"gsuite"}, Plans: []string{"Business Starter", "Business Standard", "Business Plus"}},
	})
	require.NoError(t, err)
	return NewEngine(c)
}

func TestPick(t *testing.T) {
	four := []string{"A", "B", "C", "D"}
	three := []string{"A", "B", "C"}
	two := []string{"A", "B"}

	tests := []struct {
		name    string
		tier    Tier
		options []string
		want    []string
	}{
		{"low takes first", TierLow, four, []string{"A"}},
		{"top takes last", TierTop, four, []string{"D"}},
		{"mid of four takes lower middle", TierMid, four, []string{"B"}},
		{"mid of three takes true middle", TierMid, three, []string{"B"}},
		{"mid of two is ambiguous", TierMid, two, []string{"A", "B"}},
		{"mid of one", TierMid, []string{"A"}, []string{"A"}},
		{"no options", TierTop, nil, nil},
		{"no tier", TierNone, four, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Pick(tt.tier, tt.options))
		})
	}
}

func TestSuggest_MidTierForFigmaAndNotion(t *testing.T) {
	e := testEngine(t)

	got := e.Suggest(context.Background(), "mid tier for Figma and Notion", []string{"Figma", "Notion"})

	assert.Equal(t, map[string][]string{
		"Figma":  {"Professional"},
		"Notion": {"Plus", "Business"},
	}, got)
}

func TestSuggest_Statements(t *testing.T) {
	e := testEngine(t)
	missing := []string{"Figma", "Notion", "Slack"}

	tests := []struct {
		name    string
		message string
		want    map[string][]string
	}{
		{
			name:    "collective target",
			message: "mid tier for all of them",
			want:    map[string][]string{"Figma": {"Professional"}, "Notion": {"Plus", "Business"}, "Slack": {"Business+"}},
		},
		{
			name:    "explicit then rest",
			message: "Top for Slack, lowest plan for the rest",
			want:    map[string][]string{"Slack": {"Enterprise Grid"}, "Figma": {"Starter"}, "Notion": {"Plus"}},
		},
		{
			name:    "two statements",
			message: "enterprise on Figma & entry level for Notion",
			want:    map[string][]string{"Figma": {"Enterprise"}, "Notion": {"Plus"}},
		},
		{
			name:    "nearest bare tier word",
			message: "Slack top, Notion mid",
			want:    map[string][]string{"Slack": {"Enterprise Grid"}, "Notion": {"Plus", "Business"}},
		},
		{
			name:    "no tier words",
			message: "we use Slack a lot",
			want:    nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, e.Suggest(context.Background(), tt.message, missing))
		})
	}
}

func TestSuggest_OnlyMissingTools(t *testing.T) {
	e := testEngine(t)

	got := e.Suggest(context.Background(), "top tier for Slack and Figma", []string{"Figma"})
	assert.Equal(t, map[string][]string{"Figma": {"Enterprise"}}, got)

	assert.Nil(t, e.Suggest(context.Background(), "top tier for Slack", nil))
}

func TestSuggest_TargetResolvedThroughAlias(t *testing.T) {
	e := testEngine(t)

	got := e.Suggest(context.Background(), "middle tier for gsuite", []string{"Google Workspace"})
	assert.Equal(t, map[string][]string{"Google Workspace": {"Business Standard"}}, got)
}

func TestSuggest_UnknownLadder(t *testing.T) {
	e := NewEngine(nil)
	assert.Nil(t, e.Suggest(context.Background(), "mid tier for Loom", []string{"Loom"}))
}

func TestAssign(t *testing.T) {
	exact := func(target, tool string) bool { return benchmarks.Key(target) == benchmarks.Key(tool) }

	got := Assign("bottom for A, highest tier for B", []string{"A", "B", "C"}, exact)
	assert.Equal(t, map[string]Tier{"A": TierLow, "B": TierTop}, got)
	assert.Equal(t, "top", got["B"].String())
}
