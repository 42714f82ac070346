package categorizer

import (
	"context"
	"errors"
	"testing"

	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockGenerator returns a canned reply and records the prompt it saw.
type MockGenerator struct {
	Reply  string
	Err    error
	prompt string
}

func (m *MockGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	m.prompt = prompt
	return m.Reply, m.Err
}

type staticCategories []string

func (s staticCategories) Categories(ctx context.Context, ownerID string) ([]string, error) {
	return s, nil
}

func TestSuggestPicksExistingCategory(t *testing.T) {
	gen := &MockGenerator{Reply: "```json\n{\"category\": \"groceries\"}\n```"}
	s := NewSuggester(gen, staticCategories{"Groceries", "Rent"})

	got, err := s.Suggest(context.Background(), "u1", "TESCO STORES 2291", domain.TransactionTypeExpense)
	require.NoError(t, err)

	assert.Equal(t, Suggestion{Category: "Groceries", Existing: true}, got)
	assert.Contains(t, gen.prompt, "- Groceries")
	assert.Contains(t, gen.prompt, `"TESCO STORES 2291"`)
	assert.Contains(t, gen.prompt, "type: Expense")
}

func TestSuggestProposesNewCategory(t *testing.T) {
	gen := &MockGenerator{Reply: `Sure! {"category": "Pet Care"}`}
	s := NewSuggester(gen, staticCategories{"Rent"})

	got, err := s.Suggest(context.Background(), "u1", "Vet visit", "")
	require.NoError(t, err)
	assert.Equal(t, Suggestion{Category: "Pet Care"}, got)
}

func TestSuggestErrors(t *testing.T) {
	tests := []struct {
		name        string
		description string
		gen         *MockGenerator
		validation  bool
	}{
		{"empty description", "  ", &MockGenerator{}, true},
		{"model failure", "coffee", &MockGenerator{Err: errors.New("quota")}, false},
		{"not json", "coffee", &MockGenerator{Reply: "Coffee"}, false},
		{"blank category", "coffee", &MockGenerator{Reply: `{"category": " "}`}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSuggester(tt.gen, staticCategories{}).Suggest(context.Background(), "u1", tt.description, "")
			require.Error(t, err)
			assert.Equal(t, tt.validation, errors.Is(err, domain.ErrValidation))
		})
	}
}

func TestCleanModelJSON(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`{"category":"Food"}`, `{"category":"Food"}`},
		{"```json\n{\"category\":\"Food\"}\n```", `{"category":"Food"}`},
		{"Here you go: {\"category\":\"Food\"} hope it helps", `{"category":"Food"}`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, cleanModelJSON(tt.in))
	}
}
