// Package categorizer suggests a transaction category from its description.
package categorizer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dvloznov/finance-ledger/internal/domain"
)

// maxCategoryLen bounds a newly proposed category name.
const maxCategoryLen = 40

// CategoryLister returns the categories a user has already used.
type CategoryLister interface {
	Categories(ctx context.Context, ownerID string) ([]string, error)
}

// Suggestion is a proposed category. Existing reports whether the user has
// used it before.
type Suggestion struct {
	Category string `json:"category"`
	Existing bool   `json:"existing"`
}

// Suggester asks a model to pick a category for a transaction.
type Suggester struct {
	gen        Generator
	categories CategoryLister
}

// NewSuggester creates a Suggester.
func NewSuggester(gen Generator, categories CategoryLister) *Suggester {
	return &Suggester{gen: gen, categories: categories}
}

// Suggest proposes one of the owner's categories for description, or a new
// short one when none fits.
func (s *Suggester) Suggest(ctx context.Context, ownerID, description string, txType domain.TransactionType) (Suggestion, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return Suggestion{}, domain.Invalid("description", "is required")
	}

	known, err := s.categories.Categories(ctx, ownerID)
	if err != nil {
		return Suggestion{}, fmt.Errorf("Suggest: load categories: %w", err)
	}

	raw, err := s.gen.Generate(ctx, buildPrompt(description, txType, known))
	if err != nil {
		return Suggestion{}, fmt.Errorf("Suggest: %w", err)
	}

	var reply struct {
		Category string `json:"category"`
	}
	if err := json.Unmarshal([]byte(cleanModelJSON(raw)), &reply); err != nil {
		return Suggestion{}, fmt.Errorf("Suggest: unmarshal JSON: %w\nraw response: %s", err, raw)
	}

	category := strings.TrimSpace(reply.Category)
	if category == "" {
		return Suggestion{}, fmt.Errorf("Suggest: model returned no category")
	}

	for _, k := range known {
		if strings.EqualFold(k, category) {
			return Suggestion{Category: k, Existing: true}, nil
		}
	}

	if r := []rune(category); len(r) > maxCategoryLen {
		category = string(r[:maxCategoryLen])
	}
	return Suggestion{Category: category}, nil
}

func buildPrompt(description string, txType domain.TransactionType, known []string) string {
	var b strings.Builder

	b.WriteString("You categorize personal finance transactions.\n\n")
	b.WriteString("Transaction:\n")
	fmt.Fprintf(&b, "- description: %q\n", description)
	if txType != "" {
		fmt.Fprintf(&b, "- type: %s\n", txType)
	}

	b.WriteString("\n")
	if len(known) > 0 {
		b.WriteString("Categories already used by this user:\n")
		for _, c := range known {
			fmt.Fprintf(&b, "- %s\n", c)
		}
		b.WriteString("\nPick one of these categories if any fits. ")
	}
	fmt.Fprintf(&b, "Otherwise propose a new category of at most %d characters, in Title Case.\n\n", maxCategoryLen)

	b.WriteString("Return ONLY valid raw JSON of the form {\"category\": \"...\"}.\n")
	b.WriteString("Do NOT wrap the response in code fences.\n")

	return b.String()
}

// cleanModelJSON strips Markdown fences and any text around the JSON object.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	// Handle ```json ... ``` or ``` ... ``` wrappers.
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
		s = strings.TrimSpace(s)
	}

	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}

	s = strings.TrimSpace(s)

	if start := strings.Index(s, "{"); start != -1 {
		if end := strings.LastIndex(s, "}"); end != -1 && end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}

	return s
}
