package notionsync

import (
	"time"

	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/dvloznov/finance-ledger/internal/reconciler"
	"github.com/jomei/notionapi"
)

// Property names of the Notion transactions database.
const (
	propDescription   = "Description"
	propTransactionID = "Transaction ID"
	propOwner         = "Owner"
	propDate          = "Date"
	propAmount        = "Amount"
	propSignedAmount  = "Balance Effect"
	propType          = "Type"
	propCategory      = "Category"
	propAccount       = "Account"
	propAccountType   = "Account Type"
	propLastModified  = "Last Modified"
)

func richText(content string) []notionapi.RichText {
	return []notionapi.RichText{
		{
			Type: notionapi.ObjectTypeText,
			Text: &notionapi.Text{
				Content: content,
			},
		},
	}
}

func dateOf(t time.Time) *notionapi.DateObject {
	d := notionapi.Date(t)
	return &notionapi.DateObject{Start: &d}
}

// lastModified renders the change marker stored on each page.
func lastModified(v domain.TransactionView) string {
	return v.UpdatedAt.UTC().Format(time.RFC3339Nano) + "|" + v.AccountName
}

// TransactionToNotionProperties converts a transaction to Notion properties.
// The title is the description, or the category when there is none.
func TransactionToNotionProperties(v domain.TransactionView) notionapi.Properties {
	title := v.Description
	if title == "" {
		title = v.Category
	}

	props := notionapi.Properties{
		propDescription: notionapi.TitleProperty{
			Title: richText(title),
		},
		propTransactionID: notionapi.RichTextProperty{
			RichText: richText(v.ID),
		},
		propOwner: notionapi.RichTextProperty{
			RichText: richText(v.OwnerID),
		},
		propDate: notionapi.DateProperty{
			Date: dateOf(v.Date),
		},
		propAmount: notionapi.NumberProperty{
			Number: v.Amount.InexactFloat64(),
		},
		propSignedAmount: notionapi.NumberProperty{
			Number: reconciler.Effect(v.Type, v.Amount).InexactFloat64(),
		},
		propType: notionapi.SelectProperty{
			Select: notionapi.Option{
				Name: string(v.Type),
			},
		},
		propLastModified: notionapi.RichTextProperty{
			RichText: richText(lastModified(v)),
		},
	}

	if v.Category != "" {
		props[propCategory] = notionapi.SelectProperty{
			Select: notionapi.Option{
				Name: v.Category,
			},
		}
	}

	if v.AccountName != "" {
		props[propAccount] = notionapi.RichTextProperty{
			RichText: richText(v.AccountName),
		}
	}

	if v.AccountType != "" {
		props[propAccountType] = notionapi.SelectProperty{
			Select: notionapi.Option{
				Name: string(v.AccountType),
			},
		}
	}

	return props
}

// plainText returns the first rich-text fragment of a text property.
func plainText(page notionapi.Page, name string) string {
	if prop, ok := page.Properties[name]; ok {
		if rt, ok := prop.(*notionapi.RichTextProperty); ok {
			if len(rt.RichText) > 0 {
				return rt.RichText[0].PlainText
			}
		}
	}
	return ""
}

// extractTransactionID extracts the transaction ID from a Notion page's properties.
// Returns empty string if not found.
func extractTransactionID(page notionapi.Page) string {
	return plainText(page, propTransactionID)
}

func extractLastModified(page notionapi.Page) string {
	return plainText(page, propLastModified)
}

// extractDate returns the page's transaction date, if set.
func extractDate(page notionapi.Page) (time.Time, bool) {
	if prop, ok := page.Properties[propDate]; ok {
		if dp, ok := prop.(*notionapi.DateProperty); ok && dp.Date != nil && dp.Date.Start != nil {
			return time.Time(*dp.Date.Start), true
		}
	}
	return time.Time{}, false
}
