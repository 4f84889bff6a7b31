package notionsync

import (
	"time"

	"github.com/dvloznov/finchat/internal/domain"
	"github.com/jomei/notionapi"
)

// Notion property names of the transactions database.
const (
	PropDescription   = "Description"
	PropTransactionID = "Transaction ID"
	PropAccountID     = "Account ID"
	PropAccount       = "Account"
	PropDate          = "Date"
	PropAmount        = "Amount"
	PropType          = "Type"
	PropCurrency      = "Currency"
	PropCategory      = "Category"
	PropSource        = "Source"
	PropImportedAt    = "Imported At"
)

// TransactionToNotionProperties converts a transaction to Notion page
// properties. categoryName may be empty.
func TransactionToNotionProperties(tx domain.Transaction, account domain.Account, categoryName string) notionapi.Properties {
	date := notionapi.Date(time.Date(tx.Date.Year(), tx.Date.Month(), tx.Date.Day(), 0, 0, 0, 0, time.UTC))
	props := notionapi.Properties{
		PropDescription: notionapi.TitleProperty{
			Title: []notionapi.RichText{richText(tx.Description)},
		},
		PropTransactionID: notionapi.RichTextProperty{
			RichText: []notionapi.RichText{richText(tx.ID)},
		},
		PropAccountID: notionapi.RichTextProperty{
			RichText: []notionapi.RichText{richText(tx.AccountID)},
		},
		PropDate: notionapi.DateProperty{
			Date: &notionapi.DateObject{Start: &date},
		},
		PropAmount: notionapi.NumberProperty{
			Number: tx.Amount.InexactFloat64(),
		},
		PropType: notionapi.SelectProperty{
			Select: notionapi.Option{Name: typeName(tx.Type)},
		},
	}

	if account.Name != "" {
		props[PropAccount] = notionapi.SelectProperty{
			Select: notionapi.Option{Name: account.Name},
		}
	}
	if account.Currency != "" {
		props[PropCurrency] = notionapi.SelectProperty{
			Select: notionapi.Option{Name: account.Currency},
		}
	}
	if categoryName != "" {
		props[PropCategory] = notionapi.SelectProperty{
			Select: notionapi.Option{Name: categoryName},
		}
	}
	if tx.Source != "" {
		props[PropSource] = notionapi.SelectProperty{
			Select: notionapi.Option{Name: tx.Source},
		}
	}
	if !tx.CreatedAt.IsZero() {
		imported := notionapi.Date(tx.CreatedAt)
		props[PropImportedAt] = notionapi.DateProperty{
			Date: &notionapi.DateObject{Start: &imported},
		}
	}

	return props
}

func typeName(t domain.TransactionType) string {
	if t == domain.TransactionTypeIncome {
		return "Receita"
	}
	return "Despesa"
}

func richText(s string) notionapi.RichText {
	return notionapi.RichText{
		Type: notionapi.ObjectTypeText,
		Text: &notionapi.Text{Content: s},
	}
}

// extractText reads a rich text or title property as plain text.
func extractText(page notionapi.Page, name string) string {
	prop, ok := page.Properties[name]
	if !ok {
		return ""
	}
	var texts []notionapi.RichText
	switch p := prop.(type) {
	case *notionapi.RichTextProperty:
		texts = p.RichText
	case notionapi.RichTextProperty:
		texts = p.RichText
	case *notionapi.TitleProperty:
		texts = p.Title
	case notionapi.TitleProperty:
		texts = p.Title
	}
	if len(texts) == 0 {
		return ""
	}
	if texts[0].PlainText != "" {
		return texts[0].PlainText
	}
	if texts[0].Text != nil {
		return texts[0].Text.Content
	}
	return ""
}

// extractDate reads the start of a date property.
func extractDate(page notionapi.Page, name string) (time.Time, bool) {
	prop, ok := page.Properties[name]
	if !ok {
		return time.Time{}, false
	}
	var obj *notionapi.DateObject
	switch p := prop.(type) {
	case *notionapi.DateProperty:
		obj = p.Date
	case notionapi.DateProperty:
		obj = p.Date
	}
	if obj == nil || obj.Start == nil {
		return time.Time{}, false
	}
	t := time.Time(*obj.Start)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
}
