package notion

import (
	"context"
	"strconv"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
)

// ReviewItem is a lead whose enrichment needs a human pass.
type ReviewItem struct {
	LeadID   string
	FullName string
	Email    string
	Company  string
	Score    string
	Missing  []string
	RunID    string
}

// FlagForReview creates a page for the lead in the review database, or
// refreshes the existing page when the lead was already flagged. Pages are
// matched by email.
func FlagForReview(ctx context.Context, c Client, dbID string, item ReviewItem) (*notionapi.Page, error) {
	existing, err := findFlagged(ctx, c, dbID, item.Email)
	if err != nil {
		return nil, eris.Wrap(err, "notion: check review queue")
	}

	props := reviewProperties(item)

	if existing != nil {
		page, err := c.UpdatePage(ctx, string(existing.ID), &notionapi.PageUpdateRequest{
			Properties: props,
		})
		if err != nil {
			return nil, eris.Wrap(err, "notion: refresh review page")
		}
		return page, nil
	}

	page, err := c.CreatePage(ctx, &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: notionapi.DatabaseID(dbID),
		},
		Properties: props,
	})
	if err != nil {
		return nil, eris.Wrap(err, "notion: create review page")
	}
	return page, nil
}

// findFlagged looks up an existing review page by lead email.
// Returns nil when the lead has not been flagged before.
func findFlagged(ctx context.Context, c Client, dbID, email string) (*notionapi.Page, error) {
	if email == "" {
		return nil, nil
	}

	resp, err := c.QueryDatabase(ctx, dbID, &notionapi.DatabaseQueryRequest{
		Filter: notionapi.PropertyFilter{
			Property: "Email",
			RichText: &notionapi.TextFilterCondition{
				Equals: email,
			},
		},
		PageSize: 1,
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Results) == 0 {
		return nil, nil
	}
	return &resp.Results[0], nil
}

// reviewProperties builds the page properties for a review item.
func reviewProperties(item ReviewItem) notionapi.Properties {
	title := item.FullName
	if title == "" {
		title = item.Email
	}

	props := notionapi.Properties{
		"Name": notionapi.TitleProperty{
			Title: []notionapi.RichText{
				{Text: &notionapi.Text{Content: title}},
			},
		},
		"Email": notionapi.RichTextProperty{
			RichText: []notionapi.RichText{
				{Text: &notionapi.Text{Content: item.Email}},
			},
		},
		"Company": notionapi.RichTextProperty{
			RichText: []notionapi.RichText{
				{Text: &notionapi.Text{Content: item.Company}},
			},
		},
		"Run": notionapi.RichTextProperty{
			RichText: []notionapi.RichText{
				{Text: &notionapi.Text{Content: item.RunID}},
			},
		},
		"Status": notionapi.StatusProperty{
			Status: notionapi.Option{Name: "Needs Review"},
		},
	}

	if score, err := strconv.ParseFloat(item.Score, 64); err == nil {
		props["Quality Score"] = notionapi.NumberProperty{Number: score}
	}

	if len(item.Missing) > 0 {
		opts := make([]notionapi.Option, len(item.Missing))
		for i, m := range item.Missing {
			opts[i] = notionapi.Option{Name: m}
		}
		props["Missing Fields"] = notionapi.MultiSelectProperty{MultiSelect: opts}
	}

	return props
}
