package notion

import (
	"context"
	"testing"

	"github.com/jomei/notionapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func emailFilterFor(email string) any {
	return mock.MatchedBy(func(req *notionapi.DatabaseQueryRequest) bool {
		pf, ok := req.Filter.(notionapi.PropertyFilter)
		if !ok {
			return false
		}
		return pf.Property == "Email" && pf.RichText != nil && pf.RichText.Equals == email
	})
}

func emptyQueryResponse() *notionapi.DatabaseQueryResponse {
	return &notionapi.DatabaseQueryResponse{Results: []notionapi.Page{}}
}

func TestFlagForReview_CreatesPage(t *testing.T) {
	mc := new(MockClient)
	ctx := context.Background()

	mc.On("QueryDatabase", ctx, "db-review", emailFilterFor("jane.doe@acmecorp.com")).
		Return(emptyQueryResponse(), nil).Once()

	mc.On("CreatePage", ctx, mock.MatchedBy(func(req *notionapi.PageCreateRequest) bool {
		if req.Parent.DatabaseID != "db-review" {
			return false
		}
		title, ok := req.Properties["Name"].(notionapi.TitleProperty)
		if !ok || len(title.Title) != 1 || title.Title[0].Text.Content != "Jane Doe" {
			return false
		}
		score, ok := req.Properties["Quality Score"].(notionapi.NumberProperty)
		return ok && score.Number == 1
	})).Return(&notionapi.Page{ID: "page-new"}, nil).Once()

	page, err := FlagForReview(ctx, mc, "db-review", ReviewItem{
		LeadID:   "lead-1",
		FullName: "Jane Doe",
		Email:    "jane.doe@acmecorp.com",
		Company:  "Acme Corp",
		Score:    "1",
		Missing:  []string{"industry", "professional_profile_url"},
		RunID:    "run-42",
	})

	require.NoError(t, err)
	assert.Equal(t, notionapi.ObjectID("page-new"), page.ID)
	mc.AssertExpectations(t)
}

func TestFlagForReview_RefreshesExistingPage(t *testing.T) {
	mc := new(MockClient)
	ctx := context.Background()

	mc.On("QueryDatabase", ctx, "db-review", emailFilterFor("smith@example.com")).
		Return(&notionapi.DatabaseQueryResponse{
			Results: []notionapi.Page{{ID: "page-old"}},
		}, nil).Once()

	mc.On("UpdatePage", ctx, "page-old", mock.MatchedBy(func(req *notionapi.PageUpdateRequest) bool {
		score, ok := req.Properties["Quality Score"].(notionapi.NumberProperty)
		return ok && score.Number == 2
	})).Return(&notionapi.Page{ID: "page-old"}, nil).Once()

	page, err := FlagForReview(ctx, mc, "db-review", ReviewItem{
		Email: "smith@example.com",
		Score: "2",
	})

	require.NoError(t, err)
	assert.Equal(t, notionapi.ObjectID("page-old"), page.ID)
	mc.AssertNotCalled(t, "CreatePage", mock.Anything, mock.Anything)
	mc.AssertExpectations(t)
}

func TestFlagForReview_QueryError(t *testing.T) {
	mc := new(MockClient)
	ctx := context.Background()

	mc.On("QueryDatabase", ctx, "db-review", mock.AnythingOfType("*notionapi.DatabaseQueryRequest")).
		Return(nil, assert.AnError).Once()

	page, err := FlagForReview(ctx, mc, "db-review", ReviewItem{Email: "x@example.com"})
	assert.Error(t, err)
	assert.Nil(t, page)
	assert.Contains(t, err.Error(), "check review queue")
	mc.AssertExpectations(t)
}

func TestFlagForReview_NoEmailSkipsLookup(t *testing.T) {
	mc := new(MockClient)
	ctx := context.Background()

	mc.On("CreatePage", ctx, mock.AnythingOfType("*notionapi.PageCreateRequest")).
		Return(&notionapi.Page{ID: "page-anon"}, nil).Once()

	page, err := FlagForReview(ctx, mc, "db-review", ReviewItem{
		FullName: "No Email Lead",
		Score:    "0",
	})

	require.NoError(t, err)
	assert.Equal(t, notionapi.ObjectID("page-anon"), page.ID)
	mc.AssertNotCalled(t, "QueryDatabase", mock.Anything, mock.Anything, mock.Anything)
	mc.AssertExpectations(t)
}

func TestReviewProperties(t *testing.T) {
	t.Parallel()

	t.Run("full item", func(t *testing.T) {
		props := reviewProperties(ReviewItem{
			FullName: "Jane Doe",
			Email:    "jane.doe@acmecorp.com",
			Company:  "Acme Corp",
			Score:    "1",
			Missing:  []string{"industry", "phone"},
			RunID:    "run-42",
		})

		title := props["Name"].(notionapi.TitleProperty)
		require.Len(t, title.Title, 1)
		assert.Equal(t, "Jane Doe", title.Title[0].Text.Content)

		email := props["Email"].(notionapi.RichTextProperty)
		assert.Equal(t, "jane.doe@acmecorp.com", email.RichText[0].Text.Content)

		score := props["Quality Score"].(notionapi.NumberProperty)
		assert.Equal(t, float64(1), score.Number)

		missing := props["Missing Fields"].(notionapi.MultiSelectProperty)
		require.Len(t, missing.MultiSelect, 2)
		assert.Equal(t, "industry", missing.MultiSelect[0].Name)

		status := props["Status"].(notionapi.StatusProperty)
		assert.Equal(t, "Needs Review", status.Status.Name)
	})

	t.Run("email is the fallback title", func(t *testing.T) {
		props := reviewProperties(ReviewItem{Email: "anon@example.com"})
		title := props["Name"].(notionapi.TitleProperty)
		assert.Equal(t, "anon@example.com", title.Title[0].Text.Content)
	})

	t.Run("unparseable score is omitted", func(t *testing.T) {
		props := reviewProperties(ReviewItem{FullName: "X", Score: ""})
		_, ok := props["Quality Score"]
		assert.False(t, ok)
	})

	t.Run("no missing fields omits the property", func(t *testing.T) {
		props := reviewProperties(ReviewItem{FullName: "X"})
		_, ok := props["Missing Fields"]
		assert.False(t, ok)
	})
}
