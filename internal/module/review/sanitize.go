package review

import (
	"context"
	"html"

	"github.com/microcosm-cc/bluemonday"

	"github.com/luofanlf/hdbPilot-admin/internal/domain"
	"github.com/luofanlf/hdbPilot-admin/internal/listing"
)

// sanitizingSource strips markup from review content as pages arrive.
type sanitizingSource struct {
	src    listing.Source[domain.Review]
	policy *bluemonday.Policy
}

func newSanitizingSource(src listing.Source[domain.Review]) sanitizingSource {
	return sanitizingSource{src: src, policy: bluemonday.StrictPolicy()}
}

func (s sanitizingSource) Search(ctx context.Context, q listing.Query) (*listing.Page[domain.Review], error) {
	page, err := s.src.Search(ctx, q)
	if err != nil || page == nil {
		return page, err
	}
	for i := range page.Items {
		page.Items[i].Content = s.clean(page.Items[i].Content)
	}
	return page, nil
}

// clean returns plain text. The strict policy escapes what it keeps, and
// templates escape again on output, so entities are decoded here.
func (s sanitizingSource) clean(content string) string {
	return html.UnescapeString(s.policy.Sanitize(content))
}
