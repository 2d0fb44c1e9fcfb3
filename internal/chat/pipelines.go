package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/SP-Shreya-SP/MyChat-app/internal/models"
)

// SendSearch grounds a turn in web search results. The displayed user
// message stays the short query; the submitted content carries the
// search context. Zero results is not an error, the turn proceeds with a
// general-knowledge note.
func (c *Controller) SendSearch(ctx context.Context, sessionID int64, query string, onDelta func(string)) (*models.Message, error) {
	results := c.searcher.Search(ctx, query)

	var contextBlock string
	if len(results) > 0 {
		var sb strings.Builder
		fmt.Fprintf(&sb, "Here are the top search results for %q:\n\n", query)
		for i, r := range results {
			if i > 0 {
				sb.WriteString("\n\n")
			}
			fmt.Fprintf(&sb, "- **[%s](%s)**\n  %s", r.Title, r.Link, r.Snippet)
		}
		contextBlock = sb.String()
	} else {
		contextBlock = fmt.Sprintf("No direct search results were found for %q, but I will try to answer based on my knowledge.", query)
	}

	submitted := fmt.Sprintf(
		"USER REQUEST: %s\n\nWEB SEARCH CONTEXT:\n%s\n\nPlease summarize these results for the user. Include the helpful links and be concise. If no results were found, answer based on your general knowledge.",
		query, contextBlock)

	return c.Send(ctx, models.Turn{
		SessionID:        sessionID,
		DisplayContent:   fmt.Sprintf("🔍 Search: **%s**", query),
		SubmittedContent: submitted,
		Mode:             models.ModeSearch,
	}, onDelta)
}

// SendImage runs the two-stage image turn: prompt enhancement, then
// synthesis. The result lands in the session as an embedded-image
// message.
func (c *Controller) SendImage(ctx context.Context, sessionID int64, prompt string) (*models.Message, error) {
	return c.Send(ctx, models.Turn{
		SessionID:        sessionID,
		DisplayContent:   fmt.Sprintf("🎨 Generate Image: **%s**", prompt),
		SubmittedContent: prompt,
		Mode:             models.ModeImage,
	}, nil)
}
