package kg

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// SearchByIdentifier finds items holding a statement linking the configured
// identifier property to the supplied value. An exact statement match means
// the paper already exists in the graph under that identifier.
func (c *Client) SearchByIdentifier(ctx context.Context, identifier string) ([]Item, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, nil
	}

	var payload struct {
		Query struct {
			Search []struct {
				Title string `json:"title"`
			} `json:"search"`
		} `json:"query"`
	}
	params := url.Values{}
	params.Set("action", "query")
	params.Set("list", "search")
	params.Set("srsearch", fmt.Sprintf("haswbstatement:%s=%s", c.identifierProperty, identifier))
	params.Set("srlimit", "10")
	if err := c.call(ctx, "search identifier", params, false, &payload); err != nil {
		return nil, err
	}

	items := make([]Item, 0, len(payload.Query.Search))
	for _, hit := range payload.Query.Search {
		// Item pages live in the Item namespace; strip the prefix if present.
		id := hit.Title
		if idx := strings.LastIndexByte(id, ':'); idx >= 0 {
			id = id[idx+1:]
		}
		items = append(items, Item{ID: id})
	}
	return items, nil
}

// SearchByTitle runs an entity label search. Results are fuzzier than
// identifier lookups and feed the heuristic matcher, which applies its own
// similarity threshold before trusting any of them.
func (c *Client) SearchByTitle(ctx context.Context, title string) ([]Item, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, nil
	}

	var payload struct {
		Search []struct {
			ID    string `json:"id"`
			Label string `json:"label"`
		} `json:"search"`
	}
	params := url.Values{}
	params.Set("action", "wbsearchentities")
	params.Set("search", title)
	params.Set("language", "en")
	params.Set("type", "item")
	params.Set("limit", "10")
	if err := c.call(ctx, "search title", params, false, &payload); err != nil {
		return nil, err
	}

	items := make([]Item, 0, len(payload.Search))
	for _, hit := range payload.Search {
		items = append(items, Item{ID: hit.ID, Label: hit.Label})
	}
	return items, nil
}
