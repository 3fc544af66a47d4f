package kg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"

	"paperlink/internal/record"
	"paperlink/internal/services"
)

// HasRepositoryClaim reports whether itemID already carries a repository
// statement with the given URL. URLs are compared in canonical form so
// trailing slashes and case differences in the host do not defeat the check.
func (c *Client) HasRepositoryClaim(ctx context.Context, itemID, repositoryURL string) (bool, error) {
	var payload struct {
		Entities map[string]struct {
			Missing *string `json:"missing"`
			Claims  map[string][]struct {
				Mainsnak struct {
					DataValue struct {
						Value json.RawMessage `json:"value"`
					} `json:"datavalue"`
				} `json:"mainsnak"`
			} `json:"claims"`
		} `json:"entities"`
	}
	params := url.Values{}
	params.Set("action", "wbgetentities")
	params.Set("ids", itemID)
	params.Set("props", "claims")
	if err := c.call(ctx, "read claims", params, false, &payload); err != nil {
		return false, err
	}

	entity, ok := payload.Entities[itemID]
	if !ok || entity.Missing != nil {
		return false, services.Wrap(services.ErrNotFound, "kg", "read claims",
			fmt.Sprintf("item %s not found", itemID), nil)
	}

	want, err := record.CanonicalURL(repositoryURL)
	if err != nil {
		return false, services.Wrap(services.ErrPermanent, "kg", "read claims", "", err)
	}
	for _, claim := range entity.Claims[c.repositoryProperty] {
		var value string
		if err := json.Unmarshal(claim.Mainsnak.DataValue.Value, &value); err != nil {
			// Non-string statement values cannot equal a URL.
			continue
		}
		got, err := record.CanonicalURL(value)
		if err != nil {
			continue
		}
		if got == want {
			return true, nil
		}
	}
	return false, nil
}

// AddRepositoryClaim writes a repository statement on itemID and attaches a
// provenance reference naming the dump the link was extracted from. The write
// retries once with a fresh token when the cached one has expired.
func (c *Client) AddRepositoryClaim(ctx context.Context, itemID, repositoryURL, referenceURL string) error {
	err := c.addClaim(ctx, itemID, repositoryURL, referenceURL)
	if err != nil && isBadTokenError(err) {
		c.invalidateToken()
		err = c.addClaim(ctx, itemID, repositoryURL, referenceURL)
	}
	return err
}

func (c *Client) addClaim(ctx context.Context, itemID, repositoryURL, referenceURL string) error {
	token, err := c.ensureLogin(ctx)
	if err != nil {
		return err
	}

	value, err := json.Marshal(repositoryURL)
	if err != nil {
		return services.Wrap(services.ErrPermanent, "kg", "write claim", "encode value", err)
	}

	var created struct {
		Claim struct {
			ID string `json:"id"`
		} `json:"claim"`
	}
	params := url.Values{}
	params.Set("action", "wbcreateclaim")
	params.Set("entity", itemID)
	params.Set("property", c.repositoryProperty)
	params.Set("snaktype", "value")
	params.Set("value", string(value))
	params.Set("token", token)
	params.Set("bot", "1")
	if err := c.call(ctx, "write claim", params, true, &created); err != nil {
		return err
	}
	if created.Claim.ID == "" {
		return services.Wrap(services.ErrPermanent, "kg", "write claim",
			"claim created without an id", nil)
	}
	if referenceURL == "" {
		return nil
	}
	return c.setReference(ctx, token, created.Claim.ID, referenceURL)
}

func (c *Client) setReference(ctx context.Context, token, claimID, referenceURL string) error {
	snaks := map[string][]map[string]any{
		c.referenceProperty: {{
			"snaktype": "value",
			"property": c.referenceProperty,
			"datavalue": map[string]any{
				"type":  "string",
				"value": referenceURL,
			},
		}},
	}
	encoded, err := json.Marshal(snaks)
	if err != nil {
		return services.Wrap(services.ErrPermanent, "kg", "write reference", "encode snaks", err)
	}

	params := url.Values{}
	params.Set("action", "wbsetreference")
	params.Set("statement", claimID)
	params.Set("snaks", string(encoded))
	params.Set("token", token)
	params.Set("bot", "1")
	return c.call(ctx, "write reference", params, true, nil)
}

func isBadTokenError(err error) bool {
	var apiErr *apiError
	return errors.As(err, &apiErr) && apiErr.Code == "badtoken"
}
