package irev

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
)

// Fetcher is the transport dependency, satisfied by *fetch.Client.
type Fetcher interface {
	GetJSON(ctx context.Context, endpoint string, params url.Values, out any) error
	Download(ctx context.Context, rawURL string) ([]byte, error)
}

// CategoryIDs maps each contest type to its upstream election-type id.
type CategoryIDs map[Category]string

// Client wraps the upstream REST API with typed endpoint methods.
type Client struct {
	http        Fetcher
	categoryIDs CategoryIDs
}

// NewClient builds a Client over the given transport.
func NewClient(http Fetcher, ids CategoryIDs) *Client {
	return &Client{http: http, categoryIDs: ids}
}

// ListElections returns every election published for the given category.
// Each item keeps its raw source payload.
func (c *Client) ListElections(ctx context.Context, category Category) ([]Election, error) {
	typeID, ok := c.categoryIDs[category]
	if !ok {
		return nil, fmt.Errorf("unknown election category %q", category)
	}

	var resp envelope[[]json.RawMessage]
	params := url.Values{"election_type": {typeID}}
	if err := c.http.GetJSON(ctx, "elections", params, &resp); err != nil {
		return nil, err
	}

	out := make([]Election, 0, len(resp.Data))
	for _, raw := range resp.Data {
		var e Election
		if err := json.Unmarshal(raw, &e); err != nil {
			return nil, fmt.Errorf("decode election: %w", err)
		}
		e.Raw = raw
		out = append(out, e)
	}
	return out, nil
}

// ResultStats fetches the aggregate {expected, documents} snapshot for an
// election.
func (c *Client) ResultStats(ctx context.Context, electionID string) (ResultStats, error) {
	var resp envelope[ResultStats]
	endpoint := fmt.Sprintf("elections/%s/result/stats", electionID)
	if err := c.http.GetJSON(ctx, endpoint, nil, &resp); err != nil {
		return ResultStats{}, err
	}
	return resp.Data, nil
}

// Hierarchy fetches the administrative-area/ward tree of an election within
// one jurisdiction.
func (c *Client) Hierarchy(ctx context.Context, electionID string, stateID int) ([]LGAEntry, error) {
	var resp envelope[[]json.RawMessage]
	endpoint := fmt.Sprintf("elections/%s/lga/state/%d", electionID, stateID)
	if err := c.http.GetJSON(ctx, endpoint, nil, &resp); err != nil {
		return nil, err
	}

	out := make([]LGAEntry, 0, len(resp.Data))
	for _, raw := range resp.Data {
		var entry LGAEntry
		if err := json.Unmarshal(raw, &entry); err != nil {
			return nil, fmt.Errorf("decode lga entry: %w", err)
		}
		entry.Raw = raw
		for i := range entry.Wards {
			wr, err := json.Marshal(entry.Wards[i])
			if err == nil {
				entry.Wards[i].Raw = wr
			}
		}
		out = append(out, entry)
	}
	return out, nil
}

// PollingUnits fetches the unit list of one ward, raw payloads included.
func (c *Client) PollingUnits(ctx context.Context, electionID, wardID string) ([]PollingUnit, error) {
	var resp envelope[[]json.RawMessage]
	endpoint := fmt.Sprintf("elections/%s/pus", electionID)
	params := url.Values{"ward": {wardID}}
	if err := c.http.GetJSON(ctx, endpoint, params, &resp); err != nil {
		return nil, err
	}

	out := make([]PollingUnit, 0, len(resp.Data))
	for _, raw := range resp.Data {
		var pu PollingUnit
		if err := json.Unmarshal(raw, &pu); err != nil {
			return nil, fmt.Errorf("decode polling unit: %w", err)
		}
		pu.Raw = raw
		out = append(out, pu)
	}
	return out, nil
}

// DownloadDocument fetches the raw result-sheet image bytes.
func (c *Client) DownloadDocument(ctx context.Context, docURL string) ([]byte, error) {
	return c.http.Download(ctx, docURL)
}
