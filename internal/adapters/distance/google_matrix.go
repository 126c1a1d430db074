package distance

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"ride-logbook-service/internal/ports"
	"strings"
)

type matrixValue struct {
	Value float64 `json:"value"`
	Text  string  `json:"text"`
}

type matrixElement struct {
	Status            string       `json:"status"`
	Distance          *matrixValue `json:"distance"`
	Duration          *matrixValue `json:"duration"`
	DurationInTraffic *matrixValue `json:"duration_in_traffic"`
}

type matrixRow struct {
	Elements []matrixElement `json:"elements"`
}

type matrixResponse struct {
	Status       string      `json:"status"`
	ErrorMessage string      `json:"error_message"`
	Rows         []matrixRow `json:"rows"`
}

// fetchMatrix issues one Distance Matrix request and converts metres and
// seconds to kilometres and minutes.
func (g *GoogleRouteProvider) fetchMatrix(
	ctx context.Context,
	origins []string,
	destinations []string,
	withTraffic bool,
) ([][]ports.RouteCell, error) {
	params := url.Values{}
	params.Set("origins", strings.Join(origins, "|"))
	params.Set("destinations", strings.Join(destinations, "|"))
	params.Set("key", g.apiKey)
	params.Set("units", "metric")
	params.Set("mode", "driving")
	params.Set("language", "de")
	params.Set("region", "DE")
	if withTraffic {
		params.Set("departure_time", "now")
		params.Set("traffic_model", "best_guess")
	}

	endpoint := g.baseURL + "/distancematrix/json?" + params.Encode()

	resp, err := g.doWithRetry(ctx, func() (*http.Request, error) {
		return g.newRequest(ctx, endpoint)
	})
	if err != nil {
		return nil, fmt.Errorf("matrix request failed: %w", err)
	}
	defer resp.Body.Close()

	var mr matrixResponse
	if err := json.NewDecoder(resp.Body).Decode(&mr); err != nil {
		return nil, fmt.Errorf("decode matrix response: %w", err)
	}

	if mr.Status != "OK" {
		return nil, fmt.Errorf("matrix status %s: %s", mr.Status, mr.ErrorMessage)
	}

	if len(mr.Rows) != len(origins) {
		return nil, fmt.Errorf("expected %d rows; got %d", len(origins), len(mr.Rows))
	}

	out := make([][]ports.RouteCell, len(origins))
	for i, row := range mr.Rows {
		if len(row.Elements) != len(destinations) {
			return nil, fmt.Errorf(
				"row %d length does not match destinations: elements=%d destinations=%d",
				i, len(row.Elements), len(destinations),
			)
		}

		out[i] = make([]ports.RouteCell, len(destinations))
		for j, el := range row.Elements {
			if el.Status != "OK" || el.Distance == nil || el.Duration == nil {
				continue
			}

			seconds := el.Duration.Value
			// Traffic-adjusted duration supersedes the base duration.
			if el.DurationInTraffic != nil {
				seconds = el.DurationInTraffic.Value
			}

			out[i][j] = ports.RouteCell{
				DistanceKm:      el.Distance.Value / 1000,
				DurationMinutes: seconds / 60,
				OK:              true,
			}
		}
	}

	return out, nil
}
