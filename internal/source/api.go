package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/acquisition-cli/internal/config"
	"github.com/sells-group/acquisition-cli/internal/model"
	"github.com/sells-group/acquisition-cli/internal/resilience"
)

// APISource pulls BizBuySell listings from the paid listings API.
type APISource struct {
	cfg        config.APISourceConfig
	httpClient *http.Client
	retry      resilience.RetryConfig
}

// NewAPISource creates the API-backed source.
func NewAPISource(cfg config.APISourceConfig) *APISource {
	return &APISource{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		retry:      resilience.DefaultRetryConfig(),
	}
}

// Platform implements Source.
func (s *APISource) Platform() model.Platform { return model.PlatformBizBuySell }

// apiResponse is the provider's listings envelope.
type apiResponse struct {
	Listings []map[string]any `json:"listings"`
}

// Fetch implements Source.
func (s *APISource) Fetch(ctx context.Context) ([]model.RawListing, error) {
	if s.cfg.Key == "" {
		return nil, eris.New("source: api key not configured")
	}

	params := url.Values{
		"location": {s.cfg.Location},
		"limit":    {strconv.Itoa(s.cfg.MaxResults)},
	}
	reqURL := s.cfg.BaseURL + "?" + params.Encode()

	body, err := resilience.DoVal(ctx, s.retry, func(ctx context.Context) ([]byte, error) {
		return s.get(ctx, reqURL)
	})
	if err != nil {
		return nil, eris.Wrap(err, "source: api fetch")
	}

	var resp apiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, eris.Wrap(err, "source: api parse response")
	}

	raws := make([]model.RawListing, 0, len(resp.Listings))
	for _, fields := range resp.Listings {
		raws = append(raws, model.RawListing{
			Platform: s.Platform(),
			NativeID: nativeID(fields),
			Fields:   fields,
		})
	}

	zap.L().Info("fetched listings from api",
		zap.String("platform", string(s.Platform())),
		zap.Int("count", len(raws)),
	)
	return raws, nil
}

func (s *APISource) get(ctx context.Context, reqURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "source: api build request")
	}
	req.Header.Set("Authorization", "Bearer "+s.cfg.Key)
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "source: api request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("source: api returned status %d", resp.StatusCode)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(err, resp.StatusCode)
		}
		return nil, err
	}

	return io.ReadAll(resp.Body)
}

// nativeID extracts the provider's listing identifier, falling back to the
// listing URL. Normalization drops records that end up with neither.
func nativeID(fields map[string]any) string {
	for _, key := range []string{"id", "listing_id"} {
		switch v := fields[key].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return fmt.Sprintf("%.0f", v)
		}
	}
	if u, ok := fields["listing_url"].(string); ok {
		return u
	}
	return ""
}
