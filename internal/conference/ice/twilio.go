package ice

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

const twilioTokenEndpoint = "https://api.twilio.com/2010-04-01/Accounts/%s/Tokens.json"

// twilioResponse is Twilio's Network Traversal Service token response shape:
// a list of ice_servers, each using the vendor's singular "url" field.
type twilioResponse struct {
	ICEServers []vendorServer `json:"ice_servers"`
}

// TwilioProvider fetches short-lived TURN credentials from Twilio's Network
// Traversal Service, normalizing the vendor's singular "url" field into the
// core's canonical "urls" on every fetch (see spec §4.5).
type TwilioProvider struct {
	accountSID string
	authToken  string
	httpClient *http.Client
}

// NewTwilioProvider builds a provider bound to one Twilio account.
func NewTwilioProvider(accountSID, authToken string) *TwilioProvider {
	return &TwilioProvider{
		accountSID: accountSID,
		authToken:  authToken,
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
}

// Fetch implements Provider. Each call mints a fresh token request, so the
// returned credentials are good only for the lifetime Twilio assigns to that
// token; no TTL is sent with the request.
func (p *TwilioProvider) Fetch(ctx context.Context) ([]Server, error) {
	endpoint := fmt.Sprintf(twilioTokenEndpoint, p.accountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("ice: build twilio request: %w", err)
	}
	req.SetBasicAuth(p.accountSID, p.authToken)
	req.URL.RawQuery = url.Values{}.Encode()

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ice: twilio request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ice: twilio returned status %d", resp.StatusCode)
	}

	var body twilioResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("ice: decode twilio response: %w", err)
	}

	out := make([]Server, 0, len(body.ICEServers))
	for _, v := range body.ICEServers {
		if s, ok := normalize(v); ok {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("ice: twilio returned no usable servers")
	}
	return out, nil
}
