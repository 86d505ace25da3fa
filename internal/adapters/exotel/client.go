package exotel

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/voxlane/voice-platform/internal/domain"
	"github.com/voxlane/voice-platform/pkg/logger"
	"github.com/voxlane/voice-platform/pkg/retry"
)

// Client talks to the Exotel REST API. All calls carry a bounded timeout and
// retry transient failures; 4xx responses fail immediately.
type Client struct {
	subdomain  string
	accountSID string
	apiKey     string
	apiToken   string
	httpClient *http.Client
	retryCfg   retry.Config
}

// normalizeSubdomain removes .exotel.com if already present in subdomain
func normalizeSubdomain(subdomain string) string {
	if strings.Contains(subdomain, ".exotel.com") {
		return strings.ReplaceAll(subdomain, ".exotel.com", "")
	}
	return subdomain
}

// NewClient creates a new Exotel API client
func NewClient(subdomain, accountSID, apiKey, apiToken string) *Client {
	return &Client{
		subdomain:  normalizeSubdomain(subdomain),
		accountSID: accountSID,
		apiKey:     apiKey,
		apiToken:   apiToken,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		retryCfg:   retry.DefaultConfig(),
	}
}

func (c *Client) endpoint(path string) string {
	return fmt.Sprintf("https://%s.exotel.com/v1/Accounts/%s/%s", c.subdomain, c.accountSID, path)
}

// exophoneEntry is one number in the vendor inventory. The same field names
// appear in both wire formats.
type exophoneEntry struct {
	Sid          string `json:"Sid" xml:"Sid"`
	PhoneNumber  string `json:"PhoneNumber" xml:"PhoneNumber"`
	FriendlyName string `json:"FriendlyName" xml:"FriendlyName"`
}

// incomingPhoneNumbersXML mirrors the vendor's default XML envelope.
type incomingPhoneNumbersXML struct {
	XMLName xml.Name        `xml:"TwilioResponse"`
	Numbers []exophoneEntry `xml:"IncomingPhoneNumbers>IncomingPhoneNumber"`
}

// incomingPhoneNumbersJSON mirrors the .json variant of the same payload.
type incomingPhoneNumbersJSON struct {
	IncomingPhoneNumbers []exophoneEntry `json:"IncomingPhoneNumbers"`
}

// ListExophones fetches the account's purchased exophone inventory. The
// vendor serves XML by default; JSON is parsed as a fallback since some
// deployments sit behind gateways that rewrite to the .json variant.
func (c *Client) ListExophones(ctx context.Context) ([]domain.Exophone, error) {
	body, err := c.do(ctx, http.MethodGet, c.endpoint("IncomingPhoneNumbers"), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list exophones: %w", err)
	}

	entries, err := parseExophones(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse exophone inventory: %w", err)
	}

	exophones := make([]domain.Exophone, 0, len(entries))
	for _, n := range entries {
		exophones = append(exophones, domain.Exophone{
			SID:          n.Sid,
			PhoneNumber:  NormalizePhoneNumber(n.PhoneNumber),
			FriendlyName: n.FriendlyName,
		})
	}

	return exophones, nil
}

func parseExophones(body []byte) ([]exophoneEntry, error) {
	if looksLikeXML(body) {
		var resp incomingPhoneNumbersXML
		if err := xml.Unmarshal(body, &resp); err == nil {
			return resp.Numbers, nil
		}
	}
	var resp incomingPhoneNumbersJSON
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}
	return resp.IncomingPhoneNumbers, nil
}

// looksLikeXML reports whether a response body starts with an XML marker.
func looksLikeXML(body []byte) bool {
	trimmed := bytes.TrimSpace(body)
	return len(trimmed) > 0 && trimmed[0] == '<'
}

// ConnectCallRequest describes an outbound call leg.
type ConnectCallRequest struct {
	// From is the exophone the call originates from.
	From string
	// To is the callee's phone number.
	To string
	// CallerID shown to the callee; defaults to From.
	CallerID string
	// StatusCallback receives call status webhooks, optional.
	StatusCallback string
}

// ConnectCallResponse is the vendor acknowledgement of an initiated call.
type ConnectCallResponse struct {
	Call struct {
		Sid       string `json:"Sid" xml:"Sid"`
		Status    string `json:"Status" xml:"Status"`
		Direction string `json:"Direction" xml:"Direction"`
	} `json:"Call" xml:"Call"`
}

// connectCallXML wraps the call acknowledgement in the vendor's XML envelope.
type connectCallXML struct {
	XMLName xml.Name `xml:"TwilioResponse"`
	ConnectCallResponse
}

// ConnectCall initiates an outbound call. The vendor dials the callee and
// bridges the leg to the exophone, whose inbound routing carries it onward.
func (c *Client) ConnectCall(ctx context.Context, req ConnectCallRequest) (*ConnectCallResponse, error) {
	callerID := req.CallerID
	if callerID == "" {
		callerID = req.From
	}

	data := url.Values{}
	data.Set("From", req.From)
	data.Set("To", req.To)
	data.Set("CallerId", callerID)
	data.Set("CallType", "trans")
	if req.StatusCallback != "" {
		data.Set("StatusCallback", req.StatusCallback)
	}

	body, err := c.do(ctx, http.MethodPost, c.endpoint("Calls/connect"), data)
	if err != nil {
		return nil, fmt.Errorf("failed to connect call: %w", err)
	}

	resp, err := parseConnectCall(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connect call response: %w", err)
	}

	logger.L().Info("exotel call initiated",
		zap.String("call_sid", resp.Call.Sid),
		zap.String("status", resp.Call.Status))

	return &resp, nil
}

func parseConnectCall(body []byte) (ConnectCallResponse, error) {
	if looksLikeXML(body) {
		var envelope connectCallXML
		if err := xml.Unmarshal(body, &envelope); err == nil {
			return envelope.ConnectCallResponse, nil
		}
	}
	var resp ConnectCallResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return ConnectCallResponse{}, err
	}
	return resp, nil
}

// do executes one vendor request with retry on transient failures.
func (c *Client) do(ctx context.Context, method, endpoint string, form url.Values) ([]byte, error) {
	var body []byte

	err := retry.Do(ctx, c.retryCfg, func() error {
		reqCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		var reqBody io.Reader
		if form != nil {
			reqBody = strings.NewReader(form.Encode())
		}

		httpReq, err := http.NewRequestWithContext(reqCtx, method, endpoint, reqBody)
		if err != nil {
			return retry.Stop(fmt.Errorf("failed to create request: %w", err))
		}

		httpReq.SetBasicAuth(c.apiKey, c.apiToken)
		if form != nil {
			httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read response body: %w", err)
		}

		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("exotel API returned %d: %s", resp.StatusCode, string(respBody))
		}
		if resp.StatusCode >= 400 {
			return retry.Stop(fmt.Errorf("exotel API returned %d: %s", resp.StatusCode, string(respBody)))
		}

		body = respBody
		return nil
	})
	if err != nil {
		return nil, err
	}

	return body, nil
}
