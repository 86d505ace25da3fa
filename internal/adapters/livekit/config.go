package livekit

import "errors"

// LiveKitConfig holds the LiveKit connection configuration
type LiveKitConfig struct {
	ServerURL string // LiveKit server WebSocket URL
	APIKey    string // LiveKit API key
	APISecret string // LiveKit API secret
	SIPDomain string // SIP signalling domain of the deployment
}

// NewLiveKitConfig creates a new LiveKit configuration with validation
func NewLiveKitConfig(serverURL, apiKey, apiSecret, sipDomain string) (*LiveKitConfig, error) {
	if serverURL == "" {
		return nil, errors.New("LiveKit server URL is required")
	}
	if apiKey == "" {
		return nil, errors.New("LiveKit API key is required")
	}
	if apiSecret == "" {
		return nil, errors.New("LiveKit API secret is required")
	}

	return &LiveKitConfig{
		ServerURL: serverURL,
		APIKey:    apiKey,
		APISecret: apiSecret,
		SIPDomain: sipDomain,
	}, nil
}

// Validate validates the configuration
func (c *LiveKitConfig) Validate() error {
	if c.ServerURL == "" || c.APIKey == "" || c.APISecret == "" {
		return errors.New("incomplete LiveKit configuration")
	}
	return nil
}
