package twilio

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/twilio/twilio-go"
	api "github.com/twilio/twilio-go/rest/api/v2010"
	"go.uber.org/zap"

	"github.com/voxlane/voice-platform/pkg/logger"
)

// TokenService manages Twilio Network Traversal Service tokens.
// It fetches and caches TURN/STUN credentials used by browser voice sessions.
type TokenService struct {
	client        *twilio.RestClient
	currentToken  *api.ApiV2010Token
	mutex         sync.RWMutex
	lastFetchTime time.Time
	enabled       bool
	refreshTicker *time.Ticker
	stopChan      chan struct{}
}

// TURNCredentials represents TURN server credentials
type TURNCredentials struct {
	URLs       []string
	Username   string
	Credential string
}

// NewTokenService creates a new Twilio token service.
// If accountSID or authToken is empty, the service is disabled and callers
// fall back to plain STUN.
func NewTokenService(accountSID, authToken string, enableAutoRefresh bool) *TokenService {
	if accountSID == "" || authToken == "" {
		logger.Base().Warn("twilio credentials not provided, TURN service disabled")
		return &TokenService{enabled: false}
	}

	service := &TokenService{
		client:   twilio.NewRestClientWithParams(twilio.ClientParams{Username: accountSID, Password: authToken}),
		enabled:  true,
		stopChan: make(chan struct{}),
	}

	if err := service.RefreshToken(); err != nil {
		logger.Base().Error("failed to fetch initial twilio token", zap.Error(err))
		// Keep the service enabled; on-demand fetch recovers later.
	}

	if enableAutoRefresh {
		service.StartAutoRefresh()
	}

	return service
}

// RefreshToken fetches a new token from the Twilio API.
func (s *TokenService) RefreshToken() error {
	if !s.enabled {
		return fmt.Errorf("twilio token service is disabled")
	}

	params := &api.CreateTokenParams{}
	resp, err := s.client.Api.CreateToken(params)
	if err != nil {
		return err
	}

	s.mutex.Lock()
	s.currentToken = resp
	s.lastFetchTime = time.Now()
	s.mutex.Unlock()

	if resp.IceServers != nil {
		logger.Base().Info("twilio TURN token refreshed", zap.Int("ice_servers", len(*resp.IceServers)))
	}

	return nil
}

// GetTURNCredentials returns current TURN credentials, fetching on demand
// when no cached token exists. Returns nil when disabled.
func (s *TokenService) GetTURNCredentials() []TURNCredentials {
	if !s.enabled {
		return nil
	}

	s.mutex.RLock()
	hasToken := s.currentToken != nil && s.currentToken.IceServers != nil
	s.mutex.RUnlock()

	if !hasToken {
		if err := s.RefreshToken(); err != nil {
			logger.Base().Error("failed to fetch twilio token on-demand", zap.Error(err))
			return nil
		}
	}

	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if s.currentToken == nil || s.currentToken.IceServers == nil {
		return nil
	}

	credentials := make([]TURNCredentials, 0)
	for _, server := range *s.currentToken.IceServers {
		if !strings.HasPrefix(server.Url, "turn") {
			continue
		}
		credentials = append(credentials, TURNCredentials{
			URLs:       []string{server.Url},
			Username:   server.Username,
			Credential: server.Credential,
		})
	}

	return credentials
}

// StartAutoRefresh refreshes the token every 23 hours. Twilio tokens are
// valid for 24 hours; refresh one hour before expiration.
func (s *TokenService) StartAutoRefresh() {
	if !s.enabled {
		return
	}

	refreshInterval := 23 * time.Hour
	s.refreshTicker = time.NewTicker(refreshInterval)

	go func() {
		for {
			select {
			case <-s.refreshTicker.C:
				if err := s.RefreshToken(); err != nil {
					logger.Base().Error("twilio token auto-refresh failed", zap.Error(err))
				}
			case <-s.stopChan:
				return
			}
		}
	}()
}

// Stop stops the auto-refresh goroutine
func (s *TokenService) Stop() {
	if s.refreshTicker != nil {
		s.refreshTicker.Stop()
		close(s.stopChan)
	}
}

// IsEnabled returns whether the service is enabled
func (s *TokenService) IsEnabled() bool {
	return s.enabled
}
