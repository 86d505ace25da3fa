package config

import (
	"os"
	"strconv"
	"strings"
)

// PlatformConfig holds environment-driven configuration for the API server
// and the voice agent worker.
type PlatformConfig struct {
	Port           string
	InternalAPIKey string
	PublicBaseURL  string
	FrontendURL    string

	// SIP signalling domain fallback when no platform setting exists
	SIPDomain string

	// OpenAI-compatible realtime runtime
	OpenAIAPIKey  string
	OpenAIBaseURL string
	RealtimeModel string

	// LiveKit control plane
	LiveKitServerURL string
	LiveKitAPIKey    string
	LiveKitAPISecret string

	// Exotel telephony vendor
	ExotelSubdomain  string
	ExotelAccountSID string
	ExotelAPIKey     string
	ExotelAPIToken   string

	// Managed indexing / retrieval service
	IndexingBaseURL string
	IndexingAPIKey  string

	// Google OAuth
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string

	// Twilio Network Traversal (TURN for browser sessions)
	TwilioAccountSID string
	TwilioAuthToken  string
	STUNServers      []string

	// Document storage
	GCSBucket string

	// Call event publishing
	PubSubProjectID string
	PubSubTopic     string
	PubSubPubID     string

	// Session grant signing for anonymous share sessions
	ShareSessionSecret string

	InstanceID string
}

// LoadFromEnv loads platform configuration from environment variables.
func LoadFromEnv() *PlatformConfig {
	cfg := &PlatformConfig{
		Port:           GetEnvOrDefault("PORT", "8080"),
		InternalAPIKey: GetEnvOrDefault("INTERNAL_API_KEY", ""),
		PublicBaseURL:  GetEnvOrDefault("PUBLIC_BASE_URL", "http://localhost:8080"),
		FrontendURL:    GetEnvOrDefault("FRONTEND_URL", "http://localhost:3000"),

		SIPDomain: GetEnvOrDefault("SIP_DOMAIN", ""),

		OpenAIAPIKey:  GetEnvOrDefault("OPENAI_API_KEY", ""),
		OpenAIBaseURL: GetEnvOrDefault("OPENAI_BASE_URL", "https://api.openai.com"),
		RealtimeModel: GetEnvOrDefault("REALTIME_MODEL", "gpt-4o-realtime-preview"),

		LiveKitServerURL: GetEnvOrDefault("LIVEKIT_SERVER_URL", ""),
		LiveKitAPIKey:    GetEnvOrDefault("LIVEKIT_API_KEY", ""),
		LiveKitAPISecret: GetEnvOrDefault("LIVEKIT_API_SECRET", ""),

		ExotelSubdomain:  GetEnvOrDefault("EXOTEL_SUBDOMAIN", "api"),
		ExotelAccountSID: GetEnvOrDefault("EXOTEL_ACCOUNT_SID", ""),
		ExotelAPIKey:     GetEnvOrDefault("EXOTEL_API_KEY", ""),
		ExotelAPIToken:   GetEnvOrDefault("EXOTEL_API_TOKEN", ""),

		IndexingBaseURL: GetEnvOrDefault("INDEXING_BASE_URL", "https://api.cloud.llamaindex.ai"),
		IndexingAPIKey:  GetEnvOrDefault("INDEXING_API_KEY", ""),

		GoogleClientID:     GetEnvOrDefault("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: GetEnvOrDefault("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURL:  GetEnvOrDefault("GOOGLE_REDIRECT_URL", ""),

		TwilioAccountSID: GetEnvOrDefault("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:  GetEnvOrDefault("TWILIO_AUTH_TOKEN", ""),
		STUNServers: []string{
			"stun:stun.l.google.com:19302",
			"stun:stun1.l.google.com:19302",
		},

		GCSBucket: GetEnvOrDefault("DOCUMENT_GCS_BUCKET", ""),

		PubSubProjectID: GetEnvOrDefault("PUBSUB_PROJECT_ID", ""),
		PubSubTopic:     GetEnvOrDefault("PUBSUB_TOPIC", "voice-call-events"),
		PubSubPubID:     GetEnvOrDefault("PUBSUB_PUB_ID", "voice-platform"),

		ShareSessionSecret: GetEnvOrDefault("SHARE_SESSION_SECRET", ""),

		InstanceID: getDynamicInstanceID(),
	}

	if stunServers := os.Getenv("STUN_SERVERS"); stunServers != "" {
		cfg.STUNServers = splitAndTrimStrings(stunServers, ",")
	}

	return cfg
}

// GetEnvOrDefault gets environment variable or returns default
func GetEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetEnvAsIntOrDefault gets environment variable as int or returns default
func GetEnvAsIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// GetEnvAsBoolOrDefault gets environment variable as bool or returns default
func GetEnvAsBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// splitAndTrimStrings splits a string by delimiter and trims whitespace from each part
func splitAndTrimStrings(s, delimiter string) []string {
	if s == "" {
		return []string{}
	}
	parts := strings.Split(s, delimiter)
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// getDynamicInstanceID generates a unique identifier for this service
// instance. Pod name in Kubernetes, hostname elsewhere.
func getDynamicInstanceID() string {
	if hostname, err := os.Hostname(); err == nil && hostname != "" {
		return hostname
	}
	return "voice-platform"
}
