// Package realtime connects to the OpenAI Realtime API over WebRTC. Audio
// rides on opus tracks in both directions; events ride on the "oai-events"
// data channel.
package realtime

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
	"go.uber.org/zap"

	"github.com/voxlane/voice-platform/pkg/logger"
)

const (
	dataChannelName = "oai-events"
	sessionsURL     = "https://api.openai.com/v1/realtime/sessions"
	sdpExchangeURL  = "https://api.openai.com/v1/realtime"
	stunServer      = "stun:stun.l.google.com:19302"

	sampleRate = 48000
	channels   = 1
)

// Client is one WebRTC connection to the Realtime API.
type Client struct {
	apiKey     string
	httpClient *http.Client

	pc         *webrtc.PeerConnection
	dc         *webrtc.DataChannel
	localTrack *webrtc.TrackLocalStaticSample

	// OnEvent receives every parsed data channel event.
	OnEvent func(event *ServerEvent)
	// OnAudioTrack receives the model's outbound audio track.
	OnAudioTrack func(track *webrtc.TrackRemote)
	// OnOpen fires once the data channel is usable.
	OnOpen func()
}

// NewClient creates a new realtime client
func NewClient(apiKey string) *Client {
	return &Client{
		apiKey: apiKey,
		httpClient: &http.Client{
			Timeout: 20 * time.Second,
		},
	}
}

// mintEphemeralToken obtains a short-lived client secret for the SDP
// exchange. The standing API key never rides on the media connection.
func (c *Client) mintEphemeralToken(ctx context.Context, model, voice string) (string, error) {
	body, err := json.Marshal(map[string]interface{}{
		"model": model,
		"voice": voice,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sessionsURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build session request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("session mint failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		raw, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("session mint returned %d: %s", resp.StatusCode, string(raw))
	}

	var session struct {
		ClientSecret struct {
			Value string `json:"value"`
		} `json:"client_secret"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return "", fmt.Errorf("failed to parse session response: %w", err)
	}
	if session.ClientSecret.Value == "" {
		return "", fmt.Errorf("session response carried no client secret")
	}
	return session.ClientSecret.Value, nil
}

// Connect establishes the WebRTC connection for a model and voice.
func (c *Client) Connect(ctx context.Context, model, voice string) error {
	token, err := c.mintEphemeralToken(ctx, model, voice)
	if err != nil {
		return err
	}

	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{
			{URLs: []string{stunServer}},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create peer connection: %w", err)
	}
	c.pc = pc

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		logger.Base().Debug("realtime connection state", zap.String("state", state.String()))
	})

	dc, err := pc.CreateDataChannel(dataChannelName, nil)
	if err != nil {
		pc.Close()
		return fmt.Errorf("failed to create data channel: %w", err)
	}
	c.dc = dc

	dc.OnOpen(func() {
		logger.Base().Info("realtime data channel open")
		if c.OnOpen != nil {
			c.OnOpen()
		}
	})
	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		event, err := ParseServerEvent(msg.Data)
		if err != nil {
			logger.Base().Warn("unparseable realtime event", zap.Error(err))
			return
		}
		if c.OnEvent != nil {
			c.OnEvent(event)
		}
	})

	localTrack, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{
			MimeType:  webrtc.MimeTypeOpus,
			ClockRate: sampleRate,
			Channels:  channels,
		},
		"audio",
		"caller-audio",
	)
	if err != nil {
		pc.Close()
		return fmt.Errorf("failed to create audio track: %w", err)
	}
	c.localTrack = localTrack
	if _, err := pc.AddTrack(localTrack); err != nil {
		pc.Close()
		return fmt.Errorf("failed to add audio track: %w", err)
	}

	pc.OnTrack(func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
		logger.Base().Info("realtime audio track received", zap.String("codec", track.Codec().MimeType))
		if c.OnAudioTrack != nil {
			c.OnAudioTrack(track)
		}
	})

	offer, err := pc.CreateOffer(nil)
	if err != nil {
		pc.Close()
		return fmt.Errorf("failed to create offer: %w", err)
	}

	gathered := webrtc.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(offer); err != nil {
		pc.Close()
		return fmt.Errorf("failed to set local description: %w", err)
	}

	select {
	case <-gathered:
	case <-ctx.Done():
		pc.Close()
		return ctx.Err()
	}

	answer, err := c.exchangeSDP(ctx, pc.LocalDescription().SDP, model, token)
	if err != nil {
		pc.Close()
		return err
	}

	err = pc.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.SDPTypeAnswer,
		SDP:  answer,
	})
	if err != nil {
		pc.Close()
		return fmt.Errorf("failed to set remote description: %w", err)
	}

	return nil
}

func (c *Client) exchangeSDP(ctx context.Context, offerSDP, model, token string) (string, error) {
	url := sdpExchangeURL + "?model=" + model
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(offerSDP))
	if err != nil {
		return "", fmt.Errorf("failed to build SDP request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/sdp")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("SDP exchange failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read SDP answer: %w", err)
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("SDP exchange returned %d: %s", resp.StatusCode, string(raw))
	}

	return string(raw), nil
}

// SendEvent writes a client event onto the data channel.
func (c *Client) SendEvent(event map[string]interface{}) error {
	if c.dc == nil {
		return fmt.Errorf("data channel not established")
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to serialize client event: %w", err)
	}
	return c.dc.SendText(string(data))
}

// WriteAudio forwards one opus sample of caller audio to the model.
func (c *Client) WriteAudio(sample media.Sample) error {
	if c.localTrack == nil {
		return fmt.Errorf("audio track not established")
	}
	return c.localTrack.WriteSample(sample)
}

// Close tears the connection down.
func (c *Client) Close() error {
	if c.dc != nil {
		c.dc.Close()
	}
	if c.pc != nil {
		return c.pc.Close()
	}
	return nil
}
