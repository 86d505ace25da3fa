package agent

import (
	"context"
	"errors"
	"io"
	"time"

	lksdk "github.com/livekit/server-sdk-go/v2"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
	"go.uber.org/zap"

	"github.com/voxlane/voice-platform/internal/agent/realtime"
	"github.com/voxlane/voice-platform/pkg/logger"
)

// Both legs speak 48kHz opus, so frames are forwarded without transcoding.
const frameDuration = 20 * time.Millisecond

// forwardToRealtime pumps caller audio from a room track into the model
// connection. Runs until the track ends or ctx is cancelled.
func forwardToRealtime(ctx context.Context, track *webrtc.TrackRemote, rt *realtime.Client) {
	for {
		if ctx.Err() != nil {
			return
		}

		pkt, _, err := track.ReadRTP()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				logger.L().Debug("caller track read ended", zap.Error(err))
			}
			return
		}
		if len(pkt.Payload) == 0 {
			continue
		}

		err = rt.WriteAudio(media.Sample{
			Data:     pkt.Payload,
			Duration: frameDuration,
		})
		if err != nil {
			logger.L().Debug("stopped forwarding caller audio", zap.Error(err))
			return
		}
	}
}

// forwardToRoom pumps model audio into the agent's published room track.
func forwardToRoom(ctx context.Context, track *webrtc.TrackRemote, local *lksdk.LocalSampleTrack) {
	for {
		if ctx.Err() != nil {
			return
		}

		pkt, _, err := track.ReadRTP()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				logger.L().Debug("model track read ended", zap.Error(err))
			}
			return
		}
		if len(pkt.Payload) == 0 {
			continue
		}

		err = local.WriteSample(media.Sample{
			Data:     pkt.Payload,
			Duration: frameDuration,
		}, nil)
		if err != nil {
			logger.L().Debug("stopped forwarding model audio", zap.Error(err))
			return
		}
	}
}
