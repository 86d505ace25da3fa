package livekit

import (
	"context"
	"fmt"
	"time"

	"github.com/livekit/protocol/auth"
	"github.com/livekit/protocol/livekit"
	lksdk "github.com/livekit/server-sdk-go/v2"
	"go.uber.org/zap"

	"github.com/voxlane/voice-platform/pkg/logger"
)

// RoomService wraps the LiveKit room APIs used by the platform: room
// lifecycle, participant tokens and SIP participant dial-out.
type RoomService struct {
	config     *LiveKitConfig
	roomClient *lksdk.RoomServiceClient
	sipClient  *lksdk.SIPClient
}

// NewRoomService creates a new room service
func NewRoomService(config *LiveKitConfig) (*RoomService, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid LiveKit config: %w", err)
	}

	return &RoomService{
		config:     config,
		roomClient: lksdk.NewRoomServiceClient(config.ServerURL, config.APIKey, config.APISecret),
		sipClient:  lksdk.NewSIPClient(config.ServerURL, config.APIKey, config.APISecret),
	}, nil
}

// CreateRoom creates a room carrying the resolved agent payload as metadata
// so the worker can assemble the session without a database round trip.
func (s *RoomService) CreateRoom(ctx context.Context, roomName, metadata string) (*livekit.Room, error) {
	room, err := s.roomClient.CreateRoom(ctx, &livekit.CreateRoomRequest{
		Name:            roomName,
		Metadata:        metadata,
		EmptyTimeout:    300, // seconds before an empty room is reclaimed
		MaxParticipants: 10,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create room: %w", err)
	}

	logger.L().Info("room created", zap.String("room_name", roomName))
	return room, nil
}

// DeleteRoom tears down a room and disconnects all participants
func (s *RoomService) DeleteRoom(ctx context.Context, roomName string) error {
	_, err := s.roomClient.DeleteRoom(ctx, &livekit.DeleteRoomRequest{
		Room: roomName,
	})
	if err != nil {
		return fmt.Errorf("failed to delete room: %w", err)
	}

	return nil
}

// MintAccessToken generates a participant access token for a room
func (s *RoomService) MintAccessToken(roomName, identity, metadata string, ttl time.Duration) (string, error) {
	at := auth.NewAccessToken(s.config.APIKey, s.config.APISecret)

	canPublish := true
	canSubscribe := true

	grant := &auth.VideoGrant{
		RoomJoin:     true,
		Room:         roomName,
		CanPublish:   &canPublish,
		CanSubscribe: &canSubscribe,
	}

	at.SetVideoGrant(grant).
		SetIdentity(identity).
		SetValidFor(ttl)
	if metadata != "" {
		at.SetMetadata(metadata)
	}

	token, err := at.ToJWT()
	if err != nil {
		return "", fmt.Errorf("failed to generate JWT: %w", err)
	}

	return token, nil
}

// DialSIPParticipant dials a phone number through an outbound trunk and
// places the answered leg into the room as a participant.
func (s *RoomService) DialSIPParticipant(ctx context.Context, trunkID, to, roomName string) (*livekit.SIPParticipantInfo, error) {
	info, err := s.sipClient.CreateSIPParticipant(ctx, &livekit.CreateSIPParticipantRequest{
		SipTrunkId:          trunkID,
		SipCallTo:           to,
		RoomName:            roomName,
		ParticipantIdentity: "sip-" + to,
		ParticipantName:     to,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create SIP participant: %w", err)
	}

	logger.L().Info("SIP participant dialing",
		zap.String("room_name", roomName),
		zap.String("sip_call_id", info.SipCallId))

	return info, nil
}
