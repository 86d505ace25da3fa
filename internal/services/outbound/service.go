package outbound

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/livekit/protocol/livekit"
	"go.uber.org/zap"

	"github.com/voxlane/voice-platform/internal/adapters/exotel"
	"github.com/voxlane/voice-platform/internal/domain"
	"github.com/voxlane/voice-platform/internal/repository"
	"github.com/voxlane/voice-platform/internal/services/session"
	"github.com/voxlane/voice-platform/pkg/logger"
	"github.com/voxlane/voice-platform/pkg/pubsub"
)

// ErrNoTelephony means the agent has no phone number attached, so there is
// nothing to dial from.
var ErrNoTelephony = errors.New("agent has no telephony configured")

// RoomCreator creates agent rooms and dials SIP participants into them.
type RoomCreator interface {
	CreateRoom(ctx context.Context, roomName, metadata string) (*livekit.Room, error)
	DeleteRoom(ctx context.Context, roomName string) error
	DialSIPParticipant(ctx context.Context, trunkID, to, roomName string) (*livekit.SIPParticipantInfo, error)
}

// VendorDialer bridges an outbound leg through the telephony vendor when no
// outbound trunk exists for the number.
type VendorDialer interface {
	ConnectCall(ctx context.Context, req exotel.ConnectCallRequest) (*exotel.ConnectCallResponse, error)
}

// EventPublisher emits call lifecycle events. Optional; nil disables events.
type EventPublisher interface {
	PublishCallEvent(ctx context.Context, event pubsub.CallLifecycleEvent) error
}

// Service initiates outbound calls from an agent's phone number: it opens a
// call record, creates the room carrying the resolved agent, and dials the
// callee through the outbound trunk or the vendor bridge.
type Service struct {
	repos     repository.RepositoryManager
	rooms     RoomCreator
	vendor    VendorDialer
	publisher EventPublisher
}

// NewService creates a new outbound call service
func NewService(repos repository.RepositoryManager, rooms RoomCreator, vendor VendorDialer, publisher EventPublisher) *Service {
	return &Service{
		repos:     repos,
		rooms:     rooms,
		vendor:    vendor,
		publisher: publisher,
	}
}

// StartCall dials a phone number on behalf of an agent.
func (s *Service) StartCall(ctx context.Context, agent *domain.AgentConfig, req *domain.OutboundCallRequest) (*domain.OutboundCallResponse, error) {
	to := exotel.NormalizePhoneNumber(req.To)
	if to == "" {
		return nil, errors.New("callee number is required")
	}

	cfg, err := s.repos.TelephonyConfig().GetByAgentID(ctx, agent.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNoTelephony
		}
		return nil, err
	}

	// The room name is fixed before the record is opened so the binding is
	// persisted with the row. The webhook receiver relies on GetByRoomName
	// to tell API-initiated calls apart from untracked inbound ones.
	roomName := session.RoomName(agent.ID)

	record := &domain.CallRecord{
		AgentID:      agent.ID,
		Direction:    domain.CallDirectionOutbound,
		RoomName:     roomName,
		PeerIdentity: to,
		Status:       domain.CallStatusInitiated,
		StartedAt:    time.Now().UTC(),
	}
	if err := s.repos.CallRecord().Create(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to open call record: %w", err)
	}

	resolved := session.Resolve(agent, domain.CallDirectionOutbound)
	resolved.CallID = record.ID

	metadata, err := session.Metadata(resolved)
	if err != nil {
		return nil, err
	}

	if _, err := s.rooms.CreateRoom(ctx, roomName, metadata); err != nil {
		s.markFailed(ctx, record.ID)
		return nil, fmt.Errorf("failed to create call room: %w", err)
	}

	resp := &domain.OutboundCallResponse{
		CallID:   record.ID,
		RoomName: roomName,
	}

	if cfg.OutboundTrunkID != "" {
		info, err := s.rooms.DialSIPParticipant(ctx, cfg.OutboundTrunkID, to, roomName)
		if err != nil {
			s.markFailed(ctx, record.ID)
			s.cleanupRoom(ctx, roomName)
			return nil, fmt.Errorf("failed to dial callee: %w", err)
		}
		resp.SIPCallID = info.SipCallId
	} else {
		vendorResp, err := s.vendor.ConnectCall(ctx, exotel.ConnectCallRequest{
			From: cfg.PhoneNumber,
			To:   to,
		})
		if err != nil {
			s.markFailed(ctx, record.ID)
			s.cleanupRoom(ctx, roomName)
			return nil, fmt.Errorf("failed to bridge call through vendor: %w", err)
		}
		resp.VendorSID = vendorResp.Call.Sid
	}

	roomUpdate := &domain.UpdateCallRecordRequest{}
	active := domain.CallStatusActive
	roomUpdate.Status = &active
	if _, err := s.repos.CallRecord().Update(ctx, record.ID, roomUpdate); err != nil {
		logger.L().Warn("failed to mark call active", zap.String("call_id", record.ID), zap.Error(err))
	}

	s.publishEvent(ctx, record, domain.CallStatusActive, roomName)

	return resp, nil
}

func (s *Service) markFailed(ctx context.Context, callID string) {
	failed := domain.CallStatusFailed
	now := time.Now().UTC()
	_, err := s.repos.CallRecord().Update(ctx, callID, &domain.UpdateCallRecordRequest{
		Status:  &failed,
		EndedAt: &now,
	})
	if err != nil {
		logger.L().Warn("failed to mark call failed", zap.String("call_id", callID), zap.Error(err))
	}
}

func (s *Service) cleanupRoom(ctx context.Context, roomName string) {
	if err := s.rooms.DeleteRoom(ctx, roomName); err != nil {
		logger.L().Warn("failed to clean up call room", zap.String("room_name", roomName), zap.Error(err))
	}
}

func (s *Service) publishEvent(ctx context.Context, record *domain.CallRecord, status, roomName string) {
	if s.publisher == nil {
		return
	}

	err := s.publisher.PublishCallEvent(ctx, pubsub.CallLifecycleEvent{
		CallID:    record.ID,
		AgentID:   record.AgentID,
		Direction: record.Direction,
		Status:    status,
		RoomName:  roomName,
		StartedAt: record.StartedAt,
	})
	if err != nil {
		logger.L().Warn("failed to publish call event", zap.String("call_id", record.ID), zap.Error(err))
	}
}
