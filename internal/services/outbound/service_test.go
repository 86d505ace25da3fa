package outbound

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/livekit/protocol/livekit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxlane/voice-platform/internal/adapters/exotel"
	"github.com/voxlane/voice-platform/internal/domain"
	"github.com/voxlane/voice-platform/internal/repository"
	"github.com/voxlane/voice-platform/pkg/pubsub"
)

type fakeTelephonyRepo struct {
	cfg *domain.TelephonyConfig
}

func (f *fakeTelephonyRepo) Create(ctx context.Context, cfg *domain.TelephonyConfig) error {
	return nil
}

func (f *fakeTelephonyRepo) GetByAgentID(ctx context.Context, agentID string) (*domain.TelephonyConfig, error) {
	if f.cfg == nil || f.cfg.AgentID != agentID {
		return nil, fmt.Errorf("telephony config for agent %s: %w", agentID, repository.ErrNotFound)
	}
	return f.cfg, nil
}

func (f *fakeTelephonyRepo) GetByPhoneNumber(ctx context.Context, number string) (*domain.TelephonyConfig, error) {
	return nil, repository.ErrNotFound
}

func (f *fakeTelephonyRepo) GetAll(ctx context.Context) ([]*domain.TelephonyConfig, error) {
	return nil, nil
}

func (f *fakeTelephonyRepo) Delete(ctx context.Context, id string) error {
	return nil
}

type fakeCallRepo struct {
	records map[string]*domain.CallRecord
	nextID  int
}

func newFakeCallRepo() *fakeCallRepo {
	return &fakeCallRepo{records: make(map[string]*domain.CallRecord)}
}

func (f *fakeCallRepo) Create(ctx context.Context, rec *domain.CallRecord) error {
	f.nextID++
	rec.ID = fmt.Sprintf("call-%d", f.nextID)
	// Store a copy so later writes to the caller's struct do not leak into
	// the "row", matching what a real database would hold.
	stored := *rec
	f.records[rec.ID] = &stored
	return nil
}

func (f *fakeCallRepo) GetByID(ctx context.Context, id string) (*domain.CallRecord, error) {
	rec, ok := f.records[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return rec, nil
}

func (f *fakeCallRepo) GetByRoomName(ctx context.Context, roomName string) (*domain.CallRecord, error) {
	for _, rec := range f.records {
		if rec.RoomName == roomName {
			return rec, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeCallRepo) GetByAgentID(ctx context.Context, agentID string, limit int) ([]*domain.CallRecord, error) {
	return nil, nil
}

func (f *fakeCallRepo) Update(ctx context.Context, id string, req *domain.UpdateCallRecordRequest) (*domain.CallRecord, error) {
	rec, ok := f.records[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if req.Status != nil {
		rec.Status = *req.Status
	}
	if req.RoomName != nil {
		rec.RoomName = *req.RoomName
	}
	if req.EndedAt != nil {
		rec.EndedAt = req.EndedAt
	}
	return rec, nil
}

type fakeRepos struct {
	repository.RepositoryManager
	telephony *fakeTelephonyRepo
	calls     *fakeCallRepo
}

func (f *fakeRepos) TelephonyConfig() repository.TelephonyConfigRepository {
	return f.telephony
}

func (f *fakeRepos) CallRecord() repository.CallRecordRepository {
	return f.calls
}

type fakeRooms struct {
	createErr    error
	dialErr      error
	createdRooms []string
	deletedRooms []string
	dialedTo     string
	dialedTrunk  string
}

func (f *fakeRooms) CreateRoom(ctx context.Context, roomName, metadata string) (*livekit.Room, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.createdRooms = append(f.createdRooms, roomName)
	return &livekit.Room{Name: roomName, Metadata: metadata}, nil
}

func (f *fakeRooms) DeleteRoom(ctx context.Context, roomName string) error {
	f.deletedRooms = append(f.deletedRooms, roomName)
	return nil
}

func (f *fakeRooms) DialSIPParticipant(ctx context.Context, trunkID, to, roomName string) (*livekit.SIPParticipantInfo, error) {
	if f.dialErr != nil {
		return nil, f.dialErr
	}
	f.dialedTrunk = trunkID
	f.dialedTo = to
	return &livekit.SIPParticipantInfo{SipCallId: "SCL_1"}, nil
}

type fakeVendor struct {
	connectErr error
	called     bool
	lastReq    exotel.ConnectCallRequest
}

func (f *fakeVendor) ConnectCall(ctx context.Context, req exotel.ConnectCallRequest) (*exotel.ConnectCallResponse, error) {
	if f.connectErr != nil {
		return nil, f.connectErr
	}
	f.called = true
	f.lastReq = req
	resp := &exotel.ConnectCallResponse{}
	resp.Call.Sid = "EXO_1"
	return resp, nil
}

type fakePublisher struct {
	events []pubsub.CallLifecycleEvent
}

func (f *fakePublisher) PublishCallEvent(ctx context.Context, event pubsub.CallLifecycleEvent) error {
	f.events = append(f.events, event)
	return nil
}

func testAgent() *domain.AgentConfig {
	return &domain.AgentConfig{ID: "agent-1", UserID: "user-1", Name: "Sales Agent"}
}

func TestStartCall_ViaOutboundTrunk(t *testing.T) {
	repos := &fakeRepos{
		telephony: &fakeTelephonyRepo{cfg: &domain.TelephonyConfig{
			AgentID:         "agent-1",
			PhoneNumber:     "+919876543210",
			OutboundTrunkID: "ST_out",
		}},
		calls: newFakeCallRepo(),
	}
	rooms := &fakeRooms{}
	vendor := &fakeVendor{}
	publisher := &fakePublisher{}
	svc := NewService(repos, rooms, vendor, publisher)

	resp, err := svc.StartCall(context.Background(), testAgent(), &domain.OutboundCallRequest{To: "08888888888"})
	require.NoError(t, err)

	assert.NotEmpty(t, resp.CallID)
	assert.NotEmpty(t, resp.RoomName)
	assert.Equal(t, "SCL_1", resp.SIPCallID)
	assert.Empty(t, resp.VendorSID)

	assert.Equal(t, "ST_out", rooms.dialedTrunk)
	assert.Equal(t, "+918888888888", rooms.dialedTo)
	assert.False(t, vendor.called)

	rec := repos.calls.records[resp.CallID]
	require.NotNil(t, rec)
	assert.Equal(t, domain.CallStatusActive, rec.Status)
	assert.Equal(t, domain.CallDirectionOutbound, rec.Direction)

	require.Len(t, publisher.events, 1)
	assert.Equal(t, resp.CallID, publisher.events[0].CallID)
}

func TestStartCall_PersistsRoomNameOnCreate(t *testing.T) {
	repos := &fakeRepos{
		telephony: &fakeTelephonyRepo{cfg: &domain.TelephonyConfig{
			AgentID:         "agent-1",
			PhoneNumber:     "+919876543210",
			OutboundTrunkID: "ST_out",
		}},
		calls: newFakeCallRepo(),
	}
	svc := NewService(repos, &fakeRooms{}, &fakeVendor{}, nil)

	resp, err := svc.StartCall(context.Background(), testAgent(), &domain.OutboundCallRequest{To: "+918888888888"})
	require.NoError(t, err)
	require.NotEmpty(t, resp.RoomName)

	// The stored row must carry the room binding, not just the in-memory
	// struct. The webhook receiver looks calls up by room name to avoid
	// double-tracking a SIP participant joining an API-created room.
	rec := repos.calls.records[resp.CallID]
	require.NotNil(t, rec)
	assert.Equal(t, resp.RoomName, rec.RoomName)

	byRoom, err := repos.calls.GetByRoomName(context.Background(), resp.RoomName)
	require.NoError(t, err)
	assert.Equal(t, resp.CallID, byRoom.ID)
}

func TestStartCall_FallsBackToVendorBridge(t *testing.T) {
	repos := &fakeRepos{
		telephony: &fakeTelephonyRepo{cfg: &domain.TelephonyConfig{
			AgentID:     "agent-1",
			PhoneNumber: "+919876543210",
			// No outbound trunk provisioned.
		}},
		calls: newFakeCallRepo(),
	}
	rooms := &fakeRooms{}
	vendor := &fakeVendor{}
	svc := NewService(repos, rooms, vendor, nil)

	resp, err := svc.StartCall(context.Background(), testAgent(), &domain.OutboundCallRequest{To: "+918888888888"})
	require.NoError(t, err)

	assert.True(t, vendor.called)
	assert.Equal(t, "+919876543210", vendor.lastReq.From)
	assert.Equal(t, "+918888888888", vendor.lastReq.To)
	assert.Equal(t, "EXO_1", resp.VendorSID)
	assert.Empty(t, resp.SIPCallID)
}

func TestStartCall_NoTelephony(t *testing.T) {
	repos := &fakeRepos{telephony: &fakeTelephonyRepo{}, calls: newFakeCallRepo()}
	svc := NewService(repos, &fakeRooms{}, &fakeVendor{}, nil)

	_, err := svc.StartCall(context.Background(), testAgent(), &domain.OutboundCallRequest{To: "+918888888888"})
	assert.ErrorIs(t, err, ErrNoTelephony)
}

func TestStartCall_DialFailureCleansUp(t *testing.T) {
	repos := &fakeRepos{
		telephony: &fakeTelephonyRepo{cfg: &domain.TelephonyConfig{
			AgentID:         "agent-1",
			PhoneNumber:     "+919876543210",
			OutboundTrunkID: "ST_out",
		}},
		calls: newFakeCallRepo(),
	}
	rooms := &fakeRooms{dialErr: errors.New("sip timeout")}
	svc := NewService(repos, rooms, &fakeVendor{}, nil)

	_, err := svc.StartCall(context.Background(), testAgent(), &domain.OutboundCallRequest{To: "+918888888888"})
	require.Error(t, err)

	// Room is reclaimed and the call record closed as failed.
	require.Len(t, rooms.deletedRooms, 1)
	rec := repos.calls.records["call-1"]
	require.NotNil(t, rec)
	assert.Equal(t, domain.CallStatusFailed, rec.Status)
	assert.NotNil(t, rec.EndedAt)
}
