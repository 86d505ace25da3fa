package provision

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	lk "github.com/voxlane/voice-platform/internal/adapters/livekit"
	"github.com/voxlane/voice-platform/internal/domain"
	"github.com/voxlane/voice-platform/internal/repository"
)

type fakeTelephonyRepo struct {
	byAgent    map[string]*domain.TelephonyConfig
	createErr  error
	deletedIDs []string
}

func newFakeTelephonyRepo() *fakeTelephonyRepo {
	return &fakeTelephonyRepo{byAgent: make(map[string]*domain.TelephonyConfig)}
}

func (f *fakeTelephonyRepo) Create(ctx context.Context, cfg *domain.TelephonyConfig) error {
	if f.createErr != nil {
		return f.createErr
	}
	cfg.ID = fmt.Sprintf("tc-%d", len(f.byAgent)+1)
	f.byAgent[cfg.AgentID] = cfg
	return nil
}

func (f *fakeTelephonyRepo) GetByAgentID(ctx context.Context, agentID string) (*domain.TelephonyConfig, error) {
	if cfg, ok := f.byAgent[agentID]; ok {
		return cfg, nil
	}
	return nil, fmt.Errorf("telephony config for agent %s: %w", agentID, repository.ErrNotFound)
}

func (f *fakeTelephonyRepo) GetByPhoneNumber(ctx context.Context, number string) (*domain.TelephonyConfig, error) {
	for _, cfg := range f.byAgent {
		if cfg.PhoneNumber == number {
			return cfg, nil
		}
	}
	return nil, fmt.Errorf("telephony config for number %s: %w", number, repository.ErrNotFound)
}

func (f *fakeTelephonyRepo) GetAll(ctx context.Context) ([]*domain.TelephonyConfig, error) {
	var all []*domain.TelephonyConfig
	for _, cfg := range f.byAgent {
		all = append(all, cfg)
	}
	return all, nil
}

func (f *fakeTelephonyRepo) Delete(ctx context.Context, id string) error {
	f.deletedIDs = append(f.deletedIDs, id)
	for agentID, cfg := range f.byAgent {
		if cfg.ID == id {
			delete(f.byAgent, agentID)
			return nil
		}
	}
	return repository.ErrNotFound
}

type fakeRepos struct {
	repository.RepositoryManager
	telephony *fakeTelephonyRepo
}

func (f *fakeRepos) TelephonyConfig() repository.TelephonyConfigRepository {
	return f.telephony
}

type fakeLister struct {
	exophones []domain.Exophone
	err       error
}

func (f *fakeLister) ListExophones(ctx context.Context) ([]domain.Exophone, error) {
	return f.exophones, f.err
}

type fakeProvisioner struct {
	provisionErr    error
	provisioned     int
	deprovisioned   []*lk.ProvisionedTrunks
	deprovisionErr  error
	lastPhoneNumber string
}

func (f *fakeProvisioner) Provision(ctx context.Context, phoneNumber, agentID, metadata string) (*lk.ProvisionedTrunks, error) {
	if f.provisionErr != nil {
		return nil, f.provisionErr
	}
	f.provisioned++
	f.lastPhoneNumber = phoneNumber
	return &lk.ProvisionedTrunks{
		InboundTrunkID:  "ST_in",
		OutboundTrunkID: "ST_out",
		DispatchRuleID:  "SDR_1",
	}, nil
}

func (f *fakeProvisioner) Deprovision(ctx context.Context, trunks *lk.ProvisionedTrunks) error {
	f.deprovisioned = append(f.deprovisioned, trunks)
	return f.deprovisionErr
}

func newTestService(telephony *fakeTelephonyRepo, lister *fakeLister, prov *fakeProvisioner) *Service {
	return NewService(&fakeRepos{telephony: telephony}, lister, prov, "sip.example.com")
}

func testAgent() *domain.AgentConfig {
	return &domain.AgentConfig{
		ID:     "agent-1",
		UserID: "user-1",
		Name:   "Support Agent",
	}
}

func TestProvision_Success(t *testing.T) {
	telephony := newFakeTelephonyRepo()
	lister := &fakeLister{exophones: []domain.Exophone{
		{SID: "EX1", PhoneNumber: "+919876543210"},
	}}
	prov := &fakeProvisioner{}
	svc := newTestService(telephony, lister, prov)

	cfg, err := svc.Provision(context.Background(), testAgent(), &domain.ProvisionTelephonyRequest{
		PhoneNumber: "09876543210", // trunk-prefix form of the inventory number
	})
	require.NoError(t, err)

	assert.Equal(t, "+919876543210", cfg.PhoneNumber)
	assert.Equal(t, "EX1", cfg.ExophoneSID)
	assert.Equal(t, "ST_in", cfg.InboundTrunkID)
	assert.Equal(t, "ST_out", cfg.OutboundTrunkID)
	assert.Equal(t, "SDR_1", cfg.DispatchRuleID)
	assert.Equal(t, "sip.example.com", cfg.SIPDomain)
	assert.Equal(t, 1, prov.provisioned)
	assert.Equal(t, "+919876543210", prov.lastPhoneNumber)
}

func TestProvision_NumberNotInInventory(t *testing.T) {
	telephony := newFakeTelephonyRepo()
	lister := &fakeLister{exophones: []domain.Exophone{
		{SID: "EX1", PhoneNumber: "+919876543210"},
	}}
	prov := &fakeProvisioner{}
	svc := newTestService(telephony, lister, prov)

	_, err := svc.Provision(context.Background(), testAgent(), &domain.ProvisionTelephonyRequest{
		PhoneNumber: "+918888888888",
	})
	assert.ErrorIs(t, err, ErrNumberNotInInventory)
	assert.Zero(t, prov.provisioned)
}

func TestProvision_NumberAlreadyBound(t *testing.T) {
	telephony := newFakeTelephonyRepo()
	telephony.byAgent["other-agent"] = &domain.TelephonyConfig{
		ID:          "tc-0",
		AgentID:     "other-agent",
		PhoneNumber: "+919876543210",
	}
	lister := &fakeLister{exophones: []domain.Exophone{
		{SID: "EX1", PhoneNumber: "+919876543210"},
	}}
	prov := &fakeProvisioner{}
	svc := newTestService(telephony, lister, prov)

	_, err := svc.Provision(context.Background(), testAgent(), &domain.ProvisionTelephonyRequest{
		PhoneNumber: "9876543210",
	})
	assert.ErrorIs(t, err, ErrNumberAlreadyBound)
}

func TestProvision_AgentAlreadyProvisioned(t *testing.T) {
	telephony := newFakeTelephonyRepo()
	telephony.byAgent["agent-1"] = &domain.TelephonyConfig{
		ID:          "tc-0",
		AgentID:     "agent-1",
		PhoneNumber: "+917777777777",
	}
	svc := newTestService(telephony, &fakeLister{}, &fakeProvisioner{})

	_, err := svc.Provision(context.Background(), testAgent(), &domain.ProvisionTelephonyRequest{
		PhoneNumber: "+919876543210",
	})
	assert.ErrorIs(t, err, ErrAlreadyProvisioned)
}

func TestProvision_RollsBackOnPersistFailure(t *testing.T) {
	telephony := newFakeTelephonyRepo()
	telephony.createErr = errors.New("db down")
	lister := &fakeLister{exophones: []domain.Exophone{
		{SID: "EX1", PhoneNumber: "+919876543210"},
	}}
	prov := &fakeProvisioner{}
	svc := newTestService(telephony, lister, prov)

	_, err := svc.Provision(context.Background(), testAgent(), &domain.ProvisionTelephonyRequest{
		PhoneNumber: "+919876543210",
	})
	require.Error(t, err)

	// The SIP resources created before the DB failure must be removed.
	require.Len(t, prov.deprovisioned, 1)
	assert.Equal(t, "ST_in", prov.deprovisioned[0].InboundTrunkID)
}

func TestTeardown_BestEffortOnVendorFailure(t *testing.T) {
	telephony := newFakeTelephonyRepo()
	telephony.byAgent["agent-1"] = &domain.TelephonyConfig{
		ID:             "tc-1",
		AgentID:        "agent-1",
		PhoneNumber:    "+919876543210",
		InboundTrunkID: "ST_in",
	}
	prov := &fakeProvisioner{deprovisionErr: errors.New("vendor 500")}
	svc := newTestService(telephony, &fakeLister{}, prov)

	err := svc.Teardown(context.Background(), "agent-1")
	require.NoError(t, err)

	// Local binding is removed even though the vendor call failed.
	assert.Contains(t, telephony.deletedIDs, "tc-1")
	assert.Empty(t, telephony.byAgent)
}

func TestTeardown_NotProvisioned(t *testing.T) {
	svc := newTestService(newFakeTelephonyRepo(), &fakeLister{}, &fakeProvisioner{})

	err := svc.Teardown(context.Background(), "agent-1")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestListNumbers_MarksBoundNumbersInUse(t *testing.T) {
	telephony := newFakeTelephonyRepo()
	telephony.byAgent["agent-1"] = &domain.TelephonyConfig{
		ID:          "tc-1",
		AgentID:     "agent-1",
		PhoneNumber: "+919876543210",
	}
	lister := &fakeLister{exophones: []domain.Exophone{
		{SID: "EX1", PhoneNumber: "+919876543210"},
		{SID: "EX2", PhoneNumber: "+918888888888"},
	}}
	svc := newTestService(telephony, lister, &fakeProvisioner{})

	numbers, err := svc.ListNumbers(context.Background())
	require.NoError(t, err)
	require.Len(t, numbers, 2)
	assert.True(t, numbers[0].InUse)
	assert.False(t, numbers[1].InUse)
}
