package provision

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/voxlane/voice-platform/internal/adapters/exotel"
	lk "github.com/voxlane/voice-platform/internal/adapters/livekit"
	"github.com/voxlane/voice-platform/internal/domain"
	"github.com/voxlane/voice-platform/internal/repository"
	"github.com/voxlane/voice-platform/internal/services/session"
	"github.com/voxlane/voice-platform/pkg/logger"
)

var (
	// ErrNumberNotInInventory means the requested number is not one of the
	// account's exophones.
	ErrNumberNotInInventory = errors.New("phone number not in vendor inventory")

	// ErrNumberAlreadyBound means another agent already owns the number.
	ErrNumberAlreadyBound = errors.New("phone number already bound to an agent")

	// ErrAlreadyProvisioned means the agent already has telephony attached.
	ErrAlreadyProvisioned = errors.New("agent already has a phone number attached")
)

// ExophoneLister lists the vendor's purchased number inventory.
type ExophoneLister interface {
	ListExophones(ctx context.Context) ([]domain.Exophone, error)
}

// TrunkProvisioner creates and removes SIP resources for a number binding.
type TrunkProvisioner interface {
	Provision(ctx context.Context, phoneNumber, agentID, metadata string) (*lk.ProvisionedTrunks, error)
	Deprovision(ctx context.Context, trunks *lk.ProvisionedTrunks) error
}

// Service wires vendor phone numbers to agents: inventory lookup, SIP trunk
// and dispatch rule provisioning and teardown.
type Service struct {
	repos       repository.RepositoryManager
	exophones   ExophoneLister
	provisioner TrunkProvisioner
	sipDomain   string
}

// NewService creates a new provisioning service
func NewService(repos repository.RepositoryManager, exophones ExophoneLister, provisioner TrunkProvisioner, sipDomain string) *Service {
	return &Service{
		repos:       repos,
		exophones:   exophones,
		provisioner: provisioner,
		sipDomain:   sipDomain,
	}
}

// ListNumbers returns the exophone inventory with numbers already bound to
// an agent marked in use.
func (s *Service) ListNumbers(ctx context.Context) ([]domain.Exophone, error) {
	inventory, err := s.exophones.ListExophones(ctx)
	if err != nil {
		return nil, err
	}

	bound, err := s.repos.TelephonyConfig().GetAll(ctx)
	if err != nil {
		return nil, err
	}

	for i := range inventory {
		for _, cfg := range bound {
			if exotel.SameNumber(inventory[i].PhoneNumber, cfg.PhoneNumber) {
				inventory[i].InUse = true
				break
			}
		}
	}

	return inventory, nil
}

// Provision binds a vendor number to an agent: validates the number against
// the inventory, creates the SIP trunk set and persists the binding. SIP
// resources created before a later step fails are torn back down.
func (s *Service) Provision(ctx context.Context, agent *domain.AgentConfig, req *domain.ProvisionTelephonyRequest) (*domain.TelephonyConfig, error) {
	number := exotel.NormalizePhoneNumber(req.PhoneNumber)

	if _, err := s.repos.TelephonyConfig().GetByAgentID(ctx, agent.ID); err == nil {
		return nil, ErrAlreadyProvisioned
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	if _, err := s.repos.TelephonyConfig().GetByPhoneNumber(ctx, number); err == nil {
		return nil, ErrNumberAlreadyBound
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	exophone, err := s.findExophone(ctx, number)
	if err != nil {
		return nil, err
	}

	metadata, err := session.Metadata(session.Resolve(agent, domain.CallDirectionInbound))
	if err != nil {
		return nil, err
	}

	trunks, err := s.provisioner.Provision(ctx, number, agent.ID, metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to provision SIP resources: %w", err)
	}

	cfg := &domain.TelephonyConfig{
		AgentID:         agent.ID,
		PhoneNumber:     number,
		ExophoneSID:     exophone.SID,
		InboundTrunkID:  trunks.InboundTrunkID,
		OutboundTrunkID: trunks.OutboundTrunkID,
		DispatchRuleID:  trunks.DispatchRuleID,
		SIPDomain:       s.sipDomain,
		Active:          true,
	}

	if err := s.repos.TelephonyConfig().Create(ctx, cfg); err != nil {
		// Roll the vendor state back so the number stays free.
		if depErr := s.provisioner.Deprovision(ctx, trunks); depErr != nil {
			logger.L().Error("failed to roll back SIP resources after DB error",
				zap.String("agent_id", agent.ID), zap.Error(depErr))
		}
		return nil, fmt.Errorf("failed to persist telephony config: %w", err)
	}

	return cfg, nil
}

// Teardown unbinds an agent's number. SIP resource deletion is best effort:
// vendor failures are logged and the local binding is removed regardless, so
// a vendor outage cannot wedge the agent.
func (s *Service) Teardown(ctx context.Context, agentID string) error {
	cfg, err := s.repos.TelephonyConfig().GetByAgentID(ctx, agentID)
	if err != nil {
		return err
	}

	trunks := &lk.ProvisionedTrunks{
		InboundTrunkID:  cfg.InboundTrunkID,
		OutboundTrunkID: cfg.OutboundTrunkID,
		DispatchRuleID:  cfg.DispatchRuleID,
	}
	if err := s.provisioner.Deprovision(ctx, trunks); err != nil {
		logger.L().Warn("SIP teardown incomplete, removing local binding anyway",
			zap.String("agent_id", agentID),
			zap.String("phone_number", cfg.PhoneNumber),
			zap.Error(err))
	}

	return s.repos.TelephonyConfig().Delete(ctx, cfg.ID)
}

func (s *Service) findExophone(ctx context.Context, number string) (*domain.Exophone, error) {
	inventory, err := s.exophones.ListExophones(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch exophone inventory: %w", err)
	}

	for i := range inventory {
		if exotel.SameNumber(inventory[i].PhoneNumber, number) {
			return &inventory[i], nil
		}
	}

	return nil, ErrNumberNotInInventory
}
