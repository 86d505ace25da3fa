package livekit

import (
	"context"
	"fmt"

	"github.com/livekit/protocol/livekit"
	lksdk "github.com/livekit/server-sdk-go/v2"
	"go.uber.org/zap"

	"github.com/voxlane/voice-platform/pkg/logger"
)

// ProvisionedTrunks holds the control-plane resource IDs created for one
// phone number binding.
type ProvisionedTrunks struct {
	InboundTrunkID  string
	OutboundTrunkID string
	DispatchRuleID  string
}

// SIPProvisioner creates and removes the SIP resources that bind a phone
// number to agent rooms: an inbound trunk, an outbound trunk and a dispatch
// rule routing inbound calls into per-call rooms.
type SIPProvisioner struct {
	config    *LiveKitConfig
	sipClient *lksdk.SIPClient
}

// NewSIPProvisioner creates a new SIP provisioner
func NewSIPProvisioner(config *LiveKitConfig) (*SIPProvisioner, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid LiveKit config: %w", err)
	}

	return &SIPProvisioner{
		config:    config,
		sipClient: lksdk.NewSIPClient(config.ServerURL, config.APIKey, config.APISecret),
	}, nil
}

// Provision creates the full trunk set for a phone number. On dispatch rule
// failure the already-created trunks are deleted so no half-bound number is
// left behind.
func (p *SIPProvisioner) Provision(ctx context.Context, phoneNumber, agentID, metadata string) (*ProvisionedTrunks, error) {
	inbound, err := p.sipClient.CreateSIPInboundTrunk(ctx, &livekit.CreateSIPInboundTrunkRequest{
		Trunk: &livekit.SIPInboundTrunkInfo{
			Name:    fmt.Sprintf("inbound-%s", phoneNumber),
			Numbers: []string{phoneNumber},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create inbound trunk: %w", err)
	}

	outbound, err := p.sipClient.CreateSIPOutboundTrunk(ctx, &livekit.CreateSIPOutboundTrunkRequest{
		Trunk: &livekit.SIPOutboundTrunkInfo{
			Name:    fmt.Sprintf("outbound-%s", phoneNumber),
			Address: p.config.SIPDomain,
			Numbers: []string{phoneNumber},
		},
	})
	if err != nil {
		p.cleanupTrunk(ctx, inbound.SipTrunkId)
		return nil, fmt.Errorf("failed to create outbound trunk: %w", err)
	}

	rule, err := p.sipClient.CreateSIPDispatchRule(ctx, &livekit.CreateSIPDispatchRuleRequest{
		Name:     fmt.Sprintf("dispatch-%s", phoneNumber),
		TrunkIds: []string{inbound.SipTrunkId},
		Metadata: metadata,
		Rule: &livekit.SIPDispatchRule{
			Rule: &livekit.SIPDispatchRule_DispatchRuleIndividual{
				DispatchRuleIndividual: &livekit.SIPDispatchRuleIndividual{
					RoomPrefix: fmt.Sprintf("call-%s-", agentID),
				},
			},
		},
	})
	if err != nil {
		p.cleanupTrunk(ctx, inbound.SipTrunkId)
		p.cleanupTrunk(ctx, outbound.SipTrunkId)
		return nil, fmt.Errorf("failed to create dispatch rule: %w", err)
	}

	logger.L().Info("SIP resources provisioned",
		zap.String("phone_number", phoneNumber),
		zap.String("inbound_trunk_id", inbound.SipTrunkId),
		zap.String("outbound_trunk_id", outbound.SipTrunkId),
		zap.String("dispatch_rule_id", rule.SipDispatchRuleId))

	return &ProvisionedTrunks{
		InboundTrunkID:  inbound.SipTrunkId,
		OutboundTrunkID: outbound.SipTrunkId,
		DispatchRuleID:  rule.SipDispatchRuleId,
	}, nil
}

// Deprovision removes the trunk set. Each deletion is attempted even when an
// earlier one fails; the combined error is returned for logging.
func (p *SIPProvisioner) Deprovision(ctx context.Context, trunks *ProvisionedTrunks) error {
	var firstErr error

	if trunks.DispatchRuleID != "" {
		_, err := p.sipClient.DeleteSIPDispatchRule(ctx, &livekit.DeleteSIPDispatchRuleRequest{
			SipDispatchRuleId: trunks.DispatchRuleID,
		})
		if err != nil {
			firstErr = fmt.Errorf("failed to delete dispatch rule: %w", err)
		}
	}

	for _, trunkID := range []string{trunks.InboundTrunkID, trunks.OutboundTrunkID} {
		if trunkID == "" {
			continue
		}
		_, err := p.sipClient.DeleteSIPTrunk(ctx, &livekit.DeleteSIPTrunkRequest{
			SipTrunkId: trunkID,
		})
		if err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to delete trunk %s: %w", trunkID, err)
		}
	}

	return firstErr
}

func (p *SIPProvisioner) cleanupTrunk(ctx context.Context, trunkID string) {
	_, err := p.sipClient.DeleteSIPTrunk(ctx, &livekit.DeleteSIPTrunkRequest{SipTrunkId: trunkID})
	if err != nil {
		logger.L().Warn("failed to clean up trunk after provisioning error",
			zap.String("trunk_id", trunkID), zap.Error(err))
	}
}
