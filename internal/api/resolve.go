package api

import (
	"context"

	"github.com/forgehq/sidecar/internal/registry"
	"github.com/forgehq/sidecar/internal/resolver"
	"github.com/forgehq/sidecar/pkg/models"
)

// resolved bundles everything a request handler needs to drive one ReAct
// loop turn: the per-request tool/verifier index and the merged Effective
// config for the named (or default) agent.
type resolved struct {
	Effective resolver.Effective
	Index     *registry.Index
	HitlLevel models.HitlLevel
}

// resolveAgent loads the registry index and merges base config, agent
// overrides, and user preferences into one Effective tuple (§4.2).
func (s *Server) resolveAgent(ctx context.Context, agentID, userID string) (resolved, error) {
	idx, err := registry.Build(ctx, s.cfg.Catalog, s.cfg.Catalog)
	if err != nil {
		return resolved{}, err
	}

	var agentRow *models.Agent
	if agentID != "" {
		// A lookup miss is left as a nil agentRow: resolver.Resolve already
		// turns a non-empty agentID with a nil agent into ErrAgentNotFound.
		if row, err := s.cfg.Catalog.GetAgent(ctx, agentID); err == nil {
			agentRow = row
		}
	}
	defaultAgent, err := s.cfg.Catalog.GetDefaultAgent(ctx)
	if err != nil {
		defaultAgent = nil
	}

	var prefs *models.UserPreferences
	if userID != "" {
		if p, err := s.cfg.Catalog.GetPreferences(ctx, userID); err == nil {
			prefs = p
		}
	}

	promptAgentID := agentID
	if promptAgentID == "" && defaultAgent != nil {
		promptAgentID = defaultAgent.ID
	}
	activePrompt, err := s.cfg.Catalog.ActivePrompt(ctx, promptAgentID)
	if err != nil {
		return resolved{}, err
	}

	effectiveCfg := s.cfg.Overlay.Effective()
	base := resolver.BaseConfig{
		DefaultModel:         effectiveCfg.DefaultModel,
		DefaultHitlLevel:     models.HitlLevel(effectiveCfg.DefaultHitlLevel),
		AllowUserModelSelect: effectiveCfg.AllowUserModelSelect,
		AllowUserHitlConfig:  effectiveCfg.AllowUserHitlConfig,
	}

	eff, err := resolver.Resolve(base, agentID, agentRow, defaultAgent, prefs, activePrompt, idx)
	if err != nil {
		return resolved{}, err
	}

	return resolved{Effective: eff, Index: idx, HitlLevel: eff.HitlLevel}, nil
}
