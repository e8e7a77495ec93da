package engine

import (
	"context"
	"encoding/json"
	"time"

	"formedit/engine/internal/errinfo"
	"formedit/engine/internal/settings"
)

func (e *Engine) SettingsGet(ctx context.Context, _ json.RawMessage) (any, *errinfo.ErrorInfo) {
	cfg, err := e.settings.Load()
	if err != nil {
		return nil, errinfo.FileReadFailed(errinfo.PhaseSettings, err.Error())
	}
	return map[string]any{"settings": cfg}, nil
}

// SettingsUpdate applies the fields present in the request. Invalid values
// are normalized to defaults by the store.
func (e *Engine) SettingsUpdate(ctx context.Context, params json.RawMessage) (any, *errinfo.ErrorInfo) {
	var req struct {
		Highlights *struct {
			Added    *string `json:"added"`
			Modified *string `json:"modified"`
			Merged   *string `json:"merged"`
		} `json:"highlights"`
		ChoicePolicy      *string `json:"choice_policy"`
		SessionTTLMinutes *int    `json:"session_ttl_minutes"`
	}
	if errInfo := decodeParams(errinfo.PhaseSettings, params, &req); errInfo != nil {
		return nil, errInfo
	}
	cfg, err := e.settings.Update(func(s *settings.Settings) {
		if h := req.Highlights; h != nil {
			if h.Added != nil {
				s.Highlights.Added = *h.Added
			}
			if h.Modified != nil {
				s.Highlights.Modified = *h.Modified
			}
			if h.Merged != nil {
				s.Highlights.Merged = *h.Merged
			}
		}
		if req.ChoicePolicy != nil {
			s.ChoicePolicy = *req.ChoicePolicy
		}
		if req.SessionTTLMinutes != nil {
			s.SessionTTLMinutes = *req.SessionTTLMinutes
		}
	})
	if err != nil {
		return nil, errinfo.FileWriteFailed(errinfo.PhaseSettings, err.Error())
	}
	e.sessions.SetTTL(time.Duration(cfg.SessionTTLMinutes) * time.Minute)
	e.logger.Info("settings.updated", "choice_policy", cfg.ChoicePolicy, "session_ttl_minutes", cfg.SessionTTLMinutes)
	e.emit("SettingsChanged", map[string]any{"settings": cfg})
	return map[string]any{"settings": cfg}, nil
}
