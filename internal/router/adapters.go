package router

import (
	"github.com/nidhogg/makers-assistant/internal/command"
	"github.com/nidhogg/makers-assistant/internal/gateway"
	"github.com/nidhogg/makers-assistant/internal/provider"
)

// AdapterStatuses exposes gateway adapter state to the /status command.
type AdapterStatuses struct {
	Gateway *gateway.Gateway
}

func (a AdapterStatuses) StatusAll() []command.AdapterStatus {
	all := a.Gateway.StatusAll()
	out := make([]command.AdapterStatus, len(all))
	for i, s := range all {
		out[i] = command.AdapterStatus{Name: s.Platform, Platform: s.Platform, Connected: s.Connected}
	}
	return out
}

// ProviderSwitcher exposes the completion router to provider commands.
type ProviderSwitcher struct {
	Router *provider.Router
}

func (p ProviderSwitcher) SetDefault(id string) bool { return p.Router.SetDefault(id) }

func (p ProviderSwitcher) ListProviders() []command.ProviderInfo {
	def := p.Router.DefaultID()
	list := p.Router.ListProviders()
	out := make([]command.ProviderInfo, len(list))
	for i, pr := range list {
		out[i] = command.ProviderInfo{ID: pr.ID(), Name: pr.Name(), Model: pr.Model(), IsDefault: pr.ID() == def}
	}
	return out
}
