package app

import (
	"github.com/charlesng35/regprofile/internal/services"
)

// ServiceOptions converts DraftsConfig into DraftService options. Zero values keep the service defaults.
func (c DraftsConfig) ServiceOptions() []services.DraftOption {
	var opts []services.DraftOption
	if c.TTL > 0 {
		opts = append(opts, services.WithDraftTTL(c.TTL))
	}
	if c.MaxPayloadBytes > 0 {
		opts = append(opts, services.WithDraftMaxPayload(c.MaxPayloadBytes))
	}
	return opts
}
