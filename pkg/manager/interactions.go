package manager

import (
	"context"

	"github.com/leadscope/leadscope/pkg/lead"
)

// LogInteraction records a touchpoint with the lead. Email, call and meeting
// entries also update the lead's last-contacted time.
func (m *Manager) LogInteraction(ctx context.Context, id int64, typ, details string) (lead.Interaction, error) {
	if err := ctx.Err(); err != nil {
		return lead.Interaction{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	in, err := m.store.AddInteraction(lead.Interaction{LeadID: id, Type: typ, Details: details})
	if err != nil {
		return lead.Interaction{}, err
	}
	m.log.Debugf("Logged %s for lead %d", in.Type, id)
	return in, nil
}

// Interactions returns the lead's interaction log, oldest first.
func (m *Manager) Interactions(id int64) ([]lead.Interaction, error) {
	return m.store.Interactions(id)
}

// AllInteractions returns every lead's log, for persistence.
func (m *Manager) AllInteractions() []lead.Interaction {
	return m.store.AllInteractions()
}

// RestoreInteractions replays a persisted log after Load. Entries for leads
// that are no longer present are reported and skipped.
func (m *Manager) RestoreInteractions(log []lead.Interaction) []error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	for _, in := range log {
		if _, err := m.store.AddInteraction(in); err != nil {
			m.log.Warnf("Skipping stored interaction %s: %v", in.ID, err)
			errs = append(errs, err)
		}
	}
	return errs
}
