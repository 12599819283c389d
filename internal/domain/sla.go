package domain

import "time"

// SLAConfig holds the deadlines for one priority. Minutes are business minutes.
type SLAConfig struct {
	Priority          TicketPriority
	ResponseMinutes   int
	ResolutionMinutes int
	UpdatedAt         time.Time
}

// MinutesFor returns the budget for phase, or 0 when the phase carries no deadline.
func (c SLAConfig) MinutesFor(phase SLAPhase) int {
	switch phase {
	case SLAPhaseResponse:
		return c.ResponseMinutes
	case SLAPhaseResolution:
		return c.ResolutionMinutes
	}
	return 0
}

// DefaultSLAConfigs is the configuration installed into an empty store.
func DefaultSLAConfigs() []SLAConfig {
	return []SLAConfig{
		{Priority: TicketPriorityUrgent, ResponseMinutes: 15, ResolutionMinutes: 240},
		{Priority: TicketPriorityHigh, ResponseMinutes: 60, ResolutionMinutes: 480},
		{Priority: TicketPriorityMedium, ResponseMinutes: 240, ResolutionMinutes: 1440},
		{Priority: TicketPriorityLow, ResponseMinutes: 480, ResolutionMinutes: 2880},
	}
}
