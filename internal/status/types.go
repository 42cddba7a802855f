package status

import "time"

// CyclePhase is the outcome of a DataSource load cycle
type CyclePhase string

const (
	// CyclePhaseLoading means a cycle is in progress
	CyclePhaseLoading CyclePhase = "Loading"

	// CyclePhaseComplete means every enabled source was requested
	CyclePhaseComplete CyclePhase = "Complete"

	// CyclePhaseFailed means the cycle was abandoned
	CyclePhaseFailed CyclePhase = "Failed"

	// CyclePhaseInert means monitoring is switched off and nothing ran
	CyclePhaseInert CyclePhase = "Inert"
)

// Mode says where the cycle took its sources from
type Mode string

const (
	// ModeCatalog loads the sources listed by the remote catalog
	ModeCatalog Mode = "catalog"

	// ModeDev loads the single development source
	ModeDev Mode = "dev"
)

// CycleStatus records the most recent load cycle
type CycleStatus struct {
	// Phase is the cycle's current or final phase
	Phase CyclePhase `json:"phase"`

	// Mode is empty until the dev-mode setting has been read
	Mode Mode `json:"mode,omitempty"`

	// Message explains a failure or a catalog-reported error
	Message string `json:"message,omitempty"`

	// RequestedSources is the number of load requests sent
	RequestedSources int `json:"requestedSources"`

	// LastAttempt is when the cycle started
	LastAttempt *time.Time `json:"lastAttempt,omitempty"`

	// LastSuccess is when a cycle last completed
	LastSuccess *time.Time `json:"lastSuccess,omitempty"`

	// FailureCount counts consecutive failed cycles
	FailureCount int `json:"failureCount,omitempty"`
}
