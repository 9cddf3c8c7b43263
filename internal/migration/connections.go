package migration

import (
	"context"
	"time"
)

// CheckResult is the outcome of probing one side of the migration.
type CheckResult struct {
	OK      bool          `json:"ok"`
	Error   string        `json:"error,omitempty"`
	Elapsed time.Duration `json:"elapsed_ns"`
}

// ConnectionStatus reports both endpoints.
type ConnectionStatus struct {
	Destination CheckResult `json:"destination"`
	Source      CheckResult `json:"source"`
}

// OK reports whether both endpoints are reachable.
func (s ConnectionStatus) OK() bool {
	return s.Destination.OK && s.Source.OK
}

// CheckConnections authenticates against the destination and opens the
// source, independently of each other.
func (m *Migrator) CheckConnections(ctx context.Context) ConnectionStatus {
	var status ConnectionStatus

	start := time.Now()
	if err := m.dest.Authenticate(ctx); err != nil {
		status.Destination.Error = err.Error()
	} else {
		status.Destination.OK = true
	}
	status.Destination.Elapsed = time.Since(start)

	start = time.Now()
	src, err := m.connect(ctx)
	if err != nil {
		status.Source.Error = err.Error()
	} else {
		status.Source.OK = true
		if cerr := src.Close(); cerr != nil {
			m.log.Warn().Err(cerr).Msg("Failed to close source after connection check")
		}
	}
	status.Source.Elapsed = time.Since(start)

	m.log.Info().
		Bool("destination_ok", status.Destination.OK).
		Bool("source_ok", status.Source.OK).
		Msg("Connection check finished")

	return status
}
