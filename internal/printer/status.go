package printer

import (
	"context"
	"fmt"
)

// Status is a point-in-time summary of the printer for dashboards.
type Status struct {
	DeviceID           string    `json:"device_id"`
	Available          bool      `json:"available"`
	Reason             string    `json:"reason,omitempty"`
	Link               LinkState `json:"link"`
	ProgressPercentage *float64  `json:"progress_percentage"`
	JobID              string    `json:"job_id,omitempty"`
	JobName            string    `json:"job_name,omitempty"`
	PrintState         string    `json:"print_state,omitempty"`
	LightChamberOn     *bool     `json:"light_chamber_state"`
	PrintSpeed         string    `json:"print_speed_state,omitempty"`
}

// Status returns the current summary.
func (d *Device) Status() Status {
	available, reason := d.Available()
	status := Status{
		DeviceID:  d.id,
		Available: available,
		Reason:    reason,
		Link:      d.LinkState(),
	}

	d.procMu.Lock()
	if v, ok := d.snapshot.Number(sectionPrint, fieldPercent); ok {
		status.ProgressPercentage = &v
	}
	status.JobID, _ = d.snapshot.Identifier(sectionPrint, fieldJobID)
	status.JobName, _ = d.snapshot.String(sectionPrint, fieldSubtaskName)
	status.PrintState = d.notifier.State()
	if status.PrintState == "" {
		// Reset on reconnect clears the notifier; fall back to the snapshot.
		status.PrintState, _ = d.snapshot.String(sectionPrint, fieldGcodeState)
	}
	if mode, ok := lightMode(d.snapshot, LightChamber); ok {
		on := mode == "on"
		status.LightChamberOn = &on
	}
	if level, ok := d.snapshot.Number(sectionPrint, fieldSpeedLevel); ok {
		status.PrintSpeed = formatNumber(level)
	}
	d.procMu.Unlock()

	if status.JobName == "" {
		if job := d.jobs.Current(); job != nil {
			status.JobName = job.Name()
		}
	}
	return status
}

// Snapshot returns a deep copy of the current printer state.
func (d *Device) Snapshot() Snapshot {
	d.procMu.Lock()
	defer d.procMu.Unlock()
	return d.snapshot.Clone()
}

// CurrentJob returns the most recent print job, or nil before one was seen.
func (d *Device) CurrentJob() *Job {
	return d.jobs.Current()
}

// CoverImage waits for the current job's cover download and returns it.
// ErrNoCoverImage is returned when no job is known or its task has no cover.
func (d *Device) CoverImage(ctx context.Context) ([]byte, error) {
	job := d.jobs.Current()
	if job == nil {
		return nil, ErrNoCoverImage
	}

	select {
	case <-job.Resolved():
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	cover := job.Cover()
	if cover == nil {
		return nil, fmt.Errorf("%w: job %s", ErrNoCoverImage, job.ID())
	}
	return cover.Wait(ctx)
}

// AMSUnits returns every AMS unit currently reported.
func (d *Device) AMSUnits() []AMSStatus {
	d.procMu.Lock()
	defer d.procMu.Unlock()
	return AMSUnits(d.snapshot)
}

// AMSUnit returns the AMS unit at index.
func (d *Device) AMSUnit(index int) (AMSStatus, error) {
	d.procMu.Lock()
	defer d.procMu.Unlock()
	return AMSUnit(d.snapshot, index)
}
