package orchestrator

import (
	"github.com/train-conductor/conductor/pkg/status"
)

// Job is the subset of an orchestrator-side batch job the conductor
// cares about: enough to correlate it with a registry record and feed
// the status mapper.
type Job struct {
	Name   string
	JobID  string
	Status status.JobStatus
}

// VolumeMount is one {name, pvc_name, mount_path} triple from
// trainer_config.training_volumes.
type VolumeMount struct {
	Name      string `validate:"required"`
	PVCName   string `validate:"required"`
	MountPath string `validate:"required"`
}

// JobSpec is everything the Materialiser needs to submit a batch job.
type JobSpec struct {
	JobID                 string
	Namespace             string
	Image                 string
	Command               []string
	GPUs                  int64
	ParametersBlob         string // base64-wrapped, binary-serialised payload
	Volumes               []VolumeMount
	ImagePullSecret        string
	ActiveDeadlineSeconds  int64 // 0 = unlimited
}

// EventType mirrors the subset of watch.EventType the reconciler needs.
type EventType string

const (
	EventAdded    EventType = "ADDED"
	EventModified EventType = "MODIFIED"
	EventDeleted  EventType = "DELETED"
)

// WatchEvent is one item off the orchestrator watch stream.
type WatchEvent struct {
	Type EventType
	Job  Job
}

// appLabelKey/appLabelValue and jobIDLabelKey are the labels every
// created job carries.
const (
	appLabelKey   = "app"
	appLabelValue = "train-conductor-stack"
	jobIDLabelKey = "job_id"
)

// GenerateName computes the deterministic orchestrator-side job name
// for a job id, guaranteeing at most one live job per id.
func GenerateName(jobID string) string {
	return "train-conductor-tuning-job." + jobID
}
