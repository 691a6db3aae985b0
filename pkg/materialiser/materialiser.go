// Package materialiser builds and submits the batch job for a
// registry record, then writes back the identifiers and initial
// status the Reconciler needs to track it.
package materialiser

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/gob"
	"encoding/json"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/train-conductor/conductor/pkg/orchestrator"
	"github.com/train-conductor/conductor/pkg/registry"
	"github.com/train-conductor/conductor/pkg/status"
)

// timestampFormat is spec.md §4.2's MM/DD/YYYY HH:MM:SS.
const timestampFormat = "01/02/2006 15:04:05"

func init() {
	// gob requires every concrete type that will cross an interface{}
	// boundary to be registered; json.Unmarshal into map[string]any
	// only ever produces these five.
	gob.Register(float64(0))
	gob.Register("")
	gob.Register(false)
	gob.Register([]interface{}{})
	gob.Register(map[string]interface{}{})
}

// Config is the static, trainer_config-derived shape of every job this
// conductor submits.
type Config struct {
	Image                 string
	Namespace             string
	ImagePullSecret       string
	Command               []string
	DefaultGPUs           int64
	JobTimeLimitSeconds   int64 // 0 = unlimited
	Volumes               []orchestrator.VolumeMount
}

// parameters is the subset of the opaque training-parameters payload
// the conductor itself interprets; everything else passes through
// unexamined in the serialised blob.
type parameters struct {
	NumGPUs int64 `json:"num_gpus"`
}

// Materialiser submits batch jobs and records the result.
type Materialiser struct {
	orch Orchestrator
	reg  Registry
	cfg  Config
	log  *logrus.Entry
}

// Orchestrator is the subset materialiser.Materialiser needs.
type Orchestrator interface {
	CreateJob(ctx context.Context, spec orchestrator.JobSpec) (orchestrator.Job, error)
}

// Registry is the subset materialiser.Materialiser needs.
type Registry interface {
	WriteField(ctx context.Context, jobID, field, value string) error
}

func New(orch Orchestrator, reg Registry, cfg Config) *Materialiser {
	return &Materialiser{
		orch: orch,
		reg:  reg,
		cfg:  cfg,
		log:  logrus.WithField("component", "materialiser"),
	}
}

// Materialise builds a job spec from record and submits it. On success
// it writes submission_timestamp, job_name, namespace, and
// status=PENDING back to the registry. On submission failure it logs
// and returns nil — the next reconcile retries.
//
// A corrupt or missing parameters payload is logged and treated as
// empty, per spec.md §4.5's "Parameter-parse errors are logged;
// materialisation proceeds with empty parameters".
func (m *Materialiser) Materialise(ctx context.Context, jobID string, record registry.Record) error {
	params, rawBlob := m.decodeParameters(jobID, record.Parameters)

	gpus := params.NumGPUs
	if gpus == 0 {
		gpus = m.cfg.DefaultGPUs
	}

	spec := orchestrator.JobSpec{
		JobID:                 jobID,
		Namespace:             m.cfg.Namespace,
		Image:                 m.cfg.Image,
		Command:               m.cfg.Command,
		GPUs:                  gpus,
		ParametersBlob:        rawBlob,
		Volumes:               m.cfg.Volumes,
		ImagePullSecret:       m.cfg.ImagePullSecret,
		ActiveDeadlineSeconds: m.cfg.JobTimeLimitSeconds,
	}

	job, err := m.orch.CreateJob(ctx, spec)
	if err == orchestrator.ErrAlreadyExists {
		// Idempotent relative to the derived name: the next reconcile
		// will observe the existing job and proceed from there.
		m.log.WithField("job_id", jobID).Info("job already exists, letting next reconcile observe it")
		return nil
	}
	if err != nil {
		m.log.WithField("job_id", jobID).WithError(err).Error("failed to submit job, will retry")
		return nil
	}

	now := time.Now().Format(timestampFormat)
	if err := m.reg.WriteField(ctx, jobID, registry.FieldSubmissionTimestamp, now); err != nil {
		return err
	}
	if err := m.reg.WriteField(ctx, jobID, registry.FieldJobName, job.Name); err != nil {
		return err
	}
	if err := m.reg.WriteField(ctx, jobID, registry.FieldNamespace, m.cfg.Namespace); err != nil {
		return err
	}
	if err := m.reg.WriteField(ctx, jobID, registry.FieldStatus, string(status.Pending)); err != nil {
		return err
	}
	m.log.WithField("job_id", jobID).Info("submitted job")
	return nil
}

// decodeParameters parses the record's JSON parameters payload and
// re-encodes it as the base64-wrapped, binary-serialised blob the
// training pod expects (see SPEC_FULL.md §4.2 on gob as the wire-
// compat placeholder for the source ecosystem's pickle encoding).
func (m *Materialiser) decodeParameters(jobID, raw string) (parameters, string) {
	var generic map[string]interface{}
	var p parameters
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &generic); err != nil {
			m.log.WithField("job_id", jobID).WithError(err).Error("could not decode parameters, using empty parameters")
			generic = map[string]interface{}{}
		} else {
			if v, ok := generic["num_gpus"]; ok {
				if f, ok := v.(float64); ok {
					p.NumGPUs = int64(f)
				}
			}
		}
	} else {
		generic = map[string]interface{}{}
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(generic); err != nil {
		m.log.WithField("job_id", jobID).WithError(err).Error("could not encode parameters blob, using empty parameters")
		return p, ""
	}
	return p, base64.StdEncoding.EncodeToString(buf.Bytes())
}
