package orchestrator

import "testing"

func TestGenerateName(t *testing.T) {
	if got := GenerateName("A"); got != "train-conductor-tuning-job.A" {
		t.Errorf("GenerateName(A) = %s", got)
	}
}

func TestBuildBatchJob(t *testing.T) {
	spec := JobSpec{
		JobID:     "A",
		Namespace: "training",
		Image:     "tuning:latest",
		Command:   []string{"python", "/app/launch_training.py"},
		GPUs:      2,
		ParametersBlob:  "YmFzZTY0",
		ImagePullSecret: "regcred",
		Volumes: []VolumeMount{
			{Name: "data", PVCName: "data-pvc", MountPath: "/data"},
		},
	}

	job, err := buildBatchJob(spec)
	if err != nil {
		t.Fatalf("buildBatchJob: %v", err)
	}

	if job.Name != "train-conductor-tuning-job.A" {
		t.Errorf("unexpected name: %s", job.Name)
	}
	if job.Namespace != "training" {
		t.Errorf("unexpected namespace: %s", job.Namespace)
	}
	if job.Labels["job_id"] != "A" || job.Labels["app"] != "train-conductor-stack" {
		t.Errorf("unexpected labels: %v", job.Labels)
	}
	if *job.Spec.BackoffLimit != 0 {
		t.Errorf("expected backoff limit 0, got %d", *job.Spec.BackoffLimit)
	}
	if job.Spec.ActiveDeadlineSeconds != nil {
		t.Errorf("expected nil active deadline for unlimited, got %v", *job.Spec.ActiveDeadlineSeconds)
	}
	if job.Spec.Template.Spec.RestartPolicy != "Never" {
		t.Errorf("unexpected restart policy: %s", job.Spec.Template.Spec.RestartPolicy)
	}
	container := job.Spec.Template.Spec.Containers[0]
	if container.Image != "tuning:latest" {
		t.Errorf("unexpected image: %s", container.Image)
	}
	gpu := container.Resources.Limits["nvidia.com/gpu"]
	if gpu.Value() != 2 {
		t.Errorf("expected gpu limit 2, got %v", gpu.Value())
	}
	foundConfig, foundDownloads := false, false
	for _, e := range container.Env {
		if e.Name == "SFT_TRAINER_CONFIG_JSON_ENV_VAR" && e.Value == "YmFzZTY0" {
			foundConfig = true
		}
		if e.Name == "ALLOW_DOWNLOADS" && e.Value == "true" {
			foundDownloads = true
		}
	}
	if !foundConfig || !foundDownloads {
		t.Errorf("missing expected env vars: %+v", container.Env)
	}
	if len(job.Spec.Template.Spec.Volumes) != 1 || job.Spec.Template.Spec.Volumes[0].Name != "data" {
		t.Errorf("unexpected volumes: %+v", job.Spec.Template.Spec.Volumes)
	}
	if len(job.Spec.Template.Spec.ImagePullSecrets) != 1 || job.Spec.Template.Spec.ImagePullSecrets[0].Name != "regcred" {
		t.Errorf("unexpected pull secrets: %+v", job.Spec.Template.Spec.ImagePullSecrets)
	}
}

func TestBuildBatchJobActiveDeadline(t *testing.T) {
	spec := JobSpec{JobID: "A", ActiveDeadlineSeconds: 3600}
	job, err := buildBatchJob(spec)
	if err != nil {
		t.Fatalf("buildBatchJob: %v", err)
	}
	if job.Spec.ActiveDeadlineSeconds == nil || *job.Spec.ActiveDeadlineSeconds != 3600 {
		t.Errorf("expected active deadline 3600, got %v", job.Spec.ActiveDeadlineSeconds)
	}
}

func TestBuildBatchJobRejectsInvalidVolume(t *testing.T) {
	spec := JobSpec{
		JobID:   "A",
		Volumes: []VolumeMount{{Name: "", PVCName: "x", MountPath: "/x"}},
	}
	if _, err := buildBatchJob(spec); err == nil {
		t.Fatal("expected validation error for empty volume name")
	}
}
