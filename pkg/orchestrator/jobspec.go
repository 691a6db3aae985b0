package orchestrator

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/api/resource"
)

const (
	containerName            = "train-conductor-training"
	configEnvVar             = "SFT_TRAINER_CONFIG_JSON_ENV_VAR"
	allowDownloadsEnvVar     = "ALLOW_DOWNLOADS"
	gpuResourceName          = "nvidia.com/gpu"
)

var validate = validator.New()

// buildBatchJob materialises spec into a batch/v1 Job body. It never
// talks to the cluster — validation and object construction are pure
// so they can be tested without a fake clientset.
func buildBatchJob(spec JobSpec) (*batchv1.Job, error) {
	volumes := make([]corev1.Volume, 0, len(spec.Volumes))
	mounts := make([]corev1.VolumeMount, 0, len(spec.Volumes))
	for _, v := range spec.Volumes {
		if err := validate.Struct(v); err != nil {
			return nil, fmt.Errorf("orchestrator: invalid volume for job %s: %w", spec.JobID, err)
		}
		volumes = append(volumes, corev1.Volume{
			Name: v.Name,
			VolumeSource: corev1.VolumeSource{
				PersistentVolumeClaim: &corev1.PersistentVolumeClaimVolumeSource{
					ClaimName: v.PVCName,
				},
			},
		})
		mounts = append(mounts, corev1.VolumeMount{
			Name:      v.Name,
			MountPath: v.MountPath,
		})
	}

	name := GenerateName(spec.JobID)
	var backoffLimit int32 = 0

	container := corev1.Container{
		Name:         containerName,
		Image:        spec.Image,
		Command:      spec.Command,
		VolumeMounts: mounts,
		Env: []corev1.EnvVar{
			{Name: configEnvVar, Value: spec.ParametersBlob},
			{Name: allowDownloadsEnvVar, Value: "true"},
		},
		Resources: corev1.ResourceRequirements{
			Limits: corev1.ResourceList{
				gpuResourceName: *resource.NewQuantity(spec.GPUs, resource.DecimalSI),
			},
		},
	}

	var pullSecrets []corev1.LocalObjectReference
	if spec.ImagePullSecret != "" {
		pullSecrets = []corev1.LocalObjectReference{{Name: spec.ImagePullSecret}}
	}

	job := &batchv1.Job{
		TypeMeta: metav1.TypeMeta{APIVersion: "batch/v1", Kind: "Job"},
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: spec.Namespace,
			Labels: map[string]string{
				appLabelKey:   appLabelValue,
				jobIDLabelKey: spec.JobID,
			},
		},
		Spec: batchv1.JobSpec{
			BackoffLimit:          &backoffLimit,
			ActiveDeadlineSeconds: activeDeadline(spec.ActiveDeadlineSeconds),
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{
					Labels: map[string]string{
						appLabelKey:   appLabelValue,
						jobIDLabelKey: spec.JobID,
					},
				},
				Spec: corev1.PodSpec{
					RestartPolicy:    corev1.RestartPolicyNever,
					Containers:       []corev1.Container{container},
					Volumes:          volumes,
					ImagePullSecrets: pullSecrets,
				},
			},
		},
	}
	return job, nil
}

// activeDeadline returns nil for "unlimited" (0) rather than a pointer
// to zero, which Kubernetes would interpret as an immediate deadline.
func activeDeadline(seconds int64) *int64 {
	if seconds <= 0 {
		return nil
	}
	return &seconds
}
