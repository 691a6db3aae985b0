package orchestrator

import (
	"context"
	"fmt"
	"io"

	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/watch"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/train-conductor/conductor/pkg/status"
)

// ClientOptions controls how the cluster connection is built. It
// replaces the source's constructor-time credential load and TLS
// verification bypass (spec.md §9) with explicit, inspectable
// configuration.
type ClientOptions struct {
	// KubeConfigPath is used for local development; when empty,
	// in-cluster configuration is used instead.
	KubeConfigPath string
	// InsecureSkipTLSVerify must be explicitly opted into; it
	// defaults to false (verification on).
	InsecureSkipTLSVerify bool
}

// Cfg builds the *rest.Config for the target cluster. With no
// KubeConfigPath it tries in-cluster config first and falls back to
// clientcmd's defaults — the same fallback order the Python source used
// (load_incluster_config / load_kube_config); with a KubeConfigPath it
// builds from that file without trying in-cluster config.
func (o ClientOptions) Cfg() (*rest.Config, error) {
	if o.KubeConfigPath == "" {
		cfg, err := rest.InClusterConfig()
		if err == nil {
			cfg.TLSClientConfig.Insecure = o.InsecureSkipTLSVerify
			return cfg, nil
		}
	}
	cfg, err := clientcmd.BuildConfigFromFlags("", o.KubeConfigPath)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: build rest config: %w", err)
	}
	cfg.TLSClientConfig.Insecure = o.InsecureSkipTLSVerify
	return cfg, nil
}

// Client is the production Orchestrator, backed by a typed client-go
// clientset against batch/v1 Jobs and core/v1 Pods.
type Client struct {
	clientset kubernetes.Interface
}

// NewClient wraps an already-constructed clientset. Building the
// clientset (credentials, TLS) is ClientOptions' concern.
func NewClient(clientset kubernetes.Interface) *Client {
	return &Client{clientset: clientset}
}

// NewClientFromOptions is the usual entry point: builds a rest.Config
// via ClientOptions.Cfg and wraps it in a typed clientset.
func NewClientFromOptions(o ClientOptions) (*Client, error) {
	cfg, err := o.Cfg()
	if err != nil {
		return nil, err
	}
	clientset, err := kubernetes.NewForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: build clientset: %w", err)
	}
	return NewClient(clientset), nil
}

func jobFromBatchJob(j *batchv1.Job) Job {
	return Job{
		Name:   j.Name,
		JobID:  j.Labels[jobIDLabelKey],
		Status: toJobStatus(j.Status),
	}
}

func toJobStatus(s batchv1.JobStatus) status.JobStatus {
	return status.JobStatus{
		Started:   s.StartTime != nil,
		Succeeded: s.Succeeded,
		Failed:    s.Failed,
	}
}

func (c *Client) ListJobs(ctx context.Context, namespace string) ([]Job, string, error) {
	list, err := c.clientset.BatchV1().Jobs(namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, "", fmt.Errorf("orchestrator: list jobs: %w", err)
	}
	jobs := make([]Job, 0, len(list.Items))
	for i := range list.Items {
		jobs = append(jobs, jobFromBatchJob(&list.Items[i]))
	}
	return jobs, list.ResourceVersion, nil
}

func (c *Client) GetJob(ctx context.Context, namespace, name string) (Job, error) {
	j, err := c.clientset.BatchV1().Jobs(namespace).Get(ctx, name, metav1.GetOptions{})
	if apierrors.IsNotFound(err) {
		return Job{}, ErrNotFound
	}
	if err != nil {
		return Job{}, fmt.Errorf("orchestrator: get job %s: %w", name, err)
	}
	return jobFromBatchJob(j), nil
}

func (c *Client) CreateJob(ctx context.Context, spec JobSpec) (Job, error) {
	body, err := buildBatchJob(spec)
	if err != nil {
		return Job{}, err
	}
	created, err := c.clientset.BatchV1().Jobs(spec.Namespace).Create(ctx, body, metav1.CreateOptions{})
	if apierrors.IsAlreadyExists(err) {
		return Job{}, ErrAlreadyExists
	}
	if err != nil {
		return Job{}, fmt.Errorf("orchestrator: create job %s: %w", spec.JobID, err)
	}
	return jobFromBatchJob(created), nil
}

func (c *Client) DeleteJob(ctx context.Context, namespace, name string) error {
	policy := metav1.DeletePropagationBackground
	err := c.clientset.BatchV1().Jobs(namespace).Delete(ctx, name, metav1.DeleteOptions{
		PropagationPolicy: &policy,
	})
	if apierrors.IsNotFound(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("orchestrator: delete job %s: %w", name, err)
	}
	return nil
}

func (c *Client) PodLogs(ctx context.Context, namespace, jobName string) (string, error) {
	selector := "job-name=" + jobName
	pods, err := c.clientset.CoreV1().Pods(namespace).List(ctx, metav1.ListOptions{LabelSelector: selector})
	if err != nil {
		return "", fmt.Errorf("orchestrator: list pods for %s: %w", jobName, err)
	}
	var logs string
	for i := range pods.Items {
		name := pods.Items[i].Name
		stream, err := c.clientset.CoreV1().Pods(namespace).GetLogs(name, &corev1.PodLogOptions{}).Stream(ctx)
		if err != nil {
			return logs, fmt.Errorf("orchestrator: stream logs for pod %s: %w", name, err)
		}
		data, err := io.ReadAll(stream)
		stream.Close()
		if err != nil {
			return logs, fmt.Errorf("orchestrator: read logs for pod %s: %w", name, err)
		}
		logs += string(data)
	}
	return logs, nil
}

// watcher adapts a watch.Interface into the package's Watcher.
type watcher struct {
	src    watch.Interface
	events chan WatchEvent
	err    error
}

func (c *Client) Watch(ctx context.Context, namespace, cursor string) (Watcher, error) {
	src, err := c.clientset.BatchV1().Jobs(namespace).Watch(ctx, metav1.ListOptions{
		ResourceVersion: cursor,
	})
	if err != nil {
		if apierrors.IsResourceExpired(err) || apierrors.IsGone(err) {
			return nil, ErrWatchStale
		}
		return nil, fmt.Errorf("orchestrator: watch jobs: %w", err)
	}

	w := &watcher{src: src, events: make(chan WatchEvent)}
	go w.run()
	return w, nil
}

func (w *watcher) run() {
	defer close(w.events)
	for ev := range w.src.ResultChan() {
		if ev.Type == watch.Error {
			if status, ok := ev.Object.(*metav1.Status); ok {
				if status.Code == 410 {
					w.err = ErrWatchStale
					return
				}
			}
			w.err = fmt.Errorf("orchestrator: watch error event: %+v", ev.Object)
			return
		}
		job, ok := ev.Object.(*batchv1.Job)
		if !ok {
			continue
		}
		var et EventType
		switch ev.Type {
		case watch.Added:
			et = EventAdded
		case watch.Modified:
			et = EventModified
		case watch.Deleted:
			et = EventDeleted
		default:
			continue
		}
		w.events <- WatchEvent{Type: et, Job: jobFromBatchJob(job)}
	}
}

func (w *watcher) Events() <-chan WatchEvent { return w.events }
func (w *watcher) Err() error                { return w.err }
func (w *watcher) Stop()                     { w.src.Stop() }
