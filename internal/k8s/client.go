// Package k8s reads container lifecycle state from the cluster that runs
// the user containers. It never creates or deletes anything.
package k8s

import (
	"context"
	"fmt"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/classpod/classpod/internal/container"
)

// ContainerLabel is the pod label carrying the container name.
const ContainerLabel = "classpod.io/container"

// Client provides read access to container pods.
type Client struct {
	clientset kubernetes.Interface
	namespace string
}

// ConnectivityStatus represents the result of a Kubernetes connectivity check.
type ConnectivityStatus struct {
	Connected bool
	Version   string
}

// ClientOption configures the Client.
type ClientOption func(*clientOptions)

type clientOptions struct {
	kubeconfigPath string
}

// WithKubeconfig sets the kubeconfig file path for out-of-cluster access.
func WithKubeconfig(path string) ClientOption {
	return func(o *clientOptions) {
		o.kubeconfigPath = path
	}
}

// NewClient creates a new Kubernetes client scoped to namespace.
// It attempts in-cluster configuration first, falling back to kubeconfig
// if provided.
func NewClient(namespace string, opts ...ClientOption) (*Client, error) {
	o := &clientOptions{}
	for _, opt := range opts {
		opt(o)
	}

	cfg, err := buildConfig(o.kubeconfigPath)
	if err != nil {
		return nil, fmt.Errorf("building kubernetes config: %w", err)
	}

	clientset, err := kubernetes.NewForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating clientset: %w", err)
	}

	return &Client{clientset: clientset, namespace: namespace}, nil
}

// CheckConnectivity verifies that the Kubernetes API server is reachable
// and returns the server version.
func (c *Client) CheckConnectivity(_ context.Context) ConnectivityStatus {
	info, err := c.clientset.Discovery().ServerVersion()
	if err != nil {
		return ConnectivityStatus{Connected: false}
	}
	return ConnectivityStatus{
		Connected: true,
		Version:   info.GitVersion,
	}
}

// State implements container.StateProvider by inspecting the pods labelled
// with the container name. Lookup failures degrade to the placeholder
// state rather than erroring a listing.
func (c *Client) State(ctx context.Context, name string) string {
	pods, err := c.clientset.CoreV1().Pods(c.namespace).List(ctx, metav1.ListOptions{
		LabelSelector: fmt.Sprintf("%s=%s", ContainerLabel, name),
	})
	if err != nil {
		return container.StateDefault
	}

	if len(pods.Items) == 0 {
		return "stopped"
	}

	state := "stopped"
	for _, pod := range pods.Items {
		switch pod.Status.Phase {
		case corev1.PodRunning:
			return "running"
		case corev1.PodPending:
			state = "pending"
		}
	}

	return state
}

// buildConfig creates a rest.Config, trying the kubeconfig path first, then
// in-cluster.
func buildConfig(kubeconfigPath string) (*rest.Config, error) {
	if kubeconfigPath != "" {
		cfg, err := clientcmd.BuildConfigFromFlags("", kubeconfigPath)
		if err != nil {
			return nil, fmt.Errorf("loading kubeconfig from %s: %w", kubeconfigPath, err)
		}
		return cfg, nil
	}

	cfg, err := rest.InClusterConfig()
	if err == nil {
		return cfg, nil
	}

	return nil, fmt.Errorf("no kubeconfig path provided and not running in-cluster: %w", err)
}
