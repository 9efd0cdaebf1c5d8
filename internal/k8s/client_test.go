package k8s

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"
)

func pod(name, containerName string, phase corev1.PodPhase) *corev1.Pod {
	return &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: "classpod",
			Labels:    map[string]string{ContainerLabel: containerName},
		},
		Status: corev1.PodStatus{Phase: phase},
	}
}

func TestState_NoPodsIsStopped(t *testing.T) {
	client := &Client{clientset: fake.NewSimpleClientset(), namespace: "classpod"}

	assert.Equal(t, "stopped", client.State(context.Background(), "x"))
}

func TestState_RunningPod(t *testing.T) {
	client := &Client{
		clientset: fake.NewSimpleClientset(
			pod("x-0", "x", corev1.PodRunning),
			pod("x-1", "x", corev1.PodPending),
		),
		namespace: "classpod",
	}

	assert.Equal(t, "running", client.State(context.Background(), "x"))
}

func TestState_PendingPod(t *testing.T) {
	client := &Client{
		clientset: fake.NewSimpleClientset(pod("x-0", "x", corev1.PodPending)),
		namespace: "classpod",
	}

	assert.Equal(t, "pending", client.State(context.Background(), "x"))
}

func TestState_OnlyMatchingLabelCounts(t *testing.T) {
	client := &Client{
		clientset: fake.NewSimpleClientset(pod("y-0", "y", corev1.PodRunning)),
		namespace: "classpod",
	}

	assert.Equal(t, "stopped", client.State(context.Background(), "x"))
}
