// Package k8s supplements compute-instance Discovery with a best-effort
// GKE cluster census: node-pool membership and real (non-system,
// non-DaemonSet) workload counts, read directly from the cluster's
// Kubernetes API rather than the GCP control-plane API.
package k8s

import (
	"fmt"

	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

// Client wraps the Kubernetes clientset used to enumerate node pools and
// workloads for one GKE cluster.
type Client struct {
	Clientset kubernetes.Interface
}

// NewClient builds a Client against kubeconfigPath, or against the
// in-cluster service account config when kubeconfigPath is empty. A GKE
// cluster reachable only via gcloud's dynamic credential plugin still
// resolves through the kubeconfig exec plugin mechanism, same as kubectl.
func NewClient(kubeconfigPath string) (*Client, error) {
	var config *rest.Config
	var err error

	if kubeconfigPath != "" {
		config, err = clientcmd.BuildConfigFromFlags("", kubeconfigPath)
		if err != nil {
			return nil, fmt.Errorf("build config from kubeconfig %s: %w", kubeconfigPath, err)
		}
	} else {
		config, err = rest.InClusterConfig()
		if err != nil {
			return nil, fmt.Errorf("get in-cluster config: %w", err)
		}
	}

	clientset, err := kubernetes.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("create kubernetes clientset: %w", err)
	}

	return &Client{Clientset: clientset}, nil
}
