package k8s

import (
	"fmt"

	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

type ClientConfig struct {
	Kubeconfig string
	Context    string
	// ExpectedContext refuses to run against any other kubeconfig context.
	ExpectedContext string
	QPS             float32
	Burst           int
}

type ClientInfo struct {
	Context string `json:"context"`
	Server  string `json:"server"`
}

func NewClient(cfg ClientConfig) (kubernetes.Interface, ClientInfo, error) {
	restConfig, info, err := buildConfig(cfg)
	if err != nil {
		return nil, ClientInfo{}, err
	}
	if cfg.QPS > 0 {
		restConfig.QPS = cfg.QPS
	}
	if cfg.Burst > 0 {
		restConfig.Burst = cfg.Burst
	}

	clientset, err := kubernetes.NewForConfig(restConfig)
	if err != nil {
		return nil, ClientInfo{}, fmt.Errorf("failed to create clientset: %w", err)
	}
	return clientset, info, nil
}

func buildConfig(cfg ClientConfig) (*rest.Config, ClientInfo, error) {
	if cfg.Kubeconfig == "" && cfg.Context == "" && cfg.ExpectedContext == "" {
		if config, err := rest.InClusterConfig(); err == nil {
			return config, ClientInfo{Context: "in-cluster", Server: config.Host}, nil
		}
	}

	loadingRules := clientcmd.NewDefaultClientConfigLoadingRules()
	if cfg.Kubeconfig != "" {
		loadingRules.ExplicitPath = cfg.Kubeconfig
	}

	overrides := &clientcmd.ConfigOverrides{}
	if cfg.Context != "" {
		overrides.CurrentContext = cfg.Context
	}
	kubeConfig := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(loadingRules, overrides)

	rawConfig, err := kubeConfig.RawConfig()
	if err != nil {
		return nil, ClientInfo{}, fmt.Errorf("failed to get raw kubeconfig: %w", err)
	}
	currentContext := rawConfig.CurrentContext
	if cfg.Context != "" {
		currentContext = cfg.Context
	}
	if cfg.ExpectedContext != "" && currentContext != cfg.ExpectedContext {
		return nil, ClientInfo{}, fmt.Errorf("refusing to run: kubeconfig context is %q, expected %q", currentContext, cfg.ExpectedContext)
	}

	restConfig, err := kubeConfig.ClientConfig()
	if err != nil {
		return nil, ClientInfo{}, fmt.Errorf("failed to get REST config: %w", err)
	}
	return restConfig, ClientInfo{Context: currentContext, Server: restConfig.Host}, nil
}
