package kube

import (
	"context"
	"fmt"

	"github.com/infacloud/kubectl-consolidation/config"
	"github.com/infacloud/kubectl-consolidation/utils"
	apiextclientset "k8s.io/apiextensions-apiserver/pkg/client/clientset/clientset"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"
	_ "k8s.io/client-go/plugin/pkg/client/auth"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

var log = utils.GetLogger()

// Clients bundles the API clients the report reads through.
type Clients struct {
	Core          kubernetes.Interface
	Dynamic       dynamic.Interface
	APIExtensions apiextclientset.Interface
	ContextName   string
}

// PrerequisiteError is returned when no usable cluster connection can be
// built. Its message carries remediation text.
type PrerequisiteError struct {
	Err error
}

func (e *PrerequisiteError) Error() string {
	return fmt.Sprintf("%v\nhint: point KUBECONFIG or --kubeconfig at a valid kubeconfig, select a context with --context, or use --eks-cluster", e.Err)
}

func (e *PrerequisiteError) Unwrap() error { return e.Err }

// NewClients resolves a rest.Config from opts and builds the clients.
func NewClients(ctx context.Context, opts *config.Options) (*Clients, error) {
	var cfg *rest.Config
	var contextName string
	var err error

	if opts.EKSCluster != "" {
		cfg, err = eksRestConfig(ctx, opts.EKSCluster, opts.Region, opts.Profile)
		contextName = opts.EKSCluster
	} else {
		cfg, contextName, err = kubeconfigRestConfig(opts.Kubeconfig, opts.Context)
	}
	if err != nil {
		return nil, &PrerequisiteError{Err: err}
	}
	clients, err := NewClientsForConfig(cfg)
	if err != nil {
		return nil, &PrerequisiteError{Err: err}
	}
	clients.ContextName = contextName
	log.WithField("context", contextName).Debugf("using API server %s", cfg.Host)
	return clients, nil
}

func NewClientsForConfig(cfg *rest.Config) (*Clients, error) {
	core, err := kubernetes.NewForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("create kubernetes clientset: %w", err)
	}
	dyn, err := dynamic.NewForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("create dynamic client: %w", err)
	}
	ext, err := apiextclientset.NewForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("create apiextensions clientset: %w", err)
	}
	return &Clients{Core: core, Dynamic: dyn, APIExtensions: ext}, nil
}

// kubeconfigRestConfig follows kubectl's loading rules: explicit path, then
// KUBECONFIG, then ~/.kube/config, then in-cluster.
func kubeconfigRestConfig(kubeconfigPath, contextName string) (*rest.Config, string, error) {
	rules := clientcmd.NewDefaultClientConfigLoadingRules()
	if kubeconfigPath != "" {
		rules.ExplicitPath = kubeconfigPath
	}
	overrides := &clientcmd.ConfigOverrides{}
	if contextName != "" {
		overrides.CurrentContext = contextName
	}
	cc := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(rules, overrides)
	cfg, err := cc.ClientConfig()
	if err != nil {
		return nil, "", err
	}
	if contextName == "" {
		if raw, err := cc.RawConfig(); err == nil {
			contextName = raw.CurrentContext
		}
	}
	return cfg, contextName, nil
}
