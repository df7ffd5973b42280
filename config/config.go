package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
	"k8s.io/client-go/util/homedir"
)

const (
	DefaultUtilizationThreshold = 80
	DefaultScopedFetchLimit     = 10
	DefaultConfigName           = "kubectl-consolidation.yaml"
)

// ArgError marks invalid command-line usage; callers print usage for it.
type ArgError struct {
	msg string
}

func (e *ArgError) Error() string { return e.msg }

func NewArgError(format string, args ...interface{}) error {
	return &ArgError{msg: fmt.Sprintf(format, args...)}
}

func IsArgError(err error) bool {
	var ae *ArgError
	return errors.As(err, &ae)
}

// Options is the full configuration of one invocation.
type Options struct {
	// cluster access
	Kubeconfig string
	Context    string
	EKSCluster string
	Region     string
	Profile    string

	// listing passthrough
	Namespace     string
	Selector      string
	FieldSelector string
	SortBy        string
	Output        string
	NoHeaders     bool
	ShowLabels    bool

	// modes
	Nodes      []string
	Pods       bool
	NodeClaims bool

	UtilizationThreshold int
	ScopedFetchLimit     int
	LogLevel             string
}

// File is the on-disk YAML config. Every field is optional.
type File struct {
	UtilizationThreshold *int   `yaml:"utilizationThreshold"`
	ScopedFetchLimit     *int   `yaml:"scopedFetchLimit"`
	LogLevel             string `yaml:"logLevel"`
	EKSCluster           string `yaml:"eksCluster"`
	Region               string `yaml:"region"`
	Profile              string `yaml:"profile"`
}

func NewOptions() *Options {
	return &Options{
		UtilizationThreshold: DefaultUtilizationThreshold,
		ScopedFetchLimit:     DefaultScopedFetchLimit,
	}
}

// DefaultConfigPath is ~/.kube/kubectl-consolidation.yaml.
func DefaultConfigPath() string {
	home := homedir.HomeDir()
	if home == "" {
		return ""
	}
	return filepath.Join(home, ".kube", DefaultConfigName)
}

// LoadFile reads path. A missing file is not an error when optional is set.
func LoadFile(path string, optional bool) (*File, error) {
	f := &File{}
	if path == "" {
		return f, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if optional && errors.Is(err, os.ErrNotExist) {
			return f, nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, f); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return f, nil
}

// ApplyFile copies file values into o for every option the caller did not
// set explicitly. changed reports whether a flag was given on the command line.
func (o *Options) ApplyFile(f *File, changed func(flag string) bool) {
	if f == nil {
		return
	}
	if f.UtilizationThreshold != nil && !changed("utilization-threshold") {
		o.UtilizationThreshold = *f.UtilizationThreshold
	}
	if f.ScopedFetchLimit != nil && !changed("scoped-fetch-limit") {
		o.ScopedFetchLimit = *f.ScopedFetchLimit
	}
	if f.LogLevel != "" && !changed("log-level") {
		o.LogLevel = f.LogLevel
	}
	if f.EKSCluster != "" && !changed("eks-cluster") && o.Kubeconfig == "" && o.Context == "" {
		o.EKSCluster = f.EKSCluster
	}
	if f.Region != "" && !changed("region") {
		o.Region = f.Region
	}
	if f.Profile != "" && !changed("profile") {
		o.Profile = f.Profile
	}
}

var outputFormats = []string{"json", "yaml", "name", "wide"}

// Validate checks option combinations.
func (o *Options) Validate() error {
	if o.Pods && len(o.Nodes) == 0 {
		return NewArgError("--pods requires at least one node name")
	}
	if o.Pods && o.Output != "" {
		return NewArgError("--pods cannot be combined with --output")
	}
	if len(o.Nodes) > 0 && o.Selector != "" {
		return NewArgError("node names cannot be provided when a selector is specified")
	}
	if o.EKSCluster != "" && (o.Kubeconfig != "" || o.Context != "") {
		return NewArgError("--eks-cluster cannot be combined with --kubeconfig or --context")
	}
	if o.Output != "" && !validOutput(o.Output) {
		return NewArgError("unable to match a printer suitable for the output format %q, allowed formats are: %s,jsonpath=TEMPLATE",
			o.Output, strings.Join(outputFormats, ","))
	}
	if o.UtilizationThreshold < 0 || o.UtilizationThreshold > 100 {
		return NewArgError("--utilization-threshold must be between 0 and 100, got %d", o.UtilizationThreshold)
	}
	if o.ScopedFetchLimit < 0 {
		return NewArgError("--scoped-fetch-limit must not be negative, got %d", o.ScopedFetchLimit)
	}
	return nil
}

func validOutput(format string) bool {
	if strings.HasPrefix(format, "jsonpath=") && len(format) > len("jsonpath=") {
		return true
	}
	for _, f := range outputFormats {
		if f == format {
			return true
		}
	}
	return false
}
