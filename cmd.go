package main

import (
	"context"
	"io"

	"github.com/infacloud/kubectl-consolidation/config"
	"github.com/infacloud/kubectl-consolidation/consolidation"
	"github.com/infacloud/kubectl-consolidation/kube"
	"github.com/infacloud/kubectl-consolidation/utils"
	"github.com/spf13/cobra"
)

const longHelp = `Show why Karpenter cannot consolidate nodes.

Lists nodes like "kubectl get nodes" and appends the provisioner, capacity
type, CPU/memory request utilization and the consolidation blockers found
in pod annotations and Karpenter events.

With --pods, lists the individual blocking pods on the named nodes instead.
With -o/--output, prints the plain node listing and skips the analysis.`

const examples = `  # all nodes, oldest first
  kubectl consolidation

  # two nodes, including NodeClaim events
  kubectl consolidation ip-10-0-1-12.ec2.internal ip-10-0-7-3.ec2.internal --nodeclaims

  # blocking pods on one node
  kubectl consolidation --pods ip-10-0-1-12.ec2.internal

  # spot nodes only, straight from an EKS cluster
  kubectl consolidation -l karpenter.sh/capacity-type=spot --eks-cluster prod --region eu-west-1`

// clientFactory is swapped in tests.
type clientFactory func(ctx context.Context, opts *config.Options) (*kube.Clients, error)

func NewCmdConsolidation(newClients clientFactory, out, errOut io.Writer) *cobra.Command {
	opts := config.NewOptions()
	var configPath string
	var all bool

	cmd := &cobra.Command{
		Use:           "kubectl-consolidation [NODE...]",
		Short:         "Show Karpenter consolidation blockers per node",
		Long:          longHelp,
		Example:       examples,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Nodes = args
			if all {
				opts.NodeClaims = true
			}

			file, err := config.LoadFile(configFileOrDefault(configPath), configPath == "")
			if err != nil {
				return err
			}
			opts.ApplyFile(file, func(name string) bool { return cmd.Flags().Changed(name) })
			if err := utils.SetLogLevel(opts.LogLevel); err != nil {
				return config.NewArgError("invalid --log-level %q: %v", opts.LogLevel, err)
			}
			if err := opts.Validate(); err != nil {
				return err
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			clients, err := newClients(ctx, opts)
			if err != nil {
				return err
			}
			reporter := consolidation.NewReporter(consolidation.NewFetcher(clients, opts), opts, out, errOut)
			return reporter.Run(ctx, opts)
		},
	}
	cmd.SetErr(errOut)
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return config.NewArgError("%v", err)
	})

	f := cmd.Flags()
	f.BoolVar(&opts.Pods, "pods", false, "List the blocking pods on the named nodes instead of the node table")
	f.BoolVar(&opts.NodeClaims, "nodeclaims", false, "Also classify events involving Karpenter NodeClaims")
	f.BoolVar(&all, "all", false, "Alias for --nodeclaims")
	f.StringVarP(&opts.Output, "output", "o", "", "Print the plain node listing in this format (json|yaml|name|wide|jsonpath=TEMPLATE) and skip the analysis")
	f.StringVarP(&opts.Namespace, "namespace", "n", "", "Only list pods from this namespace (with --pods)")
	f.StringVarP(&opts.Selector, "selector", "l", "", "Label selector for nodes, e.g. -l karpenter.sh/capacity-type=spot")
	f.StringVar(&opts.FieldSelector, "field-selector", "", "Field selector for nodes, e.g. --field-selector spec.unschedulable=false")
	f.StringVar(&opts.SortBy, "sort-by", "", "JSONPath to sort nodes by (default: creation time, oldest first)")
	f.BoolVar(&opts.NoHeaders, "no-headers", false, "Do not print the header line")
	f.BoolVar(&opts.ShowLabels, "show-labels", false, "Show all node labels as the last base column")
	f.IntVar(&opts.UtilizationThreshold, "utilization-threshold", config.DefaultUtilizationThreshold, "Flag nodes whose CPU or memory requests reach this percent as high-utilization (0 disables)")
	f.IntVar(&opts.ScopedFetchLimit, "scoped-fetch-limit", config.DefaultScopedFetchLimit, "Query pods and events per node when at most this many nodes are reported")
	f.StringVar(&opts.LogLevel, "log-level", "", "Log level for diagnostics on stderr (debug, info, warn, error)")
	f.StringVar(&configPath, "config", "", "Config file (default ~/.kube/"+config.DefaultConfigName+" when present)")

	f.StringVar(&opts.Kubeconfig, "kubeconfig", "", "Path to the kubeconfig file to use")
	f.StringVar(&opts.Context, "context", "", "The kubeconfig context to use")
	f.StringVar(&opts.EKSCluster, "eks-cluster", "", "Connect to this EKS cluster using AWS credentials instead of a kubeconfig")
	f.StringVar(&opts.Region, "region", "", "AWS region of --eks-cluster (default from the AWS configuration)")
	f.StringVar(&opts.Profile, "profile", "", "AWS shared config profile for --eks-cluster")

	return cmd
}

func configFileOrDefault(path string) string {
	if path != "" {
		return path
	}
	return config.DefaultConfigPath()
}
