package kube

import (
	"context"
	"encoding/base64"
	"fmt"

	awsv2config "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/eks"
	"k8s.io/client-go/rest"
	"sigs.k8s.io/aws-iam-authenticator/pkg/token"
)

// eksRestConfig builds a rest.Config for an EKS cluster from
// DescribeCluster and an IAM authenticator bearer token.
func eksRestConfig(ctx context.Context, clusterName, region, profile string) (*rest.Config, error) {
	if region == "" {
		r, err := defaultRegion(ctx, profile)
		if err != nil {
			return nil, err
		}
		region = r
	}
	log := log.WithField("cluster", clusterName).WithField("region", region)

	sessOpts := session.Options{
		SharedConfigState: session.SharedConfigEnable,
		Config:            aws.Config{Region: aws.String(region)},
	}
	if profile != "" {
		sessOpts.Profile = profile
	}
	sess, err := session.NewSessionWithOptions(sessOpts)
	if err != nil {
		return nil, fmt.Errorf("create AWS session: %w", err)
	}

	svc := eks.New(sess)
	result, err := svc.DescribeClusterWithContext(ctx, &eks.DescribeClusterInput{
		Name: aws.String(clusterName),
	})
	if err != nil {
		log.Debugf("DescribeCluster failed: %v", err)
		return nil, fmt.Errorf("describe EKS cluster %s: %w", clusterName, err)
	}
	return clusterRestConfig(result.Cluster, sess, region)
}

func clusterRestConfig(cluster *eks.Cluster, sess *session.Session, region string) (*rest.Config, error) {
	gen, err := token.NewGenerator(true, false)
	if err != nil {
		return nil, fmt.Errorf("create token generator: %w", err)
	}
	tok, err := gen.GetWithOptions(&token.GetTokenOptions{
		ClusterID: aws.StringValue(cluster.Name),
		Region:    region,
		Session:   sess,
	})
	if err != nil {
		return nil, fmt.Errorf("generate EKS token: %w", err)
	}
	if cluster.CertificateAuthority == nil {
		return nil, fmt.Errorf("EKS cluster %s has no certificate authority data", aws.StringValue(cluster.Name))
	}
	ca, err := base64.StdEncoding.DecodeString(aws.StringValue(cluster.CertificateAuthority.Data))
	if err != nil {
		return nil, fmt.Errorf("decode EKS certificate authority: %w", err)
	}
	return &rest.Config{
		Host:        aws.StringValue(cluster.Endpoint),
		BearerToken: tok.Token,
		TLSClientConfig: rest.TLSClientConfig{
			CAData: ca,
		},
	}, nil
}

// defaultRegion resolves the region the AWS SDK would pick for profile
// (AWS_REGION, AWS_DEFAULT_REGION, shared config).
func defaultRegion(ctx context.Context, profile string) (string, error) {
	var loadOpts []func(*awsv2config.LoadOptions) error
	if profile != "" {
		loadOpts = append(loadOpts, awsv2config.WithSharedConfigProfile(profile))
	}
	cfg, err := awsv2config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return "", fmt.Errorf("load AWS configuration: %w", err)
	}
	if cfg.Region == "" {
		return "", fmt.Errorf("no AWS region configured; pass --region or set AWS_REGION")
	}
	return cfg.Region, nil
}
