package kube

import (
	"context"
	"errors"
	"fmt"

	"github.com/infacloud/kubectl-consolidation/types"
	apiextclientset "k8s.io/apiextensions-apiserver/pkg/client/clientset/clientset"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/dynamic"
)

const (
	NodeClaimGroup    = "karpenter.sh"
	NodeClaimResource = "nodeclaims"
	NodeClaimCRDName  = NodeClaimResource + "." + NodeClaimGroup
)

var ErrNodeClaimCRDMissing = errors.New("the NodeClaim CRD (" + NodeClaimCRDName + ") is not installed")

type nodeClaimObject struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`
	Status            struct {
		NodeName string `json:"nodeName,omitempty"`
	} `json:"status,omitempty"`
}

// NodeClaimGVR looks up the NodeClaim CRD and returns the resource at its
// storage version. ErrNodeClaimCRDMissing is returned when it is absent.
func NodeClaimGVR(ctx context.Context, ext apiextclientset.Interface) (schema.GroupVersionResource, error) {
	crd, err := ext.ApiextensionsV1().CustomResourceDefinitions().Get(ctx, NodeClaimCRDName, metav1.GetOptions{})
	if apierrors.IsNotFound(err) {
		return schema.GroupVersionResource{}, ErrNodeClaimCRDMissing
	}
	if err != nil {
		return schema.GroupVersionResource{}, fmt.Errorf("get CRD %s: %w", NodeClaimCRDName, err)
	}
	version := ""
	for _, v := range crd.Spec.Versions {
		if v.Storage {
			version = v.Name
			break
		}
		if version == "" && v.Served {
			version = v.Name
		}
	}
	if version == "" {
		return schema.GroupVersionResource{}, fmt.Errorf("CRD %s serves no versions", NodeClaimCRDName)
	}
	return schema.GroupVersionResource{Group: NodeClaimGroup, Version: version, Resource: NodeClaimResource}, nil
}

// ListNodeClaims lists every NodeClaim at gvr.
func ListNodeClaims(ctx context.Context, dyn dynamic.Interface, gvr schema.GroupVersionResource) ([]types.NodeClaim, error) {
	list, err := dyn.Resource(gvr).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", gvr.Resource, err)
	}
	claims := make([]types.NodeClaim, 0, len(list.Items))
	for i := range list.Items {
		obj := &nodeClaimObject{}
		if err := runtime.DefaultUnstructuredConverter.FromUnstructured(list.Items[i].Object, obj); err != nil {
			log.WithField("nodeclaim", list.Items[i].GetName()).Warnf("skipping undecodable NodeClaim: %v", err)
			continue
		}
		claims = append(claims, types.NodeClaim{Name: obj.Name, NodeName: obj.Status.NodeName})
	}
	return claims, nil
}
