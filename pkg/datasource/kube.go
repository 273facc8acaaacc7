package datasource

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"go.uber.org/zap"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/clientcmd"
	"k8s.io/client-go/util/homedir"
	metricsv "k8s.io/metrics/pkg/client/clientset/versioned"

	"github.com/opscart/capacity-compliance/pkg/models"
)

const (
	zoneLabel   = "topology.kubernetes.io/zone"
	regionLabel = "topology.kubernetes.io/region"
)

// KubeNodeSource treats each Kubernetes node as a host. Usage comes from
// metrics-server, so every fetch yields a single point in time.
// Disk usage is not reported by metrics-server; only ephemeral storage capacity is known.
type KubeNodeSource struct {
	clientset     kubernetes.Interface
	metricsClient metricsv.Interface
	clusterName   string
	labels        LabelConfig
	now           func() time.Time
	logger        *zap.Logger
}

// NewKubeNodeSource connects with the given kubeconfig, or ~/.kube/config when empty
func NewKubeNodeSource(kubeconfig, clusterName string, logger *zap.Logger) (*KubeNodeSource, error) {
	if kubeconfig == "" {
		if home := homedir.HomeDir(); home != "" {
			kubeconfig = filepath.Join(home, ".kube", "config")
		}
	}

	config, err := clientcmd.BuildConfigFromFlags("", kubeconfig)
	if err != nil {
		return nil, fmt.Errorf("failed to build config: %w", err)
	}

	clientset, err := kubernetes.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create clientset: %w", err)
	}

	metricsClient, err := metricsv.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics client: %w", err)
	}

	return newKubeNodeSource(clientset, metricsClient, clusterName, logger), nil
}

func newKubeNodeSource(clientset kubernetes.Interface, metricsClient metricsv.Interface, clusterName string, logger *zap.Logger) *KubeNodeSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KubeNodeSource{
		clientset:     clientset,
		metricsClient: metricsClient,
		clusterName:   clusterName,
		labels:        DefaultLabels(),
		now:           time.Now,
		logger:        logger,
	}
}

func (k *KubeNodeSource) FetchSnapshots(ctx context.Context, start, end time.Time, hostFilter []string) ([]models.ResourceSnapshot, error) {
	now := k.now().UTC()
	if !inRange(now, start, end) {
		return []models.ResourceSnapshot{}, nil
	}

	nodes, err := k.clientset.CoreV1().Nodes().List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to list nodes: %w", err)
	}

	nodeMetrics, err := k.metricsClient.MetricsV1beta1().NodeMetricses().List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get node metrics: %w", err)
	}

	usage := make(map[string]corev1.ResourceList, len(nodeMetrics.Items))
	for _, nm := range nodeMetrics.Items {
		usage[nm.Name] = nm.Usage
	}

	hosts := hostSet(hostFilter)
	out := make([]models.ResourceSnapshot, 0, len(nodes.Items))
	for _, node := range nodes.Items {
		if hosts != nil && !hosts[node.Name] {
			continue
		}
		used, ok := usage[node.Name]
		if !ok {
			k.logger.Warn("no metrics for node", zap.String("node", node.Name))
			continue
		}
		out = append(out, k.snapshot(&node, used, now))
	}

	sort.Slice(out, func(i, j int) bool { return out[i].HostID < out[j].HostID })
	return out, nil
}

func (k *KubeNodeSource) snapshot(node *corev1.Node, used corev1.ResourceList, now time.Time) models.ResourceSnapshot {
	capacity := node.Status.Capacity

	cpuCap := capacity.Cpu().MilliValue()
	cpuUsed := used.Cpu().MilliValue()
	var cpuPercent float64
	if cpuCap > 0 {
		cpuPercent = float64(cpuUsed) / float64(cpuCap) * 100
	}

	labels := node.Labels
	s := models.ResourceSnapshot{
		HostID:         node.Name,
		HostName:       node.Name,
		Timestamp:      now,
		CPULoadPercent: cpuPercent,
		CPUCores:       int(capacity.Cpu().Value()),
		UsedMemory:     float64(used.Memory().Value()) / bytesPerGB,
		TotalMemory:    float64(capacity.Memory().Value()) / bytesPerGB,
		TotalDisk:      float64(capacity.StorageEphemeral().Value()) / bytesPerGB,
		Clusters:       k.labels.membership(labels),
		IDC:            models.IDC{Name: labels[zoneLabel], Code: labels[regionLabel]},
	}
	if len(s.Clusters) == 0 && k.clusterName != "" {
		s.Clusters = []models.ClusterMembership{{
			ClusterName:      k.clusterName,
			ClusterGroupName: labels[k.labels.ClusterGroup],
			DepartmentName:   labels[k.labels.Department],
		}}
	}
	if idc := k.labels.idc(labels); idc.Name != "" {
		s.IDC = idc
	}
	return s
}

// FetchDiskHistory returns at most the current capacity point; metrics-server keeps no history
func (k *KubeNodeSource) FetchDiskHistory(ctx context.Context, hostID string, start, end time.Time) ([]models.DiskSamplePoint, error) {
	snapshots, err := k.FetchSnapshots(ctx, start, end, []string{hostID})
	if err != nil {
		return nil, err
	}
	return DiskHistory(snapshots, hostID), nil
}

func (k *KubeNodeSource) IsAvailable(ctx context.Context) bool {
	_, err := k.clientset.Discovery().ServerVersion()
	return err == nil
}

func (k *KubeNodeSource) Name() string {
	return "Kubernetes"
}
