package cluster_test

import (
	"context"
	"testing"

	"github.com/heimdex/heimdex-vision/internal/cluster"
	visionerr "github.com/heimdex/heimdex-vision/internal/errors"
	"github.com/heimdex/heimdex-vision/internal/vecmath"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func twoGroups() []vecmath.FeatureVector {
	return []vecmath.FeatureVector{
		{0, 0}, {0.1, 0}, {0, 0.1}, {0.1, 0.1}, {0.05, 0.05},
		{10, 10}, {10.1, 10}, {10, 10.1}, {10.1, 10.1}, {10.05, 10.05},
	}
}

func TestCluster_TwoTightGroups(t *testing.T) {
	res, err := cluster.Cluster(context.Background(), twoGroups(), cluster.Options{K: 2})
	require.NoError(t, err)
	require.Len(t, res.Clusters, 2)

	for _, c := range res.Clusters {
		assert.Equal(t, 5, c.MemberCount)
		assert.Less(t, c.Inertia, 0.2)
	}
	assert.Less(t, res.TotalInertia, 0.2)

	// members of each tight group share a label
	for i := 1; i < 5; i++ {
		assert.Equal(t, res.Labels[0], res.Labels[i])
		assert.Equal(t, res.Labels[5], res.Labels[5+i])
	}
	assert.NotEqual(t, res.Labels[0], res.Labels[5])
}

func TestCluster_ExactlyKPartitions(t *testing.T) {
	vs := twoGroups()
	res, err := cluster.Cluster(context.Background(), vs, cluster.Options{K: 3})
	require.NoError(t, err)
	require.Len(t, res.Clusters, 3)

	total := 0
	seen := make(map[int]bool)
	for _, c := range res.Clusters {
		assert.Positive(t, c.MemberCount)
		assert.Len(t, c.Members, c.MemberCount)
		total += c.MemberCount
		for _, m := range c.Members {
			assert.False(t, seen[m], "index %d assigned twice", m)
			seen[m] = true
			assert.Equal(t, c.Label, res.Labels[m])
		}
	}
	assert.Equal(t, len(vs), total)
}

func TestCluster_DuplicatePoints(t *testing.T) {
	vs := []vecmath.FeatureVector{{1, 1}, {1, 1}, {1, 1}}
	res, err := cluster.Cluster(context.Background(), vs, cluster.Options{K: 3})
	require.NoError(t, err)
	for _, c := range res.Clusters {
		assert.Equal(t, 1, c.MemberCount)
	}
	assert.Equal(t, 0.0, res.TotalInertia)
}

func TestCluster_Reproducible(t *testing.T) {
	vs := twoGroups()
	a, err := cluster.Cluster(context.Background(), vs, cluster.Options{K: 3})
	require.NoError(t, err)
	b, err := cluster.Cluster(context.Background(), vs, cluster.Options{K: 3})
	require.NoError(t, err)
	assert.Equal(t, a.Labels, b.Labels)
	assert.Equal(t, a.TotalInertia, b.TotalInertia)
}

func TestCluster_DefaultK(t *testing.T) {
	assert.Equal(t, 2, cluster.DefaultK(2))
	assert.Equal(t, 2, cluster.DefaultK(25))
	assert.Equal(t, 4, cluster.DefaultK(45))
	assert.Equal(t, 10, cluster.DefaultK(500))

	res, err := cluster.Cluster(context.Background(), twoGroups(), cluster.Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, res.K)
}

func TestCluster_Errors(t *testing.T) {
	_, err := cluster.Cluster(context.Background(), []vecmath.FeatureVector{{1}}, cluster.Options{})
	assert.True(t, visionerr.HasCode(err, visionerr.CodeInsufficientData))

	_, err = cluster.Cluster(context.Background(), twoGroups(), cluster.Options{K: 11})
	assert.True(t, visionerr.HasCode(err, visionerr.CodeInvalidInput))

	_, err = cluster.Cluster(context.Background(), []vecmath.FeatureVector{{1, 2}, {1}}, cluster.Options{})
	assert.True(t, visionerr.HasCode(err, visionerr.CodeDimensionMismatch))
}

func TestCluster_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := cluster.Cluster(ctx, twoGroups(), cluster.Options{K: 2})
	assert.ErrorIs(t, err, context.Canceled)
}
