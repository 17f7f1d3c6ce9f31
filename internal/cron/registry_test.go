package cron

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubJob struct {
	name string
}

func (s *stubJob) Name() string              { return s.name }
func (s *stubJob) Run(context.Context) error { return nil }

func TestRegistryKeepsOrderAndSkipsNil(t *testing.T) {
	jobA, jobB := &stubJob{name: "settlement-reconcile"}, &stubJob{name: "otp-purge"}
	registry, err := NewRegistry(jobA, nil, jobB)
	require.NoError(t, err)

	jobs := registry.Jobs()
	require.Len(t, jobs, 2)
	assert.Same(t, jobA, jobs[0])
	assert.Same(t, jobB, jobs[1])

	jobs[0] = nil
	assert.NotNil(t, registry.Jobs()[0], "callers must not mutate the registry")
}

func TestRegistryRejectsDuplicateAndUnnamedJobs(t *testing.T) {
	_, err := NewRegistry(&stubJob{name: "otp-purge"}, &stubJob{name: "otp-purge"})
	require.Error(t, err)

	registry, err := NewRegistry()
	require.NoError(t, err)
	require.Error(t, registry.Register(&stubJob{}))
}
