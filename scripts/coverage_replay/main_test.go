package main

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-coverage-api/internal/coverage"
)

func TestReplaySampleIsDeterministic(t *testing.T) {
	data, err := os.ReadFile("sample.json")
	require.NoError(t, err)
	input, err := decodeSnapshot(data)
	require.NoError(t, err)

	result, err := replay(context.Background(), coverage.Options{Workers: 4}, input, 4)
	require.NoError(t, err)

	assert.True(t, result.Identical)
	assert.Equal(t, 3, result.Plan.Metrics.TotalPeriodsNeeded)
	assert.Equal(t, coverage.DayTypeA, input.Absences[0].DayType)
}

func TestDecodeSnapshotRejectsBadHeader(t *testing.T) {
	_, err := decodeSnapshot([]byte(`{"date":"02-09-2024","dayType":"A"}`))
	assert.Error(t, err)

	_, err = decodeSnapshot([]byte(`{"date":"2024-09-02","dayType":"C"}`))
	assert.Error(t, err)
}
