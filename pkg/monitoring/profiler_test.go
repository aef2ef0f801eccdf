/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: profiler_test.go
Description: Tests for the performance profiler.
*/

package monitoring

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() logrus.FieldLogger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

// TestProfilerLifecycle tests that every enabled profile is written
func TestProfilerLifecycle(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "profiles")
	p := NewProfiler(DefaultProfilerConfig(dir), quietLogger())

	_, err := p.Stop()
	assert.Error(t, err, "stop before start")

	require.NoError(t, p.Start())
	assert.Error(t, p.Start(), "double start")

	buf := make([][]byte, 0, 64)
	for i := 0; i < 64; i++ {
		buf = append(buf, make([]byte, 1024))
	}
	_ = buf

	summary, err := p.Stop()
	require.NoError(t, err)
	require.Len(t, summary.Profiles, 3)
	assert.Positive(t, summary.GoRoutines)

	types := make([]ProfilerType, 0, 3)
	for _, r := range summary.Profiles {
		types = append(types, r.Type)
		info, err := os.Stat(r.OutputFile)
		require.NoError(t, err)
		assert.Equal(t, info.Size(), r.Size)
	}
	assert.Equal(t, []ProfilerType{ProfilerTypeCPU, ProfilerTypeHeap, ProfilerTypeGoroutine}, types)
}

// TestProfilerSelective tests that disabled profiles are skipped
func TestProfilerSelective(t *testing.T) {
	dir := t.TempDir()
	p := NewProfiler(&ProfilerConfig{OutputDir: dir, HeapProfile: true}, quietLogger())

	require.NoError(t, p.Start())
	summary, err := p.Stop()
	require.NoError(t, err)
	require.Len(t, summary.Profiles, 1)
	assert.Equal(t, ProfilerTypeHeap, summary.Profiles[0].Type)

	files, err := filepath.Glob(filepath.Join(dir, "*.prof"))
	require.NoError(t, err)
	assert.Len(t, files, 1)
}
