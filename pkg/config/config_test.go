package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, 3, cfg.Scheduler.MaxConsecutive)
	assert.False(t, cfg.Scheduler.RelaxedPass)
	assert.True(t, cfg.Scheduler.RunCheckExisting)
	assert.Equal(t, []string{"elective", "club"}, cfg.Scheduler.PriorityCategories)
	assert.Equal(t, 5*time.Minute, cfg.Cache.TimetableTTL)
	assert.True(t, cfg.Database.AutoMigrate)
}

func TestLoadSchedulerOverrides(t *testing.T) {
	t.Setenv("SCHEDULER_MAX_CONSECUTIVE", "2")
	t.Setenv("SCHEDULER_RELAXED_PASS", "true")
	t.Setenv("SCHEDULER_PRIORITY_CATEGORIES", " Elective , ,Sports Club")
	t.Setenv("TIMETABLE_CACHE_TTL", "not-a-duration")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.Scheduler.MaxConsecutive)
	assert.True(t, cfg.Scheduler.RelaxedPass)
	assert.Equal(t, []string{"elective", "sports club"}, cfg.Scheduler.PriorityCategories)
	assert.Equal(t, 5*time.Minute, cfg.Cache.TimetableTTL)
}

func TestLoadRejectsNonPositiveRunLimit(t *testing.T) {
	t.Setenv("SCHEDULER_MAX_CONSECUTIVE", "0")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Scheduler.MaxConsecutive)
}
