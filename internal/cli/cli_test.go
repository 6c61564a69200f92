package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/meu-horario-api/internal/dto"
)

func TestRootRegistersCommands(t *testing.T) {
	root := NewRootCmd()
	names := make([]string, 0, len(root.Commands()))
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"migrate", "seed", "allocate"}, names)
}

func TestAllocateRequiresSubject(t *testing.T) {
	cmd := newAllocateCmd()
	assert.Error(t, cmd.Args(cmd, nil))
	assert.NoError(t, cmd.Args(cmd, []string{"sub-1"}))
	require.NotNil(t, cmd.Flags().Lookup("reallocate"))
}

func TestAllocationError(t *testing.T) {
	assert.NoError(t, allocationError(&dto.AllocationResult{SubjectID: "s", Requested: 2, Allocated: 2, Success: true}))
	assert.NoError(t, allocationError(&dto.AllocationResult{SubjectID: "s", Requested: 2, Reason: dto.ReasonAlreadyAllocated}))
	assert.EqualError(t, allocationError(&dto.AllocationResult{SubjectID: "s", Reason: dto.ReasonSubjectNotFound}), "subject s not found")
	assert.EqualError(t, allocationError(&dto.AllocationResult{SubjectID: "s", Requested: 4, Allocated: 3}), "subject s: placed 3 of 4 weekly slots")
}

func TestLoadFixture(t *testing.T) {
	fx, err := loadFixture("")
	require.NoError(t, err)
	assert.Len(t, fx.Subjects, 3)

	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte("classSections: [\"3º Ano C\"]\n"), 0o644))
	fx, err = loadFixture(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"3º Ano C"}, fx.ClassSections)

	_, err = loadFixture(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
