package services

import (
	"testing"

	"kaienv/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func createTestVM(t *testing.T, db *gorm.DB, hostname string, groupID *uint) *models.VM {
	t.Helper()
	vm, err := NewVMService(db).CreateVM("actor-1", CreateVMData{
		Hostname:      hostname,
		IPAddress:     "10.0.0.5",
		AdminUser:     "root",
		AdminPassword: "secret",
		GroupID:       groupID,
	})
	require.NoError(t, err)
	return vm
}

func TestCreateGroupConflict(t *testing.T) {
	svc := NewGroupService(setupTestDB(t))

	_, err := svc.CreateGroup("actor-1", CreateGroupData{Name: "Production"})
	require.NoError(t, err)

	_, err = svc.CreateGroup("actor-1", CreateGroupData{Name: "Production"})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestCreateGroupValidation(t *testing.T) {
	svc := NewGroupService(setupTestDB(t))
	_, err := svc.CreateGroup("actor-1", CreateGroupData{})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestUpdateGroupRename(t *testing.T) {
	svc := NewGroupService(setupTestDB(t))

	group, err := svc.CreateGroup("actor-1", CreateGroupData{Name: "Staging", Color: "#00ff00"})
	require.NoError(t, err)
	_, err = svc.CreateGroup("actor-1", CreateGroupData{Name: "Production"})
	require.NoError(t, err)

	t.Run("rename to free name", func(t *testing.T) {
		name := "QA"
		updated, err := svc.UpdateGroup(group.ID, UpdateGroupData{Name: &name})
		require.NoError(t, err)
		assert.Equal(t, "QA", updated.Name)
		assert.Equal(t, "#00ff00", updated.Color)
	})

	t.Run("rename to taken name", func(t *testing.T) {
		name := "Production"
		_, err := svc.UpdateGroup(group.ID, UpdateGroupData{Name: &name})
		assert.ErrorIs(t, err, ErrConflict)
	})
}

func TestDeleteGroupPreservesVMs(t *testing.T) {
	db := setupTestDB(t)
	groups := NewGroupService(db)
	vms := NewVMService(db)

	group, err := groups.CreateGroup("actor-1", CreateGroupData{Name: "Production"})
	require.NoError(t, err)

	vm1 := createTestVM(t, db, "host-01", &group.ID)
	vm2 := createTestVM(t, db, "host-02", &group.ID)

	require.NoError(t, groups.DeleteGroup(group.ID))

	_, err = groups.GetGroup(group.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	// Members survive with the group reference cleared.
	for _, id := range []uint{vm1.ID, vm2.ID} {
		vm, err := vms.GetVM(id)
		require.NoError(t, err)
		assert.Nil(t, vm.GroupID)
	}
}

func TestMoveVMsToGroup(t *testing.T) {
	db := setupTestDB(t)
	groups := NewGroupService(db)
	vms := NewVMService(db)

	group, err := groups.CreateGroup("actor-1", CreateGroupData{Name: "Production"})
	require.NoError(t, err)

	vm1 := createTestVM(t, db, "host-01", nil)
	vm2 := createTestVM(t, db, "host-02", nil)

	require.NoError(t, groups.MoveVMsToGroup([]uint{vm1.ID, vm2.ID}, &group.ID))

	for _, id := range []uint{vm1.ID, vm2.ID} {
		vm, err := vms.GetVM(id)
		require.NoError(t, err)
		require.NotNil(t, vm.GroupID)
		assert.Equal(t, group.ID, *vm.GroupID)
	}
}

func TestMoveVMsToNilUngroups(t *testing.T) {
	db := setupTestDB(t)
	groups := NewGroupService(db)
	vms := NewVMService(db)

	group, err := groups.CreateGroup("actor-1", CreateGroupData{Name: "Production"})
	require.NoError(t, err)
	vm := createTestVM(t, db, "host-01", &group.ID)

	require.NoError(t, groups.MoveVMsToGroup([]uint{vm.ID}, nil))

	got, err := vms.GetVM(vm.ID)
	require.NoError(t, err)
	assert.Nil(t, got.GroupID)
}

func TestMoveVMsAllOrNothing(t *testing.T) {
	db := setupTestDB(t)
	groups := NewGroupService(db)
	vms := NewVMService(db)

	group, err := groups.CreateGroup("actor-1", CreateGroupData{Name: "Production"})
	require.NoError(t, err)
	vm := createTestVM(t, db, "host-01", nil)

	err = groups.MoveVMsToGroup([]uint{vm.ID, 9999}, &group.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	// The existing VM was not moved.
	got, err := vms.GetVM(vm.ID)
	require.NoError(t, err)
	assert.Nil(t, got.GroupID)
}

func TestMoveVMsDuplicateIDs(t *testing.T) {
	db := setupTestDB(t)
	groups := NewGroupService(db)
	vms := NewVMService(db)

	group, err := groups.CreateGroup("actor-1", CreateGroupData{Name: "Production"})
	require.NoError(t, err)
	vm := createTestVM(t, db, "host-01", nil)

	require.NoError(t, groups.MoveVMsToGroup([]uint{vm.ID, vm.ID, vm.ID}, &group.ID))

	got, err := vms.GetVM(vm.ID)
	require.NoError(t, err)
	require.NotNil(t, got.GroupID)
	assert.Equal(t, group.ID, *got.GroupID)
}

func TestMoveVMsToUnknownGroup(t *testing.T) {
	db := setupTestDB(t)
	groups := NewGroupService(db)
	vm := createTestVM(t, db, "host-01", nil)

	missing := uint(777)
	err := groups.MoveVMsToGroup([]uint{vm.ID}, &missing)
	assert.ErrorIs(t, err, ErrNotFound)
}
