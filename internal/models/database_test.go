package models

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&VM{}, &Service{}, &ServiceType{}))
	return db
}

func TestSeedServiceTypes(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, SeedServiceTypes(db))

	var types []ServiceType
	require.NoError(t, db.Find(&types).Error)
	assert.Len(t, types, 5)

	var oracle ServiceType
	require.NoError(t, db.Where("name = ?", "Oracle Database").First(&oracle).Error)
	require.NotEmpty(t, oracle.PropertyFields)
	assert.Equal(t, "dbType", oracle.PropertyFields[0].Name)

	// Seeding again does not duplicate the catalog.
	require.NoError(t, SeedServiceTypes(db))
	var count int64
	db.Model(&ServiceType{}).Count(&count)
	assert.EqualValues(t, 5, count)
}

func TestServicePropertiesRoundTrip(t *testing.T) {
	db := openTestDB(t)

	vm := VM{Hostname: "host-01", IPAddress: "10.0.0.5", AdminUser: "root", AdminPassword: "pw"}
	require.NoError(t, db.Create(&vm).Error)

	svc := Service{
		VMID: vm.ID,
		Name: "PostgreSQL",
		Properties: JSONMap{
			"port":    5432,
			"version": "16.2",
		},
	}
	require.NoError(t, db.Create(&svc).Error)

	var got Service
	require.NoError(t, db.First(&got, svc.ID).Error)
	assert.EqualValues(t, 5432, got.Properties["port"])
	assert.Equal(t, "16.2", got.Properties["version"])

	t.Run("nil properties scan to empty map", func(t *testing.T) {
		empty := Service{VMID: vm.ID, Name: "Web Server"}
		require.NoError(t, db.Create(&empty).Error)

		var got Service
		require.NoError(t, db.First(&got, empty.ID).Error)
		assert.NotNil(t, got.Properties)
		assert.Empty(t, got.Properties)
	})
}
