package users_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"storepulse/internal/testsupport"
	"storepulse/internal/users"
)

func TestFindByEmail(t *testing.T) {
	dbManager, _ := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()

	t.Run("finds existing user", func(t *testing.T) {
		created := testsupport.CreateTestUser(db, "test@example.com", "password123")

		found, err := users.FindByEmail(db, "test@example.com")
		require.NoError(t, err)
		assert.Equal(t, created.ID, found.ID)
	})

	t.Run("returns error for non-existent user", func(t *testing.T) {
		found, err := users.FindByEmail(db, "nonexistent@example.com")
		assert.Nil(t, found)
		assert.ErrorIs(t, err, users.ErrUserNotFound)
	})
}

func TestCreateUser(t *testing.T) {
	dbManager, _ := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()

	t.Run("creates non-admin user with name", func(t *testing.T) {
		created, err := users.CreateUser(db, "manager@example.com", "Store Manager", "securepass1", false)
		require.NoError(t, err)
		assert.Equal(t, "Store Manager", created.Name)
		assert.False(t, created.IsAdmin)
		assert.NotEqual(t, "securepass1", created.EncryptedPassword, "password is stored hashed")
		assert.False(t, created.LastLoginAt.Valid, "no login recorded yet")
	})

	t.Run("returns ErrUserExists for a taken email", func(t *testing.T) {
		_, err := users.CreateUser(db, "taken@example.com", "", "password123", false)
		require.NoError(t, err)

		_, err = users.CreateUser(db, "taken@example.com", "", "otherpass", true)
		assert.ErrorIs(t, err, users.ErrUserExists)
	})

	t.Run("rejects empty email and password", func(t *testing.T) {
		_, err := users.CreateUser(db, "", "", "password123", false)
		assert.Error(t, err)

		_, err = users.CreateUser(db, "nopass@example.com", "", "", false)
		assert.Error(t, err)
	})
}

func TestCreateAdminUser(t *testing.T) {
	dbManager, _ := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()

	err := users.CreateAdminUser(db, "newadmin@example.com", "securepassword123")
	require.NoError(t, err)

	found, err := users.FindByEmail(db, "newadmin@example.com")
	require.NoError(t, err)
	assert.True(t, found.IsAdmin)
	assert.NotEmpty(t, found.EncryptedPassword)
}

func TestChangePassword(t *testing.T) {
	dbManager, _ := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()

	t.Run("changes password successfully", func(t *testing.T) {
		email := "changepass@example.com"
		require.NoError(t, users.CreateAdminUser(db, email, "oldpassword123"))

		before, err := users.FindByEmail(db, email)
		require.NoError(t, err)

		require.NoError(t, users.ChangePassword(db, email, "newpassword456"))

		after, err := users.FindByEmail(db, email)
		require.NoError(t, err)
		assert.NotEqual(t, before.EncryptedPassword, after.EncryptedPassword)
		assert.NotEmpty(t, after.EncryptedPassword)
	})

	t.Run("returns error for non-existent user", func(t *testing.T) {
		err := users.ChangePassword(db, "nonexistent@example.com", "newpassword")
		assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	})

	t.Run("returns error for empty password", func(t *testing.T) {
		require.NoError(t, users.CreateAdminUser(db, "testuser@example.com", "password123"))
		assert.Error(t, users.ChangePassword(db, "testuser@example.com", ""))
	})
}

func TestTouchLastLogin(t *testing.T) {
	dbManager, _ := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()

	created, err := users.CreateUser(db, "login@example.com", "", "password123", false)
	require.NoError(t, err)
	require.False(t, created.LastLoginAt.Valid)

	require.NoError(t, users.TouchLastLogin(db, created.ID))

	found, err := users.FindByID(db, created.ID)
	require.NoError(t, err)
	assert.True(t, found.LastLoginAt.Valid)
	assert.False(t, found.LastLoginAt.Time.IsZero())
}

func TestDeleteUser(t *testing.T) {
	dbManager, _ := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()

	t.Run("removes the user and their permission rows", func(t *testing.T) {
		client := testsupport.CreateTestClient(db, "Delete Cascade")
		user, err := users.CreateUser(db, "doomed@example.com", "", "password123", false)
		require.NoError(t, err)
		testsupport.CreateTestPermission(t, db, user.ID, client.ID, users.CapViewDashboard)

		require.NoError(t, users.DeleteUser(db, user.ID))

		_, err = users.FindByID(db, user.ID)
		assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

		var orphaned int64
		require.NoError(t, db.Model(&users.Permission{}).Where("user_id = ?", user.ID).Count(&orphaned).Error)
		assert.Zero(t, orphaned, "permission rows go with the user")
	})

	t.Run("missing user yields ErrRecordNotFound", func(t *testing.T) {
		assert.ErrorIs(t, users.DeleteUser(db, 98765), gorm.ErrRecordNotFound)
	})
}

func TestSetupAdminUserIfNotExists(t *testing.T) {
	dbManager, _ := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()

	t.Run("creates user if not exists", func(t *testing.T) {
		users.SetupAdminUserIfNotExists(db, "setup@example.com")

		found, err := users.FindByEmail(db, "setup@example.com")
		require.NoError(t, err)
		assert.True(t, found.IsAdmin)
	})

	t.Run("leaves an existing user untouched", func(t *testing.T) {
		email := "existing-setup@example.com"
		require.NoError(t, users.CreateAdminUser(db, email, "password123"))

		before, err := users.FindByEmail(db, email)
		require.NoError(t, err)

		users.SetupAdminUserIfNotExists(db, email)

		after, err := users.FindByEmail(db, email)
		require.NoError(t, err)
		assert.Equal(t, before.EncryptedPassword, after.EncryptedPassword)
	})
}
