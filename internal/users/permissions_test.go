package users_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storepulse/internal/testsupport"
	"storepulse/internal/users"
)

func TestPermissionsFor(t *testing.T) {
	dbManager, _ := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()

	t.Run("missing row comes back all-false, not an error", func(t *testing.T) {
		p, err := users.PermissionsFor(db, 42, 7)
		require.NoError(t, err)

		assert.Equal(t, uint(42), p.UserID)
		assert.Equal(t, uint(7), p.ClientID)
		assert.Zero(t, p.ID)
		assert.False(t, p.ViewDashboard)
		assert.False(t, p.ViewReports)
		assert.False(t, p.ViewAnalytics)
		assert.False(t, p.ExportData)
		assert.False(t, p.ManageSettings)
	})

	t.Run("returns the stored row when present", func(t *testing.T) {
		client := testsupport.CreateTestClient(db, "Stored Row")
		user, err := users.CreateUser(db, "stored@example.com", "", "password123", false)
		require.NoError(t, err)
		testsupport.CreateTestPermission(t, db, user.ID, client.ID, users.CapViewReports)

		p, err := users.PermissionsFor(db, user.ID, client.ID)
		require.NoError(t, err)
		assert.NotZero(t, p.ID)
		assert.True(t, p.ViewReports)
		assert.False(t, p.ViewDashboard)
	})
}

func TestSetPermissions(t *testing.T) {
	dbManager, _ := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()

	t.Run("upsert keeps one row per user and client", func(t *testing.T) {
		client := testsupport.CreateTestClient(db, "Upsert")
		user, err := users.CreateUser(db, "upsert@example.com", "", "password123", false)
		require.NoError(t, err)

		require.NoError(t, users.SetPermissions(db, users.Permission{
			UserID: user.ID, ClientID: client.ID, ViewDashboard: true,
		}))
		require.NoError(t, users.SetPermissions(db, users.Permission{
			UserID: user.ID, ClientID: client.ID, ExportData: true,
		}))

		var count int64
		require.NoError(t, db.Model(&users.Permission{}).
			Where("user_id = ? AND client_id = ?", user.ID, client.ID).Count(&count).Error)
		assert.Equal(t, int64(1), count)

		// The second call replaces the flag set wholesale.
		p, err := users.PermissionsFor(db, user.ID, client.ID)
		require.NoError(t, err)
		assert.False(t, p.ViewDashboard)
		assert.True(t, p.ExportData)
	})

	t.Run("update preserves the original CreatedAt", func(t *testing.T) {
		client := testsupport.CreateTestClient(db, "Created At")
		user, err := users.CreateUser(db, "createdat@example.com", "", "password123", false)
		require.NoError(t, err)

		require.NoError(t, users.SetPermissions(db, users.Permission{
			UserID: user.ID, ClientID: client.ID, ViewDashboard: true,
		}))

		first, err := users.PermissionsFor(db, user.ID, client.ID)
		require.NoError(t, err)

		time.Sleep(10 * time.Millisecond)
		require.NoError(t, users.SetPermissions(db, users.Permission{
			UserID: user.ID, ClientID: client.ID, ManageSettings: true,
		}))

		second, err := users.PermissionsFor(db, user.ID, client.ID)
		require.NoError(t, err)
		assert.Equal(t, first.ID, second.ID)
		assert.Equal(t, first.CreatedAt.UTC(), second.CreatedAt.UTC(), "grant date survives flag updates")
	})

	t.Run("grants are scoped per client", func(t *testing.T) {
		clientA := testsupport.CreateTestClient(db, "Scope A")
		clientB := testsupport.CreateTestClient(db, "Scope B")
		user, err := users.CreateUser(db, "scoped@example.com", "", "password123", false)
		require.NoError(t, err)

		require.NoError(t, users.SetPermissions(db, users.Permission{
			UserID: user.ID, ClientID: clientA.ID, ViewDashboard: true,
		}))

		allowed, err := users.HasCapability(db, user, clientA.ID, users.CapViewDashboard)
		require.NoError(t, err)
		assert.True(t, allowed)

		allowed, err = users.HasCapability(db, user, clientB.ID, users.CapViewDashboard)
		require.NoError(t, err)
		assert.False(t, allowed, "a grant on one client says nothing about another")
	})
}

func TestHasCapability(t *testing.T) {
	dbManager, _ := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()

	client := testsupport.CreateTestClient(db, "Capability")

	t.Run("admin passes every check without a permission row", func(t *testing.T) {
		admin, err := users.CreateUser(db, "admin@example.com", "", "password123", true)
		require.NoError(t, err)

		for _, capability := range []string{
			users.CapViewDashboard,
			users.CapViewReports,
			users.CapViewAnalytics,
			users.CapExportData,
			users.CapManageSettings,
		} {
			allowed, err := users.HasCapability(db, admin, client.ID, capability)
			require.NoError(t, err)
			assert.Truef(t, allowed, "admin should hold %s", capability)
		}
	})

	t.Run("each flag gates exactly its capability", func(t *testing.T) {
		user, err := users.CreateUser(db, "flags@example.com", "", "password123", false)
		require.NoError(t, err)
		testsupport.CreateTestPermission(t, db, user.ID, client.ID,
			users.CapViewDashboard, users.CapExportData)

		granted := map[string]bool{
			users.CapViewDashboard:  true,
			users.CapViewReports:    false,
			users.CapViewAnalytics:  false,
			users.CapExportData:     true,
			users.CapManageSettings: false,
		}
		for capability, want := range granted {
			allowed, err := users.HasCapability(db, user, client.ID, capability)
			require.NoError(t, err)
			assert.Equalf(t, want, allowed, "capability %s", capability)
		}
	})

	t.Run("unknown capability is denied", func(t *testing.T) {
		user, err := users.CreateUser(db, "unknowncap@example.com", "", "password123", false)
		require.NoError(t, err)
		testsupport.CreateTestPermission(t, db, user.ID, client.ID, users.CapViewDashboard)

		allowed, err := users.HasCapability(db, user, client.ID, "fly_spaceship")
		require.NoError(t, err)
		assert.False(t, allowed)
	})
}

func TestListUsersWithPermissions(t *testing.T) {
	dbManager, _ := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()

	client := testsupport.CreateTestClient(db, "Listing")

	granted, err := users.CreateUser(db, "a-granted@example.com", "", "password123", false)
	require.NoError(t, err)
	testsupport.CreateTestPermission(t, db, granted.ID, client.ID, users.CapViewReports)

	_, err = users.CreateUser(db, "b-blank@example.com", "", "password123", false)
	require.NoError(t, err)

	list, err := users.ListUsersWithPermissions(db, client.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)

	assert.Equal(t, "a-granted@example.com", list[0].User.Email)
	assert.True(t, list[0].Permission.ViewReports)

	// Users without a row still appear, with all-false flags.
	assert.Equal(t, "b-blank@example.com", list[1].User.Email)
	assert.False(t, list[1].Permission.ViewReports)
	assert.Zero(t, list[1].Permission.ID)
}
