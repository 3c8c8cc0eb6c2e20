package clients_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"storepulse/internal/clients"
	"storepulse/internal/testsupport"
	"storepulse/internal/users"
)

func TestCreateClient(t *testing.T) {
	t.Run("creates client with defaults", func(t *testing.T) {
		db := testsupport.SetupTestDB(t)

		client := clients.Client{Name: "Acme Retail"}
		require.NoError(t, clients.CreateClient(db, &client))

		assert.NotZero(t, client.ID)
		assert.Equal(t, clients.StatusPending, client.Status, "status defaults to pending")
		assert.Equal(t, clients.PlanBasic, client.Plan, "plan defaults to basic")
	})

	t.Run("rejects empty name", func(t *testing.T) {
		db := testsupport.SetupTestDB(t)

		err := clients.CreateClient(db, &clients.Client{Name: "   "})
		assert.Error(t, err)
	})

	t.Run("rejects invalid status and plan", func(t *testing.T) {
		db := testsupport.SetupTestDB(t)

		err := clients.CreateClient(db, &clients.Client{Name: "Bad Status", Status: "paused"})
		assert.Error(t, err)

		err = clients.CreateClient(db, &clients.Client{Name: "Bad Plan", Plan: "platinum"})
		assert.Error(t, err)
	})

	t.Run("rejects duplicate name", func(t *testing.T) {
		db := testsupport.SetupTestDB(t)

		require.NoError(t, clients.CreateClient(db, &clients.Client{Name: "Twice"}))
		err := clients.CreateClient(db, &clients.Client{Name: "Twice"})
		assert.Error(t, err, "client names are unique")
	})
}

func TestGetClientByID(t *testing.T) {
	t.Run("returns typed error when missing", func(t *testing.T) {
		db := testsupport.SetupTestDB(t)

		_, err := clients.GetClientByID(db, 999)
		require.Error(t, err)

		var notFound *clients.ClientNotFoundError
		assert.ErrorAs(t, err, &notFound)
		assert.Equal(t, uint(999), notFound.ID)
	})
}

func TestUpdateClient(t *testing.T) {
	db := testsupport.SetupTestDB(t)

	client := testsupport.CreateTestClient(db, "Update Me")
	client.Status = clients.StatusInactive
	client.Plan = clients.PlanPro
	require.NoError(t, clients.UpdateClient(db, &client))

	reloaded, err := clients.GetClientByID(db, client.ID)
	require.NoError(t, err)
	assert.Equal(t, clients.StatusInactive, reloaded.Status)
	assert.Equal(t, clients.PlanPro, reloaded.Plan)
}

func TestDeleteClient(t *testing.T) {
	t.Run("deletes existing client", func(t *testing.T) {
		db := testsupport.SetupTestDB(t)

		client := testsupport.CreateTestClient(db, "Delete Me")
		require.NoError(t, clients.DeleteClient(db, client.ID))

		_, err := clients.GetClientByID(db, client.ID)
		assert.Error(t, err)
	})

	t.Run("missing client yields ErrRecordNotFound", func(t *testing.T) {
		db := testsupport.SetupTestDB(t)

		err := clients.DeleteClient(db, 12345)
		assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	})
}

func TestGetAllClientsOrdering(t *testing.T) {
	db := testsupport.SetupTestDB(t)

	testsupport.CreateTestClient(db, "Zeta Stores")
	testsupport.CreateTestClient(db, "Alpha Stores")

	all, err := clients.GetAllClients(db)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Alpha Stores", all[0].Name, "clients come back ordered by name")
	assert.Equal(t, "Zeta Stores", all[1].Name)
}

func TestGetClientsWithStats(t *testing.T) {
	db := testsupport.SetupTestDB(t)

	client := testsupport.CreateTestClient(db, "Counted")
	store := testsupport.CreateTestStore(db, client.ID, "Main Street", "folder-1")
	testsupport.CreateTestDevice(db, store.ID, "Entrance cam", 100)
	testsupport.CreateTestDevice(db, store.ID, "Checkout cam", 101)

	user := testsupport.CreateTestUser(db, "stats@example.com", "irrelevant")
	testsupport.CreateTestPermission(t, db, user.ID, client.ID, users.CapViewDashboard)

	stats, err := clients.GetClientsWithStats(db)
	require.NoError(t, err)
	require.Len(t, stats, 1)

	assert.Equal(t, int64(1), stats[0].StoreCount)
	assert.Equal(t, int64(2), stats[0].DeviceCount)
	assert.Equal(t, int64(1), stats[0].UserCount)
}

func TestCountryName(t *testing.T) {
	assert.Equal(t, "", clients.CountryName(""))
	assert.Equal(t, "Germany", clients.CountryName("DE"))
	assert.Equal(t, "Spain", clients.CountryName("ES"))
	assert.Equal(t, "Xx", clients.CountryName("XX"), "unknown codes fall back to title-cased input")
}
