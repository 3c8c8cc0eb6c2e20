package stores_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"storepulse/internal/stores"
	"storepulse/internal/testsupport"
)

func TestCreateStore(t *testing.T) {
	t.Run("creates store for a client", func(t *testing.T) {
		db := testsupport.SetupTestDB(t)
		client := testsupport.CreateTestClient(db, "Store Owner")

		store := stores.Store{ClientID: client.ID, Name: "Downtown", ProviderFolderID: "folder-7"}
		require.NoError(t, stores.CreateStore(db, &store))
		assert.NotZero(t, store.ID)
	})

	t.Run("requires a client", func(t *testing.T) {
		db := testsupport.SetupTestDB(t)

		err := stores.CreateStore(db, &stores.Store{Name: "Orphan"})
		assert.Error(t, err)
	})

	t.Run("requires a name", func(t *testing.T) {
		db := testsupport.SetupTestDB(t)

		err := stores.CreateStore(db, &stores.Store{ClientID: 1})
		assert.Error(t, err)
	})
}

func TestGetStoreByID(t *testing.T) {
	db := testsupport.SetupTestDB(t)

	_, err := stores.GetStoreByID(db, 404)
	require.Error(t, err)

	var notFound *stores.StoreNotFoundError
	assert.ErrorAs(t, err, &notFound)
	assert.Equal(t, uint(404), notFound.ID)
}

func TestDeleteStore(t *testing.T) {
	t.Run("removes the store and its devices", func(t *testing.T) {
		db := testsupport.SetupTestDB(t)
		client := testsupport.CreateTestClient(db, "Cascade")
		store := testsupport.CreateTestStore(db, client.ID, "Mall", "folder-1")
		testsupport.CreateTestDevice(db, store.ID, "Entrance cam", 10)
		testsupport.CreateTestDevice(db, store.ID, "Aisle cam", 11)

		require.NoError(t, stores.DeleteStore(db, store.ID))

		devices, err := stores.GetDevicesByStore(db, store.ID)
		require.NoError(t, err)
		assert.Empty(t, devices, "devices are deleted with their store")
	})

	t.Run("missing store yields ErrRecordNotFound", func(t *testing.T) {
		db := testsupport.SetupTestDB(t)

		err := stores.DeleteStore(db, 9999)
		assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	})
}

func TestGetDevicesByClient(t *testing.T) {
	db := testsupport.SetupTestDB(t)

	clientA := testsupport.CreateTestClient(db, "Network A")
	clientB := testsupport.CreateTestClient(db, "Network B")
	storeA := testsupport.CreateTestStore(db, clientA.ID, "A1", "fa1")
	storeB := testsupport.CreateTestStore(db, clientB.ID, "B1", "fb1")
	testsupport.CreateTestDevice(db, storeA.ID, "cam-a", 1)
	testsupport.CreateTestDevice(db, storeB.ID, "cam-b", 2)

	devices, err := stores.GetDevicesByClient(db, clientA.ID)
	require.NoError(t, err)
	require.Len(t, devices, 1)
	assert.Equal(t, "cam-a", devices[0].Name, "only the client's own devices come back")
}

func TestGetStoreTree(t *testing.T) {
	db := testsupport.SetupTestDB(t)

	client := testsupport.CreateTestClient(db, "Tree")
	first := testsupport.CreateTestStore(db, client.ID, "Airport", "f1")
	second := testsupport.CreateTestStore(db, client.ID, "Harbour", "f2")
	testsupport.CreateTestDevice(db, first.ID, "Gate cam", 1)
	testsupport.CreateTestDevice(db, first.ID, "Lounge cam", 2)
	testsupport.CreateTestDevice(db, second.ID, "Pier cam", 3)

	tree, err := stores.GetStoreTree(db, client.ID)
	require.NoError(t, err)
	require.Len(t, tree, 2)

	assert.Equal(t, "Airport", tree[0].Store.Name)
	assert.Len(t, tree[0].Devices, 2)
	assert.Equal(t, "Harbour", tree[1].Store.Name)
	assert.Len(t, tree[1].Devices, 1)
}

func TestScopeDeviceIDs(t *testing.T) {
	db := testsupport.SetupTestDB(t)

	client := testsupport.CreateTestClient(db, "Scoping")
	store := testsupport.CreateTestStore(db, client.ID, "Plaza", "f1")
	camA := testsupport.CreateTestDevice(db, store.ID, "cam-a", 111)
	testsupport.CreateTestDevice(db, store.ID, "cam-b", 222)

	t.Run("nil selection means whole network", func(t *testing.T) {
		ids, err := stores.ScopeDeviceIDs(db, nil, nil)
		require.NoError(t, err)
		assert.Nil(t, ids)
	})

	t.Run("store selection covers all its cameras", func(t *testing.T) {
		ids, err := stores.ScopeDeviceIDs(db, &store.ID, nil)
		require.NoError(t, err)
		assert.ElementsMatch(t, []int64{111, 222}, ids)
	})

	t.Run("device selection wins over store", func(t *testing.T) {
		ids, err := stores.ScopeDeviceIDs(db, &store.ID, &camA.ID)
		require.NoError(t, err)
		assert.Equal(t, []int64{111}, ids)
	})

	t.Run("empty store yields an empty non-nil selection", func(t *testing.T) {
		empty := testsupport.CreateTestStore(db, client.ID, "Warehouse", "f2")

		ids, err := stores.ScopeDeviceIDs(db, &empty.ID, nil)
		require.NoError(t, err)
		require.NotNil(t, ids, "an empty store is still a filter, not the network view")
		assert.Empty(t, ids)
	})

	t.Run("unknown device errors", func(t *testing.T) {
		missing := uint(987654)
		_, err := stores.ScopeDeviceIDs(db, nil, &missing)
		assert.Error(t, err)
	})
}
