package settings_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storepulse/internal/settings"
	"storepulse/internal/testsupport"
)

func TestGetSetting(t *testing.T) {
	t.Run("returns value for existing setting", func(t *testing.T) {
		dbManager, _ := testsupport.SetupTestDBManager(t)
		db := dbManager.GetConnection()
		settings.SetupDefaultSettings(db)

		err := settings.UpdateSetting(db, "test_setting", "test_value")
		require.NoError(t, err)

		value, err := settings.GetSetting(db, "test_setting")
		require.NoError(t, err)
		assert.Equal(t, "test_value", value, "GetSetting should return the correct value")
	})

	t.Run("returns error for non-existent setting", func(t *testing.T) {
		dbManager, _ := testsupport.SetupTestDBManager(t)
		db := dbManager.GetConnection()
		settings.SetupDefaultSettings(db)

		_, err := settings.GetSetting(db, "non_existent")
		assert.Error(t, err, "GetSetting should return an error for non-existent setting")
	})
}

func TestUpdateSetting(t *testing.T) {
	t.Run("updates existing setting", func(t *testing.T) {
		dbManager, _ := testsupport.SetupTestDBManager(t)
		db := dbManager.GetConnection()
		settings.SetupDefaultSettings(db)

		err := settings.UpdateSetting(db, "test_setting", "initial_value")
		require.NoError(t, err)

		value, err := settings.GetSetting(db, "test_setting")
		require.NoError(t, err)
		assert.Equal(t, "initial_value", value)

		err = settings.UpdateSetting(db, "test_setting", "updated_value")
		require.NoError(t, err)

		value, err = settings.GetSetting(db, "test_setting")
		require.NoError(t, err)
		assert.Equal(t, "updated_value", value, "UpdateSetting should update the value correctly")
	})

	t.Run("creates new setting if not exists", func(t *testing.T) {
		dbManager, _ := testsupport.SetupTestDBManager(t)
		db := dbManager.GetConnection()
		settings.SetupDefaultSettings(db)

		err := settings.UpdateSetting(db, "new_setting", "new_value")
		require.NoError(t, err)

		value, err := settings.GetSetting(db, "new_setting")
		require.NoError(t, err)
		assert.Equal(t, "new_value", value, "UpdateSetting should create a new setting if it doesn't exist")
	})
}

func TestAPIConfigStore(t *testing.T) {
	t.Run("missing config comes back nil without error", func(t *testing.T) {
		dbManager, _ := testsupport.SetupTestDBManager(t)
		db := dbManager.GetConnection()
		settings.SetupDefaultSettings(db)

		cfg, err := settings.GetAPIConfig(db, 42)
		require.NoError(t, err)
		assert.Nil(t, cfg, "a client without a stored config should resolve to nil")
	})

	t.Run("save and get round-trip per client", func(t *testing.T) {
		dbManager, _ := testsupport.SetupTestDBManager(t)
		db := dbManager.GetConnection()
		settings.SetupDefaultSettings(db)

		err := settings.SaveAPIConfig(db, 1, settings.APIConfig{
			BaseURL:  "https://api.displayforce.ai",
			APIToken: "token-one",
			Tracks:   true,
		})
		require.NoError(t, err)

		err = settings.SaveAPIConfig(db, 2, settings.APIConfig{
			BaseURL:  "https://eu.provider.example",
			APIToken: "token-two",
		})
		require.NoError(t, err)

		cfg1, err := settings.GetAPIConfig(db, 1)
		require.NoError(t, err)
		require.NotNil(t, cfg1)
		assert.Equal(t, "token-one", cfg1.APIToken)
		assert.True(t, cfg1.Tracks)

		cfg2, err := settings.GetAPIConfig(db, 2)
		require.NoError(t, err)
		require.NotNil(t, cfg2)
		assert.Equal(t, "https://eu.provider.example", cfg2.BaseURL)
	})

	t.Run("delete removes only that client's config", func(t *testing.T) {
		dbManager, _ := testsupport.SetupTestDBManager(t)
		db := dbManager.GetConnection()
		settings.SetupDefaultSettings(db)

		require.NoError(t, settings.SaveAPIConfig(db, 1, settings.APIConfig{BaseURL: "https://a", APIToken: "a"}))
		require.NoError(t, settings.SaveAPIConfig(db, 2, settings.APIConfig{BaseURL: "https://b", APIToken: "b"}))

		require.NoError(t, settings.DeleteAPIConfig(db, 1))

		cfg1, err := settings.GetAPIConfig(db, 1)
		require.NoError(t, err)
		assert.Nil(t, cfg1)

		cfg2, err := settings.GetAPIConfig(db, 2)
		require.NoError(t, err)
		assert.NotNil(t, cfg2)
	})
}

func TestWidgetFallbackChain(t *testing.T) {
	t.Run("hardcoded default when nothing stored", func(t *testing.T) {
		dbManager, _ := testsupport.SetupTestDBManager(t)
		db := dbManager.GetConnection()

		widgets := settings.GetWidgets(db, 7)
		assert.Equal(t, settings.HardcodedDefaultWidgets, widgets)
	})

	t.Run("stored global default beats hardcoded", func(t *testing.T) {
		dbManager, _ := testsupport.SetupTestDBManager(t)
		db := dbManager.GetConnection()
		settings.SetupDefaultSettings(db)

		require.NoError(t, settings.SaveDefaultWidgets(db, []string{"flow_trend", "gender_dist"}))

		widgets := settings.GetWidgets(db, 7)
		assert.Equal(t, []string{"flow_trend", "gender_dist"}, widgets)
	})

	t.Run("per-client list beats global default", func(t *testing.T) {
		dbManager, _ := testsupport.SetupTestDBManager(t)
		db := dbManager.GetConnection()
		settings.SetupDefaultSettings(db)

		require.NoError(t, settings.SaveDefaultWidgets(db, []string{"flow_trend"}))
		require.NoError(t, settings.SaveWidgets(db, 7, []string{"age_pyramid", "campaigns"}))

		assert.Equal(t, []string{"age_pyramid", "campaigns"}, settings.GetWidgets(db, 7))
		assert.Equal(t, []string{"flow_trend"}, settings.GetWidgets(db, 8), "other clients keep the global default")
	})

	t.Run("empty list removes the per-client override", func(t *testing.T) {
		dbManager, _ := testsupport.SetupTestDBManager(t)
		db := dbManager.GetConnection()
		settings.SetupDefaultSettings(db)

		require.NoError(t, settings.SaveDefaultWidgets(db, []string{"flow_trend"}))
		require.NoError(t, settings.SaveWidgets(db, 7, []string{"campaigns"}))
		require.NoError(t, settings.SaveWidgets(db, 7, nil))

		assert.Equal(t, []string{"flow_trend"}, settings.GetWidgets(db, 7))
	})

	t.Run("duplicates and blanks are dropped on save", func(t *testing.T) {
		dbManager, _ := testsupport.SetupTestDBManager(t)
		db := dbManager.GetConnection()
		settings.SetupDefaultSettings(db)

		require.NoError(t, settings.SaveWidgets(db, 7, []string{"campaigns", " campaigns ", "", "attributes"}))
		assert.Equal(t, []string{"campaigns", "attributes"}, settings.GetWidgets(db, 7))
	})
}

func TestGeoLiteCredentials(t *testing.T) {
	dbManager, _ := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()
	settings.SetupDefaultSettings(db)

	require.NoError(t, settings.SaveGeoLiteCredentials(db, " 12345 ", " key-abc "))

	accountID, licenseKey, err := settings.GetGeoLiteCredentials(db)
	require.NoError(t, err)
	assert.Equal(t, "12345", accountID, "credentials are trimmed on save")
	assert.Equal(t, "key-abc", licenseKey)
}

func TestSettingsForDisplayMasksSecrets(t *testing.T) {
	dbManager, _ := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()
	settings.SetupDefaultSettings(db)

	require.NoError(t, settings.SaveAPIConfig(db, 1, settings.APIConfig{BaseURL: "https://a", APIToken: "secret-token"}))
	require.NoError(t, settings.SaveGeoLiteCredentials(db, "12345", "secret-key"))

	display, err := settings.GetAllSettingsForDisplay(db)
	require.NoError(t, err)

	for _, s := range display {
		assert.NotContains(t, s.Value, "secret-token")
		assert.NotContains(t, s.Value, "secret-key")
	}
}
