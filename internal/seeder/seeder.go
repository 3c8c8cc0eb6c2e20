// Package seeder loads a YAML fixture describing clients, stores, devices,
// users and permissions, and applies it to the database. Seeding is
// idempotent: existing records are matched by their natural keys and left in
// place, so re-running the seed against a live database is safe.
package seeder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"log/slog"

	"github.com/karloscodes/cartridge"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"

	"storepulse/internal/clients"
	"storepulse/internal/settings"
	"storepulse/internal/stores"
	"storepulse/internal/users"
)

// SeedFile is the root of the YAML fixture.
type SeedFile struct {
	Admin   SeedAdmin    `yaml:"admin"`
	Clients []SeedClient `yaml:"clients"`
	Users   []SeedUser   `yaml:"users"`
}

type SeedAdmin struct {
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
}

type SeedClient struct {
	Name     string        `yaml:"name"`
	Company  string        `yaml:"company"`
	Email    string        `yaml:"email"`
	Phone    string        `yaml:"phone"`
	Country  string        `yaml:"country"`
	Status   string        `yaml:"status"`
	Plan     string        `yaml:"plan"`
	Provider *SeedProvider `yaml:"provider"`
	Widgets  []string      `yaml:"widgets"`
	Stores   []SeedStore   `yaml:"stores"`
}

type SeedProvider struct {
	BaseURL           string `yaml:"base_url"`
	AnalyticsPath     string `yaml:"analytics_path"`
	APIToken          string `yaml:"api_token"`
	CustomHeaderName  string `yaml:"custom_header_name"`
	CustomHeaderValue string `yaml:"custom_header_value"`
}

type SeedStore struct {
	Name     string       `yaml:"name"`
	FolderID string       `yaml:"folder_id"`
	Devices  []SeedDevice `yaml:"devices"`
}

type SeedDevice struct {
	Name       string `yaml:"name"`
	ProviderID int64  `yaml:"provider_id"`
}

type SeedUser struct {
	Email       string           `yaml:"email"`
	Name        string           `yaml:"name"`
	Password    string           `yaml:"password"`
	Admin       bool             `yaml:"admin"`
	Permissions []SeedPermission `yaml:"permissions"`
}

type SeedPermission struct {
	Client       string   `yaml:"client"`
	Capabilities []string `yaml:"capabilities"`
}

// Seeder applies a SeedFile to the database.
type Seeder struct {
	DBManager cartridge.DBManager
	Logger    *slog.Logger
}

// NewSeeder creates a new seeder instance
func NewSeeder(dbManager cartridge.DBManager, logger *slog.Logger) *Seeder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Seeder{
		DBManager: dbManager,
		Logger:    logger,
	}
}

// LoadSeedFile parses a YAML fixture from disk.
func LoadSeedFile(path string) (*SeedFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}

	var seed SeedFile
	if err := yaml.Unmarshal(raw, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}
	return &seed, nil
}

// RunFile loads and applies the fixture at path.
func (s *Seeder) RunFile(ctx context.Context, path string) error {
	seed, err := LoadSeedFile(path)
	if err != nil {
		return err
	}
	return s.Run(ctx, seed)
}

// Run applies the fixture.
func (s *Seeder) Run(ctx context.Context, seed *SeedFile) error {
	start := time.Now()
	s.Logger.Info("Starting database seeding...",
		slog.Int("clients", len(seed.Clients)),
		slog.Int("users", len(seed.Users)))

	if err := s.seedAdmin(seed.Admin); err != nil {
		return fmt.Errorf("failed to seed admin: %w", err)
	}

	clientIDs := make(map[string]uint)
	for _, sc := range seed.Clients {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		id, err := s.seedClient(sc)
		if err != nil {
			return fmt.Errorf("failed to seed client %s: %w", sc.Name, err)
		}
		clientIDs[sc.Name] = id
	}

	for _, su := range seed.Users {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := s.seedUser(su, clientIDs); err != nil {
			return fmt.Errorf("failed to seed user %s: %w", su.Email, err)
		}
	}

	s.Logger.Info("Seeding completed successfully", slog.Duration("elapsed", time.Since(start)))
	return nil
}

// seedAdmin ensures the admin user from the fixture exists.
func (s *Seeder) seedAdmin(admin SeedAdmin) error {
	if admin.Email == "" {
		return nil
	}

	db := s.DBManager.GetConnection()
	if _, err := users.FindByEmail(db, admin.Email); err == nil {
		s.Logger.Info("Admin user already exists", slog.String("email", admin.Email))
		return nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	password := admin.Password
	if password == "" {
		return fmt.Errorf("admin %s has no password in the seed file", admin.Email)
	}
	if err := users.CreateAdminUser(db, admin.Email, password); err != nil {
		return err
	}
	s.Logger.Info("Admin user created", slog.String("email", admin.Email))
	return nil
}

func (s *Seeder) seedClient(sc SeedClient) (uint, error) {
	db := s.DBManager.GetConnection()

	var client clients.Client
	err := db.Where("name = ?", sc.Name).First(&client).Error
	switch {
	case err == nil:
		s.Logger.Info("Client already exists", slog.String("name", sc.Name))
	case errors.Is(err, gorm.ErrRecordNotFound):
		client = clients.Client{
			Name:    sc.Name,
			Company: sc.Company,
			Email:   sc.Email,
			Phone:   sc.Phone,
			Country: sc.Country,
			Status:  defaultString(sc.Status, clients.StatusActive),
			Plan:    defaultString(sc.Plan, clients.PlanBasic),
		}
		if createErr := clients.CreateClient(db, &client); createErr != nil {
			return 0, createErr
		}
		s.Logger.Info("Client created", slog.String("name", sc.Name), slog.Uint64("id", uint64(client.ID)))
	default:
		return 0, err
	}

	if sc.Provider != nil {
		if err := settings.SaveAPIConfig(db, client.ID, settings.APIConfig{
			BaseURL:           sc.Provider.BaseURL,
			AnalyticsPath:     sc.Provider.AnalyticsPath,
			APIToken:          sc.Provider.APIToken,
			CustomHeaderName:  sc.Provider.CustomHeaderName,
			CustomHeaderValue: sc.Provider.CustomHeaderValue,
		}); err != nil {
			return 0, err
		}
	}

	if len(sc.Widgets) > 0 {
		if err := settings.SaveWidgets(db, client.ID, sc.Widgets); err != nil {
			return 0, err
		}
	}

	for _, ss := range sc.Stores {
		if err := s.seedStore(client.ID, ss); err != nil {
			return 0, err
		}
	}

	return client.ID, nil
}

func (s *Seeder) seedStore(clientID uint, ss SeedStore) error {
	db := s.DBManager.GetConnection()

	var store stores.Store
	err := db.Where("client_id = ? AND name = ?", clientID, ss.Name).First(&store).Error
	switch {
	case err == nil:
	case errors.Is(err, gorm.ErrRecordNotFound):
		store = stores.Store{
			ClientID:         clientID,
			Name:             ss.Name,
			ProviderFolderID: ss.FolderID,
		}
		if createErr := stores.CreateStore(db, &store); createErr != nil {
			return createErr
		}
	default:
		return err
	}

	for _, sd := range ss.Devices {
		var device stores.Device
		err := db.Where("store_id = ? AND provider_device_id = ?", store.ID, sd.ProviderID).First(&device).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := stores.CreateDevice(db, &stores.Device{
			StoreID:          store.ID,
			Name:             sd.Name,
			ProviderDeviceID: sd.ProviderID,
		}); err != nil {
			return err
		}
	}
	return nil
}

func (s *Seeder) seedUser(su SeedUser, clientIDs map[string]uint) error {
	db := s.DBManager.GetConnection()

	user, err := users.FindByEmail(db, su.Email)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		user, err = users.CreateUser(db, su.Email, su.Name, su.Password, su.Admin)
	}
	if err != nil {
		return err
	}

	for _, sp := range su.Permissions {
		clientID, ok := clientIDs[sp.Client]
		if !ok {
			return fmt.Errorf("permission references unknown client %q", sp.Client)
		}

		p := users.Permission{UserID: user.ID, ClientID: clientID}
		for _, capability := range sp.Capabilities {
			switch capability {
			case users.CapViewDashboard:
				p.ViewDashboard = true
			case users.CapViewReports:
				p.ViewReports = true
			case users.CapViewAnalytics:
				p.ViewAnalytics = true
			case users.CapExportData:
				p.ExportData = true
			case users.CapManageSettings:
				p.ManageSettings = true
			default:
				return fmt.Errorf("unknown capability %q for user %s", capability, su.Email)
			}
		}
		if err := users.SetPermissions(db, p); err != nil {
			return err
		}
	}
	return nil
}

func defaultString(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
