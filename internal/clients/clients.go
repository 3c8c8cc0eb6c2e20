package clients

import (
	"fmt"
	"strings"
	"time"

	"github.com/pariz/gountries"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/gorm"
)

// Client statuses
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
	StatusPending  = "pending"
)

// Client plans
const (
	PlanEnterprise = "enterprise"
	PlanPro        = "pro"
	PlanBasic      = "basic"
)

// ClientNotFoundError represents an error when a client is not found
type ClientNotFoundError struct {
	ID uint
}

func (e *ClientNotFoundError) Error() string {
	return fmt.Sprintf("client not found: %d", e.ID)
}

// NewClientNotFoundError creates a new ClientNotFoundError
func NewClientNotFoundError(id uint) *ClientNotFoundError {
	return &ClientNotFoundError{ID: id}
}

// Client represents a managed retail network. All stores, devices, users and
// analytics configuration hang off a client.
type Client struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Name      string    `gorm:"not null;uniqueIndex" json:"name"`
	Company   string    `json:"company"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Country   string    `json:"country"`                           // ISO 3166-1 alpha-2 code
	Status    string    `gorm:"default:'pending'" json:"status"`   // active, inactive or pending
	Plan      string    `gorm:"default:'basic'" json:"plan"`       // enterprise, pro or basic
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

var countryQuery = gountries.New()

// CountryName resolves an ISO alpha-2 code to a display name.
// Unknown or empty codes fall back to the title-cased input.
func CountryName(code string) string {
	if code == "" {
		return ""
	}
	country, err := countryQuery.FindCountryByAlpha(code)
	if err != nil {
		return cases.Title(language.English).String(strings.ToLower(code))
	}
	return country.Name.Common
}

// GetFirstClient retrieves the first client from the database
func GetFirstClient(db *gorm.DB) (*Client, error) {
	var client Client
	if err := db.Order("id asc").First(&client).Error; err != nil {
		return nil, err
	}
	return &client, nil
}

// GetAllClients retrieves all clients ordered by name
func GetAllClients(db *gorm.DB) ([]Client, error) {
	var all []Client
	if err := db.Order("name asc").Find(&all).Error; err != nil {
		return nil, fmt.Errorf("failed to get clients: %w", err)
	}
	return all, nil
}

// GetClientByID retrieves a client by its ID
func GetClientByID(db *gorm.DB, id uint) (Client, error) {
	var client Client
	if err := db.First(&client, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return Client{}, NewClientNotFoundError(id)
		}
		return Client{}, err
	}
	return client, nil
}

// GetClientByName retrieves a client by its unique name
func GetClientByName(db *gorm.DB, name string) (*Client, error) {
	var client Client
	if err := db.Where("name = ?", name).First(&client).Error; err != nil {
		return nil, err
	}
	return &client, nil
}

// CreateClient creates a new client
func CreateClient(db *gorm.DB, client *Client) error {
	if strings.TrimSpace(client.Name) == "" {
		return fmt.Errorf("client name cannot be empty")
	}

	client.CreatedAt = time.Now().UTC()

	if client.Status == "" {
		client.Status = StatusPending
	}
	if client.Plan == "" {
		client.Plan = PlanBasic
	}
	if !validStatus(client.Status) {
		return fmt.Errorf("invalid client status: %s", client.Status)
	}
	if !validPlan(client.Plan) {
		return fmt.Errorf("invalid client plan: %s", client.Plan)
	}

	return db.Create(client).Error
}

// UpdateClient updates an existing client
func UpdateClient(db *gorm.DB, client *Client) error {
	if !validStatus(client.Status) {
		return fmt.Errorf("invalid client status: %s", client.Status)
	}
	if !validPlan(client.Plan) {
		return fmt.Errorf("invalid client plan: %s", client.Plan)
	}
	return db.Save(client).Error
}

// DeleteClient deletes a client by its ID
func DeleteClient(db *gorm.DB, id uint) error {
	result := db.Delete(&Client{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// GetClientsForSelector returns a list of clients formatted for the frontend selector
func GetClientsForSelector(db *gorm.DB) ([]map[string]interface{}, error) {
	all, err := GetAllClients(db)
	if err != nil {
		return nil, err
	}

	// Format for frontend
	result := make([]map[string]interface{}, len(all))
	for i, client := range all {
		result[i] = map[string]interface{}{
			"id":     client.ID,
			"name":   client.Name,
			"status": client.Status,
		}
	}

	return result, nil
}

// ClientWithStats represents a client enriched with inventory counts
type ClientWithStats struct {
	ID          uint      `json:"id"`
	Name        string    `json:"name"`
	Company     string    `json:"company"`
	Country     string    `json:"country"`
	CountryName string    `json:"country_name"`
	Status      string    `json:"status"`
	Plan        string    `json:"plan"`
	CreatedAt   time.Time `json:"created_at"`
	StoreCount  int64     `json:"store_count"`
	DeviceCount int64     `json:"device_count"`
	UserCount   int64     `json:"user_count"`
}

// GetClientsWithStats retrieves all clients enriched with store/device/user counts
func GetClientsWithStats(db *gorm.DB) ([]ClientWithStats, error) {
	all, err := GetAllClients(db)
	if err != nil {
		return nil, err
	}

	result := make([]ClientWithStats, len(all))
	for i, client := range all {
		var storeCount, deviceCount, userCount int64

		// On error, default to 0 but continue
		db.Table("stores").Where("client_id = ?", client.ID).Count(&storeCount)
		db.Table("devices").
			Joins("JOIN stores ON stores.id = devices.store_id").
			Where("stores.client_id = ?", client.ID).
			Count(&deviceCount)
		db.Table("permissions").Where("client_id = ?", client.ID).Count(&userCount)

		result[i] = ClientWithStats{
			ID:          client.ID,
			Name:        client.Name,
			Company:     client.Company,
			Country:     client.Country,
			CountryName: CountryName(client.Country),
			Status:      client.Status,
			Plan:        client.Plan,
			CreatedAt:   client.CreatedAt,
			StoreCount:  storeCount,
			DeviceCount: deviceCount,
			UserCount:   userCount,
		}
	}

	return result, nil
}

func validStatus(s string) bool {
	return s == StatusActive || s == StatusInactive || s == StatusPending
}

func validPlan(p string) bool {
	return p == PlanEnterprise || p == PlanPro || p == PlanBasic
}
