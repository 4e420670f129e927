package applications

import "time"

// Identity describes an application in the marketplace.
type Identity struct {
	Code        string   `json:"code" yaml:"code"`
	Name        string   `json:"name" yaml:"name"`
	Icon        string   `json:"icon" yaml:"icon"`
	Description string   `json:"description" yaml:"description"`
	Website     string   `json:"website" yaml:"website"`
	Categories  []string `json:"categories" yaml:"categories"`
}

// API holds the integration endpoint and secret of an application.
type API struct {
	HooksURL   string `json:"hooks_url" yaml:"hooks_url"`
	PrivateKey string `json:"private_key" yaml:"private_key"`
}

type Stats struct {
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
	Version   int       `json:"version" yaml:"version"`
}

// Application is a marketplace entry. CompanyID is the publisher.
type Application struct {
	ID        string   `json:"id" yaml:"id"`
	CompanyID string   `json:"company_id" yaml:"company_id"`
	IsDefault bool     `json:"is_default" yaml:"is_default"`
	Published bool     `json:"published" yaml:"published"`
	Identity  Identity `json:"identity" yaml:"identity"`
	API       API      `json:"api" yaml:"api"`
	Stats     Stats    `json:"stats" yaml:"stats"`
}

// PublicApplication is an Application without its API secret.
type PublicApplication struct {
	ID        string   `json:"id"`
	CompanyID string   `json:"company_id"`
	IsDefault bool     `json:"is_default"`
	Published bool     `json:"published"`
	Identity  Identity `json:"identity"`
	Stats     Stats    `json:"stats"`
}

// Public strips secrets.
func (a *Application) Public() *PublicApplication {
	identity := a.Identity
	identity.Categories = append([]string(nil), a.Identity.Categories...)
	return &PublicApplication{
		ID:        a.ID,
		CompanyID: a.CompanyID,
		IsDefault: a.IsDefault,
		Published: a.Published,
		Identity:  identity,
		Stats:     a.Stats,
	}
}

// Installation records that a company installed an application.
type Installation struct {
	CompanyID     string    `json:"company_id"`
	ApplicationID string    `json:"application_id"`
	CreatedAt     time.Time `json:"created_at"`
	CreatedBy     string    `json:"created_by"`
}

// CompanyApplication is an installation joined with its public application.
type CompanyApplication struct {
	Installation
	Application *PublicApplication `json:"application"`
}

// Key identifies an installation.
type Key struct {
	CompanyID     string
	ApplicationID string
}

// Patch is the save payload. Installing carries no settings yet; the
// application id comes from the path.
type Patch struct{}
