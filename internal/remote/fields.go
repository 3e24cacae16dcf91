package remote

import (
	_ "embed"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"posbackend/internal/models"
)

//go:embed fields.yaml
var defaultFieldsYAML []byte

// OrderFields lists candidate payload keys for each order attribute.
type OrderFields struct {
	ID            []string `yaml:"id"`
	ExternalID    []string `yaml:"externalId"`
	CreatedAt     []string `yaml:"createdAt"`
	Integration   []string `yaml:"integration"`
	Status        []string `yaml:"status"`
	Total         []string `yaml:"total"`
	Products      []string `yaml:"products"`
	CustomerName  []string `yaml:"customerName"`
	CustomerPhone []string `yaml:"customerPhone"`
	Address       []string `yaml:"address"`
	Note          []string `yaml:"note"`
}

// ItemFields lists candidate payload keys for each line-item attribute.
type ItemFields struct {
	Name       []string `yaml:"name"`
	Quantity   []string `yaml:"quantity"`
	UnitPrice  []string `yaml:"unitPrice"`
	TotalPrice []string `yaml:"totalPrice"`
	Note       []string `yaml:"note"`
}

// PlatformRule maps an integration substring to a source and its default payment type.
type PlatformRule struct {
	Match   string             `yaml:"match"`
	Source  models.Source      `yaml:"source"`
	Payment models.PaymentType `yaml:"payment"`
}

// StatusRule maps any of several substrings to a status.
type StatusRule struct {
	Contains []string      `yaml:"contains"`
	Status   models.Status `yaml:"status"`
}

// FieldTable is the declarative description of the payload shapes we accept.
type FieldTable struct {
	Order     OrderFields    `yaml:"order"`
	Item      ItemFields     `yaml:"item"`
	Platforms []PlatformRule `yaml:"platforms"`
	Statuses  []StatusRule   `yaml:"statuses"`
}

// LoadFieldTable parses a field table document.
func LoadFieldTable(data []byte) (FieldTable, error) {
	var table FieldTable
	if err := yaml.Unmarshal(data, &table); err != nil {
		return FieldTable{}, errors.Wrap(err, "parse field table")
	}
	if len(table.Order.ID) == 0 {
		return FieldTable{}, errors.New("field table has no id candidates")
	}
	return table, nil
}

// DefaultFieldTable returns the embedded table.
func DefaultFieldTable() FieldTable {
	table, err := LoadFieldTable(defaultFieldsYAML)
	if err != nil {
		panic(err)
	}
	return table
}
