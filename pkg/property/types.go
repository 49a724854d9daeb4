package property

import (
	"time"
)

// VacantTenantID is the identifier of the system-derived vacant tenant row.
const VacantTenantID = "vacant-row"

// Action names recorded on audit records.
type Action string

const (
	ActionCreateVersion    Action = "CREATE_VERSION"
	ActionUpdateVersion    Action = "UPDATE_VERSION"
	ActionSaveAs           Action = "SAVE_AS"
	ActionTenantCreate     Action = "TENANT_CREATE"
	ActionTenantUpdate     Action = "TENANT_UPDATE"
	ActionTenantDeleteSoft Action = "TENANT_DELETE_SOFT"
	ActionBrokerCreate     Action = "BROKER_CREATE"
	ActionBrokerUpdate     Action = "BROKER_UPDATE"
	ActionBrokerDeleteSoft Action = "BROKER_DELETE_SOFT"
)

// Key identifies one aggregate instance.
type Key struct {
	PropertyID string `json:"propertyId" validate:"required"`
	Version    string `json:"version" validate:"required"`
}

func (k Key) String() string {
	return k.PropertyID + "@" + k.Version
}

// PropertyDetails holds the descriptive part of a property version.
// Address is immutable for the lifetime of a version.
type PropertyDetails struct {
	Address        string  `json:"address" yaml:"address" validate:"required"`
	PropertyName   string  `json:"propertyName,omitempty" yaml:"propertyName,omitempty"`
	PropertyType   string  `json:"propertyType,omitempty" yaml:"propertyType,omitempty"`
	Market         string  `json:"market,omitempty" yaml:"market,omitempty"`
	Submarket      string  `json:"submarket,omitempty" yaml:"submarket,omitempty"`
	BuildingSizeSf float64 `json:"buildingSizeSf" yaml:"buildingSizeSf" validate:"gte=0"`
	YearBuilt      int     `json:"yearBuilt,omitempty" yaml:"yearBuilt,omitempty" validate:"omitempty,gte=1600,lte=3000"`
}

// UnderwritingInputs holds the underwriting assumptions of a property version.
type UnderwritingInputs struct {
	EstStartDate    string   `json:"estStartDate" yaml:"estStartDate" validate:"required,isodate"`
	HoldPeriodYears int      `json:"holdPeriodYears" yaml:"holdPeriodYears" validate:"gte=0"`
	PurchasePrice   *float64 `json:"purchasePrice,omitempty" yaml:"purchasePrice,omitempty" validate:"omitempty,gte=0"`
	GoingInCapRate  *float64 `json:"goingInCapRate,omitempty" yaml:"goingInCapRate,omitempty" validate:"omitempty,gte=0,lte=1"`
	ExitCapRate     *float64 `json:"exitCapRate,omitempty" yaml:"exitCapRate,omitempty" validate:"omitempty,gte=0,lte=1"`
}

// Broker is a listing or leasing contact attached to one aggregate instance.
type Broker struct {
	ID        string     `json:"id" yaml:"id"`
	Name      string     `json:"name" yaml:"name"`
	Phone     string     `json:"phone,omitempty" yaml:"phone,omitempty"`
	Email     string     `json:"email,omitempty" yaml:"email,omitempty"`
	Company   string     `json:"company,omitempty" yaml:"company,omitempty"`
	IsDeleted bool       `json:"isDeleted" yaml:"isDeleted"`
	DeletedAt *time.Time `json:"deletedAt,omitempty" yaml:"deletedAt,omitempty"`
	DeletedBy string     `json:"deletedBy,omitempty" yaml:"deletedBy,omitempty"`
}

// Tenant is one row of the rent roll of an aggregate instance.
type Tenant struct {
	ID                string     `json:"id" yaml:"id"`
	TenantName        string     `json:"tenantName" yaml:"tenantName"`
	CreditType        string     `json:"creditType" yaml:"creditType"`
	SquareFeet        float64    `json:"squareFeet" yaml:"squareFeet"`
	RentPsf           float64    `json:"rentPsf" yaml:"rentPsf"`
	AnnualEscalations float64    `json:"annualEscalations" yaml:"annualEscalations"`
	LeaseStart        string     `json:"leaseStart" yaml:"leaseStart"`
	LeaseEnd          string     `json:"leaseEnd" yaml:"leaseEnd"`
	LeaseType         string     `json:"leaseType" yaml:"leaseType"`
	Renew             string     `json:"renew" yaml:"renew"`
	DowntimeMonths    int        `json:"downtimeMonths" yaml:"downtimeMonths"`
	TiPsf             float64    `json:"tiPsf" yaml:"tiPsf"`
	LcPsf             float64    `json:"lcPsf" yaml:"lcPsf"`
	IsVacant          bool       `json:"isVacant" yaml:"isVacant"`
	IsDeleted         bool       `json:"isDeleted" yaml:"isDeleted"`
	DeletedAt         *time.Time `json:"deletedAt,omitempty" yaml:"deletedAt,omitempty"`
	DeletedBy         string     `json:"deletedBy,omitempty" yaml:"deletedBy,omitempty"`
}

// Active reports whether the tenant occupies space.
func (t Tenant) Active() bool {
	return !t.IsVacant && !t.IsDeleted
}

// BrokerInput carries the caller-editable broker fields.
type BrokerInput struct {
	Name    string `json:"name" yaml:"name" validate:"required"`
	Phone   string `json:"phone,omitempty" yaml:"phone,omitempty"`
	Email   string `json:"email,omitempty" yaml:"email,omitempty" validate:"omitempty,email"`
	Company string `json:"company,omitempty" yaml:"company,omitempty"`
}

// Apply overwrites the editable fields of b.
func (in BrokerInput) Apply(b Broker) Broker {
	b.Name = in.Name
	b.Phone = in.Phone
	b.Email = in.Email
	b.Company = in.Company
	return b
}

// TenantInput carries the caller-editable tenant fields.
type TenantInput struct {
	TenantName        string  `json:"tenantName" yaml:"tenantName" validate:"required"`
	CreditType        string  `json:"creditType" yaml:"creditType"`
	SquareFeet        float64 `json:"squareFeet" yaml:"squareFeet" validate:"gte=0"`
	RentPsf           float64 `json:"rentPsf" yaml:"rentPsf"`
	AnnualEscalations float64 `json:"annualEscalations" yaml:"annualEscalations"`
	LeaseStart        string  `json:"leaseStart" yaml:"leaseStart" validate:"required,isodate"`
	LeaseEnd          string  `json:"leaseEnd" yaml:"leaseEnd" validate:"required,isodate"`
	LeaseType         string  `json:"leaseType" yaml:"leaseType"`
	Renew             string  `json:"renew" yaml:"renew"`
	DowntimeMonths    int     `json:"downtimeMonths" yaml:"downtimeMonths" validate:"gte=0"`
	TiPsf             float64 `json:"tiPsf" yaml:"tiPsf"`
	LcPsf             float64 `json:"lcPsf" yaml:"lcPsf"`
}

// Apply overwrites the editable fields of t.
func (in TenantInput) Apply(t Tenant) Tenant {
	t.TenantName = in.TenantName
	t.CreditType = in.CreditType
	t.SquareFeet = in.SquareFeet
	t.RentPsf = in.RentPsf
	t.AnnualEscalations = in.AnnualEscalations
	t.LeaseStart = in.LeaseStart
	t.LeaseEnd = in.LeaseEnd
	t.LeaseType = in.LeaseType
	t.Renew = in.Renew
	t.DowntimeMonths = in.DowntimeMonths
	t.TiPsf = in.TiPsf
	t.LcPsf = in.LcPsf
	return t
}

// VersionRecord is the core record of an aggregate instance as owned by the version store.
type VersionRecord struct {
	// ID is the generated aggregate-instance identifier that collection rows point at.
	ID                 string             `json:"id"`
	PropertyID         string             `json:"propertyId"`
	Version            string             `json:"version"`
	Revision           int64              `json:"revision"`
	IsLatest           bool               `json:"isLatest"`
	IsHistorical       bool               `json:"isHistorical"`
	PropertyDetails    PropertyDetails    `json:"propertyDetails"`
	UnderwritingInputs UnderwritingInputs `json:"underwritingInputs"`
	UpdatedBy          string             `json:"updatedBy"`
	CreatedAt          time.Time          `json:"createdAt"`
	UpdatedAt          time.Time          `json:"updatedAt"`
}

// Key returns the aggregate key of the record.
func (r *VersionRecord) Key() Key {
	return Key{PropertyID: r.PropertyID, Version: r.Version}
}

// VersionSummary is the listing view of a version.
type VersionSummary struct {
	PropertyID   string    `json:"propertyId"`
	Version      string    `json:"version"`
	Revision     int64     `json:"revision"`
	IsLatest     bool      `json:"isLatest"`
	IsHistorical bool      `json:"isHistorical"`
	UpdatedBy    string    `json:"updatedBy"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Aggregate is the composed view: core record plus both collections.
type Aggregate struct {
	VersionRecord
	Brokers []Broker `json:"brokers"`
	Tenants []Tenant `json:"tenants"`
}

// Snapshot returns the diffable part of the aggregate.
func (a *Aggregate) Snapshot() Snapshot {
	return Snapshot{
		PropertyDetails:    a.PropertyDetails,
		UnderwritingInputs: a.UnderwritingInputs,
		Brokers:            a.Brokers,
		Tenants:            a.Tenants,
	}
}

// Snapshot is the mutable content of an aggregate, the unit compared by the diff engine.
type Snapshot struct {
	PropertyDetails    PropertyDetails    `json:"propertyDetails"`
	UnderwritingInputs UnderwritingInputs `json:"underwritingInputs"`
	Brokers            []Broker           `json:"brokers"`
	Tenants            []Tenant           `json:"tenants"`
}

// FieldChange is one entry of an audit diff.
type FieldChange struct {
	Field    string      `json:"field"`
	OldValue interface{} `json:"oldValue"`
	NewValue interface{} `json:"newValue"`
}

// AuditRecord is an immutable log entry for one successful mutation.
type AuditRecord struct {
	ID                int64         `json:"id"`
	PropertyID        string        `json:"propertyId"`
	Version           string        `json:"version"`
	Revision          int64         `json:"revision"`
	Action            Action        `json:"action"`
	Changes           []FieldChange `json:"changes"`
	ChangedFieldCount int           `json:"changedFieldCount"`
	UpdatedBy         string        `json:"updatedBy"`
	CreatedAt         time.Time     `json:"createdAt"`
	PrevHash          string        `json:"prevHash,omitempty"`
	Hash              string        `json:"hash,omitempty"`
}

// CloneBrokers returns a copy of brokers that shares no pointers with the input.
func CloneBrokers(in []Broker) []Broker {
	out := make([]Broker, len(in))
	for i, b := range in {
		if b.DeletedAt != nil {
			at := *b.DeletedAt
			b.DeletedAt = &at
		}
		out[i] = b
	}
	return out
}

// CloneTenants returns a copy of tenants that shares no pointers with the input.
func CloneTenants(in []Tenant) []Tenant {
	out := make([]Tenant, len(in))
	for i, t := range in {
		if t.DeletedAt != nil {
			at := *t.DeletedAt
			t.DeletedAt = &at
		}
		out[i] = t
	}
	return out
}
