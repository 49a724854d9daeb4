package property

// Draft is the payload of a save-as request: either NoDraft or FullDraft.
type Draft interface {
	isDraft()
}

// NoDraft branches the source instance as it is stored.
type NoDraft struct{}

// FullDraft branches with caller-supplied content, validated like a whole-aggregate save.
type FullDraft struct {
	PropertyDetails    PropertyDetails    `json:"propertyDetails"`
	UnderwritingInputs UnderwritingInputs `json:"underwritingInputs"`
	Brokers            []Broker           `json:"brokers"`
	Tenants            []Tenant           `json:"tenants"`
}

func (NoDraft) isDraft()   {}
func (FullDraft) isDraft() {}

// Snapshot returns the draft content as a snapshot.
func (d FullDraft) Snapshot() Snapshot {
	return Snapshot{
		PropertyDetails:    d.PropertyDetails,
		UnderwritingInputs: d.UnderwritingInputs,
		Brokers:            d.Brokers,
		Tenants:            d.Tenants,
	}
}

// DraftFields is the loosely shaped save-as payload as decoded from a caller.
// A nil field means the caller did not supply it.
type DraftFields struct {
	PropertyDetails    *PropertyDetails    `json:"propertyDetails,omitempty" yaml:"propertyDetails,omitempty"`
	UnderwritingInputs *UnderwritingInputs `json:"underwritingInputs,omitempty" yaml:"underwritingInputs,omitempty"`
	Brokers            []Broker            `json:"brokers,omitempty" yaml:"brokers,omitempty"`
	Tenants            []Tenant            `json:"tenants,omitempty" yaml:"tenants,omitempty"`
}

// Resolve turns the fields into a Draft. Supplying some but not all fields is a
// VALIDATION error.
func (f DraftFields) Resolve() (Draft, error) {
	present := 0
	if f.PropertyDetails != nil {
		present++
	}
	if f.UnderwritingInputs != nil {
		present++
	}
	if f.Brokers != nil {
		present++
	}
	if f.Tenants != nil {
		present++
	}

	switch present {
	case 0:
		return NoDraft{}, nil
	case 4:
		return FullDraft{
			PropertyDetails:    *f.PropertyDetails,
			UnderwritingInputs: *f.UnderwritingInputs,
			Brokers:            f.Brokers,
			Tenants:            f.Tenants,
		}, nil
	default:
		return nil, NewValidation(MsgIncompleteDraft)
	}
}
