package domain

// UnitStatus tracks whether a donation unit can still be consumed.
type UnitStatus string

const (
	UnitAvailable UnitStatus = "Available"
	UnitUsed      UnitStatus = "Used"
)

// DonationUnit is one consumable unit of donated blood. Its hospital and
// blood type come from the donor appointment it was collected at.
type DonationUnit struct {
	ID           int64      `db:"donation_id" json:"id"`
	HospitalID   int64      `db:"hospital_id" json:"hospital_id"`
	BloodTypeID  int64      `db:"blood_type_id" json:"blood_type_id"`
	DonationDate string     `db:"donation_date" json:"donation_date"`
	Status       UnitStatus `db:"status" json:"status"`
}

type FulfillmentRecord struct {
	ID              int64  `db:"id" json:"id"`
	BloodRequestID  int64  `db:"blood_request_id" json:"blood_request_id"`
	DonationUnitID  int64  `db:"donation_id" json:"donation_id"`
	QuantityUsed    int64  `db:"quantity_used" json:"quantity_used"`
	FulfillmentDate string `db:"fulfillment_date" json:"fulfillment_date"`
	// FulfilledBy is the admin who completed the request, when known.
	FulfilledBy *int64 `db:"fulfilled_by" json:"fulfilled_by,omitempty"`
}
