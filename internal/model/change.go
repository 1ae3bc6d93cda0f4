package model

// ChangeKind names the mutation recorded in the change log.
type ChangeKind string

const (
	ChangeRequirementCreated  ChangeKind = "requirement_created"
	ChangeRequirementUpdated  ChangeKind = "requirement_updated"
	ChangeRequirementDeleted  ChangeKind = "requirement_deleted"
	ChangeReservationCreated  ChangeKind = "reservation_created"
	ChangeReservationsDeleted ChangeKind = "reservations_deleted"
	ChangeCodeAssigned        ChangeKind = "code_assigned"
	ChangeCodeRevoked         ChangeKind = "code_revoked"
)

// Change records that a requirement's derived state may have moved.
// Seq is assigned by the store on append and is strictly increasing.
type Change struct {
	Seq            int64      `json:"seq"`
	CampaignID     string     `json:"campaign_id"`
	RequirementID  string     `json:"requirement_id"`
	Kind           ChangeKind `json:"kind"`
	ReservationIDs []string   `json:"reservation_ids,omitempty"`
	Code           string     `json:"code,omitempty"`
}
