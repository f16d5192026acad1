package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CommissionState represents the lifecycle state of a commission event
type CommissionState string

const (
	CommissionFrozen   CommissionState = "FROZEN"
	CommissionCaptured CommissionState = "CAPTURED"
	CommissionReleased CommissionState = "RELEASED"
)

// CommissionAttribution classifies why a commission is (or is not) charged
type CommissionAttribution string

const (
	AttributionPlayerFee         CommissionAttribution = "player_fee"
	AttributionBotInteractionFee CommissionAttribution = "bot_interaction_fee"
	AttributionExempt            CommissionAttribution = "exempt"
)

// CommissionEvent tracks one party's platform fee on one wager. Funds move
// from available to frozen at creation; a capture realizes them as platform
// revenue, a release returns them to the payer.
type CommissionEvent struct {
	ID          uuid.UUID             `db:"id" json:"id"`
	WagerID     uuid.UUID             `db:"wager_id" json:"wager_id"`
	PayerID     uuid.UUID             `db:"payer_id" json:"payer_id"`
	Amount      decimal.Decimal       `db:"amount" json:"amount"`
	State       CommissionState       `db:"state" json:"state"`
	Attribution CommissionAttribution `db:"attribution" json:"attribution"`
	CreatedAt   time.Time             `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time             `db:"updated_at" json:"updated_at"`
}
