package rule

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	ierr "github.com/innkeep/loyalty/internal/errors"
	"github.com/innkeep/loyalty/internal/types"
	"github.com/shopspring/decimal"
)

// Action is the effect a rule has once its conditions match.
// The set of variants is closed: AwardPoints, MultiplyPoints, TierUpgrade, SendNotification.
type Action interface {
	Type() types.RuleActionType
	Validate() error
	isAction()
}

// AwardPoints credits a fixed number of points
type AwardPoints struct {
	Points int64
}

// MultiplyPoints credits the increment over the event's base points,
// basePoints * (Multiplier - 1). The base award itself is made by the caller.
type MultiplyPoints struct {
	Multiplier decimal.Decimal
}

// TierUpgrade raises the member to TargetTier if that is higher than the current tier
type TierUpgrade struct {
	TargetTier types.Tier
}

// SendNotification hands Message to the notification collaborator
type SendNotification struct {
	Message string
}

func (AwardPoints) Type() types.RuleActionType      { return types.RuleActionTypeAwardPoints }
func (MultiplyPoints) Type() types.RuleActionType   { return types.RuleActionTypeMultiplyPoints }
func (TierUpgrade) Type() types.RuleActionType      { return types.RuleActionTypeTierUpgrade }
func (SendNotification) Type() types.RuleActionType { return types.RuleActionTypeSendNotification }

func (AwardPoints) isAction()      {}
func (MultiplyPoints) isAction()   {}
func (TierUpgrade) isAction()      {}
func (SendNotification) isAction() {}

func (a AwardPoints) Validate() error {
	if a.Points <= 0 {
		return ierr.NewError("award_points requires a positive points value").
			WithHint("Points to award must be greater than 0").
			WithReportableDetails(map[string]any{"points": a.Points}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

func (a MultiplyPoints) Validate() error {
	if a.Multiplier.LessThanOrEqual(decimal.NewFromInt(1)) {
		return ierr.NewError("multiply_points requires a multiplier greater than 1").
			WithHint("Multiplier must be greater than 1").
			WithReportableDetails(map[string]any{"multiplier": a.Multiplier.String()}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

func (a TierUpgrade) Validate() error {
	return a.TargetTier.Validate()
}

func (a SendNotification) Validate() error {
	if a.Message == "" {
		return ierr.NewError("send_notification requires a message").
			WithHint("Notification message is required").
			Mark(ierr.ErrValidation)
	}
	return nil
}

// BonusFor returns the increment granted on top of basePoints, rounded down
func (a MultiplyPoints) BonusFor(basePoints int64) int64 {
	return decimal.NewFromInt(basePoints).
		Mul(a.Multiplier.Sub(decimal.NewFromInt(1))).
		Floor().
		IntPart()
}

// actionEnvelope is the wire and storage form of an Action
type actionEnvelope struct {
	Type       types.RuleActionType `json:"type"`
	Points     *int64               `json:"points,omitempty"`
	Multiplier *decimal.Decimal     `json:"multiplier,omitempty"`
	TargetTier *types.Tier          `json:"target_tier,omitempty"`
	Message    *string              `json:"message,omitempty"`
}

// RuleAction carries a single Action through JSON and the database.
// A zero RuleAction holds no action.
type RuleAction struct {
	Action
}

func NewRuleAction(a Action) RuleAction {
	return RuleAction{Action: a}
}

func (ra RuleAction) MarshalJSON() ([]byte, error) {
	if ra.Action == nil {
		return []byte("null"), nil
	}

	env := actionEnvelope{Type: ra.Action.Type()}
	switch a := ra.Action.(type) {
	case AwardPoints:
		env.Points = &a.Points
	case MultiplyPoints:
		env.Multiplier = &a.Multiplier
	case TierUpgrade:
		env.TargetTier = &a.TargetTier
	case SendNotification:
		env.Message = &a.Message
	default:
		return nil, fmt.Errorf("unsupported action %T", ra.Action)
	}
	return json.Marshal(env)
}

func (ra *RuleAction) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		ra.Action = nil
		return nil
	}

	var env actionEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return ierr.WithError(err).
			WithHint("Rule action is not valid JSON").
			Mark(ierr.ErrValidation)
	}

	action, err := env.decode()
	if err != nil {
		return err
	}
	ra.Action = action
	return nil
}

func (env actionEnvelope) decode() (Action, error) {
	missing := func(field string) error {
		return ierr.NewErrorf("%s action requires %s", env.Type, field).
			WithHintf("Action %s requires %s", env.Type, field).
			Mark(ierr.ErrValidation)
	}

	switch env.Type {
	case types.RuleActionTypeAwardPoints:
		if env.Points == nil {
			return nil, missing("points")
		}
		return AwardPoints{Points: *env.Points}, nil
	case types.RuleActionTypeMultiplyPoints:
		if env.Multiplier == nil {
			return nil, missing("multiplier")
		}
		return MultiplyPoints{Multiplier: *env.Multiplier}, nil
	case types.RuleActionTypeTierUpgrade:
		if env.TargetTier == nil {
			return nil, missing("target_tier")
		}
		return TierUpgrade{TargetTier: *env.TargetTier}, nil
	case types.RuleActionTypeSendNotification:
		if env.Message == nil {
			return nil, missing("message")
		}
		return SendNotification{Message: *env.Message}, nil
	default:
		return nil, env.Type.Validate()
	}
}

// Scan implements the sql.Scanner interface for RuleAction
func (ra *RuleAction) Scan(value interface{}) error {
	if value == nil {
		ra.Action = nil
		return nil
	}

	bytes, err := types.JSONBytes(value)
	if err != nil {
		return err
	}
	return ra.UnmarshalJSON(bytes)
}

// Value implements the driver.Valuer interface for RuleAction
func (ra RuleAction) Value() (driver.Value, error) {
	bytes, err := ra.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return string(bytes), nil
}
