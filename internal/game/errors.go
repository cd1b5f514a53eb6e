package game

import (
	"errors"
	"fmt"
)

// Kind classifies an engine error for the dispatch layer.
type Kind string

const (
	// KindValidation marks a precondition that was not met. State is untouched.
	KindValidation Kind = "validation"
	// KindNotFound marks an unknown player, item, role or catalog entry.
	KindNotFound Kind = "not_found"
	// KindInternal marks an unanticipated failure caught at the operation boundary.
	KindInternal Kind = "internal"
)

// Error is the structured error returned by engine operations.
type Error struct {
	Kind   Kind
	Err    error
	Detail string
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %s", e.Err, e.Detail)
}

func (e *Error) Unwrap() error { return e.Err }

// Sentinel errors. Compare with errors.Is.
var (
	ErrPlayerNotFound   = errors.New("player not found")
	ErrRoleNotFound     = errors.New("role not found in income table")
	ErrUpgradeNotFound  = errors.New("unknown upgrade")
	ErrMissionNotFound  = errors.New("expedition not found")
	ErrItemNotFound     = errors.New("item not found")
	ErrListingNotFound  = errors.New("listing not found")
	ErrInvalidAmount    = errors.New("invalid value")
	ErrInvalidName      = errors.New("invalid name")
	ErrUnknownStat      = errors.New("unknown skill")
	ErrUnknownSetting   = errors.New("unknown setting")
	ErrInvalidSetting   = errors.New("invalid setting value")
	ErrInvalidRarity    = errors.New("invalid rarity")
	ErrInvalidItemType  = errors.New("invalid item type")
	ErrInvalidMission   = errors.New("invalid expedition")
	ErrInternal         = errors.New("internal error")
	ErrNoIncomeSource   = errors.New("no income source")
	ErrTooEarly         = errors.New("work not available yet")
	ErrInsufficientFund = errors.New("not enough money")
	ErrMissingRequired  = errors.New("required upgrade not owned")
	ErrUpgradeCap       = errors.New("cannot purchase more upgrades of this type")
	ErrNoIncomeRole     = errors.New("no role to receive income")
	ErrAmbiguousRole    = errors.New("ambiguous target role")
	ErrSkillpoints      = errors.New("not enough skillpoints")
	ErrSlotOccupied     = errors.New("slot already occupied")
	ErrNotEquipped      = errors.New("item is not equipped")
	ErrItemListed       = errors.New("item is listed for sale")
	ErrSelfTrade        = errors.New("cannot buy from yourself")
	ErrLevelTooLow      = errors.New("level too low")
	ErrManpower         = errors.New("not enough manpower")
	ErrAttackTooLong    = errors.New("attack delay exceeds maximum")
	ErrEncountersHeld   = errors.New("encounters are on hold")
	ErrDuplicateName    = errors.New("name already exists")
)

// Validation wraps err as a KindValidation error.
func Validation(err error, format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Err: err, Detail: fmt.Sprintf(format, args...)}
}

// NotFound wraps err as a KindNotFound error.
func NotFound(err error, format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Err: err, Detail: fmt.Sprintf(format, args...)}
}

// Internal wraps a recovered failure as a KindInternal error.
func Internal(format string, args ...any) *Error {
	return &Error{Kind: KindInternal, Err: ErrInternal, Detail: fmt.Sprintf(format, args...)}
}

// KindOf returns the Kind of err, or KindInternal when err is not an *Error.
func KindOf(err error) Kind {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Kind
	}
	return KindInternal
}
