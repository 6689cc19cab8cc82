package payments

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/yungbote/entitlement-engine/internal/domain/billing"
	"github.com/yungbote/entitlement-engine/internal/domain/user"
	domainerrs "github.com/yungbote/entitlement-engine/internal/pkg/errors"
)

// Target is what a payment pays for. The only implementations are
// MissionTarget and FormationTarget.
type Target interface {
	Type() billing.TargetType
	Ref() string
	isTarget()
}

type MissionTarget struct {
	ProjectID uuid.UUID
}

func (MissionTarget) Type() billing.TargetType { return billing.TargetMission }
func (t MissionTarget) Ref() string            { return t.ProjectID.String() }
func (MissionTarget) isTarget()                {}

type FormationTarget struct {
	Pack user.Pack
}

func (FormationTarget) Type() billing.TargetType { return billing.TargetFormation }
func (t FormationTarget) Ref() string            { return string(t.Pack) }
func (FormationTarget) isTarget()                {}

// Event is the provider-independent view of a confirmed payment.
type Event struct {
	Provider    string
	ProviderRef string
	UserID      uuid.UUID
	Amount      int64
	Currency    string
	Target      Target
	ReceiptRef  string
	Metadata    map[string]any
}

// Validate checks the event carries a user and a well-formed target.
func (e Event) Validate() error {
	if strings.TrimSpace(e.Provider) == "" || strings.TrimSpace(e.ProviderRef) == "" {
		return fmt.Errorf("%w: provider and provider ref required", domainerrs.ErrMalformedPayload)
	}
	if e.UserID == uuid.Nil {
		return fmt.Errorf("%w: missing user id", domainerrs.ErrUnknownTargetSchema)
	}
	switch t := e.Target.(type) {
	case MissionTarget:
		if t.ProjectID == uuid.Nil {
			return fmt.Errorf("%w: mission without project id", domainerrs.ErrUnknownTargetSchema)
		}
	case FormationTarget:
		if !t.Pack.Valid() {
			return fmt.Errorf("%w: unknown pack %q", domainerrs.ErrUnknownTargetSchema, t.Pack)
		}
	default:
		return fmt.Errorf("%w: no target", domainerrs.ErrUnknownTargetSchema)
	}
	return nil
}

// Metadata keys carried through checkout sessions and back on the webhook.
const (
	MetaTargetType = "target_type"
	MetaUserID     = "user_id"
	MetaPackType   = "pack_type"
	MetaProjectID  = "project_id"
)

// TargetMetadata is the inverse of ResolveTarget.
func TargetMetadata(userID uuid.UUID, target Target) map[string]string {
	out := map[string]string{
		MetaTargetType: string(target.Type()),
		MetaUserID:     userID.String(),
	}
	switch t := target.(type) {
	case MissionTarget:
		out[MetaProjectID] = t.ProjectID.String()
	case FormationTarget:
		out[MetaPackType] = string(t.Pack)
	}
	return out
}

// ResolveTarget maps checkout metadata onto a user id and a Target. When
// target_type is absent the shape is inferred from which keys are present.
func ResolveTarget(md map[string]string) (uuid.UUID, Target, error) {
	get := func(k string) string { return strings.TrimSpace(md[k]) }

	userID, err := uuid.Parse(get(MetaUserID))
	if err != nil || userID == uuid.Nil {
		return uuid.Nil, nil, fmt.Errorf("%w: missing or invalid user_id", domainerrs.ErrUnknownTargetSchema)
	}

	kind := billing.TargetType(strings.ToLower(get(MetaTargetType)))
	if kind == "" {
		switch {
		case get(MetaProjectID) != "":
			kind = billing.TargetMission
		case get(MetaPackType) != "":
			kind = billing.TargetFormation
		}
	}

	switch kind {
	case billing.TargetMission:
		pid, err := uuid.Parse(get(MetaProjectID))
		if err != nil || pid == uuid.Nil {
			return uuid.Nil, nil, fmt.Errorf("%w: mission without project_id", domainerrs.ErrUnknownTargetSchema)
		}
		return userID, MissionTarget{ProjectID: pid}, nil
	case billing.TargetFormation:
		pack := user.Pack(strings.ToLower(get(MetaPackType)))
		if !pack.Valid() {
			return uuid.Nil, nil, fmt.Errorf("%w: formation with pack %q", domainerrs.ErrUnknownTargetSchema, pack)
		}
		return userID, FormationTarget{Pack: pack}, nil
	default:
		return uuid.Nil, nil, fmt.Errorf("%w: target_type %q", domainerrs.ErrUnknownTargetSchema, kind)
	}
}

// zeroDecimalCurrencies have no minor unit.
var zeroDecimalCurrencies = map[string]bool{
	"XOF": true, "XAF": true, "GNF": true, "JPY": true, "KRW": true, "RWF": true, "UGX": true,
}

// ToMinorUnits converts a major-unit amount as reported by providers that use
// decimals into the ledger's integer representation.
func ToMinorUnits(amount float64, currency string) int64 {
	if zeroDecimalCurrencies[strings.ToUpper(strings.TrimSpace(currency))] {
		return int64(amount + 0.5)
	}
	return int64(amount*100 + 0.5)
}

// FromMinorUnits is the inverse of ToMinorUnits.
func FromMinorUnits(amount int64, currency string) float64 {
	if zeroDecimalCurrencies[strings.ToUpper(strings.TrimSpace(currency))] {
		return float64(amount)
	}
	return float64(amount) / 100
}

// FormatAmount renders a ledger amount for humans, e.g. "15000 XOF" or "49.00 EUR".
func FormatAmount(amount int64, currency string) string {
	cur := strings.ToUpper(strings.TrimSpace(currency))
	if zeroDecimalCurrencies[cur] {
		return fmt.Sprintf("%d %s", amount, cur)
	}
	return fmt.Sprintf("%.2f %s", FromMinorUnits(amount, cur), cur)
}
