package payments

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/entitlement-engine/internal/domain/user"
	domainerrs "github.com/yungbote/entitlement-engine/internal/pkg/errors"
)

func TestResolveTarget(t *testing.T) {
	uid := uuid.New()
	pid := uuid.New()

	t.Run("formation", func(t *testing.T) {
		got, target, err := ResolveTarget(map[string]string{
			"target_type": "formation", "user_id": uid.String(), "pack_type": "Expert",
		})
		require.NoError(t, err)
		assert.Equal(t, uid, got)
		assert.Equal(t, FormationTarget{Pack: user.PackExpert}, target)
	})

	t.Run("mission inferred from project id", func(t *testing.T) {
		_, target, err := ResolveTarget(map[string]string{
			"user_id": uid.String(), "project_id": pid.String(),
		})
		require.NoError(t, err)
		assert.Equal(t, MissionTarget{ProjectID: pid}, target)
	})

	cases := map[string]map[string]string{
		"no user":            {"target_type": "formation", "pack_type": "master"},
		"unknown pack":       {"target_type": "formation", "user_id": uid.String(), "pack_type": "gold"},
		"mission no project": {"target_type": "mission", "user_id": uid.String()},
		"unknown type":       {"target_type": "donation", "user_id": uid.String()},
		"no shape":           {"user_id": uid.String()},
	}
	for name, md := range cases {
		t.Run(name, func(t *testing.T) {
			_, _, err := ResolveTarget(md)
			assert.ErrorIs(t, err, domainerrs.ErrUnknownTargetSchema)
		})
	}
}

func TestTargetMetadataRoundTrip(t *testing.T) {
	uid := uuid.New()
	target := MissionTarget{ProjectID: uuid.New()}
	got, back, err := ResolveTarget(TargetMetadata(uid, target))
	require.NoError(t, err)
	assert.Equal(t, uid, got)
	assert.Equal(t, target, back)
}

func TestEventValidate(t *testing.T) {
	ev := Event{Provider: "stripe", ProviderRef: "cs_1", UserID: uuid.New(), Target: FormationTarget{Pack: user.PackMaster}}
	require.NoError(t, ev.Validate())

	ev.Target = nil
	assert.ErrorIs(t, ev.Validate(), domainerrs.ErrUnknownTargetSchema)

	ev.Target = FormationTarget{Pack: user.PackNone}
	assert.ErrorIs(t, ev.Validate(), domainerrs.ErrUnknownTargetSchema)

	ev.ProviderRef = ""
	assert.ErrorIs(t, ev.Validate(), domainerrs.ErrMalformedPayload)
}

func TestMinorUnits(t *testing.T) {
	assert.Equal(t, int64(25000), ToMinorUnits(25000, "XOF"))
	assert.Equal(t, int64(1999), ToMinorUnits(19.99, "usd"))
	assert.Equal(t, 19.99, FromMinorUnits(1999, "EUR"))
	assert.Equal(t, float64(25000), FromMinorUnits(25000, "xof"))
	assert.Equal(t, "25000 XOF", FormatAmount(25000, "xof"))
	assert.Equal(t, "49.00 EUR", FormatAmount(4900, "EUR"))
}
