package derive

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/caras/internal/model"
	"github.com/roach88/caras/internal/testutil"
)

func TestLockState_NoReservationsIsUnlocked(t *testing.T) {
	for _, req := range []model.FaceRequirement{
		testutil.Requirement("r", 0, 0, 0),
		testutil.Requirement("r", 3, 2, 1),
	} {
		assert.Equal(t, model.Unlocked, LockState(req, nil))
		assert.Equal(t, model.Unlocked, LockState(req, []model.Reservation{}))
	}
}

func TestLockState_Transitions(t *testing.T) {
	req := testutil.Requirement("req-1", 3, 2, 0)
	flow1 := testutil.Reservation("r1", "req-1", model.Flow)
	flow2 := testutil.Reservation("r2", "req-1", model.Flow)
	cf1 := testutil.Reservation("r3", "req-1", model.CounterFlow)

	// Nothing coded
	res := []model.Reservation{flow1, flow2, cf1}
	assert.Equal(t, model.Unlocked, LockState(req, res))

	// All existing reservations coded but quota not reached
	res = []model.Reservation{
		testutil.Coded(flow1, "APS-100"),
		testutil.Coded(flow2, "APS-100"),
		testutil.Coded(cf1, "APS-100"),
	}
	assert.Equal(t, model.PartiallyAuthorized, LockState(req, res))

	// Missing two added uncoded
	flow3 := testutil.Reservation("r4", "req-1", model.Flow)
	cf2 := testutil.Reservation("r5", "req-1", model.CounterFlow)
	res = append(res, flow3, cf2)
	assert.Equal(t, model.PartiallyAuthorized, LockState(req, res))

	// Coding the rest flips to fully authorized
	res[3] = testutil.Coded(flow3, "APS-101")
	res[4] = testutil.Coded(cf2, "APS-101")
	assert.Equal(t, model.FullyAuthorized, LockState(req, res))

	// Any new uncoded work reopens it
	bonus := testutil.Reservation("r6", "req-1", model.Bonus)
	assert.Equal(t, model.PartiallyAuthorized, LockState(req, append(res, bonus)))
}

// Enumerates every combination of up to five reservations with every coding
// pattern and checks the state definition exhaustively.
func TestLockState_Exhaustive(t *testing.T) {
	for total := 0; total <= 4; total++ {
		req := testutil.Requirement("req", total, 0, 0)
		for n := 0; n <= 5; n++ {
			for mask := 0; mask < 1<<n; mask++ {
				res := make([]model.Reservation, n)
				coded := 0
				for i := range res {
					res[i] = testutil.Reservation(fmt.Sprintf("r%d", i), "req", model.Flow)
					if mask&(1<<i) != 0 {
						res[i] = testutil.Coded(res[i], "APS-1")
						coded++
					}
				}

				got := LockState(req, res)
				allCoded := n > 0 && coded == n
				switch {
				case coded == 0:
					assert.Equal(t, model.Unlocked, got)
				case allCoded && coded >= total:
					assert.Equal(t, model.FullyAuthorized, got)
				default:
					assert.Equal(t, model.PartiallyAuthorized, got)
				}
				if got == model.FullyAuthorized {
					assert.True(t, allCoded, "fully authorized requires every reservation coded")
				}

				// Appending uncoded work never leaves it fully authorized
				extra := append(append([]model.Reservation{}, res...), testutil.Reservation("new", "req", model.Flow))
				assert.NotEqual(t, model.FullyAuthorized, LockState(req, extra))
			}
		}
	}
}

func TestEvaluate_Guards(t *testing.T) {
	req := testutil.Requirement("req-1", 1, 1, 0)
	a := testutil.Reservation("r1", "req-1", model.Flow)
	b := testutil.Reservation("r2", "req-1", model.CounterFlow)

	g := Evaluate(req, []model.Reservation{a, b})
	assert.Equal(t, model.Unlocked, g.State)
	assert.True(t, g.EditRequirement)
	assert.True(t, g.DeleteRequirement)
	assert.True(t, g.AttachReservation)
	assert.Empty(t, g.LockedReservationIDs)
	assert.Empty(t, g.Warning)

	g = Evaluate(req, []model.Reservation{testutil.Coded(a, "APS-1"), b})
	assert.Equal(t, model.PartiallyAuthorized, g.State)
	assert.True(t, g.EditRequirement)
	assert.False(t, g.DeleteRequirement)
	assert.True(t, g.AttachReservation)
	assert.Equal(t, []string{"r1"}, g.LockedReservationIDs)
	assert.Contains(t, g.Warning, "1 of 2")
	assert.Contains(t, g.Warning, "r1")

	g = Evaluate(req, []model.Reservation{testutil.Coded(a, "APS-1"), testutil.Coded(b, "APS-1")})
	assert.Equal(t, model.FullyAuthorized, g.State)
	assert.False(t, g.EditRequirement)
	assert.False(t, g.DeleteRequirement)
	assert.False(t, g.AttachReservation)
	assert.Equal(t, []string{"r1", "r2"}, g.LockedReservationIDs)
}

func TestCodedByType(t *testing.T) {
	res := []model.Reservation{
		testutil.Coded(testutil.Reservation("r1", "q", model.Flow), "A"),
		testutil.Coded(testutil.Reservation("r2", "q", model.Flow), "B"),
		testutil.Reservation("r3", "q", model.Flow),
		testutil.Coded(testutil.Reservation("r4", "q", model.Bonus), "A"),
	}

	counts := CodedByType(res)
	assert.Equal(t, 2, counts[model.Flow])
	assert.Equal(t, 0, counts[model.CounterFlow])
	assert.Equal(t, 1, counts[model.Bonus])
}

func TestAuthorizationGroups(t *testing.T) {
	res := []model.Reservation{
		testutil.Coded(testutil.Reservation("r1", "q", model.Flow), "APS-200"),
		testutil.Reservation("r2", "q", model.Flow),
		testutil.Coded(testutil.Reservation("r3", "q", model.CounterFlow), "APS-100"),
		testutil.Coded(testutil.Reservation("r4", "q", model.Flow), "APS-200"),
	}

	groups := AuthorizationGroups(res)
	require.Len(t, groups, 2)
	assert.Equal(t, "APS-100", groups[0].Code)
	assert.Equal(t, []string{"r3"}, groups[0].ReservationIDs)
	assert.Equal(t, "APS-200", groups[1].Code)
	assert.Equal(t, []string{"r1", "r4"}, groups[1].ReservationIDs)

	assert.Empty(t, AuthorizationGroups(nil))
}
