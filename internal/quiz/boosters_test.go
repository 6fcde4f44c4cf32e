// internal/quiz/boosters_test.go
package quiz

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/falroman/partyquiz/internal/models"
)

// giveBooster hands the player a specific unused booster, replacing whatever
// was dealt.
func giveBooster(s *GameState, playerID string, bt BoosterType) {
	s.Boosters[playerID] = &BoosterAssignment{Type: bt}
}

func boosterGame(t *testing.T, numPlayers int) (*Engine, *GameState) {
	t.Helper()
	e, s := newTestGame(t, numPlayers)
	enterAnswering(t, e, s)
	return e, s
}

func TestAssignBoostersDealsOneEach(t *testing.T) {
	_, s := newTestGame(t, 4)
	AssignBoosters(s, rand.New(rand.NewSource(9)))
	require.Len(t, s.Boosters, 4)
	for id, assignment := range s.Boosters {
		require.NotNil(t, assignment, "player %s has no booster", id)
		assert.False(t, assignment.Used)
		assert.Contains(t, dealableBoosters, assignment.Type)
	}
}

func TestFiftyFiftyHidesTwoWrongOptionsForHolderOnly(t *testing.T) {
	e, s := boosterGame(t, 2)
	giveBooster(s, "p1", BoosterFiftyFifty)

	require.Nil(t, e.UseBooster(s, "p1", "", t0, testDurs))
	assert.True(t, s.Boosters["p1"].Used)

	removed := s.RemovedOptions("p1")
	require.Len(t, removed, 2)
	for _, key := range removed {
		assert.NotEqual(t, s.Question.CorrectOptionKey, key, "correct option must survive")
	}
	assert.Empty(t, s.RemovedOptions("p2"))
	assert.True(t, s.HasPrivateEffects())
}

func TestNopeBlocksTargetForTheQuestion(t *testing.T) {
	e, s := boosterGame(t, 3)
	giveBooster(s, "p1", BoosterNope)

	require.Nil(t, e.UseBooster(s, "p1", "p2", t0, testDurs))
	assert.True(t, s.IsNoped("p2"))
	assert.False(t, s.IsNoped("p1"))

	gameErr := e.SubmitAnswer(s, "p2", "B", t0.Add(time.Second))
	require.NotNil(t, gameErr)
	assert.Equal(t, models.ErrPlayerNoped, gameErr.Code)

	// The noped player drops out of the eligibility set entirely.
	eligible := EligiblePlayerIDs(s, []string{"p1", "p2", "p3"})
	assert.Equal(t, []string{"p1", "p3"}, eligible)

	// Effects clear with the next question.
	e.Reveal(s, t0, testDurs)
	require.NoError(t, e.StartQuestion(s, t0, testDurs))
	assert.False(t, s.IsNoped("p2"))
}

func TestNopeRequiresValidTarget(t *testing.T) {
	e, s := boosterGame(t, 2)
	giveBooster(s, "p1", BoosterNope)

	for _, target := range []string{"", "p1", "p99"} {
		gameErr := e.UseBooster(s, "p1", target, t0, testDurs)
		require.NotNil(t, gameErr, "target %q", target)
		assert.Equal(t, models.ErrInvalidState, gameErr.Code)
	}
	assert.False(t, s.Boosters["p1"].Used, "failed activation must not consume the booster")
}

func TestShieldBlocksFirstTargetedBoosterConsumingBoth(t *testing.T) {
	e, s := boosterGame(t, 2)
	giveBooster(s, "p1", BoosterNope)
	giveBooster(s, "p2", BoosterShield)

	gameErr := e.UseBooster(s, "p1", "p2", t0, testDurs)
	require.NotNil(t, gameErr)
	assert.Equal(t, models.ErrBoosterBlocked, gameErr.Code)

	assert.True(t, s.Boosters["p1"].Used, "attacker's booster is consumed")
	assert.True(t, s.Boosters["p2"].Used, "shield is consumed")
	assert.False(t, s.IsNoped("p2"))
}

func TestMirrorReflectsNopeBackAtSender(t *testing.T) {
	e, s := boosterGame(t, 2)
	giveBooster(s, "p1", BoosterNope)
	giveBooster(s, "p2", BoosterMirror)

	require.Nil(t, e.UseBooster(s, "p1", "p2", t0, testDurs))

	assert.True(t, s.IsNoped("p1"), "effect lands on the sender")
	assert.False(t, s.IsNoped("p2"))
	assert.True(t, s.Boosters["p1"].Used)
	assert.True(t, s.Boosters["p2"].Used)
}

func TestPassiveBoostersCannotBeActivated(t *testing.T) {
	e, s := boosterGame(t, 2)
	for _, bt := range []BoosterType{BoosterShield, BoosterMirror} {
		giveBooster(s, "p1", bt)
		gameErr := e.UseBooster(s, "p1", "", t0, testDurs)
		require.NotNil(t, gameErr)
		assert.Equal(t, models.ErrInvalidState, gameErr.Code)
		assert.False(t, s.Boosters["p1"].Used)
	}
}

func TestWildcardAllowsChangingSubmittedAnswer(t *testing.T) {
	e, s := boosterGame(t, 2)
	giveBooster(s, "p1", BoosterWildcard)

	require.Nil(t, e.SubmitAnswer(s, "p1", "A", t0.Add(time.Second)))
	// Without the wildcard the repeat is ignored.
	require.Nil(t, e.SubmitAnswer(s, "p1", "C", t0.Add(2*time.Second)))
	assert.Equal(t, "A", s.Answers["p1"].Option)

	require.Nil(t, e.UseBooster(s, "p1", "", t0.Add(3*time.Second), testDurs))
	require.Nil(t, e.SubmitAnswer(s, "p1", "B", t0.Add(4*time.Second)))
	assert.Equal(t, "B", s.Answers["p1"].Option)
	// The original submission instant keeps feeding speed scoring.
	assert.Equal(t, t0.Add(time.Second), s.Answers["p1"].SubmittedAt)
}

func TestLateLockExtendsOnlyTheHoldersDeadline(t *testing.T) {
	e, s := boosterGame(t, 2)
	giveBooster(s, "p1", BoosterLateLock)
	phaseEnd := s.PhaseEndsAt

	require.Nil(t, e.UseBooster(s, "p1", "", t0, testDurs))

	extended := phaseEnd.Add(testDurs.LateLockExtension)
	assert.Equal(t, extended, s.DeadlineFor("p1"))
	assert.Equal(t, phaseEnd, s.DeadlineFor("p2"))
	assert.Equal(t, extended, s.MaxDeadline())
	assert.True(t, s.HasPrivateEffects())

	// The holder may answer inside the extension; others may not.
	require.Nil(t, e.SubmitAnswer(s, "p1", "B", phaseEnd.Add(time.Second)))
	gameErr := e.SubmitAnswer(s, "p2", "B", phaseEnd.Add(time.Second))
	require.NotNil(t, gameErr)
	assert.Equal(t, models.ErrInvalidState, gameErr.Code)
}

func TestBoosterPhaseValidation(t *testing.T) {
	e, s := newTestGame(t, 2)
	giveBooster(s, "p1", BoosterFiftyFifty)

	// No round running yet.
	gameErr := e.UseBooster(s, "p1", "", t0, testDurs)
	require.NotNil(t, gameErr)
	assert.Equal(t, models.ErrInvalidState, gameErr.Code)

	enterAnswering(t, e, s)
	e.Reveal(s, t0, testDurs)

	// Reveal is too late for a 50/50.
	gameErr = e.UseBooster(s, "p1", "", t0, testDurs)
	require.NotNil(t, gameErr)
	assert.Equal(t, models.ErrInvalidState, gameErr.Code)
	assert.False(t, s.Boosters["p1"].Used)
}

func TestBoosterIsSingleUse(t *testing.T) {
	e, s := boosterGame(t, 2)
	giveBooster(s, "p1", BoosterWildcard)

	require.Nil(t, e.UseBooster(s, "p1", "", t0, testDurs))
	gameErr := e.UseBooster(s, "p1", "", t0, testDurs)
	require.NotNil(t, gameErr)
	assert.Equal(t, models.ErrInvalidState, gameErr.Code)
}
