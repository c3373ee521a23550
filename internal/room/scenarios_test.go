package room_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BenArtzi4/Sound-Clash-sub000/internal/catalog"
	"github.com/BenArtzi4/Sound-Clash-sub000/internal/room"
)

const testCatalogTimeout = time.Second

// S1: two-team happy path.
func TestScenarioTwoTeamHappyPath(t *testing.T) {
	cat := newFakeCatalog(catalog.SongInfo{ID: 7, Title: "X", ArtistOrContent: "Y"})
	r := newTestRoom(t, "ABCDEF", 1, []string{"rock"}, cat, testCatalogTimeout)

	teamA := newFakeSubscriber("a")
	teamB := newFakeSubscriber("b")
	manager := newFakeSubscriber("m")
	mustAttach(t, r, room.RoleTeam, "A", teamA)
	mustAttach(t, r, room.RoleTeam, "B", teamB)
	mustAttach(t, r, room.RoleManager, "", manager)

	require.NoError(t, r.Submit(room.Command{Kind: room.CmdStartGame, Role: room.RoleManager}).Err)
	require.NoError(t, r.Submit(room.Command{Kind: room.CmdStartRound, Role: room.RoleManager}).Err)
	waitForEventType(t, manager, "round_started", time.Second)

	require.NoError(t, r.Submit(room.Command{Kind: room.CmdBuzzPress, Role: room.RoleTeam, TeamName: "A"}).Err)
	require.NoError(t, r.Submit(room.Command{
		Kind: room.CmdEvaluateAnswer, Role: room.RoleManager,
		SongOK: true, ArtistOrContentOK: true,
	}).Err)

	endResult := r.Submit(room.Command{Kind: room.CmdEndGame, Role: room.RoleManager})
	require.NoError(t, endResult.Err)

	snap := r.Submit(room.Command{Kind: room.CmdSnapshot}).Data.(room.Snapshot)
	scoreOf := func(name string) int {
		for _, s := range snap.Teams {
			if s.Name == name {
				return s.Score
			}
		}
		t.Fatalf("team %q not in snapshot", name)
		return 0
	}
	assert.Equal(t, 15, scoreOf("A"))
	assert.Equal(t, 0, scoreOf("B"))
}

// S2: wrong-answer penalty then partial credit across two teams.
func TestScenarioWrongAnswerThenPartialCredit(t *testing.T) {
	cat := newFakeCatalog(catalog.SongInfo{ID: 7, Title: "X", ArtistOrContent: "Y"})
	r := newTestRoom(t, "ABCDEG", 1, []string{"rock"}, cat, testCatalogTimeout)

	teamA := newFakeSubscriber("a")
	teamB := newFakeSubscriber("b")
	manager := newFakeSubscriber("m")
	mustAttach(t, r, room.RoleTeam, "A", teamA)
	mustAttach(t, r, room.RoleTeam, "B", teamB)
	mustAttach(t, r, room.RoleManager, "", manager)

	require.NoError(t, r.Submit(room.Command{Kind: room.CmdStartGame, Role: room.RoleManager}).Err)
	require.NoError(t, r.Submit(room.Command{Kind: room.CmdStartRound, Role: room.RoleManager}).Err)
	waitForEventType(t, manager, "round_started", time.Second)

	require.NoError(t, r.Submit(room.Command{Kind: room.CmdBuzzPress, Role: room.RoleTeam, TeamName: "A"}).Err)
	require.NoError(t, r.Submit(room.Command{Kind: room.CmdEvaluateAnswer, Role: room.RoleManager, Wrong: true}).Err)

	require.NoError(t, r.Submit(room.Command{Kind: room.CmdBuzzPress, Role: room.RoleTeam, TeamName: "B"}).Err)
	require.NoError(t, r.Submit(room.Command{
		Kind: room.CmdEvaluateAnswer, Role: room.RoleManager, SongOK: true,
	}).Err)

	require.NoError(t, r.Submit(room.Command{Kind: room.CmdBuzzPress, Role: room.RoleTeam, TeamName: "A"}).Err)
	require.NoError(t, r.Submit(room.Command{
		Kind: room.CmdEvaluateAnswer, Role: room.RoleManager, ArtistOrContentOK: true,
	}).Err)

	snap := r.Submit(room.Command{Kind: room.CmdSnapshot}).Data.(room.Snapshot)
	scores := map[string]int{}
	for _, s := range snap.Teams {
		scores[s.Name] = s.Score
	}
	assert.Equal(t, 3, scores["A"])
	assert.Equal(t, 10, scores["B"])
}

// S3: simultaneous buzz, arbitrated strictly by enqueue order.
func TestScenarioSimultaneousBuzzArbitratedByArrivalOrder(t *testing.T) {
	cat := newFakeCatalog(catalog.SongInfo{ID: 1, Title: "X"})
	r := newTestRoom(t, "BUZZ01", 1, []string{"rock"}, cat, testCatalogTimeout)

	t1, t2, t3 := newFakeSubscriber("t1"), newFakeSubscriber("t2"), newFakeSubscriber("t3")
	manager := newFakeSubscriber("m")
	mustAttach(t, r, room.RoleTeam, "T1", t1)
	mustAttach(t, r, room.RoleTeam, "T2", t2)
	mustAttach(t, r, room.RoleTeam, "T3", t3)
	mustAttach(t, r, room.RoleManager, "", manager)

	require.NoError(t, r.Submit(room.Command{Kind: room.CmdStartGame, Role: room.RoleManager}).Err)
	require.NoError(t, r.Submit(room.Command{Kind: room.CmdStartRound, Role: room.RoleManager}).Err)
	waitForEventType(t, manager, "round_started", time.Second)

	require.NoError(t, r.Submit(room.Command{Kind: room.CmdBuzzPress, Role: room.RoleTeam, TeamName: "T2"}).Err)
	require.NoError(t, r.Submit(room.Command{Kind: room.CmdBuzzPress, Role: room.RoleTeam, TeamName: "T1"}).Err)
	require.NoError(t, r.Submit(room.Command{Kind: room.CmdBuzzPress, Role: room.RoleTeam, TeamName: "T3"}).Err)

	lockedCount := 0
	for _, e := range manager.Events() {
		if typ, _ := eventType(e); typ == "buzzer_locked" {
			lockedCount++
		}
	}
	assert.Equal(t, 1, lockedCount, "buzzer_locked must be broadcast exactly once")

	// Submit blocks until each BuzzPress is fully applied, so the three
	// calls above reached the consumer strictly in the order issued:
	// T2 first, so T2 is the server-side winner regardless of any
	// client-supplied wall clock.
	snap := r.Submit(room.Command{Kind: room.CmdSnapshot}).Data.(room.Snapshot)
	assert.Equal(t, room.RoundBuzzerLocked, snap.RoundState)
	assert.Equal(t, "T2", snap.LockedBy)
}

// S4: song exhaustion on a second round.
func TestScenarioSongExhaustion(t *testing.T) {
	cat := newFakeCatalog(catalog.SongInfo{ID: 1, Title: "Only Song"})
	r := newTestRoom(t, "EXHST1", 2, []string{"rock"}, cat, testCatalogTimeout)

	teamA := newFakeSubscriber("a")
	manager := newFakeSubscriber("m")
	mustAttach(t, r, room.RoleTeam, "A", teamA)
	mustAttach(t, r, room.RoleManager, "", manager)

	require.NoError(t, r.Submit(room.Command{Kind: room.CmdStartGame, Role: room.RoleManager}).Err)
	require.NoError(t, r.Submit(room.Command{Kind: room.CmdStartRound, Role: room.RoleManager}).Err)
	waitForEventType(t, manager, "round_started", time.Second)
	require.NoError(t, r.Submit(room.Command{Kind: room.CmdSkipRound, Role: room.RoleManager}).Err)

	require.NoError(t, r.Submit(room.Command{Kind: room.CmdStartRound, Role: room.RoleManager}).Err)
	waitForEventType(t, manager, "error", time.Second)

	snap := r.Submit(room.Command{Kind: room.CmdSnapshot}).Data.(room.Snapshot)
	assert.Equal(t, room.StatePlaying, snap.State)
	assert.Equal(t, room.RoundState(""), snap.RoundState)
}

// S5: manager disconnect mid-round, a fresh manager session resumes.
func TestScenarioManagerDisconnectAndResume(t *testing.T) {
	cat := newFakeCatalog(catalog.SongInfo{ID: 1, Title: "X"})
	r := newTestRoom(t, "MGRRST", 1, []string{"rock"}, cat, testCatalogTimeout)

	teamA := newFakeSubscriber("a")
	manager1 := newFakeSubscriber("m1")
	mustAttach(t, r, room.RoleTeam, "A", teamA)
	mustAttach(t, r, room.RoleManager, "", manager1)

	require.NoError(t, r.Submit(room.Command{Kind: room.CmdStartGame, Role: room.RoleManager}).Err)
	require.NoError(t, r.Submit(room.Command{Kind: room.CmdStartRound, Role: room.RoleManager}).Err)

	waitForEventType(t, manager1, "round_started", time.Second)
	require.NoError(t, r.Submit(room.Command{Kind: room.CmdBuzzPress, Role: room.RoleTeam, TeamName: "A"}).Err)

	require.NoError(t, r.Submit(room.Command{Kind: room.CmdDetachSession, Subscriber: manager1}).Err)

	manager2 := newFakeSubscriber("m2")
	mustAttach(t, r, room.RoleManager, "", manager2)

	require.NoError(t, r.Submit(room.Command{
		Kind: room.CmdEvaluateAnswer, Role: room.RoleManager, SongOK: true, ArtistOrContentOK: true,
	}).Err)

	snap := r.Submit(room.Command{Kind: room.CmdSnapshot}).Data.(room.Snapshot)
	assert.Equal(t, 15, snap.Teams[0].Score)
}

// S6: kick is only legal while WAITING.
func TestScenarioKickOnlyWhileWaiting(t *testing.T) {
	cat := newFakeCatalog(catalog.SongInfo{ID: 1, Title: "X"})
	r := newTestRoom(t, "KICK01", 1, []string{"rock"}, cat, testCatalogTimeout)

	teamA := newFakeSubscriber("a")
	teamB := newFakeSubscriber("b")
	teamC := newFakeSubscriber("c")
	manager := newFakeSubscriber("m")
	mustAttach(t, r, room.RoleTeam, "A", teamA)
	mustAttach(t, r, room.RoleTeam, "B", teamB)
	mustAttach(t, r, room.RoleTeam, "C", teamC)
	mustAttach(t, r, room.RoleManager, "", manager)

	require.NoError(t, r.Submit(room.Command{Kind: room.CmdKickTeam, Role: room.RoleManager, TeamName: "B"}).Err)

	snap := r.Submit(room.Command{Kind: room.CmdSnapshot}).Data.(room.Snapshot)
	names := []string{snap.Teams[0].Name, snap.Teams[1].Name}
	assert.ElementsMatch(t, []string{"A", "C"}, names)
	assert.True(t, teamB.closed)
	assert.Equal(t, 4009, teamB.closeCode)

	require.NoError(t, r.Submit(room.Command{Kind: room.CmdStartGame, Role: room.RoleManager}).Err)
	kickErr := r.Submit(room.Command{Kind: room.CmdKickTeam, Role: room.RoleManager, TeamName: "A"}).Err
	require.Error(t, kickErr)

	snap2 := r.Submit(room.Command{Kind: room.CmdSnapshot}).Data.(room.Snapshot)
	assert.Len(t, snap2.Teams, 2)
}
