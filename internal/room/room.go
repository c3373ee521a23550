// Package room implements the Room Registry (C1), the per-game Room actor
// (C2), and the Round Engine (C3). The Room replaces the teacher's
// mutex-guarded state (internal/v1/session/room.go) with a single-consumer
// command queue: every mutation runs on one goroutine, so there is no lock
// to forget and no field that can be read mid-update.
package room

import (
	"fmt"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"k8s.io/utils/set"

	"github.com/BenArtzi4/Sound-Clash-sub000/internal/catalog"
	"github.com/BenArtzi4/Sound-Clash-sub000/internal/gameerr"
	"github.com/BenArtzi4/Sound-Clash-sub000/internal/logging"
	"github.com/BenArtzi4/Sound-Clash-sub000/internal/metrics"
)

const commandQueueDepth = 64

const (
	detachReasonClientClose  = "client_close"
	detachReasonBackpressure = "backpressure"
	detachReasonKicked       = "kicked"
)

// Room holds all authoritative state for one game. Every field below is
// touched only by the goroutine running Room.run; Submit is the only
// cross-goroutine entry point.
type Room struct {
	code      GameCode
	createdAt time.Time

	commands    chan Command
	terminateCh chan string
	done        chan struct{}

	state RoomState

	teams     map[string]*Team
	teamOrder []string

	manager  Subscriber
	displays map[string]Subscriber

	maxRounds     int
	genres        []string
	playedSongIDs set.Set[int]

	roundNumber     int
	completedRounds int
	round           *Round
	lastRoundEvents []string // the just-completed round's Events, retained for test observability

	catalog        catalog.Client
	catalogTimeout time.Duration

	idleSince time.Time // zero means "something is attached"

	// onDisposable is notified, off the consumer goroutine, whenever the
	// Room reaches StateFinished with nothing attached (§3 Ownership's
	// second disposal trigger, independent of the idle-TTL sweep). The
	// Registry supplies this so the Room can ask to be removed from its
	// map promptly instead of waiting out idleTTL. May be nil in tests
	// that build a Room directly.
	onDisposable func(GameCode)
}

// NewRoom constructs a Room in WAITING state and starts its consumer
// goroutine. The caller (the Registry) owns registering it; NewRoom never
// touches any registry-level state. onDisposable may be nil.
func NewRoom(code GameCode, maxRounds int, genres []string, cat catalog.Client, catalogTimeout time.Duration, onDisposable func(GameCode)) *Room {
	r := &Room{
		code:           code,
		createdAt:      time.Now(),
		commands:       make(chan Command, commandQueueDepth),
		terminateCh:    make(chan string, 1),
		done:           make(chan struct{}),
		state:          StateWaiting,
		teams:          make(map[string]*Team),
		displays:       make(map[string]Subscriber),
		maxRounds:      maxRounds,
		genres:         genres,
		playedSongIDs:  set.New[int](),
		catalog:        cat,
		catalogTimeout: catalogTimeout,
		idleSince:      time.Now(),
		onDisposable:   onDisposable,
	}
	go r.run()
	return r
}

// Code returns the Room's GameCode.
func (r *Room) Code() GameCode { return r.code }

// Submit is the Room's single entry point. It is safe to call from any
// goroutine; the Room serializes internally by routing the command through
// its consumer.
func (r *Room) Submit(cmd Command) Result {
	reply := make(chan Result, 1)
	cmd.reply = reply

	select {
	case r.commands <- cmd:
		metrics.CommandQueueDepth.WithLabelValues(string(r.code)).Set(float64(len(r.commands)))
	case <-r.done:
		return Result{Err: gameerr.New(gameerr.RoomGone, "room was disposed")}
	}

	select {
	case res := <-reply:
		return res
	case <-r.done:
		return Result{Err: gameerr.New(gameerr.RoomGone, "room was disposed")}
	}
}

// Terminate disposes the Room: every attached session is closed with the
// given reason and the consumer goroutine exits. Safe to call more than
// once; only the first call has any effect.
func (r *Room) Terminate(reason string) {
	select {
	case r.terminateCh <- reason:
	case <-r.done:
	}
}

// Done is closed once the Room's consumer goroutine has exited.
func (r *Room) Done() <-chan struct{} { return r.done }

func (r *Room) run() {
	defer close(r.done)
	for {
		select {
		case cmd := <-r.commands:
			start := time.Now()
			res := r.safeApply(cmd)
			metrics.CommandProcessingDuration.WithLabelValues(string(cmd.Kind)).Observe(time.Since(start).Seconds())
			if cmd.reply != nil {
				cmd.reply <- res
			}
		case reason := <-r.terminateCh:
			r.handleTerminate(reason)
			return
		}
	}
}

// safeApply recovers a panic in a single command's handling so one bad
// command can't take down the Room's consumer goroutine, matching the
// teacher's recover() guard around its onEmpty callback.
func (r *Room) safeApply(cmd Command) (res Result) {
	defer func() {
		if p := recover(); p != nil {
			logging.Error(nil, "room command handler panicked",
				zap.String("game_code", string(r.code)),
				zap.String("command", string(cmd.Kind)),
				zap.Any("panic", p),
			)
			res = Result{Err: gameerr.New(gameerr.ClientProtocol, "internal error processing command")}
		}
	}()
	return r.apply(cmd)
}

func (r *Room) apply(cmd Command) Result {
	switch cmd.Kind {
	case CmdAttachSession:
		return r.handleAttachSession(cmd)
	case CmdDetachSession:
		return r.handleDetachSession(cmd)
	case CmdKickTeam:
		return r.handleKickTeam(cmd)
	case CmdStartGame:
		return r.handleStartGame(cmd)
	case CmdStartRound:
		return r.handleStartRound(cmd)
	case CmdBuzzPress:
		return r.handleBuzzPress(cmd)
	case CmdEvaluateAnswer:
		return r.handleEvaluateAnswer(cmd)
	case CmdRestartSong:
		return r.handleRestartSong(cmd)
	case CmdSkipRound:
		return r.handleSkipRound(cmd)
	case CmdEndGame:
		return r.handleEndGame(cmd)
	case CmdSnapshot:
		return Result{Data: r.snapshot()}
	case cmdSongSelected:
		return r.handleSongSelected(cmd)
	case cmdSongSelectionFailed:
		return r.handleSongSelectionFailed(cmd)
	default:
		return Result{Err: gameerr.New(gameerr.ClientProtocol, fmt.Sprintf("unrecognized command %q", cmd.Kind))}
	}
}

func (r *Room) handleTerminate(reason string) {
	for _, rec := range r.recipients() {
		rec.subscriber.Close(4010, reason)
	}
	metrics.RoomsDisposedTotal.WithLabelValues(reason).Inc()
	logging.Info(nil, "room disposed", zap.String("game_code", string(r.code)), zap.String("reason", reason))
}

// --- Session attach/detach -------------------------------------------------

func (r *Room) handleAttachSession(cmd Command) Result {
	switch cmd.Role {
	case RoleManager:
		if r.manager != nil {
			return Result{Err: gameerr.New(gameerr.NameConflict, "manager slot already occupied")}
		}
		r.manager = cmd.Subscriber
		r.markAttached()
		return Result{}

	case RoleDisplay:
		r.displays[cmd.Subscriber.SubscriberID()] = cmd.Subscriber
		r.markAttached()
		return Result{}

	case RoleTeam:
		return r.handleAttachTeam(cmd)

	default:
		return Result{Err: gameerr.New(gameerr.ClientProtocol, fmt.Sprintf("unknown role %q", cmd.Role))}
	}
}

func (r *Room) handleAttachTeam(cmd Command) Result {
	name, err := validateTeamName(cmd.TeamName)
	if err != nil {
		return Result{Err: err}
	}

	if existing, ok := r.teams[name]; ok {
		if existing.Status == Attached {
			return Result{Err: gameerr.New(gameerr.NameConflict, "team name already connected")}
		}
		// Resuming a previously-seen team: same score, same roster
		// position, regardless of RoomState (decided Open Question Q2).
		existing.Status = Attached
		existing.Subscriber = cmd.Subscriber
		r.markAttached()
		r.broadcast(newTeamsUpdateEvent(r.teamEntries()))
		return Result{}
	}

	if r.state != StateWaiting {
		return Result{Err: gameerr.New(gameerr.InvalidState, "room is not accepting new teams")}
	}

	r.teams[name] = &Team{
		Name:       name,
		Status:     Attached,
		JoinedAt:   time.Now(),
		Subscriber: cmd.Subscriber,
	}
	r.teamOrder = append(r.teamOrder, name)
	r.markAttached()
	metrics.RoomTeams.WithLabelValues(string(r.code)).Set(float64(len(r.teamOrder)))
	r.broadcast(newTeamsUpdateEvent(r.teamEntries()))
	return Result{}
}

func validateTeamName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", gameerr.New(gameerr.ClientProtocol, "team name must not be empty")
	}
	if utf8.RuneCountInString(name) > 30 {
		return "", gameerr.New(gameerr.ClientProtocol, "team name must be 30 characters or fewer")
	}
	return name, nil
}

func (r *Room) handleDetachSession(cmd Command) Result {
	r.detachBySubscriberID(cmd.Subscriber.SubscriberID(), detachReasonClientClose)
	return Result{}
}

// detachBySubscriberID is the common path for a clean client-close, a
// dropped keep-alive, and a backpressure-triggered drop. It never returns
// an error: detaching an already-gone subscriber is a no-op.
func (r *Room) detachBySubscriberID(id string, reason string) {
	if r.manager != nil && r.manager.SubscriberID() == id {
		r.manager = nil
		r.markDetachedIfIdle()
		metrics.SessionsDroppedTotal.WithLabelValues(reason).Inc()
		r.checkDisposable()
		return
	}

	if _, ok := r.displays[id]; ok {
		delete(r.displays, id)
		r.markDetachedIfIdle()
		metrics.SessionsDroppedTotal.WithLabelValues(reason).Inc()
		r.checkDisposable()
		return
	}

	for _, name := range r.teamOrder {
		team := r.teams[name]
		if team.Subscriber != nil && team.Subscriber.SubscriberID() == id {
			team.Status = Detached
			team.Subscriber = nil
			r.markDetachedIfIdle()
			metrics.SessionsDroppedTotal.WithLabelValues(reason).Inc()
			r.broadcast(newTeamsUpdateEvent(r.teamEntries()))
			r.checkDisposable()
			return
		}
	}
}

func (r *Room) handleKickTeam(cmd Command) Result {
	if r.state != StateWaiting {
		return Result{Err: gameerr.New(gameerr.InvalidState, "teams can only be kicked while the room is waiting")}
	}

	team, ok := r.teams[strings.TrimSpace(cmd.TeamName)]
	if !ok {
		return Result{Err: gameerr.New(gameerr.NotFound, "no such team")}
	}

	if team.Subscriber != nil {
		r.sendTo(team.Subscriber, kickedEvent{Type: "kicked", Reason: "removed by manager"})
		team.Subscriber.Close(4009, "kicked by manager")
	}

	delete(r.teams, team.Name)
	r.teamOrder = slices.DeleteFunc(r.teamOrder, func(name string) bool { return name == team.Name })
	metrics.RoomTeams.WithLabelValues(string(r.code)).Set(float64(len(r.teamOrder)))
	r.markDetachedIfIdle()
	r.broadcast(newTeamsUpdateEvent(r.teamEntries()))
	return Result{}
}

// --- Lifecycle --------------------------------------------------------

func (r *Room) handleStartGame(cmd Command) Result {
	if cmd.Role != RoleManager {
		return Result{Err: gameerr.New(gameerr.PermissionDenied, "only the manager may start the game")}
	}
	if r.state != StateWaiting {
		return Result{Err: gameerr.New(gameerr.InvalidState, "game already started")}
	}
	if r.attachedTeamCount() == 0 {
		return Result{Err: gameerr.New(gameerr.InvalidState, "at least one attached team is required")}
	}

	r.state = StatePlaying
	r.broadcast(gameStartedEvent{Type: "game_started", MaxRounds: r.maxRounds})
	return Result{}
}

func (r *Room) handleEndGame(cmd Command) Result {
	if cmd.Role != RoleManager {
		return Result{Err: gameerr.New(gameerr.PermissionDenied, "only the manager may end the game")}
	}
	if r.state == StateFinished {
		return Result{Err: gameerr.New(gameerr.InvalidState, "game already ended")}
	}

	r.state = StateFinished
	r.round = nil

	winner := r.computeWinner()
	r.broadcast(gameEndedEvent{
		Type:         "game_ended",
		Winner:       winner,
		FinalScores:  r.scoreEntries(),
		RoundsPlayed: r.completedRounds,
	})
	r.checkDisposable()
	return Result{}
}

// checkDisposable notifies onDisposable when the Room has finished and has
// nothing left attached (§3 Ownership: "FINISHED and all sessions have
// closed" is a disposal trigger independent of idleTTL). The notification
// runs off the consumer goroutine so the Registry is free to call back into
// this Room (e.g. a Snapshot recheck, Terminate) without deadlocking on its
// own command queue.
func (r *Room) checkDisposable() {
	if r.onDisposable == nil {
		return
	}
	if r.state != StateFinished {
		return
	}
	if r.manager != nil || len(r.displays) != 0 || r.attachedTeamCount() != 0 {
		return
	}
	go r.onDisposable(r.code)
}

// computeWinner applies §4.3's tie-break: highest score, ties broken by
// earliest JoinTimestamp. Returns nil if there are no teams at all.
func (r *Room) computeWinner() *string {
	var best *Team
	for _, name := range r.teamOrder {
		t := r.teams[name]
		if best == nil || t.Score > best.Score || (t.Score == best.Score && t.JoinedAt.Before(best.JoinedAt)) {
			best = t
		}
	}
	if best == nil {
		return nil
	}
	name := best.Name
	return &name
}

func (r *Room) attachedTeamCount() int {
	n := 0
	for _, name := range r.teamOrder {
		if r.teams[name].Status == Attached {
			n++
		}
	}
	return n
}

func (r *Room) markAttached() {
	r.idleSince = time.Time{}
}

func (r *Room) markDetachedIfIdle() {
	if r.manager == nil && len(r.displays) == 0 && r.attachedTeamCount() == 0 {
		r.idleSince = time.Now()
	}
}

// --- Snapshot -----------------------------------------------------------

// TeamSummary is one roster row in Snapshot.
type TeamSummary struct {
	Name     string
	Attached bool
	Score    int
}

// Snapshot is the read model behind GET /api/games/{code}.
type Snapshot struct {
	Code             GameCode
	State            RoomState
	Teams            []TeamSummary
	RoundNumber      int
	RoundState       RoundState
	LockedBy         string
	CanEnd           bool
	AttachedSessions int
	IdleSince        time.Time
	MaxRounds        int
	// RoundEvents is the current (or, once a round completes, the most
	// recently completed) round's internal event log — see Round.Events.
	RoundEvents []string
}

func (r *Room) snapshot() Snapshot {
	teams := make([]TeamSummary, 0, len(r.teamOrder))
	for _, name := range r.teamOrder {
		t := r.teams[name]
		teams = append(teams, TeamSummary{Name: t.Name, Attached: t.Status == Attached, Score: t.Score})
	}

	var roundState RoundState
	var lockedBy string
	roundEvents := r.lastRoundEvents
	roundNumber := r.roundNumber
	if r.round != nil {
		roundState = r.round.State
		lockedBy = r.round.LockedBy
		roundEvents = r.round.Events
	}

	attached := r.attachedTeamCount()
	if r.manager != nil {
		attached++
	}
	attached += len(r.displays)

	return Snapshot{
		Code:             r.code,
		State:            r.state,
		Teams:            teams,
		RoundNumber:      roundNumber,
		RoundState:       roundState,
		LockedBy:         lockedBy,
		CanEnd:           r.roundNumber >= r.maxRounds,
		AttachedSessions: attached,
		IdleSince:        r.idleSince,
		MaxRounds:        r.maxRounds,
		RoundEvents:      roundEvents,
	}
}

