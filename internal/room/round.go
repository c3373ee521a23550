package room

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/BenArtzi4/Sound-Clash-sub000/internal/gameerr"
	"github.com/BenArtzi4/Sound-Clash-sub000/internal/logging"
	"github.com/BenArtzi4/Sound-Clash-sub000/internal/metrics"
)

const scoreSongName = 10
const scoreArtistOrContent = 5
const scoreWrongAnswer = -2

// handleStartRound is the "initiates" half of the §9 split: it validates
// and moves the round to the internal SELECTING_SONG sub-state, then
// dispatches the Catalog call on its own goroutine and returns immediately.
// The Room consumer is free to process other commands while that call is
// outstanding; the result arrives later as cmdSongSelected or
// cmdSongSelectionFailed.
func (r *Room) handleStartRound(cmd Command) Result {
	if cmd.Role != RoleManager {
		return Result{Err: gameerr.New(gameerr.PermissionDenied, "only the manager may start a round")}
	}
	if r.state != StatePlaying {
		return Result{Err: gameerr.New(gameerr.InvalidState, "game is not in progress")}
	}
	if r.round != nil {
		return Result{Err: gameerr.New(gameerr.InvalidState, "a round is already in progress")}
	}

	nextRoundNumber := r.roundNumber + 1
	r.round = &Round{Number: nextRoundNumber, State: RoundSelectingSong}
	r.roundNumber = nextRoundNumber

	r.dispatchSongSelection(nextRoundNumber)
	return Result{}
}

func (r *Room) dispatchSongSelection(roundAt int) {
	genres := append([]string(nil), r.genres...)
	excluded := r.playedSongIDs.UnsortedList()
	cat := r.catalog
	timeout := r.catalogTimeout
	self := r

	go func() {
		defer func() {
			if p := recover(); p != nil {
				logging.Error(nil, "song selection goroutine panicked",
					zap.String("game_code", string(self.code)), zap.Any("panic", p))
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		song, err := cat.SelectSong(ctx, genres, excluded)
		if err != nil {
			self.Submit(Command{Kind: cmdSongSelectionFailed, roundAt: roundAt, failErr: err})
			return
		}
		self.Submit(Command{Kind: cmdSongSelected, roundAt: roundAt, song: song})
	}()
}

// isStaleCompletion guards against a song-selection completion arriving for
// a round that is no longer the one awaiting it: SkipRound or EndGame can
// clear a SELECTING_SONG round while its Catalog call is still outstanding,
// and a later StartRound then opens a round with a different number.
func (r *Room) isStaleCompletion(roundAt int) bool {
	return r.round == nil || r.round.Number != roundAt || r.round.State != RoundSelectingSong
}

func (r *Room) handleSongSelected(cmd Command) Result {
	if r.isStaleCompletion(cmd.roundAt) {
		return Result{}
	}

	r.round.Song = Song{
		ID:              cmd.song.ID,
		Title:           cmd.song.Title,
		ArtistOrContent: cmd.song.ArtistOrContent,
		MediaID:         cmd.song.MediaID,
		IsSoundtrack:    cmd.song.IsSoundtrack,
	}
	r.round.State = RoundSongPlaying
	r.round.StartedAt = time.Now()
	r.playedSongIDs.Insert(cmd.song.ID)

	metrics.RoundsStartedTotal.Inc()

	event := roundStartedEvent{
		Type:         "round_started",
		RoundNumber:  r.round.Number,
		SongTitle:    r.round.Song.Title,
		AnswerLabel:  r.round.answerLabel(),
		AnswerValue:  r.round.Song.ArtistOrContent,
		MediaID:      r.round.Song.MediaID,
		IsSoundtrack: r.round.Song.IsSoundtrack,
	}
	r.round.recordEvent(event.Type)
	r.broadcastAll(func(role Role) any { return event.redactForRole(role) })
	return Result{}
}

func (r *Room) handleSongSelectionFailed(cmd Command) Result {
	if r.isStaleCompletion(cmd.roundAt) {
		return Result{}
	}

	// StartRound never committed the round number forward in any
	// externally visible way (no round_started was broadcast), so
	// unwinding here clears the in-progress round and steps roundNumber
	// back past the number that never played, so the next StartRound
	// reuses it.
	r.roundNumber--
	r.round = nil

	kind := gameerr.KindOf(cmd.failErr)
	if kind == "" {
		kind = gameerr.UpstreamUnavailable
	}
	if r.manager != nil {
		r.sendTo(r.manager, errorEvent{Type: "error", Code: string(kind), Message: "could not start round: " + cmd.failErr.Error()})
	}
	return Result{}
}

func (r *Room) handleBuzzPress(cmd Command) Result {
	if cmd.Role != RoleTeam {
		return Result{Err: gameerr.New(gameerr.PermissionDenied, "only a team may buzz")}
	}
	if r.round == nil || r.round.State != RoundSongPlaying {
		// Arrival after the buzzer is already locked (or no round is
		// live) is not an error per §4.3: it is silently ignored.
		metrics.BuzzesTotal.WithLabelValues("ignored").Inc()
		return Result{}
	}

	team, ok := r.teams[cmd.TeamName]
	if !ok || team.Status != Attached {
		return Result{Err: gameerr.New(gameerr.NotFound, "team is not attached to this room")}
	}

	r.round.State = RoundBuzzerLocked
	r.round.LockedBy = team.Name
	metrics.BuzzesTotal.WithLabelValues("won").Inc()

	event := buzzerLockedEvent{
		Type:       "buzzer_locked",
		TeamName:   team.Name,
		ServerTsMs: time.Now().UnixMilli(),
	}
	r.round.recordEvent(event.Type)
	r.broadcast(event)
	return Result{}
}

func (r *Room) handleEvaluateAnswer(cmd Command) Result {
	if cmd.Role != RoleManager {
		return Result{Err: gameerr.New(gameerr.PermissionDenied, "only the manager may evaluate an answer")}
	}
	if r.round == nil || (r.round.State != RoundBuzzerLocked && r.round.State != RoundEvaluating) {
		return Result{Err: gameerr.New(gameerr.InvalidState, "no answer is awaiting evaluation")}
	}

	team, ok := r.teams[r.round.LockedBy]
	if !ok {
		return Result{Err: gameerr.New(gameerr.NotFound, "buzzing team no longer on roster")}
	}

	r.round.State = RoundEvaluating

	if cmd.Wrong {
		team.Score += scoreWrongAnswer
		r.round.LockedBy = ""
		r.round.State = RoundSongPlaying
		metrics.AnswerEvaluationsTotal.WithLabelValues("wrong").Inc()

		evaluated := answerEvaluatedEvent{
			Type:           "answer_evaluated",
			TeamName:       team.Name,
			Delta:          scoreWrongAnswer,
			ComponentLocks: lockPayload(r.round.Locks),
			Scores:         r.scoreEntries(),
		}
		r.round.recordEvent(evaluated.Type)
		r.broadcast(evaluated)
		reopened := buzzersReopenedEvent{Type: "buzzers_reopened", ComponentLocks: lockPayload(r.round.Locks)}
		r.round.recordEvent(reopened.Type)
		r.broadcast(reopened)
		return Result{}
	}

	delta := 0
	if cmd.SongOK && !r.round.Locks.SongName {
		r.round.Locks.SongName = true
		delta += scoreSongName
	}
	if cmd.ArtistOrContentOK && !r.round.Locks.ArtistOrContent {
		r.round.Locks.ArtistOrContent = true
		delta += scoreArtistOrContent
	}
	team.Score += delta

	verdict := "partial"
	if r.round.Locks.SongName && r.round.Locks.ArtistOrContent {
		verdict = "complete"
	}
	metrics.AnswerEvaluationsTotal.WithLabelValues(verdict).Inc()

	evaluated := answerEvaluatedEvent{
		Type:           "answer_evaluated",
		TeamName:       team.Name,
		Delta:          delta,
		ComponentLocks: lockPayload(r.round.Locks),
		Scores:         r.scoreEntries(),
	}
	r.round.recordEvent(evaluated.Type)
	r.broadcast(evaluated)

	if r.round.Locks.SongName && r.round.Locks.ArtistOrContent {
		r.completeRound()
		return Result{}
	}

	r.round.LockedBy = ""
	r.round.State = RoundSongPlaying
	reopened := buzzersReopenedEvent{Type: "buzzers_reopened", ComponentLocks: lockPayload(r.round.Locks)}
	r.round.recordEvent(reopened.Type)
	r.broadcast(reopened)
	return Result{}
}

func (r *Room) handleRestartSong(cmd Command) Result {
	if cmd.Role != RoleManager {
		return Result{Err: gameerr.New(gameerr.PermissionDenied, "only the manager may restart the song")}
	}
	if r.round == nil {
		return Result{Err: gameerr.New(gameerr.InvalidState, "no round is in progress")}
	}
	r.round.recordEvent("media_restart")
	r.broadcast(mediaRestartEvent{Type: "media_restart"})
	return Result{}
}

func (r *Room) handleSkipRound(cmd Command) Result {
	if cmd.Role != RoleManager {
		return Result{Err: gameerr.New(gameerr.PermissionDenied, "only the manager may skip the round")}
	}
	if r.round == nil {
		return Result{Err: gameerr.New(gameerr.InvalidState, "no round is in progress")}
	}
	r.completeRound()
	return Result{}
}

// completeRound freezes the current round, advances the played-round
// counter, and broadcasts round_completed with the CanEnd advertisement
// flag (decided Open Question Q4: reaching max rounds never auto-ends the
// game, it only flips this flag).
func (r *Room) completeRound() {
	r.round.State = RoundCompleted
	r.completedRounds++

	completed := roundCompletedEvent{
		Type:               "round_completed",
		RoundNumber:        r.round.Number,
		CorrectSongTitle:   r.round.Song.Title,
		CorrectAnswerValue: r.round.Song.ArtistOrContent,
		CanEnd:             r.roundNumber >= r.maxRounds,
	}
	r.round.recordEvent(completed.Type)
	r.broadcast(completed)

	r.lastRoundEvents = r.round.Events
	r.round = nil
}
