package room

import "github.com/BenArtzi4/Sound-Clash-sub000/internal/catalog"

// Subscriber is the Room's view of an attached push-channel session. The
// Connection Hub's Session type implements this; the Room never reaches
// into transport details, it only ever calls Deliver/Close.
type Subscriber interface {
	// SubscriberID identifies this session for detach/kick bookkeeping.
	SubscriberID() string
	// Deliver hands the session one outbound event (one of the *Event
	// structs in broadcast.go, or an error/kicked frame). It must never
	// block; a false return means the session's outbound queue is
	// saturated and the Room should treat the subscriber as gone.
	Deliver(event any) bool
	// Close terminates the transport with the given push-channel close
	// code and a human-readable reason.
	Close(code int, reason string)
}

// CommandKind enumerates every mutation a Room accepts, matching §4.2's
// command list one-to-one. The two "internal" kinds complete the
// StartRound/song-selection split described in §9: StartRound returns as
// soon as the Catalog call is dispatched, and the consumer handles the
// result as an ordinary command like any other.
type CommandKind string

const (
	CmdAttachSession  CommandKind = "attach_session"
	CmdDetachSession  CommandKind = "detach_session"
	CmdKickTeam       CommandKind = "kick_team"
	CmdStartGame      CommandKind = "start_game"
	CmdStartRound     CommandKind = "start_round"
	CmdBuzzPress      CommandKind = "buzz_press"
	CmdEvaluateAnswer CommandKind = "evaluate_answer"
	CmdRestartSong    CommandKind = "restart_song"
	CmdSkipRound      CommandKind = "skip_round"
	CmdEndGame        CommandKind = "end_game"
	CmdSnapshot       CommandKind = "snapshot"

	cmdSongSelected        CommandKind = "internal_song_selected"
	cmdSongSelectionFailed CommandKind = "internal_song_selection_failed"
)

// Command is a single request to mutate or query a Room. Exactly one of
// the payload fields is meaningful, gated by Kind; this is the closed
// sum-type dispatch §9 asks for, done the idiomatic-Go way with a tagged
// struct and an exhaustive switch in Room.apply rather than an interface
// hierarchy.
type Command struct {
	Kind CommandKind

	// AttachSession / DetachSession / KickTeam
	Role       Role
	TeamName   string
	Subscriber Subscriber

	// BuzzPress
	ClientWallClockMs int64

	// EvaluateAnswer
	SongOK            bool
	ArtistOrContentOK bool
	Wrong             bool

	// internal: song selection completion
	song    catalog.SongInfo
	roundAt int // round number the completion applies to, guards against a stale reply after SkipRound/EndGame raced it
	failErr error

	reply chan Result
}

// Result is what Submit returns: either an error drawn from the §7
// taxonomy, or a success envelope that may carry data (e.g. CmdSnapshot).
type Result struct {
	Err  error
	Data any
}
