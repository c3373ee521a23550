package room

// Outbound event payloads, one struct per §6.1 wire shape. Each embeds its
// own "type" field so marshaling a struct directly produces the flattened
// `{ "type": "...", ... }` envelope the push channel promises, with no
// wrapper/merge step needed downstream in the Hub.

type teamEntry struct {
	Name     string `json:"name"`
	Attached bool   `json:"attached"`
}

type scoreEntry struct {
	TeamName string `json:"team_name"`
	Score    int    `json:"score"`
}

type lockPayload struct {
	SongName        bool `json:"song_name"`
	ArtistOrContent bool `json:"artist_or_content"`
}

type teamsUpdateEvent struct {
	Type  string      `json:"type"`
	Teams []teamEntry `json:"teams"`
	Total int         `json:"total"`
}

type gameStartedEvent struct {
	Type      string `json:"type"`
	MaxRounds int    `json:"max_rounds"`
}

type roundStartedEvent struct {
	Type        string `json:"type"`
	RoundNumber int    `json:"round_number"`
	SongTitle   string `json:"song_title"`
	AnswerLabel string `json:"answer_label"`
	// AnswerValue is omitted (left empty) for TEAM-role recipients; see
	// redactForRole.
	AnswerValue  string `json:"answer_value"`
	MediaID      string `json:"media_id"`
	IsSoundtrack bool   `json:"is_soundtrack"`
}

// redactForRole returns the TEAM-safe variant of a round_started event: the
// answer is not included in what a Team's client receives over the wire.
func (e roundStartedEvent) redactForRole(role Role) roundStartedEvent {
	if role != RoleTeam {
		return e
	}
	redacted := e
	redacted.AnswerValue = ""
	return redacted
}

type buzzerLockedEvent struct {
	Type       string `json:"type"`
	TeamName   string `json:"team_name"`
	ServerTsMs int64  `json:"server_ts_ms"`
}

type answerEvaluatedEvent struct {
	Type           string       `json:"type"`
	TeamName       string       `json:"team_name"`
	Delta          int          `json:"delta"`
	ComponentLocks lockPayload  `json:"component_locks"`
	Scores         []scoreEntry `json:"scores"`
}

type buzzersReopenedEvent struct {
	Type           string      `json:"type"`
	ComponentLocks lockPayload `json:"component_locks"`
}

type mediaRestartEvent struct {
	Type string `json:"type"`
}

type roundCompletedEvent struct {
	Type               string `json:"type"`
	RoundNumber        int    `json:"round_number"`
	CorrectSongTitle   string `json:"correct_song_title"`
	CorrectAnswerValue string `json:"correct_answer_value"`
	CanEnd             bool   `json:"can_end"`
}

type gameEndedEvent struct {
	Type         string       `json:"type"`
	Winner       *string      `json:"winner"`
	FinalScores  []scoreEntry `json:"final_scores"`
	RoundsPlayed int          `json:"rounds_played"`
}

type errorEvent struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type kickedEvent struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

func newTeamsUpdateEvent(teams []teamEntry) teamsUpdateEvent {
	return teamsUpdateEvent{Type: "teams_update", Teams: teams, Total: len(teams)}
}

// broadcastAll delivers event to the Manager, every Display, and every
// attached Team in insertion order. A per-recipient render function lets a
// caller (round_started) send a role-redacted variant without duplicating
// the fan-out loop.
func (r *Room) broadcastAll(render func(role Role) any) {
	for _, sub := range r.recipients() {
		r.deliverOrDrop(sub.subscriber, render(sub.role))
	}
}

// broadcast is broadcastAll's common case: the same payload for everyone.
func (r *Room) broadcast(event any) {
	r.broadcastAll(func(Role) any { return event })
}

type recipient struct {
	subscriber Subscriber
	role       Role
}

// recipients snapshots every currently attached session. Built fresh per
// broadcast rather than cached, since the Room consumer is the only writer
// and reader of its roster anyway.
func (r *Room) recipients() []recipient {
	var out []recipient
	if r.manager != nil {
		out = append(out, recipient{r.manager, RoleManager})
	}
	for _, sub := range r.displays {
		out = append(out, recipient{sub, RoleDisplay})
	}
	for _, name := range r.teamOrder {
		team := r.teams[name]
		if team.Status == Attached && team.Subscriber != nil {
			out = append(out, recipient{team.Subscriber, RoleTeam})
		}
	}
	return out
}

// closeCodeBackpressure is used to terminate a subscriber whose outbound
// queue overflowed (§7 BackpressureDropped: "session is terminated"; §4.4:
// "the session is dropped"). 1011 is the standard WebSocket "internal
// error" close code; room deliberately doesn't import gorilla/websocket
// for this constant to keep the Subscriber contract transport-agnostic.
const closeCodeBackpressure = 1011

// deliverOrDrop sends one event to one subscriber, detaching and closing it
// in place if its outbound queue has saturated. The Room's own delivery
// path is never allowed to block (§5): Subscriber.Deliver already enforces
// that at the transport layer, this just reacts to a false return.
func (r *Room) deliverOrDrop(sub Subscriber, event any) {
	if sub.Deliver(event) {
		return
	}
	r.detachBySubscriberID(sub.SubscriberID(), detachReasonBackpressure)
	sub.Close(closeCodeBackpressure, "outbound queue overflowed")
}

// sendTo delivers event to exactly one subscriber, used for point-to-point
// `error` and `kicked` frames that must never be broadcast.
func (r *Room) sendTo(sub Subscriber, event any) {
	if sub == nil {
		return
	}
	r.deliverOrDrop(sub, event)
}

func (r *Room) teamEntries() []teamEntry {
	entries := make([]teamEntry, 0, len(r.teamOrder))
	for _, name := range r.teamOrder {
		t := r.teams[name]
		entries = append(entries, teamEntry{Name: t.Name, Attached: t.Status == Attached})
	}
	return entries
}

func (r *Room) scoreEntries() []scoreEntry {
	entries := make([]scoreEntry, 0, len(r.teamOrder))
	for _, name := range r.teamOrder {
		t := r.teams[name]
		entries = append(entries, scoreEntry{TeamName: t.Name, Score: t.Score})
	}
	return entries
}
