package room

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BenArtzi4/Sound-Clash-sub000/internal/catalog"
	"github.com/BenArtzi4/Sound-Clash-sub000/internal/gameerr"
	"github.com/BenArtzi4/Sound-Clash-sub000/internal/logging"
	"github.com/BenArtzi4/Sound-Clash-sub000/internal/metrics"
)

const maxCodeAttempts = 8

// Registry is the Room Registry (C1): a constructed value threaded
// explicitly through the server's dependency graph, never a package-level
// global (§9). It owns the map from GameCode to Room and the idle sweeper.
type Registry struct {
	mu    sync.Mutex
	rooms map[GameCode]*Room

	catalog        catalog.Client
	catalogTimeout time.Duration
	idleTTL        time.Duration

	sweepStop chan struct{}
	sweepDone chan struct{}
}

// NewRegistry constructs a Registry and starts its idle sweeper. Shutdown
// must be called to release the sweeper goroutine (graceful shutdown, tests).
func NewRegistry(cat catalog.Client, catalogTimeout, idleTTL, sweepInterval time.Duration) *Registry {
	reg := &Registry{
		rooms:          make(map[GameCode]*Room),
		catalog:        cat,
		catalogTimeout: catalogTimeout,
		idleTTL:        idleTTL,
		sweepStop:      make(chan struct{}),
		sweepDone:      make(chan struct{}),
	}
	go reg.sweepLoop(sweepInterval)
	return reg
}

// CreateRoom allocates a unique GameCode, retrying up to maxCodeAttempts on
// collision, and registers a new WAITING Room.
func (reg *Registry) CreateRoom(maxRounds int, genres []string) (GameCode, *Room, error) {
	reg.mu.Lock()
	var code GameCode
	found := false
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		candidate, err := generateCode()
		if err != nil {
			reg.mu.Unlock()
			return "", nil, gameerr.Wrap(gameerr.CapacityExhausted, "could not generate a game code", err)
		}
		if _, taken := reg.rooms[candidate]; !taken {
			code = candidate
			found = true
			break
		}
	}
	if !found {
		reg.mu.Unlock()
		return "", nil, gameerr.New(gameerr.CapacityExhausted, "no free game code after bounded retry")
	}

	r := NewRoom(code, maxRounds, genres, reg.catalog, reg.catalogTimeout, reg.disposeIfFinished)
	reg.rooms[code] = r
	reg.mu.Unlock()

	metrics.RoomsCreatedTotal.Inc()
	metrics.ActiveRooms.Set(float64(reg.Count()))
	logging.Info(nil, "room created", zap.String("game_code", string(code)))

	return code, r, nil
}

// Lookup resolves a GameCode to its Room, case-insensitively. The returned
// handle is safe to use without holding the Registry's lock.
func (reg *Registry) Lookup(code string) (*Room, error) {
	canon := canonicalCode(code)
	reg.mu.Lock()
	r, ok := reg.rooms[canon]
	reg.mu.Unlock()
	if !ok {
		return nil, gameerr.New(gameerr.NotFound, "no game with that code")
	}
	return r, nil
}

// Dispose removes a Room from the registry and terminates it. Idempotent.
func (reg *Registry) Dispose(code GameCode, reason string) {
	reg.mu.Lock()
	r, ok := reg.rooms[code]
	if ok {
		delete(reg.rooms, code)
	}
	reg.mu.Unlock()

	if !ok {
		return
	}
	r.Terminate(reason)
	metrics.ActiveRooms.Set(float64(reg.Count()))
}

// Count returns the number of currently registered rooms.
func (reg *Registry) Count() int {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return len(reg.rooms)
}

// Shutdown disposes every live room, used for graceful drain on
// SIGINT/SIGTERM rather than letting the process exit out from under
// attached sessions.
func (reg *Registry) Shutdown() {
	close(reg.sweepStop)
	<-reg.sweepDone

	reg.mu.Lock()
	codes := make([]GameCode, 0, len(reg.rooms))
	for code := range reg.rooms {
		codes = append(codes, code)
	}
	reg.mu.Unlock()

	for _, code := range codes {
		reg.Dispose(code, "server_shutdown")
	}
}

func (reg *Registry) sweepLoop(interval time.Duration) {
	defer close(reg.sweepDone)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			reg.sweepIdleRooms()
		case <-reg.sweepStop:
			return
		}
	}
}

// disposeIfFinished is the Room's onDisposable callback: §3 Ownership's
// second disposal trigger, fired promptly instead of waiting out idleTTL
// once a FINISHED room has nothing attached. It rechecks via a fresh
// Snapshot before disposing, the same way sweepIdleRooms rechecks IdleSince,
// since the Room may have gained a reattached session between the check
// that fired this callback and this call actually running.
func (reg *Registry) disposeIfFinished(code GameCode) {
	reg.mu.Lock()
	r, ok := reg.rooms[code]
	reg.mu.Unlock()
	if !ok {
		return
	}

	res := r.Submit(Command{Kind: CmdSnapshot})
	if res.Err != nil {
		return
	}
	snap, ok := res.Data.(Snapshot)
	if !ok || snap.State != StateFinished || snap.AttachedSessions > 0 {
		return
	}
	reg.Dispose(code, "finished_no_sessions")
}

func (reg *Registry) sweepIdleRooms() {
	reg.mu.Lock()
	candidates := make([]*Room, 0, len(reg.rooms))
	for _, r := range reg.rooms {
		candidates = append(candidates, r)
	}
	reg.mu.Unlock()

	now := time.Now()
	for _, r := range candidates {
		res := r.Submit(Command{Kind: CmdSnapshot})
		if res.Err != nil {
			continue
		}
		snap, ok := res.Data.(Snapshot)
		if !ok || snap.IdleSince.IsZero() {
			continue
		}
		if now.Sub(snap.IdleSince) > reg.idleTTL {
			reg.Dispose(snap.Code, "idle_ttl")
		}
	}
}
