package bingoservice

import (
	"context"
	"math/rand/v2"
	"sync"

	bingodomain "github.com/Black-And-White-Club/mundo-bingo/app/modules/bingo/domain"
	"github.com/Black-And-White-Club/mundo-bingo/pkg/attr"
)

// manager keeps one live actor per open room, loading rooms from storage on
// first use.
type manager struct {
	mu      sync.Mutex
	actors  map[string]*roomActor
	deps    *actorDeps
	load    func(ctx context.Context, code string) (*bingodomain.RoomState, error)
	newRand func() *rand.Rand
	wg      sync.WaitGroup
	stopped bool
}

func newManager(deps *actorDeps, load func(ctx context.Context, code string) (*bingodomain.RoomState, error)) *manager {
	m := &manager{
		actors:  make(map[string]*roomActor),
		deps:    deps,
		load:    load,
		newRand: bingodomain.NewRandom,
	}
	deps.onStop = m.remove
	return m
}

// get returns the room's actor, restoring it from storage if needed.
func (m *manager) get(ctx context.Context, code string) (*roomActor, error) {
	if !bingodomain.ValidRoomCode(code) {
		return nil, bingodomain.ErrRoomNotFound
	}

	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return nil, ErrShuttingDown
	}
	if a, ok := m.actors[code]; ok {
		m.mu.Unlock()
		return a, nil
	}
	m.mu.Unlock()

	state, err := m.load(ctx, code)
	if err != nil {
		return nil, err
	}
	if state.ClosedAt != nil {
		return nil, bingodomain.ErrRoomNotFound
	}
	rng := m.newRand()
	room, err := bingodomain.RestoreRoom(*state, rng, m.deps.clock)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return nil, ErrShuttingDown
	}
	if a, ok := m.actors[code]; ok {
		return a, nil
	}
	m.deps.logger.InfoContext(ctx, "Restored room from storage", attr.RoomCode(code))
	return m.startLocked(room, rng), nil
}

// add starts an actor for a room that was just created.
func (m *manager) add(room *bingodomain.Room, rng *rand.Rand) (*roomActor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return nil, ErrShuttingDown
	}
	return m.startLocked(room, rng), nil
}

func (m *manager) startLocked(room *bingodomain.Room, rng *rand.Rand) *roomActor {
	a := newRoomActor(room, rng, m.deps)
	m.actors[a.code] = a
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		a.run()
	}()
	m.deps.metrics.SetActiveRooms(len(m.actors))
	return a
}

func (m *manager) remove(a *roomActor) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.actors[a.code]; ok && cur == a {
		delete(m.actors, a.code)
	}
	m.deps.metrics.SetActiveRooms(len(m.actors))
}

func (m *manager) active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.actors)
}

// shutdown stops every actor and waits for them, or for ctx.
func (m *manager) shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.stopped = true
	for _, a := range m.actors {
		close(a.quit)
	}
	m.actors = make(map[string]*roomActor)
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
