package game

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jacl-coder/SkyGuard-Server/config"
	"github.com/jacl-coder/SkyGuard-Server/internal/models"
	"github.com/jacl-coder/SkyGuard-Server/internal/sim"
	"github.com/jacl-coder/SkyGuard-Server/internal/stats"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Server.RateLimit = 0
	cfg.Auth.JWTSecret = ""
	return cfg
}

func TestArenaTrainStep(t *testing.T) {
	a := NewArena(testConfig(), models.ModeTrain, nil, nil)

	reset := a.Reset()
	if reset.EpisodeID == "" || len(reset.Observation) != sim.ObservationSize(10) {
		t.Fatalf("reset frame %+v", reset)
	}

	frame, err := a.Step(sim.Action{Yaw: 1})
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	if frame.Step != 1 || frame.EpisodeID != reset.EpisodeID || frame.Done {
		t.Fatalf("step frame %+v", frame)
	}
	if frame.Reward >= 0 {
		t.Fatalf("existence penalty should make reward negative, got %v", frame.Reward)
	}

	obs := a.Observe()
	if obs.Step != 1 || len(obs.Observation) != len(frame.Observation) {
		t.Fatalf("observe frame %+v", obs)
	}
}

func TestArenaRecordsEpisode(t *testing.T) {
	cfg := testConfig()
	cfg.Episode.MaxSteps = 3
	rec := stats.NewMemoryRecorder()
	a := NewArena(cfg, models.ModeTrain, rec, nil)
	a.AddClient(newConnection("agent-7", nil))

	var last bool
	for i := 0; i < 3; i++ {
		f, err := a.Step(sim.Action{})
		if err != nil {
			t.Fatalf("Step: %v", err)
		}
		last = f.Done && f.Truncated
	}
	if !last {
		t.Fatal("third step should end the episode by truncation")
	}
	a.WaitRecorded()
	results := rec.Results()
	if len(results) != 1 {
		t.Fatalf("expected one recorded episode, got %d", len(results))
	}
	if results[0].AgentID != "agent-7" || results[0].ArenaID != a.ID || results[0].Steps != 3 {
		t.Fatalf("recorded %+v", results[0])
	}
}

// blockingRecorder 阻塞到 release 关闭
type blockingRecorder struct {
	entered chan struct{}
	release chan struct{}
	inner   *stats.MemoryRecorder
}

func (r *blockingRecorder) Record(ctx context.Context, res models.EpisodeResult) error {
	r.entered <- struct{}{}
	<-r.release
	return r.inner.Record(ctx, res)
}

func TestArenaSlowRecorderDoesNotHoldSim(t *testing.T) {
	cfg := testConfig()
	cfg.Episode.MaxSteps = 1
	rec := &blockingRecorder{
		entered: make(chan struct{}, 4),
		release: make(chan struct{}),
		inner:   stats.NewMemoryRecorder(),
	}
	a := NewArena(cfg, models.ModeTrain, rec, nil)

	// 记录器阻塞期间每一步都结束一个回合
	stepped := make(chan struct{})
	go func() {
		defer close(stepped)
		for i := 0; i < 2; i++ {
			f, err := a.Step(sim.Action{})
			if err != nil || !f.Done {
				t.Errorf("step %d should end the episode: %+v %v", i, f, err)
			}
			a.Info()
		}
	}()
	select {
	case <-stepped:
	case <-time.After(2 * time.Second):
		t.Fatal("arena blocked behind the recorder")
	}
	for i := 0; i < 2; i++ {
		select {
		case <-rec.entered:
		case <-time.After(2 * time.Second):
			t.Fatal("recorder was never called")
		}
	}

	close(rec.release)
	a.WaitRecorded()
	if rec.inner.Len() != 2 {
		t.Fatalf("recorded %d episodes", rec.inner.Len())
	}
	if got := rec.inner.Results()[0].AgentID; got != "anonymous" {
		t.Fatalf("agent id %q", got)
	}
}

func TestArenaModeChecks(t *testing.T) {
	play := NewArena(testConfig(), models.ModePlay, nil, nil)
	if _, err := play.Step(sim.Action{}); !errors.Is(err, ErrWrongMode) {
		t.Fatalf("play arena should reject Step, got %v", err)
	}
	if err := play.SetKeys([]sim.Key{sim.KeyA}); err != nil {
		t.Fatalf("SetKeys: %v", err)
	}

	train := NewArena(testConfig(), models.ModeTrain, nil, nil)
	if err := train.SetKeys([]sim.Key{sim.KeyA}); !errors.Is(err, ErrWrongMode) {
		t.Fatalf("train arena should reject keys, got %v", err)
	}
}

func TestArenaPlayLoop(t *testing.T) {
	a := NewArena(testConfig(), models.ModePlay, nil, nil)
	a.Start()
	defer a.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for a.Info().Step == 0 {
		if time.Now().After(deadline) {
			t.Fatal("play loop did not advance")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if a.Status() != models.ArenaRunning {
		t.Fatalf("status %s", a.Status())
	}
}

func TestArenaCleanup(t *testing.T) {
	a := NewArena(testConfig(), models.ModeTrain, nil, nil)
	a.IdleTimeout = 0
	c := newConnection("x", nil)
	a.AddClient(c)
	if a.ShouldCleanup() {
		t.Fatal("arena with a client should not be cleaned up")
	}
	a.RemoveClient(c.ID)
	time.Sleep(time.Millisecond)
	if !a.ShouldCleanup() {
		t.Fatal("empty idle arena should be cleaned up")
	}

	b := NewArena(testConfig(), models.ModeTrain, nil, nil)
	b.Stop()
	if !b.ShouldCleanup() || b.Status() != models.ArenaClosed {
		t.Fatal("stopped arena should be closed and cleaned up")
	}
}
