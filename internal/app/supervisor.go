package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cryptoDecisionEngine/internal/domain"
	"cryptoDecisionEngine/internal/ports"
	"cryptoDecisionEngine/internal/strategy"
)

// DefaultCycleInterval is the wait between two cycles of a bot.
const DefaultCycleInterval = 5 * time.Minute

// CycleRunner executes one trading cycle.
type CycleRunner interface {
	ExecuteCycle(ctx context.Context, botID string, source strategy.Source) CycleResult
}

// SupervisorConfig holds supervisor settings. Lock is optional.
type SupervisorConfig struct {
	Interval time.Duration
	Lock     ports.BotLock
}

type botLoop struct {
	stop chan struct{}
	done chan struct{}
}

// Supervisor runs one loop per active bot. Cycles of a bot are strictly sequential
// and a stop request only takes effect between cycles.
type Supervisor struct {
	bots     ports.BotRepository
	runner   CycleRunner
	deps     strategy.Deps
	lock     ports.BotLock
	interval time.Duration
	logger   ports.Logger

	mu       sync.Mutex
	ctx      context.Context
	loops    map[string]*botLoop
	stopping map[string]*botLoop // Stop requested, cycle possibly still in flight
	wg       sync.WaitGroup
}

// NewSupervisor creates a Supervisor. Strategy deps are resolved once per bot start.
func NewSupervisor(bots ports.BotRepository, runner CycleRunner, deps strategy.Deps, cfg SupervisorConfig, logger ports.Logger) (*Supervisor, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for supervisor")
	}
	if bots == nil || runner == nil {
		return nil, fmt.Errorf("bot repository and cycle runner are required for supervisor")
	}
	if deps.Logger == nil {
		deps.Logger = logger
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultCycleInterval
	}
	return &Supervisor{
		bots:     bots,
		runner:   runner,
		deps:     deps,
		lock:     cfg.Lock,
		interval: interval,
		logger:   logger,
		loops:    make(map[string]*botLoop),
		stopping: make(map[string]*botLoop),
	}, nil
}

// Start launches a loop for every active bot. Loops stop when ctx is done.
func (s *Supervisor) Start(ctx context.Context) error {
	op := "Start"
	bots, err := s.bots.FindActiveBots(ctx)
	if err != nil {
		return fmt.Errorf("%s failed: %w", op, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx != nil {
		return fmt.Errorf("%s failed: supervisor already started", op)
	}
	s.ctx = ctx
	for _, bot := range bots {
		if err := s.startLocked(bot); err != nil {
			s.logger.Error(ctx, err, op+": bot not started", map[string]interface{}{"botID": bot.ID})
		}
	}
	s.logger.Info(ctx, "Supervisor started", map[string]interface{}{
		"bots":     len(s.loops),
		"interval": s.interval.String(),
	})
	return nil
}

// Activate marks a bot active and starts its loop when the supervisor is running.
func (s *Supervisor) Activate(ctx context.Context, botID string) error {
	op := "Activate"
	bot, err := s.bots.FindBotByID(ctx, botID)
	if err != nil {
		return fmt.Errorf("%s failed: %w", op, err)
	}
	if bot == nil {
		return fmt.Errorf("%s failed: %w: bot %s", op, ports.ErrNotFound, botID)
	}
	if err := s.bots.SetBotStatus(ctx, botID, domain.BotActive); err != nil {
		return fmt.Errorf("%s failed: %w", op, err)
	}
	bot.Status = domain.BotActive

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx == nil {
		return nil
	}
	return s.startLocked(bot)
}

// Deactivate marks a bot stopped and signals its loop. A running cycle completes.
func (s *Supervisor) Deactivate(ctx context.Context, botID string) error {
	op := "Deactivate"
	if err := s.bots.SetBotStatus(ctx, botID, domain.BotStopped); err != nil {
		return fmt.Errorf("%s failed: %w", op, err)
	}

	s.mu.Lock()
	l, ok := s.loops[botID]
	if ok {
		delete(s.loops, botID)
		s.stopping[botID] = l
		close(l.stop)
	}
	s.mu.Unlock()

	if ok {
		s.logger.Info(ctx, "Bot loop stop requested", map[string]interface{}{"botID": botID})
	}
	return nil
}

// Running reports whether botID has a live loop.
func (s *Supervisor) Running(botID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.loops[botID]
	return ok
}

// Wait blocks until every loop has exited.
func (s *Supervisor) Wait() {
	s.wg.Wait()
}

func (s *Supervisor) startLocked(bot *domain.BotContext) error {
	if _, running := s.loops[bot.ID]; running {
		return nil
	}
	source, err := strategy.Resolve(bot.Strategy, s.deps, bot.Config)
	if err != nil {
		return fmt.Errorf("failed to resolve strategy for bot %s: %w", bot.ID, err)
	}
	// A loop that was asked to stop may still be finishing its cycle; the new loop
	// starts cycling only after it has exited.
	var prev <-chan struct{}
	if old, ok := s.stopping[bot.ID]; ok {
		prev = old.done
	}
	l := &botLoop{stop: make(chan struct{}), done: make(chan struct{})}
	s.loops[bot.ID] = l
	s.wg.Add(1)
	go s.run(bot.ID, source, l, prev)
	return nil
}

func (s *Supervisor) run(botID string, source strategy.Source, l *botLoop, prev <-chan struct{}) {
	defer s.wg.Done()
	defer close(l.done)
	defer s.forget(botID, l)

	ctx := s.ctx
	if prev != nil {
		<-prev
	}
	locked := false
	defer func() {
		if locked {
			if err := s.lock.Unlock(context.WithoutCancel(ctx), botID); err != nil {
				s.logger.Error(ctx, err, "Failed to release bot lock", map[string]interface{}{"botID": botID})
			}
		}
	}()

	s.logger.Info(ctx, "Bot loop started", map[string]interface{}{"botID": botID, "strategy": string(source.Kind())})
	for {
		select {
		case <-ctx.Done():
			return
		case <-l.stop:
			return
		default:
		}

		if s.acquire(ctx, botID) {
			locked = s.lock != nil
			res := s.runner.ExecuteCycle(context.WithoutCancel(ctx), botID, source)
			s.logCycle(ctx, botID, res)
			if res.Action == CycleSkipped && (res.Reason == ReasonBotInactive || res.Reason == ReasonBotNotFound) {
				s.logger.Info(ctx, "Bot no longer active, loop exiting", map[string]interface{}{"botID": botID})
				return
			}
		}

		timer := time.NewTimer(s.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-l.stop:
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// acquire takes or refreshes the bot lock. Without a lock it always succeeds.
func (s *Supervisor) acquire(ctx context.Context, botID string) bool {
	if s.lock == nil {
		return true
	}
	ok, err := s.lock.TryLock(ctx, botID)
	if err != nil {
		s.logger.Error(ctx, err, "Bot lock unavailable, skipping cycle", map[string]interface{}{"botID": botID})
		return false
	}
	if !ok {
		s.logger.Debug(ctx, "Bot is run by another process, skipping cycle", map[string]interface{}{"botID": botID})
	}
	return ok
}

func (s *Supervisor) forget(botID string, l *botLoop) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loops[botID] == l {
		delete(s.loops, botID)
	}
	if s.stopping[botID] == l {
		delete(s.stopping, botID)
	}
}

func (s *Supervisor) logCycle(ctx context.Context, botID string, res CycleResult) {
	fields := map[string]interface{}{
		"botID":   botID,
		"cycleID": res.CycleID,
		"action":  string(res.Action),
		"reason":  res.Reason,
	}
	if len(res.Warnings) > 0 {
		fields["warnings"] = res.Warnings
	}
	if res.Error != nil {
		fields["error"] = res.Error.Error()
	}
	s.logger.Info(ctx, "Cycle finished", fields)
}
