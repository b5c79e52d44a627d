package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/chrisschopp/anylogic-export/internal/artifact"
	"github.com/chrisschopp/anylogic-export/internal/patching"
	"github.com/chrisschopp/anylogic-export/internal/references"
	"github.com/chrisschopp/anylogic-export/internal/staging"
	"github.com/chrisschopp/anylogic-export/internal/watch"
)

// DefaultIdleTimeout bounds the wait for the next notification in a phase.
const DefaultIdleTimeout = 10 * time.Minute

// Patcher applies the one-time patch to a primary artifact on disk.
type Patcher interface {
	ApplyFile(path string) (patching.Result, error)
}

// Config wires a Coordinator to its collaborators.
type Config struct {
	// Primary are the launcher scripts expected from the export.
	Primary []artifact.Address
	// StageDirs are staged together once every primary artifact is
	// patched. Empty means the directories of the primary artifacts.
	StageDirs []string

	Notifier watch.Notifier
	Stager   staging.Stager
	Patcher  Patcher

	// IdleTimeout bounds each wait for a notification. Zero means
	// DefaultIdleTimeout; negative disables the bound.
	IdleTimeout time.Duration

	Logger   *slog.Logger
	Observer Observer
}

// Coordinator drives one workflow run. It owns both completion sets; they
// are only mutated on the goroutine executing Run.
type Coordinator struct {
	cfg    Config
	logger *slog.Logger

	mu    sync.Mutex
	state State

	primary   *artifact.CompletionSet
	pending   *artifact.CompletionSet
	secondary *artifact.CompletionSet

	ready     chan struct{}
	readyOnce sync.Once
}

// New validates cfg and returns a coordinator in StateAwaitingPrimary.
func New(cfg Config) (*Coordinator, error) {
	if len(cfg.Primary) == 0 {
		return nil, fmt.Errorf("coordinator: at least one primary artifact is required")
	}
	if cfg.Notifier == nil {
		return nil, fmt.Errorf("coordinator: notifier is required")
	}
	if cfg.Stager == nil {
		return nil, fmt.Errorf("coordinator: stager is required")
	}
	if cfg.Patcher == nil {
		cfg.Patcher = patching.Applier{}
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	if len(cfg.StageDirs) == 0 {
		cfg.StageDirs = parentDirs(cfg.Primary)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		cfg:       cfg,
		logger:    logger,
		state:     StateAwaitingPrimary,
		primary:   artifact.NewCompletionSet(cfg.Primary...),
		pending:   artifact.NewCompletionSet(),
		secondary: artifact.NewCompletionSet(),
		ready:     make(chan struct{}),
	}, nil
}

// State returns the current state. Safe to call from any goroutine.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Ready is closed once the primary subscription is live, so nothing the
// export writes afterwards can be missed.
func (c *Coordinator) Ready() <-chan struct{} {
	return c.ready
}

// Summary is a snapshot of both completion sets.
type Summary struct {
	State     State
	Primary   map[string]bool
	Secondary map[string]bool
}

// Summary reports the completion sets. Call it after Run has returned.
func (c *Coordinator) Summary() Summary {
	return Summary{
		State:     c.State(),
		Primary:   c.primary.Snapshot(),
		Secondary: c.secondary.Snapshot(),
	}
}

// Run executes both phases. It returns nil when every secondary artifact has
// been staged, a *patching.NotFoundError when a script lacks the expected
// line, a *StalledError on idle timeout, a *StreamClosedError when a
// subscription ends early, or the context's error.
func (c *Coordinator) Run(ctx context.Context) (err error) {
	if s := c.State(); s != StateAwaitingPrimary {
		return fmt.Errorf("coordinator: run already started (state %s)", s)
	}
	defer func() {
		if err != nil {
			c.fail(err)
		}
	}()

	if err := c.runPrimary(ctx); err != nil {
		return err
	}
	return c.runSecondary(ctx)
}

func (c *Coordinator) runPrimary(ctx context.Context) error {
	sub, err := c.cfg.Notifier.Subscribe(ctx, c.primary.Addresses())
	if err != nil {
		return fmt.Errorf("subscribe to primary artifacts: %w", err)
	}
	defer sub.Close()

	if err := c.transition(StatePrimarySettling); err != nil {
		return err
	}
	c.readyOnce.Do(func() { close(c.ready) })
	c.logger.Info("waiting for launcher scripts", "count", c.primary.Len())

	return c.consume(ctx, sub, c.primary, c.handlePrimary)
}

func (c *Coordinator) runSecondary(ctx context.Context) error {
	if c.pending.Len() == 0 {
		c.logger.Warn("no archive references found; nothing to wait for")
		return c.transition(StateDone)
	}

	c.secondary = artifact.NewCompletionSet(c.pending.Addresses()...)
	sub, err := c.cfg.Notifier.Subscribe(ctx, c.secondary.Addresses())
	if err != nil {
		return fmt.Errorf("subscribe to archives: %w", err)
	}
	defer sub.Close()

	if err := c.transition(StateSecondarySettling); err != nil {
		return err
	}
	c.logger.Info("waiting for archives", "paths", artifact.Paths(c.secondary.Addresses()))

	return c.consume(ctx, sub, c.secondary, c.handleSecondary)
}

type handler func(ctx context.Context, ev watch.Event) (done bool, err error)

// consume processes batches in delivery order until handle reports the
// phase done.
func (c *Coordinator) consume(ctx context.Context, sub watch.Subscription, set *artifact.CompletionSet, handle handler) error {
	var timer *time.Timer
	var idle <-chan time.Time
	if c.cfg.IdleTimeout > 0 {
		timer = time.NewTimer(c.cfg.IdleTimeout)
		defer timer.Stop()
		idle = timer.C
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-idle:
			return &StalledError{State: c.State(), Idle: c.cfg.IdleTimeout, Unsettled: set.Unsettled()}
		case batch, ok := <-sub.Events():
			if !ok {
				return &StreamClosedError{State: c.State(), Unsettled: set.Unsettled()}
			}
			for _, ev := range batch {
				done, err := handle(ctx, ev)
				if err != nil {
					return err
				}
				if done {
					return nil
				}
			}
			if timer != nil {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(c.cfg.IdleTimeout)
			}
		}
	}
}

func (c *Coordinator) handlePrimary(ctx context.Context, ev watch.Event) (bool, error) {
	addr, ok := c.tracked(c.primary, ev)
	if !ok {
		return false, nil
	}

	res, err := c.cfg.Patcher.ApplyFile(addr.Path)
	if err != nil {
		return false, err
	}
	if !res.WasPresent {
		return false, &patching.NotFoundError{Path: addr.Path, Target: res.Target}
	}
	c.logger.Info("chrome reference removed", "script", addr.Path, "experiment", filepath.Base(addr.Dir()))

	_, reached := c.primary.Settle(addr.Path)
	c.emit(Event{Kind: EventSettled, Address: addr})

	refs := references.Extract(res.Text, addr.Dir())
	if len(refs) == 0 {
		c.logger.Warn("launcher line names no archive", "script", addr.Path)
		c.emit(Event{Kind: EventNoReferences, Address: addr})
	}
	for _, ref := range refs {
		if c.pending.Track(ref) {
			c.emit(Event{Kind: EventReference, Address: ref, Detail: addr.Path})
		}
	}

	if !reached {
		return false, nil
	}
	c.stage(ctx, c.cfg.StageDirs...)
	return true, c.transition(StateAwaitingSecondary)
}

func (c *Coordinator) handleSecondary(ctx context.Context, ev watch.Event) (bool, error) {
	addr, ok := c.tracked(c.secondary, ev)
	if !ok {
		return false, nil
	}

	c.stage(ctx, addr.Path)
	_, reached := c.secondary.Settle(addr.Path)
	c.emit(Event{Kind: EventSettled, Address: addr})
	c.logger.Info("archive settled", "archive", addr.Base(), "path", addr.Path, "unsettled", len(c.secondary.Unsettled()))

	if !reached {
		return false, nil
	}
	c.logger.Info("all archives staged", "count", c.secondary.Len())
	return true, c.transition(StateDone)
}

// tracked returns the address an event refers to when it can settle it.
// Deletions never settle an address, and repeated notifications for a
// settled address are no-ops.
func (c *Coordinator) tracked(set *artifact.CompletionSet, ev watch.Event) (artifact.Address, bool) {
	path := filepath.Clean(ev.Path)
	if !set.Contains(path) {
		return artifact.Address{}, false
	}
	if ev.Kind == watch.Deleted {
		c.emit(Event{Kind: EventIgnored, Address: artifact.NewAddress(path, ""), Detail: string(ev.Kind)})
		return artifact.Address{}, false
	}
	if set.IsSettled(path) {
		return artifact.Address{}, false
	}
	return set.Get(path)
}

// stage is best effort: a failure is logged and reported but never stops the
// run or changes settlement.
func (c *Coordinator) stage(ctx context.Context, paths ...string) {
	if err := c.cfg.Stager.Stage(ctx, paths...); err != nil {
		c.logger.Error("staging failed", "paths", paths, "error", err)
		c.emit(Event{Kind: EventStageFailed, Paths: paths, Err: err})
		return
	}
	c.logger.Info("staged", "paths", paths)
	c.emit(Event{Kind: EventStaged, Paths: paths})
}

func (c *Coordinator) transition(to State) error {
	c.mu.Lock()
	from := c.state
	if !canTransition(from, to) {
		c.mu.Unlock()
		return &TransitionError{From: from, To: to}
	}
	c.state = to
	c.mu.Unlock()

	c.logger.Debug("state changed", "from", from, "to", to)
	c.emit(Event{Kind: EventStateChanged, From: from, State: to})
	return nil
}

func (c *Coordinator) fail(cause error) {
	c.mu.Lock()
	from := c.state
	if from.Terminal() {
		c.mu.Unlock()
		return
	}
	c.state = StateFailed
	c.mu.Unlock()

	var stalled *StalledError
	if errors.As(cause, &stalled) {
		c.logger.Error("run stalled", "phase", from.Phase(), "error", cause)
	} else {
		c.logger.Error("run failed", "phase", from.Phase(), "error", cause)
	}
	c.emit(Event{Kind: EventStateChanged, From: from, State: StateFailed, Err: cause})
}

func (c *Coordinator) emit(ev Event) {
	if c.cfg.Observer == nil {
		return
	}
	if ev.State == "" {
		ev.State = c.State()
	}
	ev.Time = time.Now()
	c.cfg.Observer(ev)
}

func parentDirs(addrs []artifact.Address) []string {
	seen := make(map[string]bool)
	var dirs []string
	for _, a := range addrs {
		d := a.Dir()
		if !seen[d] {
			seen[d] = true
			dirs = append(dirs, d)
		}
	}
	return dirs
}
