package domain

import (
	"errors"
	"sync"
	"time"
)

// Phase is the animation phase of the quiz wizard.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseExiting    Phase = "exiting"
	PhaseEntering   Phase = "entering"
	PhaseProcessing Phase = "processing"
)

// Timings are the durations of the transition stages.
type Timings struct {
	SurgeDelay         time.Duration
	ExitDuration       time.Duration
	EnterDuration      time.Duration
	ProcessingDuration time.Duration
}

// DefaultTimings returns the stock animation durations.
func DefaultTimings() Timings {
	return Timings{
		SurgeDelay:         400 * time.Millisecond,
		ExitDuration:       400 * time.Millisecond,
		EnterDuration:      500 * time.Millisecond,
		ProcessingDuration: 2500 * time.Millisecond,
	}
}

// Validate checks that the durations describe a schedulable plan.
func (t Timings) Validate() error {
	if t.SurgeDelay < 0 || t.ExitDuration < 0 || t.EnterDuration < 0 || t.ProcessingDuration < 0 {
		return NewValidationError("timings", "durations must not be negative")
	}
	if t.SurgeDelay > t.ExitDuration {
		return NewValidationError("timings", "surge delay must not exceed exit duration")
	}

	return nil
}

// Timer is a pending scheduled callback.
type Timer interface {
	Stop() bool
}

// Scheduler arms timers. Production code uses SystemScheduler.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type systemScheduler struct{}

func (systemScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// SystemScheduler returns a Scheduler backed by time.AfterFunc.
func SystemScheduler() Scheduler {
	return systemScheduler{}
}

// TransitionState is a point-in-time view of the controller.
type TransitionState struct {
	Step            Step  `json:"step"`
	Phase           Phase `json:"phase"`
	Surging         bool  `json:"surging"`
	ProgressVisible bool  `json:"progressVisible"`
	Finished        bool  `json:"finished"`
}

// stage is one delayed effect of a transition plan.
type stage struct {
	delay  time.Duration
	effect func(s *TransitionState)
}

// ErrControllerClosed is returned by operations on a closed controller.
var ErrControllerClosed = errors.New("transition controller closed")

// Controller sequences the wizard through its steps. Every request builds a
// plan of stages; exactly one timer is armed at a time and each fire applies
// one stage then arms the next. Stale fires are discarded by generation.
type Controller struct {
	mu         sync.Mutex
	sched      Scheduler
	timings    Timings
	onFinished func()

	state    TransitionState
	plan     []stage
	gen      uint64
	timer    Timer
	notified bool
	closed   bool
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithScheduler sets the timer source.
func WithScheduler(s Scheduler) ControllerOption {
	return func(c *Controller) {
		c.sched = s
	}
}

// WithTimings overrides the default stage durations.
func WithTimings(t Timings) ControllerOption {
	return func(c *Controller) {
		c.timings = t
	}
}

// WithOnFinished registers the callback invoked once processing completes.
// It runs outside the controller lock.
func WithOnFinished(f func()) ControllerOption {
	return func(c *Controller) {
		c.onFinished = f
	}
}

// NewController returns an idle controller on the first step.
func NewController(opts ...ControllerOption) *Controller {
	c := &Controller{
		sched:   SystemScheduler(),
		timings: DefaultTimings(),
		state: TransitionState{
			Step:            FirstStep,
			Phase:           PhaseIdle,
			ProgressVisible: true,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// State returns a copy of the current state.
func (c *Controller) State() TransitionState {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.state
}

// Advance requests the next step, or the final processing sequence on the
// last step. It reports false and changes nothing when the controller is
// busy, finished or closed, or when the answers do not satisfy the step.
func (c *Controller) Advance(a QuizAnswers) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.readyLocked() || !CanAdvance(c.state.Step, a) {
		return false
	}

	t := c.timings

	if c.state.Step == LastStep {
		c.state.Phase = PhaseProcessing
		c.state.ProgressVisible = false
		c.startLocked([]stage{
			{delay: t.ProcessingDuration, effect: func(s *TransitionState) {
				s.Finished = true
			}},
		})

		return true
	}

	c.state.Phase = PhaseExiting
	c.startLocked([]stage{
		{delay: t.SurgeDelay, effect: func(s *TransitionState) {
			s.Surging = true
		}},
		{delay: t.ExitDuration - t.SurgeDelay, effect: func(s *TransitionState) {
			s.Step++
			s.Phase = PhaseEntering
		}},
		{delay: t.EnterDuration, effect: func(s *TransitionState) {
			s.Phase = PhaseIdle
			s.Surging = false
		}},
	})

	return true
}

// Retreat requests the previous step. The surge effect is never raised.
func (c *Controller) Retreat() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.readyLocked() || c.state.Step <= FirstStep {
		return false
	}

	t := c.timings

	c.state.Phase = PhaseExiting
	c.startLocked([]stage{
		{delay: t.ExitDuration, effect: func(s *TransitionState) {
			s.Step--
			s.Phase = PhaseEntering
		}},
		{delay: t.EnterDuration, effect: func(s *TransitionState) {
			s.Phase = PhaseIdle
		}},
	})

	return true
}

// Close cancels any pending stage. No callback fires after Close returns.
func (c *Controller) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrControllerClosed
	}

	c.closed = true
	c.gen++
	c.plan = nil
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}

	return nil
}

func (c *Controller) readyLocked() bool {
	return !c.closed && !c.state.Finished && c.state.Phase == PhaseIdle
}

func (c *Controller) startLocked(plan []stage) {
	c.plan = plan
	c.armLocked()
}

func (c *Controller) armLocked() {
	c.timer = nil
	if len(c.plan) == 0 {
		return
	}

	c.gen++
	gen := c.gen
	c.timer = c.sched.AfterFunc(c.plan[0].delay, func() {
		c.fire(gen)
	})
}

func (c *Controller) fire(gen uint64) {
	c.mu.Lock()

	if c.closed || gen != c.gen || len(c.plan) == 0 {
		c.mu.Unlock()
		return
	}

	next := c.plan[0]
	c.plan = c.plan[1:]
	next.effect(&c.state)
	c.armLocked()

	var callback func()
	if c.state.Finished && !c.notified {
		c.notified = true
		callback = c.onFinished
	}

	c.mu.Unlock()

	if callback != nil {
		callback()
	}
}
