// -- pkg/agent/loop.go --
package agent

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/prospector-cli/internal/config"
	"github.com/xkilldash9x/prospector-cli/pkg/browser"
	"github.com/xkilldash9x/prospector-cli/pkg/decoder"
	"github.com/xkilldash9x/prospector-cli/pkg/extract"
	"github.com/xkilldash9x/prospector-cli/pkg/gateway"
)

// cancelledReason is the error string recorded when a run is cancelled
// between steps.
const cancelledReason = "cancelled"

// Extractor is the contact harvesting stage the loop runs after
// state-changing actions. ContactCap bounds the accumulated contact
// set across the whole run, not just a single scan.
type Extractor interface {
	Scan(ctx context.Context, port browser.ControlPort, screenshot []byte, target string) []extract.Contact
	ContactCap() int
}

// Loop drives one task at a time through the capture, decide, act
// cycle. It owns the run state for the duration of a task and is the
// single place where failures become terminal results.
type Loop struct {
	cfg       config.AgentConfig
	logger    *zap.Logger
	gw        gateway.Decider
	dec       *decoder.Decoder
	extractor Extractor
	observers *observerSet

	// sleep is swappable so tests can run with a recorded clock.
	sleep func(ctx context.Context, d time.Duration)
}

// NewLoop builds a Loop over the shared gateway and extraction stage.
func NewLoop(cfg config.AgentConfig, logger *zap.Logger, gw gateway.Decider, extractor Extractor) *Loop {
	logger = logger.Named("agent")
	return &Loop{
		cfg:       cfg,
		logger:    logger,
		gw:        gw,
		dec:       decoder.NewDecoder(logger),
		extractor: extractor,
		observers: newObserverSet(),
		sleep:     sleepContext,
	}
}

// Register subscribes an observer to live progress. Observers are
// unregistered automatically when a run reaches a terminal state.
func (l *Loop) Register(o Observer)   { l.observers.register(o) }
func (l *Loop) Unregister(o Observer) { l.observers.unregister(o) }

// Run executes the task to completion and returns its terminal result.
// The result always carries the contacts gathered so far, the final
// URL when it can still be read, and a human-readable summary or
// error, regardless of how the run ended.
func (l *Loop) Run(ctx context.Context, port browser.ControlPort, task Task) Result {
	if task.ID == "" {
		task.ID = uuid.New().String()[:8]
	}
	logger := l.logger.With(zap.String("run_id", task.ID))

	state := &runState{
		task:      task,
		maxSteps:  l.cfg.MaxSteps,
		status:    StatusRunning,
		startedAt: time.Now(),
	}
	logger.Info("Run starting",
		zap.String("instruction", task.Instruction),
		zap.String("start_url", task.StartURL),
		zap.Int("max_steps", state.maxSteps))

	if task.StartURL != "" {
		if err := port.Navigate(ctx, task.StartURL); err != nil {
			l.fail(state, "could not open the start page", err)
			return l.finish(ctx, port, state, logger)
		}
	}

	for state.stepIndex < state.maxSteps && state.status == StatusRunning {
		if ctx.Err() != nil {
			l.fail(state, cancelledReason, ctx.Err())
			break
		}
		l.step(ctx, port, state, logger)
	}
	if state.status == StatusRunning {
		state.status = StatusStoppedAtLimit
		logger.Info("Step budget exhausted", zap.Int("steps", state.stepIndex))
	}

	return l.finish(ctx, port, state, logger)
}

// step runs one capture/decide/act iteration. The screenshot taken
// here lives only for this iteration.
func (l *Loop) step(ctx context.Context, port browser.ControlPort, state *runState, logger *zap.Logger) {
	stepLogger := logger.With(zap.Int("step", state.stepIndex))

	screenshot, err := port.Screenshot(ctx)
	if err != nil {
		l.fail(state, "screenshot capture failed", err)
		return
	}

	raw, err := l.gw.Decide(ctx, screenshot, l.decisionPrompt(state))
	if err != nil {
		reason := "model decision failed"
		if ctx.Err() != nil {
			reason = cancelledReason
		}
		l.fail(state, reason, err)
		return
	}

	action := l.dec.Parse(raw)
	stepLogger.Info("Action decided", zap.String("action", action.String()))

	extractAfter := false
	switch action.Kind {
	case decoder.KindDone:
		l.harvest(ctx, port, state, screenshot, stepLogger)
		state.status = StatusSucceeded
		state.summary = action.Summary
	case decoder.KindClick:
		if err := port.Click(ctx, action.X, action.Y); err != nil {
			if errors.Is(err, browser.ErrInvalidCoordinates) {
				stepLogger.Warn("Click target unusable, scrolling instead",
					zap.Int("x", action.X), zap.Int("y", action.Y))
				action = decoder.ScrollDown()
				if err := port.Scroll(ctx, string(action.Direction)); err != nil {
					l.fail(state, "scroll failed", err)
					return
				}
			} else {
				l.fail(state, "click failed", err)
				return
			}
		} else {
			extractAfter = true
		}
	case decoder.KindType:
		if err := port.Type(ctx, action.Text, action.Submit); err != nil {
			l.fail(state, "typing failed", err)
			return
		}
		extractAfter = true
	case decoder.KindScroll:
		if err := port.Scroll(ctx, string(action.Direction)); err != nil {
			l.fail(state, "scroll failed", err)
			return
		}
	}

	if extractAfter {
		// The pre-action screenshot is stale once the page reacted, so
		// the opportunistic pass works from the DOM alone.
		l.harvest(ctx, port, state, nil, stepLogger)
	}

	l.record(state, action)
	l.observers.notifyStep(StepEvent{
		RunID:      state.task.ID,
		StepIndex:  state.stepIndex,
		Action:     action.String(),
		StatusLine: fmt.Sprintf("step %d/%d: %s", state.stepIndex+1, state.maxSteps, action.String()),
		Contacts:   len(state.contacts),
	})

	state.stepIndex++
	if state.status == StatusRunning && l.cfg.StepDelay > 0 {
		l.sleep(ctx, l.cfg.StepDelay)
	}
}

// harvest runs the extraction stage and folds new contacts into the
// run's deduplicated set.
func (l *Loop) harvest(ctx context.Context, port browser.ControlPort, state *runState, screenshot []byte, logger *zap.Logger) {
	if l.extractor == nil {
		return
	}
	found := l.extractor.Scan(ctx, port, screenshot, state.task.Instruction)
	if len(found) == 0 {
		return
	}

	seen := make(map[string]int, len(state.contacts))
	for i, c := range state.contacts {
		seen[c.Key()] = i
	}
	added := 0
	for _, c := range found {
		if i, ok := seen[c.Key()]; ok {
			if c.Confidence > state.contacts[i].Confidence {
				state.contacts[i] = c
			}
			continue
		}
		seen[c.Key()] = len(state.contacts)
		state.contacts = append(state.contacts, c)
		added++
	}
	if limit := l.extractor.ContactCap(); limit > 0 && len(state.contacts) > limit {
		state.contacts = sortedContacts(state.contacts)[:limit]
	}
	if added > 0 {
		logger.Info("Contacts harvested",
			zap.Int("new", added), zap.Int("total", len(state.contacts)))
	}
}

// record appends the executed action to the log, trimming it to the
// configured number of most recent entries.
func (l *Loop) record(state *runState, action decoder.Action) {
	state.actionLog = append(state.actionLog, action.String())
	if limit := l.cfg.ActionLogLimit; limit > 0 && len(state.actionLog) > limit {
		state.actionLog = state.actionLog[len(state.actionLog)-limit:]
	}
}

func (l *Loop) fail(state *runState, reason string, err error) {
	state.status = StatusFailed
	state.lastErr = fmt.Errorf("%s: %w", reason, err)
	l.logger.Error("Run failed",
		zap.String("run_id", state.task.ID),
		zap.Int("step", state.stepIndex),
		zap.String("reason", reason),
		zap.Error(err))
}

// finish converts the run state into the terminal Result and delivers
// it to the observers, unregistering them.
func (l *Loop) finish(ctx context.Context, port browser.ControlPort, state *runState, logger *zap.Logger) Result {
	result := Result{
		RunID:    state.task.ID,
		Status:   state.status,
		Success:  state.status == StatusSucceeded,
		Steps:    state.stepIndex,
		Contacts: sortedContacts(state.contacts),
		Elapsed:  time.Since(state.startedAt),
	}

	switch state.status {
	case StatusSucceeded:
		result.Summary = state.summary
		if result.Summary == "" {
			result.Summary = "Task completed"
		}
	case StatusStoppedAtLimit:
		result.Summary = fmt.Sprintf("stopped after %d steps without completing the task", state.stepIndex)
	case StatusFailed:
		result.Summary = "run failed before completing the task"
		if state.lastErr != nil {
			result.Error = state.lastErr.Error()
		}
	}

	// Best effort: the page may already be gone, and a cancelled run
	// context cannot be used for the read.
	urlCtx := ctx
	if urlCtx.Err() != nil {
		var cancel context.CancelFunc
		urlCtx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
	}
	if finalURL, err := port.CurrentURL(urlCtx); err == nil {
		result.FinalURL = finalURL
	}

	logger.Info("Run finished",
		zap.String("status", string(result.Status)),
		zap.Int("steps", result.Steps),
		zap.Int("contacts", len(result.Contacts)),
		zap.Duration("elapsed", result.Elapsed))

	l.observers.notifyResult(result)
	return result
}

// decisionPrompt renders the instruction, progress so far, and the
// action protocol the model must answer in.
func (l *Loop) decisionPrompt(state *runState) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are operating a web browser to research: %s\n", state.task.Instruction)
	fmt.Fprintf(&sb, "This is step %d of at most %d.\n", state.stepIndex+1, state.maxSteps)
	if len(state.actionLog) > 0 {
		sb.WriteString("Actions taken so far:\n")
		for _, entry := range state.actionLog {
			fmt.Fprintf(&sb, "- %s\n", entry)
		}
	}
	sb.WriteString(`Look at the attached screenshot and answer with exactly one line:
CLICK x y           click at viewport coordinates
TYPE text [SUBMIT]  type into the focused field, SUBMIT presses enter
SCROLL up|down      scroll the page
DONE summary        the task is complete; summarize what was found
`)
	return sb.String()
}

func sortedContacts(contacts []extract.Contact) []extract.Contact {
	out := make([]extract.Contact, len(contacts))
	copy(out, contacts)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Confidence != out[j].Confidence {
			return out[i].Confidence > out[j].Confidence
		}
		return out[i].Key() < out[j].Key()
	})
	return out
}

func sleepContext(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
