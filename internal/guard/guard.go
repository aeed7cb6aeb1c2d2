package guard

import (
	"context"
	"log"
	"sync"
	"time"
)

// HealthLevel масштабирует бюджеты стадий при деградации системы
type HealthLevel string

const (
	HealthHealthy  HealthLevel = "healthy"
	HealthDegraded HealthLevel = "degraded"
	HealthCritical HealthLevel = "critical"
)

var healthScales = map[HealthLevel]float64{
	HealthHealthy:  1.0,
	HealthDegraded: 0.8,
	HealthCritical: 0.6,
}

// Минимумы, ниже которых стадия не запускается в ExecuteSequence
const (
	minStageMillis = 200
	minStageTokens = 50

	// historySize — глубина кольца истории исполнений на стадию
	historySize = 100
	// recentWindow — окно для pre-execution абстенции
	recentWindow = 5

	defaultAbstentionThreshold = 1.0
	// tightenedThreshold применяется к стадии, чья недавняя утилизация
	// токенов превышает highUtilization
	tightenedThreshold = 0.9
	highUtilization    = 0.9

	// Доли таймаутов в недавней истории, переключающие health
	degradedTimeoutRate = 0.2
	criticalTimeoutRate = 0.5
)

// StageBudget — бюджет одной стадии: токены и wall-clock
type StageBudget struct {
	Tokens int
	Millis int
}

// StageFn — исполняемая стадия. Возвращает потраченные токены.
type StageFn func(ctx context.Context) (tokensUsed int, err error)

// FallbackFn — детерминированный fallback стадии, бюджета не требует
type FallbackFn func(ctx context.Context) error

// Outcome — результат исполнения стадии под guard'ом
type Outcome struct {
	Stage        string
	Abstained    bool
	FallbackUsed bool
	TimedOut     bool
	TokensUsed   int
	Elapsed      time.Duration
	Reason       string
	Err          error
}

type execRecord struct {
	elapsed    time.Duration
	tokensUsed int
	timedOut   bool
}

// StageGuard охраняет бюджеты стадий: гонка с таймаутом, учет токенов,
// абстенция по истории, аварийное отключение. Потокобезопасен.
type StageGuard struct {
	mu        sync.RWMutex
	budgets   map[string]StageBudget
	fallbacks map[string]FallbackFn
	history   map[string][]execRecord
	health    HealthLevel
	shutdown  bool

	// thresholds — порог абстенции per stage: стадия с высокой недавней
	// утилизацией токенов ужесточается, не трогая остальные
	thresholds map[string]float64

	adjustTicker *time.Ticker
	stopChan     chan struct{}
}

// NewStageGuard создает guard с заданными бюджетами стадий
func NewStageGuard(budgets map[string]StageBudget) *StageGuard {
	return &StageGuard{
		budgets:    budgets,
		fallbacks:  make(map[string]FallbackFn),
		history:    make(map[string][]execRecord),
		health:     HealthHealthy,
		thresholds: make(map[string]float64),
		stopChan:   make(chan struct{}),
	}
}

// StartAdaptive запускает периодическую рекалибровку health по недавней
// истории таймаутов. Повторный запуск — no-op.
func (g *StageGuard) StartAdaptive(interval time.Duration) {
	g.mu.Lock()
	if g.adjustTicker != nil || interval <= 0 {
		g.mu.Unlock()
		return
	}
	ticker := time.NewTicker(interval)
	g.adjustTicker = ticker
	g.mu.Unlock()

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				g.recalibrate()
			case <-g.stopChan:
				return
			}
		}
	}()
}

// Stop останавливает адаптивную рутину
func (g *StageGuard) Stop() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.adjustTicker != nil {
		close(g.stopChan)
		g.adjustTicker.Stop()
		g.adjustTicker = nil
	}
}

// recalibrate выводит health из доли таймаутов в недавних исполнениях
// всех стадий: >50% — critical, >20% — degraded, иначе healthy
func (g *StageGuard) recalibrate() {
	g.mu.RLock()
	total, timedOut := 0, 0
	for _, hist := range g.history {
		recent := hist
		if len(recent) > recentWindow {
			recent = recent[len(recent)-recentWindow:]
		}
		for _, r := range recent {
			total++
			if r.timedOut {
				timedOut++
			}
		}
	}
	current := g.health
	g.mu.RUnlock()

	if total == 0 {
		return
	}

	rate := float64(timedOut) / float64(total)
	next := HealthHealthy
	switch {
	case rate >= criticalTimeoutRate:
		next = HealthCritical
	case rate >= degradedTimeoutRate:
		next = HealthDegraded
	}
	if next != current {
		g.SetHealth(next)
	}
}

// RegisterFallback регистрирует детерминированный fallback стадии
func (g *StageGuard) RegisterFallback(stage string, fn FallbackFn) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.fallbacks[stage] = fn
}

// SetHealth меняет уровень здоровья: бюджеты масштабируются 1.0/0.8/0.6
func (g *StageGuard) SetHealth(level HealthLevel) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := healthScales[level]; !ok {
		return
	}
	g.health = level
	log.Printf("🔵 Stage guard health: %s (scale %.1f)", level, healthScales[level])
}

// EmergencyShutdown обнуляет все бюджеты: каждая стадия с этого момента
// абстенируется и идет по fallback-пути
func (g *StageGuard) EmergencyShutdown() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.shutdown = true
	log.Printf("⚠️ Stage guard: emergency shutdown, all budgets zeroed")
}

// Budget возвращает эффективный (масштабированный) бюджет стадии
func (g *StageGuard) Budget(stage string) (StageBudget, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.effectiveBudget(stage)
}

func (g *StageGuard) effectiveBudget(stage string) (StageBudget, bool) {
	b, ok := g.budgets[stage]
	if !ok {
		return StageBudget{}, false
	}
	if g.shutdown {
		return StageBudget{}, true
	}
	scale := healthScales[g.health]
	return StageBudget{
		Tokens: int(float64(b.Tokens) * scale),
		Millis: int(float64(b.Millis) * scale),
	}, true
}

// Execute запускает стадию под guard'ом: таймаут по бюджету, учет токенов,
// pre-execution абстенция по истории. При абстенции или таймауте вызывает
// зарегистрированный fallback.
func (g *StageGuard) Execute(ctx context.Context, stage string, fn StageFn) *Outcome {
	budget, known := g.Budget(stage)
	if !known {
		// Стадии без бюджета исполняются без ограничений guard'а
		start := time.Now()
		tokens, err := fn(ctx)
		return &Outcome{Stage: stage, TokensUsed: tokens, Elapsed: time.Since(start), Err: err}
	}

	if budget.Millis <= 0 {
		return g.abstain(ctx, stage, "budget exhausted")
	}

	if g.predictsOverrun(stage, budget) {
		return g.abstain(ctx, stage, "recent executions exceed budget")
	}

	timeout := time.Duration(budget.Millis) * time.Millisecond
	stageCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type stageDone struct {
		tokens int
		err    error
	}
	done := make(chan stageDone, 1)
	start := time.Now()

	go func() {
		tokens, err := fn(stageCtx)
		done <- stageDone{tokens: tokens, err: err}
	}()

	select {
	case res := <-done:
		elapsed := time.Since(start)
		g.record(stage, budget, execRecord{elapsed: elapsed, tokensUsed: res.tokens})

		out := &Outcome{
			Stage:      stage,
			TokensUsed: res.tokens,
			Elapsed:    elapsed,
			Err:        res.err,
		}
		if res.tokens > budget.Tokens && budget.Tokens > 0 {
			out.Reason = "token budget exceeded"
			log.Printf("⚠️ Stage %s spent %d tokens over budget %d", stage, res.tokens, budget.Tokens)
		}
		return out

	case <-stageCtx.Done():
		elapsed := time.Since(start)
		g.record(stage, budget, execRecord{elapsed: elapsed, timedOut: true})
		log.Printf("⚠️ Stage %s timed out after %v", stage, elapsed)

		out := g.abstain(ctx, stage, "wall-clock budget exceeded")
		out.TimedOut = true
		out.Elapsed = elapsed
		return out
	}
}

// ExecuteSequence исполняет стадии последовательно в рамках общего остатка.
// Стадия со слишком малым остатком (< 200ms или < 50 токенов) пропускается
// с абстенцией, а не запускается на голодном пайке.
func (g *StageGuard) ExecuteSequence(ctx context.Context, stages []string, fns map[string]StageFn) []*Outcome {
	remaining := StageBudget{}
	for _, s := range stages {
		if b, ok := g.Budget(s); ok {
			remaining.Tokens += b.Tokens
			remaining.Millis += b.Millis
		}
	}

	outcomes := make([]*Outcome, 0, len(stages))
	for _, s := range stages {
		fn, ok := fns[s]
		if !ok {
			continue
		}
		if remaining.Millis < minStageMillis || remaining.Tokens < minStageTokens {
			outcomes = append(outcomes, g.abstain(ctx, s, "sequence budget depleted"))
			continue
		}

		out := g.Execute(ctx, s, fn)
		outcomes = append(outcomes, out)

		remaining.Millis -= int(out.Elapsed / time.Millisecond)
		remaining.Tokens -= out.TokensUsed
	}
	return outcomes
}

// abstain оформляет абстенцию стадии и гоняет fallback, если он есть
func (g *StageGuard) abstain(ctx context.Context, stage, reason string) *Outcome {
	out := &Outcome{Stage: stage, Abstained: true, Reason: reason}

	g.mu.RLock()
	fb := g.fallbacks[stage]
	g.mu.RUnlock()

	if fb != nil {
		if err := fb(ctx); err != nil {
			out.Err = err
		} else {
			out.FallbackUsed = true
		}
	}
	log.Printf("⚪ Stage %s abstained: %s", stage, reason)
	return out
}

// predictsOverrun — pre-execution абстенция: среднее последних запусков
// уже превышает порог × бюджет, запускаться бессмысленно
func (g *StageGuard) predictsOverrun(stage string, budget StageBudget) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	hist := g.history[stage]
	if len(hist) < recentWindow {
		return false
	}

	recent := hist[len(hist)-recentWindow:]
	var sum time.Duration
	for _, r := range recent {
		sum += r.elapsed
	}
	mean := sum / time.Duration(len(recent))

	threshold, ok := g.thresholds[stage]
	if !ok {
		threshold = defaultAbstentionThreshold
	}
	limit := time.Duration(float64(budget.Millis)*threshold) * time.Millisecond
	return mean > limit
}

// record пишет исполнение в кольцо истории и подтягивает порог абстенции
// стадии при высокой утилизации ее токенного бюджета в недавнем окне
func (g *StageGuard) record(stage string, budget StageBudget, rec execRecord) {
	g.mu.Lock()
	defer g.mu.Unlock()

	hist := append(g.history[stage], rec)
	if len(hist) > historySize {
		hist = hist[len(hist)-historySize:]
	}
	g.history[stage] = hist

	if budget.Tokens <= 0 {
		return
	}

	recent := hist
	if len(recent) > recentWindow {
		recent = recent[len(recent)-recentWindow:]
	}
	spent := 0
	for _, r := range recent {
		spent += r.tokensUsed
	}
	utilization := float64(spent) / float64(budget.Tokens*len(recent))
	if utilization > highUtilization {
		g.thresholds[stage] = tightenedThreshold
	} else {
		g.thresholds[stage] = defaultAbstentionThreshold
	}
}
