package driven

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/BetterCallFirewall/Anchorecon/internal/anchor"
	"github.com/BetterCallFirewall/Anchorecon/internal/config"
	"github.com/BetterCallFirewall/Anchorecon/internal/extract"
	"github.com/BetterCallFirewall/Anchorecon/internal/guard"
	"github.com/BetterCallFirewall/Anchorecon/internal/limits"
	"github.com/BetterCallFirewall/Anchorecon/internal/llm"
	"github.com/BetterCallFirewall/Anchorecon/internal/models"
	"github.com/BetterCallFirewall/Anchorecon/internal/negotiate"
	"github.com/BetterCallFirewall/Anchorecon/internal/storage"
	"github.com/BetterCallFirewall/Anchorecon/internal/telemetry"
	"github.com/BetterCallFirewall/Anchorecon/internal/utils"
)

// Имена стадий pipeline — ключи бюджетов guard'а
const (
	StageContract      = "contract"
	StageDeterministic = "deterministic"
	StageAugmentation  = "augmentation"
	StageValidation    = "validation"
	StageNegotiation   = "negotiation"
)

// BudgetsFrom собирает карту бюджетов стадий из конфига
func BudgetsFrom(cfg config.BudgetConfig) map[string]guard.StageBudget {
	return map[string]guard.StageBudget{
		StageContract:      {Tokens: cfg.ContractTokens, Millis: cfg.ContractMillis},
		StageDeterministic: {Tokens: 0, Millis: cfg.DeterministicMillis},
		StageAugmentation:  {Tokens: cfg.AugmentTokens, Millis: cfg.AugmentMillis},
		StageValidation:    {Tokens: cfg.ValidationTokens, Millis: cfg.ValidationMillis},
		StageNegotiation:   {Tokens: cfg.NegotiationTokens, Millis: cfg.NegotiationMillis},
	}
}

// Pipeline — оркестратор: отпечаток → идемпотентность → контракт → индекс →
// Track A → (Track B ∥ round-trip валидация) → negotiation → записи.
type Pipeline struct {
	contracts  *llm.ContractGenerator
	trackA     *extract.TrackA
	augmenter  *llm.Augmenter
	negotiator *negotiate.Negotiator
	guard      *guard.StageGuard
	limiter    *limits.ExtractionLimiter

	idempotency *storage.IdempotencyStore
	hashCache   *storage.HashCache
	emitter     *telemetry.Emitter

	anchorValidation bool
}

// Deps — зависимости pipeline, собираются в cmd
type Deps struct {
	Contracts  *llm.ContractGenerator
	TrackA     *extract.TrackA
	Augmenter  *llm.Augmenter
	Negotiator *negotiate.Negotiator
	Guard      *guard.StageGuard
	Limiter    *limits.ExtractionLimiter

	Idempotency *storage.IdempotencyStore
	HashCache   *storage.HashCache
	Emitter     *telemetry.Emitter

	AnchorValidation bool
}

func NewPipeline(deps Deps) *Pipeline {
	if deps.Negotiator == nil {
		deps.Negotiator = negotiate.New()
	}
	if deps.Limiter == nil {
		deps.Limiter = limits.NewExtractionLimiter(nil)
	}
	return &Pipeline{
		contracts:        deps.Contracts,
		trackA:           deps.TrackA,
		augmenter:        deps.Augmenter,
		negotiator:       deps.Negotiator,
		guard:            deps.Guard,
		limiter:          deps.Limiter,
		idempotency:      deps.Idempotency,
		hashCache:        deps.HashCache,
		emitter:          deps.Emitter,
		anchorValidation: deps.AnchorValidation,
	}
}

// Process обрабатывает один запрос извлечения. Повтор на неизменившейся
// странице возвращает сохраненный результат с is_replay = true.
func (p *Pipeline) Process(ctx context.Context, req *models.ExtractionRequest) (*models.ExtractionResult, error) {
	if strings.TrimSpace(req.HTML) == "" {
		return nil, fmt.Errorf("empty HTML input")
	}

	requestID := uuid.New().String()
	canonURL := utils.CanonicalURL(req.URL)
	fingerprint := storage.Fingerprint(req.HTML)

	p.emitCacheEvent(requestID, canonURL, fingerprint)

	key := storage.RequestKey(canonURL, req.Query, fingerprint)
	result, isReplay, err := p.idempotency.Handle(key, func() (*models.ExtractionResult, error) {
		return p.run(ctx, req, requestID, canonURL, fingerprint)
	})
	if err != nil {
		return nil, err
	}

	if isReplay {
		// Сохраненную копию не мутируем
		replay := *result
		replay.Metadata.IsReplay = true
		return &replay, nil
	}
	return result, nil
}

// run — один полный прогон pipeline без идемпотентного слоя
func (p *Pipeline) run(
	ctx context.Context,
	req *models.ExtractionRequest,
	requestID, canonURL, fingerprint string,
) (*models.ExtractionResult, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(req.HTML))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	var timings []models.StageTiming
	var abstained []string
	tokensUsed := 0

	// Стадия 1: контракт. Абстенция или ошибка — шаблонный контракт.
	var contract *models.Contract
	contentSample := utils.TruncateString(strings.TrimSpace(doc.Text()), 2000)

	outcome := p.guard.Execute(ctx, StageContract, func(stageCtx context.Context) (int, error) {
		contract = p.contracts.Generate(stageCtx, req.Query, contentSample)
		return estimateTokens(req.Query + contentSample), nil
	})
	timings, abstained, tokensUsed = accumulate(timings, abstained, tokensUsed, outcome)
	p.emitBudgetOutcome(requestID, outcome)
	if contract == nil {
		// Guard абстенировался до запуска — контракт строим без модели
		fallbackGen := llm.NewContractGenerator(nil, false)
		contract = fallbackGen.Generate(ctx, req.Query, contentSample)
		p.emit(telemetry.EventFallbackTaken, requestID, map[string]any{
			"stage":    StageContract,
			"fallback": "template_contract",
		})
	}
	p.emit(telemetry.EventContractGenerated, requestID, map[string]any{
		"contract_id": contract.ID,
		"entity":      contract.EntityName,
		"fields":      len(contract.Fields),
	})

	// Индекс якорей строится один раз и дальше только читается
	idx := anchor.Build(doc, canonURL, p.limiter)

	// Стадия 2: детерминированный Track A
	var findings *models.Findings
	detBudget, _ := p.guard.Budget(StageDeterministic)
	outcome = p.guard.Execute(ctx, StageDeterministic, func(stageCtx context.Context) (int, error) {
		findings = p.trackA.Process(stageCtx, doc, idx, contract, time.Duration(detBudget.Millis)*time.Millisecond)
		return 0, nil
	})
	timings, abstained, tokensUsed = accumulate(timings, abstained, tokensUsed, outcome)
	p.emitBudgetOutcome(requestID, outcome)
	if findings == nil {
		findings = models.NewFindings()
	}
	p.emit(telemetry.EventDeterministicPass, requestID, map[string]any{
		"hits":       len(findings.Hits),
		"misses":     len(findings.Misses),
		"candidates": len(findings.Candidates),
	})

	// Стадии 3–4 параллельно: Track B и round-trip валидация хитов.
	// Обе стороны читают index и findings только на чтение; фильтр хитов
	// применяется после join.
	augResult := models.EmptyAugmentation()
	validHits := findings.Hits

	g, gctx := errgroup.WithContext(ctx)
	var augOutcome, valOutcome *guard.Outcome

	g.Go(func() error {
		augOutcome = p.guard.Execute(gctx, StageAugmentation, func(stageCtx context.Context) (int, error) {
			augResult = p.augmenter.Augment(stageCtx, findings, contract, idx)
			return estimateTokens(contentSample) / 2, nil
		})
		return nil
	})
	g.Go(func() error {
		valOutcome = p.guard.Execute(gctx, StageValidation, func(stageCtx context.Context) (int, error) {
			validHits = p.verifyHits(idx, findings.Hits)
			return 0, nil
		})
		return nil
	})
	_ = g.Wait()

	timings, abstained, tokensUsed = accumulate(timings, abstained, tokensUsed, augOutcome)
	timings, abstained, tokensUsed = accumulate(timings, abstained, tokensUsed, valOutcome)
	p.emitBudgetOutcome(requestID, augOutcome)
	p.emitBudgetOutcome(requestID, valOutcome)

	checked := len(findings.Hits)
	dropped := checked - len(validHits)
	if dropped > 0 {
		log.Printf("⚪ Dropped %d hits failing round-trip verification", dropped)
		findings.Hits = validHits
		findings.Support = recountSupport(validHits)
	}
	p.emit(telemetry.EventContractValidation, requestID, map[string]any{
		"enabled": p.anchorValidation,
		"checked": checked,
		"dropped": dropped,
	})
	if augResult == nil {
		augResult = models.EmptyAugmentation()
	}
	augFellBack := augOutcome != nil && (augOutcome.Abstained || augOutcome.FallbackUsed)
	p.emit(telemetry.EventLLMAugmentation, requestID, map[string]any{
		"completions":    len(augResult.Completions),
		"new_fields":     len(augResult.NewFields),
		"normalizations": len(augResult.Normalizations),
		"dropped":        augResult.Dropped,
		"fallback_used":  augFellBack,
	})

	// Стадия 5: negotiation — чистая функция, LLM не трогает
	var negotiation *models.NegotiationResult
	outcome = p.guard.Execute(ctx, StageNegotiation, func(stageCtx context.Context) (int, error) {
		negotiation = p.negotiator.Negotiate(contract, findings, augResult, idx)
		return 0, nil
	})
	timings, abstained, tokensUsed = accumulate(timings, abstained, tokensUsed, outcome)
	p.emitBudgetOutcome(requestID, outcome)
	if negotiation == nil {
		negotiation = p.negotiator.Negotiate(contract, findings, augResult, idx)
	}
	p.emit(telemetry.EventPromotionDecision, requestID, map[string]any{
		"status":  string(negotiation.Status),
		"added":   len(negotiation.Changes.Added),
		"pruned":  len(negotiation.Changes.Pruned),
		"demoted": len(negotiation.Changes.Demoted),
	})

	result := &models.ExtractionResult{
		Negotiation: *negotiation,
		Metadata: models.ResultMetadata{
			ContractID:         contract.ID,
			Mode:               contract.Mode,
			ContentFingerprint: fingerprint,
			TokensUsed:         tokensUsed,
			StageTimings:       timings,
			AbstainedStages:    abstained,
		},
	}

	if negotiation.Status == models.NegotiationError {
		result.Records = []models.Record{}
		return result, nil
	}

	records, droppedRows := MaterializeRecords(idx, negotiation, findings, augResult, contract.Mode)
	result.Records = records
	if droppedRows > 0 {
		p.emit(telemetry.EventStrictModeAction, requestID, map[string]any{
			"dropped_rows": droppedRows,
			"mode":         string(contract.Mode),
		})
	}

	log.Printf("✅ Extraction complete: %d records, reliability %.2f",
		len(records), negotiation.Evidence.Reliability)
	return result, nil
}

// verifyHits прогоняет round-trip по каждому hit'у и отбрасывает
// не подтвердившиеся повторным извлечением
func (p *Pipeline) verifyHits(idx *anchor.Index, hits []models.Hit) []models.Hit {
	if !p.anchorValidation {
		return hits
	}
	verified := make([]models.Hit, 0, len(hits))
	for _, h := range hits {
		if extract.VerifyAnchorHit(idx, h) {
			verified = append(verified, h)
		}
	}
	return verified
}

func (p *Pipeline) emitCacheEvent(requestID, canonURL, fingerprint string) {
	if p.hashCache == nil {
		return
	}
	prev, seen := p.hashCache.Get(canonURL)
	p.hashCache.Put(canonURL, fingerprint)
	p.emit(telemetry.EventCache, requestID, map[string]any{
		"url":       canonURL,
		"seen":      seen,
		"unchanged": seen && prev == fingerprint,
	})
}

// emitBudgetOutcome сообщает о срабатывании guard'а: абстенция, таймаут
// или перерасход токенов. Штатное исполнение событий не порождает.
func (p *Pipeline) emitBudgetOutcome(requestID string, out *guard.Outcome) {
	if out == nil {
		return
	}
	if out.Abstained || out.TimedOut || out.Reason != "" {
		p.emit(telemetry.EventBudget, requestID, map[string]any{
			"stage":       out.Stage,
			"reason":      out.Reason,
			"abstained":   out.Abstained,
			"timed_out":   out.TimedOut,
			"tokens_used": out.TokensUsed,
			"elapsed_ms":  out.Elapsed.Milliseconds(),
		})
	}
	if out.FallbackUsed {
		p.emit(telemetry.EventFallbackTaken, requestID, map[string]any{
			"stage":  out.Stage,
			"reason": out.Reason,
		})
	}
}

func (p *Pipeline) emit(t telemetry.EventType, requestID string, payload map[string]any) {
	if p.emitter == nil {
		return
	}
	p.emitter.Emit(telemetry.NewEvent(t, requestID, payload))
}

// accumulate сворачивает outcome стадии в метаданные результата
func accumulate(
	timings []models.StageTiming,
	abstained []string,
	tokens int,
	outcome *guard.Outcome,
) ([]models.StageTiming, []string, int) {
	if outcome == nil {
		return timings, abstained, tokens
	}
	timing := models.StageTiming{
		Stage:     outcome.Stage,
		Duration:  outcome.Elapsed,
		Abstained: outcome.Abstained,
	}
	if outcome.FallbackUsed {
		timing.FallbackBy = "deterministic_fallback"
	}
	timings = append(timings, timing)
	if outcome.Abstained {
		abstained = append(abstained, outcome.Stage)
	}
	return timings, abstained, tokens + outcome.TokensUsed
}

func recountSupport(hits []models.Hit) map[string]int {
	support := make(map[string]int)
	for _, h := range hits {
		support[h.Field]++
	}
	return support
}

// estimateTokens — грубая оценка: ~4 символа на токен
func estimateTokens(s string) int {
	return len(s) / 4
}
