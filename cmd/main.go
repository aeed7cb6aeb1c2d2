package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"

	"github.com/BetterCallFirewall/Anchorecon/internal/breaker"
	"github.com/BetterCallFirewall/Anchorecon/internal/config"
	"github.com/BetterCallFirewall/Anchorecon/internal/driven"
	"github.com/BetterCallFirewall/Anchorecon/internal/extract"
	"github.com/BetterCallFirewall/Anchorecon/internal/guard"
	"github.com/BetterCallFirewall/Anchorecon/internal/limits"
	"github.com/BetterCallFirewall/Anchorecon/internal/llm"
	"github.com/BetterCallFirewall/Anchorecon/internal/models"
	"github.com/BetterCallFirewall/Anchorecon/internal/negotiate"
	"github.com/BetterCallFirewall/Anchorecon/internal/storage"
	"github.com/BetterCallFirewall/Anchorecon/internal/telemetry"
	"github.com/BetterCallFirewall/Anchorecon/internal/websocket"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	limiter := limits.NewExtractionLimiter(&limits.ExtractionLimits{
		MaxTraversalNodes:    cfg.Pipeline.DOMTraversalLimit,
		MaxCandidatesField:   cfg.Pipeline.MaxCandidates,
		MaxDiscoverable:      5,
		AnchorSampleSize:     cfg.Pipeline.AnchorSampleSize,
		PreviewLength:        200,
		PromptPreviewLength:  100,
		MinPatternInstances:  cfg.Pipeline.MinPatternInstances,
		MaxPatternCandidates: 20,
	})

	// Телеметрия стримится единственному наблюдателю через websocket
	hub := websocket.NewHub()
	go hub.Run()
	emitter := telemetry.NewEmitter(hub, telemetry.Options{
		BatchSize:     cfg.Telemetry.BatchSize,
		FlushInterval: cfg.Telemetry.FlushInterval,
		RedactPII:     cfg.Telemetry.RedactPII,
		SamplingRates: cfg.Telemetry.SamplingRates,
	})

	// LLM-порты: при выключенном аугментере остаются nil,
	// pipeline работает на одном детерминированном треке
	var augmentFn llm.AugmentFn
	var contractFn llm.ContractFn

	if cfg.LLM.AugmenterEnabled {
		ctx := context.Background()
		genkitApp := genkit.Init(
			ctx,
			genkit.WithPlugins(
				&googlegenai.GoogleAI{
					APIKey: cfg.LLM.ApiKey,
				},
			),
			genkit.WithDefaultModel(cfg.LLM.Model),
		)

		augmentFlow := llm.DefineAugmentFlow(genkitApp, cfg.LLM.Model)
		contractFlow := llm.DefineContractFlow(genkitApp, cfg.LLM.Model)

		// Порт огражден circuit breaker'ом: при деградации модели
		// стадии проваливаются быстро, не сжигая бюджеты
		llmBreaker := breaker.New(breaker.DefaultConfig("llm"))
		rateLimiter := breaker.NewSlidingWindowLimiter(60, time.Minute)

		augmentFn = func(ctx context.Context, req *llm.AugmentRequest) (*llm.AugmentResponse, error) {
			if err := rateLimiter.Allow("augment"); err != nil {
				return nil, err
			}
			out, err := llmBreaker.Execute(ctx, func(ctx context.Context) (any, error) {
				return augmentFlow.Run(ctx, req)
			})
			if err != nil {
				return nil, err
			}
			return out.(*llm.AugmentResponse), nil
		}
		contractFn = func(ctx context.Context, req *llm.ContractRequest) (*llm.ContractResponse, error) {
			if err := rateLimiter.Allow("contract"); err != nil {
				return nil, err
			}
			out, err := llmBreaker.Execute(ctx, func(ctx context.Context) (any, error) {
				return contractFlow.Run(ctx, req)
			})
			if err != nil {
				return nil, err
			}
			return out.(*llm.ContractResponse), nil
		}
	}

	stageGuard := guard.NewStageGuard(driven.BudgetsFrom(cfg.Budgets))
	stageGuard.StartAdaptive(30 * time.Second)

	pipeline := driven.NewPipeline(driven.Deps{
		Contracts:        llm.NewContractGenerator(contractFn, cfg.LLM.AugmenterEnabled),
		TrackA:           extract.NewTrackA(limiter, cfg.Pipeline.ConfidenceThreshold),
		Augmenter:        llm.NewAugmenter(augmentFn, limiter, cfg.LLM.AugmenterEnabled, cfg.Pipeline.AnchorValidation),
		Negotiator:       negotiate.New(),
		Guard:            stageGuard,
		Limiter:          limiter,
		Idempotency:      storage.NewIdempotencyStore(cfg.Pipeline.IdempotencyTTL),
		HashCache:        storage.NewHashCache(4096, cfg.Pipeline.IdempotencyTTL),
		Emitter:          emitter,
		AnchorValidation: cfg.Pipeline.AnchorValidation,
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/extract", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req models.ExtractionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		result, err := pipeline.Process(r.Context(), &req)
		if err != nil {
			log.Printf("⚠️ Extraction failed: %v", err)
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(result); err != nil {
			log.Printf("⚠️ Failed to encode response: %v", err)
		}
	})
	mux.HandleFunc("/ws", hub.ServeWS)

	server := &http.Server{
		Addr:    ":" + cfg.LLM.Port,
		Handler: mux,
	}

	go func() {
		log.Printf("🔍 Extraction service listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c

	log.Println("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("⚠️ Server shutdown error: %v", err)
	}
	stageGuard.Stop()
	emitter.Close()
}
