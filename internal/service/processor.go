package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/vogiaan1904/ticketbottle-admission/pkg/logger"
)

// Processor drives the two periodic jobs: admission batches for OPEN
// events and the overdue-entry expiration sweep. Each runs on its own
// ticker so a slow sweep never delays admissions.
type Processor interface {
	Start(ctx context.Context) error
	Stop() error
	GetStatus() ProcessorStatus
}

type ProcessorStatus struct {
	IsRunning     bool      `json:"is_running"`
	StartedAt     time.Time `json:"started_at,omitempty"`
	LastAdmission time.Time `json:"last_admission,omitempty"`
	LastSweep     time.Time `json:"last_sweep,omitempty"`
	TotalAdmitted int64     `json:"total_admitted"`
	TotalExpired  int64     `json:"total_expired"`
	ErrorCount    int64     `json:"error_count"`
}

type ProcessorConfig struct {
	AdmissionInterval  time.Duration
	ExpirationInterval time.Duration
	ShutdownTimeout    time.Duration
}

type processor struct {
	admissionSvc  AdmissionService
	expirationSvc ExpirationService
	logger        logger.Logger

	config ProcessorConfig

	mu        sync.RWMutex
	isRunning bool
	startedAt time.Time
	stopCh    chan struct{}
	wg        sync.WaitGroup

	lastAdmission time.Time
	lastSweep     time.Time
	totalAdmitted int64
	totalExpired  int64
	errorCount    int64
}

func NewProcessor(
	admissionSvc AdmissionService,
	expirationSvc ExpirationService,
	logger logger.Logger,
	cfg ProcessorConfig,
) Processor {
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	return &processor{
		admissionSvc:  admissionSvc,
		expirationSvc: expirationSvc,
		logger:        logger,
		config:        cfg,
		stopCh:        make(chan struct{}),
	}
}

func (p *processor) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.isRunning {
		return errors.New("processor is already running")
	}

	p.logger.Infof(ctx, "Starting processor: admission every %s, expiration every %s",
		p.config.AdmissionInterval, p.config.ExpirationInterval)

	p.isRunning = true
	p.startedAt = time.Now()

	p.wg.Add(2)
	go p.admissionLoop(ctx)
	go p.expirationLoop(ctx)

	return nil
}

func (p *processor) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.isRunning {
		return errors.New("processor is not running")
	}

	p.logger.Info(context.Background(), "Stopping processor...")

	close(p.stopCh)

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info(context.Background(), "Processor stopped gracefully")
	case <-time.After(p.config.ShutdownTimeout):
		p.logger.Warn(context.Background(), "Processor shutdown timeout exceeded")
	}

	p.isRunning = false
	return nil
}

func (p *processor) GetStatus() ProcessorStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return ProcessorStatus{
		IsRunning:     p.isRunning,
		StartedAt:     p.startedAt,
		LastAdmission: p.lastAdmission,
		LastSweep:     p.lastSweep,
		TotalAdmitted: p.totalAdmitted,
		TotalExpired:  p.totalExpired,
		ErrorCount:    p.errorCount,
	}
}

func (p *processor) admissionLoop(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.config.AdmissionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info(ctx, "Admission loop stopped: context cancelled")
			return
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.runAdmission(ctx)
		}
	}
}

func (p *processor) expirationLoop(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.config.ExpirationInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info(ctx, "Expiration loop stopped: context cancelled")
			return
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.runSweep(ctx)
		}
	}
}

func (p *processor) runAdmission(ctx context.Context) {
	result, err := p.admissionSvc.ProcessOpenEvents(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()

	p.lastAdmission = time.Now()
	if err != nil {
		p.errorCount++
		p.logger.Errorf(ctx, "processor.runAdmission: %v", err)
		return
	}
	p.totalAdmitted += int64(result.Succeeded)
	p.errorCount += int64(result.Failed)
}

func (p *processor) runSweep(ctx context.Context) {
	result, err := p.expirationSvc.ProcessExpirations(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()

	p.lastSweep = time.Now()
	if err != nil {
		p.errorCount++
		p.logger.Errorf(ctx, "processor.runSweep: %v", err)
		return
	}
	p.totalExpired += int64(result.Succeeded)
	p.errorCount += int64(result.Failed)
}
