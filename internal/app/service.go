package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"informer/internal/decision"
	"informer/internal/logger"
	"informer/internal/notifier"
	"informer/internal/packet"
	"informer/internal/risk"
	"informer/internal/store"
	"informer/internal/store/tradelock"
	"informer/internal/types"
)

// DecisionPipeline is satisfied by *decision.Pipeline.
type DecisionPipeline interface {
	Run(ctx context.Context, in decision.RunInput) types.RunRecord
}

// TradeLocker is satisfied by *tradelock.Store.
type TradeLocker interface {
	Acquire(ctx context.Context, tradeDateNY, runID, symbol string) (tradelock.Holder, bool, error)
	Release(ctx context.Context, tradeDateNY, runID string) error
}

// ArtifactWriter is satisfied by *artifact.Writer.
type ArtifactWriter interface {
	Write(ctx context.Context, rec types.RunRecord) (string, error)
}

// ProfileSource is satisfied by *risk.Registry.
type ProfileSource interface {
	Snapshot() risk.Snapshot
}

// DecideRequest overrides the configured defaults for one run.
type DecideRequest struct {
	RunID   string
	AsOf    time.Time
	Symbols []string
	Profile string
}

type DecideResult struct {
	Record       types.RunRecord
	ArtifactPath string
	Notified     bool
}

// Service runs one decision end to end: packets, pipeline, daily lock,
// artifact, run log and notification.
type Service struct {
	pipeline  DecisionPipeline
	packets   *packet.Loader
	profiles  ProfileSource
	artifacts ArtifactWriter
	locks     TradeLocker
	store     store.Store
	notifier  notifier.TextNotifier

	symbols []string
	profile string
	now     func() time.Time
	newID   func() string
}

type ServiceDeps struct {
	Pipeline  DecisionPipeline
	Packets   *packet.Loader
	Profiles  ProfileSource
	Artifacts ArtifactWriter
	// Locks is nil when one-trade-per-day is off.
	Locks TradeLocker
	// Store is nil when the run log is disabled.
	Store    store.Store
	Notifier notifier.TextNotifier

	Symbols []string
	Profile string
	Now     func() time.Time
	NewID   func() string
}

func NewService(deps ServiceDeps) (*Service, error) {
	if deps.Pipeline == nil || deps.Packets == nil || deps.Artifacts == nil {
		return nil, errors.New("decision service requires pipeline, packets and artifacts")
	}
	s := &Service{
		pipeline:  deps.Pipeline,
		packets:   deps.Packets,
		profiles:  deps.Profiles,
		artifacts: deps.Artifacts,
		locks:     deps.Locks,
		store:     deps.Store,
		notifier:  deps.Notifier,
		symbols:   deps.Symbols,
		profile:   deps.Profile,
		now:       deps.Now,
		newID:     deps.NewID,
	}
	if s.notifier == nil {
		s.notifier = notifier.Nop{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	return s, nil
}

// Decide runs the pipeline once. Stage failures are folded into the record;
// only lock and artifact errors abort the run.
func (s *Service) Decide(ctx context.Context, req DecideRequest) (DecideResult, error) {
	runID := strings.TrimSpace(req.RunID)
	if runID == "" {
		runID = s.newID()
	}
	asOf := req.AsOf
	if asOf.IsZero() {
		asOf = s.now()
	}
	asOf = asOf.UTC().Truncate(time.Second)
	symbols := req.Symbols
	if len(symbols) == 0 {
		symbols = s.symbols
	}
	if len(symbols) == 0 {
		return DecideResult{}, errors.New("no symbols to decide over")
	}
	log := logger.ForRun(runID)

	profile := s.resolveProfile(log, req.Profile)
	rec := s.pipeline.Run(ctx, decision.RunInput{
		RunID:   runID,
		AsOf:    asOf,
		Symbols: symbols,
		Packets: s.packets.LoadAll(symbols),
		Profile: profile,
	})

	var locked bool
	if s.locks != nil && rec.Decision.IsTrade() {
		holder, acquired, err := s.locks.Acquire(ctx, rec.TradeDateNY, runID, rec.Decision.Symbol)
		if err != nil {
			return DecideResult{}, fmt.Errorf("trade lock: %w", err)
		}
		if !acquired {
			log.Warnf("[lock] %s already traded by run %s (%s)", rec.TradeDateNY, holder.RunID, holder.Symbol)
			rec.Decision = risk.LockedOut(rec.Decision)
		}
		locked = acquired && holder.Fresh
	}

	path, err := s.artifacts.Write(ctx, rec)
	if err != nil {
		if locked {
			// a lock without an artifact would lock out the rest of the day
			if rerr := s.locks.Release(context.WithoutCancel(ctx), rec.TradeDateNY, runID); rerr != nil {
				log.Errorf("[lock] release after failed write: %v", rerr)
			}
		}
		return DecideResult{}, fmt.Errorf("write artifact: %w", err)
	}
	res := DecideResult{Record: rec, ArtifactPath: path}

	if err := s.persist(ctx, rec, path); err != nil {
		log.Errorf("[store] run log not updated: %v", err)
	}
	sent, err := notifier.NotifyDecision(ctx, s.notifier, rec)
	if err != nil {
		log.Warnf("[notify] %v", err)
	}
	res.Notified = sent

	d := rec.Decision
	log.Infof("decision %s reason=%s symbol=%s shares=%d artifact=%s", d.Action, d.Reason, d.Symbol, d.Shares, path)
	return res, nil
}

func (s *Service) resolveProfile(log logger.Run, name string) *risk.Profile {
	name = strings.TrimSpace(name)
	if name == "" {
		name = s.profile
	}
	if name == "" || s.profiles == nil {
		return nil
	}
	p := s.profiles.Snapshot().Resolve(name)
	if p == nil {
		log.Warnf("[risk] unknown profile %q, running without profile gates", name)
	}
	return p
}

func (s *Service) persist(ctx context.Context, rec types.RunRecord, artifactPath string) error {
	if s.store == nil {
		return nil
	}
	run, err := store.NewRunModel(rec, artifactPath)
	if err != nil {
		return err
	}
	fwd, err := store.NewForwardTestModel(rec)
	if err != nil {
		return err
	}
	uow, err := s.store.Begin(ctx)
	if err != nil {
		return err
	}
	if err := uow.Runs().Save(ctx, run); err != nil {
		_ = uow.Rollback()
		return err
	}
	if err := uow.ForwardTests().Save(ctx, fwd); err != nil {
		_ = uow.Rollback()
		return err
	}
	return uow.Commit()
}
