// Package runtime wires the long running parts of the client together and owns their lifecycle.
// It orchestrates the system without containing business logic or domain rules.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"messengy/channels"
	"messengy/contract"
	"messengy/runtime/workers"
	"messengy/session"
	"sync"
	"time"
)

const (
	capacityThreshold = 80
	capacityInterval  = 10 * time.Second
)

// Orchestrator runs the session binder and the channel synchronizer under a supervisor.
type Orchestrator struct {
	mu              sync.Mutex
	log             *slog.Logger
	supervisor      contract.ISupervisor
	manager         *session.Manager
	binder          *session.Binder
	synchronizer    *channels.Synchronizer
	shutdownTimeout time.Duration
	done            chan struct{}
}

func NewOrchestrator(log *slog.Logger, supervisor contract.ISupervisor, manager *session.Manager,
	binder *session.Binder, synchronizer *channels.Synchronizer, shutdownTimeout time.Duration) *Orchestrator {
	return &Orchestrator{
		log:             log,
		supervisor:      supervisor,
		manager:         manager,
		binder:          binder,
		synchronizer:    synchronizer,
		shutdownTimeout: shutdownTimeout,
	}
}

// Start launches the workers and returns immediately. Starting twice is an error.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.done != nil {
		return fmt.Errorf("orchestrator already started")
	}

	monitor := workers.NewChannelCapacityWorker(o.log, []workers.NamedChannel{
		{Name: "session_events", Channel: o.manager.Events()},
	}, capacityInterval, capacityThreshold)

	o.done = make(chan struct{})
	o.supervisor.Add(o.binder, o.synchronizer, monitor)
	go func(done chan struct{}) {
		defer close(done)
		o.supervisor.Run(ctx)
	}(o.done)
	o.log.Info("Orchestrator started")
	return nil
}

// Stop cancels the workers, waits for them, then makes sure the chat session is released.
func (o *Orchestrator) Stop() error {
	o.mu.Lock()
	done := o.done
	o.mu.Unlock()
	if done == nil {
		return nil
	}

	o.supervisor.Stop()
	<-done

	ctx, cancel := context.WithTimeout(context.Background(), o.shutdownTimeout)
	defer cancel()
	if err := o.manager.Disconnect(ctx); err != nil {
		return fmt.Errorf("releasing chat session: %w", err)
	}
	o.log.Info("Orchestrator stopped")
	return nil
}
