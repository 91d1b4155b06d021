package events

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Emitter receives events after the owning transaction committed.
type Emitter interface {
	Emit(ctx context.Context, e Envelope) error
}

type EmitterFunc func(ctx context.Context, e Envelope) error

func (f EmitterFunc) Emit(ctx context.Context, e Envelope) error { return f(ctx, e) }

type nop struct{}

func (nop) Emit(context.Context, Envelope) error { return nil }

func Nop() Emitter { return nop{} }

// Multi delivers to every emitter and joins their errors.
type Multi []Emitter

func (m Multi) Emit(ctx context.Context, e Envelope) error {
	var errs []error
	for _, em := range m {
		if em == nil {
			continue
		}
		if err := em.Emit(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Recorder keeps emitted events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Envelope
}

func (r *Recorder) Emit(_ context.Context, e Envelope) error {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
	return nil
}

func (r *Recorder) Events() []Envelope {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Envelope, len(r.events))
	copy(out, r.events)
	return out
}

func (r *Recorder) Types() []Type {
	evs := r.Events()
	out := make([]Type, 0, len(evs))
	for _, e := range evs {
		out = append(out, e.EventType)
	}
	return out
}

// Publish builds an envelope and hands it to em. It is the helper every lifecycle service uses.
func Publish(ctx context.Context, em Emitter, t Type, at time.Time, actorID string, subjectID uint64, payload any) error {
	if em == nil {
		return nil
	}
	env, err := New(t, at, actorID, subjectID, payload)
	if err != nil {
		return err
	}
	return em.Emit(ctx, env)
}
