// Package cartsvc exposes cart intents per session: each call resolves the
// session, applies one mutation to its store and returns the resulting state.
package cartsvc

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/shopping-cart/internal/domain/cart"
	"github.com/xenking/shopping-cart/internal/session"
)

// State is the store snapshot returned after every intent.
type State struct {
	SessionID string
	cart.View
}

// Service applies cart intents to session stores.
type Service struct {
	sessions  *session.Registry
	tracer    trace.Tracer
	mutations metric.Int64Counter
}

// NewService creates a Service over the given session registry.
func NewService(sessions *session.Registry, tp trace.TracerProvider, mp metric.MeterProvider) (*Service, error) {
	const name = "github.com/xenking/shopping-cart/internal/domain/cartsvc"

	mutations, err := mp.Meter(name).Int64Counter("cart.mutations",
		metric.WithDescription("Cart intents applied, by operation and outcome"))
	if err != nil {
		return nil, errors.Wrap(err, "create mutations counter")
	}

	return &Service{
		sessions:  sessions,
		tracer:    tp.Tracer(name),
		mutations: mutations,
	}, nil
}

// NewSession creates a session seeded with the default cart.
func (s *Service) NewSession(ctx context.Context) (*State, error) {
	ctx, span := s.tracer.Start(ctx, "cart.NewSession")
	defer span.End()

	sess, err := s.sessions.Create(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create session")
		return nil, errors.Wrap(err, "create session")
	}
	span.SetAttributes(attribute.String("cart.session", sess.ID))
	zctx.From(ctx).Debug("Session created", zap.String("session", sess.ID))

	return s.apply(ctx, sess, "view", func(*cart.Store) error { return nil })
}

// EndSession discards a session and its cart.
func (s *Service) EndSession(ctx context.Context, id string) error {
	ctx, span := s.tracer.Start(ctx, "cart.EndSession",
		trace.WithAttributes(attribute.String("cart.session", id)))
	defer span.End()

	if err := s.sessions.Delete(ctx, id); err != nil {
		return errors.Wrap(err, "end session")
	}
	zctx.From(ctx).Debug("Session ended", zap.String("session", id))
	return nil
}

// View returns the current state without changing it.
func (s *Service) View(ctx context.Context, id string) (*State, error) {
	return s.do(ctx, id, "view", func(*cart.Store) error { return nil })
}

// Remove deletes the cart line at index.
func (s *Service) Remove(ctx context.Context, id string, index int) (*State, error) {
	return s.do(ctx, id, "remove", func(st *cart.Store) error {
		return st.Remove(index)
	}, attribute.Int("cart.index", index))
}

// AddItem appends a line built from d.
func (s *Service) AddItem(ctx context.Context, id string, d cart.Draft) (*State, error) {
	return s.do(ctx, id, "add_item", func(st *cart.Store) error {
		_, err := st.AddItem(&d)
		return err
	}, attribute.String("cart.item", d.Name))
}

// CommitDraft appends the session draft to the cart and clears the draft.
func (s *Service) CommitDraft(ctx context.Context, id string) (*State, error) {
	return s.do(ctx, id, "commit_draft", func(st *cart.Store) error {
		_, err := st.CommitDraft()
		return err
	})
}

// SetDraft replaces the session draft.
func (s *Service) SetDraft(ctx context.Context, id string, d cart.Draft) (*State, error) {
	return s.do(ctx, id, "set_draft", func(st *cart.Store) error {
		st.SetDraft(d)
		return nil
	})
}

// SelectCatalog fills the session draft from a catalog entry.
func (s *Service) SelectCatalog(ctx context.Context, id string, index, quantity int) (*State, error) {
	return s.do(ctx, id, "select_catalog", func(st *cart.Store) error {
		return st.SelectCatalog(index, quantity)
	}, attribute.Int("cart.index", index))
}

func (s *Service) do(
	ctx context.Context,
	id, op string,
	fn func(*cart.Store) error,
	attrs ...attribute.KeyValue,
) (*State, error) {
	ctx, span := s.tracer.Start(ctx, "cart."+op, trace.WithAttributes(
		append(attrs, attribute.String("cart.session", id))...,
	))
	defer span.End()

	sess, err := s.sessions.Get(id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "lookup session")
		return nil, err
	}
	return s.apply(ctx, sess, op, fn)
}

func (s *Service) apply(ctx context.Context, sess *session.Session, op string, fn func(*cart.Store) error) (*State, error) {
	span := trace.SpanFromContext(ctx)

	var view cart.View
	err := sess.Do(func(st *cart.Store) error {
		if err := fn(st); err != nil {
			return err
		}
		view = st.View()
		return nil
	})

	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	if op != "view" {
		s.mutations.Add(ctx, 1, metric.WithAttributes(
			attribute.String("op", op),
			attribute.String("outcome", outcome),
		))
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, op)
		zctx.From(ctx).Debug("Cart intent rejected",
			zap.String("session", sess.ID),
			zap.String("op", op),
			zap.Error(err),
		)
		return nil, errors.Wrap(err, op)
	}

	span.SetAttributes(attribute.Int("cart.items", len(view.Items)))
	return &State{SessionID: sess.ID, View: view}, nil
}
