package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/EngSayh/Fixzit-sub003/internal/domain/entity"
)

// Service is the entry point used by request handlers: it builds and
// dispatches in one call.
type Service struct {
	builder    *Builder
	dispatcher *Dispatcher
	logger     *slog.Logger
}

// NewService wires a Builder and a Dispatcher together.
func NewService(builder *Builder, dispatcher *Dispatcher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{builder: builder, dispatcher: dispatcher, logger: logger}
}

// Notify builds one notification for all recipients and dispatches it.
// Build errors are returned; delivery errors are not.
func (s *Service) Notify(ctx context.Context, ev entity.Event, recipients []entity.Recipient, opts DispatchOptions) (*entity.Notification, error) {
	n, err := s.builder.Build(ctx, ev, recipients)
	if err != nil {
		return nil, err
	}
	if err := s.dispatcher.Dispatch(ctx, n, opts); err != nil {
		return n, fmt.Errorf("dispatch %s: %w", n.ID, err)
	}
	return n, nil
}

// DispatchGrouped splits recipients by locale and builds and dispatches one
// notification per locale group. Groups run concurrently and a failing group
// does not stop the others; the notifications of the groups that succeeded are
// returned together with the joined errors of the ones that did not.
func (s *Service) DispatchGrouped(ctx context.Context, ev entity.Event, recipients []entity.Recipient, opts DispatchOptions) ([]*entity.Notification, error) {
	if ev == nil {
		return nil, &entity.ValidationError{Field: "event", Message: "event is required"}
	}
	if len(recipients) == 0 {
		return nil, entity.ErrNoRecipients
	}

	groups := groupByLocale(recipients)
	built := make([]*entity.Notification, len(groups))
	errs := make([]error, len(groups))

	// Goroutines never return an error so that no group cancels another.
	var g errgroup.Group
	for i, grp := range groups {
		g.Go(func() error {
			n, err := s.Notify(ctx, ev, grp.recipients, opts)
			if err != nil {
				errs[i] = fmt.Errorf("locale %s: %w", grp.locale, err)
				s.logger.WarnContext(ctx, "locale group failed",
					slog.String("locale", string(grp.locale)),
					slog.Int("recipients", len(grp.recipients)),
					slog.Any("error", err))
			}
			built[i] = n
			return nil
		})
	}
	_ = g.Wait()

	out := make([]*entity.Notification, 0, len(built))
	for _, n := range built {
		if n != nil {
			out = append(out, n)
		}
	}
	return out, errors.Join(errs...)
}

type localeGroup struct {
	locale     entity.Locale
	recipients []entity.Recipient
}

// groupByLocale partitions recipients by locale, treating a missing locale as
// the default. Groups are ordered by locale; recipients keep their input order.
func groupByLocale(recipients []entity.Recipient) []localeGroup {
	byLocale := make(map[entity.Locale][]entity.Recipient)
	for _, r := range recipients {
		loc := r.Locale.OrDefault()
		r.Locale = loc
		byLocale[loc] = append(byLocale[loc], r)
	}

	groups := make([]localeGroup, 0, len(byLocale))
	for loc, rs := range byLocale {
		groups = append(groups, localeGroup{locale: loc, recipients: rs})
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].locale < groups[j].locale })
	return groups
}

// Shutdown waits for pending log writes and in-flight background dispatches.
func (s *Service) Shutdown(ctx context.Context) error {
	s.builder.Wait()
	return s.dispatcher.Shutdown(ctx)
}
