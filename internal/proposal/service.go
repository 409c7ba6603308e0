package proposal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"

	"github.com/gmeppo/eppo-proposals/internal/cart"
	"github.com/gmeppo/eppo-proposals/internal/events"
	"github.com/gmeppo/eppo-proposals/internal/obs"
)

// Carts is the cart surface the proposal service works against.
type Carts interface {
	Get(ctx context.Context, session string) (cart.Cart, error)
	Replace(ctx context.Context, session string, items []cart.LineItem) (cart.Cart, error)
	SetEditing(ctx context.Context, session, proposalID string) error
	Editing(ctx context.Context, session string) (string, bool, error)
	ClearEditing(ctx context.Context, session string) error
	TaxBps() int
	Currency() string
}

// Locker serialises writers of one proposal.
type Locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// Emitter records proposal activity. *events.Bus satisfies it.
type Emitter interface {
	Emit(ctx context.Context, topic string, aggregateID uuid.UUID, payload any) (events.Event, error)
}

// Service saves carts as proposals and reopens them for editing.
type Service struct {
	repo    Repository
	carts   Carts
	locker  Locker
	lockTTL time.Duration
	render  *HTMLRenderer
	pdf     PDFExporter
	events  Emitter
	logger  zerolog.Logger
	now     func() time.Time
}

// Config groups Service dependencies.
type Config struct {
	Repository Repository
	Carts      Carts
	Locker     Locker
	LockTTL    time.Duration
	Renderer   *HTMLRenderer
	PDF        PDFExporter
	Events     Emitter
	Logger     zerolog.Logger
}

// NewService validates cfg and constructs a Service.
func NewService(cfg Config) (*Service, error) {
	if cfg.Repository == nil {
		return nil, errors.New("proposal repository is required")
	}
	if cfg.Carts == nil {
		return nil, errors.New("proposal cart service is required")
	}
	renderer := cfg.Renderer
	if renderer == nil {
		renderer = NewHTMLRenderer("", "")
	}
	return &Service{
		repo:    cfg.Repository,
		carts:   cfg.Carts,
		locker:  cfg.Locker,
		lockTTL: cfg.LockTTL,
		render:  renderer,
		pdf:     cfg.PDF,
		events:  cfg.Events,
		logger:  cfg.Logger.With().Str("component", "proposal").Logger(),
		now:     time.Now,
	}, nil
}

// SaveInput carries the client details and commercial terms of a save.
type SaveInput struct {
	Client   Client
	Discount decimal.Decimal
}

// Mode values reported by SaveFromCart.
const (
	ModeCreate = "create"
	ModeUpdate = "update"
)

// SaveFromCart stores the session's cart as a proposal. When the session is
// editing an existing proposal it is updated under a lock and the line diff
// is appended to its history; otherwise a new proposal is created. The
// session keeps editing the saved proposal afterwards.
func (s *Service) SaveFromCart(ctx context.Context, session string, in SaveInput) (p Proposal, mode string, err error) {
	ctx, span := obs.StartSpan(ctx, "proposal.save", attribute.String("cart.session", session))
	defer func() {
		span.SetAttributes(attribute.String("proposal.mode", mode))
		obs.EndSpan(span, err)
	}()

	c, err := s.carts.Get(ctx, session)
	if err != nil {
		return Proposal{}, "", err
	}
	if c.Empty() {
		return Proposal{}, "", ErrEmptyCart
	}
	if !c.Valid() {
		return Proposal{}, "", ErrInvalidLines
	}

	editing, ok, err := s.carts.Editing(ctx, session)
	if err != nil {
		return Proposal{}, "", err
	}
	if ok {
		id, perr := uuid.Parse(editing)
		if perr == nil {
			p, err = s.update(ctx, id, c, in)
			if err == nil {
				mode = ModeUpdate
			} else if errors.Is(err, ErrNotFound) {
				s.logger.Warn().Str("session", session).Str("proposal_id", editing).Msg("editing proposal missing; creating a new one")
				ok = false
			} else {
				return Proposal{}, "", err
			}
		} else {
			ok = false
		}
	}
	if !ok {
		p, err = s.create(ctx, session, c, in)
		if err != nil {
			return Proposal{}, "", err
		}
		mode = ModeCreate
	}

	if err := s.carts.SetEditing(ctx, session, p.ID.String()); err != nil {
		s.logger.Warn().Err(err).Str("session", session).Msg("set editing proposal")
	}
	obs.RecordProposalSaved(mode)
	topic := events.TopicProposalCreated
	if mode == ModeUpdate {
		topic = events.TopicProposalUpdated
	}
	s.emit(ctx, topic, p, map[string]any{
		"session": session,
		"lines":   len(p.Lines),
		"total":   p.Totals.Total.StringFixed(2),
	})
	s.logger.Info().Str("proposal_id", p.ID.String()).Str("mode", mode).Int("lines", len(p.Lines)).Msg("proposal saved")
	return p, mode, nil
}

func (s *Service) create(ctx context.Context, session string, c cart.Cart, in SaveInput) (Proposal, error) {
	p := Proposal{
		ID:       uuid.New(),
		Session:  session,
		Client:   in.Client,
		Lines:    c.Items,
		Discount: in.Discount,
		TaxBps:   s.carts.TaxBps(),
		Currency: s.carts.Currency(),
		History:  []ChangeEntry{},
	}
	p.Recalculate()
	return s.repo.Create(ctx, p)
}

func (s *Service) update(ctx context.Context, id uuid.UUID, c cart.Cart, in SaveInput) (Proposal, error) {
	var saved Proposal
	fn := func(ctx context.Context) error {
		current, err := s.repo.Get(ctx, id)
		if err != nil {
			return err
		}
		changes := Diff(current.Lines, c.Items)
		if len(changes) > 0 {
			current.History = append(current.History, ChangeEntry{At: s.now().UTC(), Changes: changes})
		}
		current.Lines = c.Items
		if in.Client.Name != "" {
			current.Client = in.Client
		}
		current.Discount = in.Discount
		current.TaxBps = s.carts.TaxBps()
		current.Currency = s.carts.Currency()
		current.Recalculate()
		saved, err = s.repo.Update(ctx, current)
		return err
	}
	var err error
	if s.locker == nil {
		err = fn(ctx)
	} else {
		err = s.locker.WithLock(ctx, id.String(), s.lockTTL, fn)
	}
	if err != nil {
		return Proposal{}, err
	}
	return saved, nil
}

// Open loads a proposal into the session's cart and marks it as being edited.
func (s *Service) Open(ctx context.Context, session string, id uuid.UUID) (Proposal, error) {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return Proposal{}, err
	}
	if _, err := s.carts.Replace(ctx, session, p.Lines); err != nil {
		return Proposal{}, fmt.Errorf("load proposal into cart: %w", err)
	}
	if err := s.carts.SetEditing(ctx, session, p.ID.String()); err != nil {
		return Proposal{}, fmt.Errorf("mark proposal editing: %w", err)
	}
	s.emit(ctx, events.TopicProposalOpened, p, map[string]any{"session": session})
	return p, nil
}

// Get loads one proposal.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Proposal, error) {
	return s.repo.Get(ctx, id)
}

// List returns a page of proposals and the total count.
func (s *Service) List(ctx context.Context, limit, offset int) ([]Proposal, int, error) {
	return s.repo.List(ctx, limit, offset)
}

// HTML renders a stored proposal.
func (s *Service) HTML(ctx context.Context, id uuid.UUID) ([]byte, error) {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.render.RenderBytes(p)
}

// ErrPDFUnavailable is returned when no PDF exporter is configured.
var ErrPDFUnavailable = errors.New("pdf export not configured")

// PDF renders a stored proposal and prints it to PDF.
func (s *Service) PDF(ctx context.Context, id uuid.UUID) ([]byte, error) {
	if s.pdf == nil {
		return nil, ErrPDFUnavailable
	}
	html, err := s.HTML(ctx, id)
	if err != nil {
		return nil, err
	}
	out, err := s.pdf.PDF(ctx, html)
	if err != nil {
		return nil, err
	}
	s.emit(ctx, events.TopicProposalExported, Proposal{ID: id}, map[string]any{"bytes": len(out)})
	return out, nil
}

func (s *Service) emit(ctx context.Context, topic string, p Proposal, payload map[string]any) {
	if s.events == nil {
		return
	}
	if _, err := s.events.Emit(ctx, topic, p.ID, payload); err != nil {
		s.logger.Warn().Err(err).Str("topic", topic).Str("proposal_id", p.ID.String()).Msg("emit proposal event")
	}
}
