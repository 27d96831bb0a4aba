package application

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"

	"github.com/ericfisherdev/gatecheck/internal/domain/model"
	"github.com/ericfisherdev/gatecheck/internal/domain/port/driven"
)

// adminSearchLimit caps the admin attendee search.
const adminSearchLimit = 100

// MaxPhotoBytes caps a stored attendee photo.
const MaxPhotoBytes = 5 << 20

// photoTypes are the image formats accepted for attendee photos. Detection
// reads the content, never the client's declared type.
var photoTypes = []string{"image/jpeg", "image/png", "image/webp", "image/gif"}

// RegistryService exposes the admin operations over the attendee registry.
// Check-ins do not go through it; see CheckInService.
type RegistryService struct {
	store    driven.AttendeeStore
	issuer   *Issuer
	renderer driven.CredentialRenderer
	validate *validator.Validate
	observer Observer
	policy   StoragePolicy
	logger   *slog.Logger
}

// NewRegistryService creates a RegistryService. observer may be nil.
func NewRegistryService(
	store driven.AttendeeStore,
	issuer *Issuer,
	renderer driven.CredentialRenderer,
	observer Observer,
	policy StoragePolicy,
	logger *slog.Logger,
) *RegistryService {
	if logger == nil {
		logger = slog.Default()
	}
	return &RegistryService{
		store:    store,
		issuer:   issuer,
		renderer: renderer,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		observer: observerOrNop(observer),
		policy:   policy.withDefaults(),
		logger:   logger,
	}
}

// Add validates draft, mints its credential and stores the attendee.
func (s *RegistryService) Add(ctx context.Context, draft model.AttendeeDraft) (*model.Attendee, error) {
	draft = model.AttendeeDraft{
		Name:     strings.TrimSpace(draft.Name),
		TicketID: strings.TrimSpace(draft.TicketID),
		Email:    strings.TrimSpace(draft.Email),
	}
	if err := s.validate.Struct(draft); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidAttendee, describeValidation(err))
	}

	a, err := createAttendee(ctx, s.store, s.issuer, s.policy, s.observer, s.logger, draft)
	if err != nil {
		return nil, err
	}

	s.logger.Info("attendee added", "id", a.ID, "ticket_id", a.TicketID)
	return a, nil
}

// Get returns driven.ErrAttendeeNotFound when the id does not exist.
func (s *RegistryService) Get(ctx context.Context, id int64) (*model.Attendee, error) {
	a, err := callStorage(ctx, s.policy, s.observer, s.logger, "get_attendee", func(ctx context.Context, _ int) (*model.Attendee, error) {
		return s.store.GetByID(ctx, id)
	})
	if err != nil {
		return nil, fmt.Errorf("get attendee %d: %w", id, err)
	}
	if a == nil {
		return nil, fmt.Errorf("get attendee %d: %w", id, driven.ErrAttendeeNotFound)
	}
	return a, nil
}

// Update applies an admin edit. Set fields are trimmed and validated; the
// token and scan state are never touched.
func (s *RegistryService) Update(ctx context.Context, id int64, patch model.AttendeePatch) (*model.Attendee, error) {
	patch = model.AttendeePatch{
		Name:     trimPtr(patch.Name),
		TicketID: trimPtr(patch.TicketID),
		Email:    trimPtr(patch.Email),
	}
	if err := s.validate.Struct(patch); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidAttendee, describeValidation(err))
	}
	if patch.Email != nil && *patch.Email != "" {
		if err := s.validate.Var(*patch.Email, "email"); err != nil {
			return nil, fmt.Errorf("%w: email is not a valid address", ErrInvalidAttendee)
		}
	}
	if patch.IsEmpty() {
		return s.Get(ctx, id)
	}

	a, err := callStorage(ctx, s.policy, s.observer, s.logger, "update_attendee", func(ctx context.Context, _ int) (*model.Attendee, error) {
		return s.store.UpdateFields(ctx, id, patch)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("attendee updated", "id", id)
	return a, nil
}

// Delete removes the attendee and its credential.
func (s *RegistryService) Delete(ctx context.Context, id int64) error {
	_, err := callStorage(ctx, s.policy, s.observer, s.logger, "delete_attendee", func(ctx context.Context, _ int) (struct{}, error) {
		return struct{}{}, s.store.Delete(ctx, id)
	})
	if err != nil {
		return err
	}

	s.logger.Info("attendee deleted", "id", id)
	return nil
}

// ResetScan returns one attendee to unused.
func (s *RegistryService) ResetScan(ctx context.Context, id int64) error {
	_, err := callStorage(ctx, s.policy, s.observer, s.logger, "reset_attendee", func(ctx context.Context, _ int) (struct{}, error) {
		return struct{}{}, s.store.ResetScan(ctx, id)
	})
	if err != nil {
		return err
	}

	s.logger.Info("attendee scan reset", "id", id)
	return nil
}

// ResetAll returns every attendee to unused.
func (s *RegistryService) ResetAll(ctx context.Context) (int64, error) {
	n, err := callStorage(ctx, s.policy, s.observer, s.logger, "reset_all", func(ctx context.Context, _ int) (int64, error) {
		return s.store.ResetAll(ctx)
	})
	if err != nil {
		return 0, err
	}

	s.logger.Warn("all scans reset", "count", n)
	return n, nil
}

// ClearAll deletes every attendee.
func (s *RegistryService) ClearAll(ctx context.Context) (int64, error) {
	n, err := callStorage(ctx, s.policy, s.observer, s.logger, "clear_all", func(ctx context.Context, _ int) (int64, error) {
		return s.store.ClearAll(ctx)
	})
	if err != nil {
		return 0, err
	}

	s.logger.Warn("registry cleared", "count", n)
	return n, nil
}

// List streams every attendee, newest first.
func (s *RegistryService) List(ctx context.Context) iter.Seq2[model.Attendee, error] {
	return s.store.ListAll(ctx)
}

// Search finds attendees whose name contains q or whose ticket id equals q.
func (s *RegistryService) Search(ctx context.Context, q string) ([]model.Attendee, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, nil
	}

	byName, err := callStorage(ctx, s.policy, s.observer, s.logger, "search_attendees", func(ctx context.Context, _ int) ([]model.Attendee, error) {
		return s.store.Search(ctx, model.SearchQuery{NameContains: q}, adminSearchLimit)
	})
	if err != nil {
		return nil, fmt.Errorf("search attendees: %w", err)
	}

	byTicket, err := callStorage(ctx, s.policy, s.observer, s.logger, "search_attendees", func(ctx context.Context, _ int) ([]model.Attendee, error) {
		return s.store.Search(ctx, model.SearchQuery{TicketID: q}, 1)
	})
	if err != nil {
		return nil, fmt.Errorf("search attendees: %w", err)
	}

	for _, t := range byTicket {
		if !containsID(byName, t.ID) {
			byName = append([]model.Attendee{t}, byName...)
		}
	}
	return byName, nil
}

// Stats returns total, used and pending counts.
func (s *RegistryService) Stats(ctx context.Context) (model.Stats, error) {
	return callStorage(ctx, s.policy, s.observer, s.logger, "stats", func(ctx context.Context, _ int) (model.Stats, error) {
		return s.store.Stats(ctx)
	})
}

// Credential returns the scannable payload of a stored attendee.
func (s *RegistryService) Credential(ctx context.Context, id int64) (*model.Attendee, model.Credential, error) {
	a, err := s.Get(ctx, id)
	if err != nil {
		return nil, model.Credential{}, err
	}

	cred, err := s.issuer.Credential(*a)
	if err != nil {
		return nil, model.Credential{}, err
	}
	return a, cred, nil
}

// RenderCredential returns the PNG image of an attendee's credential.
func (s *RegistryService) RenderCredential(ctx context.Context, id int64) (*model.Attendee, []byte, error) {
	a, cred, err := s.Credential(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	png, err := s.renderer.RenderPNG(ctx, cred.Payload)
	if err != nil {
		return nil, nil, fmt.Errorf("render credential %d: %w", id, err)
	}
	return a, png, nil
}

// SetPhoto stores data as the attendee's photo, replacing any earlier one.
// Returns ErrInvalidPhoto unless data is a non-empty JPEG, PNG, WebP or GIF
// image of at most MaxPhotoBytes.
func (s *RegistryService) SetPhoto(ctx context.Context, id int64, data []byte) (model.Photo, error) {
	if len(data) == 0 {
		return model.Photo{}, fmt.Errorf("%w: empty upload", ErrInvalidPhoto)
	}
	if len(data) > MaxPhotoBytes {
		return model.Photo{}, fmt.Errorf("%w: larger than %d bytes", ErrInvalidPhoto, MaxPhotoBytes)
	}

	detected := mimetype.Detect(data)
	if !mimetype.EqualsAny(detected.String(), photoTypes...) {
		return model.Photo{}, fmt.Errorf("%w: unsupported format %s", ErrInvalidPhoto, detected.String())
	}
	photo := model.Photo{ContentType: detected.String(), Data: data}

	_, err := callStorage(ctx, s.policy, s.observer, s.logger, "set_photo", func(ctx context.Context, _ int) (struct{}, error) {
		return struct{}{}, s.store.SetPhoto(ctx, id, photo)
	})
	if err != nil {
		return model.Photo{}, err
	}

	s.logger.Info("attendee photo stored", "id", id, "content_type", photo.ContentType, "bytes", len(data))
	return photo, nil
}

// Photo returns the attendee's photo, or ErrPhotoNotFound when none is
// stored.
func (s *RegistryService) Photo(ctx context.Context, id int64) (*model.Photo, error) {
	photo, err := callStorage(ctx, s.policy, s.observer, s.logger, "get_photo", func(ctx context.Context, _ int) (*model.Photo, error) {
		return s.store.GetPhoto(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	if photo == nil {
		return nil, fmt.Errorf("attendee %d: %w", id, ErrPhotoNotFound)
	}
	return photo, nil
}

// DeletePhoto removes the attendee's photo.
func (s *RegistryService) DeletePhoto(ctx context.Context, id int64) error {
	_, err := callStorage(ctx, s.policy, s.observer, s.logger, "delete_photo", func(ctx context.Context, _ int) (struct{}, error) {
		return struct{}{}, s.store.DeletePhoto(ctx, id)
	})
	if err != nil {
		return err
	}

	s.logger.Info("attendee photo removed", "id", id)
	return nil
}

func trimPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}

func containsID(list []model.Attendee, id int64) bool {
	for _, a := range list {
		if a.ID == id {
			return true
		}
	}
	return false
}

// describeValidation turns validator errors into a short operator message.
func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := fieldLabel(fe.Field())
		switch fe.Tag() {
		case "required", "min":
			msgs = append(msgs, field+" is required")
		case "max":
			msgs = append(msgs, field+" is too long")
		case "email":
			msgs = append(msgs, field+" is not a valid address")
		default:
			msgs = append(msgs, field+" is invalid")
		}
	}
	return strings.Join(msgs, "; ")
}

func fieldLabel(field string) string {
	switch field {
	case "TicketID":
		return "ticket id"
	default:
		return strings.ToLower(field)
	}
}
