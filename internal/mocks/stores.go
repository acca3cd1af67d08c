package mocks

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/phrazzld/studycycle-api/internal/domain"
	"github.com/phrazzld/studycycle-api/internal/store"
)

// ProfileStore is an in-memory store.ProfileStore.
type ProfileStore struct {
	mu       sync.Mutex
	profiles map[uuid.UUID]domain.UserProfile

	GetErr  error
	SaveErr error
}

var _ store.ProfileStore = (*ProfileStore)(nil)

// NewProfileStore creates a store holding the given profiles.
func NewProfileStore(profiles ...*domain.UserProfile) *ProfileStore {
	s := &ProfileStore{profiles: map[uuid.UUID]domain.UserProfile{}}
	for _, p := range profiles {
		s.profiles[p.ID] = *p
	}
	return s
}

// GetUserProfile implements store.ProfileStore.
func (s *ProfileStore) GetUserProfile(_ context.Context, userID uuid.UUID) (*domain.UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.GetErr != nil {
		return nil, s.GetErr
	}
	p, ok := s.profiles[userID]
	if !ok {
		return nil, store.ErrUserProfileNotFound
	}
	return &p, nil
}

// SaveUserProfile implements store.ProfileStore.
func (s *ProfileStore) SaveUserProfile(_ context.Context, profile *domain.UserProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SaveErr != nil {
		return s.SaveErr
	}
	s.profiles[profile.ID] = *profile
	return nil
}

// WithTx implements store.ProfileStore.
func (s *ProfileStore) WithTx(*sql.Tx) store.ProfileStore { return s }

// ContentStore is an in-memory store.ContentStore.
type ContentStore struct {
	mu    sync.Mutex
	items map[uuid.UUID]domain.ContentItem

	GetErr    error
	CreateErr error
}

var _ store.ContentStore = (*ContentStore)(nil)

// NewContentStore creates a store holding the given items.
func NewContentStore(items ...*domain.ContentItem) *ContentStore {
	s := &ContentStore{items: map[uuid.UUID]domain.ContentItem{}}
	for _, it := range items {
		s.items[it.ID] = *it
	}
	return s
}

// GetContentItem implements store.ContentStore.
func (s *ContentStore) GetContentItem(_ context.Context, id uuid.UUID) (*domain.ContentItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.GetErr != nil {
		return nil, s.GetErr
	}
	it, ok := s.items[id]
	if !ok {
		return nil, store.ErrContentItemNotFound
	}
	return &it, nil
}

// CreateContentItem implements store.ContentStore.
func (s *ContentStore) CreateContentItem(_ context.Context, item *domain.ContentItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.CreateErr != nil {
		return s.CreateErr
	}
	if _, ok := s.items[item.ID]; ok {
		return store.ErrContentItemExists
	}
	s.items[item.ID] = *item
	return nil
}

// WithTx implements store.ContentStore.
func (s *ContentStore) WithTx(*sql.Tx) store.ContentStore { return s }

// CoefficientStore is an in-memory store.CoefficientStore that records every
// saved set.
type CoefficientStore struct {
	mu    sync.Mutex
	saved []domain.ModelCoefficients

	LoadErr error
	SaveErr error
}

var _ store.CoefficientStore = (*CoefficientStore)(nil)

// NewCoefficientStore creates a store, optionally holding an initial set.
func NewCoefficientStore(initial ...domain.ModelCoefficients) *CoefficientStore {
	return &CoefficientStore{saved: append([]domain.ModelCoefficients(nil), initial...)}
}

// LoadCoefficients implements store.CoefficientStore.
func (s *CoefficientStore) LoadCoefficients(context.Context) (domain.ModelCoefficients, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.LoadErr != nil {
		return domain.ModelCoefficients{}, s.LoadErr
	}
	if len(s.saved) == 0 {
		return domain.ModelCoefficients{}, store.ErrCoefficientsNotFound
	}
	return s.saved[len(s.saved)-1], nil
}

// SaveCoefficients implements store.CoefficientStore.
func (s *CoefficientStore) SaveCoefficients(_ context.Context, coefs domain.ModelCoefficients) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SaveErr != nil {
		return s.SaveErr
	}
	s.saved = append(s.saved, coefs)
	return nil
}

// Saved returns every set saved so far, oldest first.
func (s *CoefficientStore) Saved() []domain.ModelCoefficients {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.ModelCoefficients(nil), s.saved...)
}

// ReviewEventStore is an in-memory store.ReviewEventStore.
type ReviewEventStore struct {
	mu     sync.Mutex
	events []domain.ReviewEvent

	LogErr  error
	ListErr error
}

var _ store.ReviewEventStore = (*ReviewEventStore)(nil)

// NewReviewEventStore creates a store holding the given events.
func NewReviewEventStore(events ...domain.ReviewEvent) *ReviewEventStore {
	return &ReviewEventStore{events: append([]domain.ReviewEvent(nil), events...)}
}

// LogReviewEvent implements store.ReviewEventStore.
func (s *ReviewEventStore) LogReviewEvent(_ context.Context, event *domain.ReviewEvent) (*domain.ReviewEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.LogErr != nil {
		return nil, s.LogErr
	}
	if err := event.Validate(); err != nil {
		return nil, err
	}
	e := *event
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	now := time.Now().UTC()
	if e.Timestamp.IsZero() {
		e.Timestamp = now
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	s.events = append(s.events, e)
	return &e, nil
}

func (s *ReviewEventStore) filter(keep func(domain.ReviewEvent) bool) ([]domain.ReviewEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ListErr != nil {
		return nil, s.ListErr
	}
	var out []domain.ReviewEvent
	for _, e := range s.events {
		if keep(e) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

// GetReviewEventsForUser implements store.ReviewEventStore.
func (s *ReviewEventStore) GetReviewEventsForUser(_ context.Context, userID uuid.UUID) ([]domain.ReviewEvent, error) {
	return s.filter(func(e domain.ReviewEvent) bool { return e.UserID == userID })
}

// GetReviewEventsForUserItem implements store.ReviewEventStore.
func (s *ReviewEventStore) GetReviewEventsForUserItem(
	_ context.Context,
	userID, itemID uuid.UUID,
	limit int,
) ([]domain.ReviewEvent, error) {
	out, err := s.filter(func(e domain.ReviewEvent) bool { return e.UserID == userID && e.ItemID == itemID })
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

// GetAllReviewEvents implements store.ReviewEventStore.
func (s *ReviewEventStore) GetAllReviewEvents(context.Context) ([]domain.ReviewEvent, error) {
	return s.filter(func(domain.ReviewEvent) bool { return true })
}

// WithTx implements store.ReviewEventStore.
func (s *ReviewEventStore) WithTx(*sql.Tx) store.ReviewEventStore { return s }

// TrainingExampleStore is an in-memory store.TrainingExampleStore.
type TrainingExampleStore struct {
	mu       sync.Mutex
	examples []domain.TrainingExample

	LogErr  error
	ListErr error
}

var _ store.TrainingExampleStore = (*TrainingExampleStore)(nil)

// NewTrainingExampleStore creates a store holding the given examples.
func NewTrainingExampleStore(examples ...domain.TrainingExample) *TrainingExampleStore {
	return &TrainingExampleStore{examples: append([]domain.TrainingExample(nil), examples...)}
}

// LogTrainingExample implements store.TrainingExampleStore.
func (s *TrainingExampleStore) LogTrainingExample(_ context.Context, example *domain.TrainingExample) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.LogErr != nil {
		return s.LogErr
	}
	e := *example
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	s.examples = append(s.examples, e)
	return nil
}

// ListTrainingExamples implements store.TrainingExampleStore.
func (s *TrainingExampleStore) ListTrainingExamples(context.Context) ([]domain.TrainingExample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ListErr != nil {
		return nil, s.ListErr
	}
	return append([]domain.TrainingExample(nil), s.examples...), nil
}

// LambdaStore is an in-memory store.LambdaStore that counts writes.
type LambdaStore struct {
	mu      sync.Mutex
	lambdas map[uuid.UUID]domain.UserLambda
	sets    int

	GetErr error
	SetErr error
}

var _ store.LambdaStore = (*LambdaStore)(nil)

// NewLambdaStore creates a store holding the given rates.
func NewLambdaStore(lambdas ...*domain.UserLambda) *LambdaStore {
	s := &LambdaStore{lambdas: map[uuid.UUID]domain.UserLambda{}}
	for _, l := range lambdas {
		s.lambdas[l.UserID] = *l
	}
	return s
}

// GetUserLambda implements store.LambdaStore.
func (s *LambdaStore) GetUserLambda(_ context.Context, userID uuid.UUID) (*domain.UserLambda, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.GetErr != nil {
		return nil, s.GetErr
	}
	l, ok := s.lambdas[userID]
	if !ok {
		return nil, store.ErrUserLambdaNotFound
	}
	return &l, nil
}

// SetUserLambda implements store.LambdaStore.
func (s *LambdaStore) SetUserLambda(_ context.Context, ul *domain.UserLambda) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sets++
	if s.SetErr != nil {
		return s.SetErr
	}
	if err := ul.Validate(); err != nil {
		return err
	}
	s.lambdas[ul.UserID] = *ul
	return nil
}

// Sets returns the number of SetUserLambda calls, failed ones included.
func (s *LambdaStore) Sets() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sets
}

// VariantStore is an in-memory store.VariantStore.
type VariantStore struct {
	mu       sync.Mutex
	variants map[uuid.UUID]domain.ReviewVariant
	order    []uuid.UUID

	GetErr    error
	CreateErr error
	MarkErr   error
}

var _ store.VariantStore = (*VariantStore)(nil)

// NewVariantStore creates a store holding the given variants in order.
func NewVariantStore(variants ...*domain.ReviewVariant) *VariantStore {
	s := &VariantStore{variants: map[uuid.UUID]domain.ReviewVariant{}}
	for _, v := range variants {
		s.put(*v)
	}
	return s
}

func (s *VariantStore) put(v domain.ReviewVariant) {
	if _, ok := s.variants[v.ID]; !ok {
		s.order = append(s.order, v.ID)
	}
	v.LastUsedBy = copyUsage(v.LastUsedBy)
	s.variants[v.ID] = v
}

func copyUsage(m map[uuid.UUID]time.Time) map[uuid.UUID]time.Time {
	out := make(map[uuid.UUID]time.Time, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *VariantStore) get(id uuid.UUID) domain.ReviewVariant {
	v := s.variants[id]
	v.LastUsedBy = copyUsage(v.LastUsedBy)
	return v
}

// GetReviewVariantsForItem implements store.VariantStore.
func (s *VariantStore) GetReviewVariantsForItem(_ context.Context, itemID uuid.UUID) ([]domain.ReviewVariant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.GetErr != nil {
		return nil, s.GetErr
	}
	var out []domain.ReviewVariant
	for _, id := range s.order {
		if s.variants[id].ItemID == itemID {
			out = append(out, s.get(id))
		}
	}
	return out, nil
}

// GetReviewVariant implements store.VariantStore.
func (s *VariantStore) GetReviewVariant(_ context.Context, id uuid.UUID) (*domain.ReviewVariant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.GetErr != nil {
		return nil, s.GetErr
	}
	if _, ok := s.variants[id]; !ok {
		return nil, store.ErrVariantNotFound
	}
	v := s.get(id)
	return &v, nil
}

// CreateReviewVariant implements store.VariantStore.
func (s *VariantStore) CreateReviewVariant(_ context.Context, variant *domain.ReviewVariant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.CreateErr != nil {
		return s.CreateErr
	}
	if err := variant.Validate(); err != nil {
		return err
	}
	if _, ok := s.variants[variant.ID]; ok {
		return store.ErrDuplicate
	}
	s.put(*variant)
	return nil
}

// MarkVariantUsed implements store.VariantStore.
func (s *VariantStore) MarkVariantUsed(_ context.Context, variantID, userID uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.MarkErr != nil {
		return s.MarkErr
	}
	v, ok := s.variants[variantID]
	if !ok {
		return store.ErrVariantNotFound
	}
	if v.LastUsedBy == nil {
		v.LastUsedBy = map[uuid.UUID]time.Time{}
	}
	v.LastUsedBy[userID] = at.UTC()
	s.variants[variantID] = v
	return nil
}

// GetScheduledDueVariants implements store.VariantStore.
func (s *VariantStore) GetScheduledDueVariants(
	_ context.Context,
	userID uuid.UUID,
	now time.Time,
) ([]domain.ReviewVariant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.GetErr != nil {
		return nil, s.GetErr
	}
	var out []domain.ReviewVariant
	for _, id := range s.order {
		sched := s.variants[id].Metadata.Schedule
		if sched != nil && sched.UserID == userID && !sched.NextReviewAt.After(now) {
			out = append(out, s.get(id))
		}
	}
	return out, nil
}

// WithTx implements store.VariantStore.
func (s *VariantStore) WithTx(*sql.Tx) store.VariantStore { return s }
