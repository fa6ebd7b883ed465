package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"cabnet/internal/domain"
	"cabnet/internal/events"
	"cabnet/internal/payment"
	"cabnet/internal/redis"
	"cabnet/internal/repository"
)

// ──────────────────────────────────────────────
// MOCK RIDE REPOSITORY
// ──────────────────────────────────────────────

// MockRideRepository is an in-memory RideRepository. CompareAndSetStatus is
// atomic under the mutex, like the conditional UPDATE it stands in for.
type MockRideRepository struct {
	mu    sync.RWMutex
	rides map[string]*domain.Ride

	CASCallCount int32
	CASSuccesses int32

	CreateError error
	CASError    error
}

// NewMockRideRepository creates a new mock ride repository.
func NewMockRideRepository() *MockRideRepository {
	return &MockRideRepository{rides: make(map[string]*domain.Ride)}
}

// AddRide adds a ride to the mock repository.
func (m *MockRideRepository) AddRide(ride *domain.Ride) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rides[ride.ID] = ride
}

// GetRide returns the stored ride for assertions.
func (m *MockRideRepository) GetRide(id string) *domain.Ride {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rides[id]
	if !ok {
		return nil
	}
	copy := *r
	return &copy
}

func (m *MockRideRepository) Create(ctx context.Context, ride *domain.Ride) error {
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	copy := *ride
	m.rides[ride.ID] = &copy
	return nil
}

func (m *MockRideRepository) GetByID(ctx context.Context, id string) (*domain.Ride, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ride, ok := m.rides[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *ride
	return &copy, nil
}

func (m *MockRideRepository) CompareAndSetStatus(ctx context.Context, t domain.Transition) (*domain.Ride, error) {
	atomic.AddInt32(&m.CASCallCount, 1)
	if m.CASError != nil {
		return nil, m.CASError
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	ride, ok := m.rides[t.RideID]
	if !ok || ride.Status != t.From {
		return nil, repository.ErrStaleState
	}
	if t.To == domain.RideStatusAccepted && ride.DriverID != "" {
		return nil, repository.ErrStaleState
	}

	ride.Status = t.To
	ride.UpdatedAt = t.At
	switch t.To {
	case domain.RideStatusAccepted:
		ride.DriverID = t.DriverID
		ride.AcceptedAt = t.At
	case domain.RideStatusArrived:
		ride.ArrivedAt = t.At
	case domain.RideStatusStarted:
		ride.StartedAt = t.At
	case domain.RideStatusCompleted:
		ride.CompletedAt = t.At
		ride.FareFrozen = true
		if t.FinalFare != nil {
			ride.Fare = *t.FinalFare
		}
	case domain.RideStatusCancelled:
		ride.Cancellation = t.Cancellation
	}

	atomic.AddInt32(&m.CASSuccesses, 1)
	copy := *ride
	return &copy, nil
}

func (m *MockRideRepository) AdjustFare(ctx context.Context, rideID string, fare domain.Fare) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ride, ok := m.rides[rideID]
	if !ok || ride.FareFrozen {
		return repository.ErrStaleState
	}
	ride.Fare = fare
	return nil
}

func (m *MockRideRepository) UpdatePayment(ctx context.Context, rideID string, p domain.RidePayment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ride, ok := m.rides[rideID]
	if !ok {
		return repository.ErrNotFound
	}
	ride.Payment = p
	return nil
}

func (m *MockRideRepository) ListByRider(ctx context.Context, riderID string, limit int) ([]*domain.Ride, error) {
	return m.filter(limit, func(r *domain.Ride) bool { return r.RiderID == riderID }), nil
}

func (m *MockRideRepository) ListByDriver(ctx context.Context, driverID string, limit int) ([]*domain.Ride, error) {
	return m.filter(limit, func(r *domain.Ride) bool { return r.DriverID == driverID }), nil
}

func (m *MockRideRepository) ListRequested(ctx context.Context, rideType domain.RideType, limit int) ([]*domain.Ride, error) {
	return m.filter(limit, func(r *domain.Ride) bool {
		return r.Status == domain.RideStatusRequested && r.RideType == rideType
	}), nil
}

func (m *MockRideRepository) CountRequestedNear(ctx context.Context, lat, lng, radiusKm float64) (int, error) {
	return len(m.filter(0, func(r *domain.Ride) bool { return r.Status == domain.RideStatusRequested })), nil
}

func (m *MockRideRepository) filter(limit int, keep func(*domain.Ride) bool) []*domain.Ride {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]*domain.Ride, 0)
	for _, r := range m.rides {
		if keep(r) {
			copy := *r
			result = append(result, &copy)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result
}

// ──────────────────────────────────────────────
// MOCK RIDER REPOSITORY
// ──────────────────────────────────────────────

// MockRiderRepository is an in-memory RiderRepository.
type MockRiderRepository struct {
	mu     sync.RWMutex
	riders map[string]*domain.Rider

	CreateError error
	GetError    error
}

// NewMockRiderRepository creates a new mock rider repository.
func NewMockRiderRepository() *MockRiderRepository {
	return &MockRiderRepository{riders: make(map[string]*domain.Rider)}
}

// AddRider adds a rider to the mock repository.
func (m *MockRiderRepository) AddRider(rider *domain.Rider) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.riders[rider.ID] = rider
}

func (m *MockRiderRepository) Create(ctx context.Context, rider *domain.Rider) error {
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.riders {
		if r.ClerkID == rider.ClerkID || r.Email == rider.Email {
			return repository.ErrDuplicate
		}
	}
	copy := *rider
	m.riders[rider.ID] = &copy
	return nil
}

func (m *MockRiderRepository) GetByID(ctx context.Context, id string) (*domain.Rider, error) {
	return m.find(func(r *domain.Rider) bool { return r.ID == id })
}

func (m *MockRiderRepository) GetByClerkID(ctx context.Context, clerkID string) (*domain.Rider, error) {
	return m.find(func(r *domain.Rider) bool { return r.ClerkID == clerkID })
}

func (m *MockRiderRepository) GetByEmail(ctx context.Context, email string) (*domain.Rider, error) {
	return m.find(func(r *domain.Rider) bool { return r.Email == email })
}

func (m *MockRiderRepository) UpdateProfile(ctx context.Context, rider *domain.Rider) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.riders[rider.ID]; !ok {
		return repository.ErrNotFound
	}
	copy := *rider
	m.riders[rider.ID] = &copy
	return nil
}

func (m *MockRiderRepository) find(match func(*domain.Rider) bool) (*domain.Rider, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.riders {
		if match(r) {
			copy := *r
			return &copy, nil
		}
	}
	return nil, repository.ErrNotFound
}

// ──────────────────────────────────────────────
// MOCK DRIVER REPOSITORY
// ──────────────────────────────────────────────

// MockDriverRepository is an in-memory DriverRepository.
type MockDriverRepository struct {
	mu      sync.RWMutex
	drivers map[string]*domain.Driver

	GetByIDsCallCount   int32
	FindNearbyCallCount int32

	CreateError error
	CASError    error
}

// NewMockDriverRepository creates a new mock driver repository.
func NewMockDriverRepository() *MockDriverRepository {
	return &MockDriverRepository{drivers: make(map[string]*domain.Driver)}
}

// AddDriver adds a driver to the mock repository.
func (m *MockDriverRepository) AddDriver(driver *domain.Driver) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drivers[driver.ID] = driver
}

// GetDriver returns the stored driver for assertions.
func (m *MockDriverRepository) GetDriver(id string) *domain.Driver {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.drivers[id]
	if !ok {
		return nil
	}
	copy := *d
	return &copy
}

func (m *MockDriverRepository) Create(ctx context.Context, driver *domain.Driver) error {
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.drivers {
		if d.ClerkID == driver.ClerkID || d.Email == driver.Email ||
			d.LicenseNumber == driver.LicenseNumber || d.Vehicle.PlateNumber == driver.Vehicle.PlateNumber {
			return repository.ErrDuplicate
		}
	}
	copy := *driver
	m.drivers[driver.ID] = &copy
	return nil
}

func (m *MockDriverRepository) GetByID(ctx context.Context, id string) (*domain.Driver, error) {
	return m.find(func(d *domain.Driver) bool { return d.ID == id })
}

func (m *MockDriverRepository) GetByClerkID(ctx context.Context, clerkID string) (*domain.Driver, error) {
	return m.find(func(d *domain.Driver) bool { return d.ClerkID == clerkID })
}

func (m *MockDriverRepository) GetByEmail(ctx context.Context, email string) (*domain.Driver, error) {
	return m.find(func(d *domain.Driver) bool { return d.Email == email })
}

func (m *MockDriverRepository) GetByIDs(ctx context.Context, ids []string) ([]*domain.Driver, error) {
	atomic.AddInt32(&m.GetByIDsCallCount, 1)
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]*domain.Driver, 0, len(ids))
	for _, id := range ids {
		if d, ok := m.drivers[id]; ok {
			copy := *d
			result = append(result, &copy)
		}
	}
	return result, nil
}

func (m *MockDriverRepository) UpdateProfile(ctx context.Context, driver *domain.Driver) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.drivers[driver.ID]; !ok {
		return repository.ErrNotFound
	}
	copy := *driver
	m.drivers[driver.ID] = &copy
	return nil
}

func (m *MockDriverRepository) UpdateStatus(ctx context.Context, id string, status domain.DriverStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.drivers[id]
	if !ok {
		return repository.ErrNotFound
	}
	d.Status = status
	return nil
}

func (m *MockDriverRepository) CompareAndSetStatus(ctx context.Context, id string, from, to domain.DriverStatus) error {
	if m.CASError != nil {
		return m.CASError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.drivers[id]
	if !ok || d.Status != from {
		return repository.ErrStaleState
	}
	d.Status = to
	return nil
}

func (m *MockDriverRepository) UpdateLocation(ctx context.Context, id string, loc domain.Location) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.drivers[id]
	if !ok {
		return repository.ErrNotFound
	}
	d.Location = loc
	return nil
}

func (m *MockDriverRepository) FindNearby(ctx context.Context, lat, lng float64, rideType domain.RideType, maxMeters float64, limit int) ([]domain.NearbyDriver, error) {
	atomic.AddInt32(&m.FindNearbyCallCount, 1)
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]domain.NearbyDriver, 0)
	for _, d := range m.drivers {
		if d.CanAccept(rideType) {
			copy := *d
			result = append(result, domain.NearbyDriver{Driver: &copy})
		}
	}
	return result, nil
}

func (m *MockDriverRepository) find(match func(*domain.Driver) bool) (*domain.Driver, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, d := range m.drivers {
		if match(d) {
			copy := *d
			return &copy, nil
		}
	}
	return nil, repository.ErrNotFound
}

// ──────────────────────────────────────────────
// MOCK PAYMENT REPOSITORY
// ──────────────────────────────────────────────

// MockPaymentRepository is an in-memory PaymentRepository.
type MockPaymentRepository struct {
	mu       sync.RWMutex
	payments map[string]*domain.Payment

	CreateCallCount int32
}

// NewMockPaymentRepository creates a new mock payment repository.
func NewMockPaymentRepository() *MockPaymentRepository {
	return &MockPaymentRepository{payments: make(map[string]*domain.Payment)}
}

// CountPayments returns the number of payments.
func (m *MockPaymentRepository) CountPayments() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.payments)
}

func (m *MockPaymentRepository) Create(ctx context.Context, p *domain.Payment) error {
	atomic.AddInt32(&m.CreateCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.payments {
		if existing.IdempotencyKey == p.IdempotencyKey {
			return repository.ErrDuplicate
		}
	}
	copy := *p
	m.payments[p.ID] = &copy
	return nil
}

func (m *MockPaymentRepository) GetByID(ctx context.Context, id string) (*domain.Payment, error) {
	p, err := m.find(func(p *domain.Payment) bool { return p.ID == id })
	if p == nil && err == nil {
		return nil, repository.ErrNotFound
	}
	return p, err
}

func (m *MockPaymentRepository) GetByIdempotencyKey(ctx context.Context, key string) (*domain.Payment, error) {
	return m.find(func(p *domain.Payment) bool { return p.IdempotencyKey == key })
}

func (m *MockPaymentRepository) GetByGatewayRef(ctx context.Context, ref string) (*domain.Payment, error) {
	p, err := m.find(func(p *domain.Payment) bool { return p.GatewayRef == ref })
	if p == nil && err == nil {
		return nil, repository.ErrNotFound
	}
	return p, err
}

func (m *MockPaymentRepository) AttachGatewayRef(ctx context.Context, id, ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok || p.Status != domain.PaymentStatusPending {
		return repository.ErrStaleState
	}
	p.GatewayRef = ref
	return nil
}

func (m *MockPaymentRepository) UpdateStatus(ctx context.Context, id string, status domain.PaymentStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok {
		return repository.ErrNotFound
	}
	p.Status = status
	return nil
}

func (m *MockPaymentRepository) ListByRider(ctx context.Context, riderID string, limit int) ([]*domain.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]*domain.Payment, 0)
	for _, p := range m.payments {
		if p.RiderID == riderID {
			copy := *p
			result = append(result, &copy)
		}
	}
	return result, nil
}

func (m *MockPaymentRepository) find(match func(*domain.Payment) bool) (*domain.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.payments {
		if match(p) {
			copy := *p
			return &copy, nil
		}
	}
	return nil, nil
}

// ──────────────────────────────────────────────
// MOCK REVIEW REPOSITORY
// ──────────────────────────────────────────────

// MockReviewRepository keeps reviews in memory and recomputes aggregates
// under one lock, mirroring the row-locked transaction.
type MockReviewRepository struct {
	mu      sync.Mutex
	reviews []*domain.Review
	helpful map[string]map[string]bool
	ratings map[string]domain.Rating
}

// NewMockReviewRepository creates a new mock review repository.
func NewMockReviewRepository() *MockReviewRepository {
	return &MockReviewRepository{
		helpful: make(map[string]map[string]bool),
		ratings: make(map[string]domain.Rating),
	}
}

// Rating returns the stored aggregate of a party.
func (m *MockReviewRepository) Rating(p domain.Party) domain.Rating {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ratings[string(p.Role())+":"+p.PartyID()]
}

func (m *MockReviewRepository) CreateAndRecompute(ctx context.Context, review *domain.Review) (domain.Rating, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range m.reviews {
		if r.RideID == review.RideID && r.Reviewer.PartyID() == review.Reviewer.PartyID() {
			return domain.Rating{}, repository.ErrDuplicate
		}
	}
	copy := *review
	m.reviews = append(m.reviews, &copy)

	var sum, count int
	for _, r := range m.reviews {
		if r.IsPublic && r.Reviewee == review.Reviewee {
			sum += r.Rating
			count++
		}
	}
	rating := domain.Rating{Average: float64(sum) / float64(count), Count: count}
	m.ratings[string(review.Reviewee.Role())+":"+review.Reviewee.PartyID()] = rating
	return rating, nil
}

func (m *MockReviewRepository) ListForReviewee(ctx context.Context, reviewee domain.Party, limit int) ([]*domain.Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]*domain.Review, 0)
	for _, r := range m.reviews {
		if r.IsPublic && r.Reviewee == reviewee {
			copy := *r
			result = append(result, &copy)
		}
	}
	return result, nil
}

func (m *MockReviewRepository) ToggleHelpful(ctx context.Context, reviewID, identityID string) (int, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.reviews {
		if r.ID != reviewID {
			continue
		}
		marks := m.helpful[reviewID]
		if marks == nil {
			marks = make(map[string]bool)
			m.helpful[reviewID] = marks
		}
		if marks[identityID] {
			delete(marks, identityID)
		} else {
			marks[identityID] = true
		}
		r.HelpfulCount = len(marks)
		return r.HelpfulCount, marks[identityID], nil
	}
	return 0, false, repository.ErrNotFound
}

// ──────────────────────────────────────────────
// MOCK LOCATION STORE
// ──────────────────────────────────────────────

// MockLocationStore is a LocationStoreInterface without geo filtering.
type MockLocationStore struct {
	mu        sync.RWMutex
	locations []redis.DriverLocation

	FindNearbyDriversError error
	CountError             error
}

// NewMockLocationStore creates a new mock location store.
func NewMockLocationStore() *MockLocationStore {
	return &MockLocationStore{}
}

// SetLocations sets all locations, nearest first.
func (m *MockLocationStore) SetLocations(locations []redis.DriverLocation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locations = locations
}

// HasLocation checks if a driver location exists.
func (m *MockLocationStore) HasLocation(driverID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, loc := range m.locations {
		if loc.DriverID == driverID {
			return true
		}
	}
	return false
}

func (m *MockLocationStore) UpdateLocation(ctx context.Context, driverID string, lat, lng float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, loc := range m.locations {
		if loc.DriverID == driverID {
			m.locations[i].Lat, m.locations[i].Lng = lat, lng
			return nil
		}
	}
	m.locations = append(m.locations, redis.DriverLocation{DriverID: driverID, Lat: lat, Lng: lng})
	return nil
}

func (m *MockLocationStore) FindNearbyDrivers(ctx context.Context, lat, lng, radiusM float64, limit int) ([]redis.DriverLocation, error) {
	if m.FindNearbyDriversError != nil {
		return nil, m.FindNearbyDriversError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]redis.DriverLocation, 0, len(m.locations))
	for _, loc := range m.locations {
		if loc.DistanceM <= radiusM {
			result = append(result, loc)
		}
	}
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *MockLocationStore) CountNearbyDrivers(ctx context.Context, lat, lng, radiusM float64) (int, error) {
	if m.CountError != nil {
		return 0, m.CountError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.locations), nil
}

func (m *MockLocationStore) RemoveLocation(ctx context.Context, driverID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, loc := range m.locations {
		if loc.DriverID == driverID {
			m.locations = append(m.locations[:i], m.locations[i+1:]...)
			return nil
		}
	}
	return nil
}

// ──────────────────────────────────────────────
// MOCK DRIVER CACHE
// ──────────────────────────────────────────────

// MockDriverCache is an in-memory DriverCacheInterface.
type MockDriverCache struct {
	mu      sync.Mutex
	drivers map[string]*redis.CachedDriver

	Invalidations int32
}

// NewMockDriverCache creates a new mock driver cache.
func NewMockDriverCache() *MockDriverCache {
	return &MockDriverCache{drivers: make(map[string]*redis.CachedDriver)}
}

// Has reports whether the driver is cached.
func (m *MockDriverCache) Has(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.drivers[id]
	return ok
}

func (m *MockDriverCache) GetDriversBatch(ctx context.Context, ids []string) (map[string]*redis.CachedDriver, []string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	hits := make(map[string]*redis.CachedDriver)
	var missing []string
	for _, id := range ids {
		if c, ok := m.drivers[id]; ok {
			hits[id] = c
		} else {
			missing = append(missing, id)
		}
	}
	return hits, missing, nil
}

func (m *MockDriverCache) SetDriversBatch(ctx context.Context, drivers []*redis.CachedDriver) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range drivers {
		m.drivers[d.ID] = d
	}
	return nil
}

func (m *MockDriverCache) InvalidateDriver(ctx context.Context, id string) error {
	atomic.AddInt32(&m.Invalidations, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.drivers, id)
	return nil
}

// ──────────────────────────────────────────────
// RECORDING PUBLISHER
// ──────────────────────────────────────────────

// RecordingPublisher captures published events.
type RecordingPublisher struct {
	mu     sync.Mutex
	events []events.Envelope

	Err error
}

func (p *RecordingPublisher) Publish(ctx context.Context, channel, event string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events.Envelope{Channel: channel, Event: event, Data: payload, OccurredAt: time.Now()})
	return p.Err
}

// Events returns the captured envelopes.
func (p *RecordingPublisher) Events() []events.Envelope {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Envelope, len(p.events))
	copy(out, p.events)
	return out
}

// Count returns the number of events named event.
func (p *RecordingPublisher) Count(event string) int {
	n := 0
	for _, e := range p.Events() {
		if e.Event == event {
			n++
		}
	}
	return n
}

// Reset drops the captured envelopes.
func (p *RecordingPublisher) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = nil
}

// ──────────────────────────────────────────────
// STUB GATEWAY
// ──────────────────────────────────────────────

// StubGateway is a scripted payment.Gateway.
type StubGateway struct {
	mu sync.Mutex

	CreateError   error
	ConfirmStatus domain.PaymentStatus
	ConfirmError  error
	ConfirmDelay  time.Duration

	CreateCallCount  int32
	ConfirmCallCount int32
	LastAmountCents  int64
	LastCheckout     payment.CheckoutParams
}

func (g *StubGateway) CreateCharge(ctx context.Context, amountCents int64, currency string, metadata map[string]string) (payment.Intent, error) {
	n := atomic.AddInt32(&g.CreateCallCount, 1)
	g.mu.Lock()
	g.LastAmountCents = amountCents
	g.mu.Unlock()
	if g.CreateError != nil {
		return payment.Intent{}, g.CreateError
	}
	ref := fmt.Sprintf("pi_%s_%d", metadata["rideId"], n)
	return payment.Intent{Reference: ref, ClientToken: ref + "_secret", Status: domain.PaymentStatusPending}, nil
}

func (g *StubGateway) CreateCheckoutSession(ctx context.Context, params payment.CheckoutParams) (payment.Checkout, error) {
	n := atomic.AddInt32(&g.CreateCallCount, 1)
	g.mu.Lock()
	g.LastAmountCents = params.AmountCents
	g.LastCheckout = params
	g.mu.Unlock()
	if g.CreateError != nil {
		return payment.Checkout{}, g.CreateError
	}
	ref := fmt.Sprintf("cs_%s_%d", params.Metadata["rideId"], n)
	return payment.Checkout{Reference: ref, URL: "https://checkout.example.com/" + ref, Status: domain.PaymentStatusPending}, nil
}

func (g *StubGateway) ConfirmCharge(ctx context.Context, ref string) (domain.PaymentStatus, error) {
	atomic.AddInt32(&g.ConfirmCallCount, 1)
	if g.ConfirmDelay > 0 {
		select {
		case <-time.After(g.ConfirmDelay):
		case <-ctx.Done():
			return "", errors.Join(payment.ErrTimeout, ctx.Err())
		}
	}
	if g.ConfirmError != nil {
		return "", g.ConfirmError
	}
	return g.ConfirmStatus, nil
}

func (g *StubGateway) ParseWebhook(body []byte, signature string) (payment.WebhookEvent, error) {
	if signature != "valid" {
		return payment.WebhookEvent{}, payment.ErrInvalidSignature
	}
	var ev payment.WebhookEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return payment.WebhookEvent{}, err
	}
	return ev, nil
}

// ──────────────────────────────────────────────
// FIXED SURGE
// ──────────────────────────────────────────────

// FixedSurge always returns the same multiplier.
type FixedSurge float64

func (f FixedSurge) GetMultiplier(ctx context.Context, lat, lng float64) float64 {
	return float64(f)
}
