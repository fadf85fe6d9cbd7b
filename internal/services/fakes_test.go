package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fastcrud/apiserver/config"
	"github.com/fastcrud/apiserver/internal/security"
	"github.com/fastcrud/apiserver/internal/store"
	"github.com/fastcrud/apiserver/types"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var errDBDown = errors.New("db down")

func newTestHasher() *security.BcryptHasher {
	return security.NewBcryptHasher(bcrypt.MinCost)
}

func newTestCodec(t *testing.T, now func() time.Time) *security.JWTCodec {
	t.Helper()
	opts := []security.JWTOption{}
	if now != nil {
		opts = append(opts, security.WithClock(now))
	}
	codec, err := security.NewJWTCodec(config.AuthConfig{
		Secret:    "test-secret",
		Algorithm: "HS512",
		Issuer:    "fastcrud-auth",
		Audience:  "fastcrud-auth",
		TokenTTL:  24 * time.Hour,
	}, opts...)
	if err != nil {
		t.Fatalf("NewJWTCodec error: %v", err)
	}
	return codec
}

// faultyRepo wraps the memory store and injects errors per operation.
type faultyRepo struct {
	*store.MemoryUserRepository
	getByEmailErr error
	getByPhoneErr error
	getByIDErr    error
	createErr     error
	listErr       error
}

func (r *faultyRepo) GetByEmail(ctx context.Context, email string) (types.User, error) {
	if r.getByEmailErr != nil {
		return types.User{}, r.getByEmailErr
	}
	return r.MemoryUserRepository.GetByEmail(ctx, email)
}

func (r *faultyRepo) GetByPhone(ctx context.Context, phone string) (types.User, error) {
	if r.getByPhoneErr != nil {
		return types.User{}, r.getByPhoneErr
	}
	return r.MemoryUserRepository.GetByPhone(ctx, phone)
}

func (r *faultyRepo) GetByID(ctx context.Context, id uuid.UUID) (types.User, error) {
	if r.getByIDErr != nil {
		return types.User{}, r.getByIDErr
	}
	return r.MemoryUserRepository.GetByID(ctx, id)
}

func (r *faultyRepo) Create(ctx context.Context, user types.User) (types.User, error) {
	if r.createErr != nil {
		return types.User{}, r.createErr
	}
	return r.MemoryUserRepository.Create(ctx, user)
}

func (r *faultyRepo) List(ctx context.Context, offset, limit int) ([]types.User, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	return r.MemoryUserRepository.List(ctx, offset, limit)
}

// barrierRepo holds every phone lookup until all expected callers have
// arrived, so each of them passes the pre-checks before any insert.
type barrierRepo struct {
	*store.MemoryUserRepository
	arrived sync.WaitGroup
}

func newBarrierRepo(callers int) *barrierRepo {
	r := &barrierRepo{MemoryUserRepository: store.NewMemoryUserRepository()}
	r.arrived.Add(callers)
	return r
}

func (r *barrierRepo) GetByPhone(ctx context.Context, phone string) (types.User, error) {
	r.arrived.Done()
	r.arrived.Wait()
	return r.MemoryUserRepository.GetByPhone(ctx, phone)
}

type publishedEvent struct {
	channel string
	data    []byte
	attrs   map[string]string
}

type fakePublisher struct {
	mu     sync.Mutex
	events []publishedEvent
	err    error
}

func (p *fakePublisher) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return "", p.err
	}
	p.events = append(p.events, publishedEvent{channel: channel, data: data, attrs: attrs})
	return "msg-1", nil
}

// countingHasher records how many verifications were performed.
type countingHasher struct {
	security.PasswordHasher
	mu       sync.Mutex
	verifies int
}

func (h *countingHasher) Verify(password, hash string) bool {
	h.mu.Lock()
	h.verifies++
	h.mu.Unlock()
	return h.PasswordHasher.Verify(password, hash)
}

func (h *countingHasher) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.verifies
}
