package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Service wraps API client authentication rules.
type Service struct {
	repo Repository
	cost int
	now  func() time.Time
}

// NewService constructs a new Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, cost: bcrypt.DefaultCost, now: time.Now}
}

// WithCost overrides the bcrypt cost used for new secrets.
func (s *Service) WithCost(cost int) *Service {
	s.cost = cost
	return s
}

// Authenticate validates a "<keyId>.<secret>" token and returns the client.
func (s *Service) Authenticate(ctx context.Context, token string) (*Client, error) {
	keyID, secret, ok := strings.Cut(strings.TrimSpace(token), ".")
	if !ok || keyID == "" || secret == "" {
		return nil, ErrInvalidCredentials
	}
	client, err := s.repo.FindByKeyID(ctx, keyID)
	if err != nil {
		return nil, err
	}
	if !client.IsActive {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(client.SecretHash), []byte(secret)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return client, nil
}

// Touch records that the client was just used.
func (s *Service) Touch(ctx context.Context, client *Client) error {
	return s.repo.TouchLastUsed(ctx, client.ID, s.now().UTC())
}

// CreateClient registers a client and returns it with the plaintext token,
// which is not stored and cannot be recovered later.
func (s *Service) CreateClient(ctx context.Context, in CreateClientInput) (Client, string, error) {
	in.Name = shared.NormalizeText(in.Name)
	if err := in.Validate(); err != nil {
		return Client{}, "", err
	}
	secret, err := randomSecret()
	if err != nil {
		return Client{}, "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), s.cost)
	if err != nil {
		return Client{}, "", err
	}
	if in.Permissions == nil {
		in.Permissions = []string{}
	}
	keyID := strings.ReplaceAll(uuid.NewString(), "-", "")
	client, err := s.repo.CreateClient(ctx, Client{
		Name:        in.Name,
		KeyID:       keyID,
		SecretHash:  string(hash),
		Scope:       in.Scope,
		Permissions: in.Permissions,
	})
	if err != nil {
		return Client{}, "", err
	}
	return client, keyID + "." + secret, nil
}

func randomSecret() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
