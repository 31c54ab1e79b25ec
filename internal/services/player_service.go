package services

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mr-tron/base58"
	"go.uber.org/zap"

	"raffle-engine/internal/auth"
	"raffle-engine/internal/blockchain"
	"raffle-engine/internal/models"
	"raffle-engine/internal/repository"
	"raffle-engine/internal/utils"
)

const (
	loginMessagePrefix = "Sign this message to enter raffles"
	loginWalletLine    = "Wallet: "
	loginIssuedLine    = "Issued At: "

	// LoginMessageTTL bounds how long a signed login message is accepted
	LoginMessageTTL = 5 * time.Minute
	loginClockSkew  = 30 * time.Second
)

// LoginMessage builds the text a wallet signs to log in. It names the wallet
// and the issue time so a signature only opens one short window.
func LoginMessage(walletAddress string, issuedAt time.Time) string {
	return loginMessagePrefix + "\n" +
		loginWalletLine + walletAddress + "\n" +
		loginIssuedLine + strconv.FormatInt(issuedAt.Unix(), 10)
}

func parseLoginMessage(message string) (string, time.Time, error) {
	lines := strings.Split(message, "\n")
	if len(lines) != 3 || lines[0] != loginMessagePrefix ||
		!strings.HasPrefix(lines[1], loginWalletLine) ||
		!strings.HasPrefix(lines[2], loginIssuedLine) {
		return "", time.Time{}, validationError("malformed login message")
	}
	unix, err := strconv.ParseInt(strings.TrimPrefix(lines[2], loginIssuedLine), 10, 64)
	if err != nil {
		return "", time.Time{}, validationError("malformed login message")
	}
	return strings.TrimPrefix(lines[1], loginWalletLine), time.Unix(unix, 0), nil
}

// LoginResult is returned on successful wallet login
type LoginResult struct {
	Token  string         `json:"token"`
	Player *models.Player `json:"player"`
}

// PlayerService registers players by wallet and issues session tokens
type PlayerService struct {
	repo         *repository.Repository
	adminWallets map[string]struct{}
	log          *zap.Logger
	now          func() time.Time

	mu sync.Mutex
	// usedMessages maps accepted login messages to when they expire
	usedMessages map[string]time.Time
}

func NewPlayerService(repo *repository.Repository, adminWallets []string, log *zap.Logger) *PlayerService {
	admins := make(map[string]struct{}, len(adminWallets))
	for _, w := range adminWallets {
		if w = strings.TrimSpace(w); w != "" {
			admins[w] = struct{}{}
		}
	}
	return &PlayerService{
		repo:         repo,
		adminWallets: admins,
		log:          log.Named("player"),
		now:          time.Now,
		usedMessages: make(map[string]time.Time),
	}
}

// VerifyWalletSignature checks an ed25519 signature of message by the wallet.
// The signature may be base58 or hex encoded.
func VerifyWalletSignature(walletAddress, message, signature string) error {
	if !blockchain.IsValidAddress(walletAddress) {
		return validationError("invalid wallet address")
	}
	pubKey, err := base58.Decode(walletAddress)
	if err != nil || len(pubKey) != ed25519.PublicKeySize {
		return validationError("invalid wallet address")
	}

	sig, err := base58.Decode(signature)
	if err != nil || len(sig) != ed25519.SignatureSize {
		sig, err = hex.DecodeString(signature)
		if err != nil || len(sig) != ed25519.SignatureSize {
			return validationError("invalid signature format")
		}
	}

	if !ed25519.Verify(pubKey, []byte(message), sig) {
		return ErrInvalidSignature
	}
	return nil
}

func (s *PlayerService) roleFor(walletAddress string) models.PlayerRole {
	if _, ok := s.adminWallets[walletAddress]; ok {
		return models.PlayerRoleAdmin
	}
	return models.PlayerRolePlayer
}

// LoginChallenge is a message for a wallet to sign and when it lapses
type LoginChallenge struct {
	Message   string    `json:"message"`
	ExpiresAt time.Time `json:"expires_at"`
}

// IssueLoginMessage builds a fresh login message for the wallet
func (s *PlayerService) IssueLoginMessage(walletAddress string) (*LoginChallenge, error) {
	if !blockchain.IsValidAddress(walletAddress) {
		return nil, validationError("invalid wallet address")
	}
	now := s.now()
	return &LoginChallenge{
		Message:   LoginMessage(walletAddress, now),
		ExpiresAt: now.Add(LoginMessageTTL),
	}, nil
}

// checkLoginMessage accepts a message issued for the wallet within
// LoginMessageTTL
func (s *PlayerService) checkLoginMessage(walletAddress, message string) error {
	wallet, issuedAt, err := parseLoginMessage(message)
	if err != nil {
		return err
	}
	if wallet != walletAddress {
		return validationError("login message names another wallet")
	}
	now := s.now()
	if issuedAt.After(now.Add(loginClockSkew)) || now.Sub(issuedAt) > LoginMessageTTL {
		return fmt.Errorf("%w: login message expired", ErrInvalidSignature)
	}
	return nil
}

// consumeLoginMessage records a verified message and reports whether it was
// still unused. Entries are dropped once their window closes.
func (s *PlayerService) consumeLoginMessage(message string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for m, expires := range s.usedMessages {
		if now.After(expires) {
			delete(s.usedMessages, m)
		}
	}
	if _, used := s.usedMessages[message]; used {
		return false
	}
	s.usedMessages[message] = now.Add(LoginMessageTTL + loginClockSkew)
	return true
}

// WalletLogin verifies the signed login message, registers the wallet's
// player on first use and returns a session token. Each message logs in once.
func (s *PlayerService) WalletLogin(ctx context.Context, req *models.WalletLoginRequest) (*LoginResult, error) {
	if err := s.checkLoginMessage(req.WalletAddress, req.Message); err != nil {
		return nil, err
	}
	if err := VerifyWalletSignature(req.WalletAddress, req.Message, req.Signature); err != nil {
		return nil, err
	}
	if !s.consumeLoginMessage(req.Message) {
		return nil, fmt.Errorf("%w: login message already used", ErrInvalidSignature)
	}

	role := s.roleFor(req.WalletAddress)
	player, err := s.repo.GetPlayerByWallet(ctx, req.WalletAddress)
	switch {
	case err == nil:
		if role == models.PlayerRoleAdmin && player.Role != models.PlayerRoleAdmin {
			if err := s.repo.UpdatePlayerRole(ctx, player.ID, role); err != nil {
				return nil, fmt.Errorf("failed to promote player: %w", err)
			}
			player.Role = role
		}
	case repository.IsNotFound(err):
		player, err = s.register(ctx, req.WalletAddress, role)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("failed to load player: %w", err)
	}

	token, err := auth.GenerateToken(player.ID, string(player.Role))
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}

	s.log.Info("wallet login",
		zap.String("player_id", player.ID.String()),
		zap.String("role", string(player.Role)))

	return &LoginResult{Token: token, Player: player}, nil
}

func (s *PlayerService) register(ctx context.Context, walletAddress string, role models.PlayerRole) (*models.Player, error) {
	nickname, err := utils.GenerateNickname()
	if err != nil {
		return nil, err
	}

	player := &models.Player{
		Nickname: nickname,
		Role:     role,
		Wallets: []models.PlayerWallet{{
			WalletAddress: walletAddress,
			IsDefault:     true,
			IsVerified:    true,
		}},
	}
	if err := s.repo.CreatePlayer(ctx, player); err != nil {
		return nil, fmt.Errorf("failed to register player: %w", err)
	}

	s.log.Info("player registered",
		zap.String("player_id", player.ID.String()),
		zap.String("nickname", nickname))
	return player, nil
}

// GetProfile returns the authenticated player with wallets
func (s *PlayerService) GetProfile(ctx context.Context) (*models.Player, error) {
	session, err := auth.RequireAuth(ctx)
	if err != nil {
		return nil, err
	}
	player, err := s.repo.GetPlayerByID(ctx, session.PlayerID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrUnauthenticated
		}
		return nil, fmt.Errorf("failed to load player: %w", err)
	}
	return player, nil
}
