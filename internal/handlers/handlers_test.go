package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"raffle-engine/internal/auth"
	"raffle-engine/internal/ledger"
	"raffle-engine/internal/middleware"
	"raffle-engine/internal/models"
	"raffle-engine/internal/repository"
	"raffle-engine/internal/services"
	"raffle-engine/internal/testutil"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type testServer struct {
	db     *gorm.DB
	router *gin.Engine
}

func newTestServer(t *testing.T, limiter *middleware.RateLimiter) *testServer {
	t.Helper()
	auth.InitJWT("handler-test-secret", time.Hour)

	db := testutil.NewDB(t)
	repo := repository.NewRepository(db)
	log := zap.NewNop()

	l := ledger.New()
	distribution := services.NewDistributionService(repo, l, nil, services.DistributionSettings{}, log)
	raffles := services.NewRaffleService(repo, log)
	participation := services.NewParticipationService(repo, l, distribution, log)
	reveal := services.NewRevealService(repo, services.RevealSettings{}, log)

	router := NewRouter(RouterConfig{
		DB:      db,
		Raffles: NewRaffleHandler(raffles, participation, reveal, log),
		Admin: NewAdminHandler(AdminServices{
			Raffles:        raffles,
			Draws:          services.NewDrawService(repo, log),
			Distribution:   distribution,
			Reconciliation: services.NewReconciliationService(repo, nil, log),
		}, log),
		Auth:          NewAuthHandler(services.NewPlayerService(repo, nil, log), log),
		Participation: limiter,
		Log:           log,
	})
	return &testServer{db: db, router: router}
}

func token(t *testing.T, playerID uuid.UUID, role string) string {
	t.Helper()
	tok, err := auth.GenerateToken(playerID, role)
	require.NoError(t, err)
	return tok
}

func (s *testServer) do(t *testing.T, method, path, tok string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		_ = json.Unmarshal(w.Body.Bytes(), &env)
	}
	return w, env
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusUnauthorized, HTTPStatus(services.CodeUnauthenticated))
	assert.Equal(t, http.StatusForbidden, HTTPStatus(services.CodeForbidden))
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(services.CodeValidation))
	assert.Equal(t, http.StatusNotFound, HTTPStatus(services.CodeRaffleNotFound))
	assert.Equal(t, http.StatusConflict, HTTPStatus(services.CodePoolExhausted))
	assert.Equal(t, http.StatusPaymentRequired, HTTPStatus(services.CodeInsufficientFee))
	assert.Equal(t, http.StatusServiceUnavailable, HTTPStatus(services.CodeChainUnavailable))
	assert.Equal(t, http.StatusBadGateway, HTTPStatus(services.CodePayoutFailed))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(services.CodeDrawFailed))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus("SOMETHING_ELSE"))
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, nil)
	w, _ := s.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestLoginMessage(t *testing.T) {
	s := newTestServer(t, nil)
	wallet := "11111111111111111111111111111111"

	w, env := s.do(t, http.MethodGet, "/auth/message?wallet_address="+wallet, "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var challenge services.LoginChallenge
	require.NoError(t, json.Unmarshal(env.Data, &challenge))
	assert.Contains(t, challenge.Message, wallet)
	assert.True(t, challenge.ExpiresAt.After(time.Now()))

	w, env = s.do(t, http.MethodGet, "/auth/message", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, services.CodeValidation, env.Error.Code)
}

func TestWalletLoginRejectsMissingFields(t *testing.T) {
	s := newTestServer(t, nil)
	w, env := s.do(t, http.MethodPost, "/auth/wallet", "", gin.H{"wallet_address": "abc"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, services.CodeValidation, env.Error.Code)
}

func TestMeRequiresToken(t *testing.T) {
	s := newTestServer(t, nil)
	w, env := s.do(t, http.MethodGet, "/api/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "UNAUTHENTICATED", env.Error.Code)
}

func TestMeReturnsPlayer(t *testing.T) {
	s := newTestServer(t, nil)
	player := testutil.CreatePlayer(t, s.db)

	w, env := s.do(t, http.MethodGet, "/api/me", token(t, player.ID, string(models.PlayerRolePlayer)), nil)
	require.Equal(t, http.StatusOK, w.Code)

	var got models.Player
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, player.ID, got.ID)
	assert.Len(t, got.Wallets, 1)
}

func TestParticipateAndDuplicate(t *testing.T) {
	s := newTestServer(t, nil)
	player := testutil.CreatePlayer(t, s.db)
	raffle := testutil.CreateRaffle(t, s.db, []models.Prize{testutil.AssetPrize("GEMS", 10, 3, 0)})
	tok := token(t, player.ID, string(models.PlayerRolePlayer))
	path := "/api/raffles/" + raffle.ID.String() + "/participate"

	w, env := s.do(t, http.MethodPost, path, tok, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.True(t, env.Success)

	var result services.ParticipationResult
	require.NoError(t, json.Unmarshal(env.Data, &result))
	require.NotNil(t, result.Prize)
	assert.Equal(t, models.PrizeTypeAsset, result.Prize.Type)

	w, env = s.do(t, http.MethodPost, path, tok, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, services.CodeDuplicateEntry, env.Error.Code)
}

func TestParticipateUnknownRaffle(t *testing.T) {
	s := newTestServer(t, nil)
	player := testutil.CreatePlayer(t, s.db)
	tok := token(t, player.ID, string(models.PlayerRolePlayer))

	w, env := s.do(t, http.MethodPost, "/api/raffles/"+uuid.NewString()+"/participate", tok, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, services.CodeRaffleNotFound, env.Error.Code)

	w, _ = s.do(t, http.MethodPost, "/api/raffles/not-a-uuid/participate", tok, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestParticipateRateLimited(t *testing.T) {
	s := newTestServer(t, middleware.NewRateLimiter(0.001, 1, zap.NewNop()))
	player := testutil.CreatePlayer(t, s.db)
	tok := token(t, player.ID, string(models.PlayerRolePlayer))
	path := "/api/raffles/" + uuid.NewString() + "/participate"

	w, _ := s.do(t, http.MethodPost, path, tok, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, env := s.do(t, http.MethodPost, path, tok, nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "RATE_LIMITED", env.Error.Code)
}

func TestRevealAndEntries(t *testing.T) {
	s := newTestServer(t, nil)
	player := testutil.CreatePlayer(t, s.db)
	raffle := testutil.CreateRaffle(t, s.db, []models.Prize{testutil.EmptyPrize(5, 0)})
	tok := token(t, player.ID, string(models.PlayerRolePlayer))
	base := "/api/raffles/" + raffle.ID.String()

	w, _ := s.do(t, http.MethodPost, base+"/participate", tok, nil)
	require.Equal(t, http.StatusCreated, w.Code)

	w, env := s.do(t, http.MethodGet, base+"/entries", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var entries []models.Participant
	require.NoError(t, json.Unmarshal(env.Data, &entries))
	require.Len(t, entries, 1)

	// instant raffles reveal at entry, so nothing is left hidden
	w, env = s.do(t, http.MethodPost, base+"/reveal", tok, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, services.CodeNotFound, env.Error.Code)

	w, env = s.do(t, http.MethodPost, base+"/reveal", tok, gin.H{"participant_id": entries[0].ID})
	require.Equal(t, http.StatusOK, w.Code)
	var revealed services.RevealResult
	require.NoError(t, json.Unmarshal(env.Data, &revealed))
	assert.True(t, revealed.AlreadyRevealed)

	w, env = s.do(t, http.MethodPost, base+"/reveal-all", tok, gin.H{"batch_size": 10})
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.Success)
}

func TestAdminRoutesRequireAdminRole(t *testing.T) {
	s := newTestServer(t, nil)
	player := testutil.CreatePlayer(t, s.db)

	w, env := s.do(t, http.MethodPost, "/api/admin/raffles", token(t, player.ID, string(models.PlayerRolePlayer)), gin.H{})
	assert.Equal(t, http.StatusForbidden, w.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "FORBIDDEN", env.Error.Code)
}

func TestAdminCreateAndDraw(t *testing.T) {
	s := newTestServer(t, nil)
	admin := testutil.CreatePlayer(t, s.db)
	tok := token(t, admin.ID, auth.RoleAdmin)

	now := time.Now().UTC()
	w, env := s.do(t, http.MethodPost, "/api/admin/raffles", tok, gin.H{
		"name":       "Lucky week",
		"start_date": now.Add(time.Hour),
		"end_date":   now.Add(48 * time.Hour),
		"prizes": []gin.H{
			{"name": "Gems", "type": "ASSET", "asset_id": "GEMS", "amount": "5", "quantity": 2},
			{"name": "Nothing", "type": "EMPTY", "quantity": 8},
		},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created models.RaffleResponse
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.Equal(t, 10, created.TotalSlots)
	assert.Equal(t, models.RaffleStatusUpcoming, created.Status)

	w, env = s.do(t, http.MethodPost, "/api/admin/raffles/"+created.ID.String()+"/draw", tok, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, services.CodeRaffleNotDrawable, env.Error.Code)

	w, _ = s.do(t, http.MethodPut, "/api/admin/raffles/"+created.ID.String()+"/prizes", tok, gin.H{
		"prizes": []gin.H{{"name": "Nothing", "type": "EMPTY", "quantity": 4}},
	})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAdminCreateValidation(t *testing.T) {
	s := newTestServer(t, nil)
	admin := testutil.CreatePlayer(t, s.db)
	tok := token(t, admin.ID, auth.RoleAdmin)

	now := time.Now().UTC()
	w, env := s.do(t, http.MethodPost, "/api/admin/raffles", tok, gin.H{
		"name":       "Backwards",
		"start_date": now.Add(48 * time.Hour),
		"end_date":   now.Add(time.Hour),
		"prizes":     []gin.H{{"name": "Nothing", "type": "EMPTY", "quantity": 1}},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, services.CodeValidation, env.Error.Code)
}

func TestAdminWinnersAndRequeue(t *testing.T) {
	s := newTestServer(t, nil)
	admin := testutil.CreatePlayer(t, s.db)
	tok := token(t, admin.ID, auth.RoleAdmin)
	raffle := testutil.CreateRaffle(t, s.db, []models.Prize{testutil.EmptyPrize(1, 0)})
	base := "/api/admin/raffles/" + raffle.ID.String()

	w, env := s.do(t, http.MethodGet, base+"/winners?status=PENDING", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var winners []models.Winner
	require.NoError(t, json.Unmarshal(env.Data, &winners))
	assert.Empty(t, winners)

	w, _ = s.do(t, http.MethodGet, base+"/winners?status=WHATEVER", tok, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, env = s.do(t, http.MethodPost, base+"/winners/requeue", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"requeued":0}`, string(env.Data))

	w, env = s.do(t, http.MethodPost, base+"/distribute", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.Success)
}

func TestAdminReconcileAndDiagnosticsWithoutChain(t *testing.T) {
	s := newTestServer(t, nil)
	admin := testutil.CreatePlayer(t, s.db)
	tok := token(t, admin.ID, auth.RoleAdmin)

	w, env := s.do(t, http.MethodGet, "/api/admin/raffles/"+uuid.NewString()+"/reconcile", tok, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	require.NotNil(t, env.Error)

	w, env = s.do(t, http.MethodGet, "/api/admin/diagnostics/solana", tok, nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, services.CodeChainUnavailable, env.Error.Code)
}

func TestGetRaffleIsPublic(t *testing.T) {
	s := newTestServer(t, nil)
	raffle := testutil.CreateRaffle(t, s.db, []models.Prize{testutil.EmptyPrize(2, 0)})

	w, env := s.do(t, http.MethodGet, "/api/raffles/"+raffle.ID.String(), "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var got models.RaffleResponse
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, raffle.ID, got.ID)
	assert.Equal(t, models.RaffleStatusActive, got.Status)

	w, _ = s.do(t, http.MethodGet, "/api/raffles/"+uuid.NewString(), "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
