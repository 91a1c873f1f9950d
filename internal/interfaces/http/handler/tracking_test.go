package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	trackingapp "github.com/redakta/backend/internal/application/tracking"
	"github.com/redakta/backend/internal/domain/shared"
	"github.com/redakta/backend/internal/interfaces/http/dto"
)

func setupTrackingTestRouter() (*gin.Engine, *MockOfferRepository, *MockClickRepository) {
	offerRepo := new(MockOfferRepository)
	clickRepo := new(MockClickRepository)
	svc := trackingapp.NewService(clickRepo, offerRepo, "https://redakta.example.com", zap.NewNop())
	h := NewTrackingHandler(svc)

	router := gin.New()
	router.POST("/clicks", h.TrackClick)
	router.POST("/conversions", h.TrackConversion)
	router.GET("/offers/:id/stats", h.GetOfferStats)
	router.GET("/go/:slug", h.Redirect)
	return router, offerRepo, clickRepo
}

func postJSON(router *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	payload, _ := json.Marshal(body)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	return w
}

func TestTrackingHandler_TrackClick(t *testing.T) {
	t.Run("records click and returns tracking url", func(t *testing.T) {
		router, offerRepo, clickRepo := setupTrackingTestRouter()
		o := newTestOffer("flexidesk-pro")

		offerRepo.On("FindByID", mock.Anything, o.ID).Return(o, nil)
		clickRepo.On("Save", mock.Anything, mock.Anything).Return(nil)
		offerRepo.On("IncrementCounters", mock.Anything, o.ID, mock.Anything).Return(nil)

		w := postJSON(router, "/clicks", gin.H{
			"offerId":   o.ID.String(),
			"sessionId": "sess-1",
			"pageSlug":  "best-standing-desks",
		})

		assert.Equal(t, http.StatusCreated, w.Code)

		var resp dto.Response
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.True(t, resp.Success)

		data := resp.Data.(map[string]any)
		assert.NotEmpty(t, data["clickId"])
		assert.Contains(t, data["trackingUrl"], "https://redakta.example.com/go/flexidesk-pro")
		assert.Contains(t, data["trackingUrl"], "ref=best-standing-desks")
		clickRepo.AssertExpectations(t)
	})

	t.Run("deactivated offer is 404 like a missing one", func(t *testing.T) {
		router, offerRepo, _ := setupTrackingTestRouter()
		o := newTestOffer("flexidesk-pro")
		require.NoError(t, o.Deactivate())

		offerRepo.On("FindByID", mock.Anything, o.ID).Return(o, nil)

		w := postJSON(router, "/clicks", gin.H{
			"offerId":   o.ID.String(),
			"sessionId": "sess-1",
		})

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Contains(t, w.Body.String(), dto.ErrCodeOfferInactive)
	})

	t.Run("unknown offer is 404", func(t *testing.T) {
		router, offerRepo, _ := setupTrackingTestRouter()

		offerRepo.On("FindByID", mock.Anything, mock.Anything).Return(nil, shared.ErrNotFound)

		w := postJSON(router, "/clicks", gin.H{
			"offerId":   "550e8400-e29b-41d4-a716-446655440000",
			"sessionId": "sess-1",
		})

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Contains(t, w.Body.String(), dto.ErrCodeNotFound)
	})

	t.Run("missing session id fails binding", func(t *testing.T) {
		router, _, _ := setupTrackingTestRouter()

		w := postJSON(router, "/clicks", gin.H{
			"offerId": "550e8400-e29b-41d4-a716-446655440000",
		})

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestTrackingHandler_Redirect(t *testing.T) {
	t.Run("302 to merchant with merged params", func(t *testing.T) {
		router, offerRepo, _ := setupTrackingTestRouter()
		o := newTestOffer("flexidesk-pro")

		offerRepo.On("FindBySlug", mock.Anything, "flexidesk-pro").Return(o, nil)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/go/flexidesk-pro?utm_source=redakta", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusFound, w.Code)
		location := w.Header().Get("Location")
		assert.Contains(t, location, "merchant.example.com")
		assert.Contains(t, location, "aff=base")
		assert.Contains(t, location, "utm_source=redakta")
	})

	t.Run("unknown slug is 404", func(t *testing.T) {
		router, offerRepo, _ := setupTrackingTestRouter()

		offerRepo.On("FindBySlug", mock.Anything, "gone").Return(nil, fmt.Errorf("%w: offer 'gone'", shared.ErrNotFound))

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/go/gone", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Contains(t, w.Body.String(), dto.ErrCodeNotFound)
	})

	t.Run("deactivated offer never forwards", func(t *testing.T) {
		router, offerRepo, _ := setupTrackingTestRouter()
		o := newTestOffer("flexidesk-pro")
		require.NoError(t, o.Deactivate())

		offerRepo.On("FindBySlug", mock.Anything, "flexidesk-pro").Return(o, nil)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/go/flexidesk-pro", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Empty(t, w.Header().Get("Location"))
	})
}

func TestTrackingHandler_GetOfferStats(t *testing.T) {
	t.Run("invalid id is 400", func(t *testing.T) {
		router, _, _ := setupTrackingTestRouter()

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/offers/not-a-uuid/stats", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("invalid timestamp is 400", func(t *testing.T) {
		router, _, _ := setupTrackingTestRouter()

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/offers/550e8400-e29b-41d4-a716-446655440000/stats?from=yesterday", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
