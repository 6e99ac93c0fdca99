package httpx

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/bidstream/go-live-auctions/internal/auction"
	"github.com/bidstream/go-live-auctions/internal/engine"
	"github.com/bidstream/go-live-auctions/internal/redisx"
	"github.com/bidstream/go-live-auctions/internal/store"
)

type AuctionsHandler struct {
	Store  store.Store
	Engine *engine.Engine
	Redis  *redis.Client
	Now    func() time.Time
}

type ItemInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Condition   string `json:"condition,omitempty"`
	Quantity    int    `json:"quantity"`
}

type CreateAuctionReq struct {
	Title             string           `json:"title"`
	Description       string           `json:"description"`
	StartingPrice     decimal.Decimal  `json:"starting_price"`
	ReservePrice      *decimal.Decimal `json:"reserve_price,omitempty"`
	MinBidIncrement   decimal.Decimal  `json:"min_bid_increment"`
	StartTime         time.Time        `json:"start_time"`
	EndTime           time.Time        `json:"end_time"`
	AutoExtendMinutes int              `json:"auto_extend_minutes"`
	SellerID          string           `json:"seller_id"`
	CategoryID        string           `json:"category_id"`
	Items             []ItemInput      `json:"items"`
}

type SubmitBidReq struct {
	BidderID string          `json:"bidder_id"`
	Amount   decimal.Decimal `json:"amount"`
}

type CancelReq struct {
	CallerID string `json:"caller_id"`
}

func (h *AuctionsHandler) Register(r *chi.Mux) {
	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(15 * time.Second))
		r.Post("/auctions", h.createAuction)
		r.Get("/auctions/{id}", h.getAuction)
		r.Get("/auctions/{id}/bids", h.listBids)
		r.Post("/auctions/{id}/bids", h.submitBid)
		r.Post("/auctions/{id}/cancel", h.cancelAuction)
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *AuctionsHandler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now().UTC()
}

func (h *AuctionsHandler) createAuction(w http.ResponseWriter, r *http.Request) {
	var req CreateAuctionReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.Title == "" || req.SellerID == "" || req.CategoryID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing fields"})
		return
	}
	if req.StartingPrice.IsNegative() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "starting price must be non-negative"})
		return
	}
	if !req.MinBidIncrement.IsPositive() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "min bid increment must be positive"})
		return
	}
	if !req.EndTime.After(req.StartTime) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "end time must be after start time"})
		return
	}
	for _, it := range req.Items {
		if it.Name == "" || it.Quantity <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid item"})
			return
		}
	}

	autoExtend := time.Duration(req.AutoExtendMinutes) * time.Minute
	if autoExtend <= 0 {
		autoExtend = 5 * time.Minute
	}

	now := h.now()
	a := &auction.Auction{
		ID:              uuid.NewString(),
		Title:           req.Title,
		Description:     req.Description,
		StartingPrice:   req.StartingPrice.Round(2),
		CurrentPrice:    req.StartingPrice.Round(2),
		MinBidIncrement: req.MinBidIncrement.Round(2),
		StartTime:       req.StartTime.UTC(),
		EndTime:         req.EndTime.UTC(),
		AutoExtend:      autoExtend,
		Status:          auction.StatusDraft,
		SellerID:        req.SellerID,
		CategoryID:      req.CategoryID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if req.ReservePrice != nil {
		rp := req.ReservePrice.Round(2)
		a.ReservePrice = &rp
	}

	items := make([]auction.AuctionItem, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, auction.AuctionItem{
			ID:          uuid.NewString(),
			AuctionID:   a.ID,
			Name:        it.Name,
			Description: it.Description,
			Condition:   it.Condition,
			Quantity:    it.Quantity,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
	}

	if err := h.Store.CreateAuction(r.Context(), a, items); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusCreated, auction.Snapshot{Auction: *a, Items: items})
}

func (h *AuctionsHandler) getAuction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx := r.Context()

	// Cache-first; the store stays the source of truth and display reads may
	// be briefly stale.
	key := redisx.KeySnapshot(id)
	if h.Redis != nil {
		if s, err := h.Redis.Get(ctx, key).Result(); err == nil && s != "" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(s))
			return
		}
	}

	snap, err := h.Store.GetAuction(ctx, id)
	if err != nil {
		if errors.Is(err, auction.ErrAuctionNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	body, _ := json.Marshal(snap)
	if h.Redis != nil {
		_ = h.Redis.Set(ctx, key, body, redisx.TTLSnapshot).Err()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (h *AuctionsHandler) listBids(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	bids, err := h.Store.ListBids(r.Context(), id, 50)
	if err != nil {
		if errors.Is(err, auction.ErrAuctionNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if bids == nil {
		bids = []auction.Bid{}
	}
	writeJSON(w, http.StatusOK, bids)
}

func (h *AuctionsHandler) submitBid(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req SubmitBidReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.BidderID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing bidder_id"})
		return
	}

	res, err := h.Engine.SubmitBid(r.Context(), id, req.BidderID, req.Amount.Round(2))
	if err != nil {
		if errors.Is(err, auction.ErrConflict) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "concurrent conflict, retry"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	switch {
	case res.Accepted:
		writeJSON(w, http.StatusCreated, res)
	case res.Reason == auction.ReasonNotFound:
		writeJSON(w, http.StatusNotFound, res)
	default:
		// Business rejection: a valid outcome, not a transport error.
		writeJSON(w, http.StatusOK, res)
	}
}

func (h *AuctionsHandler) cancelAuction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req CancelReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.CallerID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing caller_id"})
		return
	}

	err := h.Engine.Cancel(r.Context(), id, req.CallerID)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]string{"status": string(auction.StatusCancelled)})
	case errors.Is(err, auction.ErrAuctionNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	case errors.Is(err, auction.ErrNotSeller):
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "only the seller may cancel"})
	case errors.Is(err, auction.ErrTerminalState):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "auction already closed"})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}
