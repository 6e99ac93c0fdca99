package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/peterldowns/testy/assert"

	"github.com/bidstream/go-live-auctions/internal/auction"
	"github.com/bidstream/go-live-auctions/internal/engine"
	"github.com/bidstream/go-live-auctions/internal/store"
)

var baseTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T) (*httptest.Server, *store.Memory) {
	t.Helper()
	st := store.NewMemory(nil)
	eng := engine.New(st).WithClock(func() time.Time { return baseTime })
	router := NewRouter()
	h := &AuctionsHandler{
		Store:  st,
		Engine: eng,
		Now:    func() time.Time { return baseTime },
	}
	h.Register(router)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv, st
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	b, err := json.Marshal(body)
	assert.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(b))
	assert.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func createAuction(t *testing.T, srv *httptest.Server) auction.Snapshot {
	t.Helper()
	resp := postJSON(t, srv.URL+"/auctions", CreateAuctionReq{
		Title:           "first edition",
		Description:     "signed copy",
		StartingPrice:   auction.MustMoney("100.00"),
		MinBidIncrement: auction.MustMoney("5.00"),
		StartTime:       baseTime.Add(-time.Hour),
		EndTime:         baseTime.Add(time.Hour),
		SellerID:        "seller-1",
		CategoryID:      "books",
		Items:           []ItemInput{{Name: "book", Quantity: 1}},
	})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	return decode[auction.Snapshot](t, resp)
}

// Auctions are created DRAFT; tests that bid flip them ACTIVE directly.
func activate(t *testing.T, st *store.Memory, id string) {
	t.Helper()
	err := st.WithAuction(context.Background(), id, func(tx store.Tx) error {
		a := tx.Auction()
		a.Status = auction.StatusActive
		return tx.UpdateAuction(a)
	})
	assert.NoError(t, err)
}

func TestCreateAuction(t *testing.T) {
	srv, _ := newTestServer(t)

	snap := createAuction(t, srv)
	assert.Equal(t, auction.StatusDraft, snap.Auction.Status)
	assert.True(t, snap.Auction.CurrentPrice.Equal(auction.MustMoney("100.00")))
	assert.Equal(t, 5*time.Minute, snap.Auction.AutoExtend)
	assert.Equal(t, 1, len(snap.Items))
}

func TestCreateAuction_Validation(t *testing.T) {
	srv, _ := newTestServer(t)

	valid := func() CreateAuctionReq {
		return CreateAuctionReq{
			Title:           "lot",
			StartingPrice:   auction.MustMoney("10.00"),
			MinBidIncrement: auction.MustMoney("1.00"),
			StartTime:       baseTime,
			EndTime:         baseTime.Add(time.Hour),
			SellerID:        "s1",
			CategoryID:      "c1",
		}
	}

	tests := []struct {
		name   string
		mutate func(r *CreateAuctionReq)
	}{
		{name: "missing title", mutate: func(r *CreateAuctionReq) { r.Title = "" }},
		{name: "negative starting price", mutate: func(r *CreateAuctionReq) { r.StartingPrice = auction.MustMoney("-1") }},
		{name: "zero increment", mutate: func(r *CreateAuctionReq) { r.MinBidIncrement = auction.MustMoney("0") }},
		{name: "end before start", mutate: func(r *CreateAuctionReq) { r.EndTime = r.StartTime.Add(-time.Hour) }},
		{name: "item without quantity", mutate: func(r *CreateAuctionReq) { r.Items = []ItemInput{{Name: "x", Quantity: 0}} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid()
			tt.mutate(&req)
			resp := postJSON(t, srv.URL+"/auctions", req)
			defer resp.Body.Close()
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestGetAuction(t *testing.T) {
	srv, _ := newTestServer(t)
	snap := createAuction(t, srv)

	resp, err := http.Get(srv.URL + "/auctions/" + snap.Auction.ID)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode[auction.Snapshot](t, resp)
	assert.Equal(t, snap.Auction.ID, got.Auction.ID)

	resp, err = http.Get(srv.URL + "/auctions/no-such-id")
	assert.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSubmitBid_HTTPStatuses(t *testing.T) {
	srv, st := newTestServer(t)
	snap := createAuction(t, srv)
	activate(t, st, snap.Auction.ID)
	bidURL := fmt.Sprintf("%s/auctions/%s/bids", srv.URL, snap.Auction.ID)

	// Accepted: 201 with the updated auction.
	resp := postJSON(t, bidURL, SubmitBidReq{BidderID: "bidder-1", Amount: auction.MustMoney("100.00")})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	res := decode[auction.AdmissionResult](t, resp)
	assert.True(t, res.Accepted)
	assert.True(t, res.Auction.CurrentPrice.Equal(auction.MustMoney("100.00")))

	// Business rejection: 200 with the reason and the retry floor.
	resp = postJSON(t, bidURL, SubmitBidReq{BidderID: "bidder-2", Amount: auction.MustMoney("101.00")})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	res = decode[auction.AdmissionResult](t, resp)
	assert.False(t, res.Accepted)
	assert.Equal(t, auction.ReasonBidTooLow, res.Reason)
	assert.NotNil(t, res.MinimumRequired)
	assert.True(t, res.MinimumRequired.Equal(auction.MustMoney("105.00")))

	// Unknown auction: 404.
	resp = postJSON(t, srv.URL+"/auctions/no-such-id/bids", SubmitBidReq{BidderID: "bidder-1", Amount: auction.MustMoney("100.00")})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestListBids(t *testing.T) {
	srv, st := newTestServer(t)
	snap := createAuction(t, srv)
	activate(t, st, snap.Auction.ID)
	bidURL := fmt.Sprintf("%s/auctions/%s/bids", srv.URL, snap.Auction.ID)

	postJSON(t, bidURL, SubmitBidReq{BidderID: "bidder-1", Amount: auction.MustMoney("100.00")}).Body.Close()
	postJSON(t, bidURL, SubmitBidReq{BidderID: "bidder-2", Amount: auction.MustMoney("1.00")}).Body.Close()

	resp, err := http.Get(bidURL)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	bids := decode[[]auction.Bid](t, resp)
	assert.Equal(t, 2, len(bids))

	resp, err = http.Get(srv.URL + "/auctions/no-such-id/bids")
	assert.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCancelAuction_HTTPStatuses(t *testing.T) {
	srv, st := newTestServer(t)
	snap := createAuction(t, srv)
	activate(t, st, snap.Auction.ID)
	cancelURL := fmt.Sprintf("%s/auctions/%s/cancel", srv.URL, snap.Auction.ID)

	resp := postJSON(t, cancelURL, CancelReq{CallerID: "somebody-else"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = postJSON(t, cancelURL, CancelReq{CallerID: "seller-1"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Already terminal.
	resp = postJSON(t, cancelURL, CancelReq{CallerID: "seller-1"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = postJSON(t, srv.URL+"/auctions/no-such-id/cancel", CancelReq{CallerID: "seller-1"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
