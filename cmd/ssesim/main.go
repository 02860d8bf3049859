// ssesim is a development stand-in for the partner backend: it serves the
// order list endpoint and an SSE stream that emits randomized order
// lifecycle events, so the feed can be exercised without the real backend.
package main

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type simOrder struct {
	ID         string `json:"id"`
	CustomerID string `json:"customerId"`
	Customer   struct {
		Name   string `json:"name"`
		Mobile string `json:"mobile"`
	} `json:"customer"`
	Address struct {
		Pickup struct {
			Street   string `json:"street"`
			Landmark string `json:"landmark"`
			City     string `json:"city"`
		} `json:"pickup"`
	} `json:"address"`
	PlacedAt string    `json:"placedAt"`
	Items    []simItem `json:"items"`
	Status   string    `json:"status"`
	// Money fields as strings, matching what the production backend sends.
	TotalAmount string `json:"totalAmount"`
	GST         string `json:"gst"`
	DeliveryFee string `json:"deliveryFee"`
	ItemsAmount string `json:"itemsAmount"`
	Distance    string `json:"distance"`
}

type simItem struct {
	ID          string `json:"id"`
	Quantity    int    `json:"quantity"`
	Price       string `json:"price"`
	LaundryItem struct {
		Name string `json:"name"`
	} `json:"laundryItem"`
}

var statusFlow = []string{
	"pending", "confirmed", "pickup_scheduled", "picked_up",
	"in_process", "ready_for_delivery", "out_for_delivery", "delivered",
}

var customerNames = []string{"Asha Rao", "Vikram Mehta", "Priya Nair", "Rahul Singh", "Divya Iyer"}
var itemNames = []string{"Shirt", "Trousers", "Saree", "Bedsheet", "Curtain"}

type simulator struct {
	logger *zap.Logger

	mu     sync.Mutex
	orders map[string]*simOrder
	subs   map[chan string]struct{}
}

func newSimulator(logger *zap.Logger) *simulator {
	return &simulator{
		logger: logger,
		orders: make(map[string]*simOrder),
		subs:   make(map[chan string]struct{}),
	}
}

func (s *simulator) subscribe() chan string {
	ch := make(chan string, 16)
	s.mu.Lock()
	s.subs[ch] = struct{}{}
	s.mu.Unlock()
	return ch
}

func (s *simulator) unsubscribe(ch chan string) {
	s.mu.Lock()
	delete(s.subs, ch)
	s.mu.Unlock()
}

func (s *simulator) broadcast(frame string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.subs {
		select {
		case ch <- frame:
		default: // slow client, drop the frame
		}
	}
}

func frame(event string, payload any) string {
	data, _ := json.Marshal(payload)
	return fmt.Sprintf("event: %s\ndata: %s\n\n", event, data)
}

func (s *simulator) newOrder() *simOrder {
	o := &simOrder{
		ID:          uuid.NewString(),
		CustomerID:  uuid.NewString(),
		PlacedAt:    time.Now().UTC().Format(time.RFC3339),
		Status:      "pending",
		TotalAmount: fmt.Sprintf("%d", 150+rand.Intn(850)),
		GST:         "18",
		DeliveryFee: "40",
		ItemsAmount: fmt.Sprintf("%d", 100+rand.Intn(700)),
		Distance:    fmt.Sprintf("%.1f", rand.Float64()*8),
	}
	o.Customer.Name = customerNames[rand.Intn(len(customerNames))]
	o.Customer.Mobile = fmt.Sprintf("98%08d", rand.Intn(100000000))
	o.Address.Pickup.Street = fmt.Sprintf("%d MG Road", 1+rand.Intn(200))
	o.Address.Pickup.Landmark = "Near Metro"
	o.Address.Pickup.City = "Bengaluru"
	for i := 0; i < 1+rand.Intn(3); i++ {
		item := simItem{
			ID:       uuid.NewString(),
			Quantity: 1 + rand.Intn(4),
			Price:    fmt.Sprintf("%d", 30+rand.Intn(120)),
		}
		item.LaundryItem.Name = itemNames[rand.Intn(len(itemNames))]
		o.Items = append(o.Items, item)
	}
	return o
}

// run mutates the order set on a timer and broadcasts each change as a
// stream event.
func (s *simulator) run(eventEvery, heartbeatEvery time.Duration) {
	events := time.NewTicker(eventEvery)
	heartbeats := time.NewTicker(heartbeatEvery)
	defer events.Stop()
	defer heartbeats.Stop()

	for {
		select {
		case <-heartbeats.C:
			s.broadcast(frame("heartbeat", map[string]string{"ts": time.Now().UTC().Format(time.RFC3339)}))
		case <-events.C:
			s.emitRandomEvent()
		}
	}
}

// emitRandomEvent builds the frame while holding the lock: the run loop
// keeps mutating orders, so they cannot be marshaled after unlock.
func (s *simulator) emitRandomEvent() {
	s.mu.Lock()
	var active []*simOrder
	for _, o := range s.orders {
		if o.Status != "delivered" {
			active = append(active, o)
		}
	}
	var fr, what, orderID, status string
	roll := rand.Intn(10)
	switch {
	case len(active) == 0 || roll < 4:
		o := s.newOrder()
		s.orders[o.ID] = o
		fr = frame("new_order", map[string]any{"order": o})
		what, orderID, status = "new order", o.ID, o.Status
	case roll < 9:
		o := active[rand.Intn(len(active))]
		for i, st := range statusFlow {
			if st == o.Status && i+1 < len(statusFlow) {
				o.Status = statusFlow[i+1]
				break
			}
		}
		fr = frame("order_updated", map[string]any{"order": o})
		what, orderID, status = "order update", o.ID, o.Status
	default:
		o := active[rand.Intn(len(active))]
		delete(s.orders, o.ID)
		fr = frame("order_cancelled", map[string]any{
			"order":   o,
			"message": "Cancelled by customer",
		})
		what, orderID, status = "order cancellation", o.ID, o.Status
	}
	s.mu.Unlock()

	s.logger.Info("Emitting "+what,
		zap.String("order_id", orderID), zap.String("status", status))
	s.broadcast(fr)
}

func (s *simulator) handleOrders(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	orders := make([]*simOrder, 0, len(s.orders))
	for _, o := range s.orders {
		orders = append(orders, o)
	}
	body, err := json.Marshal(map[string]any{
		"data": map[string]any{"orders": orders},
	})
	s.mu.Unlock()

	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(body)
}

func (s *simulator) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	fmt.Fprint(w, frame("connected", map[string]string{"message": "stream established"}))
	flusher.Flush()

	ch := s.subscribe()
	defer s.unsubscribe(ch)
	s.logger.Info("Stream client connected", zap.String("remote", r.RemoteAddr))

	for {
		select {
		case <-r.Context().Done():
			s.logger.Info("Stream client disconnected", zap.String("remote", r.RemoteAddr))
			return
		case f := <-ch:
			fmt.Fprint(w, f)
			flusher.Flush()
		}
	}
}

func main() {
	zapConfig := zap.NewProductionConfig()
	zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, err := zapConfig.Build()
	if err != nil {
		panic(err)
	}

	sim := newSimulator(logger)
	for i := 0; i < 5; i++ {
		o := sim.newOrder()
		sim.orders[o.ID] = o
	}
	go sim.run(5*time.Second, 30*time.Second)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "PATCH", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "Cache-Control"},
	}))

	r.Route("/api/partner/orders", func(r chi.Router) {
		r.Get("/", sim.handleOrders)
		r.Get("/sse", sim.handleStream)
	})

	addr := ":8080"
	logger.Info("Order feed simulator listening", zap.String("address", addr))
	if err := http.ListenAndServe(addr, r); err != nil {
		logger.Fatal("Simulator server failed", zap.Error(err))
	}
}
