package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"nhooyr.io/websocket"

	"github.com/qualagents/qualagents/pkg/types"
)

// StatusHub manages WebSocket connections and broadcasts job status
// transitions to every subscriber. A slow or abandoned subscriber is
// disconnected; the underlying analysis run is never affected.
type StatusHub struct {
	clients    map[clientInterface]bool
	broadcast  chan interface{}
	register   chan clientInterface
	unregister chan clientInterface
	mu         sync.RWMutex
	ctx        context.Context
	cancel     context.CancelFunc

	// streamTimeout bounds one client's observation window. Zero means
	// unbounded.
	streamTimeout  time.Duration
	allowedOrigins []string
}

// clientInterface allows for both real clients and mock clients.
type clientInterface interface {
	getSendChannel() chan []byte
	jobFilter() string
	close()
}

// Client represents a WebSocket connection. A non-empty jobID restricts the
// stream to that job's transitions.
type Client struct {
	hub   *StatusHub
	conn  *websocket.Conn
	send  chan []byte
	jobID string
}

func (c *Client) getSendChannel() chan []byte {
	return c.send
}

func (c *Client) jobFilter() string {
	return c.jobID
}

func (c *Client) close() {
	if c.conn != nil {
		_ = c.conn.Close(websocket.StatusNormalClosure, "")
	}
}

// JobStatusMessage is the wire format for one job status transition.
type JobStatusMessage struct {
	Type      string          `json:"type"`
	JobID     string          `json:"job_id"`
	ProjectID int             `json:"project_id"`
	Status    types.JobStatus `json:"status"`
	Error     string          `json:"error,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewStatusHub creates a new status hub.
func NewStatusHub(streamTimeout time.Duration, allowedOrigins []string) *StatusHub {
	ctx, cancel := context.WithCancel(context.Background())
	return &StatusHub{
		clients:        make(map[clientInterface]bool),
		broadcast:      make(chan interface{}, 256),
		register:       make(chan clientInterface),
		unregister:     make(chan clientInterface),
		ctx:            ctx,
		cancel:         cancel,
		streamTimeout:  streamTimeout,
		allowedOrigins: allowedOrigins,
	}
}

// JobUpdated broadcasts a job status transition. It satisfies the analysis
// service's status listener contract.
func (h *StatusHub) JobUpdated(job *types.AnalysisJob) {
	h.Broadcast(JobStatusMessage{
		Type:      "job_status",
		JobID:     job.ID,
		ProjectID: job.ProjectID,
		Status:    job.Status,
		Error:     job.Error,
		Timestamp: time.Now(),
	})
}

// Run starts the hub's message processing loop.
func (h *StatusHub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			log.Printf("WebSocket client connected (total: %d)", len(h.clients))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.getSendChannel())
			}
			count := len(h.clients)
			h.mu.Unlock()
			log.Printf("WebSocket client disconnected (total: %d)", count)

		case message := <-h.broadcast:
			// Full Lock because the default branch may delete from the map.
			h.mu.Lock()
			data, err := json.Marshal(message)
			if err != nil {
				log.Printf("ERROR: Failed to marshal WebSocket message: %v", err)
				h.mu.Unlock()
				continue
			}

			var jobID string
			if msg, ok := message.(JobStatusMessage); ok {
				jobID = msg.JobID
			}

			for client := range h.clients {
				if filter := client.jobFilter(); filter != "" && jobID != "" && filter != jobID {
					continue
				}
				sendChan := client.getSendChannel()
				select {
				case sendChan <- data:
				default:
					// Client's send channel is full, disconnect them.
					close(sendChan)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()

		case <-h.ctx.Done():
			log.Println("WebSocket hub stopping...")
			return
		}
	}
}

// Stop gracefully shuts down the hub.
func (h *StatusHub) Stop() {
	h.cancel()

	h.mu.Lock()
	for client := range h.clients {
		close(client.getSendChannel())
		client.close()
	}
	h.clients = make(map[clientInterface]bool)
	h.mu.Unlock()
}

// Broadcast sends a message to all connected clients.
func (h *StatusHub) Broadcast(message interface{}) {
	select {
	case h.broadcast <- message:
	default:
		log.Println("WARNING: WebSocket broadcast channel full, dropping message")
	}
}

// Register adds a client to the hub.
func (h *StatusHub) Register(client clientInterface) {
	h.register <- client
}

// Unregister removes a client from the hub.
func (h *StatusHub) Unregister(client clientInterface) {
	h.unregister <- client
}

// ServeHTTP handles WebSocket upgrade requests. When routed with an {id}
// path value the stream is restricted to that job.
func (h *StatusHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	opts := &websocket.AcceptOptions{OriginPatterns: h.allowedOrigins}
	if len(h.allowedOrigins) == 0 {
		opts.InsecureSkipVerify = true
	}

	conn, err := websocket.Accept(w, r, opts)
	if err != nil {
		log.Printf("ERROR: WebSocket upgrade failed: %v", err)
		return
	}

	client := &Client{
		hub:   h,
		conn:  conn,
		send:  make(chan []byte, 256),
		jobID: r.PathValue("id"),
	}

	h.Register(client)

	go client.writePump()
	go client.readPump()
}

// writePump sends messages to the WebSocket connection. The stream timeout
// bounds the whole observation; the job itself keeps running after the
// stream closes.
func (c *Client) writePump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	streamCtx := context.Background()
	if c.hub.streamTimeout > 0 {
		var cancel context.CancelFunc
		streamCtx, cancel = context.WithTimeout(streamCtx, c.hub.streamTimeout)
		defer cancel()
	}

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				return
			}
			ctx, cancel := context.WithTimeout(streamCtx, 10*time.Second)
			err := c.conn.Write(ctx, websocket.MessageText, message)
			cancel()
			if err != nil {
				log.Printf("ERROR: WebSocket write failed: %v", err)
				return
			}
		case <-streamCtx.Done():
			return
		}
	}
}

// readPump drains messages from the WebSocket connection to detect
// disconnections.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		_, _, err := c.conn.Read(context.Background())
		if err != nil {
			return
		}
	}
}

// MockClient is a mock client for testing.
type MockClient struct {
	SendChan chan []byte
	JobID    string
}

func (m *MockClient) getSendChannel() chan []byte {
	return m.SendChan
}

func (m *MockClient) jobFilter() string { return m.JobID }

func (m *MockClient) close() {}
